package realtime

// Envelope types.
const (
	TypeState    = "state"
	TypeSnapshot = "snapshot"
)

// Envelope is the wire frame sent to observers. Seq starts at 1 per connection and
// increases by one per frame.
type Envelope struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
	Seq   uint64 `json:"seq"`
	Data  any    `json:"data"`
}
