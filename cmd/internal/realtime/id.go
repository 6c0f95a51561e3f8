package realtime

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Client ids are ULIDs drawn from one monotonic source, so ids minted in the same
// millisecond still sort in join order in logs.
var (
	idMu      sync.Mutex
	idEntropy = ulid.Monotonic(rand.Reader, 0)
)

func newClientID(now time.Time) string {
	idMu.Lock()
	defer idMu.Unlock()

	id, err := ulid.New(ulid.Timestamp(now), idEntropy)
	if err != nil {
		// Monotonic entropy overflowed within this millisecond.
		return ulid.Make().String()
	}
	return id.String()
}
