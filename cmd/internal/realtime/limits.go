package realtime

import "time"

const (
	subprotocolV1 = "recipebook.realtime.v1"

	defaultSendQueueSize = 64

	defaultWriteTimeout = 5 * time.Second
	closeGrace          = time.Second

	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second
	maxPingFailures   = 3
)
