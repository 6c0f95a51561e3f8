package session

import "errors"

var (
	// ErrConfig is returned for an invalid manager or store configuration.
	ErrConfig = errors.New("session: invalid config")

	// ErrInvalidPersisted is returned when a persisted record cannot be decoded.
	ErrInvalidPersisted = errors.New("session: invalid persisted record")
)
