package emulator

import "errors"

var (
	// ErrConfig is returned for an invalid emulator configuration.
	ErrConfig = errors.New("emulator: invalid config")

	errEmailExists     = errors.New("EMAIL_EXISTS")
	errEmailNotFound   = errors.New("EMAIL_NOT_FOUND")
	errInvalidPassword = errors.New("INVALID_PASSWORD")
)

// Identity error codes as they appear in error.message.
const (
	CodeEmailExists     = "EMAIL_EXISTS"
	CodeEmailNotFound   = "EMAIL_NOT_FOUND"
	CodeInvalidPassword = "INVALID_PASSWORD"
	CodeInvalidEmail    = "INVALID_EMAIL"
	CodeMissingPassword = "MISSING_PASSWORD"
	CodeWeakPassword    = "WEAK_PASSWORD : Password should be at least 6 characters"
	CodeInvalidAPIKey   = "INVALID_API_KEY"
	CodeInvalidJSON     = "INVALID_JSON_PAYLOAD"
)

// PermissionDenied is the collection store's rejection text.
const PermissionDenied = "Permission denied"
