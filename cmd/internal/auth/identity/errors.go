package identity

import (
	"errors"
	"strings"
)

// Code is the closed set of identity failures callers can tell apart.
type Code int

const (
	// CodeUnknown covers unrecognized codes, transport failures and malformed error bodies.
	CodeUnknown Code = iota
	// CodeEmailExists is returned by sign-up for an address that is already registered.
	CodeEmailExists
	// CodeEmailNotFound is returned by sign-in for an unknown address.
	CodeEmailNotFound
	// CodeInvalidPassword is returned by sign-in for a wrong password.
	CodeInvalidPassword
)

// GenericMessage is the single message for every failure without a recognized code.
const GenericMessage = "An unknown error occurred!"

// ParseCode maps a backend error code to a Code.
// The backend may append detail after the code ("WEAK_PASSWORD : ..."), so only the first token counts.
func ParseCode(raw string) Code {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexAny(raw, " :"); i >= 0 {
		raw = raw[:i]
	}
	switch raw {
	case "EMAIL_EXISTS":
		return CodeEmailExists
	case "EMAIL_NOT_FOUND":
		return CodeEmailNotFound
	case "INVALID_PASSWORD":
		return CodeInvalidPassword
	default:
		return CodeUnknown
	}
}

// Message returns the fixed human-readable message for c.
func (c Code) Message() string {
	switch c {
	case CodeEmailExists:
		return "Email already exists."
	case CodeEmailNotFound:
		return "This email does not exist."
	case CodeInvalidPassword:
		return "This password is not correct."
	default:
		return GenericMessage
	}
}

func (c Code) String() string {
	switch c {
	case CodeEmailExists:
		return "email_exists"
	case CodeEmailNotFound:
		return "email_not_found"
	case CodeInvalidPassword:
		return "invalid_password"
	default:
		return "unknown"
	}
}

// AuthError is the only error type returned by Client. Error() is the human message;
// the cause is kept for logging and never rendered to users.
type AuthError struct {
	Code  Code
	Cause error
}

func (e *AuthError) Error() string { return e.Code.Message() }

func (e *AuthError) Unwrap() error { return e.Cause }

// CodeOf extracts the Code carried by err, or CodeUnknown.
func CodeOf(err error) Code {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}

func unknown(cause error) *AuthError {
	return &AuthError{Code: CodeUnknown, Cause: cause}
}
