package session

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// TimestampLayout is the persisted expiry format: ISO-8601 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Session is an immutable authenticated identity. A new value replaces the old one on every
// login, signup or restore.
type Session struct {
	Email  string
	UserID string

	token  string
	expiry time.Time
}

// New constructs a Session. A zero expiry means the token is never usable.
func New(email, userID, token string, expiry time.Time) Session {
	return Session{Email: email, UserID: userID, token: token, expiry: expiry}
}

// Token returns the effective token: the stored token only while now is before the expiry.
func (s Session) Token(now time.Time) (string, bool) {
	if !s.Valid(now) {
		return "", false
	}
	return s.token, true
}

// Valid reports whether the session has a usable token at now.
func (s Session) Valid(now time.Time) bool {
	return !s.expiry.IsZero() && now.Before(s.expiry)
}

// Expiry returns the token expiry (zero when absent).
func (s Session) Expiry() time.Time { return s.expiry }

// Remaining returns the time left before expiry, or 0.
func (s Session) Remaining(now time.Time) time.Duration {
	if !s.Valid(now) {
		return 0
	}
	return s.expiry.Sub(now)
}

// LogValue keeps the token out of logs.
func (s Session) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("email", s.Email),
		slog.String("user_id", s.UserID),
		slog.Time("expires_at", s.expiry),
	)
}

// Persisted is the durable form of a Session.
type Persisted struct {
	Email               string `json:"email"`
	ID                  string `json:"id"`
	Token               string `json:"_token"`
	TokenExpirationDate string `json:"_tokenExpirationDate"`
}

// Persisted converts s into its durable form.
func (s Session) Persisted() Persisted {
	p := Persisted{Email: s.Email, ID: s.UserID, Token: s.token}
	if !s.expiry.IsZero() {
		p.TokenExpirationDate = s.expiry.UTC().Format(TimestampLayout)
	}
	return p
}

// Session rebuilds a Session. An empty expiration yields a session without a usable token.
func (p Persisted) Session() (Session, error) {
	var exp time.Time
	if raw := strings.TrimSpace(p.TokenExpirationDate); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return Session{}, fmt.Errorf("%w: expiration %q", ErrInvalidPersisted, raw)
		}
		exp = t.UTC()
	}
	return New(p.Email, p.ID, p.Token, exp), nil
}

// Expiration parses TokenExpirationDate; ok is false when it is absent or malformed.
func (p Persisted) Expiration() (time.Time, bool) {
	s, err := p.Session()
	if err != nil || s.expiry.IsZero() {
		return time.Time{}, false
	}
	return s.expiry, true
}
