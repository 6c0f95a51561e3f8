package realtime

import (
	"time"

	"recipebook/cmd/internal/auth/session"
	"recipebook/cmd/internal/broadcast"
)

// Topic is a named observable state.
type Topic interface {
	Name() string
	// State returns the current value for the initial frame.
	State() any
	// Subscribe attaches fn to future publications.
	Subscribe(fn func(data any)) *broadcast.Subscription
}

type storeTopic[T any] struct {
	name  string
	store *broadcast.Store[T]
}

// StoreTopic exposes a collection store.
func StoreTopic[T any](name string, store *broadcast.Store[T]) Topic {
	return storeTopic[T]{name: name, store: store}
}

func (t storeTopic[T]) Name() string { return t.name }
func (t storeTopic[T]) State() any   { return t.store.Get() }

func (t storeTopic[T]) Subscribe(fn func(any)) *broadcast.Subscription {
	return t.store.Subscribe(func(items []T) { fn(items) })
}

// SessionView is what observers see of a session. The token is never included.
type SessionView struct {
	Authenticated bool       `json:"authenticated"`
	Email         string     `json:"email,omitempty"`
	UserID        string     `json:"userId,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
}

// NewSessionView builds the public projection of s.
func NewSessionView(s session.Session, ok bool) SessionView {
	if !ok {
		return SessionView{}
	}
	exp := s.Expiry()
	v := SessionView{Authenticated: true, Email: s.Email, UserID: s.UserID}
	if !exp.IsZero() {
		v.ExpiresAt = &exp
	}
	return v
}

// SessionSource is the part of session.Manager the session topic needs.
type SessionSource interface {
	Current() (session.Session, bool)
	Subscribe(fn func(s session.Session, ok bool)) *broadcast.Subscription
}

type sessionTopic struct {
	src SessionSource
}

// SessionTopic exposes the current session without its token.
func SessionTopic(src SessionSource) Topic { return sessionTopic{src: src} }

func (sessionTopic) Name() string { return "session" }

func (t sessionTopic) State() any { return NewSessionView(t.src.Current()) }

func (t sessionTopic) Subscribe(fn func(any)) *broadcast.Subscription {
	return t.src.Subscribe(func(s session.Session, ok bool) { fn(NewSessionView(s, ok)) })
}
