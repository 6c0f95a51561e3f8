// Package guard gates protected routes on the current session.
package guard

import (
	"log/slog"
	"net/http"
	"time"

	"recipebook/cmd/internal/auth/session"
)

// Source exposes the latest published session. *session.Manager implements it.
type Source interface {
	Current() (session.Session, bool)
	Now() time.Time
}

// Decision is the outcome of CanEnter: either Allow or a Redirect target.
type Decision struct {
	Allow    bool
	Redirect string
}

// Guard allows entry only while a session with an effective token is published.
type Guard struct {
	src   Source
	entry string
	log   *slog.Logger
}

// New constructs a Guard redirecting to entry (session.EntryRoute when empty).
func New(src Source, entry string, log *slog.Logger) *Guard {
	if entry == "" {
		entry = session.EntryRoute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Guard{src: src, entry: entry, log: log}
}

// CanEnter reads the session once. It never starts an authentication attempt.
func (g *Guard) CanEnter() Decision {
	if g.src == nil {
		return Decision{Redirect: g.entry}
	}
	s, ok := g.src.Current()
	if !ok || !s.Valid(g.src.Now()) {
		return Decision{Redirect: g.entry}
	}
	return Decision{Allow: true}
}

// Middleware redirects requests that CanEnter rejects with 302 Found.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := g.CanEnter()
		if !d.Allow {
			g.log.Debug("guard.redirect", "path", r.URL.Path, "to", d.Redirect)
			http.Redirect(w, r, d.Redirect, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
