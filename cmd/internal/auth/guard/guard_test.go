package guard

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"recipebook/cmd/internal/auth/session"
)

type fixedSource struct {
	s   session.Session
	ok  bool
	now time.Time
}

func (f fixedSource) Current() (session.Session, bool) { return f.s, f.ok }
func (f fixedSource) Now() time.Time                   { return f.now }

func TestCanEnter(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	live := session.New("a@b.com", "u1", "tok", now.Add(time.Minute))
	stale := session.New("a@b.com", "u1", "tok", now.Add(-time.Minute))

	tests := []struct {
		name string
		src  Source
		want Decision
	}{
		{"no session", fixedSource{now: now}, Decision{Redirect: session.EntryRoute}},
		{"nil source", nil, Decision{Redirect: session.EntryRoute}},
		{"expired session", fixedSource{s: stale, ok: true, now: now}, Decision{Redirect: session.EntryRoute}},
		{"live session", fixedSource{s: live, ok: true, now: now}, Decision{Allow: true}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := New(tc.src, "", nil).CanEnter(); got != tc.want {
				t.Fatalf("CanEnter = %+v; want %+v", got, tc.want)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	anon := New(fixedSource{now: now}, "/login", log).Middleware(next)
	rr := httptest.NewRecorder()
	anon.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/recipes", nil))
	if rr.Code != http.StatusFound || rr.Header().Get("Location") != "/login" {
		t.Fatalf("anonymous: code=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}

	authed := New(fixedSource{s: session.New("a@b.com", "u1", "tok", now.Add(time.Hour)), ok: true, now: now}, "", log).Middleware(next)
	rr = httptest.NewRecorder()
	authed.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/recipes", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("authenticated: code=%d", rr.Code)
	}
}
