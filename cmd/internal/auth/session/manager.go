package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"recipebook/cmd/internal/auth/identity"
	"recipebook/cmd/internal/broadcast"
)

// EntryRoute is the unauthenticated entry point that logout and expiry navigate to.
const EntryRoute = "/auth"

// Authenticator performs the two identity operations. *identity.Client implements it.
type Authenticator interface {
	SignUp(ctx context.Context, email, password string) (identity.Response, error)
	SignIn(ctx context.Context, email, password string) (identity.Response, error)
}

// Navigator receives programmatic navigation requests.
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route string)

// Navigate calls f(route).
func (f NavigatorFunc) Navigate(route string) { f(route) }

// Recorder receives session lifecycle events, typically for metrics.
type Recorder interface {
	AuthAttempt(op, result string)
	SessionExpired()
}

type nopRecorder struct{}

func (nopRecorder) AuthAttempt(string, string) {}
func (nopRecorder) SessionExpired()            {}

type nopNavigator struct{}

func (nopNavigator) Navigate(string) {}

// Operation labels passed to Recorder.AuthAttempt.
const (
	OpSignup = "signup"
	OpLogin  = "login"
)

// DefaultPersistTimeout bounds each persister call made by a transition.
const DefaultPersistTimeout = 5 * time.Second

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the wall clock and timer source.
func WithClock(c Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithNavigator installs the navigation sink used by logout and expiry.
func WithNavigator(n Navigator) Option {
	return func(m *Manager) {
		if n != nil {
			m.nav = n
		}
	}
}

// WithRecorder installs a lifecycle recorder.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.rec = r
		}
	}
}

// WithEntryRoute overrides EntryRoute.
func WithEntryRoute(route string) Option {
	return func(m *Manager) {
		if r := strings.TrimSpace(route); r != "" {
			m.entry = r
		}
	}
}

// WithPersistTimeout overrides DefaultPersistTimeout.
func WithPersistTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.persistTimeout = d
		}
	}
}

// WithBroadcastOptions passes options to the underlying session slot.
func WithBroadcastOptions(opts ...broadcast.Option) Option {
	return func(m *Manager) { m.slotOpts = append(m.slotOpts, opts...) }
}

// Manager owns the current Session and its expiry timer.
//
// Transitions (signup, login, restore, logout, expiry) are serialized; each one completes its
// publication before the next begins. Identity requests run outside that serialization, so a
// slow sign-in never delays a logout. Observers must not call back into the Manager from
// inside a Subscribe callback.
//
// Persister writes happen after the transition is published, outside the serialization and
// under DefaultPersistTimeout, so slow storage delays only the caller that triggered the write.
// Writes land in transition order; a write overtaken by a later transition's write is dropped.
type Manager struct {
	log     *slog.Logger
	auth    Authenticator
	persist Persister
	clock   Clock
	nav     Navigator
	rec     Recorder
	entry   string

	persistTimeout time.Duration

	slotOpts []broadcast.Option
	current  *broadcast.Slot[Session]

	mu    sync.Mutex
	timer Timer
	gen   uint64

	// ioMu orders persister writes; written is the gen of the last one applied.
	ioMu    sync.Mutex
	written uint64
}

// NewManager constructs a Manager in the Anonymous state.
func NewManager(log *slog.Logger, auth Authenticator, persist Persister, opts ...Option) (*Manager, error) {
	if auth == nil {
		return nil, fmt.Errorf("%w: nil authenticator", ErrConfig)
	}
	if persist == nil {
		return nil, fmt.Errorf("%w: nil persister", ErrConfig)
	}
	if log == nil {
		log = slog.Default()
	}

	m := &Manager{
		log:     log,
		auth:    auth,
		persist: persist,
		clock:   SystemClock{},
		nav:     nopNavigator{},
		rec:     nopRecorder{},
		entry:   EntryRoute,

		persistTimeout: DefaultPersistTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	m.current = broadcast.NewSlot[Session](nil, append([]broadcast.Option{broadcast.WithName("session")}, m.slotOpts...)...)
	return m, nil
}

// EntryRoute returns the route logout and expiry navigate to.
func (m *Manager) EntryRoute() string { return m.entry }

// Now returns the Manager's clock time.
func (m *Manager) Now() time.Time { return m.clock.Now() }

// Current returns the latest published session, if any. It never touches storage or the network.
func (m *Manager) Current() (Session, bool) { return m.current.Load() }

// Token returns the effective token of the latest published session.
func (m *Manager) Token() (string, bool) {
	s, ok := m.current.Load()
	if !ok {
		return "", false
	}
	return s.Token(m.clock.Now())
}

// Subscribe attaches an observer to session publications. ok is false for "no session".
func (m *Manager) Subscribe(fn func(s Session, ok bool)) *broadcast.Subscription {
	return m.current.Subscribe(fn)
}

// Subscribers returns the number of attached observers.
func (m *Manager) Subscribers() int { return m.current.Subscribers() }

// Signup registers a new account and starts a session for it.
func (m *Manager) Signup(ctx context.Context, email, password string) (Session, error) {
	return m.authenticate(ctx, OpSignup, m.auth.SignUp, email, password)
}

// Login signs in and starts a session. On failure the prior session is left untouched.
func (m *Manager) Login(ctx context.Context, email, password string) (Session, error) {
	return m.authenticate(ctx, OpLogin, m.auth.SignIn, email, password)
}

type identityCall func(ctx context.Context, email, password string) (identity.Response, error)

func (m *Manager) authenticate(ctx context.Context, op string, call identityCall, email, password string) (Session, error) {
	requestedAt := m.clock.Now()

	resp, err := call(ctx, email, password)
	if err != nil {
		m.rec.AuthAttempt(op, "failure")
		m.log.Info("session.auth.fail", "op", op, "code", identity.CodeOf(err).String())
		return Session{}, err
	}

	lifetime, err := resp.Lifetime()
	if err != nil || strings.TrimSpace(resp.IDToken) == "" {
		m.rec.AuthAttempt(op, "failure")
		m.log.Warn("session.auth.bad_response", "op", op, "err", err)
		return Session{}, &identity.AuthError{Code: identity.CodeUnknown, Cause: err}
	}

	addr := resp.Email
	if strings.TrimSpace(addr) == "" {
		addr = email
	}
	s := New(addr, resp.LocalID, resp.IDToken, requestedAt.Add(lifetime))

	m.mu.Lock()
	m.armLocked(lifetime)
	m.current.Store(s)
	gen := m.gen
	m.mu.Unlock()

	m.write(ctx, gen, "save", func(ctx context.Context) error {
		return m.persist.Save(ctx, s.Persisted())
	})

	m.rec.AuthAttempt(op, "success")
	m.log.Info("session.start", "op", op, "session", s)
	return s, nil
}

// Restore publishes the persisted session when its token is still usable and arms the timer
// for the remaining lifetime. Absent, expired or unreadable records leave the Manager Anonymous.
// Restore does nothing when a session is already present.
func (m *Manager) Restore(ctx context.Context) (Session, bool) {
	p, ok, err := m.persist.Load(ctx)
	if err != nil {
		m.log.Warn("session.restore.load.fail", "err", err)
		return Session{}, false
	}
	if !ok {
		return Session{}, false
	}

	s, err := p.Session()
	if err != nil {
		m.log.Warn("session.restore.decode.fail", "err", err)
		return Session{}, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, present := m.current.Load(); present {
		return Session{}, false
	}

	now := m.clock.Now()
	if !s.Valid(now) {
		m.log.Debug("session.restore.expired", "expires_at", s.Expiry())
		return Session{}, false
	}

	m.armLocked(s.Remaining(now))
	m.current.Store(s)
	m.log.Info("session.restore.ok", "session", s)
	return s, true
}

// Logout clears the session, cancels the expiry timer, deletes the persisted record and
// navigates to the entry route. Calling it while Anonymous only navigates.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	gen := m.endLocked("logout")
	m.mu.Unlock()

	m.write(ctx, gen, "delete", m.persist.Delete)
	m.nav.Navigate(m.entry)
}

// Close stops the expiry timer without ending the session.
func (m *Manager) Close() {
	m.mu.Lock()
	m.cancelLocked()
	m.mu.Unlock()
}

// endLocked cancels the timer and clears the session. It returns the gen the caller must
// pass to write when deleting the persisted record.
func (m *Manager) endLocked(reason string) uint64 {
	m.cancelLocked()

	if _, ok := m.current.Load(); ok {
		m.current.Clear()
		m.log.Info("session.end", "reason", reason)
	}
	return m.gen
}

// write runs one persister call outside mu, bounded by persistTimeout. A call captured before
// the last applied write is stale and skipped.
func (m *Manager) write(ctx context.Context, gen uint64, op string, fn func(context.Context) error) {
	m.ioMu.Lock()
	defer m.ioMu.Unlock()

	if gen < m.written {
		m.log.Debug("session.persist.stale", "op", op)
		return
	}
	m.written = gen

	ctx, cancel := context.WithTimeout(ctx, m.persistTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		m.log.Warn("session.persist."+op+".fail", "err", err)
	}
}

func (m *Manager) armLocked(d time.Duration) {
	m.cancelLocked()
	gen := m.gen
	m.timer = m.clock.AfterFunc(d, func() { m.expire(gen) })
}

// cancelLocked stops any armed timer and invalidates callbacks already scheduled.
func (m *Manager) cancelLocked() {
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) expire(gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.rec.SessionExpired()
	next := m.endLocked("expired")
	m.mu.Unlock()

	m.write(context.Background(), next, "delete", m.persist.Delete)
	m.nav.Navigate(m.entry)
}
