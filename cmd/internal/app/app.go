// Package app wires the recipe book client: config, logging, the session manager, the
// collection stores with their remote gateways, and the local HTTP and WebSocket surface.
package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"recipebook/cmd/internal/auth/guard"
	"recipebook/cmd/internal/auth/identity"
	"recipebook/cmd/internal/auth/session"
	"recipebook/cmd/internal/auth/transport"
	"recipebook/cmd/internal/broadcast"
	"recipebook/cmd/internal/datastore"
	"recipebook/cmd/internal/metrics"
	"recipebook/cmd/internal/realtime"
	"recipebook/cmd/internal/recipes"
)

// App owns every long-lived component. Each is constructed once here and handed to its
// consumers; there are no package-level singletons.
type App struct {
	cfg Config
	log Logger

	metrics  *metrics.Metrics
	identity *identity.Client
	sessions *session.Manager
	route    *broadcast.Slot[string]

	recipes  *recipes.RecipeStore
	shopping *recipes.ShoppingList

	recipeGW   *datastore.Gateway[recipes.Recipe]
	shoppingGW *datastore.Gateway[recipes.Ingredient]

	guard *guard.Guard
	ws    *realtime.Gateway

	closers []func()
	probes  map[string]func(context.Context) error
}

// Option customizes New, mostly for tests.
type Option func(*options)

type options struct {
	persister session.Persister
	clock     session.Clock
}

// WithPersister bypasses the configured session backend.
func WithPersister(p session.Persister) Option {
	return func(o *options) { o.persister = p }
}

// WithClock overrides the session clock.
func WithClock(c session.Clock) Option {
	return func(o *options) { o.clock = c }
}

// New constructs a fully wired App. It does not restore the session; Run and the CLI do.
func New(ctx context.Context, cfg Config, log Logger, opts ...Option) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat, nil)
	}
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	a := &App{cfg: cfg, log: log, metrics: metrics.New()}

	persist := o.persister
	if persist == nil {
		p, err := a.newPersister(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		persist = p
	}

	idc, err := identity.NewClient(&http.Client{Timeout: cfg.RequestTimeout}, cfg.IdentityURL, cfg.APIKey)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	a.identity = idc

	a.route = broadcast.NewSlot[string](nil, append(a.metrics.StoreOptions(), broadcast.WithName("route"))...)
	nav := session.NavigatorFunc(func(route string) {
		a.route.Store(route)
		log.Info("app.navigate", "route", route)
	})

	mgrOpts := []session.Option{
		session.WithNavigator(nav),
		session.WithRecorder(a.metrics),
		session.WithBroadcastOptions(a.metrics.StoreOptions()...),
	}
	if o.clock != nil {
		mgrOpts = append(mgrOpts, session.WithClock(o.clock))
	}
	a.sessions, err = session.NewManager(log, idc, persist, mgrOpts...)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.recipes = recipes.NewRecipeStore(nil, a.metrics.StoreOptions()...)
	a.shopping = recipes.NewShoppingList(nil, a.metrics.StoreOptions()...)

	data := &http.Client{Timeout: cfg.RequestTimeout, Transport: a.dataTransport()}
	gwOpts := []datastore.Option{datastore.WithLogger(log), datastore.WithRecorder(a.metrics)}
	if a.recipeGW, err = datastore.NewRecipes(data, cfg.DataURL, gwOpts...); err != nil {
		a.Close()
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if a.shoppingGW, err = datastore.NewShoppingList(data, cfg.DataURL, gwOpts...); err != nil {
		a.Close()
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	a.guard = guard.New(a.sessions, a.sessions.EntryRoute(), log)
	a.ws = realtime.NewGateway(log, realtime.Config{
		AllowedOrigins: cfg.WSAllowedOrigins,
		OriginRequired: cfg.WSOriginRequired,
		SendQueueSize:  cfg.WSSendQueue,
	},
		realtime.StoreTopic(recipes.RecipesName, a.recipes),
		realtime.StoreTopic(recipes.ShoppingListName, a.shopping),
		realtime.SessionTopic(a.sessions),
	)

	return a, nil
}

// dataTransport tags data requests with the session token. Identity calls use their own client;
// when identity has a host of its own, requests to it are exempt as well.
func (a *App) dataTransport() http.RoundTripper {
	t := &transport.Transport{Base: http.DefaultTransport, Source: a.sessions}
	if !sameHost(a.cfg.IdentityURL, a.cfg.DataURL) {
		t.Exempt = transport.ExemptHost(a.identity.Host())
	}
	return t
}

func sameHost(x, y string) bool {
	hx, hy := hostOf(x), hostOf(y)
	return hx != "" && strings.EqualFold(hx, hy)
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}

// runtimeBaseURL turns a listen address into a URL a local browser can open.
func runtimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func wsBaseURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return "ws://" + base
	}
}

func (a *App) newPersister(ctx context.Context) (session.Persister, error) {
	switch a.cfg.SessionBackend {
	case BackendMemory:
		return session.NewMemoryStore(), nil

	case BackendRedis:
		client, err := session.NewRedisClient(ctx, a.cfg.RedisAddr, a.cfg.RedisPassword)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		a.addProbe("redis", func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return client.Ping(ctx).Err()
		})
		a.log.Info("session.backend.redis", "addr", a.cfg.RedisAddr)
		return session.NewRedisStore(client)

	case BackendPostgres:
		pool, err := NewDBPool(ctx, a.cfg)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		a.addProbe("postgres", func(ctx context.Context) error { return PingDB(ctx, pool, 2*time.Second) })

		st, err := session.NewPostgresStore(pool, session.WithPostgresSchema(a.cfg.DBSchema))
		if err != nil {
			return nil, err
		}
		if err := st.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
		a.log.Info("session.backend.postgres", "schema", a.cfg.DBSchema)
		return st, nil

	default:
		st, err := session.NewFileStore(a.cfg.SessionDir)
		if err != nil {
			return nil, err
		}
		a.log.Info("session.backend.file", "path", st.Path())
		return st, nil
	}
}

func (a *App) addProbe(name string, fn func(context.Context) error) {
	if a.probes == nil {
		a.probes = make(map[string]func(context.Context) error)
	}
	a.probes[name] = fn
}

// Ready runs every backend probe and returns the first failure.
func (a *App) Ready(ctx context.Context) error {
	for name, probe := range a.probes {
		if err := probe(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Sessions returns the session manager.
func (a *App) Sessions() *session.Manager { return a.sessions }

// Recipes returns the recipe store.
func (a *App) Recipes() *recipes.RecipeStore { return a.recipes }

// ShoppingList returns the shopping-list store.
func (a *App) ShoppingList() *recipes.ShoppingList { return a.shopping }

// Route returns the last navigation target, if any.
func (a *App) Route() (string, bool) { return a.route.Load() }

// Close releases backend resources and stops the expiry timer. It is safe to call twice.
func (a *App) Close() {
	if a.sessions != nil {
		a.sessions.Close()
	}
	if a.ws != nil {
		a.ws.CloseAll()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Run restores the persisted session, serves HTTP until ctx is done, then shuts down.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	if s, ok := a.sessions.Restore(ctx); ok {
		a.log.Info("app.session.restored", "session", s)
	}

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	base := runtimeBaseURL(a.cfg.HTTPAddr)
	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"url", base,
		"ws_url", wsBaseURL(base)+"/ws",
		"backend", a.cfg.SessionBackend,
		"data_url", a.cfg.DataURL,
	)

	// WebSocket handlers outlive Shutdown unless their clients are closed first.
	return serveHTTP(ctx, a.log, srv, a.cfg.ShutdownTimeout, a.ws.CloseAll)
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
