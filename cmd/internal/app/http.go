package app

import (
	"errors"
	"net/http"
	"strconv"

	"recipebook/cmd/internal/auth/identity"
	"recipebook/cmd/internal/auth/session"
	"recipebook/cmd/internal/broadcast"
	"recipebook/cmd/internal/datastore"
	"recipebook/cmd/internal/realtime"
	"recipebook/cmd/internal/recipes"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler returns the local HTTP surface. Collection routes sit behind the route guard.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(WithRequestLogging(a.log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := a.Ready(r.Context()); err != nil {
			a.log.Info("readyz.not_ready", "err", err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})
	r.Method(http.MethodGet, "/metrics", a.metrics.Handler())
	r.Method(http.MethodGet, "/ws", a.ws)

	entry := a.sessions.EntryRoute()
	r.Get(entry, a.handleSession)
	r.Get(entry+"/session", a.handleSession)
	r.Post(entry+"/signup", a.handleCredentials(session.OpSignup))
	r.Post(entry+"/login", a.handleCredentials(session.OpLogin))
	r.Post(entry+"/logout", a.handleLogout)

	recipeRoutes := &collection[recipes.Recipe]{
		store:     a.recipes,
		gw:        a.recipeGW,
		normalize: recipes.Normalize,
		resolve:   true,
	}
	shoppingRoutes := &collection[recipes.Ingredient]{
		store:     a.shopping,
		gw:        a.shoppingGW,
		normalize: recipes.NormalizeIngredients,
	}

	r.Group(func(r chi.Router) {
		r.Use(a.guard.Middleware)
		r.Route("/"+recipes.RecipesName, func(r chi.Router) {
			recipeRoutes.register(r)
			r.Post("/{index}/to-shopping-list", a.handleToShoppingList)
		})
		r.Route("/"+recipes.ShoppingListName, shoppingRoutes.register)
	})

	return r
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *App) handleSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, realtime.NewSessionView(a.sessions.Current()))
}

func (a *App) handleCredentials(op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in credentials
		if err := decodeJSON(w, r, maxBodyBytes, &in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}

		call := a.sessions.Login
		if op == session.OpSignup {
			call = a.sessions.Signup
		}
		s, err := call(r.Context(), in.Email, in.Password)
		if err != nil {
			var ae *identity.AuthError
			if !errors.As(err, &ae) {
				ae = &identity.AuthError{Code: identity.CodeUnknown, Cause: err}
			}
			writeError(w, http.StatusBadRequest, ae.Code.String(), ae.Error())
			return
		}
		writeJSON(w, http.StatusOK, realtime.NewSessionView(s, true))
	}
}

func (a *App) handleLogout(w http.ResponseWriter, r *http.Request) {
	a.sessions.Logout(r.Context())
	http.Redirect(w, r, a.sessions.EntryRoute(), http.StatusSeeOther)
}

func (a *App) handleToShoppingList(w http.ResponseWriter, r *http.Request) {
	i, ok := parseIndex(w, r)
	if !ok {
		return
	}
	rec, err := a.recipes.At(i)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	recipes.AddToShoppingList(a.shopping, rec)
	writeJSON(w, http.StatusOK, a.shopping.Get())
}

// collection exposes one broadcast store and its remote gateway.
type collection[T any] struct {
	store     *broadcast.Store[T]
	gw        *datastore.Gateway[T]
	normalize func([]T) []T

	// resolve syncs from remote before a read when the store is empty.
	resolve bool
}

func (c *collection[T]) register(r chi.Router) {
	r.Get("/", c.list)
	r.Post("/", c.add)
	r.Post("/fetch", c.fetch)
	r.Post("/save", c.save)
	r.Get("/{index}", c.get)
	r.Put("/{index}", c.update)
	r.Delete("/{index}", c.remove)
}

func (c *collection[T]) ensureLoaded(w http.ResponseWriter, r *http.Request) bool {
	if !c.resolve || c.store.Len() > 0 {
		return true
	}
	if _, err := c.gw.Sync(r.Context(), c.store); err != nil {
		writeRemoteError(w, err)
		return false
	}
	return true
}

func (c *collection[T]) list(w http.ResponseWriter, r *http.Request) {
	if !c.ensureLoaded(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, c.store.Get())
}

func (c *collection[T]) get(w http.ResponseWriter, r *http.Request) {
	i, ok := parseIndex(w, r)
	if !ok || !c.ensureLoaded(w, r) {
		return
	}
	item, err := c.store.At(i)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (c *collection[T]) decodeItem(w http.ResponseWriter, r *http.Request) (T, bool) {
	var item T
	if err := decodeJSON(w, r, maxBodyBytes, &item); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return item, false
	}
	if c.normalize != nil {
		item = c.normalize([]T{item})[0]
	}
	return item, true
}

func (c *collection[T]) add(w http.ResponseWriter, r *http.Request) {
	item, ok := c.decodeItem(w, r)
	if !ok {
		return
	}
	c.store.Add(item)
	writeJSON(w, http.StatusCreated, c.store.Get())
}

func (c *collection[T]) update(w http.ResponseWriter, r *http.Request) {
	i, ok := parseIndex(w, r)
	if !ok {
		return
	}
	item, ok := c.decodeItem(w, r)
	if !ok {
		return
	}
	if err := c.store.Update(i, item); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c.store.Get())
}

func (c *collection[T]) remove(w http.ResponseWriter, r *http.Request) {
	i, ok := parseIndex(w, r)
	if !ok {
		return
	}
	if err := c.store.Delete(i); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *collection[T]) fetch(w http.ResponseWriter, r *http.Request) {
	items, err := c.gw.Sync(r.Context(), c.store)
	if err != nil {
		writeRemoteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (c *collection[T]) save(w http.ResponseWriter, r *http.Request) {
	if err := c.gw.Persist(r.Context(), c.store.Get()); err != nil {
		writeRemoteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || i < 0 {
		writeError(w, http.StatusBadRequest, "invalid_index", "index must be a non-negative integer")
		return 0, false
	}
	return i, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, broadcast.ErrIndexOutOfRange) {
		writeError(w, http.StatusNotFound, "not_found", "no item at that index")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal", "internal error")
}

// writeRemoteError never leaks the remote cause; the gateway has already logged it.
func writeRemoteError(w http.ResponseWriter, _ error) {
	writeError(w, http.StatusBadGateway, "remote_failed", datastore.GenericMessage)
}
