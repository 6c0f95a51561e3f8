package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"recipebook/cmd/internal/auth/transport"
	"recipebook/cmd/internal/recipes"
)

type syncEvents struct {
	mu  sync.Mutex
	got []string
}

func (s *syncEvents) SyncRequest(collection, op, result string) {
	s.mu.Lock()
	s.got = append(s.got, collection+"/"+op+"/"+result)
	s.mu.Unlock()
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newRecipeGateway(t *testing.T, h http.HandlerFunc, rec Recorder) *Gateway[recipes.Recipe] {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	g, err := NewRecipes(srv.Client(), srv.URL+"/", WithLogger(quietLogger()), WithRecorder(rec))
	if err != nil {
		t.Fatalf("NewRecipes: %v", err)
	}
	return g
}

func TestSync_NormalizesNullIngredients(t *testing.T) {
	t.Parallel()

	g := newRecipeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/recipes.json" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = io.WriteString(w, `[
			{"name":"Soup","description":"hot","imagePath":"soup.png","ingredients":null},
			{"name":"Salad","description":"cold","imagePath":"salad.png","ingredients":[{"name":"Leaf","amount":3}]}
		]`)
	}, nil)

	store := recipes.NewRecipeStore(nil)
	var applied [][]recipes.Recipe
	store.Subscribe(func(rs []recipes.Recipe) { applied = append(applied, rs) })

	got, err := g.Sync(context.Background(), store)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if len(got) != 2 || got[0].Ingredients == nil || len(got[0].Ingredients) != 0 {
		t.Fatalf("returned value not normalized: %+v", got)
	}
	if len(applied) != 1 {
		t.Fatalf("publications = %d; want 1", len(applied))
	}
	if applied[0][0].Ingredients == nil || len(applied[0][0].Ingredients) != 0 {
		t.Fatalf("published value not normalized: %+v", applied[0][0])
	}
	if stored := store.Get(); len(stored) != 2 || stored[1].Ingredients[0].Name != "Leaf" {
		t.Fatalf("store = %+v", stored)
	}
}

func TestFetch_IsPure(t *testing.T) {
	t.Parallel()

	g := newRecipeGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[{"name":"Soup"}]`)
	}, nil)

	store := recipes.NewRecipeStore([]recipes.Recipe{{Name: "Local"}})
	got, err := g.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Soup" {
		t.Fatalf("Fetch = %+v", got)
	}
	if s := store.Get(); len(s) != 1 || s[0].Name != "Local" {
		t.Fatalf("Fetch touched the store: %+v", s)
	}

	Apply(store, got)
	if s := store.Get(); s[0].Name != "Soup" {
		t.Fatalf("Apply did not set: %+v", s)
	}
}

func TestFetch_NullIsEmpty(t *testing.T) {
	t.Parallel()

	g := newRecipeGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "null")
	}, nil)

	got, err := g.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("Fetch = %#v; want empty non-nil", got)
	}
}

func TestFetch_FailuresCollapse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"permission denied", http.StatusUnauthorized, `{"error":"Permission denied"}`},
		{"server error no body", http.StatusInternalServerError, ""},
		{"malformed json", http.StatusOK, `{"not":"a list"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rec := &syncEvents{}
			g := newRecipeGateway(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}, rec)

			_, err := g.Fetch(context.Background())
			var de *Error
			if !errors.As(err, &de) {
				t.Fatalf("expected *Error, got %T %v", err, err)
			}
			if err.Error() != GenericMessage {
				t.Fatalf("message = %q", err.Error())
			}
			if de.Op != OpFetch || de.Collection != "recipes" {
				t.Fatalf("error fields = %+v", de)
			}
			if len(rec.got) != 1 || rec.got[0] != "recipes/fetch/failure" {
				t.Fatalf("recorded %v", rec.got)
			}
		})
	}
}

func TestFetch_TransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	g, err := NewShoppingList(nil, base, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewShoppingList: %v", err)
	}
	if _, err := g.Fetch(context.Background()); err == nil || err.Error() != GenericMessage {
		t.Fatalf("err = %v", err)
	}
}

func TestPersist_OverwritesWithAuth(t *testing.T) {
	t.Parallel()

	var (
		gotAuth string
		gotBody []recipes.Ingredient
		method  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		gotAuth = r.URL.Query().Get("auth")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = io.WriteString(w, "[]")
	}))
	t.Cleanup(srv.Close)

	client := (&transport.Transport{
		Base:   srv.Client().Transport,
		Source: transport.TokenFunc(func() (string, bool) { return "tok", true }),
	}).Client()

	rec := &syncEvents{}
	g, err := NewShoppingList(client, srv.URL, WithLogger(quietLogger()), WithRecorder(rec))
	if err != nil {
		t.Fatalf("NewShoppingList: %v", err)
	}

	items := []recipes.Ingredient{{Name: "Egg", Amount: 2}, {Name: "Milk", Amount: 1}}
	if err := g.Persist(context.Background(), items); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	if method != http.MethodPut || gotAuth != "tok" {
		t.Fatalf("method=%s auth=%q", method, gotAuth)
	}
	if len(gotBody) != 2 || gotBody[1] != items[1] {
		t.Fatalf("body = %+v", gotBody)
	}
	if len(rec.got) != 1 || rec.got[0] != "shopping-list/persist/success" {
		t.Fatalf("recorded %v", rec.got)
	}
}

func TestPersist_NilSendsEmptyArray(t *testing.T) {
	t.Parallel()

	var raw string
	g := newRecipeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		raw = string(b)
		_, _ = io.WriteString(w, "null")
	}, nil)

	if err := g.Persist(context.Background(), nil); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if raw != "[]" {
		t.Fatalf("body = %q; want []", raw)
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewRecipes(nil, "ftp://x"); err == nil {
		t.Fatalf("expected error for bad scheme")
	}
	if _, err := New[recipes.Recipe](nil, "http://x", " / ", nil); err == nil {
		t.Fatalf("expected error for empty path")
	}
	g, err := NewRecipes(nil, "https://db.example/base/")
	if err != nil {
		t.Fatalf("NewRecipes: %v", err)
	}
	if g.URL() != "https://db.example/base/recipes.json" || g.Collection() != "recipes" {
		t.Fatalf("url=%q collection=%q", g.URL(), g.Collection())
	}
}
