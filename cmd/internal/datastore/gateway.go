// Package datastore moves collections between the local stores and the remote JSON store.
//
// Reads are pure: Fetch returns normalized items and touches no store. Sync is the explicit
// fetch-then-apply. Writes are full overwrites with no precondition, so the last writer wins.
// Nothing here is cancelled by logout; a fetch started before logout can still be applied after.
package datastore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"recipebook/cmd/internal/broadcast"
	"recipebook/cmd/internal/recipes"
)

const (
	// RecipesPath and ShoppingListPath are the remote resources, relative to the base URL.
	RecipesPath      = "recipes.json"
	ShoppingListPath = "shopping-list.json"

	// Operation labels.
	OpFetch   = "fetch"
	OpPersist = "persist"

	maxBodyBytes = 8 << 20
)

// Recorder receives one event per remote request.
type Recorder interface {
	SyncRequest(collection, op, result string)
}

type nopRecorder struct{}

func (nopRecorder) SyncRequest(string, string, string) {}

// Option configures a Gateway.
type Option func(*options)

type options struct {
	log *slog.Logger
	rec Recorder
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithRecorder installs a request recorder.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.rec = r
		}
	}
}

// Gateway reads and writes one remote collection. The HTTP client is expected to carry the
// request authenticator.
type Gateway[T any] struct {
	client     *http.Client
	url        string
	collection string
	normalize  func([]T) []T
	log        *slog.Logger
	rec        Recorder
}

// New binds a Gateway to <baseURL>/<path>. normalize runs on every fetched collection.
func New[T any](client *http.Client, baseURL, path string, normalize func([]T) []T, opts ...Option) (*Gateway[T], error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("datastore: invalid base url %q", baseURL)
	}
	path = strings.TrimLeft(strings.TrimSpace(path), "/")
	if path == "" {
		return nil, errors.New("datastore: empty collection path")
	}
	if client == nil {
		client = http.DefaultClient
	}
	if normalize == nil {
		normalize = func(in []T) []T { return append(make([]T, 0, len(in)), in...) }
	}

	o := options{log: slog.Default(), rec: nopRecorder{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	return &Gateway[T]{
		client:     client,
		url:        strings.TrimRight(u.String(), "/") + "/" + path,
		collection: strings.TrimSuffix(path, ".json"),
		normalize:  normalize,
		log:        o.log,
		rec:        o.rec,
	}, nil
}

// NewRecipes binds a Gateway to the recipe collection.
func NewRecipes(client *http.Client, baseURL string, opts ...Option) (*Gateway[recipes.Recipe], error) {
	return New(client, baseURL, RecipesPath, recipes.Normalize, opts...)
}

// NewShoppingList binds a Gateway to the shopping-list collection.
func NewShoppingList(client *http.Client, baseURL string, opts ...Option) (*Gateway[recipes.Ingredient], error) {
	return New(client, baseURL, ShoppingListPath, recipes.NormalizeIngredients, opts...)
}

// URL returns the remote resource URL.
func (g *Gateway[T]) URL() string { return g.url }

// Collection returns the collection name.
func (g *Gateway[T]) Collection() string { return g.collection }

// Fetch performs one GET and returns the normalized collection. A remote null is empty.
func (g *Gateway[T]) Fetch(ctx context.Context) ([]T, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.url, nil)
	if err != nil {
		return nil, g.fail(OpFetch, 0, err)
	}
	req.Header.Set("Accept", "application/json")

	raw, err := g.do(req)
	if err != nil {
		return nil, err
	}

	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, g.fail(OpFetch, 0, err)
	}

	g.rec.SyncRequest(g.collection, OpFetch, "success")
	return g.normalize(items), nil
}

// Apply replaces the store contents with items in one publication and returns items.
func Apply[T any](store *broadcast.Store[T], items []T) []T {
	if store != nil {
		store.Set(items)
	}
	return items
}

// Sync fetches and applies the result to store, returning the same value.
func (g *Gateway[T]) Sync(ctx context.Context, store *broadcast.Store[T]) ([]T, error) {
	items, err := g.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return Apply(store, items), nil
}

// Persist overwrites the remote collection with items.
func (g *Gateway[T]) Persist(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	body, err := json.Marshal(items)
	if err != nil {
		return g.fail(OpPersist, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, g.url, bytes.NewReader(body))
	if err != nil {
		return g.fail(OpPersist, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")

	if _, err := g.do(req); err != nil {
		return err
	}

	g.rec.SyncRequest(g.collection, OpPersist, "success")
	return nil
}

func (g *Gateway[T]) do(req *http.Request) ([]byte, error) {
	op := OpFetch
	if req.Method == http.MethodPut {
		op = OpPersist
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, g.fail(op, 0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, g.fail(op, resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, g.fail(op, resp.StatusCode, remoteError(raw))
	}
	return raw, nil
}

func (g *Gateway[T]) fail(op string, status int, cause error) error {
	e := &Error{Op: op, Collection: g.collection, Status: status, Cause: cause}
	g.rec.SyncRequest(g.collection, op, "failure")
	g.log.Warn("datastore."+op+".fail", "err", e.Detail())
	return e
}

func remoteError(raw []byte) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return errors.New(body.Error)
	}
	return errors.New("unexpected response")
}
