package emulator

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	maxAuthBody       = 16 << 10
	maxCollectionBody = 8 << 20
	minPasswordLen    = 6
)

var collectionNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Config configures the emulator.
type Config struct {
	// APIKey, when set, must match the ?key= parameter of identity calls.
	APIKey string
	// Issuer is the PASETO iss claim.
	Issuer string
	// TokenTTL is reported as expiresIn and enforced on collection access.
	TokenTTL time.Duration
	// SecretKeyHex is a hex Ed25519 secret for signing; empty generates one per process.
	SecretKeyHex string
	// Hash sets Argon2id cost; zero means DefaultHashParams.
	Hash HashParams
	// Collections stores documents; nil means in-memory.
	Collections Collections
	// Now overrides the clock.
	Now func() time.Time
}

// DefaultConfig returns a one-hour token lifetime with in-memory storage.
func DefaultConfig() Config {
	return Config{
		Issuer:   "recipebook-emulator",
		TokenTTL: time.Hour,
		Hash:     DefaultHashParams(),
	}
}

// Server implements the emulated endpoints.
type Server struct {
	log      *slog.Logger
	apiKey   string
	ttl      time.Duration
	now      func() time.Time
	accounts *accounts
	docs     Collections
	tokens   *tokenIssuer
}

// New constructs a Server.
func New(log *slog.Logger, cfg Config) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Issuer == "" {
		cfg.Issuer = def.Issuer
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = def.TokenTTL
	}
	if cfg.TokenTTL < time.Second {
		return nil, ErrConfig
	}
	if cfg.Hash == (HashParams{}) {
		cfg.Hash = def.Hash
	}
	if cfg.Collections == nil {
		cfg.Collections = NewMemoryCollections()
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}

	tokens, err := newTokenIssuer(cfg.Issuer, cfg.TokenTTL, cfg.SecretKeyHex)
	if err != nil {
		return nil, err
	}

	return &Server{
		log:      log,
		apiKey:   cfg.APIKey,
		ttl:      cfg.TokenTTL,
		now:      cfg.Now,
		accounts: newAccounts(cfg.Hash),
		docs:     cfg.Collections,
		tokens:   tokens,
	}, nil
}

// Accounts returns the number of registered accounts.
func (s *Server) Accounts() int { return s.accounts.count() }

// Handler returns the emulator routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/accounts:signUp", s.handleSignUp)
	r.Post("/v1/accounts:signInWithPassword", s.handleSignIn)
	r.Get("/{collection}.json", s.handleGetCollection)
	r.Put("/{collection}.json", s.handlePutCollection)
	return r
}

type credentials struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type authResponse struct {
	Kind         string `json:"kind"`
	IDToken      string `json:"idToken"`
	Email        string `json:"email"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
	Registered   bool   `json:"registered,omitempty"`
}

type identityError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type identityErrorResponse struct {
	Error identityError `json:"error"`
}

// writeJSON and writeRaw shape responses like the hosted endpoints: compact JSON with
// permissive CORS so a browser build can point at the emulator directly. The local client
// surface in app has its own helpers with no-store caching.
func writeJSON(w http.ResponseWriter, status int, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		status, raw = http.StatusInternalServerError, []byte(`{"error":"Internal error"}`)
	}
	writeRaw(w, status, raw)
}

func writeRaw(w http.ResponseWriter, status int, raw []byte) {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

func writeIdentityError(w http.ResponseWriter, code string) {
	writeJSON(w, http.StatusBadRequest, identityErrorResponse{
		Error: identityError{Code: http.StatusBadRequest, Message: code},
	})
}

func (s *Server) readCredentials(w http.ResponseWriter, r *http.Request) (credentials, bool) {
	if s.apiKey != "" && r.URL.Query().Get("key") != s.apiKey {
		writeIdentityError(w, CodeInvalidAPIKey)
		return credentials{}, false
	}

	var c credentials
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAuthBody))
	if err := dec.Decode(&c); err != nil {
		writeIdentityError(w, CodeInvalidJSON)
		return credentials{}, false
	}

	email := strings.TrimSpace(c.Email)
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		writeIdentityError(w, CodeInvalidEmail)
		return credentials{}, false
	}
	if c.Password == "" {
		writeIdentityError(w, CodeMissingPassword)
		return credentials{}, false
	}
	return c, true
}

func (s *Server) respond(w http.ResponseWriter, kind string, acc account, registered bool) {
	now := s.now()
	writeJSON(w, http.StatusOK, authResponse{
		Kind:         kind,
		IDToken:      s.tokens.issue(acc.localID, acc.email, now),
		Email:        acc.email,
		RefreshToken: strings.ReplaceAll(acc.localID, "-", "") + strconv.FormatInt(now.Unix(), 36),
		ExpiresIn:    strconv.FormatInt(int64(s.ttl/time.Second), 10),
		LocalID:      acc.localID,
		Registered:   registered,
	})
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	c, ok := s.readCredentials(w, r)
	if !ok {
		return
	}
	if len(c.Password) < minPasswordLen {
		writeIdentityError(w, CodeWeakPassword)
		return
	}

	acc, err := s.accounts.create(c.Email, c.Password)
	switch {
	case errors.Is(err, errEmailExists):
		writeIdentityError(w, CodeEmailExists)
		return
	case err != nil:
		s.log.Error("emulator.signup.fail", "err", err)
		writeJSON(w, http.StatusInternalServerError, identityErrorResponse{
			Error: identityError{Code: http.StatusInternalServerError, Message: "INTERNAL_ERROR"},
		})
		return
	}

	s.log.Info("emulator.signup.ok", "local_id", acc.localID)
	s.respond(w, "identitytoolkit#SignupNewUserResponse", acc, false)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	c, ok := s.readCredentials(w, r)
	if !ok {
		return
	}

	acc, err := s.accounts.authenticate(c.Email, c.Password)
	switch {
	case errors.Is(err, errEmailNotFound):
		writeIdentityError(w, CodeEmailNotFound)
		return
	case errors.Is(err, errInvalidPassword), errors.Is(err, ErrInvalidHash):
		writeIdentityError(w, CodeInvalidPassword)
		return
	case err != nil:
		s.log.Error("emulator.signin.fail", "err", err)
		writeIdentityError(w, CodeInvalidPassword)
		return
	}

	s.log.Info("emulator.signin.ok", "local_id", acc.localID)
	s.respond(w, "identitytoolkit#VerifyPasswordResponse", acc, true)
}

// authorize checks ?auth=. The rejection body matches the hosted store.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	localID, err := s.tokens.verify(r.URL.Query().Get("auth"), s.now())
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": PermissionDenied})
		return "", false
	}
	return localID, true
}

func collectionName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := chi.URLParam(r, "collection")
	if !collectionNameRe.MatchString(name) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid path"})
		return "", false
	}
	return name, true
}

func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	name, ok := collectionName(w, r)
	if !ok {
		return
	}
	if _, ok := s.authorize(w, r); !ok {
		return
	}

	doc, found, err := s.docs.Get(r.Context(), name)
	if err != nil {
		s.log.Error("emulator.collection.get.fail", "collection", name, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal error"})
		return
	}
	if !found {
		doc = json.RawMessage("null")
	}

	writeRaw(w, http.StatusOK, doc)
}

func (s *Server) handlePutCollection(w http.ResponseWriter, r *http.Request) {
	name, ok := collectionName(w, r)
	if !ok {
		return
	}
	localID, ok := s.authorize(w, r)
	if !ok {
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCollectionBody))
	if err != nil || !json.Valid(raw) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid data; couldn't parse JSON object, array, or value."})
		return
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid data"})
		return
	}

	if err := s.docs.Put(r.Context(), name, compact.Bytes()); err != nil {
		s.log.Error("emulator.collection.put.fail", "collection", name, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal error"})
		return
	}

	s.log.Info("emulator.collection.put", "collection", name, "local_id", localID, "bytes", compact.Len())
	writeRaw(w, http.StatusOK, compact.Bytes())
}
