// Package identity is the client for the remote email/password identity endpoint.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	signUpPath = "/v1/accounts:signUp"
	signInPath = "/v1/accounts:signInWithPassword"

	maxResponseBytes = 1 << 20
)

// Response is the identity endpoint's success payload.
type Response struct {
	IDToken      string `json:"idToken"`
	Email        string `json:"email"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
	Registered   bool   `json:"registered,omitempty"`
}

// Lifetime parses ExpiresIn (seconds, as a string).
func (r Response) Lifetime() (time.Duration, error) {
	secs, err := strconv.ParseInt(strings.TrimSpace(r.ExpiresIn), 10, 64)
	if err != nil || secs <= 0 {
		return 0, fmt.Errorf("identity: invalid expiresIn %q", r.ExpiresIn)
	}
	return time.Duration(secs) * time.Second, nil
}

type credentialsRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type errorBody struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client talks to the identity endpoint. Its HTTP client must not carry the request
// authenticator: identity calls are never tagged with a token.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// NewClient constructs a Client. baseURL is the scheme+host (and optional prefix) of the endpoint.
func NewClient(httpClient *http.Client, baseURL, apiKey string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New("identity: invalid base url")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{http: httpClient, baseURL: u.String(), apiKey: apiKey}, nil
}

// Host returns the endpoint host, used to exempt identity calls from request authentication.
func (c *Client) Host() string {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// SignUp registers a new account.
func (c *Client) SignUp(ctx context.Context, email, password string) (Response, error) {
	return c.post(ctx, signUpPath, email, password)
}

// SignIn authenticates an existing account.
func (c *Client) SignIn(ctx context.Context, email, password string) (Response, error) {
	return c.post(ctx, signInPath, email, password)
}

func (c *Client) post(ctx context.Context, path, email, password string) (Response, error) {
	body, err := json.Marshal(credentialsRequest{Email: email, Password: password, ReturnSecureToken: true})
	if err != nil {
		return Response{}, unknown(err)
	}

	endpoint := c.baseURL + path
	if c.apiKey != "" {
		endpoint += "?key=" + url.QueryEscape(c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, unknown(err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return Response{}, unknown(err)
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return Response{}, unknown(err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return Response{}, decodeFailure(res.StatusCode, raw)
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return Response{}, unknown(fmt.Errorf("identity: decode response: %w", err))
	}
	if out.IDToken == "" || out.LocalID == "" {
		return Response{}, unknown(errors.New("identity: incomplete response"))
	}
	if _, err := out.Lifetime(); err != nil {
		return Response{}, unknown(err)
	}
	return out, nil
}

func decodeFailure(status int, raw []byte) *AuthError {
	var eb errorBody
	if len(raw) == 0 || json.Unmarshal(raw, &eb) != nil || eb.Error == nil || eb.Error.Message == "" {
		return unknown(fmt.Errorf("identity: status %d without error body", status))
	}
	return &AuthError{
		Code:  ParseCode(eb.Error.Message),
		Cause: fmt.Errorf("identity: status %d: %s", status, eb.Error.Message),
	}
}
