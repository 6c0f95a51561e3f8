// Package transport attaches the current session token to outbound data requests.
package transport

import (
	"net/http"
	"net/url"
	"strings"
)

// Param is the query parameter carrying the token.
const Param = "auth"

// TokenSource yields the latest effective token without blocking on I/O.
// *session.Manager implements it.
type TokenSource interface {
	Token() (string, bool)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() (string, bool)

// Token calls f.
func (f TokenFunc) Token() (string, bool) { return f() }

// Transport is an http.RoundTripper that adds Param to every non-exempt request while a
// token is available. Existing query parameters are kept byte-for-byte, including ones
// url.ParseQuery would reject; only a prior Param value is replaced.
type Transport struct {
	// Base performs the request. nil means http.DefaultTransport.
	Base http.RoundTripper

	// Source supplies the token. nil means requests are never tagged.
	Source TokenSource

	// Exempt reports requests that must never carry a token.
	Exempt func(*http.Request) bool
}

// ExemptHost returns an Exempt predicate matching requests to host (case-insensitive, port
// included when present).
func ExemptHost(host string) func(*http.Request) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	return func(r *http.Request) bool {
		return host != "" && r.URL != nil && strings.ToLower(r.URL.Host) == host
	}
}

// RoundTrip implements http.RoundTripper. The caller's request is never modified.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	if t.Source == nil || req.URL == nil || (t.Exempt != nil && t.Exempt(req)) {
		return base.RoundTrip(req)
	}

	tok, ok := t.Source.Token()
	if !ok || tok == "" {
		return base.RoundTrip(req)
	}

	out := req.Clone(req.Context())
	out.URL.RawQuery = withToken(out.URL.RawQuery, tok)

	return base.RoundTrip(out)
}

// withToken drops every Param pair from raw and appends the new one. Other pairs are not
// decoded, so malformed escapes and ';' separators pass through untouched.
func withToken(raw, tok string) string {
	parts := strings.Split(raw, "&")
	kept := make([]string, 0, len(parts)+1)
	for _, part := range parts {
		if part == "" || isParam(part) {
			continue
		}
		kept = append(kept, part)
	}
	kept = append(kept, Param+"="+url.QueryEscape(tok))
	return strings.Join(kept, "&")
}

func isParam(part string) bool {
	key, _, _ := strings.Cut(part, "=")
	if key == Param {
		return true
	}
	k, err := url.QueryUnescape(key)
	return err == nil && k == Param
}

// Client returns an *http.Client using t.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}
