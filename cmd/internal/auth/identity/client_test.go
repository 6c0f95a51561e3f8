package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.Client(), srv.URL, "test-key")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestSignIn_Success(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != signInPath {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("key"); got != "test-key" {
			t.Errorf("key=%q", got)
		}
		if r.URL.Query().Has("auth") {
			t.Errorf("identity request must not carry auth")
		}
		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Email != "a@b.com" || req.Password != "pw" || !req.ReturnSecureToken {
			t.Errorf("request=%+v", req)
		}
		_, _ = w.Write([]byte(`{"idToken":"tok","email":"a@b.com","refreshToken":"r","expiresIn":"3600","localId":"u1","registered":true}`))
	})

	res, err := c.SignIn(context.Background(), "a@b.com", "pw")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if res.IDToken != "tok" || res.LocalID != "u1" || !res.Registered {
		t.Fatalf("response=%+v", res)
	}
	if d, _ := res.Lifetime(); d != time.Hour {
		t.Fatalf("lifetime=%v", d)
	}
}

func TestSignUp_ErrorCodes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		status   int
		body     string
		wantCode Code
		wantMsg  string
	}{
		{name: "email exists", status: 400, body: `{"error":{"code":400,"message":"EMAIL_EXISTS"}}`, wantCode: CodeEmailExists, wantMsg: "Email already exists."},
		{name: "email not found", status: 400, body: `{"error":{"code":400,"message":"EMAIL_NOT_FOUND"}}`, wantCode: CodeEmailNotFound, wantMsg: "This email does not exist."},
		{name: "invalid password", status: 400, body: `{"error":{"code":400,"message":"INVALID_PASSWORD"}}`, wantCode: CodeInvalidPassword, wantMsg: "This password is not correct."},
		{name: "unknown code", status: 400, body: `{"error":{"code":400,"message":"WEAK_PASSWORD : Password should be at least 6 characters"}}`, wantCode: CodeUnknown, wantMsg: GenericMessage},
		{name: "empty body", status: 500, body: ``, wantCode: CodeUnknown, wantMsg: GenericMessage},
		{name: "malformed body", status: 502, body: `<html>bad gateway</html>`, wantCode: CodeUnknown, wantMsg: GenericMessage},
		{name: "missing error object", status: 400, body: `{"oops":true}`, wantCode: CodeUnknown, wantMsg: GenericMessage},
		{name: "incomplete success", status: 200, body: `{"email":"a@b.com"}`, wantCode: CodeUnknown, wantMsg: GenericMessage},
		{name: "bad expiresIn", status: 200, body: `{"idToken":"t","localId":"u","expiresIn":"soon"}`, wantCode: CodeUnknown, wantMsg: GenericMessage},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			_, err := c.SignUp(context.Background(), "a@b.com", "pw")
			var ae *AuthError
			if !errors.As(err, &ae) {
				t.Fatalf("expected *AuthError, got %T %v", err, err)
			}
			if ae.Code != tc.wantCode || err.Error() != tc.wantMsg {
				t.Fatalf("code=%v msg=%q; want %v %q", ae.Code, err.Error(), tc.wantCode, tc.wantMsg)
			}
			if CodeOf(err) != tc.wantCode {
				t.Fatalf("CodeOf=%v", CodeOf(err))
			}
		})
	}
}

func TestSignIn_TransportFailureIsGeneric(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(nil, url, "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = c.SignIn(context.Background(), "a@b.com", "pw")
	if err == nil || err.Error() != GenericMessage {
		t.Fatalf("err=%v", err)
	}
	if errors.Unwrap(err) == nil {
		t.Fatalf("cause must be kept for logging")
	}
}

func TestNewClient_RejectsInvalidBaseURL(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "not a url", "/relative"} {
		if _, err := NewClient(nil, in, ""); err == nil {
			t.Fatalf("NewClient(%q) accepted", in)
		}
	}

	c, err := NewClient(nil, "https://identity.example.com/", "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.Host() != "identity.example.com" {
		t.Fatalf("host=%q", c.Host())
	}
}

func TestParseCode(t *testing.T) {
	t.Parallel()

	cases := map[string]Code{
		"EMAIL_EXISTS":         CodeEmailExists,
		" EMAIL_NOT_FOUND ":    CodeEmailNotFound,
		"INVALID_PASSWORD":     CodeInvalidPassword,
		"INVALID_PASSWORD : x": CodeInvalidPassword,
		"TOO_MANY_ATTEMPTS":    CodeUnknown,
		"":                     CodeUnknown,
	}
	for in, want := range cases {
		if got := ParseCode(in); got != want {
			t.Fatalf("ParseCode(%q)=%v want %v", in, got, want)
		}
	}
}
