package app

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRuntimeBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "explicit localhost", in: "127.0.0.1:4200", want: "http://127.0.0.1:4200"},
		{name: "bind all v4", in: "0.0.0.0:4200", want: "http://127.0.0.1:4200"},
		{name: "bind all v6", in: "[::]:9099", want: "http://127.0.0.1:9099"},
		{name: "empty host", in: ":4200", want: "http://127.0.0.1:4200"},
		{name: "ipv6 host", in: "[2001:db8::1]:9099", want: "http://[2001:db8::1]:9099"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := runtimeBaseURL(tc.in); got != tc.want {
				t.Fatalf("runtimeBaseURL(%q)=%q want=%q", tc.in, got, tc.want)
			}
		})
	}
}

func TestWSBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "http://127.0.0.1:4200", want: "ws://127.0.0.1:4200"},
		{in: "https://recipes.example.com", want: "wss://recipes.example.com"},
		{in: "127.0.0.1:4200", want: "ws://127.0.0.1:4200"},
	}

	for _, tc := range cases {
		if got := wsBaseURL(tc.in); got != tc.want {
			t.Fatalf("wsBaseURL(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func TestSameHost(t *testing.T) {
	t.Parallel()

	cases := []struct {
		a, b string
		want bool
	}{
		{a: "http://127.0.0.1:9099", b: "http://127.0.0.1:9099/db", want: true},
		{a: "https://ID.example.com", b: "https://id.example.com", want: true},
		{a: "https://id.example.com", b: "https://data.example.com", want: false},
		{a: "http://127.0.0.1:9099", b: "http://127.0.0.1:9100", want: false},
		{a: "", b: "", want: false},
	}

	for _, tc := range cases {
		if got := sameHost(tc.a, tc.b); got != tc.want {
			t.Fatalf("sameHost(%q,%q)=%v want=%v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestNew_FileBackendNeedsDir(t *testing.T) {
	t.Parallel()

	cfg := Config{
		IdentityURL:    "http://127.0.0.1:9099",
		DataURL:        "http://127.0.0.1:9099",
		RequestTimeout: time.Second,
		SessionBackend: BackendFile,
	}
	if _, err := New(context.Background(), cfg, quietLogger()); err == nil {
		t.Fatalf("expected error for file backend without a directory")
	}

	cfg.SessionDir = t.TempDir()
	a, err := New(context.Background(), cfg, quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if _, ok := a.Route(); ok {
		t.Fatalf("no navigation expected before any auth event")
	}
	if got := a.ws.Topics(); len(got) != 3 {
		t.Fatalf("topics=%v", got)
	}
}

func TestNew_BadIdentityURL(t *testing.T) {
	t.Parallel()

	cfg := Config{IdentityURL: "://bad", DataURL: "http://127.0.0.1:9099", SessionBackend: BackendMemory}
	if _, err := New(context.Background(), cfg, quietLogger()); !errors.Is(err, ErrConfig) {
		t.Fatalf("err=%v want ErrConfig", err)
	}
}
