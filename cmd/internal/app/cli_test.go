package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"recipebook/cmd/internal/realtime"
)

func TestParseCommand(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		args    []string
		want    command
		wantErr bool
	}{
		{name: "default serve", args: nil, want: command{name: cmdServe}},
		{name: "flags only serve", args: []string{"-v"}, want: command{name: cmdServe}},
		{name: "login", args: []string{"login", "-email", "cook@example.com"}, want: command{name: cmdLogin, email: "cook@example.com"}},
		{name: "signup", args: []string{"signup", "--email=cook@example.com"}, want: command{name: cmdSignup, email: "cook@example.com"}},
		{name: "status", args: []string{"status"}, want: command{name: cmdStatus}},
		{name: "emulator", args: []string{"emulator"}, want: command{name: cmdEmulator}},
		{name: "login without email", args: []string{"login"}, wantErr: true},
		{name: "unknown", args: []string{"bake"}, wantErr: true},
		{name: "stray arg", args: []string{"status", "now"}, wantErr: true},
		{name: "unknown flag", args: []string{"logout", "-force"}, wantErr: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseCommand(tc.args, io.Discard)
			if tc.wantErr {
				if !errors.Is(err, ErrUsage) {
					t.Fatalf("err=%v want ErrUsage", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseCommand: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got=%+v want=%+v", got, tc.want)
			}
		})
	}
}

func TestReadPassword_NonTerminal(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"secret1\n":   "secret1",
		"secret1\r\n": "secret1",
		"secret1":     "secret1",
		"":            "",
	}
	for in, want := range cases {
		got, err := readPassword(strings.NewReader(in), io.Discard)
		if err != nil {
			t.Fatalf("readPassword(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("readPassword(%q)=%q want=%q", in, got, want)
		}
	}
}

func TestRunCommand_SignupStatusLogout(t *testing.T) {
	t.Parallel()

	a, _ := newTestApp(t)
	ctx := context.Background()

	var out bytes.Buffer
	if err := a.runCommand(ctx, command{name: cmdSignup, email: "cook@example.com"}, strings.NewReader("secret1\n"), &out); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if view := decodeAs[realtime.SessionView](t, out.Bytes()); !view.Authenticated || view.Email != "cook@example.com" {
		t.Fatalf("signup view=%+v", view)
	}

	out.Reset()
	if err := a.runCommand(ctx, command{name: cmdStatus}, nil, &out); err != nil {
		t.Fatalf("status: %v", err)
	}
	if view := decodeAs[realtime.SessionView](t, out.Bytes()); !view.Authenticated {
		t.Fatalf("status view=%+v", view)
	}

	out.Reset()
	if err := a.runCommand(ctx, command{name: cmdFetch}, nil, &out); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !strings.Contains(out.String(), `"recipes": []`) {
		t.Fatalf("fetch output=%s", out.String())
	}

	out.Reset()
	if err := a.runCommand(ctx, command{name: cmdLogout}, nil, &out); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := a.Sessions().Current(); ok {
		t.Fatalf("session survived logout")
	}
	if err := a.runCommand(ctx, command{name: cmdFetch}, nil, io.Discard); err == nil {
		t.Fatalf("fetch after logout should fail")
	}
}

func TestRunCommand_LoginFailureMessage(t *testing.T) {
	t.Parallel()

	a, _ := newTestApp(t)
	err := a.runCommand(context.Background(), command{name: cmdLogin, email: "nobody@example.com"}, strings.NewReader("secret1\n"), io.Discard)
	if err == nil || err.Error() != "This email does not exist." {
		t.Fatalf("err=%v", err)
	}
}
