package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"recipebook/cmd/internal/auth/session"
	"recipebook/cmd/internal/emulator"
	"recipebook/cmd/internal/realtime"

	"golang.org/x/term"
)

const (
	cmdServe    = "serve"
	cmdSignup   = "signup"
	cmdLogin    = "login"
	cmdLogout   = "logout"
	cmdStatus   = "status"
	cmdFetch    = "fetch"
	cmdEmulator = "emulator"
)

// ErrUsage is returned for unknown subcommands and bad flags.
var ErrUsage = errors.New("app: usage")

type command struct {
	name  string
	email string
}

func parseCommand(args []string, stderr io.Writer) (command, error) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return command{name: cmdServe}, nil
	}

	cmd := command{name: args[0]}
	fs := flag.NewFlagSet(cmd.name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	switch cmd.name {
	case cmdSignup, cmdLogin:
		fs.StringVar(&cmd.email, "email", "", "account email")
	case cmdServe, cmdLogout, cmdStatus, cmdFetch, cmdEmulator:
	default:
		return command{}, fmt.Errorf("%w: unknown command %q", ErrUsage, cmd.name)
	}

	if err := fs.Parse(args[1:]); err != nil {
		return command{}, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() > 0 {
		return command{}, fmt.Errorf("%w: unexpected argument %q", ErrUsage, fs.Arg(0))
	}
	if (cmd.name == cmdSignup || cmd.name == cmdLogin) && strings.TrimSpace(cmd.email) == "" {
		return command{}, fmt.Errorf("%w: %s needs -email", ErrUsage, cmd.name)
	}
	return cmd, nil
}

func (a *App) runCommand(ctx context.Context, cmd command, stdin io.Reader, stdout io.Writer) error {
	switch cmd.name {
	case cmdSignup, cmdLogin:
		password, err := readPassword(stdin, stdout)
		if err != nil {
			return err
		}
		var s session.Session
		if cmd.name == cmdSignup {
			s, err = a.sessions.Signup(ctx, cmd.email, password)
		} else {
			s, err = a.sessions.Login(ctx, cmd.email, password)
		}
		if err != nil {
			return err
		}
		return printJSON(stdout, realtime.NewSessionView(s, true))

	case cmdLogout:
		a.sessions.Restore(ctx)
		a.sessions.Logout(ctx)
		_, err := fmt.Fprintln(stdout, "logged out")
		return err

	case cmdStatus:
		a.sessions.Restore(ctx)
		return printJSON(stdout, realtime.NewSessionView(a.sessions.Current()))

	case cmdFetch:
		a.sessions.Restore(ctx)
		if _, ok := a.sessions.Token(); !ok {
			return fmt.Errorf("not signed in; run %q first", cmdLogin)
		}
		recipeItems, err := a.recipeGW.Sync(ctx, a.recipes)
		if err != nil {
			return err
		}
		shoppingItems, err := a.shoppingGW.Sync(ctx, a.shopping)
		if err != nil {
			return err
		}
		return printJSON(stdout, map[string]any{
			a.recipeGW.Collection():   recipeItems,
			a.shoppingGW.Collection(): shoppingItems,
		})
	}
	return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd.name)
}

// readPassword prompts without echo on a terminal and reads one line otherwise.
func readPassword(in io.Reader, out io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprint(out, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// runEmulator serves the local identity and data emulator.
func runEmulator(ctx context.Context, cfg Config, log Logger) error {
	ecfg := emulator.DefaultConfig()
	ecfg.APIKey = cfg.APIKey
	ecfg.TokenTTL = cfg.EmulatorTokenTTL
	ecfg.SecretKeyHex = cfg.EmulatorSecretHex

	if cfg.EmulatorRedis {
		client, err := session.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer func() { _ = client.Close() }()

		docs, err := emulator.NewRedisCollections(client, "")
		if err != nil {
			return err
		}
		ecfg.Collections = docs
	}

	srv, err := emulator.New(log, ecfg)
	if err != nil {
		return err
	}

	hs := &http.Server{
		Addr:              cfg.EmulatorAddr,
		Handler:           WithRequestLogging(log)(srv.Handler()),
		ReadHeaderTimeout: nonZeroDuration(cfg.ReadHeaderTimeout, 5*time.Second),
		MaxHeaderBytes:    nonZeroInt(cfg.MaxHeaderBytes, 1<<20),
	}
	log.Info("emulator.start", "addr", cfg.EmulatorAddr, "url", runtimeBaseURL(cfg.EmulatorAddr), "redis", cfg.EmulatorRedis)
	return serveHTTP(ctx, log, hs, cfg.ShutdownTimeout, nil)
}
