package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Run is the CLI entrypoint used by cmd/recipebook.
// It returns an error instead of calling os.Exit to keep defers effective.
func Run(args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return run(ctx, args, os.Stdin, os.Stdout)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	cmd, err := parseCommand(args, os.Stderr)
	if err != nil {
		return err
	}

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	log := NewLogger(cfg.LogLevel, cfg.LogFormat, nil)

	if cmd.name == cmdEmulator {
		return runEmulator(ctx, cfg, log)
	}

	a, err := New(ctx, cfg, log)
	if err != nil {
		return err
	}
	if cmd.name == cmdServe {
		return a.Run(ctx)
	}
	defer a.Close()

	return a.runCommand(ctx, cmd, stdin, stdout)
}

// serveHTTP runs srv until ctx is done and then shuts it down. beforeShutdown runs first
// so long-lived handlers can be released.
func serveHTTP(ctx context.Context, log Logger, srv *http.Server, timeout time.Duration, beforeShutdown func()) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(timeout, 10*time.Second))
	defer cancel()

	if beforeShutdown != nil {
		beforeShutdown()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server.shutdown.fail", "err", err)
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info("server.stopped")
	return nil
}
