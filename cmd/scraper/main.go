package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aluiziolira/go-product-scraper/scraper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], &app{stdout: os.Stdout, stderr: os.Stderr})
	stop()
	os.Exit(code)
}

// app carries the process streams; transport is only set by tests.
type app struct {
	stdout    io.Writer
	stderr    io.Writer
	transport http.RoundTripper
}

// run executes the command line and returns the process exit code. Failures
// are reported as a single plain line on stdout.
func run(ctx context.Context, args []string, a *app) int {
	if args == nil {
		// cobra falls back to os.Args for a nil slice.
		args = []string{}
	}
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(a.stdout, failureMessage(err))
		return 1
	}
	return 0
}

func failureMessage(err error) string {
	if errors.Is(err, scraper.ErrNoListingContent) {
		return "Could not fetch body of main page"
	}
	var conn scraper.ErrConnection
	if errors.As(err, &conn) {
		return "Could not connect to " + conn.URL
	}
	return err.Error()
}

func newLogger(w io.Writer, verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if f, ok := w.(*os.File); ok && isTerminal(f) {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
