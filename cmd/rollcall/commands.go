package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/nomis52/rollcall/app"
	"github.com/nomis52/rollcall/config"
	"github.com/nomis52/rollcall/feedback"
	"github.com/nomis52/rollcall/metrics"
	"github.com/nomis52/rollcall/render"
	"github.com/nomis52/rollcall/server"
	"github.com/nomis52/rollcall/shell"
)

type command func(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error

var commands = map[string]command{
	"list":       oneShot(listActivities),
	"signup":     oneShot(signup),
	"unregister": oneShot(unregister),
	"shell":      runShell,
	"serve":      serve,
}

// oneShot adapts an action on a freshly built app to a command.
func oneShot(f func(ctx context.Context, a *app.App, w io.Writer, args []string) error) command {
	return func(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error {
		a, err := newOneShotApp(cfg, logger)
		if err != nil {
			return err
		}
		return f(ctx, a, os.Stdout, args)
	}
}

func listActivities(ctx context.Context, a *app.App, w io.Writer, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("list takes no arguments")
	}
	err := a.Controller.Refresh(ctx)
	if werr := render.WriteText(w, a.Page.State()); werr != nil {
		return werr
	}
	return err
}

func signup(ctx context.Context, a *app.App, w io.Writer, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: signup <activity> <email>")
	}
	activity, email := args[0], args[1]

	a.Page.SetForm(activity, email)
	err := a.Controller.Signup(ctx, activity, email)
	printMessage(w, a.Notifier)
	return err
}

// unregister removes each email from the activity concurrently. Every
// request runs to completion; the error reports how many failed.
func unregister(ctx context.Context, a *app.App, w io.Writer, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: unregister <activity> <email>...")
	}
	activity, emails := args[0], args[1:]

	if err := a.Controller.Refresh(ctx); err != nil {
		return err
	}

	results := make([]error, len(emails))
	var g errgroup.Group
	for i, email := range emails {
		g.Go(func() error {
			results[i] = a.Controller.Unregister(ctx, activity, email)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for i, email := range emails {
		if results[i] != nil {
			failed++
			fmt.Fprintf(w, "failed %s: %v\n", email, results[i])
			continue
		}
		fmt.Fprintf(w, "unregistered %s\n", email)
	}
	fmt.Fprintf(w, "%d of %d unregistered from %s\n", len(emails)-failed, len(emails), activity)

	if failed > 0 {
		return fmt.Errorf("%d unregister requests failed", failed)
	}
	return nil
}

func runShell(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("shell takes no arguments")
	}
	a, err := newOneShotApp(cfg, logger)
	if err != nil {
		return err
	}
	a.StartSchedule(ctx)
	return shell.New(a, os.Stdin, os.Stdout).Run(ctx)
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("serve takes no arguments")
	}

	registry, err := metrics.NewScrapeRegistry()
	if err != nil {
		return fmt.Errorf("failed to create metrics registry: %w", err)
	}

	a, err := app.New(cfg, logger, app.WithRegistry(registry))
	if err != nil {
		return err
	}

	opts := []server.Option{
		server.WithListenAddr(cfg.Server.ListenAddr),
		server.WithMetricsHandler(registry.Handler()),
	}
	if cfg.Server.TLSCert != "" {
		opts = append(opts, server.WithTLS(cfg.Server.TLSCert, cfg.Server.TLSKey))
	}

	srv, err := server.New(a, opts...)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	err = srv.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printMessage(w io.Writer, n *feedback.Notifier) {
	if msg, ok := n.Current(); ok {
		fmt.Fprintf(w, "[%s] %s\n", msg.Kind, msg.Text)
	}
}
