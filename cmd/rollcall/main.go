package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nomis52/rollcall/app"
	"github.com/nomis52/rollcall/buildinfo"
	"github.com/nomis52/rollcall/config"
	"github.com/nomis52/rollcall/logging"
	"github.com/nomis52/rollcall/metrics"
)

type Args struct {
	ConfigPath  string
	ShowVersion bool
	Validate    bool
	Command     string
	CommandArgs []string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	args := parseArgs()

	if args.ShowVersion {
		showVersion()
		return nil
	}

	cfg, err := config.LoadConfig(args.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if args.Validate {
		fmt.Printf("Configuration validation successful: %s\n", configName(args.ConfigPath))
		return nil
	}

	cmd, ok := commands[args.Command]
	if !ok {
		flag.Usage()
		return fmt.Errorf("unknown command %q", args.Command)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	props := buildinfo.Get()
	logger.Debug("rollcall started",
		"version", props.Version,
		"git_commit", props.GitCommit,
		"config_path", args.ConfigPath,
		"command", args.Command,
		"backend", cfg.Backend.URL,
	)

	ctx, cancel := signalContext(logger.Logger)
	defer cancel()

	return cmd(ctx, cfg, logger.Logger, args.CommandArgs)
}

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// newOneShotApp builds the app for commands that exit when done. Metrics
// are pushed when a VictoriaMetrics URL is configured.
func newOneShotApp(cfg config.Config, logger *slog.Logger) (*app.App, error) {
	if cfg.Monitoring.VictoriaMetricsURL == "" {
		return app.New(cfg, logger)
	}

	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("failed to get hostname: %w", err)
	}

	registry := metrics.NewPushRegistry(metrics.PushConfig{
		URL:      cfg.Monitoring.VictoriaMetricsURL,
		Prefix:   cfg.Monitoring.MetricsPrefix,
		Job:      cfg.Monitoring.JobName,
		Instance: hostname,
		Logger:   logger,
	})
	return app.New(cfg, logger, app.WithRegistry(registry))
}

func configName(path string) string {
	if path == "" {
		return "(defaults)"
	}
	return path
}

func showVersion() {
	props := buildinfo.Get()
	fmt.Printf("rollcall %s\n", props.Version)
	fmt.Printf("Built: %s\n", props.BuildTime)
	fmt.Printf("Commit: %s\n", props.GitCommit)
}

func parseArgs() Args {
	configPath := flag.String("config", "", "Path to config file")
	configPathShort := flag.String("c", "", "Path to config file (shorthand)")
	showVersion := flag.Bool("version", false, "Show version information")
	versionShort := flag.Bool("v", false, "Show version information (shorthand)")
	validate := flag.Bool("validate", false, "Validate configuration and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <command> [args]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nActivity signup client\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  list                           show every activity (default)\n")
		fmt.Fprintf(os.Stderr, "  signup <activity> <email>      sign up for an activity\n")
		fmt.Fprintf(os.Stderr, "  unregister <activity> <email>... unregister one or more participants\n")
		fmt.Fprintf(os.Stderr, "  shell                          interactive session\n")
		fmt.Fprintf(os.Stderr, "  serve                          local web UI\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s list\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -c rollcall.yaml signup \"Chess Club\" new@mergington.edu\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --config rollcall.yaml serve\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --config rollcall.yaml --validate\n", os.Args[0])
	}

	flag.Parse()

	path := *configPath
	if path == "" && *configPathShort != "" {
		path = *configPathShort
	}

	command := "list"
	var rest []string
	if flag.NArg() > 0 {
		command = flag.Arg(0)
		rest = flag.Args()[1:]
	}

	return Args{
		ConfigPath:  path,
		ShowVersion: *showVersion || *versionShort,
		Validate:    *validate,
		Command:     command,
		CommandArgs: rest,
	}
}
