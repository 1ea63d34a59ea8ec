package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/faultlinehq/faultline/internal/config"
	"github.com/faultlinehq/faultline/internal/diag"
	"github.com/faultlinehq/faultline/internal/engine"
	"github.com/faultlinehq/faultline/internal/events"
	"github.com/faultlinehq/faultline/internal/faultserver"
	"github.com/faultlinehq/faultline/internal/health"
	"github.com/faultlinehq/faultline/internal/logging"
	"github.com/faultlinehq/faultline/internal/report"
	"github.com/faultlinehq/faultline/internal/runner"
)

func main() {
	ctx := context.Background()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = run(ctx, os.Args[2:])
	case "serve":
		err = serve(ctx, os.Args[2:])
	case "check":
		err = diag.Run(ctx, os.Args[2:], diag.Dependencies{})
	case "init":
		err = initConfig(os.Args[2:])
	case "-h", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "command %s failed: %v\n", cmd, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	targetOverride := fs.String("target", "", "Override for the target URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *targetOverride != "" {
		cfg.Target.URL = *targetOverride
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Pretty)
	logger.Info().
		Str("target", cfg.Target.URL).
		Int("calls", cfg.Run.Calls).
		Int("max_retries", cfg.Run.MaxRetries).
		Msg("starting experiment")

	httpClient := engine.NewHTTPClient(cfg.Run.Workers)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checker := health.NewChecker(httpClient,
		health.WithWaitTimeout(cfg.Target.WaitTimeout),
		health.WithLogger(logger))
	if err := checker.WaitReady(runCtx, cfg.Target.URL); err != nil {
		return fmt.Errorf("target not ready: %w", err)
	}

	eng, err := engine.New(engineConfig(cfg), engine.Dependencies{
		HTTPClient: httpClient,
		Logger:     &logger,
		Recorder:   events.NewLogRecorder(logger),
	})
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}

	r, err := runner.New(runnerConfig(cfg), runner.Dependencies{
		Engine:   eng,
		Logger:   &logger,
		Recorder: events.NewLogRecorder(logger),
	})
	if err != nil {
		return fmt.Errorf("init runner: %w", err)
	}

	experiment, err := r.RunAll(runCtx, cfg.Run.Strategies)
	if err != nil {
		return err
	}

	report.NewPrinter(os.Stdout).Print(experiment)

	dir, err := report.NewWriter(cfg.Results.Dir).Write(experiment)
	if err != nil {
		return fmt.Errorf("export report: %w", err)
	}
	logger.Info().Str("dir", dir).Msg("report exported")
	return nil
}

func serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	addrOverride := fs.String("addr", "", "Override for the listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	addr := cfg.Server.Addr
	if *addrOverride != "" {
		addr = *addrOverride
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Pretty)

	server, err := faultserver.New(serverConfig(cfg), faultserver.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("init fault server: %w", err)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	grp, groupCtx := errgroup.WithContext(runCtx)
	grp.Go(func() error {
		return server.Run(groupCtx, addr)
	})

	if err := grp.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Msg("fault server stopped")
	return nil
}

func initConfig(args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	path := fs.String("config", "faultline.yaml", "Where to write the default configuration")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := config.WriteDefault(*path); err != nil {
		return err
	}
	fmt.Printf("wrote default configuration to %s\n", *path)
	return nil
}

// engineConfig maps the loaded configuration onto the call engine.
func engineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		Timeouts: engine.Timeouts{
			Aggressive: cfg.Timeouts.Aggressive,
			Patient:    cfg.Timeouts.Patient,
		},
	}
}

func runnerConfig(cfg *config.Config) runner.Config {
	return runner.Config{
		TargetURL:     cfg.Target.URL,
		Calls:         cfg.Run.Calls,
		MaxRetries:    cfg.Run.MaxRetries,
		Workers:       cfg.Run.Workers,
		RatePerSecond: cfg.Run.RatePerSecond,
	}
}

func serverConfig(cfg *config.Config) faultserver.Config {
	return faultserver.Config{
		IntermittentProbability: cfg.Server.IntermittentProbability,
		DelayProbability:        cfg.Server.DelayProbability,
		ErrorProbability:        cfg.Server.ErrorProbability,
		Delay:                   cfg.Server.Delay,
		NormalMean:              cfg.Server.NormalMean,
	}
}

func printUsage() {
	fmt.Println("Faultline resilience experiment CLI")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  faultline run [--config faultline.yaml] [--target URL]")
	fmt.Println("  faultline serve [--config faultline.yaml] [--addr host:port]")
	fmt.Println("  faultline check [--config path] [--target URL] [--timeout 3s]")
	fmt.Println("  faultline init [--config faultline.yaml]")
}
