package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"nhbenergy/config"
	"nhbenergy/core"
	"nhbenergy/core/epoch"
	"nhbenergy/gateway/middleware"
	"nhbenergy/observability/logging"
	telemetry "nhbenergy/observability/otel"
	daemoncfg "nhbenergy/services/energyd/config"
	"nhbenergy/services/energyd/server"
	"nhbenergy/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "energyd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", "services/energyd/config.yaml", "path to the energyd YAML configuration")
	paramsPath := flag.String("params", "", "path to the ledger TOML parameters (overrides the config file)")
	envFile := flag.String("env-file", ".env", "optional dotenv file loaded before reading the environment")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", *envFile, err)
	}
	env := strings.TrimSpace(os.Getenv("NHB_ENV"))

	cfg, err := daemoncfg.Load(*cfgPath)
	if err != nil {
		return err
	}
	if *paramsPath != "" {
		cfg.Params = *paramsPath
	}

	logger := logging.Setup(logging.Options{
		Service:    "energyd",
		Env:        env,
		Format:     cfg.Logging.Format,
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "energyd",
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	params, err := config.Load(cfg.Params)
	if err != nil {
		return fmt.Errorf("load params: %w", err)
	}
	db, err := storage.Open(params.Storage.Backend, params.Storage.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	clock, err := params.NewClock(clockwork.NewRealClock())
	if err != nil {
		return err
	}
	pauses := params.PauseSet()
	processorCfg, err := params.ProcessorConfig(pauses)
	if err != nil {
		return err
	}
	events := server.NewEventLog(logger, 0)
	processor, err := core.NewProcessor(db, clock, processorCfg, core.WithEmitter(events), core.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("build processor: %w", err)
	}

	auth, err := middleware.NewAuthenticator(middleware.AuthConfig{
		HMACSecret: cfg.Auth.HMACSecret,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		ScopeClaim: cfg.Auth.ScopeClaim,
		ClockSkew:  cfg.Auth.ClockSkew.Duration,
	}, logger)
	if err != nil {
		return err
	}
	limits := make(map[string]middleware.RateLimit, len(cfg.RateLimits))
	for group, limit := range cfg.RateLimits {
		limits[group] = middleware.RateLimit{RatePerSecond: limit.RatePerSecond, Burst: limit.Burst}
	}

	deps := server.Deps{
		Processor: processor,
		Auth:      auth,
		Limiter:   middleware.NewRateLimiter(limits, logger),
		Pauses:    pauses,
		Events:    events,
		Logger:    logger,
	}
	if manual, ok := clock.(*epoch.ManualClock); ok {
		deps.Advancer = manual
	}
	srv, err := server.New(server.Config{
		ListenAddress:   cfg.ListenAddress,
		ReadTimeout:     cfg.ReadTimeout.Duration,
		ShutdownTimeout: cfg.ShutdownTimeout.Duration,
	}, deps)
	if err != nil {
		return err
	}

	logger.Info("energyd starting",
		slog.String("params", cfg.Params),
		slog.String("storage", params.Storage.Backend),
		slog.String("clock", params.Clock.Mode),
		slog.Uint64("epoch", processor.CurrentEpoch()))
	return srv.Run(ctx)
}
