package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"steadrent/cmd/internal/secret"
	"steadrent/config"
	"steadrent/core"
	"steadrent/core/genesis"
	"steadrent/observability/logging"
	telemetry "steadrent/observability/otel"
	"steadrent/rpc"
	"steadrent/rpc/middleware"
	"steadrent/storage"
)

const (
	genesisPathEnv = "STEAD_GENESIS"
	jwtSecretEnv   = "STEAD_RPC_JWT_SECRET"
	otelHeadersEnv = "STEAD_OTEL_HEADERS"
)

type envLookupFunc func(string) (string, bool)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis YAML file (overrides STEAD_GENESIS and config GenesisFile)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	level, err := parseLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup("steadd", cfg.Environment, logging.Options{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Level:      level,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *genesisFlag, logger); err != nil {
		logger.Error("steadd exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, genesisFlag string, logger *slog.Logger) error {
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "steadd",
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.MergeHeaders(cfg.Telemetry.Headers, telemetry.ParseHeaders(os.Getenv(otelHeadersEnv))),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	node, err := core.NewNode(db,
		core.WithDepositRate(cfg.StorageDepositPerByte),
		core.WithReclaimOnCancel(cfg.ReclaimOnCancel),
		core.WithEventLogCapacity(cfg.EventLogCapacity),
		core.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}

	if path := resolveGenesisPath(genesisFlag, cfg.GenesisFile, os.LookupEnv); path != "" {
		if err := applyGenesis(ctx, node, path, logger); err != nil {
			return err
		}
	}

	jwtSecret := resolveJWTSecret(cfg.RPC.JWTSecret, secret.NewSource(jwtSecretEnv, "rpc jwt secret"))
	server, err := rpc.NewServer(node, serverConfig(cfg, jwtSecret), logger)
	if err != nil {
		return fmt.Errorf("create rpc server: %w", err)
	}

	listener, err := net.Listen("tcp", cfg.RPCAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.RPCAddress, err)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("rpc shutdown: %w", err)
	}
	return <-serveErr
}

func applyGenesis(ctx context.Context, node *core.Node, path string, logger *slog.Logger) error {
	spec, err := genesis.Load(path)
	if err != nil {
		return fmt.Errorf("load genesis: %w", err)
	}
	err = node.ApplyGenesis(ctx, spec)
	switch {
	case errors.Is(err, core.ErrGenesisApplied):
		logger.Info("genesis already applied; skipping", slog.String("path", path))
		return nil
	case err != nil:
		return err
	}
	return nil
}

// resolveGenesisPath picks the genesis file from the flag, then the
// environment, then the config file. An empty result starts the node on its
// existing ledger.
func resolveGenesisPath(cliPath, cfgPath string, lookup envLookupFunc) string {
	if trimmed := strings.TrimSpace(cliPath); trimmed != "" {
		return trimmed
	}
	if lookup != nil {
		if value, ok := lookup(genesisPathEnv); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return strings.TrimSpace(cfgPath)
}

// resolveJWTSecret prefers the environment over the config file so secrets
// need not be written to disk.
func resolveJWTSecret(cfgSecret string, source *secret.Source) string {
	if source != nil {
		if value, ok := source.FromEnv(); ok {
			return value
		}
	}
	return strings.TrimSpace(cfgSecret)
}

func serverConfig(cfg *config.Config, jwtSecret string) rpc.ServerConfig {
	return rpc.ServerConfig{
		Auth: middleware.AuthConfig{
			Enabled:    jwtSecret != "",
			HMACSecret: jwtSecret,
			Issuer:     cfg.RPC.JWTIssuer,
			Audience:   cfg.RPC.JWTAudience,
			ClockSkew:  time.Minute,
		},
		RateLimit: middleware.RateLimit{
			RequestsPerMinute: cfg.RPC.RequestsPerMinute,
			Burst:             cfg.RPC.Burst,
		},
		MaxBodyBytes: cfg.RPC.MaxBodyBytes,
		ReadTimeout:  time.Duration(cfg.RPC.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.RPC.WriteTimeoutSecs) * time.Second,
		Tracing:      cfg.Telemetry.Traces,
		LogRequests:  true,
	}
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(trimmed)); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}
