// Package main implements the entry point for the SignalBridge service.
// SignalBridge connects to a vehicle signal broker over gRPC and republishes
// a configured set of signal paths onto NATS subjects.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"google.golang.org/grpc/metadata"

	"github.com/c360/signalbridge/bridge"
	"github.com/c360/signalbridge/broker"
	"github.com/c360/signalbridge/config"
	"github.com/c360/signalbridge/health"
	"github.com/c360/signalbridge/metric"
	"github.com/c360/signalbridge/natsclient"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "signalbridge"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := setupLogger(effectiveLogging(cliCfg, cfg))
	slog.SetDefault(logger)

	slog.Info("Starting SignalBridge",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath,
		"broker", cfg.Broker.Address,
		"routes", len(cfg.Bridge.Routes))

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsRegistry := metric.NewMetricsRegistry()
	if cfg.Metrics.Enabled {
		startMetricsServer(cfg, metricsRegistry)
	}

	natsClient, err := connectNATS(ctx, cfg, metricsRegistry, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
		defer cancel()
		if err := natsClient.Close(closeCtx); err != nil {
			slog.Warn("NATS close failed", "error", err)
		}
	}()

	if cfg.NATS.JetStream.Enabled {
		if err := ensureStream(ctx, cfg, natsClient); err != nil {
			return err
		}
	}

	brokerClient, err := connectBroker(cfg, metricsRegistry, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := brokerClient.Close(); err != nil {
			slog.Warn("broker close failed", "error", err)
		}
	}()

	b := bridge.New(bridge.Deps{
		Name:            "bridge",
		Config:          cfg.Bridge,
		Broker:          brokerClient,
		NATS:            natsClient,
		MetricsRegistry: metricsRegistry,
		Logger:          logger.With("component", "bridge"),
		CallTimeout:     cfg.Broker.CallTimeout,
		UseJetStream:    cfg.NATS.JetStream.Enabled,
	})
	if err := b.Initialize(); err != nil {
		return fmt.Errorf("initialize bridge: %w", err)
	}
	if err := b.Start(ctx); err != nil {
		return fmt.Errorf("start bridge: %w", err)
	}

	healthServer := startHealthMonitoring(ctx, cfg, b, natsClient)

	slog.Info("SignalBridge started", "routes", len(b.Routes()))

	<-ctx.Done()
	slog.Info("Received shutdown signal")

	if healthServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("health server shutdown failed", "error", err)
		}
		cancel()
	}

	if err := b.Stop(cliCfg.ShutdownTimeout); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("SignalBridge shutdown complete")
	return nil
}

// connectNATS creates the NATS client and waits for an established
// connection before the bridge starts publishing.
func connectNATS(
	ctx context.Context,
	cfg *config.Config,
	registry *metric.MetricsRegistry,
	logger *slog.Logger,
) (*natsclient.Client, error) {
	opts := []natsclient.ClientOption{
		natsclient.WithLogger(logger.With("component", "nats")),
		natsclient.WithName(cfg.Service.Name),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithReconnectWait(cfg.NATS.ReconnectWait),
		natsclient.WithMetrics(registry),
	}
	if cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	}

	natsClient, err := natsclient.NewClient(strings.Join(cfg.NATS.URLs, ","), opts...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	slog.Info("Connecting to NATS", "urls", cfg.NATS.URLs)
	if err := natsClient.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := natsClient.WaitForConnection(connCtx); err != nil {
		return nil, fmt.Errorf("NATS connection timeout: %w", err)
	}

	return natsClient, nil
}

// ensureStream creates or updates the JetStream stream that holds
// republished signal updates.
func ensureStream(ctx context.Context, cfg *config.Config, natsClient *natsclient.Client) error {
	subjects := []string{">"}
	if cfg.Bridge.SubjectPrefix != "" {
		subjects = []string{cfg.Bridge.SubjectPrefix + ".>"}
	}

	_, err := natsClient.EnsureStream(ctx, jetstream.StreamConfig{
		Name:     cfg.NATS.JetStream.Stream,
		Subjects: subjects,
	})
	if err != nil {
		return fmt.Errorf("ensure stream %s: %w", cfg.NATS.JetStream.Stream, err)
	}

	slog.Info("JetStream stream ready",
		"stream", cfg.NATS.JetStream.Stream, "subjects", subjects)
	return nil
}

// connectBroker creates the gRPC broker client.
func connectBroker(
	cfg *config.Config,
	registry *metric.MetricsRegistry,
	logger *slog.Logger,
) (*broker.Client, error) {
	opts := []broker.ClientOption{
		broker.WithClientLogger(logger.With("component", "broker")),
		broker.WithClientMetrics(registry),
	}
	if len(cfg.Broker.Metadata) > 0 {
		opts = append(opts, broker.WithClientMetadata(metadata.New(cfg.Broker.Metadata)))
	}

	client, err := broker.NewClient(cfg.Broker.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("create broker client: %w", err)
	}
	return client, nil
}

// startMetricsServer serves prometheus metrics in the background.
func startMetricsServer(cfg *config.Config, registry *metric.MetricsRegistry) {
	server := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
	go func() {
		slog.Info("Metrics server listening", "address", server.Address())
		if err := server.Start(); err != nil {
			slog.Error("metrics server failed", "error", err)
		}
	}()
}

// startHealthMonitoring polls component health and serves the aggregate on
// the health port. Returns nil when the health endpoint is disabled.
func startHealthMonitoring(
	ctx context.Context,
	cfg *config.Config,
	b *bridge.Bridge,
	natsClient *natsclient.Client,
) *http.Server {
	monitor := health.NewMonitor()

	monitor.Register("bridge", func() health.Status {
		return health.FromComponentHealth("bridge", b.Health())
	})
	monitor.Register("nats", func() health.Status {
		if natsClient.IsHealthy() {
			return health.NewHealthy("nats", "connected")
		}
		return health.NewUnhealthy("nats", natsClient.Status().String())
	})

	go monitor.Run(ctx, cfg.Health.Interval)

	if cfg.Health.Port <= 0 {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/healthz", health.Handler(monitor, cfg.Service.Name))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Health.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("Health server listening", "port", cfg.Health.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("health server failed", "error", err)
		}
	}()
	return server
}

// effectiveLogging resolves log level and format: CLI flags win over the
// config file, which wins over defaults.
func effectiveLogging(cliCfg *CLIConfig, cfg *config.Config) (string, string) {
	level := cfg.Logging.Level
	if cliCfg.LogLevel != "" {
		level = cliCfg.LogLevel
	}
	format := cfg.Logging.Format
	if cliCfg.LogFormat != "" {
		format = cliCfg.LogFormat
	}
	return level, format
}
