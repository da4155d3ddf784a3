// Package main provides the httpu command: a small tool for sending and
// receiving HTTP-over-UDP (SSDP) datagrams with the transport package.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/joshuafuller/httpu/internal/config"
	"github.com/joshuafuller/httpu/internal/logging"
	"github.com/joshuafuller/httpu/internal/metrics"
	"github.com/joshuafuller/httpu/transport"
)

var (
	// Version is set at build time
	Version = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries state shared by the subcommands once flags and config are
// loaded.
type app struct {
	configPath  string
	metricsAddr string
	logLevel    string
	logFormat   string

	cfg    *config.Config
	logger *slog.Logger
	reg    prometheus.Registerer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "httpu",
		Short: "httpu - HTTP over UDP toolbox",
		Long: `httpu sends and receives HTTP messages carried in UDP datagrams,
the transport used by SSDP/UPnP discovery.

Sockets are bound with address reuse so httpu can run next to other
SSDP listeners on port 1900.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Path to configuration file")
	flags.StringVar(&a.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. 127.0.0.1:9100)")
	flags.StringVar(&a.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "text", "Log format: text, json")

	rootCmd.AddCommand(resolveCmd(a))
	rootCmd.AddCommand(sendCmd(a))
	rootCmd.AddCommand(listenCmd(a))

	return rootCmd
}

// load reads the config file, if any, and lets explicitly set flags win over
// it.
func (a *app) load(cmd *cobra.Command) error {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.Load(a.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = a.metricsAddr
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = a.logFormat
	}
	if !logging.IsValidLevel(cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if !logging.IsValidFormat(cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	a.cfg = cfg
	a.logger = logging.NewLoggerWithWriter(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	if cfg.MetricsAddr != "" {
		a.reg = prometheus.DefaultRegisterer
	}
	return nil
}

// connectorOptions returns the options every connector built by the CLI
// shares.
func (a *app) connectorOptions() []transport.Option {
	opts := []transport.Option{transport.WithLogger(a.logger)}
	if a.reg != nil {
		opts = append(opts, transport.WithMetricsRegisterer(a.reg))
	}
	if ttl := a.cfg.Transport.MulticastTTL; ttl != 0 {
		opts = append(opts, transport.WithMulticastTTL(ttl))
	}
	return opts
}

// metrics returns the shared collectors, or nil when metrics are off.
func (a *app) metrics() *metrics.Metrics {
	return metrics.For(a.reg)
}

// serveMetrics starts the metrics endpoint when configured. The returned
// function stops it.
func (a *app) serveMetrics() func() {
	if a.cfg.MetricsAddr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("metrics server listening", logging.KeyLocalAddr, a.cfg.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", logging.KeyError, err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
