// Package main is the entry point for keeper-lb.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zkutil/keeper-lb/internal/balancer"
	"github.com/zkutil/keeper-lb/internal/config"
	"github.com/zkutil/keeper-lb/internal/keeper"
	"github.com/zkutil/keeper-lb/internal/logger"
	"github.com/zkutil/keeper-lb/internal/metrics"
)

// Version information set via ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// endpointView is the per-endpoint payload of the /status endpoint.
type endpointView struct {
	ID      int    `json:"id"`
	Address string `json:"address"`
	Secure  bool   `json:"secure"`
	Status  string `json:"status"`
}

func main() {
	// Parse configuration
	cfg, err := config.ParseFlags()
	if err != nil {
		logger.Error("failed to parse configuration", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	logger.Info("keeper-lb starting",
		"version", version,
		"commit", commit,
		"date", date,
		"name", cfg.Name,
		"hosts", cfg.Hosts,
		"policy", cfg.Policy,
		"metrics_port", cfg.MetricsPort,
	)

	// Build the balancer table eagerly
	table, err := keeper.NewTable(keeperConfig(cfg))
	if err != nil {
		logger.Error("failed to build balancer table", "error", err)
		os.Exit(1)
	}

	// Create metrics server
	metricsServer := metrics.NewServer(cfg.MetricsPort, func() any {
		status := make(map[string][]endpointView)
		for _, name := range table.Names() {
			lb, ok := table.Get(name)
			if !ok {
				continue
			}
			var views []endpointView
			for _, e := range lb.Endpoints() {
				views = append(views, endpointView{
					ID:      e.ID,
					Address: e.Address,
					Secure:  e.Secure,
					Status:  e.Status.String(),
				})
			}
			status[name] = views
		}
		return status
	})

	// Set up config watcher if config file is specified
	var cfgWatcher *config.ConfigWatcher
	if cfg.ConfigFile != "" {
		var watcherErr error
		cfgWatcher, watcherErr = config.NewConfigWatcher(cfg.ConfigFile, cfg)
		if watcherErr != nil {
			logger.Error("failed to create config watcher", "error", watcherErr)
		} else {
			// Register callback for configuration changes
			cfgWatcher.RegisterCallback(func(newCfg *config.Config) {
				// Reconfigure logger
				logger.Reconfigure(newCfg.LogLevel, newCfg.LogFormat)

				// Rebuild the balancer with the new hosts, policy and fallback
				// lifetime; name and timeouts keep their startup values.
				kc := keeperConfig(newCfg)
				kc.Name = cfg.Name
				kc.SessionTimeout = cfg.SessionTimeout
				kc.ConnectTimeout = cfg.ConnectTimeout
				if err := table.Replace(kc); err != nil {
					logger.Error("balancer_rebuild_failed", "error", err)
				}
			})

			if startErr := cfgWatcher.Start(); startErr != nil {
				logger.Error("failed to start config watcher", "error", startErr)
			}
		}
	}

	// Start metrics server
	go func() {
		logger.Info("starting metrics server", "port", cfg.MetricsPort)
		if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	metricsServer.SetReady(true)

	// Establish the first session through the balancer
	go connect(table, cfg.Name)

	// Set up signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	// Wait for signals
	for {
		sig := <-sigCh

		// Handle SIGHUP for manual config reload
		if sig == syscall.SIGHUP {
			logger.Info("received SIGHUP, reloading configuration")
			if cfgWatcher != nil {
				if reloadErr := cfgWatcher.Reload(); reloadErr != nil {
					logger.Error("config reload failed", "error", reloadErr)
				}
			} else {
				logger.Warn("config reload requested but no config file specified")
			}
			continue
		}

		// SIGINT or SIGTERM - shutdown
		logger.Info("received shutdown signal", "signal", sig)
		break
	}

	// Graceful shutdown
	if cfgWatcher != nil {
		cfgWatcher.Stop()
	}

	metricsServer.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Error("metrics server shutdown error", "error", err)
	}

	logger.Info("keeper-lb stopped")
}

// connect drives one session establishment through the balancer and leaves
// the session open; a session on a sub-optimal endpoint is closed by its
// deadline timer.
func connect(table *keeper.Table, name string) {
	lb, ok := table.Get(name)
	if !ok {
		logger.Error("balancer_not_found", "name", name)
		return
	}

	session, err := lb.CreateClient(context.Background())
	if err != nil {
		logger.Error("session_establish_failed", "name", name, "error", err)
		return
	}
	logger.Info("session_established", "name", name)

	for _, e := range lb.EndpointsWorthChecking(balancer.NoCurrentEndpoint) {
		logger.Debug("endpoint_worth_checking", "address", e.Address, "id", e.ID)
	}

	// Session stays open; the deadline timer set for sub-optimal endpoints
	// closes it on its own.
	_ = session
}

// keeperConfig maps the file/flag configuration onto the keeper config.
func keeperConfig(cfg *config.Config) keeper.Config {
	return keeper.Config{
		Name:   cfg.Name,
		Hosts:  cfg.Hosts,
		Policy: balancer.Policy(cfg.Policy),
		FallbackSessionLifetime: keeper.FallbackSessionLifetime{
			Min: cfg.FallbackSessionMin,
			Max: cfg.FallbackSessionMax,
		},
		SessionTimeout: cfg.SessionTimeout,
		ConnectTimeout: cfg.ConnectTimeout,
	}
}
