// PrusaLink MQTT Bridge
//
// Polls a Prusa printer's PrusaLink REST API and republishes its state as
// retained MQTT messages, one topic per signal, only when a value changes.
//
// Configuration is read from configs/config.yaml unless
// PRUSALINK_BRIDGE_CONFIG points elsewhere (.yaml, .yml or .ini).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/prusalink-bridge/internal/api"
	"github.com/nerrad567/prusalink-bridge/internal/bridge"
	"github.com/nerrad567/prusalink-bridge/internal/infrastructure/config"
	"github.com/nerrad567/prusalink-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/prusalink-bridge/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// configEnv overrides defaultConfigPath.
const configEnv = "PRUSALINK_BRIDGE_CONFIG"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting prusalink bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Require(config.SectionTopics, bridge.TopicKeys()...); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging(), version)
	log.Info("configuration loaded", "path", configPath, "config", cfg.String())

	mqttClient := mqtt.New(cfg.MQTT())
	mqttClient.SetLogger(log.With("component", "mqtt"))
	defer func() {
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()

	apiCfg := cfg.API()
	var hub *api.Hub
	var observer bridge.PublishObserver
	if apiCfg.Enabled {
		hub = api.NewHub(apiCfg, log.With("component", "websocket"))
		observer = hub.Observe
	}

	b, err := bridge.Connect(ctx, mqttClient, cfg, bridge.Options{
		Logger:   log.With("component", "bridge"),
		Observer: observer,
	})
	if err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	log.Info("bridge connected", "printer", b.Printer())

	if apiCfg.Enabled {
		server, serverErr := api.New(api.Deps{
			Config:  apiCfg,
			Logger:  log.With("component", "api"),
			Bridge:  b,
			Broker:  mqttClient,
			Hub:     hub,
			Version: version,
		})
		if serverErr != nil {
			return fmt.Errorf("creating API server: %w", serverErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stopRun := context.WithCancel(gctx)
	defer stopRun()

	// The MQTT task lives exactly as long as the polling task.
	g.Go(func() error {
		return mqttClient.Run(runCtx)
	})
	g.Go(func() error {
		defer stopRun()
		return b.Run(runCtx)
	})

	<-runCtx.Done()
	log.Info("shutdown signal received")
	b.Stop()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bridge stopped: %w", err)
	}

	log.Info("prusalink bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses PRUSALINK_BRIDGE_CONFIG if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}
