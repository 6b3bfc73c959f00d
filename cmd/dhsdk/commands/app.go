package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/digitalhub/dhsdk/pkg/client"
	"github.com/digitalhub/dhsdk/pkg/config"
	"github.com/digitalhub/dhsdk/pkg/entities"
	"github.com/digitalhub/dhsdk/pkg/telemetry"
)

// app holds what a command needs to talk to the backend.
type app struct {
	cfg   *config.Config
	tel   *telemetry.Telemetry
	store *entities.Store
}

func newTelemetry(version string) (*telemetry.Telemetry, error) {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = version
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if jsonOutput {
		cfg.Logging.Format = "json"
	}
	return telemetry.NewTelemetry(cfg)
}

// newApp resolves the configuration and builds the entity store.
func newApp() (*app, error) {
	tel, err := newTelemetry("")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	cfg, err := config.Resolve(&config.Config{Endpoint: endpoint}, configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if !localMode && cfg.Endpoint == "" {
		return nil, fmt.Errorf("no backend endpoint: set --endpoint, %s or use --local", config.EnvEndpoint)
	}

	c, err := client.New(cfg, localMode, client.WithTelemetry(tel))
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &app{
		cfg:   cfg,
		tel:   tel,
		store: entities.NewStore(c, entities.WithLogger(tel.Logger)),
	}, nil
}

func (a *app) close(ctx context.Context) {
	_ = a.tel.Shutdown(ctx)
}
