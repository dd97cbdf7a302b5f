// Package di provides dependency injection wiring and initialization.
package di

import (
	"fmt"

	"github.com/aristath/allocator/internal/config"
	"github.com/rs/zerolog"
)

// Wire initializes all dependencies and returns a fully configured container
// Order of operations:
// 1. Load the statistics model
// 2. Initialize services
// 3. Load the default portfolio
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{
		Config: cfg,
		Log:    log,
	}

	// Step 1: Statistics model
	if err := InitializeStatistics(container, cfg, log); err != nil {
		return nil, fmt.Errorf("failed to initialize statistics: %w", err)
	}

	// Step 2: Services
	if err := InitializeServices(container, cfg, log); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Step 3: Default portfolio
	if err := InitializeDefaultPortfolio(container, cfg, log); err != nil {
		return nil, fmt.Errorf("failed to load default portfolio: %w", err)
	}

	log.Info().Msg("Dependency injection wiring completed successfully")

	return container, nil
}
