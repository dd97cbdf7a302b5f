/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to the HTTP server and the CLI.
 */
package di

import (
	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/rs/zerolog"
)

/**
 * Container holds all dependencies for the application.
 *
 * Everything in it is read-only after Wire returns, so it can be shared by
 * concurrent requests without locking.
 */
type Container struct {
	Config *config.Config
	Log    zerolog.Logger

	// Statistics model
	ModelParams optimization.ModelParams
	Statistics  optimization.StatisticsProvider

	// Optimizer
	Objective        optimization.Objective
	OptimizerService *optimization.OptimizerService

	// Portfolio served when a request carries none
	DefaultPortfolio domain.Portfolio
}
