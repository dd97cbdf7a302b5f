// Package di provides dependency injection for service implementations.
package di

import (
	"fmt"

	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/rs/zerolog"
)

// InitializeStatistics loads the price-tier model parameters, from
// STATISTICS_MODEL_FILE when set.
func InitializeStatistics(container *Container, cfg *config.Config, log zerolog.Logger) error {
	params, err := optimization.LoadModelParams(cfg.StatisticsModelFile)
	if err != nil {
		return err
	}

	container.ModelParams = params
	container.Statistics = optimization.NewPriceTierModel(params)

	log.Info().
		Str("model_file", cfg.StatisticsModelFile).
		Int("symbol_overrides", len(params.Symbols)).
		Msg("Statistics model initialized")

	return nil
}

// InitializeServices builds the objective and the optimizer service.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container.Statistics == nil {
		return fmt.Errorf("statistics provider must be initialized first")
	}

	objective, err := optimization.NewObjective(cfg.Optimizer.Objective, cfg.Optimizer.Correlation, cfg.Optimizer.ESGWeight)
	if err != nil {
		return err
	}
	container.Objective = objective

	options := cfg.Optimizer.Options()
	if err := options.Validate(); err != nil {
		return err
	}

	container.OptimizerService = optimization.NewOptimizerService(
		container.Statistics,
		objective,
		optimization.InverseRiskAversion(cfg.Optimizer.RiskAversion),
		options,
		log,
	)

	log.Info().
		Str("objective", objective.Name()).
		Float64("risk_aversion_scale", cfg.Optimizer.RiskAversion).
		Msg("Optimizer service initialized")

	return nil
}

// InitializeDefaultPortfolio loads DEFAULT_PORTFOLIO_FILE, or the built-in
// demo portfolio when unset.
func InitializeDefaultPortfolio(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if cfg.DefaultPortfolioFile == "" {
		container.DefaultPortfolio = domain.DefaultPortfolio()
		return nil
	}

	portfolio, err := domain.LoadPortfolioFile(cfg.DefaultPortfolioFile)
	if err != nil {
		return err
	}

	// Reject a broken file at startup rather than on every request.
	if _, err := optimization.Validate(1, portfolio); err != nil {
		return err
	}

	container.DefaultPortfolio = portfolio
	log.Info().
		Str("file", cfg.DefaultPortfolioFile).
		Int("holdings", len(portfolio)).
		Msg("Default portfolio loaded")

	return nil
}
