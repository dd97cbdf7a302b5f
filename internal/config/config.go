// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	LogLevel             string
	Port                 int
	DevMode              bool
	StatisticsModelFile  string // optional YAML overriding the price-tier model
	DefaultPortfolioFile string // optional JSON portfolio replacing the demo one
	Optimizer            OptimizerConfig
}

// OptimizerConfig holds the optimizer knobs
type OptimizerConfig struct {
	Objective        string
	Correlation      float64 // constant_correlation only
	ESGWeight        float64
	RiskAversion     float64 // λ = RiskAversion / risk tolerance
	MaxIterations    int
	CapitalTolerance float64
	AllowCashDrift   bool
	MinWeight        float64
	MaxWeight        float64
	Precision        int
	WholeShares      bool
}

// Options converts the configuration into default optimizer options.
func (c OptimizerConfig) Options() optimization.Options {
	return optimization.Options{
		MaxIterations:    c.MaxIterations,
		CapitalTolerance: c.CapitalTolerance,
		AllowCashDrift:   c.AllowCashDrift,
		MinWeight:        c.MinWeight,
		MaxWeight:        c.MaxWeight,
		Precision:        int32(c.Precision),
		WholeShares:      c.WholeShares,
	}
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnvAsInt("GO_PORT", 8001),
		DevMode:              getEnvAsBool("DEV_MODE", false),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		StatisticsModelFile:  getEnv("STATISTICS_MODEL_FILE", ""),
		DefaultPortfolioFile: getEnv("DEFAULT_PORTFOLIO_FILE", ""),
		Optimizer: OptimizerConfig{
			Objective:        getEnv("OPTIMIZER_OBJECTIVE", optimization.ObjectiveMeanVariance),
			Correlation:      getEnvAsFloat("OPTIMIZER_CORRELATION", 0.3),
			ESGWeight:        getEnvAsFloat("OPTIMIZER_ESG_WEIGHT", 0),
			RiskAversion:     getEnvAsFloat("OPTIMIZER_RISK_AVERSION", optimization.DefaultRiskAversionScale),
			MaxIterations:    getEnvAsInt("OPTIMIZER_MAX_ITERATIONS", optimization.DefaultMaxIterations),
			CapitalTolerance: getEnvAsFloat("OPTIMIZER_CAPITAL_TOLERANCE", optimization.DefaultCapitalTolerance),
			AllowCashDrift:   getEnvAsBool("OPTIMIZER_ALLOW_CASH_DRIFT", false),
			MinWeight:        getEnvAsFloat("OPTIMIZER_MIN_WEIGHT", 0),
			MaxWeight:        getEnvAsFloat("OPTIMIZER_MAX_WEIGHT", 1),
			Precision:        getEnvAsInt("OPTIMIZER_PRECISION", optimization.DefaultPrecision),
			WholeShares:      getEnvAsBool("OPTIMIZER_WHOLE_SHARES", false),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("GO_PORT must be between 1 and 65535, got %d", c.Port)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.LogLevel)
	}

	if _, err := optimization.NewObjective(c.Optimizer.Objective, c.Optimizer.Correlation, c.Optimizer.ESGWeight); err != nil {
		return fmt.Errorf("invalid optimizer objective: %w", err)
	}

	if c.Optimizer.RiskAversion <= 0 {
		return fmt.Errorf("OPTIMIZER_RISK_AVERSION must be positive, got %v", c.Optimizer.RiskAversion)
	}

	if err := c.Optimizer.Options().Validate(); err != nil {
		return fmt.Errorf("invalid optimizer configuration: %w", err)
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
