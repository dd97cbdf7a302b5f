package optimization

import (
	"errors"
	"fmt"
	"math"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/utils"
	"github.com/aristath/allocator/pkg/formulas"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// PortfolioMetrics summarizes a portfolio under the modeled statistics.
// Weights are taken relative to the reference capital, so uninvested cash
// counts as a zero-return, zero-risk position.
type PortfolioMetrics struct {
	ExpectedReturn float64 `json:"expected_return" msgpack:"expected_return"`
	Volatility     float64 `json:"volatility" msgpack:"volatility"`
}

// AllocationResult is the outcome of one optimization.
type AllocationResult struct {
	Portfolio       AllocationMap    `json:"portfolio" msgpack:"portfolio"`
	Fallback        bool             `json:"fallback" msgpack:"fallback"`
	Warning         string           `json:"warning,omitempty" msgpack:"warning,omitempty"`
	Objective       string           `json:"objective" msgpack:"objective"`
	RiskTolerance   float64          `json:"risk_tolerance" msgpack:"risk_tolerance"`
	Lambda          float64          `json:"lambda" msgpack:"lambda"`
	Iterations      int              `json:"iterations" msgpack:"iterations"`
	Capital         float64          `json:"capital" msgpack:"capital"`
	AdjustedCapital float64          `json:"adjusted_capital" msgpack:"adjusted_capital"`
	CashResidual    float64          `json:"cash_residual" msgpack:"cash_residual"`
	Before          PortfolioMetrics `json:"before" msgpack:"before"`
	After           PortfolioMetrics `json:"after" msgpack:"after"`
}

// FrontierPoint is one risk tolerance on the efficient frontier.
type FrontierPoint struct {
	RiskTolerance  float64 `json:"risk_tolerance" msgpack:"risk_tolerance"`
	Lambda         float64 `json:"lambda" msgpack:"lambda"`
	ExpectedReturn float64 `json:"expected_return" msgpack:"expected_return"`
	Volatility     float64 `json:"volatility" msgpack:"volatility"`
	Fallback       bool    `json:"fallback" msgpack:"fallback"`
}

// DefaultFrontierTolerances returns the default frontier sweep.
func DefaultFrontierTolerances() []float64 {
	return []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5}
}

// OptimizerService runs validate -> estimate -> optimize -> format.
// It holds only read-only configuration and is safe for concurrent use.
type OptimizerService struct {
	statistics   StatisticsProvider
	objective    Objective
	riskAversion RiskAversionFunc
	options      Options
	log          zerolog.Logger
}

// NewOptimizerService creates a new optimizer service. A nil riskAversion
// uses InverseRiskAversion(DefaultRiskAversionScale).
func NewOptimizerService(
	statistics StatisticsProvider,
	objective Objective,
	riskAversion RiskAversionFunc,
	options Options,
	log zerolog.Logger,
) *OptimizerService {
	if riskAversion == nil {
		riskAversion = InverseRiskAversion(DefaultRiskAversionScale)
	}
	if objective == nil {
		objective = MeanVariance{}
	}
	return &OptimizerService{
		statistics:   statistics,
		objective:    objective,
		riskAversion: riskAversion,
		options:      options,
		log:          log.With().Str("component", "optimizer_service").Logger(),
	}
}

// Options returns the service's default options.
func (s *OptimizerService) Options() Options {
	return s.options
}

// Objective returns the objective the service maximizes.
func (s *OptimizerService) Objective() Objective {
	return s.objective
}

// Optimize allocates the portfolio for riskTolerance with the default options.
func (s *OptimizerService) Optimize(riskTolerance float64, portfolio domain.Portfolio) (*AllocationResult, error) {
	return s.OptimizeWithOptions(riskTolerance, portfolio, s.options)
}

// OptimizeWithOptions allocates the portfolio for riskTolerance.
//
// Validation and infeasible constraints are returned as errors. Numerical
// failures are not: the result then carries the original shares with
// Fallback set and a warning.
func (s *OptimizerService) OptimizeWithOptions(
	riskTolerance float64,
	portfolio domain.Portfolio,
	opts Options,
) (*AllocationResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	holdings, err := Validate(riskTolerance, portfolio)
	if err != nil {
		return nil, err
	}

	capital := holdings.TotalValue()
	if !isFinite(capital) || capital <= 0 {
		return nil, &InfeasibleError{Reason: fmt.Sprintf("reference capital must be positive, got %v", capital)}
	}

	bounds := BuildBounds(len(holdings), opts)
	if err := bounds.CheckFeasible(opts.AllowCashDrift); err != nil {
		return nil, err
	}

	lambda := s.riskAversion(riskTolerance)
	result := &AllocationResult{
		Objective:     s.objective.Name(),
		RiskTolerance: riskTolerance,
		Lambda:        lambda,
		Capital:       capital,
	}

	s.log.Debug().
		Int("holdings", len(holdings)).
		Float64("capital", capital).
		Float64("risk_tolerance", riskTolerance).
		Float64("lambda", lambda).
		Msg("Starting allocation")

	stats, err := s.statistics.Estimate(holdings)
	if err != nil {
		return s.fallback(result, holdings, nil, nil, fmt.Errorf("failed to estimate statistics: %w", err)), nil
	}
	if err := checkStatistics(stats, len(holdings)); err != nil {
		return s.fallback(result, holdings, nil, nil, err), nil
	}

	linear := s.objective.Linear(stats, holdings)
	cov := s.objective.Covariance(stats)

	s.log.Debug().
		Floats64("returns", stats.Returns).
		Floats64("volatilities", stats.Volatilities).
		Msg("Estimated statistics")

	timer := utils.NewTimer("mv_optimize", utils.DefaultSlowThreshold, s.log)
	sol, err := NewMVOptimizer(opts.MaxIterations).Optimize(linear, cov, lambda, bounds, opts.AllowCashDrift)
	timer.StopWith(map[string]interface{}{"holdings": len(holdings)})
	if err != nil {
		var infeasibleErr *InfeasibleError
		if errors.As(err, &infeasibleErr) {
			return nil, err
		}
		var numericalErr *NumericalError
		if errors.As(err, &numericalErr) {
			result.Iterations = numericalErr.Iterations
		}
		return s.fallback(result, holdings, stats.Returns, cov, err), nil
	}
	result.Iterations = sol.Iterations

	s.log.Debug().
		Int("iterations", sol.Iterations).
		Floats64("weights", sol.Weights).
		Msg("Solved allocation")

	entries, residual := formatAllocation(holdings, sol.Weights, capital, opts)
	adjustedCapital := entries.AdjustedCapital()
	if err := checkCapital(entries, capital, adjustedCapital, opts); err != nil {
		return s.fallback(result, holdings, stats.Returns, cov, &NumericalError{Iterations: sol.Iterations, Reason: err.Error()}), nil
	}

	result.Portfolio = entries
	result.AdjustedCapital = adjustedCapital
	result.CashResidual = residual
	result.Before = metrics(holdingValues(holdings), capital, stats.Returns, cov)
	result.After = metrics(adjustedValues(entries), capital, stats.Returns, cov)

	s.log.Debug().
		Float64("adjusted_capital", adjustedCapital).
		Float64("expected_return", result.After.ExpectedReturn).
		Float64("volatility", result.After.Volatility).
		Msg("Allocation complete")

	return result, nil
}

// Frontier optimizes the portfolio at each tolerance (the default sweep when
// none are given) and reports the resulting return and volatility.
func (s *OptimizerService) Frontier(
	portfolio domain.Portfolio,
	tolerances []float64,
	opts Options,
) ([]FrontierPoint, error) {
	if len(tolerances) == 0 {
		tolerances = DefaultFrontierTolerances()
	}
	for i, rt := range tolerances {
		if err := ValidateRiskTolerance(fmt.Sprintf("tolerances[%d]", i), rt); err != nil {
			return nil, err
		}
	}

	timer := utils.NewTimer("frontier", utils.DefaultSlowThreshold, s.log)
	defer timer.Stop()

	points := make([]FrontierPoint, 0, len(tolerances))
	for _, rt := range tolerances {
		result, err := s.OptimizeWithOptions(rt, portfolio, opts)
		if err != nil {
			return nil, err
		}
		points = append(points, FrontierPoint{
			RiskTolerance:  rt,
			Lambda:         result.Lambda,
			ExpectedReturn: result.After.ExpectedReturn,
			Volatility:     result.After.Volatility,
			Fallback:       result.Fallback,
		})
	}

	s.log.Debug().Int("points", len(points)).Msg("Computed efficient frontier")
	return points, nil
}

// fallback returns the identity allocation. Metrics are reported when
// statistics are available.
func (s *OptimizerService) fallback(
	result *AllocationResult,
	holdings domain.Portfolio,
	returns []float64,
	cov *mat.SymDense,
	cause error,
) *AllocationResult {
	s.log.Warn().
		Err(cause).
		Float64("risk_tolerance", result.RiskTolerance).
		Msg("Optimization failed, returning original allocation")

	result.Portfolio = identityAllocation(holdings)
	result.Fallback = true
	result.Warning = cause.Error()
	result.AdjustedCapital = result.Capital
	result.CashResidual = 0
	if returns != nil && cov != nil {
		result.Before = metrics(holdingValues(holdings), result.Capital, returns, cov)
		result.After = result.Before
	}
	return result
}

func checkStatistics(stats Statistics, n int) error {
	if len(stats.Returns) != n || len(stats.Volatilities) != n {
		return &NumericalError{Reason: fmt.Sprintf("statistics cover %d/%d holdings, expected %d",
			len(stats.Returns), len(stats.Volatilities), n)}
	}
	for i := 0; i < n; i++ {
		if !isFinite(stats.Returns[i]) {
			return &NumericalError{Reason: fmt.Sprintf("expected return %d is not finite", i)}
		}
		if v := stats.Volatilities[i]; !isFinite(v) || v <= 0 {
			return &NumericalError{Reason: fmt.Sprintf("volatility %d must be positive, got %v", i, v)}
		}
	}
	return nil
}

// checkCapital rejects formatted output that is negative, non-finite or
// spends outside the capital tolerance. Whole shares and cash drift may
// leave capital unspent but never overspend.
func checkCapital(entries AllocationMap, capital, adjustedCapital float64, opts Options) error {
	for _, e := range entries {
		if !isFinite(e.AdjustedShares) || e.AdjustedShares < 0 {
			return fmt.Errorf("adjusted shares for %s are invalid: %v", e.Symbol, e.AdjustedShares)
		}
	}
	if !isFinite(adjustedCapital) {
		return fmt.Errorf("adjusted capital is not finite")
	}

	limit := opts.CapitalTolerance * capital
	if opts.WholeShares || opts.AllowCashDrift {
		if adjustedCapital > capital+limit {
			return fmt.Errorf("adjusted capital %.4f exceeds reference capital %.4f", adjustedCapital, capital)
		}
		return nil
	}
	if math.Abs(adjustedCapital-capital) > limit {
		return fmt.Errorf("adjusted capital %.4f is outside %.2f%% of reference capital %.4f",
			adjustedCapital, opts.CapitalTolerance*100, capital)
	}
	return nil
}

func metrics(values []float64, capital float64, returns []float64, cov mat.Symmetric) PortfolioMetrics {
	weights := make([]float64, len(values))
	for i, v := range values {
		weights[i] = v / capital
	}
	return PortfolioMetrics{
		ExpectedReturn: formulas.PortfolioReturn(weights, returns),
		Volatility:     formulas.PortfolioVolatility(weights, cov),
	}
}

func holdingValues(holdings domain.Portfolio) []float64 {
	values := make([]float64, len(holdings))
	for i, h := range holdings {
		values[i] = h.Value()
	}
	return values
}

func adjustedValues(entries AllocationMap) []float64 {
	values := make([]float64, len(entries))
	for i, e := range entries {
		values[i] = e.AdjustedValue
	}
	return values
}
