// Package optimization turns a risk tolerance and a set of holdings into a
// risk-adjusted allocation.
//
// The pipeline is strictly linear: validate -> estimate -> optimize -> format.
// Every stage is a pure function of its inputs; nothing is shared between
// calls except read-only configuration, so an OptimizerService can be used
// from any number of goroutines.
package optimization

import (
	"github.com/aristath/allocator/internal/domain"
	"gonum.org/v1/gonum/mat"
)

// Statistics holds per-holding expected returns and volatilities, aligned
// with the holdings slice they were estimated for.
type Statistics struct {
	Returns      []float64
	Volatilities []float64
}

// StatisticsProvider estimates expected return and volatility proxies for a
// set of holdings. Implementations must be deterministic.
type StatisticsProvider interface {
	Estimate(holdings []domain.Holding) (Statistics, error)
}

// Objective defines the risk-adjusted objective the allocator maximizes:
//
//	Linear·x − λ·x'Σx
//
// where x are capital weights and Σ is Covariance.
type Objective interface {
	Name() string
	Linear(stats Statistics, holdings []domain.Holding) []float64
	Covariance(stats Statistics) *mat.SymDense
}

// RiskAversionFunc maps a risk tolerance to the variance penalty weight λ.
// It must be monotonically decreasing.
type RiskAversionFunc func(riskTolerance float64) float64
