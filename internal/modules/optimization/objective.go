package optimization

import (
	"fmt"
	"math"

	"github.com/aristath/allocator/internal/domain"
	"gonum.org/v1/gonum/mat"
)

// Objective names.
const (
	ObjectiveMeanVariance        = "mean_variance"
	ObjectiveConstantCorrelation = "constant_correlation"
)

// Risk aversion defaults.
const (
	DefaultRiskAversionScale = 0.01
	MinRiskAversion          = 1e-8 // keeps the KKT system non-singular for huge tolerances
)

// InverseRiskAversion returns λ(rt) = scale / rt, floored at MinRiskAversion.
func InverseRiskAversion(scale float64) RiskAversionFunc {
	return func(riskTolerance float64) float64 {
		return math.Max(scale/riskTolerance, MinRiskAversion)
	}
}

// MeanVariance is the diagonal objective Σ w_i·μ_i − λ·Σ w_i²·σ_i²,
// optionally tilted toward holdings with higher ESG scores.
type MeanVariance struct {
	ESGWeight float64
}

func (MeanVariance) Name() string { return ObjectiveMeanVariance }

func (o MeanVariance) Linear(stats Statistics, holdings []domain.Holding) []float64 {
	return tiltedReturns(stats, holdings, o.ESGWeight)
}

func (MeanVariance) Covariance(stats Statistics) *mat.SymDense {
	n := len(stats.Volatilities)
	cov := mat.NewSymDense(n, nil)
	for i, vol := range stats.Volatilities {
		cov.SetSym(i, i, vol*vol)
	}
	return cov
}

// ConstantCorrelation assumes every pair of holdings shares the same
// correlation Rho: Σ_ij = Rho·σ_i·σ_j for i ≠ j.
type ConstantCorrelation struct {
	Rho       float64
	ESGWeight float64
}

// NewConstantCorrelation validates rho, which must lie in [0, 1) for the
// covariance to stay positive definite.
func NewConstantCorrelation(rho, esgWeight float64) (ConstantCorrelation, error) {
	if !isFinite(rho) || rho < 0 || rho >= 1 {
		return ConstantCorrelation{}, fmt.Errorf("correlation must be in [0, 1), got %v", rho)
	}
	return ConstantCorrelation{Rho: rho, ESGWeight: esgWeight}, nil
}

func (ConstantCorrelation) Name() string { return ObjectiveConstantCorrelation }

func (o ConstantCorrelation) Linear(stats Statistics, holdings []domain.Holding) []float64 {
	return tiltedReturns(stats, holdings, o.ESGWeight)
}

func (o ConstantCorrelation) Covariance(stats Statistics) *mat.SymDense {
	n := len(stats.Volatilities)
	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			c := o.Rho * stats.Volatilities[i] * stats.Volatilities[j]
			if i == j {
				c = stats.Volatilities[i] * stats.Volatilities[i]
			}
			cov.SetSym(i, j, c)
		}
	}
	return cov
}

// NewObjective builds an objective by name.
func NewObjective(name string, rho, esgWeight float64) (Objective, error) {
	switch name {
	case "", ObjectiveMeanVariance:
		return MeanVariance{ESGWeight: esgWeight}, nil
	case ObjectiveConstantCorrelation:
		return NewConstantCorrelation(rho, esgWeight)
	default:
		return nil, fmt.Errorf("unknown objective: %s", name)
	}
}

// tiltedReturns adds esgWeight·(score/100 − 0.5) to each expected return.
// Holdings without a score are neutral.
func tiltedReturns(stats Statistics, holdings []domain.Holding, esgWeight float64) []float64 {
	linear := append([]float64(nil), stats.Returns...)
	if esgWeight == 0 {
		return linear
	}
	for i, h := range holdings {
		if i >= len(linear) || h.ESGScore == nil {
			continue
		}
		linear[i] += esgWeight * (*h.ESGScore/100 - 0.5)
	}
	return linear
}
