// Package formulas provides portfolio math shared by the optimizer and its callers.
package formulas

import (
	"math"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// CapitalWeights converts position values into weights that sum to 1.0.
// Returns all zeros when the total is not positive.
func CapitalWeights(values []float64) []float64 {
	weights := make([]float64, len(values))
	total := floats.Sum(values)
	if total <= 0 {
		return weights
	}
	for i, v := range values {
		weights[i] = v / total
	}
	return weights
}

// InverseVarianceWeights calculates weights inversely proportional to variance.
//
// Formula: w_i = (1/σ²_i) / Σ(1/σ²_j)
//
// Non-positive variances get zero weight. If no variance is usable the
// weights are equal.
func InverseVarianceWeights(variances []float64) []float64 {
	n := len(variances)
	weights := make([]float64, n)

	var totalInvVariance float64
	for _, v := range variances {
		if v > 0 {
			totalInvVariance += 1.0 / v
		}
	}

	if totalInvVariance == 0 {
		for i := range weights {
			weights[i] = 1.0 / float64(n)
		}
		return weights
	}

	for i, v := range variances {
		if v > 0 {
			weights[i] = (1.0 / v) / totalInvVariance
		}
	}

	return weights
}

// PortfolioReturn calculates μ'w.
func PortfolioReturn(weights, returns []float64) float64 {
	return floats.Dot(weights, returns)
}

// PortfolioVariance calculates w'Σw.
func PortfolioVariance(weights []float64, cov mat.Symmetric) float64 {
	w := mat.NewVecDense(len(weights), append([]float64(nil), weights...))
	return mat.Inner(w, cov, w)
}

// PortfolioVolatility calculates sqrt(w'Σw), clamping tiny negative
// round-off to zero.
func PortfolioVolatility(weights []float64, cov mat.Symmetric) float64 {
	return math.Sqrt(math.Max(PortfolioVariance(weights, cov), 0))
}

// Round rounds value half away from zero to the given number of decimal
// places. Decimal arithmetic keeps the result stable across platforms.
func Round(value float64, places int32) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return value
	}
	rounded, _ := decimal.NewFromFloat(value).Round(places).Float64()
	return rounded
}
