package optimization

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func diagonalCov(variances ...float64) *mat.SymDense {
	cov := mat.NewSymDense(len(variances), nil)
	for i, v := range variances {
		cov.SetSym(i, i, v)
	}
	return cov
}

func uniformBounds(n int, lower, upper float64) Bounds {
	return BuildBounds(n, Options{MinWeight: lower, MaxWeight: upper})
}

func TestMVOptimizer_InteriorSolution(t *testing.T) {
	// Q = diag(0.08, 0.02): x1 = (0.10-ν)/0.08, x2 = (0.05-ν)/0.02, ν = 0.044.
	mvo := NewMVOptimizer(DefaultMaxIterations)

	sol, err := mvo.Optimize([]float64{0.10, 0.05}, diagonalCov(0.04, 0.01), 1, uniformBounds(2, 0, 1), false)
	require.NoError(t, err)

	assert.InDelta(t, 0.7, sol.Weights[0], 1e-9)
	assert.InDelta(t, 0.3, sol.Weights[1], 1e-9)
	assert.InDelta(t, 0.044, sol.Multiplier, 1e-9)
	assert.Equal(t, 1, sol.Iterations)
}

func TestMVOptimizer_ClipsToBounds(t *testing.T) {
	mvo := NewMVOptimizer(DefaultMaxIterations)

	// Unconstrained optimum is (2.75, -1.75).
	sol, err := mvo.Optimize([]float64{0.10, 0.01}, diagonalCov(0.01, 0.01), 1, uniformBounds(2, 0, 1), false)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, sol.Weights[0], 1e-9)
	assert.InDelta(t, 0.0, sol.Weights[1], 1e-9)
}

func TestMVOptimizer_ReleasesOverClippedUpperBound(t *testing.T) {
	mvo := NewMVOptimizer(DefaultMaxIterations)

	// Both leaders hit the 0.6 cap, overspending the budget; the weaker one
	// is released and absorbs the remainder.
	sol, err := mvo.Optimize(
		[]float64{0.10, 0.09, 0.01},
		diagonalCov(0.01, 0.01, 0.01),
		1,
		uniformBounds(3, 0, 0.6),
		false,
	)
	require.NoError(t, err)

	assert.InDelta(t, 0.6, sol.Weights[0], 1e-9)
	assert.InDelta(t, 0.4, sol.Weights[1], 1e-9)
	assert.InDelta(t, 0.0, sol.Weights[2], 1e-9)
	assert.InDelta(t, 1.0, floats.Sum(sol.Weights), 1e-9)
}

func TestMVOptimizer_RespectsMinimumWeight(t *testing.T) {
	mvo := NewMVOptimizer(DefaultMaxIterations)

	sol, err := mvo.Optimize(
		[]float64{0.20, 0.01, 0.01, 0.01},
		diagonalCov(0.01, 0.04, 0.04, 0.04),
		0.5,
		uniformBounds(4, 0.1, 1),
		false,
	)
	require.NoError(t, err)

	for i, w := range sol.Weights {
		assert.GreaterOrEqual(t, w, 0.1-1e-9, "weight %d", i)
	}
	assert.InDelta(t, 1.0, floats.Sum(sol.Weights), 1e-9)
	assert.InDelta(t, 0.7, sol.Weights[0], 1e-9)
}

func TestMVOptimizer_CashDrift(t *testing.T) {
	mvo := NewMVOptimizer(DefaultMaxIterations)

	t.Run("budget slack", func(t *testing.T) {
		sol, err := mvo.Optimize([]float64{0.01, 0.005}, diagonalCov(0.01, 0.01), 1, uniformBounds(2, 0, 1), true)
		require.NoError(t, err)
		assert.InDelta(t, 0.5, sol.Weights[0], 1e-9)
		assert.InDelta(t, 0.25, sol.Weights[1], 1e-9)
		assert.Zero(t, sol.Multiplier)
	})

	t.Run("all returns negative holds cash", func(t *testing.T) {
		sol, err := mvo.Optimize([]float64{-0.01, -0.02}, diagonalCov(0.01, 0.01), 1, uniformBounds(2, 0, 1), true)
		require.NoError(t, err)
		assert.InDelta(t, 0.0, floats.Sum(sol.Weights), 1e-12)
	})

	t.Run("overspend falls back to budget", func(t *testing.T) {
		sol, err := mvo.Optimize([]float64{0.10, 0.10}, diagonalCov(0.01, 0.01), 1, uniformBounds(2, 0, 1), true)
		require.NoError(t, err)
		assert.InDelta(t, 0.5, sol.Weights[0], 1e-9)
		assert.InDelta(t, 0.5, sol.Weights[1], 1e-9)
	})
}

func TestMVOptimizer_ConstantCorrelation(t *testing.T) {
	mvo := NewMVOptimizer(DefaultMaxIterations)
	obj := ConstantCorrelation{Rho: 0.5}
	cov := obj.Covariance(Statistics{Volatilities: []float64{0.2, 0.2, 0.2}})

	// Symmetric problem: equal weights.
	sol, err := mvo.Optimize([]float64{0.05, 0.05, 0.05}, cov, 1, uniformBounds(3, 0, 1), false)
	require.NoError(t, err)
	for _, w := range sol.Weights {
		assert.InDelta(t, 1.0/3.0, w, 1e-9)
	}
}

func TestMVOptimizer_Errors(t *testing.T) {
	mvo := NewMVOptimizer(DefaultMaxIterations)
	cov := diagonalCov(0.01, 0.01)
	bounds := uniformBounds(2, 0, 1)

	tests := []struct {
		name       string
		linear     []float64
		cov        *mat.SymDense
		lambda     float64
		bounds     Bounds
		infeasible bool
	}{
		{name: "no holdings", linear: nil, cov: mat.NewSymDense(1, nil), lambda: 1, infeasible: true},
		{name: "zero lambda", linear: []float64{0.1, 0.1}, cov: cov, lambda: 0, bounds: bounds},
		{name: "nan lambda", linear: []float64{0.1, 0.1}, cov: cov, lambda: math.NaN(), bounds: bounds},
		{name: "nan return", linear: []float64{math.NaN(), 0.1}, cov: cov, lambda: 1, bounds: bounds},
		{name: "zero variance", linear: []float64{0.1, 0.1}, cov: diagonalCov(0, 0.01), lambda: 1, bounds: bounds},
		{name: "dimension mismatch", linear: []float64{0.1, 0.1, 0.1}, cov: cov, lambda: 1, bounds: bounds},
		{name: "minimum weights too high", linear: []float64{0.1, 0.1}, cov: cov, lambda: 1, bounds: uniformBounds(2, 0.6, 1), infeasible: true},
		{name: "maximum weights too low", linear: []float64{0.1, 0.1}, cov: cov, lambda: 1, bounds: uniformBounds(2, 0, 0.4), infeasible: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mvo.Optimize(tt.linear, tt.cov, tt.lambda, tt.bounds, false)
			require.Error(t, err)

			var infeasibleErr *InfeasibleError
			var numericalErr *NumericalError
			if tt.infeasible {
				assert.True(t, errors.As(err, &infeasibleErr), "got %v", err)
			} else {
				assert.True(t, errors.As(err, &numericalErr), "got %v", err)
			}
		})
	}
}

func TestMVOptimizer_IterationCap(t *testing.T) {
	mvo := NewMVOptimizer(1)

	_, err := mvo.Optimize([]float64{0.10, 0.01}, diagonalCov(0.01, 0.01), 1, uniformBounds(2, 0, 1), false)

	var numericalErr *NumericalError
	require.True(t, errors.As(err, &numericalErr))
	assert.Equal(t, 1, numericalErr.Iterations)
}

func TestMVOptimizer_CashDriftWithLowCap(t *testing.T) {
	mvo := NewMVOptimizer(DefaultMaxIterations)

	sol, err := mvo.Optimize([]float64{0.10, 0.10}, diagonalCov(0.01, 0.01), 1, uniformBounds(2, 0, 0.3), true)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, sol.Weights[0], 1e-9)
	assert.InDelta(t, 0.3, sol.Weights[1], 1e-9)
}
