package optimization

import (
	"fmt"
	"math"
)

// Defaults for Options.
const (
	DefaultMaxIterations    = 100
	DefaultCapitalTolerance = 0.01 // 1% of reference capital
	DefaultPrecision        = 4    // decimal places on adjusted shares
	MaxPrecision            = 8
)

// Options controls a single allocation.
type Options struct {
	MaxIterations    int     `json:"max_iterations" msgpack:"max_iterations"`
	CapitalTolerance float64 `json:"capital_tolerance" msgpack:"capital_tolerance"`
	AllowCashDrift   bool    `json:"allow_cash_drift" msgpack:"allow_cash_drift"` // Σ value may fall below capital
	MinWeight        float64 `json:"min_weight" msgpack:"min_weight"`
	MaxWeight        float64 `json:"max_weight" msgpack:"max_weight"`
	Precision        int32   `json:"precision" msgpack:"precision"`
	WholeShares      bool    `json:"whole_shares" msgpack:"whole_shares"`
}

// DefaultOptions returns long-only, fully invested options with no
// concentration limit.
func DefaultOptions() Options {
	return Options{
		MaxIterations:    DefaultMaxIterations,
		CapitalTolerance: DefaultCapitalTolerance,
		MinWeight:        0,
		MaxWeight:        1,
		Precision:        DefaultPrecision,
	}
}

// Validate checks option ranges.
func (o Options) Validate() error {
	switch {
	case o.MaxIterations < 1:
		return newValidationError("options.max_iterations", "must be at least 1, got %d", o.MaxIterations)
	case !isFinite(o.CapitalTolerance) || o.CapitalTolerance <= 0:
		return newValidationError("options.capital_tolerance", "must be positive, got %v", o.CapitalTolerance)
	case !isFinite(o.MinWeight) || o.MinWeight < 0:
		return newValidationError("options.min_weight", "must be non-negative, got %v", o.MinWeight)
	case !isFinite(o.MaxWeight) || o.MaxWeight <= 0:
		return newValidationError("options.max_weight", "must be positive, got %v", o.MaxWeight)
	case o.MinWeight > o.MaxWeight:
		return newValidationError("options.min_weight", "%v exceeds max_weight %v", o.MinWeight, o.MaxWeight)
	case o.Precision < 0 || o.Precision > MaxPrecision:
		return newValidationError("options.precision", "must be between 0 and %d, got %d", MaxPrecision, o.Precision)
	}
	return nil
}

// Bounds holds per-holding capital weight bounds.
type Bounds struct {
	Lower []float64
	Upper []float64
}

// BuildBounds applies the option weight limits to n holdings. MaxWeight is
// capped at 1 since no single holding can exceed the whole capital.
func BuildBounds(n int, opts Options) Bounds {
	upper := math.Min(opts.MaxWeight, 1)
	b := Bounds{
		Lower: make([]float64, n),
		Upper: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		b.Lower[i] = opts.MinWeight
		b.Upper[i] = upper
	}
	return b
}

// CheckFeasible verifies that some weight vector inside the bounds can
// satisfy the budget: Σlower ≤ 1, and Σupper ≥ 1 unless cash may be held.
func (b Bounds) CheckFeasible(allowCashDrift bool) error {
	var sumLower, sumUpper float64
	for i := range b.Lower {
		sumLower += b.Lower[i]
		sumUpper += b.Upper[i]
	}

	const eps = 1e-12
	if sumLower > 1+eps {
		return &InfeasibleError{Reason: fmt.Sprintf("minimum weights sum to %.4f, above 1", sumLower)}
	}
	if !allowCashDrift && sumUpper < 1-eps {
		return &InfeasibleError{Reason: fmt.Sprintf("maximum weights sum to %.4f, below 1", sumUpper)}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
