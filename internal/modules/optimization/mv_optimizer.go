package optimization

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Solver tolerances.
const (
	boundTolerance      = 1e-10 // slack allowed on weight bounds before clipping
	budgetTolerance     = 1e-9  // slack on Σx = 1
	multiplierTolerance = 1e-9  // relative; below this a bound multiplier counts as optimal
)

type boundState int

const (
	stateFree boundState = iota
	stateLower
	stateUpper
)

// Solution is the solver output in capital-weight space.
type Solution struct {
	Weights    []float64
	Iterations int
	Multiplier float64 // budget multiplier ν, zero when Σx ≤ 1 is slack
}

// MVOptimizer performs mean-variance allocation:
//
//	maximize   c'x − λ·x'Σx
//	subject to lower ≤ x ≤ upper
//	           Σx = 1        (Σx ≤ 1 when cash drift is allowed)
//
// It is a primal active-set method. Each iteration solves the KKT system of
// the free variables exactly (gonum LU). Variables that land outside their
// bounds are clipped to the bound and the system is solved again, which
// redistributes the clipped weight over the remaining free variables. Once
// every free variable is inside its bounds, a clipped variable whose
// multiplier shows the objective would improve by moving it inside is
// released. The loop is capped at maxIterations.
type MVOptimizer struct {
	maxIterations int
}

// NewMVOptimizer creates a new mean-variance optimizer.
func NewMVOptimizer(maxIterations int) *MVOptimizer {
	if maxIterations < 1 {
		maxIterations = DefaultMaxIterations
	}
	return &MVOptimizer{maxIterations: maxIterations}
}

// Optimize solves the allocation problem for capital weights.
func (mvo *MVOptimizer) Optimize(
	linear []float64,
	cov *mat.SymDense,
	lambda float64,
	bounds Bounds,
	allowCashDrift bool,
) (*Solution, error) {
	n := len(linear)
	if n == 0 {
		return nil, &InfeasibleError{Reason: "no holdings to allocate"}
	}
	if cov == nil || cov.SymmetricDim() != n {
		return nil, &NumericalError{Reason: fmt.Sprintf("covariance matrix does not match %d holdings", n)}
	}
	if len(bounds.Lower) != n || len(bounds.Upper) != n {
		return nil, &NumericalError{Reason: fmt.Sprintf("bounds do not match %d holdings", n)}
	}
	if !isFinite(lambda) || lambda <= 0 {
		return nil, &NumericalError{Reason: fmt.Sprintf("risk aversion must be positive and finite, got %v", lambda)}
	}
	for i := 0; i < n; i++ {
		if !isFinite(linear[i]) {
			return nil, &NumericalError{Reason: fmt.Sprintf("expected return %d is not finite", i)}
		}
		if v := cov.At(i, i); !isFinite(v) || v <= 0 {
			return nil, &NumericalError{Reason: fmt.Sprintf("variance %d must be positive, got %v", i, v)}
		}
		for j := i + 1; j < n; j++ {
			if !isFinite(cov.At(i, j)) {
				return nil, &NumericalError{Reason: fmt.Sprintf("covariance (%d,%d) is not finite", i, j)}
			}
		}
	}
	if err := bounds.CheckFeasible(allowCashDrift); err != nil {
		return nil, err
	}

	hessian := mat.NewSymDense(n, nil)
	hessian.ScaleSym(2*lambda, cov)

	p := &qpProblem{
		linear:  linear,
		hessian: hessian,
		lower:   bounds.Lower,
		upper:   bounds.Upper,
	}

	used := 0
	if allowCashDrift {
		sol, err := mvo.solve(p)
		if err != nil {
			return nil, err
		}
		if floats.Sum(sol.Weights) <= 1+budgetTolerance {
			return sol, nil
		}
		// Unconstrained optimum spends more than the capital; the budget binds.
		used = sol.Iterations
	}

	p.budget = true
	sol, err := mvo.solve(p)
	if err != nil {
		return nil, err
	}
	sol.Iterations += used
	return sol, nil
}

type qpProblem struct {
	linear  []float64
	hessian *mat.SymDense // Q = 2λΣ, objective c'x − ½x'Qx
	lower   []float64
	upper   []float64
	budget  bool
}

func (mvo *MVOptimizer) solve(p *qpProblem) (*Solution, error) {
	n := len(p.linear)
	state := make([]boundState, n)
	x := make([]float64, n)

	for iter := 1; iter <= mvo.maxIterations; iter++ {
		numFree := 0
		for i, s := range state {
			switch s {
			case stateLower:
				x[i] = p.lower[i]
			case stateUpper:
				x[i] = p.upper[i]
			default:
				numFree++
			}
		}

		nu := 0.0
		if numFree > 0 {
			var err error
			nu, err = p.solveFree(state, x)
			if err != nil {
				return nil, &NumericalError{Iterations: iter, Reason: err.Error()}
			}
		} else if p.budget {
			idx, done, err := p.pinnedStep(state, x)
			if err != nil {
				return nil, &NumericalError{Iterations: iter, Reason: err.Error()}
			}
			if done {
				return &Solution{Weights: x, Iterations: iter}, nil
			}
			state[idx] = stateFree
			continue
		}

		clipped := false
		for i, s := range state {
			if s != stateFree {
				continue
			}
			if !isFinite(x[i]) {
				return nil, &NumericalError{Iterations: iter, Reason: fmt.Sprintf("weight %d is not finite", i)}
			}
			switch {
			case x[i] < p.lower[i]-boundTolerance:
				state[i] = stateLower
				clipped = true
			case x[i] > p.upper[i]+boundTolerance:
				state[i] = stateUpper
				clipped = true
			}
		}
		if clipped {
			continue
		}

		for i := range x {
			x[i] = math.Max(p.lower[i], math.Min(p.upper[i], x[i]))
		}

		release := p.mostImproving(state, x, nu)
		if release < 0 {
			return &Solution{Weights: x, Iterations: iter, Multiplier: nu}, nil
		}
		state[release] = stateFree
	}

	return nil, &NumericalError{Iterations: mvo.maxIterations, Reason: "active set did not converge"}
}

// solveFree solves the KKT system for the free variables with the pinned
// ones held at their bounds:
//
//	Q_FF x_F + ν·1 = c_F − Q_FB x_B
//	1'x_F          = 1 − 1'x_B      (budget only)
//
// It writes x_F into x and returns ν.
func (p *qpProblem) solveFree(state []boundState, x []float64) (float64, error) {
	n := len(x)
	free := make([]int, 0, n)
	fixedSum := 0.0
	for i, s := range state {
		if s == stateFree {
			free = append(free, i)
		} else {
			fixedSum += x[i]
		}
	}

	k := len(free)
	size := k
	if p.budget {
		size++
	}

	a := mat.NewDense(size, size, nil)
	b := mat.NewVecDense(size, nil)
	for r, i := range free {
		rhs := p.linear[i]
		for j := 0; j < n; j++ {
			if state[j] != stateFree {
				rhs -= p.hessian.At(i, j) * x[j]
			}
		}
		b.SetVec(r, rhs)

		for c, j := range free {
			a.Set(r, c, p.hessian.At(i, j))
		}
		if p.budget {
			a.Set(r, k, 1)
			a.Set(k, r, 1)
		}
	}
	if p.budget {
		b.SetVec(k, 1-fixedSum)
	}

	var sol mat.VecDense
	if err := sol.SolveVec(a, b); err != nil {
		return 0, fmt.Errorf("KKT system could not be solved: %w", err)
	}

	for r, i := range free {
		x[i] = sol.AtVec(r)
	}
	if p.budget {
		nu := sol.AtVec(k)
		if !isFinite(nu) {
			return 0, fmt.Errorf("budget multiplier is not finite")
		}
		return nu, nil
	}
	return 0, nil
}

// gradient returns c − Qx.
func (p *qpProblem) gradient(x []float64) []float64 {
	n := len(x)
	var qx mat.VecDense
	qx.MulVec(p.hessian, mat.NewVecDense(n, append([]float64(nil), x...)))

	g := make([]float64, n)
	for i := range g {
		g[i] = p.linear[i] - qx.AtVec(i)
	}
	return g
}

// tolerance scales multiplierTolerance to the magnitude of the gradient terms.
func (p *qpProblem) tolerance(x []float64) float64 {
	var qx mat.VecDense
	qx.MulVec(p.hessian, mat.NewVecDense(len(x), append([]float64(nil), x...)))
	scale := 1.0
	for i := range x {
		scale = math.Max(scale, math.Abs(p.linear[i]))
		scale = math.Max(scale, math.Abs(qx.AtVec(i)))
	}
	return multiplierTolerance * scale
}

// mostImproving returns the pinned variable whose release improves the
// objective the most, or -1 when the KKT conditions hold.
func (p *qpProblem) mostImproving(state []boundState, x []float64, nu float64) int {
	g := p.gradient(x)
	best := -1
	bestGain := p.tolerance(x)

	for i, s := range state {
		if p.upper[i]-p.lower[i] <= boundTolerance {
			continue
		}
		var gain float64
		switch s {
		case stateLower:
			gain = g[i] - nu
		case stateUpper:
			gain = nu - g[i]
		default:
			continue
		}
		if gain > bestGain {
			best = i
			bestGain = gain
		}
	}
	return best
}

// pinnedStep handles the case where every variable sits on a bound. If the
// budget is violated it releases a variable that can move toward it; if the
// budget holds it checks optimality (max gradient at lower ≤ min gradient at
// upper) and releases the best lower-bound variable otherwise.
func (p *qpProblem) pinnedStep(state []boundState, x []float64) (int, bool, error) {
	g := p.gradient(x)
	sum := floats.Sum(x)

	bestLower, bestUpper := -1, -1
	for i, s := range state {
		if p.upper[i]-p.lower[i] <= boundTolerance {
			continue
		}
		switch s {
		case stateLower:
			if bestLower < 0 || g[i] > g[bestLower] {
				bestLower = i
			}
		case stateUpper:
			if bestUpper < 0 || g[i] < g[bestUpper] {
				bestUpper = i
			}
		}
	}

	switch {
	case sum < 1-budgetTolerance:
		if bestLower < 0 {
			return 0, false, fmt.Errorf("weights sum to %v and none can increase", sum)
		}
		return bestLower, false, nil
	case sum > 1+budgetTolerance:
		if bestUpper < 0 {
			return 0, false, fmt.Errorf("weights sum to %v and none can decrease", sum)
		}
		return bestUpper, false, nil
	}

	if bestLower >= 0 && bestUpper >= 0 && g[bestLower]-g[bestUpper] > p.tolerance(x) {
		return bestLower, false, nil
	}
	return 0, true, nil
}
