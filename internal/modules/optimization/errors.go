package optimization

import (
	"errors"
	"fmt"
)

// ValidationError reports bad input. It is never retried and names the
// offending field, e.g. "portfolio.AAPL.price" or "risk_tolerance".
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func newValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// InfeasibleError reports degenerate constraints (zero capital, weight
// bounds that cannot sum to one). Callers treat it like a ValidationError.
type InfeasibleError struct {
	Reason string
}

func (e *InfeasibleError) Error() string {
	return "infeasible allocation: " + e.Reason
}

// NumericalError reports a solve that did not converge or produced
// non-finite values. The service recovers from it with the identity
// allocation, so it only escapes the solver, never the service.
type NumericalError struct {
	Iterations int
	Reason     string
}

func (e *NumericalError) Error() string {
	if e.Iterations > 0 {
		return fmt.Sprintf("numerical failure after %d iterations: %s", e.Iterations, e.Reason)
	}
	return "numerical failure: " + e.Reason
}

// IsClientError reports whether err is caused by the request itself
// (validation or infeasible constraints) rather than by the service.
func IsClientError(err error) bool {
	var validationErr *ValidationError
	var infeasibleErr *InfeasibleError
	return errors.As(err, &validationErr) || errors.As(err, &infeasibleErr)
}
