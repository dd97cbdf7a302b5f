package optimization

import (
	"strings"

	"github.com/aristath/allocator/internal/domain"
)

// Validate checks the risk tolerance and the portfolio and returns a
// normalized copy: symbols trimmed and upper-cased, order preserved.
// The input portfolio is never modified.
func Validate(riskTolerance float64, portfolio domain.Portfolio) (domain.Portfolio, error) {
	if err := ValidateRiskTolerance("risk_tolerance", riskTolerance); err != nil {
		return nil, err
	}

	if len(portfolio) == 0 {
		return nil, newValidationError("portfolio", "must contain at least one holding")
	}

	normalized := portfolio.Clone()
	seen := make(map[string]bool, len(normalized))

	for i := range normalized {
		h := &normalized[i]
		symbol := strings.ToUpper(strings.TrimSpace(h.Symbol))
		if symbol == "" {
			return nil, newValidationError("portfolio", "holding at position %d has an empty symbol", i)
		}
		if seen[symbol] {
			return nil, newValidationError("portfolio."+symbol, "duplicate symbol")
		}
		seen[symbol] = true
		h.Symbol = symbol

		field := "portfolio." + symbol
		if !isFinite(h.Price) {
			return nil, newValidationError(field+".price", "must be a finite number")
		}
		if h.Price <= 0 {
			return nil, newValidationError(field+".price", "must be positive, got %v", h.Price)
		}
		if !isFinite(h.Shares) {
			return nil, newValidationError(field+".shares", "must be a finite number")
		}
		if h.Shares < 0 {
			return nil, newValidationError(field+".shares", "must be non-negative, got %v", h.Shares)
		}
		if h.ESGScore != nil {
			score := *h.ESGScore
			if !isFinite(score) || score < 0 || score > 100 {
				return nil, newValidationError(field+".esg_score", "must be between 0 and 100, got %v", score)
			}
		}
	}

	return normalized, nil
}

// ValidateRiskTolerance checks that a risk tolerance is finite and positive.
func ValidateRiskTolerance(field string, riskTolerance float64) error {
	if !isFinite(riskTolerance) {
		return newValidationError(field, "must be a finite number")
	}
	if riskTolerance <= 0 {
		return newValidationError(field, "must be positive, got %v", riskTolerance)
	}
	return nil
}
