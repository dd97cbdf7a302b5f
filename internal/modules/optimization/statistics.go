package optimization

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/aristath/allocator/internal/domain"
)

// Default price-tier model parameters.
const (
	DefaultBaseReturn       = 0.08
	DefaultReturnPenalty    = 0.20
	DefaultBaseVolatility   = 0.15
	DefaultTierVolatility   = 0.20
	DefaultSymbolDispersion = 0.10
)

// SymbolOverride pins the return and/or volatility of one symbol.
type SymbolOverride struct {
	Return     *float64 `yaml:"return"`
	Volatility *float64 `yaml:"volatility"`
}

// ModelParams parameterizes the price-tier statistics model.
type ModelParams struct {
	BaseReturn       float64                   `yaml:"base_return"`
	ReturnPenalty    float64                   `yaml:"return_penalty"`
	BaseVolatility   float64                   `yaml:"base_volatility"`
	TierVolatility   float64                   `yaml:"tier_volatility"`
	SymbolDispersion float64                   `yaml:"symbol_dispersion"`
	Symbols          map[string]SymbolOverride `yaml:"symbols"`
}

// DefaultModelParams returns the built-in model parameters.
func DefaultModelParams() ModelParams {
	return ModelParams{
		BaseReturn:       DefaultBaseReturn,
		ReturnPenalty:    DefaultReturnPenalty,
		BaseVolatility:   DefaultBaseVolatility,
		TierVolatility:   DefaultTierVolatility,
		SymbolDispersion: DefaultSymbolDispersion,
	}
}

// Validate checks that the parameters can only yield finite, positive
// volatilities.
func (p ModelParams) Validate() error {
	for name, v := range map[string]float64{
		"base_return":       p.BaseReturn,
		"return_penalty":    p.ReturnPenalty,
		"base_volatility":   p.BaseVolatility,
		"tier_volatility":   p.TierVolatility,
		"symbol_dispersion": p.SymbolDispersion,
	} {
		if !isFinite(v) {
			return fmt.Errorf("model parameter %s must be finite", name)
		}
	}
	if p.BaseVolatility <= 0 {
		return fmt.Errorf("model parameter base_volatility must be positive, got %v", p.BaseVolatility)
	}
	if p.TierVolatility < 0 || p.SymbolDispersion < 0 {
		return fmt.Errorf("model parameters tier_volatility and symbol_dispersion must be non-negative")
	}
	for symbol, o := range p.Symbols {
		if o.Return != nil && !isFinite(*o.Return) {
			return fmt.Errorf("return override for %s must be finite", symbol)
		}
		if o.Volatility != nil && (!isFinite(*o.Volatility) || *o.Volatility <= 0) {
			return fmt.Errorf("volatility override for %s must be positive, got %v", symbol, *o.Volatility)
		}
	}
	return nil
}

// PriceTierModel models statistics without any market data:
//
//	σ_i = BaseVolatility + SymbolDispersion·h(symbol) + TierVolatility/tier(price)
//	μ_i = BaseReturn − ReturnPenalty·σ_i
//
// h is a stable hash of the symbol in [0, 1) and tier is the number of
// integer digits of the price, so cheaper stocks are modeled as riskier.
type PriceTierModel struct {
	params    ModelParams
	overrides map[string]SymbolOverride
}

// NewPriceTierModel creates a model. Override keys are matched
// case-insensitively.
func NewPriceTierModel(params ModelParams) *PriceTierModel {
	overrides := make(map[string]SymbolOverride, len(params.Symbols))
	for symbol, o := range params.Symbols {
		overrides[strings.ToUpper(strings.TrimSpace(symbol))] = o
	}
	return &PriceTierModel{params: params, overrides: overrides}
}

// Params returns the model parameters.
func (m *PriceTierModel) Params() ModelParams {
	return m.params
}

// Estimate implements StatisticsProvider.
func (m *PriceTierModel) Estimate(holdings []domain.Holding) (Statistics, error) {
	stats := Statistics{
		Returns:      make([]float64, len(holdings)),
		Volatilities: make([]float64, len(holdings)),
	}

	for i, h := range holdings {
		if h.Price <= 0 {
			return Statistics{}, fmt.Errorf("cannot estimate %s: price must be positive", h.Symbol)
		}

		override := m.overrides[h.Symbol]

		vol := m.params.BaseVolatility +
			m.params.SymbolDispersion*symbolHash(h.Symbol) +
			m.params.TierVolatility/float64(priceTier(h.Price))
		if override.Volatility != nil {
			vol = *override.Volatility
		}

		ret := m.params.BaseReturn - m.params.ReturnPenalty*vol
		if override.Return != nil {
			ret = *override.Return
		}

		stats.Returns[i] = ret
		stats.Volatilities[i] = vol
	}

	return stats, nil
}

// priceTier returns the number of integer digits of price, at least 1.
func priceTier(price float64) int {
	tier := 1
	for p := price; p >= 10; p /= 10 {
		tier++
	}
	return tier
}

// symbolHash maps a symbol to [0, 1) with FNV-1a.
func symbolHash(symbol string) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(symbol))
	return float64(h.Sum64()>>11) / float64(uint64(1)<<53)
}

// AssetStatistics is an explicit return/volatility pair.
type AssetStatistics struct {
	Return     float64 `yaml:"return" json:"return"`
	Volatility float64 `yaml:"volatility" json:"volatility"`
}

// StaticProvider serves fixed statistics per symbol.
type StaticProvider struct {
	stats map[string]AssetStatistics
}

// NewStaticProvider creates a provider from a symbol-keyed table.
func NewStaticProvider(stats map[string]AssetStatistics) *StaticProvider {
	normalized := make(map[string]AssetStatistics, len(stats))
	for symbol, s := range stats {
		normalized[strings.ToUpper(strings.TrimSpace(symbol))] = s
	}
	return &StaticProvider{stats: normalized}
}

// Estimate implements StatisticsProvider. Unknown symbols are an error.
func (p *StaticProvider) Estimate(holdings []domain.Holding) (Statistics, error) {
	stats := Statistics{
		Returns:      make([]float64, len(holdings)),
		Volatilities: make([]float64, len(holdings)),
	}
	for i, h := range holdings {
		s, ok := p.stats[h.Symbol]
		if !ok {
			return Statistics{}, fmt.Errorf("no statistics for symbol %s", h.Symbol)
		}
		stats.Returns[i] = s.Return
		stats.Volatilities[i] = s.Volatility
	}
	return stats, nil
}
