// Package domain provides core domain models and types.
package domain

// Holding represents one portfolio position: a symbol, its share count and
// its current price.
type Holding struct {
	Symbol   string   `json:"-" msgpack:"-"`
	Shares   float64  `json:"shares" msgpack:"shares"`
	Price    float64  `json:"price" msgpack:"price"`
	ESGScore *float64 `json:"esg_score,omitempty" msgpack:"esg_score,omitempty"` // 0..100, nil = neutral
}

// Value returns shares * price.
func (h Holding) Value() float64 {
	return h.Shares * h.Price
}

// Portfolio is an ordered set of holdings keyed by symbol.
// Encoded as a JSON/msgpack object whose key order is preserved.
type Portfolio []Holding

// TotalValue returns the sum of shares * price over all holdings.
func (p Portfolio) TotalValue() float64 {
	total := 0.0
	for _, h := range p {
		total += h.Value()
	}
	return total
}

// Symbols returns the holding symbols in portfolio order.
func (p Portfolio) Symbols() []string {
	symbols := make([]string, len(p))
	for i, h := range p {
		symbols[i] = h.Symbol
	}
	return symbols
}

// Clone returns a deep copy of the portfolio.
func (p Portfolio) Clone() Portfolio {
	if p == nil {
		return nil
	}
	out := make(Portfolio, len(p))
	for i, h := range p {
		out[i] = h
		if h.ESGScore != nil {
			score := *h.ESGScore
			out[i].ESGScore = &score
		}
	}
	return out
}

// DefaultPortfolio returns the demo portfolio served when a request does not
// carry its own holdings.
func DefaultPortfolio() Portfolio {
	return Portfolio{
		{Symbol: "AAPL", Shares: 60, Price: 150},
		{Symbol: "TSLA", Shares: 50, Price: 700},
		{Symbol: "GOOG", Shares: 80, Price: 2800},
		{Symbol: "META", Shares: 40, Price: 350},
		{Symbol: "NFLX", Shares: 30, Price: 600},
		{Symbol: "MSFT", Shares: 70, Price: 320},
	}
}
