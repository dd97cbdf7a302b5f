package optimization

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/pkg/formulas"
	"github.com/vmihailenco/msgpack/v5"
)

// weightPrecision is the number of decimals reported for target weights.
const weightPrecision = 6

// AllocationEntry is one line of an allocation: the original holding next to
// its adjusted share count.
type AllocationEntry struct {
	Symbol         string  `json:"-" msgpack:"-"`
	Shares         float64 `json:"shares" msgpack:"shares"`
	Price          float64 `json:"price" msgpack:"price"`
	Value          float64 `json:"value" msgpack:"value"` // original shares * price
	AdjustedShares float64 `json:"adjusted_shares" msgpack:"adjusted_shares"`
	AdjustedValue  float64 `json:"adjusted_value" msgpack:"adjusted_value"`
	TargetWeight   float64 `json:"target_weight" msgpack:"target_weight"`
}

// AllocationMap is an allocation in input order, encoded as an object keyed
// by symbol.
type AllocationMap []AllocationEntry

// Get returns the entry for symbol.
func (m AllocationMap) Get(symbol string) (AllocationEntry, bool) {
	for _, e := range m {
		if e.Symbol == symbol {
			return e, true
		}
	}
	return AllocationEntry{}, false
}

// AdjustedCapital returns Σ adjusted_shares * price.
func (m AllocationMap) AdjustedCapital() float64 {
	total := 0.0
	for _, e := range m {
		total += e.AdjustedShares * e.Price
	}
	return total
}

func (m AllocationMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Symbol)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("failed to encode allocation %q: %w", e.Symbol, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *AllocationMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*m = AllocationMap{}
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("allocation must be a JSON object keyed by symbol")
	}

	entries := AllocationMap{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		symbol, _ := keyTok.(string)
		var e AllocationEntry
		if err := dec.Decode(&e); err != nil {
			return fmt.Errorf("invalid allocation %q: %w", symbol, err)
		}
		e.Symbol = symbol
		entries = append(entries, e)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = entries
	return nil
}

func (m AllocationMap) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(len(m)); err != nil {
		return err
	}
	for _, e := range m {
		if err := enc.EncodeString(e.Symbol); err != nil {
			return err
		}
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

func (m *AllocationMap) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return err
	}
	if n < 0 {
		*m = AllocationMap{}
		return nil
	}
	entries := make(AllocationMap, 0, n)
	for i := 0; i < n; i++ {
		symbol, err := dec.DecodeString()
		if err != nil {
			return err
		}
		var e AllocationEntry
		if err := dec.Decode(&e); err != nil {
			return err
		}
		e.Symbol = symbol
		entries = append(entries, e)
	}
	*m = entries
	return nil
}

// formatAllocation turns capital weights into share counts. Fractional
// shares are rounded to opts.Precision decimals; with opts.WholeShares every
// count is an integer and the unspent capital is returned as cash residual.
func formatAllocation(
	holdings domain.Portfolio,
	weights []float64,
	capital float64,
	opts Options,
) (AllocationMap, float64) {
	entries := make(AllocationMap, len(holdings))
	targets := make([]float64, len(holdings))

	for i, h := range holdings {
		targets[i] = math.Max(weights[i], 0) * capital / h.Price
		entries[i] = AllocationEntry{
			Symbol:       h.Symbol,
			Shares:       h.Shares,
			Price:        h.Price,
			Value:        h.Value(),
			TargetWeight: formulas.Round(math.Max(weights[i], 0), weightPrecision),
		}
	}

	if opts.WholeShares {
		wholeShares(entries, targets, capital)
	} else {
		for i := range entries {
			entries[i].AdjustedShares = math.Max(formulas.Round(targets[i], opts.Precision), 0)
		}
	}

	for i := range entries {
		entries[i].AdjustedValue = entries[i].AdjustedShares * entries[i].Price
	}

	residual := capital - entries.AdjustedCapital()
	if opts.WholeShares || opts.AllowCashDrift {
		residual = math.Max(residual, 0)
	} else {
		residual = 0
	}
	return entries, residual
}

// wholeShares floors every target, then buys one extra share per holding in
// order of largest fractional remainder while the leftover capital covers it.
func wholeShares(entries AllocationMap, targets []float64, capital float64) {
	const eps = 1e-9

	order := make([]int, len(entries))
	spent := 0.0
	for i, target := range targets {
		whole := math.Floor(target + eps)
		entries[i].AdjustedShares = whole
		spent += whole * entries[i].Price
		order[i] = i
	}

	remainder := func(i int) float64 {
		return targets[i] - entries[i].AdjustedShares
	}
	sort.SliceStable(order, func(a, b int) bool {
		return remainder(order[a]) > remainder(order[b])
	})

	leftover := capital - spent
	for _, i := range order {
		if remainder(i) <= eps {
			break
		}
		if entries[i].Price <= leftover+eps*capital {
			entries[i].AdjustedShares++
			leftover -= entries[i].Price
		}
	}
}

// identityAllocation returns the holdings unchanged.
func identityAllocation(holdings domain.Portfolio) AllocationMap {
	values := make([]float64, len(holdings))
	for i, h := range holdings {
		values[i] = h.Value()
	}
	weights := formulas.CapitalWeights(values)

	entries := make(AllocationMap, len(holdings))
	for i, h := range holdings {
		entries[i] = AllocationEntry{
			Symbol:         h.Symbol,
			Shares:         h.Shares,
			Price:          h.Price,
			Value:          values[i],
			AdjustedShares: h.Shares,
			AdjustedValue:  values[i],
			TargetWeight:   formulas.Round(weights[i], weightPrecision),
		}
	}
	return entries
}
