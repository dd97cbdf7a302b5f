package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// MarshalJSON encodes the portfolio as an object keyed by symbol, in
// portfolio order.
func (p Portfolio) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, h := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(h.Symbol)
		if err != nil {
			return nil, fmt.Errorf("failed to encode symbol %q: %w", h.Symbol, err)
		}
		value, err := json.Marshal(h)
		if err != nil {
			return nil, fmt.Errorf("failed to encode holding %q: %w", h.Symbol, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object keyed by symbol. Key order is kept and
// duplicate keys are kept as separate holdings so that validation can reject
// them. null is a no-op.
func (p *Portfolio) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to read portfolio: %w", err)
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("portfolio must be a JSON object keyed by symbol")
	}

	holdings := Portfolio{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("failed to read portfolio symbol: %w", err)
		}
		symbol, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected portfolio key %v", keyTok)
		}

		var h Holding
		if err := dec.Decode(&h); err != nil {
			return fmt.Errorf("invalid holding %q: %w", symbol, err)
		}
		h.Symbol = symbol
		holdings = append(holdings, h)
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("failed to read end of portfolio: %w", err)
	}

	*p = holdings
	return nil
}

// EncodeMsgpack encodes the portfolio as a msgpack map in portfolio order.
func (p Portfolio) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(len(p)); err != nil {
		return err
	}
	for _, h := range p {
		if err := enc.EncodeString(h.Symbol); err != nil {
			return err
		}
		if err := enc.Encode(h); err != nil {
			return fmt.Errorf("failed to encode holding %q: %w", h.Symbol, err)
		}
	}
	return nil
}

// DecodeMsgpack decodes a msgpack map keyed by symbol, keeping key order.
func (p *Portfolio) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return fmt.Errorf("failed to read portfolio: %w", err)
	}
	if n < 0 {
		return nil
	}

	holdings := make(Portfolio, 0, n)
	for i := 0; i < n; i++ {
		symbol, err := dec.DecodeString()
		if err != nil {
			return fmt.Errorf("failed to read portfolio symbol: %w", err)
		}
		var h Holding
		if err := dec.Decode(&h); err != nil {
			return fmt.Errorf("invalid holding %q: %w", symbol, err)
		}
		h.Symbol = symbol
		holdings = append(holdings, h)
	}

	*p = holdings
	return nil
}
