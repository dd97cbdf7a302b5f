package domain

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// ReadPortfolio decodes a JSON portfolio object from r.
func ReadPortfolio(r io.Reader) (Portfolio, error) {
	var p Portfolio
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode portfolio: %w", err)
	}
	return p, nil
}

// LoadPortfolioFile reads a JSON portfolio from path.
func LoadPortfolioFile(path string) (Portfolio, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open portfolio file: %w", err)
	}
	defer f.Close()

	p, err := ReadPortfolio(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}
