package optimization

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/aristath/allocator/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceTier(t *testing.T) {
	tests := []struct {
		price float64
		tier  int
	}{
		{0.5, 1},
		{9.99, 1},
		{10, 2},
		{150, 3},
		{999.99, 3},
		{2800, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.tier, priceTier(tt.price), "price %v", tt.price)
	}
}

func TestSymbolHash(t *testing.T) {
	for _, symbol := range []string{"AAPL", "TSLA", "GOOG", "", "A"} {
		h := symbolHash(symbol)
		assert.GreaterOrEqual(t, h, 0.0)
		assert.Less(t, h, 1.0)
		assert.Equal(t, h, symbolHash(symbol))
	}
	assert.NotEqual(t, symbolHash("AAPL"), symbolHash("TSLA"))
}

func TestPriceTierModel_Estimate(t *testing.T) {
	model := NewPriceTierModel(DefaultModelParams())
	holdings := []domain.Holding{
		{Symbol: "AAPL", Shares: 60, Price: 150},
		{Symbol: "GOOG", Shares: 80, Price: 2800},
	}

	stats, err := model.Estimate(holdings)
	require.NoError(t, err)
	require.Len(t, stats.Returns, 2)
	require.Len(t, stats.Volatilities, 2)

	wantVol := DefaultBaseVolatility + DefaultSymbolDispersion*symbolHash("AAPL") + DefaultTierVolatility/3
	assert.InDelta(t, wantVol, stats.Volatilities[0], 1e-15)
	assert.InDelta(t, DefaultBaseReturn-DefaultReturnPenalty*wantVol, stats.Returns[0], 1e-15)

	for i := range holdings {
		assert.Positive(t, stats.Volatilities[i])
		assert.False(t, math.IsNaN(stats.Returns[i]))
	}

	again, err := model.Estimate(holdings)
	require.NoError(t, err)
	assert.Equal(t, stats, again)
}

func TestPriceTierModel_CheaperIsRiskier(t *testing.T) {
	params := DefaultModelParams()
	params.SymbolDispersion = 0
	model := NewPriceTierModel(params)

	stats, err := model.Estimate([]domain.Holding{
		{Symbol: "CHEAP", Price: 5},
		{Symbol: "DEAR", Price: 5000},
	})
	require.NoError(t, err)
	assert.Greater(t, stats.Volatilities[0], stats.Volatilities[1])
	assert.Less(t, stats.Returns[0], stats.Returns[1])
}

func TestPriceTierModel_Overrides(t *testing.T) {
	vol, ret := 0.55, 0.2
	params := DefaultModelParams()
	params.Symbols = map[string]SymbolOverride{
		"tsla": {Volatility: &vol},
		"AAPL": {Return: &ret},
	}
	model := NewPriceTierModel(params)

	stats, err := model.Estimate([]domain.Holding{
		{Symbol: "TSLA", Price: 700},
		{Symbol: "AAPL", Price: 150},
	})
	require.NoError(t, err)

	assert.Equal(t, 0.55, stats.Volatilities[0])
	assert.InDelta(t, DefaultBaseReturn-DefaultReturnPenalty*0.55, stats.Returns[0], 1e-15)
	assert.Equal(t, 0.2, stats.Returns[1])
}

func TestPriceTierModel_RejectsNonPositivePrice(t *testing.T) {
	model := NewPriceTierModel(DefaultModelParams())
	_, err := model.Estimate([]domain.Holding{{Symbol: "X", Price: 0}})
	assert.Error(t, err)
}

func TestModelParams_Validate(t *testing.T) {
	bad := -0.1
	tests := []struct {
		name   string
		modify func(p *ModelParams)
	}{
		{name: "zero base volatility", modify: func(p *ModelParams) { p.BaseVolatility = 0 }},
		{name: "negative tier volatility", modify: func(p *ModelParams) { p.TierVolatility = -1 }},
		{name: "nan return", modify: func(p *ModelParams) { p.BaseReturn = math.NaN() }},
		{name: "negative override volatility", modify: func(p *ModelParams) {
			p.Symbols = map[string]SymbolOverride{"X": {Volatility: &bad}}
		}},
	}

	assert.NoError(t, DefaultModelParams().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultModelParams()
			tt.modify(&p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestStaticProvider(t *testing.T) {
	provider := NewStaticProvider(map[string]AssetStatistics{
		" aapl ": {Return: 0.07, Volatility: 0.25},
	})

	stats, err := provider.Estimate([]domain.Holding{{Symbol: "AAPL", Price: 150}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.07}, stats.Returns)
	assert.Equal(t, []float64{0.25}, stats.Volatilities)

	_, err = provider.Estimate([]domain.Holding{{Symbol: "MSFT", Price: 320}})
	assert.ErrorContains(t, err, "MSFT")
}

func TestLoadModelParams(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		params, err := LoadModelParams("")
		require.NoError(t, err)
		assert.Equal(t, DefaultModelParams(), params)
	})

	t.Run("partial file keeps defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "model.yaml")
		content := "base_return: 0.1\nsymbols:\n  TSLA:\n    volatility: 0.55\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		params, err := LoadModelParams(path)
		require.NoError(t, err)
		assert.Equal(t, 0.1, params.BaseReturn)
		assert.Equal(t, DefaultReturnPenalty, params.ReturnPenalty)
		require.NotNil(t, params.Symbols["TSLA"].Volatility)
		assert.Equal(t, 0.55, *params.Symbols["TSLA"].Volatility)
		assert.Nil(t, params.Symbols["TSLA"].Return)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadModelParams(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "model.yaml")
		require.NoError(t, os.WriteFile(path, []byte("base_return: [oops"), 0o644))
		_, err := LoadModelParams(path)
		assert.Error(t, err)
	})

	t.Run("invalid values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "model.yaml")
		require.NoError(t, os.WriteFile(path, []byte("base_volatility: -0.1\n"), 0o644))
		_, err := LoadModelParams(path)
		assert.ErrorContains(t, err, "base_volatility")
	})
}
