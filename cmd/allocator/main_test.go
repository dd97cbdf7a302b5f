package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/allocator/internal/version"
)

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("STATISTICS_MODEL_FILE", "")
	t.Setenv("DEFAULT_PORTFOLIO_FILE", "")

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, _, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "allocator version "+version.Version+"\n", out)
}

func TestOptimizeCommand_DefaultPortfolio(t *testing.T) {
	out, _, err := run(t, "", "optimize", "--risk-tolerance", "0.5")
	require.NoError(t, err)

	var result struct {
		Portfolio     map[string]json.RawMessage `json:"portfolio"`
		RiskTolerance float64                    `json:"risk_tolerance"`
		Capital       float64                    `json:"capital"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Len(t, result.Portfolio, 6)
	assert.Contains(t, result.Portfolio, "GOOG")
	assert.Equal(t, 0.5, result.RiskTolerance)
	assert.InDelta(t, 322400.0, result.Capital, 1e-6)
}

func TestOptimizeCommand_PortfolioSources(t *testing.T) {
	portfolio := `{"AAA": {"shares": 10, "price": 100}, "BBB": {"shares": 10, "price": 100}}`

	t.Run("stdin", func(t *testing.T) {
		out, _, err := run(t, portfolio, "optimize", "-r", "1", "--portfolio", "-", "--whole-shares")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "{"))
		assert.Contains(t, out, `"AAA"`)
		assert.Less(t, strings.Index(out, `"AAA"`), strings.Index(out, `"BBB"`))
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "portfolio.json")
		require.NoError(t, os.WriteFile(path, []byte(portfolio), 0o644))

		out, _, err := run(t, "", "optimize", "-r", "1", "-p", path)
		require.NoError(t, err)
		assert.Contains(t, out, `"BBB"`)
	})
}

func TestOptimizeCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing risk tolerance", []string{"optimize"}},
		{"zero risk tolerance", []string{"optimize", "-r", "0"}},
		{"missing file", []string{"optimize", "-r", "1", "-p", filepath.Join(os.TempDir(), "does-not-exist.json")}},
		{"bad weights", []string{"optimize", "-r", "1", "--min-weight", "0.5", "--max-weight", "0.2"}},
		{"unexpected argument", []string{"optimize", "-r", "1", "extra"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, "", tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestFrontierCommand(t *testing.T) {
	out, _, err := run(t, "", "frontier", "--tolerances", "0.1,1,10")
	require.NoError(t, err)

	var points []struct {
		RiskTolerance  float64 `json:"risk_tolerance"`
		ExpectedReturn float64 `json:"expected_return"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &points))
	require.Len(t, points, 3)
	assert.Equal(t, 0.1, points[0].RiskTolerance)
	assert.Equal(t, 10.0, points[2].RiskTolerance)
	assert.LessOrEqual(t, points[0].ExpectedReturn, points[2].ExpectedReturn+1e-9)

	_, _, err = run(t, "", "frontier", "--tolerances", "1,-1")
	assert.Error(t, err)
}
