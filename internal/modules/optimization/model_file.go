package optimization

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadModelParams reads model parameters from a YAML file. Keys missing from
// the file keep their defaults. An empty path returns the defaults.
//
//	base_return: 0.08
//	return_penalty: 0.2
//	symbols:
//	  TSLA: {volatility: 0.55}
func LoadModelParams(path string) (ModelParams, error) {
	params := DefaultModelParams()
	if path == "" {
		return params, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ModelParams{}, fmt.Errorf("failed to read statistics model file: %w", err)
	}

	if err := yaml.Unmarshal(data, &params); err != nil {
		return ModelParams{}, fmt.Errorf("failed to parse statistics model file %s: %w", path, err)
	}

	if err := params.Validate(); err != nil {
		return ModelParams{}, fmt.Errorf("invalid statistics model file %s: %w", path, err)
	}

	return params, nil
}
