package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/structa-ai/verdict/internal/domain"
	"gopkg.in/yaml.v3"
)

// LoadPolicy reads a resolution policy YAML file. A missing file is not an
// error: the compiled defaults apply. A present but malformed file is.
func LoadPolicy(path string) (*domain.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.DefaultPolicy(), nil
		}
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}

	policy := domain.DefaultPolicy()
	if err := yaml.Unmarshal(data, policy); err != nil {
		return nil, fmt.Errorf("parse policy %s: %w", path, err)
	}

	for name, v := range policy.Thresholds {
		if v < 0 || v > 1 {
			return nil, fmt.Errorf("policy %s: threshold %q out of range [0,1]: %v", path, name, v)
		}
	}
	for st, v := range policy.SourceReliability {
		if v < 0 || v > 1 {
			return nil, fmt.Errorf("policy %s: reliability for %q out of range [0,1]: %v", path, st, v)
		}
	}
	return policy, nil
}
