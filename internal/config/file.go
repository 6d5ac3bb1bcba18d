package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a flat table of parameters from a TOML (.toml) or YAML
// (.yaml, .yml) file. Scalar values are converted to their string form.
func LoadFile(path string) (Parameters, error) {
	raw := map[string]any{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.DecodeFile(path, &raw); err != nil {
			return nil, fmt.Errorf("load parameters %q: %w", path, err)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load parameters %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse parameters %q: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("load parameters %q: unsupported extension %q", path, ext)
	}

	p := make(Parameters, len(raw))
	for k, v := range raw {
		switch v.(type) {
		case map[string]any, []any:
			return nil, &ParameterError{Name: normalise(k), Err: fmt.Errorf("%w: nested values are not supported", errMalformed)}
		}
		p.Set(k, fmt.Sprint(v))
	}
	return p, nil
}
