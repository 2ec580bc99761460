package config

import (
	"fmt"
	"os"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Values returns the lookup used to resolve credential values: the base
// lookup (the process environment when nil), falling back to the YAML
// values file when one is configured.
func Values(base envconfig.Lookuper, valuesFile string) (envconfig.Lookuper, error) {
	if base == nil {
		base = envconfig.OsLookuper()
	}

	if valuesFile == "" {
		return base, nil
	}

	content, err := os.ReadFile(valuesFile)
	if err != nil {
		return nil, fmt.Errorf("reading values file: %w", err)
	}

	values, err := ParseValues(content)
	if err != nil {
		return nil, fmt.Errorf("parsing values file %s: %w", valuesFile, err)
	}

	return envconfig.MultiLookuper(base, envconfig.MapLookuper(values)), nil
}

// ParseValues parses a flat YAML mapping of names to scalar values. Nested
// mappings and sequences are rejected. Parse errors do not echo document
// content, as the document holds secrets.
func ParseValues(content []byte) (map[string]string, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("values file is not a YAML mapping")
	}

	values := make(map[string]string, len(doc))
	for name, v := range doc {
		switch v := v.(type) {
		case nil:
			values[name] = ""
		case string:
			values[name] = v
		case bool, int, int64, uint64, float64:
			values[name] = fmt.Sprint(v)
		default:
			return nil, fmt.Errorf("value %q must be a scalar, got %T", name, v)
		}
	}

	return values, nil
}
