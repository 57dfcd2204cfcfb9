package orchestration

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadTriggers reads a trigger table from a YAML file keyed by domain
// agent. An empty path yields DefaultTriggers.
func LoadTriggers(path string) (TriggerTable, error) {
	if path == "" {
		return DefaultTriggers(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read triggers file %s: %w", path, err)
	}

	var t TriggerTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse triggers file %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("validate triggers file %s: %w", path, err)
	}
	return t, nil
}
