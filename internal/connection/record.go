// internal/connection/record.go
package connection

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"smartwheel/internal/model"
)

// SaveRecord writes the config to path. The extension picks the format:
// .yaml/.yml for YAML, anything else JSON.
func SaveRecord(path string, config model.ConnectionConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(config.Record())
	} else {
		data, err = json.MarshalIndent(config.Record(), "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode connection record: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create record directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write connection record: %w", err)
	}
	return nil
}

// LoadRecord reads a config previously written by SaveRecord
func LoadRecord(path string) (model.ConnectionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.ConnectionConfig{}, err
	}

	var record model.ConnectionRecord
	if isYAML(path) {
		err = yaml.Unmarshal(data, &record)
	} else {
		err = json.Unmarshal(data, &record)
	}
	if err != nil {
		return model.ConnectionConfig{}, fmt.Errorf("failed to decode connection record %s: %w", path, err)
	}

	return record.Config()
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
