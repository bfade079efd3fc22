// Package storage reads and writes the files this service keeps on disk:
// the JSON/YAML configuration file and the OAuth token file.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/valter-silva-au/paperless-tasks/pkg/models"
)

// IsYAML reports whether path should be encoded as YAML rather than JSON.
func IsYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// ReadConfigDocument returns the raw configuration document as generic
// JSON values (maps, slices, strings, numbers, booleans). YAML files are
// normalised to the same shape. A missing file yields os.ErrNotExist.
func ReadConfigDocument(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	// Round-trip through JSON so YAML-only types (int, time) look exactly
	// like what encoding/json would have produced.
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("normalising %s: %w", path, err)
	}
	var out any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("normalising %s: %w", path, err)
	}
	return out, nil
}

// ReadStatusMap extracts STATUS_LABEL_TO_ID from the configuration file,
// preserving the order labels appear in. The boolean is false when the file
// or the key is absent.
func ReadStatusMap(path string) (models.StatusMap, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.StatusMap{}, false, nil
		}
		return models.StatusMap{}, false, err
	}
	var wrapper struct {
		Map *models.StatusMap `yaml:"STATUS_LABEL_TO_ID"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return models.StatusMap{}, false, fmt.Errorf("parsing STATUS_LABEL_TO_ID in %s: %w", path, err)
	}
	if wrapper.Map == nil {
		return models.StatusMap{}, false, nil
	}
	return *wrapper.Map, true, nil
}

// EncodeConfig renders cfg in the format implied by path's extension.
func EncodeConfig(path string, cfg models.Config) ([]byte, error) {
	if IsYAML(path) {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return nil, fmt.Errorf("encoding config as yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encoding config as json: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteConfigFile atomically replaces the configuration file with cfg.
func WriteConfigFile(path string, cfg models.Config) error {
	data, err := EncodeConfig(path, cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	return WriteFileAtomic(path, data, 0o600)
}

func splitPath(path string) (dir, base string) {
	return filepath.Dir(path), filepath.Base(path)
}
