package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for file extensions other than .toml,
// .yaml, .yml and .json.
var ErrUnsupportedFormat = errors.New("unsupported config format")

type format int

const (
	formatTOML format = iota
	formatYAML
	formatJSON
)

func formatOf(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return formatTOML, nil
	case ".yaml", ".yml":
		return formatYAML, nil
	case ".json":
		return formatJSON, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
}

// Decode parses data as the format implied by path. Fields missing from the
// document keep their default values.
func Decode(path string, data []byte) (Config, error) {
	f, err := formatOf(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch f {
	case formatTOML:
		err = toml.Unmarshal(data, &cfg)
	case formatYAML:
		err = yaml.Unmarshal(data, &cfg)
	case formatJSON:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return cfg.Normalized(), nil
}

// Encode renders cfg in the format implied by path.
func Encode(path string, cfg Config) ([]byte, error) {
	f, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	switch f {
	case formatTOML:
		var buf bytes.Buffer
		enc := toml.NewEncoder(&buf)
		enc.SetIndentTables(true)
		if err := enc.Encode(cfg); err != nil {
			return nil, fmt.Errorf("encode %s: %w", path, err)
		}
		return buf.Bytes(), nil
	case formatYAML:
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", path, err)
		}
		return data, nil
	default:
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", path, err)
		}
		return append(data, '\n'), nil
	}
}

// Load reads the file at path. A missing file is created with the defaults
// and the defaults are returned.
func Load(path string) (Config, error) {
	if _, err := formatOf(path); err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := Default()
		if err := Save(path, cfg); err != nil {
			return Config{}, err
		}
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Decode(path, data)
}

// Save writes cfg to path, creating parent directories as needed.
func Save(path string, cfg Config) error {
	data, err := Encode(path, cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
