package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DeployConfig is the deployment-side configuration document. The core
// reads only the envelope fields below; everything else stays in Raw
// and is passed through to the codebase plugin untouched.
type DeployConfig struct {
	Codebase   string          `json:"codebase" yaml:"codebase" toml:"codebase"`
	Backend    string          `json:"backend" yaml:"backend" toml:"backend"`
	Device     string          `json:"device" yaml:"device" toml:"device"`
	InputShape []int           `json:"input_shape" yaml:"input_shape" toml:"input_shape"`
	Partition  PartitionConfig `json:"partition" yaml:"partition" toml:"partition"`

	Raw map[string]any `json:"-" yaml:"-" toml:"-"`
}

// PartitionConfig selects multi-part export.
type PartitionConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Type    string `json:"type" yaml:"type" toml:"type"`
}

// ModelConfig is the reference-model configuration document. Its schema
// is owned by the codebase plugins; the core treats it as opaque apart
// from the name.
type ModelConfig struct {
	Name string `json:"name" yaml:"name" toml:"name"`

	Raw map[string]any `json:"-" yaml:"-" toml:"-"`
}

// LoadDeploy reads a deployment configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func LoadDeploy(path string) (DeployConfig, error) {
	var cfg DeployConfig
	raw, err := load(path, &cfg)
	if err != nil {
		return cfg, err
	}
	cfg.Raw = raw
	return cfg, nil
}

// LoadModel reads a model configuration file based on its extension.
func LoadModel(path string) (ModelConfig, error) {
	var cfg ModelConfig
	raw, err := load(path, &cfg)
	if err != nil {
		return cfg, err
	}
	cfg.Raw = raw
	return cfg, nil
}

// load unmarshals path twice: once into the typed envelope and once
// into a generic map so unknown keys survive for the plugins.
func load(path string, v any) (map[string]any, error) {
	if path == "" {
		return nil, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw := map[string]any{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, v); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &raw); err != nil {
			return nil, err
		}
	case ".json":
		if err := json.Unmarshal(b, v); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, v); err != nil {
			return nil, err
		}
		if err := toml.Unmarshal(b, &raw); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return raw, nil
}

// String returns the string at a dotted key path in Raw, or def.
func (c ModelConfig) String(key, def string) string { return rawString(c.Raw, key, def) }

// Int returns the integer at a dotted key path in Raw, or def.
func (c ModelConfig) Int(key string, def int) int { return rawInt(c.Raw, key, def) }

// Float returns the float at a dotted key path in Raw, or def.
func (c ModelConfig) Float(key string, def float64) float64 { return rawFloat(c.Raw, key, def) }

// String returns the string at a dotted key path in Raw, or def.
func (c DeployConfig) String(key, def string) string { return rawString(c.Raw, key, def) }

// Int returns the integer at a dotted key path in Raw, or def.
func (c DeployConfig) Int(key string, def int) int { return rawInt(c.Raw, key, def) }

func rawLookup(raw map[string]any, key string) (any, bool) {
	cur := any(raw)
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func rawString(raw map[string]any, key, def string) string {
	if v, ok := rawLookup(raw, key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// rawInt tolerates the numeric types the three decoders produce.
func rawInt(raw map[string]any, key string, def int) int {
	v, ok := rawLookup(raw, key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}

func rawFloat(raw map[string]any, key string, def float64) float64 {
	v, ok := rawLookup(raw, key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return def
	}
}
