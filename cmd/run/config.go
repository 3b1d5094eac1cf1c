package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/jsvm/engine"
)

var validate = validator.New()

// config is the YAML file accepted by -config.
type config struct {
	// Wasm is the QuickJS reactor to load. The -wasm flag overrides it.
	Wasm   string        `yaml:"wasm" json:"wasm,omitempty" jsonschema:"description=Path to the QuickJS wasm reactor"`
	Engine engine.Config `yaml:"engine" json:"engine"`
	Log    logConfig     `yaml:"log" json:"log"`
}

type logConfig struct {
	Level       string `yaml:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,default=warn" validate:"omitempty,oneof=debug info warn error"`
	Development bool   `yaml:"development" json:"development,omitempty"`
}

func defaultConfig() *config {
	return &config{
		Engine: *engine.DefaultConfig(),
		Log:    logConfig{Level: "warn"},
	}
}

// loadConfig reads path over the defaults. An empty path returns the
// defaults.
func loadConfig(path string) (*config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *config) logger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if c.Log.Level != "" {
		lvl, err := zap.ParseAtomicLevel(c.Log.Level)
		if err != nil {
			return nil, err
		}
		zc.Level = lvl
	}
	return zc.Build()
}

func configSchema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(&config{})

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return out, nil
}
