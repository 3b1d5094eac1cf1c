package engine

import (
	"github.com/go-playground/validator/v10"

	"github.com/wippyai/jsvm/errors"
)

// validate is a package-level singleton; validator.New is expensive.
var validate = validator.New()

// Config holds configuration for loading a QuickJS reactor.
type Config struct {
	// CacheDir enables wazero's on-disk compilation cache when set.
	CacheDir string `yaml:"cache_dir" json:"cache_dir,omitempty" jsonschema:"description=Directory for the wazero compilation cache"`

	// HostModule and HostCallbackName name the import the reactor calls for
	// host functions.
	HostModule       string `yaml:"host_module" json:"host_module" jsonschema:"default=env" validate:"required,printascii"`
	HostCallbackName string `yaml:"host_callback" json:"host_callback" jsonschema:"default=qts_host_call_function" validate:"required,printascii"`

	// MemoryLimitPages sets the maximum memory in pages (64KB each).
	// 0 means the wazero default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32 `yaml:"memory_limit_pages" json:"memory_limit_pages,omitempty" jsonschema:"maximum=65536" validate:"lte=65536"`

	// InheritStdio routes the guest's stdout and stderr to the process.
	InheritStdio bool `yaml:"inherit_stdio" json:"inherit_stdio,omitempty"`
}

// DefaultConfig returns the configuration used when Load receives nil.
func DefaultConfig() *Config {
	return &Config{
		HostModule:       DefaultHostModule,
		HostCallbackName: DefaultHostCallbackName,
	}
}

// Validate checks the struct tags.
func (c *Config) Validate() error {
	if c == nil {
		return errors.InvalidInput(errors.PhaseConfig, "nil config")
	}
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "engine config validation failed")
	}
	return nil
}
