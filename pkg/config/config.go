// Package config loads YAML configuration files with environment variable
// expansion and an environment overlay.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Validator is an interface for configuration validation.
type Validator interface {
	Validate() error
}

type loadOptions struct {
	envPrefix string
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

// WithEnvPrefix overlays environment variables starting with prefix on top
// of the file. A double underscore separates nesting levels, so with prefix
// "APP_" the variable APP_HTTP__PORT sets http.port.
func WithEnvPrefix(prefix string) LoadOption {
	return func(o *loadOptions) {
		o.envPrefix = prefix
	}
}

// expandedFile is a file provider that runs os.ExpandEnv over the raw bytes.
type expandedFile struct {
	*file.File
}

func (f expandedFile) ReadBytes() ([]byte, error) {
	data, err := f.File.ReadBytes()
	if err != nil {
		return nil, err
	}
	return []byte(os.ExpandEnv(string(data))), nil
}

// Load loads configuration from a YAML file into target. Fields absent from
// the file keep the values target already holds.
func Load[T any](filename string, target *T, opts ...LoadOption) error {
	var lo loadOptions
	for _, opt := range opts {
		opt(&lo)
	}

	k := koanf.New(".")
	if err := k.Load(expandedFile{file.Provider(filename)}, yaml.Parser()); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	if lo.envPrefix != "" {
		prefix := lo.envPrefix
		cb := func(s string) string {
			return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(s, prefix), "__", "."))
		}
		if err := k.Load(env.Provider(prefix, ".", cb), nil); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := k.UnmarshalWithConf("", target, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}

	return nil
}

// LoadWithDefaults loads configuration with fallback to a default file.
func LoadWithDefaults[T any](filename, defaultFile string, target *T, opts ...LoadOption) error {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		if defaultFile != "" {
			return Load(defaultFile, target, opts...)
		}
		return fmt.Errorf("config file not found: %s", filename)
	}
	return Load(filename, target, opts...)
}

// MustLoad loads configuration and panics on failure.
func MustLoad[T any](filename string, target *T, opts ...LoadOption) {
	if err := Load(filename, target, opts...); err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
}
