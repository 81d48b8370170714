package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Factory builds a configuration object of type C from a source.
type Factory[C any] interface {
	// Build loads, merges, and validates the configuration. The path
	// identifies the source within the provider; an empty path means the
	// factory should produce a zero-source configuration (defaults plus
	// environment and overrides only).
	Build(provider SourceProvider, path string) (C, error)
}

// FactoryFactory produces the Factory used to load configuration. The
// bootstrap carries one so callers (notably the test harness) can swap the
// file-based factory for a static one.
type FactoryFactory[C any] func(validate *validator.Validate, propertyPrefix string) Factory[C]

// DefaultFactoryFactory returns the standard YAML factory constructor.
func DefaultFactoryFactory[C any]() FactoryFactory[C] {
	return func(validate *validator.Validate, propertyPrefix string) Factory[C] {
		return NewYAMLFactory[C](validate, propertyPrefix)
	}
}

// YAMLFactory loads YAML configuration through viper.
//
// Sources are merged in precedence order (highest first):
//  1. Applied overrides (see ApplyOverrides)
//  2. Environment variables (<PREFIX>_*, dots replaced by underscores)
//  3. The configuration source itself
type YAMLFactory[C any] struct {
	validate       *validator.Validate
	propertyPrefix string
}

// NewYAMLFactory creates a YAML factory. A nil validate skips struct
// validation. An empty propertyPrefix falls back to DefaultPrefix.
func NewYAMLFactory[C any](validate *validator.Validate, propertyPrefix string) *YAMLFactory[C] {
	if propertyPrefix == "" {
		propertyPrefix = DefaultPrefix
	}
	return &YAMLFactory[C]{validate: validate, propertyPrefix: propertyPrefix}
}

func (f *YAMLFactory[C]) Build(provider SourceProvider, path string) (C, error) {
	var cfg C

	v := viper.New()
	v.SetConfigType("yaml")

	// Environment variable support, e.g. APP_SERVER_PORT=0.
	v.SetEnvPrefix(strings.ToUpper(f.propertyPrefix))
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	if path != "" {
		if provider == nil {
			provider = FileSourceProvider{}
		}
		src, err := provider.Open(path)
		if err != nil {
			return cfg, err
		}
		defer src.Close()

		if err := v.ReadConfig(src); err != nil {
			return cfg, fmt.Errorf("failed to read configuration %q: %w", path, err)
		}
	}

	// Overrides win over both the source and plain environment variables.
	visitOverrides(f.propertyPrefix, func(key, value string) {
		v.Set(key, value)
	})

	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if f.validate != nil {
		if err := Validate(f.validate, cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// StaticFactory always returns a caller-supplied configuration object,
// untouched: no parsing, no overrides, no validation. The harness installs
// one for explicitly configured fixtures so the caller's object is returned
// reference-identical.
type StaticFactory[C any] struct {
	value C
}

// NewStaticFactory wraps a pre-built configuration object.
func NewStaticFactory[C any](value C) StaticFactory[C] {
	return StaticFactory[C]{value: value}
}

func (f StaticFactory[C]) Build(SourceProvider, string) (C, error) {
	return f.value, nil
}

// StaticFactoryFactory returns a FactoryFactory that ignores its arguments
// and produces a StaticFactory for the given object.
func StaticFactoryFactory[C any](value C) FactoryFactory[C] {
	return func(*validator.Validate, string) Factory[C] {
		return NewStaticFactory(value)
	}
}

// decodeHooks returns the combined mapstructure decode hook used when
// unmarshalling configuration. Durations may be written as "30s", "5m" etc.
func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// durationDecodeHook converts strings and numbers to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}
