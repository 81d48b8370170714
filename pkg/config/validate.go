package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// NewValidator returns the validator instance used for configuration
// structs. Struct fields opt in via `validate` tags, e.g.
// `validate:"required,min=1,max=65535"`.
func NewValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// Validate runs struct-tag validation on cfg. Configuration types without
// any struct tags pass trivially; non-struct configuration types (maps,
// primitives) are skipped rather than rejected.
func Validate(validate *validator.Validate, cfg any) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		// Not a struct; nothing to validate.
		return nil
	}

	return fmt.Errorf("configuration validation failed: %w", err)
}

// Save writes the configuration to path as YAML, creating parent
// directories as needed.
func Save(cfg any, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
