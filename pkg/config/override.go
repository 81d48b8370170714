package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// DefaultPrefix is the namespace under which overrides are published when no
// custom prefix is given. The key "server.port" becomes the environment
// variable APP_SERVER_PORT.
const DefaultPrefix = "app"

// Override is a single configuration property forced at startup regardless
// of the loaded configuration source.
//
// Overrides are published into process-wide state (the process environment,
// using viper's env key mapping) before the application starts and must be
// fully reverted after it stops. They are therefore visible to every
// configuration factory in the process; running multiple fixtures
// concurrently with overlapping override keys is undefined and is the
// caller's responsibility to avoid.
type Override struct {
	// Key is the dotted configuration key, e.g. "server.port".
	Key string

	// Value is the raw string value merged over the configuration source.
	Value string

	// Prefix namespaces the override. Empty means DefaultPrefix.
	Prefix string
}

// NewOverride creates an override under the default prefix.
func NewOverride(key, value string) Override {
	return Override{Key: key, Value: value}
}

// NewPrefixedOverride creates an override under a custom prefix.
func NewPrefixedOverride(prefix, key, value string) Override {
	return Override{Key: key, Value: value, Prefix: prefix}
}

func (o Override) prefix() string {
	if o.Prefix == "" {
		return DefaultPrefix
	}
	return o.Prefix
}

// EnvVar returns the environment variable name the override is published
// under. The mapping matches the one the YAML factory configures on viper:
// uppercased prefix, dots replaced with underscores.
func (o Override) EnvVar() string {
	return envVarName(o.prefix(), o.Key)
}

func envVarName(prefix, key string) string {
	return strings.ToUpper(prefix + "_" + envKeyReplacer.Replace(key))
}

var envKeyReplacer = strings.NewReplacer(".", "_", "-", "_")

// overrideTable is the explicit shared table behind the process-wide
// override state. It records which dotted keys are currently applied per
// prefix so factories can merge them without re-deriving keys from the
// environment.
type overrideTable struct {
	mu      sync.Mutex
	applied map[string]map[string]string // prefix -> key -> value
}

var table = &overrideTable{applied: make(map[string]map[string]string)}

// ApplyOverrides publishes each override into process-wide state. Every
// override is applied independently; a failure on one does not short-circuit
// the rest, and all failures are joined into the returned error.
func ApplyOverrides(overrides []Override) error {
	var errs []error
	for _, o := range overrides {
		if err := applyOne(o); err != nil {
			errs = append(errs, fmt.Errorf("apply override %q: %w", o.Key, err))
		}
	}
	return errors.Join(errs...)
}

func applyOne(o Override) error {
	if o.Key == "" {
		return errors.New("override key must not be empty")
	}
	if err := os.Setenv(o.EnvVar(), o.Value); err != nil {
		return err
	}

	table.mu.Lock()
	defer table.mu.Unlock()
	byKey := table.applied[o.prefix()]
	if byKey == nil {
		byKey = make(map[string]string)
		table.applied[o.prefix()] = byKey
	}
	byKey[o.Key] = o.Value
	return nil
}

// RevertOverrides removes exactly the given overrides from process-wide
// state. Removing an override that is not present is a no-op, so revert is
// safe to call after a partial apply and safe to call more than once.
func RevertOverrides(overrides []Override) {
	for _, o := range overrides {
		os.Unsetenv(o.EnvVar())

		table.mu.Lock()
		if byKey := table.applied[o.prefix()]; byKey != nil {
			delete(byKey, o.Key)
			if len(byKey) == 0 {
				delete(table.applied, o.prefix())
			}
		}
		table.mu.Unlock()
	}
}

// visitOverrides calls fn for every override currently applied under the
// given prefix. Used by factories to merge overrides over the loaded source.
func visitOverrides(prefix string, fn func(key, value string)) {
	table.mu.Lock()
	defer table.mu.Unlock()
	for key, value := range table.applied[prefix] {
		fn(key, value)
	}
}
