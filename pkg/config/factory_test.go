package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Greeting string        `mapstructure:"greeting" validate:"required"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Tags     []string      `mapstructure:"tags"`
}

const testYAML = `
greeting: hello
timeout: 30s
tags: alpha,beta
`

func TestYAMLFactoryBuild(t *testing.T) {
	factory := NewYAMLFactory[testConfig](NewValidator(), "")

	cfg, err := factory.Build(BytesSourceProvider{Data: []byte(testYAML)}, "in-memory.yaml")
	require.NoError(t, err)

	assert.Equal(t, "hello", cfg.Greeting)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"alpha", "beta"}, cfg.Tags)
}

func TestYAMLFactoryBuildFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testYAML), 0600))

	factory := NewYAMLFactory[testConfig](NewValidator(), "")
	cfg, err := factory.Build(FileSourceProvider{}, path)
	require.NoError(t, err)
	assert.Equal(t, "hello", cfg.Greeting)
}

func TestYAMLFactoryMissingFile(t *testing.T) {
	factory := NewYAMLFactory[testConfig](nil, "")
	_, err := factory.Build(FileSourceProvider{}, filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestYAMLFactoryEmptyPathUsesNoSource(t *testing.T) {
	factory := NewYAMLFactory[testConfig](nil, "")
	cfg, err := factory.Build(nil, "")
	require.NoError(t, err)
	assert.Empty(t, cfg.Greeting)
}

func TestYAMLFactoryEnvironmentWinsOverSource(t *testing.T) {
	t.Setenv("APP_GREETING", "from-env")

	factory := NewYAMLFactory[testConfig](nil, "")
	cfg, err := factory.Build(BytesSourceProvider{Data: []byte(testYAML)}, "in-memory.yaml")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Greeting)
}

func TestYAMLFactoryOverridesWinOverEverything(t *testing.T) {
	t.Setenv("APP_GREETING", "from-env")

	overrides := []Override{NewOverride("greeting", "from-override")}
	require.NoError(t, ApplyOverrides(overrides))
	t.Cleanup(func() { RevertOverrides(overrides) })

	factory := NewYAMLFactory[testConfig](nil, "")
	cfg, err := factory.Build(BytesSourceProvider{Data: []byte(testYAML)}, "in-memory.yaml")
	require.NoError(t, err)
	assert.Equal(t, "from-override", cfg.Greeting)
}

func TestYAMLFactoryCustomPrefix(t *testing.T) {
	overrides := []Override{NewPrefixedOverride("custom", "greeting", "prefixed")}
	require.NoError(t, ApplyOverrides(overrides))
	t.Cleanup(func() { RevertOverrides(overrides) })

	// The default-prefix factory must not see the custom-prefix override.
	cfg, err := NewYAMLFactory[testConfig](nil, "").
		Build(BytesSourceProvider{Data: []byte(testYAML)}, "in-memory.yaml")
	require.NoError(t, err)
	assert.Equal(t, "hello", cfg.Greeting)

	cfg, err = NewYAMLFactory[testConfig](nil, "custom").
		Build(BytesSourceProvider{Data: []byte(testYAML)}, "in-memory.yaml")
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.Greeting)
}

func TestYAMLFactoryValidation(t *testing.T) {
	factory := NewYAMLFactory[testConfig](NewValidator(), "")
	_, err := factory.Build(BytesSourceProvider{Data: []byte("timeout: 5s\n")}, "in-memory.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Greeting")
}

func TestStaticFactoryReturnsSameObject(t *testing.T) {
	original := &testConfig{Greeting: "untouched"}

	factory := StaticFactoryFactory(original)(NewValidator(), DefaultPrefix)
	cfg, err := factory.Build(nil, "ignored")
	require.NoError(t, err)
	assert.Same(t, original, cfg)
}
