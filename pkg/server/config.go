package server

import "time"

// Config contains the HTTP server settings for both connectors.
//
// A port of 0 binds an ephemeral port, which is the recommended setting for
// tests so parallel fixtures never collide.
type Config struct {
	// Host is the bind address. Empty binds all interfaces.
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the application connector port.
	Port int `mapstructure:"port" validate:"min=0,max=65535" yaml:"port"`

	// AdminPort is the admin connector port (health checks, metrics).
	AdminPort int `mapstructure:"admin_port" validate:"min=0,max=65535" yaml:"admin_port"`

	// ReadTimeout is the maximum duration for reading a request
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the maximum time to wait for the next request
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown on Stop
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// applyDefaults fills zero timeout values. Ports default to 0 (ephemeral)
// on purpose.
func (c *Config) applyDefaults() {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 120 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// Configured is implemented by configuration types that carry HTTP server
// settings. The serve command queries it to build the server; configuration
// types that do not implement it get an all-defaults Config (ephemeral
// ports).
type Configured interface {
	ServerConfig() Config
}
