// Package config loads the preview service configuration from environment
// variables, applies defaults and validates the result on startup.
//
// Every setting lives at a "section.key" path taken from the toml tags. The
// environment variable for a path is the path upper-cased with dots
// replaced by underscores, so preview.max_rows is PREVIEW_MAX_ROWS.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Config holds all service configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Preview PreviewConfig `toml:"preview"`
	Logging LoggingConfig `toml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `toml:"host" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `toml:"port" envAlt:"PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 15s)
	ReadTimeout time.Duration `toml:"read_timeout" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 30s)
	WriteTimeout time.Duration `toml:"write_timeout" default:"30s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `toml:"idle_timeout" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown (default: 10s)
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" default:"10s"`

	// RequestTimeout is the middleware timeout for requests (default: 30s)
	RequestTimeout time.Duration `toml:"request_timeout" default:"30s"`
}

// PreviewConfig holds CSV preview limits and reader defaults.
type PreviewConfig struct {
	// MaxBodySize is the largest accepted upload in bytes (default: 10MB)
	MaxBodySize int64 `toml:"max_body_size" default:"10485760"`

	// DefaultRows is the row limit when the request sets none (default: 100)
	DefaultRows int `toml:"default_rows" default:"100"`

	// MaxRows caps the limit a request may ask for (default: 1000)
	MaxRows int `toml:"max_rows" default:"1000"`

	// InferRows is how many rows feed column type inference (default: 20)
	InferRows int `toml:"infer_rows" default:"20"`

	// HasHeader is the header mode when the request does not say (default: true)
	HasHeader bool `toml:"has_header" default:"true"`

	// NullValues is a CSV list of raw values treated as null.
	// Unset means only the empty string.
	NullValues []string `toml:"null_values"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `toml:"level" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `toml:"format" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, "SERVER_REQUEST_TIMEOUT must be positive")
	}

	if c.Preview.MaxBodySize <= 0 {
		errs = append(errs, "PREVIEW_MAX_BODY_SIZE must be positive")
	}
	if c.Preview.MaxRows <= 0 {
		errs = append(errs, "PREVIEW_MAX_ROWS must be positive")
	}
	if c.Preview.DefaultRows <= 0 || c.Preview.DefaultRows > c.Preview.MaxRows {
		errs = append(errs, fmt.Sprintf("PREVIEW_DEFAULT_ROWS (%d) must be 1-%d", c.Preview.DefaultRows, c.Preview.MaxRows))
	}
	if c.Preview.InferRows < 0 {
		errs = append(errs, "PREVIEW_INFER_ROWS must be non-negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// String returns a compact representation of the config for logging.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Server: {Addr: %q}, Preview: {MaxBodySize: %d, MaxRows: %d, HasHeader: %v}, Logging: {Level: %q, Format: %q}}",
		c.Server.Addr(), c.Preview.MaxBodySize, c.Preview.MaxRows, c.Preview.HasHeader, c.Logging.Level, c.Logging.Format)
}
