package api

import (
	"errors"
	"fmt"
	"time"
)

const (
	defaultHost            = "localhost"
	defaultPort            = 8080
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 15 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultMaxHeaderBytes  = 1 << 20
	defaultShutdownTimeout = 10 * time.Second

	defaultRateLimitPerSecond = 1000
	defaultRateLimitBurst     = 2000

	minPort = 1
	maxPort = 65535
)

// Config holds API server configuration
type Config struct {
	// Host is the server host (default: localhost)
	Host string

	// Port is the server port (default: 8080)
	Port int

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes
	WriteTimeout time.Duration

	// IdleTimeout is the maximum duration to wait for the next request
	IdleTimeout time.Duration

	// MaxHeaderBytes is the maximum size of request headers
	MaxHeaderBytes int

	// ShutdownTimeout is the graceful shutdown timeout
	ShutdownTimeout time.Duration

	// EnableRateLimit enables rate limiting middleware
	EnableRateLimit bool

	// RateLimitPerSecond is the number of requests allowed per second per IP
	RateLimitPerSecond float64

	// RateLimitBurst is the maximum burst size
	RateLimitBurst int
}

// DefaultConfig returns a default API server configuration
func DefaultConfig() *Config {
	return &Config{
		Host:               defaultHost,
		Port:               defaultPort,
		ReadTimeout:        defaultReadTimeout,
		WriteTimeout:       defaultWriteTimeout,
		IdleTimeout:        defaultIdleTimeout,
		MaxHeaderBytes:     defaultMaxHeaderBytes,
		ShutdownTimeout:    defaultShutdownTimeout,
		EnableRateLimit:    false,
		RateLimitPerSecond: defaultRateLimitPerSecond,
		RateLimitBurst:     defaultRateLimitBurst,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Port < minPort || c.Port > maxPort {
		return fmt.Errorf("port must be between %d and %d", minPort, maxPort)
	}
	if c.ReadTimeout <= 0 {
		return errors.New("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return errors.New("write timeout must be positive")
	}
	if c.IdleTimeout <= 0 {
		return errors.New("idle timeout must be positive")
	}
	if c.EnableRateLimit && c.RateLimitPerSecond <= 0 {
		return errors.New("rate limit per second must be positive")
	}
	return nil
}

// Address returns the host:port pair the server binds to
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
