// Package config provides centralized configuration management for the notes API.
// It loads configuration from CLI flags and environment variables, validates it,
// and provides sensible defaults.
//
// CLI flags switch optional surfaces off (--no-mcp, --no-ratelimit).
// Environment variables tune the server.
package config

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kuitang/notes-api/internal/ratelimit"
)

const (
	defaultListenAddr      = ":8080"
	defaultLogLevel        = "info"
	defaultMaxBodyBytes    = 1 << 20
	defaultShutdownTimeout = 10 * time.Second
)

var validLogLevels = []string{"debug", "info", "warn", "warning", "error"}

// Config holds all application configuration.
type Config struct {
	// Server settings
	ListenAddr      string
	LogLevel        string
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration

	// Rate limiting
	RateLimitConfig ratelimit.Config
	// TrustForwardedFor keys clients on X-Forwarded-For. Only safe behind a
	// proxy that overwrites the header.
	TrustForwardedFor bool

	// Optional surfaces (controlled by CLI flags, not env vars)
	NoMCP       bool // If true, /mcp is not mounted (--no-mcp)
	NoRateLimit bool // If true, requests are not rate limited (--no-ratelimit)
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// ParseFlags parses CLI flags and returns them. Call before LoadConfig.
func ParseFlags() (noMCP, noRateLimit bool, addr string) {
	// flag.CommandLine exits on parse errors.
	noMCP, noRateLimit, addr, _ = parseFlags(flag.CommandLine, os.Args[1:])
	return noMCP, noRateLimit, addr
}

func parseFlags(fs *flag.FlagSet, args []string) (noMCP, noRateLimit bool, addr string, err error) {
	fs.BoolVar(&noMCP, "no-mcp", false, "Do not mount the MCP endpoint at /mcp")
	fs.BoolVar(&noRateLimit, "no-ratelimit", false, "Disable per-client rate limiting")
	fs.StringVar(&addr, "addr", "", "Listen address (default :8080, overrides LISTEN_ADDR env var)")
	err = fs.Parse(args)
	return noMCP, noRateLimit, addr, err
}

// LoadConfig loads configuration from environment variables and CLI flag values.
// The addr flag overrides the LISTEN_ADDR env var if non-empty.
func LoadConfig(noMCP, noRateLimit bool, addr string) (*Config, error) {
	cfg := &Config{
		NoMCP:       noMCP,
		NoRateLimit: noRateLimit,
	}

	cfg.ListenAddr = getEnvOrDefault("LISTEN_ADDR", defaultListenAddr)
	if addr = strings.TrimSpace(addr); addr != "" {
		cfg.ListenAddr = addr
	}
	cfg.LogLevel = strings.ToLower(getEnvOrDefault("LOG_LEVEL", defaultLogLevel))
	cfg.MaxBodyBytes = parseInt64OrDefault("MAX_BODY_BYTES", defaultMaxBodyBytes)
	cfg.ShutdownTimeout = parseDurationOrDefault("SHUTDOWN_TIMEOUT", defaultShutdownTimeout)

	cfg.RateLimitConfig = ratelimit.Config{
		RPS:             parseFloat64OrDefault("RATE_LIMIT_RPS", ratelimit.DefaultConfig.RPS),
		Burst:           parseIntOrDefault("RATE_LIMIT_BURST", ratelimit.DefaultConfig.Burst),
		CleanupInterval: parseDurationOrDefault("RATE_LIMIT_CLEANUP_INTERVAL", ratelimit.DefaultConfig.CleanupInterval),
	}

	cfg.TrustForwardedFor = parseBoolOrDefault("RATE_LIMIT_TRUST_FORWARDED", false)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all configuration values are usable.
func (c *Config) Validate() error {
	var errs []string

	if strings.TrimSpace(c.ListenAddr) == "" {
		errs = append(errs, "LISTEN_ADDR must not be empty")
	}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL must be one of %s", strings.Join(validLogLevels, ", ")))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, "MAX_BODY_BYTES must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, "SHUTDOWN_TIMEOUT must be positive")
	}

	// Rate limit settings only matter when the limiter is mounted.
	if !c.NoRateLimit {
		if c.RateLimitConfig.RPS <= 0 {
			errs = append(errs, "RATE_LIMIT_RPS must be positive")
		}
		if c.RateLimitConfig.Burst <= 0 {
			errs = append(errs, "RATE_LIMIT_BURST must be positive")
		}
		if c.RateLimitConfig.CleanupInterval <= 0 {
			errs = append(errs, "RATE_LIMIT_CLEANUP_INTERVAL must be positive")
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}

	return nil
}

// PrintStartupSummary prints a human-readable summary of the configuration to stderr.
func (c *Config) PrintStartupSummary() {
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "notes-api server starting...")
	fmt.Fprintf(os.Stderr, "  Listen:    %s\n", c.ListenAddr)
	fmt.Fprintf(os.Stderr, "  Log:       %s\n", c.LogLevel)
	fmt.Fprintf(os.Stderr, "  Body max:  %d bytes\n", c.MaxBodyBytes)

	if c.NoMCP {
		fmt.Fprintln(os.Stderr, "  MCP:       disabled (--no-mcp)")
	} else {
		fmt.Fprintln(os.Stderr, "  MCP:       /mcp (Streamable HTTP)")
	}

	if c.NoRateLimit {
		fmt.Fprintln(os.Stderr, "  Limits:    disabled (--no-ratelimit)")
	} else {
		fmt.Fprintf(os.Stderr, "  Limits:    %.1f rps, burst %d per client\n", c.RateLimitConfig.RPS, c.RateLimitConfig.Burst)
		if c.TrustForwardedFor {
			fmt.Fprintln(os.Stderr, "  Clients:   keyed by X-Forwarded-For")
		}
	}
	fmt.Fprintln(os.Stderr, "")
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := getEnvOrDefault(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseInt64OrDefault(key string, defaultValue int64) int64 {
	value := getEnvOrDefault(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloat64OrDefault(key string, defaultValue float64) float64 {
	value := getEnvOrDefault(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	value := getEnvOrDefault(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := getEnvOrDefault(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
