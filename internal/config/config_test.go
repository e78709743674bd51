package config

import (
	"errors"
	"flag"
	"io"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/kuitang/notes-api/internal/ratelimit"
)

func validTestConfig() Config {
	return Config{
		ListenAddr:      ":8080",
		LogLevel:        "info",
		MaxBodyBytes:    1 << 20,
		ShutdownTimeout: 5 * time.Second,
		RateLimitConfig: ratelimit.DefaultConfig,
	}
}

// clearEnv blanks every variable LoadConfig reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	for _, key := range []string{
		"LISTEN_ADDR", "LOG_LEVEL", "MAX_BODY_BYTES", "SHUTDOWN_TIMEOUT",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "RATE_LIMIT_CLEANUP_INTERVAL",
		"RATE_LIMIT_TRUST_FORWARDED",
	} {
		t.Setenv(key, "")
	}
}

func TestValidate_DefaultsPass(t *testing.T) {
	t.Parallel()
	cfg := validTestConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}
}

func testValidate_ReportsEveryProblem(t *rapid.T) {
	cfg := validTestConfig()
	cfg.MaxBodyBytes = -rapid.Int64Range(0, 1<<20).Draw(t, "body")
	cfg.ShutdownTimeout = -time.Duration(rapid.Int64Range(0, int64(time.Hour)).Draw(t, "shutdown"))
	cfg.RateLimitConfig.RPS = -rapid.Float64Range(0, 100).Draw(t, "rps")
	cfg.RateLimitConfig.Burst = -rapid.IntRange(0, 100).Draw(t, "burst")
	cfg.LogLevel = rapid.SampledFrom([]string{"verbose", "trace", "", "INFO"}).Draw(t, "level")

	err := cfg.Validate()
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	msg := err.Error()
	for _, token := range []string{"MAX_BODY_BYTES", "SHUTDOWN_TIMEOUT", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "LOG_LEVEL"} {
		if !strings.Contains(msg, token) {
			t.Fatalf("expected validation error mentioning %q, got: %v", token, err)
		}
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testValidate_ReportsEveryProblem)
}

func TestValidate_RateLimitIgnoredWhenDisabled(t *testing.T) {
	t.Parallel()
	cfg := validTestConfig()
	cfg.NoRateLimit = true
	cfg.RateLimitConfig = ratelimit.Config{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("rate limit settings should not matter with --no-ratelimit: %v", err)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(false, false, "")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.LogLevel != "info" || cfg.MaxBodyBytes != 1<<20 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}
	if cfg.RateLimitConfig != ratelimit.DefaultConfig {
		t.Fatalf("RateLimitConfig = %+v", cfg.RateLimitConfig)
	}
}

func TestLoadConfig_EnvAndFlagOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LISTEN_ADDR", ":9000")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("MAX_BODY_BYTES", "4096")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "7")
	t.Setenv("RATE_LIMIT_CLEANUP_INTERVAL", "5m")

	cfg, err := LoadConfig(true, false, "")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.ListenAddr != ":9000" || cfg.LogLevel != "debug" || cfg.MaxBodyBytes != 4096 || cfg.ShutdownTimeout != 3*time.Second {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	want := ratelimit.Config{RPS: 2.5, Burst: 7, CleanupInterval: 5 * time.Minute}
	if cfg.RateLimitConfig != want {
		t.Fatalf("RateLimitConfig = %+v, want %+v", cfg.RateLimitConfig, want)
	}
	if !cfg.NoMCP {
		t.Fatal("NoMCP flag not carried into config")
	}

	cfg, err = LoadConfig(false, false, "127.0.0.1:7000")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:7000" {
		t.Fatalf("--addr should override LISTEN_ADDR, got %q", cfg.ListenAddr)
	}
}

func TestLoadConfig_InvalidValuesRejected(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_BODY_BYTES", "0")
	t.Setenv("LOG_LEVEL", "loud")

	_, err := LoadConfig(false, false, "")
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) || len(validationErr.Errors) != 2 {
		t.Fatalf("expected two validation errors, got %v", err)
	}
}

func TestLoadConfig_TrustForwardedFor(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(false, false, "")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.TrustForwardedFor {
		t.Fatal("X-Forwarded-For must not be trusted by default")
	}

	t.Setenv("RATE_LIMIT_TRUST_FORWARDED", "true")
	cfg, err = LoadConfig(false, false, "")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if !cfg.TrustForwardedFor {
		t.Fatal("RATE_LIMIT_TRUST_FORWARDED=true not applied")
	}

	t.Setenv("RATE_LIMIT_TRUST_FORWARDED", "maybe")
	cfg, err = LoadConfig(false, false, "")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.TrustForwardedFor {
		t.Fatal("unparseable RATE_LIMIT_TRUST_FORWARDED should fall back to false")
	}
}

func TestParseFlags(t *testing.T) {
	t.Parallel()
	fs := flag.NewFlagSet("notes-api", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	noMCP, noRateLimit, addr, err := parseFlags(fs, []string{"--no-mcp", "--addr", ":7777"})
	if err != nil {
		t.Fatalf("parseFlags failed: %v", err)
	}
	if !noMCP || noRateLimit || addr != ":7777" {
		t.Fatalf("unexpected flags: noMCP=%v noRateLimit=%v addr=%q", noMCP, noRateLimit, addr)
	}

	fs = flag.NewFlagSet("notes-api", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if _, _, _, err := parseFlags(fs, []string{"--bogus"}); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

func TestHelperParsers_DefaultOnBadInput(t *testing.T) {
	t.Setenv("CFG_TEST_INT", "not-an-int")
	t.Setenv("CFG_TEST_FLOAT", "not-a-float")
	t.Setenv("CFG_TEST_DUR", "not-a-duration")
	if got := parseIntOrDefault("CFG_TEST_INT", 7); got != 7 {
		t.Fatalf("parseIntOrDefault fallback mismatch: got=%d want=7", got)
	}
	if got := parseInt64OrDefault("CFG_TEST_INT", 9); got != 9 {
		t.Fatalf("parseInt64OrDefault fallback mismatch: got=%d want=9", got)
	}
	if got := parseFloat64OrDefault("CFG_TEST_FLOAT", 3.5); got != 3.5 {
		t.Fatalf("parseFloat64OrDefault fallback mismatch: got=%v want=3.5", got)
	}
	if got := parseDurationOrDefault("CFG_TEST_DUR", 2*time.Minute); got != 2*time.Minute {
		t.Fatalf("parseDurationOrDefault fallback mismatch: got=%v want=%v", got, 2*time.Minute)
	}
}

func TestGetEnvOrDefault_TrimsWhitespace(t *testing.T) {
	t.Setenv("CFG_TEST_STR", "   value   ")
	if got := getEnvOrDefault("CFG_TEST_STR", "fallback"); got != "value" {
		t.Fatalf("getEnvOrDefault trim mismatch: got=%q want=%q", got, "value")
	}
	t.Setenv("CFG_TEST_STR", "   ")
	if got := getEnvOrDefault("CFG_TEST_STR", "fallback"); got != "fallback" {
		t.Fatalf("blank value should fall back, got %q", got)
	}
}
