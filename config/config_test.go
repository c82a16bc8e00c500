package config

import (
	stderrors "errors"
	"testing"
	"time"

	"ytdl2api/pkg/constants"
	"ytdl2api/pkg/errors"
)

const testProxyKey = "abcdef0123456789"

// clearEnv 清空所有相关环境变量, 保证测试不受宿主环境影响
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "READ_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT",
		"APIKEY",
		"PROXY_API_KEY", "PROXY_API_URL", "PROXY_COUNTRY", "PROXY_PAGE_SIZE",
		"POOL_TTL_HOURS", "POOL_FILE", "PROBE_URL", "PROBE_TIMEOUT",
		"VALIDATE_CONCURRENCY", "FAILURE_THRESHOLD", "REFRESH_TIMEOUT",
		"DOWNLOAD_DIR", "MAX_PARALLEL_DOWNLOADS", "DOWNLOAD_RETRIES",
		"RATE_LIMIT", "RATE_BURST",
	} {
		t.Setenv(key, "")
	}
}

func TestNewConfigDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROXY_API_KEY", testProxyKey)

	cfg, err := NewConfig()
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}

	if cfg.Server.Port != constants.DefaultPort {
		t.Errorf("port: got %q, want %q", cfg.Server.Port, constants.DefaultPort)
	}
	if cfg.Provider.BaseURL != constants.DefaultProxyAPIURL {
		t.Errorf("provider url: got %q", cfg.Provider.BaseURL)
	}
	if cfg.Provider.ApiKey != testProxyKey {
		t.Errorf("provider key not loaded")
	}
	if cfg.Pool.TTL != constants.DefaultPoolTTL {
		t.Errorf("pool ttl: got %v, want %v", cfg.Pool.TTL, constants.DefaultPoolTTL)
	}
	if cfg.Pool.FailureThreshold != constants.DefaultFailureThreshold {
		t.Errorf("failure threshold: got %d", cfg.Pool.FailureThreshold)
	}
	if cfg.Download.MaxParallel != constants.DefaultMaxParallel {
		t.Errorf("max parallel: got %d", cfg.Download.MaxParallel)
	}
	if cfg.Download.Dir != constants.DefaultDownloadDir {
		t.Errorf("download dir: got %q", cfg.Download.Dir)
	}
}

func TestNewConfigOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROXY_API_KEY", testProxyKey)
	t.Setenv("PORT", "9090")
	t.Setenv("POOL_TTL_HOURS", "6")
	t.Setenv("PROBE_TIMEOUT", "10s")
	t.Setenv("FAILURE_THRESHOLD", "5")
	t.Setenv("MAX_PARALLEL_DOWNLOADS", "4")
	t.Setenv("PROXY_COUNTRY", "DE")

	cfg, err := NewConfig()
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("port override ignored: %q", cfg.Server.Port)
	}
	if cfg.Pool.TTL != 6*time.Hour {
		t.Errorf("ttl override ignored: %v", cfg.Pool.TTL)
	}
	if cfg.Pool.ProbeTimeout != 10*time.Second {
		t.Errorf("probe timeout override ignored: %v", cfg.Pool.ProbeTimeout)
	}
	if cfg.Pool.FailureThreshold != 5 {
		t.Errorf("threshold override ignored: %d", cfg.Pool.FailureThreshold)
	}
	if cfg.Download.MaxParallel != 4 {
		t.Errorf("parallel override ignored: %d", cfg.Download.MaxParallel)
	}
	if cfg.Provider.Country != "DE" {
		t.Errorf("country override ignored: %q", cfg.Provider.Country)
	}
}

func TestNewConfigMissingProxyKey(t *testing.T) {
	clearEnv(t)

	_, err := NewConfig()
	if err == nil {
		t.Fatal("expected error without PROXY_API_KEY")
	}
	if !stderrors.Is(err, errors.ErrConfigValidation) {
		t.Fatalf("expected ErrConfigValidation, got %v", err)
	}
}

func TestNewConfigInvalidPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROXY_API_KEY", testProxyKey)
	t.Setenv("PORT", "not-a-port")

	if _, err := NewConfig(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestNewConfigInvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROXY_API_KEY", testProxyKey)
	t.Setenv("POOL_TTL_HOURS", "twelve")
	t.Setenv("PROBE_TIMEOUT", "soon")
	t.Setenv("RATE_LIMIT", "fast")

	cfg, err := NewConfig()
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}

	if cfg.Pool.TTL != constants.DefaultPoolTTL {
		t.Errorf("invalid ttl must fall back to default, got %v", cfg.Pool.TTL)
	}
	if cfg.Pool.ProbeTimeout != constants.DefaultProbeTimeout {
		t.Errorf("invalid timeout must fall back to default, got %v", cfg.Pool.ProbeTimeout)
	}
	if cfg.Download.RateLimit != constants.DefaultRateLimit {
		t.Errorf("invalid rate must fall back to default, got %v", cfg.Download.RateLimit)
	}
}
