package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultRuntimeConfig(t *testing.T) {
	cfg := DefaultRuntimeConfig()

	if cfg.HTTP.Timeout != 30*time.Second {
		t.Errorf("expected HTTP.Timeout = 30s, got %v", cfg.HTTP.Timeout)
	}
	if len(cfg.HTTP.RetryDelays) != 3 || cfg.HTTP.RetryDelays[0] != 0 {
		t.Errorf("expected HTTP.RetryDelays = [0 5s 30s], got %v", cfg.HTTP.RetryDelays)
	}
	if len(cfg.RetryQueue.BackoffSchedule) != 5 {
		t.Errorf("expected RetryQueue.BackoffSchedule length = 5, got %d", len(cfg.RetryQueue.BackoffSchedule))
	}
	if cfg.Vision.Model != "claude-3-haiku-20240307" {
		t.Errorf("expected Vision.Model = claude-3-haiku-20240307, got %q", cfg.Vision.Model)
	}
	if cfg.Vision.MaxTokens != 1000 {
		t.Errorf("expected Vision.MaxTokens = 1000, got %d", cfg.Vision.MaxTokens)
	}
	if cfg.Server.MaxBodyBytes != 10<<20 {
		t.Errorf("expected Server.MaxBodyBytes = 10MiB, got %d", cfg.Server.MaxBodyBytes)
	}
	if cfg.Storage.Path != "" {
		t.Errorf("expected empty Storage.Path, got %q", cfg.Storage.Path)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != DefaultRuntimeConfig().Server.Addr {
		t.Errorf("expected default addr, got %q", cfg.Server.Addr)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
storage:
  path: /tmp/couponvault-test
http:
  timeout: 10s
  retry_delays: [0s, 1s]
vision:
  model: claude-3-5-haiku-latest
server:
  addr: 0.0.0.0:9000
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Path != "/tmp/couponvault-test" {
		t.Errorf("Storage.Path = %q", cfg.Storage.Path)
	}
	if cfg.HTTP.Timeout != 10*time.Second {
		t.Errorf("HTTP.Timeout = %v", cfg.HTTP.Timeout)
	}
	if len(cfg.HTTP.RetryDelays) != 2 || cfg.HTTP.RetryDelays[1] != time.Second {
		t.Errorf("HTTP.RetryDelays = %v", cfg.HTTP.RetryDelays)
	}
	if cfg.Vision.Model != "claude-3-5-haiku-latest" {
		t.Errorf("Vision.Model = %q", cfg.Vision.Model)
	}
	// untouched sections keep defaults
	if cfg.Vision.MaxTokens != 1000 {
		t.Errorf("Vision.MaxTokens = %d", cfg.Vision.MaxTokens)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("http: [not, a, map"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("http:\n  timeout: 10s\n"), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("COUPONVAULT_HTTP_TIMEOUT", "45s")
	t.Setenv("COUPONVAULT_HTTP_RETRY_DELAYS", "0s,2s,4s")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("COUPONVAULT_DB_PATH", "/data/cv")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Timeout != 45*time.Second {
		t.Errorf("HTTP.Timeout = %v, want 45s", cfg.HTTP.Timeout)
	}
	if len(cfg.HTTP.RetryDelays) != 3 || cfg.HTTP.RetryDelays[2] != 4*time.Second {
		t.Errorf("HTTP.RetryDelays = %v", cfg.HTTP.RetryDelays)
	}
	if cfg.Vision.APIKey != "sk-ant-test" {
		t.Errorf("Vision.APIKey not read from ANTHROPIC_API_KEY")
	}
	if cfg.Storage.Path != "/data/cv" {
		t.Errorf("Storage.Path = %q", cfg.Storage.Path)
	}
}

func TestInvalidEnv(t *testing.T) {
	t.Setenv("COUPONVAULT_HTTP_MAX_RETRIES", "many")
	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Errorf("expected parse env error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *RuntimeConfig)
	}{
		{"negative_retries", func(c *RuntimeConfig) { c.HTTP.MaxRetries = -1 }},
		{"zero_timeout", func(c *RuntimeConfig) { c.HTTP.Timeout = 0 }},
		{"zero_tokens", func(c *RuntimeConfig) { c.Vision.MaxTokens = 0 }},
		{"tiny_image", func(c *RuntimeConfig) { c.Vision.MaxImageEdge = 10 }},
		{"no_body", func(c *RuntimeConfig) { c.Server.MaxBodyBytes = 0 }},
		{"no_addr", func(c *RuntimeConfig) { c.Server.Addr = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultRuntimeConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestMarshalRedactsAPIKey(t *testing.T) {
	cfg := DefaultRuntimeConfig()
	cfg.Vision.APIKey = "sk-ant-secret"

	out, err := cfg.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(out), "sk-ant-secret") {
		t.Error("API key leaked into marshaled config")
	}
	if cfg.Vision.APIKey != "sk-ant-secret" {
		t.Error("Marshal must not modify the receiver")
	}
}

func TestReset(t *testing.T) {
	cfg := DefaultRuntimeConfig()
	cfg.HTTP.Timeout = time.Hour
	cfg.Reset()
	if cfg.HTTP.Timeout != 30*time.Second {
		t.Errorf("Reset did not restore HTTP.Timeout, got %v", cfg.HTTP.Timeout)
	}
}

func TestFilePath(t *testing.T) {
	t.Setenv("COUPONVAULT_CONFIG", "/etc/cv.yaml")
	if FilePath() != "/etc/cv.yaml" {
		t.Errorf("FilePath = %q", FilePath())
	}
	t.Setenv("COUPONVAULT_CONFIG", "")
	if FilePath() != DefaultFilePath() {
		t.Errorf("FilePath = %q, want default", FilePath())
	}
}
