package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
models:
  planner: planner-model
  synthesizer: synth-model
pipeline:
  max_concurrency: 8
  retry_backoff: 250ms
server:
  addr: ":9090"
paths:
  output_dir: /tmp/out
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Models.Planner != "planner-model" || cfg.Models.Synthesizer != "synth-model" {
		t.Errorf("unexpected models: %+v", cfg.Models)
	}
	if cfg.Pipeline.MaxConcurrency != 8 {
		t.Errorf("expected max_concurrency 8, got %d", cfg.Pipeline.MaxConcurrency)
	}
	if cfg.Pipeline.RetryBackoff != 250*time.Millisecond {
		t.Errorf("expected retry_backoff 250ms, got %v", cfg.Pipeline.RetryBackoff)
	}
	// Unset keys keep their defaults.
	if cfg.Pipeline.MaxAttempts != 3 {
		t.Errorf("expected default max_attempts 3, got %d", cfg.Pipeline.MaxAttempts)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("unexpected server addr %q", cfg.Server.Addr)
	}
	if cfg.Paths.OutputDir != "/tmp/out" {
		t.Errorf("unexpected output dir %q", cfg.Paths.OutputDir)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Pipeline.MaxConcurrency != 4 || cfg.Pipeline.MaxAttempts != 3 {
		t.Errorf("unexpected pipeline defaults: %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.RetryBackoff != 500*time.Millisecond {
		t.Errorf("unexpected retry backoff: %v", cfg.Pipeline.RetryBackoff)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("unexpected server addr: %q", cfg.Server.Addr)
	}
}

func TestGetAPIKeyPrefersEnvironment(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-REDACTED")

	key, err := GetAPIKey(&Config{Anthropic: AnthropicConfig{APIKey: "sk-ant-config-key"}})
	if err != nil {
		t.Fatalf("GetAPIKey failed: %v", err)
	}
	if key != "sk-ant-REDACTED" {
		t.Errorf("expected env key, got %q", key)
	}
}

func TestGetAPIKeyMissing(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	if _, err := GetAPIKey(&Config{}); err != ErrNoAPIKey {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestMaskAPIKey(t *testing.T) {
	if got := MaskAPIKey(""); got != "(not set)" {
		t.Errorf("unexpected mask for empty key: %q", got)
	}
	if got := MaskAPIKey("sk-ant-short"); got != "***" {
		t.Errorf("unexpected mask for short key: %q", got)
	}
	if got := MaskAPIKey("sk-ant-api03-abcdefgh-wxyz"); got != "sk-ant-...wxyz" {
		t.Errorf("unexpected mask: %q", got)
	}
}
