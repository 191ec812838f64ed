package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":8090" {
		t.Fatalf("unexpected addr %q", cfg.HTTP.Addr)
	}
	if cfg.Delivery.MaxRetries != 3 || cfg.Orchestrator.MaxAttempts != 3 {
		t.Fatalf("unexpected retry defaults %+v", cfg)
	}
	if !cfg.Dev.Mode {
		t.Fatalf("dev mode should default on")
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `http:
  addr: ":9999"
dev:
  mode: false
providers:
  - name: primary
    kind: openai
    model: gpt-4o-mini
    api_key_env: TK_TEST_OPENAI_KEY
  - name: local
    kind: ollama
    base_url: http://localhost:11434
delivery:
  max_retries: 5
  base_delay: 250ms
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("TK_HTTP_ADDR", ":7777")
	t.Setenv("TK_TEST_OPENAI_KEY", "sk-from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":7777" {
		t.Fatalf("env should override file, got %q", cfg.HTTP.Addr)
	}
	if len(cfg.Providers) != 2 || cfg.Providers[0].Name != "primary" || cfg.Providers[1].Kind != "ollama" {
		t.Fatalf("provider order lost: %+v", cfg.Providers)
	}
	if cfg.Delivery.MaxRetries != 5 || cfg.Delivery.BaseDelay.Std() != 250*time.Millisecond {
		t.Fatalf("delivery settings not decoded: %+v", cfg.Delivery)
	}
	if cfg.Providers[0].APIKey() != "sk-from-env" {
		t.Fatalf("credential should come from the named env var")
	}
}

func TestLoadRejectsUnknownProviderKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `providers:
  - name: x
    kind: carrier-pigeon
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestLoadRequiresProvidersOutsideDevMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("dev:\n  mode: false\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error with no providers")
	}
}
