package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsUsableWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AI.Provider != "anthropic" {
		t.Fatalf("expected default provider anthropic, got %q", cfg.AI.Provider)
	}
	if cfg.Cycle.CycleInterval() != 2*time.Minute {
		t.Fatalf("expected default 2m cycle interval")
	}
}

func TestLoadOverlaysFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	if err := os.WriteFile(path, []byte(`{ai: {model: "gpt-5"}, cycle: {interval: "5m"}}`), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AI.Model != "gpt-5" {
		t.Fatalf("expected file override applied, got %q", cfg.AI.Model)
	}
	if cfg.AI.Provider != "anthropic" {
		t.Fatalf("expected untouched default preserved, got %q", cfg.AI.Provider)
	}
	if cfg.Cycle.CycleInterval() != 5*time.Minute {
		t.Fatalf("expected 5m cycle interval override")
	}
}

func TestEnvOverrideWinsOverFile(t *testing.T) {
	t.Setenv("SOCIALAGENT_AI_API_KEY", "from-env")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AI.APIKey != "from-env" {
		t.Fatalf("expected env override applied, got %q", cfg.AI.APIKey)
	}
}

func TestIsManagedModeRequiresDSN(t *testing.T) {
	cfg := Default()
	cfg.Database.Mode = "managed"
	if cfg.Database.IsManagedMode() {
		t.Fatalf("expected managed mode false without DSN")
	}
	cfg.Database.PostgresDSN = "postgres://x"
	if !cfg.Database.IsManagedMode() {
		t.Fatalf("expected managed mode true with DSN set")
	}
}
