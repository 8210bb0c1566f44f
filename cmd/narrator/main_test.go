package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pario-ai/narrator/pkg/config"
	"github.com/pario-ai/narrator/pkg/models"
)

func TestRedactMasksSecrets(t *testing.T) {
	cfg := config.Default()
	cfg.Endpoints = []config.EndpointConfig{{Name: "a", APIKey: "sk-secret"}, {Name: "b"}}
	cfg.Cache.Store.RedisPassword = "hunter2"

	out := redact(cfg)
	if out.Endpoints[0].APIKey != "***" || out.Endpoints[1].APIKey != "" {
		t.Errorf("unexpected keys %q %q", out.Endpoints[0].APIKey, out.Endpoints[1].APIKey)
	}
	if out.Cache.Store.RedisPassword != "***" {
		t.Errorf("redis password not masked")
	}
	if cfg.Endpoints[0].APIKey != "sk-secret" {
		t.Error("redact must not modify the loaded config")
	}
}

func TestFormatAuditStats(t *testing.T) {
	if got := formatAuditStats(nil); !strings.Contains(got, "No audit stats") {
		t.Errorf("unexpected empty output %q", got)
	}
	got := formatAuditStats([]models.AuditStat{{Source: models.SourceFallback, Day: "2026-10-19", Count: 7}})
	if !strings.Contains(got, "fallback") || !strings.Contains(got, "7") {
		t.Errorf("unexpected output %q", got)
	}
}

func TestExampleConfigLoads(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "narrator.example.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "narrator.yaml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if len(cfg.Endpoints) != 2 || cfg.Endpoints[1].APIKey != "sk-test" {
		t.Errorf("unexpected endpoints %+v", cfg.Endpoints)
	}
	if cfg.Cache.Store.Type != config.StoreSQLite {
		t.Errorf("store type = %q", cfg.Cache.Store.Type)
	}
}
