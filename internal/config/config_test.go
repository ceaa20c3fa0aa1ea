package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSetDefaults(t *testing.T) {
	c := &Config{}
	c.SetDefaults()
	if c.LLM.Model != "gpt-4o" {
		t.Fatalf("expected gpt-4o, got %s", c.LLM.Model)
	}
	if c.Server.Port != 5000 {
		t.Fatalf("expected port 5000")
	}
	if c.Server.MaxUploadBytes != 16*1024*1024 {
		t.Fatalf("expected 16 MiB upload limit, got %d", c.Server.MaxUploadBytes)
	}
	if c.LLM.MaxRetries != 0 {
		t.Fatalf("expected retries disabled by default")
	}
	if c.LLM.Timeout() != 120*time.Second {
		t.Fatalf("unexpected timeout %s", c.LLM.Timeout())
	}
	if c.Log.Level != "info" || c.Log.Format != "text" {
		t.Fatalf("unexpected log defaults %+v", c.Log)
	}
}

func TestLoadFromYAML(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("llm:\n  model: gpt-4.1\n  max_retries: 2\nserver:\n  port: 8080\nstore:\n  path: ./data/a.db\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.Model != "gpt-4.1" {
		t.Fatalf("unexpected model %s", cfg.LLM.Model)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("unexpected port %d", cfg.Server.Port)
	}
	if cfg.LLM.MaxRetries != 2 {
		t.Fatalf("unexpected retries %d", cfg.LLM.MaxRetries)
	}
	if cfg.Store.Path != "./data/a.db" {
		t.Fatalf("unexpected store path %s", cfg.Store.Path)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 5000 {
		t.Fatalf("expected default port, got %d", cfg.Server.Port)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("llm: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(cfgPath); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("APITESTGEN_LLM_API_KEY", "sk-env")
	t.Setenv("APITESTGEN_SERVER_PORT", "9090")
	t.Setenv("APITESTGEN_LLM_MAX_RETRIES", "3")
	t.Setenv("APITESTGEN_SERVER_MAX_UPLOAD_BYTES", "1024")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.APIKey != "sk-env" || cfg.Server.Port != 9090 || cfg.LLM.MaxRetries != 3 || cfg.Server.MaxUploadBytes != 1024 {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	c := &Config{}
	c.SetDefaults()
	c.Store.Path = filepath.Join(t.TempDir(), "db", "apitestgen.db")
	c.Output.Dir = t.TempDir()
	if err := c.Validate(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	c.LLM.APIKey = ""
	if err := c.ValidateGenerate(); err == nil {
		t.Fatalf("expected generate validation error")
	}
	c.LLM.APIKey = "k"
	if err := c.ValidateGenerate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Log.Format = "xml"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected log format error")
	}
}
