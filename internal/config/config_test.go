package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Server.Host != "localhost" {
		t.Errorf("default host = %q, want localhost", cfg.Server.Host)
	}
	if cfg.Server.Port != 8750 {
		t.Errorf("default port = %d, want 8750", cfg.Server.Port)
	}
	if cfg.Search.DefaultLimit != 20 || cfg.Search.MaxLimit != 200 {
		t.Errorf("default limits = %d/%d", cfg.Search.DefaultLimit, cfg.Search.MaxLimit)
	}
	if cfg.Search.NGramMin != 1 || cfg.Search.NGramMax != 3 {
		t.Errorf("default ngram bounds = %d..%d", cfg.Search.NGramMin, cfg.Search.NGramMax)
	}
	if cfg.Search.RecencyHalfLifeDays != 90 {
		t.Errorf("default half life = %v", cfg.Search.RecencyHalfLifeDays)
	}
	if cfg.Suggest.MaxSuggestions != 10 {
		t.Errorf("default max suggestions = %d", cfg.Suggest.MaxSuggestions)
	}
}

func TestApplyDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 9001
	cfg.Search.FacetTopN = 5
	cfg.Search.StrictFields = true
	ApplyDefaults(cfg)

	if cfg.Server.Port != 9001 {
		t.Errorf("explicit port overwritten: %d", cfg.Server.Port)
	}
	if cfg.Search.FacetTopN != 5 {
		t.Errorf("explicit facet top n overwritten: %d", cfg.Search.FacetTopN)
	}
	if !cfg.Search.StrictFields {
		t.Error("strict fields flag lost")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: 0.0.0.0
  port: 9100
storage:
  database_path: ./data/kensaku.db
  snapshot_path: ./data/snapshot.json
search:
  default_limit: 15
  strict_fields: true
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !cfg.Debug {
		t.Error("debug not parsed")
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Search.DefaultLimit != 15 {
		t.Errorf("default limit = %d", cfg.Search.DefaultLimit)
	}
	// Paths starting with ./ resolve relative to the config directory.
	want := filepath.Join(dir, "data/kensaku.db")
	if cfg.Storage.DatabasePath != want {
		t.Errorf("database path = %q, want %q", cfg.Storage.DatabasePath, want)
	}
	// Defaults still fill unset fields.
	if cfg.Search.MaxLimit != 200 {
		t.Errorf("max limit default = %d", cfg.Search.MaxLimit)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
