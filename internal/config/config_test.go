package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/echoVic/aidayhot-crawler/internal/model"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefaultConfigParses(t *testing.T) {
	cfg := Default()

	if len(cfg.Sources) != 8 {
		t.Errorf("expected 8 source sections, got %d", len(cfg.Sources))
	}
	for _, st := range model.AllSources() {
		sc, ok := cfg.Sources[string(st)]
		if !ok {
			t.Errorf("source %s missing from default config", st)
			continue
		}
		if sc.MaxResults <= 0 || sc.TimeoutSeconds <= 0 {
			t.Errorf("source %s has invalid tuning: %+v", st, sc)
		}
	}
	if len(cfg.Arxiv.Categories) == 0 {
		t.Error("expected default arxiv categories")
	}
	if len(cfg.Feeds) == 0 {
		t.Error("expected default feeds")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
sources:
  arxiv:
    max_results: 5
    timeout_seconds: 60
    priority: 1
    status: active
github:
  query: "llm agents"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := cfg.Sources["arxiv"].MaxResults; got != 5 {
		t.Errorf("arxiv max_results = %d, want 5", got)
	}
	if cfg.GitHub.Query != "llm agents" {
		t.Errorf("github query = %q", cfg.GitHub.Query)
	}
	// Untouched sections keep their defaults.
	if got := cfg.Sources["rss"].MaxResults; got <= 0 {
		t.Errorf("rss defaults lost: %d", got)
	}
}

func TestValidateRejectsUnknownSource(t *testing.T) {
	path := writeConfig(t, `
sources:
  reddit:
    max_results: 10
    timeout_seconds: 10
    status: active
`)
	if _, err := Load(path); err == nil {
		t.Error("expected error for unknown source name")
	}
}

func TestValidateRejectsBadTuning(t *testing.T) {
	cases := map[string]string{
		"zero max_results": `
sources:
  rss:
    max_results: 0
    timeout_seconds: 10
    status: active
`,
		"zero timeout": `
sources:
  rss:
    max_results: 10
    timeout_seconds: 0
    status: active
`,
		"bad status": `
sources:
  rss:
    max_results: 10
    timeout_seconds: 10
    status: enabled
`,
	}
	for name, content := range cases {
		if _, err := Load(writeConfig(t, content)); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestSourceConfigForFallback(t *testing.T) {
	cfg := &Config{Sources: map[string]SourceConfig{}}
	sc := cfg.SourceConfigFor(model.SourceWeb)
	if sc.MaxResults != 20 || sc.TimeoutSeconds != 15 || sc.Status != StatusActive {
		t.Errorf("unexpected fallback: %+v", sc)
	}
}

func TestGetDataDirPrecedence(t *testing.T) {
	cfg := &Config{Output: Output{DataDir: "/from/config"}}

	t.Setenv("AIDAYHOT_DATA_DIR", "/from/env")
	if got := cfg.GetDataDir(); got != "/from/env" {
		t.Errorf("env override lost: %q", got)
	}

	t.Setenv("AIDAYHOT_DATA_DIR", "")
	if got := cfg.GetDataDir(); got != "/from/config" {
		t.Errorf("config dir lost: %q", got)
	}
}

func TestResolveConfigPathExplicitMissing(t *testing.T) {
	if _, err := ResolveConfigPath("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing explicit path")
	}
}
