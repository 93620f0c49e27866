package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/calebgr/tracedbg/internal/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Address() != "127.0.0.1:42424" {
		t.Errorf("default address = %s", cfg.Address())
	}
	if cfg.MaxLineLength != 1<<20 {
		t.Errorf("default max line length = %d", cfg.MaxLineLength)
	}
	if !cfg.ShouldSkip("<eval>") {
		t.Errorf("generated chunks not skipped by default")
	}
	if cfg.ShouldSkip("script.lua") {
		t.Errorf("regular files skipped by default")
	}
}

func TestLoadConfigEmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != 42424 {
		t.Errorf("defaults not applied")
	}
}

func TestLoadConfigMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"port": 9000, "passive": true, "localsFilter": ["_*"]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != 9000 || !cfg.Passive {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Host != "127.0.0.1" {
		t.Errorf("defaults lost on merge: host = %s", cfg.Host)
	}
	if got := cfg.ScopeFilter(0); len(got) != 1 || got[0] != "_*" {
		t.Errorf("locals filter = %v", got)
	}
	if got := cfg.ScopeFilter(1); len(got) != 0 {
		t.Errorf("globals filter = %v", got)
	}
}

func TestLoadConfigRejectsBadPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"port": 70000}`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadConfig(path)
	if err == nil {
		t.Fatalf("out-of-range port accepted")
	}
	if !errors.Is(err, errors.CodeConfigInvalid) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadConfigRejectsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Errorf("malformed JSON accepted")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Errorf("missing file accepted")
	}
}
