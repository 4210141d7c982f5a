package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend.Kind != "hosted" {
		t.Errorf("default backend kind = %q", cfg.Backend.Kind)
	}
	if cfg.Queue.MaxDepth != 8 {
		t.Errorf("default queue depth = %d", cfg.Queue.MaxDepth)
	}
	if cfg.World.Size != 6 {
		t.Errorf("default world size = %d", cfg.World.Size)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "verdant.yaml")
	content := []byte(`
backend:
  kind: bridge
  bridge_command: ./bridge
queue:
  debounce_ms: 50
  max_depth: 3
log:
  level: debug
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend.Kind != "bridge" {
		t.Errorf("backend kind = %q", cfg.Backend.Kind)
	}
	if cfg.Backend.BridgeCommand != "./bridge" {
		t.Errorf("bridge command = %q", cfg.Backend.BridgeCommand)
	}
	if cfg.Queue.DebounceMillis != 50 {
		t.Errorf("debounce = %d", cfg.Queue.DebounceMillis)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	// Untouched keys keep defaults.
	if cfg.Queue.TimeoutMillis != 30000 {
		t.Errorf("timeout default lost: %d", cfg.Queue.TimeoutMillis)
	}
}

func TestLoadDoesNotLeakBetweenCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verdant.yaml")
	content := []byte(`
queue:
  max_depth: 3
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	first, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if first.Queue.MaxDepth != 3 {
		t.Fatalf("file value lost: %d", first.Queue.MaxDepth)
	}

	second, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if second.Queue.MaxDepth != 8 {
		t.Errorf("max_depth = %d, a later Load must not see an earlier file's state", second.Queue.MaxDepth)
	}
}
