package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "runtime.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return path
}

func TestLoadValidConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
device:
  max_nodes: 32
  max_streamers: 8
  storage_capacity: 1024
  streaming_capacity: 4096
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Fatalf("expected logging defaults applied, got %+v", cfg.Logging)
	}
	if cfg.EventLog.RingSize != 500 || cfg.EventLog.MaxLines != 10000 {
		t.Fatalf("expected event log defaults applied, got %+v", cfg.EventLog)
	}
}

func TestLoadRejectsMissingDeviceLimits(t *testing.T) {
	path := writeConfig(t, `
device:
  max_nodes: 0
  max_streamers: 8
  storage_capacity: 1024
  streaming_capacity: 4096
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for zero max_nodes")
	}
}

func TestLoadRejectsNegativeThrottle(t *testing.T) {
	path := writeConfig(t, `
device:
  max_nodes: 1
  max_streamers: 1
  storage_capacity: 1
  streaming_capacity: 1
throttle:
  readings_per_sec: -1
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for negative readings_per_sec")
	}
}

func TestConfigDatabaseDefaultsWhenUnset(t *testing.T) {
	db := NewConfigDatabase()
	got := db.Get(Slot{Type: 1, Address: 2})
	want := ConfigVars{}
	if got != want {
		t.Fatalf("expected zero-value defaults, got %+v", got)
	}
}

func TestConfigDatabaseSetAndGet(t *testing.T) {
	db := NewConfigDatabase()
	slot := Slot{Type: 1, Address: 2}
	vars := ConfigVars{StorageFillStop: true, Fast: 30}
	db.Set(slot, vars)

	if got := db.Get(slot); got != vars {
		t.Fatalf("Get() = %+v, want %+v", got, vars)
	}
}
