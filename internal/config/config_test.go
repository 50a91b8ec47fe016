package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "absent.yaml")} {
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%q) error: %v", path, err)
		}
		if cfg.History.RetentionDays != 0 || cfg.History.MaxItems != 0 {
			t.Errorf("history defaults = %+v, want unlimited", cfg.History)
		}
		if !cfg.Capture.IgnoreConcealed || !cfg.FolderWatch.AutoCopy {
			t.Error("ignore_concealed and auto_copy default on")
		}
		if cfg.Capture.GetPollInterval() != 500*time.Millisecond {
			t.Errorf("poll interval = %v", cfg.Capture.GetPollInterval())
		}
		if cfg.Thumbnails.Size != 80 || cfg.Thumbnails.Scale != 2 || cfg.Thumbnails.CacheMaxEntries != 100 {
			t.Errorf("thumbnail defaults = %+v", cfg.Thumbnails)
		}
		if got := cfg.Thumbnails.GetCacheMaxBytes().Bytes(); got != 50*1000*1000 {
			t.Errorf("cache max bytes = %d", got)
		}
		if cfg.Storage.SnapshotBackend != "json" {
			t.Errorf("backend = %s", cfg.Storage.SnapshotBackend)
		}
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
history:
  retention_days: 7
  max_items: 200
capture:
  blacklist_enabled: true
  blacklist: ["com.agilebits.onepassword7"]
  max_item_size: 1MiB
storage:
  data_dir: /tmp/clipkeep-test
  snapshot_backend: sqlite
logging:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.History.RetentionDays != 7 || cfg.History.MaxItems != 200 {
		t.Errorf("history = %+v", cfg.History)
	}
	if len(cfg.Capture.Blacklist) != 1 || cfg.Capture.GetMaxItemSize().Bytes() != 1<<20 {
		t.Errorf("capture = %+v", cfg.Capture)
	}
	if got := cfg.Storage.SQLitePath(); got != "/tmp/clipkeep-test/clipboard_history.db" {
		t.Errorf("SQLitePath() = %s", got)
	}
	if got := cfg.Storage.BlobPath(); got != "/tmp/clipkeep-test/images" {
		t.Errorf("BlobPath() = %s", got)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CLIPKEEP_HISTORY_MAX_ITEMS", "42")
	t.Setenv("CLIPKEEP_HTTP_BIND_ADDR", "127.0.0.1:9999")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.History.MaxItems != 42 {
		t.Errorf("max_items = %d, want 42", cfg.History.MaxItems)
	}
	if cfg.HTTP.BindAddr != "127.0.0.1:9999" {
		t.Errorf("bind_addr = %s", cfg.HTTP.BindAddr)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"negative retention", "history:\n  retention_days: -1\n", "retention_days"},
		{"negative max items", "history:\n  max_items: -5\n", "max_items"},
		{"unknown backend", "storage:\n  snapshot_backend: bolt\n", "snapshot_backend"},
		{"bad duration", "capture:\n  poll_interval: soon\n", "poll_interval"},
		{"bad size", "capture:\n  max_item_size: huge\n", "max_item_size"},
		{"bad level", "logging:\n  level: loud\n", "logging.level"},
		{"watch without path", "folder_watch:\n  enabled: true\n", "folder_watch.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestProvider_Reload(t *testing.T) {
	path := writeConfig(t, "history:\n  max_items: 10\ncapture:\n  ignore_concealed: false\n")
	p, err := NewProvider(path, zap.NewNop())
	if err != nil {
		t.Fatalf("NewProvider() error: %v", err)
	}
	if p.Policy().MaxItems != 10 {
		t.Fatalf("MaxItems = %d, want 10", p.Policy().MaxItems)
	}
	if p.CaptureFilters().IgnoreConcealed {
		t.Error("ignore_concealed should be off")
	}

	var seen *Config
	calls := 0
	p.OnChange(func(c *Config) { seen = c })
	p.OnChange(func(*Config) { calls++ })

	os.WriteFile(path, []byte("history:\n  max_items: 3\n  retention_days: 2\n"), 0o644)
	if !p.Reload() {
		t.Fatal("valid reload rejected")
	}
	if got := p.Policy(); got.MaxItems != 3 || got.RetentionDays != 2 {
		t.Errorf("Policy() after reload = %+v", got)
	}
	if seen == nil || seen.History.MaxItems != 3 {
		t.Error("OnChange handler not called with the new config")
	}
	if calls != 1 {
		t.Errorf("second handler called %d times, want 1", calls)
	}

	os.WriteFile(path, []byte("history:\n  max_items: -1\n"), 0o644)
	if p.Reload() {
		t.Error("invalid reload accepted")
	}
	if p.Policy().MaxItems != 3 {
		t.Errorf("rejected reload changed policy to %+v", p.Policy())
	}
}
