package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
default_repo: /src/project
network:
  port: 9000
diff:
  large_file_threshold: 1000
  default_style: split
watch:
  debounce_ms: 150
  exclude_dirs: [vendor]
editor:
  command: cursor
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.DefaultRepo != "/src/project" {
		t.Errorf("DefaultRepo = %q", cfg.DefaultRepo)
	}
	if got := cfg.GetListenAddr(); got != "127.0.0.1:9000" {
		t.Errorf("GetListenAddr() = %q", got)
	}
	if cfg.GetLargeFileThreshold() != 1000 || cfg.GetDiffStyle() != DiffStyleSplit {
		t.Errorf("diff section = %+v", cfg.Diff)
	}
	if cfg.WatchDebounce() != 150*time.Millisecond {
		t.Errorf("WatchDebounce() = %v", cfg.WatchDebounce())
	}
	if dirs := cfg.GetWatchExcludeDirs(); len(dirs) != 1 || dirs[0] != "vendor" {
		t.Errorf("GetWatchExcludeDirs() = %v", dirs)
	}
	if cfg.GetEditorCommand() != "cursor" {
		t.Errorf("GetEditorCommand() = %q", cfg.GetEditorCommand())
	}

	// Verify Save() works (path should be set from Load)
	cfg.Editor.Command = "code"
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	cfg2, err := Load(path)
	if err != nil {
		t.Fatalf("Load() after save failed: %v", err)
	}
	if cfg2.GetEditorCommand() != "code" {
		t.Errorf("editor after reload = %q, want code", cfg2.GetEditorCommand())
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("Load() error = %v, want ErrConfigNotFound", err)
	}

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error: %v", err)
	}
	if cfg.GetPort() != DefaultPort {
		t.Errorf("default port = %d", cfg.GetPort())
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad yaml", "network: [", ""},
		{"wrong type", "network:\n  port: lots\n", ""},
		{"bad port", "network:\n  port: 70000\n", "network.port"},
		{"bad style", "diff:\n  default_style: sideways\n", "default_style"},
		{"bad format", "logging:\n  format: xml\n", "logging.format"},
		{"file exporter without path", "tracing:\n  enabled: true\n  exporter: file\n", "file_path"},
		{"unknown exporter", "tracing:\n  exporter: jaeger\n", "exporter"},
		{"bad sample rate", "tracing:\n  sample_rate: 2\n", "sample_rate"},
		{"bad version", "config_version: banana\n", "config_version"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v does not wrap ErrInvalidConfig", err)
			}
			if tt.want != "" && !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	cfg := &Config{}
	if cfg.GetBindAddress() != "127.0.0.1" || cfg.GetPort() != 7338 {
		t.Errorf("listen = %s", cfg.GetListenAddr())
	}
	if cfg.GetLargeFileThreshold() != 50000 {
		t.Errorf("GetLargeFileThreshold() = %d", cfg.GetLargeFileThreshold())
	}
	if cfg.GetMaxParallel() != 8 {
		t.Errorf("GetMaxParallel() = %d", cfg.GetMaxParallel())
	}
	if cfg.WatchDebounce() != 300*time.Millisecond || cfg.WatchSweepInterval() != 30*time.Second {
		t.Errorf("watch timings = %v, %v", cfg.WatchDebounce(), cfg.WatchSweepInterval())
	}
	if cfg.CommitCacheTTL() != 30*time.Minute {
		t.Errorf("CommitCacheTTL() = %v", cfg.CommitCacheTTL())
	}
	if cfg.GetDiffStyle() != DiffStyleUnified || cfg.GetEditorCommand() != "" {
		t.Errorf("style/editor = %q/%q", cfg.GetDiffStyle(), cfg.GetEditorCommand())
	}
	if cfg.GetLogLevel() != "info" || cfg.GetLogFormat() != "text" {
		t.Errorf("logging = %s/%s", cfg.GetLogLevel(), cfg.GetLogFormat())
	}
	if cfg.GetTracingEnabled() {
		t.Error("tracing should be disabled by default")
	}
}

func TestTracingExporter(t *testing.T) {
	cfg := &Config{Tracing: &TracingConfig{Enabled: true}}
	if cfg.GetTracingExporter() != TracingExporterStdout || !cfg.GetTracingEnabled() {
		t.Errorf("enabled without exporter = %s/%v", cfg.GetTracingExporter(), cfg.GetTracingEnabled())
	}
	cfg.Tracing.Exporter = TracingExporterNone
	if cfg.GetTracingEnabled() {
		t.Error("exporter none should disable tracing")
	}
}

func TestMigrateLegacyDebounce(t *testing.T) {
	cfg := &Config{ConfigVersion: "0.1.4", Watch: &WatchConfig{DebounceMs: 2}}
	if err := cfg.Migrate(); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	if cfg.Watch.DebounceMs != 2000 {
		t.Errorf("DebounceMs = %d, want 2000", cfg.Watch.DebounceMs)
	}

	current := &Config{ConfigVersion: "0.3.0", Watch: &WatchConfig{DebounceMs: 2}}
	if err := current.Migrate(); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	if current.Watch.DebounceMs != 2 {
		t.Errorf("current config should be untouched, got %d", current.Watch.DebounceMs)
	}
}

func TestSaveWithoutPath(t *testing.T) {
	if err := (&Config{}).Save(); err == nil {
		t.Error("expected error when path is not set")
	}
}

func TestEnsureExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	declined := func(string, string) (bool, error) { return false, nil }
	ok, err := EnsureExists(path, declined)
	if err != nil || ok {
		t.Fatalf("declined EnsureExists() = %v, %v", ok, err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("config must not be created when declined")
	}

	asked := 0
	accepted := func(string, string) (bool, error) { asked++; return true, nil }
	ok, err = EnsureExists(path, accepted)
	if err != nil || !ok {
		t.Fatalf("accepted EnsureExists() = %v, %v", ok, err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() of created config failed: %v", err)
	}
	if cfg.GetPort() != DefaultPort {
		t.Errorf("created config port = %d", cfg.GetPort())
	}

	if ok, _ := EnsureExists(path, accepted); !ok || asked != 1 {
		t.Errorf("existing config should not prompt again (asked %d)", asked)
	}
}
