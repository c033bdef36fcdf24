package main

import (
	"path/filepath"
	"testing"

	"github.com/spf13/viper"

	"github.com/sergeknystautas/diffview/internal/config"
)

func TestApplyOverrides(t *testing.T) {
	t.Setenv("DIFFVIEW_PORT", "9100")
	t.Setenv("DIFFVIEW_EDITOR", "nvim")
	initConfig()

	cfg := config.CreateDefault(filepath.Join(t.TempDir(), "config.yaml"))
	cfg.Editor = nil
	applyOverrides(cfg)

	if got := cfg.GetPort(); got != 9100 {
		t.Errorf("GetPort() = %d, want 9100", got)
	}
	if got := cfg.GetEditorCommand(); got != "nvim" {
		t.Errorf("GetEditorCommand() = %q, want nvim", got)
	}
	if got := cfg.GetBindAddress(); got != config.DefaultBindAddress {
		t.Errorf("GetBindAddress() = %q, want default", got)
	}
}

func TestDaemonURLPrefersFlag(t *testing.T) {
	viper.Set("url", "http://127.0.0.1:9999")
	t.Cleanup(func() { viper.Set("url", "") })

	got, err := daemonURL()
	if err != nil {
		t.Fatalf("daemonURL() error: %v", err)
	}
	if got != "http://127.0.0.1:9999" {
		t.Errorf("daemonURL() = %q", got)
	}
}

func TestDaemonURLFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := config.CreateDefault(path)
	cfg.Network.Port = 7400
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	viper.Set("config", path)
	t.Cleanup(func() { viper.Set("config", "") })

	got, err := daemonURL()
	if err != nil {
		t.Fatalf("daemonURL() error: %v", err)
	}
	if got != "http://127.0.0.1:7400" {
		t.Errorf("daemonURL() = %q", got)
	}
}

func TestRepoArg(t *testing.T) {
	got, err := repoArg(nil)
	if err != nil || got != "" {
		t.Fatalf("repoArg(nil) = %q, %v", got, err)
	}
	dir := t.TempDir()
	got, err = repoArg([]string{dir})
	if err != nil {
		t.Fatalf("repoArg() error: %v", err)
	}
	if got != dir {
		t.Errorf("repoArg() = %q, want %q", got, dir)
	}
}
