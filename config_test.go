package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ByLCY/quire/layout"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil {
		t.Fatalf("explicit missing config should fail")
	}

	wd, _ := os.Getwd()
	t.Cleanup(func() { os.Chdir(wd) })
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	cfg, err = LoadConfig("")
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	if cfg.Layout.Scale != 1 || cfg.Layout.StopAtPage != -1 || !cfg.Fonts.Preload {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	opts := cfg.Options()
	if opts.StopAtPage != nil {
		t.Fatalf("stop_at_page -1 should not bound the layout")
	}
	if opts.DefaultTabWidth != layout.DefaultTabWidth || opts.ListBaseIndent != layout.DefaultListBaseIndent {
		t.Fatalf("layout defaults not applied: %+v", opts)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quire.toml")
	data := `
[layout]
scale = 2
default_tab_width = 48
td_padding = 6
stop_at_page = 0

[fonts]
dir = "assets/fonts"
preload = false

[shaper]
cache_size = 128

[bridge]
enabled = true
ping_timeout_ms = 250

[log]
level = "debug"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Fonts.Dir != "assets/fonts" || cfg.Fonts.Preload {
		t.Fatalf("fonts section mismatch: %+v", cfg.Fonts)
	}
	if cfg.Shaper.CacheSize != 128 || !cfg.Bridge.Enabled {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	// 未写出的键保留默认值。
	if cfg.Bridge.QueueSize == 0 || cfg.Layout.ListLevelIndent != layout.DefaultListLevelIndent {
		t.Fatalf("defaults should survive partial files: %+v", cfg)
	}
	if cfg.PingTimeout() != 250*time.Millisecond {
		t.Fatalf("ping timeout mismatch: %v", cfg.PingTimeout())
	}

	opts := cfg.Options()
	if opts.Scale != 2 || opts.DefaultTabWidth != 48 || opts.TdPadding != 6 {
		t.Fatalf("options mismatch: %+v", opts)
	}
	if opts.StopAtPage == nil || *opts.StopAtPage != 0 {
		t.Fatalf("stop_at_page should be carried over: %v", opts.StopAtPage)
	}
	if !cfg.Logger().Enabled(context.Background(), -4) {
		t.Fatalf("debug level should be enabled")
	}
}

func TestLoadConfigRejectsBadScale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quire.toml")
	if err := os.WriteFile(path, []byte("[layout]\nscale = 0\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("scale 0 should be rejected")
	}
	if err := os.WriteFile(path, []byte("[layout\n"), 0o644); err == nil {
		if _, err := LoadConfig(path); err == nil {
			t.Fatalf("malformed toml should be rejected")
		}
	}
}
