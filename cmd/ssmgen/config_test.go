package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	t.Run("explicit file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		body := "model: toy\ntemperature: 0.7\nseed: 42\nrepeat_last_n: 16\nengines: 3\nlog_format: json\n"
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig returned error: %v", err)
		}
		if cfg.Model != "toy" || cfg.LogFormat != "json" {
			t.Fatalf("unexpected config %+v", cfg)
		}
		if cfg.Temperature == nil || *cfg.Temperature != 0.7 {
			t.Fatalf("temperature not loaded: %v", cfg.Temperature)
		}
		if cfg.Engines == nil || *cfg.Engines != 3 {
			t.Fatalf("engines not loaded: %v", cfg.Engines)
		}
		if cfg.TopP != nil {
			t.Fatalf("unset field should stay nil, got %v", *cfg.TopP)
		}

		gd := cfg.GenDefaults()
		if gd.Seed == nil || *gd.Seed != 42 || gd.RepeatWindow == nil || *gd.RepeatWindow != 16 {
			t.Fatalf("unexpected generation defaults %+v", gd)
		}
	})

	t.Run("missing explicit file is an error", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("missing default file is empty", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		t.Setenv("HOME", t.TempDir())
		cfg, err := LoadConfig("")
		if err != nil {
			t.Fatalf("LoadConfig returned error: %v", err)
		}
		if cfg != (Config{}) {
			t.Fatalf("expected zero config, got %+v", cfg)
		}
	})

	t.Run("default location", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", dir)
		if err := os.MkdirAll(filepath.Join(dir, "ssmgen"), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "ssmgen", "config.yaml"), []byte("server_address: 0.0.0.0:9000\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		cfg, err := LoadConfig("")
		if err != nil {
			t.Fatalf("LoadConfig returned error: %v", err)
		}
		if cfg.ServerAddress != "0.0.0.0:9000" {
			t.Fatalf("unexpected server address %q", cfg.ServerAddress)
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("temperature: [\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfig(path); err == nil {
			t.Fatal("expected parse error")
		}
	})
}
