package config

import (
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gogpu/pdfview"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pdfview.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Cache.BudgetKB != pdfview.DefaultCacheBudgetKB {
		t.Errorf("BudgetKB = %d, want %d", cfg.Cache.BudgetKB, pdfview.DefaultCacheBudgetKB)
	}
	if cfg.Cache.ThumbnailPool != pdfview.DefaultThumbnailPool {
		t.Errorf("ThumbnailPool = %d, want %d", cfg.Cache.ThumbnailPool, pdfview.DefaultThumbnailPool)
	}
	if cfg.Source.Kind != "fitz" {
		t.Errorf("Source.Kind = %q, want fitz", cfg.Source.Kind)
	}
}

func TestNewManager(t *testing.T) {
	t.Run("loads from config file", func(t *testing.T) {
		path := writeConfig(t, `
render:
  workers: 6
view:
  page_spacing: 12
  background: "#202020"
source:
  open_delay: 250ms
`)
		mgr, err := NewManager(path)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		if cfg.Render.Workers != 6 {
			t.Errorf("Workers = %d, want 6", cfg.Render.Workers)
		}
		if cfg.View.PageSpacing != 12 {
			t.Errorf("PageSpacing = %d, want 12", cfg.View.PageSpacing)
		}
		if cfg.Source.OpenDelay != 250*time.Millisecond {
			t.Errorf("OpenDelay = %v, want 250ms", cfg.Source.OpenDelay)
		}
		// Unset keys keep their defaults.
		if cfg.Cache.ThumbnailScale != 0.5 {
			t.Errorf("ThumbnailScale = %v, want 0.5", cfg.Cache.ThumbnailScale)
		}
		if mgr.File() != path {
			t.Errorf("File = %q, want %q", mgr.File(), path)
		}
	})

	t.Run("environment overrides file", func(t *testing.T) {
		path := writeConfig(t, "render:\n  workers: 6\n")
		t.Setenv("PDFVIEW_RENDER_WORKERS", "9")

		mgr, err := NewManager(path)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		if got := mgr.Get().Render.Workers; got != 9 {
			t.Errorf("Workers = %d, want 9", got)
		}
	})

	t.Run("invalid background rejected", func(t *testing.T) {
		path := writeConfig(t, "view:\n  background: red\n")
		if _, err := NewManager(path); err == nil {
			t.Error("NewManager accepted an invalid color")
		}
	})

	t.Run("missing explicit file is an error", func(t *testing.T) {
		if _, err := NewManager(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("NewManager(missing file) = nil error")
		}
	})
}

func TestManager_OnChange(t *testing.T) {
	path := writeConfig(t, "render:\n  workers: 2\n")

	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	changed := make(chan *Config, 4)
	mgr.OnChange(func(cfg *Config) { changed <- cfg })
	mgr.WatchConfig()

	// Give the watcher time to start before touching the file.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("render:\n  workers: 5\n"), 0o644); err != nil {
		t.Fatalf("failed to update config: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changed:
			if cfg.Render.Workers == 5 {
				if got := mgr.Get().Render.Workers; got != 5 {
					t.Errorf("Get().Render.Workers = %d, want 5", got)
				}
				return
			}
		case <-deadline:
			t.Fatal("config change not observed")
		}
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdfview.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}

	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager(default file): %v", err)
	}
	got, want := mgr.Get(), DefaultConfig()
	if *got != *want {
		t.Errorf("reloaded defaults = %+v, want %+v", got, want)
	}
}

func TestConfig_Options(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Render.TileWidth, cfg.Render.TileHeight = 128, 128
	cfg.Cache.Recycle = false

	opts := cfg.Options()
	// workers, ratio, defer, budget, pool, scale, margin, limits, spacing,
	// open attempts, tile size, no recycling, background
	if len(opts) != 13 {
		t.Errorf("len(Options) = %d, want 13", len(opts))
	}
	for i, opt := range opts {
		if opt == nil {
			t.Errorf("option %d is nil", i)
		}
	}
}

func TestConfig_LogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"error", slog.LevelError},
		{"", slog.LevelWarn},
		{"loud", slog.LevelWarn},
	}
	for _, tt := range tests {
		cfg := &Config{Log: LogConfig{Level: tt.level}}
		if got := cfg.LogLevel(); got != tt.want {
			t.Errorf("LogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.RGBA
		wantErr bool
	}{
		{"#ffffff", color.RGBA{0xff, 0xff, 0xff, 0xff}, false},
		{"#102030", color.RGBA{0x10, 0x20, 0x30, 0xff}, false},
		{"#10203080", color.RGBA{0x10, 0x20, 0x30, 0x80}, false},
		{"white", color.RGBA{}, true},
		{"#12345", color.RGBA{}, true},
		{"#gggggg", color.RGBA{}, true},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseColor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
