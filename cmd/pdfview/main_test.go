package main

import (
	"bytes"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/pdfview"
	"github.com/gogpu/pdfview/internal/config"
	"github.com/gogpu/pdfview/internal/pdftest"
)

// =============================================================================
// Flag Tests
// =============================================================================

func TestSizeValue(t *testing.T) {
	tests := []struct {
		in      string
		want    image.Point
		wantErr bool
	}{
		{"800x600", image.Pt(800, 600), false},
		{"1024X768", image.Pt(1024, 768), false},
		{"800", image.Point{}, true},
		{"0x600", image.Point{}, true},
		{"axb", image.Point{}, true},
	}
	for _, tt := range tests {
		var v sizeValue
		err := v.Set(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Set(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && image.Point(v) != tt.want {
			t.Errorf("Set(%q) = %v, want %v", tt.in, image.Point(v), tt.want)
		}
	}

	v := sizeValue(image.Pt(3, 4))
	if v.String() != "3x4" || v.Type() != "size" {
		t.Errorf("String/Type = %q/%q, want 3x4/size", v.String(), v.Type())
	}
}

func TestLevelValue(t *testing.T) {
	var l levelValue
	if l.String() != "" {
		t.Errorf("unset String = %q, want empty", l.String())
	}
	if err := l.Set("debug"); err != nil {
		t.Fatalf("Set(debug): %v", err)
	}
	if !l.set || l.level != slog.LevelDebug {
		t.Errorf("level = %v (set %v), want debug", l.level, l.set)
	}
	if l.String() != "debug" {
		t.Errorf("String = %q, want debug", l.String())
	}
	if err := l.Set("chatty"); err == nil {
		t.Error("Set(chatty) = nil error")
	}
}

// =============================================================================
// Command Tests
// =============================================================================

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		cfgFile, sourceKind, logLevel = "", "", levelValue{}
		pdfview.SetLogger(nil)
	})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("pdfview %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestRenderCommand(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "pdfview.yaml")
	if err := config.WriteDefault(cfg); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}
	doc := pdftest.WriteFile(t, pdftest.Page{Width: 300, Height: 400}, pdftest.Page{Width: 300, Height: 400})
	out := filepath.Join(dir, "out.png")
	state := filepath.Join(dir, "state.yaml")

	got := execute(t, "render", "--config", cfg, "--source", "outline",
		"--size", "300x400", "--page", "2", "-o", out, "--state", state, "--save-state", doc)
	if !strings.Contains(got, "pages 2-2 of 2") {
		t.Errorf("output = %q, want page range 2-2", got)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open png: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 300, 400) {
		t.Errorf("png bounds = %v, want 300x400", img.Bounds())
	}

	sf, err := os.Open(state)
	if err != nil {
		t.Fatalf("open state: %v", err)
	}
	defer sf.Close()
	s, err := pdfview.ReadState(sf)
	if err != nil {
		t.Fatalf("ReadState: %v", err)
	}
	if s.FirstVisiblePage != 1 || s.DocumentID != pdfview.DocumentID(doc) {
		t.Errorf("saved state = %+v, want page 1 of %s", s, doc)
	}
}

func TestInfoCommand(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "pdfview.yaml")
	if err := config.WriteDefault(cfg); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}
	doc := pdftest.WriteFile(t, pdftest.Page{Width: 612, Height: 792})

	got := execute(t, "info", "--config", cfg, "--source", "outline", doc)
	for _, want := range []string{"pages: 1", "612 x 792 pt", "1,893 KB"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestConfigInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.yaml")
	execute(t, "config", "init", path)

	if _, err := config.NewManager(path); err != nil {
		t.Errorf("written config does not load: %v", err)
	}
}
