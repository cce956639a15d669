package main

import (
	"fmt"
	"image"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// sizeValue is a pflag.Value holding a WIDTHxHEIGHT pair.
type sizeValue image.Point

var _ pflag.Value = (*sizeValue)(nil)

func (s *sizeValue) String() string {
	return fmt.Sprintf("%dx%d", s.X, s.Y)
}

func (s *sizeValue) Set(v string) error {
	w, h, ok := strings.Cut(strings.ToLower(v), "x")
	if !ok {
		return fmt.Errorf("want WIDTHxHEIGHT, got %q", v)
	}
	x, err := strconv.Atoi(w)
	if err != nil {
		return fmt.Errorf("width: %w", err)
	}
	y, err := strconv.Atoi(h)
	if err != nil {
		return fmt.Errorf("height: %w", err)
	}
	if x <= 0 || y <= 0 {
		return fmt.Errorf("size must be positive, got %dx%d", x, y)
	}
	*s = sizeValue(image.Pt(x, y))
	return nil
}

func (s *sizeValue) Type() string { return "size" }

// levelValue is a pflag.Value holding a slog level. The zero value is
// unset, so the config file level applies.
type levelValue struct {
	level slog.Level
	set   bool
}

var _ pflag.Value = (*levelValue)(nil)

func (l *levelValue) String() string {
	if !l.set {
		return ""
	}
	return strings.ToLower(l.level.String())
}

func (l *levelValue) Set(v string) error {
	if err := l.level.UnmarshalText([]byte(v)); err != nil {
		return fmt.Errorf("want debug, info, warn or error: %w", err)
	}
	l.set = true
	return nil
}

func (l *levelValue) Type() string { return "level" }
