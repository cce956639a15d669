package config

import "time"

// Config holds pdfview configuration.
// Stored at: ./pdfview.yaml or $HOME/.pdfview/pdfview.yaml
type Config struct {
	Source SourceConfig `mapstructure:"source" yaml:"source"`
	Render RenderConfig `mapstructure:"render" yaml:"render"`
	Cache  CacheConfig  `mapstructure:"cache" yaml:"cache"`
	View   ViewConfig   `mapstructure:"view" yaml:"view"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

// SourceConfig selects and configures the page source.
type SourceConfig struct {
	// Kind is "fitz" (MuPDF) or "outline" (page outlines only).
	Kind string `mapstructure:"kind" yaml:"kind"`
	// CachedPages is the number of full-page rasters the fitz source keeps.
	CachedPages int `mapstructure:"cached_pages" yaml:"cached_pages"`
	// OpenAttempts and OpenDelay control retrying a failed open.
	OpenAttempts int           `mapstructure:"open_attempts" yaml:"open_attempts"`
	OpenDelay    time.Duration `mapstructure:"open_delay" yaml:"open_delay"`
}

// RenderConfig configures the render streams.
type RenderConfig struct {
	Workers int `mapstructure:"workers" yaml:"workers"`
	// TileWidth and TileHeight fix the detail tile size; zero derives it
	// from the surface and TileRatio.
	TileWidth  int `mapstructure:"tile_width" yaml:"tile_width"`
	TileHeight int `mapstructure:"tile_height" yaml:"tile_height"`
	TileRatio  int `mapstructure:"tile_ratio" yaml:"tile_ratio"`
	// DeferQuality requests detail tiles only when a gesture ends.
	DeferQuality bool `mapstructure:"defer_quality" yaml:"defer_quality"`
}

// CacheConfig configures buffer recycling.
type CacheConfig struct {
	Recycle         bool    `mapstructure:"recycle" yaml:"recycle"`
	BudgetKB        int     `mapstructure:"budget_kb" yaml:"budget_kb"`
	ThumbnailPool   int     `mapstructure:"thumbnail_pool" yaml:"thumbnail_pool"`
	ThumbnailScale  float64 `mapstructure:"thumbnail_scale" yaml:"thumbnail_scale"`
	ThumbnailMargin int     `mapstructure:"thumbnail_margin" yaml:"thumbnail_margin"`
}

// ViewConfig configures the viewport.
type ViewConfig struct {
	MinScale    float64 `mapstructure:"min_scale" yaml:"min_scale"`
	MaxScale    float64 `mapstructure:"max_scale" yaml:"max_scale"`
	PageSpacing int     `mapstructure:"page_spacing" yaml:"page_spacing"`
	// Background is the placeholder color as #rrggbb.
	Background string `mapstructure:"background" yaml:"background"`
}

// LogConfig configures the CLI logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `mapstructure:"level" yaml:"level"`
}

// DefaultConfig returns configuration matching the library defaults.
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			Kind:         "fitz",
			CachedPages:  4,
			OpenAttempts: 3,
			OpenDelay:    100 * time.Millisecond,
		},
		Render: RenderConfig{
			Workers:   2,
			TileRatio: 3,
		},
		Cache: CacheConfig{
			Recycle:         true,
			BudgetKB:        64 << 10,
			ThumbnailPool:   16,
			ThumbnailScale:  0.5,
			ThumbnailMargin: 5,
		},
		View: ViewConfig{
			MinScale:    1,
			MaxScale:    10,
			PageSpacing: 0,
			Background:  "#ffffff",
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// defaults flattens DefaultConfig into viper keys.
func defaults() map[string]any {
	d := DefaultConfig()
	return map[string]any{
		"source.kind":            d.Source.Kind,
		"source.cached_pages":    d.Source.CachedPages,
		"source.open_attempts":   d.Source.OpenAttempts,
		"source.open_delay":      d.Source.OpenDelay,
		"render.workers":         d.Render.Workers,
		"render.tile_width":      d.Render.TileWidth,
		"render.tile_height":     d.Render.TileHeight,
		"render.tile_ratio":      d.Render.TileRatio,
		"render.defer_quality":   d.Render.DeferQuality,
		"cache.recycle":          d.Cache.Recycle,
		"cache.budget_kb":        d.Cache.BudgetKB,
		"cache.thumbnail_pool":   d.Cache.ThumbnailPool,
		"cache.thumbnail_scale":  d.Cache.ThumbnailScale,
		"cache.thumbnail_margin": d.Cache.ThumbnailMargin,
		"view.min_scale":         d.View.MinScale,
		"view.max_scale":         d.View.MaxScale,
		"view.page_spacing":      d.View.PageSpacing,
		"view.background":        d.View.Background,
		"log.level":              d.Log.Level,
	}
}
