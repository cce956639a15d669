// Package config loads pdfview settings from a YAML file and PDFVIEW_*
// environment variables, and reloads them when the file changes.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/pdfview"
)

// FileName is the config file name searched for without an explicit path.
const FileName = "pdfview"

// EnvPrefix prefixes environment overrides, e.g. PDFVIEW_RENDER_WORKERS.
const EnvPrefix = "PDFVIEW"

// ErrInvalidColor is returned for malformed color strings.
var ErrInvalidColor = errors.New("config: invalid color")

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v *viper.Viper

	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
// An empty cfgFile searches "." and "$HOME/.pdfview"; a missing file is
// not an error.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{v: viper.New()}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	for key, value := range defaults() {
		cm.v.SetDefault(key, value)
	}

	cm.v.SetEnvPrefix(EnvPrefix)
	cm.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cm.v.AutomaticEnv()

	if cfgFile != "" {
		cm.v.SetConfigFile(cfgFile)
	} else {
		cm.v.SetConfigName(FileName)
		cm.v.SetConfigType("yaml")
		cm.v.AddConfigPath(".")
		cm.v.AddConfigPath("$HOME/.pdfview")
	}

	if err := cm.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if _, err := ParseColor(cfg.View.Background); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// File returns the config file in use, or "" when running on defaults.
func (cm *Manager) File() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration. A file that fails to
// parse is logged and the previous configuration stays active.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			pdfview.Logger().Warn("config: reload failed", "file", e.Name, "err", err)
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		pdfview.Logger().Info("config: reloaded", "file", e.Name, "op", e.Op.String())
		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# pdfview configuration
# Every key can be overridden with an environment variable, e.g.
#   PDFVIEW_RENDER_WORKERS=4 PDFVIEW_CACHE_BUDGET_KB=32768

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}

// Options converts the configuration to document options.
func (c *Config) Options() []pdfview.Option {
	opts := []pdfview.Option{
		pdfview.WithWorkers(c.Render.Workers),
		pdfview.WithTileRatio(c.Render.TileRatio),
		pdfview.WithDeferredQuality(c.Render.DeferQuality),
		pdfview.WithCacheBudget(c.Cache.BudgetKB),
		pdfview.WithThumbnailPoolSize(c.Cache.ThumbnailPool),
		pdfview.WithThumbnailScale(c.Cache.ThumbnailScale),
		pdfview.WithThumbnailMargin(c.Cache.ThumbnailMargin),
		pdfview.WithScaleLimits(c.View.MinScale, c.View.MaxScale),
		pdfview.WithPageSpacing(c.View.PageSpacing),
		pdfview.WithOpenAttempts(c.Source.OpenAttempts, c.Source.OpenDelay),
	}
	if c.Render.TileWidth > 0 && c.Render.TileHeight > 0 {
		opts = append(opts, pdfview.WithTileSize(c.Render.TileWidth, c.Render.TileHeight))
	}
	if !c.Cache.Recycle {
		opts = append(opts, pdfview.WithoutRecycling())
	}
	if bg, err := ParseColor(c.View.Background); err == nil {
		opts = append(opts, pdfview.WithBackground(bg))
	}
	return opts
}

// LogLevel returns the configured slog level, defaulting to warn.
func (c *Config) LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelWarn
	}
	return level
}

// ParseColor parses "#rrggbb" or "#rrggbbaa".
func ParseColor(s string) (color.RGBA, error) {
	c := color.RGBA{A: 0xff}
	var err error
	switch len(s) {
	case 7:
		_, err = fmt.Sscanf(s, "#%02x%02x%02x", &c.R, &c.G, &c.B)
	case 9:
		_, err = fmt.Sscanf(s, "#%02x%02x%02x%02x", &c.R, &c.G, &c.B, &c.A)
	default:
		err = errors.New("want #rrggbb or #rrggbbaa")
	}
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w %q: %v", ErrInvalidColor, s, err)
	}
	return c, nil
}
