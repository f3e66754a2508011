package pubsite

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "PUBSITE_"

// SiteConfig holds all configuration for a pubsite instance.
type SiteConfig struct {
	Name        string `koanf:"name" validate:"required"`        // Site name (default "Blog")
	URL         string `koanf:"url" validate:"required,url"`     // Canonical URL (default "http://localhost:3000")
	Description string `koanf:"description"`                     // Site description for RSS and meta tags
	Author      string `koanf:"author"`                          // Author name for JSON-LD

	Addr         string `koanf:"addr" validate:"required"`          // Listen address (default ":3000")
	DatabasePath string `koanf:"database_path" validate:"required"` // SQLite path (default "data/pubsite.db")

	LogLevel string `koanf:"log_level" validate:"omitempty,oneof=debug info warn error"`
	LogJSON  bool   `koanf:"log_json"`

	SearchRateLimit  int           `koanf:"search_rate_limit"` // searches per window per IP, negative disables
	SearchRateWindow time.Duration `koanf:"search_rate_window"`

	MetricsEnabled bool `koanf:"metrics_enabled"` // expose /metrics
}

// DefaultConfig returns a SiteConfig with every default applied.
func DefaultConfig() SiteConfig {
	var c SiteConfig
	c.setDefaults()
	c.MetricsEnabled = true
	return c
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Blog"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	c.URL = strings.TrimRight(c.URL, "/")
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/pubsite.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.SearchRateLimit == 0 {
		c.SearchRateLimit = 30
	}
	if c.SearchRateWindow == 0 {
		c.SearchRateWindow = time.Minute
	}
}

// Validate checks the config after defaults are applied.
func (c SiteConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("pubsite: invalid config: %w", err)
	}
	return nil
}

// LoadConfig builds a SiteConfig from defaults overridden by PUBSITE_*
// environment variables. Any existing envFiles are loaded first; variables
// already set in the environment win over file values.
func LoadConfig(envFiles ...string) (SiteConfig, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return SiteConfig{}, fmt.Errorf("pubsite: load %s: %w", f, err)
		}
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return SiteConfig{}, fmt.Errorf("pubsite: load defaults: %w", err)
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), value
		},
	}), nil); err != nil {
		return SiteConfig{}, fmt.Errorf("pubsite: load environment: %w", err)
	}

	var cfg SiteConfig
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	}); err != nil {
		return SiteConfig{}, fmt.Errorf("pubsite: decode config: %w", err)
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return SiteConfig{}, err
	}
	return cfg, nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for user-owned static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithStaticFS serves /public from fsys instead of the static directory.
func WithStaticFS(fsys fs.FS) Option {
	return func(a *App) {
		a.staticFS = fsys
	}
}

// WithStore uses an already opened Store instead of opening DatabasePath on Start.
func WithStore(s *Store) Option {
	return func(a *App) {
		a.Store = s
	}
}

// WithLogger replaces the logger built from the config.
func WithLogger(l *log.Logger) Option {
	return func(a *App) {
		a.Logger = l
	}
}
