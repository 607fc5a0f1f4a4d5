// Package config loads the settings shared by the admin server, the scene
// server and popupctl.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	Env     string        `mapstructure:"env"` // development, production
	Admin   AdminConfig   `mapstructure:"admin"`
	Server  ServerConfig  `mapstructure:"server"`
	API     APIConfig     `mapstructure:"api"`
	Popups  PopupsConfig  `mapstructure:"popups"`
	Editor  EditorConfig  `mapstructure:"editor"`
	Storage StorageConfig `mapstructure:"storage"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Events  EventsConfig  `mapstructure:"events"`
	Log     LogConfig     `mapstructure:"log"`
	Objects ObjectsConfig `mapstructure:"objects"`
}

// AdminConfig configures the admin (editor) server.
type AdminConfig struct {
	Addr         string `mapstructure:"addr"`
	SecureCookie bool   `mapstructure:"secure_cookie"`
}

// ServerConfig configures the scene server.
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	ClickRate      float64  `mapstructure:"click_rate"`  // clicks per second per client
	ClickBurst     int      `mapstructure:"click_burst"` // burst per client
	ReloadPLV      bool     `mapstructure:"reload_plv"`
}

// APIConfig points at the platform API (templates, access checks).
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// PopupsConfig says where published popup scripts are fetched from.
type PopupsConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Space    string        `mapstructure:"space"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// EditorConfig tunes editor sessions.
type EditorConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	SweepSchedule  string        `mapstructure:"sweep_schedule"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend     string `mapstructure:"backend"` // remote, json, sql
	Path        string `mapstructure:"path"`
	PublishPath string `mapstructure:"publish_path"`
	SQLDriver   string `mapstructure:"sql_driver"` // sqlite, postgres
	SQLDSN      string `mapstructure:"sql_dsn"`
}

// RedisConfig enables the shared popup cache when Address is set.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// EventsConfig selects the saved-event transport.
type EventsConfig struct {
	Driver   string   `mapstructure:"driver"` // none, kafka, mqtt
	Topic    string   `mapstructure:"topic"`
	Brokers  []string `mapstructure:"brokers"`
	GroupID  string   `mapstructure:"group_id"`
	Broker   string   `mapstructure:"broker"`
	ClientID string   `mapstructure:"client_id"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
}

// ObjectsConfig locates the click action table.
type ObjectsConfig struct {
	Path string `mapstructure:"path"`
}

// Load reads defaults, an optional YAML file and POPUP_* environment
// overrides. An empty configPath looks for config.yaml in the usual places
// and is not an error when none exists.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.popup-builder")
		_ = v.ReadInConfig()
	}

	v.SetEnvPrefix("POPUP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in defaults.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "remote":
		if c.API.BaseURL == "" {
			return fmt.Errorf("storage.backend remote requires api.base_url")
		}
	case "json", "sql":
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	switch c.Events.Driver {
	case "none", "kafka", "mqtt":
	default:
		return fmt.Errorf("unknown events.driver %q", c.Events.Driver)
	}
	if c.Editor.RequestTimeout <= 0 {
		return fmt.Errorf("editor.request_timeout must be positive")
	}
	return nil
}

// IsProduction reports whether the production environment is configured.
func (c *Config) IsProduction() bool {
	return c != nil && c.Env == "production"
}

func setDefaults(v *viper.Viper) {
	env := os.Getenv("POPUP_ENV")
	if env == "" {
		env = "development"
	}
	v.SetDefault("env", env)

	v.SetDefault("admin.addr", ":8081")
	v.SetDefault("admin.secure_cookie", env == "production")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.click_rate", 10.0)
	v.SetDefault("server.click_burst", 20)
	v.SetDefault("server.reload_plv", true)

	v.SetDefault("api.base_url", "")
	v.SetDefault("api.timeout", 15*time.Second)

	v.SetDefault("popups.base_url", "http://localhost:8080/popups")
	v.SetDefault("popups.space", "atlantis")
	v.SetDefault("popups.cache_ttl", 10*time.Minute)

	v.SetDefault("editor.request_timeout", 15*time.Second)
	v.SetDefault("editor.idle_timeout", 30*time.Minute)
	v.SetDefault("editor.sweep_schedule", "@every 1m")

	v.SetDefault("storage.backend", "json")
	v.SetDefault("storage.path", ".popup_data/templates")
	v.SetDefault("storage.publish_path", ".popup_data/published")
	v.SetDefault("storage.sql_driver", "sqlite")
	v.SetDefault("storage.sql_dsn", ".popup_data/popups.db")

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("events.driver", "none")
	v.SetDefault("events.topic", "popup.saved")
	v.SetDefault("events.brokers", []string{})
	v.SetDefault("events.group_id", "popup-scene")
	v.SetDefault("events.broker", "")
	v.SetDefault("events.client_id", "popup-builder")

	if env == "production" {
		v.SetDefault("log.level", "info")
		v.SetDefault("log.format", "json")
	} else {
		v.SetDefault("log.level", "debug")
		v.SetDefault("log.format", "text")
	}

	v.SetDefault("objects.path", "objects.yaml")
}

// NewLogger builds the slog logger described by cfg.
func NewLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
