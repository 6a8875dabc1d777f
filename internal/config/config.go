package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/thenoetrevino/livekanban/internal/config/colors"
)

// Transport kinds
const (
	TransportSocket = "socket"
	TransportRedis  = "redis"
	TransportNone   = "none"
)

// Backend kinds
const (
	BackendSQLite = "sqlite"
	BackendHTTP   = "http"
)

// Config represents the application configuration
type Config struct {
	ActorID     string             `yaml:"actor_id"`
	ProjectID   string             `yaml:"project_id"`
	Channel     string             `yaml:"channel"`
	Transport   TransportConfig    `yaml:"transport"`
	Backend     BackendConfig      `yaml:"backend"`
	Timing      TimingConfig       `yaml:"timing"`
	KeyMappings KeyMappings        `yaml:"key_mappings"`
	ColorScheme colors.ColorScheme `yaml:"theme"`
}

// TransportConfig selects how remote events arrive.
type TransportConfig struct {
	Kind       string `yaml:"kind"` // socket, redis or none
	SocketPath string `yaml:"socket_path"`
	RedisAddr  string `yaml:"redis_addr"`
}

// BackendConfig selects where tasks are stored.
type BackendConfig struct {
	Kind    string `yaml:"kind"` // sqlite or http
	DBPath  string `yaml:"db_path"`
	BaseURL string `yaml:"base_url"`
}

// TimingConfig holds the board's time windows.
type TimingConfig struct {
	SearchDebounce time.Duration `yaml:"search_debounce"`
	PresenceWindow time.Duration `yaml:"presence_window"`
	AdvisoryWindow time.Duration `yaml:"advisory_window"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	c := &Config{
		KeyMappings: DefaultKeyMappings(),
		ColorScheme: *colors.Default(),
	}
	c.applyDefaults()
	return c
}

// loadThemeFile loads and merges theme from LIVEKANBAN_THEME_FILE environment variable
func loadThemeFile(config *Config) {
	themeFile := os.Getenv("LIVEKANBAN_THEME_FILE")
	if themeFile == "" {
		return
	}

	themeData, err := os.ReadFile(themeFile)
	if err != nil {
		return
	}

	var themeConfig struct {
		Theme colors.ColorScheme `yaml:"theme"`
	}

	if yaml.Unmarshal(themeData, &themeConfig) == nil {
		config.ColorScheme.MergeFrom(themeConfig.Theme)
	}
}

// Load loads config from the user's config directory
// Returns default config if file doesn't exist
func Load() (*Config, error) {
	configPath, err := Path()
	if err != nil {
		// Return default config if we can't determine config path
		config := Default()
		loadThemeFile(config)
		return config, config.applyEnv()
	}
	return LoadFrom(configPath)
}

// LoadFrom loads config from path, falling back to defaults when the file
// does not exist. Environment overrides are applied last.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		config := Default()
		loadThemeFile(config)
		return config, config.applyEnv()
	}
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	loadThemeFile(&config)

	// Fill in any missing values with defaults
	config.applyDefaults()

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Save saves the config to the user's config directory
func (c *Config) Save() error {
	configPath, err := Path()
	if err != nil {
		return err
	}

	// Create config directory if it doesn't exist
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0o644)
}

// Path returns the path to the config file
func Path() (string, error) {
	// Try XDG_CONFIG_HOME first
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "livekanban", "config.yaml"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(homeDir, ".config", "livekanban", "config.yaml"), nil
}

// DataDir returns ~/.livekanban, where the socket, database and logs live.
func DataDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			return ".livekanban"
		}
	}
	return filepath.Join(home, ".livekanban")
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	if c.Channel == "" {
		c.Channel = "task-updates"
	}
	if c.Transport.Kind == "" {
		c.Transport.Kind = TransportSocket
	}
	if c.Transport.SocketPath == "" {
		c.Transport.SocketPath = filepath.Join(DataDir(), "livekanban.sock")
	}
	if c.Transport.RedisAddr == "" {
		c.Transport.RedisAddr = "localhost:6379"
	}
	if c.Backend.Kind == "" {
		c.Backend.Kind = BackendSQLite
	}
	if c.Backend.DBPath == "" {
		c.Backend.DBPath = filepath.Join(DataDir(), "board.db")
	}
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = "http://localhost:8080"
	}
	if c.Timing.SearchDebounce <= 0 {
		c.Timing.SearchDebounce = 300 * time.Millisecond
	}
	if c.Timing.PresenceWindow <= 0 {
		c.Timing.PresenceWindow = 2 * time.Second
	}
	if c.Timing.AdvisoryWindow <= 0 {
		c.Timing.AdvisoryWindow = 3 * time.Second
	}
	if c.Timing.RequestTimeout <= 0 {
		c.Timing.RequestTimeout = 10 * time.Second
	}
	c.KeyMappings.applyDefaults()
	c.ColorScheme.ApplyDefaults()
}

// applyEnv applies LIVEKANBAN_* overrides.
func (c *Config) applyEnv() error {
	strs := []struct {
		key string
		dst *string
	}{
		{"LIVEKANBAN_ACTOR_ID", &c.ActorID},
		{"LIVEKANBAN_PROJECT_ID", &c.ProjectID},
		{"LIVEKANBAN_CHANNEL", &c.Channel},
		{"LIVEKANBAN_TRANSPORT", &c.Transport.Kind},
		{"LIVEKANBAN_SOCKET_PATH", &c.Transport.SocketPath},
		{"LIVEKANBAN_REDIS_ADDR", &c.Transport.RedisAddr},
		{"LIVEKANBAN_BACKEND", &c.Backend.Kind},
		{"LIVEKANBAN_DB_PATH", &c.Backend.DBPath},
		{"LIVEKANBAN_API_URL", &c.Backend.BaseURL},
	}
	for _, s := range strs {
		if v := os.Getenv(s.key); v != "" {
			*s.dst = v
		}
	}

	if v := os.Getenv("LIVEKANBAN_SEARCH_DEBOUNCE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid LIVEKANBAN_SEARCH_DEBOUNCE %q", v)
		}
		c.Timing.SearchDebounce = d
	}
	return c.Validate()
}

// Validate checks the transport and backend kinds.
func (c *Config) Validate() error {
	switch c.Transport.Kind {
	case TransportSocket, TransportRedis, TransportNone:
	default:
		return fmt.Errorf("unknown transport %q", c.Transport.Kind)
	}
	switch c.Backend.Kind {
	case BackendSQLite, BackendHTTP:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend.Kind)
	}
	return nil
}
