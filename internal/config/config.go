// Package config loads meilihook configuration from defaults, YAML files and
// MEILIHOOK_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/meilihook/internal/connector"
	"github.com/Aman-CERP/meilihook/internal/daemon"
	"github.com/Aman-CERP/meilihook/internal/errors"
	"github.com/Aman-CERP/meilihook/internal/hooks"
	"github.com/Aman-CERP/meilihook/internal/watcher"
)

// ProjectFile is the per-project configuration file name.
const ProjectFile = ".meilihook.yaml"

// Config represents the complete meilihook configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	Connector ConnectorConfig `yaml:"connector" json:"connector"`
	Hooks     HooksConfig     `yaml:"hooks" json:"hooks"`
	Watch     WatchConfig     `yaml:"watch" json:"watch"`
	Daemon    DaemonConfig    `yaml:"daemon" json:"daemon"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// ConnectorConfig selects the search index backend.
type ConnectorConfig struct {
	// Backend is one of meilisearch, bleve or sqlite.
	Backend string `yaml:"backend" json:"backend"`

	Host        string            `yaml:"host" json:"host"`
	APIKey      string            `yaml:"api_key" json:"api_key"`
	PrimaryKey  string            `yaml:"primary_key" json:"primary_key"`
	IndexPrefix string            `yaml:"index_prefix" json:"index_prefix"`
	Indexes     map[string]string `yaml:"indexes,omitempty" json:"indexes,omitempty"`
	Timeout     time.Duration     `yaml:"timeout" json:"timeout"`

	// RequestsPerSecond and Burst shape outbound Meilisearch traffic.
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst" json:"burst"`

	// LocalPath is the on-disk location of the bleve or sqlite index.
	// Empty selects a default under ~/.meilihook.
	LocalPath string `yaml:"local_path" json:"local_path"`
}

// HooksConfig controls which records the hooks forward.
type HooksConfig struct {
	PublishedField string `yaml:"published_field" json:"published_field"`
	// Collections limits the hooks to these collections. Empty means all.
	Collections []string `yaml:"collections,omitempty" json:"collections,omitempty"`
}

// WatchConfig configures the content-directory watcher.
type WatchConfig struct {
	// Root is the content directory. Empty disables watching in the daemon.
	Root           string        `yaml:"root" json:"root"`
	DebounceWindow time.Duration `yaml:"debounce_window" json:"debounce_window"`
	PollInterval   time.Duration `yaml:"poll_interval" json:"poll_interval"`
	ForcePolling   bool          `yaml:"force_polling" json:"force_polling"`
}

// DaemonConfig configures the hook daemon.
type DaemonConfig struct {
	SocketPath    string        `yaml:"socket_path" json:"socket_path"`
	PIDPath       string        `yaml:"pid_path" json:"pid_path"`
	LockPath      string        `yaml:"lock_path" json:"lock_path"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	FlushInterval time.Duration `yaml:"flush_interval" json:"flush_interval"`
}

// TelemetryConfig configures the hook outcome store.
type TelemetryConfig struct {
	// Enabled is a pointer so an explicit false in YAML survives merging.
	Enabled *bool  `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Path    string `yaml:"path" json:"path"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	File      string `yaml:"file" json:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	d := daemon.DefaultConfig()
	enabled := true

	return &Config{
		Version: 1,
		Connector: ConnectorConfig{
			Backend:           connector.BackendMeilisearch,
			Host:              connector.DefaultHost,
			PrimaryKey:        connector.DefaultPrimaryKey,
			Timeout:           connector.DefaultTimeout,
			RequestsPerSecond: connector.DefaultRequestsPerSecond,
			Burst:             connector.DefaultBurst,
		},
		Hooks: HooksConfig{
			PublishedField: hooks.DefaultPublishedField,
		},
		Watch: WatchConfig{
			DebounceWindow: 200 * time.Millisecond,
			PollInterval:   5 * time.Second,
		},
		Daemon: DaemonConfig{
			SocketPath:    d.SocketPath,
			PIDPath:       d.PIDPath,
			LockPath:      d.LockPath,
			Timeout:       d.Timeout,
			FlushInterval: d.FlushInterval,
		},
		Telemetry: TelemetryConfig{
			Enabled: &enabled,
			Path:    filepath.Join(DataDir(), "telemetry.db"),
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// DataDir returns ~/.meilihook, falling back to the temp directory.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".meilihook")
	}
	return filepath.Join(home, ".meilihook")
}

// GetUserConfigPath returns the path to the user configuration file.
// It respects XDG_CONFIG_HOME and falls back to ~/.config.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "meilihook", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "meilihook", "config.yaml")
	}
	return filepath.Join(home, ".config", "meilihook", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig returns nil without error when no user config exists.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	var cfg Config
	if err := readYAML(configPath, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load loads configuration for dir.
// Precedence, lowest first:
//  1. Hardcoded defaults
//  2. User config ($XDG_CONFIG_HOME/meilihook/config.yaml)
//  3. Project config (.meilihook.yaml in dir)
//  4. Environment variables (MEILIHOOK_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	userCfg, err := loadUserConfig()
	if err != nil {
		return nil, errors.ConfigError("failed to load user config", err)
	}
	if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, errors.ConfigError("failed to load project config", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigError("invalid configuration", err).
			WithSuggestion("Run 'meilihook config show' to inspect the effective configuration")
	}
	return cfg, nil
}

// LoadFile loads defaults merged with a single explicit file, then env vars.
func LoadFile(path string) (*Config, error) {
	cfg := NewConfig()

	var parsed Config
	if err := readYAML(path, &parsed); err != nil {
		return nil, errors.New(errors.ErrCodeConfigNotFound, "failed to load config file", err).
			WithDetail("path", path)
	}
	cfg.mergeWith(&parsed)
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigError("invalid configuration", err)
	}
	return cfg, nil
}

// loadFromFile merges .meilihook.yaml (or .yml) from dir if present.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{ProjectFile, ".meilihook.yml"} {
		path := filepath.Join(dir, name)
		if !fileExists(path) {
			continue
		}
		var parsed Config
		if err := readYAML(path, &parsed); err != nil {
			return err
		}
		c.mergeWith(&parsed)
		return nil
	}
	return nil
}

func readYAML(path string, out *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	// Connector
	oc := other.Connector
	if oc.Backend != "" {
		c.Connector.Backend = oc.Backend
	}
	if oc.Host != "" {
		c.Connector.Host = oc.Host
	}
	if oc.APIKey != "" {
		c.Connector.APIKey = oc.APIKey
	}
	if oc.PrimaryKey != "" {
		c.Connector.PrimaryKey = oc.PrimaryKey
	}
	if oc.IndexPrefix != "" {
		c.Connector.IndexPrefix = oc.IndexPrefix
	}
	if len(oc.Indexes) > 0 {
		if c.Connector.Indexes == nil {
			c.Connector.Indexes = make(map[string]string, len(oc.Indexes))
		}
		for k, v := range oc.Indexes {
			c.Connector.Indexes[k] = v
		}
	}
	if oc.Timeout != 0 {
		c.Connector.Timeout = oc.Timeout
	}
	if oc.RequestsPerSecond != 0 {
		c.Connector.RequestsPerSecond = oc.RequestsPerSecond
	}
	if oc.Burst != 0 {
		c.Connector.Burst = oc.Burst
	}
	if oc.LocalPath != "" {
		c.Connector.LocalPath = oc.LocalPath
	}

	// Hooks
	if other.Hooks.PublishedField != "" {
		c.Hooks.PublishedField = other.Hooks.PublishedField
	}
	if len(other.Hooks.Collections) > 0 {
		c.Hooks.Collections = other.Hooks.Collections
	}

	// Watch
	if other.Watch.Root != "" {
		c.Watch.Root = other.Watch.Root
	}
	if other.Watch.DebounceWindow != 0 {
		c.Watch.DebounceWindow = other.Watch.DebounceWindow
	}
	if other.Watch.PollInterval != 0 {
		c.Watch.PollInterval = other.Watch.PollInterval
	}
	if other.Watch.ForcePolling {
		c.Watch.ForcePolling = true
	}

	// Daemon
	od := other.Daemon
	if od.SocketPath != "" {
		c.Daemon.SocketPath = od.SocketPath
	}
	if od.PIDPath != "" {
		c.Daemon.PIDPath = od.PIDPath
	}
	if od.LockPath != "" {
		c.Daemon.LockPath = od.LockPath
	}
	if od.Timeout != 0 {
		c.Daemon.Timeout = od.Timeout
	}
	if od.FlushInterval != 0 {
		c.Daemon.FlushInterval = od.FlushInterval
	}

	// Telemetry
	if other.Telemetry.Enabled != nil {
		v := *other.Telemetry.Enabled
		c.Telemetry.Enabled = &v
	}
	if other.Telemetry.Path != "" {
		c.Telemetry.Path = other.Telemetry.Path
	}

	// Logging
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.File != "" {
		c.Logging.File = other.Logging.File
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}
}

// applyEnvOverrides applies MEILIHOOK_* variables. Unparseable values are
// ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MEILIHOOK_BACKEND"); v != "" {
		c.Connector.Backend = v
	}
	if v := os.Getenv("MEILIHOOK_HOST"); v != "" {
		c.Connector.Host = v
	}
	if v := os.Getenv("MEILIHOOK_API_KEY"); v != "" {
		c.Connector.APIKey = v
	}
	if v := os.Getenv("MEILIHOOK_INDEX_PREFIX"); v != "" {
		c.Connector.IndexPrefix = v
	}
	if v := os.Getenv("MEILIHOOK_PRIMARY_KEY"); v != "" {
		c.Connector.PrimaryKey = v
	}
	if v := os.Getenv("MEILIHOOK_LOCAL_PATH"); v != "" {
		c.Connector.LocalPath = v
	}
	if v := os.Getenv("MEILIHOOK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Connector.Timeout = d
		}
	}
	if v := os.Getenv("MEILIHOOK_REQUESTS_PER_SECOND"); v != "" {
		if r, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && r > 0 {
			c.Connector.RequestsPerSecond = r
		}
	}

	if v := os.Getenv("MEILIHOOK_PUBLISHED_FIELD"); v != "" {
		c.Hooks.PublishedField = v
	}
	if v := os.Getenv("MEILIHOOK_COLLECTIONS"); v != "" {
		c.Hooks.Collections = splitList(v)
	}

	if v := os.Getenv("MEILIHOOK_WATCH_ROOT"); v != "" {
		c.Watch.Root = v
	}
	if v := os.Getenv("MEILIHOOK_FORCE_POLLING"); v != "" {
		c.Watch.ForcePolling = parseBool(v)
	}

	if v := os.Getenv("MEILIHOOK_SOCKET"); v != "" {
		c.Daemon.SocketPath = v
	}

	if v := os.Getenv("MEILIHOOK_TELEMETRY_ENABLED"); v != "" {
		enabled := parseBool(v)
		c.Telemetry.Enabled = &enabled
	}

	if v := os.Getenv("MEILIHOOK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the configuration for values no component can use.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Connector.Backend) {
	case connector.BackendMeilisearch:
		if c.Connector.Host == "" {
			return fmt.Errorf("connector.host is required for the meilisearch backend")
		}
		if !strings.HasPrefix(c.Connector.Host, "http://") && !strings.HasPrefix(c.Connector.Host, "https://") {
			return fmt.Errorf("connector.host must start with http:// or https://, got %s", c.Connector.Host)
		}
	case connector.BackendBleve, connector.BackendSQLite:
	default:
		return fmt.Errorf("connector.backend must be 'meilisearch', 'bleve' or 'sqlite', got %s", c.Connector.Backend)
	}

	if c.Connector.Timeout < 0 {
		return fmt.Errorf("connector.timeout must be non-negative, got %s", c.Connector.Timeout)
	}
	if c.Connector.RequestsPerSecond < 0 {
		return fmt.Errorf("connector.requests_per_second must be non-negative, got %g", c.Connector.RequestsPerSecond)
	}
	if c.Connector.Burst < 0 {
		return fmt.Errorf("connector.burst must be non-negative, got %d", c.Connector.Burst)
	}
	if c.Hooks.PublishedField == "" {
		return fmt.Errorf("hooks.published_field cannot be empty")
	}
	if c.Watch.DebounceWindow < 0 || c.Watch.PollInterval < 0 {
		return fmt.Errorf("watch durations must be non-negative")
	}
	if c.Daemon.Timeout <= 0 {
		return fmt.Errorf("daemon.timeout must be positive, got %s", c.Daemon.Timeout)
	}
	if c.Daemon.FlushInterval <= 0 {
		return fmt.Errorf("daemon.flush_interval must be positive, got %s", c.Daemon.FlushInterval)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Redacted returns a copy safe to print, with the API key masked.
func (c *Config) Redacted() *Config {
	cp := *c
	cp.Connector.APIKey = maskSecret(c.Connector.APIKey)
	if c.Connector.Indexes != nil {
		cp.Connector.Indexes = make(map[string]string, len(c.Connector.Indexes))
		for k, v := range c.Connector.Indexes {
			cp.Connector.Indexes[k] = v
		}
	}
	return &cp
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "********"
	}
	return "********" + s[len(s)-4:]
}

// TelemetryEnabled reports whether hook outcomes are persisted.
func (c *Config) TelemetryEnabled() bool {
	return c.Telemetry.Enabled == nil || *c.Telemetry.Enabled
}

// ConnectorConfig converts the connector section for connector.New.
func (c *Config) ConnectorConfig() connector.Config {
	cc := c.Connector
	backend := strings.ToLower(cc.Backend)

	local := cc.LocalPath
	if local == "" {
		switch backend {
		case connector.BackendBleve:
			local = filepath.Join(DataDir(), "bleve")
		case connector.BackendSQLite:
			local = filepath.Join(DataDir(), "entries.db")
		}
	}

	return connector.Config{
		Backend:           backend,
		Host:              cc.Host,
		APIKey:            cc.APIKey,
		PrimaryKey:        cc.PrimaryKey,
		IndexPrefix:       cc.IndexPrefix,
		Indexes:           cc.Indexes,
		Timeout:           cc.Timeout,
		RequestsPerSecond: cc.RequestsPerSecond,
		Burst:             cc.Burst,
		LocalPath:         local,
	}
}

// DaemonConfig converts the daemon section.
func (c *Config) DaemonConfig() daemon.Config {
	return daemon.Config{
		SocketPath:    c.Daemon.SocketPath,
		PIDPath:       c.Daemon.PIDPath,
		LockPath:      c.Daemon.LockPath,
		Timeout:       c.Daemon.Timeout,
		FlushInterval: c.Daemon.FlushInterval,
	}
}

// WatcherOptions converts the watch section.
func (c *Config) WatcherOptions() watcher.Options {
	return watcher.Options{
		DebounceWindow: c.Watch.DebounceWindow,
		PollInterval:   c.Watch.PollInterval,
		ForcePolling:   c.Watch.ForcePolling,
	}.WithDefaults()
}

// HookOptions returns listener options for the hooks section.
func (c *Config) HookOptions() []hooks.Option {
	opts := []hooks.Option{hooks.WithPublishedField(c.Hooks.PublishedField)}
	if len(c.Hooks.Collections) > 0 {
		opts = append(opts, hooks.WithCollections(c.Hooks.Collections...))
	}
	return opts
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
