package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/huh"
	"gopkg.in/yaml.v3"

	"github.com/sergeknystautas/diffview/internal/version"
)

var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrInvalidConfig  = errors.New("invalid config")
)

const (
	DefaultBindAddress = "127.0.0.1"
	DefaultPort        = 7338

	// Default diff limits
	DefaultLargeFileThreshold    = 50000
	DefaultMaxParallel           = 8
	DefaultCommitCacheTTLMinutes = 30

	// Default watch timings
	DefaultDebounceMs       = 300
	DefaultSweepIntervalSec = 30

	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Diff styles.
const (
	DiffStyleUnified = "unified"
	DiffStyleSplit   = "split"
)

// Tracing exporters.
const (
	TracingExporterNone   = "none"
	TracingExporterStdout = "stdout"
	TracingExporterFile   = "file"
)

// Config represents the application configuration.
type Config struct {
	ConfigVersion string         `yaml:"config_version,omitempty"`
	DefaultRepo   string         `yaml:"default_repo,omitempty"` // repository served when no state is saved
	Network       *NetworkConfig `yaml:"network,omitempty"`
	Diff          *DiffConfig    `yaml:"diff,omitempty"`
	Watch         *WatchConfig   `yaml:"watch,omitempty"`
	Editor        *EditorConfig  `yaml:"editor,omitempty"`
	Logging       *LoggingConfig `yaml:"logging,omitempty"`
	Tracing       *TracingConfig `yaml:"tracing,omitempty"`

	// path is the file path where this config was loaded from or should be saved to.
	path string
}

// NetworkConfig controls server binding.
type NetworkConfig struct {
	BindAddress string `yaml:"bind_address,omitempty"`
	Port        int    `yaml:"port,omitempty"`
}

// DiffConfig controls diff computation.
type DiffConfig struct {
	LargeFileThreshold    int    `yaml:"large_file_threshold,omitempty"` // bytes
	MaxParallel           int    `yaml:"max_parallel,omitempty"`
	DefaultStyle          string `yaml:"default_style,omitempty"` // "unified" or "split"
	CommitCacheTTLMinutes int    `yaml:"commit_cache_ttl_minutes,omitempty"`
}

// WatchConfig controls the file-system change channel.
type WatchConfig struct {
	DebounceMs       int      `yaml:"debounce_ms,omitempty"`
	SweepIntervalSec int      `yaml:"sweep_interval_sec,omitempty"`
	ExcludeDirs      []string `yaml:"exclude_dirs,omitempty"` // added to the built-in exclusions
}

// EditorConfig selects the editor used to open files.
type EditorConfig struct {
	Command string `yaml:"command,omitempty"` // e.g. "code", "cursor", "subl"
}

// LoggingConfig controls server log output.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"` // "text" or "json"
}

// TracingConfig controls OpenTelemetry export.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Exporter   string  `yaml:"exporter,omitempty"`  // "none", "stdout" or "file"
	FilePath   string  `yaml:"file_path,omitempty"` // for the file exporter
	SampleRate float64 `yaml:"sample_rate,omitempty"`
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.Network != nil {
		if c.Network.Port < 0 || c.Network.Port > 65535 {
			return fmt.Errorf("%w: network.port must be between 1 and 65535", ErrInvalidConfig)
		}
	}
	if c.Diff != nil {
		if c.Diff.LargeFileThreshold < 0 {
			return fmt.Errorf("%w: diff.large_file_threshold must be >= 0", ErrInvalidConfig)
		}
		if c.Diff.MaxParallel < 0 {
			return fmt.Errorf("%w: diff.max_parallel must be >= 0", ErrInvalidConfig)
		}
		switch c.Diff.DefaultStyle {
		case "", DiffStyleUnified, DiffStyleSplit:
		default:
			return fmt.Errorf("%w: diff.default_style must be %q or %q", ErrInvalidConfig, DiffStyleUnified, DiffStyleSplit)
		}
	}
	if c.Watch != nil && (c.Watch.DebounceMs < 0 || c.Watch.SweepIntervalSec < 0) {
		return fmt.Errorf("%w: watch timings must be >= 0", ErrInvalidConfig)
	}
	if c.Logging != nil {
		switch strings.ToLower(c.Logging.Format) {
		case "", "text", "json":
		default:
			return fmt.Errorf("%w: logging.format must be text or json", ErrInvalidConfig)
		}
	}
	if c.Tracing != nil {
		switch c.Tracing.Exporter {
		case "", TracingExporterNone, TracingExporterStdout:
		case TracingExporterFile:
			if c.Tracing.FilePath == "" {
				return fmt.Errorf("%w: tracing.file_path is required for the file exporter", ErrInvalidConfig)
			}
		default:
			return fmt.Errorf("%w: unknown tracing.exporter %q", ErrInvalidConfig, c.Tracing.Exporter)
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("%w: tracing.sample_rate must be between 0 and 1", ErrInvalidConfig)
		}
	}
	return nil
}

// Path returns the file the config is saved to.
func (c *Config) Path() string {
	return c.path
}

// GetBindAddress returns the address to bind the server to.
// Defaults to "127.0.0.1" (localhost only).
func (c *Config) GetBindAddress() string {
	if c.Network == nil || c.Network.BindAddress == "" {
		return DefaultBindAddress
	}
	return c.Network.BindAddress
}

// GetPort returns the server port. Defaults to 7338.
func (c *Config) GetPort() int {
	if c.Network == nil || c.Network.Port <= 0 {
		return DefaultPort
	}
	return c.Network.Port
}

// GetListenAddr returns bind address and port joined for net.Listen.
func (c *Config) GetListenAddr() string {
	return fmt.Sprintf("%s:%d", c.GetBindAddress(), c.GetPort())
}

// GetLargeFileThreshold returns the patch size above which patches are withheld.
func (c *Config) GetLargeFileThreshold() int {
	if c.Diff == nil || c.Diff.LargeFileThreshold <= 0 {
		return DefaultLargeFileThreshold
	}
	return c.Diff.LargeFileThreshold
}

// GetMaxParallel returns the per-request git fan-out limit.
func (c *Config) GetMaxParallel() int {
	if c.Diff == nil || c.Diff.MaxParallel <= 0 {
		return DefaultMaxParallel
	}
	return c.Diff.MaxParallel
}

// GetDiffStyle returns the default diff style for new clients.
func (c *Config) GetDiffStyle() string {
	if c.Diff == nil || c.Diff.DefaultStyle == "" {
		return DiffStyleUnified
	}
	return c.Diff.DefaultStyle
}

// CommitCacheTTL returns how long computed commit diffs are cached.
func (c *Config) CommitCacheTTL() time.Duration {
	minutes := DefaultCommitCacheTTLMinutes
	if c.Diff != nil && c.Diff.CommitCacheTTLMinutes > 0 {
		minutes = c.Diff.CommitCacheTTLMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// WatchDebounce returns the change-notification quiet period.
func (c *Config) WatchDebounce() time.Duration {
	ms := DefaultDebounceMs
	if c.Watch != nil && c.Watch.DebounceMs > 0 {
		ms = c.Watch.DebounceMs
	}
	return time.Duration(ms) * time.Millisecond
}

// WatchSweepInterval returns how often dead subscribers are pruned.
func (c *Config) WatchSweepInterval() time.Duration {
	sec := DefaultSweepIntervalSec
	if c.Watch != nil && c.Watch.SweepIntervalSec > 0 {
		sec = c.Watch.SweepIntervalSec
	}
	return time.Duration(sec) * time.Second
}

// GetWatchExcludeDirs returns extra directory names the watcher skips.
func (c *Config) GetWatchExcludeDirs() []string {
	if c.Watch == nil {
		return nil
	}
	return c.Watch.ExcludeDirs
}

// GetEditorCommand returns the configured editor command, or "".
func (c *Config) GetEditorCommand() string {
	if c.Editor == nil {
		return ""
	}
	return strings.TrimSpace(c.Editor.Command)
}

// GetLogLevel returns the configured log level.
func (c *Config) GetLogLevel() string {
	if c.Logging == nil || c.Logging.Level == "" {
		return DefaultLogLevel
	}
	return c.Logging.Level
}

// GetLogFormat returns "text" or "json".
func (c *Config) GetLogFormat() string {
	if c.Logging == nil || c.Logging.Format == "" {
		return DefaultLogFormat
	}
	return strings.ToLower(c.Logging.Format)
}

// GetTracingEnabled reports whether spans are exported.
func (c *Config) GetTracingEnabled() bool {
	return c.Tracing != nil && c.Tracing.Enabled && c.GetTracingExporter() != TracingExporterNone
}

// GetTracingExporter returns the exporter name. Defaults to "stdout" when
// tracing is enabled without one.
func (c *Config) GetTracingExporter() string {
	if c.Tracing == nil {
		return TracingExporterNone
	}
	if c.Tracing.Exporter == "" {
		return TracingExporterStdout
	}
	return c.Tracing.Exporter
}

func (c *Config) GetTracingFilePath() string {
	if c.Tracing == nil {
		return ""
	}
	return c.Tracing.FilePath
}

func (c *Config) GetTracingSampleRate() float64 {
	if c.Tracing == nil {
		return 0
	}
	return c.Tracing.SampleRate
}

// Dir returns the diffview home directory (~/.diffview).
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".diffview"), nil
}

// DefaultPath returns ~/.diffview/config.yaml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// CreateDefault returns a config with every section at its defaults.
func CreateDefault(configPath string) *Config {
	return &Config{
		Network: &NetworkConfig{BindAddress: DefaultBindAddress, Port: DefaultPort},
		Diff: &DiffConfig{
			LargeFileThreshold:    DefaultLargeFileThreshold,
			MaxParallel:           DefaultMaxParallel,
			DefaultStyle:          DiffStyleUnified,
			CommitCacheTTLMinutes: DefaultCommitCacheTTLMinutes,
		},
		Watch:   &WatchConfig{DebounceMs: DefaultDebounceMs, SweepIntervalSec: DefaultSweepIntervalSec},
		Logging: &LoggingConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
		Tracing: &TracingConfig{Exporter: TracingExporterNone},
		path:    configPath,
	}
}

// Load reads, migrates and validates the config at configPath. A missing
// file yields ErrConfigNotFound.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(typeErr.Errors, "; "))
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	// Apply migrations before validation
	if err := cfg.Migrate(); err != nil {
		return nil, fmt.Errorf("config migration failed: %w", err)
	}

	// Store the config path so Save() writes to the same location
	cfg.path = configPath

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if strings.HasPrefix(cfg.DefaultRepo, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DefaultRepo = filepath.Join(homeDir, cfg.DefaultRepo[1:])
	}
	return &cfg, nil
}

// Migrate rolls the config forward to the running binary's schema. Configs
// written by a newer major version are rejected; development builds skip
// that check.
func (c *Config) Migrate() error {
	if c.ConfigVersion == "" {
		return nil
	}
	from, err := semver.NewVersion(c.ConfigVersion)
	if err != nil {
		return fmt.Errorf("%w: config_version %q is not a semantic version", ErrInvalidConfig, c.ConfigVersion)
	}
	if current, err := semver.NewVersion(version.Version); err == nil && from.Major() > current.Major() {
		return fmt.Errorf("%w: config version %s is newer than diffview %s", ErrInvalidConfig, from, current)
	}
	if from.LessThan(semver.MustParse("0.2.0")) && c.Watch != nil {
		// 0.1.x wrote the debounce in seconds.
		if c.Watch.DebounceMs > 0 && c.Watch.DebounceMs < 10 {
			c.Watch.DebounceMs *= 1000
		}
	}
	return nil
}

// Save writes the config to the path it was loaded from or created with.
func (c *Config) Save() error {
	if c.path == "" {
		return fmt.Errorf("config path not set: use Load() or CreateDefault() with a path")
	}

	// Update config version to current binary version
	if _, err := semver.NewVersion(version.Version); err == nil {
		c.ConfigVersion = version.Version
	}

	dir := filepath.Dir(c.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to a temporary file first, then rename for atomicity
	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath) // Clean up temp file
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// LoadOrDefault loads configPath, falling back to defaults when the file
// does not exist.
func LoadOrDefault(configPath string) (*Config, error) {
	cfg, err := Load(configPath)
	if errors.Is(err, ErrConfigNotFound) {
		return CreateDefault(configPath), nil
	}
	return cfg, err
}

// ConfirmFunc asks the user a yes/no question.
type ConfirmFunc func(title, description string) (bool, error)

// HuhConfirm asks through a terminal form.
func HuhConfirm(title, description string) (bool, error) {
	create := true
	err := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(&create).
		Run()
	return create, err
}

// EnsureExists offers to create a default config at configPath when none
// exists. Returns whether a config exists afterwards.
func EnsureExists(configPath string, confirm ConfirmFunc) (bool, error) {
	if _, err := os.Stat(configPath); err == nil {
		return true, nil
	}
	if confirm == nil {
		confirm = HuhConfirm
	}

	ok, err := confirm("Create a diffview config?", fmt.Sprintf("No config file found at %s", configPath))
	if err != nil {
		return false, fmt.Errorf("failed to read response: %w", err)
	}
	if !ok {
		return false, nil
	}

	if err := CreateDefault(configPath).Save(); err != nil {
		return false, fmt.Errorf("failed to save config: %w", err)
	}
	return true, nil
}
