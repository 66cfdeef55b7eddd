package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/tabtime/internal/backup"
)

// Config captures everything the popup and the background process read from
// the shared tabtime config file.
type Config struct {
	APIBind  string
	StateDir string
	BusDir   string

	CriticalTimeout    time.Duration
	BackgroundTimeout  time.Duration
	BackgroundAttempts int

	CriticalFallbackEvery time.Duration
	StatisticsEvery       time.Duration

	IconTimeout time.Duration
	IconLookup  string

	LogLevel string
}

const (
	defaultConfigPath = "~/.config/tabtime/config.toml"
	defaultStateDir   = "~/.local/share/tabtime"
	defaultAPIBind    = "127.0.0.1:7490"
	defaultIconLookup = "https://www.google.com/s2/favicons?domain=%s&sz=64"
	defaultLogLevel   = "info"

	defaultCriticalTimeout       = 1500 * time.Millisecond
	defaultBackgroundTimeout     = 5 * time.Second
	defaultBackgroundAttempts    = 3
	defaultCriticalFallbackEvery = 60 * time.Second
	defaultStatisticsEvery       = 30 * time.Second
	defaultIconTimeout           = 2 * time.Second
)

// Defaults returns the configuration used when no file exists.
func Defaults() Config {
	stateDir := mustExpand(defaultStateDir)
	return Config{
		APIBind:               defaultAPIBind,
		StateDir:              stateDir,
		BusDir:                filepath.Join(stateDir, "bus"),
		CriticalTimeout:       defaultCriticalTimeout,
		BackgroundTimeout:     defaultBackgroundTimeout,
		BackgroundAttempts:    defaultBackgroundAttempts,
		CriticalFallbackEvery: defaultCriticalFallbackEvery,
		StatisticsEvery:       defaultStatisticsEvery,
		IconTimeout:           defaultIconTimeout,
		IconLookup:            defaultIconLookup,
		LogLevel:              defaultLogLevel,
	}
}

type rawConfig struct {
	APIBind               string  `toml:"api_bind"`
	StateDir              string  `toml:"state_dir"`
	BusDir                string  `toml:"bus_dir"`
	CriticalTimeout       string  `toml:"critical_timeout"`
	BackgroundTimeout     string  `toml:"background_timeout"`
	BackgroundAttempts    int     `toml:"background_attempts"`
	CriticalFallbackEvery string  `toml:"critical_fallback_every"`
	StatisticsEvery       string  `toml:"statistics_every"`
	IconTimeout           string  `toml:"icon_timeout"`
	IconLookup            *string `toml:"icon_lookup"`
	LogLevel              string  `toml:"log_level"`
}

// Load locates and parses the config, falling back to defaults when the file
// or individual keys are missing. Malformed values are errors.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Defaults()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer func() { _ = file.Close() }()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.APIBind); v != "" {
		cfg.APIBind = v
	}
	if v := strings.TrimSpace(raw.StateDir); v != "" {
		cfg.StateDir = mustExpand(v)
		cfg.BusDir = filepath.Join(cfg.StateDir, "bus")
	}
	if v := strings.TrimSpace(raw.BusDir); v != "" {
		cfg.BusDir = mustExpand(v)
	}
	if raw.BackgroundAttempts < 0 {
		return Config{}, fmt.Errorf("parse config: background_attempts must be positive")
	}
	if raw.BackgroundAttempts > 0 {
		cfg.BackgroundAttempts = raw.BackgroundAttempts
	}
	if raw.IconLookup != nil {
		lookup := strings.TrimSpace(*raw.IconLookup)
		if lookup != "" && strings.Count(lookup, "%s") != 1 {
			return Config{}, fmt.Errorf("parse config: icon_lookup must contain one %%s")
		}
		cfg.IconLookup = lookup
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	durations := []struct {
		key   string
		value string
		dest  *time.Duration
	}{
		{"critical_timeout", raw.CriticalTimeout, &cfg.CriticalTimeout},
		{"background_timeout", raw.BackgroundTimeout, &cfg.BackgroundTimeout},
		{"critical_fallback_every", raw.CriticalFallbackEvery, &cfg.CriticalFallbackEvery},
		{"statistics_every", raw.StatisticsEvery, &cfg.StatisticsEvery},
		{"icon_timeout", raw.IconTimeout, &cfg.IconTimeout},
	}
	for _, d := range durations {
		if err := parseDuration(d.key, d.value, d.dest); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

// LogPath returns the popup log file.
func (c Config) LogPath() string {
	return filepath.Join(c.stateDir(), "popup.log")
}

// DaemonLogPath returns the background process log file.
func (c Config) DaemonLogPath() string {
	return filepath.Join(c.stateDir(), "tabtimed.log")
}

// BackupPath returns the local backup database.
func (c Config) BackupPath() string {
	return filepath.Join(c.stateDir(), backup.FileName)
}

func (c Config) stateDir() string {
	if strings.TrimSpace(c.StateDir) == "" {
		return mustExpand(defaultStateDir)
	}
	return c.StateDir
}

func parseDuration(key, value string, dest *time.Duration) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse config: %s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("parse config: %s must be positive", key)
	}
	*dest = d
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
