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

	"github.com/five82/hangar/internal/poll"
)

// Config captures everything hangar reads from config.toml.
type Config struct {
	APIURL         string
	StateDir       string
	RequestTimeout time.Duration
	LogLevel       string
	LogFormat      string
	Poll           poll.Policy
}

const (
	defaultConfigPath     = "~/.config/hangar/config.toml"
	defaultStateDir       = "~/.local/state/hangar"
	defaultAPIURL         = "http://127.0.0.1:8080"
	defaultRequestTimeout = 15 * time.Second
	defaultLogLevel       = "info"
	defaultLogFormat      = "auto"
)

type rawScale struct {
	MinEntities int     `toml:"min_entities"`
	Factor      float64 `toml:"factor"`
}

type rawPoll struct {
	TransitionalMS int64      `toml:"transitional_ms"`
	ActiveMS       int64      `toml:"active_ms"`
	IdleMS         int64      `toml:"idle_ms"`
	CapMS          int64      `toml:"cap_ms"`
	JitterMS       *int64     `toml:"jitter_ms"`
	ColdStartMS    int64      `toml:"cold_start_ms"`
	MaxErrorStreak *int       `toml:"max_error_streak"`
	Scale          []rawScale `toml:"scale"`
}

type rawConfig struct {
	APIURL                string  `toml:"api_url"`
	StateDir              string  `toml:"state_dir"`
	RequestTimeoutSeconds float64 `toml:"request_timeout_seconds"`
	LogLevel              string  `toml:"log_level"`
	LogFormat             string  `toml:"log_format"`
	Poll                  rawPoll `toml:"poll"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		APIURL:         defaultAPIURL,
		StateDir:       mustExpand(defaultStateDir),
		RequestTimeout: defaultRequestTimeout,
		LogLevel:       defaultLogLevel,
		LogFormat:      defaultLogFormat,
		Poll:           poll.DefaultPolicy(),
	}
}

// Load locates and parses config.toml, falling back to defaults when missing.
// Blank or zero values also take their defaults.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.APIURL); v != "" {
		cfg.APIURL = v
	}
	if v := strings.TrimSpace(raw.StateDir); v != "" {
		cfg.StateDir = mustExpand(v)
	}
	if raw.RequestTimeoutSeconds > 0 {
		cfg.RequestTimeout = time.Duration(raw.RequestTimeoutSeconds * float64(time.Second))
	}
	if v := strings.ToLower(strings.TrimSpace(raw.LogLevel)); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.ToLower(strings.TrimSpace(raw.LogFormat)); v != "" {
		cfg.LogFormat = v
	}
	applyPoll(&cfg.Poll, raw.Poll)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyPoll(p *poll.Policy, raw rawPoll) {
	setMS := func(dst *time.Duration, ms int64) {
		if ms > 0 {
			*dst = time.Duration(ms) * time.Millisecond
		}
	}
	setMS(&p.Transitional, raw.TransitionalMS)
	setMS(&p.Active, raw.ActiveMS)
	setMS(&p.Idle, raw.IdleMS)
	setMS(&p.Cap, raw.CapMS)
	setMS(&p.ColdStart, raw.ColdStartMS)
	if raw.JitterMS != nil {
		p.Jitter = time.Duration(*raw.JitterMS) * time.Millisecond
	}
	if raw.MaxErrorStreak != nil {
		p.MaxErrorStreak = *raw.MaxErrorStreak
	}
	if len(raw.Scale) > 0 {
		p.Scale = make([]poll.ScaleStep, 0, len(raw.Scale))
		for _, s := range raw.Scale {
			p.Scale = append(p.Scale, poll.ScaleStep{MinEntities: s.MinEntities, Factor: s.Factor})
		}
	}
}

// Validate rejects settings that cannot work together.
func (c Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level: unsupported value %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("log_format: unsupported value %q", c.LogFormat)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout_seconds must be positive")
	}
	if err := c.Poll.Validate(); err != nil {
		return fmt.Errorf("poll: %w", err)
	}
	return nil
}

// SessionPath returns where the session cookie is persisted.
func (c Config) SessionPath() string {
	return filepath.Join(c.stateDir(), "session.json")
}

// LogPath returns the log file used while the console owns the terminal.
func (c Config) LogPath() string {
	return filepath.Join(c.stateDir(), "hangar.log")
}

func (c Config) stateDir() string {
	if strings.TrimSpace(c.StateDir) == "" {
		return mustExpand(defaultStateDir)
	}
	return c.StateDir
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return mustExpand(defaultConfigPath)
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

// ExpandPath resolves a leading ~ and returns an absolute path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
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
