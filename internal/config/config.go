package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/claude/repcoach/internal/geometry"
	"github.com/claude/repcoach/internal/session"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Logging   LoggingConfig   `yaml:"logging"`
	Engine    EngineConfig    `yaml:"engine"`
	Exercises ExercisesConfig `yaml:"exercises"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File enables rotating file output. Stdout keeps writing to stdout as well.
	File       string `yaml:"file"`
	Stdout     bool   `yaml:"stdout"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type EngineConfig struct {
	CountdownSeconds    float64 `yaml:"countdown_seconds"`
	RestSeconds         float64 `yaml:"rest_seconds"`
	VisibilityThreshold float64 `yaml:"visibility_threshold"`
	BarTop              float64 `yaml:"bar_top"`
	BarHeight           float64 `yaml:"bar_height"`
	DefaultTargetReps   int     `yaml:"default_target_reps"`
	DefaultTargetSets   int     `yaml:"default_target_sets"`
}

// ExercisesConfig points at an exercise catalog file. Empty uses the built-in catalog.
type ExercisesConfig struct {
	Catalog string `yaml:"catalog"`
}

// Default returns the configuration used for keys missing from the file.
func Default() *Config {
	bar := geometry.DefaultBar()
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Tailscale: TailscaleConfig{
			Hostname: "repcoach",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Stdout:     true,
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Engine: EngineConfig{
			CountdownSeconds:    5,
			RestSeconds:         30,
			VisibilityThreshold: 0.7,
			BarTop:              bar.Top,
			BarHeight:           bar.Height,
			DefaultTargetReps:   10,
			DefaultTargetSets:   3,
		},
	}
}

// Session converts the engine section into orchestrator settings.
func (e EngineConfig) Session() session.Config {
	sc := session.DefaultConfig()
	sc.Countdown = time.Duration(e.CountdownSeconds * float64(time.Second))
	sc.Rest = time.Duration(e.RestSeconds * float64(time.Second))
	sc.VisibilityThreshold = e.VisibilityThreshold
	sc.Bar = geometry.Bar{Top: e.BarTop, Height: e.BarHeight}
	sc.DefaultTargetReps = e.DefaultTargetReps
	sc.DefaultTargetSets = e.DefaultTargetSets
	return sc
}

// Load reads config from a YAML file on top of Default, then applies environment
// variable overrides. Env vars use the prefix REPCOACH_:
//
//	REPCOACH_SERVER_HOST, REPCOACH_SERVER_PORT, REPCOACH_AUTH_API_KEY,
//	REPCOACH_TAILSCALE_ENABLED, REPCOACH_TAILSCALE_HOSTNAME, REPCOACH_TAILSCALE_STATE_DIR,
//	REPCOACH_LOG_LEVEL, REPCOACH_LOG_FORMAT, REPCOACH_LOG_FILE,
//	REPCOACH_ENGINE_COUNTDOWN_SECONDS, REPCOACH_ENGINE_REST_SECONDS,
//	REPCOACH_ENGINE_VISIBILITY_THRESHOLD, REPCOACH_EXERCISES_CATALOG
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REPCOACH_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("REPCOACH_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("REPCOACH_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("REPCOACH_TAILSCALE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = b
		}
	}
	if v := os.Getenv("REPCOACH_TAILSCALE_HOSTNAME"); v != "" {
		cfg.Tailscale.Hostname = v
	}
	if v := os.Getenv("REPCOACH_TAILSCALE_STATE_DIR"); v != "" {
		cfg.Tailscale.StateDir = v
	}
	if v := os.Getenv("REPCOACH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("REPCOACH_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("REPCOACH_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
	if v := os.Getenv("REPCOACH_ENGINE_COUNTDOWN_SECONDS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Engine.CountdownSeconds = f
		}
	}
	if v := os.Getenv("REPCOACH_ENGINE_REST_SECONDS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Engine.RestSeconds = f
		}
	}
	if v := os.Getenv("REPCOACH_ENGINE_VISIBILITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Engine.VisibilityThreshold = f
		}
	}
	if v := os.Getenv("REPCOACH_EXERCISES_CATALOG"); v != "" {
		cfg.Exercises.Catalog = v
	}
}

func (c *Config) validate() error {
	if !c.Tailscale.Enabled && c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	if c.Engine.CountdownSeconds < 0 {
		return fmt.Errorf("engine.countdown_seconds must not be negative")
	}
	if c.Engine.RestSeconds < 0 {
		return fmt.Errorf("engine.rest_seconds must not be negative")
	}
	if c.Engine.VisibilityThreshold <= 0 || c.Engine.VisibilityThreshold > 1 {
		return fmt.Errorf("engine.visibility_threshold must be in (0, 1], got %v", c.Engine.VisibilityThreshold)
	}
	if c.Engine.BarHeight <= 0 {
		return fmt.Errorf("engine.bar_height must be positive")
	}
	if c.Engine.DefaultTargetReps < 1 || c.Engine.DefaultTargetSets < 1 {
		return fmt.Errorf("engine.default_target_reps and default_target_sets must be at least 1")
	}
	return nil
}
