package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Tailscale  TailscaleConfig  `yaml:"tailscale"`
	Generation GenerationConfig `yaml:"generation"`
	Sessions   SessionsConfig   `yaml:"sessions"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

// TailscaleConfig controls the optional tsnet listener. When enabled, the
// server joins the tailnet under Hostname instead of binding a local port.
type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// GenerationConfig tunes the plan generator.
type GenerationConfig struct {
	// ShortSessionPolicy is "extend" (default) or "reject"; it decides what
	// happens to requests shorter than one minimum-length entry.
	ShortSessionPolicy string `yaml:"short_session_policy"`
}

// SessionsConfig bounds the live session registry.
type SessionsConfig struct {
	MaxActive          int `yaml:"max_active"`
	IdleTimeoutMinutes int `yaml:"idle_timeout_minutes"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix SWEATBELL_ and underscore-separated paths:
//
//	SWEATBELL_SERVER_HOST, SWEATBELL_SERVER_PORT,
//	SWEATBELL_DB_HOST, SWEATBELL_DB_PORT, SWEATBELL_DB_NAME,
//	SWEATBELL_DB_USER, SWEATBELL_DB_PASSWORD, SWEATBELL_DB_SSLMODE,
//	SWEATBELL_AUTH_API_KEY,
//	SWEATBELL_TS_ENABLED, SWEATBELL_TS_HOSTNAME, SWEATBELL_TS_STATE_DIR,
//	SWEATBELL_GEN_SHORT_SESSION_POLICY,
//	SWEATBELL_SESSIONS_MAX_ACTIVE, SWEATBELL_SESSIONS_IDLE_MINUTES
func Load(path string) (*Config, error) {
	cfg := &Config{}

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
	if v := os.Getenv("SWEATBELL_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SWEATBELL_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SWEATBELL_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("SWEATBELL_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("SWEATBELL_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("SWEATBELL_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("SWEATBELL_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("SWEATBELL_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("SWEATBELL_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("SWEATBELL_TS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = enabled
		}
	}
	if v := os.Getenv("SWEATBELL_TS_HOSTNAME"); v != "" {
		cfg.Tailscale.Hostname = v
	}
	if v := os.Getenv("SWEATBELL_TS_STATE_DIR"); v != "" {
		cfg.Tailscale.StateDir = v
	}
	if v := os.Getenv("SWEATBELL_GEN_SHORT_SESSION_POLICY"); v != "" {
		cfg.Generation.ShortSessionPolicy = v
	}
	if v := os.Getenv("SWEATBELL_SESSIONS_MAX_ACTIVE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sessions.MaxActive = n
		}
	}
	if v := os.Getenv("SWEATBELL_SESSIONS_IDLE_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sessions.IdleTimeoutMinutes = n
		}
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("server.port is required unless tailscale is enabled")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	switch c.Generation.ShortSessionPolicy {
	case "", "extend", "reject":
	default:
		return fmt.Errorf("generation.short_session_policy must be extend or reject, got %q",
			c.Generation.ShortSessionPolicy)
	}
	if c.Sessions.MaxActive < 0 {
		return fmt.Errorf("sessions.max_active must not be negative")
	}
	if c.Sessions.IdleTimeoutMinutes < 0 {
		return fmt.Errorf("sessions.idle_timeout_minutes must not be negative")
	}
	return nil
}
