// Package config loads tablero's configuration from a YAML file with
// TABLERO_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "TABLERO_"

// Config represents the application configuration
type Config struct {
	// Dev relaxes production checks (an ephemeral JWT secret is allowed)
	Dev bool `yaml:"dev" env:"DEV"`

	HTTP        HTTPConfig        `yaml:"http" envPrefix:"HTTP_"`
	Database    DatabaseConfig    `yaml:"database" envPrefix:"DATABASE_"`
	Auth        AuthConfig        `yaml:"auth" envPrefix:"AUTH_"`
	Invitations InvitationsConfig `yaml:"invitations" envPrefix:"INVITATIONS_"`
	Uploads     UploadsConfig     `yaml:"uploads" envPrefix:"UPLOADS_"`
	Mail        MailConfig        `yaml:"mail" envPrefix:"MAIL_"`
	Log         LogConfig         `yaml:"log" envPrefix:"LOG_"`
	Events      EventsConfig      `yaml:"events" envPrefix:"EVENTS_"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"` // 0 keeps event streams open
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	StaticDir       string        `yaml:"static_dir" env:"STATIC_DIR"`
	CORSOrigins     []string      `yaml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`
}

type DatabaseConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	Issuer     string        `yaml:"issuer" env:"ISSUER"`
	TokenTTL   time.Duration `yaml:"token_ttl" env:"TOKEN_TTL"`
	BcryptCost int           `yaml:"bcrypt_cost" env:"BCRYPT_COST"`
}

type InvitationsConfig struct {
	TTL           time.Duration `yaml:"ttl" env:"TTL"`
	BaseURL       string        `yaml:"base_url" env:"BASE_URL"`
	PurgeAfter    time.Duration `yaml:"purge_after" env:"PURGE_AFTER"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
}

type UploadsConfig struct {
	Dir     string `yaml:"dir" env:"DIR"`
	MaxSize string `yaml:"max_size" env:"MAX_SIZE"` // e.g. "25MiB"
}

// MaxBytes parses MaxSize
func (u UploadsConfig) MaxBytes() (int64, error) {
	n, err := humanize.ParseBytes(u.MaxSize)
	if err != nil {
		return 0, fmt.Errorf("invalid uploads.max_size %q: %w", u.MaxSize, err)
	}
	return int64(n), nil
}

type MailConfig struct {
	Driver   string `yaml:"driver" env:"DRIVER"` // log or smtp
	From     string `yaml:"from" env:"FROM"`
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`
	// Notify emails every inbox notification
	Notify bool `yaml:"notify" env:"NOTIFY"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"` // text or json
	File   string `yaml:"file" env:"FILE"`     // empty = stderr
}

type EventsConfig struct {
	BroadcastBuffer   int           `yaml:"broadcast_buffer" env:"BROADCAST_BUFFER"`
	ClientBuffer      int           `yaml:"client_buffer" env:"CLIENT_BUFFER"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" env:"HEARTBEAT_INTERVAL"`
}

var (
	ErrMissingJWTSecret  = errors.New("auth.jwt_secret is required outside dev mode")
	ErrInvalidUploadSize = errors.New("uploads.max_size must be positive")
	ErrUnknownMailDriver = errors.New("mail.driver must be log or smtp")
	ErrUnknownLogFormat  = errors.New("log.format must be text or json")
	ErrUnknownLogLevel   = errors.New("log.level must be debug, info, warn or error")
)

// Default returns the configuration used when no file exists
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads the config file at path (DefaultPath when empty), applies
// environment overrides and fills in defaults. A missing default file
// yields the defaults; a missing explicit file is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		var err error
		if path, err = DefaultPath(); err != nil {
			path = ""
		}
	}

	var config Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &config); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		case os.IsNotExist(err) && !explicit:
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := env.ParseWithOptions(&config, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

// DefaultPath returns the path to the config file
func DefaultPath() (string, error) {
	// Try XDG_CONFIG_HOME first
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "tablero", "config.yaml"), nil
	}

	// Fall back to ~/.config
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(homeDir, ".config", "tablero", "config.yaml"), nil
}

// dataDir is where the database and uploads live by default
func dataDir() string {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, "tablero")
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "share", "tablero")
	}
	return "tablero-data"
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 30 * time.Second
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}

	if c.Database.Path == "" {
		c.Database.Path = filepath.Join(dataDir(), "tablero.db")
	}

	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "tablero"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}

	if c.Invitations.TTL == 0 {
		c.Invitations.TTL = 7 * 24 * time.Hour
	}
	if c.Invitations.BaseURL == "" {
		c.Invitations.BaseURL = "http://localhost" + c.HTTP.Addr
		if !strings.HasPrefix(c.HTTP.Addr, ":") {
			c.Invitations.BaseURL = "http://" + c.HTTP.Addr
		}
	}
	if c.Invitations.PurgeAfter == 0 {
		c.Invitations.PurgeAfter = 30 * 24 * time.Hour
	}
	if c.Invitations.SweepInterval == 0 {
		c.Invitations.SweepInterval = time.Hour
	}

	if c.Uploads.Dir == "" {
		c.Uploads.Dir = filepath.Join(filepath.Dir(c.Database.Path), "blobs")
	}
	if c.Uploads.MaxSize == "" {
		c.Uploads.MaxSize = "25MiB"
	}

	if c.Mail.Driver == "" {
		c.Mail.Driver = "log"
	}
	if c.Mail.From == "" {
		c.Mail.From = "tablero@localhost"
	}
	if c.Mail.Port == 0 {
		c.Mail.Port = 587
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if c.Events.BroadcastBuffer == 0 {
		c.Events.BroadcastBuffer = 100
	}
	if c.Events.ClientBuffer == 0 {
		c.Events.ClientBuffer = 10
	}
	if c.Events.HeartbeatInterval == 0 {
		c.Events.HeartbeatInterval = 30 * time.Second
	}
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" && !c.Dev {
		return ErrMissingJWTSecret
	}
	size, err := c.Uploads.MaxBytes()
	if err != nil {
		return err
	}
	if size <= 0 {
		return ErrInvalidUploadSize
	}
	switch c.Mail.Driver {
	case "log", "smtp":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMailDriver, c.Mail.Driver)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownLogFormat, c.Log.Format)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownLogLevel, c.Log.Level)
	}
	return nil
}
