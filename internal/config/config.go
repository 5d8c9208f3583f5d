package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"reliefboard/internal/models"
)

const DefaultPath = "config/config.yaml"

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

type APIConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Prefix        string        `yaml:"prefix"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
}

type AuthConfig struct {
	JWTSecret   string           `yaml:"jwt_secret"`
	TokenTTL    time.Duration    `yaml:"token_ttl"`
	SessionIdle time.Duration    `yaml:"session_idle"`
	Accounts    []models.Account `yaml:"accounts"`
}

type CacheConfig struct {
	StaleTime  time.Duration `yaml:"stale_time"`
	GCTime     time.Duration `yaml:"gc_time"`
	MaxRetries int           `yaml:"max_retries"`
	RetryBase  time.Duration `yaml:"retry_base"`
	RetryMax   time.Duration `yaml:"retry_max"`
}

type MapConfig struct {
	KMLSource string `yaml:"kml_source"` // URL or local path
}

type ContactsConfig struct {
	Path string `yaml:"path"`
}

type DatabaseConfig struct {
	DSN           string `yaml:"url"`
	SnapshotTable string `yaml:"snapshot_table"`
	KeepSnapshots int    `yaml:"keep_snapshots"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

type EmailConfig struct {
	SMTPHost     string   `yaml:"smtp_host"`
	SMTPPort     int      `yaml:"smtp_port"`
	SMTPUser     string   `yaml:"smtp_user"`
	SMTPPassword string   `yaml:"smtp_password"`
	FromEmail    string   `yaml:"from_email"`
	To           []string `yaml:"to"`
}

type PDFConfig struct {
	FontPath string `yaml:"font_path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | console
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	API      APIConfig      `yaml:"api"`
	Auth     AuthConfig     `yaml:"auth"`
	Cache    CacheConfig    `yaml:"cache"`
	Map      MapConfig      `yaml:"map"`
	Contacts ContactsConfig `yaml:"contacts"`
	Database DatabaseConfig `yaml:"database"`
	Telegram TelegramConfig `yaml:"telegram"`
	Email    EmailConfig    `yaml:"email"`
	PDF      PDFConfig      `yaml:"pdf"`
	Log      LogConfig      `yaml:"log"`
}

// LoadConfig reads path (DefaultPath when empty), applies defaults and env
// overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyEnv(os.LookupEnv)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("RELIEFBOARD_API_BASE_URL"); ok {
		c.API.BaseURL = v
	}
	if v, ok := lookup("RELIEFBOARD_JWT_SECRET"); ok {
		c.Auth.JWTSecret = v
	}
	if v, ok := lookup("RELIEFBOARD_DATABASE_URL"); ok {
		c.Database.DSN = v
	}
	if v, ok := lookup("RELIEFBOARD_TELEGRAM_TOKEN"); ok {
		c.Telegram.Token = v
	}
	if v, ok := lookup("RELIEFBOARD_SMTP_PASSWORD"); ok {
		c.Email.SMTPPassword = v
	}
	if v, ok := lookup("PORT"); ok {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.API.Prefix == "" {
		c.API.Prefix = "/api/v1"
	}
	if c.API.Timeout <= 0 {
		c.API.Timeout = 10 * time.Second
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 12 * time.Hour
	}
	if c.Auth.SessionIdle <= 0 {
		c.Auth.SessionIdle = c.Auth.TokenTTL
	}
	if c.Cache.StaleTime <= 0 {
		c.Cache.StaleTime = time.Minute
	}
	if c.Cache.GCTime <= 0 {
		c.Cache.GCTime = 10 * time.Minute
	}
	if c.Cache.MaxRetries == 0 {
		c.Cache.MaxRetries = 3
	}
	if c.Cache.RetryBase <= 0 {
		c.Cache.RetryBase = time.Second
	}
	if c.Cache.RetryMax <= 0 {
		c.Cache.RetryMax = 30 * time.Second
	}
	if c.Database.SnapshotTable == "" {
		c.Database.SnapshotTable = "task_snapshots"
	}
	if c.Database.KeepSnapshots <= 0 {
		c.Database.KeepSnapshots = 20
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.API.BaseURL) == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	for i, a := range c.Auth.Accounts {
		if a.Email == "" || a.PasswordHash == "" {
			errs = append(errs, fmt.Errorf("auth.accounts[%d]: email and password_hash are required", i))
		}
	}
	if c.Cache.MaxRetries < 0 {
		errs = append(errs, errors.New("cache.max_retries must not be negative"))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: want json or console", c.Log.Format))
	}
	if c.Telegram.Token != "" && c.Telegram.ChatID == 0 {
		errs = append(errs, errors.New("telegram.chat_id is required with telegram.token"))
	}
	return errors.Join(errs...)
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string { return fmt.Sprintf(":%d", c.Server.Port) }
