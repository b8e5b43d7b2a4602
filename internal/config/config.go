package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "CVEWATCH_CONFIG"
	databaseDSNEnv  = "DATABASE_DSN"
	serverPortEnv   = "SERVER_PORT"
	smtpHostEnv     = "SMTP_HOST"
	smtpPortEnv     = "SMTP_PORT"
	smtpUserEnv     = "SMTP_USERNAME"
	smtpPassEnv     = "SMTP_PASSWORD"
	mailFromEnv     = "MAIL_FROM"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Server    ServerConfig    `yaml:"server"`
	Mail      MailConfig      `yaml:"mail"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Sources   []SourceConfig  `yaml:"sources"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig describes the document store connection. An empty DSN
// selects the in-memory store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// SchedulerConfig defines the daily wall-clock trigger.
type SchedulerConfig struct {
	Hour     int            `yaml:"hour"`
	Minute   int            `yaml:"minute"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// ServerConfig describes the API listener.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// MailConfig wires the outbound SMTP transport. Credentials normally come
// from the environment, not the file.
type MailConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// FetchConfig bounds each source adapter's time budget.
type FetchConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// SourceConfig describes one adapter: which extraction strategy to use,
// where to fetch, how many records to keep, and the severity fallback
// vocabulary.
type SourceConfig struct {
	Name     string       `yaml:"name"`
	Adapter  string       `yaml:"adapter"`
	Endpoint string       `yaml:"endpoint"`
	Limit    int          `yaml:"limit"`
	Keywords KeywordsSpec `yaml:"keywords"`
}

// KeywordsSpec lists title keywords that escalate severity.
type KeywordsSpec struct {
	High   []string `yaml:"high"`
	Medium []string `yaml:"medium"`
}

// Load reads .env, then YAML configuration (if present), then applies
// environment overrides.
func Load() Config {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultConfig().Sources
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(serverPortEnv); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv(smtpHostEnv); v != "" {
		c.Mail.Host = v
	}
	if v := os.Getenv(smtpPortEnv); v != "" {
		c.Mail.Port = v
	}
	if v := os.Getenv(smtpUserEnv); v != "" {
		c.Mail.Username = v
	}
	if v := os.Getenv(smtpPassEnv); v != "" {
		c.Mail.Password = v
	}
	if v := os.Getenv(mailFromEnv); v != "" {
		c.Mail.From = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Scheduler.Hour != 0 || override.Scheduler.Minute != 0 {
		base.Scheduler.Hour = override.Scheduler.Hour
		base.Scheduler.Minute = override.Scheduler.Minute
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Server.Port != "" {
		base.Server = override.Server
	}

	if override.Mail.Host != "" {
		base.Mail.Host = override.Mail.Host
	}
	if override.Mail.Port != "" {
		base.Mail.Port = override.Mail.Port
	}
	if override.Mail.Username != "" {
		base.Mail.Username = override.Mail.Username
	}
	if override.Mail.Password != "" {
		base.Mail.Password = override.Mail.Password
	}
	if override.Mail.From != "" {
		base.Mail.From = override.Mail.From
	}

	if override.Fetch.Timeout > 0 {
		base.Fetch = override.Fetch
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:   LoggingConfig{Level: "info"},
		Database:  DatabaseConfig{DSN: ""},
		Scheduler: SchedulerConfig{Hour: 19, Minute: 0, Timezone: defaultTimezone, location: tz},
		Server:    ServerConfig{Port: "8080"},
		Fetch:     FetchConfig{Timeout: 30 * time.Second},
		Sources: []SourceConfig{
			{Name: "CVE Details", Adapter: "cvedetails"},
			{Name: "The Hacker News", Adapter: "hackernews"},
			{Name: "BleepingComputer", Adapter: "bleepingcomputer"},
			{Name: "SecurityWeek", Adapter: "securityweek"},
			{Name: "NVD NIST", Adapter: "nvd"},
		},
	}
}
