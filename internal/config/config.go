// engine/internal/config/config.go
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Host    string `yaml:"host" json:"host"`
		Port    int    `yaml:"port" json:"port"`
		DataDir string `yaml:"data_dir" json:"data_dir"`
	} `yaml:"app" json:"app"`

	Database struct {
		Driver   string `yaml:"driver" json:"driver"` // sqlite | postgres
		DSN      string `yaml:"dsn" json:"-"`
		MaxConns int    `yaml:"max_conns" json:"max_conns"`
		// PgBouncer selects the simple query protocol for transaction pooling.
		PgBouncer bool `yaml:"pgbouncer" json:"pgbouncer"`
	} `yaml:"database" json:"database"`

	Log struct {
		Level string `yaml:"level" json:"level"`
		JSON  bool   `yaml:"json" json:"json"`
	} `yaml:"log" json:"log"`

	Analytics struct {
		SweepMinutes int `yaml:"sweep_minutes" json:"sweep_minutes"`
	} `yaml:"analytics" json:"analytics"`

	Intel struct {
		NewsURLTemplate  string  `yaml:"news_url_template" json:"news_url_template"`
		HeadlineSelector string  `yaml:"headline_selector" json:"headline_selector"`
		TTLHours         int     `yaml:"ttl_hours" json:"ttl_hours"`
		RequestsPerSec   float64 `yaml:"requests_per_sec" json:"requests_per_sec"`
		Burst            int     `yaml:"burst" json:"burst"`
	} `yaml:"intel" json:"intel"`

	LLM struct {
		Model          string  `yaml:"model" json:"model"`
		APIKey         string  `yaml:"-" json:"-"`
		RequestsPerSec float64 `yaml:"requests_per_sec" json:"requests_per_sec"`
		MaxPromptChars int     `yaml:"max_prompt_chars" json:"max_prompt_chars"`
	} `yaml:"llm" json:"llm"`

	SMTP struct {
		Host     string `yaml:"host" json:"host"`
		Port     int    `yaml:"port" json:"port"`
		Username string `yaml:"username" json:"username"`
		Password string `yaml:"-" json:"-"`
		From     string `yaml:"from" json:"from"`
		FromName string `yaml:"from_name" json:"from_name"`
	} `yaml:"smtp" json:"smtp"`

	IMAP struct {
		Enabled  bool   `yaml:"enabled" json:"enabled"`
		Host     string `yaml:"host" json:"host"`
		Port     int    `yaml:"port" json:"port"`
		Username string `yaml:"username" json:"username"`
		Password string `yaml:"-" json:"-"`
		Mailbox  string `yaml:"mailbox" json:"mailbox"`
	} `yaml:"imap" json:"imap"`

	Digest struct {
		IntervalMinutes int `yaml:"interval_minutes" json:"interval_minutes"`
		Concurrency     int `yaml:"concurrency" json:"concurrency"`
	} `yaml:"digest" json:"digest"`
}

// Default returns the values used for anything the file leaves unset.
func Default() Config {
	var c Config
	c.App.Host = "127.0.0.1"
	c.App.Port = 38471
	c.App.DataDir = "."
	c.Database.Driver = "sqlite"
	c.Database.MaxConns = 4
	c.Log.Level = "info"
	c.Analytics.SweepMinutes = 360
	c.Intel.HeadlineSelector = "article h2, article h3, h2 a, h3 a"
	c.Intel.TTLHours = 24
	c.Intel.RequestsPerSec = 1.0
	c.Intel.Burst = 2
	c.LLM.Model = "gemini-2.5-flash"
	c.LLM.RequestsPerSec = 0.5
	c.LLM.MaxPromptChars = 20000
	c.SMTP.Port = 587
	c.IMAP.Port = 993
	c.IMAP.Mailbox = "INBOX"
	c.Digest.IntervalMinutes = 1440
	c.Digest.Concurrency = 4
	return c
}

func (c Config) IntelTTL() time.Duration {
	return time.Duration(c.Intel.TTLHours) * time.Hour
}

// Load reads the YAML file on top of Default, then applies .env and
// environment overrides. A missing .env is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, err
	}
	ApplyEnv(&cfg, os.Getenv)
	return cfg, nil
}

// ApplyEnv overlays environment variables. getenv is injected for tests.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("ENGINE_DATA_DIR", &cfg.App.DataDir)
	str("DATABASE_DRIVER", &cfg.Database.Driver)
	str("DATABASE_DSN", &cfg.Database.DSN)
	str("LLM_API_KEY", &cfg.LLM.APIKey)
	str("SMTP_PASSWORD", &cfg.SMTP.Password)
	str("IMAP_PASSWORD", &cfg.IMAP.Password)
	str("LOG_LEVEL", &cfg.Log.Level)

	if v := strings.TrimSpace(getenv("ENGINE_PORT")); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.App.Port = p
		}
	}
}
