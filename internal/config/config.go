package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port         string   `yaml:"port"`
		CORSOrigins  []string `yaml:"cors_origins"`
		CookieSecure bool     `yaml:"cookie_secure"`
		Timeout      string   `yaml:"request_timeout"`
	} `yaml:"server"`
	API struct {
		BaseURL string `yaml:"base_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"api"`
	Session struct {
		Store         string `yaml:"store"`
		TTL           string `yaml:"ttl"`
		RememberTTL   string `yaml:"remember_ttl"`
		BoltPath      string `yaml:"bolt_path"`
		CookieName    string `yaml:"cookie_name"`
		WorkspaceIdle string `yaml:"workspace_idle"`
	} `yaml:"session"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Lookups struct {
		TTL string `yaml:"ttl"`
	} `yaml:"lookups"`
	Listing struct {
		SearchDebounce string `yaml:"search_debounce"`
	} `yaml:"listing"`
	Evaluations struct {
		Timezone string `yaml:"timezone"`
	} `yaml:"evaluations"`
}

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreBolt   = "bolt"
)

// Load reads YAML config from path, then applies environment overrides.
// A .env file next to the working directory is loaded first when present.
func Load(path string) (Config, error) {
	cfg := Config{}
	if err := LoadEnv(".env"); err != nil {
		return cfg, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadEnv loads a dotenv file into the process environment. A missing file
// is not an error; variables already set win.
func LoadEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("API_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("SESSION_STORE"); v != "" {
		c.Session.Store = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REDIS_DB: %w", err)
		}
		c.Redis.DB = db
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}
	return nil
}

// Validate reports settings the server cannot start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("api.base_url is required")
	}
	switch c.SessionStore() {
	case StoreMemory, StoreBolt:
	case StoreRedis:
		if c.Redis.Addr == "" {
			return errors.New("session.store is redis but redis.addr is empty")
		}
	default:
		return fmt.Errorf("unknown session.store %q", c.Session.Store)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// SessionStore is the configured store kind, memory when unset.
func (c Config) SessionStore() string {
	s := strings.ToLower(strings.TrimSpace(c.Session.Store))
	if s == "" {
		return StoreMemory
	}
	return s
}

// Location is the time zone due dates are entered in, UTC when unset.
func (c Config) Location() (*time.Location, error) {
	if c.Evaluations.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Evaluations.Timezone)
	if err != nil {
		return nil, fmt.Errorf("evaluations.timezone: %w", err)
	}
	return loc, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
