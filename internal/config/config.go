package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Credential is one fixed role login pair. Hard-coded defaults are a stated
// property of the platform, not a deployment concern.
type Credential struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret   string     `yaml:"jwt_secret"`
		TokenTTL    string     `yaml:"token_ttl"`
		Admin       Credential `yaml:"admin"`
		Participant Credential `yaml:"participant"`
	} `yaml:"auth"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		Title     string `yaml:"title"`
		Questions int    `yaml:"questions"`
		Duration  string `yaml:"duration"`
		BankTTL   string `yaml:"bank_ttl"`
	} `yaml:"quiz"`
}

// Load reads YAML config from path. A missing file yields the defaults so
// the server runs on a bare LAN host without any setup.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg.applyDefaults()
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = "warp-lan-quiz"
	}
	if c.Auth.TokenTTL == "" {
		c.Auth.TokenTTL = "12h"
	}
	if c.Auth.Admin.Username == "" {
		c.Auth.Admin = Credential{Username: "admin", Password: "admin123"}
	}
	if c.Auth.Participant.Username == "" {
		c.Auth.Participant = Credential{Username: "student", Password: "pass123"}
	}
	if c.Quiz.Title == "" {
		c.Quiz.Title = "WARP Quiz"
	}
	if c.Quiz.Questions == 0 {
		c.Quiz.Questions = 10
	}
	if c.Quiz.Duration == "" {
		c.Quiz.Duration = "15m"
	}
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
