// Package config loads the gradebook server configuration from an optional
// YAML file overlaid by environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/icza/linkauthn"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig            `yaml:"server"`
	Mongo   MongoConfig             `yaml:"mongo"`
	Redis   RedisConfig             `yaml:"redis"`
	SMTP    SMTPConfig              `yaml:"smtp"`
	Auth    linkauthn.Config        `yaml:"auth"`
	Session linkauthn.SessionConfig `yaml:"session"`
	Log     LogConfig               `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	MetricsAddr     string        `yaml:"metrics_addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Production enables secure cookies.
	Production bool `yaml:"production"`
}

// MongoConfig holds the document store settings.
type MongoConfig struct {
	URI     string        `yaml:"uri"`
	Timeout time.Duration `yaml:"timeout"`

	linkauthn.MongoConfig `yaml:",inline"`

	// CoursesCollectionName is the name of the collection of course records.
	CoursesCollectionName string `yaml:"courses_collection"`
}

// RedisConfig holds the session store settings.
// Sessions are kept in memory if URL is empty.
type RedisConfig struct {
	URL       string `yaml:"url"`
	KeyPrefix string `yaml:"key_prefix"`
}

// SMTPConfig holds outgoing mail settings.
type SMTPConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	From     string        `yaml:"from"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			MetricsAddr:     ":9090",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Mongo: MongoConfig{
			URI:     "mongodb://localhost:27017",
			Timeout: 10 * time.Second,
			MongoConfig: linkauthn.MongoConfig{
				DBName:              linkauthn.DefaultDBName,
				UsersCollectionName: linkauthn.DefaultUsersCollectionName,
			},
			CoursesCollectionName: "courseinfo",
		},
		SMTP: SMTPConfig{
			Host:    "testmail.cs.hku.hk",
			Port:    25,
			From:    "sender@connect.hku.hk",
			Timeout: 10 * time.Second,
		},
		Auth: linkauthn.Config{
			BaseURL:  linkauthn.DefaultBaseURL,
			TokenTTL: linkauthn.DefaultTokenTTL,
		},
		Session: linkauthn.SessionConfig{
			TTL: linkauthn.DefaultSessionTTL,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is not empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// loadEnv overlays values from GRADEBOOK_* environment variables.
func (c *Config) loadEnv() (err error) {
	c.Server.Addr = getEnv("GRADEBOOK_ADDR", c.Server.Addr)
	c.Server.MetricsAddr = getEnv("GRADEBOOK_METRICS_ADDR", c.Server.MetricsAddr)
	if c.Server.Production, err = getEnvBool("GRADEBOOK_PRODUCTION", c.Server.Production); err != nil {
		return err
	}

	c.Mongo.URI = getEnv("GRADEBOOK_MONGODB_URI", c.Mongo.URI)
	c.Mongo.DBName = getEnv("GRADEBOOK_MONGODB_DB", c.Mongo.DBName)
	c.Redis.URL = getEnv("GRADEBOOK_REDIS_URL", c.Redis.URL)

	c.SMTP.Host = getEnv("GRADEBOOK_EMAIL_HOST", c.SMTP.Host)
	if c.SMTP.Port, err = getEnvInt("GRADEBOOK_EMAIL_PORT", c.SMTP.Port); err != nil {
		return err
	}
	c.SMTP.From = getEnv("GRADEBOOK_EMAIL_FROM", c.SMTP.From)
	c.SMTP.Username = getEnv("GRADEBOOK_EMAIL_USERNAME", c.SMTP.Username)
	c.SMTP.Password = getEnv("GRADEBOOK_EMAIL_PASSWORD", c.SMTP.Password)

	c.Auth.BaseURL = getEnv("GRADEBOOK_BASE_URL", c.Auth.BaseURL)
	if domains := getEnv("GRADEBOOK_ALLOWED_DOMAINS", ""); domains != "" {
		c.Auth.AllowedDomains = strings.Split(domains, ",")
		for i, d := range c.Auth.AllowedDomains {
			c.Auth.AllowedDomains[i] = strings.TrimSpace(d)
		}
	}
	if c.Auth.TokenTTL, err = getEnvSeconds("GRADEBOOK_TOKEN_TIMEOUT_SECONDS", c.Auth.TokenTTL); err != nil {
		return err
	}
	if c.Session.TTL, err = getEnvSeconds("GRADEBOOK_SESSION_TIMEOUT_SECONDS", c.Session.TTL); err != nil {
		return err
	}

	c.Log.Level = getEnv("GRADEBOOK_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("GRADEBOOK_LOG_FORMAT", c.Log.Format)
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server address is required")
	}
	if c.Server.MetricsAddr != "" && c.Server.MetricsAddr == c.Server.Addr {
		return fmt.Errorf("server address and metrics address must be different")
	}
	if c.Mongo.URI == "" {
		return fmt.Errorf("mongodb URI is required")
	}
	if c.SMTP.Host == "" {
		return fmt.Errorf("email host is required")
	}
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		return fmt.Errorf("invalid email port: %d", c.SMTP.Port)
	}
	if c.SMTP.From == "" {
		return fmt.Errorf("email sender address is required")
	}
	if c.Auth.TokenTTL < 0 || c.Session.TTL < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %q", c.Log.Format)
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

// getEnvSeconds gets a duration given in whole seconds or returns a default value
func getEnvSeconds(key string, defaultValue time.Duration) (time.Duration, error) {
	n, err := getEnvInt(key, -1)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return defaultValue, nil
	}
	return time.Duration(n) * time.Second, nil
}
