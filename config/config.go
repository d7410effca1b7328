package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds scrape and load configuration for one pipeline run.
type Config struct {
	BaseURL         string
	MaxPages        int
	Delay           time.Duration
	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
	UserAgent       string
	Verbose         bool
	MetricsAddr     string

	DB DBConfig
}

// DBConfig carries the warehouse connection parameters. All fields except
// Port are required; they come from the environment, never from code.
type DBConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// DefaultConfig returns conservative defaults for the demo target. The
// fetch side is deliberately sequential: one request at a time with a fixed
// delay, per the politeness contract with the source site.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         "https://books.toscrape.com",
		MaxPages:        50,
		Delay:           200 * time.Millisecond,
		Timeout:         10 * time.Second,
		MaxRetries:      2,
		RetryBackoff:    200 * time.Millisecond,
		RetryBackoffMax: 2 * time.Second,
		UserAgent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		Verbose:         false,
		MetricsAddr:     "",
	}
}

// DBFromEnv reads the connection parameters from the environment. A missing
// variable is a configuration error, not a data error.
func DBFromEnv() (DBConfig, error) {
	db := DBConfig{Port: "5432"}
	if value, ok := EnvString("PORT"); ok {
		db.Port = value
	}

	required := []struct {
		name string
		dest *string
	}{
		{"HOST", &db.Host},
		{"DATABASE", &db.Database},
		{"USER", &db.User},
		{"PASSWORD", &db.Password},
	}
	for _, v := range required {
		value, ok := EnvString(v.name)
		if !ok {
			return DBConfig{}, fmt.Errorf("environment variable %s is not set", v.name)
		}
		*v.dest = value
	}
	return db, nil
}

// ConnString renders a postgres connection URL.
func (d DBConfig) ConnString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   d.Host + ":" + d.Port,
		Path:   "/" + d.Database,
	}
	return u.String()
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	if c.DB.Host == "" {
		return fmt.Errorf("database host cannot be empty")
	}
	if c.DB.Port == "" {
		return fmt.Errorf("database port cannot be empty")
	}
	if c.DB.Database == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	if c.DB.User == "" {
		return fmt.Errorf("database user cannot be empty")
	}

	return nil
}

// EnvString reads a non-empty environment variable.
func EnvString(name string) (string, bool) {
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// EnvInt reads an integer environment variable; ok is false when unset.
func EnvInt(name string) (int, bool, error) {
	value, ok := EnvString(name)
	if !ok {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be an integer: %w", name, err)
	}
	return parsed, true, nil
}
