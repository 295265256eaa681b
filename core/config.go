package core

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultJWTSecret  = "change-this-jwt-secret"
	defaultSessionKey = "change-this-session-key"
)

// Config holds runtime settings for the API process.
type Config struct {
	Port                   string // HTTP listen port (e.g., "3000")
	JWTSecret              string // HMAC key for session tokens
	SessionKey             string // Flash cookie signing key
	CookieSecure           bool   // Whether to set Secure flag on cookies
	LogDir                 string // Directory to write application logs (empty -> stdout only)
	LogLevel               string // logrus level name
	DatabaseURL            string // sqlite://path or postgres:// DSN
	RedisURL               string // Redis URL; empty disables view counters
	RegisterRequiresLogin  bool   // Only authenticated users may register new accounts
	BootstrapAuthorEnabled bool   // Create an initial account when registration is gated and no user exists
	InitialPasswordPath    string // where to write the generated bootstrap password (empty -> log output)
}

// fileConfig mirrors Config for the optional YAML file. Pointers distinguish
// "absent" from zero values so env and defaults still apply.
type fileConfig struct {
	Port                   *string `yaml:"port"`
	JWTSecret              *string `yaml:"jwt_secret"`
	SessionKey             *string `yaml:"session_key"`
	CookieSecure           *bool   `yaml:"cookie_secure"`
	LogDir                 *string `yaml:"log_dir"`
	LogLevel               *string `yaml:"log_level"`
	DatabaseURL            *string `yaml:"database_url"`
	RedisURL               *string `yaml:"redis_url"`
	RegisterRequiresLogin  *bool   `yaml:"register_requires_login"`
	BootstrapAuthorEnabled *bool   `yaml:"bootstrap_author"`
	InitialPasswordPath    *string `yaml:"initial_password_path"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:                   "3000",
		JWTSecret:              defaultJWTSecret,
		SessionKey:             defaultSessionKey,
		CookieSecure:           true,
		LogLevel:               "info",
		DatabaseURL:            "sqlite://plainpost.db",
		BootstrapAuthorEnabled: true,
	}
}

// Load populates Config from defaults, the optional CONFIG_FILE and environment variables.
func Load() (Config, error) {
	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.mergeEnv()
	return cfg, cfg.Validate()
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	setString(&c.Port, fc.Port)
	setString(&c.JWTSecret, fc.JWTSecret)
	setString(&c.SessionKey, fc.SessionKey)
	setBool(&c.CookieSecure, fc.CookieSecure)
	setString(&c.LogDir, fc.LogDir)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.DatabaseURL, fc.DatabaseURL)
	setString(&c.RedisURL, fc.RedisURL)
	setBool(&c.RegisterRequiresLogin, fc.RegisterRequiresLogin)
	setBool(&c.BootstrapAuthorEnabled, fc.BootstrapAuthorEnabled)
	setString(&c.InitialPasswordPath, fc.InitialPasswordPath)
	return nil
}

func (c *Config) mergeEnv() {
	c.Port = firstNonEmpty(os.Getenv("PORT"), c.Port)
	c.JWTSecret = firstNonEmpty(os.Getenv("JWT_SECRET"), c.JWTSecret)
	c.SessionKey = firstNonEmpty(os.Getenv("SESSION_KEY"), c.SessionKey)
	c.CookieSecure = boolFromEnv("COOKIE_SECURE", c.CookieSecure)
	c.LogDir = firstNonEmpty(os.Getenv("LOG_DIR"), c.LogDir)
	c.LogLevel = firstNonEmpty(os.Getenv("LOG_LEVEL"), c.LogLevel)
	c.DatabaseURL = firstNonEmpty(os.Getenv("DATABASE_URL"), c.DatabaseURL)
	c.RedisURL = firstNonEmpty(os.Getenv("REDIS_URL"), c.RedisURL)
	c.RegisterRequiresLogin = boolFromEnv("REGISTER_REQUIRES_LOGIN", c.RegisterRequiresLogin)
	c.BootstrapAuthorEnabled = boolFromEnv("BOOTSTRAP_AUTHOR", c.BootstrapAuthorEnabled)
	c.InitialPasswordPath = firstNonEmpty(os.Getenv("INITIAL_PASSWORD_PATH"), c.InitialPasswordPath)
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("jwt secret must not be empty")
	}
	if strings.TrimSpace(c.SessionKey) == "" {
		return errors.New("session key must not be empty")
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("database url must not be empty")
	}
	return nil
}

// UsesDefaultSecrets reports whether a placeholder secret is still configured.
func (c Config) UsesDefaultSecrets() bool {
	return c.JWTSecret == defaultJWTSecret || c.SessionKey == defaultSessionKey
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// boolFromEnv reads a boolean from env var name, falling back to defaultVal when empty or invalid.
func boolFromEnv(name string, defaultVal bool) bool {
	if v := os.Getenv(name); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}
