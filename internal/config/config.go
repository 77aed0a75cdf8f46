// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App         AppConfig
	Logger      LoggerConfig
	Database    DatabaseConfig
	Server      ServerConfig
	Auth        AuthConfig
	Circulation CirculationConfig
	SMTP        SMTPConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DatabaseConfig holds SQLite storage configuration.
type DatabaseConfig struct {
	// Path to the SQLite database file. The search index lives next to it.
	Path string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Name         string
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	// PASETO v4 symmetric key for access tokens (32 bytes, hex-encoded in env)
	AccessTokenKey string
	// Session durations
	AccessTokenDuration  time.Duration // e.g., 15m
	RefreshTokenDuration time.Duration // e.g., 720h (30 days)
}

// CirculationConfig holds borrowing workflow configuration.
type CirculationConfig struct {
	// DefaultLoanDuration is used when an issue request does not specify one,
	// and for loans created by the priority fulfillment cascade.
	DefaultLoanDuration time.Duration
	// LowStockThreshold triggers an admin alert when available copies drop to
	// or below this value after an issue.
	LowStockThreshold int
}

// SMTPConfig holds outgoing mail configuration.
// Leave Host empty to disable email delivery (notifications are still
// recorded in the database).
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	// Define command-line flags.
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	dbPath := flag.String("db-path", "", "Path to the SQLite database file")
	serverName := flag.String("server-name", "", "Name for the server")
	serverPort := flag.String("port", "", "Server port (default: 8080)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	// Auth flags
	accessTokenDuration := flag.String("access-token-duration", "", "Access token lifetime (e.g., 15m)")
	refreshTokenDuration := flag.String("refresh-token-duration", "", "Refresh token lifetime (e.g., 720h)")

	// Circulation flags
	loanDuration := flag.String("loan-duration", "", "Default loan duration (default: 5m)")
	lowStockThreshold := flag.String("low-stock-threshold", "", "Low stock alert threshold (default: 2)")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Path: getConfigValue(*dbPath, "DATABASE_PATH", ""),
		},
		Server: ServerConfig{
			Name: getConfigValue(*serverName, "SERVER_NAME", "OpenShelf Server"),
			Port: getConfigValue(*serverPort, "SERVER_PORT", "8080"),
		},
		Auth: AuthConfig{
			AccessTokenKey: getConfigValue("", "ACCESS_TOKEN_KEY", ""),
		},
		Circulation: CirculationConfig{
			LowStockThreshold: getIntConfigValue(*lowStockThreshold, "LOW_STOCK_THRESHOLD", 2),
		},
		SMTP: SMTPConfig{
			Host:     getConfigValue("", "SMTP_HOST", ""),
			Port:     getConfigValue("", "SMTP_PORT", "587"),
			Username: getConfigValue("", "SMTP_USERNAME", ""),
			Password: getConfigValue("", "SMTP_PASSWORD", ""),
			From:     getConfigValue("", "SMTP_FROM", "library@localhost"),
		},
	}

	// Parse durations.
	var err error
	cfg.Auth.AccessTokenDuration, err = parseDurationValue(*accessTokenDuration, "ACCESS_TOKEN_DURATION", "15m")
	if err != nil {
		return nil, err
	}
	cfg.Auth.RefreshTokenDuration, err = parseDurationValue(*refreshTokenDuration, "REFRESH_TOKEN_DURATION", "720h")
	if err != nil {
		return nil, err
	}
	cfg.Server.ReadTimeout, err = parseDurationValue(*readTimeout, "SERVER_READ_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	cfg.Server.WriteTimeout, err = parseDurationValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	cfg.Server.IdleTimeout, err = parseDurationValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}

	// The reference deployment uses very short loans so overdue handling can
	// be exercised end to end. Production installs override this.
	cfg.Circulation.DefaultLoanDuration, err = parseDurationValue(*loanDuration, "DEFAULT_LOAN_DURATION", "5m")
	if err != nil {
		return nil, err
	}

	if err := cfg.expandDatabasePath(); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Database.Path == "" {
		return errors.New("database path cannot be empty after expansion")
	}

	if c.Circulation.DefaultLoanDuration <= 0 {
		return errors.New("default loan duration must be positive")
	}

	if c.Circulation.LowStockThreshold < 0 {
		return errors.New("low stock threshold cannot be negative")
	}

	return nil
}

// DataDir returns the directory holding the database, the search index, and
// the auth key.
func (c *Config) DataDir() string {
	return filepath.Dir(c.Database.Path)
}

// expandDatabasePath expands ~ and makes the path absolute.
// Defaults to ~/OpenShelf/openshelf.db.
func (c *Config) expandDatabasePath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "OpenShelf", "openshelf.db")

	expanded, err := expandPath(c.Database.Path, defaultPath)
	if err != nil {
		return err
	}
	c.Database.Path = expanded
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// parseDurationValue resolves a duration from flag, env var, or default.
func parseDurationValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	str := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(str)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", strings.ToLower(strings.ReplaceAll(envKey, "_", " ")), str, err)
	}
	return d, nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		// Env vars take precedence over .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
