// Package config provides configuration management using Viper
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

const defaultPrivateKey = "88888888888888888888888888888888"

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName         string   `mapstructure:"appname"`
	AppPort         string   `mapstructure:"appport"`
	Environment     string   `mapstructure:"environment"`
	LogLevel        LogLevel `mapstructure:"loglevel"`
	PrivateKey      string   `mapstructure:"privatekey"`
	TokenTTLSeconds int      `mapstructure:"tokenttlseconds"`
	CORSOrigins     string   `mapstructure:"corsorigins"`

	// Static assets served next to the API
	PublicDirectory       string `mapstructure:"publicdir"`
	PublicAssetsUrlPrefix string `mapstructure:"publicassetsurlprefix"`

	// File paths
	DatabasePath string `mapstructure:"storagepath"`
	DatabaseName string `mapstructure:"-"` // Derived from other settings
	GeoDBPath    string `mapstructure:"geodbpath"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseMaxOpenConns int `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int `mapstructure:"dbmaxidleconns"`

	// Ingestion
	TrackRateLimitPerMinute int `mapstructure:"trackratelimitperminute"`

	// Data retention, 0 keeps visits forever
	VisitRetentionDays int `mapstructure:"visitretentiondays"`

	// GeoLite2 download credentials
	GeoLiteAccountID  string `mapstructure:"geoliteaccountid"`
	GeoLiteLicenseKey string `mapstructure:"geolitelicensekey"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		loadDotEnv()

		c, err := Load(viper.New())
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		cfg = c
	})
	return cfg
}

// loadDotEnv reads .env into the process environment. A missing file is fine.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("config: failed to load .env: %v", err)
	}
}

// Load builds a Config from defaults and environment variables bound on v.
func Load(v *viper.Viper) (*Config, error) {
	v.SetDefault("appname", "linkpage")
	v.SetDefault("appport", "3000")
	v.SetDefault("environment", Development)
	v.SetDefault("loglevel", string(LogLevelDebug))
	v.SetDefault("privatekey", defaultPrivateKey)
	v.SetDefault("tokenttlseconds", 86400)
	v.SetDefault("corsorigins", "*")
	v.SetDefault("publicdir", "public")
	v.SetDefault("publicassetsurlprefix", "/assets")
	v.SetDefault("storagepath", "storage")
	v.SetDefault("geodbpath", "storage/GeoLite2-City.mmdb")
	v.SetDefault("logsdir", "logs")
	v.SetDefault("logsmaxsizeinmb", 20)
	v.SetDefault("logsmaxbackups", 10)
	v.SetDefault("logsmaxageindays", 30)
	v.SetDefault("dbmaxopenconns", 0)
	v.SetDefault("dbmaxidleconns", 0)
	v.SetDefault("trackratelimitperminute", 70)
	v.SetDefault("visitretentiondays", 0)

	v.BindEnv("appname", "LINKPAGE_APP_NAME")
	v.BindEnv("appport", "LINKPAGE_APP_PORT")
	v.BindEnv("environment", "LINKPAGE_ENV")
	v.BindEnv("loglevel", "LINKPAGE_LOG_LEVEL")
	v.BindEnv("privatekey", "LINKPAGE_PRIVATE_KEY")
	v.BindEnv("tokenttlseconds", "LINKPAGE_TOKEN_TTL_SECONDS")
	v.BindEnv("corsorigins", "LINKPAGE_CORS_ORIGINS")
	v.BindEnv("publicdir", "LINKPAGE_PUBLIC_DIR")
	v.BindEnv("publicassetsurlprefix", "LINKPAGE_PUBLIC_ASSETS_URL_PREFIX")
	v.BindEnv("storagepath", "LINKPAGE_STORAGE_PATH")
	v.BindEnv("geodbpath", "LINKPAGE_GEO_DB_PATH")
	v.BindEnv("logsdir", "LINKPAGE_LOGS_DIR")
	v.BindEnv("logsmaxsizeinmb", "LINKPAGE_LOGS_MAX_SIZE_IN_MB")
	v.BindEnv("logsmaxbackups", "LINKPAGE_LOGS_MAX_BACKUPS")
	v.BindEnv("logsmaxageindays", "LINKPAGE_LOGS_MAX_AGE_IN_DAYS")
	v.BindEnv("dbmaxopenconns", "LINKPAGE_DB_MAX_OPEN_CONNS")
	v.BindEnv("dbmaxidleconns", "LINKPAGE_DB_MAX_IDLE_CONNS")
	v.BindEnv("trackratelimitperminute", "LINKPAGE_TRACK_RATE_LIMIT_PER_MINUTE")
	v.BindEnv("visitretentiondays", "LINKPAGE_VISIT_RETENTION_DAYS")
	v.BindEnv("geoliteaccountid", "LINKPAGE_GEOLITE_ACCOUNT_ID")
	v.BindEnv("geolitelicensekey", "LINKPAGE_GEOLITE_LICENSE_KEY")

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	c.DatabaseName = c.GetDatabasePath()
	return c, nil
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	if c.PrivateKey == "" {
		return errors.New("private key is required")
	}
	if c.IsProduction() && c.PrivateKey == defaultPrivateKey {
		return errors.New("production requires a unique LINKPAGE_PRIVATE_KEY (cannot use default)")
	}

	if c.TokenTTLSeconds <= 0 {
		return fmt.Errorf("token ttl must be positive, got %d", c.TokenTTLSeconds)
	}
	if c.VisitRetentionDays < 0 {
		return fmt.Errorf("visit retention days cannot be negative, got %d", c.VisitRetentionDays)
	}

	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetPort returns the HTTP server port (implements cartridge.Config interface).
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetPublicDirectory returns the path to public/static assets (implements cartridge.Config interface).
func (c *Config) GetPublicDirectory() string {
	return c.PublicDirectory
}

// GetAssetsPrefix returns the URL prefix for static assets (implements cartridge.Config interface).
func (c *Config) GetAssetsPrefix() string {
	return c.PublicAssetsUrlPrefix
}

// GetAppName returns the application name (implements cartridge.FactoryConfig interface).
func (c *Config) GetAppName() string {
	return c.AppName
}

// DatabaseDSN returns the database connection string (implements cartridge.FactoryConfig interface).
func (c *Config) DatabaseDSN() string {
	return c.GetDatabasePath()
}

// GetSessionSecret returns the signing key (implements cartridge.FactoryConfig interface).
// The same key signs bearer tokens.
func (c *Config) GetSessionSecret() string {
	return c.PrivateKey
}

// TokenTTL returns how long issued bearer tokens stay valid.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLSeconds) * time.Second
}

// GeoLiteConfigured reports whether credentials for the GeoLite2 download are set.
func (c *Config) GeoLiteConfigured() bool {
	return c.GeoLiteAccountID != "" && c.GeoLiteLicenseKey != ""
}

// AllowedOrigins returns the CORS origins in the comma separated form fiber expects.
func (c *Config) AllowedOrigins() string {
	parts := strings.Split(c.CORSOrigins, ",")
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		return "*"
	}
	return strings.Join(cleaned, ",")
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment.
// Test uses a single connection; development and production allow concurrent
// reads for the report's parallel sections.
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1
	}

	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1
	}

	return 5
}

// GetLogLevel returns the log level as a string (implements cartridge.LogConfigProvider).
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory (implements cartridge.LogConfigProvider).
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
