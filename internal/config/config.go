package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Environment variables that override values from the config file
const (
	EnvJWTSecret = "TUNEDECK_JWT_SECRET"
	EnvMongoURI  = "TUNEDECK_MONGO_URI"
	EnvPort      = "TUNEDECK_PORT"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Media    MediaConfig    `toml:"media"`
	Auth     AuthConfig     `toml:"auth"`
	Catalog  CatalogConfig  `toml:"catalog"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Port         string `toml:"port"`
	Host         string `toml:"host"`
	StaticDir    string `toml:"static_dir"`
	EnableCORS   bool   `toml:"enable_cors"`
	ReadTimeout  int    `toml:"read_timeout_seconds"`
	WriteTimeout int    `toml:"write_timeout_seconds"`
}

// DatabaseConfig selects and configures the persistence backend
type DatabaseConfig struct {
	Driver         string `toml:"driver"` // sqlite or mongo
	Path           string `toml:"path"`
	MaxConnections int    `toml:"max_connections"`
	MongoURI       string `toml:"mongo_uri"`
	MongoDatabase  string `toml:"mongo_database"`
}

// MediaConfig contains upload storage configuration
type MediaConfig struct {
	UploadDir       string   `toml:"upload_dir"`
	SongsSubdir     string   `toml:"songs_subdir"`
	PublicPrefix    string   `toml:"public_prefix"`
	MaxUploadSizeMB int64    `toml:"max_upload_size_mb"`
	AllowedFormats  []string `toml:"allowed_formats"`
	WatchForChanges bool     `toml:"watch_for_changes"`
}

// AuthConfig contains bearer token configuration
type AuthConfig struct {
	JWTSecret     string `toml:"jwt_secret"`
	TokenTTLHours int    `toml:"token_ttl_hours"`
}

// CatalogConfig contains catalog listing configuration
type CatalogConfig struct {
	CacheTTLSeconds int `toml:"cache_ttl_seconds"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level          string `toml:"level"`
	Format         string `toml:"format"`
	File           string `toml:"file"`
	RequestLogging bool   `toml:"request_logging"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "5000",
			Host:         "0.0.0.0",
			StaticDir:    "",
			EnableCORS:   true,
			ReadTimeout:  60,
			WriteTimeout: 60,
		},
		Database: DatabaseConfig{
			Driver:         "sqlite",
			Path:           "./tunedeck.db",
			MaxConnections: 5,
			MongoURI:       "mongodb://localhost:27017",
			MongoDatabase:  "tunedeck",
		},
		Media: MediaConfig{
			UploadDir:       "./uploads",
			SongsSubdir:     "songs",
			PublicPrefix:    "/uploads",
			MaxUploadSizeMB: 10,
			AllowedFormats:  []string{".mp3", ".wav"},
			WatchForChanges: true,
		},
		Auth: AuthConfig{
			JWTSecret:     "",
			TokenTTLHours: 24 * 7,
		},
		Catalog: CatalogConfig{
			CacheTTLSeconds: 300,
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "text",
			File:           "",
			RequestLogging: true,
		},
	}
}

// LoadConfig loads configuration from a TOML file and applies environment
// overrides. A missing file is created with defaults.
func LoadConfig(configPath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
		fmt.Printf("Created default configuration file at: %s\n", configPath)
	} else if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides secrets and deployment specific values from the environment
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvJWTSecret); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv(EnvMongoURI); v != "" {
		c.Database.MongoURI = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		c.Server.Port = v
	}
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	header := `# Tunedeck Server Configuration
# Secrets such as auth.jwt_secret are better supplied through the
# TUNEDECK_JWT_SECRET environment variable or a .env file.

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server timeouts must be positive")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database path cannot be empty")
		}
		if c.Database.MaxConnections < 1 {
			return fmt.Errorf("database max connections must be at least 1")
		}
	case "mongo":
		if c.Database.MongoURI == "" {
			return fmt.Errorf("mongo uri cannot be empty")
		}
		if c.Database.MongoDatabase == "" {
			return fmt.Errorf("mongo database name cannot be empty")
		}
	default:
		return fmt.Errorf("invalid database driver: %s (must be sqlite or mongo)", c.Database.Driver)
	}

	if c.Media.UploadDir == "" {
		return fmt.Errorf("media upload dir cannot be empty")
	}
	if c.Media.SongsSubdir == "" || strings.ContainsAny(c.Media.SongsSubdir, `/\`) {
		return fmt.Errorf("media songs subdir must be a single directory name")
	}
	if !strings.HasPrefix(c.Media.PublicPrefix, "/") {
		return fmt.Errorf("media public prefix must start with /")
	}
	if c.Media.MaxUploadSizeMB < 1 {
		return fmt.Errorf("media max upload size must be at least 1 MB")
	}
	if len(c.Media.AllowedFormats) == 0 {
		return fmt.Errorf("at least one allowed audio format must be specified")
	}
	for _, format := range c.Media.AllowedFormats {
		if format != ".mp3" && format != ".wav" {
			return fmt.Errorf("unsupported audio format: %s (must be .mp3 or .wav)", format)
		}
	}

	if c.Auth.TokenTTLHours < 1 {
		return fmt.Errorf("auth token ttl must be at least 1 hour")
	}

	if c.Catalog.CacheTTLSeconds < 0 {
		return fmt.Errorf("catalog cache ttl cannot be negative")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}

// GetAddress returns the full server address
func (c *Config) GetAddress() string {
	return c.Server.Host + ":" + c.Server.Port
}

// SongsDir returns the directory uploaded songs are written to
func (c *Config) SongsDir() string {
	return filepath.Join(c.Media.UploadDir, c.Media.SongsSubdir)
}

// SongsURLPrefix returns the public URL prefix stored songs are served under
func (c *Config) SongsURLPrefix() string {
	return strings.TrimSuffix(c.Media.PublicPrefix, "/") + "/" + c.Media.SongsSubdir
}

// MaxUploadBytes returns the upload size limit in bytes
func (c *Config) MaxUploadBytes() int64 {
	return c.Media.MaxUploadSizeMB * 1024 * 1024
}

// TokenTTL returns the lifetime of issued bearer tokens
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLHours) * time.Hour
}

// CacheTTL returns how long the song listing stays cached
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Catalog.CacheTTLSeconds) * time.Second
}

// IsFormatSupported checks if an audio format is accepted for upload
func (c *Config) IsFormatSupported(format string) bool {
	return slices.Contains(c.Media.AllowedFormats, strings.ToLower(format))
}
