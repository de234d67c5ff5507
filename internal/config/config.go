package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends
const (
	StoreSQLite    = "sqlite"
	StorePostgres  = "postgres"
	StoreRemote    = "remote"
	StoreFirestore = "firestore"
	StoreMemory    = "memory"
)

// Config holds user preferences
type Config struct {
	// Identity of the member using this client. Authentication happens elsewhere.
	OwnerID     string `yaml:"owner_id" json:"owner_id"`
	DisplayName string `yaml:"display_name" json:"display_name"`
	Nick        string `yaml:"nick" json:"nick"`

	// Record store
	Store                string `yaml:"store" json:"store"`                                 // sqlite, postgres, remote, firestore, memory
	DatabasePath         string `yaml:"database_path" json:"database_path"`                 // sqlite file
	DatabaseURL          string `yaml:"database_url" json:"database_url"`                   // postgres DSN
	ServerURL            string `yaml:"server_url" json:"server_url"`                       // goalpost-server base URL
	FirestoreProject     string `yaml:"firestore_project" json:"firestore_project"`         // GCP project id
	FirestoreCredentials string `yaml:"firestore_credentials" json:"firestore_credentials"` // service account file

	// Global list cache (disabled when RedisAddr is empty)
	RedisAddr string        `yaml:"redis_addr" json:"redis_addr"`
	CacheTTL  time.Duration `yaml:"cache_ttl" json:"cache_ttl"`

	// Sync behaviour
	UndoWindow      time.Duration `yaml:"undo_window" json:"undo_window"`           // How long a delete can be undone
	RefreshInterval time.Duration `yaml:"refresh_interval" json:"refresh_interval"` // Background list refresh, 0 disables
	TimeZone        string        `yaml:"time_zone" json:"time_zone"`               // Zone for calendar-local deadlines

	// Logging configuration
	LogLevel   string `yaml:"log_level" json:"log_level"`     // Log level: DEBUG, INFO, WARN, ERROR
	LogFile    string `yaml:"log_file" json:"log_file"`       // Path to log file
	LogConsole bool   `yaml:"log_console" json:"log_console"` // Enable console logging
}

// Dir returns ~/.goalpost
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".goalpost"), nil
}

// DefaultConfig returns default settings
func DefaultConfig() *Config {
	dir, _ := Dir()
	logPath, dbPath := "", ""
	if dir != "" {
		logPath = filepath.Join(dir, "logs", "goalpost.log")
		dbPath = filepath.Join(dir, "goals.db")
	}

	return &Config{
		OwnerID:         getEnv("GOALPOST_OWNER", ""),
		Store:           getEnv("GOALPOST_STORE", StoreSQLite),
		DatabasePath:    getEnv("GOALPOST_DB", dbPath),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		ServerURL:       getEnv("GOALPOST_SERVER", "http://localhost:8080"),
		RedisAddr:       getEnv("GOALPOST_REDIS", ""),
		CacheTTL:        getDuration("GOALPOST_CACHE_TTL", 30*time.Second),
		UndoWindow:      getDuration("GOALPOST_UNDO_WINDOW", 6*time.Second),
		RefreshInterval: getDuration("GOALPOST_REFRESH_INTERVAL", 30*time.Second),
		TimeZone:        getEnv("GOALPOST_TZ", "Local"),
		LogLevel:        getEnv("GOALPOST_LOG_LEVEL", "INFO"),
		LogFile:         getEnv("GOALPOST_LOG_FILE", logPath),
		LogConsole:      getEnv("GOALPOST_LOG_CONSOLE", "false") == "true",
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// Location resolves TimeZone, falling back to the process zone
func (c *Config) Location() *time.Location {
	if c.TimeZone == "" || c.TimeZone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Validate checks the settings a store backend needs
func (c *Config) Validate() error {
	switch c.Store {
	case StoreSQLite:
		if c.DatabasePath == "" {
			return fmt.Errorf("store %q needs database_path", c.Store)
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("store %q needs database_url", c.Store)
		}
	case StoreRemote:
		if c.ServerURL == "" {
			return fmt.Errorf("store %q needs server_url", c.Store)
		}
	case StoreFirestore:
		if c.FirestoreProject == "" {
			return fmt.Errorf("store %q needs firestore_project", c.Store)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.UndoWindow <= 0 {
		return fmt.Errorf("undo_window must be positive, got %s", c.UndoWindow)
	}
	return nil
}

// Path returns ~/.goalpost/config.yaml
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load loads config from ~/.goalpost/config.yaml
func Load() (*Config, error) {
	configPath, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFile(configPath)
}

// LoadFile loads config from path, returning defaults when the file does not exist
func LoadFile(configPath string) (*Config, error) {
	// Check if exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Return defaults if no config
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// Save saves config to ~/.goalpost/config.yaml
func (c *Config) Save() error {
	configPath, err := Path()
	if err != nil {
		return err
	}
	return c.SaveFile(configPath)
}

// SaveFile writes the config as YAML to path
func (c *Config) SaveFile(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
