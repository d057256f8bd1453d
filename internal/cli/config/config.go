package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const ConfigFileName = "authctl.json"

// DefaultAPIPrefix is the route prefix AuthCenter serves its API under
const DefaultAPIPrefix = "/api/v1"

// Durable storage backends
const (
	StorageKeyring = "keyring"
	StorageSQLite  = "sqlite"
	StorageRedis   = "redis"
	StorageNone    = "none"
)

// Server represents an AuthCenter server configuration
type Server struct {
	URL       string `json:"url"`
	Alias     string `json:"alias"`
	APIPrefix string `json:"api_prefix,omitempty"`
}

// Prefix returns the API prefix, falling back to the default
func (s *Server) Prefix() string {
	if s.APIPrefix == "" {
		return DefaultAPIPrefix
	}
	// "/" serves the API at the root
	trimmed := strings.Trim(s.APIPrefix, "/")
	if trimmed == "" {
		return ""
	}
	return "/" + trimmed
}

// Validate checks that the server URL is usable
func (s *Server) Validate() error {
	if s.URL == "" {
		return fmt.Errorf("server URL is empty. Please edit %s and add a valid URL", ConfigFileName)
	}
	u, err := url.Parse(s.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid server URL '%s': must be http(s)://host[:port]", s.URL)
	}
	return nil
}

// Storage selects where sessions are persisted
type Storage struct {
	// Durable is one of keyring, sqlite, redis, none
	Durable      string `json:"durable,omitempty"`
	SQLitePath   string `json:"sqlite_path,omitempty"`
	RedisAddress string `json:"redis_address,omitempty"`
	RedisDB      int    `json:"redis_db,omitempty"`
}

// Backend returns the durable backend name, defaulting to the OS keyring
func (s Storage) Backend() string {
	if s.Durable == "" {
		return StorageKeyring
	}
	return strings.ToLower(s.Durable)
}

// Config represents the CLI configuration file
type Config struct {
	Servers []Server `json:"servers"`
	Storage Storage  `json:"storage,omitempty"`
}

// FindConfigFile searches for authctl.json in current directory and parent directories
func FindConfigFile() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	// Search upwards until we find authctl.json or reach root
	dir := currentDir
	for {
		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("%s not found in %s or any parent directory", ConfigFileName, currentDir)
}

// Load reads the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	switch cfg.Storage.Backend() {
	case StorageKeyring, StorageSQLite, StorageRedis, StorageNone:
	default:
		return nil, fmt.Errorf("invalid storage backend '%s', must be one of: keyring, sqlite, redis, none", cfg.Storage.Durable)
	}

	return &cfg, nil
}

// LoadFromCurrentDir loads config from current directory or parent directories
func LoadFromCurrentDir() (*Config, error) {
	configPath, err := FindConfigFile()
	if err != nil {
		return nil, err
	}

	return Load(configPath)
}

// Save writes the configuration to a file
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetServerByAlias returns a server by its alias
func (c *Config) GetServerByAlias(alias string) (*Server, error) {
	for i := range c.Servers {
		if c.Servers[i].Alias == alias {
			return &c.Servers[i], nil
		}
	}
	return nil, fmt.Errorf("server with alias '%s' not found", alias)
}

// GetServerByURL returns a server by its URL, ignoring a trailing slash
func (c *Config) GetServerByURL(rawURL string) (*Server, error) {
	want := strings.TrimRight(rawURL, "/")
	for i := range c.Servers {
		if strings.TrimRight(c.Servers[i].URL, "/") == want {
			return &c.Servers[i], nil
		}
	}
	return nil, fmt.Errorf("server with URL '%s' not found", rawURL)
}

// FindServer returns the server whose URL or alias matches urlOrAlias
func (c *Config) FindServer(urlOrAlias string) (*Server, error) {
	if server, err := c.GetServerByURL(urlOrAlias); err == nil {
		return server, nil
	}
	if server, err := c.GetServerByAlias(urlOrAlias); err == nil {
		return server, nil
	}
	return nil, fmt.Errorf("server with URL or alias '%s' not found", urlOrAlias)
}
