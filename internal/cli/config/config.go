package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const ConfigFileName = "assessly.yaml"

// Server represents an assessment platform server
type Server struct {
	URL   string `yaml:"url"`
	Alias string `yaml:"alias"`
}

// Name returns the alias, or the URL when there is none
func (s *Server) Name() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.URL
}

// Config represents the project configuration file
type Config struct {
	Servers []Server `yaml:"servers"`

	// Path is the file the config was loaded from
	Path string `yaml:"-"`
}

// DefaultConfig returns a configuration with a single server
func DefaultConfig(serverURL, alias string) *Config {
	return &Config{
		Servers: []Server{
			{
				URL:   NormalizeURL(serverURL),
				Alias: alias,
			},
		},
	}
}

// NormalizeURL adds https:// when no scheme is given and drops trailing slashes
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw != "" && !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	return strings.TrimRight(raw, "/")
}

// Validate checks every server entry
func (c *Config) Validate() error {
	seen := make(map[string]bool)
	for i, server := range c.Servers {
		u, err := url.Parse(server.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("server %d: invalid url '%s'", i+1, server.URL)
		}
		if server.Alias != "" {
			if seen[server.Alias] {
				return fmt.Errorf("server %d: duplicate alias '%s'", i+1, server.Alias)
			}
			seen[server.Alias] = true
		}
	}
	return nil
}

// FindConfigFile searches for assessly.yaml in current directory and parent directories
func FindConfigFile() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	return findConfigFileFrom(currentDir)
}

func findConfigFileFrom(start string) (string, error) {
	dir := start
	for {
		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("%s not found in %s or any parent directory", ConfigFileName, start)
}

// Load reads the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	for i := range cfg.Servers {
		cfg.Servers[i].URL = NormalizeURL(cfg.Servers[i].URL)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	cfg.Path = path
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
	data, err := yaml.Marshal(cfg)
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

// GetServerByURLOrAlias finds a server by URL or alias
func (c *Config) GetServerByURLOrAlias(urlOrAlias string) (*Server, error) {
	normalized := NormalizeURL(urlOrAlias)
	for i := range c.Servers {
		if c.Servers[i].URL == normalized {
			return &c.Servers[i], nil
		}
	}

	return c.GetServerByAlias(urlOrAlias)
}

// GetDefaultServer returns the first server in the list
func (c *Config) GetDefaultServer() (*Server, error) {
	if len(c.Servers) == 0 {
		return nil, fmt.Errorf("no servers configured in %s", ConfigFileName)
	}
	return &c.Servers[0], nil
}
