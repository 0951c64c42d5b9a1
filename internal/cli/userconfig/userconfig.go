// Package userconfig keeps per-user CLI state in ~/.config/assessly/config.json.
// Server selections are remembered per project config file, so two checkouts
// with different assessly.yaml files do not fight over one selection.
package userconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	configDirName  = "assessly"
	configFileName = "config.json"
)

// UserConfig is the content of the user config file
type UserConfig struct {
	// SelectedServers maps a project config path to the selected server URL
	SelectedServers map[string]string `json:"selected_servers,omitempty"`
}

// GetConfigPath returns the path to the user config file
func GetConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", configDirName, configFileName), nil
}

// Load reads the user configuration file. A missing file is an empty config.
func Load() (*UserConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	cfg := &UserConfig{}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read user config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse user config file: %w", err)
	}

	return cfg, nil
}

// Save writes the user configuration, creating the directory when needed
func Save(cfg *UserConfig) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal user config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write user config file: %w", err)
	}

	return nil
}

// SetSelectedServer records serverURL as the selection for the project
// config at projectPath. An empty serverURL clears the selection.
func SetSelectedServer(projectPath, serverURL string) error {
	cfg, err := Load()
	if err != nil {
		return err
	}

	key := projectKey(projectPath)
	if serverURL == "" {
		delete(cfg.SelectedServers, key)
	} else {
		if cfg.SelectedServers == nil {
			cfg.SelectedServers = make(map[string]string)
		}
		cfg.SelectedServers[key] = serverURL
	}

	return Save(cfg)
}

// GetSelectedServer returns the server URL selected for the project config
// at projectPath, or empty string if not set
func GetSelectedServer(projectPath string) (string, error) {
	cfg, err := Load()
	if err != nil {
		return "", err
	}

	return cfg.SelectedServers[projectKey(projectPath)], nil
}

func projectKey(projectPath string) string {
	if projectPath == "" {
		return ""
	}
	if abs, err := filepath.Abs(projectPath); err == nil {
		return filepath.Clean(abs)
	}
	return filepath.Clean(projectPath)
}
