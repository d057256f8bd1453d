// Package userconfig keeps per-user CLI state, currently the selected server,
// in ~/.config/authctl/config.json.
package userconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ConfigDirEnv overrides the user config directory (used by tests and CI)
const ConfigDirEnv = "AUTHCTL_CONFIG_DIR"

const fileName = "config.json"

type state struct {
	SelectedServerURL string `json:"selected_server_url"`
}

// Dir returns the directory holding per-user state
func Dir() (string, error) {
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".config", "authctl"), nil
}

func statePath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// GetSelectedServer returns the selected server URL, or "" when none is set
func GetSelectedServer() (string, error) {
	path, err := statePath()
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read user config: %w", err)
	}

	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return "", fmt.Errorf("failed to parse user config: %w", err)
	}
	return st.SelectedServerURL, nil
}

// SetSelectedServer records serverURL as the selected server. An empty URL
// clears the selection.
func SetSelectedServer(serverURL string) error {
	path, err := statePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(state{SelectedServerURL: serverURL}, "", "  ")
	if err != nil {
		return err
	}

	// Write then rename so a concurrent reader never sees a partial file
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write user config: %w", err)
	}
	return os.Rename(tmp, path)
}
