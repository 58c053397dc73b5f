package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configDirName = ".iamctl"

// UserConfig is the on-disk CLI configuration, ~/.iamctl/config.yaml.
type UserConfig struct {
	CurrentProfile string             `yaml:"current-profile,omitempty"`
	Profiles       map[string]Profile `yaml:"profiles,omitempty"`
}

// Profile is one named set of endpoint and credential settings.
type Profile struct {
	Host            string `yaml:"host,omitempty"`
	AccountID       string `yaml:"account-id,omitempty"`
	AccessKeyID     string `yaml:"access-key-id,omitempty"`
	SecretAccessKey string `yaml:"secret-access-key,omitempty"`
	SessionToken    string `yaml:"session-token,omitempty"`
	Output          string `yaml:"output,omitempty"`
}

// ActiveProfile returns the named profile, or the current-profile when the
// override is empty. An unknown name yields a zero profile.
func (c *UserConfig) ActiveProfile(override string) Profile {
	name := override
	if name == "" {
		name = c.CurrentProfile
	}
	if name == "" {
		name = "default"
	}
	return c.Profiles[name]
}

// ConfigDir returns the CLI configuration directory under the user's home.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, configDirName), nil
}

func configPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// LoadUserConfig reads the config file. A missing file is not an error
// and yields an empty config.
func LoadUserConfig() (*UserConfig, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &UserConfig{Profiles: map[string]Profile{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg UserConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]Profile{}
	}
	return &cfg, nil
}

// SaveUserConfig writes the config file, creating the directory if
// needed. The file holds secrets so permissions stay tight.
func SaveUserConfig(cfg *UserConfig) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
