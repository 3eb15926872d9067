package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// GetFragilityHome returns the fragility home directory.
// FRAGILITY_HOME wins; otherwise .fragility under the working directory.
// The directory is created if it doesn't exist.
func GetFragilityHome() (string, error) {
	home := os.Getenv("FRAGILITY_HOME")
	if home == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		home = filepath.Join(cwd, ".fragility")
	}

	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("create fragility home directory: %w", err)
	}
	return home, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load resolves the configuration from .env, the config file and the
// environment. An explicit configPath replaces home/config.yaml. Relative
// paths from the file or the environment are resolved under home.
func Load(home, configPath string) (*Config, error) {
	if err := LoadDotEnv(filepath.Join(home, ".env"), ".env"); err != nil {
		return nil, err
	}

	if configPath == "" {
		configPath = filepath.Join(home, "config.yaml")
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	cfg.ResolvePaths(home)
	return cfg, nil
}
