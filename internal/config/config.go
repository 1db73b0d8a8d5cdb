// Package config is used to load the configuration file
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

type database struct {
	Path string `json:"path"`
}

// Config is the configuration struct
type Config struct {
	StoreFront string   `json:"store-front"`
	Proxy      string   `json:"proxy"`
	Insecure   bool     `json:"insecure"`
	ConfigDir  string   `json:"config-dir"`
	Database   database `json:"database"`
}

func (c *Config) verify() error {
	if c.ConfigDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("config: failed to get user home directory: %v", err)
		}
		c.ConfigDir = filepath.Join(home, ".config", "ipaverse")
	}
	if err := os.MkdirAll(c.ConfigDir, 0o755); err != nil {
		return fmt.Errorf("config: failed to create config directory: %v", err)
	}
	if c.Database.Path == "" {
		c.Database.Path = filepath.Join(c.ConfigDir, "ipaverse.db")
	}
	if c.StoreFront == "" {
		c.StoreFront = "US"
	}
	return nil
}

// LoadConfig loads the configuration file
func LoadConfig() (*Config, error) {
	var c *Config

	if err := viper.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %v", err)
	}
	if c == nil {
		c = &Config{}
	}

	if err := c.verify(); err != nil {
		return nil, fmt.Errorf("config: failed to verify: %v", err)
	}

	return c, nil
}
