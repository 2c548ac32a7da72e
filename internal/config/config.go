package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// HashPlaceholder marks where the published hash is substituted into the
// remote command template. It may appear more than once.
const HashPlaceholder = "{hash}"

// Config represents the complete ipfs-publish configuration
type Config struct {
	Store  StoreConfig  `yaml:"store"`
	IPFS   IPFSConfig   `yaml:"ipfs"`
	Remote RemoteConfig `yaml:"remote"`
}

// StoreConfig configures the publish record file
type StoreConfig struct {
	Path string `yaml:"path"`
}

// IPFSConfig configures the local ipfs binary invocation
type IPFSConfig struct {
	Binary string `yaml:"binary"`
}

// RemoteConfig configures the remote pin+publish target
type RemoteConfig struct {
	Host      string `yaml:"host"`
	User      string `yaml:"user"`
	Command   string `yaml:"command"`
	SSHBinary string `yaml:"ssh_binary"`
}

// Default returns a configuration usable without any config file.
// The remote target stays empty; deploy requires it to be set.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Expand environment variables in string fields
	cfg.expandEnv()

	// Apply defaults
	cfg.applyDefaults()

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// expandEnv expands environment variables in all string fields
func (c *Config) expandEnv() {
	c.Store.Path = os.ExpandEnv(c.Store.Path)
	c.IPFS.Binary = os.ExpandEnv(c.IPFS.Binary)
	c.Remote.Host = os.ExpandEnv(c.Remote.Host)
	c.Remote.User = os.ExpandEnv(c.Remote.User)
	c.Remote.SSHBinary = os.ExpandEnv(c.Remote.SSHBinary)
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Store.Path == "" {
		c.Store.Path = "ipfs-publish.json"
	}
	if c.IPFS.Binary == "" {
		c.IPFS.Binary = "ipfs"
	}
	if c.Remote.Command == "" {
		c.Remote.Command = "ipfs pin add {hash} && ipfs name publish {hash}"
	}
	if c.Remote.SSHBinary == "" {
		c.Remote.SSHBinary = "ssh"
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.IPFS.Binary == "" {
		return fmt.Errorf("ipfs.binary is required")
	}
	if !strings.Contains(c.Remote.Command, HashPlaceholder) {
		return fmt.Errorf("remote.command must contain the %s placeholder", HashPlaceholder)
	}
	if c.Remote.User != "" && c.Remote.Host == "" {
		return fmt.Errorf("remote.user is set but remote.host is empty")
	}
	return nil
}

// ValidateRemote checks that a remote target is fully configured.
// Only deploy needs this; init and publish work without a remote.
func (c *Config) ValidateRemote() error {
	if c.Remote.Host == "" {
		return fmt.Errorf("remote.host is required to deploy")
	}
	return nil
}

// Target returns the ssh destination in user@host form, or just the
// host when no user is configured.
func (c *Config) Target() string {
	if c.Remote.User == "" {
		return c.Remote.Host
	}
	return c.Remote.User + "@" + c.Remote.Host
}
