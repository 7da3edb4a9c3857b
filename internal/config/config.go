// Package config loads the wallet client's configuration: which Bitcoin
// network it talks to, where its Ark server and chain indexer live, and
// where it keeps its local data directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/arkwallet/arkwalletd/internal/ark"
	"github.com/arkwallet/arkwalletd/internal/arkaddr"
)

// NetworkType selects which Bitcoin network the wallet operates on, per
// spec.md's GLOSSARY entry for Ark address hrps.
type NetworkType string

const (
	NetworkMainnet   NetworkType = "mainnet"
	NetworkTestnet   NetworkType = "testnet"
	NetworkSignet    NetworkType = "signet"
	NetworkMutinynet NetworkType = "mutinynet"
	NetworkRegtest   NetworkType = "regtest"
)

func (n NetworkType) valid() bool {
	switch n {
	case NetworkMainnet, NetworkTestnet, NetworkSignet, NetworkMutinynet, NetworkRegtest:
		return true
	default:
		return false
	}
}

// HRP returns the Ark address human-readable prefix for this network:
// "ark" on mainnet, "tark" everywhere else, per spec.md §4.2/GLOSSARY.
func (n NetworkType) HRP() string {
	if n == NetworkMainnet {
		return arkaddr.HRPMainnet
	}
	return arkaddr.HRPTestnet
}

// Config holds everything the wallet client needs to talk to one Ark
// server on one network.
type Config struct {
	Network NetworkType `yaml:"network"`

	// ServerURL is the Ark server's base HTTP URL (the REST/event-stream
	// counterparty of internal/arkprovider).
	ServerURL string `yaml:"server_url"`

	// IndexerURL is the chain indexer's base HTTP URL (spec.md §4.8's
	// ChainIndexer contract), used to resolve boarding UTXOs and confirm
	// settlement transactions.
	IndexerURL string `yaml:"indexer_url"`

	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
}

// StorageConfig holds local data directory settings.
type StorageConfig struct {
	// DataDir is the directory holding the wallet's sqlite cache
	// (internal/store) and, unless overridden, its identity material.
	DataDir string `yaml:"data_dir"`
}

// LoggingConfig holds logging settings, consumed by pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns a Config with sensible defaults for a first run
// against mainnet.
func DefaultConfig() *Config {
	return &Config{
		Network:    NetworkMainnet,
		ServerURL:  "https://ark.arklabs.to",
		IndexerURL: "https://mempool.space/api",
		Storage: StorageConfig{
			DataDir: "~/.arkwallet",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ConfigFileName is the default config file name within a data directory.
const ConfigFileName = "config.yaml"

// Load reads configuration from dataDir/config.yaml, writing a default
// file there first if none exists.
func Load(dataDir string) (*Config, error) {
	expanded := expandPath(dataDir)
	path := filepath.Join(expanded, ConfigFileName)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.Storage.DataDir = dataDir
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("config: creating default config: %w", err)
		}
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing config file: %w", err)
	}

	return cfg, cfg.Validate()
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("config: creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshalling config: %w", err)
	}

	header := []byte("# Ark wallet client configuration\n# Generated automatically on first run\n\n")
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("config: writing config file: %w", err)
	}

	return nil
}

// Validate checks the config is complete enough to build a wallet from,
// surfacing ark.ConfigError per spec.md §7.
func (c *Config) Validate() error {
	if !c.Network.valid() {
		return &ark.ConfigError{Reason: fmt.Sprintf("unknown network %q", c.Network)}
	}
	if c.ServerURL == "" {
		return &ark.ConfigError{Reason: "missing server_url"}
	}
	if c.IndexerURL == "" {
		return &ark.ConfigError{Reason: "missing indexer_url"}
	}
	if c.Storage.DataDir == "" {
		return &ark.ConfigError{Reason: "missing storage.data_dir"}
	}
	return nil
}

// ConfigPath returns the full path to the config file for the given data
// directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(expandPath(dataDir), ConfigFileName)
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
