package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arkwallet/arkwalletd/internal/ark"
	"github.com/arkwallet/arkwalletd/internal/arkaddr"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultConfig(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "arkwalletd-config-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	require.Equal(t, NetworkMainnet, cfg.Network)
	require.Equal(t, tmpDir, cfg.Storage.DataDir)

	_, err = os.Stat(filepath.Join(tmpDir, ConfigFileName))
	require.NoError(t, err, "config file should have been created")
}

func TestLoadReadsExistingConfig(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "arkwalletd-config-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	first, err := Load(tmpDir)
	require.NoError(t, err)
	first.Network = NetworkSignet
	first.ServerURL = "https://signet.ark.example"
	require.NoError(t, first.Save(ConfigPath(tmpDir)))

	second, err := Load(tmpDir)
	require.NoError(t, err)
	require.Equal(t, NetworkSignet, second.Network)
	require.Equal(t, "https://signet.ark.example", second.ServerURL)
}

func TestHRP(t *testing.T) {
	require.Equal(t, arkaddr.HRPMainnet, NetworkMainnet.HRP())
	require.Equal(t, arkaddr.HRPTestnet, NetworkTestnet.HRP())
	require.Equal(t, arkaddr.HRPTestnet, NetworkSignet.HRP())
	require.Equal(t, arkaddr.HRPTestnet, NetworkMutinynet.HRP())
	require.Equal(t, arkaddr.HRPTestnet, NetworkRegtest.HRP())
}

func TestValidateRejectsUnknownNetwork(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Network = "weird"

	err := cfg.Validate()
	var configErr *ark.ConfigError
	require.ErrorAs(t, err, &configErr)
}

func TestValidateRejectsMissingServerURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServerURL = ""

	err := cfg.Validate()
	var configErr *ark.ConfigError
	require.ErrorAs(t, err, &configErr)
}

func TestValidateRejectsMissingIndexerURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IndexerURL = ""

	err := cfg.Validate()
	var configErr *ark.ConfigError
	require.ErrorAs(t, err, &configErr)
}

func TestValidateAcceptsDefaults(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}
