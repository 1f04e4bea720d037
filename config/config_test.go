package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.FileExists(t, path)

	require.Equal(t, "127.0.0.1:8645", cfg.ListenAddress)
	require.Equal(t, "opus-local", cfg.NetworkName)
	require.Equal(t, uint32(500), cfg.PlatformFeeBps)

	min, err := cfg.MinDistributionWei()
	require.NoError(t, err)
	want, _ := new(big.Int).SetString("1000000000000000", 10)
	require.Zero(t, min.Cmp(want))

	_, err = cfg.PlatformTreasuryAddress()
	require.NoError(t, err)
	_, err = cfg.Admin()
	require.NoError(t, err)
}

func TestLoadAppliesDefaultsToSparseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	sparse := `PlatformTreasury = "0x00000000000000000000000000000000000000fe"
AdminAddress = "0x00000000000000000000000000000000000000ad"
`
	require.NoError(t, os.WriteFile(path, []byte(sparse), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:8645", cfg.ListenAddress)
	require.Equal(t, "./opus-data", cfg.DataDir)
	require.Equal(t, uint32(500), cfg.PlatformFeeBps)
	require.Equal(t, "1000000000000000", cfg.MinDistribution)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		return &Config{
			ListenAddress:    "127.0.0.1:8645",
			DataDir:          "./data",
			NetworkName:      "test",
			PlatformTreasury: "0x00000000000000000000000000000000000000fe",
			AdminAddress:     "0x00000000000000000000000000000000000000ad",
			PlatformFeeBps:   500,
			MinDistribution:  "1000",
		}
	}

	cfg := base()
	require.NoError(t, cfg.Validate())

	cfg = base()
	cfg.PlatformTreasury = "not-an-address"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.AdminAddress = "0x123"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.PlatformFeeBps = 10_001
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.MinDistribution = "-5"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.MinDistribution = "lots"
	require.Error(t, cfg.Validate())
}
