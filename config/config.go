package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Config carries the daemon settings decoded from TOML.
type Config struct {
	ListenAddress    string `toml:"ListenAddress"`
	MetricsAddress   string `toml:"MetricsAddress"`
	DataDir          string `toml:"DataDir"`
	NetworkName      string `toml:"NetworkName"`
	PlatformTreasury string `toml:"PlatformTreasury"`
	AdminAddress     string `toml:"AdminAddress"`
	PlatformFeeBps   uint32 `toml:"PlatformFeeBps"`
	MinDistribution  string `toml:"MinDistribution"`
}

const defaultConfig = `# opusledger daemon configuration
ListenAddress = "127.0.0.1:8645"
MetricsAddress = "127.0.0.1:9095"
DataDir = "./opus-data"
NetworkName = "opus-local"
# Recipient of platform shares from default splits and campaign fees.
PlatformTreasury = "0x00000000000000000000000000000000000000fe"
# Administrator allowed to flip creator verification flags.
AdminAddress = "0x00000000000000000000000000000000000000ad"
# Basis points withheld from campaign withdrawals.
PlatformFeeBps = 500
# Dust threshold for royalty distributions, in wei.
MinDistribution = "1000000000000000"
`

// Load reads the configuration from the given path, creating a commented
// default file when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := createDefault(path); err != nil {
			return nil, err
		}
	}
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createDefault(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(defaultConfig), 0o644)
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./opus-data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "opus-local"
	}
	if cfg.PlatformFeeBps == 0 {
		cfg.PlatformFeeBps = 500
	}
	if strings.TrimSpace(cfg.MinDistribution) == "" {
		cfg.MinDistribution = "1000000000000000"
	}
}

// Validate checks addresses and ranges before the daemon wires the engines.
func (c *Config) Validate() error {
	if _, err := c.platformTreasury(); err != nil {
		return err
	}
	if _, err := c.adminAddress(); err != nil {
		return err
	}
	if c.PlatformFeeBps > 10_000 {
		return fmt.Errorf("config: PlatformFeeBps %d exceeds 10000", c.PlatformFeeBps)
	}
	if _, err := c.minDistribution(); err != nil {
		return err
	}
	return nil
}

func parseAddress(field, raw string) ([20]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if !ethcommon.IsHexAddress(trimmed) {
		return [20]byte{}, fmt.Errorf("config: %s %q is not a hex address", field, raw)
	}
	return ethcommon.HexToAddress(trimmed), nil
}

func (c *Config) platformTreasury() ([20]byte, error) {
	return parseAddress("PlatformTreasury", c.PlatformTreasury)
}

func (c *Config) adminAddress() ([20]byte, error) {
	return parseAddress("AdminAddress", c.AdminAddress)
}

func (c *Config) minDistribution() (*big.Int, error) {
	min, ok := new(big.Int).SetString(strings.TrimSpace(c.MinDistribution), 10)
	if !ok || min.Sign() <= 0 {
		return nil, fmt.Errorf("config: MinDistribution %q is not a positive integer", c.MinDistribution)
	}
	return min, nil
}

// PlatformTreasuryAddress returns the parsed treasury address.
func (c *Config) PlatformTreasuryAddress() ([20]byte, error) { return c.platformTreasury() }

// Admin returns the parsed administrator address.
func (c *Config) Admin() ([20]byte, error) { return c.adminAddress() }

// MinDistributionWei returns the parsed dust threshold.
func (c *Config) MinDistributionWei() (*big.Int, error) { return c.minDistribution() }
