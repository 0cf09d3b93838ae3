package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	nativecommon "github.com/Coop-Records/CoopCreditsProtocol/native/common"
)

// Defaults applied when a config file is absent or fields are omitted.
const (
	// DefaultConversionRateWei is 0.0004 ether per credit.
	DefaultConversionRateWei = "400000000000000"
	// DefaultProtocolFlatFeeWei is the flat per-unit mint fee when no
	// strategy price is configured.
	DefaultProtocolFlatFeeWei = "0"
	defaultQuotaEpochSeconds  = 60
)

// QuotaConfig throttles purchases per address. Zero limits disable the quota.
type QuotaConfig struct {
	MaxRequestsPerEpoch uint32 `toml:"MaxRequestsPerEpoch"`
	MaxWeiPerEpoch      uint64 `toml:"MaxWeiPerEpoch"`
	EpochSeconds        uint32 `toml:"EpochSeconds"`
}

// Config carries the deployment parameters for the credits engine.
type Config struct {
	ConversionRateWei  string      `toml:"ConversionRateWei"`
	ProtocolFlatFeeWei string      `toml:"ProtocolFlatFeeWei"`
	EscrowVault        string      `toml:"EscrowVault"`
	Strategy           string      `toml:"Strategy"`
	Router             string      `toml:"Router"`
	MetadataURI        string      `toml:"MetadataURI"`
	PurchaseQuota      QuotaConfig `toml:"PurchaseQuota"`
}

// Load reads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ConversionRateWei) == "" {
		c.ConversionRateWei = DefaultConversionRateWei
	}
	if strings.TrimSpace(c.ProtocolFlatFeeWei) == "" {
		c.ProtocolFlatFeeWei = DefaultProtocolFlatFeeWei
	}
	if c.PurchaseQuota.EpochSeconds == 0 {
		c.PurchaseQuota.EpochSeconds = defaultQuotaEpochSeconds
	}
}

// Validate checks the numeric and address fields for well-formedness.
func (c *Config) Validate() error {
	rate, err := c.ConversionRate()
	if err != nil {
		return err
	}
	if rate.Sign() <= 0 {
		return fmt.Errorf("config: ConversionRateWei must be positive, got %s", c.ConversionRateWei)
	}
	fee, err := c.ProtocolFlatFee()
	if err != nil {
		return err
	}
	if fee.Sign() < 0 {
		return fmt.Errorf("config: ProtocolFlatFeeWei must not be negative, got %s", c.ProtocolFlatFeeWei)
	}
	for name, addr := range map[string]string{
		"EscrowVault": c.EscrowVault,
		"Strategy":    c.Strategy,
		"Router":      c.Router,
	} {
		if strings.TrimSpace(addr) == "" {
			continue
		}
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("config: %s is not a hex address: %s", name, addr)
		}
	}
	return nil
}

func (c *Config) parseWei(field, value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("config: %s is not a decimal wei amount: %s", field, value)
	}
	return amount, nil
}

// ConversionRate returns the wei-per-credit rate.
func (c *Config) ConversionRate() (*big.Int, error) {
	return c.parseWei("ConversionRateWei", c.ConversionRateWei)
}

// ProtocolFlatFee returns the flat per-unit mint fee in wei.
func (c *Config) ProtocolFlatFee() (*big.Int, error) {
	return c.parseWei("ProtocolFlatFeeWei", c.ProtocolFlatFeeWei)
}

func parseAddress(value string) [20]byte {
	if strings.TrimSpace(value) == "" {
		return [20]byte{}
	}
	return common.HexToAddress(value)
}

// VaultAddress returns the configured escrow vault address, zero when unset.
func (c *Config) VaultAddress() [20]byte { return parseAddress(c.EscrowVault) }

// StrategyAddress returns the configured strategy address, zero when unset.
func (c *Config) StrategyAddress() [20]byte { return parseAddress(c.Strategy) }

// RouterAddress returns the configured router address, zero when unset.
func (c *Config) RouterAddress() [20]byte { return parseAddress(c.Router) }

// Quota converts the purchase quota section into the engine representation.
func (c *Config) Quota() nativecommon.Quota {
	return nativecommon.Quota{
		MaxRequestsPerEpoch: c.PurchaseQuota.MaxRequestsPerEpoch,
		MaxWeiPerEpoch:      c.PurchaseQuota.MaxWeiPerEpoch,
		EpochSeconds:        c.PurchaseQuota.EpochSeconds,
	}
}
