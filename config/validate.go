package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"curioledger/native/feesplit"
	"curioledger/native/lease"
)

// Validate rejects configurations the daemon could not start with.
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		return fmt.Errorf("config: ListenAddress must not be empty")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	if _, err := cfg.Owner(); err != nil {
		return err
	}
	if _, err := cfg.Platform(); err != nil {
		return err
	}
	if _, err := lease.ParseRoutingPolicy(cfg.LeaseRouting); err != nil {
		return fmt.Errorf("config: LeaseRouting: %w", err)
	}
	if cfg.Genesis.CommissionBps > feesplit.MaxCommissionBps {
		return fmt.Errorf("config: Genesis.CommissionBps %d exceeds %d", cfg.Genesis.CommissionBps, feesplit.MaxCommissionBps)
	}
	if cfg.Genesis.RoyaltyBps > feesplit.MaxRoyaltyBps {
		return fmt.Errorf("config: Genesis.RoyaltyBps %d exceeds %d", cfg.Genesis.RoyaltyBps, feesplit.MaxRoyaltyBps)
	}
	if _, err := cfg.GenesisUnitPrice(); err != nil {
		return err
	}
	return nil
}

func parseAddress(field, raw string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return out, nil
	}
	if !common.IsHexAddress(trimmed) {
		return out, fmt.Errorf("config: %s is not a valid address: %q", field, raw)
	}
	copy(out[:], common.HexToAddress(trimmed).Bytes())
	return out, nil
}

// Owner returns the genesis owner address; zero when unset.
func (c *Config) Owner() ([20]byte, error) {
	return parseAddress("OwnerAddress", c.OwnerAddress)
}

// Platform returns the genesis platform address; zero when unset.
func (c *Config) Platform() ([20]byte, error) {
	return parseAddress("PlatformAddress", c.PlatformAddress)
}

// RoutingPolicy returns the parsed lease payment routing policy.
func (c *Config) RoutingPolicy() (lease.RoutingPolicy, error) {
	return lease.ParseRoutingPolicy(c.LeaseRouting)
}

// GenesisUnitPrice parses the seeded unit price; nil when unset.
func (c *Config) GenesisUnitPrice() (*big.Int, error) {
	raw := strings.TrimSpace(c.Genesis.UnitPrice)
	if raw == "" {
		return nil, nil
	}
	price, ok := new(big.Int).SetString(raw, 10)
	if !ok || price.Sign() <= 0 {
		return nil, fmt.Errorf("config: Genesis.UnitPrice must be a positive integer, got %q", c.Genesis.UnitPrice)
	}
	return price, nil
}
