// Copyright (c) 2025 Pano Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at panoptisDev.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package client

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/panoptisDev/marmo/go/marmo"
	"github.com/panoptisDev/marmo/go/processor/ledger"
)

// Config is the configuration of a relayer.
type Config struct {
	GasPrice marmo.Value   `toml:"gas_price"` // highest price paid per unit of gas
	GasLimit marmo.Gas     `toml:"gas_limit"` // gas limit of relay transactions
	Key      string        `toml:"key"`       // hex encoded private key, alternative to KeyFile
	KeyFile  string        `toml:"key_file"`  // file holding a hex encoded private key
	Factory  marmo.Address `toml:"factory"`
	Logic    marmo.Address `toml:"logic"`   // default logic module of revealed wallets
	Workers  int           `toml:"workers"` // parallelism of batch verification
}

// DefaultConfig returns the configuration values used for everything not
// set explicitly.
func DefaultConfig() Config {
	return Config{
		GasPrice: marmo.NewValue(1),
		GasLimit: 1_000_000,
		Workers:  4,
	}
}

// LoadConfig reads a TOML configuration file. Unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()
	meta, err := toml.DecodeFile(path, &config)
	if err != nil {
		return Config{}, fmt.Errorf("decode TOML: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("unknown configuration keys: %v", undecoded)
	}
	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("validation failed: %w", err)
	}
	return config, nil
}

// Validate checks the configuration for errors. All problems found are
// reported together.
func (c *Config) Validate() error {
	var errs []error
	if c.GasPrice.IsZero() {
		errs = append(errs, errors.New("gas_price must be positive"))
	}
	if c.GasLimit < ledger.TxGas {
		errs = append(errs, fmt.Errorf("gas_limit must be at least %d", ledger.TxGas))
	}
	if c.Key == "" && c.KeyFile == "" {
		errs = append(errs, errors.New("one of key and key_file is required"))
	}
	if c.Key != "" && c.KeyFile != "" {
		errs = append(errs, errors.New("key and key_file are mutually exclusive"))
	}
	if c.Workers <= 0 {
		errs = append(errs, errors.New("workers must be positive"))
	}
	return errors.Join(errs...)
}

// LoadKey returns the private key of the relayer.
func (c *Config) LoadKey() (*ecdsa.PrivateKey, error) {
	if c.Key != "" {
		return crypto.HexToECDSA(strings.TrimPrefix(c.Key, "0x"))
	}
	return crypto.LoadECDSA(c.KeyFile)
}
