// Copyright (c) 2025 Pano Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at panoptisDev.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package client contains the off-ledger tooling of owners and relayers:
// signing intents, building relay calls, submitting them and interpreting
// their outcome.
package client

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/panoptisDev/marmo/go/marmo"
	"github.com/panoptisDev/marmo/go/wallet"
)

// Signer signs intents on behalf of a wallet owner.
type Signer struct {
	key *ecdsa.PrivateKey
}

func NewSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{key: key}
}

// GenerateSigner creates a signer with a fresh random key.
func GenerateSigner() (*Signer, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return NewSigner(key), nil
}

// SignerFromHex creates a signer from a hex encoded private key.
func SignerFromHex(key string) (*Signer, error) {
	parsed, err := crypto.HexToECDSA(strings.TrimPrefix(key, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return NewSigner(parsed), nil
}

func (s *Signer) Address() marmo.Address {
	return marmo.Address(crypto.PubkeyToAddress(s.key.PublicKey))
}

// Sign signs an intent ID. The result is a 65 byte r ∥ s ∥ v signature with
// v in {27, 28}.
func (s *Signer) Sign(id marmo.Hash) ([]byte, error) {
	signature, err := crypto.Sign(id[:], s.key)
	if err != nil {
		return nil, err
	}
	signature[64] += 27
	return signature, nil
}

// SignIntent authorizes an intent for the default logic module of a wallet.
func (s *Signer) SignIntent(walletAddress marmo.Address, intent marmo.Intent) (SignedIntent, error) {
	res := SignedIntent{Wallet: walletAddress, Intent: intent}
	signature, err := s.Sign(res.ID())
	if err != nil {
		return SignedIntent{}, err
	}
	res.Signature = signature
	return res, nil
}

// SignModuleIntent authorizes an intent for the given logic module of a
// wallet only.
func (s *Signer) SignModuleIntent(walletAddress, module marmo.Address, intent marmo.Intent) (SignedIntent, error) {
	res := SignedIntent{Wallet: walletAddress, Module: &module, Intent: intent}
	signature, err := s.Sign(res.ID())
	if err != nil {
		return SignedIntent{}, err
	}
	res.Signature = signature
	return res, nil
}

// SignedIntent is an intent together with everything a relayer needs to
// submit it.
type SignedIntent struct {
	Wallet    marmo.Address  `json:"wallet"`
	Module    *marmo.Address `json:"module,omitempty"` // nil for the default logic module
	Intent    marmo.Intent   `json:"intent"`
	Signature marmo.Data     `json:"signature"`
}

// ID returns the identifier of the intent.
func (s SignedIntent) ID() marmo.Hash {
	if s.Module == nil {
		return marmo.ComputeID(s.Wallet, s.Intent)
	}
	return marmo.ComputeModuleID(s.Wallet, *s.Module, s.Intent)
}

// Calldata returns the input of a transaction relaying the intent.
func (s SignedIntent) Calldata() []byte {
	if s.Module == nil {
		return RelayCall(s.Intent, s.Signature)
	}
	return RelayViaCall(*s.Module, s.Intent, s.Signature)
}

// RelayCall encodes a relay through the default logic module.
func RelayCall(intent marmo.Intent, signature []byte) []byte {
	return wallet.PackRelay(intent, signature)
}

// RelayViaCall encodes a relay through the given logic module.
func RelayViaCall(module marmo.Address, intent marmo.Intent, signature []byte) []byte {
	return wallet.PackRelayVia(module, intent, signature)
}

// CancelIntent creates an intent canceling the intent with the given ID when
// relayed. Cancellation is a call of the wallet on itself, so it has to be
// authorized like any other intent.
func CancelIntent(walletAddress marmo.Address, id marmo.Hash, maxGasPrice, expiration marmo.Value) marmo.Intent {
	return marmo.Intent{
		To:          walletAddress,
		Data:        wallet.PackCancel(id),
		MaxGasPrice: maxGasPrice,
		Expiration:  expiration,
		Salt:        id[:],
	}
}

// LoadIntent reads an intent from a JSON file.
func LoadIntent(path string) (marmo.Intent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return marmo.Intent{}, err
	}
	var intent marmo.Intent
	if err := json.Unmarshal(data, &intent); err != nil {
		return marmo.Intent{}, fmt.Errorf("invalid intent in %s: %w", path, err)
	}
	return intent, nil
}

// Outcome is the recorded result of a relayed intent.
type Outcome = wallet.Relayed

// DecodeRelayed extracts the outcomes of all intents relayed in a
// transaction from its logs.
func DecodeRelayed(logs []marmo.Log) []Outcome {
	var res []Outcome
	for _, log := range logs {
		if outcome, ok := wallet.ParseRelayed(log); ok {
			res = append(res, outcome)
		}
	}
	return res
}

// RevertReason returns the reason a transaction was reverted with, or an
// empty string if it carries none.
func RevertReason(receipt marmo.Receipt) string {
	if receipt.Success {
		return ""
	}
	reason, _ := marmo.RevertReason(receipt.Output)
	return reason
}
