// Copyright (c) 2025 Pano Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at panoptisDev.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package marmo

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Intent describes a single action a wallet owner authorizes off-ledger and
// any relayer may later submit. Intents are values, they are never stored;
// only their identifiers are.
type Intent struct {
	Dependencies Data    `json:"dependencies"` // encoded preconditions, see EncodeDependencies
	To           Address `json:"to"`
	Value        Value   `json:"value"`
	Data         Data    `json:"data"`
	MinGasLimit  Value   `json:"minGasLimit"` // gas the call to To must at least receive
	MaxGasPrice  Value   `json:"maxGasPrice"` // highest gas price a relayer may submit with
	Salt         Data    `json:"salt"`
	Expiration   Value   `json:"expiration"` // last block timestamp the intent may be relayed at
}

// intentArguments defines the canonical encoding of an intent. Dynamic
// fields are length-prefixed, so no two distinct intents share an encoding.
var intentArguments = abi.Arguments{
	{Name: "dependencies", Type: mustType("bytes")},
	{Name: "to", Type: mustType("address")},
	{Name: "value", Type: mustType("uint256")},
	{Name: "data", Type: mustType("bytes")},
	{Name: "minGasLimit", Type: mustType("uint256")},
	{Name: "maxGasPrice", Type: mustType("uint256")},
	{Name: "salt", Type: mustType("bytes")},
	{Name: "expiration", Type: mustType("uint256")},
}

// IntentArguments returns the ABI argument list of the intent fields in
// their canonical order.
func IntentArguments() abi.Arguments {
	return append(abi.Arguments{}, intentArguments...)
}

// Values returns the intent fields in the form expected by ABI packing.
func (i Intent) Values() []any {
	return []any{
		nonNil(i.Dependencies),
		common.Address(i.To),
		i.Value.ToBig(),
		nonNil(i.Data),
		i.MinGasLimit.ToBig(),
		i.MaxGasPrice.ToBig(),
		nonNil(i.Salt),
		i.Expiration.ToBig(),
	}
}

// Encode returns the canonical encoding of the intent.
func (i Intent) Encode() []byte {
	res, err := intentArguments.Pack(i.Values()...)
	if err != nil {
		// all fields have fixed, valid types
		panic(fmt.Sprintf("failed to encode intent: %v", err))
	}
	return res
}

// Hash returns the keccak-256 digest of the canonical encoding.
func (i Intent) Hash() Hash {
	return Keccak256Hash(i.Encode())
}

// ComputeID derives the identifier of an intent for the given wallet. The
// identifier is both the message signed by the owner and the key protecting
// against replays. It does not depend on who relays the intent or when.
func ComputeID(wallet Address, intent Intent) Hash {
	hash := intent.Hash()
	return Keccak256Hash(wallet[:], hash[:])
}

// ComputeModuleID derives the identifier of an intent interpreted by the
// given logic module. An intent authorized for one module is not authorized
// for any other.
func ComputeModuleID(wallet Address, module Address, intent Intent) Hash {
	hash := intent.Hash()
	return Keccak256Hash(wallet[:], module[:], hash[:])
}

// IntentFromValues converts ABI-unpacked values, in the order of
// IntentArguments, back into an intent.
func IntentFromValues(values []any) (Intent, error) {
	if len(values) != len(intentArguments) {
		return Intent{}, fmt.Errorf("expected %d intent fields, got %d", len(intentArguments), len(values))
	}
	var res Intent
	var err error
	if res.Dependencies, err = asBytes(values[0]); err != nil {
		return Intent{}, fmt.Errorf("dependencies: %w", err)
	}
	to, ok := values[1].(common.Address)
	if !ok {
		return Intent{}, fmt.Errorf("to: unexpected type %T", values[1])
	}
	res.To = Address(to)
	if res.Value, err = asValue(values[2]); err != nil {
		return Intent{}, fmt.Errorf("value: %w", err)
	}
	if res.Data, err = asBytes(values[3]); err != nil {
		return Intent{}, fmt.Errorf("data: %w", err)
	}
	if res.MinGasLimit, err = asValue(values[4]); err != nil {
		return Intent{}, fmt.Errorf("minGasLimit: %w", err)
	}
	if res.MaxGasPrice, err = asValue(values[5]); err != nil {
		return Intent{}, fmt.Errorf("maxGasPrice: %w", err)
	}
	if res.Salt, err = asBytes(values[6]); err != nil {
		return Intent{}, fmt.Errorf("salt: %w", err)
	}
	if res.Expiration, err = asValue(values[7]); err != nil {
		return Intent{}, fmt.Errorf("expiration: %w", err)
	}
	return res, nil
}

func asBytes(value any) ([]byte, error) {
	res, ok := value.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected type %T", value)
	}
	return res, nil
}

func asValue(value any) (Value, error) {
	v, ok := value.(*big.Int)
	if !ok {
		return Value{}, fmt.Errorf("unexpected type %T", value)
	}
	res, ok := ValueFromBig(v)
	if !ok {
		return Value{}, fmt.Errorf("value %v out of range", v)
	}
	return res, nil
}

func nonNil(data []byte) []byte {
	if data == nil {
		return []byte{}
	}
	return data
}
