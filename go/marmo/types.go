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
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Address is a 20-byte account identifier.
type Address [20]byte

// Hash is a 32-byte keccak digest.
type Hash [32]byte

// Key addresses a storage slot of an account.
type Key [32]byte

// Word is the content of a storage slot.
type Word [32]byte

// Gas is the unit of the computation budget of a call.
type Gas int64

// Code is the code deployed at an address.
type Code []byte

// Data is an arbitrary byte sequence, e.g. call input or output.
type Data []byte

// Snapshot identifies a point in the history of a WorldState
// that can be restored.
type Snapshot int

// NewAddress returns an address with the given number in its lowest bytes.
func NewAddress(n uint64) Address {
	var res Address
	binary.BigEndian.PutUint64(res[12:], n)
	return res
}

func AddressFromHex(s string) (Address, error) {
	if !common.IsHexAddress(s) {
		return Address{}, fmt.Errorf("invalid address %q", s)
	}
	return Address(common.HexToAddress(s)), nil
}

func (a Address) String() string {
	return common.Address(a).Hex()
}

func (a Address) MarshalText() ([]byte, error) {
	return hexutil.Bytes(a[:]).MarshalText()
}

func (a *Address) UnmarshalText(input []byte) error {
	return hexutil.UnmarshalFixedText("Address", input, a[:])
}

// Word returns the address left-padded to 32 bytes.
func (a Address) Word() Word {
	var res Word
	copy(res[12:], a[:])
	return res
}

func (h Hash) String() string {
	return hexutil.Encode(h[:])
}

func (h Hash) MarshalText() ([]byte, error) {
	return hexutil.Bytes(h[:]).MarshalText()
}

func (h *Hash) UnmarshalText(input []byte) error {
	return hexutil.UnmarshalFixedText("Hash", input, h[:])
}

func (w Word) String() string {
	return hexutil.Encode(w[:])
}

// Address returns the lowest 20 bytes of the word.
func (w Word) Address() Address {
	var res Address
	copy(res[:], w[12:])
	return res
}

// IsZero reports whether all bytes of the word are zero.
func (w Word) IsZero() bool {
	return w == Word{}
}

func (c Code) String() string {
	return hexutil.Encode(c)
}

func (d Data) String() string {
	return hexutil.Encode(d)
}

func (d Data) MarshalText() ([]byte, error) {
	return hexutil.Bytes(d).MarshalText()
}

func (d *Data) UnmarshalText(input []byte) error {
	return (*hexutil.Bytes)(d).UnmarshalText(input)
}

// SizeInWords returns the number of 32-byte words needed to cover size bytes.
func SizeInWords(size uint64) uint64 {
	if size > ^uint64(0)-31 {
		return ^uint64(0)/32 + 1
	}
	return (size + 31) / 32
}
