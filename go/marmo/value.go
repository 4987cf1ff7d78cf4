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
	"math/big"

	"github.com/holiman/uint256"
)

// Value is a 256-bit unsigned amount of network currency, or any other
// uint256 quantity, in big-endian encoding.
type Value [32]byte

func NewValue(n uint64) Value {
	return ValueFromUint256(uint256.NewInt(n))
}

func ValueFromUint256(v *uint256.Int) Value {
	if v == nil {
		return Value{}
	}
	return Value(v.Bytes32())
}

// ValueFromBig converts a big integer, the second result is false if it
// does not fit into 256 bits or is negative.
func ValueFromBig(v *big.Int) (Value, bool) {
	if v == nil {
		return Value{}, true
	}
	if v.Sign() < 0 {
		return Value{}, false
	}
	res, overflow := uint256.FromBig(v)
	if overflow {
		return Value{}, false
	}
	return ValueFromUint256(res), true
}

func (v Value) ToUint256() *uint256.Int {
	return new(uint256.Int).SetBytes32(v[:])
}

func (v Value) ToBig() *big.Int {
	return new(big.Int).SetBytes(v[:])
}

func (v Value) IsZero() bool {
	return v == Value{}
}

// Cmp returns -1, 0 or +1 depending on v being less, equal or greater than o.
func (v Value) Cmp(o Value) int {
	return v.ToUint256().Cmp(o.ToUint256())
}

// Scale multiplies the value by a 64-bit factor, wrapping on overflow.
func (v Value) Scale(factor uint64) Value {
	return ValueFromUint256(new(uint256.Int).Mul(v.ToUint256(), uint256.NewInt(factor)))
}

func (v Value) String() string {
	return v.ToUint256().Dec()
}

func (v Value) MarshalText() ([]byte, error) {
	return []byte(v.ToUint256().Hex()), nil
}

func (v *Value) UnmarshalText(input []byte) error {
	var res uint256.Int
	if err := res.UnmarshalText(input); err != nil {
		return err
	}
	*v = ValueFromUint256(&res)
	return nil
}

// Add returns a+b, wrapping on overflow.
func Add(a, b Value) Value {
	return ValueFromUint256(new(uint256.Int).Add(a.ToUint256(), b.ToUint256()))
}

// Sub returns a-b, wrapping on underflow.
func Sub(a, b Value) Value {
	return ValueFromUint256(new(uint256.Int).Sub(a.ToUint256(), b.ToUint256()))
}

// AddOverflow returns a+b and whether the addition overflowed.
func AddOverflow(a, b Value) (Value, bool) {
	res, overflow := new(uint256.Int).AddOverflow(a.ToUint256(), b.ToUint256())
	return ValueFromUint256(res), overflow
}

func Min(a, b Value) Value {
	if a.Cmp(b) < 0 {
		return a
	}
	return b
}
