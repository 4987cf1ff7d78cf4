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
	"bytes"
	"fmt"
)

// Deployed program code has the format
//
//	0xEF 0xAA ∥ len(name) ∥ name ∥ immutables
//
// where name refers to a registered Program and immutables are arbitrary
// bytes fixed at deployment time, e.g. the address of a module the program
// forwards to. The 0xEF prefix can not start valid EVM code, so program code
// never collides with bytecode.
var programCodePrefix = []byte{0xef, 0xaa}

const maxProgramNameLength = 255

// NewProgramCode creates the code referring to the named program.
func NewProgramCode(name string, immutables []byte) Code {
	if len(name) == 0 || len(name) > maxProgramNameLength {
		panic(fmt.Sprintf("invalid program name %q", name))
	}
	res := make([]byte, 0, len(programCodePrefix)+1+len(name)+len(immutables))
	res = append(res, programCodePrefix...)
	res = append(res, byte(len(name)))
	res = append(res, name...)
	res = append(res, immutables...)
	return res
}

// ParseProgramCode returns the program name and the immutables from a code
// segment. If the code is not program code, the last result is false.
func ParseProgramCode(code Code) (name string, immutables []byte, ok bool) {
	if !bytes.HasPrefix(code, programCodePrefix) || len(code) < len(programCodePrefix)+1 {
		return "", nil, false
	}
	rest := code[len(programCodePrefix):]
	length := int(rest[0])
	if length == 0 || len(rest) < 1+length {
		return "", nil, false
	}
	return string(rest[1 : 1+length]), rest[1+length:], true
}

// NewAddressProgramCode creates program code carrying a single address as
// its immutables.
func NewAddressProgramCode(name string, address Address) Code {
	return NewProgramCode(name, address[:])
}

// ParseAddressImmutables extracts the address from immutables created by
// NewAddressProgramCode.
func ParseAddressImmutables(immutables []byte) (Address, bool) {
	if len(immutables) != len(Address{}) {
		return Address{}, false
	}
	return Address(immutables), true
}
