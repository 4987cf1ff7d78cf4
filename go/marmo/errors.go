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
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// ConstError is an error type that can be used to define immutable
// error constants.
type ConstError string

func (e ConstError) Error() string {
	return string(e)
}

// revertSelector is the selector of the Error(string) payload programs
// produce when failing with a reason.
var revertSelector = crypto.Keccak256([]byte("Error(string)"))[:4]

var revertArguments = abi.Arguments{{Type: mustType("string")}}

// EncodeRevert creates the output of a failed call carrying the given reason.
// An empty reason produces an empty output.
func EncodeRevert(reason string) Data {
	if reason == "" {
		return nil
	}
	packed, err := revertArguments.Pack(reason)
	if err != nil {
		// packing a string can not fail
		panic(err)
	}
	return append(append(Data{}, revertSelector...), packed...)
}

// RevertReason extracts the reason from the output of a failed call. The
// second result is false if the output does not carry a reason.
func RevertReason(output Data) (string, bool) {
	if len(output) == 0 {
		return "", false
	}
	reason, err := abi.UnpackRevert(output)
	if err != nil {
		return "", false
	}
	return reason, true
}

func mustType(name string) abi.Type {
	res, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(err)
	}
	return res
}
