// Copyright (c) 2025 Pano Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at panoptisDev.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package wallet

import (
	"fmt"

	"github.com/panoptisDev/marmo/go/marmo"
)

// dependenciesSatisfied evaluates the dependencies of an intent in order
// and stops at the first unsatisfied one. Each dependency is a read-only
// call issued by the wallet; a malformed dependency list is never satisfied.
func (e *execution) dependenciesSatisfied(encoded []byte) (bool, error) {
	dependencies, err := marmo.DecodeDependencies(encoded)
	if err != nil {
		return false, nil
	}
	for _, dependency := range dependencies {
		if !e.meter.charge(CallGas) {
			return false, nil
		}
		result, err := e.params.Context.Call(marmo.StaticCall, marmo.CallParameters{
			Sender:    e.params.Recipient,
			Recipient: dependency.Target,
			Input:     dependency.Input,
			Gas:       e.meter.forward(),
		})
		if err != nil {
			return false, fmt.Errorf("dependency check on %v failed: %w", dependency.Target, err)
		}
		e.meter.refund(result.GasLeft)
		if !IsSatisfied(result) {
			return false, nil
		}
	}
	return true, nil
}

// IsSatisfied reports whether the result of a dependency call satisfies the
// dependency. The call has to succeed and return a non-zero output, e.g. a
// true boolean or the non-zero address of the relayer of another intent.
func IsSatisfied(result marmo.CallResult) bool {
	if !result.Success {
		return false
	}
	for _, b := range result.Output {
		if b != 0 {
			return true
		}
	}
	return false
}
