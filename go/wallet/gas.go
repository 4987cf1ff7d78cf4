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

import "github.com/panoptisDev/marmo/go/marmo"

// Gas costs of the operations performed by wallet programs.
const (
	DispatchGas  = 100
	ProxyGas     = 700
	SloadGas     = 800
	SstoreGas    = 20_000
	HashGas      = 30
	HashWordGas  = 6
	EcrecoverGas = 3_000
	CallGas      = 700
	LogGas       = 375
	LogTopicGas  = 375
	LogDataGas   = 8
)

// meter tracks the gas left of a program invocation.
type meter struct {
	gas       marmo.Gas
	exhausted bool
}

// charge consumes the given amount of gas. If not enough gas is left, all
// remaining gas is consumed and false is returned.
func (m *meter) charge(amount marmo.Gas) bool {
	if m.exhausted || m.gas < amount {
		m.gas = 0
		m.exhausted = true
		return false
	}
	m.gas -= amount
	return true
}

// forward removes the gas handed to a nested call, keeping back 1/64 of the
// remaining gas for the caller.
func (m *meter) forward() marmo.Gas {
	gas := m.gas - m.gas/64
	m.gas -= gas
	return gas
}

// refund returns the gas left by a nested call.
func (m *meter) refund(gas marmo.Gas) {
	m.gas += gas
}

func hashGas(size int) marmo.Gas {
	return HashGas + HashWordGas*marmo.Gas(marmo.SizeInWords(uint64(size)))
}

func logGas(topics int, size int) marmo.Gas {
	return LogGas + LogTopicGas*marmo.Gas(topics) + LogDataGas*marmo.Gas(size)
}
