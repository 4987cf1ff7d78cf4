// Copyright (c) 2025 Pano Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at panoptisDev.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ledger

import (
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
	geth "github.com/ethereum/go-ethereum/core/vm"
	"github.com/panoptisDev/marmo/go/marmo"
)

// IsPrecompiled reports whether calls to the given address are served by a
// precompiled contract instead of the code deployed there.
func IsPrecompiled(address marmo.Address) bool {
	_, ok := getPrecompiledContract(address)
	return ok
}

func runPrecompiledContract(input marmo.Data, address marmo.Address, gas marmo.Gas) (marmo.CallResult, error) {
	contract, ok := getPrecompiledContract(address)
	if !ok {
		return marmo.CallResult{}, fmt.Errorf("precompiled contract not found")
	}
	gasCost := contract.RequiredGas(input)
	if gasCost > math.MaxInt64 {
		return marmo.CallResult{}, fmt.Errorf("gas cost exceeds maximum limit")
	}
	if gas < marmo.Gas(gasCost) {
		return marmo.CallResult{}, fmt.Errorf("insufficient gas")
	}
	gas -= marmo.Gas(gasCost)
	output, err := contract.Run(input)
	if err != nil {
		return marmo.CallResult{}, fmt.Errorf("error executing precompiled contract: %w", err)
	}

	return marmo.CallResult{
		Success: true,
		Output:  output,
		GasLeft: gas,
	}, nil
}

func getPrecompiledContract(address marmo.Address) (geth.PrecompiledContract, bool) {
	contract, ok := getPrecompiledContracts()[common.Address(address)]
	return contract, ok
}

func getPrecompiledContracts() map[common.Address]geth.PrecompiledContract {
	return geth.PrecompiledContractsCancun
}

func getPrecompiledAddresses() []marmo.Address {
	precompiles := getPrecompiledContracts()
	addresses := make([]marmo.Address, 0, len(precompiles))
	for addr := range precompiles {
		addresses = append(addresses, marmo.Address(addr))
	}
	return addresses
}
