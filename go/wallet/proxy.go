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
	"bytes"

	"github.com/panoptisDev/marmo/go/marmo"
)

// Names of the programs making up a wallet.
const (
	ProxyProgram   = "marmo.wallet"
	LogicV1Program = "marmo.logic.v1"
	LogicV2Program = "marmo.logic.v2"
)

func init() {
	marmo.RegisterProgram(ProxyProgram, proxy{})
	marmo.RegisterProgram(LogicV1Program, logic{})
	marmo.RegisterProgram(LogicV2Program, logic{gasFloorReason: ReasonGasLeftTooLow})
}

// NewWalletCode creates the code of a wallet forwarding to the given default
// logic module.
func NewWalletCode(defaultLogic marmo.Address) marmo.Code {
	return marmo.NewAddressProgramCode(ProxyProgram, defaultLogic)
}

// NewLogicCode creates the code of a logic module implemented by the named
// program.
func NewLogicCode(program string) marmo.Code {
	if !isLogicProgram(program) {
		panic("not a logic program: " + program)
	}
	return marmo.NewProgramCode(program, nil)
}

// DefaultLogic returns the default logic module of a wallet.
func DefaultLogic(code marmo.Code) (marmo.Address, bool) {
	name, immutables, ok := marmo.ParseProgramCode(code)
	if !ok || name != ProxyProgram {
		return marmo.Address{}, false
	}
	return marmo.ParseAddressImmutables(immutables)
}

func isLogicProgram(name string) bool {
	return name == LogicV1Program || name == LogicV2Program
}

func isLogicModule(code marmo.Code) bool {
	name, _, ok := marmo.ParseProgramCode(code)
	return ok && isLogicProgram(name)
}

// proxy is the program deployed for each wallet. It holds no logic of its
// own, every call is delegated to a logic module running on the storage of
// the wallet. The module is the default one fixed at deployment, unless the
// call is a relayVia naming a module explicitly.
type proxy struct{}

func (proxy) Run(params marmo.Parameters) (marmo.Result, error) {
	if len(params.Input) == 0 {
		return marmo.Result{Success: true, GasLeft: params.Gas}, nil
	}
	if params.Gas < ProxyGas {
		return marmo.Result{}, nil
	}
	failed := marmo.Result{GasLeft: params.Gas - ProxyGas}

	module, ok := DefaultLogic(params.Code)
	if !ok {
		return failed, nil
	}
	if bytes.HasPrefix(params.Input, relayViaMethod.ID) {
		if len(params.Input) < 4+32 {
			return failed, nil
		}
		module = marmo.Address(params.Input[4+12 : 4+32])
	}
	if !isLogicModule(params.Context.GetCode(module)) {
		return failed, nil
	}

	result, err := params.Context.Call(marmo.DelegateCall, marmo.CallParameters{
		Sender:      params.Sender,
		Recipient:   params.Recipient,
		Value:       params.Value,
		Input:       params.Input,
		Gas:         params.Gas - ProxyGas,
		CodeAddress: module,
	})
	if err != nil {
		return marmo.Result{}, err
	}
	return marmo.Result{
		Success: result.Success,
		Output:  result.Output,
		GasLeft: result.GasLeft,
	}, nil
}
