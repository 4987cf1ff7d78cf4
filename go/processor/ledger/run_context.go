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

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/panoptisDev/marmo/go/marmo"
)

type runContext struct {
	marmo.WorldState
	blockParameters       marmo.BlockParameters
	transactionParameters marmo.TransactionParameters
	depth                 int
	static                bool
	protection            *writeProtection
}

// writeProtection records attempts to modify the state from within a
// static call frame.
type writeProtection struct {
	violated bool
}

func (r runContext) Call(kind marmo.CallKind, parameters marmo.CallParameters) (marmo.CallResult, error) {
	if kind == marmo.Create2 {
		return r.executeCreate(parameters)
	}
	return r.executeCall(kind, parameters)
}

func (r runContext) executeCall(kind marmo.CallKind, parameters marmo.CallParameters) (callResult marmo.CallResult, err error) {
	errResult := marmo.CallResult{
		Success: false,
		GasLeft: parameters.Gas,
	}

	// The runContext is passed to the program by value,
	// therefore no decrement of depth is required.
	if r.incrementDepth() != nil {
		return errResult, nil
	}

	if kind == marmo.Call && r.static && !parameters.Value.IsZero() {
		return errResult, nil
	}

	// Just like the depth, the static flag does not need to be reset.
	r.static = r.static || kind == marmo.StaticCall
	if r.static {
		r.protection = &writeProtection{}
	}

	snapshot := r.WorldState.CreateSnapshot()
	defer func() {
		// For all returns with an error or an unsuccessful result,
		// the snapshot will be restored.
		if err != nil || !callResult.Success {
			r.WorldState.RestoreSnapshot(snapshot)
		}
	}()

	if kind == marmo.Call {
		if !canTransferValue(r.WorldState, parameters.Value, parameters.Sender, &parameters.Recipient) {
			return errResult, nil
		}
		transferValue(r.WorldState, parameters.Value, parameters.Sender, parameters.Recipient)
	}

	codeAddress := parameters.Recipient
	if kind == marmo.DelegateCall {
		codeAddress = parameters.CodeAddress
	}

	if IsPrecompiled(codeAddress) {
		result, err := runPrecompiledContract(parameters.Input, codeAddress, parameters.Gas)
		if err != nil {
			result.Success = false
		}
		return result, nil
	}

	result, err := r.runProgram(codeAddress, parameters)
	if err != nil {
		return marmo.CallResult{}, err
	}
	if r.static && r.protection.violated {
		return marmo.CallResult{}, nil
	}

	return marmo.CallResult{
		Output:  result.Output,
		GasLeft: result.GasLeft,
		Success: result.Success,
	}, nil
}

func (r runContext) executeCreate(parameters marmo.CallParameters) (callResult marmo.CallResult, err error) {
	errResult := marmo.CallResult{
		Success: false,
		GasLeft: parameters.Gas,
	}
	if r.incrementDepth() != nil || r.static {
		return errResult, nil
	}

	if err := senderCreateSetUp(parameters, r.WorldState); err != nil {
		// the set up only fails if the create can not be executed in the current state,
		// a unsuccessful result is returned but no gas is consumed.
		return errResult, nil
	}

	createdAddress, err := createAddress(parameters, r.WorldState)
	if err != nil {
		// the address has been generated, therefore the gas is consumed in case of an error.
		return marmo.CallResult{}, nil
	}

	// The following changes have an impact on the created address.
	// If a check fails the snapshot will be restored and revert all changes on the
	// created address. The nonce increment of the sender is not impacted.
	snapshot := r.WorldState.CreateSnapshot()
	defer func() {
		if err != nil || !callResult.Success {
			r.WorldState.RestoreSnapshot(snapshot)
		}
	}()

	r.WorldState.CreateAccount(createdAddress)
	r.WorldState.SetNonce(createdAddress, 1)
	transferValue(r.WorldState, parameters.Value, parameters.Sender, createdAddress)

	gasLeft, ok := checkAndDeployCode(marmo.Code(parameters.Input), createdAddress, parameters.Gas, r.WorldState)
	if !ok {
		return marmo.CallResult{}, nil
	}

	return marmo.CallResult{
		GasLeft:        gasLeft,
		Success:        true,
		CreatedAddress: createdAddress,
	}, nil
}

// senderCreateSetUp performs necessary steps before creating a program account.
func senderCreateSetUp(parameters marmo.CallParameters, context marmo.WorldState) error {
	if !canTransferValue(context, parameters.Value, parameters.Sender, nil) {
		return fmt.Errorf("insufficient balance for value transfer")
	}
	if err := incrementNonce(context, parameters.Sender); err != nil {
		return fmt.Errorf("nonce increment failed: %w", err)
	}
	return nil
}

// createAddress derives the address of a new program account from the
// creator, the salt and the hash of the deployed code. An error is returned
// in case the address is already in use.
func createAddress(parameters marmo.CallParameters, context marmo.WorldState) (marmo.Address, error) {
	codeHash := crypto.Keccak256(parameters.Input)
	createdAddress := marmo.Address(crypto.CreateAddress2(
		common.Address(parameters.Sender),
		common.Hash(parameters.Salt),
		codeHash,
	))

	if !isEmpty(context, createdAddress) {
		return marmo.Address{}, fmt.Errorf("created address is not empty")
	}
	return createdAddress, nil
}

// isEmpty checks whether an account has no nonce update and no code.
func isEmpty(context marmo.WorldState, address marmo.Address) bool {
	return context.GetNonce(address) == 0 && len(context.GetCode(address)) == 0
}

// checkAndDeployCode performs the required checks to ensure the code is valid
// and can be deployed. Only code referring to a registered program is accepted.
func checkAndDeployCode(
	code marmo.Code,
	createdAddress marmo.Address,
	gas marmo.Gas,
	context marmo.WorldState,
) (marmo.Gas, bool) {
	if len(code) > maxCodeSize {
		return 0, false
	}
	name, _, ok := marmo.ParseProgramCode(code)
	if !ok {
		return 0, false
	}
	if _, found := marmo.GetProgram(name); !found {
		return 0, false
	}

	deploymentCost := marmo.Gas(CreateGas + len(code)*createGasCostPerByte)
	if gas < deploymentCost {
		return 0, false
	}
	context.SetCode(createdAddress, code)
	return gas - deploymentCost, true
}

func (r runContext) runProgram(codeAddress marmo.Address, parameters marmo.CallParameters) (marmo.Result, error) {
	code := r.WorldState.GetCode(codeAddress)
	if len(code) == 0 {
		// accounts without code accept every call
		return marmo.Result{Success: true, GasLeft: parameters.Gas}, nil
	}

	name, _, ok := marmo.ParseProgramCode(code)
	if !ok {
		return marmo.Result{}, nil
	}
	program, found := marmo.GetProgram(name)
	if !found {
		return marmo.Result{}, nil
	}

	result, err := program.Run(marmo.Parameters{
		BlockParameters:       r.blockParameters,
		TransactionParameters: r.transactionParameters,
		Context:               r,
		Static:                r.static,
		Depth:                 r.depth - 1, // depth has already been incremented
		Gas:                   parameters.Gas,
		Recipient:             parameters.Recipient,
		Sender:                parameters.Sender,
		CodeAddress:           codeAddress,
		Input:                 parameters.Input,
		Value:                 parameters.Value,
		Code:                  code,
	})
	if err != nil {
		return marmo.Result{}, fmt.Errorf("program %q failed: %w", name, err)
	}
	if result.GasLeft < 0 || result.GasLeft > parameters.Gas {
		return marmo.Result{}, fmt.Errorf("program %q reported invalid gas left: %d of %d", name, result.GasLeft, parameters.Gas)
	}
	return result, nil
}

// incrementDepth increases the depth of the run context.
// In case the maximum call depth is exceeded, an error is returned.
func (r *runContext) incrementDepth() error {
	if r.depth > MaxRecursiveDepth {
		return fmt.Errorf("max recursive depth reached")
	}
	r.depth++
	return nil
}

// The following overrides enforce the write protection of static calls.

func (r runContext) CreateAccount(address marmo.Address) {
	if r.writeProtected() {
		return
	}
	r.WorldState.CreateAccount(address)
}

func (r runContext) SetBalance(address marmo.Address, value marmo.Value) {
	if r.writeProtected() {
		return
	}
	r.WorldState.SetBalance(address, value)
}

func (r runContext) SetNonce(address marmo.Address, nonce uint64) {
	if r.writeProtected() {
		return
	}
	r.WorldState.SetNonce(address, nonce)
}

func (r runContext) SetCode(address marmo.Address, code marmo.Code) {
	if r.writeProtected() {
		return
	}
	r.WorldState.SetCode(address, code)
}

func (r runContext) SetStorage(address marmo.Address, key marmo.Key, value marmo.Word) {
	if r.writeProtected() {
		return
	}
	r.WorldState.SetStorage(address, key, value)
}

func (r runContext) EmitLog(log marmo.Log) {
	if r.writeProtected() {
		return
	}
	r.WorldState.EmitLog(log)
}

func (r runContext) writeProtected() bool {
	if !r.static {
		return false
	}
	r.protection.violated = true
	return true
}

func canTransferValue(
	context marmo.WorldState,
	value marmo.Value,
	sender marmo.Address,
	recipient *marmo.Address,
) bool {
	if value.IsZero() {
		return true
	}

	senderBalance := context.GetBalance(sender)
	if senderBalance.Cmp(value) < 0 {
		return false
	}

	if recipient == nil || sender == *recipient {
		return true
	}

	receiverBalance := context.GetBalance(*recipient)
	_, overflow := marmo.AddOverflow(receiverBalance, value)
	return !overflow
}

func incrementNonce(context marmo.WorldState, address marmo.Address) error {
	nonce := context.GetNonce(address)
	if nonce+1 < nonce {
		return fmt.Errorf("nonce overflow")
	}
	context.SetNonce(address, nonce+1)
	return nil
}

// Only to be called after canTransferValue
func transferValue(
	context marmo.WorldState,
	value marmo.Value,
	sender marmo.Address,
	recipient marmo.Address,
) {
	if value.IsZero() || sender == recipient {
		return
	}

	senderBalance := context.GetBalance(sender)
	receiverBalance := context.GetBalance(recipient)

	context.SetBalance(sender, marmo.Sub(senderBalance, value))
	context.SetBalance(recipient, marmo.Add(receiverBalance, value))
}
