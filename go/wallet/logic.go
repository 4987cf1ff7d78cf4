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
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/panoptisDev/marmo/go/marmo"
)

// Revert reasons reported by logic modules.
const (
	ReasonExpired            = "Intent is expired"
	ReasonGasPriceTooHigh    = "Gas price too high"
	ReasonAlreadyRelayed     = "Intent already relayed"
	ReasonCanceled           = "Intent was canceled"
	ReasonAlreadyCanceled    = "Intent already canceled"
	ReasonInvalidSignature   = "Invalid signature"
	ReasonDependency         = "Dependency is not satisfied"
	ReasonGasLeftTooLow      = "gasleft too low"
	ReasonOnlyWalletCancels  = "Only wallet can cancel txs"
	ReasonSignerAlreadyKnown = "Signer already defined"
)

// logic implements the relay state machine of a wallet. It is executed
// through delegate calls from the wallet proxy, so the recipient of each
// invocation is the wallet whose storage is in use.
type logic struct {
	// gasFloorReason is reported if less gas than the minimum gas limit of
	// an intent is left for the call. Empty for the first protocol version.
	gasFloorReason string
}

// execution is the state of a single invocation of a logic module.
type execution struct {
	params  marmo.Parameters
	meter   *meter
	storage storage
}

func (l logic) Run(params marmo.Parameters) (marmo.Result, error) {
	// plain value transfers fund the wallet
	if len(params.Input) == 0 {
		return marmo.Result{Success: true, GasLeft: params.Gas}, nil
	}

	m := &meter{gas: params.Gas}
	e := &execution{
		params:  params,
		meter:   m,
		storage: storage{ctx: params.Context, wallet: params.Recipient, meter: m},
	}

	if len(params.Input) < 4 {
		return e.revert(""), nil
	}
	method, err := ABI.MethodById(params.Input[:4])
	if err != nil {
		return e.revert(""), nil
	}
	if !m.charge(DispatchGas) {
		return e.outOfGas(), nil
	}
	args, err := method.Inputs.Unpack(params.Input[4:])
	if err != nil {
		return e.revert(""), nil
	}

	if !method.IsConstant() && params.Static {
		return e.revert(""), nil
	}

	switch method.Name {
	case "init":
		return e.init(marmo.Address(args[0].(common.Address))), nil
	case "relay":
		intent, err := marmo.IntentFromValues(args[:8])
		if err != nil {
			return e.revert(""), nil
		}
		return l.relay(e, intent, args[8].([]byte), false)
	case "relayVia":
		module := marmo.Address(args[0].(common.Address))
		if module != params.CodeAddress {
			return e.revert(""), nil
		}
		intent, err := marmo.IntentFromValues(args[1:9])
		if err != nil {
			return e.revert(""), nil
		}
		return l.relay(e, intent, args[9].([]byte), true)
	case "cancel":
		return e.cancel(marmo.Hash(args[0].([32]byte))), nil
	case "signer":
		signer, _ := e.storage.signer()
		return e.view(method, common.Address(signer)), nil
	case "relayedBy":
		relayer, _ := e.storage.relayedBy(marmo.Hash(args[0].([32]byte)))
		return e.view(method, common.Address(relayer)), nil
	case "isRelayedBy":
		relayer, _ := e.storage.relayedBy(marmo.Hash(args[0].([32]byte)))
		expected := marmo.Address(args[1].(common.Address))
		return e.view(method, relayer != marmo.Address{} && relayer == expected), nil
	case "relayedAt":
		at, _ := e.storage.relayedAt(marmo.Hash(args[0].([32]byte)))
		return e.view(method, new(big.Int).SetBytes(at[:])), nil
	case "isCanceled":
		canceled, _ := e.storage.isCanceled(marmo.Hash(args[0].([32]byte)))
		return e.view(method, canceled), nil
	case "encodeTransactionData":
		intent, err := marmo.IntentFromValues(args[:8])
		if err != nil {
			return e.revert(""), nil
		}
		id := e.computeID(intent, nil)
		return e.view(method, [32]byte(id)), nil
	case "encodeTransactionDataVia":
		module := marmo.Address(args[0].(common.Address))
		intent, err := marmo.IntentFromValues(args[1:9])
		if err != nil {
			return e.revert(""), nil
		}
		id := e.computeID(intent, &module)
		return e.view(method, [32]byte(id)), nil
	}
	return e.revert(""), nil
}

func (e *execution) revert(reason string) marmo.Result {
	return marmo.Result{Output: marmo.EncodeRevert(reason), GasLeft: e.meter.gas}
}

func (e *execution) outOfGas() marmo.Result {
	return marmo.Result{}
}

func (e *execution) succeed(output []byte) marmo.Result {
	return marmo.Result{Success: true, Output: output, GasLeft: e.meter.gas}
}

func (e *execution) view(method *abi.Method, value any) marmo.Result {
	if e.meter.exhausted {
		return e.outOfGas()
	}
	output, err := method.Outputs.Pack(value)
	if err != nil {
		return e.revert("")
	}
	return e.succeed(output)
}

// computeID derives the ID of an intent for the wallet in use. If a module
// is given, the ID is bound to that module.
func (e *execution) computeID(intent marmo.Intent, module *marmo.Address) marmo.Hash {
	wallet := e.params.Recipient
	e.meter.charge(hashGas(len(intent.Encode())))
	if module == nil {
		e.meter.charge(hashGas(len(wallet) + len(marmo.Hash{})))
		return marmo.ComputeID(wallet, intent)
	}
	e.meter.charge(hashGas(len(wallet) + len(module) + len(marmo.Hash{})))
	return marmo.ComputeModuleID(wallet, *module, intent)
}

func (e *execution) init(signer marmo.Address) marmo.Result {
	initialized, _ := e.storage.initialized()
	if e.meter.exhausted {
		return e.outOfGas()
	}
	if initialized {
		return e.revert(ReasonSignerAlreadyKnown)
	}
	if !e.storage.setSigner(signer) {
		return e.outOfGas()
	}
	return e.succeed(nil)
}

// relay runs the relay pipeline. All checks are performed before any state
// is modified; the relay record is committed before the target is called,
// so a re-entrant relay of the same intent is rejected.
func (l logic) relay(e *execution, intent marmo.Intent, signature []byte, viaModule bool) (marmo.Result, error) {
	var module *marmo.Address
	if viaModule {
		module = &e.params.CodeAddress
	}
	id := e.computeID(intent, module)
	if e.meter.exhausted {
		return e.outOfGas(), nil
	}

	if intent.Expiration.Cmp(timestamp(e.params.Timestamp)) < 0 {
		return e.revert(ReasonExpired), nil
	}
	if e.params.GasPrice.Cmp(intent.MaxGasPrice) > 0 {
		return e.revert(ReasonGasPriceTooHigh), nil
	}
	if relayed, _ := e.storage.isRelayed(id); relayed {
		return e.revert(ReasonAlreadyRelayed), nil
	}
	if canceled, _ := e.storage.isCanceled(id); canceled {
		return e.revert(ReasonCanceled), nil
	}

	owner, _ := e.storage.signer()
	if len(signature) > 0 {
		e.meter.charge(EcrecoverGas)
	}
	if e.meter.exhausted {
		return e.outOfGas(), nil
	}
	if !IsAuthorized(owner, e.params.Sender, id, signature) {
		return e.revert(ReasonInvalidSignature), nil
	}

	satisfied, err := e.dependenciesSatisfied(intent.Dependencies)
	if err != nil {
		return marmo.Result{}, err
	}
	if e.meter.exhausted {
		return e.outOfGas(), nil
	}
	if !satisfied {
		return e.revert(ReasonDependency), nil
	}

	if !e.storage.setRelayed(id, e.params.Sender, e.params.Number) {
		return e.outOfGas(), nil
	}

	if !e.meter.charge(CallGas) {
		return e.outOfGas(), nil
	}
	// the target has to receive at least the minimum gas limit
	available := e.meter.gas - e.meter.gas/64
	if marmo.NewValue(uint64(available)).Cmp(intent.MinGasLimit) < 0 {
		return e.revert(l.gasFloorReason), nil
	}
	result, err := e.params.Context.Call(marmo.Call, marmo.CallParameters{
		Sender:    e.params.Recipient,
		Recipient: intent.To,
		Value:     intent.Value,
		Input:     intent.Data,
		Gas:       e.meter.forward(),
	})
	if err != nil {
		return marmo.Result{}, fmt.Errorf("call of intent %v failed: %w", id, err)
	}
	e.meter.refund(result.GasLeft)

	output := result.Output
	if output == nil {
		output = []byte{}
	}
	data, err := relayedEvent.Inputs.NonIndexed().Pack(result.Success, []byte(output))
	if err != nil {
		return marmo.Result{}, err
	}
	if !e.meter.charge(logGas(2, len(data))) {
		return e.outOfGas(), nil
	}
	e.params.Context.EmitLog(marmo.Log{
		Address: e.params.Recipient,
		Topics:  []marmo.Hash{marmo.Hash(RelayedTopic), id},
		Data:    data,
	})

	log.Trace("Intent relayed",
		"wallet", e.params.Recipient,
		"id", id,
		"relayer", e.params.Sender,
		"success", result.Success,
	)

	res, err := relayMethod.Outputs.Pack(result.Success, []byte(output))
	if err != nil {
		return marmo.Result{}, err
	}
	return e.succeed(res), nil
}

// cancel marks an intent as canceled. Only the wallet itself may cancel
// intents, typically by relaying an intent calling cancel on the wallet.
func (e *execution) cancel(id marmo.Hash) marmo.Result {
	if e.params.Sender != e.params.Recipient {
		return e.revert(ReasonOnlyWalletCancels)
	}
	relayed, _ := e.storage.isRelayed(id)
	canceled, _ := e.storage.isCanceled(id)
	if e.meter.exhausted {
		return e.outOfGas()
	}
	if relayed {
		return e.revert(ReasonAlreadyRelayed)
	}
	if canceled {
		return e.revert(ReasonAlreadyCanceled)
	}
	if !e.storage.setCanceled(id) || !e.meter.charge(logGas(2, 0)) {
		return e.outOfGas()
	}
	e.params.Context.EmitLog(marmo.Log{
		Address: e.params.Recipient,
		Topics:  []marmo.Hash{marmo.Hash(CanceledTopic), id},
	})
	return e.succeed(nil)
}

func timestamp(t int64) marmo.Value {
	if t < 0 {
		return marmo.Value{}
	}
	return marmo.NewValue(uint64(t))
}
