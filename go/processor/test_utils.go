// Copyright (c) 2025 Pano Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at panoptisDev.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package test_utils provides stand-in programs used as call targets in
// tests of the ledger, the wallet and the factory.
package test_utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/panoptisDev/marmo/go/marmo"
)

const (
	SinkProgram     = "test.sink"
	ReverterProgram = "test.reverter"
	BurnerProgram   = "test.burner"
	RecorderProgram = "test.recorder"
	FlagProgram     = "test.flag"
	TokenProgram    = "test.token"
	ForwardProgram  = "test.forward"

	// RecorderGas is the gas consumed by a single invocation of the recorder.
	RecorderGas = 25_000
	// TokenGas is the gas consumed by a single token operation.
	TokenGas = 10_000
)

func init() {
	marmo.RegisterProgram(SinkProgram, sink{})
	marmo.RegisterProgram(ReverterProgram, reverter{})
	marmo.RegisterProgram(BurnerProgram, burner{})
	marmo.RegisterProgram(RecorderProgram, recorder{})
	marmo.RegisterProgram(FlagProgram, flag{})
	marmo.RegisterProgram(TokenProgram, token{})
	marmo.RegisterProgram(ForwardProgram, forward{})
}

// SinkCode accepts every call and value.
func SinkCode() marmo.Code {
	return marmo.NewProgramCode(SinkProgram, nil)
}

// ReverterCode fails every call with the given revert reason.
func ReverterCode(reason string) marmo.Code {
	return marmo.NewProgramCode(ReverterProgram, []byte(reason))
}

// BurnerCode consumes all gas it is given and fails.
func BurnerCode() marmo.Code {
	return marmo.NewProgramCode(BurnerProgram, nil)
}

// RecorderCode remembers the sender, the value and the input of the last
// call, and returns the input as its output.
func RecorderCode() marmo.Code {
	return marmo.NewProgramCode(RecorderProgram, nil)
}

// FlagCode returns the word stored in the flag for calls without input, and
// stores the given word for calls with a 32 byte input.
func FlagCode() marmo.Code {
	return marmo.NewProgramCode(FlagProgram, nil)
}

// TokenCode is a minimal fungible token with the given minter.
func TokenCode(minter marmo.Address) marmo.Code {
	return marmo.NewAddressProgramCode(TokenProgram, minter)
}

// ForwardCode passes every call on to the given target, using all available
// gas, and reports the result of the nested call as its own.
func ForwardCode(target marmo.Address) marmo.Code {
	return marmo.NewAddressProgramCode(ForwardProgram, target)
}

type sink struct{}

func (sink) Run(params marmo.Parameters) (marmo.Result, error) {
	return marmo.Result{Success: true, GasLeft: params.Gas}, nil
}

type reverter struct{}

func (reverter) Run(params marmo.Parameters) (marmo.Result, error) {
	_, reason, _ := marmo.ParseProgramCode(params.Code)
	return marmo.Result{
		Output:  marmo.EncodeRevert(string(reason)),
		GasLeft: params.Gas,
	}, nil
}

type burner struct{}

func (burner) Run(marmo.Parameters) (marmo.Result, error) {
	return marmo.Result{}, nil
}

// Storage slots used by the recorder.
var (
	RecordedSenderKey = marmo.Key{1}
	RecordedValueKey  = marmo.Key{2}
	RecordedInputKey  = marmo.Key{3}
	RecordedCountKey  = marmo.Key{4}
)

type recorder struct{}

func (recorder) Run(params marmo.Parameters) (marmo.Result, error) {
	if params.Gas < RecorderGas {
		return marmo.Result{}, nil
	}
	ctx := params.Context
	counter := ctx.GetStorage(params.Recipient, RecordedCountKey)
	count := new(big.Int).SetBytes(counter[:])
	count.Add(count, big.NewInt(1))

	ctx.SetStorage(params.Recipient, RecordedSenderKey, params.Sender.Word())
	ctx.SetStorage(params.Recipient, RecordedValueKey, marmo.Word(params.Value))
	ctx.SetStorage(params.Recipient, RecordedInputKey, marmo.Word(marmo.Keccak256Hash(params.Input)))
	ctx.SetStorage(params.Recipient, RecordedCountKey, marmo.Word(common.BigToHash(count)))
	return marmo.Result{
		Success: true,
		Output:  append(marmo.Data{}, params.Input...),
		GasLeft: params.Gas - RecorderGas,
	}, nil
}

// FlagKey is the storage slot holding the word of a flag program.
var FlagKey = marmo.Key{}

type flag struct{}

func (flag) Run(params marmo.Parameters) (marmo.Result, error) {
	ctx := params.Context
	switch len(params.Input) {
	case 0:
		word := ctx.GetStorage(params.Recipient, FlagKey)
		return marmo.Result{Success: true, Output: word[:], GasLeft: params.Gas}, nil
	case 32:
		ctx.SetStorage(params.Recipient, FlagKey, marmo.Word(params.Input))
		return marmo.Result{Success: true, GasLeft: params.Gas}, nil
	}
	return marmo.Result{GasLeft: params.Gas}, nil
}

const tokenABIJSON = `[
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"transfer","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"mint","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[]},
	{"type":"event","name":"Transfer","anonymous":false,
	 "inputs":[{"name":"from","type":"address","indexed":true},
	           {"name":"to","type":"address","indexed":true},
	           {"name":"amount","type":"uint256","indexed":false}]}
]`

// TokenABI describes the interface of the token program.
var TokenABI = func() abi.ABI {
	res, err := abi.JSON(strings.NewReader(tokenABIJSON))
	if err != nil {
		panic(fmt.Sprintf("invalid token ABI: %v", err))
	}
	return res
}()

// TokenBalanceKey is the storage slot of the token balance of an owner.
func TokenBalanceKey(owner marmo.Address) marmo.Key {
	return marmo.Key(marmo.Keccak256Hash(owner[:]))
}

type token struct{}

func (token) Run(params marmo.Parameters) (marmo.Result, error) {
	failed := marmo.Result{GasLeft: params.Gas}
	if len(params.Input) < 4 || params.Gas < TokenGas {
		return failed, nil
	}
	method, err := TokenABI.MethodById(params.Input[:4])
	if err != nil {
		return failed, nil
	}
	args, err := method.Inputs.Unpack(params.Input[4:])
	if err != nil {
		return failed, nil
	}

	ctx := params.Context
	balanceOf := func(owner marmo.Address) *big.Int {
		word := ctx.GetStorage(params.Recipient, TokenBalanceKey(owner))
		return new(big.Int).SetBytes(word[:])
	}
	setBalance := func(owner marmo.Address, amount *big.Int) {
		ctx.SetStorage(params.Recipient, TokenBalanceKey(owner), marmo.Word(common.BigToHash(amount)))
	}

	var output []byte
	switch method.Name {
	case "balanceOf":
		owner := marmo.Address(args[0].(common.Address))
		output, err = method.Outputs.Pack(balanceOf(owner))
	case "transfer":
		to := marmo.Address(args[0].(common.Address))
		amount := args[1].(*big.Int)
		from := balanceOf(params.Sender)
		if from.Cmp(amount) < 0 {
			return marmo.Result{
				Output:  marmo.EncodeRevert("insufficient balance"),
				GasLeft: params.Gas - TokenGas,
			}, nil
		}
		setBalance(params.Sender, new(big.Int).Sub(from, amount))
		setBalance(to, new(big.Int).Add(balanceOf(to), amount))
		event := TokenABI.Events["Transfer"]
		data, _ := event.Inputs.NonIndexed().Pack(amount)
		ctx.EmitLog(marmo.Log{
			Address: params.Recipient,
			Topics: []marmo.Hash{
				marmo.Hash(event.ID),
				marmo.Hash(params.Sender.Word()),
				marmo.Hash(to.Word()),
			},
			Data: data,
		})
		output, err = method.Outputs.Pack(true)
	case "mint":
		_, immutables, _ := marmo.ParseProgramCode(params.Code)
		minter, _ := marmo.ParseAddressImmutables(immutables)
		if params.Sender != minter {
			return marmo.Result{Output: marmo.EncodeRevert("not the minter"), GasLeft: params.Gas - TokenGas}, nil
		}
		to := marmo.Address(args[0].(common.Address))
		setBalance(to, new(big.Int).Add(balanceOf(to), args[1].(*big.Int)))
	}
	if err != nil {
		return marmo.Result{}, err
	}
	return marmo.Result{Success: true, Output: output, GasLeft: params.Gas - TokenGas}, nil
}

type forward struct{}

func (forward) Run(params marmo.Parameters) (marmo.Result, error) {
	_, immutables, _ := marmo.ParseProgramCode(params.Code)
	target, ok := marmo.ParseAddressImmutables(immutables)
	if !ok {
		return marmo.Result{GasLeft: params.Gas}, nil
	}
	result, err := params.Context.Call(marmo.Call, marmo.CallParameters{
		Sender:    params.Recipient,
		Recipient: target,
		Input:     params.Input,
		Gas:       params.Gas,
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
