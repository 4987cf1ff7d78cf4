// Copyright (c) 2025 Pano Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at panoptisDev.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package factory implements the program deploying wallets at addresses
// derived from their owners, so that wallets can be funded and used before
// they exist.
package factory

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/panoptisDev/marmo/go/marmo"
	"github.com/panoptisDev/marmo/go/wallet"
)

// Program is the name of the factory program.
const Program = "marmo.factory"

// Gas costs of factory operations, in addition to the costs of the
// deployment and the initialization of a wallet.
const (
	RevealGas  = 2_000
	MarmoOfGas = 200
	LogGas     = 375 + 2*375 + 8*32
)

const factoryABIJSON = `[
	{"type":"function","name":"reveal","stateMutability":"nonpayable",
	 "inputs":[{"name":"_signer","type":"address"}],
	 "outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"marmoOf","stateMutability":"view",
	 "inputs":[{"name":"_signer","type":"address"}],
	 "outputs":[{"name":"","type":"address"}]},
	{"type":"event","name":"Revealed","anonymous":false,
	 "inputs":[{"name":"_signer","type":"address","indexed":true},
	           {"name":"_wallet","type":"address","indexed":false}]}
]`

// ABI is the interface of the factory program.
var ABI = func() abi.ABI {
	res, err := abi.JSON(strings.NewReader(factoryABIJSON))
	if err != nil {
		panic(fmt.Sprintf("invalid factory ABI: %v", err))
	}
	return res
}()

var revealedEvent = ABI.Events["Revealed"]

// RevealedTopic identifies the event emitted for each revealed wallet.
var RevealedTopic = revealedEvent.ID

func init() {
	marmo.RegisterProgram(Program, factory{})
}

// NewFactoryCode creates the code of a factory deploying wallets that use
// the given default logic module.
func NewFactoryCode(defaultLogic marmo.Address) marmo.Code {
	return marmo.NewAddressProgramCode(Program, defaultLogic)
}

// PredictWallet computes the address the given factory deploys the wallet of
// an owner to. The result is the same before and after the wallet has been
// revealed.
func PredictWallet(factory, defaultLogic, owner marmo.Address) marmo.Address {
	codeHash := crypto.Keccak256(wallet.NewWalletCode(defaultLogic))
	return marmo.Address(crypto.CreateAddress2(
		common.Address(factory),
		common.Hash(salt(owner)),
		codeHash,
	))
}

func salt(owner marmo.Address) marmo.Hash {
	return marmo.Hash(owner.Word())
}

// PackReveal encodes a call deploying the wallet of the given owner.
func PackReveal(owner marmo.Address) []byte {
	return mustPack("reveal", common.Address(owner))
}

// PackMarmoOf encodes a query for the wallet address of the given owner.
func PackMarmoOf(owner marmo.Address) []byte {
	return mustPack("marmoOf", common.Address(owner))
}

// UnpackAddress decodes the output of reveal and marmoOf.
func UnpackAddress(output []byte) (marmo.Address, error) {
	values, err := ABI.Methods["marmoOf"].Outputs.Unpack(output)
	if err != nil {
		return marmo.Address{}, err
	}
	return marmo.Address(values[0].(common.Address)), nil
}

// ParseRevealed decodes a Revealed event into the owner and the address of
// the new wallet.
func ParseRevealed(log marmo.Log) (owner marmo.Address, walletAddress marmo.Address, ok bool) {
	if len(log.Topics) != 2 || log.Topics[0] != marmo.Hash(RevealedTopic) {
		return marmo.Address{}, marmo.Address{}, false
	}
	values, err := revealedEvent.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return marmo.Address{}, marmo.Address{}, false
	}
	return marmo.Word(log.Topics[1]).Address(), marmo.Address(values[0].(common.Address)), true
}

func mustPack(method string, args ...any) []byte {
	res, err := ABI.Pack(method, args...)
	if err != nil {
		panic(fmt.Sprintf("failed to encode %s call: %v", method, err))
	}
	return res
}

type factory struct{}

func (factory) Run(params marmo.Parameters) (marmo.Result, error) {
	failed := marmo.Result{GasLeft: params.Gas}
	if len(params.Input) < 4 {
		return failed, nil
	}
	method, err := ABI.MethodById(params.Input[:4])
	if err != nil {
		return failed, nil
	}
	args, err := method.Inputs.Unpack(params.Input[4:])
	if err != nil {
		return failed, nil
	}
	_, immutables, _ := marmo.ParseProgramCode(params.Code)
	defaultLogic, ok := marmo.ParseAddressImmutables(immutables)
	if !ok {
		return failed, nil
	}
	owner := marmo.Address(args[0].(common.Address))

	switch method.Name {
	case "marmoOf":
		if params.Gas < MarmoOfGas {
			return marmo.Result{}, nil
		}
		output, err := method.Outputs.Pack(common.Address(PredictWallet(params.Recipient, defaultLogic, owner)))
		if err != nil {
			return marmo.Result{}, err
		}
		return marmo.Result{Success: true, Output: output, GasLeft: params.Gas - MarmoOfGas}, nil
	case "reveal":
		if params.Static {
			return failed, nil
		}
		return reveal(params, defaultLogic, owner)
	}
	return failed, nil
}

// reveal deploys and initializes the wallet of an owner. Revealing the same
// owner twice fails, since the address of the wallet is already taken.
func reveal(params marmo.Parameters, defaultLogic, owner marmo.Address) (marmo.Result, error) {
	gas := params.Gas
	if gas < RevealGas {
		return marmo.Result{}, nil
	}
	gas -= RevealGas

	forwarded := gas - gas/64
	created, err := params.Context.Call(marmo.Create2, marmo.CallParameters{
		Sender: params.Recipient,
		Input:  marmo.Data(wallet.NewWalletCode(defaultLogic)),
		Gas:    forwarded,
		Salt:   salt(owner),
	})
	if err != nil {
		return marmo.Result{}, err
	}
	gas = gas - forwarded + created.GasLeft
	if !created.Success {
		return marmo.Result{GasLeft: gas}, nil
	}

	forwarded = gas - gas/64
	initialized, err := params.Context.Call(marmo.Call, marmo.CallParameters{
		Sender:    params.Recipient,
		Recipient: created.CreatedAddress,
		Input:     wallet.PackInit(owner),
		Gas:       forwarded,
	})
	if err != nil {
		return marmo.Result{}, err
	}
	gas = gas - forwarded + initialized.GasLeft
	if !initialized.Success {
		return marmo.Result{Output: initialized.Output, GasLeft: gas}, nil
	}

	data, err := revealedEvent.Inputs.NonIndexed().Pack(common.Address(created.CreatedAddress))
	if err != nil {
		return marmo.Result{}, err
	}
	if gas < LogGas {
		return marmo.Result{}, nil
	}
	gas -= LogGas
	params.Context.EmitLog(marmo.Log{
		Address: params.Recipient,
		Topics:  []marmo.Hash{marmo.Hash(RevealedTopic), marmo.Hash(owner.Word())},
		Data:    data,
	})

	log.Debug("Wallet revealed", "factory", params.Recipient, "owner", owner, "wallet", created.CreatedAddress)

	output, err := ABI.Methods["reveal"].Outputs.Pack(common.Address(created.CreatedAddress))
	if err != nil {
		return marmo.Result{}, err
	}
	return marmo.Result{Success: true, Output: output, GasLeft: gas}, nil
}
