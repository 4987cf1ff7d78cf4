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
	"math/big"

	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/panoptisDev/marmo/go/marmo"
)

const (
	TxGas            = 21_000
	TxDataNonZeroGas = 16
	TxDataZeroGas    = 4

	CreateGas            = 32_000
	createGasCostPerByte = 200
	maxCodeSize          = 24576

	MaxRecursiveDepth = 1024 // Maximum depth of call/create stack.
)

// ProcessorName is the name the processor is registered under.
const ProcessorName = "ledger"

func init() {
	marmo.RegisterProcessorFactory(ProcessorName, NewProcessor)
}

// NewProcessor creates a processor executing transactions one at a time,
// each running to completion before the next one starts.
func NewProcessor() marmo.Processor {
	return &Processor{}
}

// Processor implements the marmo.Processor interface.
type Processor struct{}

func (p *Processor) Run(
	blockParameters marmo.BlockParameters,
	transaction marmo.Transaction,
	context marmo.WorldState,
) (marmo.Receipt, error) {
	if transaction.Recipient == nil {
		return marmo.Receipt{}, fmt.Errorf("transaction without recipient")
	}

	if err := gasPriceCheck(blockParameters.BaseFee, transaction.GasPrice); err != nil {
		return marmo.Receipt{}, fmt.Errorf("failed gas price check: %w", err)
	}

	if err := nonceCheck(transaction.Nonce, context.GetNonce(transaction.Sender)); err != nil {
		return marmo.Receipt{}, fmt.Errorf("failed nonce check: %w", err)
	}

	if err := eoaCheck(transaction.Sender, context.GetCode(transaction.Sender)); err != nil {
		return marmo.Receipt{}, fmt.Errorf("failed EOA check: %w", err)
	}

	if err := gasLimitCheck(blockParameters.GasLimit, transaction.GasLimit); err != nil {
		return marmo.Receipt{}, fmt.Errorf("failed gas limit check: %w", err)
	}

	if err := balanceCheck(transaction, context.GetBalance(transaction.Sender)); err != nil {
		return marmo.Receipt{}, fmt.Errorf("failed balance check: %w", err)
	}

	setupGas := calculateSetupGas(transaction)
	if transaction.GasLimit < setupGas {
		return marmo.Receipt{}, fmt.Errorf("insufficient gas for set up: %d < %d", transaction.GasLimit, setupGas)
	}

	buyGas(transaction, context)
	context.SetNonce(transaction.Sender, context.GetNonce(transaction.Sender)+1)
	gas := transaction.GasLimit - setupGas

	runContext := runContext{
		WorldState:      context,
		blockParameters: blockParameters,
		transactionParameters: marmo.TransactionParameters{
			Origin:   transaction.Sender,
			GasPrice: transaction.GasPrice,
		},
	}

	result, err := runContext.Call(marmo.Call, callParameters(transaction, gas))
	if err != nil {
		return marmo.Receipt{GasUsed: transaction.GasLimit}, err
	}

	gasLeft := result.GasLeft
	refundGas(context, transaction.Sender, transaction.GasPrice, gasLeft)
	paymentToCoinbase(transaction.GasPrice, transaction.GasLimit-gasLeft, blockParameters, context)

	if !result.Success {
		reason, _ := marmo.RevertReason(result.Output)
		log.Debug("Transaction reverted",
			"sender", transaction.Sender,
			"recipient", *transaction.Recipient,
			"nonce", transaction.Nonce,
			"reason", reason,
		)
	}

	return marmo.Receipt{
		Success: result.Success,
		Output:  result.Output,
		GasUsed: transaction.GasLimit - gasLeft,
		Logs:    context.GetLogs(),
	}, nil
}

func gasPriceCheck(baseFee, gasPrice marmo.Value) error {
	if gasPrice.Cmp(baseFee) < 0 {
		return fmt.Errorf("gas price %v is lower than base fee %v", gasPrice, baseFee)
	}
	return nil
}

func nonceCheck(transactionNonce uint64, stateNonce uint64) error {
	if transactionNonce != stateNonce {
		return fmt.Errorf("nonce mismatch: %v != %v", transactionNonce, stateNonce)
	}
	if stateNonce+1 < stateNonce {
		return fmt.Errorf("nonce overflow")
	}
	return nil
}

// Only accept transactions from externally owned accounts (EOAs) and not from programs.
func eoaCheck(sender marmo.Address, code marmo.Code) error {
	if len(code) != 0 {
		return fmt.Errorf("sender %v is not an EOA", sender)
	}
	return nil
}

func gasLimitCheck(blockGasLimit, transactionGasLimit marmo.Gas) error {
	if transactionGasLimit < 0 {
		return fmt.Errorf("negative gas limit")
	}
	if blockGasLimit > 0 && transactionGasLimit > blockGasLimit {
		return fmt.Errorf("gas limit %d exceeds block gas limit %d", transactionGasLimit, blockGasLimit)
	}
	return nil
}

// Checks if the sender has enough balance to cover the transaction gas limit and value.
func balanceCheck(transaction marmo.Transaction, balance marmo.Value) error {
	checkValue := transaction.GasPrice.ToBig()
	checkValue.Mul(checkValue, big.NewInt(int64(transaction.GasLimit)))
	checkValue.Add(checkValue, transaction.Value.ToBig())

	capGasU256, overflow := uint256.FromBig(checkValue)
	if overflow {
		return fmt.Errorf("capGas overflow")
	}
	capGasValue := marmo.ValueFromUint256(capGasU256)

	if balance.Cmp(capGasValue) < 0 {
		return fmt.Errorf("insufficient balance: %v < %v", balance, capGasValue)
	}
	return nil
}

// Decreases the sender balance by the transaction gas limit.
// This function does not check for sufficient balance and requires the balance check to be performed in advance.
func buyGas(transaction marmo.Transaction, context marmo.WorldState) {
	gas := transaction.GasPrice.Scale(uint64(transaction.GasLimit))
	senderBalance := context.GetBalance(transaction.Sender)
	context.SetBalance(transaction.Sender, marmo.Sub(senderBalance, gas))
}

func callParameters(transaction marmo.Transaction, gas marmo.Gas) marmo.CallParameters {
	return marmo.CallParameters{
		Sender:    transaction.Sender,
		Recipient: *transaction.Recipient,
		Input:     transaction.Input,
		Value:     transaction.Value,
		Gas:       gas,
	}
}

func refundGas(context marmo.WorldState, sender marmo.Address, gasPrice marmo.Value, gasLeft marmo.Gas) {
	refundValue := gasPrice.Scale(uint64(gasLeft))
	senderBalance := context.GetBalance(sender)
	context.SetBalance(sender, marmo.Add(senderBalance, refundValue))
}

func calculateSetupGas(transaction marmo.Transaction) marmo.Gas {
	gas := marmo.Gas(TxGas)
	if len(transaction.Input) > 0 {
		nonZeroBytes := marmo.Gas(0)
		for _, inputByte := range transaction.Input {
			if inputByte != 0 {
				nonZeroBytes++
			}
		}
		zeroBytes := marmo.Gas(len(transaction.Input)) - nonZeroBytes

		gas += zeroBytes * TxDataZeroGas
		gas += nonZeroBytes * TxDataNonZeroGas
	}
	return gas
}

func paymentToCoinbase(gasPrice marmo.Value, gasUsed marmo.Gas, blockParameters marmo.BlockParameters, context marmo.WorldState) {
	fee := gasPrice.Scale(uint64(gasUsed))
	if fee.IsZero() {
		return
	}
	context.SetBalance(blockParameters.Coinbase, marmo.Add(context.GetBalance(blockParameters.Coinbase), fee))
}
