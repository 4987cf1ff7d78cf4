// Copyright (c) 2025 Pano Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at panoptisDev.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package simulation provides a single node ledger running transactions one
// at a time on an in-memory world state. It is used by tests and by the
// command line tool to exercise wallets end to end.
package simulation

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/panoptisDev/marmo/go/marmo"
	"github.com/panoptisDev/marmo/go/processor/ledger"
	"github.com/panoptisDev/marmo/go/state"
)

// Config defines the block parameters of a simulated ledger.
type Config struct {
	GenesisTime   int64 // timestamp of the first block
	BlockInterval int64 // seconds between consecutive blocks
	BaseFee       marmo.Value
	GasLimit      marmo.Gas // block gas limit
	Coinbase      marmo.Address
	Processor     string // name of the registered processor running transactions
}

// DefaultConfig returns the configuration used if nothing else is specified.
func DefaultConfig() Config {
	return Config{
		GenesisTime:   1_700_000_000,
		BlockInterval: 1,
		BaseFee:       marmo.NewValue(1),
		GasLimit:      30_000_000,
		Coinbase:      marmo.NewAddress(0xc0ffee),
		Processor:     ledger.ProcessorName,
	}
}

// ViewGasLimit is the gas available to calls performed through View.
const ViewGasLimit = 10_000_000

// Ledger is a simulated ledger producing one block per transaction.
type Ledger struct {
	mu        sync.Mutex
	config    Config
	state     *state.State
	processor marmo.Processor
	block     marmo.BlockParameters
}

// New creates a ledger at its genesis block, running transactions with the
// processor registered under the configured name.
func New(config Config) (*Ledger, error) {
	processor, err := marmo.NewProcessor(config.Processor)
	if err != nil {
		return nil, err
	}
	return &Ledger{
		config:    config,
		state:     state.New(),
		processor: processor,
		block: marmo.BlockParameters{
			Number:    1,
			Timestamp: config.GenesisTime,
			BaseFee:   config.BaseFee,
			Coinbase:  config.Coinbase,
			GasLimit:  config.GasLimit,
		},
	}, nil
}

// Block returns the parameters of the block the next transaction is part of.
func (l *Ledger) Block() marmo.BlockParameters {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.block
}

// Advance moves the clock of the ledger forward by the given number of
// seconds without producing a block.
func (l *Ledger) Advance(seconds int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.block.Timestamp += seconds
}

// Fund adds the given value to the balance of an account.
func (l *Ledger) Fund(address marmo.Address, value marmo.Value) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.SetBalance(address, marmo.Add(l.state.GetBalance(address), value))
}

// Deploy installs code at the given address, as part of the genesis state.
// Deploying to the address of a precompiled contract panics, since the code
// would never run.
func (l *Ledger) Deploy(address marmo.Address, code marmo.Code) {
	if ledger.IsPrecompiled(address) {
		panic(fmt.Sprintf("cannot deploy code to precompiled contract %v", address))
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.CreateAccount(address)
	l.state.SetNonce(address, 1)
	l.state.SetCode(address, code)
}

func (l *Ledger) GetBalance(address marmo.Address) marmo.Value {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.GetBalance(address)
}

func (l *Ledger) GetNonce(address marmo.Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.GetNonce(address)
}

func (l *Ledger) GetCode(address marmo.Address) marmo.Code {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.GetCode(address)
}

func (l *Ledger) GetStorage(address marmo.Address, key marmo.Key) marmo.Word {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.GetStorage(address, key)
}

// State grants direct read access to the world state. The result must not
// be used concurrently with transactions.
func (l *Ledger) State() marmo.WorldState {
	return l.state
}

// Dump lists all accounts of the ledger.
func (l *Ledger) Dump() []state.AccountDump {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Dump()
}

// Send processes a transaction in a block of its own. Transactions rejected
// by the processor leave the ledger unchanged and produce no block.
func (l *Ledger) Send(ctx context.Context, transaction marmo.Transaction) (marmo.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return marmo.Receipt{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.state.BeginTransaction()
	snapshot := l.state.CreateSnapshot()
	receipt, err := l.processor.Run(l.block, transaction, l.state)
	if err != nil {
		l.state.RestoreSnapshot(snapshot)
		return marmo.Receipt{}, fmt.Errorf("transaction rejected: %w", err)
	}

	log.Debug("Transaction processed",
		"block", l.block.Number,
		"sender", transaction.Sender,
		"success", receipt.Success,
		"gasUsed", receipt.GasUsed,
	)

	l.block.Number++
	l.block.Timestamp += l.config.BlockInterval
	return receipt, nil
}

// View performs a call without any lasting effect on the ledger and returns
// its receipt. The call is executed in the context of the next block.
func (l *Ledger) View(from, to marmo.Address, input []byte) (marmo.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	block := l.block
	block.BaseFee = marmo.Value{}
	block.GasLimit = 0

	l.state.BeginTransaction()
	snapshot := l.state.CreateSnapshot()
	defer l.state.RestoreSnapshot(snapshot)

	return l.processor.Run(block, marmo.Transaction{
		Sender:    from,
		Recipient: &to,
		Nonce:     l.state.GetNonce(from),
		Input:     input,
		GasLimit:  ViewGasLimit,
	}, l.state)
}
