// Copyright (c) 2025 Pano Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at panoptisDev.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package marmo

// Processor is an interface for a component capable of executing transactions.
// Implementations execute individual transactions to progress the world state
// of a ledger. In particular, they handle the charging of gas fees, the checking
// of nonces, the execution of transactions using (potentially) recursive calls of
// programs, and the deployment of new programs.
type Processor interface {
	// Run executes the transaction provided by the parameters in the specified context.
	Run(BlockParameters, Transaction, WorldState) (Receipt, error)
}

// BlockParameters summarizes the properties of the block a transaction is part of.
type BlockParameters struct {
	Number    int64   // the block number, starting at 1
	Timestamp int64   // seconds since the unix epoch
	BaseFee   Value   // the minimum price per gas unit accepted in the block
	Coinbase  Address // the account receiving the fees of the block
	GasLimit  Gas     // the maximum gas a single transaction may reserve
}

// Transaction summarizes the parameters of a transaction to be executed on a ledger.
type Transaction struct {
	Sender    Address  // the sender of the transaction, paying for its execution
	Recipient *Address // the receiver of a transaction
	Nonce     uint64   // the nonce of the sender account, used to prevent replay attacks
	Input     Data     // the input data for the transaction
	Value     Value    // the amount of network currency to transfer to the recipient
	GasLimit  Gas      // the maximum amount of gas that can be used by the transaction
	GasPrice  Value    // the amount of network currency the sender pays for one gas unit
}

// Receipt summarizes the result of the execution of a transaction.
type Receipt struct {
	Success         bool     // false if the execution ended in a revert, true otherwise
	Output          Data     // the output produced by the transaction, the revert payload on failure
	ContractAddress *Address // filled if a program was deployed by this transaction
	GasUsed         Gas      // gas consumed by the transaction
	Logs            []Log    // logs produced by the transaction
}

// Log is an event emitted by a program.
type Log struct {
	Address Address
	Topics  []Hash
	Data    Data
}
