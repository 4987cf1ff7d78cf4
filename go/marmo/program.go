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

//go:generate mockgen -source program.go -destination program_mock.go -package marmo

import "fmt"

// Program is a natively implemented contract. Programs are stateless, all
// state they need is accessed through the run context passed as part of the
// parameters. Deployed code refers to a program by its registered name, see
// NewProgramCode.
type Program interface {
	// Run executes the program with the given parameters. Failures of the
	// executed code, e.g. reverts or running out of gas, are reported through
	// an unsuccessful result. A non-nil error is reserved for unrecoverable
	// issues of the execution environment and aborts the transaction.
	Run(Parameters) (Result, error)
}

// Parameters summarizes the inputs of a single program invocation.
type Parameters struct {
	BlockParameters
	TransactionParameters
	Context     RunContext
	Static      bool    // true if state modifications are not allowed
	Depth       int     // the call depth, 0 for the top-level call
	Gas         Gas     // the gas budget of the call
	Recipient   Address // the account whose storage and balance are in use
	Sender      Address // the caller, preserved by delegate calls
	CodeAddress Address // the account the executed code was loaded from
	Input       Data
	Value       Value
	Code        Code
}

// TransactionParameters are the properties of the transaction a call is part of.
type TransactionParameters struct {
	Origin   Address
	GasPrice Value
}

// Result is the outcome of a program invocation.
type Result struct {
	Success bool
	Output  Data
	GasLeft Gas
}

// CallKind distinguishes the ways a program can call into another account.
type CallKind int

const (
	Call CallKind = iota
	StaticCall
	DelegateCall
	Create2
)

func (k CallKind) String() string {
	switch k {
	case Call:
		return "call"
	case StaticCall:
		return "static_call"
	case DelegateCall:
		return "delegate_call"
	case Create2:
		return "create2"
	}
	return fmt.Sprintf("unknown_call_kind(%d)", int(k))
}

// CallParameters are the parameters of a nested call issued by a program.
type CallParameters struct {
	Sender      Address
	Recipient   Address // ignored for Create2
	Value       Value
	Input       Data // the code to be deployed for Create2
	Gas         Gas
	Salt        Hash    // only used for Create2
	CodeAddress Address // only used for DelegateCall
}

// CallResult is the outcome of a nested call.
type CallResult struct {
	Output         Data
	GasLeft        Gas
	Success        bool
	CreatedAddress Address // only set for successful Create2 calls
}

// WorldState provides access to the accounts of a ledger. Modifications are
// journaled and can be reverted by restoring an earlier snapshot.
type WorldState interface {
	AccountExists(Address) bool
	CreateAccount(Address)

	GetBalance(Address) Value
	SetBalance(Address, Value)

	GetNonce(Address) uint64
	SetNonce(Address, uint64)

	GetCode(Address) Code
	GetCodeHash(Address) Hash
	SetCode(Address, Code)

	GetStorage(Address, Key) Word
	SetStorage(Address, Key, Word)

	EmitLog(Log)
	GetLogs() []Log

	CreateSnapshot() Snapshot
	RestoreSnapshot(Snapshot)
}

// RunContext is the interface a program uses to interact with the ledger.
type RunContext interface {
	WorldState

	// Call performs a nested call. The call is executed atomically, if it
	// is not successful all its effects on the world state are reverted.
	Call(kind CallKind, parameters CallParameters) (CallResult, error)
}
