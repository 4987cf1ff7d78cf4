// Copyright (c) 2025 Pano Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at panoptisDev.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package state

import (
	"bytes"
	"slices"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/panoptisDev/marmo/go/marmo"
	"golang.org/x/exp/maps"
)

var emptyCodeHash = marmo.Hash(crypto.Keccak256(nil))

// State is an in-memory implementation of marmo.WorldState. All modifications
// are journaled, restoring a snapshot undoes every modification performed
// after the snapshot was taken.
type State struct {
	accounts map[marmo.Address]*account
	logs     []marmo.Log
	journal  []func()
}

type account struct {
	balance  marmo.Value
	nonce    uint64
	code     marmo.Code
	codeHash marmo.Hash
	storage  map[marmo.Key]marmo.Word
}

func newAccount() *account {
	return &account{
		codeHash: emptyCodeHash,
		storage:  map[marmo.Key]marmo.Word{},
	}
}

func New() *State {
	return &State{accounts: map[marmo.Address]*account{}}
}

// BeginTransaction discards the journal and the logs collected so far. It is
// to be called before each transaction; snapshots taken earlier become invalid.
func (s *State) BeginTransaction() {
	s.journal = nil
	s.logs = nil
}

func (s *State) AccountExists(address marmo.Address) bool {
	_, found := s.accounts[address]
	return found
}

func (s *State) CreateAccount(address marmo.Address) {
	s.getOrCreate(address)
}

func (s *State) getOrCreate(address marmo.Address) *account {
	if acc, found := s.accounts[address]; found {
		return acc
	}
	acc := newAccount()
	s.accounts[address] = acc
	s.journal = append(s.journal, func() { delete(s.accounts, address) })
	return acc
}

func (s *State) GetBalance(address marmo.Address) marmo.Value {
	if acc, found := s.accounts[address]; found {
		return acc.balance
	}
	return marmo.Value{}
}

func (s *State) SetBalance(address marmo.Address, value marmo.Value) {
	acc := s.getOrCreate(address)
	previous := acc.balance
	acc.balance = value
	s.journal = append(s.journal, func() { acc.balance = previous })
}

func (s *State) GetNonce(address marmo.Address) uint64 {
	if acc, found := s.accounts[address]; found {
		return acc.nonce
	}
	return 0
}

func (s *State) SetNonce(address marmo.Address, nonce uint64) {
	acc := s.getOrCreate(address)
	previous := acc.nonce
	acc.nonce = nonce
	s.journal = append(s.journal, func() { acc.nonce = previous })
}

func (s *State) GetCode(address marmo.Address) marmo.Code {
	if acc, found := s.accounts[address]; found {
		return bytes.Clone(acc.code)
	}
	return nil
}

// GetCodeHash returns the hash of the code of an account, or the zero hash if
// the account does not exist.
func (s *State) GetCodeHash(address marmo.Address) marmo.Hash {
	if acc, found := s.accounts[address]; found {
		return acc.codeHash
	}
	return marmo.Hash{}
}

func (s *State) SetCode(address marmo.Address, code marmo.Code) {
	acc := s.getOrCreate(address)
	previousCode, previousHash := acc.code, acc.codeHash
	acc.code = bytes.Clone(code)
	acc.codeHash = marmo.Hash(crypto.Keccak256(code))
	s.journal = append(s.journal, func() {
		acc.code = previousCode
		acc.codeHash = previousHash
	})
}

func (s *State) GetStorage(address marmo.Address, key marmo.Key) marmo.Word {
	if acc, found := s.accounts[address]; found {
		return acc.storage[key]
	}
	return marmo.Word{}
}

func (s *State) SetStorage(address marmo.Address, key marmo.Key, value marmo.Word) {
	acc := s.getOrCreate(address)
	previous, existed := acc.storage[key]
	if value.IsZero() {
		delete(acc.storage, key)
	} else {
		acc.storage[key] = value
	}
	s.journal = append(s.journal, func() {
		if existed {
			acc.storage[key] = previous
		} else {
			delete(acc.storage, key)
		}
	})
}

func (s *State) EmitLog(log marmo.Log) {
	s.logs = append(s.logs, marmo.Log{
		Address: log.Address,
		Topics:  slices.Clone(log.Topics),
		Data:    bytes.Clone(log.Data),
	})
	s.journal = append(s.journal, func() { s.logs = s.logs[:len(s.logs)-1] })
}

// GetLogs returns the logs emitted since the start of the current transaction.
func (s *State) GetLogs() []marmo.Log {
	return slices.Clone(s.logs)
}

func (s *State) CreateSnapshot() marmo.Snapshot {
	return marmo.Snapshot(len(s.journal))
}

// RestoreSnapshot reverts all modifications performed after the given
// snapshot was created. Invalid snapshots are ignored.
func (s *State) RestoreSnapshot(snapshot marmo.Snapshot) {
	if snapshot < 0 || int(snapshot) > len(s.journal) {
		return
	}
	for i := len(s.journal) - 1; i >= int(snapshot); i-- {
		s.journal[i]()
	}
	s.journal = s.journal[:snapshot]
}

// AccountDump summarizes an account for inspection.
type AccountDump struct {
	Address marmo.Address
	Balance marmo.Value
	Nonce   uint64
	Code    marmo.Code
	Storage map[marmo.Key]marmo.Word
}

// Dump lists all accounts ordered by address.
func (s *State) Dump() []AccountDump {
	addresses := maps.Keys(s.accounts)
	slices.SortFunc(addresses, func(a, b marmo.Address) int {
		return bytes.Compare(a[:], b[:])
	})
	res := make([]AccountDump, 0, len(addresses))
	for _, address := range addresses {
		acc := s.accounts[address]
		res = append(res, AccountDump{
			Address: address,
			Balance: acc.balance,
			Nonce:   acc.nonce,
			Code:    bytes.Clone(acc.code),
			Storage: maps.Clone(acc.storage),
		})
	}
	return res
}
