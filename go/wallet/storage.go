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
	"github.com/panoptisDev/marmo/go/marmo"
)

// Wallet storage layout. The owner lives in a fixed slot guarded by an
// initialization marker. Per intent records live in slots derived from the
// intent ID and are never removed.
var (
	signerKey      = marmo.Key(marmo.Keccak256Hash([]byte("marmo.wallet.signer")))
	initializedKey = marmo.Key(marmo.Keccak256Hash([]byte("marmo.wallet.initialized")))
)

const (
	relayedByTag = iota + 1
	relayedAtTag
	canceledTag
)

var trueWord = marmo.Word{31: 1}

// storage provides typed access to the state of a single wallet. Every
// access is metered.
type storage struct {
	ctx    marmo.RunContext
	wallet marmo.Address
	meter  *meter
}

func (s storage) read(key marmo.Key) (marmo.Word, bool) {
	if !s.meter.charge(SloadGas) {
		return marmo.Word{}, false
	}
	return s.ctx.GetStorage(s.wallet, key), true
}

func (s storage) write(key marmo.Key, value marmo.Word) bool {
	if !s.meter.charge(SstoreGas) {
		return false
	}
	s.ctx.SetStorage(s.wallet, key, value)
	return true
}

func (s storage) signer() (marmo.Address, bool) {
	word, ok := s.read(signerKey)
	return word.Address(), ok
}

func (s storage) initialized() (bool, bool) {
	word, ok := s.read(initializedKey)
	return !word.IsZero(), ok
}

func (s storage) setSigner(signer marmo.Address) bool {
	return s.write(signerKey, signer.Word()) && s.write(initializedKey, trueWord)
}

func (s storage) relayedBy(id marmo.Hash) (marmo.Address, bool) {
	word, ok := s.read(marmo.StorageKey(id, relayedByTag))
	return word.Address(), ok
}

func (s storage) relayedAt(id marmo.Hash) (marmo.Word, bool) {
	return s.read(marmo.StorageKey(id, relayedAtTag))
}

func (s storage) isRelayed(id marmo.Hash) (bool, bool) {
	relayer, ok := s.relayedBy(id)
	return relayer != marmo.Address{}, ok
}

func (s storage) setRelayed(id marmo.Hash, relayer marmo.Address, block int64) bool {
	return s.write(marmo.StorageKey(id, relayedByTag), relayer.Word()) &&
		s.write(marmo.StorageKey(id, relayedAtTag), marmo.Word(marmo.NewValue(uint64(block))))
}

func (s storage) isCanceled(id marmo.Hash) (bool, bool) {
	word, ok := s.read(marmo.StorageKey(id, canceledTag))
	return !word.IsZero(), ok
}

func (s storage) setCanceled(id marmo.Hash) bool {
	return s.write(marmo.StorageKey(id, canceledTag), trueWord)
}

// ReadSigner returns the owner of a wallet directly from the world state.
// The second result is false if the wallet has not been initialized.
func ReadSigner(state marmo.WorldState, wallet marmo.Address) (marmo.Address, bool) {
	if state.GetStorage(wallet, initializedKey).IsZero() {
		return marmo.Address{}, false
	}
	return state.GetStorage(wallet, signerKey).Address(), true
}

// ReadRelayRecord returns the relayer and the block number of a relayed
// intent directly from the world state. The relayer is the zero address if
// the intent has not been relayed.
func ReadRelayRecord(state marmo.WorldState, wallet marmo.Address, id marmo.Hash) (marmo.Address, uint64) {
	relayer := state.GetStorage(wallet, marmo.StorageKey(id, relayedByTag)).Address()
	at := marmo.Value(state.GetStorage(wallet, marmo.StorageKey(id, relayedAtTag)))
	return relayer, at.ToUint256().Uint64()
}

// ReadCanceled reports whether an intent has been canceled.
func ReadCanceled(state marmo.WorldState, wallet marmo.Address, id marmo.Hash) bool {
	return !state.GetStorage(wallet, marmo.StorageKey(id, canceledTag)).IsZero()
}
