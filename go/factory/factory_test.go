// Copyright (c) 2025 Pano Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at panoptisDev.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package factory

import (
	"context"
	"testing"

	"github.com/panoptisDev/marmo/go/marmo"
	"github.com/panoptisDev/marmo/go/simulation"
	"github.com/panoptisDev/marmo/go/wallet"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var (
	testLogic    = marmo.NewAddress(0x100)
	testFactory  = marmo.NewAddress(0x200)
	testFactory2 = marmo.NewAddress(0x201)
	testSender   = marmo.NewAddress(0x300)
)

func newTestLedger(t *testing.T) *simulation.Ledger {
	t.Helper()
	l, err := simulation.New(simulation.DefaultConfig())
	require.NoError(t, err)
	l.Deploy(testLogic, wallet.NewLogicCode(wallet.LogicV1Program))
	l.Deploy(testFactory, NewFactoryCode(testLogic))
	l.Deploy(testFactory2, NewFactoryCode(testLogic))
	l.Fund(testSender, marmo.NewValue(1_000_000_000_000))
	return l
}

func send(t *testing.T, l *simulation.Ledger, to marmo.Address, input []byte) marmo.Receipt {
	t.Helper()
	receipt, err := l.Send(context.Background(), marmo.Transaction{
		Sender:    testSender,
		Recipient: &to,
		Nonce:     l.GetNonce(testSender),
		Input:     input,
		GasLimit:  1_000_000,
		GasPrice:  marmo.NewValue(1),
	})
	require.NoError(t, err)
	return receipt
}

func marmoOf(t *testing.T, l *simulation.Ledger, factory, owner marmo.Address) marmo.Address {
	t.Helper()
	receipt, err := l.View(testSender, factory, PackMarmoOf(owner))
	require.NoError(t, err)
	require.True(t, receipt.Success)
	address, err := UnpackAddress(receipt.Output)
	require.NoError(t, err)
	return address
}

func TestFactory_RevealDeploysWalletAtPredictedAddress(t *testing.T) {
	l := newTestLedger(t)
	owner := marmo.NewAddress(0xabc)

	predicted := PredictWallet(testFactory, testLogic, owner)
	require.Equal(t, predicted, marmoOf(t, l, testFactory, owner))
	require.Empty(t, l.GetCode(predicted))

	receipt := send(t, l, testFactory, PackReveal(owner))
	require.True(t, receipt.Success)

	revealed, err := UnpackAddress(receipt.Output)
	require.NoError(t, err)
	require.Equal(t, predicted, revealed)
	require.Equal(t, predicted, marmoOf(t, l, testFactory, owner))
	require.Equal(t, wallet.NewWalletCode(testLogic), l.GetCode(predicted))

	signer, ok := wallet.ReadSigner(l.State(), predicted)
	require.True(t, ok)
	require.Equal(t, owner, signer)

	var events int
	for _, log := range receipt.Logs {
		if eventOwner, eventWallet, ok := ParseRevealed(log); ok {
			events++
			require.Equal(t, owner, eventOwner)
			require.Equal(t, predicted, eventWallet)
		}
	}
	require.Equal(t, 1, events)
}

func TestFactory_SecondRevealFailsWithoutReason(t *testing.T) {
	l := newTestLedger(t)
	owner := marmo.NewAddress(0xabc)
	require.True(t, send(t, l, testFactory, PackReveal(owner)).Success)

	receipt := send(t, l, testFactory, PackReveal(owner))
	require.False(t, receipt.Success)
	require.Empty(t, receipt.Output)
	require.Empty(t, receipt.Logs)

	signer, _ := wallet.ReadSigner(l.State(), PredictWallet(testFactory, testLogic, owner))
	require.Equal(t, owner, signer)
}

func TestFactory_FactoriesAreIndependentNamespaces(t *testing.T) {
	l := newTestLedger(t)
	owner := marmo.NewAddress(0xabc)

	first := PredictWallet(testFactory, testLogic, owner)
	second := PredictWallet(testFactory2, testLogic, owner)
	require.NotEqual(t, first, second)

	require.True(t, send(t, l, testFactory, PackReveal(owner)).Success)
	receipt := send(t, l, testFactory2, PackReveal(owner))
	require.True(t, receipt.Success)

	revealed, err := UnpackAddress(receipt.Output)
	require.NoError(t, err)
	require.Equal(t, second, revealed)
}

func TestFactory_PredictionDependsOnAllInputs(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		draw := func(label string) marmo.Address {
			return marmo.Address(rapid.SliceOfN(rapid.Byte(), 20, 20).Draw(t, label))
		}
		factory, logic, owner, other := draw("factory"), draw("logic"), draw("owner"), draw("other")
		predicted := PredictWallet(factory, logic, owner)
		if predicted != PredictWallet(factory, logic, owner) {
			t.Fatalf("prediction is not deterministic")
		}
		if other != owner && predicted == PredictWallet(factory, logic, other) {
			t.Fatalf("different owners share a wallet")
		}
		if other != factory && predicted == PredictWallet(other, logic, owner) {
			t.Fatalf("different factories share a wallet")
		}
		if other != logic && predicted == PredictWallet(factory, other, owner) {
			t.Fatalf("different default logic shares a wallet")
		}
	})
}

func TestFactory_RevealedWalletCanBeFundedInAdvance(t *testing.T) {
	l := newTestLedger(t)
	owner := marmo.NewAddress(0xabc)
	predicted := PredictWallet(testFactory, testLogic, owner)
	l.Fund(predicted, marmo.NewValue(7))

	require.True(t, send(t, l, testFactory, PackReveal(owner)).Success)
	require.Equal(t, marmo.NewValue(7), l.GetBalance(predicted))
}

func TestFactory_InvalidInputFails(t *testing.T) {
	l := newTestLedger(t)
	for _, input := range [][]byte{nil, {1, 2}, {1, 2, 3, 4}, PackReveal(marmo.Address{1})[:20]} {
		receipt := send(t, l, testFactory, input)
		require.False(t, receipt.Success)
	}
}
