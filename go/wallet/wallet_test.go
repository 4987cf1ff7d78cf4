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
	"bytes"
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/panoptisDev/marmo/go/marmo"
	test_utils "github.com/panoptisDev/marmo/go/processor"
	"github.com/panoptisDev/marmo/go/simulation"
	"github.com/stretchr/testify/require"
)

const (
	testGasLimit = 1_000_000
	tokenSupply  = 1_000
)

var (
	testLogicV1 = marmo.NewAddress(0x100)
	testLogicV2 = marmo.NewAddress(0x200)
	testWallet  = marmo.NewAddress(0x300)
	testToken   = marmo.NewAddress(0x400)
	testMinter  = marmo.NewAddress(0x500)
	testRelayer = marmo.NewAddress(0x600)
	testOther   = marmo.NewAddress(0x700)
	testTarget  = marmo.NewAddress(0x800)
	testFlag    = marmo.NewAddress(0x900)
)

type testEnv struct {
	ledger *simulation.Ledger
	key    *ecdsa.PrivateKey
	owner  marmo.Address
}

// newTestEnv creates a ledger with an initialized wallet using the first
// logic version by default. The wallet owns tokens but no value.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	l, err := simulation.New(simulation.DefaultConfig())
	require.NoError(t, err)
	env := &testEnv{
		ledger: l,
		key:    key,
		owner:  marmo.Address(crypto.PubkeyToAddress(key.PublicKey)),
	}

	l.Deploy(testLogicV1, NewLogicCode(LogicV1Program))
	l.Deploy(testLogicV2, NewLogicCode(LogicV2Program))
	l.Deploy(testWallet, NewWalletCode(testLogicV1))
	l.Deploy(testToken, test_utils.TokenCode(testMinter))
	l.Deploy(testFlag, test_utils.FlagCode())
	for _, account := range []marmo.Address{env.owner, testRelayer, testOther, testMinter} {
		l.Fund(account, marmo.NewValue(1_000_000_000_000))
	}

	receipt := env.send(t, env.owner, testWallet, PackInit(env.owner))
	require.True(t, receipt.Success)

	mint, err := test_utils.TokenABI.Pack("mint", common.Address(testWallet), big.NewInt(tokenSupply))
	require.NoError(t, err)
	receipt = env.send(t, testMinter, testToken, mint)
	require.True(t, receipt.Success)
	return env
}

func (e *testEnv) send(t *testing.T, from, to marmo.Address, input []byte) marmo.Receipt {
	t.Helper()
	return e.sendWithPrice(t, from, to, input, marmo.NewValue(1))
}

func (e *testEnv) sendWithPrice(t *testing.T, from, to marmo.Address, input []byte, price marmo.Value) marmo.Receipt {
	t.Helper()
	receipt, err := e.ledger.Send(context.Background(), marmo.Transaction{
		Sender:    from,
		Recipient: &to,
		Nonce:     e.ledger.GetNonce(from),
		Input:     input,
		GasLimit:  testGasLimit,
		GasPrice:  price,
	})
	require.NoError(t, err)
	return receipt
}

func (e *testEnv) view(t *testing.T, input []byte) []byte {
	t.Helper()
	receipt, err := e.ledger.View(testOther, testWallet, input)
	require.NoError(t, err)
	require.True(t, receipt.Success)
	return receipt.Output
}

// intent creates an intent valid for the next minute.
func (e *testEnv) intent(to marmo.Address, value uint64, data []byte) marmo.Intent {
	return marmo.Intent{
		To:          to,
		Value:       marmo.NewValue(value),
		Data:        data,
		MaxGasPrice: marmo.NewValue(10),
		Expiration:  marmo.NewValue(uint64(e.ledger.Block().Timestamp + 60)),
	}
}

func (e *testEnv) sign(t *testing.T, id marmo.Hash) []byte {
	t.Helper()
	signature, err := crypto.Sign(id[:], e.key)
	require.NoError(t, err)
	return signature
}

func (e *testEnv) relay(t *testing.T, from marmo.Address, intent marmo.Intent, signature []byte) marmo.Receipt {
	t.Helper()
	return e.send(t, from, testWallet, PackRelay(intent, signature))
}

func (e *testEnv) tokenBalance(owner marmo.Address) *big.Int {
	word := e.ledger.GetStorage(testToken, test_utils.TokenBalanceKey(owner))
	return new(big.Int).SetBytes(word[:])
}

func tokenTransfer(t *testing.T, to marmo.Address, amount int64) []byte {
	t.Helper()
	data, err := test_utils.TokenABI.Pack("transfer", common.Address(to), big.NewInt(amount))
	require.NoError(t, err)
	return data
}

func revertReason(t *testing.T, receipt marmo.Receipt) string {
	t.Helper()
	require.False(t, receipt.Success)
	reason, _ := marmo.RevertReason(receipt.Output)
	return reason
}

func relayedOutcome(t *testing.T, receipt marmo.Receipt) Relayed {
	t.Helper()
	require.True(t, receipt.Success)
	var outcomes []Relayed
	for _, log := range receipt.Logs {
		if outcome, ok := ParseRelayed(log); ok {
			outcomes = append(outcomes, outcome)
		}
	}
	require.Len(t, outcomes, 1)
	success, result, err := UnpackRelayResult(receipt.Output)
	require.NoError(t, err)
	require.Equal(t, outcomes[0].Success, success)
	require.True(t, bytes.Equal(outcomes[0].Result, result))
	return outcomes[0]
}

func TestWallet_InitIsWriteOnce(t *testing.T) {
	env := newTestEnv(t)

	receipt := env.send(t, testOther, testWallet, PackInit(testOther))
	require.Equal(t, ReasonSignerAlreadyKnown, revertReason(t, receipt))

	signer, ok := ReadSigner(env.ledger.State(), testWallet)
	require.True(t, ok)
	require.Equal(t, env.owner, signer)

	output := env.view(t, mustPack("signer"))
	require.Equal(t, env.owner.Word(), marmo.Word(output))
}

func TestWallet_PlainTransfersFundTheWallet(t *testing.T) {
	env := newTestEnv(t)
	to := testWallet
	receipt, err := env.ledger.Send(context.Background(), marmo.Transaction{
		Sender:    testOther,
		Recipient: &to,
		Nonce:     env.ledger.GetNonce(testOther),
		Value:     marmo.NewValue(5),
		GasLimit:  testGasLimit,
		GasPrice:  marmo.NewValue(1),
	})
	require.NoError(t, err)
	require.True(t, receipt.Success)
	require.Equal(t, marmo.NewValue(5), env.ledger.GetBalance(testWallet))
}

func TestWallet_RelaySignedIntent(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.Fund(testWallet, marmo.NewValue(1))

	intent := env.intent(testTarget, 1, nil)
	id := marmo.ComputeID(testWallet, intent)
	block := env.ledger.Block().Number

	receipt := env.relay(t, testRelayer, intent, env.sign(t, id))
	outcome := relayedOutcome(t, receipt)
	require.Equal(t, id, outcome.ID)
	require.True(t, outcome.Success)

	require.True(t, env.ledger.GetBalance(testWallet).IsZero())
	require.Equal(t, marmo.NewValue(1), env.ledger.GetBalance(testTarget))

	relayer, at := ReadRelayRecord(env.ledger.State(), testWallet, id)
	require.Equal(t, testRelayer, relayer)
	require.Equal(t, uint64(block), at)

	require.Equal(t, testRelayer.Word(), marmo.Word(env.view(t, PackRelayedBy(id))))
	relayedAt, err := ABI.Methods["relayedAt"].Outputs.Unpack(env.view(t, mustPack("relayedAt", [32]byte(id))))
	require.NoError(t, err)
	require.Equal(t, uint64(block), relayedAt[0].(*big.Int).Uint64())
}

func TestWallet_RelayTransfersTokens(t *testing.T) {
	env := newTestEnv(t)
	intent := env.intent(testToken, 0, tokenTransfer(t, testTarget, 5))
	receipt := env.relay(t, testRelayer, intent, env.sign(t, marmo.ComputeID(testWallet, intent)))
	require.True(t, relayedOutcome(t, receipt).Success)

	require.Equal(t, big.NewInt(tokenSupply-5), env.tokenBalance(testWallet))
	require.Equal(t, big.NewInt(5), env.tokenBalance(testTarget))
}

func TestWallet_IntentIsRelayedAtMostOnce(t *testing.T) {
	env := newTestEnv(t)
	intent := env.intent(testToken, 0, tokenTransfer(t, testTarget, 5))
	id := marmo.ComputeID(testWallet, intent)
	signature := env.sign(t, id)

	require.True(t, relayedOutcome(t, env.relay(t, testRelayer, intent, signature)).Success)

	for name, from := range map[string]marmo.Address{"same relayer": testRelayer, "other relayer": testOther} {
		t.Run(name, func(t *testing.T) {
			receipt := env.relay(t, from, intent, signature)
			require.Equal(t, ReasonAlreadyRelayed, revertReason(t, receipt))
		})
	}

	receipt := env.relay(t, env.owner, intent, nil)
	require.Equal(t, ReasonAlreadyRelayed, revertReason(t, receipt))

	require.Equal(t, big.NewInt(5), env.tokenBalance(testTarget))
	relayer, _ := ReadRelayRecord(env.ledger.State(), testWallet, id)
	require.Equal(t, testRelayer, relayer)
}

func TestWallet_OwnerMaySubmitWithoutSignature(t *testing.T) {
	env := newTestEnv(t)
	intent := env.intent(testToken, 0, tokenTransfer(t, testTarget, 5))

	receipt := env.relay(t, env.owner, intent, nil)
	require.True(t, relayedOutcome(t, receipt).Success)

	relayer, _ := ReadRelayRecord(env.ledger.State(), testWallet, marmo.ComputeID(testWallet, intent))
	require.Equal(t, env.owner, relayer)
}

func TestWallet_FaultsLeaveTheLedgerUnchanged(t *testing.T) {
	otherKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	tests := map[string]struct {
		modify func(env *testEnv, intent *marmo.Intent)
		sign   func(t *testing.T, env *testEnv, id marmo.Hash) []byte
		from   marmo.Address
		price  uint64
		reason string
	}{
		"expired": {
			modify: func(env *testEnv, intent *marmo.Intent) {
				intent.Expiration = marmo.NewValue(uint64(env.ledger.Block().Timestamp - 1))
			},
			reason: ReasonExpired,
		},
		"gas price too high": {
			price:  11,
			reason: ReasonGasPriceTooHigh,
		},
		"signed by someone else": {
			sign: func(t *testing.T, _ *testEnv, id marmo.Hash) []byte {
				signature, err := crypto.Sign(id[:], otherKey)
				require.NoError(t, err)
				return signature
			},
			reason: ReasonInvalidSignature,
		},
		"signature for other intent": {
			sign: func(t *testing.T, env *testEnv, id marmo.Hash) []byte {
				return env.sign(t, marmo.Hash{1})
			},
			reason: ReasonInvalidSignature,
		},
		"empty signature from non-owner": {
			sign:   func(*testing.T, *testEnv, marmo.Hash) []byte { return nil },
			reason: ReasonInvalidSignature,
		},
		"truncated signature": {
			sign: func(t *testing.T, env *testEnv, id marmo.Hash) []byte {
				return env.sign(t, id)[:64]
			},
			reason: ReasonInvalidSignature,
		},
		"unsatisfied dependency": {
			modify: func(_ *testEnv, intent *marmo.Intent) {
				intent.Dependencies = marmo.EncodeDependencies(marmo.Dependency{Target: testFlag})
			},
			reason: ReasonDependency,
		},
		"malformed dependencies": {
			modify: func(_ *testEnv, intent *marmo.Intent) {
				intent.Dependencies = []byte{1, 2, 3}
			},
			reason: ReasonDependency,
		},
		"minimum gas not available": {
			modify: func(_ *testEnv, intent *marmo.Intent) {
				intent.MinGasLimit = marmo.NewValue(testGasLimit)
			},
			reason: "",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)
			env.ledger.Fund(testWallet, marmo.NewValue(1))
			intent := env.intent(testToken, 1, tokenTransfer(t, testTarget, 5))
			if test.modify != nil {
				test.modify(env, &intent)
			}
			id := marmo.ComputeID(testWallet, intent)
			signature := env.sign(t, id)
			if test.sign != nil {
				signature = test.sign(t, env, id)
			}
			price := marmo.NewValue(1)
			if test.price != 0 {
				price = marmo.NewValue(test.price)
			}

			receipt := env.sendWithPrice(t, testRelayer, testWallet, PackRelay(intent, signature), price)
			require.Equal(t, test.reason, revertReason(t, receipt))
			require.Empty(t, receipt.Logs)

			relayer, at := ReadRelayRecord(env.ledger.State(), testWallet, id)
			require.Equal(t, marmo.Address{}, relayer)
			require.Zero(t, at)
			require.Equal(t, marmo.NewValue(1), env.ledger.GetBalance(testWallet))
			require.Equal(t, big.NewInt(tokenSupply), env.tokenBalance(testWallet))
			require.Zero(t, env.tokenBalance(testTarget).Sign())
		})
	}
}

func TestWallet_ExpirationAndGasPriceLimitsAreInclusive(t *testing.T) {
	tests := map[string]struct {
		expiration int64 // relative to the timestamp of the relaying block
		price      uint64
		reason     string
		success    bool
	}{
		"expires in relaying block": {expiration: 0, price: 1, success: true},
		"expired one second before": {expiration: -1, price: 1, reason: ReasonExpired},
		"price equals maximum":      {expiration: 60, price: 10, success: true},
		"price one above maximum":   {expiration: 60, price: 11, reason: ReasonGasPriceTooHigh},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)
			intent := env.intent(testToken, 0, tokenTransfer(t, testTarget, 5))
			require.Equal(t, marmo.NewValue(10), intent.MaxGasPrice)
			intent.Expiration = marmo.NewValue(uint64(env.ledger.Block().Timestamp + test.expiration))
			id := marmo.ComputeID(testWallet, intent)

			receipt := env.sendWithPrice(t, testRelayer, testWallet, PackRelay(intent, env.sign(t, id)), marmo.NewValue(test.price))
			relayer, _ := ReadRelayRecord(env.ledger.State(), testWallet, id)
			if !test.success {
				require.Equal(t, test.reason, revertReason(t, receipt))
				require.Equal(t, marmo.Address{}, relayer)
				require.Zero(t, env.tokenBalance(testTarget).Sign())
				return
			}
			require.True(t, relayedOutcome(t, receipt).Success)
			require.Equal(t, testRelayer, relayer)
			require.Equal(t, big.NewInt(5), env.tokenBalance(testTarget))
		})
	}
}

func TestWallet_FailingTargetIsRecordedNotReverted(t *testing.T) {
	tests := map[string]struct {
		code   marmo.Code
		result []byte
	}{
		"revert":      {code: test_utils.ReverterCode("target failed"), result: marmo.EncodeRevert("target failed")},
		"out of gas":  {code: test_utils.BurnerCode()},
		"bad request": {code: test_utils.TokenCode(testMinter)},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)
			env.ledger.Deploy(testTarget, test.code)

			intent := env.intent(testTarget, 0, []byte{1, 2, 3})
			id := marmo.ComputeID(testWallet, intent)
			outcome := relayedOutcome(t, env.relay(t, testRelayer, intent, env.sign(t, id)))
			require.False(t, outcome.Success)
			require.True(t, bytes.Equal(test.result, outcome.Result), "unexpected result %x", outcome.Result)

			relayer, _ := ReadRelayRecord(env.ledger.State(), testWallet, id)
			require.Equal(t, testRelayer, relayer)
		})
	}
}

func TestWallet_ValueExceedingBalanceIsRecordedAsFailure(t *testing.T) {
	env := newTestEnv(t)
	intent := env.intent(testTarget, 1, nil)
	outcome := relayedOutcome(t, env.relay(t, testRelayer, intent, env.sign(t, marmo.ComputeID(testWallet, intent))))
	require.False(t, outcome.Success)
	require.True(t, env.ledger.GetBalance(testTarget).IsZero())
}

func TestWallet_CancelBeforeRelayBlocksTheIntent(t *testing.T) {
	env := newTestEnv(t)
	intent := env.intent(testToken, 0, tokenTransfer(t, testTarget, 5))
	id := marmo.ComputeID(testWallet, intent)

	cancel := env.intent(testWallet, 0, PackCancel(id))
	cancelID := marmo.ComputeID(testWallet, cancel)
	receipt := env.relay(t, testRelayer, cancel, env.sign(t, cancelID))
	require.True(t, relayedOutcome(t, receipt).Success)

	var canceled []marmo.Hash
	for _, log := range receipt.Logs {
		if id, ok := ParseCanceled(log); ok {
			canceled = append(canceled, id)
		}
	}
	require.Equal(t, []marmo.Hash{id}, canceled)
	require.True(t, ReadCanceled(env.ledger.State(), testWallet, id))
	require.Equal(t, marmo.Word{31: 1}, marmo.Word(env.view(t, mustPack("isCanceled", [32]byte(id)))))

	receipt = env.relay(t, testRelayer, intent, env.sign(t, id))
	require.Equal(t, ReasonCanceled, revertReason(t, receipt))
	require.Zero(t, env.tokenBalance(testTarget).Sign())

	// a second cancellation is relayed, but has no effect
	again := env.intent(testWallet, 0, PackCancel(id))
	again.Salt = []byte{1}
	outcome := relayedOutcome(t, env.relay(t, testRelayer, again, env.sign(t, marmo.ComputeID(testWallet, again))))
	require.False(t, outcome.Success)
	require.Equal(t, marmo.EncodeRevert(ReasonAlreadyCanceled), outcome.Result)
}

func TestWallet_CancelAfterRelayHasNoEffect(t *testing.T) {
	env := newTestEnv(t)
	intent := env.intent(testToken, 0, tokenTransfer(t, testTarget, 5))
	id := marmo.ComputeID(testWallet, intent)
	require.True(t, relayedOutcome(t, env.relay(t, testRelayer, intent, env.sign(t, id))).Success)

	cancel := env.intent(testWallet, 0, PackCancel(id))
	cancelID := marmo.ComputeID(testWallet, cancel)
	outcome := relayedOutcome(t, env.relay(t, testRelayer, cancel, env.sign(t, cancelID)))
	require.False(t, outcome.Success)
	require.Equal(t, marmo.EncodeRevert(ReasonAlreadyRelayed), outcome.Result)

	require.False(t, ReadCanceled(env.ledger.State(), testWallet, id))
	relayer, _ := ReadRelayRecord(env.ledger.State(), testWallet, cancelID)
	require.Equal(t, testRelayer, relayer)
}

func TestWallet_DirectCancelFails(t *testing.T) {
	env := newTestEnv(t)
	for _, from := range []marmo.Address{env.owner, testOther} {
		receipt := env.send(t, from, testWallet, PackCancel(marmo.Hash{1}))
		require.Equal(t, ReasonOnlyWalletCancels, revertReason(t, receipt))
	}
	require.False(t, ReadCanceled(env.ledger.State(), testWallet, marmo.Hash{1}))
}

func TestWallet_DependencyGatesRelay(t *testing.T) {
	env := newTestEnv(t)
	first := env.intent(testToken, 0, tokenTransfer(t, testTarget, 1))
	firstID := marmo.ComputeID(testWallet, first)

	second := env.intent(testToken, 0, tokenTransfer(t, testTarget, 2))
	second.Dependencies = marmo.EncodeDependencies(
		marmo.Dependency{Target: testWallet, Input: PackRelayedBy(firstID)},
	)
	secondSignature := env.sign(t, marmo.ComputeID(testWallet, second))

	receipt := env.relay(t, testRelayer, second, secondSignature)
	require.Equal(t, ReasonDependency, revertReason(t, receipt))

	require.True(t, relayedOutcome(t, env.relay(t, testRelayer, first, env.sign(t, firstID))).Success)
	require.True(t, relayedOutcome(t, env.relay(t, testRelayer, second, secondSignature)).Success)
	require.Equal(t, big.NewInt(3), env.tokenBalance(testTarget))
}

func TestWallet_DependencyCanRequireSpecificRelayer(t *testing.T) {
	env := newTestEnv(t)
	first := env.intent(testToken, 0, tokenTransfer(t, testTarget, 1))
	firstID := marmo.ComputeID(testWallet, first)
	require.True(t, relayedOutcome(t, env.relay(t, testOther, first, env.sign(t, firstID))).Success)

	tests := map[string]struct {
		relayer   marmo.Address
		satisfied bool
	}{
		"actual relayer": {relayer: testOther, satisfied: true},
		"other relayer":  {relayer: testRelayer},
		"zero relayer":   {relayer: marmo.Address{}},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			output := env.view(t, PackIsRelayedBy(firstID, test.relayer))
			require.Equal(t, test.satisfied, !marmo.Word(output).IsZero())
		})
	}

	second := env.intent(testToken, 0, tokenTransfer(t, testTarget, 2))
	second.Dependencies = marmo.EncodeDependencies(
		marmo.Dependency{Target: testWallet, Input: PackIsRelayedBy(firstID, testRelayer)},
	)
	secondSignature := env.sign(t, marmo.ComputeID(testWallet, second))
	receipt := env.relay(t, testRelayer, second, secondSignature)
	require.Equal(t, ReasonDependency, revertReason(t, receipt))

	third := env.intent(testToken, 0, tokenTransfer(t, testTarget, 2))
	third.Dependencies = marmo.EncodeDependencies(
		marmo.Dependency{Target: testWallet, Input: PackIsRelayedBy(firstID, testOther)},
	)
	receipt = env.relay(t, testRelayer, third, env.sign(t, marmo.ComputeID(testWallet, third)))
	require.True(t, relayedOutcome(t, receipt).Success)
	require.Equal(t, big.NewInt(3), env.tokenBalance(testTarget))
}

func TestWallet_AllDependenciesMustBeSatisfied(t *testing.T) {
	env := newTestEnv(t)
	flag := marmo.Word{31: 1}
	receipt := env.send(t, testOther, testFlag, flag[:])
	require.True(t, receipt.Success)

	intent := env.intent(testToken, 0, tokenTransfer(t, testTarget, 1))
	intent.Dependencies = marmo.EncodeDependencies(
		marmo.Dependency{Target: testFlag},
		marmo.Dependency{Target: testWallet, Input: PackRelayedBy(marmo.Hash{1})},
	)
	receipt = env.relay(t, testRelayer, intent, env.sign(t, marmo.ComputeID(testWallet, intent)))
	require.Equal(t, ReasonDependency, revertReason(t, receipt))

	intent.Dependencies = marmo.EncodeDependencies(marmo.Dependency{Target: testFlag})
	receipt = env.relay(t, testRelayer, intent, env.sign(t, marmo.ComputeID(testWallet, intent)))
	require.True(t, relayedOutcome(t, receipt).Success)
}

// reentrantProgram calls the wallet with the configured input when invoked.
type reentrantProgram struct {
	input *[]byte
}

func (p reentrantProgram) Run(params marmo.Parameters) (marmo.Result, error) {
	result, err := params.Context.Call(marmo.Call, marmo.CallParameters{
		Sender:    params.Recipient,
		Recipient: testWallet,
		Input:     *p.input,
		Gas:       params.Gas,
	})
	return marmo.Result{Success: result.Success, Output: result.Output, GasLeft: result.GasLeft}, err
}

var reentrantInput []byte

func init() {
	marmo.RegisterProgram("wallet_test.reentrant", reentrantProgram{input: &reentrantInput})
}

func TestWallet_ReentrantRelayIsRejected(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.Deploy(testTarget, marmo.NewProgramCode("wallet_test.reentrant", nil))

	intent := env.intent(testTarget, 0, nil)
	signature := env.sign(t, marmo.ComputeID(testWallet, intent))
	reentrantInput = PackRelay(intent, signature)

	outcome := relayedOutcome(t, env.relay(t, testRelayer, intent, signature))
	require.False(t, outcome.Success)
	require.Equal(t, marmo.EncodeRevert(ReasonAlreadyRelayed), outcome.Result)
}

func TestWallet_RelayViaBindsIntentToModule(t *testing.T) {
	env := newTestEnv(t)
	intent := env.intent(testToken, 0, tokenTransfer(t, testTarget, 5))

	// a signature for the default module is not valid for another one
	receipt := env.send(t, testRelayer, testWallet, PackRelayVia(testLogicV2, intent, env.sign(t, marmo.ComputeID(testWallet, intent))))
	require.Equal(t, ReasonInvalidSignature, revertReason(t, receipt))

	id := marmo.ComputeModuleID(testWallet, testLogicV2, intent)
	receipt = env.send(t, testRelayer, testWallet, PackRelayVia(testLogicV2, intent, env.sign(t, id)))
	require.True(t, relayedOutcome(t, receipt).Success)

	// the record is kept in the wallet's storage, visible to all modules
	require.Equal(t, testRelayer.Word(), marmo.Word(env.view(t, PackRelayedBy(id))))
	require.Equal(t, big.NewInt(5), env.tokenBalance(testTarget))
}

func TestWallet_RelayViaRejectsUnknownModules(t *testing.T) {
	env := newTestEnv(t)
	intent := env.intent(testToken, 0, tokenTransfer(t, testTarget, 5))
	for _, module := range []marmo.Address{testToken, testOther} {
		id := marmo.ComputeModuleID(testWallet, module, intent)
		receipt := env.send(t, testRelayer, testWallet, PackRelayVia(module, intent, env.sign(t, id)))
		require.False(t, receipt.Success)
	}
	require.Zero(t, env.tokenBalance(testTarget).Sign())
}

func TestWallet_GasFloorFaultDependsOnModule(t *testing.T) {
	tests := map[string]struct {
		module marmo.Address
		reason string
	}{
		"v1": {module: testLogicV1, reason: ""},
		"v2": {module: testLogicV2, reason: ReasonGasLeftTooLow},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)
			intent := env.intent(testToken, 0, tokenTransfer(t, testTarget, 5))
			intent.MinGasLimit = marmo.NewValue(testGasLimit)
			id := marmo.ComputeModuleID(testWallet, test.module, intent)
			receipt := env.send(t, testRelayer, testWallet, PackRelayVia(test.module, intent, env.sign(t, id)))
			require.Equal(t, test.reason, revertReason(t, receipt))
			relayer, _ := ReadRelayRecord(env.ledger.State(), testWallet, id)
			require.Equal(t, marmo.Address{}, relayer)
		})
	}
}

func TestWallet_MinimumGasIsForwarded(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.Deploy(testTarget, test_utils.RecorderCode())
	intent := env.intent(testTarget, 0, []byte{1})
	intent.MinGasLimit = marmo.NewValue(test_utils.RecorderGas)

	outcome := relayedOutcome(t, env.relay(t, testRelayer, intent, env.sign(t, marmo.ComputeID(testWallet, intent))))
	require.True(t, outcome.Success)
	require.Equal(t, testWallet.Word(), env.ledger.GetStorage(testTarget, test_utils.RecordedSenderKey))
}

func TestWallet_EncodeTransactionDataMatchesComputeID(t *testing.T) {
	env := newTestEnv(t)
	intent := env.intent(testToken, 3, tokenTransfer(t, testTarget, 5))
	intent.Salt = []byte("salt")
	intent.Dependencies = marmo.EncodeDependencies(marmo.Dependency{Target: testFlag})

	output := env.view(t, mustPack("encodeTransactionData", intent.Values()...))
	require.Equal(t, marmo.ComputeID(testWallet, intent), marmo.Hash(output))

	args := append([]any{common.Address(testLogicV2)}, intent.Values()...)
	output = env.view(t, mustPack("encodeTransactionDataVia", args...))
	require.Equal(t, marmo.ComputeModuleID(testWallet, testLogicV2, intent), marmo.Hash(output))
}

func TestWallet_RelayRunningOutOfGasHasNoEffect(t *testing.T) {
	env := newTestEnv(t)
	intent := env.intent(testToken, 0, tokenTransfer(t, testTarget, 5))
	id := marmo.ComputeID(testWallet, intent)

	to := testWallet
	input := PackRelay(intent, env.sign(t, id))
	receipt, err := env.ledger.Send(context.Background(), marmo.Transaction{
		Sender:    testRelayer,
		Recipient: &to,
		Nonce:     env.ledger.GetNonce(testRelayer),
		Input:     input,
		GasLimit:  40_000,
		GasPrice:  marmo.NewValue(1),
	})
	require.NoError(t, err)
	require.False(t, receipt.Success)

	relayer, _ := ReadRelayRecord(env.ledger.State(), testWallet, id)
	require.Equal(t, marmo.Address{}, relayer)
	require.Zero(t, env.tokenBalance(testTarget).Sign())
}
