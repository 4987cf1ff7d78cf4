// Copyright (c) 2025 Pano Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at panoptisDev.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/panoptisDev/marmo/go/factory"
	"github.com/panoptisDev/marmo/go/marmo"
	"github.com/panoptisDev/marmo/go/wallet"
	"golang.org/x/sync/errgroup"
)

//go:generate mockgen -source relayer.go -destination relayer_mock.go -package client

// Ledger is the part of a ledger a relayer submits transactions to.
type Ledger interface {
	GetNonce(marmo.Address) uint64
	Send(context.Context, marmo.Transaction) (marmo.Receipt, error)
}

// FaultError is returned for relay transactions reverted by the wallet. Such
// transactions leave no trace besides the gas paid by the relayer.
type FaultError struct {
	Reason string
}

func (e *FaultError) Error() string {
	if e.Reason == "" {
		return "relay reverted"
	}
	return fmt.Sprintf("relay reverted: %s", e.Reason)
}

// ErrMissingSignature is reported by batch verification for intents
// without signature. Only owners may relay those themselves.
const ErrMissingSignature = marmo.ConstError("intent is not signed")

// Relayer submits signed intents to a ledger, paying for their gas.
type Relayer struct {
	mutex   sync.Mutex // serializes the nonce usage of the relayer account
	ledger  Ledger
	config  Config
	address marmo.Address
	metrics *Metrics
}

// NewRelayer creates a relayer submitting transactions signed with the key
// of the configuration.
func NewRelayer(ledger Ledger, config Config, metrics *Metrics) (*Relayer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	key, err := config.LoadKey()
	if err != nil {
		return nil, fmt.Errorf("failed to load relayer key: %w", err)
	}
	return &Relayer{
		ledger:  ledger,
		config:  config,
		address: marmo.Address(crypto.PubkeyToAddress(key.PublicKey)),
		metrics: metrics,
	}, nil
}

// Address returns the account paying for relayed intents.
func (r *Relayer) Address() marmo.Address {
	return r.address
}

// Relay submits a signed intent. The resulting outcome reports whether the
// call of the intent succeeded. A wallet reverting the relay is reported
// as a FaultError.
func (r *Relayer) Relay(ctx context.Context, signed SignedIntent) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	gasPrice := marmo.Min(r.config.GasPrice, signed.Intent.MaxGasPrice)
	receipt, err := r.send(ctx, signed.Wallet, signed.Calldata(), gasPrice)
	if err != nil {
		return Outcome{}, err
	}
	if !receipt.Success {
		reason := RevertReason(receipt)
		r.metrics.Faulted.WithLabelValues(reason).Inc()
		return Outcome{}, &FaultError{Reason: reason}
	}
	outcomes := DecodeRelayed(receipt.Logs)
	if len(outcomes) == 0 {
		return Outcome{}, fmt.Errorf("no relay recorded for intent %v", signed.ID())
	}
	outcome := outcomes[len(outcomes)-1]
	if outcome.Success {
		r.metrics.Succeeded.Inc()
	} else {
		r.metrics.InnerFailures.Inc()
	}
	log.Debug("Relayed intent", "id", outcome.ID, "wallet", signed.Wallet, "success", outcome.Success, "gas", receipt.GasUsed)
	return outcome, nil
}

// Reveal deploys the wallet of an owner through the configured factory and
// returns its address.
func (r *Relayer) Reveal(ctx context.Context, owner marmo.Address) (marmo.Address, error) {
	receipt, err := r.send(ctx, r.config.Factory, factory.PackReveal(owner), r.config.GasPrice)
	if err != nil {
		return marmo.Address{}, err
	}
	if !receipt.Success {
		if reason := RevertReason(receipt); reason != "" {
			return marmo.Address{}, fmt.Errorf("reveal of wallet for %v failed: %s", owner, reason)
		}
		return marmo.Address{}, fmt.Errorf("reveal of wallet for %v failed", owner)
	}
	address, err := factory.UnpackAddress(receipt.Output)
	if err != nil {
		return marmo.Address{}, err
	}
	if want := factory.PredictWallet(r.config.Factory, r.config.Logic, owner); address != want {
		return marmo.Address{}, fmt.Errorf("factory revealed wallet %v for %v, expected %v", address, owner, want)
	}
	return address, nil
}

func (r *Relayer) send(ctx context.Context, recipient marmo.Address, input []byte, gasPrice marmo.Value) (marmo.Receipt, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	receipt, err := r.ledger.Send(ctx, marmo.Transaction{
		Sender:    r.address,
		Recipient: &recipient,
		Nonce:     r.ledger.GetNonce(r.address),
		Input:     input,
		GasLimit:  r.config.GasLimit,
		GasPrice:  gasPrice,
	})
	if err != nil {
		r.metrics.Rejected.Inc()
		return marmo.Receipt{}, err
	}
	r.metrics.Submitted.Inc()
	r.metrics.GasUsed.Add(float64(receipt.GasUsed))
	return receipt, nil
}

// VerifyBatch recovers the signers of a batch of intents in parallel. The
// result lists the signer of each intent in the order of the batch.
func (r *Relayer) VerifyBatch(ctx context.Context, batch []SignedIntent) ([]marmo.Address, error) {
	signers := make([]marmo.Address, len(batch))
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(r.config.Workers)
	for i, signed := range batch {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if len(signed.Signature) == 0 {
				return fmt.Errorf("intent %d: %w", i, ErrMissingSignature)
			}
			signer, err := wallet.RecoverSigner(signed.ID(), signed.Signature)
			if err != nil {
				return fmt.Errorf("intent %d: %w", i, err)
			}
			signers[i] = signer
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return signers, nil
}

// RelayBatch verifies a batch of intents and relays them in order. Faults
// of individual intents do not stop the batch; they are reported together.
func (r *Relayer) RelayBatch(ctx context.Context, batch []SignedIntent) ([]Outcome, error) {
	if _, err := r.VerifyBatch(ctx, batch); err != nil {
		return nil, err
	}
	outcomes := make([]Outcome, len(batch))
	var errs []error
	for i, signed := range batch {
		outcome, err := r.Relay(ctx, signed)
		if err != nil {
			var fault *FaultError
			if !errors.As(err, &fault) {
				return outcomes, errors.Join(append(errs, err)...)
			}
			errs = append(errs, fmt.Errorf("intent %d: %w", i, err))
			continue
		}
		outcomes[i] = outcome
	}
	return outcomes, errors.Join(errs...)
}
