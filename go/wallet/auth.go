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
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/panoptisDev/marmo/go/marmo"
)

const (
	// SignatureLength is the size of an r ∥ s ∥ v signature.
	SignatureLength = 65

	// ErrMalformedSignature is reported for signatures that can not be
	// recovered, e.g. due to a wrong length or invalid values.
	ErrMalformedSignature = marmo.ConstError("malformed signature")

	recoveryCacheSize = 4096
)

type recovery struct {
	signer marmo.Address
	err    error
}

// recoveries caches the results of signer recovery. Recovery is a pure
// function of the ID and the signature, so cached results are always valid.
var recoveries = func() *lru.Cache[marmo.Hash, recovery] {
	cache, err := lru.New[marmo.Hash, recovery](recoveryCacheSize)
	if err != nil {
		panic(err)
	}
	return cache
}()

// RecoverSigner returns the address that produced the given signature over
// an intent ID. The signature is r ∥ s ∥ v with v in {0, 1, 27, 28}; the ID
// is signed as is, without any message prefix.
func RecoverSigner(id marmo.Hash, signature []byte) (marmo.Address, error) {
	key := marmo.Keccak256Hash(id[:], signature)
	if cached, found := recoveries.Get(key); found {
		return cached.signer, cached.err
	}
	signer, err := recoverSigner(id, signature)
	recoveries.Add(key, recovery{signer: signer, err: err})
	return signer, err
}

func recoverSigner(id marmo.Hash, signature []byte) (marmo.Address, error) {
	if len(signature) != SignatureLength {
		return marmo.Address{}, ErrMalformedSignature
	}
	v := signature[64]
	if v >= 27 {
		v -= 27
	}
	r := new(big.Int).SetBytes(signature[:32])
	s := new(big.Int).SetBytes(signature[32:64])
	if !crypto.ValidateSignatureValues(v, r, s, true) {
		return marmo.Address{}, ErrMalformedSignature
	}

	normalized := make([]byte, SignatureLength)
	copy(normalized, signature)
	normalized[64] = v

	key, err := crypto.SigToPub(id[:], normalized)
	if err != nil {
		return marmo.Address{}, ErrMalformedSignature
	}
	return marmo.Address(crypto.PubkeyToAddress(*key)), nil
}

// IsAuthorized decides whether an intent with the given ID may be relayed
// by the submitter. An empty signature authorizes only the owner itself, any
// other signature must have been produced by the owner.
func IsAuthorized(owner, submitter marmo.Address, id marmo.Hash, signature []byte) bool {
	if len(signature) == 0 {
		return submitter == owner
	}
	signer, err := RecoverSigner(id, signature)
	return err == nil && signer == owner
}
