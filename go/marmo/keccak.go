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

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// Keccak256Hash computes the keccak-256 digest of the concatenation of the
// given byte slices.
func Keccak256Hash(data ...[]byte) Hash {
	hasher := sha3.NewLegacyKeccak256()
	for _, cur := range data {
		hasher.Write(cur)
	}
	var hash Hash
	hasher.Sum(hash[0:0])
	return hash
}

// StorageKey derives a storage slot key from a base value and a tag, the way
// mapping entries are laid out in contract storage.
func StorageKey(base Hash, tag uint64) Key {
	var slot Word
	binary.BigEndian.PutUint64(slot[24:], tag)
	return Key(Keccak256Hash(base[:], slot[:]))
}
