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
	"math"
)

// ErrMalformedDependencies is returned when an encoded dependency list can not
// be split into segments.
const ErrMalformedDependencies = ConstError("malformed dependencies")

// Dependency is a precondition of an intent: a read-only call to Target with
// the given input that has to report a non-zero result.
type Dependency struct {
	Target Address
	Input  Data
}

// dependencyHeaderSize is the size of the target address and the length
// prefix of a single segment.
const dependencyHeaderSize = 20 + 4

// EncodeDependencies concatenates the given dependencies into segments of the
// form target ∥ uint32 length ∥ input.
func EncodeDependencies(dependencies ...Dependency) []byte {
	size := 0
	for _, dependency := range dependencies {
		size += dependencyHeaderSize + len(dependency.Input)
	}
	res := make([]byte, 0, size)
	for _, dependency := range dependencies {
		if len(dependency.Input) > math.MaxUint32 {
			panic("dependency input too long")
		}
		res = append(res, dependency.Target[:]...)
		res = binary.BigEndian.AppendUint32(res, uint32(len(dependency.Input)))
		res = append(res, dependency.Input...)
	}
	return res
}

// DecodeDependencies splits an encoded dependency list into its segments. An
// empty list decodes into no dependencies.
func DecodeDependencies(data []byte) ([]Dependency, error) {
	var res []Dependency
	for len(data) > 0 {
		if len(data) < dependencyHeaderSize {
			return nil, ErrMalformedDependencies
		}
		var dependency Dependency
		copy(dependency.Target[:], data[:20])
		length := binary.BigEndian.Uint32(data[20:dependencyHeaderSize])
		data = data[dependencyHeaderSize:]
		if uint64(len(data)) < uint64(length) {
			return nil, ErrMalformedDependencies
		}
		dependency.Input = data[:length]
		data = data[length:]
		res = append(res, dependency)
	}
	return res, nil
}
