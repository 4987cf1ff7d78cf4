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
	"testing"

	"github.com/panoptisDev/marmo/go/marmo"
	"github.com/stretchr/testify/require"
)

func TestState_ImplementsWorldStateInterface(t *testing.T) {
	var _ marmo.WorldState = &State{}
}

func TestState_NonExistingAccountsHaveDefaultValues(t *testing.T) {
	s := New()
	address := marmo.Address{1}
	require.False(t, s.AccountExists(address))
	require.Equal(t, marmo.Value{}, s.GetBalance(address))
	require.Equal(t, uint64(0), s.GetNonce(address))
	require.Empty(t, s.GetCode(address))
	require.Equal(t, marmo.Hash{}, s.GetCodeHash(address))
	require.Equal(t, marmo.Word{}, s.GetStorage(address, marmo.Key{1}))
}

func TestState_CreatedAccountHasEmptyCodeHash(t *testing.T) {
	s := New()
	s.CreateAccount(marmo.Address{1})
	require.True(t, s.AccountExists(marmo.Address{1}))
	require.Equal(t, emptyCodeHash, s.GetCodeHash(marmo.Address{1}))
}

func TestState_Snapshots_RevertAllModifications(t *testing.T) {
	require := require.New(t)
	s := New()
	address := marmo.Address{1}

	s.SetBalance(address, marmo.NewValue(10))
	s1 := s.CreateSnapshot()

	s.SetBalance(address, marmo.NewValue(20))
	s.SetNonce(address, 4)
	s.SetCode(address, marmo.Code{1, 2, 3})
	s.SetStorage(address, marmo.Key{1}, marmo.Word{2})
	s.EmitLog(marmo.Log{Address: address})
	s2 := s.CreateSnapshot()

	s.SetStorage(address, marmo.Key{1}, marmo.Word{})
	s.CreateAccount(marmo.Address{2})
	s.EmitLog(marmo.Log{Address: marmo.Address{2}})

	require.Equal(marmo.Word{}, s.GetStorage(address, marmo.Key{1}))
	require.Len(s.GetLogs(), 2)

	s.RestoreSnapshot(s2)
	require.Equal(marmo.Word{2}, s.GetStorage(address, marmo.Key{1}))
	require.False(s.AccountExists(marmo.Address{2}))
	require.Len(s.GetLogs(), 1)

	s.RestoreSnapshot(s1)
	require.Equal(marmo.NewValue(10), s.GetBalance(address))
	require.Equal(uint64(0), s.GetNonce(address))
	require.Empty(s.GetCode(address))
	require.Equal(emptyCodeHash, s.GetCodeHash(address))
	require.Equal(marmo.Word{}, s.GetStorage(address, marmo.Key{1}))
	require.Empty(s.GetLogs())
}

func TestState_RestoreSnapshot_InvalidSnapshot_IsIgnored(t *testing.T) {
	tests := map[string]marmo.Snapshot{
		"negative": -1,
		"future":   100,
	}

	for name, snapshot := range tests {
		t.Run(name, func(t *testing.T) {
			s := New()
			s.SetBalance(marmo.Address{1}, marmo.NewValue(1))
			s.RestoreSnapshot(snapshot)
			require.Equal(t, marmo.NewValue(1), s.GetBalance(marmo.Address{1}))
		})
	}
}

func TestState_BeginTransaction_DropsLogsButKeepsState(t *testing.T) {
	s := New()
	s.SetBalance(marmo.Address{1}, marmo.NewValue(1))
	s.EmitLog(marmo.Log{Address: marmo.Address{1}})

	s.BeginTransaction()
	require.Empty(t, s.GetLogs())
	require.Equal(t, marmo.Snapshot(0), s.CreateSnapshot())
	require.Equal(t, marmo.NewValue(1), s.GetBalance(marmo.Address{1}))
}

func TestState_ReturnedDataIsNotAliased(t *testing.T) {
	s := New()
	code := marmo.Code{1, 2, 3}
	s.SetCode(marmo.Address{1}, code)
	code[0] = 9
	require.Equal(t, marmo.Code{1, 2, 3}, s.GetCode(marmo.Address{1}))

	data := marmo.Data{1}
	s.EmitLog(marmo.Log{Data: data})
	data[0] = 9
	require.Equal(t, marmo.Data{1}, s.GetLogs()[0].Data)
}

func TestState_DumpIsOrderedByAddress(t *testing.T) {
	s := New()
	s.SetBalance(marmo.Address{3}, marmo.NewValue(3))
	s.SetBalance(marmo.Address{1}, marmo.NewValue(1))
	s.SetStorage(marmo.Address{2}, marmo.Key{1}, marmo.Word{1})

	dump := s.Dump()
	require.Len(t, dump, 3)
	require.Equal(t, marmo.Address{1}, dump[0].Address)
	require.Equal(t, marmo.Address{2}, dump[1].Address)
	require.Equal(t, marmo.Address{3}, dump[2].Address)
	require.Equal(t, marmo.Word{1}, dump[1].Storage[marmo.Key{1}])
}
