package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksanaphmn/kakarot/bridge"
	"github.com/oksanaphmn/kakarot/core/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	directory := bridge.NewAccountDirectory(
		types.HexToHash("0x0123"),
		types.HexToHash("0xabcd"),
	)
	store, err := NewStore(t.TempDir(), directory)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreAccountRoundTrip(t *testing.T) {
	store := newTestStore(t)

	missing, err := store.Account(addrA)
	require.NoError(t, err)
	assert.Nil(t, missing)

	code := []byte{0x60, 0x2a, 0x60, 0x00, 0x52}
	diff := Diff{
		addrA: {
			Balance: big.NewInt(1_000_000),
			Nonce:   9,
			Code:    code,
			Storage: map[types.Hash]types.Hash{slot1: val42},
		},
	}
	require.NoError(t, store.ApplyDiff(diff))

	acct, err := store.Account(addrA)
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.Equal(t, uint64(9), acct.Nonce)
	assert.Equal(t, big.NewInt(1_000_000), acct.Balance)
	assert.Equal(t, codeHashOf(code).Bytes(), acct.CodeHash)

	got, err := store.Code(addrA, codeHashOf(code))
	require.NoError(t, err)
	assert.Equal(t, code, got)

	val, err := store.Storage(addrA, slot1)
	require.NoError(t, err)
	assert.Equal(t, val42, val)

	empty, err := store.Storage(addrA, slot2)
	require.NoError(t, err)
	assert.Equal(t, types.Hash{}, empty)
}

func TestStorePreservesCodeHashAcrossUpdates(t *testing.T) {
	store := newTestStore(t)

	code := []byte{0x00}
	require.NoError(t, store.ApplyDiff(Diff{
		addrA: {Balance: big.NewInt(1), Nonce: 1, Code: code},
	}))

	// A later balance-only diff must not clobber the stored code hash.
	require.NoError(t, store.ApplyDiff(Diff{
		addrA: {Balance: big.NewInt(2), Nonce: 2},
	}))

	acct, err := store.Account(addrA)
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.Equal(t, codeHashOf(code).Bytes(), acct.CodeHash)
	assert.Equal(t, big.NewInt(2), acct.Balance)
}

func TestStoreDeleteSweepsStorage(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.ApplyDiff(Diff{
		addrA: {
			Balance: big.NewInt(5),
			Storage: map[types.Hash]types.Hash{slot1: val42, slot2: val99},
		},
		addrB: {
			Balance: big.NewInt(7),
			Storage: map[types.Hash]types.Hash{slot1: val99},
		},
	}))

	require.NoError(t, store.ApplyDiff(Diff{
		addrA: {Deleted: true},
	}))

	acct, err := store.Account(addrA)
	require.NoError(t, err)
	assert.Nil(t, acct)

	for _, slot := range []types.Hash{slot1, slot2} {
		val, err := store.Storage(addrA, slot)
		require.NoError(t, err)
		assert.Equal(t, types.Hash{}, val)
	}

	// An unrelated account is untouched by the sweep.
	val, err := store.Storage(addrB, slot1)
	require.NoError(t, err)
	assert.Equal(t, val99, val)
}

func TestStoreZeroValueStorageDeletes(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.ApplyDiff(Diff{
		addrA: {Balance: big.NewInt(1), Storage: map[types.Hash]types.Hash{slot1: val42}},
	}))
	require.NoError(t, store.ApplyDiff(Diff{
		addrA: {Balance: big.NewInt(1), Storage: map[types.Hash]types.Hash{slot1: {}}},
	}))

	val, err := store.Storage(addrA, slot1)
	require.NoError(t, err)
	assert.Equal(t, types.Hash{}, val)
}

func TestStoreConfigRoundTrip(t *testing.T) {
	store := newTestStore(t)

	_, ok := store.GetConfig("chain_id")
	assert.False(t, ok)

	require.NoError(t, store.SetConfig("chain_id", []byte{0x01}))
	got, ok := store.GetConfig("chain_id")
	assert.True(t, ok)
	assert.Equal(t, []byte{0x01}, got)
}

func TestStoreBehindStateDB(t *testing.T) {
	store := newTestStore(t)

	s := New(store)
	s.AddBalance(addrA, big.NewInt(321))
	s.SetCode(addrA, []byte{0x60, 0x01})
	s.SetState(addrA, slot1, val42)
	_, err := s.Commit()
	require.NoError(t, err)

	fresh := New(store)
	assert.Equal(t, big.NewInt(321), fresh.GetBalance(addrA))
	assert.Equal(t, []byte{0x60, 0x01}, fresh.GetCode(addrA))
	assert.Equal(t, val42, fresh.GetCommittedState(addrA, slot1))
}
