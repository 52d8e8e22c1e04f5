package core

import (
	"encoding/binary"
	"math/big"
	"sync"

	"github.com/oksanaphmn/kakarot/core/types"
)

// ConfigStore is the opaque key-value store chain parameters live in.
// state.Store and MemoryConfigStore both satisfy it.
type ConfigStore interface {
	GetConfig(key string) ([]byte, bool)
	SetConfig(key string, value []byte) error
}

// MemoryConfigStore keeps configuration in a map.
type MemoryConfigStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryConfigStore() *MemoryConfigStore {
	return &MemoryConfigStore{data: make(map[string][]byte)}
}

func (m *MemoryConfigStore) GetConfig(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *MemoryConfigStore) SetConfig(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// Config keys.
const (
	keyOwner             = "owner"
	keyPaused            = "paused"
	keyChainID           = "chain_id"
	keyBaseFee           = "base_fee"
	keyCoinbase          = "coinbase"
	keyPrevRandao        = "prev_randao"
	keyBlockGasLimit     = "block_gas_limit"
	keyNativeToken       = "native_token_address"
	keyAccountClassHash  = "account_class_hash"
	keyUninitializedHash = "uninitialized_class_hash"
	keyAuthorizedPrefix  = "authorized_caller/"
)

// Settings exposes the owner-gated chain parameters. Every setter checks
// the caller against the stored owner; the pause flag is consulted by the
// execution entrypoints before any validation runs.
type Settings struct {
	store ConfigStore
}

// NewSettings wraps store. If no owner is recorded yet, owner becomes it.
func NewSettings(store ConfigStore, owner types.Address) *Settings {
	s := &Settings{store: store}
	if _, ok := store.GetConfig(keyOwner); !ok {
		store.SetConfig(keyOwner, owner.Bytes())
	}
	return s
}

func (s *Settings) requireOwner(caller types.Address) error {
	if caller != s.Owner() {
		return ErrNotOwner
	}
	return nil
}

func (s *Settings) Owner() types.Address {
	v, _ := s.store.GetConfig(keyOwner)
	return types.BytesToAddress(v)
}

func (s *Settings) TransferOwnership(caller, newOwner types.Address) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	return s.store.SetConfig(keyOwner, newOwner.Bytes())
}

func (s *Settings) Paused() bool {
	v, ok := s.store.GetConfig(keyPaused)
	return ok && len(v) == 1 && v[0] == 1
}

func (s *Settings) Pause(caller types.Address) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	return s.store.SetConfig(keyPaused, []byte{1})
}

func (s *Settings) Unpause(caller types.Address) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	return s.store.SetConfig(keyPaused, []byte{0})
}

// InitializeChainID records the chain id. It can succeed exactly once;
// later attempts fail and leave the stored id untouched.
func (s *Settings) InitializeChainID(caller types.Address, id *big.Int) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	if _, ok := s.store.GetConfig(keyChainID); ok {
		return ErrChainIDInitialized
	}
	return s.store.SetConfig(keyChainID, id.Bytes())
}

func (s *Settings) ChainID() *big.Int {
	v, ok := s.store.GetConfig(keyChainID)
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).SetBytes(v)
}

func (s *Settings) SetBaseFee(caller types.Address, fee *big.Int) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	return s.store.SetConfig(keyBaseFee, fee.Bytes())
}

func (s *Settings) BaseFee() *big.Int {
	v, _ := s.store.GetConfig(keyBaseFee)
	return new(big.Int).SetBytes(v)
}

func (s *Settings) SetCoinbase(caller, coinbase types.Address) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	return s.store.SetConfig(keyCoinbase, coinbase.Bytes())
}

func (s *Settings) Coinbase() types.Address {
	v, _ := s.store.GetConfig(keyCoinbase)
	return types.BytesToAddress(v)
}

func (s *Settings) SetPrevRandao(caller types.Address, randao types.Hash) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	return s.store.SetConfig(keyPrevRandao, randao.Bytes())
}

func (s *Settings) PrevRandao() types.Hash {
	v, _ := s.store.GetConfig(keyPrevRandao)
	return types.BytesToHash(v)
}

func (s *Settings) SetBlockGasLimit(caller types.Address, limit uint64) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], limit)
	return s.store.SetConfig(keyBlockGasLimit, buf[:])
}

func (s *Settings) BlockGasLimit() uint64 {
	v, ok := s.store.GetConfig(keyBlockGasLimit)
	if !ok || len(v) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(v)
}

func (s *Settings) SetNativeToken(caller, token types.Address) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	return s.store.SetConfig(keyNativeToken, token.Bytes())
}

func (s *Settings) NativeToken() types.Address {
	v, _ := s.store.GetConfig(keyNativeToken)
	return types.BytesToAddress(v)
}

func (s *Settings) SetAccountClassHash(caller types.Address, hash types.Hash) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	return s.store.SetConfig(keyAccountClassHash, hash.Bytes())
}

func (s *Settings) AccountClassHash() types.Hash {
	v, _ := s.store.GetConfig(keyAccountClassHash)
	return types.BytesToHash(v)
}

func (s *Settings) SetUninitializedClassHash(caller types.Address, hash types.Hash) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	return s.store.SetConfig(keyUninitializedHash, hash.Bytes())
}

func (s *Settings) UninitializedClassHash() types.Hash {
	v, _ := s.store.GetConfig(keyUninitializedHash)
	return types.BytesToHash(v)
}

// SetAuthorizedPrecompileCaller grants or revokes addr's right to invoke
// the guarded precompile surface.
func (s *Settings) SetAuthorizedPrecompileCaller(caller, addr types.Address, authorized bool) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	v := []byte{0}
	if authorized {
		v[0] = 1
	}
	return s.store.SetConfig(keyAuthorizedPrefix+addr.Hex(), v)
}

func (s *Settings) IsAuthorizedPrecompileCaller(addr types.Address) bool {
	v, ok := s.store.GetConfig(keyAuthorizedPrefix + addr.Hex())
	return ok && len(v) == 1 && v[0] == 1
}
