package state

import (
	"math/big"

	"github.com/oksanaphmn/kakarot/core/types"
)

// Backend is the committed world state underneath a StateDB. Reads are
// issued lazily as the EVM touches accounts; ApplyDiff persists the
// outcome of a finalised transaction.
type Backend interface {
	// Account returns the committed account, or nil if it does not exist.
	Account(addr types.Address) (*types.Account, error)
	// Code returns the contract code for an account by its code hash.
	Code(addr types.Address, codeHash types.Hash) ([]byte, error)
	// Storage returns the committed value of a storage slot, the zero
	// hash if unset.
	Storage(addr types.Address, key types.Hash) (types.Hash, error)
	// ApplyDiff writes a post-transaction state diff.
	ApplyDiff(diff Diff) error
}

// AccountDiff describes the post-state of a single touched account.
type AccountDiff struct {
	Balance *big.Int
	Nonce   uint64
	Code    []byte // nil when the code did not change
	Storage map[types.Hash]types.Hash
	Deleted bool // account destructed in this transaction
}

// Diff is the structured per-account outcome of a transaction, keyed by
// EVM address.
type Diff map[types.Address]*AccountDiff

// MemoryBackend keeps committed state in maps. Used in tests and for
// ephemeral call simulation.
type MemoryBackend struct {
	accounts map[types.Address]types.Account
	codes    map[types.Hash][]byte
	storage  map[types.Address]map[types.Hash]types.Hash
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		accounts: make(map[types.Address]types.Account),
		codes:    make(map[types.Hash][]byte),
		storage:  make(map[types.Address]map[types.Hash]types.Hash),
	}
}

func (b *MemoryBackend) Account(addr types.Address) (*types.Account, error) {
	acct, ok := b.accounts[addr]
	if !ok {
		return nil, nil
	}
	cp := acct
	cp.Balance = new(big.Int).Set(acct.Balance)
	return &cp, nil
}

func (b *MemoryBackend) Code(addr types.Address, codeHash types.Hash) ([]byte, error) {
	return b.codes[codeHash], nil
}

func (b *MemoryBackend) Storage(addr types.Address, key types.Hash) (types.Hash, error) {
	return b.storage[addr][key], nil
}

func (b *MemoryBackend) ApplyDiff(diff Diff) error {
	for addr, d := range diff {
		if d.Deleted {
			delete(b.accounts, addr)
			delete(b.storage, addr)
			continue
		}
		acct, ok := b.accounts[addr]
		if !ok {
			acct = types.NewAccount()
		}
		acct.Balance = new(big.Int).Set(d.Balance)
		acct.Nonce = d.Nonce
		if d.Code != nil {
			hash := codeHashOf(d.Code)
			acct.CodeHash = hash.Bytes()
			b.codes[hash] = d.Code
		}
		b.accounts[addr] = acct

		if len(d.Storage) > 0 {
			slots := b.storage[addr]
			if slots == nil {
				slots = make(map[types.Hash]types.Hash)
				b.storage[addr] = slots
			}
			for key, val := range d.Storage {
				if val == (types.Hash{}) {
					delete(slots, key)
				} else {
					slots[key] = val
				}
			}
		}
	}
	return nil
}

// SetAccount seeds an account directly, bypassing the diff path.
func (b *MemoryBackend) SetAccount(addr types.Address, acct types.Account) {
	b.accounts[addr] = acct
}

// SetStorage seeds a storage slot directly.
func (b *MemoryBackend) SetStorage(addr types.Address, key, val types.Hash) {
	slots := b.storage[addr]
	if slots == nil {
		slots = make(map[types.Hash]types.Hash)
		b.storage[addr] = slots
	}
	slots[key] = val
}

// SetCode seeds contract code directly, updating the account's code hash.
func (b *MemoryBackend) SetCode(addr types.Address, code []byte) {
	acct, ok := b.accounts[addr]
	if !ok {
		acct = types.NewAccount()
	}
	hash := codeHashOf(code)
	acct.CodeHash = hash.Bytes()
	b.accounts[addr] = acct
	b.codes[hash] = code
}
