// Package bridge maintains the mapping between EVM addresses and the
// identifiers of the accounts backing them in the foreign runtime.
package bridge

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/oksanaphmn/kakarot/core/types"
	"github.com/oksanaphmn/kakarot/crypto"
)

// BackendID is the 32-byte identifier of a backend account.
type BackendID [32]byte

func (id BackendID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// ErrAlreadyRegistered is returned on a second registration attempt for
// the same EVM address.
var ErrAlreadyRegistered = errors.New("Kakarot: account already registered")

const resolveCacheSize = 4096

// AccountDirectory derives and records the bridge between EVM addresses
// and backend account identifiers. Derivation is pure; registration
// happens once per address and pins the derived identifier.
type AccountDirectory struct {
	classHash types.Hash
	salt      types.Hash

	mu         sync.RWMutex
	registered map[types.Address]BackendID

	resolveCache *lru.Cache // types.Address -> BackendID
}

// NewAccountDirectory creates a directory deriving identifiers from the
// given deployment class hash and salt constant.
func NewAccountDirectory(classHash, salt types.Hash) *AccountDirectory {
	cache, _ := lru.New(resolveCacheSize)
	return &AccountDirectory{
		classHash:    classHash,
		salt:         salt,
		registered:   make(map[types.Address]BackendID),
		resolveCache: cache,
	}
}

// Resolve derives the backend identifier for an EVM address. The result
// is a pure function of the address and the directory's class hash and
// salt; no registration is required.
func (d *AccountDirectory) Resolve(addr types.Address) BackendID {
	if cached, ok := d.resolveCache.Get(addr); ok {
		return cached.(BackendID)
	}
	buf := make([]byte, 0, len(d.classHash)+len(addr)+len(d.salt))
	buf = append(buf, d.classHash[:]...)
	buf = append(buf, addr[:]...)
	buf = append(buf, d.salt[:]...)
	var id BackendID
	copy(id[:], crypto.Keccak256(buf))
	d.resolveCache.Add(addr, id)
	return id
}

// Register records the bridge entry for addr. It fails if addr is
// already registered, or if caller is not the identifier Resolve derives
// for addr.
func (d *AccountDirectory) Register(caller BackendID, addr types.Address) error {
	expected := d.Resolve(addr)
	if caller != expected {
		return fmt.Errorf("Kakarot: Caller should be %s, got %s", expected, caller)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.registered[addr]; ok {
		return ErrAlreadyRegistered
	}
	d.registered[addr] = expected
	return nil
}

// Lookup returns the recorded backend identifier for addr.
func (d *AccountDirectory) Lookup(addr types.Address) (BackendID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.registered[addr]
	return id, ok
}

// Registered reports whether addr has a recorded bridge entry.
func (d *AccountDirectory) Registered(addr types.Address) bool {
	_, ok := d.Lookup(addr)
	return ok
}

// DeploymentAddress computes the EVM address a deployment lands on. For
// CREATE the address depends on the deployer and its nonce; for CREATE2
// on the deployer, a caller-chosen salt and the init code hash.
func DeploymentAddress(deployer types.Address, nonceOrSalt *big.Int, initCodeHash []byte, isCreate2 bool) types.Address {
	if isCreate2 {
		return crypto.Create2Address(deployer, types.BigToHash(nonceOrSalt), initCodeHash)
	}
	return crypto.CreateAddress(deployer, nonceOrSalt.Uint64())
}
