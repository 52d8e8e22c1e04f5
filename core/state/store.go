package state

import (
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/golang/snappy"
	lru "github.com/hashicorp/golang-lru"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/oksanaphmn/kakarot/bridge"
	"github.com/oksanaphmn/kakarot/core/types"
)

// Key layout: one byte of namespace, then the backend identifier the
// directory derives for the address, then (for storage) the slot key.
const (
	prefixAccount = byte('a')
	prefixCode    = byte('c')
	prefixStorage = byte('s')
	prefixConfig  = byte('k')
)

const codeCacheSize = 1024

// storedAccount is the RLP shape of an account record at rest.
type storedAccount struct {
	Nonce    uint64
	Balance  *big.Int
	CodeHash []byte
}

// Store is a Backend persisted in LevelDB. Account records are RLP
// encoded under the backend identifier the AccountDirectory derives for
// their address; code blobs are snappy compressed, keyed by code hash
// and fronted by an LRU cache.
type Store struct {
	db        *leveldb.DB
	directory *bridge.AccountDirectory
	codeCache *lru.Cache // types.Hash -> []byte
}

// NewStore opens (or creates) a store at path.
func NewStore(path string, directory *bridge.AccountDirectory) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	cache, _ := lru.New(codeCacheSize)
	return &Store{db: db, directory: directory, codeCache: cache}, nil
}

func (st *Store) Close() error {
	return st.db.Close()
}

func (st *Store) accountKey(addr types.Address) []byte {
	id := st.directory.Resolve(addr)
	return append([]byte{prefixAccount}, id[:]...)
}

func (st *Store) storageKey(addr types.Address, key types.Hash) []byte {
	id := st.directory.Resolve(addr)
	k := make([]byte, 0, 1+len(id)+len(key))
	k = append(k, prefixStorage)
	k = append(k, id[:]...)
	k = append(k, key[:]...)
	return k
}

func codeKey(hash types.Hash) []byte {
	return append([]byte{prefixCode}, hash[:]...)
}

func (st *Store) Account(addr types.Address) (*types.Account, error) {
	blob, err := st.db.Get(st.accountKey(addr), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec storedAccount
	if err := rlp.DecodeBytes(blob, &rec); err != nil {
		return nil, err
	}
	return &types.Account{
		Nonce:    rec.Nonce,
		Balance:  rec.Balance,
		CodeHash: rec.CodeHash,
	}, nil
}

func (st *Store) Code(addr types.Address, codeHash types.Hash) ([]byte, error) {
	if cached, ok := st.codeCache.Get(codeHash); ok {
		return cached.([]byte), nil
	}
	blob, err := st.db.Get(codeKey(codeHash), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	code, err := snappy.Decode(nil, blob)
	if err != nil {
		return nil, err
	}
	st.codeCache.Add(codeHash, code)
	return code, nil
}

func (st *Store) Storage(addr types.Address, key types.Hash) (types.Hash, error) {
	blob, err := st.db.Get(st.storageKey(addr, key), nil)
	if err == leveldb.ErrNotFound {
		return types.Hash{}, nil
	}
	if err != nil {
		return types.Hash{}, err
	}
	return types.BytesToHash(blob), nil
}

// ApplyDiff writes a transaction's post-state in a single batch. Deleted
// accounts drop their record and all storage under their identifier.
func (st *Store) ApplyDiff(diff Diff) error {
	batch := new(leveldb.Batch)
	for addr, d := range diff {
		if d.Deleted {
			batch.Delete(st.accountKey(addr))
			if err := st.deleteStorage(addr, batch); err != nil {
				return err
			}
			continue
		}

		rec := storedAccount{
			Nonce:    d.Nonce,
			Balance:  d.Balance,
			CodeHash: types.EmptyCodeHash.Bytes(),
		}
		if d.Code != nil {
			hash := codeHashOf(d.Code)
			rec.CodeHash = hash.Bytes()
			batch.Put(codeKey(hash), snappy.Encode(nil, d.Code))
			st.codeCache.Add(hash, d.Code)
		} else if prev, err := st.Account(addr); err != nil {
			return err
		} else if prev != nil {
			rec.CodeHash = prev.CodeHash
		}

		blob, err := rlp.EncodeToBytes(&rec)
		if err != nil {
			return err
		}
		batch.Put(st.accountKey(addr), blob)

		for key, val := range d.Storage {
			if val == (types.Hash{}) {
				batch.Delete(st.storageKey(addr, key))
			} else {
				batch.Put(st.storageKey(addr, key), val.Bytes())
			}
		}
	}
	return st.db.Write(batch, nil)
}

func (st *Store) deleteStorage(addr types.Address, batch *leveldb.Batch) error {
	id := st.directory.Resolve(addr)
	prefix := append([]byte{prefixStorage}, id[:]...)
	iter := st.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		key := make([]byte, len(iter.Key()))
		copy(key, iter.Key())
		batch.Delete(key)
	}
	return iter.Error()
}

// GetConfig reads a chain-parameter entry from the config namespace.
func (st *Store) GetConfig(key string) ([]byte, bool) {
	blob, err := st.db.Get(append([]byte{prefixConfig}, key...), nil)
	if err != nil {
		return nil, false
	}
	return blob, true
}

// SetConfig writes a chain-parameter entry.
func (st *Store) SetConfig(key string, value []byte) error {
	return st.db.Put(append([]byte{prefixConfig}, key...), value, nil)
}

var _ Backend = (*Store)(nil)
var _ Backend = (*MemoryBackend)(nil)
