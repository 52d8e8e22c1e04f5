package state

import (
	"math/big"

	"github.com/oksanaphmn/kakarot/core/types"
	"github.com/oksanaphmn/kakarot/crypto"
)

// stateObject is the in-memory image of a single account while a
// transaction executes. Committed storage is loaded lazily from the
// backend and cached in originStorage; writes land in dirtyStorage.
type stateObject struct {
	account        types.Account
	code           []byte
	codeLoaded     bool
	originStorage  map[types.Hash]types.Hash
	dirtyStorage   map[types.Hash]types.Hash
	selfDestructed bool
	createdInTx    bool
	newContract    bool // did not exist in the backend
	dirty          bool // balance, nonce or code modified
}

func newStateObject(acct types.Account) *stateObject {
	return &stateObject{
		account:       acct,
		originStorage: make(map[types.Hash]types.Hash),
		dirtyStorage:  make(map[types.Hash]types.Hash),
	}
}

func codeHashOf(code []byte) types.Hash {
	return crypto.Keccak256Hash(code)
}

// StateDB layers journaled, revertible transaction state over a Backend
// holding committed accounts.
type StateDB struct {
	backend Backend

	objects map[types.Address]*stateObject
	journal *journal

	logs       []*types.Log
	refund     uint64
	accessList *accessList
	transient  map[types.Address]map[types.Hash]types.Hash

	// First backend error encountered. Reads after an error return zero
	// values; callers check Error() before committing.
	dbErr error
}

// New creates a StateDB reading committed state from backend.
func New(backend Backend) *StateDB {
	return &StateDB{
		backend:    backend,
		objects:    make(map[types.Address]*stateObject),
		journal:    newJournal(),
		accessList: newAccessList(),
		transient:  make(map[types.Address]map[types.Hash]types.Hash),
	}
}

// Error returns the first backend failure observed, if any.
func (s *StateDB) Error() error {
	return s.dbErr
}

func (s *StateDB) setError(err error) {
	if s.dbErr == nil {
		s.dbErr = err
	}
}

// getStateObject returns the account image for addr, loading it from the
// backend on first touch. Returns nil for nonexistent accounts.
func (s *StateDB) getStateObject(addr types.Address) *stateObject {
	if obj, ok := s.objects[addr]; ok {
		return obj
	}
	acct, err := s.backend.Account(addr)
	if err != nil {
		s.setError(err)
		return nil
	}
	if acct == nil {
		return nil
	}
	obj := newStateObject(*acct)
	s.objects[addr] = obj
	return obj
}

func (s *StateDB) getOrNewStateObject(addr types.Address) *stateObject {
	if obj := s.getStateObject(addr); obj != nil {
		return obj
	}
	obj := newStateObject(types.NewAccount())
	obj.newContract = true
	s.journal.append(createObjectChange{addr: addr})
	s.objects[addr] = obj
	return obj
}

// CreateAccount makes addr exist. An already existing account keeps its
// balance but loses nothing else; this mirrors value transfers to fresh
// addresses.
func (s *StateDB) CreateAccount(addr types.Address) {
	prev := s.getStateObject(addr)
	obj := newStateObject(types.NewAccount())
	obj.newContract = prev == nil
	if prev != nil {
		obj.account.Balance = new(big.Int).Set(prev.account.Balance)
		obj.dirty = prev.dirty
	}
	s.journal.append(createObjectChange{addr: addr, prev: prev})
	s.objects[addr] = obj
}

// CreateContract marks addr as a contract created in the current
// transaction, making it eligible for SELFDESTRUCT deletion (EIP-6780).
func (s *StateDB) CreateContract(addr types.Address) {
	obj := s.getOrNewStateObject(addr)
	if !obj.createdInTx {
		obj.createdInTx = true
		s.journal.append(createContractChange{addr: addr})
	}
}

func (s *StateDB) GetBalance(addr types.Address) *big.Int {
	if obj := s.getStateObject(addr); obj != nil {
		return new(big.Int).Set(obj.account.Balance)
	}
	return new(big.Int)
}

func (s *StateDB) AddBalance(addr types.Address, amount *big.Int) {
	obj := s.getOrNewStateObject(addr)
	s.journal.append(balanceChange{addr: addr, prev: obj.account.Balance})
	obj.account.Balance = new(big.Int).Add(obj.account.Balance, amount)
	obj.dirty = true
}

func (s *StateDB) SubBalance(addr types.Address, amount *big.Int) {
	obj := s.getOrNewStateObject(addr)
	s.journal.append(balanceChange{addr: addr, prev: obj.account.Balance})
	obj.account.Balance = new(big.Int).Sub(obj.account.Balance, amount)
	obj.dirty = true
}

func (s *StateDB) GetNonce(addr types.Address) uint64 {
	if obj := s.getStateObject(addr); obj != nil {
		return obj.account.Nonce
	}
	return 0
}

func (s *StateDB) SetNonce(addr types.Address, nonce uint64) {
	obj := s.getOrNewStateObject(addr)
	s.journal.append(nonceChange{addr: addr, prev: obj.account.Nonce})
	obj.account.Nonce = nonce
	obj.dirty = true
}

func (s *StateDB) GetCode(addr types.Address) []byte {
	obj := s.getStateObject(addr)
	if obj == nil {
		return nil
	}
	s.loadCode(addr, obj)
	return obj.code
}

func (s *StateDB) loadCode(addr types.Address, obj *stateObject) {
	if obj.codeLoaded {
		return
	}
	obj.codeLoaded = true
	hash := types.BytesToHash(obj.account.CodeHash)
	if hash == types.EmptyCodeHash || hash == (types.Hash{}) {
		return
	}
	code, err := s.backend.Code(addr, hash)
	if err != nil {
		s.setError(err)
		return
	}
	obj.code = code
}

func (s *StateDB) SetCode(addr types.Address, code []byte) {
	obj := s.getOrNewStateObject(addr)
	s.loadCode(addr, obj)
	prevHash := make([]byte, len(obj.account.CodeHash))
	copy(prevHash, obj.account.CodeHash)
	s.journal.append(codeChange{addr: addr, prevCode: obj.code, prevHash: prevHash})
	obj.code = code
	obj.codeLoaded = true
	obj.account.CodeHash = codeHashOf(code).Bytes()
	obj.dirty = true
}

func (s *StateDB) GetCodeHash(addr types.Address) types.Hash {
	if obj := s.getStateObject(addr); obj != nil {
		return types.BytesToHash(obj.account.CodeHash)
	}
	return types.Hash{}
}

func (s *StateDB) GetCodeSize(addr types.Address) int {
	return len(s.GetCode(addr))
}

func (s *StateDB) GetState(addr types.Address, key types.Hash) types.Hash {
	obj := s.getStateObject(addr)
	if obj == nil {
		return types.Hash{}
	}
	if val, ok := obj.dirtyStorage[key]; ok {
		return val
	}
	return s.committedState(addr, obj, key)
}

func (s *StateDB) GetCommittedState(addr types.Address, key types.Hash) types.Hash {
	obj := s.getStateObject(addr)
	if obj == nil {
		return types.Hash{}
	}
	return s.committedState(addr, obj, key)
}

func (s *StateDB) committedState(addr types.Address, obj *stateObject, key types.Hash) types.Hash {
	if val, ok := obj.originStorage[key]; ok {
		return val
	}
	// Accounts that never hit the backend have no committed slots.
	if obj.newContract {
		return types.Hash{}
	}
	val, err := s.backend.Storage(addr, key)
	if err != nil {
		s.setError(err)
		return types.Hash{}
	}
	obj.originStorage[key] = val
	return val
}

func (s *StateDB) SetState(addr types.Address, key, value types.Hash) {
	obj := s.getOrNewStateObject(addr)
	prev, prevDirty := obj.dirtyStorage[key]
	if !prevDirty {
		prev = s.committedState(addr, obj, key)
	}
	if prev == value {
		return
	}
	s.journal.append(storageChange{addr: addr, key: key, prev: prev, prevDirty: prevDirty})
	obj.dirtyStorage[key] = value
}

func (s *StateDB) GetTransientState(addr types.Address, key types.Hash) types.Hash {
	return s.transient[addr][key]
}

func (s *StateDB) SetTransientState(addr types.Address, key, value types.Hash) {
	prev := s.GetTransientState(addr, key)
	if prev == value {
		return
	}
	s.journal.append(transientStorageChange{addr: addr, key: key, prev: prev})
	s.setTransientState(addr, key, value)
}

func (s *StateDB) setTransientState(addr types.Address, key, value types.Hash) {
	slots, ok := s.transient[addr]
	if !ok {
		if value == (types.Hash{}) {
			return
		}
		slots = make(map[types.Hash]types.Hash)
		s.transient[addr] = slots
	}
	slots[key] = value
}

func (s *StateDB) SelfDestruct(addr types.Address) {
	obj := s.getStateObject(addr)
	if obj == nil || obj.selfDestructed {
		return
	}
	s.journal.append(selfDestructChange{addr: addr})
	obj.selfDestructed = true
}

func (s *StateDB) HasSelfDestructed(addr types.Address) bool {
	if obj := s.getStateObject(addr); obj != nil {
		return obj.selfDestructed
	}
	return false
}

func (s *StateDB) CreatedInTransaction(addr types.Address) bool {
	if obj := s.getStateObject(addr); obj != nil {
		return obj.createdInTx
	}
	return false
}

func (s *StateDB) Exist(addr types.Address) bool {
	return s.getStateObject(addr) != nil
}

func (s *StateDB) Empty(addr types.Address) bool {
	obj := s.getStateObject(addr)
	if obj == nil {
		return true
	}
	return obj.account.Nonce == 0 &&
		obj.account.Balance.Sign() == 0 &&
		types.BytesToHash(obj.account.CodeHash) == types.EmptyCodeHash
}

func (s *StateDB) Snapshot() int {
	return s.journal.snapshot()
}

func (s *StateDB) RevertToSnapshot(id int) {
	s.journal.revertToSnapshot(id, s)
}

func (s *StateDB) AddLog(log *types.Log) {
	s.journal.append(logChange{})
	log.Index = uint(len(s.logs))
	s.logs = append(s.logs, log)
}

// Logs returns the logs emitted so far in the current transaction.
func (s *StateDB) Logs() []*types.Log {
	return s.logs
}

func (s *StateDB) AddRefund(gas uint64) {
	s.journal.append(refundChange{prev: s.refund})
	s.refund += gas
}

func (s *StateDB) SubRefund(gas uint64) {
	s.journal.append(refundChange{prev: s.refund})
	if gas > s.refund {
		panic("refund counter below zero")
	}
	s.refund -= gas
}

func (s *StateDB) GetRefund() uint64 {
	return s.refund
}

func (s *StateDB) AddAddressToAccessList(addr types.Address) {
	if !s.accessList.AddAddress(addr) {
		s.journal.append(accessListAddAccountChange{addr: addr})
	}
}

func (s *StateDB) AddSlotToAccessList(addr types.Address, slot types.Hash) {
	addrPresent, slotPresent := s.accessList.AddSlot(addr, slot)
	if !addrPresent {
		s.journal.append(accessListAddAccountChange{addr: addr})
	}
	if !slotPresent {
		s.journal.append(accessListAddSlotChange{addr: addr, slot: slot})
	}
}

func (s *StateDB) AddressInAccessList(addr types.Address) bool {
	return s.accessList.ContainsAddress(addr)
}

func (s *StateDB) SlotInAccessList(addr types.Address, slot types.Hash) (addressOk, slotOk bool) {
	return s.accessList.ContainsSlot(addr, slot)
}

// Finalise sweeps accounts scheduled for destruction and builds the
// structured post-state diff of the transaction. Per-transaction state
// (journal, refund counter, transient storage, access list, logs) is
// reset; committed images stay cached for the next transaction.
func (s *StateDB) Finalise() Diff {
	diff := make(Diff)
	for addr, obj := range s.objects {
		switch {
		case obj.selfDestructed:
			diff[addr] = &AccountDiff{Deleted: true}
			delete(s.objects, addr)
		case obj.dirty || len(obj.dirtyStorage) > 0:
			d := &AccountDiff{
				Balance: new(big.Int).Set(obj.account.Balance),
				Nonce:   obj.account.Nonce,
			}
			if obj.dirty && types.BytesToHash(obj.account.CodeHash) != types.EmptyCodeHash && obj.code != nil {
				d.Code = obj.code
			}
			if len(obj.dirtyStorage) > 0 {
				d.Storage = make(map[types.Hash]types.Hash, len(obj.dirtyStorage))
				for key, val := range obj.dirtyStorage {
					d.Storage[key] = val
					obj.originStorage[key] = val
				}
				obj.dirtyStorage = make(map[types.Hash]types.Hash)
			}
			diff[addr] = d
			obj.dirty = false
			obj.newContract = false
			obj.createdInTx = false
		default:
			obj.createdInTx = false
		}
	}
	s.journal.reset()
	s.refund = 0
	s.logs = nil
	s.accessList = newAccessList()
	s.transient = make(map[types.Address]map[types.Hash]types.Hash)
	return diff
}

// Commit finalises the current transaction and persists its diff to the
// backend.
func (s *StateDB) Commit() (Diff, error) {
	if s.dbErr != nil {
		return nil, s.dbErr
	}
	diff := s.Finalise()
	if err := s.backend.ApplyDiff(diff); err != nil {
		return nil, err
	}
	return diff, nil
}
