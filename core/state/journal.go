package state

import (
	"fmt"
	"math/big"

	"github.com/oksanaphmn/kakarot/core/types"
)

// journalEntry is a single revertible change to the state.
type journalEntry interface {
	revert(s *StateDB)
}

// journal is the append-only log of state changes made since the last
// commit, together with the stack of open revisions. Revisions must be
// reverted newest-first; reverting to an unknown or already-reverted
// revision id panics.
type journal struct {
	entries   []journalEntry
	revisions []revision
	nextID    int
}

type revision struct {
	id    int
	index int // length of entries when the revision was taken
}

func newJournal() *journal {
	return &journal{}
}

func (j *journal) append(entry journalEntry) {
	j.entries = append(j.entries, entry)
}

func (j *journal) snapshot() int {
	id := j.nextID
	j.nextID++
	j.revisions = append(j.revisions, revision{id: id, index: len(j.entries)})
	return id
}

func (j *journal) revertToSnapshot(id int, s *StateDB) {
	// Find the revision on the stack. Anything above it is discarded
	// along with it.
	idx := -1
	for i := len(j.revisions) - 1; i >= 0; i-- {
		if j.revisions[i].id == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		panic(fmt.Errorf("revision id %d cannot be reverted", id))
	}
	entryIdx := j.revisions[idx].index

	for i := len(j.entries) - 1; i >= entryIdx; i-- {
		j.entries[i].revert(s)
	}
	j.entries = j.entries[:entryIdx]
	j.revisions = j.revisions[:idx]
}

// reset drops all entries and revisions, keeping allocated capacity.
func (j *journal) reset() {
	j.entries = j.entries[:0]
	j.revisions = j.revisions[:0]
	j.nextID = 0
}

type createObjectChange struct {
	addr types.Address
	prev *stateObject // nil if the account did not exist before
}

func (ch createObjectChange) revert(s *StateDB) {
	if ch.prev == nil {
		delete(s.objects, ch.addr)
	} else {
		s.objects[ch.addr] = ch.prev
	}
}

type createContractChange struct {
	addr types.Address
}

func (ch createContractChange) revert(s *StateDB) {
	if obj := s.getStateObject(ch.addr); obj != nil {
		obj.createdInTx = false
	}
}

type balanceChange struct {
	addr types.Address
	prev *big.Int
}

func (ch balanceChange) revert(s *StateDB) {
	if obj := s.getStateObject(ch.addr); obj != nil {
		obj.account.Balance = ch.prev
	}
}

type nonceChange struct {
	addr types.Address
	prev uint64
}

func (ch nonceChange) revert(s *StateDB) {
	if obj := s.getStateObject(ch.addr); obj != nil {
		obj.account.Nonce = ch.prev
	}
}

type codeChange struct {
	addr     types.Address
	prevCode []byte
	prevHash []byte
}

func (ch codeChange) revert(s *StateDB) {
	if obj := s.getStateObject(ch.addr); obj != nil {
		obj.code = ch.prevCode
		obj.account.CodeHash = ch.prevHash
	}
}

type storageChange struct {
	addr      types.Address
	key       types.Hash
	prev      types.Hash
	prevDirty bool // key was already in dirtyStorage before this write
}

func (ch storageChange) revert(s *StateDB) {
	if obj := s.getStateObject(ch.addr); obj != nil {
		if ch.prevDirty {
			obj.dirtyStorage[ch.key] = ch.prev
		} else {
			delete(obj.dirtyStorage, ch.key)
		}
	}
}

type selfDestructChange struct {
	addr types.Address
}

func (ch selfDestructChange) revert(s *StateDB) {
	if obj := s.getStateObject(ch.addr); obj != nil {
		obj.selfDestructed = false
	}
}

type accessListAddAccountChange struct {
	addr types.Address
}

func (ch accessListAddAccountChange) revert(s *StateDB) {
	s.accessList.DeleteAddress(ch.addr)
}

type accessListAddSlotChange struct {
	addr types.Address
	slot types.Hash
}

func (ch accessListAddSlotChange) revert(s *StateDB) {
	s.accessList.DeleteSlot(ch.addr, ch.slot)
}

type transientStorageChange struct {
	addr types.Address
	key  types.Hash
	prev types.Hash
}

func (ch transientStorageChange) revert(s *StateDB) {
	s.setTransientState(ch.addr, ch.key, ch.prev)
}

type logChange struct{}

func (ch logChange) revert(s *StateDB) {
	s.logs = s.logs[:len(s.logs)-1]
}

type refundChange struct {
	prev uint64
}

func (ch refundChange) revert(s *StateDB) {
	s.refund = ch.prev
}
