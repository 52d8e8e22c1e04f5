package state

import "github.com/oksanaphmn/kakarot/core/types"

// accessList tracks the addresses and storage slots warmed during a
// transaction (EIP-2929).
type accessList struct {
	addresses map[types.Address]map[types.Hash]struct{}
}

func newAccessList() *accessList {
	return &accessList{
		addresses: make(map[types.Address]map[types.Hash]struct{}),
	}
}

// AddAddress warms addr. Returns true if it was already present.
func (al *accessList) AddAddress(addr types.Address) bool {
	if _, ok := al.addresses[addr]; ok {
		return true
	}
	al.addresses[addr] = nil
	return false
}

// AddSlot warms (addr, slot), reporting whether each was already present.
func (al *accessList) AddSlot(addr types.Address, slot types.Hash) (addrPresent, slotPresent bool) {
	slots, addrPresent := al.addresses[addr]
	if slots == nil {
		slots = make(map[types.Hash]struct{})
		al.addresses[addr] = slots
	}
	if _, slotPresent = slots[slot]; !slotPresent {
		slots[slot] = struct{}{}
	}
	return addrPresent, slotPresent
}

func (al *accessList) ContainsAddress(addr types.Address) bool {
	_, ok := al.addresses[addr]
	return ok
}

func (al *accessList) ContainsSlot(addr types.Address, slot types.Hash) (addressOk, slotOk bool) {
	slots, ok := al.addresses[addr]
	if !ok {
		return false, false
	}
	_, slotOk = slots[slot]
	return true, slotOk
}

// DeleteAddress removes addr entirely. Only used by the journal, which
// guarantees no slots were added for addr after it.
func (al *accessList) DeleteAddress(addr types.Address) {
	delete(al.addresses, addr)
}

// DeleteSlot removes a single slot. Only used by the journal.
func (al *accessList) DeleteSlot(addr types.Address, slot types.Hash) {
	if slots, ok := al.addresses[addr]; ok {
		delete(slots, slot)
	}
}
