package vm

// access_list_tracker.go implements EIP-2929 warm/cold bookkeeping for a
// single simulated transaction: a warm address set and a warm storage slot
// set, both only ever growing until an explicit reset.

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
)

// storageSlot identifies one storage word of one account.
type storageSlot struct {
	Address common.Address
	Key     common.Hash
}

// AccessListTracker holds the warm sets. It is not safe for concurrent use;
// every tracker belongs to exactly one execution context.
type AccessListTracker struct {
	addresses mapset.Set[common.Address]
	slots     mapset.Set[storageSlot]
}

// NewAccessListTracker creates an empty tracker.
func NewAccessListTracker() *AccessListTracker {
	return &AccessListTracker{
		addresses: mapset.NewThreadUnsafeSet[common.Address](),
		slots:     mapset.NewThreadUnsafeSet[storageSlot](),
	}
}

// ContainsAddress returns true if the address is warm.
func (alt *AccessListTracker) ContainsAddress(addr common.Address) bool {
	return alt.addresses.Contains(addr)
}

// ContainsSlot returns true if the slot is warm.
func (alt *AccessListTracker) ContainsSlot(addr common.Address, key common.Hash) bool {
	return alt.slots.Contains(storageSlot{addr, key})
}

// TouchAddress warms an address. It returns true if the address was already
// warm.
func (alt *AccessListTracker) TouchAddress(addr common.Address) bool {
	return !alt.addresses.Add(addr)
}

// TouchSlot warms a storage slot. It returns true if the slot was already
// warm. The owning address is not implicitly warmed.
func (alt *AccessListTracker) TouchSlot(addr common.Address, key common.Hash) bool {
	return !alt.slots.Add(storageSlot{addr, key})
}

// AddressCount returns the number of warm addresses.
func (alt *AccessListTracker) AddressCount() int { return alt.addresses.Cardinality() }

// SlotCount returns the number of warm storage slots.
func (alt *AccessListTracker) SlotCount() int { return alt.slots.Cardinality() }

// Addresses returns the warm addresses in unspecified order.
func (alt *AccessListTracker) Addresses() []common.Address { return alt.addresses.ToSlice() }

// Clear empties both warm sets.
func (alt *AccessListTracker) Clear() {
	alt.addresses.Clear()
	alt.slots.Clear()
}

// Copy returns an independent deep copy.
func (alt *AccessListTracker) Copy() *AccessListTracker {
	return &AccessListTracker{
		addresses: alt.addresses.Clone(),
		slots:     alt.slots.Clone(),
	}
}
