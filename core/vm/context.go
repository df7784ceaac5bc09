package vm

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Context defaults.
const (
	DefaultGasRemaining uint64 = 1_000_000
	DefaultGasPrice     uint64 = 20_000_000_000 // 20 gwei
	DefaultGasLimit            = BlockGasLimit
)

// ExecutionContext is the mutable state one simulated transaction carries
// between opcodes: only what feeds dynamic pricing, not full EVM state.
//
// A context is owned by exactly one analysis. Running several analyses in
// parallel requires one context each; no method takes a lock.
type ExecutionContext struct {
	memorySize uint64
	access     *AccessListTracker
	callDepth  uint64
	static     bool

	gasRemaining uint64
	gasPrice     uint64
	gasLimit     uint64

	address common.Address // callee, owner of the storage being priced
	caller  common.Address
	value   uint256.Int

	initial *contextSeed
}

// contextSeed remembers what the builder produced so Reset can restore it.
type contextSeed struct {
	gasRemaining uint64
	access       *AccessListTracker
}

// NewExecutionContext returns a context with default budget and no warm
// entries.
func NewExecutionContext() *ExecutionContext {
	return NewContextBuilder().Build()
}

// MemorySize returns the memory high-water mark in bytes.
func (c *ExecutionContext) MemorySize() uint64 { return c.memorySize }

// ExpandMemory raises the memory high-water mark to newSize. Smaller sizes
// are ignored, so memory never shrinks.
func (c *ExecutionContext) ExpandMemory(newSize uint64) {
	if newSize > c.memorySize {
		c.memorySize = newSize
	}
}

// MarkStorageAccessed warms the (address, key) pair.
func (c *ExecutionContext) MarkStorageAccessed(addr common.Address, key common.Hash) {
	c.access.TouchSlot(addr, key)
}

// IsStorageWarm reports whether (address, key) was accessed before.
func (c *ExecutionContext) IsStorageWarm(addr common.Address, key common.Hash) bool {
	return c.access.ContainsSlot(addr, key)
}

// MarkAddressAccessed warms the address.
func (c *ExecutionContext) MarkAddressAccessed(addr common.Address) {
	c.access.TouchAddress(addr)
}

// IsAddressWarm reports whether the address was accessed before.
func (c *ExecutionContext) IsAddressWarm(addr common.Address) bool {
	return c.access.ContainsAddress(addr)
}

// EnterCall increments the call depth.
func (c *ExecutionContext) EnterCall() {
	if c.callDepth < ^uint64(0) {
		c.callDepth++
	}
}

// ExitCall decrements the call depth, stopping at zero.
func (c *ExecutionContext) ExitCall() {
	if c.callDepth > 0 {
		c.callDepth--
	}
}

// CallDepth returns the current call depth.
func (c *ExecutionContext) CallDepth() uint64 { return c.callDepth }

// ConsumeGas deducts amount from the budget. On failure the budget is left
// untouched.
func (c *ExecutionContext) ConsumeGas(amount uint64) error {
	if amount > c.gasRemaining {
		return fmt.Errorf("%w: need %d, have %d", ErrOutOfGas, amount, c.gasRemaining)
	}
	c.gasRemaining -= amount
	return nil
}

// AvailableCallGas applies the EIP-150 rule: all but one 64th of the
// remaining gas may be forwarded to a callee.
func (c *ExecutionContext) AvailableCallGas() uint64 {
	return c.gasRemaining - c.gasRemaining/CallGasFraction
}

// GasRemaining returns the gas left in the budget.
func (c *ExecutionContext) GasRemaining() uint64 { return c.gasRemaining }

// GasPrice returns the gas price of the transaction.
func (c *ExecutionContext) GasPrice() uint64 { return c.gasPrice }

// GasLimit returns the gas limit the context was built with.
func (c *ExecutionContext) GasLimit() uint64 { return c.gasLimit }

// IsStatic reports whether execution is inside a static call.
func (c *ExecutionContext) IsStatic() bool { return c.static }

// Address returns the address of the executing contract.
func (c *ExecutionContext) Address() common.Address { return c.address }

// Caller returns the address that initiated the current call.
func (c *ExecutionContext) Caller() common.Address { return c.caller }

// Value returns a copy of the call value.
func (c *ExecutionContext) Value() *uint256.Int { return new(uint256.Int).Set(&c.value) }

// WarmAddressCount returns the size of the warm address set.
func (c *ExecutionContext) WarmAddressCount() int { return c.access.AddressCount() }

// WarmSlotCount returns the size of the warm storage set.
func (c *ExecutionContext) WarmSlotCount() int { return c.access.SlotCount() }

// Reset prepares the context for a new transaction: memory, call depth and
// warm sets go back to what the builder produced and the budget is refilled.
func (c *ExecutionContext) Reset() {
	c.memorySize = 0
	c.callDepth = 0
	c.gasRemaining = c.initial.gasRemaining
	c.access = c.initial.access.Copy()
}

// Clone returns an independent copy for what-if simulations.
func (c *ExecutionContext) Clone() *ExecutionContext {
	cpy := *c
	cpy.access = c.access.Copy()
	return &cpy
}

// ContextSnapshot is an immutable summary of a context, safe to keep after
// the context moves on.
type ContextSnapshot struct {
	MemorySize    uint64 `json:"memorySize" yaml:"memorySize"`
	WarmAddresses int    `json:"warmAddresses" yaml:"warmAddresses"`
	WarmSlots     int    `json:"warmSlots" yaml:"warmSlots"`
	CallDepth     uint64 `json:"callDepth" yaml:"callDepth"`
	GasRemaining  uint64 `json:"gasRemaining" yaml:"gasRemaining"`
	Static        bool   `json:"static" yaml:"static"`
}

// Snapshot captures the current state.
func (c *ExecutionContext) Snapshot() ContextSnapshot {
	return ContextSnapshot{
		MemorySize:    c.memorySize,
		WarmAddresses: c.access.AddressCount(),
		WarmSlots:     c.access.SlotCount(),
		CallDepth:     c.callDepth,
		GasRemaining:  c.gasRemaining,
		Static:        c.static,
	}
}

// ContextBuilder assembles an ExecutionContext.
type ContextBuilder struct {
	ctx *ExecutionContext
}

// NewContextBuilder starts from the defaults: 1M gas remaining at 20 gwei,
// a 30M gas limit, zero addresses and zero value.
func NewContextBuilder() *ContextBuilder {
	return &ContextBuilder{ctx: &ExecutionContext{
		access:       NewAccessListTracker(),
		gasRemaining: DefaultGasRemaining,
		gasPrice:     DefaultGasPrice,
		gasLimit:     DefaultGasLimit,
	}}
}

// WithAddress sets the executing (callee) address.
func (b *ContextBuilder) WithAddress(addr common.Address) *ContextBuilder {
	b.ctx.address = addr
	return b
}

// WithCaller sets the caller address.
func (b *ContextBuilder) WithCaller(addr common.Address) *ContextBuilder {
	b.ctx.caller = addr
	return b
}

// WithValue sets the call value.
func (b *ContextBuilder) WithValue(v *uint256.Int) *ContextBuilder {
	if v != nil {
		b.ctx.value.Set(v)
	}
	return b
}

// WithGas sets the budget, the gas price and the gas limit.
func (b *ContextBuilder) WithGas(remaining, price, limit uint64) *ContextBuilder {
	b.ctx.gasRemaining = remaining
	b.ctx.gasPrice = price
	b.ctx.gasLimit = limit
	return b
}

// WithWarmAddresses pre-warms the given addresses.
func (b *ContextBuilder) WithWarmAddresses(addrs ...common.Address) *ContextBuilder {
	for _, a := range addrs {
		b.ctx.access.TouchAddress(a)
	}
	return b
}

// WithWarmStorage pre-warms storage keys of addr.
func (b *ContextBuilder) WithWarmStorage(addr common.Address, keys ...common.Hash) *ContextBuilder {
	for _, k := range keys {
		b.ctx.access.TouchSlot(addr, k)
	}
	return b
}

// WithStatic sets the static-call flag.
func (b *ContextBuilder) WithStatic(static bool) *ContextBuilder {
	b.ctx.static = static
	return b
}

// Build returns the context. The builder must not be reused afterwards.
func (b *ContextBuilder) Build() *ExecutionContext {
	c := b.ctx
	c.initial = &contextSeed{
		gasRemaining: c.gasRemaining,
		access:       c.access.Copy(),
	}
	return c
}
