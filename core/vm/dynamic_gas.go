package vm

// dynamic_gas.go prices single opcodes: the fork-effective static cost from
// the registry plus a surcharge that depends on the fork, the operands and
// the execution context (EIP-2929 access lists, memory expansion, value
// transfers and contract creation).

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/holiman/uint256"

	"github.com/eth2030/evmgas/core/forks"
)

// Operands are the stack inputs an opcode is priced with, top of stack
// first, in EVM order.
type Operands []uint256.Int

// Ops builds Operands from small integers.
func Ops(vals ...uint64) Operands {
	out := make(Operands, len(vals))
	for i, v := range vals {
		out[i].SetUint64(v)
	}
	return out
}

// GasSchedule holds the surcharge constants. The defaults are mainnet values;
// overriding them allows what-if pricing.
type GasSchedule struct {
	SloadPreBerlin      uint64 // flat SLOAD price before EIP-2929 (800)
	ColdSload           uint64 // first SLOAD of a slot (2100)
	WarmStorageRead     uint64 // repeated SLOAD, warm account access (100)
	ColdAccountAccess   uint64 // first touch of an address (2600)
	SstoreColdSurcharge uint64 // SSTORE to a cold slot (2100)
	TransientAccess     uint64 // TLOAD / TSTORE (100)

	CallValueTransfer uint64 // CALL with non-zero value (9000)
	CallNewAccount    uint64 // value sent to an account assumed empty (25000)

	InitCodeWord  uint64 // per initcode word, EIP-3860 (2)
	Keccak256Word uint64 // per hashed word (6)
	CopyWord      uint64 // per copied word (3)
	LogTopic      uint64 // per LOG topic (375)
	LogData       uint64 // per LOG data byte (8)
}

// DefaultGasSchedule returns mainnet surcharge constants.
func DefaultGasSchedule() GasSchedule {
	return GasSchedule{
		SloadPreBerlin:      SloadGasPreBerlin,
		ColdSload:           ColdSloadCost,
		WarmStorageRead:     WarmStorageReadCost,
		ColdAccountAccess:   ColdAccountAccessCost,
		SstoreColdSurcharge: SstoreColdSurcharge,
		TransientAccess:     TransientAccessCost,

		CallValueTransfer: CallValueTransferGas,
		CallNewAccount:    CallNewAccountGas,

		InitCodeWord:  InitCodeWordGas,
		Keccak256Word: Keccak256WordGas,
		CopyWord:      CopyGas,
		LogTopic:      LogTopicGas,
		LogData:       LogDataGas,
	}
}

// StepCost is the price of one opcode occurrence.
type StepCost struct {
	Index   int    `json:"index" yaml:"index"`
	Op      OpCode `json:"-" yaml:"-"`
	Name    string `json:"opcode" yaml:"opcode"`
	Base    uint64 `json:"base" yaml:"base"`
	Dynamic uint64 `json:"dynamic" yaml:"dynamic"`
	Total   uint64 `json:"total" yaml:"total"`

	// CallGas is the gas a call opcode would forward: the requested amount
	// capped by the EIP-150 all-but-one-64th rule. Zero for other opcodes.
	CallGas uint64 `json:"callGas,omitempty" yaml:"callGas,omitempty"`
}

// CalculatorOption configures a GasCalculator.
type CalculatorOption func(*GasCalculator)

// WithSchedule replaces the surcharge constants.
func WithSchedule(s GasSchedule) CalculatorOption {
	return func(c *GasCalculator) { c.schedule = s }
}

// WithColdAsEmpty controls the new-account surcharge of value-bearing CALLs.
// The calculator has no account state, so by default an address that is
// still cold is assumed not to exist. A warm address may nevertheless be an
// empty account, and a cold one may well exist; disabling the assumption
// drops the 25000 surcharge entirely.
func WithColdAsEmpty(enabled bool) CalculatorOption {
	return func(c *GasCalculator) { c.coldIsEmpty = enabled }
}

// GasCalculator prices opcodes at one fork. It holds no mutable state and is
// safe for concurrent use; contexts passed to it are not.
type GasCalculator struct {
	registry    *ForkRegistry
	fork        forks.Fork
	schedule    GasSchedule
	coldIsEmpty bool
}

// NewGasCalculator binds a calculator to a registry and a fork.
func NewGasCalculator(registry *ForkRegistry, fork forks.Fork, opts ...CalculatorOption) *GasCalculator {
	c := &GasCalculator{
		registry:    registry,
		fork:        fork,
		schedule:    DefaultGasSchedule(),
		coldIsEmpty: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fork returns the fork the calculator prices at.
func (c *GasCalculator) Fork() forks.Fork { return c.fork }

// Registry returns the backing registry.
func (c *GasCalculator) Registry() *ForkRegistry { return c.registry }

// SingleOpcodeCost returns the total price of op without touching ctx.
func (c *GasCalculator) SingleOpcodeCost(op OpCode, ctx *ExecutionContext, operands Operands) (uint64, error) {
	cost, err := c.Cost(op, ctx, operands)
	if err != nil {
		return 0, err
	}
	return cost.Total, nil
}

// Cost prices op against ctx without mutating it.
func (c *GasCalculator) Cost(op OpCode, ctx *ExecutionContext, operands Operands) (StepCost, error) {
	cost, _, err := c.price(op, ctx, operands)
	return cost, err
}

// Execute prices op and, only if pricing succeeds, applies its side effects
// to ctx. The charge never observes the effects of its own opcode: a cold
// slot is billed cold and becomes warm afterwards.
func (c *GasCalculator) Execute(op OpCode, ctx *ExecutionContext, operands Operands) (StepCost, error) {
	cost, fx, err := c.price(op, ctx, operands)
	if err != nil {
		return StepCost{}, err
	}
	fx.apply(ctx)
	return cost, nil
}

// Apply is Execute without the price.
func (c *GasCalculator) Apply(op OpCode, ctx *ExecutionContext, operands Operands) error {
	_, err := c.Execute(op, ctx, operands)
	return err
}

func (c *GasCalculator) price(op OpCode, ctx *ExecutionContext, operands Operands) (StepCost, effects, error) {
	meta, err := c.registry.Lookup(c.fork, op)
	if err != nil {
		return StepCost{}, effects{}, err
	}
	base := EffectiveGasCost(meta, c.fork)
	dyn, fx, err := c.dynamicGas(op, ctx, operands)
	if err != nil {
		return StepCost{}, effects{}, fmt.Errorf("%s: %w", meta.Name, err)
	}
	total, overflow := math.SafeAdd(base, dyn)
	if overflow {
		return StepCost{}, effects{}, fmt.Errorf("%s: %w", meta.Name, ErrGasUintOverflow)
	}
	cost := StepCost{Op: op, Name: meta.Name, Base: base, Dynamic: dyn, Total: total}
	if op.IsCall() {
		cost.CallGas = forwardedGas(ctx, &operands[0])
	}
	return cost, fx, nil
}

// forwardedGas caps the requested call gas at what the caller may forward.
func forwardedGas(ctx *ExecutionContext, requested *uint256.Int) uint64 {
	avail := ctx.AvailableCallGas()
	if !requested.IsUint64() || requested.Uint64() > avail {
		return avail
	}
	return requested.Uint64()
}

// effects are the context mutations an opcode causes once charged.
type effects struct {
	memEnd    uint64
	slot      *storageSlot
	addr      *common.Address
	enterCall bool
	exitCall  bool
}

func (fx effects) apply(ctx *ExecutionContext) {
	if fx.slot != nil {
		ctx.MarkStorageAccessed(fx.slot.Address, fx.slot.Key)
	}
	if fx.addr != nil {
		ctx.MarkAddressAccessed(*fx.addr)
	}
	ctx.ExpandMemory(fx.memEnd)
	if fx.enterCall {
		ctx.EnterCall()
	}
	if fx.exitCall {
		ctx.ExitCall()
	}
}

// gasSum accumulates gas and remembers whether any step overflowed.
type gasSum struct {
	total    uint64
	overflow bool
}

func (s *gasSum) add(v uint64) {
	if !s.overflow {
		s.total, s.overflow = math.SafeAdd(s.total, v)
	}
}

func (s *gasSum) addMul(a, b uint64) {
	prod, overflow := math.SafeMul(a, b)
	if overflow {
		s.overflow = true
		return
	}
	s.add(prod)
}

func (s *gasSum) result() (uint64, error) {
	if s.overflow {
		return 0, ErrGasUintOverflow
	}
	return s.total, nil
}

// requireOperands fails with ErrMissingOperand unless at least n are given.
func requireOperands(op OpCode, operands Operands, n int) error {
	if len(operands) < n {
		return fmt.Errorf("%w: %s needs %d, got %d", ErrMissingOperand, op, n, len(operands))
	}
	return nil
}

// sizeOperand converts a length operand to uint64.
func sizeOperand(v *uint256.Int) (uint64, error) {
	if !v.IsUint64() {
		return 0, ErrGasUintOverflow
	}
	return v.Uint64(), nil
}

func (c *GasCalculator) expansion(ctx *ExecutionContext, end uint64, sum *gasSum) {
	delta, err := MemoryExpansionDelta(ctx.MemorySize(), end)
	if err != nil {
		sum.overflow = true
		return
	}
	sum.add(delta)
}

// OperandsRequired returns how many operands the pricing of op consumes.
// Opcodes not listed are priced without operands.
func OperandsRequired(op OpCode) int {
	switch {
	case op == SLOAD, op == SSTORE, op == MLOAD, op == MSTORE, op == MSTORE8:
		return 1
	case op.IsAccountAccess():
		return 1
	case op == KECCAK256, op.IsLog():
		return 2
	case op == MCOPY, op.IsCopy(), op.IsCreate():
		return 3
	case op == CALL, op == CALLCODE:
		return 7
	case op == DELEGATECALL, op == STATICCALL:
		return 6
	}
	return 0
}

func (c *GasCalculator) dynamicGas(op OpCode, ctx *ExecutionContext, operands Operands) (uint64, effects, error) {
	var (
		fx  effects
		sum gasSum
	)
	if err := requireOperands(op, operands, OperandsRequired(op)); err != nil {
		return 0, fx, err
	}
	berlin := c.fork.AtLeast(forks.Berlin)

	switch {
	case op == SLOAD:
		slot := storageSlot{ctx.Address(), common.Hash(operands[0].Bytes32())}
		switch {
		case !berlin:
			sum.add(c.schedule.SloadPreBerlin)
		case ctx.IsStorageWarm(slot.Address, slot.Key):
			sum.add(c.schedule.WarmStorageRead)
		default:
			sum.add(c.schedule.ColdSload)
		}
		fx.slot = &slot

	case op == SSTORE:
		// Net gas metering and refunds (EIP-2200, EIP-3529) are not modeled:
		// the static part prices every write as a reset of a live slot.
		slot := storageSlot{ctx.Address(), common.Hash(operands[0].Bytes32())}
		if berlin && !ctx.IsStorageWarm(slot.Address, slot.Key) {
			sum.add(c.schedule.SstoreColdSurcharge)
		}
		fx.slot = &slot

	case op == TLOAD, op == TSTORE:
		if c.fork.Before(forks.Cancun) {
			return 0, fx, fmt.Errorf("%w: %s before Cancun", ErrUnsupportedOpcode, op)
		}
		sum.add(c.schedule.TransientAccess)

	case op == MLOAD, op == MSTORE, op == MSTORE8:
		width := uint64(32)
		if op == MSTORE8 {
			width = 1
		}
		end, err := fixedEnd(&operands[0], width)
		if err != nil {
			return 0, fx, err
		}
		c.expansion(ctx, end, &sum)
		fx.memEnd = end

	case op == MCOPY:
		size, err := sizeOperand(&operands[2])
		if err != nil {
			return 0, fx, err
		}
		end, err := memoryEnd(&operands[0], &operands[2])
		if err != nil {
			return 0, fx, err
		}
		c.expansion(ctx, end, &sum)
		sum.addMul(c.schedule.CopyWord, toWordSize(size))
		fx.memEnd = end

	case op == KECCAK256:
		size, err := sizeOperand(&operands[1])
		if err != nil {
			return 0, fx, err
		}
		end, err := memoryEnd(&operands[0], &operands[1])
		if err != nil {
			return 0, fx, err
		}
		c.expansion(ctx, end, &sum)
		sum.addMul(c.schedule.Keccak256Word, toWordSize(size))
		fx.memEnd = end

	case op.IsLog():
		size, err := sizeOperand(&operands[1])
		if err != nil {
			return 0, fx, err
		}
		end, err := memoryEnd(&operands[0], &operands[1])
		if err != nil {
			return 0, fx, err
		}
		c.expansion(ctx, end, &sum)
		sum.addMul(c.schedule.LogTopic, uint64(op.LogTopics()))
		sum.addMul(c.schedule.LogData, size)
		fx.memEnd = end

	case op.IsCall():
		target := common.Address(operands[1].Bytes20())
		warm := ctx.IsAddressWarm(target)
		if berlin && !warm {
			sum.add(c.schedule.ColdAccountAccess)
		}
		// Only CALL is billed for value here; CALLCODE's value stays with
		// the caller and DELEGATECALL/STATICCALL carry none.
		memArgs := operands[2:]
		if op == CALL || op == CALLCODE {
			if op == CALL && !operands[2].IsZero() {
				sum.add(c.schedule.CallValueTransfer)
				// No account state: a still-cold target stands in for an
				// account that does not exist yet.
				if c.coldIsEmpty && !warm {
					sum.add(c.schedule.CallNewAccount)
				}
			}
			memArgs = operands[3:]
		}
		argsEnd, err := memoryEnd(&memArgs[0], &memArgs[1])
		if err != nil {
			return 0, fx, err
		}
		retEnd, err := memoryEnd(&memArgs[2], &memArgs[3])
		if err != nil {
			return 0, fx, err
		}
		end := max(argsEnd, retEnd)
		c.expansion(ctx, end, &sum)
		fx.memEnd = end
		fx.addr = &target
		fx.enterCall = true

	case op.IsAccountAccess():
		target := common.Address(operands[0].Bytes20())
		if berlin {
			if ctx.IsAddressWarm(target) {
				sum.add(c.schedule.WarmStorageRead)
			} else {
				sum.add(c.schedule.ColdAccountAccess)
			}
		}
		fx.addr = &target

	case op.IsCopy():
		size, err := sizeOperand(&operands[2])
		if err != nil {
			return 0, fx, err
		}
		end, err := memoryEnd(&operands[0], &operands[2])
		if err != nil {
			return 0, fx, err
		}
		c.expansion(ctx, end, &sum)
		sum.addMul(c.schedule.CopyWord, toWordSize(size))
		fx.memEnd = end

	case op.IsCreate():
		size, err := sizeOperand(&operands[2])
		if err != nil {
			return 0, fx, err
		}
		end, err := memoryEnd(&operands[1], &operands[2])
		if err != nil {
			return 0, fx, err
		}
		words := toWordSize(size)
		if c.fork.AtLeast(forks.Shanghai) {
			sum.addMul(c.schedule.InitCodeWord, words)
		}
		if op == CREATE2 {
			sum.addMul(c.schedule.Keccak256Word, words)
		}
		c.expansion(ctx, end, &sum)
		fx.memEnd = end

	case op.IsTerminal():
		fx.exitCall = true
	}

	gas, err := sum.result()
	if err != nil {
		return 0, effects{}, err
	}
	return gas, fx, nil
}
