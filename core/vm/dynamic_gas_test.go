package vm

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/eth2030/evmgas/core/forks"
)

var testRegistry = NewDefaultRegistry()

func calcAt(f forks.Fork, opts ...CalculatorOption) *GasCalculator {
	return NewGasCalculator(testRegistry, f, opts...)
}

// mustCost prices op and fails the test on error.
func mustCost(t *testing.T, c *GasCalculator, op OpCode, ctx *ExecutionContext, ops Operands) uint64 {
	t.Helper()
	gas, err := c.SingleOpcodeCost(op, ctx, ops)
	if err != nil {
		t.Fatalf("%s at %s: %v", op, c.Fork(), err)
	}
	return gas
}

// TestStaticOnlyOpcodes checks opcodes that carry no surcharge.
func TestStaticOnlyOpcodes(t *testing.T) {
	tests := []struct {
		fork forks.Fork
		op   OpCode
		want uint64
	}{
		{forks.Frontier, ADD, 3},
		{forks.Frontier, MUL, 5},
		{forks.Frontier, EXP, 10},
		{forks.Frontier, JUMPDEST, 1},
		{forks.Frontier, BLOCKHASH, 20},
		{forks.Frontier, STOP, 0},
		{forks.Shanghai, PUSH0, 2},
		{forks.Cancun, BLOBHASH, 3},
		{forks.Frontier, SELFDESTRUCT, 0},
		{forks.TangerineWhistle, SELFDESTRUCT, 5000},
	}
	for _, tt := range tests {
		ctx := NewExecutionContext()
		if got := mustCost(t, calcAt(tt.fork), tt.op, ctx, nil); got != tt.want {
			t.Errorf("%s at %s = %d, want %d", tt.op, tt.fork, got, tt.want)
		}
	}
}

// TestSloadBerlinColdThenWarm prices the same slot twice with side effects
// applied in between: 2100 cold, then 100 warm.
func TestSloadBerlinColdThenWarm(t *testing.T) {
	c := calcAt(forks.Berlin)
	ctx := NewExecutionContext()

	first, err := c.Execute(SLOAD, ctx, Ops(1))
	if err != nil {
		t.Fatalf("first SLOAD: %v", err)
	}
	if first.Total != ColdSloadCost {
		t.Errorf("cold SLOAD = %d, want %d", first.Total, ColdSloadCost)
	}
	second, err := c.Execute(SLOAD, ctx, Ops(1))
	if err != nil {
		t.Fatalf("second SLOAD: %v", err)
	}
	if second.Total != WarmStorageReadCost {
		t.Errorf("warm SLOAD = %d, want %d", second.Total, WarmStorageReadCost)
	}
	if !ctx.IsStorageWarm(common.Address{}, common.BigToHash(common.Big1)) {
		t.Error("slot 1 of the context address should be warm")
	}
}

// TestSloadPreBerlinFlat checks the fixed 800 before EIP-2929.
func TestSloadPreBerlinFlat(t *testing.T) {
	c := calcAt(forks.Istanbul)
	ctx := NewExecutionContext()
	for i := 0; i < 2; i++ {
		cost, err := c.Execute(SLOAD, ctx, Ops(7))
		if err != nil {
			t.Fatal(err)
		}
		if cost.Total != 800 {
			t.Errorf("SLOAD #%d at Istanbul = %d, want 800", i, cost.Total)
		}
	}
}

// TestSloadOtherContractIsCold checks that warm slots are keyed by address.
func TestSloadOtherContractIsCold(t *testing.T) {
	key := common.BigToHash(common.Big1)
	ctx := NewContextBuilder().
		WithAddress(common.HexToAddress("0xaa")).
		WithWarmStorage(common.HexToAddress("0xbb"), key).
		Build()
	if got := mustCost(t, calcAt(forks.London), SLOAD, ctx, Ops(1)); got != ColdSloadCost {
		t.Errorf("SLOAD of another contract's warm slot = %d, want %d", got, ColdSloadCost)
	}
}

// TestSstorePricing covers the cold surcharge and the pre-Berlin price.
func TestSstorePricing(t *testing.T) {
	key := common.BigToHash(common.Big3)
	cold := NewExecutionContext()
	warm := NewContextBuilder().WithWarmStorage(common.Address{}, key).Build()

	if got := mustCost(t, calcAt(forks.Berlin), SSTORE, cold, Ops(3, 1)); got != 5000 {
		t.Errorf("cold SSTORE at Berlin = %d, want 5000", got)
	}
	if got := mustCost(t, calcAt(forks.Berlin), SSTORE, warm, Ops(3, 1)); got != 2900 {
		t.Errorf("warm SSTORE at Berlin = %d, want 2900", got)
	}
	if got := mustCost(t, calcAt(forks.Frontier), SSTORE, cold, Ops(3)); got != 5000 {
		t.Errorf("SSTORE at Frontier = %d, want 5000", got)
	}
}

// TestTransientStorage checks TLOAD/TSTORE pricing and fork gating.
func TestTransientStorage(t *testing.T) {
	ctx := NewExecutionContext()
	if got := mustCost(t, calcAt(forks.Cancun), TLOAD, ctx, nil); got != TransientAccessCost {
		t.Errorf("TLOAD at Cancun = %d, want %d", got, TransientAccessCost)
	}
	if got := mustCost(t, calcAt(forks.Cancun), TSTORE, ctx, Ops(1, 2)); got != TransientAccessCost {
		t.Errorf("TSTORE at Cancun = %d, want %d", got, TransientAccessCost)
	}
	for _, op := range []OpCode{TLOAD, TSTORE} {
		_, err := calcAt(forks.Shanghai).Cost(op, ctx, Ops(1, 2))
		if !errors.Is(err, ErrUnsupportedOpcode) {
			t.Errorf("%s at Shanghai err = %v, want ErrUnsupportedOpcode", op, err)
		}
	}
}

// TestMemoryOpcodes covers MLOAD/MSTORE/MSTORE8 expansion.
func TestMemoryOpcodes(t *testing.T) {
	c := calcAt(forks.London)
	tests := []struct {
		op     OpCode
		offset uint64
		want   uint64
	}{
		{MSTORE, 0, 3 + 3},
		{MLOAD, 0, 3 + 3},
		{MSTORE8, 0, 3 + 3},
		{MSTORE, 32, 3 + 6},
		{MSTORE8, 31, 3 + 3},
	}
	for _, tt := range tests {
		ctx := NewExecutionContext()
		if got := mustCost(t, c, tt.op, ctx, Ops(tt.offset)); got != tt.want {
			t.Errorf("%s(%d) = %d, want %d", tt.op, tt.offset, got, tt.want)
		}
	}
}

// TestMemoryExpansionChargedOnce verifies that a second access to the same
// region pays no expansion.
func TestMemoryExpansionChargedOnce(t *testing.T) {
	c := calcAt(forks.London)
	ctx := NewExecutionContext()
	first, err := c.Execute(MSTORE, ctx, Ops(0))
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Execute(MSTORE, ctx, Ops(0))
	if err != nil {
		t.Fatal(err)
	}
	if first.Dynamic != 3 || second.Dynamic != 0 {
		t.Errorf("dynamic parts = %d, %d, want 3, 0", first.Dynamic, second.Dynamic)
	}
	if ctx.MemorySize() != 32 {
		t.Errorf("memory size = %d, want 32", ctx.MemorySize())
	}
}

// TestCopyAndHashOpcodes covers the per-word families.
func TestCopyAndHashOpcodes(t *testing.T) {
	tests := []struct {
		fork forks.Fork
		op   OpCode
		ops  Operands
		want uint64
	}{
		{forks.Cancun, MCOPY, Ops(0, 0x100, 64), 3 + 6 + 6},
		{forks.Frontier, KECCAK256, Ops(0, 64), 30 + 6 + 12},
		{forks.Frontier, CALLDATACOPY, Ops(0, 0, 32), 3 + 3 + 3},
		{forks.Frontier, CODECOPY, Ops(0, 0, 33), 3 + 6 + 6},
		{forks.Byzantium, RETURNDATACOPY, Ops(0, 0, 0), 3},
		{forks.Frontier, LOG2, Ops(0, 10), 375 + 2*375 + 8*10 + 3},
		{forks.Frontier, LOG0, Ops(0, 0), 375},
	}
	for _, tt := range tests {
		ctx := NewExecutionContext()
		if got := mustCost(t, calcAt(tt.fork), tt.op, ctx, tt.ops); got != tt.want {
			t.Errorf("%s at %s = %d, want %d", tt.op, tt.fork, got, tt.want)
		}
	}
}

// TestZeroSizeDoesNotExpand checks that an empty range at a huge offset is
// neither charged nor recorded.
func TestZeroSizeDoesNotExpand(t *testing.T) {
	c := calcAt(forks.London)
	ctx := NewExecutionContext()
	cost, err := c.Execute(KECCAK256, ctx, Ops(1<<40, 0))
	if err != nil {
		t.Fatal(err)
	}
	if cost.Total != Keccak256Gas {
		t.Errorf("KECCAK256 of empty range = %d, want %d", cost.Total, Keccak256Gas)
	}
	if ctx.MemorySize() != 0 {
		t.Errorf("memory size = %d, want 0", ctx.MemorySize())
	}
}

// TestAccountAccess checks the EIP-2929 account surcharge.
func TestAccountAccess(t *testing.T) {
	target := common.HexToAddress("0x1234")
	addr := Ops(0x1234)
	warm := NewContextBuilder().WithWarmAddresses(target).Build()

	for _, op := range []OpCode{BALANCE, EXTCODESIZE, EXTCODEHASH, EXTCODECOPY} {
		if got := mustCost(t, calcAt(forks.Berlin), op, NewExecutionContext(), addr); got != ColdAccountAccessCost {
			t.Errorf("cold %s at Berlin = %d, want %d", op, got, ColdAccountAccessCost)
		}
		if got := mustCost(t, calcAt(forks.Berlin), op, warm, addr); got != WarmStorageReadCost {
			t.Errorf("warm %s at Berlin = %d, want %d", op, got, WarmStorageReadCost)
		}
	}
	if got := mustCost(t, calcAt(forks.Istanbul), BALANCE, NewExecutionContext(), addr); got != 700 {
		t.Errorf("BALANCE at Istanbul = %d, want 700", got)
	}
	if got := mustCost(t, calcAt(forks.Frontier), EXTCODESIZE, NewExecutionContext(), addr); got != 20 {
		t.Errorf("EXTCODESIZE at Frontier = %d, want 20", got)
	}
}

// TestCallPricing covers cold access, value transfer and the new-account
// approximation.
func TestCallPricing(t *testing.T) {
	target := common.HexToAddress("0x1234")
	warm := NewContextBuilder().WithWarmAddresses(target).Build()
	noValue := Ops(50_000, 0x1234, 0, 0, 0, 0, 0)
	withValue := Ops(50_000, 0x1234, 1, 0, 0, 0, 0)

	tests := []struct {
		name string
		calc *GasCalculator
		op   OpCode
		ctx  *ExecutionContext
		ops  Operands
		want uint64
	}{
		{"cold call", calcAt(forks.Berlin), CALL, NewExecutionContext(), noValue, 2700},
		{"warm call", calcAt(forks.Berlin), CALL, warm, noValue, 100},
		{"cold call with value", calcAt(forks.Berlin), CALL, NewExecutionContext(), withValue, 36700},
		{"warm call with value", calcAt(forks.Berlin), CALL, warm, withValue, 9100},
		{"cold call, no empty assumption", calcAt(forks.Berlin, WithColdAsEmpty(false)), CALL, NewExecutionContext(), withValue, 11700},
		{"callcode ignores value", calcAt(forks.Berlin), CALLCODE, warm, withValue, 100},
		{"tangerine call", calcAt(forks.TangerineWhistle), CALL, NewExecutionContext(), noValue, 700},
		{"tangerine call with value", calcAt(forks.TangerineWhistle), CALL, NewExecutionContext(), withValue, 34700},
		{"frontier call", calcAt(forks.Frontier), CALL, NewExecutionContext(), noValue, 40},
		{"cold staticcall", calcAt(forks.Berlin), STATICCALL, NewExecutionContext(), Ops(50_000, 0x1234, 0, 0, 0, 0), 2700},
		{"cold delegatecall", calcAt(forks.London), DELEGATECALL, NewExecutionContext(), Ops(50_000, 0x1234, 0, 0, 0, 0), 2700},
		{"return data expansion", calcAt(forks.Berlin), STATICCALL, warm, Ops(50_000, 0x1234, 0, 0, 0, 64), 100 + 6},
		{"args expansion wins", calcAt(forks.Berlin), CALL, warm, Ops(50_000, 0x1234, 0, 0, 96, 0, 32), 100 + 9},
	}
	for _, tt := range tests {
		if got := mustCost(t, tt.calc, tt.op, tt.ctx, tt.ops); got != tt.want {
			t.Errorf("%s: %s = %d, want %d", tt.name, tt.op, got, tt.want)
		}
	}
}

// TestCallSideEffects checks that a call warms its target, enters a frame
// and reports the forwarded gas.
func TestCallSideEffects(t *testing.T) {
	c := calcAt(forks.Berlin)
	ctx := NewExecutionContext()
	cost, err := c.Execute(CALL, ctx, Ops(^uint64(0), 0x1234, 0, 0, 0, 0, 32))
	if err != nil {
		t.Fatal(err)
	}
	if !ctx.IsAddressWarm(common.HexToAddress("0x1234")) {
		t.Error("call target should be warm")
	}
	if ctx.CallDepth() != 1 {
		t.Errorf("call depth = %d, want 1", ctx.CallDepth())
	}
	if ctx.MemorySize() != 32 {
		t.Errorf("memory size = %d, want 32", ctx.MemorySize())
	}
	want := DefaultGasRemaining - DefaultGasRemaining/64
	if cost.CallGas != want {
		t.Errorf("forwarded gas = %d, want %d", cost.CallGas, want)
	}
	if _, err := c.Execute(RETURN, ctx, nil); err != nil {
		t.Fatal(err)
	}
	if ctx.CallDepth() != 0 {
		t.Errorf("call depth after RETURN = %d, want 0", ctx.CallDepth())
	}
}

// TestCreatePricing covers initcode word gas and CREATE2 hashing.
func TestCreatePricing(t *testing.T) {
	tests := []struct {
		fork forks.Fork
		op   OpCode
		ops  Operands
		want uint64
	}{
		// 32000 + 2*4 initcode words + 12 expansion for 100 bytes.
		{forks.Shanghai, CREATE, Ops(0, 0, 100), 32020},
		{forks.Shanghai, CREATE2, Ops(0, 0, 100, 0), 32020 + 24},
		{forks.London, CREATE, Ops(0, 0, 100), 32012},
		{forks.Constantinople, CREATE2, Ops(0, 0, 100, 0), 32036},
		{forks.Frontier, CREATE, Ops(0, 0, 0), 32000},
	}
	for _, tt := range tests {
		if got := mustCost(t, calcAt(tt.fork), tt.op, NewExecutionContext(), tt.ops); got != tt.want {
			t.Errorf("%s at %s = %d, want %d", tt.op, tt.fork, got, tt.want)
		}
	}
}

// TestPricingErrors covers the error sentinels.
func TestPricingErrors(t *testing.T) {
	ctx := NewExecutionContext()
	tests := []struct {
		name string
		fork forks.Fork
		op   OpCode
		ops  Operands
		want error
	}{
		{"unknown byte", forks.Cancun, OpCode(0x0c), nil, ErrUnknownOpcode},
		{"push0 before shanghai", forks.London, PUSH0, nil, ErrUnsupportedOpcode},
		{"sload without key", forks.Berlin, SLOAD, nil, ErrMissingOperand},
		{"call short", forks.Berlin, CALL, Ops(1, 2, 3), ErrMissingOperand},
		{"mstore huge offset", forks.Berlin, MSTORE, Ops(1 << 40), ErrGasUintOverflow},
	}
	for _, tt := range tests {
		_, err := calcAt(tt.fork).Cost(tt.op, ctx, tt.ops)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}

	huge := make(Operands, 1)
	huge[0].Lsh(uint256.NewInt(1), 100)
	if _, err := calcAt(forks.Berlin).Cost(MLOAD, ctx, huge); !errors.Is(err, ErrGasUintOverflow) {
		t.Errorf("MLOAD(2^100) err = %v, want ErrGasUintOverflow", err)
	}
}

// TestFailedStepLeavesContext checks that a failing Execute applies nothing.
func TestFailedStepLeavesContext(t *testing.T) {
	c := calcAt(forks.Berlin)
	ctx := NewExecutionContext()
	before := ctx.Snapshot()
	if _, err := c.Execute(CALL, ctx, Ops(1, 0x1234)); err == nil {
		t.Fatal("expected missing operand error")
	}
	if ctx.Snapshot() != before {
		t.Errorf("context changed: %+v, want %+v", ctx.Snapshot(), before)
	}
}

// TestCostIsPure prices the same opcode twice without applying effects.
func TestCostIsPure(t *testing.T) {
	c := calcAt(forks.Cancun)
	ctx := NewExecutionContext()
	before := ctx.Snapshot()
	for _, tt := range []struct {
		op  OpCode
		ops Operands
	}{
		{SLOAD, Ops(1)},
		{CALL, Ops(0, 0x99, 1, 0, 64, 0, 0)},
		{MSTORE, Ops(0x200)},
		{CREATE2, Ops(0, 0, 300, 1)},
	} {
		a, err := c.Cost(tt.op, ctx, tt.ops)
		if err != nil {
			t.Fatal(err)
		}
		b, err := c.Cost(tt.op, ctx, tt.ops)
		if err != nil {
			t.Fatal(err)
		}
		if a != b {
			t.Errorf("%s priced %+v then %+v", tt.op, a, b)
		}
	}
	if ctx.Snapshot() != before {
		t.Errorf("Cost mutated the context")
	}
}

// TestCustomSchedule swaps in a different surcharge constant.
func TestCustomSchedule(t *testing.T) {
	s := DefaultGasSchedule()
	s.ColdSload = 5000
	c := calcAt(forks.Berlin, WithSchedule(s))
	if got := mustCost(t, c, SLOAD, NewExecutionContext(), Ops(1)); got != 5000 {
		t.Errorf("SLOAD with custom schedule = %d, want 5000", got)
	}
}
