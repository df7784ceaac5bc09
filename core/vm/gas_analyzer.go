package vm

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/holiman/uint256"

	"github.com/eth2030/evmgas/core/forks"
	"github.com/eth2030/evmgas/log"
	"github.com/eth2030/evmgas/metrics"
)

// DefaultWarningThreshold is the step cost above which an analysis warns.
const DefaultWarningThreshold uint64 = 10_000

// Instruction is one opcode of a sequence together with the operands it is
// priced with. Pc and Immediate are only set for disassembled bytecode.
type Instruction struct {
	Pc        uint64
	Op        OpCode
	Operands  Operands
	Immediate []byte
	Truncated bool // immediate ran past the end of the code
}

// Inst builds an Instruction from small integer operands.
func Inst(op OpCode, operands ...uint64) Instruction {
	return Instruction{Op: op, Operands: Ops(operands...)}
}

func (in Instruction) String() string {
	if len(in.Immediate) > 0 {
		return fmt.Sprintf("%s 0x%x", in.Op, in.Immediate)
	}
	return in.Op.String()
}

// AnalyzerConfig tunes sequence analysis.
type AnalyzerConfig struct {
	// EnforceBudget deducts every step from the context budget and aborts
	// with ErrOutOfGas once it runs dry.
	EnforceBudget bool
	// WarningThreshold is the step cost above which a warning is emitted.
	WarningThreshold uint64
}

// DefaultAnalyzerConfig returns the analyzer defaults.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{WarningThreshold: DefaultWarningThreshold}
}

// GasAnalyzer prices whole opcode sequences.
type GasAnalyzer struct {
	calc   *GasCalculator
	config AnalyzerConfig
	log    *log.Logger
}

// NewGasAnalyzer creates an analyzer on top of calc.
func NewGasAnalyzer(calc *GasCalculator, config AnalyzerConfig) *GasAnalyzer {
	if config.WarningThreshold == 0 {
		config.WarningThreshold = DefaultWarningThreshold
	}
	return &GasAnalyzer{
		calc:   calc,
		config: config,
		log:    log.Default().Module("gas"),
	}
}

// Calculator returns the underlying calculator.
func (a *GasAnalyzer) Calculator() *GasCalculator { return a.calc }

// Analyze prices seq against a fresh context.
func (a *GasAnalyzer) Analyze(seq []Instruction) (*GasAnalysisResult, error) {
	return a.AnalyzeWithContext(NewExecutionContext(), seq)
}

// AnalyzeWithContext prices seq against ctx, which is mutated as the
// sequence executes. The first failing step aborts the analysis; its side
// effects are not applied and no partial result is returned.
func (a *GasAnalyzer) AnalyzeWithContext(ctx *ExecutionContext, seq []Instruction) (*GasAnalysisResult, error) {
	metrics.Analyses.Inc()
	timer := metrics.NewTimer(metrics.AnalysisTime)
	defer timer.Stop()

	res := &GasAnalysisResult{
		Fork:      a.calc.Fork(),
		TotalGas:  TxBaseGas,
		Breakdown: make([]StepCost, 0, len(seq)),
	}
	for i, in := range seq {
		cost, err := a.step(ctx, i, in)
		if err != nil {
			metrics.AnalysisErrors.Inc()
			a.log.Debug("analysis aborted", "fork", a.calc.Fork(), "step", i, "op", in.Op, "err", err)
			return nil, &StepError{Index: i, Op: in.Op, Err: err}
		}
		total, overflow := math.SafeAdd(res.TotalGas, cost.Total)
		if overflow {
			metrics.AnalysisErrors.Inc()
			return nil, &StepError{Index: i, Op: in.Op, Err: ErrGasUintOverflow}
		}
		res.TotalGas = total
		res.Breakdown = append(res.Breakdown, cost)

		if cost.Total > a.config.WarningThreshold {
			res.Warnings = append(res.Warnings, fmt.Sprintf("High gas cost operation: %s (0x%02x) costs %d gas", cost.Name, byte(in.Op), cost.Total))
		}
		if ctx.IsStatic() && modifiesState(in) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("State-modifying operation %s at step %d inside a static call", cost.Name, i))
		}
	}
	res.Optimizations = a.optimizations(seq)
	res.Context = ctx.Snapshot()

	metrics.StepsPriced.Add(int64(len(seq)))
	metrics.SequenceGas.Observe(float64(res.TotalGas))
	metrics.WarmAddresses.Set(int64(res.Context.WarmAddresses))
	a.log.Debug("sequence analyzed", "fork", a.calc.Fork(), "steps", len(seq), "gas", res.TotalGas)
	return res, nil
}

// step prices one instruction, charges the budget if enforced and only then
// applies the side effects.
func (a *GasAnalyzer) step(ctx *ExecutionContext, i int, in Instruction) (StepCost, error) {
	cost, fx, err := a.calc.price(in.Op, ctx, in.Operands)
	if err != nil {
		return StepCost{}, err
	}
	if a.config.EnforceBudget {
		if err := ctx.ConsumeGas(cost.Total); err != nil {
			return StepCost{}, err
		}
	}
	fx.apply(ctx)
	cost.Index = i
	return cost, nil
}

// modifiesState reports whether in would fault inside a static call. CALL
// only modifies state when it transfers value.
func modifiesState(in Instruction) bool {
	if in.Op == CALL {
		return len(in.Operands) > 2 && !in.Operands[2].IsZero()
	}
	return in.Op.IsStateModifying()
}

func (a *GasAnalyzer) optimizations(seq []Instruction) []string {
	var (
		out    []string
		counts = make(map[OpCode]int)
		reads  = make(map[common.Hash]int)
		seen   = make(map[string]bool)
	)
	note := func(msg string) {
		if !seen[msg] {
			seen[msg] = true
			out = append(out, msg)
		}
	}
	zeroPush := false
	for i, in := range seq {
		counts[in.Op]++
		if in.Op == SLOAD && len(in.Operands) > 0 {
			reads[common.Hash(in.Operands[0].Bytes32())]++
		}
		if in.Op == PUSH1 && pushesZero(in) {
			zeroPush = true
		}
		if i == 0 {
			continue
		}
		prev := seq[i-1].Op
		switch {
		case prev.IsDup() && in.Op == POP:
			note("Found DUP followed by POP - consider eliminating redundant operations")
		case prev == SLOAD && in.Op == SLOAD, prev == SSTORE && in.Op == SSTORE:
			note("Consecutive storage operations detected - consider batching")
		}
	}

	if n := counts[SLOAD]; n > 3 {
		out = append(out, fmt.Sprintf("Found %d SLOAD operations - consider caching values in memory or using packed storage", n))
	}
	if n := counts[SSTORE]; n > 2 {
		out = append(out, fmt.Sprintf("Found %d SSTORE operations - consider batching writes or using transient storage for temporary values", n))
	}
	keys := make([]common.Hash, 0, len(reads))
	for k, n := range reads {
		if n > 1 {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Cmp(keys[j]) < 0 })
	for _, k := range keys {
		out = append(out, fmt.Sprintf("Storage slot %s read %d times - load it once and keep it on the stack", k.Hex(), reads[k]))
	}

	fork := a.calc.Fork()
	if fork.AtLeast(forks.Shanghai) && counts[PUSH0] == 0 && zeroPush {
		out = append(out, "Consider using PUSH0 instead of PUSH1 0x00 to save gas (available since Shanghai)")
	}
	if fork.AtLeast(forks.Cancun) && counts[SSTORE] > 0 && counts[TSTORE] == 0 {
		out = append(out, "Consider using TSTORE for temporary storage to avoid permanent storage costs")
	}
	return out
}

// pushesZero reports whether a PUSH pushes zero. Hand-written sequences
// may carry the pushed value as their only operand instead of an immediate.
func pushesZero(in Instruction) bool {
	if len(in.Immediate) == 0 {
		return len(in.Operands) > 0 && in.Operands[0].IsZero()
	}
	for _, b := range in.Immediate {
		if b != 0 {
			return false
		}
	}
	return true
}

// GasAnalysisResult is the outcome of one sequence analysis. It is not
// modified after Analyze returns.
type GasAnalysisResult struct {
	Fork          forks.Fork      `json:"fork" yaml:"fork"`
	TotalGas      uint64          `json:"totalGas" yaml:"totalGas"`
	Breakdown     []StepCost      `json:"breakdown" yaml:"breakdown"`
	Warnings      []string        `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Optimizations []string        `json:"optimizations,omitempty" yaml:"optimizations,omitempty"`
	Context       ContextSnapshot `json:"context" yaml:"context"`
}

// ExecutionGas is the total without the intrinsic transaction cost.
func (r *GasAnalysisResult) ExecutionGas() uint64 {
	if r.TotalGas < TxBaseGas {
		return r.TotalGas
	}
	return r.TotalGas - TxBaseGas
}

// EfficiencyRatio compares the total against a baseline. Values below one
// mean the sequence is cheaper than the baseline.
func (r *GasAnalysisResult) EfficiencyRatio(baseline uint64) float64 {
	if baseline == 0 {
		return 0
	}
	return float64(r.TotalGas) / float64(baseline)
}

// WithinBounds reports whether the total does not exceed limit.
func (r *GasAnalysisResult) WithinBounds(limit uint64) bool { return r.TotalGas <= limit }

// TopExpensive returns the n most expensive steps, most expensive first.
// Ties keep sequence order.
func (r *GasAnalysisResult) TopExpensive(n int) []StepCost {
	steps := slices.Clone(r.Breakdown)
	slices.SortStableFunc(steps, func(a, b StepCost) int {
		switch {
		case a.Total > b.Total:
			return -1
		case a.Total < b.Total:
			return 1
		}
		return 0
	})
	if n < len(steps) {
		steps = steps[:n]
	}
	return steps
}

// EfficiencyScore grades the average execution gas per step from 0 to 100,
// higher being cheaper. An empty breakdown scores 0.
func (r *GasAnalysisResult) EfficiencyScore() int {
	if len(r.Breakdown) == 0 {
		return 0
	}
	avg := r.ExecutionGas() / uint64(len(r.Breakdown))
	switch {
	case avg <= 10:
		return 100
	case avg <= 50:
		return 80
	case avg <= 200:
		return 60
	case avg <= 1000:
		return 40
	case avg <= 5000:
		return 20
	}
	return 0
}

// GasByCategory sums step totals per opcode price class.
func (r *GasAnalysisResult) GasByCategory() map[GasCostCategory]uint64 {
	out := make(map[GasCostCategory]uint64)
	for _, s := range r.Breakdown {
		out[s.Op.Category()] += s.Total
	}
	return out
}

// Gas bomb thresholds per opcode family.
const (
	sstoreBombGas = 5_000
	callBombGas   = 10_000
	createBombGas = 50_000
)

// GasBombs lists steps that could exhaust a tight gas limit.
func (r *GasAnalysisResult) GasBombs() []string {
	var out []string
	for _, s := range r.Breakdown {
		switch {
		case s.Op == SSTORE && s.Total > sstoreBombGas:
			out = append(out, fmt.Sprintf("step %d: SSTORE operation with high gas cost - could cause out-of-gas", s.Index))
		case s.Op.IsCall() && s.Total > callBombGas:
			out = append(out, fmt.Sprintf("step %d: Call operation with high gas cost - ensure sufficient gas limit", s.Index))
		case s.Op.IsCreate() && s.Total > createBombGas:
			out = append(out, fmt.Sprintf("step %d: Create operation with very high gas cost - check init code size", s.Index))
		}
	}
	return out
}

// EstimatedSavings is a rough bound on what the suggested optimizations
// would save: every POP right after a DUP, plus half of the repeated SLOADs
// at cold price.
func (r *GasAnalysisResult) EstimatedSavings() uint64 {
	var savings, sloads uint64
	for i, s := range r.Breakdown {
		switch {
		case s.Op == SLOAD:
			sloads++
		case s.Op == POP && i > 0 && r.Breakdown[i-1].Op.IsDup():
			savings += s.Total
		}
	}
	if sloads > 2 {
		savings += (sloads - 1) / 2 * ColdSloadCost
	}
	return savings
}

// Recommendations extends the optimizations with breakdown-wide hints.
func (r *GasAnalysisResult) Recommendations() []string {
	out := slices.Clone(r.Optimizations)
	expensive := 0
	counts := make(map[OpCode]int)
	for _, s := range r.Breakdown {
		if s.Total > 1000 {
			expensive++
		}
		counts[s.Op]++
	}
	if expensive > len(r.Breakdown)/4 {
		out = append(out, "High proportion of expensive operations - consider algorithmic optimizations")
	}
	for _, op := range []OpCode{SLOAD, SSTORE, CALL, DELEGATECALL} {
		if n := counts[op]; n > 5 {
			out = append(out, fmt.Sprintf("Opcode %s used %d times - consider batching or caching", op, n))
		}
	}
	return out
}

// IsOptimized reports a high efficiency score with no warnings.
func (r *GasAnalysisResult) IsOptimized() bool {
	return r.EfficiencyScore() > 70 && len(r.Warnings) == 0
}

// AnalyzeBytecode disassembles code and analyzes it with estimated operands.
// A shadow stack of PUSH constants feeds operands where the code pushes them
// directly; everything else falls back to fixed estimates.
func (a *GasAnalyzer) AnalyzeBytecode(code []byte) (*GasAnalysisResult, error) {
	return a.Analyze(EstimateOperands(Disassemble(code)))
}

// EstimateOperands fills in operands for a disassembled program. Only the
// operands pricing reads are set, so MSTORE gets its offset but not the
// stored word.
func EstimateOperands(prog []Instruction) []Instruction {
	var stack shadowStack
	out := make([]Instruction, len(prog))
	for i, in := range prog {
		out[i] = in
		switch {
		case in.Op.IsPush(), in.Op == PUSH0:
			stack.pushConst(in.Immediate)
		case in.Op.IsDup():
			stack.dup(int(in.Op-DUP1) + 1)
		case in.Op.IsSwap():
			stack.swap(int(in.Op-SWAP1) + 1)
		default:
			pops, pushes := stackShape(in.Op)
			popped := stack.pop(pops)
			if need := OperandsRequired(in.Op); need > 0 {
				out[i].Operands = mergeEstimates(popped, fallbackOperands(in.Op), need)
			}
			stack.pushUnknown(pushes)
		}
	}
	return out
}

// fallbackOperands are the operand guesses used when a value is not a
// known constant.
func fallbackOperands(op OpCode) Operands {
	switch {
	case op == SLOAD:
		return Ops(0)
	case op == SSTORE:
		return Ops(0, 1)
	case op == MLOAD, op == MSTORE, op == MSTORE8:
		return Ops(0x40)
	case op == MCOPY:
		return Ops(0x40, 0x80, 0x20)
	case op == DELEGATECALL, op == STATICCALL:
		return Ops(100_000, 0x123, 0, 0, 0, 0)
	case op.IsCall():
		return Ops(100_000, 0x123, 0, 0, 0, 0, 0)
	case op.IsAccountAccess():
		return Ops(0x123)
	case op.IsCopy():
		return Ops(0x40, 0, 0x20)
	case op.IsCreate():
		return Ops(0, 0x40, 0x100)
	case op == KECCAK256, op.IsLog():
		return Ops(0x40, 0x20)
	}
	return nil
}

// mergeEstimates takes known stack values where available.
func mergeEstimates(popped []shadowValue, fallback Operands, n int) Operands {
	out := make(Operands, n)
	for i := 0; i < n; i++ {
		switch {
		case i < len(popped) && popped[i].known:
			out[i] = popped[i].val
		case i < len(fallback):
			out[i] = fallback[i]
		}
	}
	return out
}

var (
	stackShapesOnce sync.Once
	stackShapes     [256][2]int
)

// stackShape returns the latest known (inputs, outputs) of op.
func stackShape(op OpCode) (int, int) {
	stackShapesOnce.Do(func() {
		tables := DefaultMetadata()
		for _, f := range forks.All() {
			for b, meta := range tables[f] {
				stackShapes[b] = [2]int{meta.StackIn, meta.StackOut}
			}
		}
	})
	shape := stackShapes[op]
	return shape[0], shape[1]
}

// shadowValue is a stack slot whose value may be known.
type shadowValue struct {
	val   uint256.Int
	known bool
}

// shadowStack follows PUSH constants through the stack. It never fails:
// underflows produce unknown values.
type shadowStack struct {
	items []shadowValue
}

func (s *shadowStack) pushConst(imm []byte) {
	v := shadowValue{known: true}
	v.val.SetBytes(imm)
	s.items = append(s.items, v)
}

func (s *shadowStack) pushUnknown(n int) {
	for i := 0; i < n; i++ {
		s.items = append(s.items, shadowValue{})
	}
}

// pop removes up to n items, top first.
func (s *shadowStack) pop(n int) []shadowValue {
	out := make([]shadowValue, n)
	for i := 0; i < n && len(s.items) > 0; i++ {
		out[i] = s.items[len(s.items)-1]
		s.items = s.items[:len(s.items)-1]
	}
	return out
}

func (s *shadowStack) dup(n int) {
	if len(s.items) < n {
		s.pushUnknown(1)
		return
	}
	s.items = append(s.items, s.items[len(s.items)-n])
}

func (s *shadowStack) swap(n int) {
	top := len(s.items) - 1
	if top-n < 0 {
		return
	}
	s.items[top], s.items[top-n] = s.items[top-n], s.items[top]
}
