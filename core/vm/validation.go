package vm

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/eth2030/evmgas/core/forks"
)

// maxStaticGas is the static price above which a table entry is suspect.
const maxStaticGas = 50_000

// ValidationReport collects the findings of ValidateRegistry.
type ValidationReport struct {
	Errors   []string `json:"errors" yaml:"errors"`
	Warnings []string `json:"warnings" yaml:"warnings"`
	Coverage []string `json:"coverage" yaml:"coverage"`
}

// OK reports whether no errors were found.
func (r *ValidationReport) OK() bool { return len(r.Errors) == 0 }

func (r *ValidationReport) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationReport) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Render writes a human readable summary. Coloring follows color.NoColor.
func (r *ValidationReport) Render(w io.Writer) {
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	for _, line := range r.Coverage {
		fmt.Fprintln(w, line)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "%s %s\n", red("ERROR"), e)
	}
	for _, wn := range r.Warnings {
		fmt.Fprintf(w, "%s %s\n", yellow("WARN "), wn)
	}
	if r.OK() {
		fmt.Fprintf(w, "%s %d warnings\n", green("registry valid,"), len(r.Warnings))
	} else {
		fmt.Fprintf(w, "%s %d errors, %d warnings\n", red("registry invalid:"), len(r.Errors), len(r.Warnings))
	}
}

// knownIntroductions pins the fork each post-Frontier opcode shipped in.
var knownIntroductions = []struct {
	op   OpCode
	fork forks.Fork
}{
	{DELEGATECALL, forks.Homestead},
	{RETURNDATASIZE, forks.Byzantium},
	{RETURNDATACOPY, forks.Byzantium},
	{STATICCALL, forks.Byzantium},
	{REVERT, forks.Byzantium},
	{SHL, forks.Constantinople},
	{SHR, forks.Constantinople},
	{SAR, forks.Constantinople},
	{EXTCODEHASH, forks.Constantinople},
	{CREATE2, forks.Constantinople},
	{CHAINID, forks.Istanbul},
	{SELFBALANCE, forks.Istanbul},
	{BASEFEE, forks.London},
	{PUSH0, forks.Shanghai},
	{TLOAD, forks.Cancun},
	{TSTORE, forks.Cancun},
	{MCOPY, forks.Cancun},
	{BLOBHASH, forks.Cancun},
	{BLOBBASEFEE, forks.Cancun},
}

// knownCosts are mainnet reference prices: a cold access in a fresh
// context with canonical operands.
var knownCosts = []struct {
	op   OpCode
	fork forks.Fork
	gas  uint64
}{
	{BALANCE, forks.TangerineWhistle, 400},
	{BALANCE, forks.Istanbul, 700},
	{BALANCE, forks.Berlin, 2600},
	{EXTCODESIZE, forks.TangerineWhistle, 700},
	{EXTCODESIZE, forks.Berlin, 2600},
	{EXTCODEHASH, forks.Constantinople, 400},
	{EXTCODEHASH, forks.Istanbul, 700},
	{EXTCODEHASH, forks.Berlin, 2600},
	{SLOAD, forks.Istanbul, 800},
	{SLOAD, forks.Berlin, 2100},
	{CALL, forks.TangerineWhistle, 700},
	{STATICCALL, forks.Byzantium, 700},
	{SELFDESTRUCT, forks.TangerineWhistle, 5000},
	{PUSH0, forks.Shanghai, 2},
	{TLOAD, forks.Cancun, 100},
	{TSTORE, forks.Cancun, 100},
}

// ValidateRegistry checks the tables of reg for internal consistency and
// against known mainnet history.
func ValidateRegistry(reg *ForkRegistry) *ValidationReport {
	r := new(ValidationReport)
	order := reg.Forks()

	for _, f := range order {
		for op, meta := range reg.OwnOpcodes(f) {
			checkEntry(r, f, op, meta)
		}
		checkUniqueNames(r, f, reg.EffectiveOpcodes(f))
	}
	for i := 1; i < len(order); i++ {
		prev, cur := order[i-1], order[i]
		curTable := reg.EffectiveOpcodes(cur)
		for op, meta := range reg.EffectiveOpcodes(prev) {
			if _, ok := curTable[op]; !ok {
				r.errorf("Opcode 0x%02x (%s) missing from fork %s but exists in %s", byte(op), meta.Name, cur, prev)
			}
		}
	}

	latest := forks.Latest()
	for _, k := range knownIntroductions {
		intro, ok := reg.IntroducedAt(k.op)
		switch {
		case !ok || !reg.IsAvailable(latest, k.op):
			r.errorf("Missing expected opcode 0x%02x (%s) introduced in %s", byte(k.op), k.op, k.fork)
		case intro != k.fork:
			r.errorf("Opcode 0x%02x (%s) should be introduced in %s but found in %s", byte(k.op), k.op, k.fork, intro)
		}
	}

	cmp := NewGasComparator(reg)
	for _, k := range knownCosts {
		got, err := cmp.ReferenceCost(k.op, k.fork)
		switch {
		case err != nil:
			r.errorf("Cannot price %s at %s: %v", k.op, k.fork, err)
		case got != k.gas:
			r.errorf("Expected gas cost %d for %s at %s, found %d", k.gas, k.op, k.fork, got)
		}
	}

	checkAnalysis(r, reg)

	for _, f := range order {
		if n := len(reg.OwnOpcodes(f)); n > 0 {
			r.Coverage = append(r.Coverage, fmt.Sprintf("%s: %d opcodes (%d new or redefined)", f, len(reg.EffectiveOpcodes(f)), n))
		}
	}
	return r
}

// checkEntry validates one entry of the own table of f.
func checkEntry(r *ValidationReport, f forks.Fork, op OpCode, meta *OpcodeMetadata) {
	if meta.Op != op {
		r.errorf("Opcode 0x%02x in fork %s is keyed as 0x%02x", byte(meta.Op), f, byte(op))
	}
	if meta.IntroducedIn != f {
		r.errorf("Opcode 0x%02x (%s) defined by %s claims introduction in %s", byte(op), meta.Name, f, meta.IntroducedIn)
	}
	if meta.BaseGas > maxStaticGas {
		r.errorf("Unusually high gas cost %d for opcode 0x%02x (%s) in fork %s", meta.BaseGas, byte(op), meta.Name, f)
	}
	last := meta.IntroducedIn
	for _, ch := range meta.GasHistory {
		if ch.Fork < last {
			r.errorf("Gas history for opcode 0x%02x (%s) is not in chronological order", byte(op), meta.Name)
			break
		}
		last = ch.Fork
	}
	if meta.StackIn > 17 {
		r.errorf("Opcode 0x%02x (%s) has more than 17 stack inputs (%d)", byte(op), meta.Name, meta.StackIn)
	}
	switch {
	case op.IsDup():
		n := int(op-DUP1) + 1
		if meta.StackIn != n || meta.StackOut != n+1 {
			r.errorf("DUP%d opcode should take %d and leave %d stack items, found %d/%d", n, n, n+1, meta.StackIn, meta.StackOut)
		}
	case op.IsSwap():
		n := int(op-SWAP1) + 1
		if meta.StackIn != n+1 || meta.StackOut != n+1 {
			r.errorf("SWAP%d opcode should take and leave %d stack items, found %d/%d", n, n+1, meta.StackIn, meta.StackOut)
		}
	case meta.StackOut > 1:
		r.errorf("Opcode 0x%02x (%s) produces %d stack outputs", byte(op), meta.Name, meta.StackOut)
	}
	if f > forks.Frontier && meta.EIP == 0 {
		r.warnf("Opcode 0x%02x (%s) introduced in %s has no EIP reference", byte(op), meta.Name, f)
	}
}

func checkUniqueNames(r *ValidationReport, f forks.Fork, table OpcodeTable) {
	names := make(map[string]OpCode, len(table))
	for op, meta := range table {
		if other, ok := names[meta.Name]; ok {
			r.errorf("Mnemonic %s used by 0x%02x and 0x%02x in fork %s", meta.Name, byte(other), byte(op), f)
			continue
		}
		names[meta.Name] = op
	}
}

// checkAnalysis runs a trivial sequence through the analyzer at a few forks.
func checkAnalysis(r *ValidationReport, reg *ForkRegistry) {
	seq := []Instruction{Inst(ADD), Inst(MUL), Inst(SUB)}
	for _, f := range []forks.Fork{forks.Frontier, forks.Berlin, forks.London, forks.Shanghai, forks.Cancun} {
		res, err := NewGasAnalyzer(NewGasCalculator(reg, f), DefaultAnalyzerConfig()).Analyze(seq)
		switch {
		case err != nil:
			r.errorf("Gas analysis validation failed for %s: %v", f, err)
		case res.TotalGas < TxBaseGas:
			r.errorf("Gas analysis for %s returned less than the base transaction cost", f)
		case len(res.Breakdown) != len(seq):
			r.errorf("Gas breakdown length for %s doesn't match sequence length", f)
		}
	}
}

// ValidateSequence prices seq and reports patterns that make it unsafe or
// wasteful to run. The error is non-nil only if the sequence cannot be
// priced at all.
func (a *GasAnalyzer) ValidateSequence(seq []Instruction) ([]string, error) {
	res, err := a.Analyze(seq)
	if err != nil {
		return nil, err
	}
	var out []string
	if res.TotalGas > BlockGasLimit {
		out = append(out, fmt.Sprintf("Opcode sequence consumes %d gas, exceeding block limit of %d", res.TotalGas, BlockGasLimit))
	}
	for i := 1; i < len(seq); i++ {
		prev, cur := seq[i-1].Op, seq[i].Op
		switch {
		case prev == JUMP && cur == JUMP:
			out = append(out, fmt.Sprintf("step %d: Consecutive JUMP instructions detected", i))
		case prev == JUMPI && cur == SSTORE:
			out = append(out, fmt.Sprintf("step %d: SSTORE after JUMPI may create expensive loop", i))
		case prev.IsDup() && cur == POP:
			out = append(out, fmt.Sprintf("step %d: DUP followed by POP detected - inefficient pattern", i))
		}
	}
	return append(out, res.GasBombs()...), nil
}
