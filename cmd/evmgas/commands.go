package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/eth2030/evmgas/config"
	"github.com/eth2030/evmgas/core/forks"
	"github.com/eth2030/evmgas/core/vm"
)

var errRegistryInvalid = errors.New("opcode registry failed validation")

var (
	opcodesCommand = &cli.Command{
		Action: listOpcodes,
		Name:   "opcodes",
		Usage:  "List the effective opcode table of a fork",
		Description: `
Prints every opcode live at --fork with the static gas it costs at that fork,
its stack inputs and outputs and the fork that introduced it.`,
	}
	costCommand = &cli.Command{
		Action:    opcodeCost,
		Name:      "cost",
		Usage:     "Price a single opcode",
		ArgsUsage: "<opcode> [operand...]",
		Flags:     contextFlags,
		Description: `
Operands are the stack inputs, top of stack first, in decimal or 0x hex:

    evmgas --fork berlin cost CALL 100000 0x00000000000000000000000000000000000000aa 1 0 0 0 0`,
	}
	analyzeCommand = &cli.Command{
		Action:    analyze,
		Name:      "analyze",
		Usage:     "Price an opcode sequence or contract bytecode",
		ArgsUsage: "[<sequence file> | -]",
		Flags: slices.Concat(contextFlags, []cli.Flag{
			codeFlag,
			estimateFlag,
			enforceBudgetFlag,
		}),
		Description: `
Reads a sequence with one instruction per line (or separated by ';') from the
given file, or from stdin when the file is '-'. With --code the bytecode is
disassembled and missing operands are estimated from PUSH constants.`,
	}
	compareCommand = &cli.Command{
		Action: compare,
		Name:   "compare",
		Usage:  "Show the opcode differences between two forks",
		Flags:  []cli.Flag{fromForkFlag, toForkFlag, topFlag},
	}
	adviseCommand = &cli.Command{
		Action:    advise,
		Name:      "advise",
		Usage:     "Print optimization advice for a fork",
		ArgsUsage: "[<sequence file> | -]",
		Description: `
Without arguments prints the advice for --fork. Given a sequence, also
suggests rewrites for its shape.`,
	}
	validateCommand = &cli.Command{
		Action: validate,
		Name:   "validate",
		Usage:  "Check the opcode registry for inconsistencies",
	}
	disasmCommand = &cli.Command{
		Action:    disasm,
		Name:      "disasm",
		Usage:     "Disassemble bytecode",
		ArgsUsage: "<hex>",
		Flags:     []cli.Flag{sequenceFlag},
	}
	dumpConfigCommand = &cli.Command{
		Action: dumpConfig,
		Name:   "dumpconfig",
		Usage:  "Print the effective configuration as TOML",
	}
)

func listOpcodes(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	reg := vm.NewDefaultRegistry()
	table := reg.EffectiveOpcodes(cfg.Fork)

	ops := make([]vm.OpCode, 0, len(table))
	for op := range table {
		ops = append(ops, op)
	}
	slices.Sort(ops)

	rows := make([]opcodeRow, 0, len(ops))
	for _, op := range ops {
		meta := table[op]
		intro, _ := reg.IntroducedAt(op)
		rows = append(rows, opcodeRow{
			Byte:        fmt.Sprintf("0x%02x", byte(op)),
			Name:        meta.Name,
			Gas:         reg.EffectiveGasCost(meta, cfg.Fork),
			StackIn:     meta.StackIn,
			StackOut:    meta.StackOut,
			Group:       meta.Group.String(),
			Introduced:  intro.String(),
			EIP:         meta.EIP,
			Description: meta.Description,
		})
	}
	return emit(ctx, rows, func(w io.Writer) error {
		fmt.Fprintf(w, "Opcodes at %s\n", cfg.Fork)
		return writeOpcodeTable(w, rows)
	})
}

func opcodeCost(ctx *cli.Context) error {
	if ctx.NArg() < 1 {
		return fmt.Errorf("required arguments: %v", ctx.Command.ArgsUsage)
	}
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	seq, err := vm.ParseSequence(strings.Join(ctx.Args().Slice(), " "))
	if err != nil {
		return err
	}
	if len(seq) != 1 {
		return fmt.Errorf("expected one instruction, got %d", len(seq))
	}
	calc, _ := newCalculator(cfg)
	state, err := cfg.Context.NewContext()
	if err != nil {
		return err
	}
	cost, err := calc.Cost(seq[0].Op, state, seq[0].Operands)
	if err != nil {
		return err
	}
	return emit(ctx, cost, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%s at %s: %d gas (static %d, dynamic %d)\n", cost.Name, cfg.Fork, cost.Total, cost.Base, cost.Dynamic)
		if err == nil && cost.CallGas > 0 {
			_, err = fmt.Fprintf(w, "forwarded gas: %d\n", cost.CallGas)
		}
		return err
	})
}

func analyze(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	var seq []vm.Instruction
	if hex := ctx.String(codeFlag.Name); hex != "" {
		code, err := parseCode(hex)
		if err != nil {
			return err
		}
		seq = vm.EstimateOperands(vm.Disassemble(code))
	} else {
		if seq, err = readSequence(ctx); err != nil {
			return err
		}
		if ctx.Bool(estimateFlag.Name) {
			seq = vm.EstimateOperands(seq)
		}
	}

	_, analyzer := newCalculator(cfg)
	state, err := cfg.Context.NewContext()
	if err != nil {
		return err
	}
	res, err := analyzer.AnalyzeWithContext(state, seq)
	if err != nil {
		return err
	}
	return emit(ctx, res, func(w io.Writer) error { return writeAnalysis(w, res) })
}

// readSequence parses the sequence named by the first argument.
func readSequence(ctx *cli.Context) ([]vm.Instruction, error) {
	if ctx.NArg() != 1 {
		return nil, fmt.Errorf("required arguments: %v", ctx.Command.ArgsUsage)
	}
	var (
		data []byte
		err  error
	)
	if name := ctx.Args().First(); name == "-" {
		data, err = io.ReadAll(ctx.App.Reader)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return nil, err
	}
	return vm.ParseSequence(string(data))
}

func compare(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	to, err := forkOrDefault(ctx, toForkFlag.Name, cfg.Fork)
	if err != nil {
		return err
	}
	prev := to.Prev()
	if prev == forks.Unknown {
		prev = to
	}
	from, err := forkOrDefault(ctx, fromForkFlag.Name, prev)
	if err != nil {
		return err
	}

	report := vm.NewGasComparator(vm.NewDefaultRegistry()).Report(from, to)
	top := ctx.Int(topFlag.Name)
	return emit(ctx, report, func(w io.Writer) error {
		report.Render(w)
		if top <= 0 {
			return nil
		}
		fmt.Fprintf(w, "\nLargest gas changes:\n")
		for _, ch := range report.MostImpactful(top) {
			fmt.Fprintf(w, "  %-14s %6d -> %-6d (%+d)\n", ch.Name, ch.OldGas, ch.NewGas, ch.Delta())
		}
		return nil
	})
}

// adviceReport is the structured form of the advise output.
type adviceReport struct {
	Fork     forks.Fork `json:"fork" yaml:"fork"`
	General  []string   `json:"general" yaml:"general"`
	Sequence []string   `json:"sequence,omitempty" yaml:"sequence,omitempty"`
}

func advise(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	_, analyzer := newCalculator(cfg)
	advisor := vm.NewOptimizationAdvisor(analyzer)

	report := adviceReport{Fork: cfg.Fork, General: advisor.ForkAdvice(cfg.Fork)}
	if ctx.NArg() > 0 {
		seq, err := readSequence(ctx)
		if err != nil {
			return err
		}
		report.Sequence = advisor.AnalyzePattern(seq)
	}
	return emit(ctx, report, func(w io.Writer) error {
		fmt.Fprintf(w, "%s\n", bold("Advice for "+cfg.Fork.String()+":"))
		if err := writeLines(w, bullet(report.General)); err != nil {
			return err
		}
		if len(report.Sequence) > 0 {
			fmt.Fprintf(w, "\n%s\n", bold("Sequence:"))
			return writeLines(w, bullet(report.Sequence))
		}
		return nil
	})
}

func bullet(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = "  - " + l
	}
	return out
}

func validate(ctx *cli.Context) error {
	if _, err := loadConfig(ctx); err != nil {
		return err
	}
	report := vm.ValidateRegistry(vm.NewDefaultRegistry())
	if err := emit(ctx, report, func(w io.Writer) error {
		report.Render(w)
		return nil
	}); err != nil {
		return err
	}
	if !report.OK() {
		return fmt.Errorf("%w: %d errors", errRegistryInvalid, len(report.Errors))
	}
	return nil
}

// disasmReport is the structured form of the disasm output.
type disasmReport struct {
	CodeHash     string              `json:"codeHash" yaml:"codeHash"`
	Size         int                 `json:"size" yaml:"size"`
	Instructions []disasmInstruction `json:"instructions" yaml:"instructions"`
}

type disasmInstruction struct {
	Pc        uint64 `json:"pc" yaml:"pc"`
	Op        string `json:"op" yaml:"op"`
	Immediate string `json:"immediate,omitempty" yaml:"immediate,omitempty"`
	Truncated bool   `json:"truncated,omitempty" yaml:"truncated,omitempty"`
}

func disasm(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("required arguments: %v", ctx.Command.ArgsUsage)
	}
	if _, err := loadConfig(ctx); err != nil {
		return err
	}
	code, err := parseCode(ctx.Args().First())
	if err != nil {
		return err
	}
	prog := vm.Disassemble(code)
	if ctx.Bool(sequenceFlag.Name) {
		_, err := io.WriteString(ctx.App.Writer, vm.FormatSequence(vm.EstimateOperands(prog)))
		return err
	}

	report := disasmReport{
		CodeHash:     vm.CodeHash(code).Hex(),
		Size:         len(code),
		Instructions: make([]disasmInstruction, len(prog)),
	}
	for i, in := range prog {
		report.Instructions[i] = disasmInstruction{Pc: in.Pc, Op: in.Op.String(), Truncated: in.Truncated}
		if len(in.Immediate) > 0 {
			report.Instructions[i].Immediate = fmt.Sprintf("0x%x", in.Immediate)
		}
	}
	return emit(ctx, report, func(w io.Writer) error {
		fmt.Fprintf(w, "code hash: %s (%d bytes)\n", report.CodeHash, report.Size)
		return vm.WriteDisassembly(w, prog)
	})
}

func dumpConfig(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	return config.Dump(ctx.App.Writer, cfg)
}
