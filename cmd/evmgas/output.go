package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/eth2030/evmgas/core/vm"
)

var (
	warnLabel = color.New(color.FgYellow).SprintFunc()
	hintLabel = color.New(color.FgCyan).SprintFunc()
	bold      = color.New(color.Bold).SprintFunc()
)

// emit writes v in the report format selected by --format. text renders the
// human readable form.
func emit(ctx *cli.Context, v any, text func(w io.Writer) error) error {
	w := ctx.App.Writer
	switch format := strings.ToLower(ctx.String(outputFormatFlag.Name)); format {
	case "", "text":
		return text(w)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

// opcodeRow is one line of the opcodes listing.
type opcodeRow struct {
	Byte        string `json:"byte" yaml:"byte"`
	Name        string `json:"name" yaml:"name"`
	Gas         uint64 `json:"gas" yaml:"gas"`
	StackIn     int    `json:"stackIn" yaml:"stackIn"`
	StackOut    int    `json:"stackOut" yaml:"stackOut"`
	Group       string `json:"group" yaml:"group"`
	Introduced  string `json:"introduced" yaml:"introduced"`
	EIP         uint32 `json:"eip,omitempty" yaml:"eip,omitempty"`
	Description string `json:"description" yaml:"description"`
}

func writeOpcodeTable(w io.Writer, rows []opcodeRow) error {
	table := newTable(w, "Byte", "Opcode", "Gas", "In", "Out", "Group", "Since", "EIP")
	for _, r := range rows {
		eip := ""
		if r.EIP != 0 {
			eip = strconv.FormatUint(uint64(r.EIP), 10)
		}
		table.Append([]string{
			r.Byte, r.Name, strconv.FormatUint(r.Gas, 10),
			strconv.Itoa(r.StackIn), strconv.Itoa(r.StackOut),
			r.Group, r.Introduced, eip,
		})
	}
	table.Render()
	_, err := fmt.Fprintf(w, "%d opcodes\n", len(rows))
	return err
}

func writeStepTable(w io.Writer, steps []vm.StepCost) {
	table := newTable(w, "#", "Opcode", "Base", "Dynamic", "Total")
	for _, s := range steps {
		table.Append([]string{
			strconv.Itoa(s.Index), s.Name,
			strconv.FormatUint(s.Base, 10),
			strconv.FormatUint(s.Dynamic, 10),
			strconv.FormatUint(s.Total, 10),
		})
	}
	table.Render()
}

// writeAnalysis renders a sequence analysis for terminals.
func writeAnalysis(w io.Writer, res *vm.GasAnalysisResult) error {
	fmt.Fprintf(w, "%s %s\n", bold("Fork:"), res.Fork)
	fmt.Fprintf(w, "%s %d (execution %d)\n\n", bold("Total gas:"), res.TotalGas, res.ExecutionGas())
	writeStepTable(w, res.Breakdown)

	c := res.Context
	fmt.Fprintf(w, "\nMemory: %d bytes  Warm addresses: %d  Warm slots: %d  Gas remaining: %d\n",
		c.MemorySize, c.WarmAddresses, c.WarmSlots, c.GasRemaining)
	fmt.Fprintf(w, "Efficiency score: %d\n", res.EfficiencyScore())
	for _, msg := range res.Warnings {
		fmt.Fprintf(w, "%s %s\n", warnLabel("warning:"), msg)
	}
	for _, msg := range res.GasBombs() {
		fmt.Fprintf(w, "%s %s\n", warnLabel("warning:"), msg)
	}
	for _, msg := range res.Recommendations() {
		fmt.Fprintf(w, "%s %s\n", hintLabel("hint:"), msg)
	}
	if s := res.EstimatedSavings(); s > 0 {
		fmt.Fprintf(w, "Estimated savings: %d gas\n", s)
	}
	return nil
}

func writeLines(w io.Writer, lines []string) error {
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
