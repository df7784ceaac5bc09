package vm

import (
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/eth2030/evmgas/core/forks"
)

// ChangeType classifies how an opcode differs between two forks.
type ChangeType uint8

const (
	ChangeAdded ChangeType = iota
	ChangeRemoved
	ChangeGasCost
	ChangeStackBehavior
)

func (t ChangeType) String() string {
	switch t {
	case ChangeAdded:
		return "added"
	case ChangeRemoved:
		return "removed"
	case ChangeGasCost:
		return "gas"
	case ChangeStackBehavior:
		return "stack"
	}
	return "ChangeType(" + strconv.Itoa(int(t)) + ")"
}

// OpcodeChange is one difference between the effective tables of two forks.
// Gas values are reference costs: the price of the opcode in a fresh, cold
// context with canonical operands. Static values exclude any surcharge.
type OpcodeChange struct {
	Op        OpCode     `json:"-" yaml:"-"`
	Name      string     `json:"opcode" yaml:"opcode"`
	Type      ChangeType `json:"-" yaml:"-"`
	Kind      string     `json:"type" yaml:"type"`
	OldGas    uint64     `json:"oldGas" yaml:"oldGas"`
	NewGas    uint64     `json:"newGas" yaml:"newGas"`
	OldStatic uint64     `json:"oldStatic" yaml:"oldStatic"`
	NewStatic uint64     `json:"newStatic" yaml:"newStatic"`
	OldStack  [2]int     `json:"oldStack" yaml:"oldStack"`
	NewStack  [2]int     `json:"newStack" yaml:"newStack"`
}

// Delta returns NewGas - OldGas as a signed value.
func (c OpcodeChange) Delta() int64 { return int64(c.NewGas) - int64(c.OldGas) }

func absDelta(c OpcodeChange) uint64 {
	if c.NewGas > c.OldGas {
		return c.NewGas - c.OldGas
	}
	return c.OldGas - c.NewGas
}

// GasComparison is the price of one opcode at two forks.
type GasComparison struct {
	Op            OpCode
	Name          string
	From, To      forks.Fork
	FromAvailable bool
	ToAvailable   bool
	FromStatic    uint64
	ToStatic      uint64
	FromReference uint64
	ToReference   uint64
}

// GasComparator compares opcode pricing across forks.
type GasComparator struct {
	registry *ForkRegistry
}

// NewGasComparator creates a comparator over registry.
func NewGasComparator(registry *ForkRegistry) *GasComparator {
	return &GasComparator{registry: registry}
}

// ReferenceCost prices op at f in a fresh context with canonical operands.
func (c *GasComparator) ReferenceCost(op OpCode, f forks.Fork) (uint64, error) {
	calc := NewGasCalculator(c.registry, f)
	return calc.SingleOpcodeCost(op, NewExecutionContext(), fallbackOperands(op))
}

// Compare prices op at both forks. It fails only if op is live at neither.
func (c *GasComparator) Compare(op OpCode, from, to forks.Fork) (GasComparison, error) {
	cmp := GasComparison{Op: op, Name: op.String(), From: from, To: to}
	var lastErr error
	side := func(f forks.Fork, available *bool, static, ref *uint64) {
		meta, err := c.registry.Lookup(f, op)
		if err != nil {
			lastErr = err
			return
		}
		*available = true
		cmp.Name = meta.Name
		*static = EffectiveGasCost(meta, f)
		if *ref, err = c.ReferenceCost(op, f); err != nil {
			*ref = *static
		}
	}
	side(from, &cmp.FromAvailable, &cmp.FromStatic, &cmp.FromReference)
	side(to, &cmp.ToAvailable, &cmp.ToStatic, &cmp.ToReference)
	if !cmp.FromAvailable && !cmp.ToAvailable {
		return cmp, lastErr
	}
	return cmp, nil
}

// Changes lists every difference between the effective tables of from and
// to, ordered by opcode byte.
func (c *GasComparator) Changes(from, to forks.Fork) []OpcodeChange {
	var out []OpcodeChange
	for b := 0; b < 256; b++ {
		op := OpCode(b)
		cmp, err := c.Compare(op, from, to)
		if err != nil {
			continue
		}
		change := OpcodeChange{
			Op:        op,
			Name:      cmp.Name,
			OldGas:    cmp.FromReference,
			NewGas:    cmp.ToReference,
			OldStatic: cmp.FromStatic,
			NewStatic: cmp.ToStatic,
		}
		oldMeta := c.registry.EffectiveOpcodes(from)[op]
		newMeta := c.registry.EffectiveOpcodes(to)[op]
		if oldMeta != nil {
			change.OldStack = [2]int{oldMeta.StackIn, oldMeta.StackOut}
		}
		if newMeta != nil {
			change.NewStack = [2]int{newMeta.StackIn, newMeta.StackOut}
		}
		switch {
		case !cmp.FromAvailable:
			out = append(out, change.as(ChangeAdded))
		case !cmp.ToAvailable:
			out = append(out, change.as(ChangeRemoved))
		default:
			if change.OldGas != change.NewGas || change.OldStatic != change.NewStatic {
				out = append(out, change.as(ChangeGasCost))
			}
			if change.OldStack != change.NewStack {
				out = append(out, change.as(ChangeStackBehavior))
			}
		}
	}
	return out
}

func (c OpcodeChange) as(t ChangeType) OpcodeChange {
	c.Type = t
	c.Kind = t.String()
	return c
}

// ChangeSummary aggregates a comparison.
type ChangeSummary struct {
	Added         int    `json:"added" yaml:"added"`
	Removed       int    `json:"removed" yaml:"removed"`
	GasChanges    int    `json:"gasChanges" yaml:"gasChanges"`
	Increases     int    `json:"increases" yaml:"increases"`
	Decreases     int    `json:"decreases" yaml:"decreases"`
	TotalIncrease uint64 `json:"totalIncrease" yaml:"totalIncrease"`
	TotalDecrease uint64 `json:"totalDecrease" yaml:"totalDecrease"`
	StackChanges  int    `json:"stackChanges" yaml:"stackChanges"`
}

// ComparisonReport is the full difference between two forks.
type ComparisonReport struct {
	From    forks.Fork     `json:"from" yaml:"from"`
	To      forks.Fork     `json:"to" yaml:"to"`
	Changes []OpcodeChange `json:"changes" yaml:"changes"`
	Summary ChangeSummary  `json:"summary" yaml:"summary"`
}

// Report compares from and to and summarizes the result.
func (c *GasComparator) Report(from, to forks.Fork) *ComparisonReport {
	r := &ComparisonReport{From: from, To: to, Changes: c.Changes(from, to)}
	for _, ch := range r.Changes {
		switch ch.Type {
		case ChangeAdded:
			r.Summary.Added++
		case ChangeRemoved:
			r.Summary.Removed++
		case ChangeStackBehavior:
			r.Summary.StackChanges++
		case ChangeGasCost:
			r.Summary.GasChanges++
			switch {
			case ch.NewGas > ch.OldGas:
				r.Summary.Increases++
				r.Summary.TotalIncrease += ch.NewGas - ch.OldGas
			case ch.NewGas < ch.OldGas:
				r.Summary.Decreases++
				r.Summary.TotalDecrease += ch.OldGas - ch.NewGas
			}
		}
	}
	return r
}

// MostImpactful returns up to n gas changes with the largest absolute
// delta, largest first.
func (r *ComparisonReport) MostImpactful(n int) []OpcodeChange {
	var gas []OpcodeChange
	for _, ch := range r.Changes {
		if ch.Type == ChangeGasCost {
			gas = append(gas, ch)
		}
	}
	slices.SortStableFunc(gas, func(a, b OpcodeChange) int {
		da, db := absDelta(a), absDelta(b)
		switch {
		case da > db:
			return -1
		case da < db:
			return 1
		}
		return 0
	})
	if n >= 0 && n < len(gas) {
		gas = gas[:n]
	}
	return gas
}

// Render writes the report as a table followed by the summary.
func (r *ComparisonReport) Render(w io.Writer) {
	fmt.Fprintf(w, "Gas cost comparison %s -> %s\n\n", r.From, r.To)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Opcode", "Byte", "Change", "Old", "New", "Delta"})
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, ch := range r.Changes {
		table.Append(changeRow(ch))
	}
	table.Render()

	s := r.Summary
	fmt.Fprintf(w, "\nAdded: %d  Removed: %d  Gas changes: %d  Stack changes: %d\n", s.Added, s.Removed, s.GasChanges, s.StackChanges)
	fmt.Fprintf(w, "Increases: %d (+%d gas)  Decreases: %d (-%d gas)\n", s.Increases, s.TotalIncrease, s.Decreases, s.TotalDecrease)
}

func changeRow(ch OpcodeChange) []string {
	row := []string{ch.Name, fmt.Sprintf("0x%02x", byte(ch.Op)), ch.Kind, "", "", ""}
	switch ch.Type {
	case ChangeAdded:
		row[4] = strconv.FormatUint(ch.NewGas, 10)
	case ChangeRemoved:
		row[3] = strconv.FormatUint(ch.OldGas, 10)
	case ChangeGasCost:
		row[3] = strconv.FormatUint(ch.OldGas, 10)
		row[4] = strconv.FormatUint(ch.NewGas, 10)
		row[5] = fmt.Sprintf("%+d", ch.Delta())
	case ChangeStackBehavior:
		row[3] = fmt.Sprintf("%d/%d", ch.OldStack[0], ch.OldStack[1])
		row[4] = fmt.Sprintf("%d/%d", ch.NewStack[0], ch.NewStack[1])
	}
	return row
}
