package vm

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/eth2030/evmgas/core/forks"
)

func findChange(changes []OpcodeChange, op OpCode, typ ChangeType) (OpcodeChange, bool) {
	for _, ch := range changes {
		if ch.Op == op && ch.Type == typ {
			return ch, true
		}
	}
	return OpcodeChange{}, false
}

func TestGasComparator_ReferenceCost(t *testing.T) {
	cmp := NewGasComparator(testRegistry)
	tests := []struct {
		op   OpCode
		fork forks.Fork
		want uint64
	}{
		{SLOAD, forks.Istanbul, 800},
		{SLOAD, forks.Berlin, 2100},
		{BALANCE, forks.Berlin, 2600},
		{CALL, forks.Berlin, 2700},
		{SSTORE, forks.Berlin, 5000},
		{ADD, forks.Cancun, 3},
		// 0x140 bytes of initcode: 10 words of memory, 8 words of initcode.
		{CREATE, forks.London, 32030},
		{CREATE, forks.Shanghai, 32046},
	}
	for _, tt := range tests {
		got, err := cmp.ReferenceCost(tt.op, tt.fork)
		if err != nil {
			t.Fatalf("ReferenceCost(%s, %s): %v", tt.op, tt.fork, err)
		}
		if got != tt.want {
			t.Errorf("ReferenceCost(%s, %s) = %d, want %d", tt.op, tt.fork, got, tt.want)
		}
	}
}

func TestGasComparator_Compare(t *testing.T) {
	cmp := NewGasComparator(testRegistry)

	res, err := cmp.Compare(TLOAD, forks.London, forks.Cancun)
	if err != nil {
		t.Fatal(err)
	}
	if res.FromAvailable || !res.ToAvailable || res.ToReference != 100 {
		t.Errorf("TLOAD comparison = %+v", res)
	}

	res, err = cmp.Compare(SSTORE, forks.Istanbul, forks.Berlin)
	if err != nil {
		t.Fatal(err)
	}
	if res.FromStatic != 5000 || res.ToStatic != 2900 || res.FromReference != res.ToReference {
		t.Errorf("SSTORE comparison = %+v", res)
	}

	if _, err := cmp.Compare(OpCode(0x0c), forks.Frontier, forks.Cancun); !errors.Is(err, ErrUnknownOpcode) {
		t.Errorf("0x0c err = %v, want ErrUnknownOpcode", err)
	}
}

func TestGasComparator_BerlinChanges(t *testing.T) {
	changes := NewGasComparator(testRegistry).Changes(forks.Istanbul, forks.Berlin)

	tests := []struct {
		op       OpCode
		old, new uint64
	}{
		{SLOAD, 800, 2100},
		{BALANCE, 700, 2600},
		{EXTCODEHASH, 700, 2600},
		{CALL, 700, 2700},
		{STATICCALL, 700, 2700},
	}
	for _, tt := range tests {
		ch, ok := findChange(changes, tt.op, ChangeGasCost)
		if !ok {
			t.Errorf("no gas change for %s", tt.op)
			continue
		}
		if ch.OldGas != tt.old || ch.NewGas != tt.new {
			t.Errorf("%s: %d -> %d, want %d -> %d", tt.op, ch.OldGas, ch.NewGas, tt.old, tt.new)
		}
	}
	// The SSTORE reference price is unchanged but its static part moved.
	if ch, ok := findChange(changes, SSTORE, ChangeGasCost); !ok || ch.Delta() != 0 || ch.NewStatic != 2900 {
		t.Errorf("SSTORE change = %+v, %v", ch, ok)
	}
	if _, ok := findChange(changes, ADD, ChangeGasCost); ok {
		t.Error("ADD did not change")
	}
	for i := 1; i < len(changes); i++ {
		if changes[i].Op < changes[i-1].Op {
			t.Fatal("changes not ordered by opcode")
		}
	}
}

func TestGasComparator_Report(t *testing.T) {
	cmp := NewGasComparator(testRegistry)

	r := cmp.Report(forks.London, forks.Cancun)
	if r.Summary.Added != 6 || r.Summary.Removed != 0 {
		t.Errorf("London -> Cancun summary = %+v", r.Summary)
	}
	for _, op := range []OpCode{PUSH0, TLOAD, TSTORE, MCOPY, BLOBHASH, BLOBBASEFEE} {
		if _, ok := findChange(r.Changes, op, ChangeAdded); !ok {
			t.Errorf("%s not reported as added", op)
		}
	}
	// Paris renames 0x44 without repricing it.
	if _, ok := findChange(r.Changes, PREVRANDAO, ChangeGasCost); ok {
		t.Error("PREVRANDAO reported as repriced")
	}
	if ch, ok := findChange(r.Changes, CREATE, ChangeGasCost); !ok || ch.Delta() != 16 {
		t.Errorf("CREATE initcode charge = %+v", ch)
	}

	back := cmp.Report(forks.Cancun, forks.London)
	if back.Summary.Removed != 6 || back.Summary.Added != 0 {
		t.Errorf("Cancun -> London summary = %+v", back.Summary)
	}

	same := cmp.Report(forks.Cancun, forks.Cancun)
	if len(same.Changes) != 0 {
		t.Errorf("identical forks report %d changes", len(same.Changes))
	}
}

func TestComparisonReport_MostImpactful(t *testing.T) {
	r := NewGasComparator(testRegistry).Report(forks.Istanbul, forks.Berlin)
	if r.Summary.Increases == 0 || r.Summary.TotalIncrease == 0 {
		t.Fatalf("summary = %+v", r.Summary)
	}
	top := r.MostImpactful(1)
	if len(top) != 1 || top[0].Op != CALL || top[0].Delta() != 2000 {
		t.Errorf("most impactful = %+v", top)
	}
	all := r.MostImpactful(-1)
	if len(all) != r.Summary.GasChanges {
		t.Errorf("MostImpactful(-1) returned %d of %d", len(all), r.Summary.GasChanges)
	}
}

func TestComparisonReport_Render(t *testing.T) {
	var buf bytes.Buffer
	NewGasComparator(testRegistry).Report(forks.London, forks.Shanghai).Render(&buf)
	out := buf.String()
	for _, want := range []string{
		"Gas cost comparison London -> Shanghai",
		"PUSH0",
		"0x5f",
		"added",
		"+16",
		"Added: 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render output missing %q:\n%s", want, out)
		}
	}
}
