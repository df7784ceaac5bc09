package vm

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestDisassemble(t *testing.T) {
	// PUSH1 0x80 PUSH1 0x40 MSTORE PUSH2 0x0102 STOP
	prog := Disassemble(common.FromHex("608060405261010200"))
	want := []struct {
		pc  uint64
		op  OpCode
		imm string
	}{
		{0, PUSH1, "80"},
		{2, PUSH1, "40"},
		{4, MSTORE, ""},
		{5, PUSH2, "0102"},
		{8, STOP, ""},
	}
	if len(prog) != len(want) {
		t.Fatalf("got %d instructions, want %d", len(prog), len(want))
	}
	for i, w := range want {
		in := prog[i]
		if in.Pc != w.pc || in.Op != w.op || common.Bytes2Hex(in.Immediate) != w.imm || in.Truncated {
			t.Errorf("instruction %d = %+v, want pc %d %s %s", i, in, w.pc, w.op, w.imm)
		}
	}
}

func TestDisassembleTruncatedPush(t *testing.T) {
	prog := Disassemble(common.FromHex("6201"))
	if len(prog) != 1 {
		t.Fatalf("got %d instructions, want 1", len(prog))
	}
	in := prog[0]
	if !in.Truncated || !bytes.Equal(in.Immediate, []byte{0x01, 0x00, 0x00}) {
		t.Errorf("truncated push = %+v", in)
	}
}

func TestDisassembleEmpty(t *testing.T) {
	if prog := Disassemble(nil); len(prog) != 0 {
		t.Errorf("empty code gave %d instructions", len(prog))
	}
}

func TestCodeHash(t *testing.T) {
	// Keccak-256 of the empty string.
	want := common.HexToHash("0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")
	if got := CodeHash(nil); got != want {
		t.Errorf("CodeHash(nil) = %s, want %s", got.Hex(), want.Hex())
	}
}

func TestWriteDisassembly(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDisassembly(&buf, Disassemble(common.FromHex("60015462ff"))); err != nil {
		t.Fatal(err)
	}
	want := "00000: PUSH1 0x01\n00002: SLOAD\n00003: PUSH3 0xff0000 (truncated)\n"
	if buf.String() != want {
		t.Errorf("got\n%s\nwant\n%s", buf.String(), want)
	}
}
