package vm

import (
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Disassemble splits code into instructions. PUSH immediates that run past
// the end of the code are zero-padded to their full width and flagged as
// truncated, matching how the EVM reads them.
func Disassemble(code []byte) []Instruction {
	var out []Instruction
	for pc := 0; pc < len(code); pc++ {
		op := OpCode(code[pc])
		in := Instruction{Pc: uint64(pc), Op: op}
		if n := op.PushSize(); n > 0 {
			imm := make([]byte, n)
			end := pc + 1 + n
			if end > len(code) {
				end = len(code)
				in.Truncated = true
			}
			copy(imm, code[pc+1:end])
			in.Immediate = imm
			pc += n
		}
		out = append(out, in)
	}
	return out
}

// CodeHash returns the Keccak-256 hash of code.
func CodeHash(code []byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(code)
	var out common.Hash
	h.Sum(out[:0])
	return out
}

// WriteDisassembly prints one instruction per line with its offset.
func WriteDisassembly(w io.Writer, prog []Instruction) error {
	for _, in := range prog {
		line := fmt.Sprintf("%05x: %s", in.Pc, in)
		if in.Truncated {
			line += " (truncated)"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
