package vm

import (
	"bufio"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// ParseSequence reads opcode sequences written one instruction per line or
// separated by semicolons:
//
//	PUSH1 0x80
//	PUSH1 0x40; MSTORE 0x40
//	SLOAD 0x01   # comment
//
// The first token is a mnemonic or a raw opcode byte such as 0x54. For
// PUSH instructions the single operand becomes the immediate; for all other
// opcodes the operands are the stack inputs, top of stack first. Operands
// are decimal or 0x-prefixed hex and may use the full 256 bits.
func ParseSequence(text string) ([]Instruction, error) {
	var out []Instruction
	sc := bufio.NewScanner(strings.NewReader(text))
	// A whole program may sit on one ';'-separated line.
	sc.Buffer(nil, max(len(text)+1, bufio.MaxScanTokenSize))
	for line := 1; sc.Scan(); line++ {
		body := sc.Text()
		if i := strings.IndexByte(body, '#'); i >= 0 {
			body = body[:i]
		}
		if i := strings.Index(body, "//"); i >= 0 {
			body = body[:i]
		}
		for _, item := range strings.Split(body, ";") {
			fields := strings.Fields(item)
			if len(fields) == 0 {
				continue
			}
			in, err := parseInstruction(fields)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			out = append(out, in)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseInstruction(fields []string) (Instruction, error) {
	op, err := parseOpToken(fields[0])
	if err != nil {
		return Instruction{}, err
	}
	in := Instruction{Op: op}
	operands := make(Operands, 0, len(fields)-1)
	for _, tok := range fields[1:] {
		v, err := parseWord(tok)
		if err != nil {
			return Instruction{}, err
		}
		operands = append(operands, *v)
	}
	if n := op.PushSize(); n > 0 {
		if len(operands) > 1 {
			return Instruction{}, fmt.Errorf("%w: %s takes one immediate, got %d", ErrInvalidOperand, op, len(operands))
		}
		imm := make([]byte, n)
		if len(operands) == 1 {
			if operands[0].ByteLen() > n {
				return Instruction{}, fmt.Errorf("%w: %s does not fit in %s", ErrInvalidOperand, fields[1], op)
			}
			b := operands[0].Bytes32()
			copy(imm, b[32-n:])
		}
		in.Immediate = imm
		return in, nil
	}
	if len(operands) > 0 {
		in.Operands = operands
	}
	return in, nil
}

// parseOpToken accepts a mnemonic or a single hex byte.
func parseOpToken(tok string) (OpCode, error) {
	if strings.HasPrefix(tok, "0x") || strings.HasPrefix(tok, "0X") {
		v, err := parseWord(tok)
		if err != nil || !v.IsUint64() || v.Uint64() > 0xff {
			return 0, fmt.Errorf("%w: %q", ErrUnknownOpcode, tok)
		}
		return OpCode(v.Uint64()), nil
	}
	return ParseOpCode(tok)
}

// parseWord parses a decimal or 0x-prefixed hex unsigned 256-bit integer.
func parseWord(tok string) (*uint256.Int, error) {
	b, ok := new(big.Int).SetString(tok, 0)
	if !ok || b.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOperand, tok)
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("%w: %q exceeds 256 bits", ErrInvalidOperand, tok)
	}
	return v, nil
}

// FormatSequence renders seq in the syntax ParseSequence reads.
func FormatSequence(seq []Instruction) string {
	var sb strings.Builder
	for _, in := range seq {
		sb.WriteString(in.Op.String())
		if len(in.Immediate) > 0 {
			fmt.Fprintf(&sb, " 0x%x", in.Immediate)
		}
		for i := range in.Operands {
			sb.WriteString(" ")
			sb.WriteString(in.Operands[i].Hex())
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
