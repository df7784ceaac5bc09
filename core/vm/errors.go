package vm

import (
	"errors"
	"fmt"
)

// Pricing errors. Each is a deterministic function of the opcode, the
// execution context, the fork and the operands, so none are retryable.
var (
	// ErrUnknownOpcode is returned when a byte is not registered at any fork.
	ErrUnknownOpcode = errors.New("gas: unknown opcode")
	// ErrUnsupportedOpcode is returned when a byte is defined but only
	// activated by a later fork than the one queried (e.g. TLOAD before Cancun).
	ErrUnsupportedOpcode = errors.New("gas: opcode not active at fork")
	// ErrMissingOperand is returned when an opcode whose price depends on its
	// inputs is priced without them.
	ErrMissingOperand = errors.New("gas: missing operand")
	// ErrOutOfGas is returned by ConsumeGas when the budget is insufficient.
	ErrOutOfGas = errors.New("gas: out of gas")
	// ErrGasUintOverflow is returned when an offset, a size or a price does
	// not fit in 64 bits.
	ErrGasUintOverflow = errors.New("gas: uint64 overflow")
	// ErrInvalidOperand is returned when sequence text carries an operand
	// that is not a 256-bit unsigned integer.
	ErrInvalidOperand = errors.New("gas: invalid operand")
)

// StepError annotates a pricing failure with the position of the offending
// instruction inside an analyzed sequence.
type StepError struct {
	Index int
	Op    OpCode
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Op, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
