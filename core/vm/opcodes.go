// Package vm prices EVM opcodes across Ethereum hard forks. It holds the
// per-fork opcode tables, the execution context that dynamic pricing reads
// (memory size, EIP-2929 warm sets, call depth, budget), the calculator that
// combines both into per-opcode prices, and the sequence analyzer, fork
// comparator and registry validator built on top.
package vm

import (
	"fmt"
	"strings"
)

// OpCode is a single EVM instruction byte. There is exactly one OpCode type
// for every fork; which bytes are live at a given fork is a property of the
// fork registry, not of the type.
type OpCode byte

const (
	STOP       OpCode = 0x00
	ADD        OpCode = 0x01
	MUL        OpCode = 0x02
	SUB        OpCode = 0x03
	DIV        OpCode = 0x04
	SDIV       OpCode = 0x05
	MOD        OpCode = 0x06
	SMOD       OpCode = 0x07
	ADDMOD     OpCode = 0x08
	MULMOD     OpCode = 0x09
	EXP        OpCode = 0x0a
	SIGNEXTEND OpCode = 0x0b

	LT     OpCode = 0x10
	GT     OpCode = 0x11
	SLT    OpCode = 0x12
	SGT    OpCode = 0x13
	EQ     OpCode = 0x14
	ISZERO OpCode = 0x15
	AND    OpCode = 0x16
	OR     OpCode = 0x17
	XOR    OpCode = 0x18
	NOT    OpCode = 0x19
	BYTE   OpCode = 0x1a
	SHL    OpCode = 0x1b
	SHR    OpCode = 0x1c
	SAR    OpCode = 0x1d

	KECCAK256 OpCode = 0x20

	ADDRESS        OpCode = 0x30
	BALANCE        OpCode = 0x31
	ORIGIN         OpCode = 0x32
	CALLER         OpCode = 0x33
	CALLVALUE      OpCode = 0x34
	CALLDATALOAD   OpCode = 0x35
	CALLDATASIZE   OpCode = 0x36
	CALLDATACOPY   OpCode = 0x37
	CODESIZE       OpCode = 0x38
	CODECOPY       OpCode = 0x39
	GASPRICE       OpCode = 0x3a
	EXTCODESIZE    OpCode = 0x3b
	EXTCODECOPY    OpCode = 0x3c
	RETURNDATASIZE OpCode = 0x3d
	RETURNDATACOPY OpCode = 0x3e
	EXTCODEHASH    OpCode = 0x3f

	BLOCKHASH   OpCode = 0x40
	COINBASE    OpCode = 0x41
	TIMESTAMP   OpCode = 0x42
	NUMBER      OpCode = 0x43
	PREVRANDAO  OpCode = 0x44 // was DIFFICULTY pre-merge
	GASLIMIT    OpCode = 0x45
	CHAINID     OpCode = 0x46
	SELFBALANCE OpCode = 0x47
	BASEFEE     OpCode = 0x48
	BLOBHASH    OpCode = 0x49
	BLOBBASEFEE OpCode = 0x4a

	POP      OpCode = 0x50
	MLOAD    OpCode = 0x51
	MSTORE   OpCode = 0x52
	MSTORE8  OpCode = 0x53
	SLOAD    OpCode = 0x54
	SSTORE   OpCode = 0x55
	JUMP     OpCode = 0x56
	JUMPI    OpCode = 0x57
	PC       OpCode = 0x58
	MSIZE    OpCode = 0x59
	GAS      OpCode = 0x5a
	JUMPDEST OpCode = 0x5b
	TLOAD    OpCode = 0x5c // EIP-1153
	TSTORE   OpCode = 0x5d // EIP-1153
	MCOPY    OpCode = 0x5e // EIP-5656

	PUSH0  OpCode = 0x5f
	PUSH1  OpCode = 0x60
	PUSH2  OpCode = 0x61
	PUSH3  OpCode = 0x62
	PUSH4  OpCode = 0x63
	PUSH5  OpCode = 0x64
	PUSH6  OpCode = 0x65
	PUSH7  OpCode = 0x66
	PUSH8  OpCode = 0x67
	PUSH9  OpCode = 0x68
	PUSH10 OpCode = 0x69
	PUSH11 OpCode = 0x6a
	PUSH12 OpCode = 0x6b
	PUSH13 OpCode = 0x6c
	PUSH14 OpCode = 0x6d
	PUSH15 OpCode = 0x6e
	PUSH16 OpCode = 0x6f
	PUSH17 OpCode = 0x70
	PUSH18 OpCode = 0x71
	PUSH19 OpCode = 0x72
	PUSH20 OpCode = 0x73
	PUSH21 OpCode = 0x74
	PUSH22 OpCode = 0x75
	PUSH23 OpCode = 0x76
	PUSH24 OpCode = 0x77
	PUSH25 OpCode = 0x78
	PUSH26 OpCode = 0x79
	PUSH27 OpCode = 0x7a
	PUSH28 OpCode = 0x7b
	PUSH29 OpCode = 0x7c
	PUSH30 OpCode = 0x7d
	PUSH31 OpCode = 0x7e
	PUSH32 OpCode = 0x7f

	DUP1  OpCode = 0x80
	DUP2  OpCode = 0x81
	DUP3  OpCode = 0x82
	DUP4  OpCode = 0x83
	DUP5  OpCode = 0x84
	DUP6  OpCode = 0x85
	DUP7  OpCode = 0x86
	DUP8  OpCode = 0x87
	DUP9  OpCode = 0x88
	DUP10 OpCode = 0x89
	DUP11 OpCode = 0x8a
	DUP12 OpCode = 0x8b
	DUP13 OpCode = 0x8c
	DUP14 OpCode = 0x8d
	DUP15 OpCode = 0x8e
	DUP16 OpCode = 0x8f

	SWAP1  OpCode = 0x90
	SWAP2  OpCode = 0x91
	SWAP3  OpCode = 0x92
	SWAP4  OpCode = 0x93
	SWAP5  OpCode = 0x94
	SWAP6  OpCode = 0x95
	SWAP7  OpCode = 0x96
	SWAP8  OpCode = 0x97
	SWAP9  OpCode = 0x98
	SWAP10 OpCode = 0x99
	SWAP11 OpCode = 0x9a
	SWAP12 OpCode = 0x9b
	SWAP13 OpCode = 0x9c
	SWAP14 OpCode = 0x9d
	SWAP15 OpCode = 0x9e
	SWAP16 OpCode = 0x9f

	LOG0 OpCode = 0xa0
	LOG1 OpCode = 0xa1
	LOG2 OpCode = 0xa2
	LOG3 OpCode = 0xa3
	LOG4 OpCode = 0xa4

	CREATE       OpCode = 0xf0
	CALL         OpCode = 0xf1
	CALLCODE     OpCode = 0xf2
	RETURN       OpCode = 0xf3
	DELEGATECALL OpCode = 0xf4
	CREATE2      OpCode = 0xf5
	STATICCALL   OpCode = 0xfa
	REVERT       OpCode = 0xfd
	INVALID      OpCode = 0xfe // EIP-141 designated invalid
	SELFDESTRUCT OpCode = 0xff
)

// opCodeNames is indexed by opcode byte; empty strings are undefined bytes.
var opCodeNames = buildOpCodeNames()

// opCodeByName is the reverse lookup used by ParseOpCode.
var opCodeByName = buildOpCodeByName()

func buildOpCodeNames() [256]string {
	var names [256]string
	named := []struct {
		op   OpCode
		name string
	}{
		{STOP, "STOP"}, {ADD, "ADD"}, {MUL, "MUL"}, {SUB, "SUB"}, {DIV, "DIV"},
		{SDIV, "SDIV"}, {MOD, "MOD"}, {SMOD, "SMOD"}, {ADDMOD, "ADDMOD"}, {MULMOD, "MULMOD"},
		{EXP, "EXP"}, {SIGNEXTEND, "SIGNEXTEND"}, {LT, "LT"}, {GT, "GT"}, {SLT, "SLT"},
		{SGT, "SGT"}, {EQ, "EQ"}, {ISZERO, "ISZERO"}, {AND, "AND"}, {OR, "OR"},
		{XOR, "XOR"}, {NOT, "NOT"}, {BYTE, "BYTE"}, {SHL, "SHL"}, {SHR, "SHR"},
		{SAR, "SAR"}, {KECCAK256, "KECCAK256"}, {ADDRESS, "ADDRESS"}, {BALANCE, "BALANCE"}, {ORIGIN, "ORIGIN"},
		{CALLER, "CALLER"}, {CALLVALUE, "CALLVALUE"}, {CALLDATALOAD, "CALLDATALOAD"}, {CALLDATASIZE, "CALLDATASIZE"}, {CALLDATACOPY, "CALLDATACOPY"},
		{CODESIZE, "CODESIZE"}, {CODECOPY, "CODECOPY"}, {GASPRICE, "GASPRICE"}, {EXTCODESIZE, "EXTCODESIZE"}, {EXTCODECOPY, "EXTCODECOPY"},
		{RETURNDATASIZE, "RETURNDATASIZE"}, {RETURNDATACOPY, "RETURNDATACOPY"}, {EXTCODEHASH, "EXTCODEHASH"}, {BLOCKHASH, "BLOCKHASH"}, {COINBASE, "COINBASE"},
		{TIMESTAMP, "TIMESTAMP"}, {NUMBER, "NUMBER"}, {PREVRANDAO, "PREVRANDAO"}, {GASLIMIT, "GASLIMIT"}, {CHAINID, "CHAINID"},
		{SELFBALANCE, "SELFBALANCE"}, {BASEFEE, "BASEFEE"}, {BLOBHASH, "BLOBHASH"}, {BLOBBASEFEE, "BLOBBASEFEE"}, {POP, "POP"},
		{MLOAD, "MLOAD"}, {MSTORE, "MSTORE"}, {MSTORE8, "MSTORE8"}, {SLOAD, "SLOAD"}, {SSTORE, "SSTORE"},
		{JUMP, "JUMP"}, {JUMPI, "JUMPI"}, {PC, "PC"}, {MSIZE, "MSIZE"}, {GAS, "GAS"},
		{JUMPDEST, "JUMPDEST"}, {TLOAD, "TLOAD"}, {TSTORE, "TSTORE"}, {MCOPY, "MCOPY"}, {PUSH0, "PUSH0"},
		{CREATE, "CREATE"}, {CALL, "CALL"}, {CALLCODE, "CALLCODE"}, {RETURN, "RETURN"}, {DELEGATECALL, "DELEGATECALL"},
		{CREATE2, "CREATE2"}, {STATICCALL, "STATICCALL"}, {REVERT, "REVERT"}, {INVALID, "INVALID"}, {SELFDESTRUCT, "SELFDESTRUCT"},
	}
	for _, n := range named {
		names[n.op] = n.name
	}
	for i := 0; i < 32; i++ {
		names[PUSH1+OpCode(i)] = fmt.Sprintf("PUSH%d", i+1)
	}
	for i := 0; i < 16; i++ {
		names[DUP1+OpCode(i)] = fmt.Sprintf("DUP%d", i+1)
		names[SWAP1+OpCode(i)] = fmt.Sprintf("SWAP%d", i+1)
	}
	for i := 0; i <= 4; i++ {
		names[LOG0+OpCode(i)] = fmt.Sprintf("LOG%d", i)
	}
	return names
}

func buildOpCodeByName() map[string]OpCode {
	byName := make(map[string]OpCode, 160)
	for i, name := range opCodeNames {
		if name != "" {
			byName[name] = OpCode(i)
		}
	}
	// Legacy mnemonics still found in older tooling and disassembly output.
	byName["SHA3"] = KECCAK256
	byName["DIFFICULTY"] = PREVRANDAO
	byName["SUICIDE"] = SELFDESTRUCT
	return byName
}

// String returns the mnemonic of the opcode.
func (op OpCode) String() string {
	if name := opCodeNames[op]; name != "" {
		return name
	}
	return fmt.Sprintf("opcode 0x%02x", byte(op))
}

// Defined reports whether the byte has a mnemonic at any fork.
func (op OpCode) Defined() bool { return opCodeNames[op] != "" }

// ParseOpCode resolves a mnemonic (case-insensitive) to its opcode.
func ParseOpCode(name string) (OpCode, error) {
	if op, ok := opCodeByName[strings.ToUpper(strings.TrimSpace(name))]; ok {
		return op, nil
	}
	return 0, fmt.Errorf("%w: mnemonic %q", ErrUnknownOpcode, name)
}

// IsPush returns true if the opcode is a PUSH instruction (PUSH1..PUSH32).
func (op OpCode) IsPush() bool {
	return op >= PUSH1 && op <= PUSH32
}

// PushSize returns the number of immediate bytes following the opcode.
func (op OpCode) PushSize() int {
	if op.IsPush() {
		return int(op-PUSH1) + 1
	}
	return 0
}

// IsDup returns true for DUP1..DUP16.
func (op OpCode) IsDup() bool { return op >= DUP1 && op <= DUP16 }

// IsSwap returns true for SWAP1..SWAP16.
func (op OpCode) IsSwap() bool { return op >= SWAP1 && op <= SWAP16 }

// IsLog returns true for LOG0..LOG4.
func (op OpCode) IsLog() bool { return op >= LOG0 && op <= LOG4 }

// LogTopics returns the topic count of a LOG opcode.
func (op OpCode) LogTopics() int {
	if op.IsLog() {
		return int(op - LOG0)
	}
	return 0
}

// IsCall returns true for the message-call family.
func (op OpCode) IsCall() bool {
	switch op {
	case CALL, CALLCODE, DELEGATECALL, STATICCALL:
		return true
	}
	return false
}

// IsCreate returns true for CREATE and CREATE2.
func (op OpCode) IsCreate() bool { return op == CREATE || op == CREATE2 }

// IsAccountAccess returns true for opcodes priced by EIP-2929 address access.
func (op OpCode) IsAccountAccess() bool {
	switch op {
	case BALANCE, EXTCODESIZE, EXTCODECOPY, EXTCODEHASH:
		return true
	}
	return false
}

// IsCopy returns true for the memory copy opcodes priced per word.
func (op OpCode) IsCopy() bool {
	switch op {
	case CALLDATACOPY, CODECOPY, RETURNDATACOPY:
		return true
	}
	return false
}

// IsStateModifying returns true for opcodes forbidden inside a static call.
// CALL is included although it only modifies state when it carries value.
func (op OpCode) IsStateModifying() bool {
	switch op {
	case SSTORE, TSTORE, CREATE, CREATE2, SELFDESTRUCT, CALL:
		return true
	}
	return op.IsLog()
}

// IsTerminal returns true for opcodes that end the current frame.
func (op OpCode) IsTerminal() bool {
	switch op {
	case STOP, RETURN, REVERT, INVALID, SELFDESTRUCT:
		return true
	}
	return false
}
