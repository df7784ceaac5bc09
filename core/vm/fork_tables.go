package vm

import (
	"fmt"
	"sync"

	"github.com/eth2030/evmgas/core/forks"
)

// OpcodeTable maps opcode bytes to their metadata.
type OpcodeTable map[OpCode]*OpcodeMetadata

// MetadataProvider supplies the opcodes each fork defines on its own, i.e.
// the opcodes it introduces or redefines. The registry folds these into
// cumulative effective tables.
type MetadataProvider interface {
	OwnTable(f forks.Fork) OpcodeTable
}

// StaticMetadata is a MetadataProvider backed by a plain map.
type StaticMetadata map[forks.Fork]OpcodeTable

// OwnTable implements MetadataProvider.
func (s StaticMetadata) OwnTable(f forks.Fork) OpcodeTable { return s[f] }

var (
	builtinOnce     sync.Once
	builtinMetadata StaticMetadata
)

// DefaultMetadata returns the built-in mainnet opcode tables. The result is
// built once and shared; callers must treat it as read-only.
func DefaultMetadata() StaticMetadata {
	builtinOnce.Do(func() {
		builtinMetadata = StaticMetadata{
			forks.Frontier:       newFrontierTable(),
			forks.Homestead:      newHomesteadTable(),
			forks.Byzantium:      newByzantiumTable(),
			forks.Constantinople: newConstantinopleTable(),
			forks.Istanbul:       newIstanbulTable(),
			forks.London:         newLondonTable(),
			forks.Paris:          newParisTable(),
			forks.Shanghai:       newShanghaiTable(),
			forks.Cancun:         newCancunTable(),
		}
	})
	return builtinMetadata
}

// tableBuilder accumulates the own table of a single fork.
type tableBuilder struct {
	fork  forks.Fork
	table OpcodeTable
}

func newTableBuilder(f forks.Fork) *tableBuilder {
	return &tableBuilder{fork: f, table: make(OpcodeTable)}
}

// add registers op under its canonical mnemonic.
func (b *tableBuilder) add(op OpCode, gas uint64, in, out int, g Group, eip uint32, desc string, history ...GasChange) {
	b.addNamed(op, op.String(), gas, in, out, g, eip, desc, history...)
}

func (b *tableBuilder) addNamed(op OpCode, name string, gas uint64, in, out int, g Group, eip uint32, desc string, history ...GasChange) {
	b.table[op] = &OpcodeMetadata{
		Op:           op,
		Name:         name,
		BaseGas:      gas,
		StackIn:      in,
		StackOut:     out,
		Description:  desc,
		Group:        g,
		IntroducedIn: b.fork,
		EIP:          eip,
		GasHistory:   history,
	}
}

func at(f forks.Fork, gas uint64) GasChange { return GasChange{Fork: f, Gas: gas} }

// newFrontierTable returns the instruction set live at genesis.
func newFrontierTable() OpcodeTable {
	b := newTableBuilder(forks.Frontier)

	b.add(STOP, GasZeroStep, 0, 0, GroupStopArithmetic, 0, "Halts execution")
	b.add(ADD, GasFastestStep, 2, 1, GroupStopArithmetic, 0, "Addition operation")
	b.add(MUL, GasFastStep, 2, 1, GroupStopArithmetic, 0, "Multiplication operation")
	b.add(SUB, GasFastestStep, 2, 1, GroupStopArithmetic, 0, "Subtraction operation")
	b.add(DIV, GasFastStep, 2, 1, GroupStopArithmetic, 0, "Integer division operation")
	b.add(SDIV, GasFastStep, 2, 1, GroupStopArithmetic, 0, "Signed integer division operation")
	b.add(MOD, GasFastStep, 2, 1, GroupStopArithmetic, 0, "Modulo remainder operation")
	b.add(SMOD, GasFastStep, 2, 1, GroupStopArithmetic, 0, "Signed modulo remainder operation")
	b.add(ADDMOD, GasMidStep, 3, 1, GroupStopArithmetic, 0, "Modulo addition operation")
	b.add(MULMOD, GasMidStep, 3, 1, GroupStopArithmetic, 0, "Modulo multiplication operation")
	b.add(EXP, GasSlowStep, 2, 1, GroupStopArithmetic, 0, "Exponential operation")
	b.add(SIGNEXTEND, GasFastStep, 2, 1, GroupStopArithmetic, 0, "Extend length of two's complement signed integer")

	b.add(LT, GasFastestStep, 2, 1, GroupComparisonBitwiseLogic, 0, "Less-than comparison")
	b.add(GT, GasFastestStep, 2, 1, GroupComparisonBitwiseLogic, 0, "Greater-than comparison")
	b.add(SLT, GasFastestStep, 2, 1, GroupComparisonBitwiseLogic, 0, "Signed less-than comparison")
	b.add(SGT, GasFastestStep, 2, 1, GroupComparisonBitwiseLogic, 0, "Signed greater-than comparison")
	b.add(EQ, GasFastestStep, 2, 1, GroupComparisonBitwiseLogic, 0, "Equality comparison")
	b.add(ISZERO, GasFastestStep, 1, 1, GroupComparisonBitwiseLogic, 0, "Is-zero comparison")
	b.add(AND, GasFastestStep, 2, 1, GroupComparisonBitwiseLogic, 0, "Bitwise AND operation")
	b.add(OR, GasFastestStep, 2, 1, GroupComparisonBitwiseLogic, 0, "Bitwise OR operation")
	b.add(XOR, GasFastestStep, 2, 1, GroupComparisonBitwiseLogic, 0, "Bitwise XOR operation")
	b.add(NOT, GasFastestStep, 1, 1, GroupComparisonBitwiseLogic, 0, "Bitwise NOT operation")
	b.add(BYTE, GasFastestStep, 2, 1, GroupComparisonBitwiseLogic, 0, "Retrieve single byte from word")

	b.add(KECCAK256, Keccak256Gas, 2, 1, GroupSha3, 0, "Compute Keccak-256 hash")

	b.add(ADDRESS, GasQuickStep, 0, 1, GroupEnvironmentalInformation, 0, "Get address of currently executing account")
	b.add(BALANCE, BalanceGasFrontier, 1, 1, GroupEnvironmentalInformation, 0, "Get balance of the given account",
		at(forks.TangerineWhistle, BalanceGasEIP150), at(forks.Istanbul, BalanceGasEIP1884), at(forks.Berlin, 0))
	b.add(ORIGIN, GasQuickStep, 0, 1, GroupEnvironmentalInformation, 0, "Get execution origination address")
	b.add(CALLER, GasQuickStep, 0, 1, GroupEnvironmentalInformation, 0, "Get caller address")
	b.add(CALLVALUE, GasQuickStep, 0, 1, GroupEnvironmentalInformation, 0, "Get deposited value by the caller")
	b.add(CALLDATALOAD, GasFastestStep, 1, 1, GroupEnvironmentalInformation, 0, "Get input data of current environment")
	b.add(CALLDATASIZE, GasQuickStep, 0, 1, GroupEnvironmentalInformation, 0, "Get size of input data in current environment")
	b.add(CALLDATACOPY, GasFastestStep, 3, 0, GroupEnvironmentalInformation, 0, "Copy input data in current environment to memory")
	b.add(CODESIZE, GasQuickStep, 0, 1, GroupEnvironmentalInformation, 0, "Get size of code running in current environment")
	b.add(CODECOPY, GasFastestStep, 3, 0, GroupEnvironmentalInformation, 0, "Copy code running in current environment to memory")
	b.add(GASPRICE, GasQuickStep, 0, 1, GroupEnvironmentalInformation, 0, "Get price of gas in current environment")
	b.add(EXTCODESIZE, ExtcodeSizeFrontier, 1, 1, GroupEnvironmentalInformation, 0, "Get size of an account's code",
		at(forks.TangerineWhistle, ExtcodeSizeEIP150), at(forks.Berlin, 0))
	b.add(EXTCODECOPY, ExtcodeCopyFrontier, 4, 0, GroupEnvironmentalInformation, 0, "Copy an account's code to memory",
		at(forks.TangerineWhistle, ExtcodeCopyEIP150), at(forks.Berlin, 0))

	b.add(BLOCKHASH, GasExtStep, 1, 1, GroupBlockInformation, 0, "Get the hash of one of the 256 most recent complete blocks")
	b.add(COINBASE, GasQuickStep, 0, 1, GroupBlockInformation, 0, "Get the block's beneficiary address")
	b.add(TIMESTAMP, GasQuickStep, 0, 1, GroupBlockInformation, 0, "Get the block's timestamp")
	b.add(NUMBER, GasQuickStep, 0, 1, GroupBlockInformation, 0, "Get the block's number")
	b.addNamed(PREVRANDAO, "DIFFICULTY", GasQuickStep, 0, 1, GroupBlockInformation, 0, "Get the block's difficulty")
	b.add(GASLIMIT, GasQuickStep, 0, 1, GroupBlockInformation, 0, "Get the block's gas limit")

	b.add(POP, GasQuickStep, 1, 0, GroupStackMemoryStorageFlow, 0, "Remove item from stack")
	b.add(MLOAD, GasFastestStep, 1, 1, GroupStackMemoryStorageFlow, 0, "Load word from memory")
	b.add(MSTORE, GasFastestStep, 2, 0, GroupStackMemoryStorageFlow, 0, "Save word to memory")
	b.add(MSTORE8, GasFastestStep, 2, 0, GroupStackMemoryStorageFlow, 0, "Save byte to memory")
	// SLOAD is priced entirely by the access surcharge.
	b.add(SLOAD, GasZeroStep, 1, 1, GroupStackMemoryStorageFlow, 0, "Load word from storage")
	b.add(SSTORE, SstoreResetGas, 2, 0, GroupStackMemoryStorageFlow, 0, "Save word to storage",
		at(forks.Berlin, SstoreResetGasBerlin))
	b.add(JUMP, GasMidStep, 1, 0, GroupStackMemoryStorageFlow, 0, "Alter the program counter")
	b.add(JUMPI, GasSlowStep, 2, 0, GroupStackMemoryStorageFlow, 0, "Conditionally alter the program counter")
	b.add(PC, GasQuickStep, 0, 1, GroupStackMemoryStorageFlow, 0, "Get the value of the program counter")
	b.add(MSIZE, GasQuickStep, 0, 1, GroupStackMemoryStorageFlow, 0, "Get the size of active memory in bytes")
	b.add(GAS, GasQuickStep, 0, 1, GroupStackMemoryStorageFlow, 0, "Get the amount of available gas")
	b.add(JUMPDEST, GasJumpDest, 0, 0, GroupStackMemoryStorageFlow, 0, "Mark a valid destination for jumps")

	for i := 0; i < 32; i++ {
		b.add(PUSH1+OpCode(i), GasFastestStep, 0, 1, GroupPush, 0, fmt.Sprintf("Place %d byte item on stack", i+1))
	}
	for n := 1; n <= 16; n++ {
		b.add(DUP1+OpCode(n-1), GasFastestStep, n, n+1, GroupDuplication, 0, fmt.Sprintf("Duplicate %d. stack item", n))
		b.add(SWAP1+OpCode(n-1), GasFastestStep, n+1, n+1, GroupExchange, 0, fmt.Sprintf("Exchange 1st and %d. stack items", n+1))
	}
	for n := 0; n <= 4; n++ {
		b.add(LOG0+OpCode(n), LogGas, n+2, 0, GroupLogging, 0, fmt.Sprintf("Append log record with %d topics", n))
	}

	b.add(CREATE, CreateGas, 3, 1, GroupSystem, 0, "Create a new account with associated code")
	b.add(CALL, CallGasFrontier, 7, 1, GroupSystem, 0, "Message-call into an account",
		at(forks.TangerineWhistle, CallGasEIP150), at(forks.Berlin, WarmStorageReadCost))
	b.add(CALLCODE, CallGasFrontier, 7, 1, GroupSystem, 0, "Message-call into this account with alternative account's code",
		at(forks.TangerineWhistle, CallGasEIP150), at(forks.Berlin, WarmStorageReadCost))
	b.add(RETURN, GasZeroStep, 2, 0, GroupSystem, 0, "Halt execution returning output data")
	b.add(INVALID, GasZeroStep, 0, 0, GroupSystem, 141, "Designated invalid instruction")
	b.add(SELFDESTRUCT, GasZeroStep, 1, 0, GroupSystem, 0, "Halt execution and register account for later deletion",
		at(forks.TangerineWhistle, SelfdestructEIP150))

	return b.table
}

func newHomesteadTable() OpcodeTable {
	b := newTableBuilder(forks.Homestead)
	b.add(DELEGATECALL, CallGasFrontier, 6, 1, GroupSystem, 7, "Message-call into this account with an alternative account's code, persisting sender and value",
		at(forks.TangerineWhistle, CallGasEIP150), at(forks.Berlin, WarmStorageReadCost))
	return b.table
}

func newByzantiumTable() OpcodeTable {
	b := newTableBuilder(forks.Byzantium)
	b.add(RETURNDATASIZE, GasQuickStep, 0, 1, GroupEnvironmentalInformation, 211, "Get size of output data from the previous call")
	b.add(RETURNDATACOPY, GasFastestStep, 3, 0, GroupEnvironmentalInformation, 211, "Copy output data from the previous call to memory")
	b.add(STATICCALL, CallGasEIP150, 6, 1, GroupSystem, 214, "Static message-call into an account",
		at(forks.Berlin, WarmStorageReadCost))
	b.add(REVERT, GasZeroStep, 2, 0, GroupSystem, 140, "Halt execution reverting state changes but returning data and remaining gas")
	return b.table
}

func newConstantinopleTable() OpcodeTable {
	b := newTableBuilder(forks.Constantinople)
	b.add(SHL, GasFastestStep, 2, 1, GroupComparisonBitwiseLogic, 145, "Left shift operation")
	b.add(SHR, GasFastestStep, 2, 1, GroupComparisonBitwiseLogic, 145, "Logical right shift operation")
	b.add(SAR, GasFastestStep, 2, 1, GroupComparisonBitwiseLogic, 145, "Arithmetic (signed) right shift operation")
	b.add(EXTCODEHASH, ExtcodeHashConstant, 1, 1, GroupEnvironmentalInformation, 1052, "Get hash of an account's code",
		at(forks.Istanbul, ExtcodeHashEIP1884), at(forks.Berlin, 0))
	b.add(CREATE2, CreateGas, 4, 1, GroupSystem, 1014, "Create a new account with associated code at a predictable address")
	return b.table
}

func newIstanbulTable() OpcodeTable {
	b := newTableBuilder(forks.Istanbul)
	b.add(CHAINID, GasQuickStep, 0, 1, GroupBlockInformation, 1344, "Get the chain ID")
	b.add(SELFBALANCE, GasFastStep, 0, 1, GroupBlockInformation, 1884, "Get balance of currently executing account")
	return b.table
}

func newLondonTable() OpcodeTable {
	b := newTableBuilder(forks.London)
	b.add(BASEFEE, GasQuickStep, 0, 1, GroupBlockInformation, 3198, "Get the base fee")
	return b.table
}

// newParisTable redefines 0x44 now that the beacon chain supplies randomness.
func newParisTable() OpcodeTable {
	b := newTableBuilder(forks.Paris)
	b.add(PREVRANDAO, GasQuickStep, 0, 1, GroupBlockInformation, 4399, "Get the previous block's RANDAO mix")
	return b.table
}

func newShanghaiTable() OpcodeTable {
	b := newTableBuilder(forks.Shanghai)
	b.add(PUSH0, GasQuickStep, 0, 1, GroupPush, 3855, "Place value 0 on stack")
	return b.table
}

func newCancunTable() OpcodeTable {
	b := newTableBuilder(forks.Cancun)
	b.add(BLOBHASH, GasFastestStep, 1, 1, GroupBlockInformation, 4844, "Get versioned hashes")
	b.add(BLOBBASEFEE, GasQuickStep, 0, 1, GroupBlockInformation, 7516, "Returns the value of the blob base-fee of the current block")
	// Transient storage is priced entirely by the surcharge.
	b.add(TLOAD, GasZeroStep, 1, 1, GroupStackMemoryStorageFlow, 1153, "Load word from transient storage")
	b.add(TSTORE, GasZeroStep, 2, 0, GroupStackMemoryStorageFlow, 1153, "Save word to transient storage")
	b.add(MCOPY, GasFastestStep, 3, 0, GroupStackMemoryStorageFlow, 5656, "Copy memory areas")
	return b.table
}
