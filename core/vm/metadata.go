package vm

import (
	"fmt"

	"github.com/eth2030/evmgas/core/forks"
)

// Group is the Yellow Paper instruction family an opcode belongs to.
type Group uint8

const (
	GroupStopArithmetic Group = iota
	GroupComparisonBitwiseLogic
	GroupSha3
	GroupEnvironmentalInformation
	GroupBlockInformation
	GroupStackMemoryStorageFlow
	GroupPush
	GroupDuplication
	GroupExchange
	GroupLogging
	GroupSystem
)

var groupNames = map[Group]string{
	GroupStopArithmetic:           "StopArithmetic",
	GroupComparisonBitwiseLogic:   "ComparisonBitwiseLogic",
	GroupSha3:                     "Sha3",
	GroupEnvironmentalInformation: "EnvironmentalInformation",
	GroupBlockInformation:         "BlockInformation",
	GroupStackMemoryStorageFlow:   "StackMemoryStorageFlow",
	GroupPush:                     "Push",
	GroupDuplication:              "Duplication",
	GroupExchange:                 "Exchange",
	GroupLogging:                  "Logging",
	GroupSystem:                   "System",
}

// String returns the name of the group.
func (g Group) String() string {
	if name, ok := groupNames[g]; ok {
		return name
	}
	return fmt.Sprintf("Group(%d)", uint8(g))
}

// GasChange records the static cost an opcode takes from Fork onwards.
type GasChange struct {
	Fork forks.Fork
	Gas  uint64
}

// OpcodeMetadata describes one opcode as defined by one fork's own table.
// Values are shared read-only between registries and must not be mutated.
type OpcodeMetadata struct {
	Op           OpCode
	Name         string
	BaseGas      uint64 // static cost at introduction
	StackIn      int
	StackOut     int
	Description  string
	Group        Group
	IntroducedIn forks.Fork
	EIP          uint32 // 0 when the opcode predates the EIP process
	GasHistory   []GasChange
}

// String implements fmt.Stringer.
func (m *OpcodeMetadata) String() string {
	return fmt.Sprintf("%s(0x%02x)", m.Name, byte(m.Op))
}

// GasCostCategory buckets opcodes by typical execution cost.
type GasCostCategory uint8

const (
	CategoryUnknown GasCostCategory = iota
	CategoryVeryLow
	CategoryLow
	CategoryMedium
	CategoryHigh
	CategoryVeryHigh
)

var categoryNames = map[GasCostCategory]string{
	CategoryUnknown:  "Unknown",
	CategoryVeryLow:  "VeryLow",
	CategoryLow:      "Low",
	CategoryMedium:   "Medium",
	CategoryHigh:     "High",
	CategoryVeryHigh: "VeryHigh",
}

func (c GasCostCategory) String() string { return categoryNames[c] }

// Range returns the typical [min, max] gas of the category.
func (c GasCostCategory) Range() (uint64, uint64) {
	switch c {
	case CategoryVeryLow:
		return 1, 3
	case CategoryLow:
		return 3, 8
	case CategoryMedium:
		return 8, 100
	case CategoryHigh:
		return 100, 2600
	case CategoryVeryHigh:
		return 2600, ^uint64(0)
	}
	return 0, 0
}

// Category classifies the opcode by byte range.
func (op OpCode) Category() GasCostCategory {
	switch {
	case op >= ADD && op <= SIGNEXTEND, op >= LT && op <= SAR, op == POP, op == PC,
		op >= DUP1 && op <= SWAP16, op >= PUSH0 && op <= PUSH32:
		return CategoryVeryLow
	case op >= MLOAD && op <= MSTORE8, op == JUMP, op == JUMPI, op == GAS, op == JUMPDEST,
		op == MSIZE, op == MCOPY:
		return CategoryLow
	case op == KECCAK256, op == ADDRESS, op >= ORIGIN && op <= GASPRICE,
		op >= BLOCKHASH && op <= BLOBBASEFEE, op == TLOAD, op == TSTORE:
		return CategoryMedium
	case op == SLOAD, op.IsAccountAccess(), op == RETURNDATASIZE, op == RETURNDATACOPY:
		return CategoryHigh
	case op == SSTORE, op >= LOG0 && op <= LOG4, op >= CREATE:
		return CategoryVeryHigh
	}
	return CategoryUnknown
}
