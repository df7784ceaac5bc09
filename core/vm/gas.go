package vm

import "github.com/ethereum/go-ethereum/params"

// Static step costs used by the opcode tables.
const (
	GasZeroStep    uint64 = 0
	GasJumpDest    uint64 = params.JumpdestGas // 1
	GasQuickStep   uint64 = 2
	GasFastestStep uint64 = 3
	GasFastStep    uint64 = 5
	GasMidStep     uint64 = 8
	GasSlowStep    uint64 = 10
	GasExtStep     uint64 = 20
)

// Costs charged by the dynamic surcharge rules.
const (
	TxBaseGas uint64 = params.TxGas // 21000, the starting total of every analysis

	ColdSloadCost         = params.ColdSloadCostEIP2929         // 2100
	ColdAccountAccessCost = params.ColdAccountAccessCostEIP2929 // 2600
	WarmStorageReadCost   = params.WarmStorageReadCostEIP2929   // 100
	SloadGasPreBerlin     = params.SloadGasEIP2200              // 800
	SstoreColdSurcharge   = params.ColdSloadCostEIP2929         // 2100
	TransientAccessCost   = params.WarmStorageReadCostEIP2929   // 100, EIP-1153

	CallValueTransferGas = params.CallValueTransferGas // 9000
	CallNewAccountGas    = params.CallNewAccountGas    // 25000

	CreateGas        = params.CreateGas        // 32000
	InitCodeWordGas  = params.InitCodeWordGas  // 2, EIP-3860
	Keccak256Gas     = params.Keccak256Gas     // 30
	Keccak256WordGas = params.Keccak256WordGas // 6
	CopyGas          = params.CopyGas          // 3
	MemoryGas        = params.MemoryGas        // 3
	QuadCoeffDiv     = params.QuadCoeffDiv     // 512

	LogGas      = params.LogGas      // 375
	LogTopicGas = params.LogTopicGas // 375
	LogDataGas  = params.LogDataGas  // 8

	// CallGasFraction is the EIP-150 divisor: a caller keeps 1/64th.
	CallGasFraction uint64 = 64
)

// Historical static costs of the repriced opcodes.
const (
	CallGasFrontier      = params.CallGasFrontier              // 40
	CallGasEIP150        = params.CallGasEIP150                // 700
	BalanceGasFrontier   = params.BalanceGasFrontier           // 20
	BalanceGasEIP150     = params.BalanceGasEIP150             // 400
	BalanceGasEIP1884    = params.BalanceGasEIP1884            // 700
	ExtcodeSizeFrontier  = params.ExtcodeSizeGasFrontier       // 20
	ExtcodeSizeEIP150    = params.ExtcodeSizeGasEIP150         // 700
	ExtcodeCopyFrontier  = params.ExtcodeCopyBaseFrontier      // 20
	ExtcodeCopyEIP150    = params.ExtcodeCopyBaseEIP150        // 700
	ExtcodeHashConstant  = params.ExtcodeHashGasConstantinople // 400
	ExtcodeHashEIP1884   = params.ExtcodeHashGasEIP1884        // 700
	SelfdestructEIP150   = params.SelfdestructGasEIP150        // 5000
	SstoreResetGas       = params.SstoreResetGas               // 5000
	SstoreResetGasBerlin = params.SstoreResetGas - params.ColdSloadCostEIP2929
)

// BlockGasLimit is the reference block gas limit used by sequence sanity
// checks and the default execution context.
const BlockGasLimit uint64 = 30_000_000
