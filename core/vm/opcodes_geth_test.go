package vm

import (
	"testing"

	gethvm "github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/params"
)

// TestMnemonicsMatchGeth checks every byte we name against go-ethereum's
// opcode names.
func TestMnemonicsMatchGeth(t *testing.T) {
	for b := 0; b < 256; b++ {
		op := OpCode(b)
		if !op.Defined() {
			continue
		}
		switch op {
		case PREVRANDAO, INVALID:
			// geth keeps the pre-merge name for 0x44 and does not name 0xfe.
			continue
		}
		if want := gethvm.OpCode(b).String(); op.String() != want {
			t.Errorf("0x%02x = %s, geth calls it %s", b, op, want)
		}
	}
}

// TestConstantsMatchParams spot-checks the surcharge constants.
func TestConstantsMatchParams(t *testing.T) {
	if ColdSloadCost != 2100 || ColdAccountAccessCost != 2600 || WarmStorageReadCost != 100 {
		t.Error("EIP-2929 constants")
	}
	if SstoreResetGasBerlin != params.SstoreResetGasEIP2200-params.ColdSloadCostEIP2929 {
		t.Errorf("SstoreResetGasBerlin = %d", SstoreResetGasBerlin)
	}
	if TxBaseGas != 21000 || CreateGas != 32000 || InitCodeWordGas != 2 {
		t.Error("transaction and creation constants")
	}
}
