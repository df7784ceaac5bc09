package vm

// memory_expansion.go implements the Yellow Paper quadratic memory cost and
// the incremental charge for growing memory from one size to another.

import (
	"math"

	"github.com/holiman/uint256"
)

// toWordSize returns ceil(size/32).
func toWordSize(size uint64) uint64 {
	if size > math.MaxUint64-31 {
		return math.MaxUint64/32 + 1
	}
	return (size + 31) / 32
}

// quadraticCost computes C_mem(a) = G_memory * a + floor(a^2 / 512) for a
// word count a. Returns (0, false) if the computation overflows.
func quadraticCost(words uint64) (uint64, bool) {
	if words == 0 {
		return 0, true
	}
	// words*words overflows past ~4.29 billion words, far beyond any block.
	if words > math.MaxUint64/words {
		return 0, false
	}
	quadratic := (words * words) / QuadCoeffDiv
	if words > math.MaxUint64/MemoryGas {
		return 0, false
	}
	linear := words * MemoryGas
	total := linear + quadratic
	if total < linear {
		return 0, false
	}
	return total, true
}

// MemoryCost returns the total cost of a memory of size bytes.
func MemoryCost(size uint64) (uint64, error) {
	cost, ok := quadraticCost(toWordSize(size))
	if !ok {
		return 0, ErrGasUintOverflow
	}
	return cost, nil
}

// MemoryExpansionDelta returns max(0, cost(newSize) - cost(oldSize)).
func MemoryExpansionDelta(oldSize, newSize uint64) (uint64, error) {
	if newSize <= oldSize {
		return 0, nil
	}
	oldCost, err := MemoryCost(oldSize)
	if err != nil {
		return 0, err
	}
	newCost, err := MemoryCost(newSize)
	if err != nil {
		return 0, err
	}
	if newCost < oldCost {
		return 0, nil
	}
	return newCost - oldCost, nil
}

// memoryEnd returns offset+size as the memory size an access needs. A zero
// length access touches no memory regardless of its offset.
func memoryEnd(offset, size *uint256.Int) (uint64, error) {
	if size.IsZero() {
		return 0, nil
	}
	if !offset.IsUint64() || !size.IsUint64() {
		return 0, ErrGasUintOverflow
	}
	end := offset.Uint64() + size.Uint64()
	if end < offset.Uint64() {
		return 0, ErrGasUintOverflow
	}
	return end, nil
}

// fixedEnd returns offset+width for the fixed-size MLOAD/MSTORE family.
func fixedEnd(offset *uint256.Int, width uint64) (uint64, error) {
	if !offset.IsUint64() || offset.Uint64() > math.MaxUint64-width {
		return 0, ErrGasUintOverflow
	}
	return offset.Uint64() + width, nil
}
