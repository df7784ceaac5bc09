package vm

import (
	"fmt"

	"github.com/eth2030/evmgas/core/forks"
)

// generalAdvice applies at every fork.
var generalAdvice = []string{
	"Pack storage variables to minimize SSTORE operations",
	"Use events instead of storage for data that doesn't need on-chain queries",
	"Minimize external calls and account creations",
	"Use short-circuit evaluation in conditional logic",
	"Consider using libraries for common functionality to reduce deployment costs",
}

// OptimizationAdvisor turns fork rules and sequence shapes into advice.
type OptimizationAdvisor struct {
	analyzer *GasAnalyzer
}

// NewOptimizationAdvisor creates an advisor that grades sequences with
// analyzer.
func NewOptimizationAdvisor(analyzer *GasAnalyzer) *OptimizationAdvisor {
	return &OptimizationAdvisor{analyzer: analyzer}
}

// ForkAdvice returns the recommendations for writing code against f. Each
// fork inherits the advice of the most recent fork that brought new
// opportunities.
func (a *OptimizationAdvisor) ForkAdvice(f forks.Fork) []string {
	var out []string
	switch {
	case f.AtLeast(forks.Cancun):
		out = append(out,
			"Use PUSH0 for zero values (2 gas savings)",
			"Consider TSTORE/TLOAD for temporary storage (100 gas vs 2100+ for SSTORE/SLOAD)",
			"Use MCOPY for memory copying (more gas efficient than loops)",
			"Consider blob transactions for large data storage",
		)
	case f.AtLeast(forks.Shanghai):
		out = append(out, "Use PUSH0 instead of PUSH1 0x00 to save 2 gas per occurrence")
	case f.AtLeast(forks.London):
		out = append(out,
			"Account for EIP-1559 base fee in gas price calculations",
			"Use priority fee efficiently for transaction inclusion",
		)
	case f.AtLeast(forks.Berlin):
		out = append(out,
			"Pre-warm storage slots and addresses to benefit from EIP-2929 gas reductions",
			"Batch operations on the same storage slots to amortize cold access costs",
		)
	default:
		out = append(out, "Consider upgrading to a newer fork for gas optimizations")
	}
	return append(out, generalAdvice...)
}

// AnalyzePattern suggests rewrites for the shape of seq.
func (a *OptimizationAdvisor) AnalyzePattern(seq []Instruction) []string {
	var (
		out         []string
		consecutive int
		sloads      int
		zeroPushes  int
	)
	fork := a.analyzer.Calculator().Fork()
	for i, in := range seq {
		switch in.Op {
		case SLOAD:
			sloads++
			if i > 0 && seq[i-1].Op == SLOAD {
				consecutive++
			}
		case PUSH1:
			if pushesZero(in) {
				zeroPushes++
			}
		}
	}
	if consecutive > 0 {
		out = append(out, fmt.Sprintf("Found %d consecutive SLOAD operations - consider caching in memory", consecutive))
	}
	if sloads > 3 {
		out = append(out, "Multiple SLOAD operations detected - consider storage packing or caching")
	}
	if zeroPushes > 0 && fork.AtLeast(forks.Shanghai) {
		out = append(out, fmt.Sprintf("Found %d PUSH1 0x00 operations - replace with PUSH0 to save %d gas", zeroPushes, zeroPushes*2))
	}
	if res, err := a.analyzer.Analyze(withEstimates(seq)); err == nil && res.EfficiencyScore() < 50 {
		out = append(out, "Low gas efficiency detected - consider algorithmic improvements")
	}
	return out
}

// withEstimates fills in fallback operands for instructions that lack them.
func withEstimates(seq []Instruction) []Instruction {
	out := make([]Instruction, len(seq))
	for i, in := range seq {
		out[i] = in
		if len(in.Operands) < OperandsRequired(in.Op) {
			out[i].Operands = mergeEstimates(nil, fallbackOperands(in.Op), OperandsRequired(in.Op))
		}
	}
	return out
}
