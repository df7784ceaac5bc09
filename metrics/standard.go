package metrics

// Pre-defined metrics for evmgas. All metrics live in DefaultRegistry so the
// calculator and the CLI share them without passing a registry around.

var (
	// ---- Opcode registry metrics ----

	// RegistryLookups counts opcode metadata lookups.
	RegistryLookups = DefaultRegistry.Counter("registry.lookups")
	// RegistryCacheMisses counts effective tables built from scratch.
	RegistryCacheMisses = DefaultRegistry.Counter("registry.cache_misses")

	// ---- Gas analysis metrics ----

	// Analyses counts sequence analyses started.
	Analyses = DefaultRegistry.Counter("gas.analyses")
	// StepsPriced counts opcodes priced inside analyses.
	StepsPriced = DefaultRegistry.Counter("gas.steps")
	// AnalysisErrors counts analyses aborted by an error.
	AnalysisErrors = DefaultRegistry.Counter("gas.errors")
	// SequenceGas records the total gas of each completed analysis.
	SequenceGas = DefaultRegistry.Histogram("gas.sequence_total")
	// AnalysisTime records analysis duration in milliseconds.
	AnalysisTime = DefaultRegistry.Histogram("gas.analysis_ms")
	// WarmAddresses tracks the warm address count after the last analysis.
	WarmAddresses = DefaultRegistry.Gauge("gas.warm_addresses")
)
