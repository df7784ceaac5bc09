package vm

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/eth2030/evmgas/core/forks"
	"github.com/eth2030/evmgas/log"
	"github.com/eth2030/evmgas/metrics"
)

// ErrDuplicateFork is returned when a fork's own table is registered twice.
var ErrDuplicateFork = errors.New("registry: fork already registered")

// effectiveCacheSize bounds the memoized effective tables. One slot per
// modeled fork is enough to never evict in practice.
const effectiveCacheSize = 32

// ForkRegistry resolves which opcodes are live at a fork and what they cost
// statically. It is immutable once constructed and safe for concurrent use.
type ForkRegistry struct {
	own map[forks.Fork]OpcodeTable

	// registered forks, ascending
	order []forks.Fork

	// earliest defining fork per byte, Unknown if never
	introduced [256]forks.Fork

	cache *lru.Cache[forks.Fork, OpcodeTable]
	log   *log.Logger
}

// NewForkRegistry builds a registry from the own tables supplied by p for
// every modeled fork.
func NewForkRegistry(p MetadataProvider) (*ForkRegistry, error) {
	cache, err := lru.New[forks.Fork, OpcodeTable](effectiveCacheSize)
	if err != nil {
		return nil, err
	}
	r := &ForkRegistry{
		own:   make(map[forks.Fork]OpcodeTable),
		cache: cache,
		log:   log.Default().Module("registry"),
	}
	for _, f := range forks.All() {
		if err := r.register(f, p.OwnTable(f)); err != nil {
			return nil, err
		}
	}
	r.log.Debug("opcode registry built", "forks", len(r.order))
	return r, nil
}

// NewDefaultRegistry returns a registry over the built-in mainnet tables.
func NewDefaultRegistry() *ForkRegistry {
	r, err := NewForkRegistry(DefaultMetadata())
	if err != nil {
		panic(fmt.Sprintf("vm: built-in opcode tables rejected: %v", err))
	}
	return r
}

// register records the own table of fork f. It must be called in ascending
// fork order and at most once per fork.
func (r *ForkRegistry) register(f forks.Fork, table OpcodeTable) error {
	if _, ok := r.own[f]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateFork, f)
	}
	if n := len(r.order); n > 0 && r.order[n-1] > f {
		return fmt.Errorf("registry: %s registered after %s", f, r.order[n-1])
	}
	if table == nil {
		table = OpcodeTable{}
	}
	r.own[f] = table
	r.order = append(r.order, f)
	for op := range table {
		if r.introduced[op] == forks.Unknown {
			r.introduced[op] = f
		}
	}
	return nil
}

// Forks returns the registered forks in ascending order.
func (r *ForkRegistry) Forks() []forks.Fork {
	out := make([]forks.Fork, len(r.order))
	copy(out, r.order)
	return out
}

// OwnOpcodes returns the table fork f defines on its own.
func (r *ForkRegistry) OwnOpcodes(f forks.Fork) OpcodeTable {
	return r.own[f]
}

// EffectiveOpcodes returns the union of the own tables of every fork up to
// and including f. Later forks override earlier definitions of the same byte.
// The returned table is shared and must not be modified.
func (r *ForkRegistry) EffectiveOpcodes(f forks.Fork) OpcodeTable {
	if table, ok := r.cache.Get(f); ok {
		return table
	}
	metrics.RegistryCacheMisses.Inc()

	table := make(OpcodeTable, 160)
	for _, g := range r.order {
		if g > f {
			break
		}
		for op, meta := range r.own[g] {
			table[op] = meta
		}
	}
	r.cache.Add(f, table)
	return table
}

// IsAvailable reports whether op is live at fork f.
func (r *ForkRegistry) IsAvailable(f forks.Fork, op OpCode) bool {
	_, ok := r.EffectiveOpcodes(f)[op]
	return ok
}

// IntroducedAt returns the fork that first defines op.
func (r *ForkRegistry) IntroducedAt(op OpCode) (forks.Fork, bool) {
	f := r.introduced[op]
	return f, f != forks.Unknown
}

// Lookup returns the metadata op has at fork f. Bytes that no fork defines
// yield ErrUnknownOpcode; bytes only defined by later forks yield
// ErrUnsupportedOpcode.
func (r *ForkRegistry) Lookup(f forks.Fork, op OpCode) (*OpcodeMetadata, error) {
	metrics.RegistryLookups.Inc()
	if meta, ok := r.EffectiveOpcodes(f)[op]; ok {
		return meta, nil
	}
	if intro, ok := r.IntroducedAt(op); ok {
		return nil, fmt.Errorf("%w: %s introduced in %s, queried at %s", ErrUnsupportedOpcode, op, intro, f)
	}
	return nil, fmt.Errorf("%w: 0x%02x at %s", ErrUnknownOpcode, byte(op), f)
}

// EffectiveGasCost is the static cost meta takes at fork f.
func (r *ForkRegistry) EffectiveGasCost(meta *OpcodeMetadata, f forks.Fork) uint64 {
	return EffectiveGasCost(meta, f)
}

// EffectiveGasCost picks the last gas history entry whose fork is not after
// f, falling back to the base cost. It is a pure function of its inputs.
func EffectiveGasCost(meta *OpcodeMetadata, f forks.Fork) uint64 {
	gas := meta.BaseGas
	for _, change := range meta.GasHistory {
		if change.Fork <= f {
			gas = change.Gas
		}
	}
	return gas
}
