// Package forks enumerates the Ethereum execution-layer hard forks that the
// gas tables are keyed by. Every fork carries an explicit epoch ordinal and
// all ordering questions ("is this fork at or after Berlin?") reduce to
// comparisons of those ordinals, never to declaration order.
package forks

import (
	"errors"
	"fmt"
	"strings"
)

// Fork is a named protocol rule set. Its numeric value is the epoch ordinal
// and is only meaningful relative to other forks. Epochs are spaced by 100 so
// that a newly modeled fork can be slotted between two existing ones without
// renumbering anything.
type Fork uint32

const (
	// Unknown is the zero value and never appears in the timeline.
	Unknown Fork = 0

	Frontier         Fork = 100  // July 2015
	Homestead        Fork = 200  // EIP-606
	TangerineWhistle Fork = 300  // EIP-150 repricing
	SpuriousDragon   Fork = 400  // EIP-607
	Byzantium        Fork = 500  // EIP-609
	Constantinople   Fork = 600  // EIP-1013
	Petersburg       Fork = 700  // EIP-1716
	Istanbul         Fork = 800  // EIP-1679
	MuirGlacier      Fork = 900  // EIP-2387
	Berlin           Fork = 1000 // EIP-2070
	London           Fork = 1100
	ArrowGlacier     Fork = 1200
	GrayGlacier      Fork = 1300
	Paris            Fork = 1400 // the merge
	Shanghai         Fork = 1500
	Cancun           Fork = 1600
	Prague           Fork = 1700
)

// ErrUnknownFork is returned when a fork name cannot be resolved.
var ErrUnknownFork = errors.New("forks: unknown fork")

// timeline lists every modeled fork in ascending epoch order.
var timeline = []Fork{
	Frontier,
	Homestead,
	TangerineWhistle,
	SpuriousDragon,
	Byzantium,
	Constantinople,
	Petersburg,
	Istanbul,
	MuirGlacier,
	Berlin,
	London,
	ArrowGlacier,
	GrayGlacier,
	Paris,
	Shanghai,
	Cancun,
	Prague,
}

var forkNames = map[Fork]string{
	Frontier:         "Frontier",
	Homestead:        "Homestead",
	TangerineWhistle: "TangerineWhistle",
	SpuriousDragon:   "SpuriousDragon",
	Byzantium:        "Byzantium",
	Constantinople:   "Constantinople",
	Petersburg:       "Petersburg",
	Istanbul:         "Istanbul",
	MuirGlacier:      "MuirGlacier",
	Berlin:           "Berlin",
	London:           "London",
	ArrowGlacier:     "ArrowGlacier",
	GrayGlacier:      "GrayGlacier",
	Paris:            "Paris",
	Shanghai:         "Shanghai",
	Cancun:           "Cancun",
	Prague:           "Prague",
}

// aliases maps alternative (lower-case) names onto forks. Canonical names are
// added in init.
var aliases = map[string]Fork{
	"tangerine":  TangerineWhistle,
	"eip150":     TangerineWhistle,
	"spurious":   SpuriousDragon,
	"eip158":     SpuriousDragon,
	"petersburg": Petersburg,
	"muir":       MuirGlacier,
	"arrow":      ArrowGlacier,
	"gray":       GrayGlacier,
	"merge":      Paris,
	"shapella":   Shanghai,
	"dencun":     Cancun,
	"pectra":     Prague,
}

func init() {
	for f, name := range forkNames {
		aliases[strings.ToLower(name)] = f
	}
}

// All returns every modeled fork in ascending order. The returned slice is a
// copy and may be modified by the caller.
func All() []Fork {
	out := make([]Fork, len(timeline))
	copy(out, timeline)
	return out
}

// Latest returns the newest modeled fork.
func Latest() Fork { return timeline[len(timeline)-1] }

// Parse resolves a fork name. Matching is case-insensitive and accepts the
// common aliases (merge, shapella, dencun, ...).
func Parse(name string) (Fork, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.ReplaceAll(key, "_", "")
	key = strings.ReplaceAll(key, "-", "")
	if f, ok := aliases[key]; ok {
		return f, nil
	}
	return Unknown, fmt.Errorf("%w: %q", ErrUnknownFork, name)
}

// Valid reports whether f is part of the modeled timeline.
func (f Fork) Valid() bool {
	_, ok := forkNames[f]
	return ok
}

// Epoch returns the ordinal used for ordering.
func (f Fork) Epoch() uint32 { return uint32(f) }

// String returns the canonical fork name.
func (f Fork) String() string {
	if name, ok := forkNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Fork(%d)", uint32(f))
}

// AtLeast reports whether f is other or any later fork.
func (f Fork) AtLeast(other Fork) bool { return f >= other }

// Before reports whether f strictly precedes other.
func (f Fork) Before(other Fork) bool { return f < other }

// Next returns the fork following f in the timeline, or Unknown if f is the
// latest or not modeled.
func (f Fork) Next() Fork {
	for i, x := range timeline {
		if x == f && i+1 < len(timeline) {
			return timeline[i+1]
		}
	}
	return Unknown
}

// Prev returns the fork preceding f in the timeline, or Unknown if f is
// Frontier or not modeled.
func (f Fork) Prev() Fork {
	for i, x := range timeline {
		if x == f && i > 0 {
			return timeline[i-1]
		}
	}
	return Unknown
}

// Range returns the forks in [from, to], ascending.
func Range(from, to Fork) []Fork {
	var out []Fork
	for _, f := range timeline {
		if f >= from && f <= to {
			out = append(out, f)
		}
	}
	return out
}

// MarshalText implements encoding.TextMarshaler.
func (f Fork) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: epoch %d", ErrUnknownFork, uint32(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Fork) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
