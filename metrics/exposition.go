package metrics

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"
)

// WriteText writes every metric of r in the Prometheus text exposition
// format. Dots and dashes in names become underscores and namespace, if
// set, is prepended. Histograms are emitted as summaries with extra _min,
// _max and _mean samples.
func WriteText(w io.Writer, r *Registry, namespace string) error {
	snap := r.Snapshot()
	bw := bufio.NewWriter(w)

	for _, name := range sortedKeys(snap.Counters) {
		prom := promName(namespace, name)
		writeHeader(bw, prom, "counter", name)
		fmt.Fprintf(bw, "%s %d\n", prom, snap.Counters[name])
	}
	for _, name := range sortedKeys(snap.Gauges) {
		prom := promName(namespace, name)
		writeHeader(bw, prom, "gauge", name)
		fmt.Fprintf(bw, "%s %d\n", prom, snap.Gauges[name])
	}
	for _, name := range sortedKeys(snap.Histograms) {
		h := snap.Histograms[name]
		prom := promName(namespace, name)
		writeHeader(bw, prom, "summary", name)
		fmt.Fprintf(bw, "%s_count %d\n", prom, h.Count)
		fmt.Fprintf(bw, "%s_sum %s\n", prom, formatFloat(h.Sum))
		if h.Count > 0 {
			fmt.Fprintf(bw, "%s_min %s\n", prom, formatFloat(h.Min))
			fmt.Fprintf(bw, "%s_max %s\n", prom, formatFloat(h.Max))
			fmt.Fprintf(bw, "%s_mean %s\n", prom, formatFloat(h.Mean))
		}
	}
	return bw.Flush()
}

func writeHeader(w io.Writer, prom, kind, help string) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", prom, help, prom, kind)
}

// promName converts a dotted metric name to a Prometheus identifier.
func promName(namespace, name string) string {
	s := strings.NewReplacer(".", "_", "-", "_").Replace(name)
	if namespace != "" {
		return namespace + "_" + s
	}
	return s
}

// formatFloat formats a sample value, spelling out the special values.
func formatFloat(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	case math.IsNaN(v):
		return "NaN"
	}
	return fmt.Sprintf("%g", v)
}
