package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// Registry holds metrics by name with get-or-create semantics, so callers
// never need to check for nil.
type Registry struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
}

// DefaultRegistry is the process-wide registry behind standard.go.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

// Counter returns the Counter registered under name, creating it on first use.
func (r *Registry) Counter(name string) *Counter {
	return getOrCreate(r, r.counters, name, NewCounter)
}

// Gauge returns the Gauge registered under name, creating it on first use.
func (r *Registry) Gauge(name string) *Gauge {
	return getOrCreate(r, r.gauges, name, NewGauge)
}

// Histogram returns the Histogram registered under name, creating it on
// first use.
func (r *Registry) Histogram(name string) *Histogram {
	return getOrCreate(r, r.histograms, name, NewHistogram)
}

func getOrCreate[M any](r *Registry, m map[string]*M, name string, create func(string) *M) *M {
	r.mu.RLock()
	v, ok := m[name]
	r.mu.RUnlock()
	if ok {
		return v
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok = m[name]; ok {
		return v
	}
	v = create(name)
	m[name] = v
	return v
}

// Snapshot returns a point-in-time copy of every metric. Counters and gauges
// map to int64, histograms to HistogramSnapshot.
func (r *Registry) Snapshot() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := make(map[string]any, len(r.counters)+len(r.gauges)+len(r.histograms))
	for name, c := range r.counters {
		snap[name] = c.Value()
	}
	for name, g := range r.gauges {
		snap[name] = g.Value()
	}
	for name, h := range r.histograms {
		snap[name] = h.Snapshot()
	}
	return snap
}

// WriteText writes every metric in the Prometheus text exposition format,
// sorted by name. Metric names have "." replaced by "_" and are prefixed
// with namespace when it is not empty.
func (r *Registry) WriteText(w io.Writer, namespace string) error {
	snap := r.Snapshot()
	r.mu.RLock()
	isCounter := make(map[string]bool, len(r.counters))
	for name := range r.counters {
		isCounter[name] = true
	}
	r.mu.RUnlock()

	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		prom := promName(namespace, name)
		switch v := snap[name].(type) {
		case int64:
			typ := "gauge"
			if isCounter[name] {
				typ = "counter"
			}
			fmt.Fprintf(&b, "# TYPE %s %s\n%s %d\n", prom, typ, prom, v)
		case HistogramSnapshot:
			fmt.Fprintf(&b, "# TYPE %s summary\n", prom)
			fmt.Fprintf(&b, "%s_count %d\n%s_sum %g\n", prom, v.Count, prom, v.Sum)
			fmt.Fprintf(&b, "%s_min %g\n%s_max %g\n", prom, v.Min, prom, v.Max)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func promName(namespace, name string) string {
	name = strings.NewReplacer(".", "_", "-", "_").Replace(name)
	if namespace == "" {
		return name
	}
	return namespace + "_" + name
}
