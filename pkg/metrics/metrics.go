// Package metrics provides a small in-process metrics registry with
// Prometheus-style text exposition. bayeuxd hand-rolls this rather than
// pulling in a metrics client: the surface is a handful of instruments and
// one exposition endpoint.
package metrics

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
)

// ErrDuplicateMetric is returned when registering a metric name twice.
var ErrDuplicateMetric = errors.New("duplicate metric name")

// Metric is implemented by all instrument types.
type Metric interface {
	Name() string
	Help() string
	Type() string
	Collect() []Sample
}

// Sample is a single exposition line.
type Sample struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name string
	help string
	val  atomic.Int64
}

// Inc increments the counter by one.
func (c *Counter) Inc() { c.val.Add(1) }

// Add increments the counter by n.
func (c *Counter) Add(n int64) { c.val.Add(n) }

// Value returns the current count.
func (c *Counter) Value() int64 { return c.val.Load() }

func (c *Counter) Name() string { return c.name }
func (c *Counter) Help() string { return c.help }
func (c *Counter) Type() string { return "counter" }

// Collect implements Metric.
func (c *Counter) Collect() []Sample {
	return []Sample{{Name: c.name, Value: float64(c.val.Load())}}
}

// Gauge is a value that can go up and down.
type Gauge struct {
	name string
	help string
	val  atomic.Int64
}

// Inc increments the gauge by one.
func (g *Gauge) Inc() { g.val.Add(1) }

// Dec decrements the gauge by one.
func (g *Gauge) Dec() { g.val.Add(-1) }

// Set sets the gauge to v.
func (g *Gauge) Set(v int64) { g.val.Store(v) }

// Value returns the current value.
func (g *Gauge) Value() int64 { return g.val.Load() }

func (g *Gauge) Name() string { return g.name }
func (g *Gauge) Help() string { return g.help }
func (g *Gauge) Type() string { return "gauge" }

// Collect implements Metric.
func (g *Gauge) Collect() []Sample {
	return []Sample{{Name: g.name, Value: float64(g.val.Load())}}
}

// LabeledCounter is a counter partitioned by a single label.
type LabeledCounter struct {
	name  string
	help  string
	label string

	mu   sync.Mutex
	vals map[string]*atomic.Int64
}

func (c *LabeledCounter) cell(value string) *atomic.Int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	cell, ok := c.vals[value]
	if !ok {
		cell = &atomic.Int64{}
		c.vals[value] = cell
	}
	return cell
}

// Inc increments the cell for the given label value.
func (c *LabeledCounter) Inc(value string) { c.cell(value).Add(1) }

// Value returns the count for the given label value.
func (c *LabeledCounter) Value(value string) int64 { return c.cell(value).Load() }

func (c *LabeledCounter) Name() string { return c.name }
func (c *LabeledCounter) Help() string { return c.help }
func (c *LabeledCounter) Type() string { return "counter" }

// Collect implements Metric.
func (c *LabeledCounter) Collect() []Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	samples := make([]Sample, 0, len(c.vals))
	for v, cell := range c.vals {
		samples = append(samples, Sample{
			Name:   c.name,
			Labels: map[string]string{c.label: v},
			Value:  float64(cell.Load()),
		})
	}
	return samples
}

// Registry holds registered metrics and renders them for exposition.
type Registry struct {
	mu      sync.Mutex
	metrics map[string]Metric
	ordered []Metric
}

// NewRegistry creates an empty metrics registry.
func NewRegistry() *Registry {
	return &Registry{metrics: make(map[string]Metric)}
}

func (r *Registry) register(m Metric) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.metrics[m.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateMetric, m.Name())
	}
	r.metrics[m.Name()] = m
	r.ordered = append(r.ordered, m)
	return nil
}

// NewCounter registers and returns a counter.
func (r *Registry) NewCounter(name, help string) *Counter {
	c := &Counter{name: name, help: help}
	_ = r.register(c)
	return c
}

// NewGauge registers and returns a gauge.
func (r *Registry) NewGauge(name, help string) *Gauge {
	g := &Gauge{name: name, help: help}
	_ = r.register(g)
	return g
}

// NewLabeledCounter registers and returns a counter partitioned by label.
func (r *Registry) NewLabeledCounter(name, help, label string) *LabeledCounter {
	c := &LabeledCounter{name: name, help: help, label: label, vals: make(map[string]*atomic.Int64)}
	_ = r.register(c)
	return c
}

// Write renders all metrics in the Prometheus text format.
func (r *Registry) Write(w io.Writer) error {
	r.mu.Lock()
	metrics := make([]Metric, len(r.ordered))
	copy(metrics, r.ordered)
	r.mu.Unlock()

	for _, m := range metrics {
		if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", m.Name(), m.Help(), m.Name(), m.Type()); err != nil {
			return err
		}
		samples := m.Collect()
		sort.Slice(samples, func(i, j int) bool { return labelKey(samples[i]) < labelKey(samples[j]) })
		for _, s := range samples {
			var err error
			if len(s.Labels) == 0 {
				_, err = fmt.Fprintf(w, "%s %g\n", s.Name, s.Value)
			} else {
				_, err = fmt.Fprintf(w, "%s{%s} %g\n", s.Name, labelKey(s), s.Value)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func labelKey(s Sample) string {
	keys := make([]string, 0, len(s.Labels))
	for k := range s.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%s=%q", k, s.Labels[k])
	}
	return out
}
