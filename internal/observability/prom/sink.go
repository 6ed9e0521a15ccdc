// Package prom adapts the statsd-style metric calls onto a Prometheus registry.
package prom

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/innovites/cableaudit/internal/observability/statsd"
)

// Sink implements statsd.Sink on top of a private Prometheus registry.
//
// Each metric name gets its label set fixed on first use. Later calls fill
// missing labels with "" and drop labels that were not part of that set.
type Sink struct {
	namespace string
	registry  *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]*labeledCounter
	gauges     map[string]*labeledGauge
	histograms map[string]*labeledHistogram
}

type labeledCounter struct {
	vec    *prometheus.CounterVec
	labels []string
}

type labeledGauge struct {
	vec    *prometheus.GaugeVec
	labels []string
}

type labeledHistogram struct {
	vec    *prometheus.HistogramVec
	labels []string
}

var _ statsd.Sink = (*Sink)(nil)

// durationBuckets cover fast reference-only runs up to slow model calls.
var durationBuckets = []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// NewSink creates a sink with its own registry, including Go runtime and process collectors.
func NewSink(namespace string) *Sink {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Sink{
		namespace:  sanitizeName(namespace),
		registry:   reg,
		counters:   make(map[string]*labeledCounter),
		gauges:     make(map[string]*labeledGauge),
		histograms: make(map[string]*labeledHistogram),
	}
}

// Registry exposes the underlying registry (used by tests and extra collectors).
func (s *Sink) Registry() *prometheus.Registry {
	return s.registry
}

// Handler serves the registry in the Prometheus text format.
func (s *Sink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}

// Count adds value to the counter "<name>_total".
func (s *Sink) Count(name string, value int64, tags map[string]string) {
	if s == nil || value < 0 {
		return
	}
	c := s.counter(name, tags)
	if c == nil {
		return
	}
	c.vec.WithLabelValues(labelValues(c.labels, tags)...).Add(float64(value))
}

// Gauge sets the gauge "<name>".
func (s *Sink) Gauge(name string, value float64, tags map[string]string) {
	if s == nil {
		return
	}
	g := s.gauge(name, tags)
	if g == nil {
		return
	}
	g.vec.WithLabelValues(labelValues(g.labels, tags)...).Set(value)
}

// Timing observes the histogram "<name>_seconds".
func (s *Sink) Timing(name string, value time.Duration, tags map[string]string) {
	if s == nil {
		return
	}
	h := s.histogram(name, tags)
	if h == nil {
		return
	}
	h.vec.WithLabelValues(labelValues(h.labels, tags)...).Observe(value.Seconds())
}

func (s *Sink) counter(name string, tags map[string]string) *labeledCounter {
	metric := sanitizeName(name)
	if metric == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.counters[metric]; ok {
		return c
	}
	labels := labelNames(tags)
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: s.namespace,
		Name:      metric + "_total",
		Help:      "Count of " + name + " events.",
	}, labels)
	if err := s.registry.Register(vec); err != nil {
		return nil
	}
	c := &labeledCounter{vec: vec, labels: labels}
	s.counters[metric] = c
	return c
}

func (s *Sink) gauge(name string, tags map[string]string) *labeledGauge {
	metric := sanitizeName(name)
	if metric == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if g, ok := s.gauges[metric]; ok {
		return g
	}
	labels := labelNames(tags)
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: s.namespace,
		Name:      metric,
		Help:      "Current value of " + name + ".",
	}, labels)
	if err := s.registry.Register(vec); err != nil {
		return nil
	}
	g := &labeledGauge{vec: vec, labels: labels}
	s.gauges[metric] = g
	return g
}

func (s *Sink) histogram(name string, tags map[string]string) *labeledHistogram {
	metric := sanitizeName(name)
	if metric == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.histograms[metric]; ok {
		return h
	}
	labels := labelNames(tags)
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: s.namespace,
		Name:      metric + "_seconds",
		Help:      "Duration of " + name + " in seconds.",
		Buckets:   durationBuckets,
	}, labels)
	if err := s.registry.Register(vec); err != nil {
		return nil
	}
	h := &labeledHistogram{vec: vec, labels: labels}
	s.histograms[metric] = h
	return h
}

func labelNames(tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for k := range tags {
		if n := sanitizeName(k); n != "" {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

func labelValues(labels []string, tags map[string]string) []string {
	byName := make(map[string]string, len(tags))
	for k, v := range tags {
		byName[sanitizeName(k)] = strings.TrimSpace(v)
	}
	values := make([]string, len(labels))
	for i, l := range labels {
		values[i] = byName[l]
	}
	return values
}

// sanitizeName maps statsd-style dotted names onto the Prometheus name alphabet.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	b.Grow(len(name))
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.TrimRight(b.String(), "_")
}
