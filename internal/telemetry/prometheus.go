package telemetry

import (
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics mirrors Metrics writes into Prometheus gauges. Keys are
// created lazily, so the set of exported series follows whatever the
// components record.
type PrometheusMetrics struct {
	namespace string
	registry  *prometheus.Registry

	mu     sync.Mutex
	gauges map[string]prometheus.Gauge
}

// NewPrometheusMetrics returns an adapter backed by a private registry.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	return &PrometheusMetrics{
		namespace: namespace,
		registry:  prometheus.NewRegistry(),
		gauges:    make(map[string]prometheus.Gauge),
	}
}

func (p *PrometheusMetrics) gauge(key string) prometheus.Gauge {
	name := sanitizeMetricName(key)
	p.mu.Lock()
	defer p.mu.Unlock()
	if g, ok := p.gauges[name]; ok {
		return g
	}
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: p.namespace,
		Name:      name,
		Help:      key,
	})
	if err := p.registry.Register(g); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			g = already.ExistingCollector.(prometheus.Gauge)
		}
	}
	p.gauges[name] = g
	return g
}

// Add implements Metrics.
func (p *PrometheusMetrics) Add(key string, delta uint64) {
	if p == nil || key == "" {
		return
	}
	p.gauge(key).Add(float64(delta))
}

// Store implements Metrics.
func (p *PrometheusMetrics) Store(key string, value uint64) {
	if p == nil || key == "" {
		return
	}
	p.gauge(key).Set(float64(value))
}

// Registry exposes the underlying registry.
func (p *PrometheusMetrics) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func sanitizeMetricName(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for i, r := range key {
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
	return b.String()
}
