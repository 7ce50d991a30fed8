// Package metrics exposes the gateway's prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const DefaultNamespace = "textgen_gateway"

// Collector owns its own registry so several collectors can coexist
// in one process, tests rely on this.
type Collector struct {
	registry *prometheus.Registry

	beginTotal      *prometheus.CounterVec
	chunksTotal     prometheus.Counter
	chunkBytesTotal prometheus.Counter
	streamEndTotal  *prometheus.CounterVec
	sessionsOpen    prometheus.Gauge
}

func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		beginTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "begin_total",
				Help:      "Total number of generation requests submitted, by result",
			},
			[]string{"result"},
		),
		chunksTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chunks_total",
				Help:      "Total number of response chunks delivered to clients",
			},
		),
		chunkBytesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chunk_bytes_total",
				Help:      "Total number of response bytes delivered to clients",
			},
		),
		streamEndTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_end_total",
				Help:      "Total number of response streams ended, by cause",
			},
			[]string{"reason"},
		),
		sessionsOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_open",
				Help:      "Number of client sessions currently connected",
			},
		),
	}
}

func (c *Collector) RecordBegin(accepted bool) {
	result := "accepted"
	if !accepted {
		result = "failed"
	}
	c.beginTotal.WithLabelValues(result).Inc()
}

func (c *Collector) RecordChunk(size int) {
	c.chunksTotal.Inc()
	c.chunkBytesTotal.Add(float64(size))
}

func (c *Collector) RecordStreamEnd(reason string) {
	c.streamEndTotal.WithLabelValues(reason).Inc()
}

func (c *Collector) SessionOpened() {
	c.sessionsOpen.Inc()
}

func (c *Collector) SessionClosed() {
	c.sessionsOpen.Dec()
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
