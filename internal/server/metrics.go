// Copyright (c) 2025, Simeon Miteff.
// Adapted for the TTS server's connection/request accounting.
// See LICENSE.TXT in the root directory of this source tree.

// This file implements a custom prometheus.Collector tracking live
// connections and requests-by-opcode, modeled directly on
// runZeroInc/sockstats's pkg/exporter/exporter.go TCPInfoCollector: a
// map keyed by connection id guarded by a mutex, with Describe/Collect
// satisfying prometheus.Collector. Registered by cmd/tts-server on an
// opt-in debug HTTP listener; the core TCP protocol server never imports
// net/http itself.
package server

import (
	"sync"

	"github.com/ClusterCockpit/tts/internal/wire"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks connection and request counts for export via
// prometheus.Collector. The zero value is not usable; use newMetrics.
type Metrics struct {
	mu          sync.Mutex
	openConns   map[string]struct{}
	requestsTot map[wire.Opcode]uint64

	activeDesc  *prometheus.Desc
	requestDesc *prometheus.Desc
}

func newMetrics() *Metrics {
	return &Metrics{
		openConns:   make(map[string]struct{}),
		requestsTot: make(map[wire.Opcode]uint64),
		activeDesc: prometheus.NewDesc(
			"tts_active_connections",
			"Number of currently open client connections.",
			nil, nil,
		),
		requestDesc: prometheus.NewDesc(
			"tts_requests_total",
			"Total requests processed, by opcode.",
			[]string{"opcode"}, nil,
		),
	}
}

func (m *Metrics) connectionOpened(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openConns[id] = struct{}{}
}

func (m *Metrics) connectionClosed(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.openConns, id)
}

func (m *Metrics) requestReceived(op wire.Opcode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTot[op]++
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(descs chan<- *prometheus.Desc) {
	descs <- m.activeDesc
	descs <- m.requestDesc
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(metrics chan<- prometheus.Metric) {
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics <- prometheus.MustNewConstMetric(m.activeDesc, prometheus.GaugeValue, float64(len(m.openConns)))
	for op, count := range m.requestsTot {
		metrics <- prometheus.MustNewConstMetric(m.requestDesc, prometheus.CounterValue, float64(count), op.String())
	}
}
