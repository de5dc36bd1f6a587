// Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

// Package metrics holds the prometheus collectors of the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "agrirouter_middleware"

type Metrics struct {
	ConnectionCacheMisses prometheus.Counter
	ConnectionErrors      prometheus.Counter
	EvictedConnections    prometheus.Counter
	DispatchedEvents      *prometheus.CounterVec
	DroppedEvents         *prometheus.CounterVec
	DecodeErrors          prometheus.Counter
	ResolvedAcks          *prometheus.CounterVec
	CorrelationMisses     prometheus.Counter
	ExpiredAcks           prometheus.Counter
	OutboundRequests      *prometheus.CounterVec
	ReactorDuration       *prometheus.HistogramVec

	registerer prometheus.Registerer
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_cache_misses_total",
			Help:      "Connection lookups that created a new record",
		}),
		ConnectionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_errors_total",
			Help:      "Failed connection attempts and lost connections",
		}),
		EvictedConnections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_evicted_total",
			Help:      "Connection records removed by the stale sweep",
		}),
		DispatchedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatcher_events_total",
			Help:      "Events emitted by the inbound dispatcher",
		}, []string{"kind"}),
		DroppedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatcher_dropped_events_total",
			Help:      "Events dropped because the reactor queue was full",
		}, []string{"kind"}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Inbound frames dropped because they could not be decoded",
		}),
		ResolvedAcks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "acks_resolved_total",
			Help:      "Pending acknowledgements resolved by outcome",
		}, []string{"outcome"}),
		CorrelationMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ack_correlation_misses_total",
			Help:      "Acknowledgements without a pending entry",
		}),
		ExpiredAcks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "acks_expired_total",
			Help:      "Pending acknowledgements removed by the expiry sweep",
		}),
		OutboundRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_requests_total",
			Help:      "Outbound requests by technical message type and result",
		}, []string{"type", "result"}),
		ReactorDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reactor_duration_seconds",
			Help:      "Time spent handling one event",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"kind", "status"}),
		registerer: reg,
	}

	reg.MustRegister(
		m.ConnectionCacheMisses,
		m.ConnectionErrors,
		m.EvictedConnections,
		m.DispatchedEvents,
		m.DroppedEvents,
		m.DecodeErrors,
		m.ResolvedAcks,
		m.CorrelationMisses,
		m.ExpiredAcks,
		m.OutboundRequests,
		m.ReactorDuration,
	)
	return m
}

// NewNop returns collectors registered with a throwaway registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Gauge registers a gauge whose value is read from fn at scrape time.
func (m *Metrics) Gauge(name, help string, fn func() float64) {
	m.registerer.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// Registerer exposes the registry for components that bring their own collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	return m.registerer
}
