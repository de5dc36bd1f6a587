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

// Package dispatch routes decoded inbound frames to per-kind event queues.
package dispatch

import (
	"log/slog"
	"sync"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/logging"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/metrics"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

// Observer sees every emitted event. Observe must not block.
type Observer interface {
	Observe(ev Event)
}

// Dispatcher runs on the transport's delivery goroutine. It decodes the
// envelope and hands events to the queues without ever waiting on them.
type Dispatcher struct {
	codec    core.Codec
	queues   *Queues
	metrics  *metrics.Metrics
	frameLog *logging.FrameLogger
	logger   *slog.Logger

	mu        sync.RWMutex
	closed    bool
	observers []Observer
}

func NewDispatcher(codec core.Codec, queues *Queues, m *metrics.Metrics, frameLog *logging.FrameLogger, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		codec:    codec,
		queues:   queues,
		metrics:  m,
		frameLog: frameLog,
		logger:   logger,
	}
}

func (d *Dispatcher) AddObserver(o Observer) {
	d.mu.Lock()
	d.observers = append(d.observers, o)
	d.mu.Unlock()
}

// OnFrame is the core.FrameHandler of every connection.
func (d *Dispatcher) OnFrame(frame core.Frame) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatch panic recovered", "client_id", frame.ClientID, "error", r)
		}
	}()

	env, err := d.codec.DecodeEnvelope(frame.Payload)
	if err != nil {
		d.metrics.DecodeErrors.Inc()
		d.logger.Warn("dropping undecodable frame",
			"client_id", frame.ClientID,
			"endpoint_id", frame.EndpointID,
			"topic", frame.Topic,
			"error", err,
		)
		return
	}
	if d.frameLog != nil {
		d.frameLog.Inbound(frame, env)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("dispatcher closed, dropping frame", "client_id", frame.ClientID, "type", env.Type)
		return
	}
	for _, kind := range Route(env.Type) {
		d.emit(Event{Kind: kind, Frame: frame, Envelope: env})
	}
}

func (d *Dispatcher) emit(ev Event) {
	if !d.queues.offer(ev) {
		d.metrics.DroppedEvents.WithLabelValues(ev.Kind.String()).Inc()
		d.logger.Warn("reactor queue full, dropping event",
			"kind", ev.Kind.String(),
			"client_id", ev.Frame.ClientID,
			"correlation_id", ev.Envelope.ApplicationMessageID,
		)
		return
	}
	d.metrics.DispatchedEvents.WithLabelValues(ev.Kind.String()).Inc()
	for _, o := range d.observers {
		o.Observe(ev)
	}
}

// Close stops dispatching and closes the queues so consumers drain and exit.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	d.queues.Close()
}
