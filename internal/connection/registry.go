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

// Package connection keeps one broker connection record per client id.
package connection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/metrics"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

type Registry struct {
	records        sync.Map
	subs           *subscriptions
	dialer         core.Dialer
	handler        core.FrameHandler
	connectTimeout time.Duration
	metrics        *metrics.Metrics
	logger         *slog.Logger
	now            func() time.Time
}

func NewRegistry(
	dialer core.Dialer,
	handler core.FrameHandler,
	connectTimeout time.Duration,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Registry {
	return &Registry{
		subs:           newSubscriptions(),
		dialer:         dialer,
		handler:        handler,
		connectTimeout: connectTimeout,
		metrics:        m,
		logger:         logger,
		now:            time.Now,
	}
}

// Acquire returns the record for desc.ClientID, creating an unconnected one
// on a miss. A valid descriptor that differs from the cached one replaces
// it and drops the handle, so the next connect uses the new settings.
// When the record already has a handle, the commands topic is subscribed
// unless that already succeeded once.
func (r *Registry) Acquire(ctx context.Context, endpointID string, desc core.ConnectionDescriptor) *Record {
	val, loaded := r.records.LoadOrStore(desc.ClientID, newRecord(endpointID, desc))
	rec := val.(*Record)
	if !loaded {
		r.metrics.ConnectionCacheMisses.Inc()
		r.logger.Debug("connection record created", "client_id", desc.ClientID, "endpoint_id", endpointID)
		return rec
	}

	rec.mu.Lock()
	if desc != rec.descriptor && desc.Validate() == nil {
		stale := rec.transport
		rec.descriptor = desc
		rec.transport = nil
		r.subs.reset(rec.ClientID)
		rec.mu.Unlock()
		if stale != nil {
			stale.Disconnect()
		}
		r.logger.Info("connection settings changed", "client_id", desc.ClientID, "endpoint_id", endpointID, "host", desc.Host, "port", desc.Port)
		return rec
	}
	defer rec.mu.Unlock()
	if rec.transport != nil && desc.CommandsTopic != "" {
		r.subscribeLocked(ctx, rec, desc.CommandsTopic)
	}
	return rec
}

// Lookup returns the record without creating one.
func (r *Registry) Lookup(clientID string) (*Record, bool) {
	val, ok := r.records.Load(clientID)
	if !ok {
		return nil, false
	}
	return val.(*Record), true
}

// Connect establishes the transport of an existing record. An already
// connected record is left alone.
func (r *Registry) Connect(ctx context.Context, clientID string) error {
	rec, ok := r.Lookup(clientID)
	if !ok {
		return fmt.Errorf("%w: no record for client_id=%s", core.ErrNotConnected, clientID)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.transport != nil {
		if rec.transport.IsConnected() {
			return nil
		}
		rec.transport.Disconnect()
		rec.transport = nil
	}

	desc := rec.descriptor
	if err := desc.Validate(); err != nil {
		r.connectFailedLocked(rec, err)
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, r.connectTimeout)
	defer cancel()

	t, err := r.dialer.Dial(dialCtx, desc, func(err error) { r.connectionLost(rec, err) })
	if err != nil {
		err = fmt.Errorf("connect client_id=%s: %w", clientID, err)
		r.connectFailedLocked(rec, err)
		return err
	}

	rec.transport = t
	r.subs.reset(clientID)
	r.subscribeLocked(ctx, rec, desc.CommandsTopic)

	r.logger.Info("connection established",
		"client_id", clientID,
		"endpoint_id", rec.EndpointID,
		"host", desc.Host,
		"port", desc.Port,
	)
	return nil
}

// Reconnect acquires and connects every given endpoint that has no live
// connection. Virtual and deactivated endpoints share or lack a connection
// and are skipped. It returns the number of endpoints that are connected
// afterwards.
func (r *Registry) Reconnect(ctx context.Context, endpoints []core.Endpoint) int {
	connected := 0
	for _, ep := range endpoints {
		if ep.IsVirtual() || ep.Deactivated {
			continue
		}
		rec := r.Acquire(ctx, ep.ID, ep.Connection)
		if rec.Connected() {
			connected++
			continue
		}
		if err := r.Connect(ctx, ep.Connection.ClientID); err != nil {
			r.logger.Warn("reconnect failed", "endpoint_id", ep.ID, "client_id", ep.Connection.ClientID, "error", err)
			continue
		}
		connected++
	}
	return connected
}

// EvictStale removes records whose handle is absent or disconnected.
func (r *Registry) EvictStale() int {
	evicted := 0
	r.records.Range(func(key, val any) bool {
		rec := val.(*Record)
		if rec.Connected() {
			return true
		}
		if !r.records.CompareAndDelete(key, rec) {
			return true
		}
		r.release(rec)
		evicted++
		return true
	})
	if evicted > 0 {
		r.metrics.EvictedConnections.Add(float64(evicted))
		r.logger.Info("stale connections evicted", "count", evicted)
	}
	return evicted
}

// Remove disconnects and forgets the record of clientID.
func (r *Registry) Remove(clientID string) bool {
	val, ok := r.records.LoadAndDelete(clientID)
	if !ok {
		return false
	}
	r.release(val.(*Record))
	r.logger.Info("connection removed", "client_id", clientID)
	return true
}

func (r *Registry) CountActive() int {
	n := 0
	r.records.Range(func(_, val any) bool {
		if val.(*Record).Connected() {
			n++
		}
		return true
	})
	return n
}

func (r *Registry) CountInactive() int {
	n := 0
	r.records.Range(func(_, val any) bool {
		if !val.(*Record).Connected() {
			n++
		}
		return true
	})
	return n
}

func (r *Registry) Status(clientID string) (Status, bool) {
	rec, ok := r.Lookup(clientID)
	if !ok {
		return Status{}, false
	}
	return rec.status(), true
}

func (r *Registry) Snapshot() []Status {
	var out []Status
	r.records.Range(func(_, val any) bool {
		out = append(out, val.(*Record).status())
		return true
	})
	return out
}

// Topics lists the topics clientID is subscribed to.
func (r *Registry) Topics(clientID string) []string {
	return r.subs.topics(clientID)
}

// Close disconnects every record.
func (r *Registry) Close() {
	r.records.Range(func(key, val any) bool {
		r.records.Delete(key)
		r.release(val.(*Record))
		return true
	})
}

func (r *Registry) subscribeLocked(ctx context.Context, rec *Record, topic string) {
	if r.subs.has(rec.ClientID, topic) {
		return
	}
	if err := rec.transport.Subscribe(ctx, topic, r.deliver(rec)); err != nil {
		r.logger.Warn("subscribe failed", "client_id", rec.ClientID, "topic", topic, "error", err)
		return
	}
	r.subs.add(rec.ClientID, topic)
	r.logger.Info("subscribed", "client_id", rec.ClientID, "topic", topic)
}

func (r *Registry) deliver(rec *Record) core.FrameHandler {
	return func(f core.Frame) {
		f.ClientID = rec.ClientID
		f.EndpointID = rec.EndpointID
		r.handler(f)
	}
}

func (r *Registry) connectFailedLocked(rec *Record, err error) {
	rec.appendErrorLocked(err, r.now())
	r.metrics.ConnectionErrors.Inc()
	r.logger.Error("connection failed", "client_id", rec.ClientID, "endpoint_id", rec.EndpointID, "error", err)
}

func (r *Registry) connectionLost(rec *Record, err error) {
	rec.recordError(err, r.now())
	r.metrics.ConnectionErrors.Inc()
	r.logger.Warn("connection lost", "client_id", rec.ClientID, "endpoint_id", rec.EndpointID, "error", err)
}

func (r *Registry) release(rec *Record) {
	rec.mu.Lock()
	t := rec.transport
	rec.transport = nil
	rec.mu.Unlock()
	if t != nil {
		t.Disconnect()
	}
	r.subs.reset(rec.ClientID)
}
