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

// Package reactor holds the handlers for dispatched events and the runner
// that feeds them from the typed queues into the worker pool.
package reactor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/dispatch"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/metrics"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/worker"
)

// Reactor handles the events of one kind.
type Reactor interface {
	Kind() dispatch.Kind
	Handle(ctx context.Context, ev dispatch.Event) error
}

// Runner moves events from their queues into a worker pool and hands each
// one to the reactor registered for its kind.
type Runner struct {
	queues   *dispatch.Queues
	pool     *worker.Pool[dispatch.Event]
	reactors map[dispatch.Kind]Reactor
	metrics  *metrics.Metrics
	logger   *slog.Logger
	wg       sync.WaitGroup
}

func NewRunner(queues *dispatch.Queues, reactors []Reactor, workers, queueSize int, m *metrics.Metrics, logger *slog.Logger) *Runner {
	r := &Runner{
		queues:   queues,
		reactors: make(map[dispatch.Kind]Reactor, len(reactors)),
		metrics:  m,
		logger:   logger.With("component", "reactor_runner"),
	}
	for _, re := range reactors {
		r.reactors[re.Kind()] = re
	}
	r.pool = worker.NewPool(workers, queueSize, r.process, r.logger,
		worker.WithMetrics[dispatch.Event](m.Registerer(), "reactor_pool_queue_depth"))
	return r
}

// Start launches the pool and one forwarder per event kind. Forwarders
// stop when their queue is closed or ctx is done.
func (r *Runner) Start(ctx context.Context) error {
	if err := r.pool.Start(ctx); err != nil {
		return err
	}
	for _, kind := range dispatch.Kinds {
		if _, ok := r.reactors[kind]; !ok {
			r.logger.Warn("no reactor registered, events will be dropped", "kind", kind.String())
		}
		r.wg.Add(1)
		go r.forward(ctx, kind)
	}
	return nil
}

// Stop waits for the forwarders to drain the closed queues, then stops the
// pool. The queues must be closed before calling Stop.
func (r *Runner) Stop(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		return fmt.Errorf("reactor forwarders: %w", worker.ErrStopTimeout)
	}
	return r.pool.Stop(timeout)
}

func (r *Runner) Stats() worker.Stats {
	return r.pool.Stats()
}

func (r *Runner) forward(ctx context.Context, kind dispatch.Kind) {
	defer r.wg.Done()
	events := r.queues.C(kind)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := r.pool.SubmitWait(ctx, ev); err != nil {
				r.logger.Warn("event not submitted",
					"kind", kind.String(),
					"client_id", ev.Frame.ClientID,
					"error", err,
				)
				if errors.Is(err, worker.ErrPoolStopped) || ctx.Err() != nil {
					return
				}
			}
		}
	}
}

func (r *Runner) process(ctx context.Context, ev dispatch.Event) error {
	re, ok := r.reactors[ev.Kind]
	if !ok {
		return nil
	}

	start := time.Now()
	err := re.Handle(ctx, ev)
	status := "ok"
	if err != nil {
		status = "error"
		r.logger.Error("reactor failed",
			"kind", ev.Kind.String(),
			"client_id", ev.Frame.ClientID,
			"endpoint_id", ev.Frame.EndpointID,
			"message_id", ev.Envelope.MessageID,
			"error", err,
		)
	}
	r.metrics.ReactorDuration.WithLabelValues(ev.Kind.String(), status).Observe(time.Since(start).Seconds())
	return err
}
