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

// Package worker provides a bounded pool that runs reactor work off the
// transport delivery goroutines.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ErrPoolNotStarted = errors.New("worker pool not started")
	ErrPoolStopped    = errors.New("worker pool stopped")
	ErrQueueFull      = errors.New("worker pool queue full")
	ErrStopTimeout    = errors.New("worker pool stop timed out")
)

// Pool runs process for every submitted item on a fixed number of workers.
type Pool[T any] struct {
	workers int
	process func(context.Context, T) error
	work    chan T
	logger  *slog.Logger
	wg      sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool

	submitted int64
	processed int64
	failed    int64
	dropped   int64

	queueDepth prometheus.GaugeFunc
}

type Option[T any] func(*Pool[T])

// WithMetrics exposes the queue depth as a gauge named name.
func WithMetrics[T any](reg prometheus.Registerer, name string) Option[T] {
	return func(p *Pool[T]) {
		p.queueDepth = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: name,
			Help: "Items waiting in the worker pool queue",
		}, func() float64 { return float64(len(p.work)) })
		reg.MustRegister(p.queueDepth)
	}
}

func NewPool[T any](workers, queueSize int, process func(context.Context, T) error, logger *slog.Logger, opts ...Option[T]) *Pool[T] {
	if workers <= 0 {
		workers = 8
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	p := &Pool[T]{
		workers: workers,
		process: process,
		work:    make(chan T, queueSize),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pool[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
	p.started = true
	return nil
}

// Submit enqueues without blocking.
func (p *Pool[T]) Submit(item T) error {
	ok, err := p.offer(item)
	if err != nil {
		return err
	}
	if !ok {
		atomic.AddInt64(&p.dropped, 1)
		return ErrQueueFull
	}
	return nil
}

// SubmitWait enqueues, waiting for queue space until ctx is done.
func (p *Pool[T]) SubmitWait(ctx context.Context, item T) error {
	for {
		ok, err := p.offer(item)
		if err != nil || ok {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (p *Pool[T]) offer(item T) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return false, ErrPoolNotStarted
	}
	if p.stopped {
		return false, ErrPoolStopped
	}
	select {
	case p.work <- item:
		atomic.AddInt64(&p.submitted, 1)
		return true, nil
	default:
		return false, nil
	}
}

// Stop closes the queue and waits for in-flight work up to timeout.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.work)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrStopTimeout
	}
}

type Stats struct {
	Workers    int   `json:"workers"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
}

func (p *Pool[T]) Stats() Stats {
	return Stats{
		Workers:    p.workers,
		QueueDepth: len(p.work),
		Submitted:  atomic.LoadInt64(&p.submitted),
		Processed:  atomic.LoadInt64(&p.processed),
		Failed:     atomic.LoadInt64(&p.failed),
		Dropped:    atomic.LoadInt64(&p.dropped),
	}
}

func (p *Pool[T]) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-p.work:
			if !ok {
				return
			}
			p.handle(ctx, item)
		}
	}
}

func (p *Pool[T]) handle(ctx context.Context, item T) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&p.failed, 1)
			p.logger.Error("worker panic recovered", "error", r)
		}
	}()
	err := p.process(ctx, item)
	atomic.AddInt64(&p.processed, 1)
	if err != nil {
		atomic.AddInt64(&p.failed, 1)
	}
}
