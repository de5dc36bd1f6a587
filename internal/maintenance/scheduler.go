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

// Package maintenance runs the periodic housekeeping jobs on cron
// schedules.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"
)

const retryDelay = 30 * time.Second

type job struct {
	name string
	cron string
	run  func(context.Context) error
}

// Scheduler runs each job at the ticks of its cron expression. Runs of the
// same job never overlap.
type Scheduler struct {
	mu     sync.Mutex
	jobs   map[string]job
	order  []string
	wg     sync.WaitGroup
	logger *slog.Logger
	now    func() time.Time
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		jobs:   make(map[string]job),
		logger: logger.With("component", "maintenance"),
		now:    time.Now,
	}
}

// Add registers a job. An empty cron expression disables it.
func (s *Scheduler) Add(name, cron string, run func(context.Context) error) error {
	if cron == "" {
		s.logger.Info("maintenance job disabled", "job", name)
		return nil
	}
	if !gronx.IsValid(cron) {
		return fmt.Errorf("maintenance job %s: invalid cron expression %q", name, cron)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[name]; dup {
		return fmt.Errorf("maintenance job %s registered twice", name)
	}
	s.jobs[name] = job{name: name, cron: cron, run: run}
	s.order = append(s.order, name)
	return nil
}

// Start launches one goroutine per job. They stop when ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range s.order {
		j := s.jobs[name]
		s.wg.Add(1)
		go s.loop(ctx, j)
		s.logger.Info("maintenance job scheduled", "job", j.name, "cron", j.cron)
	}
}

// Wait blocks until every job goroutine returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// RunNow runs the named job once on the calling goroutine.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("maintenance job %s not registered", name)
	}
	return s.execute(ctx, j)
}

// Next returns the next tick of the named job after now.
func (s *Scheduler) Next(name string) (time.Time, error) {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, fmt.Errorf("maintenance job %s not registered", name)
	}
	return gronx.NextTickAfter(j.cron, s.now(), false)
}

func (s *Scheduler) loop(ctx context.Context, j job) {
	defer s.wg.Done()
	for {
		wait := retryDelay
		next, err := gronx.NextTickAfter(j.cron, s.now(), false)
		if err != nil {
			s.logger.Error("next tick not computed", "job", j.name, "cron", j.cron, "error", err)
		} else {
			wait = time.Until(next)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if err == nil {
			_ = s.execute(ctx, j)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, j job) (err error) {
	start := s.now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("maintenance job %s panicked: %v", j.name, r)
		}
		if err != nil {
			s.logger.Error("maintenance job failed", "job", j.name, "error", err)
			return
		}
		s.logger.Debug("maintenance job finished", "job", j.name, "duration", time.Since(start))
	}()
	return j.run(ctx)
}
