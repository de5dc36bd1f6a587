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

package maintenance

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/ack"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/connection"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/content"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/outbound"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/config"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

const (
	JobEvictStale = "evict-stale"
	JobReconnect  = "reconnect"
	JobExpireAcks = "expire-acks"
	JobChunks     = "sweep-chunks"

	JobQueryMessages = "query-messages"
	JobHeaderQuery   = "header-query"
	JobListEndpoints = "list-endpoints"
)

// Requests are the polling requests the jobs send for an endpoint.
type Requests interface {
	QueryMessages(ctx context.Context, ep core.Endpoint, window core.TimeWindow) (string, error)
	QueryHeaders(ctx context.Context, ep core.Endpoint, window core.TimeWindow) (string, error)
	ListEndpoints(ctx context.Context, ep core.Endpoint) (string, error)
}

// Jobs are the housekeeping operations over the engine's registries.
type Jobs struct {
	Registry    *connection.Registry
	Directory   core.EndpointDirectory
	Resolver    *ack.Resolver
	Onboardings *outbound.Onboardings
	Assembler   *content.Assembler
	Requests    Requests
	AckTTL      time.Duration
	// QueryWindow is the rolling window of message and header queries.
	QueryWindow time.Duration
	Logger      *slog.Logger
}

func (j *Jobs) EvictStale(context.Context) error {
	j.Registry.EvictStale()
	return nil
}

// Reconnect connects every directory endpoint that has no live
// connection.
func (j *Jobs) Reconnect(ctx context.Context) error {
	endpoints, err := j.Directory.List(ctx)
	if err != nil {
		return err
	}
	connected := j.Registry.Reconnect(ctx, endpoints)
	j.Logger.Debug("reconnect sweep done",
		"endpoints", len(endpoints),
		"connected", connected,
		"inactive", j.Registry.CountInactive(),
	)
	return nil
}

// ExpireAcks drops pending acknowledgements and onboarding state older
// than the ack TTL.
func (j *Jobs) ExpireAcks(ctx context.Context) error {
	n, err := j.Resolver.Expire(ctx, j.AckTTL)
	if dropped := j.Onboardings.Expire(time.Now().Add(-j.AckTTL)); dropped > 0 {
		j.Logger.Warn("onboarding state expired", "count", dropped)
	}
	if n > 0 {
		j.Logger.Info("pending acknowledgements expired", "count", n)
	}
	return err
}

func (j *Jobs) SweepChunks(context.Context) error {
	for _, id := range j.Assembler.Sweep() {
		j.Logger.Warn("incomplete chunked message dropped, parts stay in the inbox", "chunk_context_id", id)
	}
	return nil
}

// QueryMessages asks every connected endpoint's inbox for the messages
// of the query window.
func (j *Jobs) QueryMessages(ctx context.Context) error {
	window := j.window()
	return j.poll(ctx, "message query", func(ep core.Endpoint) (string, error) {
		return j.Requests.QueryMessages(ctx, ep, window)
	})
}

func (j *Jobs) QueryHeaders(ctx context.Context) error {
	window := j.window()
	return j.poll(ctx, "header query", func(ep core.Endpoint) (string, error) {
		return j.Requests.QueryHeaders(ctx, ep, window)
	})
}

func (j *Jobs) ListEndpoints(ctx context.Context) error {
	return j.poll(ctx, "endpoint listing", func(ep core.Endpoint) (string, error) {
		return j.Requests.ListEndpoints(ctx, ep)
	})
}

func (j *Jobs) window() core.TimeWindow {
	now := time.Now()
	return core.TimeWindow{From: now.Add(-j.QueryWindow), To: now}
}

// poll sends one request per connected, active, non-virtual endpoint. A
// failed endpoint does not stop the others.
func (j *Jobs) poll(ctx context.Context, what string, send func(core.Endpoint) (string, error)) error {
	endpoints, err := j.Directory.List(ctx)
	if err != nil {
		return err
	}
	sent := 0
	var errs []error
	for _, ep := range endpoints {
		if ep.IsVirtual() || ep.Deactivated {
			continue
		}
		rec, ok := j.Registry.Lookup(ep.Connection.ClientID)
		if !ok || !rec.Connected() {
			continue
		}
		if _, err := send(ep); err != nil {
			j.Logger.Warn(what+" not sent", "endpoint_id", ep.ID, "error", err)
			errs = append(errs, err)
			continue
		}
		sent++
	}
	j.Logger.Debug(what+" sent", "endpoints", sent)
	return errors.Join(errs...)
}

// Register adds every job to s with the schedules of cfg.
func Register(s *Scheduler, cfg config.MaintenanceConfig, j *Jobs) error {
	return errors.Join(
		s.Add(JobEvictStale, cfg.EvictStale, j.EvictStale),
		s.Add(JobReconnect, cfg.Reconnect, j.Reconnect),
		s.Add(JobExpireAcks, cfg.ExpireAcks, j.ExpireAcks),
		s.Add(JobChunks, cfg.Chunks, j.SweepChunks),
		s.Add(JobQueryMessages, cfg.QueryMessages, j.QueryMessages),
		s.Add(JobHeaderQuery, cfg.HeaderQuery, j.QueryHeaders),
		s.Add(JobListEndpoints, cfg.ListEndpoints, j.ListEndpoints),
	)
}
