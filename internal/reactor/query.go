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

package reactor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/dispatch"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

// QueryReactor ingests a page of query results, confirms it and asks for
// the next page while the platform reports more messages.
type QueryReactor struct {
	codec       core.Codec
	directory   core.EndpointDirectory
	connections Connections
	requests    Requests
	ingestor    *Ingestor
	window      time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

func NewQueryReactor(
	codec core.Codec,
	directory core.EndpointDirectory,
	conns Connections,
	requests Requests,
	ingestor *Ingestor,
	window time.Duration,
	logger *slog.Logger,
) *QueryReactor {
	return &QueryReactor{
		codec:       codec,
		directory:   directory,
		connections: conns,
		requests:    requests,
		ingestor:    ingestor,
		window:      window,
		now:         time.Now,
		logger:      logger.With("component", "query_reactor"),
	}
}

func (r *QueryReactor) Kind() dispatch.Kind {
	return dispatch.KindQueryResult
}

func (r *QueryReactor) Handle(ctx context.Context, ev dispatch.Event) error {
	result, err := r.codec.DecodeQueryResult(ev.Envelope)
	if err != nil {
		r.logger.Warn("query result dropped", "client_id", ev.Frame.ClientID, "error", err)
		return nil
	}

	ep, known, err := resolveEndpoint(ctx, r.directory, r.connections, ev.Frame)
	if err != nil {
		return fmt.Errorf("query result: %w", err)
	}
	if !known {
		if len(result.Messages) == 0 {
			return nil
		}
		ids := messageIDs(result.Messages)
		r.logger.Warn("query result for unknown endpoint, deleting", "endpoint_id", ep.ID, "count", len(ids))
		_, err := r.requests.DeleteMessages(ctx, ep, ids)
		return err
	}

	var errs []error
	handled, err := r.ingestor.Ingest(ctx, ep.ID, result.Messages)
	errs = append(errs, err)
	if len(handled) > 0 {
		_, err := r.requests.ConfirmMessages(ctx, ep, handled)
		errs = append(errs, err)
	}

	if result.Metrics.HasMore() {
		now := r.now()
		window := core.TimeWindow{From: now.Add(-r.window), To: now}
		r.logger.Debug("query continues",
			"endpoint_id", ep.ID,
			"total", result.Metrics.TotalMessagesInQuery,
			"max_count", result.Metrics.MaxCountRestriction,
		)
		_, err := r.requests.QueryMessages(ctx, ep, window)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
