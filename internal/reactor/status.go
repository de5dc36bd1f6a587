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
	"log/slog"
	"time"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/dispatch"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

// StatusReactor records how many messages wait in an endpoint's feed.
type StatusReactor struct {
	codec     core.Codec
	directory core.EndpointDirectory
	now       func() time.Time
	logger    *slog.Logger
}

func NewStatusReactor(codec core.Codec, directory core.EndpointDirectory, logger *slog.Logger) *StatusReactor {
	return &StatusReactor{
		codec:     codec,
		directory: directory,
		now:       time.Now,
		logger:    logger.With("component", "status_reactor"),
	}
}

func (r *StatusReactor) Kind() dispatch.Kind {
	return dispatch.KindStatusUpdate
}

func (r *StatusReactor) Handle(ctx context.Context, ev dispatch.Event) error {
	result, err := r.codec.DecodeHeaderQueryResult(ev.Envelope)
	if err != nil {
		r.logger.Warn("header query result dropped", "client_id", ev.Frame.ClientID, "error", err)
		return nil
	}
	ep, ok := findEndpoint(ctx, r.directory, ev.Frame.EndpointID, r.logger)
	if !ok {
		return nil
	}

	waiting := result.Metrics.TotalMessagesInQuery
	if waiting == 0 {
		waiting = len(result.Headers)
	}
	return r.directory.UpdateQueueStatus(ctx, ep.ID, core.QueueStatus{MessagesWaiting: waiting, UpdatedAt: r.now()})
}

// RecipientsReactor stores the endpoints an endpoint may send to.
type RecipientsReactor struct {
	codec     core.Codec
	directory core.EndpointDirectory
	logger    *slog.Logger
}

func NewRecipientsReactor(codec core.Codec, directory core.EndpointDirectory, logger *slog.Logger) *RecipientsReactor {
	return &RecipientsReactor{codec: codec, directory: directory, logger: logger.With("component", "recipients_reactor")}
}

func (r *RecipientsReactor) Kind() dispatch.Kind {
	return dispatch.KindRecipientsUpdate
}

func (r *RecipientsReactor) Handle(ctx context.Context, ev dispatch.Event) error {
	listing, err := r.codec.DecodeEndpointsListing(ev.Envelope)
	if err != nil {
		r.logger.Warn("endpoints listing dropped", "client_id", ev.Frame.ClientID, "error", err)
		return nil
	}
	ep, ok := findEndpoint(ctx, r.directory, ev.Frame.EndpointID, r.logger)
	if !ok {
		return nil
	}
	return r.directory.UpdateRecipients(ctx, ep.ID, listing.Endpoints)
}

// findEndpoint logs and reports false when the endpoint is gone. Updates
// for such endpoints are discarded.
func findEndpoint(ctx context.Context, directory core.EndpointDirectory, id string, logger *slog.Logger) (core.Endpoint, bool) {
	ep, err := directory.FindByID(ctx, id)
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, core.ErrEndpointNotFound) {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "update discarded", "endpoint_id", id, "error", err)
		return core.Endpoint{}, false
	}
	return ep, true
}
