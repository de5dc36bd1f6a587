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

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/dispatch"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

// PushReactor ingests unsolicited messages and confirms them in one batch.
type PushReactor struct {
	codec       core.Codec
	directory   core.EndpointDirectory
	connections Connections
	requests    Requests
	ingestor    *Ingestor
	logger      *slog.Logger
}

func NewPushReactor(codec core.Codec, directory core.EndpointDirectory, conns Connections, requests Requests, ingestor *Ingestor, logger *slog.Logger) *PushReactor {
	return &PushReactor{
		codec:       codec,
		directory:   directory,
		connections: conns,
		requests:    requests,
		ingestor:    ingestor,
		logger:      logger.With("component", "push_reactor"),
	}
}

func (r *PushReactor) Kind() dispatch.Kind {
	return dispatch.KindPushMessage
}

func (r *PushReactor) Handle(ctx context.Context, ev dispatch.Event) error {
	push, err := r.codec.DecodePushNotification(ev.Envelope)
	if err != nil {
		r.logger.Warn("push notification dropped", "client_id", ev.Frame.ClientID, "error", err)
		return nil
	}
	if len(push.Messages) == 0 {
		return nil
	}

	ep, known, err := resolveEndpoint(ctx, r.directory, r.connections, ev.Frame)
	if err != nil {
		return fmt.Errorf("push notification: %w", err)
	}
	if !known {
		ids := messageIDs(push.Messages)
		r.logger.Warn("push for unknown endpoint, deleting", "endpoint_id", ep.ID, "count", len(ids))
		_, err := r.requests.DeleteMessages(ctx, ep, ids)
		return err
	}

	handled, ingestErr := r.ingestor.Ingest(ctx, ep.ID, push.Messages)
	if len(handled) == 0 {
		return ingestErr
	}
	_, err = r.requests.ConfirmMessages(ctx, ep, handled)
	return errors.Join(ingestErr, err)
}
