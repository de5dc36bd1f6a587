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
	"log/slog"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/dispatch"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

// UnknownReactor keeps frames of unrecognized types for inspection. It
// never fails.
type UnknownReactor struct {
	store  core.UnknownMessageStore
	logger *slog.Logger
}

func NewUnknownReactor(store core.UnknownMessageStore, logger *slog.Logger) *UnknownReactor {
	return &UnknownReactor{store: store, logger: logger.With("component", "unknown_reactor")}
}

func (r *UnknownReactor) Kind() dispatch.Kind {
	return dispatch.KindUnknownMessage
}

func (r *UnknownReactor) Handle(ctx context.Context, ev dispatch.Event) error {
	r.logger.Info("unknown message received",
		"client_id", ev.Frame.ClientID,
		"type", ev.Envelope.Type,
		"message_id", ev.Envelope.MessageID,
	)
	if err := r.store.Save(ctx, ev.Frame); err != nil {
		r.logger.Error("unknown message not stored", "client_id", ev.Frame.ClientID, "error", err)
	}
	return nil
}
