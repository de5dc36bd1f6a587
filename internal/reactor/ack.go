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

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/ack"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/dispatch"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

// AckReactor resolves the pending acknowledgement an envelope answers.
type AckReactor struct {
	codec    core.Codec
	resolver *ack.Resolver
	logger   *slog.Logger
}

func NewAckReactor(codec core.Codec, resolver *ack.Resolver, logger *slog.Logger) *AckReactor {
	return &AckReactor{codec: codec, resolver: resolver, logger: logger.With("component", "ack_reactor")}
}

func (r *AckReactor) Kind() dispatch.Kind {
	return dispatch.KindAcknowledgement
}

func (r *AckReactor) Handle(ctx context.Context, ev dispatch.Event) error {
	env := ev.Envelope
	var messages []core.DetailMessage
	if env.Type == core.ResponseAckWithMessages || env.Type == core.ResponseAckWithFailure {
		decoded, err := r.codec.DecodeMessages(env)
		if err != nil {
			r.logger.Warn("detail messages dropped",
				"correlation_id", env.ApplicationMessageID,
				"type", env.Type,
				"error", err,
			)
		}
		messages = decoded
	}
	return r.resolver.Resolve(ctx, env.ApplicationMessageID, ack.OutcomeFor(env, messages))
}
