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

package ack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/metrics"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeSuccessWithMessages
	OutcomeFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeSuccessWithMessages:
		return "success_with_messages"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Outcome is what an acknowledgement said about a request.
type Outcome struct {
	Kind         OutcomeKind
	ResponseCode int
	Messages     []core.DetailMessage
}

// OutcomeFor maps an envelope to an outcome. Envelope types other than
// the three ACK kinds succeed unless their response code is 400 or above.
func OutcomeFor(env core.Envelope, messages []core.DetailMessage) Outcome {
	o := Outcome{ResponseCode: env.ResponseCode, Messages: messages}
	switch env.Type {
	case core.ResponseAck:
		o.Kind = OutcomeSuccess
	case core.ResponseAckWithMessages:
		o.Kind = OutcomeSuccessWithMessages
	case core.ResponseAckWithFailure:
		o.Kind = OutcomeFailure
	default:
		if env.ResponseCode >= 400 {
			o.Kind = OutcomeFailure
		}
	}
	return o
}

// Followups are the protocol actions triggered by successful acknowledgements.
type Followups interface {
	RenewSubscriptions(ctx context.Context, endpointID string) error
	ActivateDevice(ctx context.Context, endpointID, teamSetContextID string) error
}

type Resolver struct {
	store     Store
	followups Followups
	messages  core.MessageLog
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewResolver(store Store, followups Followups, messages core.MessageLog, m *metrics.Metrics, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:     store,
		followups: followups,
		messages:  messages,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Resolve takes the pending entry for correlationID and applies the
// effects of outcome. A missing entry is logged and ignored. The entry is
// gone once Take returns, whatever the effects do.
func (r *Resolver) Resolve(ctx context.Context, correlationID string, outcome Outcome) error {
	pending, ok, err := r.store.Take(ctx, correlationID)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", correlationID, err)
	}
	if !ok {
		r.metrics.CorrelationMisses.Inc()
		r.logger.Warn("no pending acknowledgement for response",
			"correlation_id", correlationID,
			"outcome", outcome.Kind.String(),
		)
		return nil
	}

	r.metrics.ResolvedAcks.WithLabelValues(outcome.Kind.String()).Inc()
	r.logger.Debug("acknowledgement resolved",
		"message_id", pending.MessageID,
		"endpoint_id", pending.EndpointID,
		"type", pending.Type(),
		"outcome", outcome.Kind.String(),
		"age", r.now().Sub(pending.CreatedAt),
	)

	switch outcome.Kind {
	case OutcomeSuccess:
		return r.followUp(ctx, pending)
	case OutcomeSuccessWithMessages:
		severity := core.SeverityInfo
		if outcome.ResponseCode >= 400 {
			severity = core.SeverityWarning
		}
		return errors.Join(
			r.record(ctx, pending, severity, outcome.Messages),
			r.followUp(ctx, pending),
		)
	case OutcomeFailure:
		err := r.record(ctx, pending, core.SeverityError, outcome.Messages)
		if dd, ok := pending.Context.(DeviceDescription); ok && hasCode(outcome.Messages, core.NoRecipientsCode) {
			err = errors.Join(err, r.followups.ActivateDevice(ctx, pending.EndpointID, dd.TeamSetContextID))
		}
		return err
	}
	return nil
}

// Expire drops entries older than ttl.
func (r *Resolver) Expire(ctx context.Context, ttl time.Duration) (int, error) {
	expired, err := r.store.Expire(ctx, r.now().Add(-ttl))
	for _, p := range expired {
		r.logger.Warn("pending acknowledgement expired",
			"message_id", p.MessageID,
			"endpoint_id", p.EndpointID,
			"type", p.Type(),
			"created_at", p.CreatedAt,
		)
	}
	r.metrics.ExpiredAcks.Add(float64(len(expired)))
	return len(expired), err
}

func (r *Resolver) followUp(ctx context.Context, p PendingAck) error {
	switch c := p.Context.(type) {
	case Capabilities:
		return r.followups.RenewSubscriptions(ctx, p.EndpointID)
	case DeviceDescription:
		return r.followups.ActivateDevice(ctx, p.EndpointID, c.TeamSetContextID)
	}
	return nil
}

func (r *Resolver) record(ctx context.Context, p PendingAck, severity core.Severity, messages []core.DetailMessage) error {
	if len(messages) == 0 {
		return nil
	}
	if err := r.messages.Record(ctx, p.EndpointID, severity, messages); err != nil {
		return fmt.Errorf("record %s messages for %s: %w", severity, p.MessageID, err)
	}
	return nil
}

func hasCode(messages []core.DetailMessage, code string) bool {
	for _, m := range messages {
		if m.MessageCode == code {
			return true
		}
	}
	return false
}
