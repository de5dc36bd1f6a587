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

package outbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/ack"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

// Sender issues requests through a connector. The pending acknowledgement
// of a request is registered under its message id before the request is
// published and withdrawn again when the publish fails. The connector
// must send under the id carried by WithMessageID.
type Sender struct {
	connector   core.Connector
	store       ack.Store
	onboardings *Onboardings
	logger      *slog.Logger
	newID       func() string
	now         func() time.Time
}

func NewSender(connector core.Connector, store ack.Store, onboardings *Onboardings, logger *slog.Logger) *Sender {
	return &Sender{
		connector:   connector,
		store:       store,
		onboardings: onboardings,
		logger:      logger.With("component", "sender"),
		newID:       uuid.NewString,
		now:         time.Now,
	}
}

func (s *Sender) SendCapabilities(ctx context.Context, ep core.Endpoint) (string, error) {
	return s.send(ctx, ep, ack.Capabilities{}, func(ctx context.Context) (string, error) {
		return s.connector.SendCapabilities(ctx, ep)
	})
}

func (s *Sender) SetSubscriptions(ctx context.Context, ep core.Endpoint, types []core.TechnicalMessageType) (string, error) {
	return s.send(ctx, ep, ack.Subscription{Types: types}, func(ctx context.Context) (string, error) {
		return s.connector.SetSubscriptions(ctx, ep, types)
	})
}

func (s *Sender) QueryMessages(ctx context.Context, ep core.Endpoint, window core.TimeWindow) (string, error) {
	return s.send(ctx, ep, ack.MessageQuery{Window: window}, func(ctx context.Context) (string, error) {
		return s.connector.QueryMessages(ctx, ep, window)
	})
}

func (s *Sender) QueryHeaders(ctx context.Context, ep core.Endpoint, window core.TimeWindow) (string, error) {
	return s.send(ctx, ep, ack.HeaderQuery{Window: window}, func(ctx context.Context) (string, error) {
		return s.connector.QueryHeaders(ctx, ep, window)
	})
}

func (s *Sender) ConfirmMessages(ctx context.Context, ep core.Endpoint, ids []string) (string, error) {
	return s.send(ctx, ep, ack.Confirm{MessageIDs: ids}, func(ctx context.Context) (string, error) {
		return s.connector.ConfirmMessages(ctx, ep, ids)
	})
}

func (s *Sender) DeleteMessages(ctx context.Context, ep core.Endpoint, ids []string) (string, error) {
	return s.send(ctx, ep, ack.Delete{MessageIDs: ids}, func(ctx context.Context) (string, error) {
		return s.connector.DeleteMessages(ctx, ep, ids)
	})
}

func (s *Sender) ListEndpoints(ctx context.Context, ep core.Endpoint) (string, error) {
	return s.send(ctx, ep, ack.ListEndpoints{}, func(ctx context.Context) (string, error) {
		return s.connector.ListEndpoints(ctx, ep)
	})
}

// OnboardCloudEndpoints also keeps the requests so the registration
// response can be matched to the parent endpoint. The state exists before
// the request leaves.
func (s *Sender) OnboardCloudEndpoints(ctx context.Context, ep core.Endpoint, reqs []core.VirtualEndpointRequest) (string, error) {
	return s.send(ctx, ep, ack.CloudOnboard{Requests: reqs}, func(ctx context.Context) (string, error) {
		id, _ := messageIDFrom(ctx)
		s.onboardings.Put(id, Onboarding{ParentID: ep.ID, Requests: reqs, CreatedAt: s.now()})
		sent, err := s.connector.OnboardCloudEndpoints(ctx, ep, reqs)
		if err != nil {
			s.onboardings.Take(id)
		}
		return sent, err
	})
}

func (s *Sender) OffboardCloudEndpoints(ctx context.Context, ep core.Endpoint, agrirouterIDs []string) (string, error) {
	return s.send(ctx, ep, ack.CloudOffboard{AgrirouterIDs: agrirouterIDs}, func(ctx context.Context) (string, error) {
		return s.connector.OffboardCloudEndpoints(ctx, ep, agrirouterIDs)
	})
}

func (s *Sender) SendContent(ctx context.Context, ep core.Endpoint, content core.OutboundContent) (string, error) {
	var pending ack.Context = ack.Content{Type: content.Type, TeamSetContextID: content.TeamSetContextID}
	if content.Type == core.TypeDeviceDescription {
		pending = ack.DeviceDescription{TeamSetContextID: content.TeamSetContextID}
	}
	return s.send(ctx, ep, pending, func(ctx context.Context) (string, error) {
		return s.connector.SendContent(ctx, ep, content)
	})
}

func (s *Sender) send(ctx context.Context, ep core.Endpoint, c ack.Context, request func(context.Context) (string, error)) (string, error) {
	id := s.newID()
	err := s.store.Register(ctx, ack.PendingAck{
		MessageID:  id,
		EndpointID: ep.ID,
		Context:    c,
		CreatedAt:  s.now(),
	})
	if err != nil {
		if errors.Is(err, core.ErrDuplicatePending) {
			s.logger.Error("outbound message id collides with a pending request",
				"message_id", id,
				"endpoint_id", ep.ID,
				"type", c.TechnicalMessageType(),
			)
		}
		return "", fmt.Errorf("register %s: %w", id, err)
	}

	sent, err := request(WithMessageID(ctx, id))
	if err != nil {
		s.logger.Warn("request not sent",
			"endpoint_id", ep.ID,
			"type", c.TechnicalMessageType(),
			"error", err,
		)
		if _, _, takeErr := s.store.Take(ctx, id); takeErr != nil {
			s.logger.Error("pending acknowledgement not withdrawn", "message_id", id, "error", takeErr)
		}
		return "", err
	}
	return sent, nil
}
