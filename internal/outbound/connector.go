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

// Package outbound sends protocol requests over the endpoint connections
// and records what their acknowledgements will need.
package outbound

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/connection"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/logging"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/metrics"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

// Connector implements core.Connector by publishing encoded requests on
// the measures topic of the owning endpoint's connection. Virtual
// endpoints send through their parent's connection.
type Connector struct {
	registry  *connection.Registry
	directory core.EndpointDirectory
	codec     core.Codec
	frameLog  *logging.FrameLogger
	metrics   *metrics.Metrics
	logger    *slog.Logger
	newID     func() string
	now       func() time.Time
}

var _ core.Connector = (*Connector)(nil)

type messageIDKey struct{}

// WithMessageID makes the connector send the request under id instead of
// generating a new one.
func WithMessageID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, messageIDKey{}, id)
}

func messageIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(messageIDKey{}).(string)
	return id, ok && id != ""
}

func NewConnector(
	registry *connection.Registry,
	directory core.EndpointDirectory,
	codec core.Codec,
	frameLog *logging.FrameLogger,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Connector {
	return &Connector{
		registry:  registry,
		directory: directory,
		codec:     codec,
		frameLog:  frameLog,
		metrics:   m,
		logger:    logger.With("component", "connector"),
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

func (c *Connector) SendCapabilities(ctx context.Context, ep core.Endpoint) (string, error) {
	return c.send(ctx, ep, core.Request{
		Type: core.TypeCapabilities,
		Body: core.CapabilitiesBody{Capabilities: ep.Capabilities},
	})
}

func (c *Connector) SetSubscriptions(ctx context.Context, ep core.Endpoint, types []core.TechnicalMessageType) (string, error) {
	return c.send(ctx, ep, core.Request{
		Type: core.TypeSubscription,
		Body: core.SubscriptionBody{Types: types},
	})
}

func (c *Connector) QueryMessages(ctx context.Context, ep core.Endpoint, window core.TimeWindow) (string, error) {
	return c.send(ctx, ep, core.Request{
		Type: core.TypeFeedMessageQuery,
		Body: core.QueryBody{Window: window},
	})
}

func (c *Connector) QueryHeaders(ctx context.Context, ep core.Endpoint, window core.TimeWindow) (string, error) {
	return c.send(ctx, ep, core.Request{
		Type: core.TypeFeedHeaderQuery,
		Body: core.QueryBody{Window: window},
	})
}

func (c *Connector) ConfirmMessages(ctx context.Context, ep core.Endpoint, ids []string) (string, error) {
	return c.send(ctx, ep, core.Request{
		Type: core.TypeFeedConfirm,
		Body: core.MessageIDsBody{MessageIDs: ids},
	})
}

func (c *Connector) DeleteMessages(ctx context.Context, ep core.Endpoint, ids []string) (string, error) {
	return c.send(ctx, ep, core.Request{
		Type: core.TypeFeedDelete,
		Body: core.MessageIDsBody{MessageIDs: ids},
	})
}

func (c *Connector) ListEndpoints(ctx context.Context, ep core.Endpoint) (string, error) {
	return c.send(ctx, ep, core.Request{Type: core.TypeListEndpoints})
}

func (c *Connector) OnboardCloudEndpoints(ctx context.Context, ep core.Endpoint, reqs []core.VirtualEndpointRequest) (string, error) {
	return c.send(ctx, ep, core.Request{
		Type: core.TypeCloudOnboard,
		Body: core.OnboardBody{Endpoints: reqs},
	})
}

func (c *Connector) OffboardCloudEndpoints(ctx context.Context, ep core.Endpoint, agrirouterIDs []string) (string, error) {
	return c.send(ctx, ep, core.Request{
		Type: core.TypeCloudOffboard,
		Body: core.OffboardBody{EndpointIDs: agrirouterIDs},
	})
}

func (c *Connector) SendContent(ctx context.Context, ep core.Endpoint, content core.OutboundContent) (string, error) {
	return c.send(ctx, ep, core.Request{
		Type:             content.Type,
		Recipients:       content.Recipients,
		TeamSetContextID: content.TeamSetContextID,
		Body:             content.Payload,
	})
}

func (c *Connector) send(ctx context.Context, ep core.Endpoint, req core.Request) (string, error) {
	id, err := c.publish(ctx, ep, req)
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.metrics.OutboundRequests.WithLabelValues(string(req.Type), result).Inc()
	return id, err
}

func (c *Connector) publish(ctx context.Context, ep core.Endpoint, req core.Request) (string, error) {
	owner, err := c.owner(ctx, ep)
	if err != nil {
		return "", err
	}

	desc := owner.Connection
	rec := c.registry.Acquire(ctx, owner.ID, desc)
	transport, ok := rec.Transport()
	if !ok || !transport.IsConnected() {
		return "", fmt.Errorf("%w: client_id=%s", core.ErrNotConnected, desc.ClientID)
	}

	req.MessageID, ok = messageIDFrom(ctx)
	if !ok {
		req.MessageID = c.newID()
	}
	req.SenderID = ep.AgrirouterID
	req.Timestamp = c.now()
	payload, err := c.codec.EncodeRequest(req)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", req.Type, err)
	}

	if err := transport.Publish(ctx, desc.MeasuresTopic, payload); err != nil {
		c.logger.Error("publish failed",
			"client_id", desc.ClientID,
			"endpoint_id", ep.ID,
			"type", req.Type,
			"error", err,
		)
		return "", fmt.Errorf("publish %s for %s: %w", req.Type, ep.ID, err)
	}
	c.frameLog.Outbound(desc.ClientID, desc.MeasuresTopic, req, len(payload))
	return req.MessageID, nil
}

func (c *Connector) owner(ctx context.Context, ep core.Endpoint) (core.Endpoint, error) {
	if !ep.IsVirtual() {
		return ep, nil
	}
	parent, err := c.directory.FindByID(ctx, ep.ParentID)
	if err != nil {
		return core.Endpoint{}, fmt.Errorf("parent of virtual endpoint %s: %w", ep.ID, err)
	}
	return parent, nil
}
