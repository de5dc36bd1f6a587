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

// Package ack correlates outbound requests with their acknowledgements.
package ack

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

// PendingAck is an outbound request waiting for its acknowledgement.
type PendingAck struct {
	MessageID  string
	EndpointID string
	Context    Context
	CreatedAt  time.Time
}

func (p PendingAck) Type() core.TechnicalMessageType {
	if p.Context == nil {
		return ""
	}
	return p.Context.TechnicalMessageType()
}

// Context carries what resolving one kind of request needs.
type Context interface {
	TechnicalMessageType() core.TechnicalMessageType
}

type Capabilities struct{}

type Subscription struct {
	Types []core.TechnicalMessageType `json:"types"`
}

type DeviceDescription struct {
	TeamSetContextID string `json:"team_set_context_id"`
}

type MessageQuery struct {
	Window core.TimeWindow `json:"window"`
}

type HeaderQuery struct {
	Window core.TimeWindow `json:"window"`
}

type Confirm struct {
	MessageIDs []string `json:"message_ids"`
}

type Delete struct {
	MessageIDs []string `json:"message_ids"`
}

type ListEndpoints struct{}

type CloudOnboard struct {
	Requests []core.VirtualEndpointRequest `json:"requests"`
}

type CloudOffboard struct {
	AgrirouterIDs []string `json:"agrirouter_ids"`
}

// Content is any other business payload, for example a time log.
type Content struct {
	Type             core.TechnicalMessageType `json:"type"`
	TeamSetContextID string                    `json:"team_set_context_id,omitempty"`
}

func (Capabilities) TechnicalMessageType() core.TechnicalMessageType {
	return core.TypeCapabilities
}

func (Subscription) TechnicalMessageType() core.TechnicalMessageType {
	return core.TypeSubscription
}

func (DeviceDescription) TechnicalMessageType() core.TechnicalMessageType {
	return core.TypeDeviceDescription
}

func (MessageQuery) TechnicalMessageType() core.TechnicalMessageType {
	return core.TypeFeedMessageQuery
}

func (HeaderQuery) TechnicalMessageType() core.TechnicalMessageType {
	return core.TypeFeedHeaderQuery
}

func (Confirm) TechnicalMessageType() core.TechnicalMessageType {
	return core.TypeFeedConfirm
}

func (Delete) TechnicalMessageType() core.TechnicalMessageType {
	return core.TypeFeedDelete
}

func (ListEndpoints) TechnicalMessageType() core.TechnicalMessageType {
	return core.TypeListEndpoints
}

func (CloudOnboard) TechnicalMessageType() core.TechnicalMessageType {
	return core.TypeCloudOnboard
}

func (CloudOffboard) TechnicalMessageType() core.TechnicalMessageType {
	return core.TypeCloudOffboard
}

func (c Content) TechnicalMessageType() core.TechnicalMessageType {
	return c.Type
}

type storedAck struct {
	MessageID  string                    `json:"message_id"`
	EndpointID string                    `json:"endpoint_id"`
	Type       core.TechnicalMessageType `json:"type"`
	CreatedAt  time.Time                 `json:"created_at"`
	Context    json.RawMessage           `json:"context"`
}

func marshalPending(p PendingAck) ([]byte, error) {
	raw, err := json.Marshal(p.Context)
	if err != nil {
		return nil, fmt.Errorf("marshal context: %w", err)
	}
	return json.Marshal(storedAck{
		MessageID:  p.MessageID,
		EndpointID: p.EndpointID,
		Type:       p.Type(),
		CreatedAt:  p.CreatedAt,
		Context:    raw,
	})
}

func unmarshalPending(data []byte) (PendingAck, error) {
	var s storedAck
	if err := json.Unmarshal(data, &s); err != nil {
		return PendingAck{}, fmt.Errorf("unmarshal pending ack: %w", err)
	}

	var ctx Context
	var err error
	switch s.Type {
	case core.TypeCapabilities:
		ctx = Capabilities{}
	case core.TypeSubscription:
		ctx, err = decodeContext[Subscription](s.Context)
	case core.TypeDeviceDescription:
		ctx, err = decodeContext[DeviceDescription](s.Context)
	case core.TypeFeedMessageQuery:
		ctx, err = decodeContext[MessageQuery](s.Context)
	case core.TypeFeedHeaderQuery:
		ctx, err = decodeContext[HeaderQuery](s.Context)
	case core.TypeFeedConfirm:
		ctx, err = decodeContext[Confirm](s.Context)
	case core.TypeFeedDelete:
		ctx, err = decodeContext[Delete](s.Context)
	case core.TypeListEndpoints:
		ctx = ListEndpoints{}
	case core.TypeCloudOnboard:
		ctx, err = decodeContext[CloudOnboard](s.Context)
	case core.TypeCloudOffboard:
		ctx, err = decodeContext[CloudOffboard](s.Context)
	default:
		ctx, err = decodeContext[Content](s.Context)
	}
	if err != nil {
		return PendingAck{}, err
	}
	return PendingAck{
		MessageID:  s.MessageID,
		EndpointID: s.EndpointID,
		Context:    ctx,
		CreatedAt:  s.CreatedAt,
	}, nil
}

func decodeContext[T Context](raw json.RawMessage) (Context, error) {
	var v T
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("unmarshal %T: %w", v, err)
		}
	}
	return v, nil
}
