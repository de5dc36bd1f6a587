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

// Package codec implements the platform's envelope format as JSON.
package codec

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

type wireEnvelope struct {
	Type                 core.ResponseType `json:"type"`
	ResponseCode         int               `json:"responseCode"`
	MessageID            string            `json:"messageId"`
	ApplicationMessageID string            `json:"applicationMessageId"`
	Timestamp            time.Time         `json:"timestamp"`
	Body                 json.RawMessage   `json:"body,omitempty"`
}

type wireHeader struct {
	ApplicationMessageID string                    `json:"applicationMessageId"`
	TechnicalMessageType core.TechnicalMessageType `json:"technicalMessageType"`
	SenderID             string                    `json:"senderId,omitempty"`
	Recipients           []string                  `json:"recipients,omitempty"`
	TeamSetContextID     string                    `json:"teamSetContextId,omitempty"`
	Timestamp            time.Time                 `json:"timestamp"`
}

type wireRequest struct {
	Header  wireHeader `json:"header"`
	Payload any        `json:"payload,omitempty"`
}

type wireMessages struct {
	Messages []core.DetailMessage `json:"messages"`
}

type JSON struct{}

func NewJSON() *JSON {
	return &JSON{}
}

func (JSON) DecodeEnvelope(payload []byte) (core.Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(payload, &w); err != nil {
		return core.Envelope{}, fmt.Errorf("%w: envelope: %v", core.ErrDecode, err)
	}
	if w.Type == "" {
		return core.Envelope{}, fmt.Errorf("%w: envelope without type", core.ErrDecode)
	}
	return core.Envelope{
		Type:                 w.Type,
		ResponseCode:         w.ResponseCode,
		MessageID:            w.MessageID,
		ApplicationMessageID: w.ApplicationMessageID,
		Timestamp:            w.Timestamp,
		Body:                 w.Body,
	}, nil
}

func (JSON) DecodeMessages(env core.Envelope) ([]core.DetailMessage, error) {
	if len(env.Body) == 0 {
		return nil, nil
	}
	var w wireMessages
	if err := decodeBody(env, &w); err != nil {
		return nil, err
	}
	return w.Messages, nil
}

func (JSON) DecodePushNotification(env core.Envelope) (core.PushNotification, error) {
	var p core.PushNotification
	return p, decodeBody(env, &p)
}

func (JSON) DecodeQueryResult(env core.Envelope) (core.QueryResult, error) {
	var q core.QueryResult
	return q, decodeBody(env, &q)
}

func (JSON) DecodeHeaderQueryResult(env core.Envelope) (core.HeaderQueryResult, error) {
	var h core.HeaderQueryResult
	return h, decodeBody(env, &h)
}

func (JSON) DecodeCloudRegistrations(env core.Envelope) (core.CloudRegistrations, error) {
	var c core.CloudRegistrations
	return c, decodeBody(env, &c)
}

func (JSON) DecodeEndpointsListing(env core.Envelope) (core.EndpointsListing, error) {
	var l core.EndpointsListing
	return l, decodeBody(env, &l)
}

func (JSON) EncodeRequest(req core.Request) ([]byte, error) {
	if req.MessageID == "" {
		return nil, fmt.Errorf("%w: request without message id", core.ErrUnsupportedRequest)
	}
	data, err := json.Marshal(wireRequest{
		Header: wireHeader{
			ApplicationMessageID: req.MessageID,
			TechnicalMessageType: req.Type,
			SenderID:             req.SenderID,
			Recipients:           req.Recipients,
			TeamSetContextID:     req.TeamSetContextID,
			Timestamp:            req.Timestamp,
		},
		Payload: req.Body,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request %s: %w", req.Type, err)
	}
	return data, nil
}

// EncodeEnvelope renders an inbound envelope. Used by tests and tooling
// that replay frames.
func EncodeEnvelope(env core.Envelope, body any) ([]byte, error) {
	w := wireEnvelope{
		Type:                 env.Type,
		ResponseCode:         env.ResponseCode,
		MessageID:            env.MessageID,
		ApplicationMessageID: env.ApplicationMessageID,
		Timestamp:            env.Timestamp,
	}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		w.Body = raw
	}
	return json.Marshal(w)
}

func decodeBody(env core.Envelope, v any) error {
	if len(env.Body) == 0 {
		return fmt.Errorf("%w: %s without body", core.ErrDecode, env.Type)
	}
	if err := json.Unmarshal(env.Body, v); err != nil {
		return fmt.Errorf("%w: %s body: %v", core.ErrDecode, env.Type, err)
	}
	return nil
}
