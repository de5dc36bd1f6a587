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

package core

import (
	"context"
	"time"
)

// Request is an outbound control or content message before encoding.
type Request struct {
	MessageID        string
	Type             TechnicalMessageType
	SenderID         string
	Recipients       []string
	TeamSetContextID string
	Timestamp        time.Time
	Body             any
}

type CapabilitiesBody struct {
	ApplicationID string       `json:"applicationId,omitempty"`
	Capabilities  []Capability `json:"capabilities"`
}

type SubscriptionBody struct {
	Types []TechnicalMessageType `json:"technicalMessageTypes"`
}

type QueryBody struct {
	Window TimeWindow `json:"validityPeriod"`
}

type MessageIDsBody struct {
	MessageIDs []string `json:"messageIds"`
}

type OnboardBody struct {
	Endpoints []VirtualEndpointRequest `json:"onboardingRequests"`
}

type OffboardBody struct {
	EndpointIDs []string `json:"endpoints"`
}

// OutboundContent is a business payload sent by an endpoint.
type OutboundContent struct {
	Type             TechnicalMessageType
	Recipients       []string
	TeamSetContextID string
	Payload          []byte
}

// Codec is the opaque decode/encode service for the platform's wire format.
type Codec interface {
	DecodeEnvelope(payload []byte) (Envelope, error)
	DecodeMessages(env Envelope) ([]DetailMessage, error)
	DecodePushNotification(env Envelope) (PushNotification, error)
	DecodeQueryResult(env Envelope) (QueryResult, error)
	DecodeHeaderQueryResult(env Envelope) (HeaderQueryResult, error)
	DecodeCloudRegistrations(env Envelope) (CloudRegistrations, error)
	DecodeEndpointsListing(env Envelope) (EndpointsListing, error)
	EncodeRequest(req Request) ([]byte, error)
}

// Connector issues outbound protocol requests. Every method returns the
// message id under which the platform will acknowledge the request.
type Connector interface {
	SendCapabilities(ctx context.Context, ep Endpoint) (string, error)
	SetSubscriptions(ctx context.Context, ep Endpoint, types []TechnicalMessageType) (string, error)
	QueryMessages(ctx context.Context, ep Endpoint, window TimeWindow) (string, error)
	QueryHeaders(ctx context.Context, ep Endpoint, window TimeWindow) (string, error)
	ConfirmMessages(ctx context.Context, ep Endpoint, ids []string) (string, error)
	DeleteMessages(ctx context.Context, ep Endpoint, ids []string) (string, error)
	ListEndpoints(ctx context.Context, ep Endpoint) (string, error)
	OnboardCloudEndpoints(ctx context.Context, ep Endpoint, reqs []VirtualEndpointRequest) (string, error)
	OffboardCloudEndpoints(ctx context.Context, ep Endpoint, agrirouterIDs []string) (string, error)
	SendContent(ctx context.Context, ep Endpoint, content OutboundContent) (string, error)
}

// FrameHandler receives raw frames on the transport's delivery goroutine.
type FrameHandler func(frame Frame)

// Transport is a live broker connection for one client id.
type Transport interface {
	IsConnected() bool
	Subscribe(ctx context.Context, topic string, handler FrameHandler) error
	Publish(ctx context.Context, topic string, payload []byte) error
	Disconnect()
}

// Dialer opens transports. onLost is called when an established
// connection drops.
type Dialer interface {
	Dial(ctx context.Context, desc ConnectionDescriptor, onLost func(error)) (Transport, error)
}

// EndpointDirectory is the endpoint lookup service.
type EndpointDirectory interface {
	FindByID(ctx context.Context, id string) (Endpoint, error)
	List(ctx context.Context) ([]Endpoint, error)
	CreateVirtual(ctx context.Context, parent Endpoint, reg RegisteredEndpoint) (Endpoint, error)
	UpdateQueueStatus(ctx context.Context, endpointID string, status QueueStatus) error
	UpdateRecipients(ctx context.Context, endpointID string, recipients []Recipient) error
}

// ContentSink persists decoded payloads.
type ContentSink interface {
	Save(ctx context.Context, msg ContentMessage) error
}

// Converter turns a payload of one technical message type into domain data.
type Converter interface {
	Convert(ctx context.Context, msg ContentMessage) error
}

type DeviceActivator interface {
	Activate(ctx context.Context, endpointID, teamSetContextID string) error
}

// MessageLog persists detail messages attached to acknowledgements.
type MessageLog interface {
	Record(ctx context.Context, endpointID string, severity Severity, messages []DetailMessage) error
}

// UnknownMessageStore keeps frames nobody could route.
type UnknownMessageStore interface {
	Save(ctx context.Context, frame Frame) error
	Close() error
}
