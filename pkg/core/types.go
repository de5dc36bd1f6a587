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
	"fmt"
	"time"
)

// TechnicalMessageType tags the business payload of a message.
type TechnicalMessageType string

const (
	TypeCapabilities      TechnicalMessageType = "dke:capabilities"
	TypeSubscription      TechnicalMessageType = "dke:subscription"
	TypeFeedMessageQuery  TechnicalMessageType = "dke:feed_message_query"
	TypeFeedHeaderQuery   TechnicalMessageType = "dke:feed_header_query"
	TypeFeedConfirm       TechnicalMessageType = "dke:feed_confirm"
	TypeFeedDelete        TechnicalMessageType = "dke:feed_delete"
	TypeListEndpoints     TechnicalMessageType = "dke:list_endpoints"
	TypeCloudOnboard      TechnicalMessageType = "dke:cloud_onboard_endpoints"
	TypeCloudOffboard     TechnicalMessageType = "dke:cloud_offboard_endpoints"
	TypeDeviceDescription TechnicalMessageType = "iso:11783:-10:device_description:protobuf"
	TypeTimeLog           TechnicalMessageType = "iso:11783:-10:time_log:protobuf"
	TypeTaskDataZip       TechnicalMessageType = "iso:11783:-10:taskdata:zip"
	TypeCustomer          TechnicalMessageType = "dke:customer"
	TypeFarm              TechnicalMessageType = "dke:farm"
	TypeField             TechnicalMessageType = "dke:field"
)

// IsMasterData reports whether payloads of this type are handled by converters only.
func (t TechnicalMessageType) IsMasterData() bool {
	return t == TypeCustomer || t == TypeFarm || t == TypeField
}

// ResponseType is the envelope type of an inbound frame.
type ResponseType string

const (
	ResponseAck                  ResponseType = "ACK"
	ResponseAckWithMessages      ResponseType = "ACK_WITH_MESSAGES"
	ResponseAckWithFailure       ResponseType = "ACK_WITH_FAILURE"
	ResponseAckForFeedMessage    ResponseType = "ACK_FOR_FEED_MESSAGE"
	ResponseAckForFeedHeaderList ResponseType = "ACK_FOR_FEED_HEADER_LIST"
	ResponseCloudRegistrations   ResponseType = "CLOUD_REGISTRATIONS"
	ResponseEndpointsListing     ResponseType = "ENDPOINTS_LISTING"
	ResponsePushNotification     ResponseType = "PUSH_NOTIFICATION"
)

// NoRecipientsCode marks a message that was valid but had no subscriber.
const NoRecipientsCode = "VAL_000004"

type Direction string

const (
	DirectionSend        Direction = "SEND"
	DirectionReceive     Direction = "RECEIVE"
	DirectionSendReceive Direction = "SEND_RECEIVE"
)

type Capability struct {
	Type      TechnicalMessageType `yaml:"type" json:"type"`
	Direction Direction            `yaml:"direction" json:"direction"`
}

// Receives reports whether the capability subscribes to inbound messages.
func (c Capability) Receives() bool {
	return c.Direction == DirectionReceive || c.Direction == DirectionSendReceive
}

// ConnectionDescriptor is what an endpoint received during onboarding.
type ConnectionDescriptor struct {
	ClientID      string `yaml:"client_id" json:"client_id"`
	Host          string `yaml:"host" json:"host"`
	Port          int    `yaml:"port" json:"port"`
	CommandsTopic string `yaml:"commands_topic" json:"commands_topic"`
	MeasuresTopic string `yaml:"measures_topic" json:"measures_topic"`
	Certificate   string `yaml:"certificate" json:"-"`
	Secret        string `yaml:"secret" json:"-"`
}

type Endpoint struct {
	ID           string
	AgrirouterID string
	ExternalID   string
	Name         string
	ParentID     string
	Connection   ConnectionDescriptor
	Capabilities []Capability
	Deactivated  bool
}

// IsVirtual reports whether the endpoint was created through a cloud registration.
func (e Endpoint) IsVirtual() bool { return e.ParentID != "" }

// Subscriptions returns the message types the endpoint wants to receive.
func (e Endpoint) Subscriptions() []TechnicalMessageType {
	var out []TechnicalMessageType
	for _, c := range e.Capabilities {
		if c.Receives() {
			out = append(out, c.Type)
		}
	}
	return out
}

// Frame is a raw inbound message as delivered by the transport.
type Frame struct {
	ClientID   string
	EndpointID string
	Topic      string
	Payload    []byte
	ReceivedAt time.Time
}

// Envelope is the decoded header of a frame. Body stays encoded until a
// reactor asks the codec for its typed form.
type Envelope struct {
	Type                 ResponseType `json:"type"`
	ResponseCode         int          `json:"responseCode"`
	MessageID            string       `json:"messageId"`
	ApplicationMessageID string       `json:"applicationMessageId"`
	Timestamp            time.Time    `json:"timestamp"`
	Body                 []byte       `json:"-"`
}

type DetailMessage struct {
	MessageCode string            `json:"messageCode"`
	Message     string            `json:"message"`
	Args        map[string]string `json:"args,omitempty"`
}

type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// ContentMessageMetadata describes one inbound payload unit.
type ContentMessageMetadata struct {
	MessageID            string               `json:"messageId"`
	TechnicalMessageType TechnicalMessageType `json:"technicalMessageType"`
	SenderID             string               `json:"senderId"`
	ReceiverID           string               `json:"receiverId"`
	ChunkContextID       string               `json:"chunkContextId,omitempty"`
	CurrentChunk         int                  `json:"currentChunk,omitempty"`
	TotalChunks          int                  `json:"totalChunks,omitempty"`
	TotalSize            int64                `json:"totalSize,omitempty"`
	TeamSetContextID     string               `json:"teamSetContextId,omitempty"`
	PayloadSize          int64                `json:"payloadSize"`
	SequenceNumber       int64                `json:"sequenceNumber"`
	CreatedAt            time.Time            `json:"createdAt"`
}

// IsChunked reports whether the message is one part of a larger payload.
func (m ContentMessageMetadata) IsChunked() bool {
	return m.ChunkContextID != "" && m.TotalChunks > 1
}

// FeedItem is a single delivered message with its payload.
type FeedItem struct {
	Header  ContentMessageMetadata `json:"header"`
	Payload []byte                 `json:"payload"`
}

// ContentMessage is a payload ready to hand to content ingestion.
type ContentMessage struct {
	EndpointID string
	Metadata   ContentMessageMetadata
	Payload    []byte
}

type QueryMetrics struct {
	TotalMessagesInQuery int `json:"totalMessagesInQuery"`
	MaxCountRestriction  int `json:"maxCountRestriction"`
}

// HasMore reports whether the platform holds more messages than were returned.
func (q QueryMetrics) HasMore() bool {
	return q.MaxCountRestriction > 0 && q.TotalMessagesInQuery > q.MaxCountRestriction
}

type PushNotification struct {
	Messages []FeedItem `json:"messages"`
}

type QueryResult struct {
	Messages []FeedItem   `json:"messages"`
	Metrics  QueryMetrics `json:"queryMetrics"`
}

type HeaderQueryResult struct {
	Headers []ContentMessageMetadata `json:"headers"`
	Metrics QueryMetrics             `json:"queryMetrics"`
}

type RegisteredEndpoint struct {
	ExternalID   string `json:"externalId"`
	AgrirouterID string `json:"endpointId"`
}

type CloudRegistrations struct {
	Registered []RegisteredEndpoint `json:"onboardedEndpoints"`
	Failed     []DetailMessage      `json:"failedEndpoints,omitempty"`
}

type Recipient struct {
	EndpointID            string                 `json:"endpointId"`
	Name                  string                 `json:"name"`
	EndpointType          string                 `json:"endpointType"`
	ExternalID            string                 `json:"externalId,omitempty"`
	TechnicalMessageTypes []TechnicalMessageType `json:"technicalMessageTypes"`
}

type EndpointsListing struct {
	Endpoints []Recipient `json:"endpoints"`
}

type QueueStatus struct {
	MessagesWaiting int
	UpdatedAt       time.Time
}

type TimeWindow struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// VirtualEndpointRequest asks the platform to onboard a virtual endpoint.
type VirtualEndpointRequest struct {
	ExternalID string `json:"externalId"`
	Name       string `json:"name"`
}

// ConnectionError is one failed attempt to establish or keep a connection.
type ConnectionError struct {
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Validate checks the fields needed to open a connection.
func (d ConnectionDescriptor) Validate() error {
	switch {
	case d.ClientID == "":
		return fmt.Errorf("%w: missing client id", ErrInvalidDescriptor)
	case d.Host == "":
		return fmt.Errorf("%w: missing host for client_id=%s", ErrInvalidDescriptor, d.ClientID)
	case d.Port <= 0:
		return fmt.Errorf("%w: missing port for client_id=%s", ErrInvalidDescriptor, d.ClientID)
	case d.CommandsTopic == "":
		return fmt.Errorf("%w: missing commands topic for client_id=%s", ErrInvalidDescriptor, d.ClientID)
	}
	return nil
}
