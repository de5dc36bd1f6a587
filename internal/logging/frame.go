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

package logging

import (
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

// FrameLogger logs every frame crossing the broker connection at debug level.
type FrameLogger struct {
	logger *slog.Logger
}

func NewFrameLogger(logger *slog.Logger) *FrameLogger {
	return &FrameLogger{logger: logger}
}

func (f *FrameLogger) Inbound(frame core.Frame, env core.Envelope) {
	f.logger.Debug("frame",
		"direction", "inbound",
		"client_id", frame.ClientID,
		"endpoint_id", frame.EndpointID,
		"topic", frame.Topic,
		"type", env.Type,
		"response_code", env.ResponseCode,
		"correlation_id", env.ApplicationMessageID,
		"size", humanize.Bytes(uint64(len(frame.Payload))),
		"received_at", frame.ReceivedAt,
	)
}

func (f *FrameLogger) Outbound(clientID, topic string, req core.Request, size int) {
	f.logger.Debug("frame",
		"direction", "outbound",
		"client_id", clientID,
		"topic", topic,
		"type", req.Type,
		"message_id", req.MessageID,
		"size", humanize.Bytes(uint64(size)),
		"sent_at", req.Timestamp.Format(time.RFC3339),
	)
}
