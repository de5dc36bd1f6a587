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

package content

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes each payload to a topic keyed by message id, with the
// metadata as JSON in a header.
type KafkaSink struct {
	writer messageWriter
	logger *slog.Logger
}

func NewKafkaSink(brokers []string, topic string, logger *slog.Logger) *KafkaSink {
	logger.Info("kafka content sink configured",
		"brokers", strings.Join(brokers, ","),
		"topic", topic,
	)
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		logger: logger,
	}
}

func (k *KafkaSink) Save(ctx context.Context, msg core.ContentMessage) error {
	meta, err := json.Marshal(msg.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata %s: %w", msg.Metadata.MessageID, err)
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.Metadata.MessageID),
		Value: msg.Payload,
		Time:  msg.Metadata.CreatedAt,
		Headers: []kafka.Header{
			{Key: "endpoint_id", Value: []byte(msg.EndpointID)},
			{Key: "technical_message_type", Value: []byte(msg.Metadata.TechnicalMessageType)},
			{Key: "metadata", Value: meta},
		},
	})
	if err != nil {
		return fmt.Errorf("write content %s: %w", msg.Metadata.MessageID, err)
	}
	return nil
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
