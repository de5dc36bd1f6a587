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
	"fmt"
	"log/slog"
	"sync"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/config"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

// MemorySink keeps the most recently saved messages in process. Older
// messages are dropped once capacity is reached.
type MemorySink struct {
	mu       sync.RWMutex
	messages *ring[core.ContentMessage]
}

func NewMemorySink(capacity int) *MemorySink {
	return &MemorySink{messages: newRing[core.ContentMessage](capacity)}
}

func (m *MemorySink) Save(_ context.Context, msg core.ContentMessage) error {
	m.mu.Lock()
	m.messages.push(msg)
	m.mu.Unlock()
	return nil
}

// Messages returns the kept messages, oldest first.
func (m *MemorySink) Messages() []core.ContentMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []core.ContentMessage
	m.messages.each(func(msg core.ContentMessage) {
		out = append(out, msg)
	})
	return out
}

// Search returns the metadata saved for endpointID with chunk parts
// collapsed to one entry per chunk context.
func (m *MemorySink) Search(endpointID string) []core.ContentMessageMetadata {
	m.mu.RLock()
	var records []core.ContentMessageMetadata
	m.messages.each(func(msg core.ContentMessage) {
		if msg.EndpointID == endpointID {
			records = append(records, msg.Metadata)
		}
	})
	m.mu.RUnlock()
	return Flatten(records)
}

// NewSink creates the sink selected by cfg.Sink.
func NewSink(cfg config.ContentConfig, logger *slog.Logger) (core.ContentSink, error) {
	switch cfg.Sink {
	case "kafka":
		return NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger), nil
	case "memory", "":
		return NewMemorySink(cfg.Capacity), nil
	default:
		return nil, fmt.Errorf("%w: content.sink=%s", core.ErrUnknownStore, cfg.Sink)
	}
}
