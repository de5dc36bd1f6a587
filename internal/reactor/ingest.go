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

package reactor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/content"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

// Ingestor is the content path shared by push and query results. Master
// data goes to its converter only. Everything else is reassembled when
// chunked, saved to the sink and converted when a converter exists for
// its type.
type Ingestor struct {
	sink       core.ContentSink
	converters map[core.TechnicalMessageType]core.Converter
	assembler  *content.Assembler
	logger     *slog.Logger
}

func NewIngestor(sink core.ContentSink, converters map[core.TechnicalMessageType]core.Converter, assembler *content.Assembler, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		sink:       sink,
		converters: converters,
		assembler:  assembler,
		logger:     logger.With("component", "ingestor"),
	}
}

// Ingest processes items for endpointID and returns the ids of the items
// that were handled. A failed item is left out so the platform delivers
// it again. A chunk part counts as handled only once its whole message
// was saved, then every part of it is returned.
func (i *Ingestor) Ingest(ctx context.Context, endpointID string, items []core.FeedItem) ([]string, error) {
	handled := make([]string, 0, len(items))
	var errs []error
	for _, it := range items {
		msg := core.ContentMessage{EndpointID: endpointID, Metadata: it.Header, Payload: it.Payload}
		ids, err := i.ingest(ctx, msg)
		if err != nil {
			i.logger.Error("content not ingested",
				"endpoint_id", endpointID,
				"message_id", it.Header.MessageID,
				"type", it.Header.TechnicalMessageType,
				"error", err,
			)
			errs = append(errs, err)
			continue
		}
		handled = append(handled, ids...)
	}
	return handled, errors.Join(errs...)
}

func (i *Ingestor) ingest(ctx context.Context, msg core.ContentMessage) ([]string, error) {
	t := msg.Metadata.TechnicalMessageType
	if t.IsMasterData() {
		conv, ok := i.converters[t]
		if !ok {
			i.logger.Warn("no converter for master data, dropping", "type", t, "message_id", msg.Metadata.MessageID)
			return []string{msg.Metadata.MessageID}, nil
		}
		if err := conv.Convert(ctx, msg); err != nil {
			return nil, err
		}
		return []string{msg.Metadata.MessageID}, nil
	}

	full, ids, complete := i.assembler.Add(msg)
	if !complete {
		i.logger.Debug("chunk buffered",
			"chunk_context_id", msg.Metadata.ChunkContextID,
			"current_chunk", msg.Metadata.CurrentChunk,
			"total_chunks", msg.Metadata.TotalChunks,
		)
		return nil, nil
	}
	if err := i.sink.Save(ctx, full); err != nil {
		return nil, fmt.Errorf("save %s: %w", full.Metadata.MessageID, err)
	}
	if conv, ok := i.converters[t]; ok {
		if err := conv.Convert(ctx, full); err != nil {
			return nil, fmt.Errorf("convert %s: %w", full.Metadata.MessageID, err)
		}
	}
	return ids, nil
}
