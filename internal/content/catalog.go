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

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

// Catalog records the metadata of converted payloads per endpoint and
// technical message type. It is the converter used when no domain store
// is attached and keeps only the most recent conversions.
type Catalog struct {
	mu      sync.RWMutex
	entries *ring[catalogEntry]
	logger  *slog.Logger
}

type catalogEntry struct {
	endpointID string
	meta       core.ContentMessageMetadata
}

func NewCatalog(capacity int, logger *slog.Logger) *Catalog {
	return &Catalog{
		entries: newRing[catalogEntry](capacity),
		logger:  logger,
	}
}

func (c *Catalog) Convert(_ context.Context, msg core.ContentMessage) error {
	if len(msg.Payload) == 0 {
		return fmt.Errorf("convert %s: empty payload", msg.Metadata.MessageID)
	}
	c.mu.Lock()
	c.entries.push(catalogEntry{endpointID: msg.EndpointID, meta: msg.Metadata})
	c.mu.Unlock()

	c.logger.Info("content converted",
		"endpoint_id", msg.EndpointID,
		"message_id", msg.Metadata.MessageID,
		"type", msg.Metadata.TechnicalMessageType,
		"team_set_context_id", msg.Metadata.TeamSetContextID,
	)
	return nil
}

func (c *Catalog) Entries(endpointID string, t core.TechnicalMessageType) []core.ContentMessageMetadata {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []core.ContentMessageMetadata
	c.entries.each(func(e catalogEntry) {
		if e.endpointID == endpointID && e.meta.TechnicalMessageType == t {
			out = append(out, e.meta)
		}
	})
	return out
}

// Converters maps every type that needs conversion to c.
func (c *Catalog) Converters() map[core.TechnicalMessageType]core.Converter {
	return map[core.TechnicalMessageType]core.Converter{
		core.TypeCustomer:          c,
		core.TypeFarm:              c,
		core.TypeField:             c,
		core.TypeDeviceDescription: c,
		core.TypeTimeLog:           c,
		core.TypeTaskDataZip:       c,
	}
}
