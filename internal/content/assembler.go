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
	"sort"
	"sync"
	"time"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

type chunkGroup struct {
	total     int
	parts     map[int]core.ContentMessage
	firstSeen time.Time
}

// Assembler buffers chunk parts until every part of a chunk context has
// arrived.
type Assembler struct {
	mu      sync.Mutex
	groups  map[string]*chunkGroup
	timeout time.Duration
	now     func() time.Time
}

func NewAssembler(timeout time.Duration) *Assembler {
	return &Assembler{
		groups:  make(map[string]*chunkGroup),
		timeout: timeout,
		now:     time.Now,
	}
}

// Add returns the complete message once all parts are present, together
// with the message ids of its parts in chunk order. Messages that are not
// chunked are returned as they are. A part delivered twice replaces the
// earlier copy.
func (a *Assembler) Add(msg core.ContentMessage) (core.ContentMessage, []string, bool) {
	if !msg.Metadata.IsChunked() {
		return msg, []string{msg.Metadata.MessageID}, true
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	id := msg.Metadata.ChunkContextID
	g, ok := a.groups[id]
	if !ok {
		g = &chunkGroup{
			total:     msg.Metadata.TotalChunks,
			parts:     make(map[int]core.ContentMessage, msg.Metadata.TotalChunks),
			firstSeen: a.now(),
		}
		a.groups[id] = g
	}
	g.parts[msg.Metadata.CurrentChunk] = msg
	if len(g.parts) < g.total {
		return core.ContentMessage{}, nil, false
	}

	delete(a.groups, id)
	full, ids := join(g)
	return full, ids, true
}

// Pending reports how many chunk contexts are incomplete.
func (a *Assembler) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.groups)
}

// Sweep drops incomplete groups older than the timeout and returns their
// chunk context ids.
func (a *Assembler) Sweep() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	cutoff := a.now().Add(-a.timeout)
	var dropped []string
	for id, g := range a.groups {
		if g.firstSeen.Before(cutoff) {
			dropped = append(dropped, id)
			delete(a.groups, id)
		}
	}
	return dropped
}

func join(g *chunkGroup) (core.ContentMessage, []string) {
	indexes := make([]int, 0, len(g.parts))
	size := 0
	for i, p := range g.parts {
		indexes = append(indexes, i)
		size += len(p.Payload)
	}
	sort.Ints(indexes)

	first := g.parts[indexes[0]]
	payload := make([]byte, 0, size)
	ids := make([]string, 0, len(indexes))
	for _, i := range indexes {
		payload = append(payload, g.parts[i].Payload...)
		ids = append(ids, g.parts[i].Metadata.MessageID)
	}

	meta := first.Metadata
	meta.PayloadSize = int64(len(payload))
	meta.CurrentChunk = 0
	return core.ContentMessage{
		EndpointID: first.EndpointID,
		Metadata:   meta,
		Payload:    payload,
	}, ids
}
