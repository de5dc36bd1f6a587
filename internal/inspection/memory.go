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

// Package inspection keeps frames that no reactor could interpret so an
// operator can look at them later.
package inspection

import (
	"context"
	"sync"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

const defaultMemoryCapacity = 1000

// MemoryStore keeps the most recent frames in a ring.
type MemoryStore struct {
	mu       sync.Mutex
	frames   []core.Frame
	next     int
	full     bool
	capacity int
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &MemoryStore{frames: make([]core.Frame, capacity), capacity: capacity}
}

func (m *MemoryStore) Save(_ context.Context, frame core.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames[m.next] = frame
	m.next = (m.next + 1) % m.capacity
	if m.next == 0 {
		m.full = true
	}
	return nil
}

// List returns up to limit frames, oldest first. A limit of zero or less
// returns all of them.
func (m *MemoryStore) List(_ context.Context, limit int) ([]core.Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ordered []core.Frame
	if m.full {
		ordered = append(ordered, m.frames[m.next:]...)
	}
	ordered = append(ordered, m.frames[:m.next]...)
	if limit > 0 && len(ordered) > limit {
		ordered = ordered[:limit]
	}
	return ordered, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
