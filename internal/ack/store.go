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

package ack

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

// Store is the keyed registry of pending acknowledgements. Register and
// Take are atomic per message id.
type Store interface {
	// Register inserts p unless its message id is already present.
	Register(ctx context.Context, p PendingAck) error
	// Take removes and returns the entry for messageID.
	Take(ctx context.Context, messageID string) (PendingAck, bool, error)
	Peek(ctx context.Context, messageID string) (PendingAck, bool, error)
	// Expire removes every entry created before cutoff and returns them.
	Expire(ctx context.Context, cutoff time.Time) ([]PendingAck, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

type MemoryStore struct {
	mu      sync.Mutex
	pending map[string]PendingAck
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pending: make(map[string]PendingAck)}
}

func (s *MemoryStore) Register(_ context.Context, p PendingAck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pending[p.MessageID]; exists {
		return fmt.Errorf("%w: message_id=%s", core.ErrDuplicatePending, p.MessageID)
	}
	s.pending[p.MessageID] = p
	return nil
}

func (s *MemoryStore) Take(_ context.Context, messageID string) (PendingAck, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[messageID]
	if ok {
		delete(s.pending, messageID)
	}
	return p, ok, nil
}

func (s *MemoryStore) Peek(_ context.Context, messageID string) (PendingAck, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[messageID]
	return p, ok, nil
}

func (s *MemoryStore) Expire(_ context.Context, cutoff time.Time) ([]PendingAck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []PendingAck
	for id, p := range s.pending {
		if p.CreatedAt.Before(cutoff) {
			expired = append(expired, p)
			delete(s.pending, id)
		}
	}
	return expired, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
