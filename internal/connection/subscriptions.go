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

package connection

import "sync"

type subscriptionKey struct {
	clientID string
	topic    string
}

// subscriptions is the set of (client, topic) pairs with a successful subscribe.
type subscriptions struct {
	mu   sync.RWMutex
	keys map[subscriptionKey]struct{}
}

func newSubscriptions() *subscriptions {
	return &subscriptions{keys: make(map[subscriptionKey]struct{})}
}

func (s *subscriptions) has(clientID, topic string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[subscriptionKey{clientID, topic}]
	return ok
}

func (s *subscriptions) add(clientID, topic string) {
	s.mu.Lock()
	s.keys[subscriptionKey{clientID, topic}] = struct{}{}
	s.mu.Unlock()
}

// reset forgets every topic of clientID.
func (s *subscriptions) reset(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.keys {
		if k.clientID == clientID {
			delete(s.keys, k)
		}
	}
}

func (s *subscriptions) topics(clientID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for k := range s.keys {
		if k.clientID == clientID {
			out = append(out, k.topic)
		}
	}
	return out
}
