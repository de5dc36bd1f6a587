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

package outbound

import (
	"sync"
	"time"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

// Onboarding is the state a cloud registration response needs: which
// endpoint asked and for what.
type Onboarding struct {
	ParentID  string
	Requests  []core.VirtualEndpointRequest
	CreatedAt time.Time
}

// Onboardings keeps onboarding state by outbound message id. It is
// process local, so a restart loses it.
type Onboardings struct {
	entries sync.Map
}

func NewOnboardings() *Onboardings {
	return &Onboardings{}
}

func (o *Onboardings) Put(messageID string, ob Onboarding) {
	o.entries.Store(messageID, ob)
}

func (o *Onboardings) Peek(messageID string) (Onboarding, bool) {
	val, ok := o.entries.Load(messageID)
	if !ok {
		return Onboarding{}, false
	}
	return val.(Onboarding), true
}

// Take removes and returns the state for messageID.
func (o *Onboardings) Take(messageID string) (Onboarding, bool) {
	val, ok := o.entries.LoadAndDelete(messageID)
	if !ok {
		return Onboarding{}, false
	}
	return val.(Onboarding), true
}

// Expire drops entries created before cutoff.
func (o *Onboardings) Expire(cutoff time.Time) int {
	n := 0
	o.entries.Range(func(key, val any) bool {
		if val.(Onboarding).CreatedAt.Before(cutoff) && o.entries.CompareAndDelete(key, val) {
			n++
		}
		return true
	})
	return n
}
