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

package directory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

// Activations records which team set contexts have an accepted device
// description and may send telemetry.
type Activations struct {
	mu     sync.RWMutex
	active map[string]map[string]struct{}
	logger *slog.Logger
}

var _ core.DeviceActivator = (*Activations)(nil)

func NewActivations(logger *slog.Logger) *Activations {
	return &Activations{
		active: make(map[string]map[string]struct{}),
		logger: logger.With("component", "activations"),
	}
}

func (a *Activations) Activate(_ context.Context, endpointID, teamSetContextID string) error {
	a.mu.Lock()
	set, ok := a.active[endpointID]
	if !ok {
		set = make(map[string]struct{})
		a.active[endpointID] = set
	}
	set[teamSetContextID] = struct{}{}
	a.mu.Unlock()
	a.logger.Info("device activated", "endpoint_id", endpointID, "team_set_context_id", teamSetContextID)
	return nil
}

func (a *Activations) IsActive(endpointID, teamSetContextID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.active[endpointID][teamSetContextID]
	return ok
}
