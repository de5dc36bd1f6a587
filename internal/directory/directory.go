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

// Package directory holds the endpoints known to this process together
// with the state reactors attach to them.
package directory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

type entry struct {
	endpoint   core.Endpoint
	status     core.QueueStatus
	recipients []core.Recipient
}

// Directory is an in-memory core.EndpointDirectory seeded from the
// configured endpoints. Virtual endpoints created by cloud registrations
// live next to them.
type Directory struct {
	mu      sync.RWMutex
	entries map[string]*entry
	newID   func() string
	logger  *slog.Logger
}

var _ core.EndpointDirectory = (*Directory)(nil)

func New(endpoints []core.Endpoint, logger *slog.Logger) *Directory {
	d := &Directory{
		entries: make(map[string]*entry, len(endpoints)),
		newID:   uuid.NewString,
		logger:  logger.With("component", "directory"),
	}
	for _, ep := range endpoints {
		d.entries[ep.ID] = &entry{endpoint: ep}
	}
	return d
}

func (d *Directory) FindByID(_ context.Context, id string) (core.Endpoint, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entries[id]
	if !ok {
		return core.Endpoint{}, fmt.Errorf("%w: endpoint_id=%s", core.ErrEndpointNotFound, id)
	}
	return e.endpoint, nil
}

// FindByAgrirouterID looks an endpoint up by its platform id.
func (d *Directory) FindByAgrirouterID(_ context.Context, agrirouterID string) (core.Endpoint, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, e := range d.entries {
		if e.endpoint.AgrirouterID == agrirouterID {
			return e.endpoint, nil
		}
	}
	return core.Endpoint{}, fmt.Errorf("%w: agrirouter_id=%s", core.ErrEndpointNotFound, agrirouterID)
}

// List returns all endpoints ordered by id.
func (d *Directory) List(_ context.Context) ([]core.Endpoint, error) {
	d.mu.RLock()
	out := make([]core.Endpoint, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, e.endpoint)
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateVirtual adds the endpoint registered for parent. Registering the
// same platform id twice returns the existing endpoint.
func (d *Directory) CreateVirtual(_ context.Context, parent core.Endpoint, reg core.RegisteredEndpoint) (core.Endpoint, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.entries {
		if e.endpoint.ParentID == parent.ID && e.endpoint.AgrirouterID == reg.AgrirouterID {
			return e.endpoint, nil
		}
	}

	ep := core.Endpoint{
		ID:           d.newID(),
		AgrirouterID: reg.AgrirouterID,
		ExternalID:   reg.ExternalID,
		Name:         reg.ExternalID,
		ParentID:     parent.ID,
		Capabilities: parent.Capabilities,
	}
	d.entries[ep.ID] = &entry{endpoint: ep}
	d.logger.Info("virtual endpoint added", "endpoint_id", ep.ID, "parent_id", parent.ID, "agrirouter_id", reg.AgrirouterID)
	return ep, nil
}

func (d *Directory) UpdateQueueStatus(_ context.Context, endpointID string, status core.QueueStatus) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[endpointID]
	if !ok {
		return fmt.Errorf("%w: endpoint_id=%s", core.ErrEndpointNotFound, endpointID)
	}
	e.status = status
	return nil
}

func (d *Directory) UpdateRecipients(_ context.Context, endpointID string, recipients []core.Recipient) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[endpointID]
	if !ok {
		return fmt.Errorf("%w: endpoint_id=%s", core.ErrEndpointNotFound, endpointID)
	}
	e.recipients = append([]core.Recipient(nil), recipients...)
	return nil
}

func (d *Directory) QueueStatus(endpointID string) (core.QueueStatus, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entries[endpointID]
	if !ok {
		return core.QueueStatus{}, false
	}
	return e.status, true
}

func (d *Directory) Recipients(endpointID string) []core.Recipient {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entries[endpointID]
	if !ok {
		return nil
	}
	return append([]core.Recipient(nil), e.recipients...)
}

// Sync applies a reloaded endpoint list. Configured endpoints that are new
// are added, known ones get the new definition and keep their state.
// Virtual endpoints are never touched. It returns the added endpoints.
func (d *Directory) Sync(endpoints []core.Endpoint) []core.Endpoint {
	d.mu.Lock()
	defer d.mu.Unlock()
	var added []core.Endpoint
	for _, ep := range endpoints {
		if e, ok := d.entries[ep.ID]; ok {
			e.endpoint = ep
			continue
		}
		d.entries[ep.ID] = &entry{endpoint: ep}
		added = append(added, ep)
	}
	if len(added) > 0 {
		d.logger.Info("endpoints added from configuration", "count", len(added))
	}
	return added
}

// Remove deletes an endpoint and the virtual endpoints registered for it.
// It returns the removed endpoints.
func (d *Directory) Remove(id string) []core.Endpoint {
	d.mu.Lock()
	defer d.mu.Unlock()
	var removed []core.Endpoint
	for key, e := range d.entries {
		if key == id || e.endpoint.ParentID == id {
			removed = append(removed, e.endpoint)
			delete(d.entries, key)
		}
	}
	return removed
}
