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

import (
	"sync"
	"time"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

const maxRecordedErrors = 10

// Record is the cached connection state of one client id.
type Record struct {
	ClientID   string
	EndpointID string

	mu         sync.Mutex
	descriptor core.ConnectionDescriptor
	transport  core.Transport
	errors     []core.ConnectionError
}

func newRecord(endpointID string, desc core.ConnectionDescriptor) *Record {
	return &Record{
		ClientID:   desc.ClientID,
		EndpointID: endpointID,
		descriptor: desc,
	}
}

// Transport returns the live handle, if one was established.
func (r *Record) Transport() (core.Transport, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transport, r.transport != nil
}

func (r *Record) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transport != nil && r.transport.IsConnected()
}

func (r *Record) Descriptor() core.ConnectionDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.descriptor
}

// Errors returns a copy of the recent connection errors, oldest first.
func (r *Record) Errors() []core.ConnectionError {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.ConnectionError, len(r.errors))
	copy(out, r.errors)
	return out
}

func (r *Record) recordError(err error, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appendErrorLocked(err, at)
}

func (r *Record) appendErrorLocked(err error, at time.Time) {
	r.errors = append(r.errors, core.ConnectionError{Message: err.Error(), OccurredAt: at})
	if len(r.errors) > maxRecordedErrors {
		r.errors = r.errors[len(r.errors)-maxRecordedErrors:]
	}
}

// Status is a point-in-time view of a record for health reporting.
type Status struct {
	ClientID   string                 `json:"client_id"`
	EndpointID string                 `json:"endpoint_id"`
	Connected  bool                   `json:"connected"`
	Errors     []core.ConnectionError `json:"errors,omitempty"`
}

func (r *Record) status() Status {
	return Status{
		ClientID:   r.ClientID,
		EndpointID: r.EndpointID,
		Connected:  r.Connected(),
		Errors:     r.Errors(),
	}
}
