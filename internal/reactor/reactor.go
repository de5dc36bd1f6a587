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

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/connection"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

// Requests are the outbound requests reactors issue. The sender registers
// a pending acknowledgement for each of them.
type Requests interface {
	SendCapabilities(ctx context.Context, ep core.Endpoint) (string, error)
	QueryMessages(ctx context.Context, ep core.Endpoint, window core.TimeWindow) (string, error)
	ConfirmMessages(ctx context.Context, ep core.Endpoint, ids []string) (string, error)
	DeleteMessages(ctx context.Context, ep core.Endpoint, ids []string) (string, error)
	OffboardCloudEndpoints(ctx context.Context, ep core.Endpoint, agrirouterIDs []string) (string, error)
}

// Connections gives access to the cached connection of a client id.
type Connections interface {
	Lookup(clientID string) (*connection.Record, bool)
}

// resolveEndpoint returns the endpoint a frame arrived for. When the
// directory no longer knows it but its connection is still cached, a
// stand-in carrying only the id and connection is returned with known set
// to false so the caller can still clean up on the platform.
func resolveEndpoint(ctx context.Context, directory core.EndpointDirectory, conns Connections, frame core.Frame) (ep core.Endpoint, known bool, err error) {
	ep, err = directory.FindByID(ctx, frame.EndpointID)
	if err == nil {
		return ep, true, nil
	}
	if !errors.Is(err, core.ErrEndpointNotFound) {
		return core.Endpoint{}, false, err
	}
	rec, ok := conns.Lookup(frame.ClientID)
	if !ok {
		return core.Endpoint{}, false, fmt.Errorf("%w: endpoint_id=%s client_id=%s", core.ErrEndpointNotFound, frame.EndpointID, frame.ClientID)
	}
	return core.Endpoint{ID: frame.EndpointID, Connection: rec.Descriptor()}, false, nil
}

func messageIDs(items []core.FeedItem) []string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.Header.MessageID)
	}
	return ids
}
