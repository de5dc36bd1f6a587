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
	"log/slog"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/dispatch"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/outbound"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

// CloudReactor turns cloud registrations into virtual endpoints. A
// registration nobody is waiting for is undone on the platform.
type CloudReactor struct {
	codec       core.Codec
	directory   core.EndpointDirectory
	connections Connections
	onboardings *outbound.Onboardings
	requests    Requests
	logger      *slog.Logger
}

func NewCloudReactor(
	codec core.Codec,
	directory core.EndpointDirectory,
	conns Connections,
	onboardings *outbound.Onboardings,
	requests Requests,
	logger *slog.Logger,
) *CloudReactor {
	return &CloudReactor{
		codec:       codec,
		directory:   directory,
		connections: conns,
		onboardings: onboardings,
		requests:    requests,
		logger:      logger.With("component", "cloud_reactor"),
	}
}

func (r *CloudReactor) Kind() dispatch.Kind {
	return dispatch.KindCloudRegistration
}

func (r *CloudReactor) Handle(ctx context.Context, ev dispatch.Event) error {
	regs, err := r.codec.DecodeCloudRegistrations(ev.Envelope)
	if err != nil {
		r.logger.Warn("cloud registrations dropped", "client_id", ev.Frame.ClientID, "error", err)
		return nil
	}
	for _, f := range regs.Failed {
		r.logger.Warn("cloud registration failed",
			"correlation_id", ev.Envelope.ApplicationMessageID,
			"message_code", f.MessageCode,
			"message", f.Message,
		)
	}
	if len(regs.Registered) == 0 {
		return nil
	}

	ob, ok := r.onboardings.Take(ev.Envelope.ApplicationMessageID)
	if !ok {
		return r.offboard(ctx, ev.Frame, regs.Registered)
	}

	parent, err := r.directory.FindByID(ctx, ob.ParentID)
	if err != nil {
		r.logger.Warn("parent endpoint gone, offboarding registrations", "endpoint_id", ob.ParentID, "error", err)
		return r.offboard(ctx, ev.Frame, regs.Registered)
	}

	var errs []error
	for _, reg := range regs.Registered {
		virtual, err := r.directory.CreateVirtual(ctx, parent, reg)
		if err != nil {
			errs = append(errs, fmt.Errorf("create virtual endpoint %s: %w", reg.ExternalID, err))
			continue
		}
		r.logger.Info("virtual endpoint created",
			"endpoint_id", virtual.ID,
			"parent_id", parent.ID,
			"agrirouter_id", reg.AgrirouterID,
		)
		if _, err := r.requests.SendCapabilities(ctx, virtual); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *CloudReactor) offboard(ctx context.Context, frame core.Frame, registered []core.RegisteredEndpoint) error {
	ep, _, err := resolveEndpoint(ctx, r.directory, r.connections, frame)
	if err != nil {
		return fmt.Errorf("offboard unwanted registrations: %w", err)
	}
	ids := make([]string, 0, len(registered))
	for _, reg := range registered {
		ids = append(ids, reg.AgrirouterID)
	}
	r.logger.Warn("registration without onboarding state, offboarding",
		"endpoint_id", ep.ID,
		"agrirouter_ids", ids,
	)
	_, err = r.requests.OffboardCloudEndpoints(ctx, ep, ids)
	return err
}
