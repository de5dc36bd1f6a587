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
	"context"
	"fmt"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/ack"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

// Followups turns acknowledgement outcomes into new requests.
type Followups struct {
	sender    *Sender
	directory core.EndpointDirectory
	activator core.DeviceActivator
}

var _ ack.Followups = (*Followups)(nil)

func NewFollowups(sender *Sender, directory core.EndpointDirectory, activator core.DeviceActivator) *Followups {
	return &Followups{sender: sender, directory: directory, activator: activator}
}

// RenewSubscriptions sends the endpoint's receive capabilities as its
// subscription list.
func (f *Followups) RenewSubscriptions(ctx context.Context, endpointID string) error {
	ep, err := f.directory.FindByID(ctx, endpointID)
	if err != nil {
		return fmt.Errorf("renew subscriptions: %w", err)
	}
	_, err = f.sender.SetSubscriptions(ctx, ep, ep.Subscriptions())
	return err
}

func (f *Followups) ActivateDevice(ctx context.Context, endpointID, teamSetContextID string) error {
	if err := f.activator.Activate(ctx, endpointID, teamSetContextID); err != nil {
		return fmt.Errorf("activate device %s for %s: %w", teamSetContextID, endpointID, err)
	}
	return nil
}
