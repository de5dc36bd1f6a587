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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/metrics"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

type activation struct {
	endpointID       string
	teamSetContextID string
}

type fakeFollowups struct {
	mu          sync.Mutex
	renewals    []string
	activations []activation
	renewErr    error
}

func (f *fakeFollowups) RenewSubscriptions(_ context.Context, endpointID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renewals = append(f.renewals, endpointID)
	return f.renewErr
}

func (f *fakeFollowups) ActivateDevice(_ context.Context, endpointID, teamSetContextID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activations = append(f.activations, activation{endpointID, teamSetContextID})
	return nil
}

type logged struct {
	endpointID string
	severity   core.Severity
	messages   []core.DetailMessage
}

type fakeMessageLog struct {
	mu      sync.Mutex
	entries []logged
}

func (f *fakeMessageLog) Record(_ context.Context, endpointID string, severity core.Severity, messages []core.DetailMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, logged{endpointID, severity, messages})
	return nil
}

type resolverFixture struct {
	store     *MemoryStore
	followups *fakeFollowups
	log       *fakeMessageLog
	metrics   *metrics.Metrics
	resolver  *Resolver
}

func newResolverFixture() *resolverFixture {
	f := &resolverFixture{
		store:     NewMemoryStore(),
		followups: &fakeFollowups{},
		log:       &fakeMessageLog{},
		metrics:   metrics.NewNop(),
	}
	f.resolver = NewResolver(f.store, f.followups, f.log, f.metrics, testLogger())
	return f
}

func (f *resolverFixture) register(t *testing.T, id string, c Context) {
	t.Helper()
	if err := f.store.Register(context.Background(), PendingAck{
		MessageID:  id,
		EndpointID: "ep-1",
		Context:    c,
		CreatedAt:  time.Now(),
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
}

func TestCapabilitiesSuccessRenewsSubscriptionsOnce(t *testing.T) {
	f := newResolverFixture()
	ctx := context.Background()
	f.register(t, "cap-1", Capabilities{})

	if err := f.resolver.Resolve(ctx, "cap-1", Outcome{Kind: OutcomeSuccess}); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := f.resolver.Resolve(ctx, "cap-1", Outcome{Kind: OutcomeSuccess}); err != nil {
		t.Fatalf("second resolve must be a no-op, got %v", err)
	}

	if len(f.followups.renewals) != 1 || f.followups.renewals[0] != "ep-1" {
		t.Fatalf("expected one renewal for ep-1, got %v", f.followups.renewals)
	}
	if got := testutil.ToFloat64(f.metrics.CorrelationMisses); got != 1 {
		t.Fatalf("expected 1 correlation miss, got %v", got)
	}
}

func TestDeviceDescriptionSuccessActivates(t *testing.T) {
	f := newResolverFixture()
	f.register(t, "dd-1", DeviceDescription{TeamSetContextID: "ts-1"})

	if err := f.resolver.Resolve(context.Background(), "dd-1", Outcome{Kind: OutcomeSuccess}); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(f.followups.activations) != 1 || f.followups.activations[0] != (activation{"ep-1", "ts-1"}) {
		t.Fatalf("unexpected activations %v", f.followups.activations)
	}
}

func TestDeviceDescriptionFailure(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		activate bool
	}{
		{"no recipients still activates", core.NoRecipientsCode, true},
		{"other code does not activate", "VAL_000006", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newResolverFixture()
			f.register(t, "dd-1", DeviceDescription{TeamSetContextID: "ts-1"})

			err := f.resolver.Resolve(context.Background(), "dd-1", Outcome{
				Kind:         OutcomeFailure,
				ResponseCode: 400,
				Messages:     []core.DetailMessage{{MessageCode: tt.code, Message: "rejected"}},
			})
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if got := len(f.followups.activations) == 1; got != tt.activate {
				t.Fatalf("activation issued = %v, want %v", got, tt.activate)
			}
			if len(f.log.entries) != 1 || f.log.entries[0].severity != core.SeverityError {
				t.Fatalf("expected one error entry, got %+v", f.log.entries)
			}
		})
	}
}

func TestSuccessWithMessagesSeverity(t *testing.T) {
	tests := []struct {
		code int
		want core.Severity
	}{
		{201, core.SeverityInfo},
		{400, core.SeverityWarning},
		{500, core.SeverityWarning},
	}
	for _, tt := range tests {
		f := newResolverFixture()
		f.register(t, "cap-1", Capabilities{})

		err := f.resolver.Resolve(context.Background(), "cap-1", Outcome{
			Kind:         OutcomeSuccessWithMessages,
			ResponseCode: tt.code,
			Messages:     []core.DetailMessage{{MessageCode: "INFO_1", Message: "note"}},
		})
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if len(f.log.entries) != 1 || f.log.entries[0].severity != tt.want {
			t.Fatalf("code %d: expected %s, got %+v", tt.code, tt.want, f.log.entries)
		}
		if len(f.followups.renewals) != 1 {
			t.Fatalf("code %d: expected capabilities follow-up", tt.code)
		}
	}
}

func TestFailureDoesNotRenew(t *testing.T) {
	f := newResolverFixture()
	f.register(t, "cap-1", Capabilities{})

	if err := f.resolver.Resolve(context.Background(), "cap-1", Outcome{Kind: OutcomeFailure}); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(f.followups.renewals) != 0 {
		t.Fatal("failed capabilities must not renew subscriptions")
	}
}

func TestEntryRemovedWhenFollowupFails(t *testing.T) {
	f := newResolverFixture()
	f.followups.renewErr = errors.New("endpoint gone")
	f.register(t, "cap-1", Capabilities{})

	if err := f.resolver.Resolve(context.Background(), "cap-1", Outcome{Kind: OutcomeSuccess}); err == nil {
		t.Fatal("expected follow-up error")
	}
	if n, _ := f.store.Count(context.Background()); n != 0 {
		t.Fatalf("entry must be removed, %d left", n)
	}
}

func TestOutcomeFor(t *testing.T) {
	tests := []struct {
		env  core.Envelope
		want OutcomeKind
	}{
		{core.Envelope{Type: core.ResponseAck, ResponseCode: 201}, OutcomeSuccess},
		{core.Envelope{Type: core.ResponseAckWithMessages, ResponseCode: 400}, OutcomeSuccessWithMessages},
		{core.Envelope{Type: core.ResponseAckWithFailure, ResponseCode: 400}, OutcomeFailure},
		{core.Envelope{Type: core.ResponseAckForFeedMessage, ResponseCode: 200}, OutcomeSuccess},
		{core.Envelope{Type: core.ResponseCloudRegistrations, ResponseCode: 400}, OutcomeFailure},
		{core.Envelope{Type: "SOMETHING_NEW", ResponseCode: 200}, OutcomeSuccess},
	}
	for _, tt := range tests {
		if got := OutcomeFor(tt.env, nil).Kind; got != tt.want {
			t.Errorf("OutcomeFor(%s, %d) = %s, want %s", tt.env.Type, tt.env.ResponseCode, got, tt.want)
		}
	}
}

func TestResolverExpire(t *testing.T) {
	f := newResolverFixture()
	ctx := context.Background()
	old := PendingAck{MessageID: "old", EndpointID: "ep-1", Context: Capabilities{}, CreatedAt: time.Now().Add(-48 * time.Hour)}
	if err := f.store.Register(ctx, old); err != nil {
		t.Fatalf("register: %v", err)
	}
	f.register(t, "fresh", Capabilities{})

	n, err := f.resolver.Expire(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired, got %d", n)
	}
	if got := testutil.ToFloat64(f.metrics.ExpiredAcks); got != 1 {
		t.Fatalf("expected expired counter 1, got %v", got)
	}
	if err := f.resolver.Resolve(ctx, "old", Outcome{Kind: OutcomeSuccess}); err != nil {
		t.Fatalf("late ack must be a no-op, got %v", err)
	}
	if len(f.followups.renewals) != 0 {
		t.Fatal("expired entry must not trigger follow-ups")
	}
}
