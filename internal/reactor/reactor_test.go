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
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/ack"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/connection"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/content"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/dispatch"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/logging"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/metrics"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/outbound"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/codec"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type call struct {
	kind       core.TechnicalMessageType
	endpointID string
	ids        []string
	window     core.TimeWindow
}

type fakeRequests struct {
	mu    sync.Mutex
	calls []call
}

func (f *fakeRequests) record(c call) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return "out-" + string(c.kind), nil
}

func (f *fakeRequests) SendCapabilities(_ context.Context, ep core.Endpoint) (string, error) {
	return f.record(call{kind: core.TypeCapabilities, endpointID: ep.ID})
}

func (f *fakeRequests) QueryMessages(_ context.Context, ep core.Endpoint, window core.TimeWindow) (string, error) {
	return f.record(call{kind: core.TypeFeedMessageQuery, endpointID: ep.ID, window: window})
}

func (f *fakeRequests) ConfirmMessages(_ context.Context, ep core.Endpoint, ids []string) (string, error) {
	return f.record(call{kind: core.TypeFeedConfirm, endpointID: ep.ID, ids: ids})
}

func (f *fakeRequests) DeleteMessages(_ context.Context, ep core.Endpoint, ids []string) (string, error) {
	return f.record(call{kind: core.TypeFeedDelete, endpointID: ep.ID, ids: ids})
}

func (f *fakeRequests) OffboardCloudEndpoints(_ context.Context, ep core.Endpoint, ids []string) (string, error) {
	return f.record(call{kind: core.TypeCloudOffboard, endpointID: ep.ID, ids: ids})
}

func (f *fakeRequests) ofKind(kind core.TechnicalMessageType) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

type fakeDirectory struct {
	mu         sync.Mutex
	endpoints  map[string]core.Endpoint
	statuses   map[string]core.QueueStatus
	recipients map[string][]core.Recipient
}

func newFakeDirectory(eps ...core.Endpoint) *fakeDirectory {
	d := &fakeDirectory{
		endpoints:  make(map[string]core.Endpoint),
		statuses:   make(map[string]core.QueueStatus),
		recipients: make(map[string][]core.Recipient),
	}
	for _, ep := range eps {
		d.endpoints[ep.ID] = ep
	}
	return d
}

func (d *fakeDirectory) FindByID(_ context.Context, id string) (core.Endpoint, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ep, ok := d.endpoints[id]
	if !ok {
		return core.Endpoint{}, core.ErrEndpointNotFound
	}
	return ep, nil
}

func (d *fakeDirectory) List(context.Context) ([]core.Endpoint, error) {
	return nil, nil
}

func (d *fakeDirectory) CreateVirtual(_ context.Context, parent core.Endpoint, reg core.RegisteredEndpoint) (core.Endpoint, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ep := core.Endpoint{ID: "virtual-" + reg.ExternalID, AgrirouterID: reg.AgrirouterID, ExternalID: reg.ExternalID, ParentID: parent.ID}
	d.endpoints[ep.ID] = ep
	return ep, nil
}

func (d *fakeDirectory) UpdateQueueStatus(_ context.Context, id string, status core.QueueStatus) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.statuses[id] = status
	return nil
}

func (d *fakeDirectory) UpdateRecipients(_ context.Context, id string, recipients []core.Recipient) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recipients[id] = recipients
	return nil
}

func endpoint() core.Endpoint {
	return core.Endpoint{
		ID:           "ep-1",
		AgrirouterID: "ar-1",
		Connection: core.ConnectionDescriptor{
			ClientID:      "client-1",
			Host:          "broker.local",
			Port:          8883,
			CommandsTopic: "client-1/commands",
			MeasuresTopic: "client-1/measures",
		},
	}
}

func newConnections(eps ...core.Endpoint) *connection.Registry {
	reg := connection.NewRegistry(nil, func(core.Frame) {}, time.Second, metrics.NewNop(), testLogger())
	for _, ep := range eps {
		reg.Acquire(context.Background(), ep.ID, ep.Connection)
	}
	return reg
}

func event(t *testing.T, kind dispatch.Kind, typ core.ResponseType, correlationID string, body any) dispatch.Event {
	t.Helper()
	raw, err := codec.EncodeEnvelope(core.Envelope{Type: typ, MessageID: "in-1", ApplicationMessageID: correlationID}, body)
	require.NoError(t, err)
	env, err := codec.NewJSON().DecodeEnvelope(raw)
	require.NoError(t, err)
	return dispatch.Event{
		Kind:     kind,
		Frame:    core.Frame{ClientID: "client-1", EndpointID: "ep-1", Payload: raw},
		Envelope: env,
	}
}

func item(id string, t core.TechnicalMessageType) core.FeedItem {
	return core.FeedItem{
		Header:  core.ContentMessageMetadata{MessageID: id, TechnicalMessageType: t},
		Payload: []byte("payload-" + id),
	}
}

type ingestFixture struct {
	sink    *content.MemorySink
	catalog *content.Catalog
	ingest  *Ingestor
}

func newIngestFixture() *ingestFixture {
	sink := content.NewMemorySink(100)
	catalog := content.NewCatalog(100, testLogger())
	return &ingestFixture{
		sink:    sink,
		catalog: catalog,
		ingest:  NewIngestor(sink, catalog.Converters(), content.NewAssembler(time.Hour), testLogger()),
	}
}

func TestQueryResultContinuesOnce(t *testing.T) {
	ep := endpoint()
	requests := &fakeRequests{}
	f := newIngestFixture()
	r := NewQueryReactor(codec.NewJSON(), newFakeDirectory(ep), newConnections(ep), requests, f.ingest, 28*24*time.Hour, testLogger())
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	ev := event(t, dispatch.KindQueryResult, core.ResponseAckForFeedMessage, "q-1", core.QueryResult{
		Messages: []core.FeedItem{item("m-1", core.TypeTimeLog), item("m-2", core.TypeTaskDataZip)},
		Metrics:  core.QueryMetrics{TotalMessagesInQuery: 150, MaxCountRestriction: 100},
	})
	require.NoError(t, r.Handle(context.Background(), ev))

	queries := requests.ofKind(core.TypeFeedMessageQuery)
	require.Len(t, queries, 1)
	assert.Equal(t, core.TimeWindow{From: now.Add(-28 * 24 * time.Hour), To: now}, queries[0].window)

	confirms := requests.ofKind(core.TypeFeedConfirm)
	require.Len(t, confirms, 1)
	assert.Equal(t, []string{"m-1", "m-2"}, confirms[0].ids)
	assert.Len(t, f.sink.Messages(), 2)
}

func TestQueryResultLastPageDoesNotContinue(t *testing.T) {
	ep := endpoint()
	requests := &fakeRequests{}
	r := NewQueryReactor(codec.NewJSON(), newFakeDirectory(ep), newConnections(ep), requests, newIngestFixture().ingest, time.Hour, testLogger())

	ev := event(t, dispatch.KindQueryResult, core.ResponseAckForFeedMessage, "q-1", core.QueryResult{
		Messages: []core.FeedItem{item("m-1", core.TypeTimeLog)},
		Metrics:  core.QueryMetrics{TotalMessagesInQuery: 1, MaxCountRestriction: 100},
	})
	require.NoError(t, r.Handle(context.Background(), ev))
	assert.Empty(t, requests.ofKind(core.TypeFeedMessageQuery))
	assert.Len(t, requests.ofKind(core.TypeFeedConfirm), 1)
}

func TestQueryResultUnknownEndpointDeletes(t *testing.T) {
	ep := endpoint()
	requests := &fakeRequests{}
	f := newIngestFixture()
	r := NewQueryReactor(codec.NewJSON(), newFakeDirectory(), newConnections(ep), requests, f.ingest, time.Hour, testLogger())

	ev := event(t, dispatch.KindQueryResult, core.ResponseAckForFeedMessage, "q-1", core.QueryResult{
		Messages: []core.FeedItem{item("m-1", core.TypeTimeLog), item("m-2", core.TypeTimeLog)},
		Metrics:  core.QueryMetrics{TotalMessagesInQuery: 150, MaxCountRestriction: 100},
	})
	require.NoError(t, r.Handle(context.Background(), ev))

	deletes := requests.ofKind(core.TypeFeedDelete)
	require.Len(t, deletes, 1)
	assert.Equal(t, []string{"m-1", "m-2"}, deletes[0].ids)
	assert.Equal(t, "ep-1", deletes[0].endpointID)
	assert.Empty(t, requests.ofKind(core.TypeFeedConfirm))
	assert.Empty(t, requests.ofKind(core.TypeFeedMessageQuery))
	assert.Empty(t, f.sink.Messages())
}

func TestQueryResultWithoutConnectionFails(t *testing.T) {
	r := NewQueryReactor(codec.NewJSON(), newFakeDirectory(), newConnections(), &fakeRequests{}, newIngestFixture().ingest, time.Hour, testLogger())
	ev := event(t, dispatch.KindQueryResult, core.ResponseAckForFeedMessage, "q-1", core.QueryResult{})
	assert.ErrorIs(t, r.Handle(context.Background(), ev), core.ErrEndpointNotFound)
}

func TestPushClassifiesAndConfirmsInOneBatch(t *testing.T) {
	ep := endpoint()
	requests := &fakeRequests{}
	f := newIngestFixture()
	r := NewPushReactor(codec.NewJSON(), newFakeDirectory(ep), newConnections(ep), requests, f.ingest, testLogger())

	ev := event(t, dispatch.KindPushMessage, core.ResponsePushNotification, "", core.PushNotification{
		Messages: []core.FeedItem{
			item("farm-1", core.TypeFarm),
			item("dd-1", core.TypeDeviceDescription),
			item("img-1", "img:png"),
		},
	})
	require.NoError(t, r.Handle(context.Background(), ev))

	saved := f.sink.Messages()
	require.Len(t, saved, 2, "master data is not persisted raw")
	assert.Equal(t, "dd-1", saved[0].Metadata.MessageID)
	assert.Equal(t, "img-1", saved[1].Metadata.MessageID)

	assert.Len(t, f.catalog.Entries("ep-1", core.TypeFarm), 1)
	assert.Len(t, f.catalog.Entries("ep-1", core.TypeDeviceDescription), 1)
	assert.Empty(t, f.catalog.Entries("ep-1", "img:png"))

	confirms := requests.ofKind(core.TypeFeedConfirm)
	require.Len(t, confirms, 1)
	assert.Equal(t, []string{"farm-1", "dd-1", "img-1"}, confirms[0].ids)
}

func TestPushBuffersChunksUntilComplete(t *testing.T) {
	ep := endpoint()
	requests := &fakeRequests{}
	f := newIngestFixture()
	r := NewPushReactor(codec.NewJSON(), newFakeDirectory(ep), newConnections(ep), requests, f.ingest, testLogger())

	part := func(id string, idx int) core.FeedItem {
		it := item(id, core.TypeTaskDataZip)
		it.Header.ChunkContextID = "ctx-1"
		it.Header.CurrentChunk = idx
		it.Header.TotalChunks = 2
		return it
	}

	ctx := context.Background()
	require.NoError(t, r.Handle(ctx, event(t, dispatch.KindPushMessage, core.ResponsePushNotification, "", core.PushNotification{Messages: []core.FeedItem{part("c-1", 0)}})))
	assert.Empty(t, f.sink.Messages())
	assert.Empty(t, requests.ofKind(core.TypeFeedConfirm), "a buffered part stays unconfirmed")
	require.NoError(t, r.Handle(ctx, event(t, dispatch.KindPushMessage, core.ResponsePushNotification, "", core.PushNotification{Messages: []core.FeedItem{part("c-2", 1)}})))

	saved := f.sink.Messages()
	require.Len(t, saved, 1)
	assert.Equal(t, "payload-c-1payload-c-2", string(saved[0].Payload))
	confirms := requests.ofKind(core.TypeFeedConfirm)
	require.Len(t, confirms, 1)
	assert.Equal(t, []string{"c-1", "c-2"}, confirms[0].ids)
}

func TestChunkedMessageUnconfirmedWhenSaveFails(t *testing.T) {
	ep := endpoint()
	requests := &fakeRequests{}
	ingest := NewIngestor(failingSink{}, nil, content.NewAssembler(time.Hour), testLogger())
	r := NewPushReactor(codec.NewJSON(), newFakeDirectory(ep), newConnections(ep), requests, ingest, testLogger())

	part := func(id string, idx int) core.FeedItem {
		it := item(id, core.TypeTaskDataZip)
		it.Header.ChunkContextID = "ctx-2"
		it.Header.CurrentChunk = idx
		it.Header.TotalChunks = 2
		return it
	}
	ev := event(t, dispatch.KindPushMessage, core.ResponsePushNotification, "", core.PushNotification{
		Messages: []core.FeedItem{part("c-1", 0), part("c-2", 1)},
	})
	assert.Error(t, r.Handle(context.Background(), ev))
	assert.Empty(t, requests.ofKind(core.TypeFeedConfirm))
}

func TestPushUnknownEndpointDeletes(t *testing.T) {
	ep := endpoint()
	requests := &fakeRequests{}
	r := NewPushReactor(codec.NewJSON(), newFakeDirectory(), newConnections(ep), requests, newIngestFixture().ingest, testLogger())

	ev := event(t, dispatch.KindPushMessage, core.ResponsePushNotification, "", core.PushNotification{Messages: []core.FeedItem{item("m-1", core.TypeTimeLog)}})
	require.NoError(t, r.Handle(context.Background(), ev))
	assert.Len(t, requests.ofKind(core.TypeFeedDelete), 1)
	assert.Empty(t, requests.ofKind(core.TypeFeedConfirm))
}

type failingSink struct{}

func (failingSink) Save(context.Context, core.ContentMessage) error {
	return errors.New("disk full")
}

func TestPushDoesNotConfirmFailedItems(t *testing.T) {
	ep := endpoint()
	requests := &fakeRequests{}
	catalog := content.NewCatalog(100, testLogger())
	ingest := NewIngestor(failingSink{}, catalog.Converters(), content.NewAssembler(time.Hour), testLogger())
	r := NewPushReactor(codec.NewJSON(), newFakeDirectory(ep), newConnections(ep), requests, ingest, testLogger())

	ev := event(t, dispatch.KindPushMessage, core.ResponsePushNotification, "", core.PushNotification{
		Messages: []core.FeedItem{item("farm-1", core.TypeFarm), item("tl-1", core.TypeTimeLog)},
	})
	assert.Error(t, r.Handle(context.Background(), ev))

	confirms := requests.ofKind(core.TypeFeedConfirm)
	require.Len(t, confirms, 1)
	assert.Equal(t, []string{"farm-1"}, confirms[0].ids)
}

func TestCloudRegistrationCreatesVirtualEndpoints(t *testing.T) {
	ep := endpoint()
	requests := &fakeRequests{}
	directory := newFakeDirectory(ep)
	onboardings := outbound.NewOnboardings()
	onboardings.Put("ob-1", outbound.Onboarding{ParentID: "ep-1", CreatedAt: time.Now()})
	r := NewCloudReactor(codec.NewJSON(), directory, newConnections(ep), onboardings, requests, testLogger())

	ev := event(t, dispatch.KindCloudRegistration, core.ResponseCloudRegistrations, "ob-1", core.CloudRegistrations{
		Registered: []core.RegisteredEndpoint{{ExternalID: "ext-1", AgrirouterID: "ar-v-1"}, {ExternalID: "ext-2", AgrirouterID: "ar-v-2"}},
	})
	require.NoError(t, r.Handle(context.Background(), ev))

	virtual, err := directory.FindByID(context.Background(), "virtual-ext-1")
	require.NoError(t, err)
	assert.Equal(t, "ep-1", virtual.ParentID)

	caps := requests.ofKind(core.TypeCapabilities)
	require.Len(t, caps, 2)
	assert.Equal(t, "virtual-ext-1", caps[0].endpointID)
	assert.Empty(t, requests.ofKind(core.TypeCloudOffboard))
}

func TestCloudRegistrationWithoutStateOffboards(t *testing.T) {
	ep := endpoint()
	requests := &fakeRequests{}
	directory := newFakeDirectory(ep)
	r := NewCloudReactor(codec.NewJSON(), directory, newConnections(ep), outbound.NewOnboardings(), requests, testLogger())

	ev := event(t, dispatch.KindCloudRegistration, core.ResponseCloudRegistrations, "lost-after-restart", core.CloudRegistrations{
		Registered: []core.RegisteredEndpoint{{ExternalID: "ext-1", AgrirouterID: "ar-v-1"}},
	})
	require.NoError(t, r.Handle(context.Background(), ev))

	offboards := requests.ofKind(core.TypeCloudOffboard)
	require.Len(t, offboards, 1)
	assert.Equal(t, []string{"ar-v-1"}, offboards[0].ids)
	assert.Equal(t, "ep-1", offboards[0].endpointID)
	_, err := directory.FindByID(context.Background(), "virtual-ext-1")
	assert.ErrorIs(t, err, core.ErrEndpointNotFound)
}

func TestStatusReactor(t *testing.T) {
	ep := endpoint()
	directory := newFakeDirectory(ep)
	r := NewStatusReactor(codec.NewJSON(), directory, testLogger())

	ev := event(t, dispatch.KindStatusUpdate, core.ResponseAckForFeedHeaderList, "h-1", core.HeaderQueryResult{
		Headers: []core.ContentMessageMetadata{{MessageID: "a"}, {MessageID: "b"}},
	})
	require.NoError(t, r.Handle(context.Background(), ev))
	assert.Equal(t, 2, directory.statuses["ep-1"].MessagesWaiting)

	ev.Frame.EndpointID = "gone"
	require.NoError(t, r.Handle(context.Background(), ev))
	_, ok := directory.statuses["gone"]
	assert.False(t, ok)
}

func TestRecipientsReactor(t *testing.T) {
	ep := endpoint()
	directory := newFakeDirectory(ep)
	r := NewRecipientsReactor(codec.NewJSON(), directory, testLogger())

	recipients := []core.Recipient{{EndpointID: "ar-2", Name: "farm software"}}
	ev := event(t, dispatch.KindRecipientsUpdate, core.ResponseEndpointsListing, "l-1", core.EndpointsListing{Endpoints: recipients})
	require.NoError(t, r.Handle(context.Background(), ev))
	require.Len(t, directory.recipients["ep-1"], 1)
	assert.Equal(t, "ar-2", directory.recipients["ep-1"][0].EndpointID)
}

type failingUnknownStore struct {
	saved int
}

func (f *failingUnknownStore) Save(context.Context, core.Frame) error {
	f.saved++
	return errors.New("read-only filesystem")
}

func (f *failingUnknownStore) Close() error { return nil }

func TestUnknownReactorNeverFails(t *testing.T) {
	store := &failingUnknownStore{}
	r := NewUnknownReactor(store, testLogger())
	ev := event(t, dispatch.KindUnknownMessage, "SOMETHING_NEW", "x", map[string]string{"k": "v"})

	assert.NoError(t, r.Handle(context.Background(), ev))
	assert.Equal(t, 1, store.saved)
}

type countingFollowups struct {
	mu      sync.Mutex
	renewed int
}

func (f *countingFollowups) RenewSubscriptions(context.Context, string) error {
	f.mu.Lock()
	f.renewed++
	f.mu.Unlock()
	return nil
}

func (f *countingFollowups) ActivateDevice(context.Context, string, string) error {
	return nil
}

func (f *countingFollowups) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.renewed
}

type nopMessageLog struct{}

func (nopMessageLog) Record(context.Context, string, core.Severity, []core.DetailMessage) error {
	return nil
}

func TestAckReactorResolvesOnce(t *testing.T) {
	ctx := context.Background()
	store := ack.NewMemoryStore()
	followups := &countingFollowups{}
	resolver := ack.NewResolver(store, followups, nopMessageLog{}, metrics.NewNop(), testLogger())
	r := NewAckReactor(codec.NewJSON(), resolver, testLogger())

	require.NoError(t, store.Register(ctx, ack.PendingAck{MessageID: "cap-1", EndpointID: "ep-1", Context: ack.Capabilities{}, CreatedAt: time.Now()}))

	ev := event(t, dispatch.KindAcknowledgement, core.ResponseAck, "cap-1", nil)
	require.NoError(t, r.Handle(ctx, ev))
	require.NoError(t, r.Handle(ctx, ev))
	assert.Equal(t, 1, followups.count())

	n, _ := store.Count(ctx)
	assert.Zero(t, n)
}

func TestAckReactorUndecodableDetailsStillResolve(t *testing.T) {
	ctx := context.Background()
	store := ack.NewMemoryStore()
	resolver := ack.NewResolver(store, &countingFollowups{}, nopMessageLog{}, metrics.NewNop(), testLogger())
	r := NewAckReactor(codec.NewJSON(), resolver, testLogger())

	require.NoError(t, store.Register(ctx, ack.PendingAck{MessageID: "q-1", EndpointID: "ep-1", Context: ack.MessageQuery{}, CreatedAt: time.Now()}))
	ev := event(t, dispatch.KindAcknowledgement, core.ResponseAckWithFailure, "q-1", "not an object")

	require.NoError(t, r.Handle(ctx, ev))
	_, ok, _ := store.Peek(ctx, "q-1")
	assert.False(t, ok)
}

type recordingReactor struct {
	kind dispatch.Kind
	seen chan dispatch.Event
}

func (r *recordingReactor) Kind() dispatch.Kind {
	return r.kind
}

func (r *recordingReactor) Handle(_ context.Context, ev dispatch.Event) error {
	r.seen <- ev
	return nil
}

func TestRunnerDeliversPrimaryAndAcknowledgement(t *testing.T) {
	logger := testLogger()
	m := metrics.NewNop()
	queues := dispatch.NewQueues(8)
	d := dispatch.NewDispatcher(codec.NewJSON(), queues, m, logging.NewFrameLogger(logger), logger)

	status := &recordingReactor{kind: dispatch.KindStatusUpdate, seen: make(chan dispatch.Event, 1)}
	acks := &recordingReactor{kind: dispatch.KindAcknowledgement, seen: make(chan dispatch.Event, 1)}
	runner := NewRunner(queues, []Reactor{status, acks}, 2, 8, m, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, runner.Start(ctx))

	ev := event(t, dispatch.KindStatusUpdate, core.ResponseAckForFeedHeaderList, "h-1", core.HeaderQueryResult{})
	d.OnFrame(ev.Frame)

	for _, r := range []*recordingReactor{status, acks} {
		select {
		case got := <-r.seen:
			assert.Equal(t, "h-1", got.Envelope.ApplicationMessageID)
		case <-time.After(2 * time.Second):
			t.Fatalf("reactor %s not called", r.kind)
		}
	}

	d.Close()
	require.NoError(t, runner.Stop(2*time.Second))
	assert.Equal(t, int64(2), runner.Stats().Processed)
}
