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

package content

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/config"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestFlattenKeepsFirstPerChunkContext(t *testing.T) {
	records := []core.ContentMessageMetadata{
		{MessageID: "a", ChunkContextID: "X", CurrentChunk: 1, TotalChunks: 3},
		{MessageID: "b", ChunkContextID: "X", CurrentChunk: 2, TotalChunks: 3},
		{MessageID: "c", ChunkContextID: "X", CurrentChunk: 3, TotalChunks: 3},
		{MessageID: "d"},
	}
	got := Flatten(records)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].MessageID)
	assert.Equal(t, "d", got[1].MessageID)
}

func TestFlattenKeepsUnchunkedDuplicates(t *testing.T) {
	got := Flatten([]core.ContentMessageMetadata{{MessageID: "a"}, {MessageID: "b"}, {MessageID: "c", ChunkContextID: "Y"}})
	assert.Len(t, got, 3)
}

func chunk(ctxID string, idx, total int, payload string) core.ContentMessage {
	return core.ContentMessage{
		EndpointID: "ep-1",
		Metadata: core.ContentMessageMetadata{
			MessageID:            ctxID + "-" + payload,
			TechnicalMessageType: core.TypeTaskDataZip,
			ChunkContextID:       ctxID,
			CurrentChunk:         idx,
			TotalChunks:          total,
		},
		Payload: []byte(payload),
	}
}

func TestAssemblerJoinsInIndexOrder(t *testing.T) {
	a := NewAssembler(time.Hour)

	_, ids, done := a.Add(chunk("X", 2, 3, "bb"))
	assert.False(t, done)
	assert.Empty(t, ids)
	_, _, done = a.Add(chunk("X", 0, 3, "aa"))
	assert.False(t, done)
	_, _, done = a.Add(chunk("X", 0, 3, "aa"))
	assert.False(t, done, "duplicate part must not complete the group")
	assert.Equal(t, 1, a.Pending())

	msg, ids, done := a.Add(chunk("X", 1, 3, "--"))
	require.True(t, done)
	assert.Equal(t, "aa--bb", string(msg.Payload))
	assert.Equal(t, []string{"X-aa", "X---", "X-bb"}, ids)
	assert.Equal(t, int64(6), msg.Metadata.PayloadSize)
	assert.Equal(t, 0, a.Pending())
}

func TestAssemblerPassesUnchunked(t *testing.T) {
	a := NewAssembler(time.Hour)
	in := core.ContentMessage{Metadata: core.ContentMessageMetadata{MessageID: "m"}, Payload: []byte("p")}
	out, ids, done := a.Add(in)
	require.True(t, done)
	assert.Equal(t, in, out)
	assert.Equal(t, []string{"m"}, ids)
}

func TestAssemblerSweep(t *testing.T) {
	a := NewAssembler(time.Minute)
	now := time.Now()
	a.now = func() time.Time { return now }
	a.Add(chunk("X", 0, 2, "a"))

	assert.Empty(t, a.Sweep())
	now = now.Add(2 * time.Minute)
	assert.Equal(t, []string{"X"}, a.Sweep())
	assert.Equal(t, 0, a.Pending())
}

func TestMemorySinkSearchFlattens(t *testing.T) {
	s := NewMemorySink(10)
	ctx := context.Background()
	for _, m := range []core.ContentMessage{chunk("X", 0, 2, "a"), chunk("X", 1, 2, "b"), {EndpointID: "ep-1", Metadata: core.ContentMessageMetadata{MessageID: "solo"}}} {
		require.NoError(t, s.Save(ctx, m))
	}
	assert.Len(t, s.Messages(), 3)
	assert.Len(t, s.Search("ep-1"), 2)
	assert.Empty(t, s.Search("ep-2"))
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaSinkWritesKeyedMessage(t *testing.T) {
	w := &fakeWriter{}
	sink := &KafkaSink{writer: w, logger: testLogger()}

	err := sink.Save(context.Background(), core.ContentMessage{
		EndpointID: "ep-1",
		Metadata:   core.ContentMessageMetadata{MessageID: "m-1", TechnicalMessageType: core.TypeTimeLog},
		Payload:    []byte("log"),
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "m-1", string(w.msgs[0].Key))
	assert.Equal(t, "log", string(w.msgs[0].Value))

	headers := map[string]string{}
	for _, h := range w.msgs[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "ep-1", headers["endpoint_id"])
	assert.Equal(t, string(core.TypeTimeLog), headers["technical_message_type"])
	assert.Contains(t, headers["metadata"], `"messageId":"m-1"`)

	w.err = errors.New("leader not available")
	assert.Error(t, sink.Save(context.Background(), core.ContentMessage{}))
}

func TestNewSink(t *testing.T) {
	s, err := NewSink(config.ContentConfig{Sink: "memory"}, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &MemorySink{}, s)

	_, err = NewSink(config.ContentConfig{Sink: "s3"}, testLogger())
	assert.ErrorIs(t, err, core.ErrUnknownStore)
}

func TestCatalogConvert(t *testing.T) {
	c := NewCatalog(10, testLogger())
	ctx := context.Background()
	msg := core.ContentMessage{
		EndpointID: "ep-1",
		Metadata:   core.ContentMessageMetadata{MessageID: "m", TechnicalMessageType: core.TypeFarm},
		Payload:    []byte("farm"),
	}
	require.NoError(t, c.Converters()[core.TypeFarm].Convert(ctx, msg))
	assert.Len(t, c.Entries("ep-1", core.TypeFarm), 1)

	msg.Payload = nil
	assert.Error(t, c.Convert(ctx, msg))
}

func TestMemorySinkDropsOldest(t *testing.T) {
	s := NewMemorySink(2)
	ctx := context.Background()
	for _, id := range []string{"m-1", "m-2", "m-3"} {
		require.NoError(t, s.Save(ctx, core.ContentMessage{EndpointID: "ep-1", Metadata: core.ContentMessageMetadata{MessageID: id}}))
	}

	kept := s.Messages()
	require.Len(t, kept, 2)
	assert.Equal(t, "m-2", kept[0].Metadata.MessageID)
	assert.Equal(t, "m-3", kept[1].Metadata.MessageID)
	assert.Len(t, s.Search("ep-1"), 2)
}

func TestCatalogIsBounded(t *testing.T) {
	c := NewCatalog(3, testLogger())
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		msg := core.ContentMessage{
			EndpointID: "ep-1",
			Metadata:   core.ContentMessageMetadata{MessageID: "tl-" + strconv.Itoa(i), TechnicalMessageType: core.TypeTimeLog},
			Payload:    []byte("log"),
		}
		require.NoError(t, c.Convert(ctx, msg))
	}

	kept := c.Entries("ep-1", core.TypeTimeLog)
	require.Len(t, kept, 3)
	assert.Equal(t, "tl-2", kept[0].MessageID)
	assert.Equal(t, "tl-4", kept[2].MessageID)
}

func TestNewSinkUsesCapacity(t *testing.T) {
	s, err := NewSink(config.ContentConfig{Sink: "memory", Capacity: 1}, testLogger())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, core.ContentMessage{Metadata: core.ContentMessageMetadata{MessageID: "a"}}))
	require.NoError(t, s.Save(ctx, core.ContentMessage{Metadata: core.ContentMessageMetadata{MessageID: "b"}}))
	assert.Len(t, s.(*MemorySink).Messages(), 1)
}
