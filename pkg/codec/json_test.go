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

package codec

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

func TestDecodeEnvelope(t *testing.T) {
	c := NewJSON()
	raw, err := EncodeEnvelope(core.Envelope{
		Type:                 core.ResponseAckWithMessages,
		ResponseCode:         400,
		MessageID:            "m-1",
		ApplicationMessageID: "req-1",
		Timestamp:            time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}, map[string]any{"messages": []core.DetailMessage{{MessageCode: core.NoRecipientsCode, Message: "no recipients"}}})
	require.NoError(t, err)

	env, err := c.DecodeEnvelope(raw)
	require.NoError(t, err)
	assert.Equal(t, core.ResponseAckWithMessages, env.Type)
	assert.Equal(t, 400, env.ResponseCode)
	assert.Equal(t, "req-1", env.ApplicationMessageID)

	msgs, err := c.DecodeMessages(env)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, core.NoRecipientsCode, msgs[0].MessageCode)
}

func TestDecodeEnvelopeMalformed(t *testing.T) {
	c := NewJSON()
	for _, in := range []string{"", "{", `{"responseCode":200}`, `[1,2]`} {
		if _, err := c.DecodeEnvelope([]byte(in)); !errors.Is(err, core.ErrDecode) {
			t.Errorf("DecodeEnvelope(%q) error = %v, want ErrDecode", in, err)
		}
	}
}

func TestDecodeQueryResult(t *testing.T) {
	c := NewJSON()
	body := core.QueryResult{
		Messages: []core.FeedItem{{
			Header:  core.ContentMessageMetadata{MessageID: "a", TechnicalMessageType: core.TypeTimeLog},
			Payload: []byte("payload"),
		}},
		Metrics: core.QueryMetrics{TotalMessagesInQuery: 150, MaxCountRestriction: 100},
	}
	raw, err := EncodeEnvelope(core.Envelope{Type: core.ResponseAckForFeedMessage, ApplicationMessageID: "q"}, body)
	require.NoError(t, err)

	env, err := c.DecodeEnvelope(raw)
	require.NoError(t, err)
	res, err := c.DecodeQueryResult(env)
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, []byte("payload"), res.Messages[0].Payload)
	assert.True(t, res.Metrics.HasMore())
}

func TestDecodeBodyMissing(t *testing.T) {
	c := NewJSON()
	_, err := c.DecodePushNotification(core.Envelope{Type: core.ResponsePushNotification})
	if !errors.Is(err, core.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestEncodeRequest(t *testing.T) {
	c := NewJSON()
	data, err := c.EncodeRequest(core.Request{
		MessageID: "id-1",
		Type:      core.TypeFeedConfirm,
		SenderID:  "ar-1",
		Body:      core.MessageIDsBody{MessageIDs: []string{"a", "b"}},
	})
	require.NoError(t, err)

	var decoded struct {
		Header  wireHeader          `json:"header"`
		Payload core.MessageIDsBody `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "id-1", decoded.Header.ApplicationMessageID)
	assert.Equal(t, core.TypeFeedConfirm, decoded.Header.TechnicalMessageType)
	assert.Equal(t, []string{"a", "b"}, decoded.Payload.MessageIDs)

	_, err = c.EncodeRequest(core.Request{Type: core.TypeCapabilities})
	assert.ErrorIs(t, err, core.ErrUnsupportedRequest)
}
