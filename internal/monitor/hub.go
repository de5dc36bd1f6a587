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

// Package monitor streams dispatched events to websocket clients.
package monitor

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/dispatch"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

const (
	subscriberBuffer = 64
	writeTimeout     = 5 * time.Second
)

// Notice is what a monitor client receives for each dispatched event.
type Notice struct {
	Kind          string            `json:"kind"`
	ClientID      string            `json:"client_id"`
	EndpointID    string            `json:"endpoint_id"`
	Type          core.ResponseType `json:"type"`
	ResponseCode  int               `json:"response_code,omitempty"`
	MessageID     string            `json:"message_id,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	ReceivedAt    time.Time         `json:"received_at"`
}

// subscriber's out channel is never closed since Observe may still hold a
// reference after removal. done ends the write loop instead.
type subscriber struct {
	id   string
	conn *websocket.Conn
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func newSubscriber(conn *websocket.Conn) *subscriber {
	return &subscriber{
		id:   uuid.NewString(),
		conn: conn,
		out:  make(chan []byte, subscriberBuffer),
		done: make(chan struct{}),
	}
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

// Hub fans events out to the connected clients. A client that cannot keep
// up loses notices instead of slowing the dispatcher down.
type Hub struct {
	upgrader    websocket.Upgrader
	subscribers sync.Map
	dropped     atomic.Int64
	logger      *slog.Logger
}

var _ dispatch.Observer = (*Hub)(nil)

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.With("component", "monitor"),
	}
}

// Observe is called by the dispatcher for every emitted event.
func (h *Hub) Observe(ev dispatch.Event) {
	data, err := json.Marshal(Notice{
		Kind:          ev.Kind.String(),
		ClientID:      ev.Frame.ClientID,
		EndpointID:    ev.Frame.EndpointID,
		Type:          ev.Envelope.Type,
		ResponseCode:  ev.Envelope.ResponseCode,
		MessageID:     ev.Envelope.MessageID,
		CorrelationID: ev.Envelope.ApplicationMessageID,
		ReceivedAt:    ev.Frame.ReceivedAt,
	})
	if err != nil {
		h.logger.Error("marshal notice failed", "error", err)
		return
	}
	h.subscribers.Range(func(_, val any) bool {
		sub := val.(*subscriber)
		select {
		case sub.out <- data:
		default:
			h.dropped.Add(1)
		}
		return true
	})
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	n := 0
	h.subscribers.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// ServeHTTP upgrades the request and streams notices until the client
// goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "error", err)
		return
	}

	sub := newSubscriber(conn)
	h.subscribers.Store(sub.id, sub)
	h.logger.Info("monitor client connected", "subscriber_id", sub.id, "remote_addr", r.RemoteAddr)

	defer func() {
		h.subscribers.Delete(sub.id)
		sub.close()
		conn.Close()
		h.logger.Info("monitor client disconnected", "subscriber_id", sub.id)
	}()

	go h.writeLoop(sub)
	h.readLoop(sub)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.subscribers.Range(func(_, val any) bool {
		sub := val.(*subscriber)
		_ = sub.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		sub.conn.Close()
		return true
	})
}

func (h *Hub) writeLoop(sub *subscriber) {
	for {
		select {
		case <-sub.done:
			return
		case data := <-sub.out:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Warn("ws write failed", "subscriber_id", sub.id, "error", err)
				sub.conn.Close()
				return
			}
		}
	}
}

// readLoop discards client messages and returns when the connection ends.
func (h *Hub) readLoop(sub *subscriber) {
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("ws read error", "subscriber_id", sub.id, "error", err)
			}
			return
		}
	}
}
