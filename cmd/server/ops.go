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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/connection"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/worker"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

type health struct {
	Status              string              `json:"status"`
	ActiveConnections   int                 `json:"active_connections"`
	InactiveConnections int                 `json:"inactive_connections"`
	PendingAcks         int                 `json:"pending_acks"`
	Reactors            worker.Stats        `json:"reactors"`
	Connections         []connection.Status `json:"connections,omitempty"`
}

func newOpsServer(addr string, a *app) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.promRegistry, promhttp.HandlerOpts{}))
	mux.Handle("/monitor", a.hub)
	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("POST /endpoints/{id}/virtual-endpoints", a.handleOnboard)
	mux.HandleFunc("POST /endpoints/{id}/messages", a.handleSend)
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// handleHealth reports degraded while any configured connection is down.
// ?verbose=true adds the per-connection status with its recent errors.
func (a *app) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	h := health{
		Status:              "ok",
		ActiveConnections:   a.connections.CountActive(),
		InactiveConnections: a.connections.CountInactive(),
		Reactors:            a.runner.Stats(),
	}
	pending, err := a.acks.Count(ctx)
	if err != nil {
		a.logger.Warn("pending acknowledgements not counted", "error", err)
		pending = -1
	}
	h.PendingAcks = pending
	if h.InactiveConnections > 0 {
		h.Status = "degraded"
	}
	if r.URL.Query().Get("verbose") == "true" {
		h.Connections = a.connections.Snapshot()
	}

	w.Header().Set("Content-Type", "application/json")
	if h.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(h)
}

type onboardRequest struct {
	Endpoints []core.VirtualEndpointRequest `json:"endpoints"`
}

type sendRequest struct {
	Type             core.TechnicalMessageType `json:"type"`
	Recipients       []string                  `json:"recipients"`
	TeamSetContextID string                    `json:"team_set_context_id"`
	Payload          []byte                    `json:"payload"`
}

type accepted struct {
	MessageID string `json:"message_id"`
}

// handleOnboard registers virtual endpoints through the endpoint's
// connection. The cloud registration response creates them locally.
func (a *app) handleOnboard(w http.ResponseWriter, r *http.Request) {
	var req onboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Endpoints) == 0 {
		http.Error(w, "body must list endpoints", http.StatusBadRequest)
		return
	}
	ep, err := a.directory.FindByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeSendError(w, err)
		return
	}
	id, err := a.sender.OnboardCloudEndpoints(r.Context(), ep, req.Endpoints)
	if err != nil {
		writeSendError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, accepted{MessageID: id})
}

// handleSend publishes a content message, for example a device
// description, on behalf of the endpoint.
func (a *app) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Type == "" || len(req.Payload) == 0 {
		http.Error(w, "body must carry type and payload", http.StatusBadRequest)
		return
	}
	ep, err := a.directory.FindByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeSendError(w, err)
		return
	}
	id, err := a.sender.SendContent(r.Context(), ep, core.OutboundContent{
		Type:             req.Type,
		Recipients:       req.Recipients,
		TeamSetContextID: req.TeamSetContextID,
		Payload:          req.Payload,
	})
	if err != nil {
		writeSendError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, accepted{MessageID: id})
}

func writeSendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrEndpointNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, core.ErrNotConnected):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
