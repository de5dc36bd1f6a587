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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/ack"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/connection"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/content"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/directory"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/dispatch"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/inspection"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/logging"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/maintenance"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/metrics"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/monitor"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/outbound"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/internal/reactor"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/codec"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/config"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/plugins/mqtt"
)

const shutdownTimeout = 10 * time.Second

type app struct {
	cfg        *config.Config
	configPath string
	logger     *slog.Logger

	promRegistry *prometheus.Registry
	connections  *connection.Registry
	dispatcher   *dispatch.Dispatcher
	runner       *reactor.Runner
	directory    *directory.Directory
	sender       *outbound.Sender
	acks         ack.Store
	sink         core.ContentSink
	unknown      inspection.Store
	hub          *monitor.Hub
	scheduler    *maintenance.Scheduler
	ops          *http.Server
}

func newApp(cfg *config.Config, configPath string, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, configPath: configPath, logger: logger, promRegistry: prometheus.NewRegistry()}
	m := metrics.New(a.promRegistry)
	jsonCodec := codec.NewJSON()
	frameLog := logging.NewFrameLogger(logger.With("component", "frame"))

	queues := dispatch.NewQueues(cfg.Dispatcher.QueueSize)
	a.dispatcher = dispatch.NewDispatcher(jsonCodec, queues, m, frameLog, logger.With("component", "dispatcher"))
	a.hub = monitor.NewHub(logger)
	a.dispatcher.AddObserver(a.hub)

	dialer := mqtt.NewDialer(cfg.Broker, logger)
	a.connections = connection.NewRegistry(dialer, a.dispatcher.OnFrame, cfg.Broker.ConnectTimeout, m, logger.With("component", "connections"))
	a.directory = directory.New(cfg.EndpointList(), logger)
	activations := directory.NewActivations(logger)
	messageLog := directory.NewMessageLog(logger)

	var err error
	if a.acks, err = ack.NewStore(cfg.Acks, logger); err != nil {
		return nil, err
	}
	if a.sink, err = content.NewSink(cfg.Content, logger); err != nil {
		return nil, errors.Join(err, a.acks.Close())
	}
	if a.unknown, err = inspection.NewStore(cfg.Inspection, logger); err != nil {
		return nil, errors.Join(err, a.acks.Close(), closeIfCloser(a.sink))
	}

	onboardings := outbound.NewOnboardings()
	connector := outbound.NewConnector(a.connections, a.directory, jsonCodec, frameLog, m, logger)
	a.sender = outbound.NewSender(connector, a.acks, onboardings, logger)
	followups := outbound.NewFollowups(a.sender, a.directory, activations)
	resolver := ack.NewResolver(a.acks, followups, messageLog, m, logger.With("component", "resolver"))

	catalog := content.NewCatalog(cfg.Content.Capacity, logger)
	assembler := content.NewAssembler(cfg.Content.ChunkTimeout)
	ingestor := reactor.NewIngestor(a.sink, catalog.Converters(), assembler, logger)

	reactors := []reactor.Reactor{
		reactor.NewAckReactor(jsonCodec, resolver, logger),
		reactor.NewQueryReactor(jsonCodec, a.directory, a.connections, a.sender, ingestor, cfg.Query.Window, logger),
		reactor.NewStatusReactor(jsonCodec, a.directory, logger),
		reactor.NewCloudReactor(jsonCodec, a.directory, a.connections, onboardings, a.sender, logger),
		reactor.NewRecipientsReactor(jsonCodec, a.directory, logger),
		reactor.NewPushReactor(jsonCodec, a.directory, a.connections, a.sender, ingestor, logger),
		reactor.NewUnknownReactor(a.unknown, logger),
	}
	a.runner = reactor.NewRunner(queues, reactors, cfg.Workers.Count, cfg.Workers.QueueSize, m, logger)

	a.scheduler = maintenance.NewScheduler(logger)
	jobs := &maintenance.Jobs{
		Registry:    a.connections,
		Directory:   a.directory,
		Resolver:    resolver,
		Onboardings: onboardings,
		Assembler:   assembler,
		Requests:    a.sender,
		AckTTL:      cfg.Acks.TTL,
		QueryWindow: cfg.Query.Window,
		Logger:      logger.With("component", "maintenance"),
	}
	if err := maintenance.Register(a.scheduler, cfg.Maintenance, jobs); err != nil {
		return nil, errors.Join(err, a.closeStores())
	}

	a.registerGauges(m, assembler)
	a.ops = newOpsServer(cfg.Ops.Addr, a)
	return a, nil
}

func (a *app) registerGauges(m *metrics.Metrics, assembler *content.Assembler) {
	m.Gauge("connections_active", "Connection records with a live transport", func() float64 {
		return float64(a.connections.CountActive())
	})
	m.Gauge("connections_inactive", "Connection records without a live transport", func() float64 {
		return float64(a.connections.CountInactive())
	})
	m.Gauge("acks_pending", "Pending acknowledgements", func() float64 {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		n, err := a.acks.Count(ctx)
		if err != nil {
			return -1
		}
		return float64(n)
	})
	m.Gauge("chunks_pending", "Chunked messages waiting for parts", func() float64 {
		return float64(assembler.Pending())
	})
	m.Gauge("monitor_clients", "Connected monitor clients", func() float64 {
		return float64(a.hub.Count())
	})
}

func (a *app) run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()
	if err := a.runner.Start(workCtx); err != nil {
		return err
	}

	opsErr := make(chan error, 1)
	go func() {
		a.logger.Info("ops server listening", "addr", a.ops.Addr)
		if err := a.ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			opsErr <- err
		}
	}()

	a.connectAll(ctx, a.cfg.EndpointList())
	a.scheduler.Start(ctx)

	watcher := config.NewWatcher(a.configPath, func(c *config.Config) {
		endpoints := c.EndpointList()
		a.revokeMissing(ctx, endpoints)
		a.connectAll(ctx, a.directory.Sync(endpoints))
	}, a.logger.With("component", "watcher"))
	go watcher.Watch(ctx)

	a.logger.Info("agrirouter middleware started",
		"config", a.configPath,
		"endpoints", len(a.cfg.Endpoints),
		"active_connections", a.connections.CountActive(),
	)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-opsErr:
		a.logger.Error("ops server failed", "error", runErr)
	}
	cancel()
	return errors.Join(runErr, a.shutdown(cancelWork))
}

// connectAll connects the given endpoints, announces their capabilities
// and queries their inbox once. The acknowledgement of the announcement
// renews their subscriptions.
func (a *app) connectAll(ctx context.Context, endpoints []core.Endpoint) {
	if len(endpoints) == 0 {
		return
	}
	a.connections.Reconnect(ctx, endpoints)
	now := time.Now()
	window := core.TimeWindow{From: now.Add(-a.cfg.Query.Window), To: now}
	for _, ep := range endpoints {
		if ep.IsVirtual() || ep.Deactivated {
			continue
		}
		rec, ok := a.connections.Lookup(ep.Connection.ClientID)
		if !ok || !rec.Connected() {
			continue
		}
		if _, err := a.sender.SendCapabilities(ctx, ep); err != nil {
			a.logger.Warn("capabilities not announced", "endpoint_id", ep.ID, "error", err)
		}
		if _, err := a.sender.QueryMessages(ctx, ep, window); err != nil {
			a.logger.Warn("initial message query not sent", "endpoint_id", ep.ID, "error", err)
		}
	}
}

// revokeMissing removes configured endpoints that are no longer listed,
// together with their virtual endpoints and their connections.
func (a *app) revokeMissing(ctx context.Context, listed []core.Endpoint) {
	keep := make(map[string]bool, len(listed))
	for _, ep := range listed {
		keep[ep.ID] = true
	}
	current, err := a.directory.List(ctx)
	if err != nil {
		a.logger.Warn("endpoint list failed", "error", err)
		return
	}
	for _, ep := range current {
		if ep.IsVirtual() || keep[ep.ID] {
			continue
		}
		removed := a.directory.Remove(ep.ID)
		a.connections.Remove(ep.Connection.ClientID)
		a.logger.Info("endpoint revoked", "endpoint_id", ep.ID, "client_id", ep.Connection.ClientID, "removed", len(removed))
	}
}

func (a *app) shutdown(cancelWork context.CancelFunc) error {
	a.logger.Info("shutting down agrirouter middleware")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.scheduler.Wait()
	a.connections.Close()
	a.dispatcher.Close()
	runnerErr := a.runner.Stop(shutdownTimeout)
	cancelWork()
	a.hub.Close()

	err := errors.Join(runnerErr, a.ops.Shutdown(ctx), a.closeStores())
	a.logger.Info("agrirouter middleware stopped", "error", err)
	return err
}

func (a *app) closeStores() error {
	return errors.Join(a.acks.Close(), a.unknown.Close(), closeIfCloser(a.sink))
}

func closeIfCloser(v any) error {
	if c, ok := v.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close %T: %w", v, err)
		}
	}
	return nil
}
