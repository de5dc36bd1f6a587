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

// Package mqtt is the broker transport of the endpoint connections, one
// paho client per client id.
package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/time/rate"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/config"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

const disconnectQuiesce = 250 // ms

// Dialer opens paho clients with a persistent session so the broker keeps
// queuing for an endpoint while it is away.
type Dialer struct {
	cfg       config.BrokerConfig
	logger    *slog.Logger
	newClient func(*mqtt.ClientOptions) mqtt.Client
}

var _ core.Dialer = (*Dialer)(nil)

func NewDialer(cfg config.BrokerConfig, logger *slog.Logger) *Dialer {
	return &Dialer{
		cfg:       cfg,
		logger:    logger.With("component", "mqtt"),
		newClient: mqtt.NewClient,
	}
}

func (d *Dialer) Dial(ctx context.Context, desc core.ConnectionDescriptor, onLost func(error)) (core.Transport, error) {
	tlsCfg, err := tlsConfig(desc)
	if err != nil {
		return nil, fmt.Errorf("tls for %s: %w", desc.ClientID, err)
	}

	t := newTransport(d.cfg, d.logger.With("client_id", desc.ClientID))
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL(desc, tlsCfg != nil)).
		SetClientID(desc.ClientID).
		SetCleanSession(false).
		SetAutoReconnect(true).
		SetOrderMatters(false).
		SetConnectTimeout(d.cfg.ConnectTimeout).
		SetKeepAlive(d.cfg.KeepAlive).
		SetOnConnectHandler(func(mqtt.Client) {
			t.logger.Info("client connected to broker")
			go t.resubscribe()
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			t.logger.Warn("connection lost", "error", err)
			if onLost != nil {
				onLost(err)
			}
		})
	if tlsCfg != nil {
		opts.SetTLSConfig(tlsCfg)
	}

	t.client = d.newClient(opts)
	if err := waitToken(ctx, t.client.Connect()); err != nil {
		t.client.Disconnect(disconnectQuiesce)
		return nil, fmt.Errorf("connect failed for %s: %w", desc.ClientID, err)
	}
	return t, nil
}

func brokerURL(desc core.ConnectionDescriptor, secure bool) string {
	scheme := "tcp"
	if secure {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, desc.Host, desc.Port)
}

// Transport is a connected paho client. Subscriptions are remembered and
// renewed whenever the client reconnects.
type Transport struct {
	client   mqtt.Client
	qos      byte
	limiter  *rate.Limiter
	mu       sync.Mutex
	handlers map[string]core.FrameHandler
	logger   *slog.Logger
}

var _ core.Transport = (*Transport)(nil)

func newTransport(cfg config.BrokerConfig, logger *slog.Logger) *Transport {
	limit := rate.Inf
	if cfg.PublishRate > 0 {
		limit = rate.Limit(cfg.PublishRate)
	}
	burst := cfg.PublishBurst
	if burst <= 0 {
		burst = 1
	}
	return &Transport{
		qos:      cfg.QoS,
		limiter:  rate.NewLimiter(limit, burst),
		handlers: make(map[string]core.FrameHandler),
		logger:   logger,
	}
}

func (t *Transport) IsConnected() bool {
	return t.client.IsConnected()
}

func (t *Transport) Subscribe(ctx context.Context, topic string, handler core.FrameHandler) error {
	if err := waitToken(ctx, t.client.Subscribe(topic, t.qos, deliver(handler))); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	t.mu.Lock()
	t.handlers[topic] = handler
	t.mu.Unlock()
	t.logger.Debug("subscribed", "topic", topic, "qos", t.qos)
	return nil
}

func (t *Transport) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	if err := waitToken(ctx, t.client.Publish(topic, t.qos, false, payload)); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Disconnect closes the client without unsubscribing so the broker keeps
// the session.
func (t *Transport) Disconnect() {
	t.client.Disconnect(disconnectQuiesce)
}

func (t *Transport) resubscribe() {
	t.mu.Lock()
	handlers := make(map[string]core.FrameHandler, len(t.handlers))
	for topic, h := range t.handlers {
		handlers[topic] = h
	}
	t.mu.Unlock()

	for topic, h := range handlers {
		token := t.client.Subscribe(topic, t.qos, deliver(h))
		if token.Wait() && token.Error() != nil {
			t.logger.Error("resubscribe failed", "topic", topic, "error", token.Error())
			continue
		}
		t.logger.Info("resubscribed after reconnect", "topic", topic)
	}
}

func deliver(h core.FrameHandler) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		h(core.Frame{
			Topic:      msg.Topic(),
			Payload:    msg.Payload(),
			ReceivedAt: time.Now().UTC(),
		})
	}
}

func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
