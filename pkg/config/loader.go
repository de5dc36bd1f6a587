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

package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

type Config struct {
	Log         LogConfig         `yaml:"log"`
	Broker      BrokerConfig      `yaml:"broker"`
	Dispatcher  DispatcherConfig  `yaml:"dispatcher"`
	Workers     WorkersConfig     `yaml:"workers"`
	Acks        AcksConfig        `yaml:"acks"`
	Query       QueryConfig       `yaml:"query"`
	Content     ContentConfig     `yaml:"content"`
	Inspection  InspectionConfig  `yaml:"inspection"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Ops         OpsConfig         `yaml:"ops"`
	Endpoints   []EndpointConfig  `yaml:"endpoints"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// SlogLevel parses Level, falling back to info.
func (l LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

type BrokerConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
	QoS            byte          `yaml:"qos"`
	PublishRate    float64       `yaml:"publish_rate"`
	PublishBurst   int           `yaml:"publish_burst"`
}

type DispatcherConfig struct {
	QueueSize int `yaml:"queue_size"`
}

type WorkersConfig struct {
	Count     int `yaml:"count"`
	QueueSize int `yaml:"queue_size"`
}

type AcksConfig struct {
	Store string        `yaml:"store"`
	TTL   time.Duration `yaml:"ttl"`
	Redis RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type QueryConfig struct {
	Window time.Duration `yaml:"window"`
}

type ContentConfig struct {
	Sink         string        `yaml:"sink"`
	ChunkTimeout time.Duration `yaml:"chunk_timeout"`
	// Capacity bounds the memory sink and the conversion catalog. The
	// oldest entries are dropped first.
	Capacity     int           `yaml:"capacity"`
	Kafka        KafkaConfig   `yaml:"kafka"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type InspectionConfig struct {
	Store string `yaml:"store"`
	Path  string `yaml:"path"`
}

// MaintenanceConfig holds cron expressions for the periodic jobs.
type MaintenanceConfig struct {
	EvictStale    string `yaml:"evict_stale"`
	Reconnect     string `yaml:"reconnect"`
	ExpireAcks    string `yaml:"expire_acks"`
	Chunks        string `yaml:"chunks"`
	// QueryMessages, HeaderQuery and ListEndpoints poll the platform for
	// every connected endpoint.
	QueryMessages string `yaml:"query_messages"`
	HeaderQuery   string `yaml:"header_query"`
	ListEndpoints string `yaml:"list_endpoints"`
}

type OpsConfig struct {
	Addr string `yaml:"addr"`
}

type EndpointConfig struct {
	ID           string                    `yaml:"id"`
	AgrirouterID string                    `yaml:"agrirouter_id"`
	ExternalID   string                    `yaml:"external_id"`
	Name         string                    `yaml:"name"`
	Connection   core.ConnectionDescriptor `yaml:"connection"`
	Capabilities []core.Capability         `yaml:"capabilities"`
}

func (ec EndpointConfig) ToEndpoint() core.Endpoint {
	return core.Endpoint{
		ID:           ec.ID,
		AgrirouterID: ec.AgrirouterID,
		ExternalID:   ec.ExternalID,
		Name:         ec.Name,
		Connection:   ec.Connection,
		Capabilities: ec.Capabilities,
	}
}

// EndpointList returns the configured endpoints in their domain form.
func (c *Config) EndpointList() []core.Endpoint {
	out := make([]core.Endpoint, 0, len(c.Endpoints))
	for _, ec := range c.Endpoints {
		out = append(out, ec.ToEndpoint())
	}
	return out
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyEnv(os.Getenv)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides file values with AGRIROUTER_* variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("AGRIROUTER_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("AGRIROUTER_REDIS_ADDR"); v != "" {
		c.Acks.Redis.Addr = v
	}
	if v := getenv("AGRIROUTER_KAFKA_BROKERS"); v != "" {
		c.Content.Kafka.Brokers = strings.Split(v, ",")
	}
}

func (c *Config) ApplyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Broker.ConnectTimeout == 0 {
		c.Broker.ConnectTimeout = 20 * time.Second
	}
	if c.Broker.KeepAlive == 0 {
		c.Broker.KeepAlive = 60 * time.Second
	}
	if c.Broker.QoS == 0 {
		c.Broker.QoS = 2
	}
	if c.Broker.PublishRate == 0 {
		c.Broker.PublishRate = 10
	}
	if c.Broker.PublishBurst == 0 {
		c.Broker.PublishBurst = 20
	}
	if c.Dispatcher.QueueSize <= 0 {
		c.Dispatcher.QueueSize = 256
	}
	if c.Workers.Count <= 0 {
		c.Workers.Count = 8
	}
	if c.Workers.QueueSize <= 0 {
		c.Workers.QueueSize = 1024
	}
	if c.Acks.Store == "" {
		c.Acks.Store = "memory"
	}
	if c.Acks.TTL == 0 {
		c.Acks.TTL = 24 * time.Hour
	}
	if c.Acks.Redis.KeyPrefix == "" {
		c.Acks.Redis.KeyPrefix = "agrirouter:ack:"
	}
	if c.Query.Window == 0 {
		c.Query.Window = 28 * 24 * time.Hour
	}
	if c.Content.Sink == "" {
		c.Content.Sink = "memory"
	}
	if c.Content.ChunkTimeout == 0 {
		c.Content.ChunkTimeout = time.Hour
	}
	if c.Content.Capacity <= 0 {
		c.Content.Capacity = 1000
	}
	if c.Inspection.Store == "" {
		c.Inspection.Store = "memory"
	}
	if c.Maintenance.EvictStale == "" {
		c.Maintenance.EvictStale = "*/5 * * * *"
	}
	if c.Maintenance.Reconnect == "" {
		c.Maintenance.Reconnect = "* * * * *"
	}
	if c.Maintenance.ExpireAcks == "" {
		c.Maintenance.ExpireAcks = "0 * * * *"
	}
	if c.Maintenance.Chunks == "" {
		c.Maintenance.Chunks = "*/10 * * * *"
	}
	if c.Maintenance.QueryMessages == "" {
		c.Maintenance.QueryMessages = "*/5 * * * *"
	}
	if c.Maintenance.HeaderQuery == "" {
		c.Maintenance.HeaderQuery = "*/15 * * * *"
	}
	if c.Maintenance.ListEndpoints == "" {
		c.Maintenance.ListEndpoints = "0 */6 * * *"
	}
	if c.Ops.Addr == "" {
		c.Ops.Addr = ":9090"
	}
}

func (c *Config) Validate() error {
	if c.Broker.QoS > 2 {
		return fmt.Errorf("broker qos must be 0, 1 or 2, got %d", c.Broker.QoS)
	}
	if c.Acks.Store == "redis" && c.Acks.Redis.Addr == "" {
		return fmt.Errorf("acks.redis.addr is required when acks.store=redis")
	}
	if c.Content.Sink == "kafka" && (len(c.Content.Kafka.Brokers) == 0 || c.Content.Kafka.Topic == "") {
		return fmt.Errorf("content.kafka brokers and topic are required when content.sink=kafka")
	}
	seen := make(map[string]bool, len(c.Endpoints))
	for i, ec := range c.Endpoints {
		if ec.ID == "" {
			return fmt.Errorf("endpoints[%d]: id is required", i)
		}
		if seen[ec.ID] {
			return fmt.Errorf("endpoints[%d]: duplicate id %s", i, ec.ID)
		}
		seen[ec.ID] = true
		if err := ec.Connection.Validate(); err != nil {
			return fmt.Errorf("endpoints[%d]: %w", i, err)
		}
	}
	return nil
}
