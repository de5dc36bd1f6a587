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
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

// RedisStore keeps one string key per pending acknowledgement. SET NX
// gives insert-if-absent and GETDEL gives resolve-and-remove.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration, logger *slog.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

func (r *RedisStore) key(messageID string) string {
	return r.prefix + messageID
}

func (r *RedisStore) Register(ctx context.Context, p PendingAck) error {
	data, err := marshalPending(p)
	if err != nil {
		return err
	}
	ok, err := r.client.SetNX(ctx, r.key(p.MessageID), data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("register pending ack: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: message_id=%s", core.ErrDuplicatePending, p.MessageID)
	}
	return nil
}

func (r *RedisStore) Take(ctx context.Context, messageID string) (PendingAck, bool, error) {
	data, err := r.client.GetDel(ctx, r.key(messageID)).Bytes()
	return r.decode(data, err)
}

func (r *RedisStore) Peek(ctx context.Context, messageID string) (PendingAck, bool, error) {
	data, err := r.client.Get(ctx, r.key(messageID)).Bytes()
	return r.decode(data, err)
}

func (r *RedisStore) decode(data []byte, err error) (PendingAck, bool, error) {
	if errors.Is(err, redis.Nil) {
		return PendingAck{}, false, nil
	}
	if err != nil {
		return PendingAck{}, false, fmt.Errorf("load pending ack: %w", err)
	}
	p, err := unmarshalPending(data)
	if err != nil {
		return PendingAck{}, false, err
	}
	return p, true, nil
}

// Expire claims old entries with GETDEL so a concurrent Take cannot
// resolve the same entry. Keys written with a TTL also expire on their own.
func (r *RedisStore) Expire(ctx context.Context, cutoff time.Time) ([]PendingAck, error) {
	var expired []PendingAck
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			r.logger.Warn("pending ack read failed", "key", key, "error", err)
			continue
		}
		p, err := unmarshalPending(data)
		if err != nil {
			r.logger.Warn("pending ack decode failed", "key", key, "error", err)
			continue
		}
		if !p.CreatedAt.Before(cutoff) {
			continue
		}
		if _, ok, err := r.decode(r.client.GetDel(ctx, key).Bytes()); err == nil && ok {
			expired = append(expired, p)
		}
	}
	if err := iter.Err(); err != nil {
		return expired, fmt.Errorf("scan pending acks: %w", err)
	}
	return expired, nil
}

func (r *RedisStore) Count(ctx context.Context) (int, error) {
	n := 0
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("scan pending acks: %w", err)
	}
	return n, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
