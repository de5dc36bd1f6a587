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

package inspection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/cockroachdb/pebble"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

var keyPrefix = []byte("unknown:")

// PebbleStore persists frames keyed by arrival time so iteration returns
// them in order.
type PebbleStore struct {
	db     *pebble.DB
	seq    atomic.Uint64
	logger *slog.Logger
}

// OpenPebble opens or creates the store at path. opts may be nil.
func OpenPebble(path string, opts *pebble.Options, logger *slog.Logger) (*PebbleStore, error) {
	if opts == nil {
		opts = &pebble.Options{}
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open inspection store %s: %w", path, err)
	}
	logger.Info("inspection store opened", "path", path)
	return &PebbleStore{db: db, logger: logger}, nil
}

func (p *PebbleStore) Save(_ context.Context, frame core.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame from %s: %w", frame.ClientID, err)
	}
	key := fmt.Appendf(append([]byte(nil), keyPrefix...), "%020d:%08d", frame.ReceivedAt.UnixNano(), p.seq.Add(1))
	if err := p.db.Set(key, data, pebble.Sync); err != nil {
		return fmt.Errorf("store frame from %s: %w", frame.ClientID, err)
	}
	return nil
}

// List returns up to limit frames, oldest first. A limit of zero or less
// returns all of them.
func (p *PebbleStore) List(_ context.Context, limit int) ([]core.Frame, error) {
	iter, err := p.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []core.Frame
	for iter.SeekGE(keyPrefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), keyPrefix) {
			break
		}
		var f core.Frame
		if err := json.Unmarshal(iter.Value(), &f); err != nil {
			p.logger.Warn("skipping unreadable inspection entry", "key", string(iter.Key()), "error", err)
			continue
		}
		out = append(out, f)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (p *PebbleStore) Close() error {
	return p.db.Close()
}
