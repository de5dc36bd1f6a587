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
	"context"
	"fmt"
	"log/slog"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/config"
	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

// Store is an unknown-message store that can also be read back.
type Store interface {
	core.UnknownMessageStore
	List(ctx context.Context, limit int) ([]core.Frame, error)
}

// NewStore creates the store selected by cfg.Store.
func NewStore(cfg config.InspectionConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Store {
	case "pebble":
		if cfg.Path == "" {
			return nil, fmt.Errorf("%w: inspection.path is required for pebble", core.ErrUnknownStore)
		}
		return OpenPebble(cfg.Path, nil, logger)
	case "memory", "":
		return NewMemoryStore(defaultMemoryCapacity), nil
	default:
		return nil, fmt.Errorf("%w: inspection.store=%s", core.ErrUnknownStore, cfg.Store)
	}
}
