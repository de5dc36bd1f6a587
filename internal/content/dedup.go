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

// Package content handles inbound business payloads: chunk handling and
// the sinks that persist them.
package content

import "github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"

// Flatten keeps one record per chunk context, the first one seen. Records
// without a chunk context are kept as they are.
func Flatten(records []core.ContentMessageMetadata) []core.ContentMessageMetadata {
	seen := make(map[string]struct{})
	out := make([]core.ContentMessageMetadata, 0, len(records))
	for _, r := range records {
		if r.ChunkContextID != "" {
			if _, dup := seen[r.ChunkContextID]; dup {
				continue
			}
			seen[r.ChunkContextID] = struct{}{}
		}
		out = append(out, r)
	}
	return out
}
