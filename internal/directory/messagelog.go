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

package directory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"
)

const maxEntriesPerEndpoint = 100

type LogEntry struct {
	Severity   core.Severity
	Message    core.DetailMessage
	RecordedAt time.Time
}

// MessageLog keeps the latest detail messages per endpoint and mirrors
// each one to the logger.
type MessageLog struct {
	mu      sync.RWMutex
	entries map[string][]LogEntry
	now     func() time.Time
	logger  *slog.Logger
}

var _ core.MessageLog = (*MessageLog)(nil)

func NewMessageLog(logger *slog.Logger) *MessageLog {
	return &MessageLog{
		entries: make(map[string][]LogEntry),
		now:     time.Now,
		logger:  logger.With("component", "message_log"),
	}
}

func (l *MessageLog) Record(ctx context.Context, endpointID string, severity core.Severity, messages []core.DetailMessage) error {
	at := l.now()
	l.mu.Lock()
	list := l.entries[endpointID]
	for _, m := range messages {
		list = append(list, LogEntry{Severity: severity, Message: m, RecordedAt: at})
	}
	if over := len(list) - maxEntriesPerEndpoint; over > 0 {
		list = append([]LogEntry(nil), list[over:]...)
	}
	l.entries[endpointID] = list
	l.mu.Unlock()

	level := levelFor(severity)
	for _, m := range messages {
		l.logger.Log(ctx, level, "platform message",
			"endpoint_id", endpointID,
			"message_code", m.MessageCode,
			"message", m.Message,
		)
	}
	return nil
}

// Entries returns the recorded messages of endpointID, oldest first.
func (l *MessageLog) Entries(endpointID string) []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]LogEntry(nil), l.entries[endpointID]...)
}

func levelFor(s core.Severity) slog.Level {
	switch s {
	case core.SeverityError:
		return slog.LevelError
	case core.SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
