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

package dispatch

import "github.com/agrirouter-middleware/agrirouter-middleware-sub000/pkg/core"

// Kind is the category of an internal event. Each kind has its own queue
// and its own reactor.
type Kind int

const (
	KindAcknowledgement Kind = iota
	KindQueryResult
	KindStatusUpdate
	KindCloudRegistration
	KindRecipientsUpdate
	KindPushMessage
	KindUnknownMessage
)

var Kinds = []Kind{
	KindAcknowledgement,
	KindQueryResult,
	KindStatusUpdate,
	KindCloudRegistration,
	KindRecipientsUpdate,
	KindPushMessage,
	KindUnknownMessage,
}

func (k Kind) String() string {
	switch k {
	case KindAcknowledgement:
		return "acknowledgement"
	case KindQueryResult:
		return "query-result"
	case KindStatusUpdate:
		return "status-update"
	case KindCloudRegistration:
		return "cloud-registration"
	case KindRecipientsUpdate:
		return "recipients-update"
	case KindPushMessage:
		return "push-message"
	case KindUnknownMessage:
		return "unknown-message"
	default:
		return "invalid"
	}
}

type Event struct {
	Kind     Kind
	Frame    core.Frame
	Envelope core.Envelope
}

// Route lists the events a frame of type t produces. The primary event
// comes first, the acknowledgement last.
func Route(t core.ResponseType) []Kind {
	switch t {
	case core.ResponseAck, core.ResponseAckWithMessages, core.ResponseAckWithFailure:
		return []Kind{KindAcknowledgement}
	case core.ResponseAckForFeedMessage:
		return []Kind{KindQueryResult, KindAcknowledgement}
	case core.ResponseAckForFeedHeaderList:
		return []Kind{KindStatusUpdate, KindAcknowledgement}
	case core.ResponseCloudRegistrations:
		return []Kind{KindCloudRegistration, KindAcknowledgement}
	case core.ResponseEndpointsListing:
		return []Kind{KindRecipientsUpdate, KindAcknowledgement}
	case core.ResponsePushNotification:
		return []Kind{KindPushMessage}
	default:
		return []Kind{KindUnknownMessage, KindAcknowledgement}
	}
}

// Queues holds one bounded channel per event kind.
type Queues struct {
	chans map[Kind]chan Event
}

func NewQueues(size int) *Queues {
	q := &Queues{chans: make(map[Kind]chan Event, len(Kinds))}
	for _, k := range Kinds {
		q.chans[k] = make(chan Event, size)
	}
	return q
}

func (q *Queues) C(kind Kind) <-chan Event {
	return q.chans[kind]
}

// offer enqueues without blocking and reports whether there was room.
func (q *Queues) offer(ev Event) bool {
	select {
	case q.chans[ev.Kind] <- ev:
		return true
	default:
		return false
	}
}

func (q *Queues) Len(kind Kind) int {
	return len(q.chans[kind])
}

// Close closes every channel. No frame may be dispatched afterwards.
func (q *Queues) Close() {
	for _, ch := range q.chans {
		close(ch)
	}
}
