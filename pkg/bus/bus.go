/*
Copyright 2026 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package bus declares the Ingest Bus contract: durable
// append, consumer-group dispatch, per-message ack, stale-claim recovery,
// dead-lettering, and bounded replay. The interface is transport-agnostic;
// package redisbus is the concrete Redis Streams adapter.
package bus

import (
	"context"
	"time"

	"github.com/baggageops/core/pkg/domain"
)

// PublishResult reports whether a publish produced a new ingest id or was
// absorbed by the dedup window.
type PublishResult struct {
	IngestID  string
	Duplicate bool
}

// Envelope is one delivered or replayed message.
type Envelope struct {
	IngestID      string
	Event         domain.Event
	IngestedAt    time.Time
	DeliveryCount int64
}

// StreamInfo answers GET /events/stream/info: a point-in-time view of
// backlog depth and dead-letter volume, not a historical series.
type StreamInfo struct {
	Length        int64
	PendingCount  int64
	DLQLength     int64
	ConsumerGroup string
}

// Bus is the Ingest Bus contract. Every method that can block on I/O takes
// a context and treats deadline expiry as a transient failure.
type Bus interface {
	// Publish appends event, returning a new ingest id, or Duplicate=true
	// if its fingerprint was already recorded within the dedup window.
	Publish(ctx context.Context, event domain.Event) (PublishResult, error)

	// PublishBatch publishes every event; the batch commits atomically at
	// the transport layer, but dedup is still evaluated per event.
	PublishBatch(ctx context.Context, events []domain.Event) ([]PublishResult, error)

	// Consume reads up to maxCount envelopes for consumerName, blocking up
	// to blockTimeout if the log is empty.
	Consume(ctx context.Context, consumerName string, maxCount int64, blockTimeout time.Duration) ([]Envelope, error)

	// Ack removes ingestID from the consumer group's pending set.
	Ack(ctx context.Context, ingestID string) error

	// ClaimStale reassigns messages idle longer than minIdle to
	// consumerName and returns how many were reclaimed.
	ClaimStale(ctx context.Context, consumerName string, minIdle time.Duration) (int, error)

	// MoveToDLQ transfers ingestID's original payload plus reason to the
	// dead-letter log and acks it out of the pending set.
	MoveToDLQ(ctx context.Context, ingestID string, reason string) error

	// Replay performs a read-only scan over [start,end], bounded to max
	// entries, without any ack side effect.
	Replay(ctx context.Context, start, end string, max int64) ([]Envelope, error)

	// Info reports current backlog depth, pending (unacked) count, and
	// dead-letter volume for the stream's /events/stream/info endpoint.
	Info(ctx context.Context) (StreamInfo, error)
}
