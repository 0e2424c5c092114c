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

package redisbus

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/baggageops/core/pkg/domain"
)

func newTestBus(t *testing.T) (*Bus, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	b, err := New(context.Background(), client, DefaultConfig("ingest:scan", "ingest-workers"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b, mr
}

func sampleEvent(bagTag string) domain.Event {
	return domain.Event{
		BagTag:       bagTag,
		Location:     "PTY_GATE_A1",
		EventType:    domain.EventCheckIn,
		SourceSystem: "test",
		Timestamp:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Payload:      domain.ScanPayload{RawLine: "raw"},
	}
}

func TestPublish_NewEventGetsIngestID(t *testing.T) {
	b, _ := newTestBus(t)
	result, err := b.Publish(context.Background(), sampleEvent("0000000001"))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if result.Duplicate || result.IngestID == "" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestPublish_DuplicateFingerprintRejected(t *testing.T) {
	b, _ := newTestBus(t)
	ctx := context.Background()
	event := sampleEvent("0000000002")

	first, err := b.Publish(ctx, event)
	if err != nil || first.Duplicate {
		t.Fatalf("first publish: %+v, %v", first, err)
	}
	second, err := b.Publish(ctx, event)
	if err != nil {
		t.Fatalf("second publish: %v", err)
	}
	if !second.Duplicate {
		t.Error("expected second publish of identical fingerprint to be marked duplicate")
	}
}

func TestPublishBatch_PerEventResults(t *testing.T) {
	b, _ := newTestBus(t)
	events := []domain.Event{sampleEvent("0000000003"), sampleEvent("0000000004")}
	results, err := b.PublishBatch(context.Background(), events)
	if err != nil {
		t.Fatalf("PublishBatch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Duplicate || r.IngestID == "" {
			t.Errorf("unexpected result: %+v", r)
		}
	}
}

func TestConsumeAndAck(t *testing.T) {
	b, _ := newTestBus(t)
	ctx := context.Background()
	if _, err := b.Publish(ctx, sampleEvent("0000000005")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	envs, err := b.Consume(ctx, "worker-1", 10, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if len(envs) != 1 {
		t.Fatalf("expected 1 envelope, got %d", len(envs))
	}
	if envs[0].Event.BagTag != "0000000005" {
		t.Errorf("BagTag = %q", envs[0].Event.BagTag)
	}

	if err := b.Ack(ctx, envs[0].IngestID); err != nil {
		t.Fatalf("Ack: %v", err)
	}
}

func TestConsume_EmptyStreamReturnsNoEnvelopes(t *testing.T) {
	b, _ := newTestBus(t)
	envs, err := b.Consume(context.Background(), "worker-1", 10, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if len(envs) != 0 {
		t.Errorf("expected no envelopes, got %d", len(envs))
	}
}

func TestMoveToDLQ_RemovesFromPendingAndAppendsToDeadLetter(t *testing.T) {
	b, mr := newTestBus(t)
	ctx := context.Background()
	if _, err := b.Publish(ctx, sampleEvent("0000000006")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	envs, err := b.Consume(ctx, "worker-1", 10, 100*time.Millisecond)
	if err != nil || len(envs) != 1 {
		t.Fatalf("Consume: %v, %+v", err, envs)
	}

	if err := b.MoveToDLQ(ctx, envs[0].IngestID, "invalid_transition"); err != nil {
		t.Fatalf("MoveToDLQ: %v", err)
	}

	dlqLen, err := mr.XLen(b.cfg.DLQStreamKey)
	if err != nil {
		t.Fatalf("XLen: %v", err)
	}
	if dlqLen != 1 {
		t.Errorf("dead-letter stream length = %d, want 1", dlqLen)
	}
}

func TestReplay_ReadOnlyScanNoAck(t *testing.T) {
	b, _ := newTestBus(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := b.Publish(ctx, sampleEvent("000000000"+string(rune('1'+i)))); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	envs, err := b.Replay(ctx, "-", "+", 10)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(envs) != 3 {
		t.Fatalf("expected 3 replayed envelopes, got %d", len(envs))
	}

	// replay must not have consumed anything off the group's backlog
	consumed, err := b.Consume(ctx, "worker-1", 10, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if len(consumed) != 3 {
		t.Errorf("expected all 3 still consumable after replay, got %d", len(consumed))
	}
}

func TestClaimStale_ReassignsIdleMessages(t *testing.T) {
	b, _ := newTestBus(t)
	ctx := context.Background()
	if _, err := b.Publish(ctx, sampleEvent("0000000009")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if _, err := b.Consume(ctx, "worker-1", 10, 100*time.Millisecond); err != nil {
		t.Fatalf("Consume: %v", err)
	}

	n, err := b.ClaimStale(ctx, "worker-2", 0)
	if err != nil {
		t.Fatalf("ClaimStale: %v", err)
	}
	if n != 1 {
		t.Errorf("ClaimStale reassigned %d messages, want 1", n)
	}
}

func TestConsume_DeliveryCountReflectsActualRedeliveries(t *testing.T) {
	b, _ := newTestBus(t)
	ctx := context.Background()
	if _, err := b.Publish(ctx, sampleEvent("0000000010")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	first, err := b.Consume(ctx, "worker-1", 10, 100*time.Millisecond)
	if err != nil || len(first) != 1 {
		t.Fatalf("first Consume: %v, %+v", err, first)
	}
	if first[0].DeliveryCount != 1 {
		t.Errorf("first delivery count = %d, want 1", first[0].DeliveryCount)
	}

	// XAutoClaim bumps the pending entry's delivery counter, the same as
	// a real redelivery to a new worker after the first one stalls.
	if _, err := b.ClaimStale(ctx, "worker-2", 0); err != nil {
		t.Fatalf("ClaimStale: %v", err)
	}

	replayed, err := b.Replay(ctx, "-", "+", 10)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(replayed) != 1 {
		t.Fatalf("expected 1 replayed envelope, got %d", len(replayed))
	}
	if replayed[0].DeliveryCount < 2 {
		t.Errorf("delivery count after reclaim = %d, want >= 2", replayed[0].DeliveryCount)
	}
}
