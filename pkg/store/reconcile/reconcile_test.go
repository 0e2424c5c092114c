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

package reconcile

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeSource struct {
	debts    []Debt
	resolved []string
}

func (f *fakeSource) ListOutstanding(ctx context.Context, limit int) ([]Debt, error) {
	if limit < len(f.debts) {
		return f.debts[:limit], nil
	}
	return f.debts, nil
}

func (f *fakeSource) Resolve(ctx context.Context, eventID, targetStore string) error {
	f.resolved = append(f.resolved, eventID)
	return nil
}

func TestRunOnce_ResolvesSuccessfulReplays(t *testing.T) {
	source := &fakeSource{debts: []Debt{
		{EventID: "e1", TargetStore: "graph", FirstFailedAt: time.Now()},
		{EventID: "e2", TargetStore: "graph", FirstFailedAt: time.Now()},
	}}
	replayed := map[string]bool{}
	replay := func(ctx context.Context, d Debt) error {
		replayed[d.EventID] = true
		return nil
	}

	r := New(source, replay, Config{Interval: time.Second, Batch: 10}, zap.NewNop())
	if err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(replayed) != 2 {
		t.Errorf("replayed %d debts, want 2", len(replayed))
	}
	if len(source.resolved) != 2 {
		t.Errorf("resolved %d debts, want 2", len(source.resolved))
	}
}

func TestRunOnce_LeavesFailedReplaysUnresolved(t *testing.T) {
	source := &fakeSource{debts: []Debt{{EventID: "e1", TargetStore: "graph"}}}
	replay := func(ctx context.Context, d Debt) error {
		return fmt.Errorf("graph store unavailable")
	}

	r := New(source, replay, Config{Interval: time.Second, Batch: 10}, zap.NewNop())
	if err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(source.resolved) != 0 {
		t.Errorf("resolved = %v, want none", source.resolved)
	}
}

func TestRunOnce_RespectsBatchLimit(t *testing.T) {
	source := &fakeSource{debts: []Debt{{EventID: "e1"}, {EventID: "e2"}, {EventID: "e3"}}}
	var seen int
	replay := func(ctx context.Context, d Debt) error {
		seen++
		return nil
	}

	r := New(source, replay, Config{Interval: time.Second, Batch: 2}, zap.NewNop())
	if err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if seen != 2 {
		t.Errorf("replayed %d debts, want 2 (batch limit)", seen)
	}
}

func TestNew_AppliesDefaultsForZeroConfig(t *testing.T) {
	r := New(&fakeSource{}, func(ctx context.Context, d Debt) error { return nil }, Config{}, zap.NewNop())
	if r.interval != DefaultConfig().Interval || r.batch != DefaultConfig().Batch {
		t.Errorf("interval=%v batch=%d, want defaults", r.interval, r.batch)
	}
}
