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

// Package reconcile runs the background loop that replays outstanding
// ReconciliationDebt rows, bounding the graph
// store's expected projection lag to the reconciler period plus the
// coordinator's own retry budget.
package reconcile

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Debt is one outstanding projection failure awaiting replay.
type Debt struct {
	EventID       string
	TargetStore   string
	Reason        string
	FirstFailedAt time.Time
}

// Source lists and clears outstanding debts. pkg/store/relational
// implements the persistence side; this interface is kept narrow so the
// reconciler can be tested against a fake.
type Source interface {
	ListOutstanding(ctx context.Context, limit int) ([]Debt, error)
	Resolve(ctx context.Context, eventID, targetStore string) error
}

// Replayer re-applies one debt's underlying projection. The coordinator
// supplies this, since only it knows how to turn an event_id back into a
// graph mutation.
type Replayer func(ctx context.Context, d Debt) error

// Reconciler periodically drains Source via Replayer.
type Reconciler struct {
	source   Source
	replay   Replayer
	interval time.Duration
	batch    int
	logger   *zap.Logger
}

// Config controls the reconciler's polling cadence and batch size.
type Config struct {
	Interval time.Duration // bounded in expectation by 60s end-to-end
	Batch    int
}

// DefaultConfig returns the default cadence.
func DefaultConfig() Config {
	return Config{Interval: 30 * time.Second, Batch: 100}
}

// New constructs a Reconciler.
func New(source Source, replay Replayer, cfg Config, logger *zap.Logger) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.Batch <= 0 {
		cfg.Batch = DefaultConfig().Batch
	}
	return &Reconciler{source: source, replay: replay, interval: cfg.Interval, batch: cfg.Batch, logger: logger}
}

// Run blocks, draining outstanding debts every interval until ctx is
// canceled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				r.logger.Warn("reconciliation pass failed", zap.Error(err))
			}
		}
	}
}

// RunOnce drains one batch of outstanding debts, resolving whichever
// replay succeeds and leaving the rest for the next pass.
func (r *Reconciler) RunOnce(ctx context.Context) error {
	debts, err := r.source.ListOutstanding(ctx, r.batch)
	if err != nil {
		return err
	}

	for _, d := range debts {
		if err := r.replay(ctx, d); err != nil {
			r.logger.Warn("reconciliation replay failed, will retry next pass",
				zap.String("event_id", d.EventID), zap.String("target_store", d.TargetStore), zap.Error(err))
			continue
		}
		if err := r.source.Resolve(ctx, d.EventID, d.TargetStore); err != nil {
			r.logger.Warn("failed to mark debt resolved",
				zap.String("event_id", d.EventID), zap.Error(err))
		}
	}
	return nil
}
