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

// Package coordinator implements the Dual-Write Coordinator: the relational store is always authoritative and committed
// synchronously, the graph store is an eventually-consistent projection
// applied with bounded retry and, on persistent failure, recorded as
// reconciliation debt instead of blocking the caller.
package coordinator

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/baggageops/core/pkg/domain"
	shrderrors "github.com/baggageops/core/pkg/shared/errors"
	"github.com/baggageops/core/pkg/shared/logging"
	"github.com/baggageops/core/pkg/store/graph"
	"github.com/baggageops/core/pkg/store/relational"
)

// backoff is the retry schedule for graph projection.
var backoff = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// Coordinator wires a relational.Store, a graph.Store, and a circuit
// breaker around the graph projection path.
type Coordinator struct {
	rel    *relational.Store
	gr     graph.Store
	cb     *gobreaker.CircuitBreaker[any]
	logger *zap.Logger
	locks  *perBagLocks
}

// NewCoordinator constructs a Coordinator. The circuit breaker opens
// after 5 consecutive graph-projection failures and probes again after
// 30s, shedding load on a stalled graph store rather than queueing every
// caller behind the retry schedule.
func NewCoordinator(rel *relational.Store, gr graph.Store, logger *zap.Logger) *Coordinator {
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "graph-projection",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Coordinator{rel: rel, gr: gr, cb: cb, logger: logger, locks: newPerBagLocks()}
}

// projectWithRetry applies fn against the graph store, retrying per the
// backoff schedule. On persistent failure it records
// reconciliation debt and returns nil: the relational write already
// committed and the caller must not be blocked on graph catch-up.
func (c *Coordinator) projectWithRetry(ctx context.Context, eventID, targetStore string, fn func(ctx context.Context) error) {
	var lastErr error
	for _, delay := range append([]time.Duration{0}, backoff...) {
		if delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
		_, err := c.cb.Execute(func() (any, error) {
			return nil, fn(ctx)
		})
		if err == nil {
			return
		}
		lastErr = err
	}

	c.logger.Warn("graph projection failed persistently, recording reconciliation debt",
		logging.DatabaseFields("project", targetStore).Custom("event_id", eventID).Error(lastErr).ToZap()...)
	if err := c.rel.RecordReconciliationDebt(ctx, eventID, targetStore, lastErr.Error(), time.Now().UTC()); err != nil {
		c.logger.Error("failed to record reconciliation debt",
			logging.DatabaseFields("record_reconciliation_debt", "reconciliation_debts").Custom("event_id", eventID).Error(err).ToZap()...)
	}
}

// UpsertBag implements upsert_bag: relational failure is
// fatal to the call, graph failure degrades to reconciliation debt.
func (c *Coordinator) UpsertBag(ctx context.Context, bag *domain.Bag) error {
	unlock := c.locks.lock(bag.BagTag)
	defer unlock()

	if err := c.rel.UpsertBag(ctx, bag); err != nil {
		return shrderrors.Transient(err)
	}
	snapshot := *bag
	c.projectWithRetry(ctx, "upsert:"+bag.BagTag, "graph", func(ctx context.Context) error {
		return c.gr.UpsertBag(ctx, snapshot)
	})
	return nil
}

// RecordEventResult reports what the relational write observed.
type RecordEventResult struct {
	AlreadyApplied bool
}

// RecordEvent implements record_event's full write
// algorithm: relational insert-and-derive in one transaction, commit,
// then an asynchronously-retried graph projection.
func (c *Coordinator) RecordEvent(ctx context.Context, scan domain.ScanEvent, newStatus domain.BagStatus, newLocation string, now time.Time) (RecordEventResult, error) {
	unlock := c.locks.lock(scan.BagTag)
	defer unlock()

	result, err := c.rel.RecordEvent(ctx, scan, newStatus, newLocation, now)
	if err != nil {
		return RecordEventResult{}, shrderrors.Transient(err)
	}
	if result.AlreadyApplied {
		return RecordEventResult{AlreadyApplied: true}, nil
	}

	bag, err := c.rel.GetBag(ctx, scan.BagTag)
	if err != nil || bag == nil {
		c.logger.Warn("could not re-read bag after record_event for graph projection",
			logging.DatabaseFields("get_bag", "bags").Custom("bag_tag", scan.BagTag).Error(err).ToZap()...)
		return RecordEventResult{}, nil
	}
	snapshot := *bag
	c.projectWithRetry(ctx, scan.EventID, "graph", func(ctx context.Context) error {
		return c.gr.RecordEvent(ctx, snapshot, scan)
	})
	return RecordEventResult{}, nil
}

// RecordRisk implements record_risk.
func (c *Coordinator) RecordRisk(ctx context.Context, assessment domain.RiskAssessment) error {
	unlock := c.locks.lock(assessment.BagTag)
	defer unlock()

	if err := c.rel.RecordRisk(ctx, assessment); err != nil {
		return shrderrors.Transient(err)
	}
	c.projectWithRetry(ctx, "risk:"+assessment.BagTag+":"+assessment.AssessedAt.Format(time.RFC3339Nano), "graph", func(ctx context.Context) error {
		return c.gr.RecordRisk(ctx, assessment)
	})
	return nil
}

// OpenCase implements open_case.
func (c *Coordinator) OpenCase(ctx context.Context, ec domain.ExceptionCase) error {
	unlock := c.locks.lock(ec.BagTag)
	defer unlock()

	if err := c.rel.OpenCase(ctx, ec); err != nil {
		return shrderrors.Transient(err)
	}
	c.projectWithRetry(ctx, "case:"+ec.CaseID, "graph", func(ctx context.Context) error {
		return c.gr.OpenCase(ctx, ec)
	})
	return nil
}

// UpdateCase implements update_case: an invalid transition
// is a Permanent error, never retried and never projected.
func (c *Coordinator) UpdateCase(ctx context.Context, caseID string, newStatus domain.CaseStatus, entry domain.TimelineEntry) error {
	err := c.rel.UpdateCase(ctx, caseID, newStatus, entry)
	if err == relational.ErrInvalidTransition {
		return shrderrors.Permanent(err)
	}
	if err != nil {
		return shrderrors.Transient(err)
	}
	c.projectWithRetry(ctx, "case-update:"+caseID, "graph", func(ctx context.Context) error {
		return c.gr.UpdateCase(ctx, caseID, newStatus)
	})
	return nil
}

// GetBag reads the current relational snapshot for bagTag, or nil if it
// has never been upserted. The processor pipeline uses this to seed a
// StepContext before replaying an incoming event's transition.
func (c *Coordinator) GetBag(ctx context.Context, bagTag string) (*domain.Bag, error) {
	return c.rel.GetBag(ctx, bagTag)
}

// GetOpenCaseForBag reads bagTag's currently open/in_progress
// ExceptionCase, or nil if none is open. The processor pipeline uses
// this to seed StepContext.Case so open-or-update-case can tell a fresh
// exception from one already being tracked.
func (c *Coordinator) GetOpenCaseForBag(ctx context.Context, bagTag string) (*domain.ExceptionCase, error) {
	return c.rel.GetOpenCaseForBag(ctx, bagTag)
}

// CreateCourierDispatch persists a newly proposed CourierDispatch.
// Dispatches are relational-only state with no graph projection: nothing
// in graph.Store's journey/location/bottleneck schema has a place for a
// logistics booking, the same scoping already applied to PIRs and
// notifications.
func (c *Coordinator) CreateCourierDispatch(ctx context.Context, d domain.CourierDispatch) error {
	if err := c.rel.CreateCourierDispatch(ctx, d); err != nil {
		return shrderrors.Transient(err)
	}
	return nil
}

// ResolveCourierApproval applies an approval_granted/approval_denied
// decision to a pending_approval dispatch. A dispatch that is no longer
// pending_approval (already resolved by a redelivered approval event) is
// a Permanent error: retrying it can never succeed.
func (c *Coordinator) ResolveCourierApproval(ctx context.Context, dispatchID string, approved bool, approvedBy string) (domain.CourierDispatch, error) {
	dispatch, err := c.rel.ResolveCourierApproval(ctx, dispatchID, approved, approvedBy)
	if err == relational.ErrDispatchNotPendingApproval {
		return domain.CourierDispatch{}, shrderrors.Permanent(err)
	}
	if err != nil {
		return domain.CourierDispatch{}, shrderrors.Transient(err)
	}
	return dispatch, nil
}

// MarkCourierDispatchBooked advances an approved dispatch to booked once
// the courier service has actually accepted it.
func (c *Coordinator) MarkCourierDispatchBooked(ctx context.Context, dispatchID string) error {
	if err := c.rel.UpdateCourierDispatchStatus(ctx, dispatchID, domain.DispatchBooked); err != nil {
		return shrderrors.Transient(err)
	}
	return nil
}

// ListBags reads a filtered, paginated page of bags from the relational
// store. The httpapi query handler uses this directly; it is never part
// of a write path so it takes no coordinator lock.
func (c *Coordinator) ListBags(ctx context.Context, f relational.BagFilter) ([]domain.Bag, error) {
	return c.rel.ListBags(ctx, f)
}

// GetJourney, GetCurrentLocation, GetFlightBags, AnalyzeConnectionRisk,
// and IdentifyBottlenecks are the graph's read-side query surface
//; the coordinator passes them through unmodified since
// there is no relational fallback for graph traversal queries.

func (c *Coordinator) GetJourney(ctx context.Context, bagTag string) (graph.BagSnapshot, error) {
	return c.gr.GetJourney(ctx, bagTag)
}

func (c *Coordinator) GetCurrentLocation(ctx context.Context, bagTag string) (graph.LocationReport, error) {
	return c.gr.GetCurrentLocation(ctx, bagTag)
}

func (c *Coordinator) GetFlightBags(ctx context.Context, flightIdentifier string) ([]domain.Bag, error) {
	return c.gr.GetFlightBags(ctx, flightIdentifier)
}

func (c *Coordinator) AnalyzeConnectionRisk(ctx context.Context, bagTag, connectingFlight string, connectionMinutes int) (graph.ConnectionRiskReport, error) {
	return c.gr.AnalyzeConnectionRisk(ctx, bagTag, connectingFlight, connectionMinutes)
}

func (c *Coordinator) IdentifyBottlenecks(ctx context.Context, windowHours, minBags int) ([]graph.BottleneckReport, error) {
	return c.gr.IdentifyBottlenecks(ctx, windowHours, minBags)
}

// ReplayDebt re-applies one outstanding reconciliation debt. It is
// wired into pkg/store/reconcile.Reconciler as the Replayer, since only
// the coordinator knows how to turn a bare event_id back into a graph
// mutation.
func (c *Coordinator) ReplayDebt(ctx context.Context, eventID string) error {
	bag, err := c.rel.GetBag(ctx, eventID)
	if err != nil {
		return err
	}
	if bag == nil {
		return nil // bag_tag no longer exists; nothing left to project
	}
	return c.gr.UpsertBag(ctx, *bag)
}
