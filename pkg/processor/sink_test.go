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

package processor

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"

	"github.com/baggageops/core/pkg/domain"
	"github.com/baggageops/core/pkg/orchestrator"
	"github.com/baggageops/core/pkg/reasoning"
)

// fakeReasoner returns a canned recommendation, or an error when told
// to, so tests can drive both the happy path and the best-effort
// failure path without a real model call.
type fakeReasoner struct {
	rec     *reasoning.Recommendation
	err     error
	calls   int
	lastArg reasoning.CaseContext
}

func (f *fakeReasoner) Name() string { return "fake" }

func (f *fakeReasoner) Recommend(ctx context.Context, cc reasoning.CaseContext) (*reasoning.Recommendation, error) {
	f.calls++
	f.lastArg = cc
	if f.err != nil {
		return nil, f.err
	}
	return f.rec, nil
}

// fakeCourier records Dispatch calls and returns a canned dispatchID, so
// tests can assert whether the approval gate actually suppressed a
// booking rather than just trusting the persisted status.
type fakeCourier struct {
	dispatchCalls []orchestrator.CourierRequest
	dispatchID    string
	dispatchErr   error
}

func (f *fakeCourier) Dispatch(ctx context.Context, req orchestrator.CourierRequest) (string, error) {
	f.dispatchCalls = append(f.dispatchCalls, req)
	if f.dispatchErr != nil {
		return "", f.dispatchErr
	}
	return f.dispatchID, nil
}

func (f *fakeCourier) EstimateCost(ctx context.Context, destinationAddress string) (float64, error) {
	return 0, nil
}

func TestApplyEffects_CourierRequest_RequiresApprovalPersistsPendingWithoutBooking(t *testing.T) {
	co, mock := newTestCoordinator(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	req := orchestrator.CourierRequest{
		DispatchID: "dispatch-1", BagTag: "0000000001", DestinationAddress: "123 Main St",
		CostEstimate: 900, RequiresApproval: true,
	}

	mock.ExpectExec("INSERT INTO courier_dispatches").
		WithArgs(req.DispatchID, req.BagTag, req.DestinationAddress, req.CostEstimate, domain.DispatchPendingApproval, true, "", now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	courier := &fakeCourier{}
	sink := NewEffectSink(co, nil, courier, nil, nil, nil, zap.NewNop())
	sink.now = func() time.Time { return now }

	if err := sink.ApplyEffects(context.Background(), orchestrator.Effects{CourierRequest: &req}); err != nil {
		t.Fatalf("ApplyEffects: %v", err)
	}
	if len(courier.dispatchCalls) != 0 {
		t.Fatalf("courier.Dispatch called %d times, want 0 for a RequiresApproval request", len(courier.dispatchCalls))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestApplyEffects_CourierRequest_AutoDispatchBooksAndPersistsBooked(t *testing.T) {
	co, mock := newTestCoordinator(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	req := orchestrator.CourierRequest{
		DispatchID: "dispatch-2", BagTag: "0000000002", DestinationAddress: "456 Elm St",
		CostEstimate: 100, RequiresApproval: false,
	}

	mock.ExpectExec("INSERT INTO courier_dispatches").
		WithArgs(req.DispatchID, req.BagTag, req.DestinationAddress, req.CostEstimate, domain.DispatchBooked, false, "", now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	courier := &fakeCourier{dispatchID: "ext-1"}
	sink := NewEffectSink(co, nil, courier, nil, nil, nil, zap.NewNop())
	sink.now = func() time.Time { return now }

	if err := sink.ApplyEffects(context.Background(), orchestrator.Effects{CourierRequest: &req}); err != nil {
		t.Fatalf("ApplyEffects: %v", err)
	}
	if len(courier.dispatchCalls) != 1 {
		t.Fatalf("courier.Dispatch called %d times, want 1", len(courier.dispatchCalls))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestApplyEffects_ApprovalResolution_GrantedBooksDispatch(t *testing.T) {
	co, mock := newTestCoordinator(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM courier_dispatches").
		WithArgs("dispatch-3").
		WillReturnRows(sqlmock.NewRows([]string{
			"dispatch_id", "bag_tag", "destination_address", "cost_estimate", "status", "requires_approval", "approved_by", "created_at",
		}).AddRow("dispatch-3", "0000000003", "789 Oak St", 900.0, string(domain.DispatchPendingApproval), true, "", now))
	mock.ExpectExec("UPDATE courier_dispatches SET status").
		WithArgs("dispatch-3", domain.DispatchApproved, "ops-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectExec("UPDATE courier_dispatches SET status").
		WithArgs("dispatch-3", domain.DispatchBooked).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// notifier is nil: notifyApprovalGranted's notifier-nil guard means no
	// further bag lookup happens, same convention as ops/reasoner being
	// nil elsewhere in this sink.
	courier := &fakeCourier{dispatchID: "ext-2"}
	sink := NewEffectSink(co, nil, courier, nil, nil, nil, zap.NewNop())
	sink.now = func() time.Time { return now }

	resolution := orchestrator.ApprovalResolution{DispatchID: "dispatch-3", Approved: true, ApprovedBy: "ops-1"}
	if err := sink.ApplyEffects(context.Background(), orchestrator.Effects{ApprovalResolution: &resolution}); err != nil {
		t.Fatalf("ApplyEffects: %v", err)
	}
	if len(courier.dispatchCalls) != 1 {
		t.Fatalf("courier.Dispatch called %d times, want 1 for an approved dispatch", len(courier.dispatchCalls))
	}
	if courier.dispatchCalls[0].DestinationAddress != "789 Oak St" {
		t.Errorf("booked destination = %q, want 789 Oak St", courier.dispatchCalls[0].DestinationAddress)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestApplyEffects_ApprovalResolution_DeniedNeverBooks(t *testing.T) {
	co, mock := newTestCoordinator(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM courier_dispatches").
		WithArgs("dispatch-4").
		WillReturnRows(sqlmock.NewRows([]string{
			"dispatch_id", "bag_tag", "destination_address", "cost_estimate", "status", "requires_approval", "approved_by", "created_at",
		}).AddRow("dispatch-4", "0000000004", "1 Pine St", 950.0, string(domain.DispatchPendingApproval), true, "", now))
	mock.ExpectExec("UPDATE courier_dispatches SET status").
		WithArgs("dispatch-4", domain.DispatchCancelled, "ops-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	courier := &fakeCourier{}
	sink := NewEffectSink(co, nil, courier, nil, nil, nil, zap.NewNop())
	sink.now = func() time.Time { return now }

	resolution := orchestrator.ApprovalResolution{DispatchID: "dispatch-4", Approved: false, ApprovedBy: "ops-2"}
	if err := sink.ApplyEffects(context.Background(), orchestrator.Effects{ApprovalResolution: &resolution}); err != nil {
		t.Fatalf("ApplyEffects: %v", err)
	}
	if len(courier.dispatchCalls) != 0 {
		t.Fatalf("courier.Dispatch called %d times, want 0 for a denied dispatch", len(courier.dispatchCalls))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestApplyEffects_OpenCase_EnrichesWithNarrative(t *testing.T) {
	co, mock := newTestCoordinator(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	ec := domain.ExceptionCase{
		CaseID:      "case-1",
		BagTag:      "0000000001",
		CaseType:    "mishandled",
		Priority:    domain.PriorityP2,
		Status:      domain.CaseOpen,
		SLADeadline: now.Add(24 * time.Hour),
		CreatedAt:   now,
	}
	risk := domain.RiskAssessment{
		BagTag:    ec.BagTag,
		RiskScore: 0.72,
		RiskLevel: domain.RiskHigh,
		Factors:   []string{"tight_connection"},
	}

	mock.ExpectExec("INSERT INTO exception_cases").
		WithArgs(ec.CaseID, ec.BagTag, ec.CaseType, ec.Priority, ec.Status, ec.Assignee, ec.SLADeadline, ec.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectQuery("SELECT \\* FROM bags").
		WithArgs(ec.BagTag).
		WillReturnRows(sqlmock.NewRows([]string{"bag_tag", "routing", "status", "current_location", "risk_score", "passenger_ref", "pnr", "created_at", "updated_at", "version"}).
			AddRow(ec.BagTag, "", string(domain.StatusMishandled), "ORD", 0.72, "PAX-1", "PNR123", now, now, 1))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM exception_cases").
		WithArgs(ec.CaseID).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(string(domain.CaseOpen)))
	mock.ExpectExec("UPDATE exception_cases SET status").
		WithArgs(ec.CaseID, domain.CaseOpen).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO case_timeline_entries").
		WithArgs(ec.CaseID, now, "reasoning-capability", "file a PIR and hold the connection").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	reasoner := &fakeReasoner{rec: &reasoning.Recommendation{Narrative: "file a PIR and hold the connection"}}
	sink := NewEffectSink(co, nil, nil, nil, nil, reasoner, zap.NewNop())
	sink.now = func() time.Time { return now }

	err := sink.ApplyEffects(context.Background(), orchestrator.Effects{
		RiskAssessment: &risk,
		OpenCase:       &ec,
	})
	if err != nil {
		t.Fatalf("ApplyEffects: %v", err)
	}
	if reasoner.calls != 1 {
		t.Fatalf("reasoner.calls = %d, want 1", reasoner.calls)
	}
	if reasoner.lastArg.RiskLevel != domain.RiskHigh {
		t.Errorf("reasoner saw RiskLevel = %v, want RiskHigh", reasoner.lastArg.RiskLevel)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestApplyEffects_OpenCase_ReasonerFailureIsNonFatal(t *testing.T) {
	co, mock := newTestCoordinator(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	ec := domain.ExceptionCase{
		CaseID:    "case-2",
		BagTag:    "0000000002",
		CaseType:  "delayed",
		Priority:  domain.PriorityP2,
		Status:    domain.CaseOpen,
		CreatedAt: now,
	}

	mock.ExpectExec("INSERT INTO exception_cases").
		WithArgs(ec.CaseID, ec.BagTag, ec.CaseType, ec.Priority, ec.Status, ec.Assignee, ec.SLADeadline, ec.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	// GetBag fails, so the reasoner is never called, and UpdateCase
	// never runs: a narrative enrichment failure must not surface on
	// ApplyEffects's error return.
	mock.ExpectQuery("SELECT \\* FROM bags").
		WithArgs(ec.BagTag).
		WillReturnError(context.DeadlineExceeded)

	reasoner := &fakeReasoner{rec: &reasoning.Recommendation{Narrative: "unused"}}
	sink := NewEffectSink(co, nil, nil, nil, nil, reasoner, zap.NewNop())
	sink.now = func() time.Time { return now }

	err := sink.ApplyEffects(context.Background(), orchestrator.Effects{OpenCase: &ec})
	if err != nil {
		t.Fatalf("ApplyEffects: %v, want nil (narrative enrichment is best-effort)", err)
	}
	if reasoner.calls != 0 {
		t.Fatalf("reasoner.calls = %d, want 0", reasoner.calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestApplyEffects_OpenCase_BagNotFoundSkipsEnrichment(t *testing.T) {
	co, mock := newTestCoordinator(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	ec := domain.ExceptionCase{
		CaseID:    "case-4",
		BagTag:    "0000000004",
		CaseType:  "delayed",
		Priority:  domain.PriorityP2,
		Status:    domain.CaseOpen,
		CreatedAt: now,
	}

	mock.ExpectExec("INSERT INTO exception_cases").
		WithArgs(ec.CaseID, ec.BagTag, ec.CaseType, ec.Priority, ec.Status, ec.Assignee, ec.SLADeadline, ec.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectQuery("SELECT \\* FROM bags").
		WithArgs(ec.BagTag).
		WillReturnRows(sqlmock.NewRows([]string{"bag_tag", "routing", "status", "current_location", "risk_score", "passenger_ref", "pnr", "created_at", "updated_at", "version"}))

	reasoner := &fakeReasoner{rec: &reasoning.Recommendation{Narrative: "unused"}}
	sink := NewEffectSink(co, nil, nil, nil, nil, reasoner, zap.NewNop())
	sink.now = func() time.Time { return now }

	err := sink.ApplyEffects(context.Background(), orchestrator.Effects{OpenCase: &ec})
	if err != nil {
		t.Fatalf("ApplyEffects: %v", err)
	}
	if reasoner.calls != 0 {
		t.Fatalf("reasoner.calls = %d, want 0", reasoner.calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestApplyEffects_OpenCase_NilReasonerSkipsEnrichment(t *testing.T) {
	co, mock := newTestCoordinator(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	ec := domain.ExceptionCase{
		CaseID:    "case-3",
		BagTag:    "0000000003",
		CaseType:  "offloaded",
		Priority:  domain.PriorityP3,
		Status:    domain.CaseOpen,
		CreatedAt: now,
	}

	mock.ExpectExec("INSERT INTO exception_cases").
		WithArgs(ec.CaseID, ec.BagTag, ec.CaseType, ec.Priority, ec.Status, ec.Assignee, ec.SLADeadline, ec.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	sink := NewEffectSink(co, nil, nil, nil, nil, nil, zap.NewNop())
	sink.now = func() time.Time { return now }

	err := sink.ApplyEffects(context.Background(), orchestrator.Effects{OpenCase: &ec})
	if err != nil {
		t.Fatalf("ApplyEffects: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
