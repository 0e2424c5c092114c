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
	"time"

	"go.uber.org/zap"

	"github.com/baggageops/core/pkg/coordinator"
	"github.com/baggageops/core/pkg/domain"
	"github.com/baggageops/core/pkg/notification"
	opsslack "github.com/baggageops/core/pkg/notification/slack"
	"github.com/baggageops/core/pkg/orchestrator"
	"github.com/baggageops/core/pkg/ports"
	"github.com/baggageops/core/pkg/reasoning"
	shrderrors "github.com/baggageops/core/pkg/shared/errors"
)

// EffectSink implements orchestrator.Sink: it is the only place the
// orchestrator's declarative Effects turn into calls against the
// DualWriteCoordinator, the PIR/courier ports, and the notification
// dispatcher. The orchestrator package itself holds none of these
// handles.
type EffectSink struct {
	coordinator *coordinator.Coordinator
	pir         ports.PIRService
	courier     ports.CourierService
	notifier    *notification.Dispatcher
	ops         opsslack.CaseAlerter // nil disables ops alerting (e.g. in tests)
	reasoner    reasoning.Capability // nil disables narrative enrichment
	now         func() time.Time
	logger      *zap.Logger
}

// NewEffectSink wires an EffectSink from its concrete adapters. ops and
// reasoner may both be nil — no Slack channel configured disables
// alerting, no reasoning capability configured disables narrative
// enrichment — and neither affects whether a case actually gets opened.
func NewEffectSink(co *coordinator.Coordinator, pir ports.PIRService, courier ports.CourierService, notifier *notification.Dispatcher, ops opsslack.CaseAlerter, reasoner reasoning.Capability, logger *zap.Logger) *EffectSink {
	return &EffectSink{coordinator: co, pir: pir, courier: courier, notifier: notifier, ops: ops, reasoner: reasoner, now: time.Now, logger: logger}
}

// ApplyEffects implements orchestrator.Sink.
func (s *EffectSink) ApplyEffects(ctx context.Context, e orchestrator.Effects) error {
	var errs []error

	if e.RiskAssessment != nil {
		if err := s.coordinator.RecordRisk(ctx, *e.RiskAssessment); err != nil {
			errs = append(errs, shrderrors.Wrapf(err, "record risk assessment for %s", e.RiskAssessment.BagTag))
		}
	}

	if e.OpenCase != nil {
		if err := s.coordinator.OpenCase(ctx, *e.OpenCase); err != nil {
			errs = append(errs, shrderrors.Wrapf(err, "open case %s", e.OpenCase.CaseID))
		} else {
			s.alertIfEscalated(ctx, *e.OpenCase, "case opened")
			s.enrichWithNarrative(ctx, *e.OpenCase, e.RiskAssessment)
		}
	}

	if e.UpdateCase != nil {
		entry := domain.TimelineEntry{At: s.now(), Actor: e.UpdateCase.Actor, Summary: e.UpdateCase.Summary}
		if err := s.coordinator.UpdateCase(ctx, e.UpdateCase.CaseID, e.UpdateCase.NewStatus, entry); err != nil {
			errs = append(errs, shrderrors.Wrapf(err, "update case %s", e.UpdateCase.CaseID))
		}
	}

	if e.PIRFileRequest != nil {
		if _, err := s.pir.File(ctx, *e.PIRFileRequest); err != nil {
			errs = append(errs, shrderrors.Wrapf(err, "file PIR for %s", e.PIRFileRequest.BagTag))
		}
	}

	if e.CourierRequest != nil {
		if err := s.applyCourierRequest(ctx, *e.CourierRequest); err != nil {
			errs = append(errs, err)
		}
	}

	if e.ApprovalResolution != nil {
		if err := s.applyApprovalResolution(ctx, *e.ApprovalResolution); err != nil {
			errs = append(errs, err)
		}
	}

	for _, n := range e.Notifications {
		if _, err := s.notifier.Dispatch(ctx, n); err != nil {
			errs = append(errs, shrderrors.Wrapf(err, "dispatch notification %s/%s", n.BagTag, n.Channel))
		}
	}

	return shrderrors.Chain(errs...)
}

// applyCourierRequest persists req as pending_approval and stops there
// when it requires a human decision; otherwise it books the courier
// immediately and persists the result as booked. The dispatch record
// always gets written, whichever branch is taken, so ResolveCourierApproval
// always has a row to resolve against later.
func (s *EffectSink) applyCourierRequest(ctx context.Context, req orchestrator.CourierRequest) error {
	if req.RequiresApproval {
		dispatch := domain.CourierDispatch{
			DispatchID:         req.DispatchID,
			BagTag:             req.BagTag,
			DestinationAddress: req.DestinationAddress,
			CostEstimate:       req.CostEstimate,
			Status:             domain.DispatchPendingApproval,
			RequiresApproval:   true,
			CreatedAt:          s.now(),
		}
		if err := s.coordinator.CreateCourierDispatch(ctx, dispatch); err != nil {
			return shrderrors.Wrapf(err, "persist pending-approval dispatch for %s", req.BagTag)
		}
		return nil
	}

	if _, err := s.courier.Dispatch(ctx, req); err != nil {
		return shrderrors.Wrapf(err, "dispatch courier for %s", req.BagTag)
	}
	dispatch := domain.CourierDispatch{
		DispatchID:         req.DispatchID,
		BagTag:             req.BagTag,
		DestinationAddress: req.DestinationAddress,
		CostEstimate:       req.CostEstimate,
		Status:             domain.DispatchBooked,
		CreatedAt:          s.now(),
	}
	if err := s.coordinator.CreateCourierDispatch(ctx, dispatch); err != nil {
		// The courier has already been booked; failing ApplyEffects here
		// would redeliver the event and book a second courier. Log and
		// move on, same trade-off as enrichWithNarrative's best-effort write.
		s.logger.Warn("failed to persist booked courier dispatch", zap.String("bag_tag", req.BagTag), zap.Error(err))
	}
	return nil
}

// applyApprovalResolution resumes or cancels a suspended CourierDispatch.
// On grant it books the dispatch with the courier service and advances it
// to booked, then enqueues the passenger notification spec.md calls for;
// on deny it leaves the dispatch cancelled, which ResolveCourierApproval
// already applied.
func (s *EffectSink) applyApprovalResolution(ctx context.Context, r orchestrator.ApprovalResolution) error {
	dispatch, err := s.coordinator.ResolveCourierApproval(ctx, r.DispatchID, r.Approved, r.ApprovedBy)
	if err != nil {
		return shrderrors.Wrapf(err, "resolve approval for dispatch %s", r.DispatchID)
	}
	if !r.Approved {
		return nil
	}

	if _, err := s.courier.Dispatch(ctx, orchestrator.CourierRequest{
		BagTag:             dispatch.BagTag,
		DestinationAddress: dispatch.DestinationAddress,
		CostEstimate:       dispatch.CostEstimate,
	}); err != nil {
		return shrderrors.Wrapf(err, "book approved dispatch %s", r.DispatchID)
	}
	if err := s.coordinator.MarkCourierDispatchBooked(ctx, r.DispatchID); err != nil {
		s.logger.Warn("failed to mark dispatch booked", zap.String("dispatch_id", r.DispatchID), zap.Error(err))
	}
	s.notifyApprovalGranted(ctx, dispatch)
	return nil
}

// notifyApprovalGranted is best-effort: the dispatch is already booked by
// the time this runs, so a notification failure never fails ApplyEffects.
func (s *EffectSink) notifyApprovalGranted(ctx context.Context, dispatch domain.CourierDispatch) {
	if s.notifier == nil {
		return
	}
	bag, err := s.coordinator.GetBag(ctx, dispatch.BagTag)
	if err != nil || bag == nil || bag.PNR == "" {
		return
	}
	req := orchestrator.NotificationRequest{
		BagTag: dispatch.BagTag, Channel: domain.ChannelSMS, Recipient: bag.PNR, TemplateID: "courier-dispatch-booked",
	}
	if _, err := s.notifier.Dispatch(ctx, req); err != nil {
		s.logger.Warn("failed to notify passenger of booked courier dispatch", zap.String("bag_tag", dispatch.BagTag), zap.Error(err))
	}
}

// alertIfEscalated posts to the ops Slack channel when the newly opened
// case is P0 or P1. Notification.Dispatcher's dedup window never
// applies here — this channel is ops-only and every escalation matters,
// not just the first one inside a ten-minute window.
func (s *EffectSink) alertIfEscalated(ctx context.Context, ec domain.ExceptionCase, reason string) {
	if s.ops == nil {
		return
	}
	if ec.Priority != domain.PriorityP0 && ec.Priority != domain.PriorityP1 {
		return
	}
	if err := s.ops.AlertCase(ctx, ec, reason); err != nil {
		s.logger.Warn("failed to post ops alert", zap.String("case_id", ec.CaseID), zap.Error(err))
	}
}

// enrichWithNarrative drafts a reasoning.Capability recommendation for a
// freshly opened case and appends it to the case timeline. It is
// best-effort: a failure here never fails ApplyEffects, since the case
// is already open by the time this runs and the narrative only helps an
// ops agent triage it faster.
func (s *EffectSink) enrichWithNarrative(ctx context.Context, ec domain.ExceptionCase, risk *domain.RiskAssessment) {
	if s.reasoner == nil {
		return
	}

	bag, err := s.coordinator.GetBag(ctx, ec.BagTag)
	if err != nil {
		s.logger.Warn("failed to load bag for narrative enrichment", zap.String("case_id", ec.CaseID), zap.Error(err))
		return
	}
	if bag == nil {
		s.logger.Warn("bag not found for narrative enrichment", zap.String("case_id", ec.CaseID), zap.String("bag_tag", ec.BagTag))
		return
	}

	cc := reasoning.CaseContext{Bag: *bag, Case: ec}
	if risk != nil {
		cc.RiskScore = risk.RiskScore
		cc.RiskLevel = risk.RiskLevel
		cc.Factors = risk.Factors
	}

	rec, err := s.reasoner.Recommend(ctx, cc)
	if err != nil {
		s.logger.Warn("reasoning capability failed", zap.String("case_id", ec.CaseID), zap.String("capability", s.reasoner.Name()), zap.Error(err))
		return
	}

	entry := domain.TimelineEntry{At: s.now(), Actor: "reasoning-capability", Summary: rec.Narrative}
	if err := s.coordinator.UpdateCase(ctx, ec.CaseID, ec.Status, entry); err != nil {
		s.logger.Warn("failed to append narrative to case timeline", zap.String("case_id", ec.CaseID), zap.Error(err))
	}
}
