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

package capabilities

import (
	"fmt"

	"github.com/baggageops/core/pkg/domain"
	"github.com/baggageops/core/pkg/orchestrator"
	"github.com/baggageops/core/pkg/risk/policy"
)

// CourierDecide proposes a courier dispatch for a mishandled or
// claimed-but-undelivered bag once risk clears the auto-dispatch
// threshold. A dispatch above the approval-value threshold is flagged
// RequiresApproval: the sink persists it as pending_approval and never
// books it inline. This same step also handles the
// approval_granted/approval_denied events that later resume or cancel
// that suspended dispatch, since both sides of the gate share the same
// DispatchID-keyed state.
type CourierDecide struct {
	Policy                 *policy.Engine
	Thresholds             policy.Thresholds
	ApprovalValueThreshold float64
	EstimateCost           func(destination string) float64
	DestinationFor         func(bag domain.Bag) string
	NewDispatchID          func() string
}

func NewCourierDecide(p *policy.Engine, th policy.Thresholds, approvalValueThreshold float64, estimateCost func(string) float64, destinationFor func(domain.Bag) string, newDispatchID func() string) *CourierDecide {
	return &CourierDecide{
		Policy:                 p,
		Thresholds:             th,
		ApprovalValueThreshold: approvalValueThreshold,
		EstimateCost:           estimateCost,
		DestinationFor:         destinationFor,
		NewDispatchID:          newDispatchID,
	}
}

func (c *CourierDecide) Name() string { return "request-courier" }

func isApprovalEvent(t domain.EventType) bool {
	return t == domain.EventApprovalGrant || t == domain.EventApprovalDeny
}

func (c *CourierDecide) Evaluate(sc orchestrator.StepContext) orchestrator.Decision {
	if isApprovalEvent(sc.Event.EventType) {
		return orchestrator.Proceed()
	}
	if sc.Bag.Status != domain.StatusMishandled && sc.Bag.Status != domain.StatusDelayed {
		return orchestrator.Skip()
	}
	out := Score(sc)
	if out.Score < c.Thresholds.AutoDispatch {
		return orchestrator.Skip()
	}
	return orchestrator.Proceed()
}

func (c *CourierDecide) Apply(sc orchestrator.StepContext) (orchestrator.Effects, error) {
	if isApprovalEvent(sc.Event.EventType) {
		payload, ok := sc.Event.Payload.(domain.ApprovalPayload)
		if !ok {
			return orchestrator.Effects{}, fmt.Errorf("%s event missing ApprovalPayload", sc.Event.EventType)
		}
		return orchestrator.Effects{
			ApprovalResolution: &orchestrator.ApprovalResolution{
				DispatchID: payload.DispatchID,
				Approved:   sc.Event.EventType == domain.EventApprovalGrant,
				ApprovedBy: payload.ApprovedBy,
			},
		}, nil
	}

	out := Score(sc)
	destination := c.DestinationFor(sc.Bag)
	cost := c.EstimateCost(destination)

	decision, err := c.Policy.Evaluate(sc.Ctx, policy.Input{
		RiskScore:              out.Score,
		DispatchValue:          cost,
		ApprovalValueThreshold: c.ApprovalValueThreshold,
		Thresholds:             c.Thresholds,
	})
	if err != nil {
		return orchestrator.Effects{}, fmt.Errorf("evaluate courier policy: %w", err)
	}

	return orchestrator.Effects{
		CourierRequest: &orchestrator.CourierRequest{
			DispatchID:         c.NewDispatchID(),
			BagTag:             sc.Bag.BagTag,
			DestinationAddress: destination,
			CostEstimate:       cost,
			RequiresApproval:   decision.RequiresApproval || cost > c.ApprovalValueThreshold,
		},
	}, nil
}
