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
	"time"

	"github.com/baggageops/core/pkg/domain"
	"github.com/baggageops/core/pkg/orchestrator"
	"github.com/baggageops/core/pkg/risk/policy"
)

// CaseManage opens a new ExceptionCase when risk crosses the high
// threshold and none is open, or appends a timeline entry to an
// existing open case when risk moves but stays open.
type CaseManage struct {
	Policy     *policy.Engine
	Thresholds policy.Thresholds
	Now        func() time.Time
	NewCaseID  func() string
}

func NewCaseManage(p *policy.Engine, th policy.Thresholds, now func() time.Time, newCaseID func() string) *CaseManage {
	return &CaseManage{Policy: p, Thresholds: th, Now: now, NewCaseID: newCaseID}
}

func (c *CaseManage) Name() string { return "open-or-update-case" }

// Evaluate skips when the bag's risk is below the high threshold and no
// case is already open; there is nothing to open or update.
func (c *CaseManage) Evaluate(sc orchestrator.StepContext) orchestrator.Decision {
	out := Score(sc)
	if out.Score < c.Thresholds.High && sc.Case == nil {
		return orchestrator.Skip()
	}
	return orchestrator.Proceed()
}

func (c *CaseManage) Apply(sc orchestrator.StepContext) (orchestrator.Effects, error) {
	out := Score(sc)
	decision, err := c.Policy.Evaluate(sc.Ctx, policy.Input{
		RiskScore:    out.Score,
		CasePriority: priorityForLevel(out.Level),
		Thresholds:   c.Thresholds,
	})
	if err != nil {
		return orchestrator.Effects{}, fmt.Errorf("evaluate case policy: %w", err)
	}

	summary := fmt.Sprintf("risk re-scored at %.2f (%s): %s", out.Score, out.Level, decision.Action)

	if sc.Case == nil {
		if decision.Action == "monitor" {
			return orchestrator.Effects{}, nil
		}
		return orchestrator.Effects{
			OpenCase: &domain.ExceptionCase{
				CaseID:    c.NewCaseID(),
				BagTag:    sc.Bag.BagTag,
				CaseType:  string(sc.Event.EventType),
				Priority:  priorityForLevel(out.Level),
				Status:    domain.CaseOpen,
				CreatedAt: c.Now(),
				Timeline:  []domain.TimelineEntry{{At: c.Now(), Actor: "risk-evaluate", Summary: summary}},
			},
		}, nil
	}

	return orchestrator.Effects{
		UpdateCase: &orchestrator.CaseUpdate{
			CaseID:    sc.Case.CaseID,
			NewStatus: sc.Case.Status,
			Actor:     "risk-evaluate",
			Summary:   summary,
		},
	}, nil
}

func priorityForLevel(l domain.RiskLevel) domain.CasePriority {
	switch l {
	case domain.RiskCritical:
		return domain.PriorityP0
	case domain.RiskHigh:
		return domain.PriorityP1
	case domain.RiskMedium:
		return domain.PriorityP2
	default:
		return domain.PriorityP3
	}
}
