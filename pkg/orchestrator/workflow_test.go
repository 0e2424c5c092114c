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

package orchestrator

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/baggageops/core/pkg/domain"
)

type stubCapability struct {
	name     string
	decision Decision
	effects  Effects
	applyErr error
}

func (s *stubCapability) Name() string                    { return s.name }
func (s *stubCapability) Evaluate(sc StepContext) Decision { return s.decision }
func (s *stubCapability) Apply(sc StepContext) (Effects, error) {
	return s.effects, s.applyErr
}

type recordingSink struct {
	applied []Effects
	failN   int
}

func (r *recordingSink) ApplyEffects(ctx context.Context, e Effects) error {
	if r.failN > 0 {
		r.failN--
		return fmt.Errorf("sink transient failure")
	}
	r.applied = append(r.applied, e)
	return nil
}

func testStepContext() StepContext {
	return StepContext{Ctx: context.Background(), Bag: domain.Bag{BagTag: "0000000001"}}
}

func TestDriver_SkipStepProducesSkipOutcome(t *testing.T) {
	step := &stubCapability{name: "risk-evaluate", decision: Skip()}
	sink := &recordingSink{}
	d := NewDriver([]Capability{step}, sink, zap.NewNop())

	outcomes := d.Run(testStepContext())
	if len(outcomes) != 1 || outcomes[0].Kind != DecisionSkip {
		t.Fatalf("outcomes = %+v, want single Skip", outcomes)
	}
	if len(sink.applied) != 0 {
		t.Error("sink should not have been called for a skipped step")
	}
}

func TestDriver_ProceedAppliesEffectsOnce(t *testing.T) {
	step := &stubCapability{
		name:     "notify",
		decision: Proceed(),
		effects:  Effects{Notifications: []NotificationRequest{{BagTag: "0000000001"}}},
	}
	sink := &recordingSink{}
	d := NewDriver([]Capability{step}, sink, zap.NewNop())

	outcomes := d.Run(testStepContext())
	if len(outcomes) != 1 || outcomes[0].Kind != DecisionProceed {
		t.Fatalf("outcomes = %+v, want single Proceed", outcomes)
	}
	if len(sink.applied) != 1 {
		t.Fatalf("sink applied %d times, want 1", len(sink.applied))
	}
}

func TestDriver_FailEvaluationShortCircuitsApply(t *testing.T) {
	step := &stubCapability{name: "file-pir", decision: Fail("worldtracer unavailable")}
	sink := &recordingSink{}
	d := NewDriver([]Capability{step}, sink, zap.NewNop())

	outcomes := d.Run(testStepContext())
	if outcomes[0].Kind != DecisionFail {
		t.Fatalf("outcomes = %+v, want Fail", outcomes)
	}
	if len(sink.applied) != 0 {
		t.Error("Apply should never be called when Evaluate returns Fail")
	}
}

type caseReadingCapability struct {
	name string
	seen []*domain.ExceptionCase
}

func (c *caseReadingCapability) Name() string { return c.name }
func (c *caseReadingCapability) Evaluate(sc StepContext) Decision {
	c.seen = append(c.seen, sc.Case)
	return Proceed()
}
func (c *caseReadingCapability) Apply(sc StepContext) (Effects, error) { return Effects{}, nil }

func TestDriver_RunPropagatesOpenedCaseToLaterSteps(t *testing.T) {
	openStep := &stubCapability{
		name:     "open-or-update-case",
		decision: Proceed(),
		effects: Effects{OpenCase: &domain.ExceptionCase{
			CaseID:   "case-1",
			BagTag:   "0000000001",
			Priority: domain.PriorityP1,
			Status:   domain.CaseOpen,
		}},
	}
	fileStep := &caseReadingCapability{name: "file-pir"}
	sink := &recordingSink{}
	d := NewDriver([]Capability{openStep, fileStep}, sink, zap.NewNop())

	sc := testStepContext()
	if sc.Case != nil {
		t.Fatal("sanity: testStepContext should start with no open case")
	}

	d.Run(sc)

	if len(fileStep.seen) != 1 || fileStep.seen[0] == nil {
		t.Fatalf("file-pir saw Case = %+v, want the case opened by the prior step", fileStep.seen)
	}
	if fileStep.seen[0].CaseID != "case-1" || fileStep.seen[0].Priority != domain.PriorityP1 {
		t.Errorf("file-pir saw %+v, want case-1/P1", fileStep.seen[0])
	}
}

func TestDriver_RunSequencesMultipleStepsIndependently(t *testing.T) {
	riskStep := &stubCapability{name: "risk-evaluate", decision: Proceed()}
	caseStep := &stubCapability{name: "open-or-update-case", decision: Skip()}
	notifyStep := &stubCapability{name: "notify", decision: Proceed()}
	sink := &recordingSink{}
	d := NewDriver([]Capability{riskStep, caseStep, notifyStep}, sink, zap.NewNop())

	outcomes := d.Run(testStepContext())
	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(outcomes))
	}
	if outcomes[0].Kind != DecisionProceed || outcomes[1].Kind != DecisionSkip || outcomes[2].Kind != DecisionProceed {
		t.Fatalf("outcomes = %+v", outcomes)
	}
}
