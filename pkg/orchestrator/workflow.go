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
	"time"

	"go.uber.org/zap"

	"github.com/baggageops/core/pkg/shared/logging"
)

// stepBackoff is the in-workflow retry schedule, distinct
// from the coordinator's graph-projection backoff.
var stepBackoff = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// Sink is how the driver turns Effects into committed state. It is
// satisfied by an adapter wrapping pkg/coordinator, pkg/ports, and
// pkg/notification; the orchestrator itself holds no store handles.
type Sink interface {
	ApplyEffects(ctx context.Context, e Effects) error
}

// Driver sequences the fixed step list — risk-evaluate,
// open-or-update-case, file-PIR, request-courier, notify — against one
// event.
type Driver struct {
	steps  []Capability
	sink   Sink
	logger *zap.Logger
}

// NewDriver constructs a Driver over steps in execution order.
func NewDriver(steps []Capability, sink Sink, logger *zap.Logger) *Driver {
	return &Driver{steps: steps, sink: sink, logger: logger}
}

// StepOutcome records what happened to one step, surfaced for the
// caller's audit trail (a bag's timeline) and for tests.
type StepOutcome struct {
	Step string
	Kind DecisionKind
	Err  error
}

// Run executes every step against sc in order. A step's transient
// failure is retried up to 3 times with the backoff within
// this call; persistent failure defers the step (recorded in the
// returned outcome) and the driver continues to the next step — the
// workflow never aborts wholesale on one step's failure.
func (d *Driver) Run(sc StepContext) []StepOutcome {
	outcomes := make([]StepOutcome, 0, len(d.steps))
	for _, step := range d.steps {
		outcomes = append(outcomes, d.runStep(&sc, step))
	}
	return outcomes
}

// runStep evaluates and applies one step against sc. sc is a pointer so
// that open-or-update-case's effects are visible to later steps in the
// same Run call — most importantly file-pir, which gates on the case
// priority a case-open earlier in this same pass may have just set.
func (d *Driver) runStep(sc *StepContext, step Capability) StepOutcome {
	decision := step.Evaluate(*sc)
	switch decision.Kind {
	case DecisionSkip:
		return StepOutcome{Step: step.Name(), Kind: DecisionSkip}
	case DecisionDefer:
		d.logger.Info("workflow step deferred",
			logging.WorkflowFields(step.Name(), sc.Bag.BagTag).ToZap()...)
		return StepOutcome{Step: step.Name(), Kind: DecisionDefer}
	case DecisionFail:
		d.logger.Warn("workflow step failed evaluation",
			logging.WorkflowFields(step.Name(), sc.Bag.BagTag).Custom("reason", decision.FailReason).ToZap()...)
		return StepOutcome{Step: step.Name(), Kind: DecisionFail}
	}

	var lastErr error
	for _, delay := range append([]time.Duration{0}, stepBackoff...) {
		if delay > 0 {
			select {
			case <-sc.Ctx.Done():
				return StepOutcome{Step: step.Name(), Kind: DecisionDefer, Err: sc.Ctx.Err()}
			case <-time.After(delay):
			}
		}

		effects, err := step.Apply(*sc)
		if err == nil {
			if applyErr := d.sink.ApplyEffects(sc.Ctx, effects); applyErr != nil {
				lastErr = applyErr
			} else {
				applyCaseEffects(sc, effects)
				return StepOutcome{Step: step.Name(), Kind: DecisionProceed}
			}
		} else {
			lastErr = err
		}
	}

	d.logger.Warn("workflow step failed persistently, deferring",
		logging.WorkflowFields(step.Name(), sc.Bag.BagTag).Error(lastErr).ToZap()...)
	return StepOutcome{Step: step.Name(), Kind: DecisionDefer, Err: lastErr}
}

// applyCaseEffects folds a successfully-applied step's case effects back
// into sc.Case, the same way the relational store now holds them, so a
// case opened or patched earlier in this Run call is visible to every
// step that runs after it without a second round-trip to the coordinator.
func applyCaseEffects(sc *StepContext, e Effects) {
	if e.OpenCase != nil {
		c := *e.OpenCase
		sc.Case = &c
	}
	if e.UpdateCase != nil && sc.Case != nil && sc.Case.CaseID == e.UpdateCase.CaseID {
		sc.Case.Status = e.UpdateCase.NewStatus
	}
}
