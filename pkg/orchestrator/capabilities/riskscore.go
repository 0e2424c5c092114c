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

// Package capabilities implements the concrete workflow steps sequenced
// by an orchestrator.Driver: risk scoring, case management, PIR filing,
// courier dispatch, and passenger notification. Each depends on
// orchestrator for the Capability protocol; orchestrator never imports
// this package.
package capabilities

import (
	"time"

	"github.com/baggageops/core/pkg/domain"
	"github.com/baggageops/core/pkg/orchestrator"
	"github.com/baggageops/core/pkg/risk"
)

// ConnectionMinutesFn extracts the connection window from an event's
// payload, if any. Transfer events carry this; other event types return
// (nil, false).
func connectionMinutes(e domain.Event) *int {
	if tp, ok := e.Payload.(domain.TransferPayload); ok {
		return tp.ConnectionMinutes
	}
	return nil
}

// RiskScore is the first workflow step: it always runs, computing a
// fresh risk.Score from the bag's current status/location and the
// triggering event's connection context.
type RiskScore struct {
	Now func() time.Time
}

func NewRiskScore(now func() time.Time) *RiskScore {
	return &RiskScore{Now: now}
}

func (r *RiskScore) Name() string { return "risk-evaluate" }

// Evaluate always proceeds: every event re-scores its bag.
func (r *RiskScore) Evaluate(sc orchestrator.StepContext) orchestrator.Decision {
	return orchestrator.Proceed()
}

func (r *RiskScore) Apply(sc orchestrator.StepContext) (orchestrator.Effects, error) {
	score := risk.Assess(risk.Input{
		Status:            sc.Bag.Status,
		CurrentLocation:   sc.Bag.CurrentLocation,
		ConnectionMinutes: connectionMinutes(sc.Event),
	})

	assessment := &domain.RiskAssessment{
		BagTag:           sc.Bag.BagTag,
		AssessedAt:       r.Now(),
		RiskScore:        score.Value,
		RiskLevel:        score.Level,
		Factors:          score.Factors,
		Confidence:       score.Confidence,
		AlgorithmVersion: risk.AlgorithmVersion,
	}
	return orchestrator.Effects{RiskAssessment: assessment}, nil
}

// Score re-derives the RiskOutcome a later step in the same Run call
// would need. The driver does not thread RiskScore's own Effects back
// into StepContext for later steps within one Run, so downstream steps
// that need the fresh score call this directly rather than relying on
// sc.RiskScore, which callers populate from the bag's prior state.
func Score(sc orchestrator.StepContext) orchestrator.RiskOutcome {
	s := risk.Assess(risk.Input{
		Status:            sc.Bag.Status,
		CurrentLocation:   sc.Bag.CurrentLocation,
		ConnectionMinutes: connectionMinutes(sc.Event),
	})
	return orchestrator.RiskOutcome{Score: s.Value, Level: s.Level, Factors: s.Factors}
}
