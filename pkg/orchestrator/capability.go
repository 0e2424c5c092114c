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

	"github.com/baggageops/core/pkg/domain"
)

// DecisionKind is the closed set of outcomes a Capability's Evaluate can
// return.
type DecisionKind int

const (
	DecisionProceed DecisionKind = iota
	DecisionSkip
	DecisionFail
	DecisionDefer
)

// Decision is the sum type every capability step returns from Evaluate.
// Only the field matching Kind is meaningful.
type Decision struct {
	Kind       DecisionKind
	FailReason string
	DeferUntil domain.EventType // the event that will cause re-evaluation
}

func Proceed() Decision { return Decision{Kind: DecisionProceed} }
func Skip() Decision    { return Decision{Kind: DecisionSkip} }
func Fail(reason string) Decision {
	return Decision{Kind: DecisionFail, FailReason: reason}
}
func Defer(untilEvent domain.EventType) Decision {
	return Decision{Kind: DecisionDefer, DeferUntil: untilEvent}
}

// StepContext is everything a capability needs to evaluate and apply one
// workflow step. It carries no store handles: Apply returns Effects,
// which the driver funnels through the DualWriteCoordinator and
// NotificationSink. The orchestrator never invokes external services
// directly.
type StepContext struct {
	Ctx       context.Context
	Bag       domain.Bag
	Event     domain.Event
	RiskScore *RiskOutcome
	Case      *domain.ExceptionCase
}

// RiskOutcome is the result of the risk-evaluate step, threaded into
// later steps so open-or-update-case and request-courier don't
// recompute it.
type RiskOutcome struct {
	Score   float64
	Level   domain.RiskLevel
	Factors []string
}

// Effects is what Apply hands back to the driver: zero or more store
// mutations and notification enqueues, described declaratively so the
// driver (not the capability) is responsible for actually calling the
// coordinator.
type Effects struct {
	RiskAssessment     *domain.RiskAssessment
	OpenCase           *domain.ExceptionCase
	UpdateCase         *CaseUpdate
	PIRFileRequest     *PIRFileRequest
	CourierRequest     *CourierRequest
	ApprovalResolution *ApprovalResolution
	Notifications      []NotificationRequest
}

// CaseUpdate patches an existing ExceptionCase.
type CaseUpdate struct {
	CaseID    string
	NewStatus domain.CaseStatus
	Actor     string
	Summary   string
}

// PIRFileRequest describes a PIR to file via the PIRService port.
type PIRFileRequest struct {
	BagTag            string
	Type              domain.PIRType
	LastKnownLocation string
	Description       string
}

// CourierRequest describes a courier dispatch proposal. DispatchID is
// assigned by the proposing step so the same identifier names the row the
// sink persists and the one an approval_granted/approval_denied event
// later refers back to.
type CourierRequest struct {
	DispatchID         string
	BagTag             string
	DestinationAddress string
	CostEstimate       float64
	RequiresApproval   bool
}

// ApprovalResolution carries a human-in-the-loop decision on a
// pending_approval CourierDispatch back to the sink, which resumes the
// dispatch (granted) or terminates it (denied).
type ApprovalResolution struct {
	DispatchID string
	Approved   bool
	ApprovedBy string
}

// NotificationRequest describes one recipient/channel/template enqueue.
type NotificationRequest struct {
	BagTag     string
	Channel    domain.NotificationChannel
	Recipient  string
	TemplateID string
}

// IdempotencyKey is the (bag_tag, step, event_id) tuple a Sink uses to
// dedupe repeated Apply calls for the same event.
type IdempotencyKey struct {
	BagTag  string
	Step    string
	EventID string
}

// Capability is one workflow step: risk-evaluate,
// open-or-update-case, file-PIR, request-courier, or notify. Evaluate is
// pure with respect to external state already loaded into StepContext;
// Apply is where the step's Effects are computed, never executed — the
// driver executes them.
type Capability interface {
	// Name identifies the step for idempotency keys and logging.
	Name() string

	// Evaluate decides whether this step should run for the given
	// context.
	Evaluate(sc StepContext) Decision

	// Apply computes the Effects of running this step. Only called when
	// Evaluate returned Proceed.
	Apply(sc StepContext) (Effects, error)
}
