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

// Package orchestrator drives a Bag's state machine and the per-event
// workflow: an explicit transition table, a small
// Capability protocol each workflow step implements, and a driver that
// sequences risk-evaluate, open-or-update-case, file-PIR,
// request-courier, and notify without ever blocking the worker on an
// external decision.
package orchestrator

import (
	"fmt"

	"github.com/baggageops/core/pkg/domain"
)

// ErrInvalidTransition is returned by Transition when no table entry
// matches (from, eventType) — or, for anomaly events, when severity
// does not clear the high-severity bar.
var ErrInvalidTransition = fmt.Errorf("invalid_transition")

func atLeastHigh(s domain.Severity) bool {
	return s == domain.SeverityHigh || s == domain.SeverityCritical
}

// Transition implements the transition table. anomalySeverity
// is ignored unless eventType is domain.EventAnomaly. approval_granted and
// approval_denied events never move a bag's status themselves — they
// resume or cancel a suspended courier dispatch (pkg/orchestrator/
// capabilities.CourierDecide) — so they pass through as a no-op rather
// than an invalid transition.
func Transition(from domain.BagStatus, eventType domain.EventType, anomalySeverity domain.Severity) (domain.BagStatus, error) {
	if eventType == domain.EventAnomaly {
		if !from.Terminal() && atLeastHigh(anomalySeverity) {
			return domain.StatusMishandled, nil
		}
		return from, ErrInvalidTransition
	}
	if eventType == domain.EventApprovalGrant || eventType == domain.EventApprovalDeny {
		return from, nil
	}

	switch {
	case from == "" && eventType == domain.EventCheckIn:
		return domain.StatusCheckedIn, nil
	case from == domain.StatusCheckedIn && eventType == domain.EventSortation:
		return domain.StatusInTransit, nil
	case from == domain.StatusInTransit && eventType == domain.EventLoad:
		return domain.StatusLoaded, nil
	case from == domain.StatusLoaded && eventType == domain.EventArrival:
		return domain.StatusArrived, nil
	case from == domain.StatusArrived && eventType == domain.EventClaim:
		return domain.StatusClaimed, nil
	case (from == domain.StatusInTransit || from == domain.StatusLoaded) && eventType == domain.EventOffload:
		return domain.StatusOffloaded, nil
	default:
		return from, ErrInvalidTransition
	}
}

// TransitionToDelayed applies the stale-bag timer condition (no scan for
// over 2h and risk >= high) independent of any incoming event. Callers
// invoke this from a scheduled sweep, not from the event-driven path.
func TransitionToDelayed(from domain.BagStatus, riskLevel domain.RiskLevel) domain.BagStatus {
	if from.Terminal() {
		return from
	}
	if riskLevel == domain.RiskHigh || riskLevel == domain.RiskCritical {
		return domain.StatusDelayed
	}
	return from
}
