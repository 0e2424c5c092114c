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

// Package risk implements the deterministic baggage risk-scoring
// algorithm. The function is pure: no clock reads, no I/O, no randomness.
// A change to the algorithm's arithmetic requires a version bump so every
// persisted RiskAssessment stays attributable to the scoring rules that
// produced it.
package risk

import (
	"sort"
	"strings"

	"github.com/baggageops/core/pkg/domain"
)

// AlgorithmVersion is persisted on every RiskAssessment this package
// produces. Bump it, never mutate scoring behavior under the same number.
const AlgorithmVersion = 1

// Factor labels, one per scoring clause that can contribute to the score.
const (
	FactorStatusAggravating = "status_aggravating"
	FactorNonSortationHold  = "non_sortation_hold"
	FactorConnectionTight   = "connection_under_30m"
	FactorConnectionShort   = "connection_under_45m"
	FactorConnectionNear    = "connection_under_60m"
)

var aggravatingStatuses = map[domain.BagStatus]bool{
	domain.StatusMishandled: true,
	domain.StatusDelayed:    true,
	domain.StatusOffloaded:  true,
}

// Input is the scoring function's argument: a bag's status and location
// plus optional connection context.
type Input struct {
	Status            domain.BagStatus
	CurrentLocation   string
	ConnectionMinutes *int // nil when no known upcoming connection
}

// Score is the result of one scoring pass.
type Score struct {
	Value      float64
	Level      domain.RiskLevel
	Factors    []string
	Confidence float64
}

// Assess runs the scoring algorithm against in and returns the resulting
// Score.
func Assess(in Input) Score {
	base := 0.0
	var factors []string

	if aggravatingStatuses[in.Status] {
		base += 0.4
		factors = append(factors, FactorStatusAggravating)
	}
	if !strings.Contains(in.CurrentLocation, "sortation") && in.Status != domain.StatusLoaded {
		base += 0.2
		factors = append(factors, FactorNonSortationHold)
	}

	confidence := 0.7
	if in.ConnectionMinutes != nil {
		confidence = 1.0
		m := *in.ConnectionMinutes
		switch {
		case m < 30:
			base += 0.5
			factors = append(factors, FactorConnectionTight)
		case m < 45:
			base += 0.3
			factors = append(factors, FactorConnectionShort)
		case m < 60:
			base += 0.1
			factors = append(factors, FactorConnectionNear)
		}
	}

	score := base
	if score > 1.0 {
		score = 1.0
	}

	sort.Strings(factors)
	return Score{
		Value:      score,
		Level:      Classify(score),
		Factors:    factors,
		Confidence: confidence,
	}
}

// Classify maps a score in [0,1] to its risk level. Intervals are
// half-open on the upper bound: [0,0.3) low, [0.3,0.6) medium, [0.6,0.8)
// high, [0.8,1.0] critical.
func Classify(score float64) domain.RiskLevel {
	switch {
	case score < 0.3:
		return domain.RiskLow
	case score < 0.6:
		return domain.RiskMedium
	case score < 0.8:
		return domain.RiskHigh
	default:
		return domain.RiskCritical
	}
}
