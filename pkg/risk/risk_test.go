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

package risk

import (
	"testing"

	"github.com/baggageops/core/pkg/domain"
)

func minutes(m int) *int { return &m }

func TestAssess_NoFactors_LowRiskNoConnection(t *testing.T) {
	s := Assess(Input{Status: domain.StatusLoaded, CurrentLocation: "PTY_SORTATION_3"})
	if s.Value != 0 {
		t.Errorf("Value = %v, want 0", s.Value)
	}
	if s.Level != domain.RiskLow {
		t.Errorf("Level = %v, want low", s.Level)
	}
	if s.Confidence != 0.7 {
		t.Errorf("Confidence = %v, want 0.7 without connection context", s.Confidence)
	}
	if len(s.Factors) != 0 {
		t.Errorf("Factors = %v, want none", s.Factors)
	}
}

func TestAssess_AggravatingStatus(t *testing.T) {
	s := Assess(Input{Status: domain.StatusMishandled, CurrentLocation: "PTY_SORTATION_3"})
	if s.Value != 0.4 {
		t.Errorf("Value = %v, want 0.4", s.Value)
	}
	if s.Level != domain.RiskMedium {
		t.Errorf("Level = %v, want medium", s.Level)
	}
	if len(s.Factors) != 1 || s.Factors[0] != FactorStatusAggravating {
		t.Errorf("Factors = %v", s.Factors)
	}
}

func TestAssess_NonSortationHold(t *testing.T) {
	s := Assess(Input{Status: domain.StatusInTransit, CurrentLocation: "PTY_GATE_B12"})
	if s.Value != 0.2 {
		t.Errorf("Value = %v, want 0.2", s.Value)
	}
}

func TestAssess_LoadedStatusNeverTriggersNonSortationHold(t *testing.T) {
	s := Assess(Input{Status: domain.StatusLoaded, CurrentLocation: "PTY_GATE_B12"})
	if s.Value != 0 {
		t.Errorf("Value = %v, want 0 (loaded status exempt regardless of location)", s.Value)
	}
}

func TestAssess_ConnectionMinutesBoundaries(t *testing.T) {
	cases := []struct {
		name    string
		minutes int
		want    float64
		factor  string
	}{
		{"under_30_tight", 29, 0.5, FactorConnectionTight},
		{"exactly_30_not_tight", 30, 0.3, FactorConnectionShort},
		{"under_45_short", 44, 0.3, FactorConnectionShort},
		{"exactly_45_not_short", 45, 0.1, FactorConnectionNear},
		{"under_60_near", 59, 0.1, FactorConnectionNear},
		{"exactly_60_no_factor", 60, 0, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Assess(Input{
				Status:            domain.StatusLoaded,
				CurrentLocation:   "PTY_SORTATION_3",
				ConnectionMinutes: minutes(tc.minutes),
			})
			if s.Value != tc.want {
				t.Errorf("Value = %v, want %v", s.Value, tc.want)
			}
			if s.Confidence != 1.0 {
				t.Errorf("Confidence = %v, want 1.0 with connection context", s.Confidence)
			}
			if tc.factor == "" {
				if len(s.Factors) != 0 {
					t.Errorf("Factors = %v, want none", s.Factors)
				}
				return
			}
			found := false
			for _, f := range s.Factors {
				if f == tc.factor {
					found = true
				}
			}
			if !found {
				t.Errorf("Factors = %v, want to contain %v", s.Factors, tc.factor)
			}
		})
	}
}

func TestAssess_ScoreClampedAtOne(t *testing.T) {
	s := Assess(Input{
		Status:            domain.StatusMishandled,
		CurrentLocation:   "PTY_GATE_B12",
		ConnectionMinutes: minutes(10),
	})
	if s.Value != 1.0 {
		t.Errorf("Value = %v, want clamped 1.0", s.Value)
	}
	if s.Level != domain.RiskCritical {
		t.Errorf("Level = %v, want critical", s.Level)
	}
}

func TestClassify_LevelBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  domain.RiskLevel
	}{
		{0, domain.RiskLow},
		{0.29, domain.RiskLow},
		{0.3, domain.RiskMedium},
		{0.59, domain.RiskMedium},
		{0.6, domain.RiskHigh},
		{0.79, domain.RiskHigh},
		{0.8, domain.RiskCritical},
		{1.0, domain.RiskCritical},
	}
	for _, tc := range cases {
		if got := Classify(tc.score); got != tc.want {
			t.Errorf("Classify(%v) = %v, want %v", tc.score, got, tc.want)
		}
	}
}
