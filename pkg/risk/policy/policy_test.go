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

package policy

import (
	"context"
	"testing"

	"github.com/baggageops/core/pkg/domain"
)

func defaultThresholds() Thresholds {
	return Thresholds{High: 0.7, Critical: 0.9, AutoDispatch: 0.8}
}

func TestEvaluate_BelowHighThreshold_Monitor(t *testing.T) {
	eng, err := NewEngine(context.Background())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	d, err := eng.Evaluate(context.Background(), Input{RiskScore: 0.5, Thresholds: defaultThresholds()})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d.Action != "monitor" {
		t.Errorf("Action = %q, want monitor", d.Action)
	}
}

func TestEvaluate_HighRisk_OpenCase(t *testing.T) {
	eng, err := NewEngine(context.Background())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	d, err := eng.Evaluate(context.Background(), Input{RiskScore: 0.75, Thresholds: defaultThresholds()})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d.Action != "open_case" {
		t.Errorf("Action = %q, want open_case", d.Action)
	}
}

func TestEvaluate_CriticalRisk_OpenCasePriority(t *testing.T) {
	eng, err := NewEngine(context.Background())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	d, err := eng.Evaluate(context.Background(), Input{RiskScore: 0.95, Thresholds: defaultThresholds()})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d.Action != "open_case_priority" {
		t.Errorf("Action = %q, want open_case_priority", d.Action)
	}
}

func TestEvaluate_AutoDispatch_RequiresP0OrP1(t *testing.T) {
	eng, err := NewEngine(context.Background())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	d, err := eng.Evaluate(context.Background(), Input{
		RiskScore:    0.85,
		CasePriority: domain.PriorityP0,
		Thresholds:   defaultThresholds(),
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d.Action != "auto_dispatch" {
		t.Errorf("Action = %q, want auto_dispatch", d.Action)
	}
}

func TestEvaluate_RequiresApproval_WhenDispatchValueExceedsThreshold(t *testing.T) {
	eng, err := NewEngine(context.Background())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	d, err := eng.Evaluate(context.Background(), Input{
		RiskScore:              0.95,
		DispatchValue:          5000,
		ApprovalValueThreshold: 1000,
		Thresholds:             defaultThresholds(),
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !d.RequiresApproval {
		t.Error("expected RequiresApproval = true when dispatch value exceeds threshold")
	}
}

func TestEvaluate_CustomThresholdsOverrideDefaults(t *testing.T) {
	eng, err := NewEngine(context.Background())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	d, err := eng.Evaluate(context.Background(), Input{
		RiskScore:  0.5,
		Thresholds: Thresholds{High: 0.4, Critical: 0.9, AutoDispatch: 0.8},
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d.Action != "open_case" {
		t.Errorf("Action = %q, want open_case under lowered high threshold", d.Action)
	}
}
