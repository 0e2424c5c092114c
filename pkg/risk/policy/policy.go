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

// Package policy evaluates threshold-driven orchestrator decisions
// (open-case / dispatch / approval-gate) through an embedded Rego policy
// rather than hardcoded Go conditionals, so operators can retune
// thresholds without a redeploy.
// The deterministic risk score itself stays a pure Go function in
// package risk; only the threshold-to-action mapping is policy-driven.
package policy

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/open-policy-agent/opa/rego"

	"github.com/baggageops/core/pkg/domain"
)

//go:embed thresholds.rego
var thresholdsRego string

// Thresholds mirrors the HIGH_RISK_THRESHOLD / CRITICAL_RISK_THRESHOLD /
// AUTO_DISPATCH_THRESHOLD environment variables.
type Thresholds struct {
	High         float64
	Critical     float64
	AutoDispatch float64
}

// Input is the evaluation context for one threshold decision.
type Input struct {
	RiskScore              float64
	CasePriority           domain.CasePriority
	DispatchValue          float64
	ApprovalValueThreshold float64
	Thresholds             Thresholds
}

// Decision is the outcome of one policy evaluation.
type Decision struct {
	Action           string
	RequiresApproval bool
}

// Engine wraps a compiled Rego query over the embedded threshold policy.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine compiles the embedded policy once; reuse the Engine across
// evaluations.
func NewEngine(ctx context.Context) (*Engine, error) {
	q, err := rego.New(
		rego.Query("x := data.baggageops.risk; action := x.action; requires_approval := x.requires_approval"),
		rego.Module("thresholds.rego", thresholdsRego),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile threshold policy: %w", err)
	}
	return &Engine{query: q}, nil
}

// Evaluate runs the policy against in and returns the resulting Decision.
func (e *Engine) Evaluate(ctx context.Context, in Input) (Decision, error) {
	input := map[string]interface{}{
		"risk_score":               in.RiskScore,
		"case_priority":            string(in.CasePriority),
		"dispatch_value":           in.DispatchValue,
		"approval_value_threshold": in.ApprovalValueThreshold,
		"thresholds": map[string]interface{}{
			"high":          in.Thresholds.High,
			"critical":      in.Thresholds.Critical,
			"auto_dispatch": in.Thresholds.AutoDispatch,
		},
	}

	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, fmt.Errorf("evaluate threshold policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Bindings) == 0 {
		return Decision{Action: "monitor"}, nil
	}

	action, _ := rs[0].Bindings["action"].(string)
	if action == "" {
		action = "monitor"
	}
	requiresApproval, _ := rs[0].Bindings["requires_approval"].(bool)

	return Decision{Action: action, RequiresApproval: requiresApproval}, nil
}
