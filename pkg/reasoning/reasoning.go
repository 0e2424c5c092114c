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

// Package reasoning generates a narrative recommendation for an open
// exception case. It sits behind the orchestrator's workflow steps, not
// in front of them: the deterministic risk/policy scoring in pkg/risk
// decides what happens, and reasoning is only consulted once a case is
// already open, to draft the summary an ops agent reads before acting
// on a courier dispatch or PIR filing.
package reasoning

import (
	"context"
	"fmt"
	"time"

	"github.com/baggageops/core/pkg/domain"
)

// Recommendation is the structured result of analyzing one exception
// case. Narrative is the free-text explanation; the remaining fields
// are parsed out of the model's response for the case timeline.
type Recommendation struct {
	Narrative       string
	SuggestedAction string
	Confidence      float64
	GeneratedAt     time.Time
	Model           string
}

// CaseContext is everything a Capability needs to draft a
// Recommendation. It carries no store handles, mirroring
// orchestrator.StepContext.
type CaseContext struct {
	Bag       domain.Bag
	Case      domain.ExceptionCase
	RiskScore float64
	RiskLevel domain.RiskLevel
	Factors   []string
}

// Capability is the reasoning provider abstraction. Two concrete
// adapters exist: an Anthropic Messages API client and a Bedrock
// InvokeModel client, selected by config.ReasoningConfig.Provider.
type Capability interface {
	Recommend(ctx context.Context, cc CaseContext) (*Recommendation, error)
	Name() string
}

const promptTemplate = `You are assisting a baggage operations team triaging an exception case.

Bag: %s
Status: %s
Current location: %s
Risk level: %s (score %.2f)
Contributing factors: %v

Case: %s (priority %s, type %s)

Respond with a short recommendation: what the ops team should do next and why, in two or three sentences. Do not invent data not given above.`

// formatPrompt renders promptTemplate for one case, shared by every
// Capability adapter so the wording stays in one place.
func formatPrompt(cc CaseContext) string {
	return fmt.Sprintf(promptTemplate,
		cc.Bag.BagTag, cc.Bag.Status, cc.Bag.CurrentLocation,
		cc.RiskLevel, cc.RiskScore, cc.Factors,
		cc.Case.CaseID, cc.Case.Priority, cc.Case.CaseType)
}
