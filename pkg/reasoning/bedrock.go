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

package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/baggageops/core/pkg/shared/logging"
)

// bedrockRequest is the Anthropic-on-Bedrock InvokeModel request body.
type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	Messages         []bedrockMessage `json:"messages"`
}

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// BedrockCapability calls an Anthropic model hosted on Amazon Bedrock to
// draft case recommendations, for deployments that route model traffic
// through an AWS account rather than directly to the Anthropic API.
type BedrockCapability struct {
	client  *bedrockruntime.Client
	modelID string
	timeout time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewBedrockCapability builds a BedrockCapability around an
// already-configured bedrockruntime.Client (region and credentials are
// resolved from the ambient AWS config at wiring time).
func NewBedrockCapability(client *bedrockruntime.Client, modelID string, timeout time.Duration, logger *zap.Logger) *BedrockCapability {
	return &BedrockCapability{client: client, modelID: modelID, timeout: timeout, now: time.Now, logger: logger}
}

func (b *BedrockCapability) Name() string { return "bedrock" }

func (b *BedrockCapability) Recommend(ctx context.Context, cc CaseContext) (*Recommendation, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	prompt := formatPrompt(cc)

	body, err := json.Marshal(bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        512,
		Messages:         []bedrockMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock: marshal request: %w", err)
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &b.modelID,
		ContentType: strPtr("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock: invoke model: %w", err)
	}

	var resp bedrockResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("bedrock: parse response: %w", err)
	}

	var narrative string
	for _, block := range resp.Content {
		if block.Type == "text" {
			narrative += block.Text
		}
	}
	if narrative == "" {
		return nil, fmt.Errorf("bedrock: empty response for case %s", cc.Case.CaseID)
	}

	b.logger.Debug("reasoning recommendation generated",
		logging.AIFields("recommend", b.modelID).Resource("case", cc.Case.CaseID).ToZap()...)

	return &Recommendation{
		Narrative:   narrative,
		Confidence:  0.7,
		GeneratedAt: b.now(),
		Model:       b.modelID,
	}, nil
}

func strPtr(s string) *string { return &s }
