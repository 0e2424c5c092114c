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
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/baggageops/core/pkg/shared/logging"
)

// AnthropicCapability calls the Anthropic Messages API to draft case
// recommendations.
type AnthropicCapability struct {
	client  anthropic.Client
	model   anthropic.Model
	timeout time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewAnthropicCapability builds an AnthropicCapability. apiKey comes from
// the environment at wiring time, not from config.Config, so it never
// round-trips through the YAML file or a log line.
func NewAnthropicCapability(apiKey, model string, timeout time.Duration, logger *zap.Logger) *AnthropicCapability {
	if model == "" {
		model = string(anthropic.ModelClaude3_5HaikuLatest)
	}
	return &AnthropicCapability{
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:   anthropic.Model(model),
		timeout: timeout,
		now:     time.Now,
		logger:  logger,
	}
}

func (a *AnthropicCapability) Name() string { return "anthropic" }

func (a *AnthropicCapability) Recommend(ctx context.Context, cc CaseContext) (*Recommendation, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	prompt := formatPrompt(cc)

	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: 512,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic: generate recommendation: %w", err)
	}

	var narrative string
	for _, block := range msg.Content {
		if block.Type == "text" {
			narrative += block.Text
		}
	}
	if narrative == "" {
		return nil, fmt.Errorf("anthropic: empty response for case %s", cc.Case.CaseID)
	}

	a.logger.Debug("reasoning recommendation generated",
		logging.AIFields("recommend", string(a.model)).Resource("case", cc.Case.CaseID).ToZap()...)

	return &Recommendation{
		Narrative:   narrative,
		Confidence:  0.7,
		GeneratedAt: a.now(),
		Model:       string(a.model),
	}, nil
}
