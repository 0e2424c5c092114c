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

// Package slack implements the internal operations alert channel. It is
// used only for ExceptionCase P0/P1 escalations to the ops desk and
// never carries passenger-facing Notification traffic, so it sits
// outside notification.ChannelSender and the dedup window entirely:
// an ops desk wants every escalation, not a deduplicated summary.
package slack

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/baggageops/core/pkg/domain"
)

// CaseAlerter posts ExceptionCase escalations to a Slack channel.
type CaseAlerter interface {
	AlertCase(ctx context.Context, c domain.ExceptionCase, reason string) error
}

// Client wraps a slack-go client bound to a single ops channel.
type Client struct {
	api       *slack.Client
	channelID string
	logger    *zap.Logger
}

// NewClient builds a Client posting to channelID using a bot token.
// token is sourced from the environment at wiring time, never from
// config.Config. Extra slack.Option values (e.g. slack.OptionAPIURL for
// tests) are passed through to the underlying slack-go client.
func NewClient(token, channelID string, logger *zap.Logger, opts ...slack.Option) *Client {
	return &Client{
		api:       slack.New(token, opts...),
		channelID: channelID,
		logger:    logger,
	}
}

// AlertCase posts c to the ops channel. It is only called for P0/P1
// cases; the caller is responsible for that filter since Client has no
// visibility into case-open policy. A non-P0/P1 priority is still
// posted (Client trusts its caller) but logged at a lower level.
func (c *Client) AlertCase(ctx context.Context, ec domain.ExceptionCase, reason string) error {
	if ec.Priority != domain.PriorityP0 && ec.Priority != domain.PriorityP1 {
		c.logger.Warn("alerting on a case below P0/P1", zap.String("case_id", ec.CaseID), zap.String("priority", string(ec.Priority)))
	}

	attachment := slack.Attachment{
		Color:      colorForPriority(ec.Priority),
		Title:      fmt.Sprintf("[%s] %s — %s", ec.Priority, ec.CaseType, ec.BagTag),
		Text:       reason,
		Footer:     "baggage-ops",
		MarkdownIn: []string{"text"},
		Fields: []slack.AttachmentField{
			{Title: "Case", Value: ec.CaseID, Short: true},
			{Title: "Bag Tag", Value: ec.BagTag, Short: true},
			{Title: "Status", Value: string(ec.Status), Short: true},
			{Title: "SLA Deadline", Value: ec.SLADeadline.Format("15:04:05 MST"), Short: true},
		},
	}

	_, _, err := c.api.PostMessageContext(ctx, c.channelID,
		slack.MsgOptionText(fmt.Sprintf("Exception case opened: %s", ec.BagTag), false),
		slack.MsgOptionAttachments(attachment),
	)
	if err != nil {
		return fmt.Errorf("post ops alert for case %s: %w", ec.CaseID, err)
	}

	c.logger.Info("ops alert posted", zap.String("case_id", ec.CaseID), zap.String("priority", string(ec.Priority)))
	return nil
}

func colorForPriority(p domain.CasePriority) string {
	switch p {
	case domain.PriorityP0:
		return "danger"
	case domain.PriorityP1:
		return "warning"
	default:
		return "#cccccc"
	}
}
