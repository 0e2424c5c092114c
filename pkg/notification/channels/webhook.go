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

// Package channels implements the passenger-facing notification.ChannelSender
// adapters (sms, email, push). Each posts to a configured gateway
// webhook rather than embedding a specific vendor SDK, since the
// gateway choice (Twilio, SES, FCM, or an in-house relay) is a
// deployment detail the bag-tracking core shouldn't hardcode.
package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/baggageops/core/pkg/notification"
	"github.com/baggageops/core/pkg/notification/sanitization"
)

// WebhookSender posts a rendered Message as JSON to a gateway URL. It
// satisfies notification.ChannelSender for any of the sms/email/push
// channels, differing only in the configured URL and channel label
// used for logging.
type WebhookSender struct {
	label     string
	url       string
	client    *http.Client
	sanitizer *sanitization.Sanitizer
	logger    *zap.Logger
}

// NewWebhookSender builds a WebhookSender posting to url, identified by
// label in logs (e.g. "sms-gateway").
func NewWebhookSender(label, url string, timeout time.Duration, logger *zap.Logger) *WebhookSender {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSender{
		label:     label,
		url:       url,
		client:    &http.Client{Timeout: timeout},
		sanitizer: sanitization.NewSanitizer(),
		logger:    logger,
	}
}

type webhookPayload struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject,omitempty"`
	Body      string `json:"body"`
}

func (w *WebhookSender) Send(ctx context.Context, msg notification.Message) error {
	body, _ := w.sanitizer.SanitizeWithFallback(msg.Body)

	payload, err := json.Marshal(webhookPayload{Recipient: msg.Recipient, Subject: msg.Subject, Body: body})
	if err != nil {
		return fmt.Errorf("%s: marshal payload: %w", w.label, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", w.label, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: delivery failed: %w", w.label, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: gateway returned status %d", w.label, resp.StatusCode)
	}

	w.logger.Info("notification delivered", zap.String("channel", w.label), zap.String("bag_tag", msg.BagTag))
	return nil
}
