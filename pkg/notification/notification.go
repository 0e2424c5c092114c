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

// Package notification turns an orchestrator.NotificationRequest into a
// rendered, deduplicated, channel-delivered Notification row. Dedup
// follows the same SETNX-over-Redis shape pkg/bus/redisbus uses for
// event fingerprints, keyed per (bag_tag, template_id, channel) instead
// of per event.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/baggageops/core/pkg/domain"
	"github.com/baggageops/core/pkg/orchestrator"
)

// Message is a rendered notification ready for channel delivery.
type Message struct {
	BagTag     string
	Channel    domain.NotificationChannel
	Recipient  string
	TemplateID string
	Subject    string
	Body       string
	CreatedAt  time.Time
}

// ChannelSender delivers one rendered Message over its channel.
type ChannelSender interface {
	Send(ctx context.Context, msg Message) error
}

// Renderer turns a template id plus the notification request's bag
// context into a subject/body pair.
type Renderer interface {
	Render(templateID string, req orchestrator.NotificationRequest) (subject, body string)
}

// Deduper reserves the (bag_tag, template_id, channel) key for
// domain.DedupWindow, returning false when a Notification for that
// combination was already reserved inside the window.
type Deduper struct {
	client *redis.Client
	window time.Duration
}

// NewDeduper builds a Deduper using domain.DedupWindow unless window is
// overridden.
func NewDeduper(client *redis.Client, window time.Duration) *Deduper {
	if window <= 0 {
		window = domain.DedupWindow
	}
	return &Deduper{client: client, window: window}
}

func (d *Deduper) key(req orchestrator.NotificationRequest) string {
	return fmt.Sprintf("notify-dedup:%s:%s:%s", req.BagTag, req.TemplateID, req.Channel)
}

// Reserve attempts to claim the dedup key; it returns true the first
// time it is called for a given combination within the window, and
// false on every call for the same combination until the window
// expires.
func (d *Deduper) Reserve(ctx context.Context, req orchestrator.NotificationRequest) (bool, error) {
	reserved, err := d.client.SetNX(ctx, d.key(req), "1", d.window).Result()
	if err != nil {
		return false, fmt.Errorf("notification dedup: %w", err)
	}
	return reserved, nil
}

// Dispatcher renders and delivers NotificationRequests, deduplicating
// before handing off to the channel-specific sender.
type Dispatcher struct {
	dedup    *Deduper
	renderer Renderer
	senders  map[domain.NotificationChannel]ChannelSender
	now      func() time.Time
}

// NewDispatcher wires a Dispatcher from a Deduper, a Renderer, and one
// ChannelSender per domain.NotificationChannel it must support.
func NewDispatcher(dedup *Deduper, renderer Renderer, senders map[domain.NotificationChannel]ChannelSender) *Dispatcher {
	return &Dispatcher{dedup: dedup, renderer: renderer, senders: senders, now: time.Now}
}

// Dispatch reserves the dedup key, renders the template, and delivers
// through the channel's sender. A dedup hit is not an error: it means
// the same notification was already sent inside the window, so Dispatch
// returns (false, nil).
func (d *Dispatcher) Dispatch(ctx context.Context, req orchestrator.NotificationRequest) (sent bool, err error) {
	reserved, err := d.dedup.Reserve(ctx, req)
	if err != nil {
		return false, err
	}
	if !reserved {
		return false, nil
	}

	sender, ok := d.senders[req.Channel]
	if !ok {
		return false, fmt.Errorf("notification: no sender registered for channel %q", req.Channel)
	}

	subject, body := d.renderer.Render(req.TemplateID, req)
	msg := Message{
		BagTag:     req.BagTag,
		Channel:    req.Channel,
		Recipient:  req.Recipient,
		TemplateID: req.TemplateID,
		Subject:    subject,
		Body:       body,
		CreatedAt:  d.now(),
	}
	if err := sender.Send(ctx, msg); err != nil {
		return false, fmt.Errorf("notification: deliver via %s: %w", req.Channel, err)
	}
	return true, nil
}
