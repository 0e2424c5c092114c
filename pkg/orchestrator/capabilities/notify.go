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

package capabilities

import (
	"github.com/baggageops/core/pkg/domain"
	"github.com/baggageops/core/pkg/orchestrator"
)

// Recipient is one passenger contact point the notify step may enqueue
// a message to.
type Recipient struct {
	Address string
	Channel domain.NotificationChannel
}

// Notify enqueues one NotificationRequest per (recipient, channel) pair
// whenever the bag's status changed to something passenger-visible.
// Deduplication within the 10-minute window (domain.DedupWindow) is the
// notification sink's responsibility, not this step's.
type Notify struct {
	RecipientsFor func(bag domain.Bag) []Recipient
	TemplateFor   func(status domain.BagStatus, level domain.RiskLevel) string
}

func NewNotify(recipientsFor func(domain.Bag) []Recipient, templateFor func(domain.BagStatus, domain.RiskLevel) string) *Notify {
	return &Notify{RecipientsFor: recipientsFor, TemplateFor: templateFor}
}

func (n *Notify) Name() string { return "notify" }

var passengerVisible = map[domain.BagStatus]bool{
	domain.StatusDelayed:    true,
	domain.StatusMishandled: true,
	domain.StatusOffloaded:  true,
	domain.StatusArrived:    true,
	domain.StatusClaimed:    true,
}

func (n *Notify) Evaluate(sc orchestrator.StepContext) orchestrator.Decision {
	if !passengerVisible[sc.Bag.Status] {
		return orchestrator.Skip()
	}
	if len(n.RecipientsFor(sc.Bag)) == 0 {
		return orchestrator.Skip()
	}
	return orchestrator.Proceed()
}

func (n *Notify) Apply(sc orchestrator.StepContext) (orchestrator.Effects, error) {
	out := Score(sc)
	template := n.TemplateFor(sc.Bag.Status, out.Level)

	var reqs []orchestrator.NotificationRequest
	for _, r := range n.RecipientsFor(sc.Bag) {
		reqs = append(reqs, orchestrator.NotificationRequest{
			BagTag:     sc.Bag.BagTag,
			Channel:    r.Channel,
			Recipient:  r.Address,
			TemplateID: template,
		})
	}
	return orchestrator.Effects{Notifications: reqs}, nil
}
