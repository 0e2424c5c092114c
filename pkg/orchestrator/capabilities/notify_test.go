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
	"testing"

	"github.com/baggageops/core/pkg/domain"
	"github.com/baggageops/core/pkg/orchestrator"
)

func TestNotify_SkipsStatusesThatAreNotPassengerVisible(t *testing.T) {
	n := NewNotify(
		func(domain.Bag) []Recipient { return []Recipient{{Address: "+10000000000", Channel: domain.ChannelSMS}} },
		func(domain.BagStatus, domain.RiskLevel) string { return "tmpl" },
	)
	sc := orchestrator.StepContext{Bag: domain.Bag{Status: domain.StatusCheckedIn}}
	if d := n.Evaluate(sc); d.Kind != orchestrator.DecisionSkip {
		t.Fatalf("Evaluate = %+v, want Skip", d)
	}
}

func TestNotify_SkipsWhenNoRecipientsKnown(t *testing.T) {
	n := NewNotify(
		func(domain.Bag) []Recipient { return nil },
		func(domain.BagStatus, domain.RiskLevel) string { return "tmpl" },
	)
	sc := orchestrator.StepContext{Bag: domain.Bag{Status: domain.StatusDelayed}}
	if d := n.Evaluate(sc); d.Kind != orchestrator.DecisionSkip {
		t.Fatalf("Evaluate = %+v, want Skip", d)
	}
}

func TestNotify_AppliesOneRequestPerRecipient(t *testing.T) {
	recipients := []Recipient{
		{Address: "+10000000000", Channel: domain.ChannelSMS},
		{Address: "passenger@example.com", Channel: domain.ChannelEmail},
	}
	n := NewNotify(
		func(domain.Bag) []Recipient { return recipients },
		func(status domain.BagStatus, level domain.RiskLevel) string { return "delayed_" + string(level) },
	)
	sc := orchestrator.StepContext{Bag: domain.Bag{BagTag: "0000000001", Status: domain.StatusDelayed, CurrentLocation: "PTY-T1"}}

	effects, err := n.Apply(sc)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(effects.Notifications) != 2 {
		t.Fatalf("got %d notifications, want 2", len(effects.Notifications))
	}
	for _, req := range effects.Notifications {
		if req.BagTag != "0000000001" {
			t.Errorf("BagTag = %q", req.BagTag)
		}
	}
}
