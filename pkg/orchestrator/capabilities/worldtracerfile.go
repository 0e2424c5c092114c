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
	"context"

	"github.com/baggageops/core/pkg/domain"
	"github.com/baggageops/core/pkg/orchestrator"
)

// WorldTracerFile opens a Property Irregularity Report once a P0/P1 case
// is open and its bag reaches mishandled. It never re-files while the
// bag stays mishandled across subsequent events; the driver's idempotency
// key on (bag_tag, step, event_id) covers exact-duplicate events, but a
// PIR already on file for this bag is the condition this step itself
// checks before proceeding.
type WorldTracerFile struct {
	HasOpenPIR func(ctx context.Context, bagTag string) (bool, error)
}

func NewWorldTracerFile(hasOpenPIR func(ctx context.Context, bagTag string) (bool, error)) *WorldTracerFile {
	return &WorldTracerFile{HasOpenPIR: hasOpenPIR}
}

func (w *WorldTracerFile) Name() string { return "file-pir" }

func (w *WorldTracerFile) Evaluate(sc orchestrator.StepContext) orchestrator.Decision {
	if sc.Bag.Status != domain.StatusMishandled {
		return orchestrator.Skip()
	}
	if sc.Case == nil || (sc.Case.Priority != domain.PriorityP0 && sc.Case.Priority != domain.PriorityP1) {
		return orchestrator.Skip()
	}
	open, err := w.HasOpenPIR(sc.Ctx, sc.Bag.BagTag)
	if err != nil {
		return orchestrator.Fail(err.Error())
	}
	if open {
		return orchestrator.Skip()
	}
	return orchestrator.Proceed()
}

func (w *WorldTracerFile) Apply(sc orchestrator.StepContext) (orchestrator.Effects, error) {
	pirType := domain.PIROHD
	if ap, ok := sc.Event.Payload.(domain.AnomalyPayload); ok && ap.Description != "" {
		pirType = domain.PIRPIR
	}

	return orchestrator.Effects{
		PIRFileRequest: &orchestrator.PIRFileRequest{
			BagTag:            sc.Bag.BagTag,
			Type:              pirType,
			LastKnownLocation: sc.Bag.CurrentLocation,
			Description:       anomalyDescription(sc.Event),
		},
	}, nil
}

func anomalyDescription(e domain.Event) string {
	if ap, ok := e.Payload.(domain.AnomalyPayload); ok {
		return ap.Description
	}
	return "mishandled bag"
}
