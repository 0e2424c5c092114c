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

// Package ports declares the abstract capability interfaces the
// orchestrator's Sink calls out to once a workflow step has decided
// what should happen: file a PIR with WorldTracer, dispatch a courier,
// or estimate what that dispatch would cost. Concrete adapters live
// alongside this package (pirservice.go, courierservice.go); each wraps
// its HTTP calls in a circuit breaker so one degraded downstream never
// blocks the worker pool that drives every other bag.
package ports

import (
	"context"

	"github.com/baggageops/core/pkg/orchestrator"
)

// PIRService files and queries Property Irregularity Reports against
// the downstream WorldTracer-compatible system.
type PIRService interface {
	File(ctx context.Context, req orchestrator.PIRFileRequest) (pirID string, err error)
	HasOpenPIR(ctx context.Context, bagTag string) (bool, error)
}

// CourierService dispatches and costs out a courier delivery for a
// mishandled or delayed bag.
type CourierService interface {
	Dispatch(ctx context.Context, req orchestrator.CourierRequest) (dispatchID string, err error)
	EstimateCost(ctx context.Context, destinationAddress string) (float64, error)
}
