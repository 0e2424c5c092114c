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

// Package graph declares the GraphStore port: the
// eventually-consistent projection side of the dual-write coordinator,
// and the read-side query surface a journey/location/bottleneck endpoint
// is ultimately served from. Package neo4jgraph is the concrete adapter;
// package graphfake is an in-memory double for unit tests.
package graph

import (
	"context"
	"time"

	"github.com/baggageops/core/pkg/domain"
)

// BagSnapshot is the read projection of a Bag plus its ordered scan
// history, as returned by GetJourney.
type BagSnapshot struct {
	Bag    domain.Bag
	Events []domain.ScanEvent
}

// LocationReport answers GetCurrentLocation.
type LocationReport struct {
	Location string
	LastSeen time.Time
}

// ConnectionRiskReport answers AnalyzeConnectionRisk.
type ConnectionRiskReport struct {
	TotalRisk float64
	Level     domain.RiskLevel
	Factors   []string
}

// BottleneckReport is one grouped row of IdentifyBottlenecks.
type BottleneckReport struct {
	Location        string
	BagCount        int
	MedianDwellSecs float64
}

// Store is the GraphStore port. Every write mirrors a relational
// mutation already committed by pkg/store/relational; every read serves
// traversal queries the relational store is not shaped for.
type Store interface {
	// UpsertBag merges a Baggage node.
	UpsertBag(ctx context.Context, bag domain.Bag) error

	// RecordEvent merges a ScanEvent node, a SCANNED_AT edge from the
	// bag, and updates the Baggage node's mirrored properties.
	RecordEvent(ctx context.Context, bag domain.Bag, scan domain.ScanEvent) error

	// RecordRisk merges a Risk node and a HAS_RISK edge from the bag.
	RecordRisk(ctx context.Context, assessment domain.RiskAssessment) error

	// OpenCase merges an Exception node.
	OpenCase(ctx context.Context, c domain.ExceptionCase) error

	// UpdateCase mirrors a relational case-status transition.
	UpdateCase(ctx context.Context, caseID string, newStatus domain.CaseStatus) error

	// GetJourney returns a bag's current snapshot and its full ordered
	// scan history.
	GetJourney(ctx context.Context, bagTag string) (BagSnapshot, error)

	// GetCurrentLocation returns a bag's last known location.
	GetCurrentLocation(ctx context.Context, bagTag string) (LocationReport, error)

	// GetFlightBags returns every bag currently routed through
	// flightIdentifier.
	GetFlightBags(ctx context.Context, flightIdentifier string) ([]domain.Bag, error)

	// AnalyzeConnectionRisk combines a bag's stored risk score with a
	// fresh connection-time assessment, returning whichever is higher.
	AnalyzeConnectionRisk(ctx context.Context, bagTag, connectingFlight string, connectionMinutes int) (ConnectionRiskReport, error)

	// IdentifyBottlenecks groups recent scan activity by location,
	// returning only locations with at least minBags bags observed
	// within the trailing windowHours.
	IdentifyBottlenecks(ctx context.Context, windowHours int, minBags int) ([]BottleneckReport, error)
}
