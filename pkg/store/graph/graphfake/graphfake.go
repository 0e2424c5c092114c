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

// Package graphfake is an in-memory graph.Store double for tests that
// exercise the dual-write coordinator without a Neo4j instance.
package graphfake

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/baggageops/core/pkg/domain"
	"github.com/baggageops/core/pkg/risk"
	"github.com/baggageops/core/pkg/store/graph"
)

// Store is a goroutine-safe in-memory graph.Store.
type Store struct {
	mu     sync.Mutex
	bags   map[string]domain.Bag
	events map[string][]domain.ScanEvent
	cases  map[string]domain.ExceptionCase

	// FailUpsertBag, when non-nil, is returned by UpsertBag instead of
	// succeeding. Tests use it to exercise the coordinator's retry path.
	FailUpsertBag   error
	FailRecordEvent error
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		bags:   make(map[string]domain.Bag),
		events: make(map[string][]domain.ScanEvent),
		cases:  make(map[string]domain.ExceptionCase),
	}
}

func (s *Store) UpsertBag(ctx context.Context, bag domain.Bag) error {
	if s.FailUpsertBag != nil {
		return s.FailUpsertBag
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bags[bag.BagTag] = bag
	return nil
}

func (s *Store) RecordEvent(ctx context.Context, bag domain.Bag, scan domain.ScanEvent) error {
	if s.FailRecordEvent != nil {
		return s.FailRecordEvent
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bags[bag.BagTag] = bag
	s.events[bag.BagTag] = append(s.events[bag.BagTag], scan)
	return nil
}

func (s *Store) RecordRisk(ctx context.Context, assessment domain.RiskAssessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bag, ok := s.bags[assessment.BagTag]
	if !ok {
		return fmt.Errorf("graphfake: unknown bag_tag %s", assessment.BagTag)
	}
	bag.RiskScore = assessment.RiskScore
	s.bags[assessment.BagTag] = bag
	return nil
}

func (s *Store) OpenCase(ctx context.Context, c domain.ExceptionCase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases[c.CaseID] = c
	return nil
}

func (s *Store) UpdateCase(ctx context.Context, caseID string, newStatus domain.CaseStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cases[caseID]
	if !ok {
		return fmt.Errorf("graphfake: unknown case_id %s", caseID)
	}
	c.Status = newStatus
	s.cases[caseID] = c
	return nil
}

func (s *Store) GetJourney(ctx context.Context, bagTag string) (graph.BagSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bag, ok := s.bags[bagTag]
	if !ok {
		return graph.BagSnapshot{}, fmt.Errorf("graphfake: unknown bag_tag %s", bagTag)
	}
	events := append([]domain.ScanEvent(nil), s.events[bagTag]...)
	sort.Slice(events, func(i, j int) bool { return events[i].Timestamp.Before(events[j].Timestamp) })
	return graph.BagSnapshot{Bag: bag, Events: events}, nil
}

func (s *Store) GetCurrentLocation(ctx context.Context, bagTag string) (graph.LocationReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bag, ok := s.bags[bagTag]
	if !ok {
		return graph.LocationReport{}, fmt.Errorf("graphfake: unknown bag_tag %s", bagTag)
	}
	return graph.LocationReport{Location: bag.CurrentLocation, LastSeen: bag.UpdatedAt}, nil
}

func (s *Store) GetFlightBags(ctx context.Context, flightIdentifier string) ([]domain.Bag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Bag
	for _, bag := range s.bags {
		for _, leg := range bag.Routing {
			if leg == flightIdentifier {
				out = append(out, bag)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BagTag < out[j].BagTag })
	return out, nil
}

func (s *Store) AnalyzeConnectionRisk(ctx context.Context, bagTag, connectingFlight string, connectionMinutes int) (graph.ConnectionRiskReport, error) {
	s.mu.Lock()
	bag, ok := s.bags[bagTag]
	s.mu.Unlock()
	if !ok {
		return graph.ConnectionRiskReport{}, fmt.Errorf("graphfake: unknown bag_tag %s", bagTag)
	}

	minutes := connectionMinutes
	fresh := risk.Assess(risk.Input{Status: bag.Status, CurrentLocation: bag.CurrentLocation, ConnectionMinutes: &minutes})

	total := bag.RiskScore
	factors := []string{}
	if fresh.Value > total {
		total = fresh.Value
		factors = fresh.Factors
	}
	return graph.ConnectionRiskReport{TotalRisk: total, Level: risk.Classify(total), Factors: factors}, nil
}

func (s *Store) IdentifyBottlenecks(ctx context.Context, windowHours int, minBags int) ([]graph.BottleneckReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int)
	for bagTag, evts := range s.events {
		_ = bagTag
		for _, e := range evts {
			counts[e.Location]++
		}
	}

	var reports []graph.BottleneckReport
	for location, count := range counts {
		if count >= minBags {
			reports = append(reports, graph.BottleneckReport{Location: location, BagCount: count})
		}
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].Location < reports[j].Location })
	return reports, nil
}
