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

// Package neo4jgraph implements pkg/store/graph.Store on Neo4j via
// neo4j-go-driver/v5, using MERGE for every write so the projection
// stays idempotent under the coordinator's retry policy.
package neo4jgraph

import (
	"context"
	"sort"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/baggageops/core/pkg/domain"
	"github.com/baggageops/core/pkg/risk"
	"github.com/baggageops/core/pkg/store/graph"
)

// Store adapts a neo4j.DriverWithContext to the graph.Store port.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
}

// New wraps driver for use against database (empty string uses the
// server's configured default database).
func New(driver neo4j.DriverWithContext, database string) *Store {
	return &Store{driver: driver, database: database}
}

func (s *Store) session(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
}

// UpsertBag implements graph.Store.
func (s *Store) UpsertBag(ctx context.Context, bag domain.Bag) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `
MERGE (b:Baggage {bag_tag: $bag_tag})
SET b.status = $status, b.current_location = $current_location, b.risk_score = $risk_score,
    b.passenger_ref = $passenger_ref, b.pnr = $pnr, b.updated_at = $updated_at, b.version = $version`,
			map[string]any{
				"bag_tag": bag.BagTag, "status": string(bag.Status), "current_location": bag.CurrentLocation,
				"risk_score": bag.RiskScore, "passenger_ref": bag.PassengerRef, "pnr": bag.PNR,
				"updated_at": bag.UpdatedAt.UTC().Format(time.RFC3339Nano), "version": bag.Version,
			})
	})
	return err
}

// RecordEvent implements graph.Store.
func (s *Store) RecordEvent(ctx context.Context, bag domain.Bag, scan domain.ScanEvent) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `
MERGE (b:Baggage {bag_tag: $bag_tag})
SET b.status = $status, b.current_location = $location, b.updated_at = $updated_at, b.version = $version
MERGE (e:ScanEvent {event_id: $event_id})
SET e.scan_type = $scan_type, e.location = $location, e.timestamp = $timestamp
MERGE (b)-[:SCANNED_AT]->(e)`,
			map[string]any{
				"bag_tag": bag.BagTag, "status": string(bag.Status), "location": scan.Location,
				"updated_at": bag.UpdatedAt.UTC().Format(time.RFC3339Nano), "version": bag.Version,
				"event_id": scan.EventID, "scan_type": string(scan.ScanType),
				"timestamp": scan.Timestamp.UTC().Format(time.RFC3339Nano),
			})
	})
	return err
}

// RecordRisk implements graph.Store.
func (s *Store) RecordRisk(ctx context.Context, assessment domain.RiskAssessment) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `
MATCH (b:Baggage {bag_tag: $bag_tag})
MERGE (r:Risk {bag_tag: $bag_tag, assessed_at: $assessed_at})
SET r.risk_score = $risk_score, r.risk_level = $risk_level, r.confidence = $confidence,
    r.algorithm_version = $algorithm_version, r.factors = $factors
MERGE (b)-[:HAS_RISK]->(r)`,
			map[string]any{
				"bag_tag": assessment.BagTag, "assessed_at": assessment.AssessedAt.UTC().Format(time.RFC3339Nano),
				"risk_score": assessment.RiskScore, "risk_level": string(assessment.RiskLevel),
				"confidence": assessment.Confidence, "algorithm_version": assessment.AlgorithmVersion,
				"factors": assessment.Factors,
			})
	})
	return err
}

// OpenCase implements graph.Store.
func (s *Store) OpenCase(ctx context.Context, c domain.ExceptionCase) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `
MATCH (b:Baggage {bag_tag: $bag_tag})
MERGE (x:Exception {case_id: $case_id})
SET x.case_type = $case_type, x.priority = $priority, x.status = $status,
    x.assignee = $assignee, x.sla_deadline = $sla_deadline, x.created_at = $created_at
MERGE (b)-[:HAS_CASE]->(x)`,
			map[string]any{
				"bag_tag": c.BagTag, "case_id": c.CaseID, "case_type": c.CaseType, "priority": string(c.Priority),
				"status": string(c.Status), "assignee": c.Assignee,
				"sla_deadline": c.SLADeadline.UTC().Format(time.RFC3339Nano), "created_at": c.CreatedAt.UTC().Format(time.RFC3339Nano),
			})
	})
	return err
}

// UpdateCase implements graph.Store.
func (s *Store) UpdateCase(ctx context.Context, caseID string, newStatus domain.CaseStatus) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `MATCH (x:Exception {case_id: $case_id}) SET x.status = $status`,
			map[string]any{"case_id": caseID, "status": string(newStatus)})
	})
	return err
}

// GetJourney implements graph.Store.
func (s *Store) GetJourney(ctx context.Context, bagTag string) (graph.BagSnapshot, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	records, err := neo4j.ExecuteRead(ctx, sess, func(tx neo4j.ManagedTransaction) ([]*neo4j.Record, error) {
		res, err := tx.Run(ctx, `
MATCH (b:Baggage {bag_tag: $bag_tag})
OPTIONAL MATCH (b)-[:SCANNED_AT]->(e:ScanEvent)
RETURN b, e ORDER BY e.timestamp ASC`,
			map[string]any{"bag_tag": bagTag})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return graph.BagSnapshot{}, err
	}

	var snapshot graph.BagSnapshot
	for i, rec := range records {
		if i == 0 {
			if bagNode, ok := rec.Get("b"); ok && bagNode != nil {
				snapshot.Bag = bagFromNode(bagNode.(neo4j.Node))
			}
		}
		if eventNode, ok := rec.Get("e"); ok && eventNode != nil {
			snapshot.Events = append(snapshot.Events, scanEventFromNode(snapshot.Bag.BagTag, eventNode.(neo4j.Node)))
		}
	}
	return snapshot, nil
}

// GetCurrentLocation implements graph.Store.
func (s *Store) GetCurrentLocation(ctx context.Context, bagTag string) (graph.LocationReport, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	record, err := neo4j.ExecuteRead(ctx, sess, func(tx neo4j.ManagedTransaction) (*neo4j.Record, error) {
		res, err := tx.Run(ctx, `MATCH (b:Baggage {bag_tag: $bag_tag}) RETURN b.current_location AS location, b.updated_at AS updated_at`,
			map[string]any{"bag_tag": bagTag})
		if err != nil {
			return nil, err
		}
		return res.Single(ctx)
	})
	if err != nil {
		return graph.LocationReport{}, err
	}

	location, _ := record.Get("location")
	updatedAtRaw, _ := record.Get("updated_at")
	lastSeen, _ := time.Parse(time.RFC3339Nano, toString(updatedAtRaw))
	loc, _ := location.(string)
	return graph.LocationReport{Location: loc, LastSeen: lastSeen}, nil
}

// GetFlightBags implements graph.Store. Flight routing is modeled as an
// ordered property on Baggage rather than a dedicated Flight node, since
// the design never requires traversing flights independent of their bags.
func (s *Store) GetFlightBags(ctx context.Context, flightIdentifier string) ([]domain.Bag, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	records, err := neo4j.ExecuteRead(ctx, sess, func(tx neo4j.ManagedTransaction) ([]*neo4j.Record, error) {
		res, err := tx.Run(ctx, `MATCH (b:Baggage) WHERE $flight IN b.routing RETURN b`,
			map[string]any{"flight": flightIdentifier})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}

	bags := make([]domain.Bag, 0, len(records))
	for _, rec := range records {
		if node, ok := rec.Get("b"); ok && node != nil {
			bags = append(bags, bagFromNode(node.(neo4j.Node)))
		}
	}
	return bags, nil
}

// AnalyzeConnectionRisk implements graph.Store: combines the bag's last
// recorded score with a fresh assessment of the proposed connection,
// taking the higher of the two.
func (s *Store) AnalyzeConnectionRisk(ctx context.Context, bagTag, connectingFlight string, connectionMinutes int) (graph.ConnectionRiskReport, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	record, err := neo4j.ExecuteRead(ctx, sess, func(tx neo4j.ManagedTransaction) (*neo4j.Record, error) {
		res, err := tx.Run(ctx, `MATCH (b:Baggage {bag_tag: $bag_tag}) RETURN b.status AS status, b.current_location AS location, b.risk_score AS risk_score`,
			map[string]any{"bag_tag": bagTag})
		if err != nil {
			return nil, err
		}
		return res.Single(ctx)
	})
	if err != nil {
		return graph.ConnectionRiskReport{}, err
	}

	statusRaw, _ := record.Get("status")
	locationRaw, _ := record.Get("location")
	storedRiskRaw, _ := record.Get("risk_score")
	storedRisk, _ := storedRiskRaw.(float64)

	minutes := connectionMinutes
	fresh := risk.Assess(risk.Input{
		Status:            domain.BagStatus(toString(statusRaw)),
		CurrentLocation:   toString(locationRaw),
		ConnectionMinutes: &minutes,
	})

	total := storedRisk
	factors := []string{}
	if fresh.Value > total {
		total = fresh.Value
		factors = fresh.Factors
	}
	return graph.ConnectionRiskReport{TotalRisk: total, Level: risk.Classify(total), Factors: factors}, nil
}

// IdentifyBottlenecks implements graph.Store.
func (s *Store) IdentifyBottlenecks(ctx context.Context, windowHours int, minBags int) ([]graph.BottleneckReport, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	records, err := neo4j.ExecuteRead(ctx, sess, func(tx neo4j.ManagedTransaction) ([]*neo4j.Record, error) {
		res, err := tx.Run(ctx, `
MATCH (e:ScanEvent)
WHERE datetime(e.timestamp) >= datetime() - duration({hours: $window_hours})
WITH e.location AS location, e.timestamp AS ts
WITH location, collect(ts) AS timestamps
WHERE size(timestamps) >= $min_bags
RETURN location, size(timestamps) AS bag_count, timestamps`,
			map[string]any{"window_hours": windowHours, "min_bags": minBags})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}

	reports := make([]graph.BottleneckReport, 0, len(records))
	for _, rec := range records {
		location, _ := rec.Get("location")
		bagCount, _ := rec.Get("bag_count")
		timestampsRaw, _ := rec.Get("timestamps")
		reports = append(reports, graph.BottleneckReport{
			Location:        toString(location),
			BagCount:        int(toInt64(bagCount)),
			MedianDwellSecs: medianDwellSeconds(timestampsRaw),
		})
	}
	return reports, nil
}

func bagFromNode(node neo4j.Node) domain.Bag {
	props := node.Props
	updatedAt, _ := time.Parse(time.RFC3339Nano, toString(props["updated_at"]))
	return domain.Bag{
		BagTag:          toString(props["bag_tag"]),
		Status:          domain.BagStatus(toString(props["status"])),
		CurrentLocation: toString(props["current_location"]),
		RiskScore:       toFloat64(props["risk_score"]),
		PassengerRef:    toString(props["passenger_ref"]),
		PNR:             toString(props["pnr"]),
		UpdatedAt:       updatedAt,
		Version:         toInt64(props["version"]),
	}
}

func scanEventFromNode(bagTag string, node neo4j.Node) domain.ScanEvent {
	props := node.Props
	ts, _ := time.Parse(time.RFC3339Nano, toString(props["timestamp"]))
	return domain.ScanEvent{
		EventID:   toString(props["event_id"]),
		BagTag:    bagTag,
		ScanType:  domain.EventType(toString(props["scan_type"])),
		Location:  toString(props["location"]),
		Timestamp: ts,
	}
}

// medianDwellSeconds approximates dwell time as the gap between
// consecutive scan timestamps observed at one location; a single
// observation has no dwell and contributes zero.
func medianDwellSeconds(raw any) float64 {
	list, ok := raw.([]any)
	if !ok || len(list) < 2 {
		return 0
	}
	times := make([]time.Time, 0, len(list))
	for _, v := range list {
		t, err := time.Parse(time.RFC3339Nano, toString(v))
		if err == nil {
			times = append(times, t)
		}
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	gaps := make([]float64, 0, len(times)-1)
	for i := 1; i < len(times); i++ {
		gaps = append(gaps, times[i].Sub(times[i-1]).Seconds())
	}
	sort.Float64s(gaps)
	if len(gaps) == 0 {
		return 0
	}
	mid := len(gaps) / 2
	if len(gaps)%2 == 0 {
		return (gaps[mid-1] + gaps[mid]) / 2
	}
	return gaps[mid]
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

func toFloat64(v any) float64 {
	f, _ := v.(float64)
	return f
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
