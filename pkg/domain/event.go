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

// Package domain holds the canonical baggage event model and the entity
// types the rest of the core reads and writes. It has no I/O and no
// dependency on any store or transport.
package domain

import (
	"regexp"
	"time"
)

// EventType is the closed set of canonical event kinds. New variants are
// added here, never inferred from a free-form string at the call site.
type EventType string

const (
	EventCheckIn       EventType = "check_in"
	EventSortation     EventType = "sortation"
	EventLoad          EventType = "load"
	EventArrival       EventType = "arrival"
	EventTransfer      EventType = "transfer"
	EventClaim         EventType = "claim"
	EventManual        EventType = "manual"
	EventAnomaly       EventType = "anomaly"
	EventOffload       EventType = "offload"
	EventManifestLoad  EventType = "manifest_load"
	EventApprovalGrant EventType = "approval_granted"
	EventApprovalDeny  EventType = "approval_denied"
)

// Severity classifies an anomaly event; only "high" and above trigger a
// mishandled transition per the orchestrator's transition table.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var bagTagPattern = regexp.MustCompile(`^[0-9]{10}$`)

// ValidBagTag reports whether tag is exactly 10 decimal digits, the only
// accepted bag_tag shape. Any alphabetic-prefixed variant (e.g. "CM123...")
// is rejected here rather than normalized: the source's own dual
// convention is not guessed at.
func ValidBagTag(tag string) bool {
	return bagTagPattern.MatchString(tag)
}

// Annotation is pipeline-added metadata on an Event. Producers never set
// annotations; only the processor pipeline does, so a producer-supplied
// annotation is always dropped at the parser boundary.
type Annotation struct {
	Key   string
	Value string
}

// Event is the canonical, tagged representation every parser normalizes
// into and every downstream stage consumes. It is a closed union: adding a
// new kind of event means adding a new EventType constant and payload
// struct, which is a compile-time decision, not a runtime dictionary key.
type Event struct {
	EventID         string
	Timestamp       time.Time
	BagTag          string
	Location        string
	EventType       EventType
	SourceSystem    string
	Handler         string
	SignalStrength  *int
	Payload         Payload
	Annotations     []Annotation
	CorrelationID   string // shared by events parsed from one multi-bag telegram/manifest
}

// Payload is the type-specific portion of a canonical event. Exactly one
// concrete type below is ever stored in Event.Payload; dispatch over it is
// a type switch, never an interface method invoked blindly.
type Payload interface {
	isPayload()
}

// ScanPayload carries the fields of a simple location scan (check_in,
// sortation, load, arrival, transfer, claim, manual).
type ScanPayload struct {
	RawLine string
}

func (ScanPayload) isPayload() {}

// LoadPayload carries flight/manifest context for a manifest_load event.
type LoadPayload struct {
	FlightNumber string
	Route        []string // ordered airport codes
	Pieces       int
	WeightKG     float64
	Destination  string
}

func (LoadPayload) isPayload() {}

// TransferPayload carries the connecting flight context used by risk
// scoring's connection-time factor.
type TransferPayload struct {
	ConnectingFlight   string
	ConnectionMinutes  *int
}

func (TransferPayload) isPayload() {}

// ClaimPayload carries claim-desk context.
type ClaimPayload struct {
	ClaimDesk string
}

func (ClaimPayload) isPayload() {}

// AnomalyPayload carries anomaly detail; Severity drives the mishandled
// transition in the orchestrator's state machine.
type AnomalyPayload struct {
	Severity    Severity
	Description string
}

func (AnomalyPayload) isPayload() {}

// ApprovalPayload carries the outcome of a human-in-the-loop decision that
// resumes a suspended courier-dispatch workflow.
type ApprovalPayload struct {
	DispatchID string
	ApprovedBy string
	Reason     string
}

func (ApprovalPayload) isPayload() {}

// AddAnnotation returns a copy of e with the given annotation appended.
// Events are otherwise treated as immutable after a parser produces them;
// only the processor pipeline calls this.
func (e Event) AddAnnotation(key, value string) Event {
	out := e
	out.Annotations = append(append([]Annotation{}, e.Annotations...), Annotation{Key: key, Value: value})
	return out
}

// HasAnnotation reports whether the event already carries key.
func (e Event) HasAnnotation(key string) bool {
	for _, a := range e.Annotations {
		if a.Key == key {
			return true
		}
	}
	return false
}
