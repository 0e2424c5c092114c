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

package domain

import "time"

// ScanEvent is the immutable, retained record of one ingested event
// applied to a Bag. It is distinct from the wire-level Event: ScanEvent is
// what the relational store persists once record_event commits.
type ScanEvent struct {
	EventID    string
	BagTag     string
	ScanType   EventType
	Location   string
	Timestamp  time.Time
	RawPayload []byte
}

// RiskLevel is a pure function of RiskScore per risk.Classify.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskAssessment is an append-only scoring record. The most recent one for
// a bag_tag defines that Bag's current RiskScore.
type RiskAssessment struct {
	BagTag           string
	AssessedAt       time.Time
	RiskScore        float64
	RiskLevel        RiskLevel
	Factors          []string
	Confidence       float64
	AlgorithmVersion int
}

// CasePriority is the closed priority set for an ExceptionCase.
type CasePriority string

const (
	PriorityP0 CasePriority = "P0"
	PriorityP1 CasePriority = "P1"
	PriorityP2 CasePriority = "P2"
	PriorityP3 CasePriority = "P3"
)

// CaseStatus tracks an ExceptionCase through open -> in_progress ->
// (resolved|closed); reopening is forbidden by construction (no transition
// out of resolved/closed is ever exposed).
type CaseStatus string

const (
	CaseOpen       CaseStatus = "open"
	CaseInProgress CaseStatus = "in_progress"
	CaseResolved   CaseStatus = "resolved"
	CaseClosed     CaseStatus = "closed"
)

// TimelineEntry is one ordered audit entry in an ExceptionCase's timeline.
type TimelineEntry struct {
	At      time.Time
	Actor   string
	Summary string
}

// ExceptionCase tracks a bag-level incident requiring human or automated
// follow-up. At most one case may be open per bag at a time (enforced by
// the coordinator's open_case operation).
type ExceptionCase struct {
	CaseID      string
	BagTag      string
	CaseType    string
	Priority    CasePriority
	Status      CaseStatus
	Assignee    string
	SLADeadline time.Time
	CreatedAt   time.Time
	Timeline    []TimelineEntry
}

// PIRType is the closed set of Property Irregularity Report subtypes.
type PIRType string

const (
	PIROHD PIRType = "OHD"
	PIRFIR PIRType = "FIR"
	PIRAHL PIRType = "AHL"
	PIRPIR PIRType = "PIR"
)

// PIRStatus tracks a PIR from filing to closure.
type PIRStatus string

const (
	PIRStatusOpen   PIRStatus = "open"
	PIRStatusClosed PIRStatus = "closed"
)

// PIR is a Property Irregularity Report filed when a bag is mishandled.
// At most one may be open per bag_tag at a time.
type PIR struct {
	PIRNumber         string
	BagTag            string
	Type              PIRType
	Status            PIRStatus
	FiledAt           time.Time
	LastKnownLocation string
	Description       string
}

// DispatchStatus tracks a CourierDispatch from creation to a terminal
// state. PendingApproval may not advance without an ApprovalRequest being
// granted.
type DispatchStatus string

const (
	DispatchPendingApproval DispatchStatus = "pending_approval"
	DispatchApproved        DispatchStatus = "approved"
	DispatchBooked          DispatchStatus = "booked"
	DispatchDelivered       DispatchStatus = "delivered"
	DispatchCancelled       DispatchStatus = "cancelled"
)

// CourierDispatch represents a courier booking proposed by the
// courier-decide workflow step.
type CourierDispatch struct {
	DispatchID         string
	BagTag             string
	DestinationAddress string
	CostEstimate       float64
	Status             DispatchStatus
	RequiresApproval   bool
	ApprovedBy         string
	CreatedAt          time.Time
}

// NotificationChannel is the closed set of delivery channels for
// passenger-facing Notification rows.
type NotificationChannel string

const (
	ChannelSMS   NotificationChannel = "sms"
	ChannelEmail NotificationChannel = "email"
	ChannelPush  NotificationChannel = "push"
)

// NotificationStatus tracks a Notification from enqueue to a terminal
// state.
type NotificationStatus string

const (
	NotificationQueued NotificationStatus = "queued"
	NotificationSent   NotificationStatus = "sent"
	NotificationFailed NotificationStatus = "failed"
	NotificationDead   NotificationStatus = "dead"
)

// Notification is one recipient/channel/template enqueue. Per
// (bag_tag, template_id, channel) it is deduplicated within a 10-minute
// window.
type Notification struct {
	NotificationID string
	BagTag         string
	Channel        NotificationChannel
	Recipient      string
	TemplateID     string
	Status         NotificationStatus
	EnqueuedAt     time.Time
}

// DedupWindow is the notification dedup window.
const DedupWindow = 10 * time.Minute
