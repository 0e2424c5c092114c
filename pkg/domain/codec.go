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

import (
	"encoding/json"
	"fmt"
	"time"
)

func timeFromUnixNano(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

// payloadKind tags which concrete Payload type wireEvent.Payload holds,
// since Payload is a Go interface and cannot round-trip through
// encoding/json on its own.
type payloadKind string

const (
	payloadScan     payloadKind = "scan"
	payloadLoad     payloadKind = "load"
	payloadTransfer payloadKind = "transfer"
	payloadClaim    payloadKind = "claim"
	payloadAnomaly  payloadKind = "anomaly"
	payloadApproval payloadKind = "approval"
)

type wireEvent struct {
	EventID        string          `json:"event_id"`
	Timestamp      int64           `json:"timestamp_unixnano"`
	BagTag         string          `json:"bag_tag"`
	Location       string          `json:"location"`
	EventType      EventType       `json:"event_type"`
	SourceSystem   string          `json:"source_system"`
	Handler        string          `json:"handler,omitempty"`
	SignalStrength *int            `json:"signal_strength,omitempty"`
	PayloadKind    payloadKind     `json:"payload_kind"`
	Payload        json.RawMessage `json:"payload"`
	Annotations    []Annotation    `json:"annotations,omitempty"`
	CorrelationID  string          `json:"correlation_id,omitempty"`
}

// MarshalEvent renders e into the wire JSON shape used by the ingest bus
// and the relational store's raw_payload column. This is the single place
// that knows how to flatten the Payload interface.
func MarshalEvent(e Event) ([]byte, error) {
	kind, err := kindOf(e.Payload)
	if err != nil {
		return nil, err
	}
	payloadJSON, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}

	w := wireEvent{
		EventID:        e.EventID,
		Timestamp:      e.Timestamp.UnixNano(),
		BagTag:         e.BagTag,
		Location:       e.Location,
		EventType:      e.EventType,
		SourceSystem:   e.SourceSystem,
		Handler:        e.Handler,
		SignalStrength: e.SignalStrength,
		PayloadKind:    kind,
		Payload:        payloadJSON,
		Annotations:    e.Annotations,
		CorrelationID:  e.CorrelationID,
	}
	out, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("marshal event envelope: %w", err)
	}
	return out, nil
}

// UnmarshalEvent is the inverse of MarshalEvent.
func UnmarshalEvent(raw []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return Event{}, fmt.Errorf("unmarshal event envelope: %w", err)
	}

	payload, err := unmarshalPayload(w.PayloadKind, w.Payload)
	if err != nil {
		return Event{}, err
	}

	return Event{
		EventID:        w.EventID,
		Timestamp:      timeFromUnixNano(w.Timestamp),
		BagTag:         w.BagTag,
		Location:       w.Location,
		EventType:      w.EventType,
		SourceSystem:   w.SourceSystem,
		Handler:        w.Handler,
		SignalStrength: w.SignalStrength,
		Payload:        payload,
		Annotations:    w.Annotations,
		CorrelationID:  w.CorrelationID,
	}, nil
}

func kindOf(p Payload) (payloadKind, error) {
	switch p.(type) {
	case ScanPayload:
		return payloadScan, nil
	case LoadPayload:
		return payloadLoad, nil
	case TransferPayload:
		return payloadTransfer, nil
	case ClaimPayload:
		return payloadClaim, nil
	case AnomalyPayload:
		return payloadAnomaly, nil
	case ApprovalPayload:
		return payloadApproval, nil
	case nil:
		return "", fmt.Errorf("event has no payload")
	default:
		return "", fmt.Errorf("unknown payload type %T", p)
	}
}

func unmarshalPayload(kind payloadKind, raw json.RawMessage) (Payload, error) {
	switch kind {
	case payloadScan:
		var p ScanPayload
		if err := unmarshalInto(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case payloadLoad:
		var p LoadPayload
		if err := unmarshalInto(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case payloadTransfer:
		var p TransferPayload
		if err := unmarshalInto(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case payloadClaim:
		var p ClaimPayload
		if err := unmarshalInto(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case payloadAnomaly:
		var p AnomalyPayload
		if err := unmarshalInto(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case payloadApproval:
		var p ApprovalPayload
		if err := unmarshalInto(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown payload_kind %q", kind)
	}
}

func unmarshalInto[T any](raw json.RawMessage, dst *T) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}
