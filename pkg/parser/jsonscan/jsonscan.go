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

// Package jsonscan parses the JSON scan wire format (POST /events/scan and
// the JSON leg of POST /events/batch) directly into a canonical event.
package jsonscan

import (
	"time"

	"github.com/go-faster/jx"

	"github.com/baggageops/core/pkg/domain"
	"github.com/baggageops/core/pkg/parser"
)

// Parser decodes a single JSON scan object per call. It uses go-faster/jx
// for allocation-light decoding on the hot ingest path rather than
// encoding/json.
type Parser struct{}

// New returns a JSON scan Parser.
func New() Parser { return Parser{} }

// fields mirrors the wire shape of the ingest HTTP API's scan event body.
type fields struct {
	bagID          string
	location       string
	scanType       string
	timestamp      string
	deviceID       string
	handlerID      string
	signalStrength *int
	hasTimestamp   bool
}

// Parse implements parser.Parser. raw is expected to be one JSON object;
// a JSON array of objects is rejected as malformed (batch decoding is the
// caller's responsibility — each element is handed to Parse separately).
func (Parser) Parse(raw []byte, sourceSystem string) []parser.Result {
	d := jx.DecodeBytes(raw)

	var f fields
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "bag_id":
			s, err := d.Str()
			if err != nil {
				return err
			}
			f.bagID = s
		case "location":
			s, err := d.Str()
			if err != nil {
				return err
			}
			f.location = s
		case "scan_type":
			s, err := d.Str()
			if err != nil {
				return err
			}
			f.scanType = s
		case "timestamp":
			s, err := d.Str()
			if err != nil {
				return err
			}
			f.timestamp = s
			f.hasTimestamp = true
		case "device_id":
			s, err := d.Str()
			if err != nil {
				return err
			}
			f.deviceID = s
		case "handler_id":
			s, err := d.Str()
			if err != nil {
				return err
			}
			f.handlerID = s
		case "signal_strength":
			n, err := d.Int()
			if err != nil {
				return err
			}
			f.signalStrength = &n
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return []parser.Result{parser.Fail(parser.FailureReason{
			Code:    parser.ReasonMalformed,
			Message: err.Error(),
		})}
	}

	if !domain.ValidBagTag(f.bagID) {
		return []parser.Result{parser.Fail(parser.FailureReason{
			Code:    parser.ReasonMissingField,
			Field:   "bag_id",
			Message: "bag_id must be exactly 10 decimal digits",
		})}
	}
	if f.location == "" {
		return []parser.Result{parser.Fail(parser.FailureReason{
			Code:  parser.ReasonMissingField,
			Field: "location",
		})}
	}
	scanType, ok := normalizeScanType(f.scanType)
	if !ok {
		return []parser.Result{parser.Fail(parser.FailureReason{
			Code:    parser.ReasonMalformed,
			Field:   "scan_type",
			Message: "unrecognized scan_type: " + f.scanType,
		})}
	}

	ts := time.Now().UTC()
	confidence := 0.7
	if f.hasTimestamp {
		parsed, err := time.Parse(time.RFC3339, f.timestamp)
		if err != nil {
			return []parser.Result{parser.Fail(parser.FailureReason{
				Code:    parser.ReasonMalformed,
				Field:   "timestamp",
				Message: err.Error(),
			})}
		}
		ts = parsed.UTC()
		confidence = 1.0
	}

	var signal *int
	if f.signalStrength != nil {
		signal = f.signalStrength
	}

	event := domain.Event{
		Timestamp:      ts,
		BagTag:         f.bagID,
		Location:       f.location,
		EventType:      scanType,
		SourceSystem:   sourceSystem,
		Handler:        f.handlerID,
		SignalStrength: signal,
		Payload:        domain.ScanPayload{RawLine: string(raw)},
	}
	_ = f.deviceID // carried for enrichment lookups downstream, not part of the canonical event itself

	return []parser.Result{parser.OK(event, confidence)}
}

func normalizeScanType(s string) (domain.EventType, bool) {
	switch domain.EventType(s) {
	case domain.EventCheckIn, domain.EventSortation, domain.EventLoad,
		domain.EventArrival, domain.EventTransfer, domain.EventClaim,
		domain.EventManual, domain.EventAnomaly, domain.EventOffload:
		return domain.EventType(s), true
	default:
		return "", false
	}
}
