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

package typeb

import (
	"testing"

	"github.com/baggageops/core/pkg/domain"
	"github.com/baggageops/core/pkg/parser"
)

const sampleTelegram = "" +
	"FM PTYXLAA\n" +
	"TO MIAXLAA\n" +
	"AA0123/01JAN PTY MIA\n" +
	".SMITH/J 0000000001 1/23.5 MIA\n" +
	".SMITH/J 0000000002 1/18.0 MIA\n"

func TestParse_MultiBagTelegram_SharesCorrelationID(t *testing.T) {
	p := Parser{MessageType: BSM, FromStation: "PTY"}
	results := p.Parse([]byte(sampleTelegram), "sita-gateway")

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d: %+v", len(results), results)
	}
	for _, r := range results {
		if r.Failure != nil {
			t.Fatalf("unexpected failure: %+v", r.Failure)
		}
	}
	if results[0].Event.CorrelationID == "" {
		t.Fatal("expected non-empty correlation id")
	}
	if results[0].Event.CorrelationID != results[1].Event.CorrelationID {
		t.Errorf("correlation ids differ: %q vs %q", results[0].Event.CorrelationID, results[1].Event.CorrelationID)
	}
	if results[0].Event.EventType != domain.EventCheckIn {
		t.Errorf("EventType = %q, want check_in for BSM", results[0].Event.EventType)
	}
	if results[0].Event.Location != "PTY" {
		t.Errorf("Location = %q, want FromStation override PTY", results[0].Event.Location)
	}
	load, ok := results[0].Event.Payload.(domain.LoadPayload)
	if !ok {
		t.Fatalf("Payload type = %T, want domain.LoadPayload", results[0].Event.Payload)
	}
	if load.FlightNumber != "AA0123" || load.Pieces != 1 || load.WeightKG != 23.5 || load.Destination != "MIA" {
		t.Errorf("unexpected payload: %+v", load)
	}
}

func TestParse_BTMUsesTransferEventType(t *testing.T) {
	p := Parser{MessageType: BTM}
	results := p.Parse([]byte(sampleTelegram), "sita-gateway")
	if len(results) != 2 || results[0].Failure != nil {
		t.Fatalf("unexpected failure: %+v", results)
	}
	if results[0].Event.EventType != domain.EventTransfer {
		t.Errorf("EventType = %q, want transfer for BTM", results[0].Event.EventType)
	}
}

func TestParse_MissingRouteLineFails(t *testing.T) {
	telegram := "FM PTYXLAA\nTO MIAXLAA\n.SMITH/J 0000000001 1/23.5 MIA\n"
	results := Parser{}.Parse([]byte(telegram), "test")
	if len(results) != 1 || results[0].Failure == nil {
		t.Fatal("expected failure for missing route line")
	}
	if results[0].Failure.Code != parser.ReasonMissingField {
		t.Errorf("Code = %v", results[0].Failure.Code)
	}
}

func TestParse_InvalidBagTagFailsThatLineOnly(t *testing.T) {
	telegram := "FM PTYXLAA\nTO MIAXLAA\nAA0123/01JAN PTY MIA\n" +
		".SMITH/J CM00001234 1/23.5 MIA\n" +
		".DOE/A 0000000099 1/10.0 MIA\n"
	results := Parser{MessageType: BSM}.Parse([]byte(telegram), "test")
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Failure == nil {
		t.Error("expected failure for alphabetic bag tag")
	}
	if results[1].Failure != nil {
		t.Errorf("expected second line to succeed, got %+v", results[1].Failure)
	}
}

func TestParse_EmptyTelegramFails(t *testing.T) {
	results := Parser{}.Parse([]byte(""), "test")
	if len(results) != 1 || results[0].Failure == nil {
		t.Fatal("expected failure for empty telegram")
	}
}
