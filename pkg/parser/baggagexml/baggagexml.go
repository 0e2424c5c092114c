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

// Package baggagexml parses BaggageXML flight manifests into canonical
// manifest_load events, one per bag entry.
package baggagexml

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/baggageops/core/pkg/domain"
	"github.com/baggageops/core/pkg/parser"
)

// manifest mirrors the BaggageXML wire schema:
//
//	<BaggageManifest>
//	  <Flight number="AA0123" departure="2026-01-01T10:00:00Z" origin="PTY" destination="MIA"/>
//	  <Bag tag="0000000001" pieces="1" weight="23.5"/>
//	  <Bag tag="0000000002" pieces="1" weight="18.0"/>
//	</BaggageManifest>
type manifest struct {
	XMLName xml.Name `xml:"BaggageManifest"`
	Flight  flight   `xml:"Flight"`
	Bags    []bag    `xml:"Bag"`
}

type flight struct {
	Number      string `xml:"number,attr"`
	Departure   string `xml:"departure,attr"`
	Origin      string `xml:"origin,attr"`
	Destination string `xml:"destination,attr"`
}

type bag struct {
	Tag    string  `xml:"tag,attr"`
	Pieces int     `xml:"pieces,attr"`
	Weight float64 `xml:"weight,attr"`
}

// Parser parses a BaggageXML manifest document.
type Parser struct{}

// New returns a baggagexml Parser.
func New() Parser { return Parser{} }

// Parse implements parser.Parser. raw is one complete BaggageManifest
// document; every Bag entry yields one manifest_load event sharing the
// flight's correlation id.
func (Parser) Parse(raw []byte, sourceSystem string) []parser.Result {
	var m manifest
	if err := xml.Unmarshal(raw, &m); err != nil {
		return []parser.Result{parser.Fail(parser.FailureReason{
			Code:    parser.ReasonMalformed,
			Message: fmt.Sprintf("invalid BaggageXML: %v", err),
		})}
	}

	if m.Flight.Number == "" {
		return []parser.Result{parser.Fail(parser.FailureReason{
			Code:    parser.ReasonMissingField,
			Field:   "Flight/@number",
			Message: "manifest missing Flight number attribute",
		})}
	}
	if len(m.Bags) == 0 {
		return []parser.Result{parser.Fail(parser.FailureReason{
			Code:    parser.ReasonMissingField,
			Field:   "Bag",
			Message: "manifest has no Bag entries",
		})}
	}

	ts := time.Now().UTC()
	confidence := 0.7
	if m.Flight.Departure != "" {
		if parsed, err := time.Parse(time.RFC3339, m.Flight.Departure); err == nil {
			ts = parsed.UTC()
			confidence = 1.0
		}
	}

	correlationID := uuid.NewString()
	results := make([]parser.Result, 0, len(m.Bags))
	for _, b := range m.Bags {
		if !domain.ValidBagTag(b.Tag) {
			results = append(results, parser.Fail(parser.FailureReason{
				Code:    parser.ReasonMissingField,
				Field:   "Bag/@tag",
				Message: "bag tag must be exactly 10 decimal digits",
			}))
			continue
		}

		event := domain.Event{
			Timestamp:     ts,
			BagTag:        b.Tag,
			Location:      m.Flight.Origin,
			EventType:     domain.EventManifestLoad,
			SourceSystem:  sourceSystem,
			CorrelationID: correlationID,
			Payload: domain.LoadPayload{
				FlightNumber: m.Flight.Number,
				Route:        []string{m.Flight.Origin, m.Flight.Destination},
				Pieces:       b.Pieces,
				WeightKG:     b.Weight,
				Destination:  m.Flight.Destination,
			},
		}
		results = append(results, parser.OK(event, confidence))
	}
	return results
}

// Serialize renders e and its siblings back into a BaggageXML document,
// used by round-trip tests.
func Serialize(flightNumber, origin, destination string, departure time.Time, bags ...domain.Event) []byte {
	m := manifest{
		Flight: flight{
			Number:      flightNumber,
			Departure:   departure.UTC().Format(time.RFC3339),
			Origin:      origin,
			Destination: destination,
		},
	}
	for _, e := range bags {
		lp, _ := e.Payload.(domain.LoadPayload)
		m.Bags = append(m.Bags, bag{Tag: e.BagTag, Pieces: lp.Pieces, Weight: lp.WeightKG})
	}
	out, _ := xml.Marshal(m)
	return out
}
