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

// Package typeb parses SITA Type B baggage telegrams (BTM/BSM/BPM) into
// canonical events. A telegram carries one
// flight/route line and one or more passenger/bag lines; a multi-bag
// telegram yields multiple canonical events sharing a correlation id.
package typeb

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/baggageops/core/pkg/domain"
	"github.com/baggageops/core/pkg/parser"
)

// MessageType is the closed set of Type B baggage telegram variants.
type MessageType string

const (
	BTM MessageType = "BTM" // Baggage Transfer Message
	BSM MessageType = "BSM" // Baggage Source Message
	BPM MessageType = "BPM" // Baggage Processing Message
)

// Parser parses a Type B telegram. FromStation/ToStation are carried on
// the envelope rather than re-derived from the FM/TO header lines, which
// are kept only as provenance.
type Parser struct {
	MessageType MessageType
	FromStation string
	ToStation   string
}

// routeLine matches "FLIGHT/DDMMM ORIG DEST", e.g. "AA0123/01JAN PTY MIA".
var routeLine = regexp.MustCompile(`^([A-Z0-9]{2,8})/(\d{2}[A-Z]{3})\s+([A-Z]{3})\s+([A-Z]{3})$`)

// Parse implements parser.Parser. raw is the full telegram text.
func (p Parser) Parse(raw []byte, sourceSystem string) []parser.Result {
	lines := splitLines(string(raw))
	if len(lines) == 0 {
		return fail(parser.ReasonMalformed, "", "empty telegram")
	}

	var flight, originAirport, destAirport, depDDMMM string
	var passengerLines []string
	sawFM, sawTO := false, false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "FM"):
			sawFM = true
		case strings.HasPrefix(trimmed, "TO"):
			sawTO = true
		case strings.HasPrefix(trimmed, "."):
			passengerLines = append(passengerLines, trimmed)
		default:
			if m := routeLine.FindStringSubmatch(trimmed); m != nil {
				flight, depDDMMM, originAirport, destAirport = m[1], m[2], m[3], m[4]
			}
		}
	}

	if !sawFM || !sawTO {
		return fail(parser.ReasonMissingField, "header", "telegram missing FM/TO header lines")
	}
	if flight == "" {
		return fail(parser.ReasonMissingField, "route", "telegram missing FLIGHT/DDMMM ORIG DEST route line")
	}
	if len(passengerLines) == 0 {
		return fail(parser.ReasonMissingField, "passenger", "telegram has no .NAME BAGTAG PIECES/WEIGHT DEST lines")
	}

	correlationID := uuid.NewString()
	results := make([]parser.Result, 0, len(passengerLines))
	ts := time.Now().UTC()

	for _, pl := range passengerLines {
		bagTag, pieces, weight, dest, err := parsePassengerLine(pl)
		if err != nil {
			results = append(results, parser.Fail(parser.FailureReason{
				Code:    parser.ReasonMalformed,
				Field:   "passenger",
				Message: err.Error(),
			}))
			continue
		}
		if !domain.ValidBagTag(bagTag) {
			results = append(results, parser.Fail(parser.FailureReason{
				Code:    parser.ReasonMissingField,
				Field:   "bag_tag",
				Message: "bag_tag must be exactly 10 decimal digits",
			}))
			continue
		}

		location := originAirport
		if p.FromStation != "" {
			location = p.FromStation
		}

		event := domain.Event{
			Timestamp:     ts,
			BagTag:        bagTag,
			Location:      location,
			EventType:     eventTypeFor(p.MessageType),
			SourceSystem:  sourceSystem,
			CorrelationID: correlationID,
			Payload: domain.LoadPayload{
				FlightNumber: flight,
				Route:        []string{originAirport, destAirport},
				Pieces:       pieces,
				WeightKG:     weight,
				Destination:  dest,
			},
		}
		_ = depDDMMM // provenance only; not part of the canonical event
		results = append(results, parser.OK(event, 0.9))
	}
	return results
}

func eventTypeFor(mt MessageType) domain.EventType {
	switch mt {
	case BSM:
		return domain.EventCheckIn
	case BPM:
		return domain.EventSortation
	default: // BTM
		return domain.EventTransfer
	}
}

// parsePassengerLine parses ".NAME BAGTAG PIECES/WEIGHT DEST".
func parsePassengerLine(line string) (bagTag string, pieces int, weightKG float64, dest string, err error) {
	fields := strings.Fields(strings.TrimPrefix(line, "."))
	if len(fields) < 4 {
		return "", 0, 0, "", fmt.Errorf("expected .NAME BAGTAG PIECES/WEIGHT DEST, got %q", line)
	}
	bagTag = fields[len(fields)-3]
	piecesWeight := fields[len(fields)-2]
	dest = fields[len(fields)-1]

	parts := strings.SplitN(piecesWeight, "/", 2)
	if len(parts) != 2 {
		return "", 0, 0, "", fmt.Errorf("expected PIECES/WEIGHT, got %q", piecesWeight)
	}
	pieces, err = strconv.Atoi(parts[0])
	if err != nil {
		return "", 0, 0, "", fmt.Errorf("invalid piece count %q: %w", parts[0], err)
	}
	weightKG, err = strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return "", 0, 0, "", fmt.Errorf("invalid weight %q: %w", parts[1], err)
	}
	return bagTag, pieces, weightKG, dest, nil
}

func fail(code parser.FailureReasonCode, field, msg string) []parser.Result {
	return []parser.Result{parser.Fail(parser.FailureReason{Code: code, Field: field, Message: msg})}
}

func splitLines(s string) []string {
	var lines []string
	for _, l := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
