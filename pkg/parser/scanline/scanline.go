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

// Package scanline parses the whitespace-delimited "bag_tag location
// timestamp?" scan line format used by legacy handheld readers.
package scanline

import (
	"strings"
	"time"

	"github.com/baggageops/core/pkg/domain"
	"github.com/baggageops/core/pkg/parser"
)

// Parser parses one scan line per call.
type Parser struct {
	// Now is substituted in tests; nil uses time.Now.
	Now func() time.Time
}

// New returns a scanline Parser using the real clock.
func New() Parser { return Parser{Now: time.Now} }

func (p Parser) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Parse implements parser.Parser. raw is one line: "bag_tag location" or
// "bag_tag location timestamp", fields separated by arbitrary whitespace.
func (p Parser) Parse(raw []byte, sourceSystem string) []parser.Result {
	line := strings.TrimSpace(string(raw))
	if line == "" {
		return []parser.Result{parser.Fail(parser.FailureReason{
			Code:    parser.ReasonMalformed,
			Message: "empty scan line",
		})}
	}

	fields := strings.Fields(line)
	if len(fields) < 2 {
		return []parser.Result{parser.Fail(parser.FailureReason{
			Code:    parser.ReasonMissingField,
			Message: "expected at least bag_tag and location",
		})}
	}

	bagTag, location := fields[0], fields[1]
	if !domain.ValidBagTag(bagTag) {
		return []parser.Result{parser.Fail(parser.FailureReason{
			Code:    parser.ReasonMissingField,
			Field:   "bag_tag",
			Message: "bag_tag must be exactly 10 decimal digits",
		})}
	}

	ts := p.now().UTC()
	confidence := 0.7
	if len(fields) >= 3 {
		parsed, err := time.Parse(time.RFC3339, fields[2])
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

	event := domain.Event{
		BagTag:       bagTag,
		Location:     location,
		Timestamp:    ts,
		EventType:    domain.EventManual,
		SourceSystem: sourceSystem,
		Payload:      domain.ScanPayload{RawLine: line},
	}
	return []parser.Result{parser.OK(event, confidence)}
}

// Serialize renders e back into "bag_tag location timestamp" form, used
// by round-trip tests.
func Serialize(e domain.Event) []byte {
	return []byte(e.BagTag + " " + e.Location + " " + e.Timestamp.UTC().Format(time.RFC3339))
}
