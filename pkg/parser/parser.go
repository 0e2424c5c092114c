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

// Package parser declares the shared parser contract every source-format
// adapter implements. Parsers are pure: no I/O, no clock
// reads beyond what is handed to them, round-trip safe on their own
// output.
package parser

import "github.com/baggageops/core/pkg/domain"

// FailureReasonCode is the closed set of machine-readable parse failure
// reasons.
type FailureReasonCode string

const (
	ReasonMissingField     FailureReasonCode = "missing_field"
	ReasonMalformed        FailureReasonCode = "malformed"
	ReasonUnknownFormat    FailureReasonCode = "unknown_format"
	ReasonChecksumMismatch FailureReasonCode = "checksum_mismatch"
)

// FailureReason is a structured parse failure: never a bare error that
// callers have to pattern-match the text of.
type FailureReason struct {
	Code    FailureReasonCode
	Field   string
	Message string
}

func (f *FailureReason) Error() string {
	if f.Field != "" {
		return string(f.Code) + ": " + f.Field + ": " + f.Message
	}
	return string(f.Code) + ": " + f.Message
}

// Result is what every parser returns: either a canonical event with a
// confidence score, or a structured failure — never both.
type Result struct {
	Event      domain.Event
	Confidence float64
	Failure    *FailureReason
}

// OK builds a successful Result.
func OK(e domain.Event, confidence float64) Result {
	return Result{Event: e, Confidence: confidence}
}

// Fail builds a failed Result.
func Fail(reason FailureReason) Result {
	return Result{Failure: &reason}
}

// Parser normalizes one source format's raw bytes into zero or more
// canonical events. A single input may yield multiple events (a
// multi-bag SITA telegram or a manifest), so Parse returns a slice.
type Parser interface {
	// Parse returns one Result per bag found in raw. A malformed input
	// that cannot be parsed at all yields a single failed Result.
	Parse(raw []byte, sourceSystem string) []Result
}
