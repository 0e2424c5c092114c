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

// Package errclass turns a classified processing error plus the
// envelope's delivery count into the outcome the worker pool acts on:
// redeliver, move to the dead-letter stream, or answer the HTTP
// boundary with a 4xx/503. It is the one place that decision gets made,
// so the retry budget cannot drift between the worker and the API.
package errclass

import (
	shrderrors "github.com/baggageops/core/pkg/shared/errors"
)

// MaxAttempts is how many delivery attempts (the original plus
// redeliveries) a transient failure gets before it is dead-lettered
// regardless of classification.
const MaxAttempts = 3

// Outcome is the closed set of actions the processor's retry/DLQ policy
// can return.
type Outcome int

const (
	// OutcomeRedeliver leaves the message unacked; the consumer group
	// will redeliver it (or claim_stale will, if this worker dies first).
	OutcomeRedeliver Outcome = iota
	// OutcomeDLQ dead-letters the message: either its classification is
	// permanent, or it has exhausted MaxAttempts.
	OutcomeDLQ
	// OutcomeAck acknowledges the message even though processing
	// reported a problem — used for Partial failures, where the
	// relational write already committed and retrying would re-derive
	// the same reconciliation debt for no benefit.
	OutcomeAck
)

// Decide classifies err (via its shrderrors.Kind, defaulting to
// Permanent when unclassified) and combines it with attempt, the
// envelope's 1-based delivery count, to pick an Outcome.
func Decide(err error, attempt int64) Outcome {
	if err == nil {
		return OutcomeAck
	}

	switch shrderrors.ClassifyOf(err) {
	case shrderrors.KindPartial:
		return OutcomeAck
	case shrderrors.KindPermanent, shrderrors.KindFatal:
		return OutcomeDLQ
	case shrderrors.KindTransient:
		if attempt >= MaxAttempts {
			return OutcomeDLQ
		}
		return OutcomeRedeliver
	default:
		return OutcomeDLQ
	}
}

// HTTPStatus maps a validation/processing error to the status code the
// ingest-service's synchronous intake endpoint returns, independent of
// the asynchronous worker's Outcome above (spec.md's 422 schema
// violation, 409 version conflict, and 503 upstream-unavailable paths).
func HTTPStatus(err error) int {
	if err == nil {
		return 200
	}
	switch shrderrors.ClassifyOf(err) {
	case shrderrors.KindPermanent:
		return 422
	case shrderrors.KindTransient:
		return 503
	case shrderrors.KindFatal:
		return 503
	default:
		return 400
	}
}
