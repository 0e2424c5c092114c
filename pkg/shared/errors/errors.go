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

// Package errors provides the core's base error type, a handful of
// common-case constructors, and the taxonomy helpers
// (transient/permanent/partial/fatal) used throughout the pipeline to
// classify failures.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// OperationError wraps a failed operation with enough structure for a log
// line without string-parsing it back apart.
type OperationError struct {
	Operation string
	Component string
	Resource  string
	Cause     error
}

func (e *OperationError) Error() string {
	switch {
	case e.Component != "" && e.Resource != "":
		return fmt.Sprintf("failed to %s, component: %s, resource: %s, cause: %v", e.Operation, e.Component, e.Resource, e.Cause)
	case e.Component != "" && e.Cause != nil:
		return fmt.Sprintf("failed to %s, component: %s, cause: %v", e.Operation, e.Component, e.Cause)
	case e.Component != "":
		return fmt.Sprintf("failed to %s, component: %s", e.Operation, e.Component)
	case e.Cause != nil:
		return fmt.Sprintf("failed to %s, cause: %v", e.Operation, e.Cause)
	default:
		return fmt.Sprintf("failed to %s", e.Operation)
	}
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// FailedTo builds a minimal OperationError. With a cause it is rendered
// "failed to <action>: <cause>"; the OperationError general form uses a
// "cause:" label instead, so FailedTo renders its own string rather than
// delegating to OperationError.Error.
type simpleError struct {
	operation string
	cause     error
}

func (e *simpleError) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("failed to %s", e.operation)
	}
	return fmt.Sprintf("failed to %s: %v", e.operation, e.cause)
}

func (e *simpleError) Unwrap() error { return e.cause }

// FailedTo builds an error for the common "no extra detail" case.
func FailedTo(action string, cause error) error {
	return &simpleError{operation: action, cause: cause}
}

// FailedToWithDetails builds an OperationError with component/resource.
func FailedToWithDetails(action, component, resource string, cause error) error {
	return &OperationError{Operation: action, Component: component, Resource: resource, Cause: cause}
}

// Wrapf wraps err with an additional formatted message, stdlib
// fmt.Errorf-style ("%w" semantics) but returning nil for a nil err so
// call sites can wrap unconditionally.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", msg, err)
}

// DatabaseError builds an OperationError tagged to the relational store.
func DatabaseError(operation string, cause error) error {
	return &OperationError{Operation: operation, Component: "database", Cause: cause}
}

// NetworkError builds an OperationError tagged to a remote endpoint.
func NetworkError(operation, endpoint string, cause error) error {
	return &OperationError{Operation: operation, Component: "network", Resource: endpoint, Cause: cause}
}

// ValidationError reports a field-level validation failure (the 422
// schema-violation path at the ingest boundary).
type ValidationErr struct {
	Field  string
	Reason string
}

func (e *ValidationErr) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Reason)
}

func ValidationError(field, reason string) error {
	return &ValidationErr{Field: field, Reason: reason}
}

// ConfigurationError reports an invalid configuration setting, a Fatal
// condition.
func ConfigurationError(setting, reason string) error {
	return fmt.Errorf("configuration error for setting %s: %s", setting, reason)
}

// TimeoutError reports a deadline expiry on an external call.
func TimeoutError(waitingFor, after string) error {
	return fmt.Errorf("timeout while waiting for %s after %s", waitingFor, after)
}

// AuthenticationError reports a credential failure on an external capability
// adapter (e.g. PIRService, CourierService).
func AuthenticationError(reason string) error {
	return fmt.Errorf("authentication failed: %s", reason)
}

// AuthorizationError reports an authorization denial, handled by the HTTP
// collaborator but surfaced here for adapters that enforce it themselves.
func AuthorizationError(action, resource string) error {
	return fmt.Errorf("authorization failed: insufficient permissions to %s %s", action, resource)
}

// ParseError reports a structured parser failure.
func ParseError(source, format string, cause error) error {
	return &OperationError{Operation: fmt.Sprintf("parse %s as %s", source, format), Cause: cause}
}

// retryableSubstrings are the textual markers of a transient condition
// when a caller hands us a bare error with no Kind attached (e.g. a
// library error we did not wrap ourselves).
var retryableSubstrings = []string{"timeout", "connection refused", "unavailable", "reset", "temporarily"}

// IsRetryable reports whether err looks transient. Classified errors
// answer from their Kind; anything else falls back to a substring
// heuristic, the same fallback the processor uses for third-party errors
// it did not itself classify.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var c *Classified
	if stderrors.As(err, &c) {
		return c.Kind == KindTransient
	}
	lower := strings.ToLower(err.Error())
	for _, s := range retryableSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// Chain joins non-nil errors into one message, skipping nils. It returns
// nil if every error is nil, the bare error if exactly one is non-nil.
func Chain(errs ...error) error {
	var msgs []string
	for _, e := range errs {
		if e != nil {
			msgs = append(msgs, e.Error())
		}
	}
	switch len(msgs) {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("%s", msgs[0])
	default:
		return fmt.Errorf("multiple errors: %s", strings.Join(msgs, "; "))
	}
}

// Kind is the error taxonomy.
type Kind int

const (
	KindTransient Kind = iota
	KindPermanent
	KindPartial
	KindFatal
)

// Classified carries a Kind alongside the underlying cause so the
// processor's retry/DLQ policy table can switch on it without re-deriving
// the classification from the error's text.
type Classified struct {
	Kind  Kind
	Cause error
}

func (c *Classified) Error() string { return c.Cause.Error() }
func (c *Classified) Unwrap() error { return c.Cause }

// Transient wraps cause as a retryable failure: graph store unavailable,
// network timeout, pool saturation, connection reset.
func Transient(cause error) error { return &Classified{Kind: KindTransient, Cause: cause} }

// Permanent wraps cause as non-retryable: schema violation,
// invalid_transition, parse failure, unknown referent.
func Permanent(cause error) error { return &Classified{Kind: KindPermanent, Cause: cause} }

// Partial wraps cause as "relational committed, graph projection did not":
// processing continues, reconciliation debt is recorded.
func Partial(cause error) error { return &Classified{Kind: KindPartial, Cause: cause} }

// Fatal wraps cause as a reason to stop the worker and alert: authoritative
// store unavailable at startup, invalid configuration.
func Fatal(cause error) error { return &Classified{Kind: KindFatal, Cause: cause} }

// ClassifyOf extracts the Kind from err, defaulting to KindPermanent when
// err was never classified (fail closed: an unclassified error does not
// get silently retried forever).
func ClassifyOf(err error) Kind {
	var c *Classified
	if stderrors.As(err, &c) {
		return c.Kind
	}
	return KindPermanent
}
