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

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/baggageops/core/pkg/domain"
	"github.com/baggageops/core/pkg/parser"
	"github.com/baggageops/core/pkg/parser/baggagexml"
	"github.com/baggageops/core/pkg/parser/jsonscan"
	"github.com/baggageops/core/pkg/parser/scanline"
	"github.com/baggageops/core/pkg/parser/typeb"
)

const maxIngestBody = 1 << 20 // 1 MiB; a single scan or telegram never approaches this

const timeLayout = time.RFC3339

var errEmptyParse = errors.New("parser produced no event")

// handleEventScan implements POST /events/scan: one canonical JSON scan
// event, decoded and dispatched through jsonscan so the HTTP boundary
// and the bus's own replay path share exactly one decoder.
func (s *Server) handleEventScan(w http.ResponseWriter, r *http.Request) {
	var req scanEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeProblem(w, http.StatusUnprocessableEntity, "about:blank#schema-violation", "schema violation", err.Error())
		return
	}

	raw, err := json.Marshal(req)
	if err != nil {
		writeErr(w, err)
		return
	}

	results := jsonscan.Parser{}.Parse(raw, "http")
	outcome, err := s.ingestOne(r.Context(), results)
	if err != nil {
		writeErr(w, err)
		return
	}

	status := "success"
	if outcome.duplicate {
		status = "duplicate"
	}
	writeJSON(w, http.StatusOK, scanEventResponse{
		Status:    status,
		EventID:   outcome.eventID,
		Timestamp: outcome.timestamp,
	})
}

// handleEventBatch implements POST /events/batch: every element is run
// through the same jsonscan decode path as a single scan, independently,
// so one malformed element never fails the rest of the batch.
func (s *Server) handleEventBatch(w http.ResponseWriter, r *http.Request) {
	var req batchEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeProblem(w, http.StatusUnprocessableEntity, "about:blank#schema-violation", "schema violation", err.Error())
		return
	}

	resp := batchEventResponse{Total: len(req.Events)}
	for i, ev := range req.Events {
		raw, err := json.Marshal(ev)
		if err != nil {
			resp.PerEventErrors = append(resp.PerEventErrors, perEventError{Index: i, BagID: ev.BagID, Message: err.Error()})
			continue
		}
		results := jsonscan.Parser{}.Parse(raw, req.SourceSystem)
		outcome, err := s.ingestOne(r.Context(), results)
		if err != nil {
			resp.PerEventErrors = append(resp.PerEventErrors, perEventError{Index: i, BagID: ev.BagID, Message: err.Error()})
			continue
		}
		if outcome.duplicate {
			resp.Duplicates++
		} else {
			resp.Ingested++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleScan implements POST /scan: an opaque payload plus a source
// hint, dispatched to the scanline parser for legacy handheld readers
// and to jsonscan for anything tagged "json". Source is a hint, not a
// guarantee; an unrecognized hint falls back to scanline, the oldest and
// most permissive format.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req opaqueScanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeProblem(w, http.StatusUnprocessableEntity, "about:blank#schema-violation", "schema violation", err.Error())
		return
	}

	var p parser.Parser
	switch req.Source {
	case "json":
		p = jsonscan.Parser{}
	default:
		p = scanline.New()
	}

	results := p.Parse([]byte(req.Payload), req.Source)
	outcome, err := s.ingestOne(r.Context(), results)
	if err != nil {
		writeErr(w, err)
		return
	}
	status := "success"
	if outcome.duplicate {
		status = "duplicate"
	}
	writeJSON(w, http.StatusOK, scanEventResponse{Status: status, EventID: outcome.eventID, Timestamp: outcome.timestamp})
}

// handleTypeB implements POST /type-b: a SITA Type B telegram, which may
// describe more than one bag, so every parsed event is published and the
// batch-shaped response is reused even though the request itself is a
// single telegram.
func (s *Server) handleTypeB(w http.ResponseWriter, r *http.Request) {
	var req typeBRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeProblem(w, http.StatusUnprocessableEntity, "about:blank#schema-violation", "schema violation", err.Error())
		return
	}

	p := typeb.Parser{
		MessageType: typeb.MessageType(req.MessageType),
		FromStation: req.FromStation,
		ToStation:   req.ToStation,
	}
	results := p.Parse([]byte(req.Message), "type-b")
	s.ingestBatch(w, r, results)
}

// handleBaggageXML implements POST /baggage-xml: one manifest document,
// one canonical manifest_load event per Bag entry.
func (s *Server) handleBaggageXML(w http.ResponseWriter, r *http.Request) {
	var req baggageXMLRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeProblem(w, http.StatusUnprocessableEntity, "about:blank#schema-violation", "schema violation", err.Error())
		return
	}

	results := baggagexml.New().Parse([]byte(req.XMLContent), "baggage-xml")
	s.ingestBatch(w, r, results)
}

// ingestBatch publishes every successfully parsed result in results and
// reports the aggregate, used by the multi-bag ingest endpoints.
func (s *Server) ingestBatch(w http.ResponseWriter, r *http.Request, results []parser.Result) {
	resp := batchEventResponse{Total: len(results)}
	for i, res := range results {
		if res.Failure != nil {
			resp.PerEventErrors = append(resp.PerEventErrors, perEventError{Index: i, Message: res.Failure.Error()})
			continue
		}
		event := withEventID(res.Event)
		pr, err := s.bus.Publish(r.Context(), event)
		if err != nil {
			resp.PerEventErrors = append(resp.PerEventErrors, perEventError{Index: i, BagID: res.Event.BagTag, Message: err.Error()})
			continue
		}
		if pr.Duplicate {
			resp.Duplicates++
		} else {
			resp.Ingested++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ingestOne expects results to hold exactly the single event a
// single-scan endpoint produces; a parse failure is reported as a 422,
// never silently dropped.
func (s *Server) ingestOne(ctx context.Context, results []parser.Result) (ingestOutcome, error) {
	if len(results) == 0 || results[0].Failure != nil {
		if len(results) > 0 {
			return ingestOutcome{}, results[0].Failure
		}
		return ingestOutcome{}, errEmptyParse
	}
	event := withEventID(results[0].Event)
	pr, err := s.bus.Publish(ctx, event)
	if err != nil {
		return ingestOutcome{}, err
	}
	return ingestOutcome{
		eventID:   event.EventID,
		duplicate: pr.Duplicate,
		timestamp: event.Timestamp.Format(timeLayout),
	}, nil
}

// withEventID returns e with a fresh EventID if the parser that produced
// it left one unset. Parsers are pure and assign no identity of their
// own; the HTTP boundary is where a freshly-ingested event is first
// given the id its idempotency key and DLQ tracking depend on.
func withEventID(e domain.Event) domain.Event {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	return e
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	defer func() { _, _ = io.Copy(io.Discard, r.Body); _ = r.Body.Close() }()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxIngestBody))
	if err := dec.Decode(dst); err != nil {
		writeProblem(w, http.StatusBadRequest, "about:blank#malformed-body", "malformed body", err.Error())
		return err
	}
	return nil
}
