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
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/baggageops/core/pkg/store/relational"
)

// handleGetBag implements GET /bag/{tag}.
func (s *Server) handleGetBag(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	bag, err := s.coord.GetBag(r.Context(), tag)
	if err != nil {
		writeErr(w, err)
		return
	}
	if bag == nil {
		writeNotFound(w, "bag "+tag+" not found")
		return
	}
	writeJSON(w, http.StatusOK, bag)
}

// handleListBags implements GET /bags?status=&risk_min=&risk_max=&location=&limit=&offset=.
func (s *Server) handleListBags(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := relational.BagFilter{
		Status:   q.Get("status"),
		Location: q.Get("location"),
	}
	if v := q.Get("risk_min"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			f.RiskMin = &parsed
		}
	}
	if v := q.Get("risk_max"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			f.RiskMax = &parsed
		}
	}
	if v := q.Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			f.Limit = parsed
		}
	}
	if v := q.Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			f.Offset = parsed
		}
	}

	bags, err := s.coord.ListBags(r.Context(), f)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bags)
}

// handleJourney implements GET /graph/bags/{id}/journey.
func (s *Server) handleJourney(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "id")
	snapshot, err := s.coord.GetJourney(r.Context(), tag)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// handleCurrentLocation implements GET /graph/bags/{id}/current-location.
func (s *Server) handleCurrentLocation(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "id")
	loc, err := s.coord.GetCurrentLocation(r.Context(), tag)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// handleFlightBags implements GET /graph/flights/{id}/bags.
func (s *Server) handleFlightBags(w http.ResponseWriter, r *http.Request) {
	flightID := chi.URLParam(r, "id")
	bags, err := s.coord.GetFlightBags(r.Context(), flightID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bags)
}

// connectionRiskRequest is the wire shape of POST /graph/bags/connection-risk.
type connectionRiskRequest struct {
	BagTag            string `json:"bag_tag" validate:"required,len=10,numeric"`
	ConnectingFlight  string `json:"connecting_flight" validate:"required"`
	ConnectionMinutes int    `json:"connection_minutes" validate:"min=0"`
}

// handleConnectionRisk implements POST /graph/bags/connection-risk.
func (s *Server) handleConnectionRisk(w http.ResponseWriter, r *http.Request) {
	var req connectionRiskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeProblem(w, http.StatusUnprocessableEntity, "about:blank#schema-violation", "schema violation", err.Error())
		return
	}
	report, err := s.coord.AnalyzeConnectionRisk(r.Context(), req.BagTag, req.ConnectingFlight, req.ConnectionMinutes)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleBottlenecks implements GET /graph/analytics/bottlenecks?window_hours=&min_bags=.
func (s *Server) handleBottlenecks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	windowHours := 24
	if v := q.Get("window_hours"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			windowHours = parsed
		}
	}
	minBags := 5
	if v := q.Get("min_bags"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			minBags = parsed
		}
	}
	reports, err := s.coord.IdentifyBottlenecks(r.Context(), windowHours, minBags)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// handleStreamInfo implements GET /events/stream/info.
func (s *Server) handleStreamInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.bus.Info(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleReplay implements GET /events/replay?start=&end=&max=. start and
// end default to a full-range scan ("-" to "+" in the underlying log);
// max bounds how many envelopes a single call can return.
func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start := q.Get("start")
	if start == "" {
		start = "-"
	}
	end := q.Get("end")
	if end == "" {
		end = "+"
	}
	var max int64 = 1000
	if v := q.Get("max"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			max = parsed
		}
	}
	envelopes, err := s.bus.Replay(r.Context(), start, end, max)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelopes)
}
