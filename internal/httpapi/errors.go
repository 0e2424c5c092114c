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
	"encoding/json"
	"net/http"

	"github.com/baggageops/core/pkg/parser"
	"github.com/baggageops/core/pkg/processor/errclass"
)

// problemDetail is an RFC 7807 application/problem+json body. Every
// handler in this package reports failure through it rather than a bare
// string, so integrators get a machine-readable type alongside the
// human title.
type problemDetail struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func writeProblem(w http.ResponseWriter, status int, problemType, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problemDetail{
		Type:   problemType,
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// writeErr maps err to a status via errclass.HTTPStatus and writes the
// matching problem type, so a 422 schema violation, a 503 downstream
// outage, and a 400 malformed body are distinguishable without parsing
// Detail.
func writeErr(w http.ResponseWriter, err error) {
	var reason *parser.FailureReason
	if fr, ok := err.(*parser.FailureReason); ok {
		reason = fr
	}
	if reason != nil {
		status := http.StatusBadRequest
		problemType := "about:blank#malformed-body"
		title := "malformed body"
		if reason.Code == parser.ReasonMissingField || reason.Code == parser.ReasonChecksumMismatch {
			status = http.StatusUnprocessableEntity
			problemType = "about:blank#schema-violation"
			title = "schema violation"
		}
		writeProblem(w, status, problemType, title, reason.Error())
		return
	}

	status := errclass.HTTPStatus(err)
	title := "bad request"
	problemType := "about:blank#bad-request"
	switch status {
	case 422:
		title = "schema violation"
		problemType = "about:blank#schema-violation"
	case 503:
		title = "downstream store unavailable"
		problemType = "about:blank#downstream-unavailable"
	case 404:
		title = "entity not found"
		problemType = "about:blank#not-found"
	case 409:
		title = "invalid transition"
		problemType = "about:blank#invalid-transition"
	}
	writeProblem(w, status, problemType, title, err.Error())
}

func writeNotFound(w http.ResponseWriter, detail string) {
	writeProblem(w, http.StatusNotFound, "about:blank#not-found", "entity not found", detail)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
