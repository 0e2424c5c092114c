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

// Package httpapi is the ingest-service's synchronous HTTP boundary: the
// format-specific ingest endpoints hand raw bytes to pkg/parser, the
// canonical endpoints build a domain.Event directly, and every accepted
// event is published onto pkg/bus for the worker pool to pick up. Query
// endpoints read straight through pkg/coordinator's passthrough methods.
// No endpoint here blocks on orchestration: the response only reports
// that an event was durably accepted, never that its downstream effects
// finished.
package httpapi

// scanEventRequest is the wire shape of POST /events/scan.
type scanEventRequest struct {
	BagID          string `json:"bag_id" validate:"required,len=10,numeric"`
	Location       string `json:"location" validate:"required"`
	ScanType       string `json:"scan_type" validate:"required"`
	Timestamp      string `json:"timestamp"`
	DeviceID       string `json:"device_id"`
	HandlerID      string `json:"handler_id"`
	SignalStrength *int   `json:"signal_strength" validate:"omitempty,min=0,max=100"`
}

// scanEventResponse is the wire shape POST /events/scan answers with.
type scanEventResponse struct {
	Status    string `json:"status"` // "success" | "duplicate"
	EventID   string `json:"event_id"`
	Timestamp string `json:"timestamp"`
}

// batchEventRequest is the wire shape of POST /events/batch.
type batchEventRequest struct {
	Events       []scanEventRequest `json:"events" validate:"required,min=1,dive"`
	SourceSystem string             `json:"source_system" validate:"required"`
	EventType    string             `json:"event_type" validate:"required"`
}

// perEventError reports one failed element of a batch without failing
// the rest of it.
type perEventError struct {
	Index   int    `json:"index"`
	BagID   string `json:"bag_id,omitempty"`
	Message string `json:"message"`
}

// batchEventResponse is the wire shape POST /events/batch answers with.
type batchEventResponse struct {
	Total          int             `json:"total"`
	Ingested       int             `json:"ingested"`
	Duplicates     int             `json:"duplicates"`
	PerEventErrors []perEventError `json:"per_event_errors"`
}

// opaqueScanRequest is the wire shape of POST /scan: an opaque payload
// string plus a hint at which parser should read it.
type opaqueScanRequest struct {
	Payload string `json:"payload" validate:"required"`
	Source  string `json:"source"`
}

// typeBRequest is the wire shape of POST /type-b.
type typeBRequest struct {
	Message     string `json:"message" validate:"required"`
	MessageType string `json:"message_type" validate:"required,oneof=BTM BSM BPM"`
	FromStation string `json:"from_station" validate:"required,len=3"`
	ToStation   string `json:"to_station" validate:"required,len=3"`
}

// baggageXMLRequest is the wire shape of POST /baggage-xml.
type baggageXMLRequest struct {
	XMLContent   string `json:"xml_content" validate:"required"`
	FlightNumber string `json:"flight_number" validate:"required"`
}

// ingestOutcome is the shared result of publishing zero or more parsed
// events onto the bus, consumed by every ingest handler to build its
// own response shape.
type ingestOutcome struct {
	eventID   string
	duplicate bool
	timestamp string
}
