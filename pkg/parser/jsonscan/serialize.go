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

package jsonscan

import (
	"github.com/go-faster/jx"

	"github.com/baggageops/core/pkg/domain"
)

// Serialize renders e back into the wire shape Parse accepts, used by
// round-trip tests asserting Parse(Serialize(canonical(E))) == canonical(E).
func Serialize(e domain.Event) []byte {
	var enc jx.Encoder
	enc.ObjStart()
	enc.FieldStart("bag_id")
	enc.Str(e.BagTag)
	enc.FieldStart("location")
	enc.Str(e.Location)
	enc.FieldStart("scan_type")
	enc.Str(string(e.EventType))
	enc.FieldStart("timestamp")
	enc.Str(e.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"))
	if e.Handler != "" {
		enc.FieldStart("handler_id")
		enc.Str(e.Handler)
	}
	if e.SignalStrength != nil {
		enc.FieldStart("signal_strength")
		enc.Int(*e.SignalStrength)
	}
	enc.ObjEnd()
	return enc.Bytes()
}
