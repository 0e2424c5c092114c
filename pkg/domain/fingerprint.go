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

package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Fingerprint computes the Ingest Bus dedup key: hash(bag_tag, location,
// timestamp, event_type). It is a pure function so the bus, the
// processor, and tests can all compute the same value without a live
// store.
func Fingerprint(e Event) string {
	h := sha256.New()
	h.Write([]byte(e.BagTag))
	h.Write([]byte{0})
	h.Write([]byte(e.Location))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(e.Timestamp.UTC().UnixNano(), 10)))
	h.Write([]byte{0})
	h.Write([]byte(e.EventType))
	return hex.EncodeToString(h.Sum(nil))
}
