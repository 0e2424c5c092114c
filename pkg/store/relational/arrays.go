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

package relational

import "strings"

// pqStringArray and splitPQStringArray store an ordered []string as a
// single pipe-delimited column instead of a native Postgres array, so the
// sqlmock-backed tests don't need a driver.Valuer round trip through
// pgtype. Routing codes and risk factors are airport/IATA-style tokens
// that never contain '|'.
const arraySeparator = "|"

func pqStringArray(vals []string) string {
	return strings.Join(vals, arraySeparator)
}

func splitPQStringArray(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, arraySeparator)
}
