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

package sanitization

import "strings"

// redactKeyValues scans text byte by byte for one of keys immediately
// followed by a colon (ignoring interior spaces and an optional
// surrounding quote), and replaces the value with "[REDACTED]". It
// never uses regexp, so it has no backtracking blow-up to guard
// against — the point of being the fallback.
func redactKeyValues(text string, keys []string) string {
	lower := strings.ToLower(text)
	var buf strings.Builder
	i := 0
	for i < len(text) {
		if key, ok := matchKeyAt(lower, i, keys); ok {
			j := i + len(key)
			k := j
			for k < len(text) && text[k] == ' ' {
				k++
			}
			if k < len(text) && text[k] == ':' {
				k++
				for k < len(text) && (text[k] == ' ' || text[k] == '\t') {
					k++
				}
				var quote byte
				if k < len(text) && (text[k] == '\'' || text[k] == '"') {
					quote = text[k]
					k++
				}
				for k < len(text) {
					c := text[k]
					if quote != 0 {
						if c == quote {
							break
						}
					} else if c == ' ' || c == '\t' || c == ',' || c == '}' || c == '\n' {
						break
					}
					k++
				}
				buf.WriteString(text[i:j])
				buf.WriteString(": [REDACTED]")
				if quote != 0 && k < len(text) && text[k] == quote {
					k++
				}
				i = k
				continue
			}
		}
		buf.WriteByte(text[i])
		i++
	}
	return buf.String()
}

// matchKeyAt reports whether one of keys starts at position i in lower,
// preceded by a word boundary (start of string or a non-alphanumeric
// character), so "mypassword:x" is not mistaken for a "password" key.
func matchKeyAt(lower string, i int, keys []string) (string, bool) {
	if i > 0 && isWordByte(lower[i-1]) {
		return "", false
	}
	for _, key := range keys {
		if strings.HasPrefix(lower[i:], key) {
			return key, true
		}
	}
	return "", false
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
