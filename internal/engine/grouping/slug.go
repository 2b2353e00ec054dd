// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package grouping

import (
	"strings"

	"github.com/google/uuid"
)

// uniqueSlug builds a URL-safe trip ID like "trip-to-paris-a1b2c3",
// retrying suffixes until it collides with nothing in known. Trip IDs are
// never recycled, so known must include archived trips' IDs too.
func uniqueSlug(name string, known map[string]bool, suffix func() string) string {
	base := slugify(name)
	if base == "" {
		base = "trip"
	}
	for {
		id := base + "-" + suffix()
		if !known[id] {
			return id
		}
	}
}

// slugify lowercases the name and collapses every non-alphanumeric run
// into a single hyphen.
func slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// randomSuffix returns 6 hex characters for slug uniqueness.
func randomSuffix() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:6]
}
