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

// Package reconcile diffs the newly computed trip set against the
// previously persisted one. Trips whose contents were absorbed elsewhere
// are flagged for archival, never deleted, so the user can restore them.
package reconcile

import (
	"sort"

	"github.com/blueharbor/tripsync/internal/models"
)

// ToArchive returns the IDs of previously persisted trips that no longer
// appear in the newly computed set, sorted for deterministic output.
func ToArchive(previous, next []models.Trip) []string {
	current := make(map[string]bool, len(next))
	for _, t := range next {
		current[t.ID] = true
	}

	var orphaned []string
	seen := make(map[string]bool, len(previous))
	for _, t := range previous {
		if current[t.ID] || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		orphaned = append(orphaned, t.ID)
	}
	sort.Strings(orphaned)
	return orphaned
}
