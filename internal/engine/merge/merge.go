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

// Package merge fuses near-duplicate segments that describe the same
// real-world booking, typically two travelers' confirmations for one
// flight or hotel stay. Merging concatenates the confirmation records onto
// one canonical segment and is idempotent: a segment already in the pool
// under the same ID is a no-op.
package merge

import (
	"strings"

	"github.com/blueharbor/tripsync/internal/models"
)

// Logf receives human-readable run log lines.
type Logf func(format string, args ...any)

// Segments deduplicates the pool. Order matters: when two segments fuse,
// the earlier one keeps its identity (ID, source email, scalar fields), so
// callers put previously persisted segments ahead of newly extracted ones
// to keep user-visible IDs stable.
func Segments(pool []models.Segment, logf Logf) []models.Segment {
	out := make([]models.Segment, 0, len(pool))
	seen := make(map[string]bool, len(pool))

	for _, s := range pool {
		if s.ID != "" && seen[s.ID] {
			continue
		}
		seen[s.ID] = true

		fused := false
		for i := range out {
			if !duplicates(out[i], s) {
				continue
			}
			if logf != nil {
				logf("Merged duplicate %s booking %q into segment %s (%d confirmation(s) total)",
					s.Kind, s.Description, out[i].ID, len(out[i].Confirmations)+len(s.Confirmations))
			}
			out[i] = fuse(out[i], s)
			fused = true
			break
		}
		if !fused {
			out = append(out, s)
		}
	}

	return out
}

// duplicates reports whether a and b describe the same real-world booking.
// The rule is keyed on kind, provider, times and the location fields
// relevant to the kind. Hotel stays additionally merge on overlapping date
// ranges, which captures separate-room bookings for one stay.
func duplicates(a, b models.Segment) bool {
	if a.Kind != b.Kind {
		return false
	}
	if !textEqual(a.Details.Provider, b.Details.Provider) {
		return false
	}

	if a.Kind == models.SegmentHotel {
		return textEqual(a.Location, b.Location) && overlaps(a, b)
	}

	if !a.StartTime.Equal(b.StartTime) || !a.EndTime.Equal(b.EndTime) {
		return false
	}
	if a.Kind.IsTransport() {
		return textEqual(a.Details.From, b.Details.From) && textEqual(a.Details.To, b.Details.To)
	}
	return textEqual(a.Location, b.Location)
}

// fuse merges b into a. a keeps its ID, source email and scalar fields;
// b's confirmations are appended in contribution order and any optional
// field a is missing is filled from b.
func fuse(a, b models.Segment) models.Segment {
	a.Confirmations = append(a.Confirmations, b.Confirmations...)

	a.Status = firstNonEmpty(a.Status, b.Status)
	a.TripID = firstNonEmpty(a.TripID, b.TripID)

	a.Details.Provider = firstNonEmpty(a.Details.Provider, b.Details.Provider)
	a.Details.BookingAgent = firstNonEmpty(a.Details.BookingAgent, b.Details.BookingAgent)
	a.Details.From = firstNonEmpty(a.Details.From, b.Details.From)
	a.Details.To = firstNonEmpty(a.Details.To, b.Details.To)
	a.Details.FlightNumber = firstNonEmpty(a.Details.FlightNumber, b.Details.FlightNumber)
	a.Details.AirlineCode = firstNonEmpty(a.Details.AirlineCode, b.Details.AirlineCode)
	a.Details.PhoneNumber = firstNonEmpty(a.Details.PhoneNumber, b.Details.PhoneNumber)

	return a
}

// overlaps reports whether the two segments' date ranges intersect.
func overlaps(a, b models.Segment) bool {
	return !a.StartTime.After(b.EndTime) && !b.StartTime.After(a.EndTime)
}

func textEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
