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

package models

import "time"

// Alert is a derived notice attached to a trip. Alerts are recomputed on
// every sync; the ID is a deterministic function of the triggering segment
// IDs so that a user's dismissal survives recomputation.
type Alert struct {
	ID          string `json:"id" firestore:"id"`
	Title       string `json:"title" firestore:"title"`
	Description string `json:"description" firestore:"description"`
}

// Trip is a consolidated journey: a cluster of segments plus derived
// display fields. The ID is a stable slug assigned once and retained
// across re-syncs.
type Trip struct {
	ID                 string `json:"id" firestore:"id"`
	Name               string `json:"name" firestore:"name"`
	Summary            string `json:"summary" firestore:"summary"`
	Icon               string `json:"icon,omitempty" firestore:"icon,omitempty"`
	PrimaryDestination string `json:"primaryDestination" firestore:"primaryDestination"`

	// StartDate and EndDate are the min/max over the active segments,
	// recomputed on every grouping pass, never hand-edited.
	StartDate time.Time `json:"startDate" firestore:"startDate"`
	EndDate   time.Time `json:"endDate" firestore:"endDate"`

	Travelers        []string `json:"travelers" firestore:"travelers"`
	PlanningProgress int      `json:"planningProgress" firestore:"planningProgress"`

	// Segments are ordered chronologically and include archived ones.
	Segments []Segment `json:"segments" firestore:"segments"`
	Alerts   []Alert   `json:"alerts" firestore:"alerts"`

	// DismissedAlertIDs is user-controlled state. The engine carries it
	// forward verbatim across regrouping and never clears it.
	DismissedAlertIDs []string `json:"dismissedAlertIds" firestore:"dismissedAlertIds"`

	Archived   bool       `json:"archived" firestore:"archived"`
	ArchivedAt *time.Time `json:"archivedAt,omitempty" firestore:"archivedAt,omitempty"`
}

// ActiveSegments returns the non-archived segments in stored order.
func (t Trip) ActiveSegments() []Segment {
	var active []Segment
	for _, s := range t.Segments {
		if !s.Archived {
			active = append(active, s)
		}
	}
	return active
}

// Settings holds the per-user values the consolidation engine needs.
// They live in the user's settings document; missing fields fall back to
// DefaultSettings.
type Settings struct {
	// LodgingGapHours is the gap between bookings that triggers a
	// lodging-gap alert.
	LodgingGapHours int `json:"lodgingGapHours" firestore:"lodgingGapHours"`

	// CheckInLeadTimeHours is how far ahead of a flight to raise a
	// check-in reminder. Zero disables check-in alerts entirely.
	CheckInLeadTimeHours int `json:"checkInLeadTimeHours" firestore:"checkInLeadTimeHours"`

	// TravelerProfile is free text describing the user's travel
	// preferences, used by the recommendation input builder.
	TravelerProfile string `json:"travelerProfile,omitempty" firestore:"travelerProfile,omitempty"`
}

// DefaultSettings returns the values used when a user has no settings
// document.
func DefaultSettings() Settings {
	return Settings{
		LodgingGapHours:      24,
		CheckInLeadTimeHours: 0,
	}
}
