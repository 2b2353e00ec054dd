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

// Package alerts derives lodging-gap and check-in-reminder alerts from a
// trip's active segments. Alerts are recomputed on every sync and never
// persisted on their own; their IDs are content-addressed from the
// triggering segment IDs so the same condition always yields the same ID,
// which is what keeps a user's dismissal effective across runs.
package alerts

import (
	"fmt"
	"sort"
	"time"

	"github.com/blueharbor/tripsync/internal/models"
)

// Config carries the caller-supplied thresholds.
type Config struct {
	// LodgingGap is the hole between adjacent bookings that triggers a
	// gap alert.
	LodgingGap time.Duration

	// CheckInLead is how far ahead of a flight's departure the check-in
	// reminder fires. Zero disables check-in reminders unconditionally.
	CheckInLead time.Duration
}

// GapAlertID is the deterministic ID for a lodging gap between two
// segments.
func GapAlertID(firstID, secondID string) string {
	return fmt.Sprintf("gap-%s-%s", firstID, secondID)
}

// CheckInAlertID is the deterministic ID for a flight check-in reminder.
func CheckInAlertID(segmentID string) string {
	return fmt.Sprintf("checkin-%s", segmentID)
}

// Generate computes the alerts for one trip at the given current time.
// Only active segments participate. The result is ordered by triggering
// segment time, so repeated runs over unchanged segments are identical.
func Generate(trip models.Trip, cfg Config, now time.Time) []models.Alert {
	active := trip.ActiveSegments()
	sort.SliceStable(active, func(i, j int) bool {
		if !active[i].StartTime.Equal(active[j].StartTime) {
			return active[i].StartTime.Before(active[j].StartTime)
		}
		return active[i].ID < active[j].ID
	})

	alerts := []models.Alert{}

	if cfg.LodgingGap > 0 {
		for i := 0; i+1 < len(active); i++ {
			cur, next := active[i], active[i+1]
			gap := next.StartTime.Sub(cur.EndTime)
			if gap <= cfg.LodgingGap {
				continue
			}
			alerts = append(alerts, models.Alert{
				ID:    GapAlertID(cur.ID, next.ID),
				Title: "Lodging gap",
				Description: fmt.Sprintf("There is a %s gap between %q and %q with no booking.",
					humanHours(gap), cur.Description, next.Description),
			})
		}
	}

	if cfg.CheckInLead > 0 {
		for _, s := range active {
			if s.Kind != models.SegmentFlight {
				continue
			}
			// Past flights never remind; future ones only inside the
			// lead window.
			if !s.StartTime.After(now) || s.StartTime.Sub(now) > cfg.CheckInLead {
				continue
			}
			alerts = append(alerts, models.Alert{
				ID:    CheckInAlertID(s.ID),
				Title: "Check-in reminder",
				Description: fmt.Sprintf("Check in for %q departing %s.",
					s.Description, s.StartTime.Format("Jan 2 at 15:04")),
			})
		}
	}

	return alerts
}

func humanHours(d time.Duration) string {
	return fmt.Sprintf("%.0f hour", d.Hours()) + pluralSuffix(d.Hours())
}

func pluralSuffix(n float64) string {
	if n == 1 {
		return ""
	}
	return "s"
}
