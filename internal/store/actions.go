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

package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/blueharbor/tripsync/internal/models"
)

// ArchiveTrip soft-deletes a trip. The document and its segments stay in
// place so RestoreTrip can undo this without data loss.
func (s *Store) ArchiveTrip(ctx context.Context, user, tripID string) error {
	return s.setTripArchived(ctx, user, tripID, true)
}

// RestoreTrip brings an archived trip back into consolidation.
func (s *Store) RestoreTrip(ctx context.Context, user, tripID string) error {
	return s.setTripArchived(ctx, user, tripID, false)
}

func (s *Store) setTripArchived(ctx context.Context, user, tripID string, archived bool) error {
	updates := []firestore.Update{{Path: "archived", Value: archived}}
	if archived {
		updates = append(updates, firestore.Update{Path: "archivedAt", Value: time.Now().UTC()})
	} else {
		updates = append(updates, firestore.Update{Path: "archivedAt", Value: firestore.Delete})
	}
	if _, err := s.tripsRef(user).Doc(tripID).Update(ctx, updates); err != nil {
		return fmt.Errorf("set trip %s archived=%v: %w", tripID, archived, err)
	}
	return nil
}

// ArchiveSegment flags one segment inside a trip as archived. The next
// consolidation run excludes it from merging and alerting but keeps it
// attached to its trip.
func (s *Store) ArchiveSegment(ctx context.Context, user, tripID, segmentID string) error {
	return s.setSegmentArchived(ctx, user, tripID, segmentID, true)
}

// RestoreSegment clears a segment's archived flag.
func (s *Store) RestoreSegment(ctx context.Context, user, tripID, segmentID string) error {
	return s.setSegmentArchived(ctx, user, tripID, segmentID, false)
}

func (s *Store) setSegmentArchived(ctx context.Context, user, tripID, segmentID string, archived bool) error {
	ref := s.tripsRef(user).Doc(tripID)
	err := s.fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var t models.Trip
		if err := snap.DataTo(&t); err != nil {
			return fmt.Errorf("decode trip %s: %w", tripID, err)
		}
		found := false
		for i := range t.Segments {
			if t.Segments[i].ID == segmentID {
				t.Segments[i].Archived = archived
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("segment %s not found in trip %s", segmentID, tripID)
		}
		return tx.Update(ref, []firestore.Update{{Path: "segments", Value: t.Segments}})
	})
	if err != nil {
		return fmt.Errorf("set segment %s archived=%v: %w", segmentID, archived, err)
	}
	return nil
}

// DismissAlert records an alert ID the user no longer wants to see.
// Dismissals survive re-consolidation because alert IDs derive from
// segment IDs, which are stable across runs.
func (s *Store) DismissAlert(ctx context.Context, user, tripID, alertID string) error {
	_, err := s.tripsRef(user).Doc(tripID).Update(ctx, []firestore.Update{
		{Path: "dismissedAlertIds", Value: firestore.ArrayUnion(alertID)},
	})
	if err != nil {
		return fmt.Errorf("dismiss alert %s on trip %s: %w", alertID, tripID, err)
	}
	return nil
}
