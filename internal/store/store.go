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

// Package store persists per-user trip state in Firestore:
//
//	users/{user}                          — user document
//	users/{user}/trips/{tripID}           — one document per trip
//	users/{user}/settings/user_default    — alert thresholds and profile
//	users/{user}/processed_emails/{msgID} — extraction bookkeeping
//	users/{user}/raw_emails/{msgID}       — raw input retained for replay
//
// The sync change-set (trip upserts, archive flags, processed-email
// marks) commits as one Firestore transaction: either the whole run's
// result lands or none of it does.
package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/blueharbor/tripsync/internal/models"
)

// Store wraps the Firestore client with the service's document layout.
type Store struct {
	fs *firestore.Client
}

// New creates a store around an existing Firestore client.
func New(fs *firestore.Client) *Store {
	return &Store{fs: fs}
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.fs.Close()
}

func (s *Store) userRef(user string) *firestore.DocumentRef {
	return s.fs.Collection("users").Doc(user)
}

func (s *Store) tripsRef(user string) *firestore.CollectionRef {
	return s.userRef(user).Collection("trips")
}

// EnsureUser creates the user document on first contact.
func (s *Store) EnsureUser(ctx context.Context, user string) error {
	ref := s.userRef(user)
	_, err := ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		_, err = ref.Set(ctx, map[string]interface{}{"createdAt": time.Now().UTC()})
		if err != nil {
			return fmt.Errorf("create user %s: %w", user, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("get user %s: %w", user, err)
	}
	return nil
}

// ActiveTrips returns the user's non-archived trips ordered by start
// date. Archived trips stay out of consolidation until the user restores
// them.
func (s *Store) ActiveTrips(ctx context.Context, user string) ([]models.Trip, error) {
	iter := s.tripsRef(user).Where("archived", "==", false).Documents(ctx)
	defer iter.Stop()

	var trips []models.Trip
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list trips for %s: %w", user, err)
		}
		var t models.Trip
		if err := snap.DataTo(&t); err != nil {
			return nil, fmt.Errorf("decode trip %s: %w", snap.Ref.ID, err)
		}
		t.ID = snap.Ref.ID
		trips = append(trips, t)
	}

	sort.SliceStable(trips, func(i, j int) bool {
		if !trips[i].StartDate.Equal(trips[j].StartDate) {
			return trips[i].StartDate.Before(trips[j].StartDate)
		}
		return trips[i].ID < trips[j].ID
	})
	return trips, nil
}

// AllTripIDs returns every trip ID ever issued for the user, archived
// included. New slugs must be unique against this whole set because trip
// IDs are never recycled.
func (s *Store) AllTripIDs(ctx context.Context, user string) (map[string]bool, error) {
	iter := s.tripsRef(user).Select().Documents(ctx)
	defer iter.Stop()

	ids := make(map[string]bool)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list trip IDs for %s: %w", user, err)
		}
		ids[snap.Ref.ID] = true
	}
	return ids, nil
}

// Settings returns the user's settings merged over the defaults.
func (s *Store) Settings(ctx context.Context, user string) (models.Settings, error) {
	st := models.DefaultSettings()
	snap, err := s.userRef(user).Collection("settings").Doc("user_default").Get(ctx)
	if status.Code(err) == codes.NotFound {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("get settings for %s: %w", user, err)
	}
	if err := snap.DataTo(&st); err != nil {
		return st, fmt.Errorf("decode settings for %s: %w", user, err)
	}
	return st, nil
}

// SaveSettings stores the user's settings document.
func (s *Store) SaveSettings(ctx context.Context, user string, settings models.Settings) error {
	_, err := s.userRef(user).Collection("settings").Doc("user_default").Set(ctx, settings)
	if err != nil {
		return fmt.Errorf("save settings for %s: %w", user, err)
	}
	return nil
}

// ProcessedEmailIDs returns the set of mailbox message IDs already
// consumed for this user.
func (s *Store) ProcessedEmailIDs(ctx context.Context, user string) (map[string]bool, error) {
	iter := s.userRef(user).Collection("processed_emails").Select().Documents(ctx)
	defer iter.Stop()

	ids := make(map[string]bool)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list processed emails for %s: %w", user, err)
		}
		ids[snap.Ref.ID] = true
	}
	return ids, nil
}

// SaveRawEmails archives raw inputs before extraction results are applied
// so a failed extraction can always be replayed from the original email.
func (s *Store) SaveRawEmails(ctx context.Context, user string, emails []models.Email) error {
	bw := s.fs.BulkWriter(ctx)
	col := s.userRef(user).Collection("raw_emails")
	for _, email := range emails {
		if _, err := bw.Set(col.Doc(email.ID), email); err != nil {
			bw.End()
			return fmt.Errorf("queue raw email %s: %w", email.ID, err)
		}
	}
	bw.End()
	return nil
}

// Commit applies one sync run's change-set atomically: upserts for every
// computed trip, archive flags for orphaned trip IDs, and processed marks
// for the consumed emails. Nothing is deleted.
func (s *Store) Commit(ctx context.Context, user string, trips []models.Trip, archiveIDs []string, processed []models.ProcessedEmail) error {
	tripsCol := s.tripsRef(user)
	processedCol := s.userRef(user).Collection("processed_emails")
	now := time.Now().UTC()

	err := s.fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for _, t := range trips {
			if err := tx.Set(tripsCol.Doc(t.ID), t); err != nil {
				return fmt.Errorf("upsert trip %s: %w", t.ID, err)
			}
		}
		for _, id := range archiveIDs {
			err := tx.Update(tripsCol.Doc(id), []firestore.Update{
				{Path: "archived", Value: true},
				{Path: "archivedAt", Value: now},
			})
			if err != nil {
				return fmt.Errorf("archive trip %s: %w", id, err)
			}
		}
		for _, p := range processed {
			if err := tx.Set(processedCol.Doc(p.ID), p); err != nil {
				return fmt.Errorf("mark email %s processed: %w", p.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit sync for %s: %w", user, err)
	}
	return nil
}
