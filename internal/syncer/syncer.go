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

// Package syncer orchestrates a full sync run for one user: fetch
// unread travel emails, extract segments, consolidate them with the
// persisted trips, and commit the result atomically. Collaborators are
// injected as interfaces so the pipeline can be exercised without a
// live mailbox, model, or datastore.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blueharbor/tripsync/internal/chunk"
	"github.com/blueharbor/tripsync/internal/engine"
	"github.com/blueharbor/tripsync/internal/engine/reconcile"
	"github.com/blueharbor/tripsync/internal/extract"
	"github.com/blueharbor/tripsync/internal/models"
	"github.com/blueharbor/tripsync/internal/normalize"
	"github.com/blueharbor/tripsync/internal/runlog"
)

// Mailbox lists and marks travel emails. Implemented by mailbox.Client.
type Mailbox interface {
	ListTravelEmails(ctx context.Context) ([]models.Email, error)
	MarkRead(ctx context.Context, messageID string) error
}

// TripStore persists per-user trip state. Implemented by store.Store.
type TripStore interface {
	EnsureUser(ctx context.Context, user string) error
	ActiveTrips(ctx context.Context, user string) ([]models.Trip, error)
	AllTripIDs(ctx context.Context, user string) (map[string]bool, error)
	Settings(ctx context.Context, user string) (models.Settings, error)
	ProcessedEmailIDs(ctx context.Context, user string) (map[string]bool, error)
	SaveRawEmails(ctx context.Context, user string, emails []models.Email) error
	Commit(ctx context.Context, user string, trips []models.Trip, archiveIDs []string, processed []models.ProcessedEmail) error
}

// SeenFilter is the fast-path duplicate check. Implemented by dedup.Filter.
type SeenFilter interface {
	Seen(ctx context.Context, userID, messageID string) (bool, error)
	MarkSeen(ctx context.Context, userID, messageID string) error
}

// RunRecorder persists run history. Implemented by runlog.Store.
type RunRecorder interface {
	Start(ctx context.Context, userID string) (int64, error)
	Finish(ctx context.Context, runID int64, r runlog.Run) error
}

// MailboxFactory returns a mailbox for the given user. The server builds
// one Gmail client per user from stored credentials.
type MailboxFactory func(ctx context.Context, user string) (Mailbox, error)

// Config holds the syncer's collaborators and tuning knobs.
type Config struct {
	Mailboxes MailboxFactory
	Extractor extract.Extractor
	Store     TripStore
	Dedup     SeenFilter
	Runs      RunRecorder

	MaxEmails int // emails fetched per run
	ChunkSize int // extraction concurrency per chunk

	// Now and NewSuffix are injectable for deterministic tests.
	Now       func() time.Time
	NewSuffix func() string
}

// Result is the outcome of a single sync run.
type Result struct {
	RunID    int64
	Status   string // runlog.StatusSuccess or runlog.StatusFailed
	Message  string
	Trips    []models.Trip
	Archived []string
	Log      []string
}

// Syncer runs the sync pipeline.
type Syncer struct {
	cfg Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a syncer, filling in defaults for unset knobs.
func New(cfg Config) *Syncer {
	if cfg.MaxEmails <= 0 {
		cfg.MaxEmails = 25
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 5
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Syncer{cfg: cfg}
}

// extraction pairs an email with its extracted segments.
type extraction struct {
	email    models.Email
	segments []models.ExtractedSegment
}

// Run executes one sync for the user. A run with zero new emails still
// re-consolidates the persisted trips, so settings changes and segment
// archival take effect without new mail.
func (s *Syncer) Run(ctx context.Context, user string) (*Result, error) {
	res := &Result{Status: runlog.StatusFailed}
	start := s.cfg.Now()
	logf := func(format string, args ...any) {
		line := fmt.Sprintf("[%s] %s", s.cfg.Now().UTC().Format("15:04:05"), fmt.Sprintf(format, args...))
		res.Log = append(res.Log, line)
	}

	if s.cfg.Runs != nil {
		id, err := s.cfg.Runs.Start(ctx, user)
		if err != nil {
			slog.Warn("run-log start failed", "user", user, "error", err)
		} else {
			res.RunID = id
		}
	}

	run, err := s.run(ctx, user, res, logf)
	if err != nil {
		res.Message = err.Error()
		logf("Sync failed: %v", err)
		slog.Error("sync failed", "user", user, "error", err)
	} else {
		res.Status = runlog.StatusSuccess
		res.Message = fmt.Sprintf("Synced %d trips.", len(res.Trips))
		slog.Info("sync complete",
			"user", user,
			"trips", len(res.Trips),
			"archived", len(res.Archived),
			"duration", s.cfg.Now().Sub(start),
		)
	}

	if s.cfg.Runs != nil && res.RunID != 0 {
		run.Status = res.Status
		run.Message = res.Message
		run.Log = strings.Join(res.Log, "\n")
		run.TripsComputed = len(res.Trips)
		run.TripsArchived = len(res.Archived)
		if ferr := s.cfg.Runs.Finish(ctx, res.RunID, run); ferr != nil {
			slog.Warn("run-log finish failed", "user", user, "error", ferr)
		}
	}

	if err != nil {
		return res, err
	}
	return res, nil
}

func (s *Syncer) run(ctx context.Context, user string, res *Result, logf chunk.Logf) (runlog.Run, error) {
	var run runlog.Run
	store := s.cfg.Store

	logf("Starting sync for %s", user)
	if err := store.EnsureUser(ctx, user); err != nil {
		return run, fmt.Errorf("ensure user: %w", err)
	}

	settings, err := store.Settings(ctx, user)
	if err != nil {
		return run, fmt.Errorf("load settings: %w", err)
	}
	prior, err := store.ActiveTrips(ctx, user)
	if err != nil {
		return run, fmt.Errorf("load trips: %w", err)
	}
	knownIDs, err := store.AllTripIDs(ctx, user)
	if err != nil {
		return run, fmt.Errorf("load trip IDs: %w", err)
	}
	processedIDs, err := store.ProcessedEmailIDs(ctx, user)
	if err != nil {
		return run, fmt.Errorf("load processed emails: %w", err)
	}
	logf("Loaded %d existing trips", len(prior))

	// --- Fetch ---
	emails, err := s.fetchNew(ctx, user, processedIDs, logf)
	if err != nil {
		return run, err
	}
	run.EmailsFetched = len(emails)

	if len(emails) > 0 {
		if err := store.SaveRawEmails(ctx, user, emails); err != nil {
			return run, fmt.Errorf("save raw emails: %w", err)
		}
	}

	// --- Extract ---
	extracted, processed, failed := s.extract(ctx, emails, logf)
	run.EmailsFailed = failed

	// --- Normalize ---
	var fresh []models.Segment
	for _, ex := range extracted {
		for _, raw := range ex.segments {
			seg, err := normalize.Segment(raw, ex.email.ID, normalize.Logf(logf))
			if err != nil {
				logf("  - Skipping segment from %s: %v", ex.email.ID, err)
				continue
			}
			fresh = append(fresh, seg)
		}
	}
	run.SegmentsFound = len(fresh)
	logf("Found %d segments in %d emails", len(fresh), len(extracted))

	// --- Consolidate ---
	// Persisted segments lead the pool so a merge keeps the stored
	// segment's identity and trip assignment.
	var pool []models.Segment
	for _, t := range prior {
		pool = append(pool, t.Segments...)
	}
	pool = append(pool, fresh...)

	trips := engine.Consolidate(engine.Input{
		Pool:         pool,
		PriorTrips:   prior,
		KnownTripIDs: knownIDs,
		Settings:     settings,
		Now:          s.cfg.Now(),
		NewSuffix:    s.cfg.NewSuffix,
	}, engine.Logf(logf))
	archive := reconcile.ToArchive(prior, trips)
	logf("Consolidated into %d trips (%d archived)", len(trips), len(archive))

	// --- Commit ---
	if err := store.Commit(ctx, user, trips, archive, processed); err != nil {
		return run, fmt.Errorf("commit: %w", err)
	}
	res.Trips = trips
	res.Archived = archive

	// Post-commit bookkeeping is best-effort: the trips are saved, and a
	// missed mark only costs a re-check next run.
	s.markHandled(ctx, user, extracted, processed, logf)

	return run, nil
}

// fetchNew lists unread travel emails and drops any already processed,
// checking Redis first and Firestore second.
func (s *Syncer) fetchNew(ctx context.Context, user string, processedIDs map[string]bool, logf chunk.Logf) ([]models.Email, error) {
	mb, err := s.cfg.Mailboxes(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("open mailbox: %w", err)
	}

	all, err := mb.ListTravelEmails(ctx)
	if err != nil {
		return nil, fmt.Errorf("list emails: %w", err)
	}
	logf("Fetched %d candidate emails", len(all))

	var fresh []models.Email
	for _, email := range all {
		if len(fresh) >= s.cfg.MaxEmails {
			logf("Reached limit of %d emails, deferring the rest", s.cfg.MaxEmails)
			break
		}
		if processedIDs[email.ID] {
			continue
		}
		if s.cfg.Dedup != nil {
			seen, err := s.cfg.Dedup.Seen(ctx, user, email.ID)
			if err != nil {
				slog.Warn("dedup check failed", "message_id", email.ID, "error", err)
			} else if seen {
				continue
			}
		}
		fresh = append(fresh, email)
	}
	logf("%d emails are new", len(fresh))
	return fresh, nil
}

// extract runs the model over the new emails in chunks. Every email gets
// a terminal processed status: success with its segment count, error on
// extraction failure, or skipped when there is nothing to extract. The
// raw body is already archived either way, so a failed email can be
// replayed by hand without refetching.
func (s *Syncer) extract(ctx context.Context, emails []models.Email, logf chunk.Logf) (ok []extraction, processed []models.ProcessedEmail, failed int) {
	now := s.cfg.Now().UTC()

	var work []models.Email
	for _, email := range emails {
		if strings.TrimSpace(email.Body) == "" && len(email.Attachments) == 0 {
			logf("  - Skipping %s: no content", email.ID)
			processed = append(processed, models.ProcessedEmail{
				ID:          email.ID,
				Status:      models.EmailSkippedNoBody,
				ProcessedAt: now,
			})
			continue
		}
		work = append(work, email)
	}

	results := chunk.Process(ctx, work, func(ctx context.Context, email models.Email) (extraction, error) {
		segs, err := s.cfg.Extractor.Extract(ctx, email)
		if err != nil {
			return extraction{}, fmt.Errorf("extract %s: %w", email.ID, err)
		}
		return extraction{email: email, segments: segs}, nil
	}, s.cfg.ChunkSize, logf)

	succeeded := make(map[string]bool, len(results))
	for _, ex := range results {
		succeeded[ex.email.ID] = true
		processed = append(processed, models.ProcessedEmail{
			ID:            ex.email.ID,
			Status:        models.EmailProcessed,
			FoundSegments: len(ex.segments),
			ProcessedAt:   now,
		})
	}
	for _, email := range work {
		if succeeded[email.ID] {
			continue
		}
		failed++
		processed = append(processed, models.ProcessedEmail{
			ID:          email.ID,
			Status:      models.EmailProcessFailed,
			ProcessedAt: now,
		})
	}

	sort.Slice(processed, func(i, j int) bool { return processed[i].ID < processed[j].ID })
	return results, processed, failed
}

// markHandled marks committed emails seen in Redis and marks the ones
// that produced segments as read in the mailbox. Both happen only after
// the Firestore commit so a crashed run reprocesses rather than drops.
func (s *Syncer) markHandled(ctx context.Context, user string, extracted []extraction, processed []models.ProcessedEmail, logf chunk.Logf) {
	if s.cfg.Dedup != nil {
		for _, p := range processed {
			if err := s.cfg.Dedup.MarkSeen(ctx, user, p.ID); err != nil {
				slog.Warn("dedup mark failed", "message_id", p.ID, "error", err)
			}
		}
	}

	mb, err := s.cfg.Mailboxes(ctx, user)
	if err != nil {
		slog.Warn("mailbox unavailable for mark-read", "user", user, "error", err)
		return
	}
	for _, ex := range extracted {
		if len(ex.segments) == 0 {
			continue
		}
		if err := mb.MarkRead(ctx, ex.email.ID); err != nil {
			slog.Warn("mark-read failed", "message_id", ex.email.ID, "error", err)
			logf("  - Could not mark %s as read: %v", ex.email.ID, err)
		}
	}
}

// StartPeriodic syncs the given users at the configured interval as a
// safety net for missed manual syncs.
func (s *Syncer) StartPeriodic(ctx context.Context, users []string, interval time.Duration) {
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				for _, user := range users {
					if _, err := s.Run(loopCtx, user); err != nil {
						slog.Error("periodic sync failed", "user", user, "error", err)
					}
				}
			}
		}
	}()

	slog.Info("periodic sync started", "interval", interval, "users", len(users))
}

// Stop shuts down the periodic sync loop.
func (s *Syncer) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}
