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

package syncer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/blueharbor/tripsync/internal/models"
	"github.com/blueharbor/tripsync/internal/runlog"
)

// --- fakes ---

type fakeMailbox struct {
	emails  []models.Email
	listErr error
	read    []string
}

func (m *fakeMailbox) ListTravelEmails(ctx context.Context) ([]models.Email, error) {
	return m.emails, m.listErr
}

func (m *fakeMailbox) MarkRead(ctx context.Context, messageID string) error {
	m.read = append(m.read, messageID)
	return nil
}

type fakeExtractor struct {
	segs  map[string][]models.ExtractedSegment
	errs  map[string]error
	calls []string
}

func (e *fakeExtractor) Extract(ctx context.Context, email models.Email) ([]models.ExtractedSegment, error) {
	e.calls = append(e.calls, email.ID)
	if err := e.errs[email.ID]; err != nil {
		return nil, err
	}
	return e.segs[email.ID], nil
}

type commit struct {
	trips     []models.Trip
	archived  []string
	processed []models.ProcessedEmail
}

type fakeStore struct {
	trips     []models.Trip
	settings  models.Settings
	processed map[string]bool
	raw       []models.Email
	commits   []commit
}

func newFakeStore() *fakeStore {
	return &fakeStore{settings: models.DefaultSettings(), processed: map[string]bool{}}
}

func (s *fakeStore) EnsureUser(ctx context.Context, user string) error { return nil }

func (s *fakeStore) ActiveTrips(ctx context.Context, user string) ([]models.Trip, error) {
	return s.trips, nil
}

func (s *fakeStore) AllTripIDs(ctx context.Context, user string) (map[string]bool, error) {
	ids := make(map[string]bool)
	for _, t := range s.trips {
		ids[t.ID] = true
	}
	return ids, nil
}

func (s *fakeStore) Settings(ctx context.Context, user string) (models.Settings, error) {
	return s.settings, nil
}

func (s *fakeStore) ProcessedEmailIDs(ctx context.Context, user string) (map[string]bool, error) {
	return s.processed, nil
}

func (s *fakeStore) SaveRawEmails(ctx context.Context, user string, emails []models.Email) error {
	s.raw = append(s.raw, emails...)
	return nil
}

func (s *fakeStore) Commit(ctx context.Context, user string, trips []models.Trip, archiveIDs []string, processed []models.ProcessedEmail) error {
	s.commits = append(s.commits, commit{trips: trips, archived: archiveIDs, processed: processed})
	return nil
}

type fakeFilter struct {
	seen   map[string]bool
	marked []string
}

func (f *fakeFilter) Seen(ctx context.Context, userID, messageID string) (bool, error) {
	return f.seen[messageID], nil
}

func (f *fakeFilter) MarkSeen(ctx context.Context, userID, messageID string) error {
	f.marked = append(f.marked, messageID)
	return nil
}

type fakeRuns struct {
	finished []runlog.Run
}

func (r *fakeRuns) Start(ctx context.Context, userID string) (int64, error) { return 42, nil }

func (r *fakeRuns) Finish(ctx context.Context, runID int64, run runlog.Run) error {
	r.finished = append(r.finished, run)
	return nil
}

// --- helpers ---

func fixedSuffix() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%06x", 0xaaaaa9+n)
	}
}

func hotelExtraction(desc string) []models.ExtractedSegment {
	return []models.ExtractedSegment{{
		Kind:        models.SegmentHotel,
		Description: desc,
		StartDate:   "2026-06-01T15:00:00",
		EndDate:     "2026-06-05T11:00:00",
		Location:    "Paris, France",
		Details:     models.ExtractedDetails{ConfirmationNumber: "HN-1", Provider: "Hotel du Nord"},
	}}
}

func testSyncer(mb *fakeMailbox, ex *fakeExtractor, st *fakeStore, f *fakeFilter, runs *fakeRuns) *Syncer {
	return New(Config{
		Mailboxes: func(ctx context.Context, user string) (Mailbox, error) { return mb, nil },
		Extractor: ex,
		Store:     st,
		Dedup:     f,
		Runs:      runs,
		MaxEmails: 25,
		ChunkSize: 5,
		Now:       func() time.Time { return time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC) },
		NewSuffix: fixedSuffix(),
	})
}

// --- tests ---

func TestRun_NewEmailBecomesTrip(t *testing.T) {
	mb := &fakeMailbox{emails: []models.Email{{ID: "msg-1", Body: "booking confirmation"}}}
	ex := &fakeExtractor{segs: map[string][]models.ExtractedSegment{"msg-1": hotelExtraction("Hotel du Nord")}}
	st := newFakeStore()
	f := &fakeFilter{seen: map[string]bool{}}
	runs := &fakeRuns{}

	res, err := testSyncer(mb, ex, st, f, runs).Run(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Status != runlog.StatusSuccess {
		t.Errorf("status = %q, want success", res.Status)
	}
	if len(res.Trips) != 1 {
		t.Fatalf("got %d trips, want 1", len(res.Trips))
	}
	if res.Trips[0].PrimaryDestination != "Paris" {
		t.Errorf("destination = %q, want Paris", res.Trips[0].PrimaryDestination)
	}

	if len(st.commits) != 1 {
		t.Fatalf("got %d commits, want 1", len(st.commits))
	}
	c := st.commits[0]
	if len(c.processed) != 1 || c.processed[0].Status != models.EmailProcessed {
		t.Errorf("processed = %+v, want msg-1 marked processed", c.processed)
	}
	if c.processed[0].FoundSegments != 1 {
		t.Errorf("FoundSegments = %d, want 1", c.processed[0].FoundSegments)
	}

	if len(st.raw) != 1 || st.raw[0].ID != "msg-1" {
		t.Errorf("raw emails = %+v, want msg-1 archived before extraction", st.raw)
	}
	if len(f.marked) != 1 || f.marked[0] != "msg-1" {
		t.Errorf("dedup marks = %v, want msg-1 marked after commit", f.marked)
	}
	if len(mb.read) != 1 || mb.read[0] != "msg-1" {
		t.Errorf("mark-read = %v, want msg-1", mb.read)
	}
	if len(runs.finished) != 1 || runs.finished[0].Status != runlog.StatusSuccess {
		t.Errorf("run log = %+v, want one successful record", runs.finished)
	}
}

// TestRun_ExtractionFailureRecorded verifies a failed email gets a
// terminal error status rather than vanishing, its raw body is archived
// for replay, and the rest of the batch still commits.
func TestRun_ExtractionFailureRecorded(t *testing.T) {
	mb := &fakeMailbox{emails: []models.Email{
		{ID: "msg-bad", Body: "booking"},
		{ID: "msg-ok", Body: "booking"},
	}}
	ex := &fakeExtractor{
		segs: map[string][]models.ExtractedSegment{"msg-ok": hotelExtraction("Hotel du Nord")},
		errs: map[string]error{"msg-bad": fmt.Errorf("model overloaded")},
	}
	st := newFakeStore()
	f := &fakeFilter{seen: map[string]bool{}}

	res, err := testSyncer(mb, ex, st, f, &fakeRuns{}).Run(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Status != runlog.StatusSuccess {
		t.Errorf("status = %q, want success despite one failed email", res.Status)
	}

	c := st.commits[0]
	if len(c.processed) != 2 {
		t.Fatalf("got %d processed records, want 2", len(c.processed))
	}
	byID := make(map[string]models.ProcessedEmail)
	for _, p := range c.processed {
		byID[p.ID] = p
	}
	if byID["msg-ok"].Status != models.EmailProcessed || byID["msg-ok"].FoundSegments != 1 {
		t.Errorf("msg-ok record = %+v, want processed with 1 segment", byID["msg-ok"])
	}
	if byID["msg-bad"].Status != models.EmailProcessFailed || byID["msg-bad"].FoundSegments != 0 {
		t.Errorf("msg-bad record = %+v, want error status with no segments", byID["msg-bad"])
	}

	if len(st.raw) != 2 {
		t.Errorf("raw emails = %+v, want both archived for replay", st.raw)
	}
	if len(mb.read) != 1 || mb.read[0] != "msg-ok" {
		t.Errorf("mark-read = %v, want only msg-ok", mb.read)
	}
}

// TestRun_EmptyEmailSkippedPermanently verifies a contentless email is
// recorded as skipped without calling the extractor.
func TestRun_EmptyEmailSkippedPermanently(t *testing.T) {
	mb := &fakeMailbox{emails: []models.Email{{ID: "msg-empty", Body: "   "}}}
	ex := &fakeExtractor{}
	st := newFakeStore()

	_, err := testSyncer(mb, ex, st, &fakeFilter{seen: map[string]bool{}}, &fakeRuns{}).Run(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(ex.calls) != 0 {
		t.Errorf("extractor called for %v, want no calls", ex.calls)
	}
	c := st.commits[0]
	if len(c.processed) != 1 || c.processed[0].Status != models.EmailSkippedNoBody {
		t.Errorf("processed = %+v, want skipped status", c.processed)
	}
}

// TestRun_SeenEmailsFiltered verifies both the Firestore processed set and
// the Redis fast path suppress re-extraction.
func TestRun_SeenEmailsFiltered(t *testing.T) {
	mb := &fakeMailbox{emails: []models.Email{
		{ID: "msg-processed", Body: "booking"},
		{ID: "msg-cached", Body: "booking"},
		{ID: "msg-new", Body: "booking"},
	}}
	ex := &fakeExtractor{segs: map[string][]models.ExtractedSegment{"msg-new": hotelExtraction("Hotel du Nord")}}
	st := newFakeStore()
	st.processed["msg-processed"] = true
	f := &fakeFilter{seen: map[string]bool{"msg-cached": true}}

	_, err := testSyncer(mb, ex, st, f, &fakeRuns{}).Run(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(ex.calls) != 1 || ex.calls[0] != "msg-new" {
		t.Errorf("extractor calls = %v, want only msg-new", ex.calls)
	}
}

// TestRun_MailboxFailureFailsRun verifies a listing error aborts the run
// before anything is written.
func TestRun_MailboxFailureFailsRun(t *testing.T) {
	mb := &fakeMailbox{listErr: fmt.Errorf("invalid_grant")}
	st := newFakeStore()
	runs := &fakeRuns{}

	res, err := testSyncer(mb, &fakeExtractor{}, st, &fakeFilter{seen: map[string]bool{}}, runs).Run(context.Background(), "alice@example.com")
	if err == nil {
		t.Fatal("expected error, got none")
	}
	if res.Status != runlog.StatusFailed {
		t.Errorf("status = %q, want failed", res.Status)
	}
	if len(st.commits) != 0 {
		t.Errorf("got %d commits, want none", len(st.commits))
	}
	if len(runs.finished) != 1 || runs.finished[0].Status != runlog.StatusFailed {
		t.Errorf("run log = %+v, want one failed record", runs.finished)
	}
}

// TestRun_NoNewEmailsStillReconsolidates verifies a quiet mailbox still
// recomputes trips from persisted state, so settings changes and archive
// actions take effect.
func TestRun_NoNewEmailsStillReconsolidates(t *testing.T) {
	checkIn := time.Date(2026, 6, 1, 15, 0, 0, 0, time.UTC)
	st := newFakeStore()
	st.trips = []models.Trip{{
		ID:        "trip-to-paris-ab12cd",
		StartDate: checkIn.Truncate(24 * time.Hour),
		Segments: []models.Segment{{
			ID: "seg-1", Kind: models.SegmentHotel,
			Location: "Paris, France", TripID: "trip-to-paris-ab12cd",
			StartTime: checkIn, EndTime: checkIn.AddDate(0, 0, 4),
		}},
	}}

	res, err := testSyncer(&fakeMailbox{}, &fakeExtractor{}, st, &fakeFilter{seen: map[string]bool{}}, &fakeRuns{}).Run(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(res.Trips) != 1 {
		t.Fatalf("got %d trips, want 1", len(res.Trips))
	}
	if res.Trips[0].ID != "trip-to-paris-ab12cd" {
		t.Errorf("trip ID = %q, want the persisted ID kept", res.Trips[0].ID)
	}
	if len(res.Archived) != 0 {
		t.Errorf("archived = %v, want none", res.Archived)
	}
}
