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

// TripSync — one-shot sync command
//
// Standalone CLI tool that runs a single sync for one or more configured
// accounts and prints the run log. Intended for cron jobs and for
// seeding data on new deployments.
//
// Usage:
//
//	go run ./cmd/resync/ [--users user1@example.com,user2@example.com]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/blueharbor/tripsync/internal/config"
	"github.com/blueharbor/tripsync/internal/dedup"
	"github.com/blueharbor/tripsync/internal/extract"
	"github.com/blueharbor/tripsync/internal/mailbox"
	"github.com/blueharbor/tripsync/internal/runlog"
	"github.com/blueharbor/tripsync/internal/store"
	"github.com/blueharbor/tripsync/internal/syncer"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// --- CLI Flags ---
	usersFlag := flag.String("users", "", "Comma-separated list of account emails (optional; empty = all configured accounts)")
	verboseFlag := flag.Bool("verbose", false, "Print the full run log for each account")
	flag.Parse()

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// --- Resolve users ---
	var users []string
	if *usersFlag != "" {
		for _, u := range strings.Split(*usersFlag, ",") {
			u = strings.TrimSpace(u)
			if u == "" {
				continue
			}
			if cfg.Account(u) == nil {
				slog.Error("account not configured", "user", u)
				os.Exit(1)
			}
			users = append(users, u)
		}
	} else {
		for _, a := range cfg.Accounts {
			users = append(users, a.User)
		}
	}

	if len(users) == 0 {
		slog.Error("no accounts to sync")
		os.Exit(1)
	}

	slog.Info("starting one-shot sync", "accounts", len(users))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Connect to PostgreSQL ---
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create Postgres pool", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	runs, err := runlog.NewStore(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise run-log store", "error", err)
		os.Exit(1)
	}

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()
	filter := dedup.NewFilter(rdb)

	// --- Firestore ---
	fs, err := firestore.NewClient(ctx, cfg.FirestoreProject)
	if err != nil {
		slog.Error("failed to create Firestore client", "error", err)
		os.Exit(1)
	}
	trips := store.New(fs)
	defer trips.Close()

	// --- Gemini Extractor ---
	extractor, err := extract.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		slog.Error("failed to create Gemini client", "error", err)
		os.Exit(1)
	}
	defer extractor.Close()

	// --- Syncer ---
	mailboxes := func(ctx context.Context, user string) (syncer.Mailbox, error) {
		ac := cfg.Account(user)
		if ac == nil {
			return nil, fmt.Errorf("account %s not configured", user)
		}
		return mailbox.NewClient(ctx, mailbox.Credentials{
			ClientID:     ac.ClientID,
			ClientSecret: ac.ClientSecret,
			RefreshToken: ac.RefreshToken,
		}, cfg.MailboxQuery, int64(cfg.MaxEmails))
	}

	sync := syncer.New(syncer.Config{
		Mailboxes: mailboxes,
		Extractor: extractor,
		Store:     trips,
		Dedup:     filter,
		Runs:      runs,
		MaxEmails: cfg.MaxEmails,
		ChunkSize: cfg.ChunkSize,
	})

	// --- Run ---
	failures := 0
	for _, user := range users {
		res, err := sync.Run(ctx, user)
		if err != nil {
			failures++
			slog.Error("sync failed", "user", user, "error", err)
		} else {
			slog.Info("sync complete",
				"user", user,
				"trips", len(res.Trips),
				"archived", len(res.Archived),
			)
		}
		if *verboseFlag && res != nil {
			for _, line := range res.Log {
				fmt.Println(line)
			}
		}
	}

	if failures > 0 {
		os.Exit(1)
	}
}
