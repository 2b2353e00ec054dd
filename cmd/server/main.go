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

// TripSync — travel plan consolidation service
//
// Entry point for the sync service. It:
//  1. Loads per-account configuration from config.yaml
//  2. Connects to PostgreSQL, Redis, Firestore and Gemini
//  3. Wires the sync pipeline (mailbox → extraction → consolidation → store)
//  4. Optionally runs a periodic sync loop for all configured accounts
//  5. Serves the HTTP API (sync trigger, run history, trip actions)
//  6. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/blueharbor/tripsync/internal/config"
	"github.com/blueharbor/tripsync/internal/dedup"
	"github.com/blueharbor/tripsync/internal/extract"
	"github.com/blueharbor/tripsync/internal/httpapi"
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

	slog.Info("starting tripsync service")

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"accounts", len(cfg.Accounts),
		"model", cfg.GeminiModel,
		"sync_interval", cfg.SyncInterval,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Connect to PostgreSQL ---
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create Postgres pool", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	if err := pgPool.Ping(ctx); err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to PostgreSQL")

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

	filter := dedup.NewFilter(rdb)
	if err := filter.Ping(ctx); err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to Redis")

	// --- Firestore ---
	fs, err := firestore.NewClient(ctx, cfg.FirestoreProject)
	if err != nil {
		slog.Error("failed to create Firestore client", "error", err)
		os.Exit(1)
	}
	trips := store.New(fs)
	defer trips.Close()
	slog.Info("connected to Firestore", "project", cfg.FirestoreProject)

	// --- Gemini Extractor ---
	extractor, err := extract.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		slog.Error("failed to create Gemini client", "error", err)
		os.Exit(1)
	}
	defer extractor.Close()

	// --- Mailbox factory ---
	// One Gmail client per account, built lazily and cached for reuse.
	// Manual syncs and the periodic loop share the cache concurrently.
	clients := mailbox.NewClientCache(func(ctx context.Context, user string) (*mailbox.Client, error) {
		ac := cfg.Account(user)
		if ac == nil {
			return nil, &mailbox.AuthError{Err: fmt.Errorf("account %s not configured", user)}
		}
		return mailbox.NewClient(ctx, mailbox.Credentials{
			ClientID:     ac.ClientID,
			ClientSecret: ac.ClientSecret,
			RefreshToken: ac.RefreshToken,
		}, cfg.MailboxQuery, int64(cfg.MaxEmails))
	})
	mailboxes := func(ctx context.Context, user string) (syncer.Mailbox, error) {
		return clients.Get(ctx, user)
	}

	// --- Syncer ---
	sync := syncer.New(syncer.Config{
		Mailboxes: mailboxes,
		Extractor: extractor,
		Store:     trips,
		Dedup:     filter,
		Runs:      runs,
		MaxEmails: cfg.MaxEmails,
		ChunkSize: cfg.ChunkSize,
	})

	if cfg.SyncInterval > 0 {
		var users []string
		for _, a := range cfg.Accounts {
			users = append(users, a.User)
		}
		sync.StartPeriodic(ctx, users, cfg.SyncInterval)
	}

	// --- API Server ---
	known := func(user string) bool { return cfg.Account(user) != nil }
	handler := httpapi.NewHandler(sync, runs, trips, known)
	ready, err := httpapi.Serve(ctx, cfg.Port, handler)
	if err != nil {
		slog.Error("failed to start API server", "error", err)
		os.Exit(1)
	}
	<-ready
	slog.Info("tripsync service ready", "port", cfg.Port)

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh

	slog.Info("received shutdown signal", "signal", sig)
	cancel() // stops the periodic loop and the API server

	sync.Stop()

	// Give in-flight requests a moment to drain before closing clients.
	time.Sleep(2 * time.Second)

	rdb.Close()
	pgPool.Close()

	slog.Info("tripsync service stopped")
}
