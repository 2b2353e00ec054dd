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

// Package chunk runs a per-item operation over a list with bounded
// concurrency, chunk-at-a-time. It is the backpressure and failure
// isolation primitive in front of the rate-limited extraction
// collaborator: one slow or failing item never aborts the batch or loses
// the other items' results.
package chunk

import (
	"context"
	"log/slog"
	"sync"
)

// Logf receives human-readable progress and failure lines for the run log.
type Logf func(format string, args ...any)

// Process applies fn to every item with at most size concurrent calls.
// Items are dispatched one chunk at a time; the next chunk starts only
// after the previous one fully settles. Failures are logged per item and
// skipped; successes are returned in item order regardless of completion
// order. No item is retried.
func Process[T, U any](ctx context.Context, items []T, fn func(context.Context, T) (U, error), size int, logf Logf) []U {
	if size < 1 {
		size = 1
	}

	totalChunks := (len(items) + size - 1) / size

	type outcome struct {
		value U
		err   error
	}
	outcomes := make([]outcome, len(items))

	for offset := 0; offset < len(items); offset += size {
		end := offset + size
		if end > len(items) {
			end = len(items)
		}

		if logf != nil {
			logf("Processing chunk %d of %d...", offset/size+1, totalChunks)
		}

		var wg sync.WaitGroup
		for i := offset; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				v, err := fn(ctx, items[i])
				outcomes[i] = outcome{value: v, err: err}
			}(i)
		}
		wg.Wait()

		// Report failures after the chunk settles so log order is
		// deterministic.
		for i := offset; i < end; i++ {
			if outcomes[i].err != nil {
				slog.Warn("chunk item failed", "index", i, "error", outcomes[i].err)
				if logf != nil {
					logf("  - ERROR in chunk processing: %v", outcomes[i].err)
				}
			}
		}
	}

	results := make([]U, 0, len(items))
	for i := range outcomes {
		if outcomes[i].err == nil {
			results = append(results, outcomes[i].value)
		}
	}
	return results
}
