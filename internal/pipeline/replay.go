// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/osintwire/intelhub/internal/logging"
	"github.com/osintwire/intelhub/internal/metrics"
	"github.com/osintwire/intelhub/internal/models"
)

// UnflaggedScanner lists cache rows that never reached a terminal flag.
type UnflaggedScanner interface {
	ScanUnflagged() ([]*models.CacheRow, error)
}

// Replay re-enqueues every cache row without a terminal flag onto the
// ingestion queue. Run at startup before the HTTP surface accepts
// submissions; blocks until every row is queued or ctx is cancelled.
func Replay(ctx context.Context, store UnflaggedScanner, ingest *Queue[*models.CacheRow]) (int, error) {
	log := logging.With().Str("component", "replay").Logger()

	rows, err := store.ScanUnflagged()
	if err != nil {
		return 0, fmt.Errorf("scan cache for replay: %w", err)
	}

	queued := 0
	for _, row := range rows {
		for {
			err := ingest.Put(ctx, row)
			if err == nil {
				break
			}
			if errors.Is(err, ErrQueueFull) {
				// Workers are already draining; wait for headroom.
				continue
			}
			return queued, err
		}
		queued++
		metrics.ReplayedItems.Inc()
	}

	if queued > 0 {
		log.Info().Int("items", queued).Msg("replayed unfinished items from cache")
	}
	return queued, nil
}
