// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package rest

import (
	"context"
	"time"

	"github.com/jeremyhahn/go-passkey/pkg/logger"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
)

// ChallengeSweeper removes expired ceremony challenges from a store.
// Both the SQLite and in-memory challenge stores implement it.
type ChallengeSweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// StartChallengeCleanup starts a background goroutine that periodically
// sweeps expired challenges. Expired entries are already unusable, the
// sweep only reclaims storage. Call the returned cancel function to
// stop the routine.
func StartChallengeCleanup(ctx context.Context, sweeper ChallengeSweeper, interval time.Duration, log logger.Logger) context.CancelFunc {
	if interval <= 0 {
		interval = time.Minute
	}

	ctx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := sweeper.DeleteExpired(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					metrics.RecordError(metrics.OpChallengeCleanup, "storage")
					if log != nil {
						log.Error("Challenge cleanup failed", logger.Error(err))
					}
					continue
				}
				if removed > 0 {
					metrics.AddChallengesExpired(float64(removed))
					if log != nil {
						log.Debug("Swept expired challenges", logger.Int64("removed", removed))
					}
				}
			}
		}
	}()

	return cancel
}
