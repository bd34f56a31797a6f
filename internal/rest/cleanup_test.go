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
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeSweeper struct {
	calls   atomic.Int64
	removed int64
	err     error
}

func (f *fakeSweeper) DeleteExpired(ctx context.Context) (int64, error) {
	f.calls.Add(1)
	return f.removed, f.err
}

func TestStartChallengeCleanup(t *testing.T) {
	sweeper := &fakeSweeper{removed: 3}

	cancel := StartChallengeCleanup(context.Background(), sweeper, 10*time.Millisecond, nil)
	defer cancel()

	deadline := time.After(2 * time.Second)
	for sweeper.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("sweeper was not invoked")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStartChallengeCleanup_StopsOnCancel(t *testing.T) {
	sweeper := &fakeSweeper{}

	cancel := StartChallengeCleanup(context.Background(), sweeper, 10*time.Millisecond, nil)
	cancel()

	// Give the goroutine a moment to observe the cancel, then confirm
	// the call count stays flat.
	time.Sleep(30 * time.Millisecond)
	count := sweeper.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, count, sweeper.calls.Load())
}

func TestStartChallengeCleanup_SurvivesErrors(t *testing.T) {
	sweeper := &fakeSweeper{err: errors.New("locked")}

	cancel := StartChallengeCleanup(context.Background(), sweeper, 10*time.Millisecond, nil)
	defer cancel()

	deadline := time.After(2 * time.Second)
	for sweeper.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatal("sweeper stopped after an error")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
