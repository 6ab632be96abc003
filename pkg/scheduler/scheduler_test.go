// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func setupTestScheduler(t *testing.T, store *Store) *Scheduler {
	t.Helper()
	s := New(Config{Store: store, Timeout: 5 * time.Second, Location: time.UTC, Logger: zaptest.NewLogger(t)})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

func noop(context.Context) error { return nil }

func TestAdd_Validation(t *testing.T) {
	s := setupTestScheduler(t, nil)

	tests := []struct {
		name    string
		job     string
		spec    string
		run     JobFunc
		wantErr bool
	}{
		{name: "standard", job: "run", spec: "0 6 * * *", run: noop},
		{name: "descriptor", job: "suggest", spec: "@daily", run: noop},
		{name: "interval", job: "every", spec: "@every 1h", run: noop},
		{name: "duplicate", job: "run", spec: "0 7 * * *", run: noop, wantErr: true},
		{name: "bad spec", job: "bad", spec: "every morning", run: noop, wantErr: true},
		{name: "seconds field", job: "secs", spec: "0 0 6 * * *", run: noop, wantErr: true},
		{name: "no name", spec: "@daily", run: noop, wantErr: true},
		{name: "no func", job: "nil", spec: "@daily", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Add(tt.job, tt.spec, tt.run)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNextAndRemove(t *testing.T) {
	s := setupTestScheduler(t, nil)
	require.NoError(t, s.Add("run", "@every 1h", noop))
	assert.True(t, s.Next("missing").IsZero())

	s.Start()
	next := s.Next("run")
	assert.WithinDuration(t, time.Now().Add(time.Hour), next, time.Minute)

	s.Remove("run")
	assert.True(t, s.Next("run").IsZero())
	s.Remove("run")
	require.NoError(t, s.Add("run", "@daily", noop))
}

func TestRunNow_RecordsHistory(t *testing.T) {
	store := setupTestStore(t)
	s := setupTestScheduler(t, store)
	ctx := context.Background()

	fail := true
	require.NoError(t, s.Add("run", "@daily", func(context.Context) error {
		if fail {
			return errors.New("warehouse unavailable")
		}
		return nil
	}))

	status, err := s.RunNow(ctx, "run")
	assert.Equal(t, StatusFailed, status)
	assert.EqualError(t, err, "warehouse unavailable")

	fail = false
	status, err = s.RunNow(ctx, "run")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, status)

	_, err = s.RunNow(ctx, "missing")
	assert.ErrorIs(t, err, ErrUnknownJob)

	st, err := store.Stats(ctx, "run")
	require.NoError(t, err)
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 1, st.Failed)
	assert.Equal(t, 1, st.Succeeded)
}

func TestRunNow_SkipsOverlap(t *testing.T) {
	store := setupTestStore(t)
	s := setupTestScheduler(t, store)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	require.NoError(t, s.Add("run", "@daily", func(context.Context) error {
		if calls.Add(1) == 1 {
			close(started)
			<-release
		}
		return nil
	}))

	done := make(chan string)
	go func() {
		status, _ := s.RunNow(ctx, "run")
		done <- status
	}()
	<-started
	assert.True(t, s.Running("run"))

	status, err := s.RunNow(ctx, "run")
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, status)

	close(release)
	assert.Equal(t, StatusSuccess, <-done)
	assert.False(t, s.Running("run"))
	assert.Equal(t, int32(1), calls.Load())

	st, err := store.Stats(ctx, "run")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Skipped)
	assert.Equal(t, 1, st.Succeeded)
}

func TestRunNow_Timeout(t *testing.T) {
	s := New(Config{Timeout: 20 * time.Millisecond, Logger: zaptest.NewLogger(t)})
	require.NoError(t, s.Add("slow", "@daily", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	status, err := s.RunNow(context.Background(), "slow")
	assert.Equal(t, StatusFailed, status)
	assert.Error(t, err)
}

func TestScheduledRunAndStop(t *testing.T) {
	s := New(Config{Logger: zaptest.NewLogger(t)})

	fired := make(chan struct{}, 1)
	var cancelled atomic.Bool
	require.NoError(t, s.Add("tick", "@every 1s", func(ctx context.Context) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	}))
	s.Start()

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled job did not fire")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.True(t, cancelled.Load(), "stop cancels running jobs")
}
