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

// Package scheduler runs optimizer jobs on cron schedules. A job whose
// previous run is still going is skipped, and every run is recorded in the
// optional history store.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Run statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// ErrUnknownJob is returned by RunNow for a name that was never added.
var ErrUnknownJob = errors.New("unknown job")

// JobFunc is one unit of scheduled work.
type JobFunc func(ctx context.Context) error

// Config configures a Scheduler.
type Config struct {
	// Store records run history when set
	Store *Store

	// Timeout bounds a single run. Default: 1h
	Timeout time.Duration

	// Location evaluates cron expressions. Default: time.Local
	Location *time.Location

	Logger *zap.Logger
}

type job struct {
	name    string
	spec    string
	run     JobFunc
	entryID cron.EntryID
}

// Scheduler owns a cron engine and the jobs added to it.
type Scheduler struct {
	mu      sync.RWMutex
	jobs    map[string]*job
	running map[string]string // job name -> run id
	engine  *cron.Cron
	store   *Store
	timeout time.Duration
	logger  *zap.Logger

	// base is the parent of every run context; cancelled by Stop.
	base   context.Context
	cancel context.CancelFunc
}

// New creates a stopped scheduler.
func New(cfg Config) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Hour
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	cl := cronLogger{cfg.Logger.Sugar()}
	base, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:    make(map[string]*job),
		running: make(map[string]string),
		engine: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		store:   cfg.Store,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
		base:    base,
		cancel:  cancel,
	}
}

// Add schedules run under name on a standard five-field cron expression or a
// descriptor such as @daily. Names are unique.
func (s *Scheduler) Add(name, spec string, run JobFunc) error {
	if name == "" {
		return fmt.Errorf("job name is required")
	}
	if run == nil {
		return fmt.Errorf("job %s has no function", name)
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("failed to parse cron expression %q: %w", spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job %s already scheduled", name)
	}

	j := &job{name: name, spec: spec, run: run}
	entryID, err := s.engine.AddFunc(spec, func() { s.execute(s.base, j) })
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	j.entryID = entryID
	s.jobs[name] = j

	s.logger.Info("Scheduled job", zap.String("job", name), zap.String("cron", spec))
	return nil
}

// Remove unschedules name. Unknown names are ignored.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[name]; ok {
		s.engine.Remove(j.entryID)
		delete(s.jobs, name)
	}
}

// Next returns the next activation of name, zero before Start.
func (s *Scheduler) Next(name string) time.Time {
	s.mu.RLock()
	j, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return time.Time{}
	}
	return s.engine.Entry(j.entryID).Next
}

// Start runs the cron engine in its own goroutine.
func (s *Scheduler) Start() {
	s.engine.Start()
	s.mu.RLock()
	for name, j := range s.jobs {
		s.logger.Info("Job armed",
			zap.String("job", name),
			zap.Time("next_run", s.engine.Entry(j.entryID).Next))
	}
	s.mu.RUnlock()
}

// Stop halts scheduling, cancels running jobs and waits for them to return
// or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.Info("Stopping scheduler")
	done := s.engine.Stop()
	s.cancel()

	select {
	case <-done.Done():
		s.logger.Info("All scheduled runs completed")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Scheduler shutdown timeout, some runs may still be going")
		return ctx.Err()
	}
}

// RunNow executes name immediately on the calling goroutine, subject to the
// same overlap rule as scheduled runs, and returns its status.
func (s *Scheduler) RunNow(ctx context.Context, name string) (string, error) {
	s.mu.RLock()
	j, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	r := s.execute(ctx, j)
	if r.Error != "" {
		return r.Status, errors.New(r.Error)
	}
	return r.Status, nil
}

// Running reports whether name has a run in flight.
func (s *Scheduler) Running(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running[name] != ""
}

func (s *Scheduler) execute(ctx context.Context, j *job) Run {
	r := Run{ID: uuid.New().String(), Job: j.name, StartedAt: time.Now()}

	s.mu.Lock()
	current := s.running[j.name]
	if current == "" {
		s.running[j.name] = r.ID
	}
	s.mu.Unlock()

	if current != "" {
		s.logger.Info("Skipping run, previous still running",
			zap.String("job", j.name),
			zap.String("current_run_id", current))
		r.Status = StatusSkipped
		r.CompletedAt = r.StartedAt
		s.record(r)
		return r
	}
	defer func() {
		s.mu.Lock()
		delete(s.running, j.name)
		s.mu.Unlock()
	}()

	s.logger.Info("Executing scheduled job", zap.String("job", j.name), zap.String("run_id", r.ID))

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	err := j.run(runCtx)

	r.CompletedAt = time.Now()
	r.DurationMs = r.CompletedAt.Sub(r.StartedAt).Milliseconds()
	if err != nil {
		r.Status = StatusFailed
		r.Error = err.Error()
		s.logger.Error("Scheduled job failed",
			zap.String("job", j.name),
			zap.String("run_id", r.ID),
			zap.Error(err))
	} else {
		r.Status = StatusSuccess
		s.logger.Info("Scheduled job succeeded",
			zap.String("job", j.name),
			zap.String("run_id", r.ID),
			zap.Int64("duration_ms", r.DurationMs))
	}
	s.record(r)
	return r
}

func (s *Scheduler) record(r Run) {
	if s.store == nil {
		return
	}
	// The run context may already be cancelled; history is still written.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.Record(ctx, r); err != nil {
		s.logger.Error("Failed to record run", zap.String("job", r.Job), zap.Error(err))
	}
}

// cronLogger routes cron's own messages to zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
