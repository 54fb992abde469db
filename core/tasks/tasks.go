// Package tasks runs named periodic jobs. A job can demand a cross-process
// lock, claimed through the _tasks collection so only one instance sharing
// a store runs it per tick.
package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/recordbase/core/resource"
	"github.com/artpar/recordbase/core/schema"
	"github.com/artpar/recordbase/domain/query"
	"github.com/artpar/recordbase/domain/record"
)

// Collection is the lock collection name.
const Collection = "_tasks"

// Func is a job body. The context is cancelled when the runner stops.
type Func func(ctx context.Context) error

// Options tunes one job.
type Options struct {
	// RequireLock claims the job's row in the lock collection before each
	// run, so instances sharing a store do not run the job concurrently.
	RequireLock bool
}

// RunStatus is reported to the OnRun callback after every tick.
type RunStatus string

const (
	StatusOK      RunStatus = "ok"
	StatusError   RunStatus = "error"
	StatusSkipped RunStatus = "skipped"
	StatusPanic   RunStatus = "panic"
)

// Runner schedules jobs. Every is safe to call concurrently with running
// jobs; StopAll blocks until all job goroutines exit.
type Runner struct {
	locks  *resource.Resource
	logger zerolog.Logger

	// OnRun, when set, observes every tick outcome (metrics wiring).
	OnRun func(task string, status RunStatus)

	mu   sync.Mutex
	jobs map[string]*job
	wg   sync.WaitGroup
}

type job struct {
	name   string
	cancel context.CancelFunc
}

// New builds a runner, registering the lock collection on the registry.
func New(ctx context.Context, reg *resource.Registry, logger zerolog.Logger) (*Runner, error) {
	s := schema.MustNew(schema.Fields{
		"task":   {Type: schema.FieldTypeText, Required: true, Unique: true},
		"locked": {Type: schema.FieldTypeBoolean},
	})
	locks, err := reg.Register(ctx, Collection, s)
	if err != nil {
		return nil, err
	}
	return &Runner{
		locks:  locks,
		logger: logger.With().Str("component", "tasks").Logger(),
		jobs:   map[string]*job{},
	}, nil
}

// Every schedules fn under the given name at the given interval. A second
// schedule under the same name replaces the first.
func (r *Runner) Every(interval time.Duration, name string, fn Func, opts Options) {
	ctx, cancel := context.WithCancel(context.Background())

	r.mu.Lock()
	if existing, ok := r.jobs[name]; ok {
		existing.cancel()
	}
	r.jobs[name] = &job{name: name, cancel: cancel}
	r.mu.Unlock()

	r.wg.Add(1)
	go r.loop(ctx, interval, name, fn, opts)
}

func (r *Runner) loop(ctx context.Context, interval time.Duration, name string, fn Func, opts Options) {
	defer r.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx, name, fn, opts)
		}
	}
}

func (r *Runner) tick(ctx context.Context, name string, fn Func, opts Options) {
	if opts.RequireLock {
		ok, err := r.acquire(ctx, name)
		if err != nil {
			r.logger.Error().Err(err).Str("task", name).Msg("lock acquisition failed")
			r.report(name, StatusError)
			return
		}
		if !ok {
			r.report(name, StatusSkipped)
			return
		}
		defer r.release(ctx, name)
	}

	r.runOne(ctx, name, fn)
}

func (r *Runner) runOne(ctx context.Context, name string, fn Func) {
	defer func() {
		if v := recover(); v != nil {
			r.logger.Error().Str("task", name).Interface("panic", v).Msg("task panicked")
			r.report(name, StatusPanic)
		}
	}()

	if err := fn(ctx); err != nil {
		r.logger.Error().Err(err).Str("task", name).Msg("task failed")
		r.report(name, StatusError)
		return
	}
	r.report(name, StatusOK)
}

// acquire claims the task's lock row. The unique index on task makes a
// concurrent first-claim race lose cleanly with a conflict.
func (r *Runner) acquire(ctx context.Context, name string) (bool, error) {
	existing, err := r.locks.FindOne(ctx, query.Query{"task": name})
	if err != nil {
		return false, err
	}
	if existing == nil {
		_, err := r.locks.Create(ctx, record.Record{"task": name, "locked": true}, resource.CreateOptions{})
		if err != nil {
			return false, nil // lost the race
		}
		return true, nil
	}
	if locked, _ := existing["locked"].(bool); locked {
		return false, nil
	}
	_, err = r.locks.UpdateOne(ctx, existing.ID(), query.Set(record.Record{"locked": true}))
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Runner) release(ctx context.Context, name string) {
	existing, err := r.locks.FindOne(ctx, query.Query{"task": name})
	if err != nil || existing == nil {
		return
	}
	if _, err := r.locks.UpdateOne(ctx, existing.ID(), query.Set(record.Record{"locked": false})); err != nil {
		r.logger.Error().Err(err).Str("task", name).Msg("lock release failed")
	}
}

func (r *Runner) report(name string, status RunStatus) {
	if r.OnRun != nil {
		r.OnRun(name, status)
	}
}

// Stop cancels the named job.
func (r *Runner) Stop(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[name]; ok {
		j.cancel()
		delete(r.jobs, name)
	}
}

// StopAll cancels every job and waits for the loops to exit.
func (r *Runner) StopAll() {
	r.mu.Lock()
	for name, j := range r.jobs {
		j.cancel()
		delete(r.jobs, name)
	}
	r.mu.Unlock()
	r.wg.Wait()
}
