// Package scheduler runs update-and-recheck operations for many independent
// repositories with bounded parallelism. A single coordinating goroutine
// drives every task through its state machine; the only blocking points are
// the bounded sleep between poll cycles and, with one job, the wait for the
// single active child.
package scheduler

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/ArsenArsen/smart-live-rebuild/internal/common/output"
	"github.com/ArsenArsen/smart-live-rebuild/internal/vcs"
)

var ErrBadConcurrency = errors.New("concurrency must be >= 1")

// defaultPollInterval bounds the sleep between poll cycles
const defaultPollInterval = 300 * time.Millisecond

// Config controls one scheduler run
type Config struct {
	// Jobs is the maximum number of concurrent update processes
	Jobs int

	// Network enables spawning update commands; without it tasks resolve
	// against the working copy as-is
	Network bool

	// LocalRev forces reading the current revision from the repository
	// instead of the value saved at install time
	LocalRev bool

	// PollInterval overrides the sleep between poll cycles
	PollInterval time.Duration

	// Diag receives child process output; defaults to the message writer
	Diag io.Writer
}

// Scheduler owns a worklist of repository tasks and drives them to
// completion.
type Scheduler struct {
	runner vcs.CommandRunner
	cfg    Config
}

// New creates a scheduler. Jobs must be at least 1.
func New(runner vcs.CommandRunner, cfg Config) (*Scheduler, error) {
	if cfg.Jobs < 1 {
		return nil, ErrBadConcurrency
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Diag == nil {
		cfg.Diag = output.Writer()
	}
	return &Scheduler{runner: runner, cfg: cfg}, nil
}

// Run drives every task to a terminal state and returns the scan result.
// Task failures are isolated: an error resolving one repository records its
// packages as erraneous and the loop continues. On cancellation all
// in-flight children receive a termination signal and Run returns the
// partial result immediately.
func (s *Scheduler) Run(ctx context.Context, tasks []*Task) *Result {
	res := &Result{}
	queue := append([]*Task(nil), tasks...)
	var inflight []*Task

	for len(queue) > 0 || len(inflight) > 0 {
		if ctx.Err() != nil {
			return s.interrupt(inflight, res)
		}

		// fill free slots from the queue
		for len(inflight) < s.cfg.Jobs && len(queue) > 0 && ctx.Err() == nil {
			t := queue[0]
			queue = queue[1:]
			if !s.start(t, res) {
				continue
			}
			if s.cfg.Jobs == 1 {
				exitErr, interrupted := t.WaitExit(ctx)
				if interrupted {
					return s.interrupt([]*Task{t}, res)
				}
				s.finish(t, exitErr, res)
			} else {
				inflight = append(inflight, t)
			}
		}

		if len(inflight) == 0 {
			continue
		}

		// poll every in-flight child exactly once
		progressed := false
		kept := inflight[:0]
		for _, t := range inflight {
			done, exitErr := t.Poll()
			if !done {
				kept = append(kept, t)
				continue
			}
			progressed = true
			s.finish(t, exitErr, res)
		}
		inflight = kept

		if !progressed && len(inflight) > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.cfg.PollInterval):
			}
		}
	}

	return res
}

// start moves a task from pending to awaiting-exit, reporting failures
// into the result. Returns false when the task did not start.
func (s *Scheduler) start(t *Task, res *Result) bool {
	output.S2("%s", t)
	if s.cfg.Network {
		output.S3("%s", t.Backend().UpdateCommand())
	}
	if err := t.Start(s.runner, s.cfg.Network, s.cfg.LocalRev, s.cfg.Diag); err != nil {
		s.fail(t, err, res)
		return false
	}
	return true
}

// finish resolves a completed task and folds its outcome into the result
func (s *Scheduler) finish(t *Task, exitErr error, res *Result) {
	if s.cfg.Jobs > 1 {
		// interleaved output, repeat which repo this is about
		output.S2("%s", t)
	}
	if err := t.Resolve(s.runner, exitErr); err != nil {
		s.fail(t, err, res)
		return
	}

	old, new := t.Revisions()
	switch t.State() {
	case StateUnchanged:
		output.S3("at rev %s (no changes)", output.Sprint(output.Rev, string(old)))
		res.record(t, "unchanged")
	case StateChanged:
		output.S3("update from %s to %s",
			output.Sprint(output.Rev, string(old)),
			output.Sprint(output.NewRev, string(new)))
		res.Updated = append(res.Updated, t.Packages()...)
		res.record(t, "updated")
	}
}

// fail records a task's packages as erraneous without stopping the run
func (s *Scheduler) fail(t *Task, err error, res *Result) {
	t.Fail()
	output.Err("Error updating %s: %s", t, err)
	res.Erraneous = append(res.Erraneous, t.Packages()...)
	res.record(t, "failed")
}

// interrupt aborts every in-flight task and returns the partial result
func (s *Scheduler) interrupt(inflight []*Task, res *Result) *Result {
	output.Err("Updates interrupted, proceeding with already updated repos.")
	for _, t := range inflight {
		t.Abort()
	}
	return res
}
