package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"

	"github.com/ArsenArsen/smart-live-rebuild/internal/vcs"
)

var ErrUpdateFailed = errors.New("update command returned non-zero result")

// State is a repository task's lifecycle position
type State int

const (
	StatePending State = iota
	StateUpdating
	StateAwaitingExit
	StateChanged
	StateUnchanged
	StateFailed
	StateAborted
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateUpdating:
		return "updating"
	case StateAwaitingExit:
		return "awaiting-exit"
	case StateChanged:
		return "changed"
	case StateUnchanged:
		return "unchanged"
	case StateFailed:
		return "failed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible
func (s State) Terminal() bool {
	return s == StateChanged || s == StateUnchanged || s == StateFailed || s == StateAborted
}

// Task drives one working copy through update and recheck. One task may
// stand for several installed packages sharing the checkout. All mutation
// happens from the scheduler loop; a task is never touched from two
// schedule steps at once.
type Task struct {
	backend vcs.Backend

	state  State
	oldRev vcs.Revision
	newRev vcs.Revision

	cmd    *exec.Cmd
	waitCh chan error
}

// NewTask wraps a backend into a pending task
func NewTask(b vcs.Backend) *Task {
	return &Task{backend: b, state: StatePending}
}

// State returns the task's current lifecycle state
func (t *Task) State() State { return t.state }

// Packages returns the package identifiers this task stands for
func (t *Task) Packages() []string { return t.backend.Packages() }

// Backend returns the wrapped backend
func (t *Task) Backend() vcs.Backend { return t.backend }

// Revisions returns the previously recorded and freshly observed revisions
func (t *Task) Revisions() (old, new vcs.Revision) { return t.oldRev, t.newRev }

// Start captures the task's old revision and, when network interaction is
// enabled, launches the update command as a child process. The child's
// output goes to diag. localRev forces reading the revision from the
// working copy instead of trusting the value saved at install time.
func (t *Task) Start(r vcs.CommandRunner, network, localRev bool, diag io.Writer) error {
	if t.state != StatePending {
		return fmt.Errorf("task %s started in state %s", t.backend, t.state)
	}
	t.state = StateUpdating

	if !localRev && t.backend.SavedRevision() != "" {
		t.oldRev = t.backend.SavedRevision()
	} else {
		rev, err := t.backend.CurrentRevision(r)
		if err != nil {
			t.state = StateFailed
			return err
		}
		t.oldRev = rev
	}

	if network {
		cmd := exec.Command("sh", "-c", t.backend.UpdateCommand())
		cmd.Dir = t.backend.Path()
		cmd.Stdout = diag
		cmd.Stderr = diag
		if err := cmd.Start(); err != nil {
			t.state = StateFailed
			return err
		}
		t.cmd = cmd
		t.waitCh = make(chan error, 1)
		go func() { t.waitCh <- cmd.Wait() }()
	}

	t.state = StateAwaitingExit
	return nil
}

// Poll checks the child process for completion without blocking. done is
// false while the child is still running; exitErr carries a non-zero exit.
// A task started without a child (no network) is immediately done.
func (t *Task) Poll() (done bool, exitErr error) {
	if t.cmd == nil {
		return true, nil
	}
	select {
	case err := <-t.waitCh:
		return true, err
	default:
		return false, nil
	}
}

// WaitExit blocks until the child process exits or ctx is cancelled. Used
// when no parallelism is requested and there is nothing to overlap with.
func (t *Task) WaitExit(ctx context.Context) (exitErr error, interrupted bool) {
	if t.cmd == nil {
		return nil, false
	}
	select {
	case err := <-t.waitCh:
		return err, false
	case <-ctx.Done():
		return nil, true
	}
}

// Resolve recomputes the working-copy revision after a finished update and
// classifies the task as changed or unchanged. Call only after Poll or
// WaitExit reported completion.
func (t *Task) Resolve(r vcs.CommandRunner, exitErr error) error {
	if t.state != StateAwaitingExit {
		return fmt.Errorf("task %s resolved in state %s", t.backend, t.state)
	}
	if exitErr != nil {
		t.state = StateFailed
		return fmt.Errorf("%w: %s", ErrUpdateFailed, exitErr)
	}

	rev, err := t.backend.CurrentRevision(r)
	if err != nil {
		t.state = StateFailed
		return err
	}
	t.newRev = rev

	if t.backend.RevisionsEqual(t.oldRev, t.newRev) {
		t.state = StateUnchanged
	} else {
		t.backend.DiffStat(r, t.oldRev, t.newRev)
		t.state = StateChanged
	}
	return nil
}

// Abort terminates the task's child process, if any, and drops the task
// without classifying it. Already-resolved tasks are unaffected.
func (t *Task) Abort() {
	if t.state.Terminal() {
		return
	}
	if t.cmd != nil && t.cmd.Process != nil {
		// request termination, do not wait
		_ = t.cmd.Process.Signal(syscall.SIGTERM)
	}
	t.state = StateAborted
}

// Fail forces the task into the failed state after an unexpected error
func (t *Task) Fail() {
	if !t.state.Terminal() {
		t.state = StateFailed
	}
}

func (t *Task) String() string {
	return t.backend.String()
}
