package scheduler

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ArsenArsen/smart-live-rebuild/internal/vcs"
)

// fakeBackend is a deterministic vcs.Backend for scheduler tests. Update
// commands are real shell commands so child-process handling is exercised
// for real.
type fakeBackend struct {
	mu      sync.Mutex
	name    string
	cpvs    []string
	path    string
	saved   vcs.Revision
	current []vcs.Revision // successive CurrentRevision answers
	revErr  error
	update  string
	queries int
	diffs   int
}

func (f *fakeBackend) Name() string        { return f.name }
func (f *fakeBackend) Packages() []string  { return f.cpvs }
func (f *fakeBackend) Path() string        { return f.path }
func (f *fakeBackend) UpdateCommand() string { return f.update }

func (f *fakeBackend) Append(other vcs.Backend) error {
	if other.Name() != f.name {
		return errors.New("variant mismatch")
	}
	f.cpvs = append(f.cpvs, other.Packages()...)
	return nil
}

func (f *fakeBackend) SavedRevision() vcs.Revision { return f.saved }

func (f *fakeBackend) CurrentRevision(vcs.CommandRunner) (vcs.Revision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revErr != nil {
		return "", f.revErr
	}
	rev := f.current[0]
	if len(f.current) > 1 {
		f.current = f.current[1:]
	}
	f.queries++
	return rev, nil
}

func (f *fakeBackend) RevisionsEqual(old, new vcs.Revision) bool { return old == new }

func (f *fakeBackend) DiffStat(vcs.CommandRunner, vcs.Revision, vcs.Revision) {
	f.mu.Lock()
	f.diffs++
	f.mu.Unlock()
}

func (f *fakeBackend) String() string { return f.path }

func changedBackend(t *testing.T, cpv string) *fakeBackend {
	t.Helper()
	return &fakeBackend{
		name:    "git",
		cpvs:    []string{cpv},
		path:    t.TempDir(),
		saved:   "old",
		current: []vcs.Revision{"new"},
		update:  "true",
	}
}

func TestTaskLifecycleChanged(t *testing.T) {
	b := changedBackend(t, "dev-vcs/foo-9999")
	task := NewTask(b)

	if task.State() != StatePending {
		t.Fatalf("initial state = %s", task.State())
	}

	if err := task.Start(&vcs.MockRunner{}, true, false, io.Discard); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if task.State() != StateAwaitingExit {
		t.Fatalf("state after start = %s", task.State())
	}

	exitErr, interrupted := task.WaitExit(context.Background())
	if interrupted {
		t.Fatal("unexpected interruption")
	}
	if err := task.Resolve(&vcs.MockRunner{}, exitErr); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if task.State() != StateChanged {
		t.Errorf("state = %s, want changed", task.State())
	}
	old, new := task.Revisions()
	if old != "old" || new != "new" {
		t.Errorf("revisions = %q -> %q", old, new)
	}
	if b.diffs != 1 {
		t.Errorf("diffstat ran %d times, want 1", b.diffs)
	}
}

func TestTaskUnchangedSkipsDiffStat(t *testing.T) {
	b := changedBackend(t, "dev-vcs/foo-9999")
	b.current = []vcs.Revision{"old"}
	task := NewTask(b)

	if err := task.Start(&vcs.MockRunner{}, true, false, io.Discard); err != nil {
		t.Fatal(err)
	}
	exitErr, _ := task.WaitExit(context.Background())
	if err := task.Resolve(&vcs.MockRunner{}, exitErr); err != nil {
		t.Fatal(err)
	}

	if task.State() != StateUnchanged {
		t.Errorf("state = %s, want unchanged", task.State())
	}
	if b.diffs != 0 {
		t.Errorf("diffstat must not run for unchanged repos")
	}
}

func TestTaskNoNetwork(t *testing.T) {
	b := changedBackend(t, "dev-vcs/foo-9999")
	task := NewTask(b)

	if err := task.Start(&vcs.MockRunner{}, false, false, io.Discard); err != nil {
		t.Fatal(err)
	}

	// without network there is no child: the task is immediately done
	done, exitErr := task.Poll()
	if !done || exitErr != nil {
		t.Fatalf("Poll() = %v, %v", done, exitErr)
	}
	if err := task.Resolve(&vcs.MockRunner{}, exitErr); err != nil {
		t.Fatal(err)
	}
	if task.State() != StateChanged {
		t.Errorf("state = %s", task.State())
	}
}

func TestTaskLocalRevOverridesSaved(t *testing.T) {
	b := changedBackend(t, "dev-vcs/foo-9999")
	b.current = []vcs.Revision{"fresh", "fresh"}
	task := NewTask(b)

	if err := task.Start(&vcs.MockRunner{}, false, true, io.Discard); err != nil {
		t.Fatal(err)
	}

	old, _ := task.Revisions()
	if old != "fresh" {
		t.Errorf("localRev should query the working copy, got %q", old)
	}
}

func TestTaskFailedExit(t *testing.T) {
	b := changedBackend(t, "dev-vcs/foo-9999")
	b.update = "false"
	task := NewTask(b)

	if err := task.Start(&vcs.MockRunner{}, true, false, io.Discard); err != nil {
		t.Fatal(err)
	}
	exitErr, _ := task.WaitExit(context.Background())
	if exitErr == nil {
		t.Fatal("expected non-zero exit")
	}

	err := task.Resolve(&vcs.MockRunner{}, exitErr)
	if !errors.Is(err, ErrUpdateFailed) {
		t.Errorf("Resolve error = %v, want ErrUpdateFailed", err)
	}
	if task.State() != StateFailed {
		t.Errorf("state = %s, want failed", task.State())
	}
}

func TestTaskPollNonBlocking(t *testing.T) {
	b := changedBackend(t, "dev-vcs/foo-9999")
	b.update = "sleep 5"
	task := NewTask(b)

	if err := task.Start(&vcs.MockRunner{}, true, false, io.Discard); err != nil {
		t.Fatal(err)
	}
	defer task.Abort()

	begin := time.Now()
	done, _ := task.Poll()
	if done {
		t.Error("sleeping child reported done")
	}
	if elapsed := time.Since(begin); elapsed > time.Second {
		t.Errorf("Poll blocked for %v", elapsed)
	}
}

func TestTaskAbort(t *testing.T) {
	b := changedBackend(t, "dev-vcs/foo-9999")
	b.update = "sleep 60"
	task := NewTask(b)

	if err := task.Start(&vcs.MockRunner{}, true, false, io.Discard); err != nil {
		t.Fatal(err)
	}

	task.Abort()
	if task.State() != StateAborted {
		t.Fatalf("state = %s, want aborted", task.State())
	}

	// the child must actually terminate
	select {
	case <-waitDone(task):
	case <-time.After(5 * time.Second):
		t.Error("child did not terminate after abort")
	}

	// aborting a resolved task must not reclassify it
	done := NewTask(changedBackend(t, "dev-vcs/bar-9999"))
	done.Start(&vcs.MockRunner{}, false, false, io.Discard)
	exitErr, _ := done.WaitExit(context.Background())
	done.Resolve(&vcs.MockRunner{}, exitErr)
	state := done.State()
	done.Abort()
	if done.State() != state {
		t.Errorf("abort reclassified a resolved task to %s", done.State())
	}
}

func waitDone(t *Task) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		t.WaitExit(context.Background())
		close(ch)
	}()
	return ch
}
