package scheduler

import "github.com/ArsenArsen/smart-live-rebuild/internal/vcs"

// TaskSet deduplicates repository tasks by working-copy path. Several
// installed packages (for instance multiple revisions of one live ebuild)
// often share a checkout; they collapse into a single task that runs the
// update and revision check exactly once.
type TaskSet struct {
	byPath map[string]*Task
	tasks  []*Task
}

// NewTaskSet creates an empty task set
func NewTaskSet() *TaskSet {
	return &TaskSet{byPath: make(map[string]*Task)}
}

// Add inserts a backend as a new task, or merges its package into the
// existing task for the same working-copy path. Detection never re-runs
// for a merged package.
func (ts *TaskSet) Add(b vcs.Backend) error {
	if existing, ok := ts.byPath[b.Path()]; ok {
		return existing.Backend().Append(b)
	}
	t := NewTask(b)
	ts.byPath[b.Path()] = t
	ts.tasks = append(ts.tasks, t)
	return nil
}

// Tasks returns the tasks in insertion order
func (ts *TaskSet) Tasks() []*Task {
	return ts.tasks
}

// Len returns the number of distinct working copies
func (ts *TaskSet) Len() int {
	return len(ts.tasks)
}
