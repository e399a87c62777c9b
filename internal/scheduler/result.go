package scheduler

// Result is the aggregate outcome of one full scan. It is immutable once
// the scheduler returns it and is the only value that crosses the
// privilege-separation channel.
type Result struct {
	// Updated lists packages whose repositories changed, in completion
	// order
	Updated []string `yaml:"updated"`

	// Erraneous lists packages whose repository check raised an
	// unexpected error
	Erraneous []string `yaml:"erraneous"`

	// Repos records the per-repository outcomes for reporting
	Repos []RepoOutcome `yaml:"repos,omitempty"`
}

// RepoOutcome describes what happened to one working copy
type RepoOutcome struct {
	Repo     string   `yaml:"repo"`
	Backend  string   `yaml:"backend"`
	Packages []string `yaml:"packages"`
	OldRev   string   `yaml:"old_rev,omitempty"`
	NewRev   string   `yaml:"new_rev,omitempty"`
	Outcome  string   `yaml:"outcome"`
}

// Merge folds other into r, preserving order
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.Updated = append(r.Updated, other.Updated...)
	r.Erraneous = append(r.Erraneous, other.Erraneous...)
	r.Repos = append(r.Repos, other.Repos...)
}

// AddErraneous records packages that failed before reaching the scheduler
func (r *Result) AddErraneous(cpvs ...string) {
	r.Erraneous = append(r.Erraneous, cpvs...)
}

// Empty reports whether the scan produced nothing at all
func (r *Result) Empty() bool {
	return len(r.Updated) == 0 && len(r.Erraneous) == 0
}

func (r *Result) record(t *Task, outcome string) {
	old, new := t.Revisions()
	r.Repos = append(r.Repos, RepoOutcome{
		Repo:     t.String(),
		Backend:  t.Backend().Name(),
		Packages: t.Packages(),
		OldRev:   string(old),
		NewRev:   string(new),
		Outcome:  outcome,
	})
}
