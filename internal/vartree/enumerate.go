package vartree

import (
	"errors"

	"github.com/ArsenArsen/smart-live-rebuild/internal/atom"
	"github.com/ArsenArsen/smart-live-rebuild/internal/common/logger"
	"github.com/ArsenArsen/smart-live-rebuild/internal/common/output"
	"github.com/ArsenArsen/smart-live-rebuild/internal/scheduler"
	"github.com/ArsenArsen/smart-live-rebuild/internal/vcs"
)

// Enumerate classifies every installed package against the given backend
// descriptors and groups the live ones into repository tasks keyed by
// working-copy path. Classification errors stay local to one package:
// pinned checkouts are skipped silently, incomplete environments are
// logged and skipped, anything unexpected marks the package erraneous.
// Environment parsing is sequential; the single scratch file is reused for
// every package.
//
// Without network interaction only packages with a saved revision are
// worth scheduling; the rest would have nothing to compare against.
func Enumerate(db DB, descriptors []*vcs.Descriptor, scratch *vcs.Scratch, settings *vcs.Settings, network bool) (*scheduler.TaskSet, []string) {
	tasks := scheduler.NewTaskSet()
	var erraneous []string

	cpvs, err := db.Packages()
	if err != nil {
		output.Err("Error listing installed packages: %s", err)
		return tasks, erraneous
	}

	for _, cpv := range cpvs {
		if !atom.IsValid(cpv) {
			logger.Debug("%s: not a package identifier, skipping", cpv)
			continue
		}
		if err := classify(db, cpv, descriptors, scratch, settings, network, tasks); err != nil {
			if errors.Is(err, vcs.ErrNotLive) {
				logger.Debug("%s: %v", cpv, err)
				continue
			}
			var missing *vcs.MissingVarsError
			if errors.As(err, &missing) {
				output.Err("%s: %s", cpv, missing)
				continue
			}
			output.Err("Error enumerating %s: %s", cpv, err)
			erraneous = append(erraneous, cpv)
		}
	}

	return tasks, erraneous
}

func classify(db DB, cpv string, descriptors []*vcs.Descriptor, scratch *vcs.Scratch, settings *vcs.Settings, network bool, tasks *scheduler.TaskSet) error {
	inherited, err := db.Inherited(cpv)
	if err != nil {
		return err
	}

	for _, d := range descriptors {
		if !d.Match(inherited) {
			continue
		}

		blob, err := db.Environment(cpv)
		if err != nil {
			return err
		}
		env, err := vcs.ParseEnv(scratch, blob, d.Vars())
		blob.Close()
		if err != nil {
			return err
		}

		backend, err := d.New(cpv, env, settings)
		if err != nil {
			return err
		}

		if network || backend.SavedRevision() != "" {
			return tasks.Add(backend)
		}
		return nil
	}
	return nil
}
