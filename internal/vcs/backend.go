// Package vcs abstracts the version-control systems live packages track
// behind a single Backend contract. The set of variants is closed: git,
// mercurial and subversion.
package vcs

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotLive marks a package whose environment pins an explicit revision,
// so it does not actually track a moving upstream. Not an error condition;
// callers exclude the package and move on.
var ErrNotLive = errors.New("package is not really a live one")

// Revision is an opaque, backend-defined revision token. Comparison rules
// belong to the backend that produced it.
type Revision string

// Settings carries process-wide paths backends need to derive working-copy
// locations.
type Settings struct {
	// DistDir is the portage distfiles directory (PORTAGE_ACTUAL_DISTDIR
	// or DISTDIR); mercurial checkouts live under it
	DistDir string
}

// Backend is one live-package working copy bound to a version-control
// system. It aggregates every installed package sharing the checkout.
type Backend interface {
	// Name returns the variant tag (git, mercurial, subversion)
	Name() string

	// Packages returns the cpv identifiers sharing this checkout
	Packages() []string

	// Append merges another package's backend into this one. Both must
	// be the same variant; only the package identifier is taken.
	Append(other Backend) error

	// Path returns the on-disk working copy location
	Path() string

	// SavedRevision returns the revision recorded at install time, if any
	SavedRevision() Revision

	// CurrentRevision inspects the working copy for its present revision
	CurrentRevision(r CommandRunner) (Revision, error)

	// UpdateCommand composes the shell command line that pulls upstream
	// changes into the working copy
	UpdateCommand() string

	// RevisionsEqual reports whether old and new denote the same state
	RevisionsEqual(old, new Revision) bool

	// DiffStat writes a best-effort human summary of old..new changes to
	// the diagnostic output; failures are ignored
	DiffStat(r CommandRunner, old, new Revision)

	// String identifies the checkout for messages (repo URI or packages)
	String() string
}

// Descriptor describes one backend variant: how to detect it from a
// package's eclass inheritance and how to construct it from a parsed
// environment.
type Descriptor struct {
	// Name is the unique variant tag, matching the eclass name
	Name string

	// ReqEnv lists variables that must be present and non-empty
	ReqEnv []string

	// OptEnv lists variables tolerated as empty
	OptEnv []string

	// New constructs the backend for one package. Returns ErrNotLive for
	// pinned checkouts and *MissingVarsError for incomplete environments.
	New func(cpv string, env Env, settings *Settings) (Backend, error)
}

// Match reports whether a package inheriting the given eclasses is managed
// by this variant.
func (d *Descriptor) Match(inherited []string) bool {
	for _, tag := range inherited {
		if tag == d.Name {
			return true
		}
	}
	return false
}

// Vars returns the full required+optional variable set, required first
func (d *Descriptor) Vars() []string {
	vars := make([]string, 0, len(d.ReqEnv)+len(d.OptEnv))
	vars = append(vars, d.ReqEnv...)
	vars = append(vars, d.OptEnv...)
	return vars
}

// Descriptors returns the closed set of supported backend variants
func Descriptors() []*Descriptor {
	return []*Descriptor{gitDescriptor, mercurialDescriptor, subversionDescriptor}
}

// Names returns the variant tags of all supported backends
func Names() []string {
	ds := Descriptors()
	names := make([]string, len(ds))
	for i, d := range ds {
		names[i] = d.Name
	}
	return names
}

// ForTypes returns the descriptors whose names appear in types; an empty
// filter selects all variants.
func ForTypes(types []string) []*Descriptor {
	if len(types) == 0 {
		return Descriptors()
	}
	var out []*Descriptor
	for _, d := range Descriptors() {
		for _, t := range types {
			if d.Name == t {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

// base carries the per-checkout state shared by every variant
type base struct {
	name string
	cpvs []string
	env  Env
	path string
}

func (b *base) Name() string { return b.name }

func (b *base) Packages() []string { return b.cpvs }

func (b *base) Path() string { return b.path }

func (b *base) SavedRevision() Revision { return "" }

func (b *base) RevisionsEqual(old, new Revision) bool { return old == new }

func (b *base) appendFrom(other Backend) error {
	if other.Name() != b.name {
		return fmt.Errorf("unable to append %s backend to %s", other.Name(), b.name)
	}
	b.cpvs = append(b.cpvs, other.Packages()...)
	return nil
}

// describe falls back to the package list when a variant has no repo URI
func (b *base) describe(uri string) string {
	if uri != "" {
		return uri
	}
	return strings.Join(b.cpvs, " ")
}
