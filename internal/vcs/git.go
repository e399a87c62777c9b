package vcs

import (
	"fmt"
	"strings"
)

var gitDescriptor = &Descriptor{
	Name: "git",
	ReqEnv: []string{
		"EGIT_BRANCH", "EGIT_PROJECT", "EGIT_STORE_DIR", "EGIT_UPDATE_CMD",
	},
	OptEnv: []string{
		"EGIT_COMMIT", "EGIT_DIFFSTAT_CMD", "EGIT_HAS_SUBMODULES",
		"EGIT_OPTIONS", "EGIT_REPO_URI", "EGIT_VERSION",
	},
}

// assigned in init to break the gitDescriptor <-> newGit initialization cycle
func init() { gitDescriptor.New = newGit }

// Git tracks a branch of a git checkout under EGIT_STORE_DIR
type Git struct {
	base
}

func newGit(cpv string, env Env, _ *Settings) (Backend, error) {
	if missing := env.Missing(gitDescriptor.ReqEnv); len(missing) > 0 {
		return nil, &MissingVarsError{Vars: missing}
	}
	if env["EGIT_COMMIT"] != "" && env["EGIT_COMMIT"] != env["EGIT_BRANCH"] {
		return nil, fmt.Errorf("EGIT_COMMIT set: %w", ErrNotLive)
	}

	return &Git{base{
		name: gitDescriptor.Name,
		cpvs: []string{cpv},
		env:  env,
		path: env["EGIT_STORE_DIR"] + "/" + env["EGIT_PROJECT"],
	}}, nil
}

func (g *Git) Append(other Backend) error { return g.appendFrom(other) }

func (g *Git) SavedRevision() Revision {
	return Revision(g.env["EGIT_VERSION"])
}

// branch returns the ref to resolve; submodule-aware checkouts track the
// remote ref instead of the local one.
func (g *Git) branch() string {
	branch := g.env["EGIT_BRANCH"]
	if g.env["EGIT_HAS_SUBMODULES"] != "" {
		branch = "origin/" + branch
	}
	return branch
}

func (g *Git) CurrentRevision(r CommandRunner) (Revision, error) {
	out, err := r.Output(g.path, "git", "rev-parse", g.branch())
	if err != nil {
		return "", err
	}
	rev, _, _ := strings.Cut(out, "\n")
	return Revision(rev), nil
}

func (g *Git) UpdateCommand() string {
	if g.env["EGIT_HAS_SUBMODULES"] != "" {
		return fmt.Sprintf("%s %s", g.env["EGIT_UPDATE_CMD"], g.env["EGIT_OPTIONS"])
	}
	branch := g.env["EGIT_BRANCH"]
	return fmt.Sprintf("%s %s origin %s:%s",
		g.env["EGIT_UPDATE_CMD"], g.env["EGIT_OPTIONS"], branch, branch)
}

func (g *Git) DiffStat(r CommandRunner, old, new Revision) {
	cmd := g.env["EGIT_DIFFSTAT_CMD"]
	if cmd == "" {
		cmd = "git diff"
	}
	// summary only, failure is irrelevant
	_ = r.Shell(g.path, fmt.Sprintf("%s %s..%s", cmd, old, new))
}

func (g *Git) String() string {
	return g.describe(g.env["EGIT_REPO_URI"])
}
