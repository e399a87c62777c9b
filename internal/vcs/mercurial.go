package vcs

import (
	"fmt"
	"path"
	"strings"
)

var mercurialDescriptor = &Descriptor{
	Name:   "mercurial",
	ReqEnv: []string{"EHG_PROJECT", "EHG_PULL_CMD", "EHG_REPO_URI"},
	OptEnv: []string{"EHG_REVISION"},
}

// assigned in init to break the mercurialDescriptor <-> newMercurial initialization cycle
func init() { mercurialDescriptor.New = newMercurial }

// hgTrustOpts lets hg trust repositories owned by the portage user
var hgTrustOpts = []string{"--config", "trusted.users=portage"}

// Mercurial tracks the tip of an hg clone under the distfiles directory
type Mercurial struct {
	base
}

func newMercurial(cpv string, env Env, settings *Settings) (Backend, error) {
	if missing := env.Missing(mercurialDescriptor.ReqEnv); len(missing) > 0 {
		return nil, &MissingVarsError{Vars: missing}
	}
	if env["EHG_REVISION"] != "" && env["EHG_REVISION"] != "tip" {
		return nil, fmt.Errorf("EHG_REVISION set: %w", ErrNotLive)
	}

	bn := path.Base(strings.TrimRight(env["EHG_REPO_URI"], "/"))
	if bn == "" || bn == "." || bn == "/" {
		return nil, fmt.Errorf("unable to derive checkout name from EHG_REPO_URI=%q", env["EHG_REPO_URI"])
	}

	return &Mercurial{base{
		name: mercurialDescriptor.Name,
		cpvs: []string{cpv},
		env:  env,
		path: fmt.Sprintf("%s/hg-src/%s/%s", settings.DistDir, env["EHG_PROJECT"], bn),
	}}, nil
}

func (m *Mercurial) Append(other Backend) error { return m.appendFrom(other) }

func (m *Mercurial) CurrentRevision(r CommandRunner) (Revision, error) {
	args := append([]string{"tip", "--template", "{node}"}, hgTrustOpts...)
	out, err := r.Output(m.path, "hg", args...)
	if err != nil {
		return "", err
	}
	return Revision(out), nil
}

func (m *Mercurial) UpdateCommand() string {
	return strings.Join(append([]string{m.env["EHG_PULL_CMD"]}, hgTrustOpts...), " ")
}

func (m *Mercurial) DiffStat(r CommandRunner, old, new Revision) {
	cmd := strings.Join(append([]string{
		"hg", "diff", "--stat", "-r", string(old), "-r", string(new),
	}, hgTrustOpts...), " ")
	_ = r.Shell(m.path, cmd)
}

func (m *Mercurial) String() string {
	return m.describe(m.env["EHG_REPO_URI"])
}
