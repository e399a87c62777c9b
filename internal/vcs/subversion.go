package vcs

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var subversionDescriptor = &Descriptor{
	Name:   "subversion",
	ReqEnv: []string{"ESVN_STORE_DIR", "ESVN_UPDATE_CMD", "ESVN_WC_PATH"},
	OptEnv: []string{
		"ESVN_REVISION", "ESVN_OPTIONS", "ESVN_PASSWORD",
		"ESVN_REPO_URI", "ESVN_USER", "ESVN_WC_REVISION",
	},
}

// assigned in init to break the subversionDescriptor <-> newSubversion initialization cycle
func init() { subversionDescriptor.New = newSubversion }

var svnRevRegex = regexp.MustCompile(`(?m)^Last Changed Rev: (\d+)$`)

// Subversion tracks an svn working copy at ESVN_WC_PATH. Revisions are
// ordered numbers, compared with >= so a locally-ahead workspace is never
// reported as stale.
type Subversion struct {
	base
}

func newSubversion(cpv string, env Env, _ *Settings) (Backend, error) {
	if missing := env.Missing(subversionDescriptor.ReqEnv); len(missing) > 0 {
		return nil, &MissingVarsError{Vars: missing}
	}
	if strings.Contains(env["ESVN_REPO_URI"], "@") {
		return nil, fmt.Errorf("ESVN_REPO_URI specifies revision: %w", ErrNotLive)
	}
	if env["ESVN_REVISION"] != "" {
		return nil, fmt.Errorf("ESVN_REVISION set: %w", ErrNotLive)
	}

	return &Subversion{base{
		name: subversionDescriptor.Name,
		cpvs: []string{cpv},
		env:  env,
		path: env["ESVN_WC_PATH"],
	}}, nil
}

func (s *Subversion) Append(other Backend) error { return s.appendFrom(other) }

func (s *Subversion) SavedRevision() Revision {
	return Revision(s.env["ESVN_WC_REVISION"])
}

func (s *Subversion) CurrentRevision(r CommandRunner) (Revision, error) {
	out, err := r.Output(s.path, "svn", "info")
	if err != nil {
		return "", err
	}
	m := svnRevRegex.FindStringSubmatch(out)
	if m == nil {
		return "", fmt.Errorf("no revision in svn info output")
	}
	return Revision(m[1]), nil
}

// RevisionsEqual treats old >= new as unchanged: a workspace ahead of
// upstream must not be queued for rebuild.
func (s *Subversion) RevisionsEqual(old, new Revision) bool {
	oldN, oldErr := strconv.Atoi(string(old))
	newN, newErr := strconv.Atoi(string(new))
	if oldErr != nil || newErr != nil {
		return old == new
	}
	return oldN >= newN
}

func (s *Subversion) UpdateCommand() string {
	cmd := fmt.Sprintf("%s %s --config-dir %s/.subversion",
		s.env["ESVN_UPDATE_CMD"], s.env["ESVN_OPTIONS"], s.env["ESVN_STORE_DIR"])
	if s.env["ESVN_USER"] != "" {
		cmd += fmt.Sprintf(" --user %q --password %q",
			s.env["ESVN_USER"], s.env["ESVN_PASSWORD"])
	}
	return cmd
}

// DiffStat is unsupported for subversion working copies
func (s *Subversion) DiffStat(CommandRunner, Revision, Revision) {}

func (s *Subversion) String() string {
	return s.describe(s.env["ESVN_REPO_URI"])
}
