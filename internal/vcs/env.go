package vcs

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Env holds the build-time environment variables extracted for one package
type Env map[string]string

// Missing returns the required variables that are absent or empty
func (e Env) Missing(required []string) []string {
	var missing []string
	for _, v := range required {
		if e[v] == "" {
			missing = append(missing, v)
		}
	}
	return missing
}

// MissingVarsError reports required environment variables a package's saved
// environment does not declare.
type MissingVarsError struct {
	Vars []string
}

func (e *MissingVarsError) Error() string {
	return "environment does not declare: " + strings.Join(e.Vars, ", ")
}

// Scratch is the single reusable temporary file used to materialize each
// package's environment blob before sourcing it. Environment parsing is
// strictly sequential, so one scratch file serves the whole enumeration;
// it is truncated before every reuse.
type Scratch struct {
	f *os.File
}

// NewScratch creates the scratch temp file
func NewScratch() (*Scratch, error) {
	f, err := os.CreateTemp("", "smart-live-rebuild-env-*")
	if err != nil {
		return nil, fmt.Errorf("creating scratch file: %w", err)
	}
	return &Scratch{f: f}, nil
}

// Close removes the scratch file
func (s *Scratch) Close() error {
	name := s.f.Name()
	if err := s.f.Close(); err != nil {
		os.Remove(name)
		return err
	}
	return os.Remove(name)
}

// load truncates the scratch file and fills it from r, returning its path
func (s *Scratch) load(r io.Reader) (string, error) {
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	if err := s.f.Truncate(0); err != nil {
		return "", err
	}
	if _, err := io.Copy(s.f, r); err != nil {
		return "", err
	}
	if err := s.f.Sync(); err != nil {
		return "", err
	}
	return s.f.Name(), nil
}

// ParseEnv extracts the named variables from an environment blob by sourcing
// it through bash. The blob is staged into the scratch file first; variable
// values come back NUL-separated so embedded newlines survive.
func ParseEnv(scratch *Scratch, blob io.Reader, vars []string) (Env, error) {
	path, err := scratch.load(blob)
	if err != nil {
		return nil, fmt.Errorf("staging environment: %w", err)
	}

	echoes := make([]string, len(vars))
	for i, v := range vars {
		echoes[i] = fmt.Sprintf(`echo -n "${%s}"`, v)
	}
	script := fmt.Sprintf(`source "%s"||exit 1;%s`,
		path, strings.Join(echoes, `;echo -ne "\0";`))

	cmd := exec.Command("bash", "-c", script)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("sourcing environment: %w", err)
	}

	values := strings.Split(stdout.String(), "\x00")
	env := make(Env, len(vars))
	for i, v := range vars {
		if i < len(values) {
			env[v] = values[i]
		} else {
			env[v] = ""
		}
	}
	return env, nil
}
