package vcs

import (
	"bytes"
	"errors"
	"io"
	"os/exec"
	"strings"
)

var ErrCommandFailed = errors.New("vcs command failed")

// CommandRunner executes version-control commands inside a working copy.
// This interface allows for mocking command execution in tests.
type CommandRunner interface {
	// Output runs a command in dir and returns its stdout
	Output(dir string, name string, args ...string) (string, error)

	// Shell runs a shell command line in dir, streaming output to the
	// diagnostic writer
	Shell(dir string, command string) error
}

// ExecRunner runs commands through os/exec with the working directory set
// to the repository checkout.
type ExecRunner struct {
	diag io.Writer
}

// NewExecRunner creates an ExecRunner whose shell commands write to diag
func NewExecRunner(diag io.Writer) *ExecRunner {
	return &ExecRunner{diag: diag}
}

// Output runs a command in dir and returns its stdout
func (r *ExecRunner) Output(dir string, name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderrBuf.String()); msg != "" {
			return "", errors.Join(ErrCommandFailed, errors.New(msg))
		}
		return "", errors.Join(ErrCommandFailed, err)
	}
	return stdoutBuf.String(), nil
}

// Shell runs a shell command line in dir with output going to the
// diagnostic writer
func (r *ExecRunner) Shell(dir string, command string) error {
	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = dir
	cmd.Stdout = r.diag
	cmd.Stderr = r.diag
	return cmd.Run()
}
