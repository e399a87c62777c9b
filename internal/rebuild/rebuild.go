// Package rebuild invokes emerge to remerge updated packages, optionally
// creating binary backups with quickpkg first.
package rebuild

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/ArsenArsen/smart-live-rebuild/internal/atom"
)

const (
	defaultEmerge   = "/usr/bin/emerge"
	defaultQuickpkg = "/usr/sbin/quickpkg"
)

// Invoker runs the final rebuild step for a set of updated packages
type Invoker struct {
	// EmergeBin overrides the emerge binary path
	EmergeBin string

	// QuickpkgBin overrides the quickpkg binary path
	QuickpkgBin string

	// ExtraArgs are passed through to emerge verbatim
	ExtraArgs []string

	// Offline sets ESCM_OFFLINE so the rebuild does not touch the
	// network again
	Offline bool

	// Diag receives subprocess output
	Diag io.Writer
}

// EmergeArgv composes the full emerge invocation for the given packages,
// pinning each one with a version-floor atom.
func (i *Invoker) EmergeArgv(packages []string) []string {
	argv := []string{i.emergeBin(), "--oneshot"}
	argv = append(argv, i.ExtraArgs...)
	argv = append(argv, atom.VersionFloors(packages)...)
	return argv
}

// QuickpkgArgv composes the quickpkg invocation backing up the exact
// installed versions.
func (i *Invoker) QuickpkgArgv(packages []string) []string {
	argv := []string{i.quickpkgBin(), "--include-config=y"}
	for _, cpv := range packages {
		argv = append(argv, atom.Exact(cpv))
	}
	return argv
}

// Quickpkg creates binary backups of the packages about to be rebuilt
func (i *Invoker) Quickpkg(packages []string) error {
	argv := i.QuickpkgArgv(packages)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = i.Diag
	cmd.Stderr = i.Diag
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("quickpkg: %w", err)
	}
	return nil
}

// Emerge replaces the current process with the rebuild invocation; it only
// returns on failure to exec.
func (i *Invoker) Emerge(packages []string) error {
	argv := i.EmergeArgv(packages)
	env := os.Environ()
	if i.Offline {
		env = append(env, "ESCM_OFFLINE=true")
	}
	return syscall.Exec(argv[0], argv, env)
}

func (i *Invoker) emergeBin() string {
	if i.EmergeBin != "" {
		return i.EmergeBin
	}
	return defaultEmerge
}

func (i *Invoker) quickpkgBin() string {
	if i.QuickpkgBin != "" {
		return i.QuickpkgBin
	}
	return defaultQuickpkg
}
