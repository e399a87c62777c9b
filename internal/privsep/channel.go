// Package privsep hands scan results from an unprivileged child process
// back to the privileged parent over a one-shot pipe. The child performs
// the whole scan with dropped privileges and writes exactly one
// gob-encoded result message; the parent blocks on the read with SIGINT
// suppressed so an interrupt cannot corrupt the handoff.
package privsep

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"os/user"
	"strconv"
	"syscall"

	"github.com/ArsenArsen/smart-live-rebuild/internal/scheduler"
)

// ErrNoHandoff reports that the child terminated without writing any
// result. The parent proceeds with an empty result and a failing exit
// code.
var ErrNoHandoff = errors.New("child terminated before producing results")

// resultFDEnv marks the child process; its value is the inherited pipe fd
const resultFDEnv = "SLR_RESULT_FD"

// resultFD is where the write end of the pipe lands in the child
// (stdin, stdout, stderr, then the first extra file)
const resultFD = 3

// Channel is the parent's end of the handoff
type Channel struct {
	cmd *exec.Cmd
	r   *os.File
}

// Spawn re-executes the current binary with the given arguments as the
// scan child, optionally under a different credential. The child sees the
// write end of the result pipe as an inherited file descriptor.
func Spawn(args []string, cred *syscall.Credential) (*Channel, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locating executable: %w", err)
	}

	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating handoff pipe: %w", err)
	}

	cmd := exec.Command(exe, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{w}
	cmd.Env = append(os.Environ(), fmt.Sprintf("%s=%d", resultFDEnv, resultFD))
	if cred != nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{Credential: cred}
	}

	if err := cmd.Start(); err != nil {
		r.Close()
		w.Close()
		return nil, fmt.Errorf("starting scan child: %w", err)
	}
	// the parent's copy of the write end must close, or the read below
	// would never observe end-of-stream
	w.Close()

	return &Channel{cmd: cmd, r: r}, nil
}

// Read blocks until the child's single result message arrives or the
// child exits without writing one. SIGINT is suppressed for the duration
// so the handoff cannot be abandoned halfway.
func (c *Channel) Read() (*scheduler.Result, error) {
	signal.Ignore(os.Interrupt)
	defer signal.Reset(os.Interrupt)
	defer c.r.Close()

	res, err := ReadResult(c.r)
	c.cmd.Wait()
	return res, err
}

// Close terminates a still-running child so no orphan survives the parent
func (c *Channel) Close() error {
	if c.cmd.ProcessState == nil && c.cmd.Process != nil {
		c.cmd.Process.Signal(syscall.SIGTERM)
		c.cmd.Wait()
	}
	return c.r.Close()
}

// IsChild reports whether this process is the spawned scan child
func IsChild() bool {
	return os.Getenv(resultFDEnv) != ""
}

// Send writes the single result message from the scan child and closes
// the pipe. Called exactly once per child lifetime.
func Send(res *scheduler.Result) error {
	fdStr := os.Getenv(resultFDEnv)
	fd, err := strconv.Atoi(fdStr)
	if err != nil {
		return fmt.Errorf("bad %s value %q", resultFDEnv, fdStr)
	}

	w := os.NewFile(uintptr(fd), "result-pipe")
	if w == nil {
		return fmt.Errorf("result pipe fd %d not inherited", fd)
	}
	defer w.Close()

	return WriteResult(w, res)
}

// WriteResult encodes one result message to w
func WriteResult(w io.Writer, res *scheduler.Result) error {
	if err := gob.NewEncoder(w).Encode(res); err != nil {
		return fmt.Errorf("encoding scan result: %w", err)
	}
	return nil
}

// ReadResult decodes one result message from r, mapping a clean
// end-of-stream to ErrNoHandoff.
func ReadResult(r io.Reader) (*scheduler.Result, error) {
	var res scheduler.Result
	if err := gob.NewDecoder(r).Decode(&res); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoHandoff
		}
		return nil, fmt.Errorf("decoding scan result: %w", err)
	}
	return &res, nil
}

// DropTo permanently switches the current process to the given credential.
// Group first, so the old group cannot survive the uid change.
func DropTo(cred *syscall.Credential) error {
	if err := syscall.Setgid(int(cred.Gid)); err != nil {
		return fmt.Errorf("switching to gid %d: %w", cred.Gid, err)
	}
	if err := syscall.Setuid(int(cred.Uid)); err != nil {
		return fmt.Errorf("switching to uid %d: %w", cred.Uid, err)
	}
	return nil
}

// PortageCredential looks up the portage user for privilege dropping.
// Returns nil when the user does not exist.
func PortageCredential() *syscall.Credential {
	u, err := user.Lookup("portage")
	if err != nil {
		return nil
	}
	uid, err1 := strconv.ParseUint(u.Uid, 10, 32)
	gid, err2 := strconv.ParseUint(u.Gid, 10, 32)
	if err1 != nil || err2 != nil || uid == 0 {
		return nil
	}
	return &syscall.Credential{Uid: uint32(uid), Gid: uint32(gid)}
}
