package output

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

var (
	// Message hierarchy colors
	Stage   = color.New(color.FgGreen, color.Bold)
	Step    = color.New(color.FgGreen)
	Detail  = color.New(color.FgCyan)
	Error   = color.New(color.FgRed)
	Warning = color.New(color.FgYellow)

	// Inline emphasis
	Rev    = color.New(color.FgGreen)
	NewRev = color.New(color.FgGreen, color.Bold)
	Count  = color.New(color.FgWhite, color.Bold)
)

var (
	mu   sync.Mutex
	dest io.Writer = os.Stderr
)

// NoColor disables color output
func NoColor() {
	color.NoColor = true
}

// ForceColor enables color output even when not a TTY
func ForceColor() {
	color.NoColor = false
}

// IsTerminal returns true if stderr is a terminal
func IsTerminal() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// SetWriter redirects all messages, for tests
func SetWriter(w io.Writer) {
	mu.Lock()
	dest = w
	mu.Unlock()
}

// Writer returns the current message destination. Child processes spawned
// for repository updates inherit it as their stdout.
func Writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return dest
}

func write(s string) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprint(dest, s)
}

// S1 prints a top-level stage message: *** msg
func S1(format string, args ...interface{}) {
	write(Stage.Sprint("*** ") + fmt.Sprintf(format, args...) + "\n")
}

// S2 prints a second-level step message: ->  msg
func S2(format string, args ...interface{}) {
	write(Step.Sprint("->") + "  " + fmt.Sprintf(format, args...) + "\n")
}

// S3 prints a third-level detail message: --> msg
func S3(format string, args ...interface{}) {
	write(Detail.Sprint("-->") + " " + fmt.Sprintf(format, args...) + "\n")
}

// Err prints an error message: !!! msg
func Err(format string, args ...interface{}) {
	write(Error.Sprint("!!!") + " " + Warning.Sprintf(format, args...) + "\n")
}

// Sprintf returns a colored string without printing
func Sprintf(c *color.Color, format string, args ...interface{}) string {
	return c.Sprintf(format, args...)
}

// Sprint returns a colored string without printing
func Sprint(c *color.Color, a ...interface{}) string {
	return c.Sprint(a...)
}
