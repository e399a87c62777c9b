package output

import (
	"bytes"
	"os"
	"testing"

	"github.com/fatih/color"
)

func TestMessagePrefixes(t *testing.T) {
	color.NoColor = true
	defer SetWriter(os.Stderr)

	tests := []struct {
		name string
		fn   func()
		want string
	}{
		{"S1", func() { S1("enumerating") }, "*** enumerating\n"},
		{"S2", func() { S2("dev-vcs/foo-9999") }, "->  dev-vcs/foo-9999\n"},
		{"S3", func() { S3("git fetch") }, "--> git fetch\n"},
		{"Err", func() { Err("update failed") }, "!!! update failed\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			SetWriter(&buf)
			tt.fn()

			if got := buf.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormattingWithArgs(t *testing.T) {
	color.NoColor = true
	defer SetWriter(os.Stderr)

	var buf bytes.Buffer
	SetWriter(&buf)

	S1("updating with %d jobs", 4)
	if got := buf.String(); got != "*** updating with 4 jobs\n" {
		t.Errorf("unexpected output: %q", got)
	}
}
