package vcs

import (
	"errors"
	"testing"
)

func hgEnv() Env {
	return Env{
		"EHG_PROJECT":  "mutt",
		"EHG_PULL_CMD": "hg pull",
		"EHG_REPO_URI": "https://hg.example.org/mutt/",
	}
}

func hgSettings() *Settings {
	return &Settings{DistDir: "/var/cache/distfiles"}
}

func TestNewMercurial(t *testing.T) {
	b, err := newMercurial("mail-client/mutt-9999", hgEnv(), hgSettings())
	if err != nil {
		t.Fatalf("newMercurial: %v", err)
	}

	// trailing slash in the URI must not break checkout naming
	if b.Path() != "/var/cache/distfiles/hg-src/mutt/mutt" {
		t.Errorf("Path() = %q", b.Path())
	}
	if b.SavedRevision() != "" {
		t.Errorf("mercurial has no saved revision, got %q", b.SavedRevision())
	}
}

func TestNewMercurialPinnedRevision(t *testing.T) {
	env := hgEnv()
	env["EHG_REVISION"] = "a1b2c3"

	if _, err := newMercurial("mail-client/mutt-9999", env, hgSettings()); !errors.Is(err, ErrNotLive) {
		t.Fatalf("expected ErrNotLive, got %v", err)
	}

	// tip is the moving reference, still live
	env["EHG_REVISION"] = "tip"
	if _, err := newMercurial("mail-client/mutt-9999", env, hgSettings()); err != nil {
		t.Fatalf("tip revision should be live: %v", err)
	}
}

func TestMercurialCurrentRevision(t *testing.T) {
	b, err := newMercurial("mail-client/mutt-9999", hgEnv(), hgSettings())
	if err != nil {
		t.Fatal(err)
	}

	runner := &MockRunner{
		OutputFunc: func(dir, name string, args ...string) (string, error) {
			return "f00dcafe", nil
		},
	}

	rev, err := b.CurrentRevision(runner)
	if err != nil {
		t.Fatal(err)
	}
	if rev != "f00dcafe" {
		t.Errorf("rev = %q", rev)
	}

	call := runner.Calls[0]
	if call.Name != "hg" || call.Args[0] != "tip" {
		t.Errorf("unexpected command: %s %v", call.Name, call.Args)
	}
	// repositories owned by portage must be trusted
	found := false
	for i, a := range call.Args {
		if a == "--config" && i+1 < len(call.Args) && call.Args[i+1] == "trusted.users=portage" {
			found = true
		}
	}
	if !found {
		t.Errorf("trust options missing from %v", call.Args)
	}
}

func TestMercurialUpdateCommand(t *testing.T) {
	b, err := newMercurial("mail-client/mutt-9999", hgEnv(), hgSettings())
	if err != nil {
		t.Fatal(err)
	}

	want := "hg pull --config trusted.users=portage"
	if got := b.UpdateCommand(); got != want {
		t.Errorf("UpdateCommand() = %q, want %q", got, want)
	}
}
