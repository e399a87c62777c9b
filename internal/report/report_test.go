package report

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/ArsenArsen/smart-live-rebuild/internal/scheduler"
)

func TestWriteRoundTrip(t *testing.T) {
	res := &scheduler.Result{
		Updated:   []string{"dev-vcs/git-9999"},
		Erraneous: []string{"app-misc/broken-9999"},
		Repos: []scheduler.RepoOutcome{
			{
				Repo:     "/var/lib/git/git",
				Backend:  "git",
				Packages: []string{"dev-vcs/git-9999"},
				OldRev:   "abc",
				NewRev:   "def",
				Outcome:  "changed",
			},
		},
	}

	path := filepath.Join(t.TempDir(), "report.yml")
	if err := Write(path, res); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshaling report: %v", err)
	}
	if doc.GeneratedAt.IsZero() {
		t.Error("generated_at not set")
	}
	if len(doc.Updated) != 1 || doc.Updated[0] != "dev-vcs/git-9999" {
		t.Errorf("updated = %v", doc.Updated)
	}
	if len(doc.Repos) != 1 || doc.Repos[0].Outcome != "changed" {
		t.Errorf("repos = %+v", doc.Repos)
	}
}

func TestWriteBadPath(t *testing.T) {
	if err := Write("/nonexistent/dir/report.yml", &scheduler.Result{}); err == nil {
		t.Error("Write() succeeded with unwritable path")
	}
}
