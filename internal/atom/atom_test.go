package atom

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		cpv      string
		category string
		pkg      string
		version  string
		wantErr  bool
	}{
		{"simple live", "dev-vcs/foo-9999", "dev-vcs", "foo", "9999", false},
		{"revision", "www-client/surf-9999-r2", "www-client", "surf", "9999-r2", false},
		{"hyphenated package", "x11-misc/foo-bar-1.2.3", "x11-misc", "foo-bar", "1.2.3", false},
		{"suffix", "app-misc/baz-1.0_rc1", "app-misc", "baz", "1.0_rc1", false},
		{"no version", "dev-vcs/foo", "", "", "", true},
		{"no category", "foo-9999", "", "", "", true},
		{"empty", "", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.cpv)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.cpv)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.cpv, err)
			}
			if got.Category != tt.category || got.Package != tt.pkg || got.Version != tt.version {
				t.Errorf("Parse(%q) = %+v", tt.cpv, got)
			}
		})
	}
}

func TestVersionFloors(t *testing.T) {
	atoms := VersionFloors([]string{"dev-vcs/foo-9999", "app-misc/bar-1.0"})
	want := []string{">=dev-vcs/foo-9999", ">=app-misc/bar-1.0"}

	if len(atoms) != len(want) {
		t.Fatalf("got %d atoms, want %d", len(atoms), len(want))
	}
	for i := range want {
		if atoms[i] != want[i] {
			t.Errorf("atom[%d] = %q, want %q", i, atoms[i], want[i])
		}
	}
}

func TestTrimRevision(t *testing.T) {
	tests := []struct {
		version string
		want    string
	}{
		{"9999-r2", "9999"},
		{"9999", "9999"},
		{"1.0_rc1-r1", "1.0_rc1"},
		{"1.0-rc", "1.0-rc"},
	}
	for _, tt := range tests {
		if got := TrimRevision(tt.version); got != tt.want {
			t.Errorf("TrimRevision(%q) = %q, want %q", tt.version, got, tt.want)
		}
	}
}

// genCategory generates valid Gentoo category names
func genCategory() gopter.Gen {
	return gen.OneConstOf(
		"app-misc", "dev-libs", "dev-vcs", "net-misc",
		"sys-apps", "www-client", "x11-misc", "media-libs",
	)
}

// genPackageName generates valid package names, including hyphenated ones
func genPackageName() gopter.Gen {
	return gen.OneConstOf(
		"hello", "surf", "vim", "dwm",
		"foo-bar", "git-wip", "xorg-server",
	)
}

// genVersion generates valid version strings
func genVersion() gopter.Gen {
	return gen.OneConstOf(
		"9999", "9999-r1", "9999-r12",
		"1.0", "1.2.3", "0.5.1",
		"1.0_rc1", "2.0_beta2", "1.0_p1-r2",
	)
}

// TestParseRoundTrip verifies that parsing a formatted CPV returns the
// original components.
func TestParseRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("Parse inverts String", prop.ForAll(
		func(category, pkg, version string) bool {
			cpv := &CPV{Category: category, Package: pkg, Version: version}
			parsed, err := Parse(cpv.String())
			if err != nil {
				return false
			}
			return parsed.Category == category &&
				parsed.Package == pkg &&
				parsed.Version == version
		},
		genCategory(),
		genPackageName(),
		genVersion(),
	))

	properties.TestingRun(t)
}

func TestSortKey(t *testing.T) {
	// a version sorts before its own revisions
	if SortKey("dev-vcs/git-9999") >= SortKey("dev-vcs/git-9999-r2") {
		t.Error("base version should sort before its -rN revision")
	}
	// packages order by category/package first
	if SortKey("dev-vcs/git-9999-r2") >= SortKey("www-client/surf-9999") {
		t.Error("dev-vcs should sort before www-client")
	}
	// hyphenated package names stay out of the version part
	if got := SortKey("app-misc/foo-bar-1.0-r1"); got != "app-misc/foo-bar 1.0 app-misc/foo-bar-1.0-r1" {
		t.Errorf("SortKey = %q", got)
	}
	// unparsable input falls back to itself
	if got := SortKey("not-a-cpv"); got != "not-a-cpv" {
		t.Errorf("SortKey = %q", got)
	}
}
