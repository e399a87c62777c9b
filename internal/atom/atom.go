// Package atom handles Gentoo package identifiers in category/package-version
// form, as stored in the installed-package database.
package atom

import (
	"errors"
	"regexp"
	"strings"
)

var ErrInvalidCPV = errors.New("invalid category/package-version identifier")

// cpvRegex matches: category/package-version where the version starts at the
// last hyphen followed by a digit. Versions can carry suffixes (_rc1) and
// revisions (-r1).
var cpvRegex = regexp.MustCompile(`^([^/]+)/(.+)-(\d[\w._]*(?:-r\d+)?)$`)

// CPV is a parsed category/package-version identifier
type CPV struct {
	Category string // e.g. "dev-vcs"
	Package  string // e.g. "git-wip"
	Version  string // e.g. "9999", "9999-r2"
}

// Parse splits a cpv string such as "dev-vcs/git-wip-9999" into its parts.
func Parse(cpv string) (*CPV, error) {
	matches := cpvRegex.FindStringSubmatch(cpv)
	if matches == nil {
		return nil, ErrInvalidCPV
	}
	return &CPV{
		Category: matches[1],
		Package:  matches[2],
		Version:  matches[3],
	}, nil
}

// FullName returns the category/package part without the version
func (c *CPV) FullName() string {
	return c.Category + "/" + c.Package
}

// String returns the full category/package-version form
func (c *CPV) String() string {
	return c.Category + "/" + c.Package + "-" + c.Version
}

// VersionFloor returns the ">=cpv" dependency atom used to request a rebuild
// of this exact or any newer version.
func VersionFloor(cpv string) string {
	return ">=" + cpv
}

// VersionFloors maps a package list to ">=cpv" atoms, preserving order.
func VersionFloors(cpvs []string) []string {
	atoms := make([]string, 0, len(cpvs))
	for _, cpv := range cpvs {
		atoms = append(atoms, VersionFloor(cpv))
	}
	return atoms
}

// Exact returns the "=cpv" atom form used for binary package backups.
func Exact(cpv string) string {
	return "=" + cpv
}

// IsValid reports whether cpv parses as a category/package-version
// identifier.
func IsValid(cpv string) bool {
	_, err := Parse(cpv)
	return err == nil
}

// SortKey returns a stable ordering key: category/package first, then the
// version without its revision so -rN rebuilds of one version group
// together, with the canonical identifier as the final tiebreaker.
func SortKey(cpv string) string {
	parsed, err := Parse(cpv)
	if err != nil {
		return cpv
	}
	return parsed.FullName() + " " + TrimRevision(parsed.Version) + " " + parsed.String()
}

// TrimRevision drops a trailing -rN revision from a version string
func TrimRevision(version string) string {
	if idx := strings.LastIndex(version, "-r"); idx != -1 {
		rest := version[idx+2:]
		if rest != "" && strings.IndexFunc(rest, func(r rune) bool { return r < '0' || r > '9' }) == -1 {
			return version[:idx]
		}
	}
	return version
}
