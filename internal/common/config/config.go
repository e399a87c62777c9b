package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DefaultPath is the system-wide configuration file location.
const DefaultPath = "/etc/portage/smart-live-rebuild.toml"

// DefaultProfile is the profile table used when none is requested.
const DefaultProfile = "smart-live-rebuild"

var (
	ErrProfileNotFound = errors.New("profile not found in configuration")
	ErrBadJobs         = errors.New("jobs must be a positive integer")
)

// Options holds the effective runtime options after merging defaults,
// configuration profiles and command-line flags.
type Options struct {
	Color            bool
	ErraneousMerge   bool
	Jobs             int
	LocalRev         bool
	Network          bool
	Offline          bool
	Pretend          bool
	Quickpkg         bool
	Setuid           bool
	Types            []string
	UnprivilegedUser bool
	Report           string
}

// Defaults returns the built-in option defaults.
func Defaults() Options {
	return Options{
		Color:          true,
		ErraneousMerge: true,
		Jobs:           1,
		Network:        true,
		Offline:        true,
		Setuid:         true,
	}
}

// Profile is one configuration file section. Pointer fields distinguish
// "not set" from an explicit value so later files in a chain only override
// what they declare.
type Profile struct {
	ConfigFile       *string  `toml:"config_file"`
	Color            *bool    `toml:"color"`
	ErraneousMerge   *bool    `toml:"erraneous_merge"`
	Jobs             *int     `toml:"jobs"`
	LocalRev         *bool    `toml:"local_rev"`
	Network          *bool    `toml:"network"`
	Offline          *bool    `toml:"offline"`
	Pretend          *bool    `toml:"pretend"`
	Quickpkg         *bool    `toml:"quickpkg"`
	Setuid           *bool    `toml:"setuid"`
	Type             []string `toml:"type"`
	UnprivilegedUser *bool    `toml:"unprivileged_user"`
	Report           *string  `toml:"report"`
}

type configFile map[string]Profile

// Load reads the configuration chain starting at path and returns the
// merged options for the named profile. A profile may point at another
// file through config_file; the chain is followed until it ends or a file
// repeats. A missing initial file is not an error; a requested non-default
// profile missing from an existing file is.
func Load(path, profile string) (Options, error) {
	opts := Defaults()
	if profile == "" {
		profile = DefaultProfile
	}

	seen := map[string]bool{}
	for path != "" && !seen[path] {
		seen[path] = true

		expanded, err := expandHome(path)
		if err != nil {
			return opts, err
		}

		data, err := os.ReadFile(expanded)
		if err != nil {
			if os.IsNotExist(err) {
				break
			}
			return opts, fmt.Errorf("reading config %s: %w", expanded, err)
		}

		var cf configFile
		if err := toml.Unmarshal(data, &cf); err != nil {
			return opts, fmt.Errorf("parsing config %s: %w", expanded, err)
		}

		sect, ok := cf[profile]
		if !ok {
			// an explicitly requested profile has to exist; the default
			// one is allowed to be absent
			if profile != DefaultProfile {
				return opts, fmt.Errorf("%w: [%s] in %s", ErrProfileNotFound, profile, expanded)
			}
			break
		}
		sect.apply(&opts)

		if sect.ConfigFile == nil {
			break
		}
		path = *sect.ConfigFile
	}

	if opts.Jobs < 1 {
		return opts, ErrBadJobs
	}
	return opts, nil
}

func (p *Profile) apply(opts *Options) {
	if p.Color != nil {
		opts.Color = *p.Color
	}
	if p.ErraneousMerge != nil {
		opts.ErraneousMerge = *p.ErraneousMerge
	}
	if p.Jobs != nil {
		opts.Jobs = *p.Jobs
	}
	if p.LocalRev != nil {
		opts.LocalRev = *p.LocalRev
	}
	if p.Network != nil {
		opts.Network = *p.Network
	}
	if p.Offline != nil {
		opts.Offline = *p.Offline
	}
	if p.Pretend != nil {
		opts.Pretend = *p.Pretend
	}
	if p.Quickpkg != nil {
		opts.Quickpkg = *p.Quickpkg
	}
	if p.Setuid != nil {
		opts.Setuid = *p.Setuid
	}
	if len(p.Type) > 0 {
		opts.Types = append([]string(nil), p.Type...)
	}
	if p.UnprivilegedUser != nil {
		opts.UnprivilegedUser = *p.UnprivilegedUser
	}
	if p.Report != nil {
		opts.Report = *p.Report
	}
}

// ValidTypes filters opts.Types down to the given set of known backend
// names, reporting the rejects.
func (o *Options) ValidTypes(known []string) (kept, rejected []string) {
	knownSet := map[string]bool{}
	for _, k := range known {
		knownSet[k] = true
	}
	for _, t := range o.Types {
		if knownSet[t] {
			kept = append(kept, t)
		} else {
			rejected = append(rejected, t)
		}
	}
	return kept, rejected
}

// expandHome expands a leading ~ to the user's home directory
func expandHome(path string) (string, error) {
	if len(path) == 0 || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path[1:]), nil
}
