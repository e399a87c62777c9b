package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ArsenArsen/smart-live-rebuild/internal/atom"
	"github.com/ArsenArsen/smart-live-rebuild/internal/common/config"
	"github.com/ArsenArsen/smart-live-rebuild/internal/common/logger"
	"github.com/ArsenArsen/smart-live-rebuild/internal/common/output"
	"github.com/ArsenArsen/smart-live-rebuild/internal/privsep"
	"github.com/ArsenArsen/smart-live-rebuild/internal/rebuild"
	"github.com/ArsenArsen/smart-live-rebuild/internal/report"
	"github.com/ArsenArsen/smart-live-rebuild/internal/scheduler"
	"github.com/ArsenArsen/smart-live-rebuild/internal/vartree"
	"github.com/ArsenArsen/smart-live-rebuild/internal/vcs"
)

var (
	errPrivileges    = errors.New("either root or portage privileges are required (--unprivileged-user overrides)")
	errNoScanResults = errors.New("scan process returned no results, assuming failure")
)

func run(cmd *cobra.Command, args []string) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}

	if !opts.Color {
		output.NoColor()
	}

	kept, rejected := opts.ValidTypes(vcs.Names())
	for _, t := range rejected {
		output.Err("Unknown backend type: %s", t)
	}
	opts.Types = kept

	if opts.Jobs < 1 {
		return config.ErrBadJobs
	}
	if opts.LocalRev && !opts.Network {
		return errors.New("--local-rev makes no sense with --no-network")
	}
	if opts.Jobs > 1 && !opts.Network {
		logger.Warn("Parallel jobs are pointless without network updates, using one")
		opts.Jobs = 1
	}

	// The unprivileged half of a setuid run: scan, hand the result back
	// over the inherited pipe and exit.
	if privsep.IsChild() {
		res, err := scan(opts)
		if err != nil {
			return err
		}
		return privsep.Send(res)
	}

	res, err := scanPrivileged(opts)
	if errors.Is(err, errNoScanResults) {
		// proceed with what we have so pretend/report output still
		// happens, but keep the failing exit status
		if cerr := conclude(opts, res, args); cerr != nil {
			return cerr
		}
		return err
	}
	if err != nil {
		return err
	}

	return conclude(opts, res, args)
}

// scanPrivileged decides which identity performs the scan. Root runs drop
// to the portage user, either permanently (a pretend run without quickpkg
// has nothing privileged left to do) or through a re-executed child whose
// result comes back over the handoff channel; everything short of portage
// privileges needs --pretend or an explicit --unprivileged-user.
func scanPrivileged(opts config.Options) (*scheduler.Result, error) {
	if os.Geteuid() == 0 && opts.Setuid {
		if cred := privsep.PortageCredential(); cred != nil {
			if dropInProcess(opts) {
				output.S1("Dropping superuser privileges ...")
				if err := privsep.DropTo(cred); err != nil {
					return nil, err
				}
				return scan(opts)
			}
			return spawnScan(cred)
		}
		logger.Warn("Unable to look up the portage user, scanning as root")
	}

	if err := checkPrivileges(&opts); err != nil {
		return nil, err
	}
	return scan(opts)
}

// dropInProcess reports whether a root scan may shed its privileges for
// good instead of handing off to a child: only when nothing privileged
// remains to do afterwards. Quickpkg and emerge both need root.
func dropInProcess(opts config.Options) bool {
	return opts.Pretend && !opts.Quickpkg
}

func spawnScan(cred *syscall.Credential) (*scheduler.Result, error) {
	output.S1("Spawning an unprivileged scan process ...")
	ch, err := privsep.Spawn(os.Args[1:], cred)
	if err != nil {
		return nil, err
	}
	defer ch.Close()

	res, err := ch.Read()
	if err != nil {
		if errors.Is(err, privsep.ErrNoHandoff) {
			return &scheduler.Result{}, errNoScanResults
		}
		return nil, err
	}
	return res, nil
}

func checkPrivileges(opts *config.Options) error {
	euid := os.Geteuid()
	if euid == 0 {
		return nil
	}
	if cred := privsep.PortageCredential(); cred != nil && uint32(euid) == cred.Uid {
		if !opts.Pretend {
			output.S1("Running as the portage user, assuming --pretend.")
			opts.Pretend = true
		}
		if opts.Quickpkg {
			output.Err("Running as the portage user, --quickpkg probably won't work")
		}
		return nil
	}
	if opts.Pretend || opts.UnprivilegedUser {
		return nil
	}
	return errPrivileges
}

// scan enumerates the live packages and drives their updates to completion.
func scan(opts config.Options) (*scheduler.Result, error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scratch, err := vcs.NewScratch()
	if err != nil {
		return nil, fmt.Errorf("creating the environment scratch file: %w", err)
	}
	defer scratch.Close()

	output.S1("Enumerating the packages ...")

	db := vartree.NewVarDB(vartree.DefaultRoot)
	settings := &vcs.Settings{DistDir: distDir()}
	tasks, erraneous := vartree.Enumerate(db, vcs.ForTypes(opts.Types), scratch, settings, opts.Network)

	announceUpdate(opts.Jobs)

	sched, err := scheduler.New(vcs.NewExecRunner(os.Stderr), scheduler.Config{
		Jobs:     opts.Jobs,
		Network:  opts.Network,
		LocalRev: opts.LocalRev,
	})
	if err != nil {
		return nil, err
	}

	res := sched.Run(ctx, tasks.Tasks())
	res.AddErraneous(erraneous...)
	return res, nil
}

func announceUpdate(jobs int) {
	if jobs == 1 {
		output.S1("Updating the repositories...")
	} else {
		output.S1("Updating the repositories using %s parallel jobs...",
			output.Sprintf(output.Count, "%d", jobs))
	}
}

// conclude writes the report and either prints or rebuilds the updated
// packages. With anything to rebuild it replaces the process with emerge
// and does not return.
func conclude(opts config.Options, res *scheduler.Result, emergeArgs []string) error {
	if opts.Report != "" {
		if err := report.Write(opts.Report, res); err != nil {
			output.Err("Error writing the report: %s", err)
		}
	}

	packages := append([]string(nil), res.Updated...)
	merged := opts.ErraneousMerge && len(res.Erraneous) > 0
	if merged {
		packages = append(packages, res.Erraneous...)
	}
	if len(packages) == 0 {
		output.S1("No updates found")
		return nil
	}

	if opts.Pretend {
		output.S1("Printing a list of updated packages ...")
		if merged {
			output.S2("(please notice that it contains the update-failed ones as well)")
		}
		for _, a := range pretendListing(packages) {
			fmt.Println(a)
		}
		return nil
	}

	inv := &rebuild.Invoker{
		ExtraArgs: emergeArgs,
		Offline:   rebuildOffline(opts, merged),
		Diag:      os.Stderr,
	}

	if opts.Quickpkg {
		output.S1("Calling quickpkg to backup %s packages ...", output.Sprintf(output.Count, "%d", len(packages)))
		if err := inv.Quickpkg(packages); err != nil {
			output.Err("Error creating binary backups: %s", err)
		}
	}

	output.S1("Calling emerge to rebuild %s packages ...", output.Sprintf(output.Count, "%d", len(packages)))
	if err := inv.Emerge(packages); err != nil {
		return fmt.Errorf("executing emerge: %w", err)
	}
	return nil
}

// rebuildOffline decides whether the rebuild may run with ESCM_OFFLINE.
// A package whose update failed must be free to fetch during the rebuild,
// so folding the erraneous set in disables offline mode.
func rebuildOffline(opts config.Options, merged bool) bool {
	offline := opts.Offline && opts.Network
	if merged && offline {
		output.S1("Merging update-failed packages, assuming --no-offline.")
		return false
	}
	return offline
}

// pretendListing returns the version-floor atoms sorted so a package's
// revisions come out next to each other.
func pretendListing(packages []string) []string {
	sorted := append([]string(nil), packages...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return atom.SortKey(sorted[i]) < atom.SortKey(sorted[j])
	})
	return atom.VersionFloors(sorted)
}

// loadOptions merges the built-in defaults, the configuration profile and
// any flags the user actually passed, in that order.
func loadOptions(cmd *cobra.Command) (config.Options, error) {
	opts, err := config.Load(configPath, profile)
	if err != nil {
		return opts, err
	}

	f := cmd.Flags()
	if f.Changed("no-color") {
		opts.Color = !noColor
	}
	if f.Changed("no-erraneous-merge") {
		opts.ErraneousMerge = !noErraneousMerge
	}
	if f.Changed("jobs") {
		opts.Jobs = jobs
	}
	if f.Changed("local-rev") {
		opts.LocalRev = localRev
	}
	if f.Changed("no-network") {
		opts.Network = !noNetwork
	}
	if f.Changed("no-offline") {
		opts.Offline = !noOffline
	}
	if f.Changed("pretend") {
		opts.Pretend = pretend
	}
	if f.Changed("quickpkg") {
		opts.Quickpkg = quickpkg
	}
	if f.Changed("no-setuid") {
		opts.Setuid = !noSetuid
	}
	if f.Changed("type") {
		opts.Types = backendTypes
	}
	if f.Changed("unprivileged-user") {
		opts.UnprivilegedUser = unprivilegedUser
	}
	if f.Changed("report") {
		opts.Report = reportPath
	}
	return opts, nil
}

func distDir() string {
	for _, v := range []string{"PORTAGE_ACTUAL_DISTDIR", "DISTDIR"} {
		if dir := os.Getenv(v); dir != "" {
			return dir
		}
	}
	return "/var/cache/distfiles"
}
