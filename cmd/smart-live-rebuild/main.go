package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ArsenArsen/smart-live-rebuild/internal/common/config"
	"github.com/ArsenArsen/smart-live-rebuild/internal/common/logger"
	"github.com/ArsenArsen/smart-live-rebuild/internal/common/output"
)

var (
	verbose bool
	quiet   bool

	configPath string
	profile    string

	noColor          bool
	noErraneousMerge bool
	jobs             int
	localRev         bool
	noNetwork        bool
	noOffline        bool
	pretend          bool
	quickpkg         bool
	noSetuid         bool
	backendTypes     []string
	unprivilegedUser bool
	reportPath       string
)

var rootCmd = &cobra.Command{
	Use:   "smart-live-rebuild [flags] [-- emerge-args]",
	Short: "Update live packages and remerge the changed ones",
	Long: `smart-live-rebuild scans the installed package database for live
(VCS-sourced) packages, updates their checkouts and calls emerge to
rebuild the packages whose upstream revision actually changed.

Arguments after -- are passed through to emerge.`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Configure logging based on flags
		if verbose {
			logger.SetVerbose(true)
		}
		if quiet {
			logger.SetQuiet(true)
		}
	},
	RunE: run,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-error output")

	f := rootCmd.Flags()
	f.StringVarP(&configPath, "config-file", "c", config.DefaultPath, "Configuration file to read")
	f.StringVarP(&profile, "profile", "P", config.DefaultProfile, "Configuration profile to use")
	f.BoolVarP(&noColor, "no-color", "C", false, "Disable colored output")
	f.BoolVarP(&noErraneousMerge, "no-erraneous-merge", "E", false, "Do not remerge packages which failed to update")
	f.IntVarP(&jobs, "jobs", "j", 1, "Update up to N repositories in parallel")
	f.BoolVarP(&localRev, "local-rev", "l", false, "Compare against the current checkout revision instead of the one saved at install time")
	f.BoolVarP(&noNetwork, "no-network", "N", false, "Do not update repositories, only compare saved revisions")
	f.BoolVarP(&noOffline, "no-offline", "O", false, "Do not set ESCM_OFFLINE for the rebuild")
	f.BoolVarP(&pretend, "pretend", "p", false, "Only print the packages that would be rebuilt")
	f.BoolVarP(&quickpkg, "quickpkg", "Q", false, "Create binary backups with quickpkg before rebuilding")
	f.BoolVarP(&noSetuid, "no-setuid", "S", false, "Do not drop root privileges for the scan")
	f.StringSliceVarP(&backendTypes, "type", "t", nil, "Limit the scan to the given backend types (repeatable)")
	f.BoolVarP(&unprivilegedUser, "unprivileged-user", "U", false, "Allow running as a user with neither root nor portage privileges")
	f.StringVar(&reportPath, "report", "", "Write a YAML scan report to the given file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, output.Sprintf(output.Error, "!!! %s", err))
		os.Exit(1)
	}
}
