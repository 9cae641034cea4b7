package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/parcel-pkgs/parcel/internal/cli"
	"github.com/parcel-pkgs/parcel/internal/logger"
)

var (
	repoRoot string
	verbose  bool
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}

	cancel()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parcel",
		Short: "A transactional package repository manager",
		Long: `parcel manages a repository of versioned, content-verified packages:
- add local packages and install from remote sources
- every mutation is journaled and rolls back on failure
- per-file SHA-256 verification before anything counts as installed`,
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			level := "info"
			if verbose {
				level = "debug"
			}
			logger.InitLogger(level)
		},
	}

	cmd.PersistentFlags().StringVar(&repoRoot, "repo", "", "repository root (default: working directory)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	cli.RepoRoot = &repoRoot

	cmd.AddCommand(
		cli.NewInitCmd(),
		cli.NewAddCmd(),
		cli.NewInstallCmd(),
		cli.NewRemoveCmd(),
		cli.NewUpgradeCmd(),
		cli.NewRefreshCmd(),
		cli.NewSyncCmd(),
		cli.NewCleanCmd(),
		cli.NewRebuildCmd(),
		cli.NewSourceCmd(),
		cli.NewMetaCmd(),
		cli.NewVersionCmd(),
	)

	return cmd
}
