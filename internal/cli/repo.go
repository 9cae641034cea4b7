package cli

import (
	"github.com/spf13/cobra"

	"github.com/parcel-pkgs/parcel/pkg/download"
	"github.com/parcel-pkgs/parcel/pkg/repo"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a new package repository",
		Long:  "Create the packages directory, a default config.toml and an empty index.json in the repository root.",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			_, err := repo.Init(repoRoot(), download.NewClient(DefaultTimeout))
			return err
		},
	}
}

// NewAddCmd creates the add command.
func NewAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <package-dir>",
		Short: "Add a local package directory to the repository",
		Long: `Verify every file in the package directory against its metadata.json
manifest and copy the package into the repository. Nothing is written unless
all hashes match.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			m, err := openManager()
			if err != nil {
				return err
			}
			return m.Add(args[0])
		},
	}
}

// NewRemoveCmd creates the remove command.
func NewRemoveCmd() *cobra.Command {
	var version string
	cmd := &cobra.Command{
		Use:   "remove <package-id>",
		Short: "Remove an installed package or one of its versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			m, err := openManager()
			if err != nil {
				return err
			}
			return m.Remove(args[0], version)
		},
	}
	cmd.Flags().StringVar(&version, "version", "", "remove only this version")
	return cmd
}

// NewRebuildCmd creates the rebuild command, the repair path when the index
// no longer matches the packages tree.
func NewRebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the installed-package index from the packages tree",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			m, err := openManager()
			if err != nil {
				return err
			}
			return m.RebuildLocalIndex()
		},
	}
}

// NewCleanCmd creates the clean command.
func NewCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Clear the download cache and prune old package versions",
		Long: `Empty the download cache, keep only the two greatest version directories
of every installed package, and clear the merged source catalog.`,
		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			m, err := openManager()
			if err != nil {
				return err
			}
			return m.Clean()
		},
	}
}
