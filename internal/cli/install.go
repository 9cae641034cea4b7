package cli

import (
	"github.com/spf13/cobra"
)

// NewInstallCmd creates the install command.
func NewInstallCmd() *cobra.Command {
	var version string
	cmd := &cobra.Command{
		Use:   "install <package>",
		Short: "Install a package from a source",
		Long: `Install a package from a configured source. The package may be given as
"package", "source:package" or "source:package:version"; a version in the
spec overrides the --version flag. Every file is verified against the
package manifest before it counts as installed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openManager()
			if err != nil {
				return err
			}
			return m.Install(cmd.Context(), args[0], version)
		},
	}
	cmd.Flags().StringVar(&version, "version", "", "version to install (default: source's latest)")
	return cmd
}

// NewUpgradeCmd creates the upgrade command.
func NewUpgradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade <package-id>",
		Short: "Upgrade an installed package to the catalog's latest version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openManager()
			if err != nil {
				return err
			}
			return m.Upgrade(cmd.Context(), args[0])
		},
	}
}

// NewRefreshCmd creates the refresh command.
func NewRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the merged catalog from all enabled sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := openManager()
			if err != nil {
				return err
			}
			return m.RefreshSources(cmd.Context())
		},
	}
}

// NewSyncCmd creates the sync command.
func NewSyncCmd() *cobra.Command {
	var mirror bool
	cmd := &cobra.Command{
		Use:   "sync <source-id>",
		Short: "Synchronize the repository with one source",
		Long: `Refresh the local view of one source's catalog. With --mirror the whole
packages tree is deleted and re-downloaded from the source; a failure mid
mirror can leave the tree truncated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openManager()
			if err != nil {
				return err
			}
			return m.Sync(cmd.Context(), args[0], mirror)
		},
	}
	cmd.Flags().BoolVar(&mirror, "mirror", false, "replace the local packages tree with the source's")
	return cmd
}
