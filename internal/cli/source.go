package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parcel-pkgs/parcel/pkg/config"
)

// NewSourceCmd creates the source command group.
func NewSourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "source",
		Short: "Manage package sources",
	}
	cmd.AddCommand(
		newSourceAddCmd(),
		newSourceRemoveCmd(),
		newSourceEnableCmd(),
		newSourceDisableCmd(),
		newSourceListCmd(),
	)
	return cmd
}

func newSourceAddCmd() *cobra.Command {
	var (
		name      string
		disabled  bool
		allowHTTP bool
	)
	cmd := &cobra.Command{
		Use:   "add <id> <url>",
		Short: "Add a package source",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			m, err := openManager()
			if err != nil {
				return err
			}
			if name == "" {
				name = args[0]
			}
			if err := m.Config().AddSource(config.SourceConfig{
				ID:           args[0],
				Name:         name,
				URL:          args[1],
				Enabled:      !disabled,
				RequireHTTPS: !allowHTTP,
			}); err != nil {
				return err
			}
			return m.SaveConfig()
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (default: the id)")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "add the source in disabled state")
	cmd.Flags().BoolVar(&allowHTTP, "allow-http", false, "permit plain http and local path URLs")
	return cmd
}

func newSourceRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a package source",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			m, err := openManager()
			if err != nil {
				return err
			}
			if err := m.Config().RemoveSource(args[0]); err != nil {
				return err
			}
			return m.SaveConfig()
		},
	}
}

func newSourceEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <id>",
		Short: "Enable a package source",
		Args:  cobra.ExactArgs(1),
		RunE:  func(_ *cobra.Command, args []string) error { return setSourceEnabled(args[0], true) },
	}
}

func newSourceDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <id>",
		Short: "Disable a package source",
		Args:  cobra.ExactArgs(1),
		RunE:  func(_ *cobra.Command, args []string) error { return setSourceEnabled(args[0], false) },
	}
}

func setSourceEnabled(id string, enabled bool) error {
	m, err := openManager()
	if err != nil {
		return err
	}
	if err := m.Config().EnableSource(id, enabled); err != nil {
		return err
	}
	return m.SaveConfig()
}

func newSourceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := openManager()
			if err != nil {
				return err
			}
			for _, src := range m.Config().Sources {
				state := "enabled"
				if !src.Enabled {
					state = "disabled"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", src.ID, src.Name, src.URL, state)
			}
			return nil
		},
	}
}
