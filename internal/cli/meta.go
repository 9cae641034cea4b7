package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/parcel-pkgs/parcel/internal/logger"
	"github.com/parcel-pkgs/parcel/pkg/metadata"
)

// NewMetaCmd creates the meta command group for working with package
// manifests outside a repository.
func NewMetaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meta",
		Short: "Work with package manifests",
	}
	cmd.AddCommand(newMetaGenerateCmd())
	return cmd
}

func newMetaGenerateCmd() *cobra.Command {
	var (
		id          string
		pkgVersion  string
		name        string
		description string
		author      string
	)
	cmd := &cobra.Command{
		Use:   "generate <package-dir>",
		Short: "Generate a metadata.json manifest for a package directory",
		Long: `Scan a package directory, hash every file and write a metadata.json
manifest next to them. An existing manifest is overwritten.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			base := &metadata.PackageMetadata{
				ID:          id,
				Name:        name,
				Version:     pkgVersion,
				Description: description,
				Author:      author,
			}
			if base.Name == "" {
				base.Name = id
			}
			meta, err := metadata.GenerateManifest(args[0], base)
			if err != nil {
				return err
			}
			if err := meta.Save(filepath.Join(args[0], metadata.FileName)); err != nil {
				return err
			}
			logger.Successf("Wrote manifest for %s %s (%d files)", meta.ID, meta.Version, len(meta.AllFiles))
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "package id")
	cmd.Flags().StringVar(&pkgVersion, "pkg-version", "", "package version")
	cmd.Flags().StringVar(&name, "name", "", "display name (default: the id)")
	cmd.Flags().StringVar(&description, "description", "", "package description")
	cmd.Flags().StringVar(&author, "author", "", "package author")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("pkg-version")
	return cmd
}
