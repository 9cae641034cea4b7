package cli

import (
	"os"
	"time"

	"github.com/parcel-pkgs/parcel/pkg/download"
	"github.com/parcel-pkgs/parcel/pkg/repo"
)

// DefaultTimeout bounds every network fetch; there are no automatic retries.
const DefaultTimeout = 30 * time.Second

// RepoRoot is set by the main package from the --repo flag.
var RepoRoot *string

func repoRoot() string {
	if RepoRoot != nil && *RepoRoot != "" {
		return *RepoRoot
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func openManager() (*repo.Manager, error) {
	return repo.Open(repoRoot(), download.NewClient(DefaultTimeout))
}
