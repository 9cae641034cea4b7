// Package index implements the repository index: the authoritative list of
// locally installed packages plus the merged remote catalog.
package index

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/parcel-pkgs/parcel/pkg/errors"
	"github.com/parcel-pkgs/parcel/pkg/fsutil"
)

// FileName is the index file name inside a repository root.
const FileName = "index.json"

// PackageInfo is one catalog entry. Location is `./packages/<id>/<version>`
// for locally produced entries and an absolute URL for remote entries.
type PackageInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Icon          string `json:"icon,omitempty"`
	Author        string `json:"author,omitempty"`
	LatestVersion string `json:"latest_version"`
	Description   string `json:"description,omitempty"`
	Location      string `json:"location"`
}

// RepositoryIndex holds two independent views: Packages is what is installed
// on disk, Source is the merged catalog of what remote sources advertise.
// The two lists are never cross-validated against each other.
type RepositoryIndex struct {
	Packages []PackageInfo `json:"packages"`
	Source   []PackageInfo `json:"source"`
}

// New returns an empty index.
func New() *RepositoryIndex {
	return &RepositoryIndex{
		Packages: []PackageInfo{},
		Source:   []PackageInfo{},
	}
}

// Load reads the index at path. A missing file is an error; repositories
// always write an empty index at init time.
func Load(path string) (*RepositoryIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errors.ErrNotFound, "index file %s", path)
		}
		return nil, errors.Wrapf(err, "failed to read index file %s", path)
	}

	var idx RepositoryIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, errors.Wrapf(err, "failed to parse index file %s", path)
	}
	if idx.Packages == nil {
		idx.Packages = []PackageInfo{}
	}
	if idx.Source == nil {
		idx.Source = []PackageInfo{}
	}
	return &idx, nil
}

// Save writes the index to path atomically.
func (idx *RepositoryIndex) Save(path string) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode index")
	}
	if err := fsutil.WriteFileAtomic(path, data); err != nil {
		return errors.Wrapf(err, "failed to save index file %s", path)
	}
	return nil
}

// FindPackage returns the installed entry with the given id, or nil.
func (idx *RepositoryIndex) FindPackage(id string) *PackageInfo {
	return find(idx.Packages, id)
}

// FindSource returns the catalog entry with the given id, or nil.
func (idx *RepositoryIndex) FindSource(id string) *PackageInfo {
	return find(idx.Source, id)
}

func find(list []PackageInfo, id string) *PackageInfo {
	for i := range list {
		if list[i].ID == id {
			return &list[i]
		}
	}
	return nil
}

// UpsertPackage replaces the installed entry with the same id, or appends.
func (idx *RepositoryIndex) UpsertPackage(info PackageInfo) {
	idx.Packages = upsert(idx.Packages, info)
}

// RemovePackage drops the installed entry with the given id, reporting
// whether it was present.
func (idx *RepositoryIndex) RemovePackage(id string) bool {
	var removed bool
	idx.Packages, removed = remove(idx.Packages, id)
	return removed
}

// SetSourceCatalog replaces the merged catalog view wholesale.
func (idx *RepositoryIndex) SetSourceCatalog(entries []PackageInfo) {
	if entries == nil {
		entries = []PackageInfo{}
	}
	idx.Source = entries
}

// ReplaceSourceEntries swaps out all catalog entries whose location is rooted
// at sourceURL for the given replacement list, keeping entries from other
// sources intact. Used by incremental sync.
func (idx *RepositoryIndex) ReplaceSourceEntries(sourceURL string, entries []PackageInfo) {
	kept := make([]PackageInfo, 0, len(idx.Source)+len(entries))
	for _, e := range idx.Source {
		if !locationRootedAt(e.Location, sourceURL) {
			kept = append(kept, e)
		}
	}
	kept = append(kept, entries...)
	sort.Slice(kept, func(i, j int) bool { return kept[i].ID < kept[j].ID })
	idx.Source = kept
}

func upsert(list []PackageInfo, info PackageInfo) []PackageInfo {
	for i := range list {
		if list[i].ID == info.ID {
			list[i] = info
			return list
		}
	}
	return append(list, info)
}

func remove(list []PackageInfo, id string) ([]PackageInfo, bool) {
	for i := range list {
		if list[i].ID == id {
			return append(list[:i], list[i+1:]...), true
		}
	}
	return list, false
}
