package index

import (
	"context"
	"sort"
	"strings"

	"github.com/parcel-pkgs/parcel/pkg/config"
	"github.com/parcel-pkgs/parcel/pkg/errors"
)

// Fetcher retrieves the raw bytes behind a URL or local path.
type Fetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// Merger combines the catalogs of all enabled sources into one deterministic
// listing.
type Merger struct {
	fetcher Fetcher
}

// NewMerger returns a Merger using the given fetcher.
func NewMerger(fetcher Fetcher) *Merger {
	return &Merger{fetcher: fetcher}
}

// Merge fetches <url>/index.json from every enabled source, in configured
// order, and folds the published entries into an id-keyed table where the
// later source wins on a duplicate id. Repository-relative locations are
// rewritten into absolute URLs rooted at their source. Any fetch or parse
// failure aborts the whole merge with a source-attributed error; there is no
// partial result. Output is sorted by id.
func (m *Merger) Merge(ctx context.Context, sources []config.SourceConfig) ([]PackageInfo, error) {
	table := make(map[string]PackageInfo)
	for _, src := range sources {
		if !src.Enabled {
			continue
		}
		entries, err := m.fetchSource(ctx, src)
		if err != nil {
			return nil, errors.Wrapf(err, "source %q", src.ID)
		}
		for _, entry := range entries {
			table[entry.ID] = entry
		}
	}

	merged := make([]PackageInfo, 0, len(table))
	for _, entry := range table {
		merged = append(merged, entry)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ID < merged[j].ID })
	return merged, nil
}

// FetchSource retrieves and rewrites one source's published entries.
func (m *Merger) FetchSource(ctx context.Context, src config.SourceConfig) ([]PackageInfo, error) {
	entries, err := m.fetchSource(ctx, src)
	if err != nil {
		return nil, errors.Wrapf(err, "source %q", src.ID)
	}
	return entries, nil
}

func (m *Merger) fetchSource(ctx context.Context, src config.SourceConfig) ([]PackageInfo, error) {
	data, err := m.fetcher.FetchBytes(ctx, JoinURL(src.URL, FileName))
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch catalog")
	}
	doc, err := ParseCatalogDocument(data)
	if err != nil {
		return nil, err
	}

	entries := doc.Published()
	for i := range entries {
		entries[i].Location = RewriteLocation(entries[i].Location, src.URL)
	}
	return entries, nil
}

// RewriteLocation turns a repository-relative location into an absolute URL
// rooted at sourceURL. Absolute locations pass through unchanged.
func RewriteLocation(location, sourceURL string) string {
	rel, ok := strings.CutPrefix(location, "./")
	if !ok {
		return location
	}
	return JoinURL(sourceURL, rel)
}

// JoinURL concatenates a source URL and a relative path, tolerating a
// trailing slash on the base.
func JoinURL(base string, parts ...string) string {
	joined := strings.TrimSuffix(base, "/")
	for _, p := range parts {
		joined += "/" + strings.Trim(p, "/")
	}
	return joined
}

func locationRootedAt(location, sourceURL string) bool {
	base := strings.TrimSuffix(sourceURL, "/")
	return location == base || strings.HasPrefix(location, base+"/")
}
