package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcel-pkgs/parcel/pkg/errors"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")

	idx := New()
	idx.UpsertPackage(PackageInfo{
		ID:            "app.editor",
		Name:          "Editor",
		Author:        "example",
		LatestVersion: "1.2.0",
		Description:   "a text editor",
		Location:      "./packages/app.editor/1.2.0",
	})
	idx.SetSourceCatalog([]PackageInfo{
		{ID: "app.viewer", Name: "Viewer", LatestVersion: "0.3.0", Location: "https://pkgs.example.com/packages/app.viewer/0.3.0"},
	})
	require.NoError(t, idx.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, idx, loaded)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "index.json"))
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestLoadFillsNilLists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))

	idx, err := Load(path)
	require.NoError(t, err)
	assert.NotNil(t, idx.Packages)
	assert.NotNil(t, idx.Source)
}

func TestUpsertPackage(t *testing.T) {
	idx := New()
	idx.UpsertPackage(PackageInfo{ID: "a", LatestVersion: "1.0.0", Location: "./packages/a/1.0.0"})
	idx.UpsertPackage(PackageInfo{ID: "b", LatestVersion: "2.0.0", Location: "./packages/b/2.0.0"})
	idx.UpsertPackage(PackageInfo{ID: "a", LatestVersion: "1.1.0", Location: "./packages/a/1.1.0"})

	require.Len(t, idx.Packages, 2)
	assert.Equal(t, "1.1.0", idx.FindPackage("a").LatestVersion)
	assert.Equal(t, "./packages/a/1.1.0", idx.FindPackage("a").Location)
}

func TestRemovePackage(t *testing.T) {
	idx := New()
	idx.UpsertPackage(PackageInfo{ID: "a", LatestVersion: "1.0.0"})

	assert.True(t, idx.RemovePackage("a"))
	assert.Nil(t, idx.FindPackage("a"))
	assert.False(t, idx.RemovePackage("a"))
}

func TestReplaceSourceEntries(t *testing.T) {
	idx := New()
	idx.SetSourceCatalog([]PackageInfo{
		{ID: "a", Location: "https://one.example.com/packages/a/1.0.0"},
		{ID: "b", Location: "https://two.example.com/packages/b/1.0.0"},
	})

	idx.ReplaceSourceEntries("https://two.example.com", []PackageInfo{
		{ID: "c", Location: "https://two.example.com/packages/c/2.0.0"},
	})

	require.Len(t, idx.Source, 2)
	assert.Equal(t, "a", idx.Source[0].ID)
	assert.Equal(t, "c", idx.Source[1].ID)
}
