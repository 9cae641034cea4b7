package repo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/parcel-pkgs/parcel/pkg/download/mocks"
	"github.com/parcel-pkgs/parcel/pkg/errors"
	"github.com/parcel-pkgs/parcel/pkg/hash"
	"github.com/parcel-pkgs/parcel/pkg/index"
	"github.com/parcel-pkgs/parcel/pkg/ledger"
	"github.com/parcel-pkgs/parcel/pkg/metadata"
)

func TestParseInstallSpec(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		versionArg string
		want       installSpec
		wantErr    bool
	}{
		{
			name: "bare package",
			raw:  "app.hello",
			want: installSpec{Package: "app.hello"},
		},
		{
			name: "source and package",
			raw:  "main:app.hello",
			want: installSpec{Source: "main", Package: "app.hello"},
		},
		{
			name: "full spec",
			raw:  "main:app.hello:2.0.0",
			want: installSpec{Source: "main", Package: "app.hello", Version: "2.0.0"},
		},
		{
			name:       "spec version overrides argument",
			raw:        "main:app.hello:2.0.0",
			versionArg: "1.0.0",
			want:       installSpec{Source: "main", Package: "app.hello", Version: "2.0.0"},
		},
		{
			name:       "argument fills missing version",
			raw:        "app.hello",
			versionArg: "1.0.0",
			want:       installSpec{Package: "app.hello", Version: "1.0.0"},
		},
		{name: "empty component", raw: "main::1.0.0", wantErr: true},
		{name: "too many parts", raw: "a:b:c:d", wantErr: true},
		{name: "empty spec", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseInstallSpec(tt.raw, tt.versionArg)
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrInstallSpecInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInstallEndToEnd(t *testing.T) {
	m := newTestRepo(t)
	newSourceServer(t, m, "main", map[string]map[string]map[string]string{
		"app.hello": {
			"1.0.0": {"bin/hello.txt": "Hello, world!", "doc/readme.md": "docs"},
		},
	})

	ctx := context.Background()
	require.NoError(t, m.RefreshSources(ctx))
	require.NoError(t, m.Install(ctx, "app.hello", ""))

	digest, err := hash.FileHash(filepath.Join(m.PackagesDir(), "app.hello", "1.0.0", "bin", "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, helloWorldDigest, digest)
	assert.FileExists(t, filepath.Join(m.PackagesDir(), "app.hello", "1.0.0", "doc", "readme.md"))
	assert.FileExists(t, filepath.Join(m.PackagesDir(), "app.hello", "1.0.0", metadata.FileName))

	latest, err := ledger.Latest(m.ledgerPath("app.hello"))
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", latest)

	idx, err := index.Load(m.IndexPath())
	require.NoError(t, err)
	require.Len(t, idx.Packages, 1)
	assert.Equal(t, "./packages/app.hello/1.0.0", idx.Packages[0].Location)

	// metadata was cached
	entries, err := os.ReadDir(m.Config().CacheDir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestInstallUnknownPackage(t *testing.T) {
	m := newTestRepo(t)
	err := m.Install(context.Background(), "app.absent", "")
	assert.ErrorIs(t, err, errors.ErrPackageNotFound)
}

func TestInstallNamedSourceChecks(t *testing.T) {
	m := newTestRepo(t)
	newSourceServer(t, m, "main", map[string]map[string]map[string]string{
		"app.hello": {"1.0.0": {"a.txt": "one"}},
	})
	require.NoError(t, m.Config().EnableSource("main", false))

	ctx := context.Background()
	// refresh before disabling would be needed for a real install; the source
	// checks run before any download
	idx, err := index.Load(m.IndexPath())
	require.NoError(t, err)
	idx.SetSourceCatalog([]index.PackageInfo{{ID: "app.hello", LatestVersion: "1.0.0", Location: "https://x.example.com/packages/app.hello/1.0.0"}})
	require.NoError(t, idx.Save(m.IndexPath()))

	assert.ErrorIs(t, m.Install(ctx, "absent:app.hello", ""), errors.ErrSourceNotFound)
	assert.ErrorIs(t, m.Install(ctx, "main:app.hello", ""), errors.ErrSourceDisabled)
}

func TestInstallHashMismatchRollsBack(t *testing.T) {
	m := newTestRepo(t)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	fetcher := mocks.NewMockFetcher(ctrl)
	m.fetcher = fetcher
	m.merger = index.NewMerger(fetcher)

	meta := &metadata.PackageMetadata{
		ID:      "app.hello",
		Name:    "app.hello",
		Version: "1.0.0",
		AllFiles: map[string]string{
			"a.txt": hash.Sum([]byte("good")),
			"b.txt": hash.Sum([]byte("never fetched clean")),
		},
	}
	metaBytes, err := meta.ToJSON()
	require.NoError(t, err)

	require.NoError(t, m.Config().AddSource(testSource("main", "https://pkgs.example.com")))
	idx, err := index.Load(m.IndexPath())
	require.NoError(t, err)
	idx.SetSourceCatalog([]index.PackageInfo{{
		ID:            "app.hello",
		LatestVersion: "1.0.0",
		Location:      "https://pkgs.example.com/packages/app.hello/1.0.0",
	}})
	require.NoError(t, idx.Save(m.IndexPath()))

	fetcher.EXPECT().
		FetchBytes(gomock.Any(), "https://pkgs.example.com/packages/app.hello/1.0.0/metadata.json").
		Return(metaBytes, nil)
	fetcher.EXPECT().
		FetchBytes(gomock.Any(), "https://pkgs.example.com/packages/app.hello/1.0.0/a.txt").
		Return([]byte("good"), nil)
	fetcher.EXPECT().
		FetchBytes(gomock.Any(), "https://pkgs.example.com/packages/app.hello/1.0.0/b.txt").
		Return([]byte("corrupted"), nil)

	err = m.Install(context.Background(), "app.hello", "")
	assert.ErrorIs(t, err, errors.ErrHashMismatch)

	// the good file written before the mismatch was rolled back
	assert.NoFileExists(t, filepath.Join(m.PackagesDir(), "app.hello", "1.0.0", "a.txt"))
	versions, err := ledger.Read(m.ledgerPath("app.hello"))
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestInstallDownloadFailureRollsBack(t *testing.T) {
	m := newTestRepo(t)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	fetcher := mocks.NewMockFetcher(ctrl)
	m.fetcher = fetcher

	meta := &metadata.PackageMetadata{
		ID:      "app.hello",
		Version: "1.0.0",
		AllFiles: map[string]string{
			"a.txt": hash.Sum([]byte("good")),
			"b.txt": hash.Sum([]byte("unreachable")),
		},
	}
	metaBytes, err := meta.ToJSON()
	require.NoError(t, err)

	require.NoError(t, m.Config().AddSource(testSource("main", "https://pkgs.example.com")))
	idx, err := index.Load(m.IndexPath())
	require.NoError(t, err)
	idx.SetSourceCatalog([]index.PackageInfo{{
		ID:            "app.hello",
		LatestVersion: "1.0.0",
		Location:      "https://pkgs.example.com/packages/app.hello/1.0.0",
	}})
	require.NoError(t, idx.Save(m.IndexPath()))

	fetcher.EXPECT().
		FetchBytes(gomock.Any(), "https://pkgs.example.com/packages/app.hello/1.0.0/metadata.json").
		Return(metaBytes, nil)
	fetcher.EXPECT().
		FetchBytes(gomock.Any(), "https://pkgs.example.com/packages/app.hello/1.0.0/a.txt").
		Return([]byte("good"), nil)
	fetcher.EXPECT().
		FetchBytes(gomock.Any(), "https://pkgs.example.com/packages/app.hello/1.0.0/b.txt").
		Return(nil, errors.ErrNetwork)

	err = m.Install(context.Background(), "app.hello", "")
	assert.ErrorIs(t, err, errors.ErrNetwork)
	assert.NoFileExists(t, filepath.Join(m.PackagesDir(), "app.hello", "1.0.0", "a.txt"))
	assert.NoFileExists(t, filepath.Join(m.PackagesDir(), "app.hello", "1.0.0", "b.txt"))
}

func TestInstallSameVersionOverwrites(t *testing.T) {
	m := newTestRepo(t)
	newSourceServer(t, m, "main", map[string]map[string]map[string]string{
		"app.hello": {"1.0.0": {"a.txt": "remote copy"}},
	})

	// a stale local publication of the same (id, version)
	require.NoError(t, m.Add(writePackageDir(t, "app.hello", "1.0.0", map[string]string{"a.txt": "local copy"})))

	ctx := context.Background()
	require.NoError(t, m.RefreshSources(ctx))
	require.NoError(t, m.Install(ctx, "app.hello", ""))

	data, err := os.ReadFile(filepath.Join(m.PackagesDir(), "app.hello", "1.0.0", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "remote copy", string(data))

	versions, err := ledger.Read(m.ledgerPath("app.hello"))
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0.0"}, versions)
}

func TestInstallOverwriteFailureRestoresPrevious(t *testing.T) {
	m := newTestRepo(t)
	require.NoError(t, m.Add(writePackageDir(t, "app.hello", "1.0.0", map[string]string{"a.txt": "original"})))

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	fetcher := mocks.NewMockFetcher(ctrl)
	m.fetcher = fetcher

	meta := &metadata.PackageMetadata{
		ID:      "app.hello",
		Version: "1.0.0",
		AllFiles: map[string]string{
			"a.txt": hash.Sum([]byte("replacement")),
		},
	}
	metaBytes, err := meta.ToJSON()
	require.NoError(t, err)

	require.NoError(t, m.Config().AddSource(testSource("main", "https://pkgs.example.com")))
	idx, err := index.Load(m.IndexPath())
	require.NoError(t, err)
	idx.SetSourceCatalog([]index.PackageInfo{{
		ID:            "app.hello",
		LatestVersion: "1.0.0",
		Location:      "https://pkgs.example.com/packages/app.hello/1.0.0",
	}})
	require.NoError(t, idx.Save(m.IndexPath()))

	fetcher.EXPECT().
		FetchBytes(gomock.Any(), "https://pkgs.example.com/packages/app.hello/1.0.0/metadata.json").
		Return(metaBytes, nil)
	fetcher.EXPECT().
		FetchBytes(gomock.Any(), "https://pkgs.example.com/packages/app.hello/1.0.0/a.txt").
		Return([]byte("corrupted"), nil)

	err = m.Install(context.Background(), "app.hello", "")
	assert.ErrorIs(t, err, errors.ErrHashMismatch)

	// the journaled removal of the old publication was undone
	data, err := os.ReadFile(filepath.Join(m.PackagesDir(), "app.hello", "1.0.0", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
	assert.FileExists(t, filepath.Join(m.PackagesDir(), "app.hello", "1.0.0", metadata.FileName))
}

func TestUpgrade(t *testing.T) {
	m := newTestRepo(t)
	newSourceServer(t, m, "main", map[string]map[string]map[string]string{
		"app.hello": {
			"1.0.0": {"a.txt": "one"},
			"2.0.0": {"a.txt": "two"},
		},
	})

	ctx := context.Background()
	require.NoError(t, m.RefreshSources(ctx))
	require.NoError(t, m.Install(ctx, "app.hello", "1.0.0"))

	require.NoError(t, m.Upgrade(ctx, "app.hello"))

	latest, err := ledger.Latest(m.ledgerPath("app.hello"))
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", latest)
	assert.FileExists(t, filepath.Join(m.PackagesDir(), "app.hello", "2.0.0", "a.txt"))

	// already at latest: no-op
	require.NoError(t, m.Upgrade(ctx, "app.hello"))
}

func TestUpgradeNotInstalled(t *testing.T) {
	m := newTestRepo(t)
	err := m.Upgrade(context.Background(), "app.absent")
	assert.ErrorIs(t, err, errors.ErrPackageNotFound)
}

func TestSyncIncremental(t *testing.T) {
	m := newTestRepo(t)
	newSourceServer(t, m, "main", map[string]map[string]map[string]string{
		"app.hello": {"1.0.0": {"a.txt": "one"}},
	})

	require.NoError(t, m.Sync(context.Background(), "main", false))

	idx, err := index.Load(m.IndexPath())
	require.NoError(t, err)
	require.Len(t, idx.Source, 1)
	assert.Equal(t, "app.hello", idx.Source[0].ID)
	// incremental sync leaves the packages tree alone
	assert.Empty(t, idx.Packages)
}

func TestSyncMirror(t *testing.T) {
	m := newTestRepo(t)
	newSourceServer(t, m, "main", map[string]map[string]map[string]string{
		"app.hello": {"1.0.0": {"bin/hello.txt": "Hello, world!"}},
		"app.other": {"0.2.0": {"data.bin": "payload"}},
	})

	// pre-existing local package gets replaced by the mirror
	require.NoError(t, m.Add(writePackageDir(t, "app.stale", "9.0.0", map[string]string{"x.txt": "stale"})))

	require.NoError(t, m.Sync(context.Background(), "main", true))

	assert.NoDirExists(t, filepath.Join(m.PackagesDir(), "app.stale"))
	assert.FileExists(t, filepath.Join(m.PackagesDir(), "app.hello", "1.0.0", "bin", "hello.txt"))
	assert.FileExists(t, filepath.Join(m.PackagesDir(), "app.other", "0.2.0", "data.bin"))

	latest, err := ledger.Latest(m.ledgerPath("app.hello"))
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", latest)

	idx, err := index.Load(m.IndexPath())
	require.NoError(t, err)
	assert.Len(t, idx.Packages, 2)
	assert.Len(t, idx.Source, 2)
}

func TestSyncUnknownOrDisabledSource(t *testing.T) {
	m := newTestRepo(t)
	assert.ErrorIs(t, m.Sync(context.Background(), "absent", false), errors.ErrSourceNotFound)

	newSourceServer(t, m, "main", map[string]map[string]map[string]string{})
	require.NoError(t, m.Config().EnableSource("main", false))
	assert.ErrorIs(t, m.Sync(context.Background(), "main", false), errors.ErrSourceDisabled)
}
