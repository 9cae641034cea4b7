package index

import (
	"bytes"
	"encoding/json"

	"github.com/parcel-pkgs/parcel/pkg/errors"
)

// DocumentKind distinguishes the two catalog document shapes seen in the
// wild: a bare JSON array of entries, and a full index-shaped object.
type DocumentKind int

const (
	// DocFlat is a bare `[...]` array of catalog entries.
	DocFlat DocumentKind = iota
	// DocObject is a `{"packages": [...], "source": [...]}` object. This is
	// the canonical shape for documents written by parcel itself.
	DocObject
)

// CatalogDocument is a parsed catalog fetched from a source root. Exactly
// one variant is populated, selected by Kind.
type CatalogDocument struct {
	Kind    DocumentKind
	Entries []PackageInfo // DocFlat
	Index   RepositoryIndex
}

// ParseCatalogDocument decodes a catalog document, accepting both shapes.
func ParseCatalogDocument(data []byte) (*CatalogDocument, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidManifest, "catalog document is empty")
	}

	switch trimmed[0] {
	case '[':
		var entries []PackageInfo
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, errors.Wrap(err, "failed to parse catalog array")
		}
		return &CatalogDocument{Kind: DocFlat, Entries: entries}, nil
	case '{':
		var idx RepositoryIndex
		if err := json.Unmarshal(data, &idx); err != nil {
			return nil, errors.Wrap(err, "failed to parse catalog object")
		}
		return &CatalogDocument{Kind: DocObject, Index: idx}, nil
	default:
		return nil, errors.Wrap(errors.ErrInvalidManifest, "catalog document is neither array nor object")
	}
}

// Published returns the list of packages the document advertises. For the
// object shape that is its `packages` field; the `source` field is the
// publishing repository's own catalog view and is not re-exported.
func (d *CatalogDocument) Published() []PackageInfo {
	switch d.Kind {
	case DocFlat:
		return d.Entries
	case DocObject:
		return d.Index.Packages
	default:
		return nil
	}
}
