// Package catalog describes the datasets datafetch knows how to download.
//
// A catalog is a read-only tree: Catalog -> Collection -> Session -> Part,
// where every Part carries a Download descriptor. Catalogs are built only
// through Parse (or a Provider), which validates the whole tree, so code
// that receives a *Catalog can rely on unique ids, parseable URLs, bare
// filenames and well-formed checksums.
package catalog

import "strings"

// Format is the container format of a downloadable file.
type Format string

const (
	FormatZip      Format = "zip"
	FormatTarGz    Format = "tar.gz"
	FormatTFRecord Format = "tfrecord"
)

// Known reports whether f is one of the formats datafetch understands.
func (f Format) Known() bool {
	switch f {
	case FormatZip, FormatTarGz, FormatTFRecord:
		return true
	default:
		return false
	}
}

// IsArchive reports whether files of this format must be unpacked before use.
func (f Format) IsArchive() bool {
	return f == FormatZip || f == FormatTarGz
}

// Algorithm identifies the digest a checksum was computed with.
type Algorithm string

const (
	AlgorithmNone   Algorithm = ""
	AlgorithmMD5    Algorithm = "md5"
	AlgorithmSHA256 Algorithm = "sha256"
)

// Download is the expected state of one remote file.
// It is a value type; holders get a copy and cannot alter the catalog.
type Download struct {
	URL       string
	Filename  string
	SizeBytes int64
	Checksum  string // lowercase hex, empty when not yet verified
	Format    Format
}

// Algorithm returns the digest algorithm implied by the checksum length.
func (d Download) Algorithm() Algorithm {
	switch len(d.Checksum) {
	case 32:
		return AlgorithmMD5
	case 64:
		return AlgorithmSHA256
	default:
		return AlgorithmNone
	}
}

// Part is the smallest downloadable unit.
type Part struct {
	ID       string
	Name     string
	Optional bool
	Download Download
}

// Session is one recording, grouping one or more parts.
type Session struct {
	ID           string
	Name         string
	Date         string
	LocationType string
	Parts        []Part
}

// Collection groups sessions.
type Collection struct {
	ID          string
	Name        string
	Description string
	Sessions    []Session
}

// License describes the terms a dataset is published under.
type License struct {
	Name    string
	URL     string
	Details string
}

// Citation is how a dataset asks to be cited.
type Citation struct {
	BibTeX string
}

// Metadata describes a dataset as a whole.
type Metadata struct {
	Name        string
	Description string
	Version     string
	License     License
	Citation    Citation
}

// Catalog is the root of a dataset description.
type Catalog struct {
	Metadata    Metadata
	Collections []Collection
}

// Collection returns the collection with the given id.
func (c *Catalog) Collection(id string) (*Collection, bool) {
	for i := range c.Collections {
		if c.Collections[i].ID == id {
			return &c.Collections[i], true
		}
	}
	return nil, false
}

// CollectionIDs returns the collection ids in declaration order.
func (c *Catalog) CollectionIDs() []string {
	ids := make([]string, 0, len(c.Collections))
	for _, col := range c.Collections {
		ids = append(ids, col.ID)
	}
	return ids
}

// PartCount returns the number of parts in the whole catalog.
func (c *Catalog) PartCount() int {
	n := 0
	for _, col := range c.Collections {
		for _, s := range col.Sessions {
			n += len(s.Parts)
		}
	}
	return n
}

// Session returns the session with the given id.
func (c *Collection) Session(id string) (*Session, bool) {
	for i := range c.Sessions {
		if c.Sessions[i].ID == id {
			return &c.Sessions[i], true
		}
	}
	return nil, false
}

// SessionIDs returns the session ids in declaration order.
func (c *Collection) SessionIDs() []string {
	ids := make([]string, 0, len(c.Sessions))
	for _, s := range c.Sessions {
		ids = append(ids, s.ID)
	}
	return ids
}

// Part returns the part with the given id.
func (s *Session) Part(id string) (*Part, bool) {
	for i := range s.Parts {
		if s.Parts[i].ID == id {
			return &s.Parts[i], true
		}
	}
	return nil, false
}

// FileKey builds the collection/session/part key used in reports and health checks.
func FileKey(collectionID, sessionID, partID string) string {
	return strings.Join([]string{collectionID, sessionID, partID}, "/")
}
