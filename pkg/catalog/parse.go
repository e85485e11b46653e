package catalog

import (
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/glorpus-work/datafetch/pkg/errors"
	"github.com/glorpus-work/datafetch/pkg/fsutil"
	"github.com/hashicorp/go-version"
	"gopkg.in/yaml.v3"
)

// uncheckedChecksum is what unverified catalog entries carry instead of a digest.
const uncheckedChecksum = "unknown"

type rawCatalog struct {
	Metadata    rawMetadata     `yaml:"metadata"`
	Collections []rawCollection `yaml:"collections"`
}

type rawMetadata struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Version     string     `yaml:"version"`
	License     rawLicense `yaml:"license"`
	Citation    struct {
		BibTeX string `yaml:"bibtex"`
	} `yaml:"citation"`
}

type rawLicense struct {
	Name    string `yaml:"name"`
	URL     string `yaml:"url"`
	Details string `yaml:"details"`
}

type rawCollection struct {
	ID          string       `yaml:"id"`
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Sessions    []rawSession `yaml:"sessions"`
}

type rawSession struct {
	ID           string    `yaml:"id"`
	Name         string    `yaml:"name"`
	Date         string    `yaml:"date"`
	LocationType string    `yaml:"location_type"`
	Parts        []rawPart `yaml:"parts"`
}

type rawPart struct {
	ID       string      `yaml:"id"`
	Name     string      `yaml:"name"`
	Optional bool        `yaml:"optional"`
	Download rawDownload `yaml:"download"`
}

type rawDownload struct {
	URL       string `yaml:"url"`
	Filename  string `yaml:"filename"`
	SizeBytes int64  `yaml:"size_bytes"`
	Checksum  string `yaml:"checksum"`
	MD5       string `yaml:"md5"`
	Format    string `yaml:"format"`
}

// Parse parses and validates a catalog from YAML data.
func Parse(data []byte) (*Catalog, error) {
	var raw rawCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(errors.ErrCatalogParse, err.Error())
	}

	cat, err := raw.build()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCatalogInvalid, err.Error())
	}
	return cat, nil
}

// ParseFromReader parses a catalog from an io.Reader.
func ParseFromReader(reader io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read catalog data")
	}
	return Parse(data)
}

// ParseFromFile parses the catalog file at filePath.
func ParseFromFile(filePath string) (*Catalog, error) {
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errors.ErrCatalogNotFound, "expected %s", filePath)
		}
		return nil, errors.Wrapf(err, "cannot open catalog file %s", filePath)
	}
	defer func() { _ = file.Close() }()

	cat, err := ParseFromReader(file)
	if err != nil {
		return nil, errors.Wrapf(err, "catalog %s", filePath)
	}
	return cat, nil
}

func (r rawCatalog) build() (*Catalog, error) {
	md := r.Metadata
	if strings.TrimSpace(md.Name) == "" {
		return nil, fmt.Errorf("metadata.name is required")
	}
	if strings.TrimSpace(md.License.Name) == "" {
		return nil, fmt.Errorf("metadata.license.name is required")
	}
	if md.Version != "" {
		if _, err := version.NewVersion(md.Version); err != nil {
			return nil, fmt.Errorf("metadata.version %q: %w", md.Version, err)
		}
	}

	cat := &Catalog{
		Metadata: Metadata{
			Name:        md.Name,
			Description: md.Description,
			Version:     md.Version,
			License:     License{Name: md.License.Name, URL: md.License.URL, Details: md.License.Details},
			Citation:    Citation{BibTeX: md.Citation.BibTeX},
		},
		Collections: make([]Collection, 0, len(r.Collections)),
	}

	seen := make(map[string]bool, len(r.Collections))
	for _, rc := range r.Collections {
		if err := checkID(seen, rc.ID, "collection"); err != nil {
			return nil, err
		}
		col, err := rc.build()
		if err != nil {
			return nil, fmt.Errorf("collection %s: %w", rc.ID, err)
		}
		cat.Collections = append(cat.Collections, col)
	}
	return cat, nil
}

func (r rawCollection) build() (Collection, error) {
	col := Collection{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Sessions:    make([]Session, 0, len(r.Sessions)),
	}
	seen := make(map[string]bool, len(r.Sessions))
	for _, rs := range r.Sessions {
		if err := checkID(seen, rs.ID, "session"); err != nil {
			return Collection{}, err
		}
		sess, err := rs.build()
		if err != nil {
			return Collection{}, fmt.Errorf("session %s: %w", rs.ID, err)
		}
		col.Sessions = append(col.Sessions, sess)
	}
	return col, nil
}

func (r rawSession) build() (Session, error) {
	sess := Session{
		ID:           r.ID,
		Name:         r.Name,
		Date:         r.Date,
		LocationType: r.LocationType,
		Parts:        make([]Part, 0, len(r.Parts)),
	}
	seen := make(map[string]bool, len(r.Parts))
	for _, rp := range r.Parts {
		if err := checkID(seen, rp.ID, "part"); err != nil {
			return Session{}, err
		}
		d, err := rp.Download.build()
		if err != nil {
			return Session{}, fmt.Errorf("part %s: %w", rp.ID, err)
		}
		sess.Parts = append(sess.Parts, Part{ID: rp.ID, Name: rp.Name, Optional: rp.Optional, Download: d})
	}
	return sess, nil
}

func (r rawDownload) build() (Download, error) {
	u, err := url.Parse(r.URL)
	if err != nil || r.URL == "" {
		return Download{}, fmt.Errorf("invalid url %q", r.URL)
	}
	switch u.Scheme {
	case "http", "https", "s3":
	default:
		return Download{}, fmt.Errorf("url %q: scheme must be http, https or s3", r.URL)
	}
	if u.Host == "" {
		return Download{}, fmt.Errorf("url %q has no host", r.URL)
	}

	if !fsutil.IsBareFilename(r.Filename) {
		return Download{}, fmt.Errorf("filename %q must be a bare file name", r.Filename)
	}
	if r.SizeBytes < 0 {
		return Download{}, fmt.Errorf("size_bytes cannot be negative")
	}

	sum := r.Checksum
	if sum == "" {
		sum = r.MD5
	}
	sum, err = normalizeChecksum(sum)
	if err != nil {
		return Download{}, err
	}

	format := Format(strings.TrimSpace(r.Format))
	if format == "" {
		format = FormatZip
	}

	return Download{
		URL:       r.URL,
		Filename:  r.Filename,
		SizeBytes: r.SizeBytes,
		Checksum:  sum,
		Format:    format,
	}, nil
}

func normalizeChecksum(sum string) (string, error) {
	sum = strings.ToLower(strings.TrimSpace(sum))
	if sum == "" || sum == uncheckedChecksum {
		return "", nil
	}
	if len(sum) != 32 && len(sum) != 64 {
		return "", fmt.Errorf("checksum %q: expected 32 (md5) or 64 (sha256) hex characters", sum)
	}
	if _, err := hex.DecodeString(sum); err != nil {
		return "", fmt.Errorf("checksum %q is not hex", sum)
	}
	return sum, nil
}

func checkID(seen map[string]bool, id, kind string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%s id is required", kind)
	}
	if seen[id] {
		return fmt.Errorf("duplicate %s id %q", kind, id)
	}
	seen[id] = true
	return nil
}
