package catalog

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/glorpus-work/datafetch/pkg/errors"
)

// FileExtension is the suffix of catalog files in a catalog directory.
const FileExtension = ".yaml"

// Provider loads catalogs by dataset name from a directory of
// <dataset>.yaml files. Loaded catalogs are cached; a Provider is safe for
// concurrent use.
type Provider struct {
	dir string

	mu    sync.Mutex
	cache map[string]*Catalog
}

// NewProvider creates a provider reading from dir.
func NewProvider(dir string) *Provider {
	return &Provider{
		dir:   dir,
		cache: make(map[string]*Catalog),
	}
}

// Dir returns the directory the provider reads from.
func (p *Provider) Dir() string {
	return p.dir
}

// Path returns the file a dataset's catalog is expected at.
func (p *Provider) Path(name string) string {
	return filepath.Join(p.dir, name+FileExtension)
}

// Load returns the catalog of the named dataset.
func (p *Provider) Load(name string) (*Catalog, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, errors.Wrapf(errors.ErrCatalogNotFound, "invalid dataset name %q", name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if cat, ok := p.cache[name]; ok {
		return cat, nil
	}

	cat, err := ParseFromFile(p.Path(name))
	if err != nil {
		return nil, errors.Wrapf(err, "dataset %s", name)
	}
	p.cache[name] = cat
	return cat, nil
}

// List returns the names of the datasets available in the directory, sorted.
// A missing directory yields an empty list.
func (p *Provider) List() ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, errors.Wrapf(err, "failed to read catalog directory %s", p.dir)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != FileExtension {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), FileExtension))
	}
	sort.Strings(names)
	return names, nil
}

// ClearCache drops every cached catalog so the next Load reads from disk.
func (p *Provider) ClearCache() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache = make(map[string]*Catalog)
}
