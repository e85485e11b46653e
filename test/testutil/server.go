// Package testutil holds helpers shared by package and command tests.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// ServerOptions shapes how the file server answers.
type ServerOptions struct {
	// NoRanges omits Accept-Ranges and ignores Range headers.
	NoRanges bool
	// IgnoreRange advertises ranges but always answers 200 with the whole file.
	IgnoreRange bool
	// FailHead answers every HEAD with 500.
	FailHead bool
	// FailRange answers every ranged GET with 500.
	FailRange bool
	// TruncateRange cuts ranged GET bodies in half while declaring the full length.
	TruncateRange bool
	// AcceptRanges replaces the advertised Accept-Ranges value.
	AcceptRanges string
}

// Request is one request the server received.
type Request struct {
	Method string
	Path   string
	Range  string
}

// FileServer is an in-memory HTTP file server with byte-range support.
type FileServer struct {
	*httptest.Server

	mu       sync.Mutex
	files    map[string][]byte
	opts     ServerOptions
	requests []Request
}

// NewFileServer starts a server for files, keyed by URL path without the leading slash.
// The server is closed when the test finishes.
func NewFileServer(t *testing.T, files map[string][]byte, opts ServerOptions) *FileServer {
	t.Helper()
	fs := &FileServer{files: make(map[string][]byte), opts: opts}
	for name, data := range files {
		fs.files[name] = data
	}
	fs.Server = httptest.NewServer(http.HandlerFunc(fs.handle))
	t.Cleanup(fs.Close)
	return fs
}

// FileURL returns the URL of the named file.
func (fs *FileServer) FileURL(name string) string {
	return fs.URL + "/" + name
}

// SetFile replaces or adds a served file.
func (fs *FileServer) SetFile(name string, data []byte) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files[name] = data
}

// SetOptions changes how subsequent requests are answered.
func (fs *FileServer) SetOptions(opts ServerOptions) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.opts = opts
}

// Requests returns the requests received so far.
func (fs *FileServer) Requests() []Request {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]Request(nil), fs.requests...)
}

// Count returns how many requests with method were received.
func (fs *FileServer) Count(method string) int {
	n := 0
	for _, r := range fs.Requests() {
		if r.Method == method {
			n++
		}
	}
	return n
}

func (fs *FileServer) handle(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	fs.requests = append(fs.requests, Request{Method: r.Method, Path: r.URL.Path, Range: r.Header.Get("Range")})
	data, ok := fs.files[strings.TrimPrefix(r.URL.Path, "/")]
	opts := fs.opts
	fs.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	if !opts.NoRanges {
		acceptRanges := opts.AcceptRanges
		if acceptRanges == "" {
			acceptRanges = "bytes"
		}
		w.Header().Set("Accept-Ranges", acceptRanges)
	}

	switch r.Method {
	case http.MethodHead:
		if opts.FailHead {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		offset, ranged := parseRange(r.Header.Get("Range"))
		if !ranged || opts.NoRanges || opts.IgnoreRange {
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(data)
			return
		}
		if opts.FailRange {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if offset >= int64(len(data)) {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", len(data)))
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, len(data)-1, len(data)))
		w.Header().Set("Content-Length", strconv.FormatInt(int64(len(data))-offset, 10))
		w.WriteHeader(http.StatusPartialContent)
		body := data[offset:]
		if opts.TruncateRange {
			body = body[:len(body)/2]
		}
		_, _ = w.Write(body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// parseRange understands the open-ended "bytes=N-" form only.
func parseRange(h string) (int64, bool) {
	if !strings.HasPrefix(h, "bytes=") || !strings.HasSuffix(h, "-") {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(h, "bytes="), "-"), 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// WriteCatalog writes a catalog file named <name>.yaml into dir.
func WriteCatalog(t *testing.T, dir, name, content string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("Failed to create catalog dir: %v", err)
	}
	path := filepath.Join(dir, name+".yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write catalog: %v", err)
	}
	return path
}

// SetupTestConfig writes a settings file pointing data and catalogs at the
// given directories and returns its path.
func SetupTestConfig(t *testing.T, dataDir, catalogDir string) string {
	t.Helper()
	configStr := fmt.Sprintf(`settings:
  data_dir: %s
  catalog_dir: %s
  http_timeout: 10s
  probe_timeout: 2s
  max_retries: 1
  log_level: info
  log_format: text
`, dataDir, catalogDir)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(configStr), 0o600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return configPath
}
