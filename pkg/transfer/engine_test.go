package transfer

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glorpus-work/datafetch/pkg/catalog"
	"github.com/glorpus-work/datafetch/pkg/errors"
	"github.com/glorpus-work/datafetch/pkg/validate"
	"github.com/glorpus-work/datafetch/test/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var payload = bytes.Repeat([]byte("0123456789abcdef"), 64) // 1 KiB

func md5Hex(b []byte) string {
	s := md5.Sum(b) //nolint:gosec
	return hex.EncodeToString(s[:])
}

func descriptor(url string) catalog.Download {
	return catalog.Download{
		URL:       url,
		Filename:  "part.zip",
		SizeBytes: int64(len(payload)),
		Checksum:  md5Hex(payload),
		Format:    catalog.FormatZip,
	}
}

func newTestEngine(maxRetries int, progress ProgressFunc) *Engine {
	src := NewHTTPSource(nil, HTTPClientConfig{Timeout: 5 * time.Second, ProbeTimeout: time.Second})
	return NewEngine(src, Options{MaxRetries: maxRetries, Progress: progress})
}

func setup(t *testing.T, remote []byte, opts testutil.ServerOptions) (*testutil.FileServer, catalog.Download, string) {
	t.Helper()
	srv := testutil.NewFileServer(t, map[string][]byte{"part.zip": remote}, opts)
	return srv, descriptor(srv.FileURL("part.zip")), filepath.Join(t.TempDir(), "data", "part.zip")
}

func TestAcquire_ValidFileMakesNoRequests(t *testing.T) {
	srv, d, path := setup(t, payload, testutil.ServerOptions{})
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, payload, 0o644))

	res, err := newTestEngine(3, nil).Acquire(context.Background(), d, path)
	require.NoError(t, err)
	assert.Equal(t, validate.Valid, res.Status)
	assert.Equal(t, 0, res.Attempts)
	assert.Empty(t, srv.Requests())
}

func TestAcquire_MissingFile(t *testing.T) {
	srv, d, path := setup(t, payload, testutil.ServerOptions{})

	res, err := newTestEngine(3, nil).Acquire(context.Background(), d, path)
	require.NoError(t, err)
	assert.Equal(t, Result{Status: validate.Valid, Attempts: 1}, res)
	assert.Equal(t, 1, srv.Count(http.MethodGet))
	assert.Equal(t, 0, srv.Count(http.MethodHead))

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, onDisk)
}

func TestAcquire_RetryBudget(t *testing.T) {
	corrupt := bytes.Repeat([]byte("x"), len(payload))
	srv, d, path := setup(t, corrupt, testutil.ServerOptions{})

	res, err := newTestEngine(3, nil).Acquire(context.Background(), d, path)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrRetriesExhausted)
	assert.Equal(t, validate.WrongChecksum, res.Status)
	assert.Equal(t, 4, res.Attempts)
	assert.Equal(t, 4, srv.Count(http.MethodGet))
}

func TestAcquire_ZeroRetries(t *testing.T) {
	srv, d, path := setup(t, []byte("short"), testutil.ServerOptions{})

	res, err := newTestEngine(0, nil).Acquire(context.Background(), d, path)
	require.Error(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, validate.Partial, res.Status)
	assert.Equal(t, 1, srv.Count(http.MethodGet))
}

func TestAcquire_Unavailable(t *testing.T) {
	srv, d, path := setup(t, payload, testutil.ServerOptions{})
	d.URL = srv.FileURL("absent.zip")

	res, err := newTestEngine(3, nil).Acquire(context.Background(), d, path)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrRetriesExhausted)
	assert.ErrorIs(t, err, errors.ErrDownloadFailed)
	assert.Equal(t, validate.Missing, res.Status)
	assert.Equal(t, 4, res.Attempts)
	assert.NoFileExists(t, path)
}

func TestAcquire_RejectedResponseKeepsLocalFile(t *testing.T) {
	srv, d, path := setup(t, payload, testutil.ServerOptions{})
	d.URL = srv.FileURL("absent.zip")

	stale := bytes.Repeat([]byte("s"), len(payload))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, stale, 0o644))

	res, err := newTestEngine(1, nil).Acquire(context.Background(), d, path)
	require.Error(t, err)
	assert.Equal(t, validate.WrongChecksum, res.Status)

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, stale, onDisk)
}

func TestAcquire_ResumeAppends(t *testing.T) {
	srv, d, path := setup(t, payload, testutil.ServerOptions{})
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, payload[:300], 0o644))

	var last Progress
	res, err := newTestEngine(3, func(p Progress) { last = p }).Acquire(context.Background(), d, path)
	require.NoError(t, err)
	assert.Equal(t, Result{Status: validate.Valid, Attempts: 1, Resumed: 1}, res)

	reqs := srv.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, http.MethodHead, reqs[0].Method)
	assert.Equal(t, http.MethodGet, reqs[1].Method)
	assert.Equal(t, "bytes=300-", reqs[1].Range)

	assert.True(t, last.Resumed)
	assert.Equal(t, int64(len(payload)), last.Written)
	assert.Equal(t, int64(len(payload)), last.Total)
}

func TestAcquire_RangeIgnored(t *testing.T) {
	srv, d, path := setup(t, payload, testutil.ServerOptions{IgnoreRange: true})
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, payload[:300], 0o644))

	res, err := newTestEngine(3, nil).Acquire(context.Background(), d, path)
	require.NoError(t, err)
	assert.Equal(t, Result{Status: validate.Valid, Attempts: 1}, res)
	assert.Equal(t, 1, srv.Count(http.MethodGet))

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, onDisk, "partial prefix is discarded, not duplicated")
}

func TestAcquire_NoRangeSupport(t *testing.T) {
	srv, d, path := setup(t, payload, testutil.ServerOptions{NoRanges: true})
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, payload[:300], 0o644))

	res, err := newTestEngine(3, nil).Acquire(context.Background(), d, path)
	require.NoError(t, err)
	assert.Equal(t, validate.Valid, res.Status)

	reqs := srv.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, http.MethodHead, reqs[0].Method)
	assert.Empty(t, reqs[1].Range, "fresh download sends no range")
}

func TestAcquire_ProbeFailureFallsBackToFresh(t *testing.T) {
	srv, d, path := setup(t, payload, testutil.ServerOptions{FailHead: true})
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, payload[:10], 0o644))

	res, err := newTestEngine(3, nil).Acquire(context.Background(), d, path)
	require.NoError(t, err)
	assert.Equal(t, validate.Valid, res.Status)
	assert.Equal(t, 1, srv.Count(http.MethodGet))
}

func TestAcquire_LocalLargerThanExpected(t *testing.T) {
	srv, d, path := setup(t, payload, testutil.ServerOptions{})
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, append(append([]byte{}, payload...), "extra"...), 0o644))

	res, err := newTestEngine(3, nil).Acquire(context.Background(), d, path)
	require.NoError(t, err)
	assert.Equal(t, validate.Valid, res.Status)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodGet, reqs[0].Method)
	assert.Empty(t, reqs[0].Range)
}

func TestAcquire_ResumeFallbackIsNotCounted(t *testing.T) {
	srv, d, path := setup(t, payload, testutil.ServerOptions{})
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	// Corrupt prefix: appending the remainder yields the right size but the wrong digest.
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("z"), 300), 0o644))

	res, err := newTestEngine(3, nil).Acquire(context.Background(), d, path)
	require.NoError(t, err)
	assert.Equal(t, Result{Status: validate.Valid, Attempts: 1, Resumed: 1}, res)

	reqs := srv.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "bytes=300-", reqs[1].Range)
	assert.Empty(t, reqs[2].Range)
}

func TestAcquire_RangeFailureFallsBackToFresh(t *testing.T) {
	tests := []struct {
		name    string
		opts    testutil.ServerOptions
		resumed int
	}{
		{name: "server error", opts: testutil.ServerOptions{FailRange: true}},
		{name: "truncated body", opts: testutil.ServerOptions{TruncateRange: true}, resumed: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, d, path := setup(t, payload, tt.opts)
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
			require.NoError(t, os.WriteFile(path, payload[:300], 0o644))

			res, err := newTestEngine(0, nil).Acquire(context.Background(), d, path)
			require.NoError(t, err)
			assert.Equal(t, Result{Status: validate.Valid, Attempts: 1, Resumed: tt.resumed}, res)

			reqs := srv.Requests()
			require.Len(t, reqs, 3)
			assert.Equal(t, http.MethodHead, reqs[0].Method)
			assert.Equal(t, "bytes=300-", reqs[1].Range)
			assert.Equal(t, http.MethodGet, reqs[2].Method)
			assert.Empty(t, reqs[2].Range)

			onDisk, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, payload, onDisk)
		})
	}
}

func TestAcquire_ValidationErrorAborts(t *testing.T) {
	srv, d, _ := setup(t, payload, testutil.ServerOptions{})
	dir := t.TempDir()

	_, err := newTestEngine(3, nil).Acquire(context.Background(), d, dir)
	require.Error(t, err)
	assert.NotErrorIs(t, err, errors.ErrRetriesExhausted)
	assert.Empty(t, srv.Requests())
}

func TestAcquire_ContextCanceled(t *testing.T) {
	srv, d, path := setup(t, payload, testutil.ServerOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEngine(3, nil).Acquire(ctx, d, path)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, srv.Requests())
}

func TestNewEngine_NegativeRetriesUseDefault(t *testing.T) {
	e := NewEngine(NewRouter(), Options{MaxRetries: -1})
	assert.Equal(t, DefaultMaxRetries, e.MaxRetries())
}
