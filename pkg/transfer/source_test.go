package transfer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/glorpus-work/datafetch/pkg/auth"
	"github.com/glorpus-work/datafetch/pkg/errors"
	"github.com/glorpus-work/datafetch/pkg/validate"
	"github.com/glorpus-work/datafetch/test/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSource_Probe(t *testing.T) {
	srv := testutil.NewFileServer(t, map[string][]byte{"a.zip": payload}, testutil.ServerOptions{})
	src := NewHTTPSource(srv.Client(), HTTPClientConfig{})

	res, err := src.Probe(context.Background(), srv.FileURL("a.zip"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.True(t, res.AcceptRanges)
	assert.Equal(t, int64(len(payload)), res.ContentLength)

	res, err = src.Probe(context.Background(), srv.FileURL("missing.zip"))
	assert.ErrorIs(t, err, errors.ErrUnavailable)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestHTTPSource_ProbeAcceptRangesCase(t *testing.T) {
	srv := testutil.NewFileServer(t, map[string][]byte{"a.zip": payload}, testutil.ServerOptions{AcceptRanges: "Bytes"})
	src := NewHTTPSource(srv.Client(), HTTPClientConfig{})

	res, err := src.Probe(context.Background(), srv.FileURL("a.zip"))
	require.NoError(t, err)
	assert.True(t, res.AcceptRanges)

	srv.SetOptions(testutil.ServerOptions{AcceptRanges: "none"})
	res, err = src.Probe(context.Background(), srv.FileURL("a.zip"))
	require.NoError(t, err)
	assert.False(t, res.AcceptRanges)
}

func TestNewHTTPClient_TimeoutOnTransport(t *testing.T) {
	client := NewHTTPClient(HTTPClientConfig{Timeout: 7 * time.Second})
	assert.Zero(t, client.Timeout)

	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 7*time.Second, transport.ResponseHeaderTimeout)
	assert.Equal(t, 7*time.Second, transport.TLSHandshakeTimeout)
}

func TestHTTPSource_SlowBodyOutlastsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", "4")
		flusher := w.(http.Flusher)
		for _, b := range []byte("abcd") {
			_, _ = w.Write([]byte{b})
			flusher.Flush()
			time.Sleep(40 * time.Millisecond)
		}
	}))
	defer srv.Close()

	// Each chunk arrives inside the timeout; the whole body does not.
	src := NewHTTPSource(nil, HTTPClientConfig{Timeout: 100 * time.Millisecond})
	resp, err := src.Open(context.Background(), srv.URL, 0)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), body)
}

func TestHTTPSource_StalledBodyFails(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", "4")
		_, _ = w.Write([]byte("ab"))
		w.(http.Flusher).Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	src := NewHTTPSource(nil, HTTPClientConfig{Timeout: 50 * time.Millisecond})
	resp, err := src.Open(context.Background(), srv.URL, 0)
	require.NoError(t, err)
	defer resp.Body.Close()
	_, err = io.ReadAll(resp.Body)
	assert.Error(t, err)
}

func TestHTTPSource_ProbeConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/a.zip"
	srv.Close()

	_, err := NewHTTPSource(nil, HTTPClientConfig{}).Probe(context.Background(), url)
	assert.ErrorIs(t, err, errors.ErrUnavailable)
}

func TestHTTPSource_Headers(t *testing.T) {
	var gotUA, gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotToken = r.Header.Get("X-Token")
	}))
	defer srv.Close()

	src := NewHTTPSource(nil, HTTPClientConfig{UserAgent: "test-agent", Headers: map[string]string{"X-Token": "t"}})
	_, err := src.Probe(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "test-agent", gotUA)
	assert.Equal(t, "t", gotToken)
}

func TestHTTPSource_Auth(t *testing.T) {
	var gotAuth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = append(gotAuth, r.Header.Get("Authorization"))
	}))
	defer srv.Close()

	set, err := auth.NewSet([]auth.Credential{{Host: "127.0.0.1", Type: auth.BearerAuthType, Token: "secret"}})
	require.NoError(t, err)

	src := NewHTTPSource(srv.Client(), HTTPClientConfig{Auth: set})
	_, err = src.Probe(context.Background(), srv.URL+"/a.zip")
	require.NoError(t, err)
	resp, err := src.Open(context.Background(), srv.URL+"/a.zip", 0)
	require.NoError(t, err)
	_ = resp.Body.Close()

	// Same server, different host name: no credentials.
	_, err = src.Probe(context.Background(), strings.Replace(srv.URL, "127.0.0.1", "localhost", 1))
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer secret", "Bearer secret", ""}, gotAuth)
}

func TestHTTPSource_Open(t *testing.T) {
	srv := testutil.NewFileServer(t, map[string][]byte{"a.zip": payload}, testutil.ServerOptions{})
	src := NewHTTPSource(srv.Client(), HTTPClientConfig{})

	t.Run("whole file", func(t *testing.T) {
		resp, err := src.Open(context.Background(), srv.FileURL("a.zip"), 0)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.False(t, resp.Partial)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, payload, body)
	})

	t.Run("range", func(t *testing.T) {
		resp, err := src.Open(context.Background(), srv.FileURL("a.zip"), 1000)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.True(t, resp.Partial)
		assert.Equal(t, int64(len(payload)-1000), resp.ContentLength)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, payload[1000:], body)
	})

	t.Run("unsatisfiable range", func(t *testing.T) {
		_, err := src.Open(context.Background(), srv.FileURL("a.zip"), int64(len(payload)))
		assert.ErrorIs(t, err, errors.ErrDownloadFailed)
		assert.Contains(t, err.Error(), "416")
	})

	t.Run("not found", func(t *testing.T) {
		_, err := src.Open(context.Background(), srv.FileURL("b.zip"), 0)
		assert.ErrorIs(t, err, errors.ErrDownloadFailed)
	})
}

// fakeS3 serves objects from memory the way S3 answers HeadObject and ranged GetObject.
type fakeS3 struct {
	objects  map[string][]byte // "bucket/key"
	noRanges bool
	heads    int
	gets     []string // Range of each GetObject, "" for none
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.heads++
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, fmt.Errorf("NotFound: status code: 404")
	}
	out := &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}
	if f.noRanges {
		out.AcceptRanges = aws.String("none")
	} else {
		out.AcceptRanges = aws.String("bytes")
	}
	return out, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.gets = append(f.gets, aws.ToString(in.Range))
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, fmt.Errorf("NoSuchKey: status code: 404")
	}
	out := &s3.GetObjectOutput{}
	if r := aws.ToString(in.Range); r != "" && !f.noRanges {
		offset, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(r, "bytes="), "-"), 10, 64)
		if err != nil {
			return nil, err
		}
		out.ContentRange = aws.String(fmt.Sprintf("bytes %d-%d/%d", offset, len(data)-1, len(data)))
		data = data[offset:]
	}
	out.ContentLength = aws.Int64(int64(len(data)))
	out.Body = io.NopCloser(bytes.NewReader(data))
	return out, nil
}

func TestS3Source(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{"bucket/kitti/a.zip": payload}}
	src := NewS3Source(fake)

	res, err := src.Probe(context.Background(), "s3://bucket/kitti/a.zip")
	require.NoError(t, err)
	assert.True(t, res.AcceptRanges)
	assert.Equal(t, int64(len(payload)), res.ContentLength)

	_, err = src.Probe(context.Background(), "s3://bucket/nope")
	assert.ErrorIs(t, err, errors.ErrUnavailable)

	resp, err := src.Open(context.Background(), "s3://bucket/kitti/a.zip", 24)
	require.NoError(t, err)
	assert.True(t, resp.Partial)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, payload[24:], body)

	_, err = src.Open(context.Background(), "s3://bucket/nope", 0)
	assert.ErrorIs(t, err, errors.ErrDownloadFailed)

	_, err = src.Probe(context.Background(), "s3://bucket-only")
	assert.ErrorIs(t, err, errors.ErrInvalidPath)
}

func TestEngine_S3Resume(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{"bucket/a.zip": payload}}
	router := NewRouter()
	router.Register("s3", NewS3Source(fake))

	d := descriptor("s3://bucket/a.zip")
	path := filepath.Join(t.TempDir(), "part.zip")
	require.NoError(t, os.WriteFile(path, payload[:100], 0o644))

	res, err := NewEngine(router, Options{MaxRetries: 3}).Acquire(context.Background(), d, path)
	require.NoError(t, err)
	assert.Equal(t, Result{Status: validate.Valid, Attempts: 1, Resumed: 1}, res)
	assert.Equal(t, 1, fake.heads)
	assert.Equal(t, []string{"bytes=100-"}, fake.gets)
}

func TestRouter(t *testing.T) {
	srv := testutil.NewFileServer(t, map[string][]byte{"a.zip": payload}, testutil.ServerOptions{})
	router := NewRouter()
	router.Register("HTTP", NewHTTPSource(srv.Client(), HTTPClientConfig{}))

	assert.Equal(t, []string{"http"}, router.Schemes())

	_, err := router.Probe(context.Background(), srv.FileURL("a.zip"))
	require.NoError(t, err)

	_, err = router.Open(context.Background(), "ftp://example.com/a.zip", 0)
	assert.ErrorIs(t, err, errors.ErrUnsupportedScheme)

	_, err = router.Probe(context.Background(), "s3://bucket/a.zip")
	assert.ErrorIs(t, err, errors.ErrUnsupportedScheme)
}
