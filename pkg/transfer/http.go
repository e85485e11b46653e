package transfer

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/glorpus-work/datafetch/pkg/auth"
	"github.com/glorpus-work/datafetch/pkg/errors"
)

// HTTPClientConfig configures the HTTP client used for downloads.
type HTTPClientConfig struct {
	// Timeout bounds connecting, waiting for response headers and any pause
	// between body reads. It never caps the length of a transfer.
	Timeout time.Duration
	// ProbeTimeout bounds one HEAD request.
	ProbeTimeout time.Duration
	UserAgent    string
	Headers      map[string]string
	// Auth supplies per-host credentials; nil sends none.
	Auth *auth.Set
}

// NewHTTPClient builds the client shared by all HTTP transfers.
func NewHTTPClient(cfg HTTPClientConfig) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: cfg.Timeout, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   cfg.Timeout,
		ResponseHeaderTimeout: cfg.Timeout,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		// Bodies are written verbatim; transparent decompression would break size checks.
		DisableCompression: true,
	}
	return &http.Client{Transport: transport}
}

// HTTPSource fetches http and https URLs.
type HTTPSource struct {
	client       *http.Client
	userAgent    string
	headers      map[string]string
	auth         *auth.Set
	probeTimeout time.Duration
	idleTimeout  time.Duration
}

// NewHTTPSource creates a source using client. A nil client gets one built from cfg.
func NewHTTPSource(client *http.Client, cfg HTTPClientConfig) *HTTPSource {
	if client == nil {
		client = NewHTTPClient(cfg)
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "datafetch/1.0"
	}
	return &HTTPSource{
		client:       client,
		userAgent:    userAgent,
		headers:      cfg.Headers,
		auth:         cfg.Auth,
		probeTimeout: cfg.ProbeTimeout,
		idleTimeout:  cfg.Timeout,
	}
}

func (s *HTTPSource) newRequest(ctx context.Context, method, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", s.userAgent)
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	if err := s.auth.Apply(req); err != nil {
		return nil, errors.Wrap(err, "failed to authenticate request")
	}
	return req, nil
}

// Probe issues a HEAD request.
func (s *HTTPSource) Probe(ctx context.Context, rawURL string) (ProbeResult, error) {
	if s.probeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.probeTimeout)
		defer cancel()
	}

	req, err := s.newRequest(ctx, http.MethodHead, rawURL)
	if err != nil {
		return ProbeResult{}, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return ProbeResult{}, errors.Wrapf(errors.ErrUnavailable, "HEAD %s: %v", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	result := ProbeResult{
		StatusCode:    resp.StatusCode,
		AcceptRanges:  strings.EqualFold(strings.TrimSpace(resp.Header.Get("Accept-Ranges")), "bytes"),
		ContentLength: resp.ContentLength,
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, errors.Wrapf(errors.ErrUnavailable, "HEAD %s: HTTP %d", rawURL, resp.StatusCode)
	}
	return result, nil
}

// Open issues a GET request, with a Range header when offset is positive.
// The body fails once no data arrived for the configured timeout.
func (s *HTTPSource) Open(ctx context.Context, rawURL string, offset int64) (*Response, error) {
	ctx, cancel := context.WithCancel(ctx)
	req, err := s.newRequest(ctx, http.MethodGet, rawURL)
	if err != nil {
		cancel()
		return nil, err
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		cancel()
		return nil, errors.Wrapf(errors.ErrDownloadFailed, "GET %s: %v", rawURL, err)
	}

	body := newIdleBody(resp.Body, s.idleTimeout, cancel)
	switch {
	case resp.StatusCode == http.StatusOK:
		return &Response{Body: body, ContentLength: resp.ContentLength}, nil
	case resp.StatusCode == http.StatusPartialContent && offset > 0:
		return &Response{Body: body, Partial: true, ContentLength: resp.ContentLength}, nil
	default:
		_ = body.Close()
		return nil, errors.Wrapf(errors.ErrDownloadFailed, "GET %s: unexpected status code %d", rawURL, resp.StatusCode)
	}
}

// idleBody cancels its request when reads stall for longer than timeout.
type idleBody struct {
	io.ReadCloser
	timeout time.Duration
	timer   *time.Timer
	cancel  context.CancelFunc
}

func newIdleBody(rc io.ReadCloser, timeout time.Duration, cancel context.CancelFunc) *idleBody {
	b := &idleBody{ReadCloser: rc, timeout: timeout, cancel: cancel}
	if timeout > 0 {
		b.timer = time.AfterFunc(timeout, cancel)
	}
	return b
}

func (b *idleBody) Read(p []byte) (int, error) {
	if b.timer != nil {
		b.timer.Reset(b.timeout)
	}
	return b.ReadCloser.Read(p)
}

func (b *idleBody) Close() error {
	if b.timer != nil {
		b.timer.Stop()
	}
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
