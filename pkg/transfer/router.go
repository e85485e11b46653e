package transfer

import (
	"context"
	"net/url"
	"strings"

	"github.com/glorpus-work/datafetch/pkg/errors"
)

// Router dispatches to a Source by URL scheme. It is itself a Source.
type Router struct {
	sources map[string]Source
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{sources: make(map[string]Source)}
}

// Register routes URLs with the given scheme to src.
func (r *Router) Register(scheme string, src Source) {
	r.sources[strings.ToLower(scheme)] = src
}

// Schemes lists the registered schemes.
func (r *Router) Schemes() []string {
	out := make([]string, 0, len(r.sources))
	for s := range r.sources {
		out = append(out, s)
	}
	return out
}

func (r *Router) route(rawURL string) (Source, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid URL %s", rawURL)
	}
	src, ok := r.sources[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnsupportedScheme, "%q in %s", u.Scheme, rawURL)
	}
	return src, nil
}

// Probe implements Source.
func (r *Router) Probe(ctx context.Context, rawURL string) (ProbeResult, error) {
	src, err := r.route(rawURL)
	if err != nil {
		return ProbeResult{}, err
	}
	return src.Probe(ctx, rawURL)
}

// Open implements Source.
func (r *Router) Open(ctx context.Context, rawURL string, offset int64) (*Response, error) {
	src, err := r.route(rawURL)
	if err != nil {
		return nil, err
	}
	return src.Open(ctx, rawURL, offset)
}
