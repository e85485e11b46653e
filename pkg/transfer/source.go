// Package transfer moves remote files onto the local disk.
//
// A Source speaks one transfer protocol (HTTP, S3) through a small
// request/response-with-streaming-body model: Probe asks for metadata only,
// Open starts a body stream at an offset. The Engine drives a Source to bring
// a local file into the Valid state, resuming partial files where the remote
// end supports byte ranges.
package transfer

import (
	"context"
	"io"
)

// ProbeResult is what a metadata-only request reveals about a remote file.
type ProbeResult struct {
	StatusCode    int
	AcceptRanges  bool
	ContentLength int64 // -1 when unknown
}

// Response is an open body stream.
type Response struct {
	Body io.ReadCloser
	// Partial is set when the body starts at the requested offset rather than at zero.
	Partial       bool
	ContentLength int64 // -1 when unknown
}

// Source is one transfer protocol.
type Source interface {
	// Probe fetches metadata for rawURL. Any non-success answer is an error.
	Probe(ctx context.Context, rawURL string) (ProbeResult, error)
	// Open starts streaming rawURL from offset. Offsets above zero request a
	// byte range; the remote may ignore it, in which case Response.Partial is false
	// and the body holds the whole file.
	Open(ctx context.Context, rawURL string, offset int64) (*Response, error)
}
