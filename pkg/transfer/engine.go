package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/glorpus-work/datafetch/internal/logger"
	"github.com/glorpus-work/datafetch/pkg/catalog"
	"github.com/glorpus-work/datafetch/pkg/errors"
	"github.com/glorpus-work/datafetch/pkg/fsutil"
	"github.com/glorpus-work/datafetch/pkg/validate"
)

const (
	// DefaultMaxRetries is the retry budget used when none is configured.
	DefaultMaxRetries = 3

	// DefaultBufferSize is the copy buffer for body streams.
	DefaultBufferSize = 1024 * 1024
)

// Progress reports bytes written for the file currently being transferred.
type Progress struct {
	Filename string
	Written  int64 // bytes on disk, including a resumed prefix
	Total    int64
	Resumed  bool
}

// ProgressFunc receives progress updates. It is called from the transferring goroutine.
type ProgressFunc func(Progress)

// Result describes how Acquire ended.
type Result struct {
	Status   validate.FileStatus
	Attempts int // counted attempts, not including the resume fallback
	Resumed  int // attempts that appended to an existing partial file
}

// Options configures an Engine.
type Options struct {
	// MaxRetries bounds the attempts to MaxRetries+1. Negative selects DefaultMaxRetries.
	MaxRetries int
	Progress   ProgressFunc
}

// Engine brings local files into the Valid state.
type Engine struct {
	source     Source
	maxRetries int
	progress   ProgressFunc
}

// NewEngine creates an engine fetching through source.
func NewEngine(source Source, opts Options) *Engine {
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Engine{
		source:     source,
		maxRetries: maxRetries,
		progress:   opts.Progress,
	}
}

// MaxRetries returns the configured retry budget.
func (e *Engine) MaxRetries() int {
	return e.maxRetries
}

// Acquire makes the file at localPath match d.
//
// A file that is already Valid costs no network traffic. Missing and corrupt
// files are downloaded from scratch; partial files are resumed when the remote
// end supports ranges. The error is nil iff Result.Status is Valid.
// Local filesystem faults found while validating abort immediately.
func (e *Engine) Acquire(ctx context.Context, d catalog.Download, localPath string) (Result, error) {
	var res Result

	status, err := validate.Validate(d, localPath)
	res.Status = status
	if err != nil {
		return res, errors.Wrapf(err, "validate %s", d.Filename)
	}
	if status == validate.Valid {
		logger.Debug("Already valid, skipping", logger.Fields{"file": d.Filename})
		return res, nil
	}

	if err := os.MkdirAll(filepath.Dir(localPath), fsutil.DirModeDefault); err != nil {
		return res, errors.Wrap(err, "could not create download dir")
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return res, errors.Wrapf(err, "acquire %s", d.Filename)
		}
		res.Attempts++

		fields := logger.Fields{"file": d.Filename, "attempt": res.Attempts, "status": status.String()}
		var attemptErr error
		if status == validate.Partial {
			logger.Debug("Resuming download", fields)
			var resumed bool
			resumed, attemptErr = e.resume(ctx, d, localPath)
			if resumed {
				res.Resumed++
			}
		} else {
			logger.Debug("Starting download", fields)
			attemptErr = e.fresh(ctx, d, localPath)
		}

		status, err = validate.Validate(d, localPath)
		res.Status = status
		if err != nil {
			return res, errors.Wrapf(err, "validate %s", d.Filename)
		}
		if status == validate.Valid {
			return res, nil
		}

		if attemptErr == nil {
			attemptErr = fmt.Errorf("file is %s after transfer", status)
		}
		lastErr = attemptErr
		logger.Warn("Attempt failed", logger.Fields{
			"file":    d.Filename,
			"attempt": res.Attempts,
			"of":      e.maxRetries + 1,
			"status":  status.String(),
			"error":   attemptErr.Error(),
		})
	}

	return res, fmt.Errorf("%s after %d attempts (last status %s): %w: %w",
		d.Filename, res.Attempts, status, errors.ErrRetriesExhausted, lastErr)
}

// resume continues a partial file. It falls back to a fresh download when
// ranges cannot be used, and does one uncounted fresh download when the
// ranged transfer fails or the resumed file still does not validate.
func (e *Engine) resume(ctx context.Context, d catalog.Download, localPath string) (bool, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return false, e.fresh(ctx, d, localPath)
	}
	offset := info.Size()
	if offset > d.SizeBytes {
		logger.Debug("Local file larger than expected, starting over", logger.Fields{
			"file": d.Filename, "size": offset, "expected": d.SizeBytes,
		})
		return false, e.fresh(ctx, d, localPath)
	}

	probe, err := e.source.Probe(ctx, d.URL)
	if err != nil || !probe.AcceptRanges {
		logger.Debug("Range requests unavailable, starting over", logger.Fields{"file": d.Filename})
		return false, e.fresh(ctx, d, localPath)
	}

	resp, err := e.source.Open(ctx, d.URL, offset)
	if err != nil {
		logger.Info("Range request failed, downloading again", logger.Fields{"file": d.Filename, "error": err.Error()})
		return false, e.restart(ctx, d, localPath)
	}

	resumed := resp.Partial
	if resumed {
		logger.Debug("Appending to partial file", logger.Fields{"file": d.Filename, "offset": offset})
		err = e.appendBody(resp, d, localPath, offset)
	} else {
		logger.Debug("Server ignored range, replacing partial file", logger.Fields{"file": d.Filename})
		err = e.writeBody(resp, d, localPath)
	}
	_ = resp.Body.Close()
	if err != nil {
		logger.Info("Resumed transfer failed, downloading again", logger.Fields{"file": d.Filename, "error": err.Error()})
		return resumed, e.restart(ctx, d, localPath)
	}

	status, err := validate.Validate(d, localPath)
	if err != nil {
		return resumed, err
	}
	if status == validate.Valid {
		return resumed, nil
	}

	logger.Info("Resumed file failed validation, downloading again", logger.Fields{
		"file": d.Filename, "status": status.String(),
	})
	return resumed, e.restart(ctx, d, localPath)
}

// restart discards the local file and downloads it whole. It is part of the
// current attempt and does not count against the retry budget.
func (e *Engine) restart(ctx context.Context, d catalog.Download, localPath string) error {
	if err := fsutil.RemoveIfExists(localPath); err != nil {
		return err
	}
	return e.fresh(ctx, d, localPath)
}

// fresh downloads the whole file. The local file is only replaced once the
// remote end has accepted the request.
func (e *Engine) fresh(ctx context.Context, d catalog.Download, localPath string) error {
	resp, err := e.source.Open(ctx, d.URL, 0)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return e.writeBody(resp, d, localPath)
}

func (e *Engine) writeBody(resp *Response, d catalog.Download, localPath string) error {
	f, err := fsutil.CreateFilePerm(localPath, fsutil.FileModeDefault)
	if err != nil {
		return errors.Wrap(err, "could not create file")
	}
	return e.copyBody(f, resp, d, 0, false)
}

func (e *Engine) appendBody(resp *Response, d catalog.Download, localPath string, offset int64) error {
	f, err := fsutil.AppendFile(localPath)
	if err != nil {
		return errors.Wrap(err, "could not open partial file")
	}
	return e.copyBody(f, resp, d, offset, true)
}

// copyBody streams resp into f and closes f.
func (e *Engine) copyBody(f *os.File, resp *Response, d catalog.Download, offset int64, resumed bool) error {
	pw := &progressWriter{
		w:  f,
		fn: e.progress,
		p:  Progress{Filename: d.Filename, Written: offset, Total: d.SizeBytes, Resumed: resumed},
	}

	buf := make([]byte, DefaultBufferSize)
	n, copyErr := io.CopyBuffer(pw, resp.Body, buf)
	closeErr := f.Close()

	if copyErr != nil {
		return errors.Wrapf(errors.ErrDownloadFailed, "writing %s: %v", d.Filename, copyErr)
	}
	if closeErr != nil {
		return errors.Wrap(closeErr, "could not close file")
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		return errors.Wrapf(errors.ErrIncompleteTransfer, "%s: got %d of %d bytes", d.Filename, n, resp.ContentLength)
	}
	return nil
}

type progressWriter struct {
	w  io.Writer
	fn ProgressFunc
	p  Progress
}

func (pw *progressWriter) Write(b []byte) (int, error) {
	n, err := pw.w.Write(b)
	pw.p.Written += int64(n)
	if pw.fn != nil && n > 0 {
		pw.fn(pw.p)
	}
	return n, err
}
