// Package validate decides whether a local file matches its catalog descriptor.
package validate

import (
	"crypto/md5" //nolint:gosec // catalogs publish md5 digests
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/glorpus-work/datafetch/pkg/catalog"
	pkgerrors "github.com/glorpus-work/datafetch/pkg/errors"
)

// HashBufferSize is the chunk size used when streaming a file through a digest.
const HashBufferSize = 1024 * 1024

// FileStatus is the state of a local file relative to its descriptor.
// It is derived on every call and never cached.
type FileStatus int

const (
	Missing FileStatus = iota
	Partial
	WrongChecksum
	Valid
)

func (s FileStatus) String() string {
	switch s {
	case Missing:
		return "missing"
	case Partial:
		return "partial"
	case WrongChecksum:
		return "wrong_checksum"
	case Valid:
		return "valid"
	default:
		return fmt.Sprintf("FileStatus(%d)", int(s))
	}
}

// Validate compares the file at localPath with d.
//
// The size is checked before any hashing. A descriptor without a checksum can
// never be Valid; such files report WrongChecksum without being read.
// Filesystem errors other than a missing file are returned as errors.
func Validate(d catalog.Download, localPath string) (FileStatus, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Missing, nil
		}
		return Missing, pkgerrors.Wrapf(err, "stat %s", localPath)
	}
	if info.IsDir() {
		return Missing, fmt.Errorf("%s is a directory: %w", localPath, pkgerrors.ErrInvalidPath)
	}
	if info.Size() != d.SizeBytes {
		return Partial, nil
	}

	algo := d.Algorithm()
	if algo == catalog.AlgorithmNone {
		return WrongChecksum, nil
	}

	sum, err := Checksum(localPath, algo)
	if err != nil {
		return Missing, err
	}
	if sum != d.Checksum {
		return WrongChecksum, nil
	}
	return Valid, nil
}

// Checksum streams the file at path through the digest algo and returns the lowercase hex sum.
func Checksum(path string, algo catalog.Algorithm) (string, error) {
	h, err := newHash(algo)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", pkgerrors.Wrap(err, "open for checksum")
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, HashBufferSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", pkgerrors.Wrapf(err, "read %s", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func newHash(algo catalog.Algorithm) (hash.Hash, error) {
	switch algo {
	case catalog.AlgorithmMD5:
		return md5.New(), nil //nolint:gosec // integrity check, not security
	case catalog.AlgorithmSHA256:
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("unsupported checksum algorithm %q", algo)
	}
}
