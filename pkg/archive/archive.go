// Package archive unpacks downloaded dataset files and builds archives.
package archive

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
	"github.com/mholt/archives"
)

// Action is what Extract did with a file.
type Action int

const (
	// ActionExtracted means the archive was unpacked.
	ActionExtracted Action = iota
	// ActionReady means the file is used as is.
	ActionReady
	// ActionSkippedUnknown means the format is not recognized.
	ActionSkippedUnknown
	// ActionSkippedMissing means there was no file to work on.
	ActionSkippedMissing
)

func (a Action) String() string {
	switch a {
	case ActionExtracted:
		return "extracted"
	case ActionReady:
		return "ready"
	case ActionSkippedUnknown:
		return "skipped_unknown_format"
	case ActionSkippedMissing:
		return "skipped_missing"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Manager handles archive extraction and creation operations.
type Manager struct{}

// NewManager creates a new Manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// Extract post-processes a downloaded file according to its format.
//
// Archives are unpacked next to the file and then removed unless keepArchive
// is set. tfrecord files are left in place. Unknown formats and missing files
// are skipped with a warning. A corrupt archive is an error and is kept.
func (m *Manager) Extract(ctx context.Context, d catalog.Download, localPath string, keepArchive bool) (Action, error) {
	if _, err := os.Stat(localPath); err != nil {
		if os.IsNotExist(err) {
			logger.Warn("File to extract not found", logger.Fields{"file": localPath})
			return ActionSkippedMissing, nil
		}
		return ActionSkippedMissing, errors.Wrapf(err, "stat %s", localPath)
	}

	switch {
	case d.Format == catalog.FormatTFRecord:
		return ActionReady, nil
	case d.Format.IsArchive():
	default:
		logger.Warn("Unknown format, skipping extraction", logger.Fields{"file": d.Filename, "format": string(d.Format)})
		return ActionSkippedUnknown, nil
	}

	destDir := filepath.Dir(localPath)
	logger.Debug("Extracting", logger.Fields{"file": d.Filename, "dest": destDir})
	if err := m.ExtractAll(ctx, localPath, destDir, d.Format); err != nil {
		return ActionExtracted, err
	}

	if !keepArchive {
		if err := fsutil.RemoveIfExists(localPath); err != nil {
			return ActionExtracted, err
		}
	}
	return ActionExtracted, nil
}

// ExtractAll extracts all files from an archive to the specified destination directory.
// Entries that would land outside destDir are rejected.
func (m *Manager) ExtractAll(ctx context.Context, archivePath, destDir string, format catalog.Format) error {
	extractor, err := extractorFor(format)
	if err != nil {
		return err
	}

	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if err := os.MkdirAll(destDir, fsutil.DirModeDefault); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	if err := extractor.Extract(ctx, file, m.handler(destDir)); err != nil {
		return fmt.Errorf("%s: %w: %w", filepath.Base(archivePath), errors.ErrExtractFailed, err)
	}
	return nil
}

// Create creates an archive of the given format from the contents of sourceDir.
func (m *Manager) Create(ctx context.Context, sourceDir, archivePath string, format catalog.Format) error {
	archiver, err := archiverFor(format)
	if err != nil {
		return err
	}

	absolutePath, err := filepath.Abs(sourceDir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for source directory: %w", err)
	}

	archiveFiles, err := archives.FilesFromDisk(ctx, nil, map[string]string{
		absolutePath + string(os.PathSeparator): "",
	})
	if err != nil {
		return fmt.Errorf("failed to read files from disk: %w", err)
	}

	file, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", archivePath, err)
	}
	defer func() {
		_ = file.Sync()
		_ = file.Close()
	}()

	if err := archiver.Archive(ctx, file, archiveFiles); err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	return nil
}

func extractorFor(format catalog.Format) (archives.Extractor, error) {
	switch format {
	case catalog.FormatZip:
		return archives.Zip{}, nil
	case catalog.FormatTarGz:
		return archives.CompressedArchive{Compression: archives.Gz{}, Extraction: archives.Tar{}}, nil
	default:
		return nil, fmt.Errorf("%w: %q is not an archive format", errors.ErrExtractFailed, format)
	}
}

func archiverFor(format catalog.Format) (archives.Archiver, error) {
	switch format {
	case catalog.FormatZip:
		return archives.Zip{}, nil
	case catalog.FormatTarGz:
		return archives.CompressedArchive{Compression: archives.Gz{}, Archival: archives.Tar{}}, nil
	default:
		return nil, fmt.Errorf("cannot create %q archives", format)
	}
}

// handler writes each archive entry below destDir.
func (m *Manager) handler(destDir string) archives.FileHandler {
	root := filepath.Clean(destDir)
	return func(_ context.Context, f archives.FileInfo) error {
		targetPath, err := fsutil.SafeJoin(root, f.NameInArchive)
		if err != nil {
			return errors.Wrap(errors.ErrUnsafeArchivePath, f.NameInArchive)
		}
		if targetPath == root {
			return nil
		}

		switch {
		case f.IsDir():
			return os.MkdirAll(targetPath, fsutil.DirModeDefault)
		case f.Mode()&os.ModeSymlink != 0:
			return m.writeSymlink(root, f, targetPath)
		case f.Mode().IsRegular():
			return m.writeRegularFile(f, targetPath)
		default:
			logger.Debug("Skipping special archive entry", logger.Fields{"entry": f.NameInArchive})
			return nil
		}
	}
}

// writeSymlink creates a symlink at targetPath. Links pointing outside root are rejected.
func (m *Manager) writeSymlink(root string, f archives.FileInfo, targetPath string) error {
	if filepath.IsAbs(f.LinkTarget) {
		return errors.Wrap(errors.ErrUnsafeArchivePath, f.NameInArchive)
	}
	linkDir, err := filepath.Rel(root, filepath.Dir(targetPath))
	if err != nil {
		return errors.Wrap(errors.ErrUnsafeArchivePath, f.NameInArchive)
	}
	if _, err := fsutil.SafeJoin(root, filepath.Join(linkDir, f.LinkTarget)); err != nil {
		return errors.Wrap(errors.ErrUnsafeArchivePath, f.NameInArchive)
	}

	if err := os.MkdirAll(filepath.Dir(targetPath), fsutil.DirModeDefault); err != nil {
		return fmt.Errorf("failed to create parent directory for symlink %s: %w", f.NameInArchive, err)
	}
	_ = os.Remove(targetPath)
	return os.Symlink(f.LinkTarget, targetPath)
}

// writeRegularFile writes an archive entry to targetPath and preserves metadata.
func (m *Manager) writeRegularFile(f archives.FileInfo, targetPath string) error {
	srcFile, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open source file %s: %w", f.NameInArchive, err)
	}
	defer func() { _ = srcFile.Close() }()

	if err := os.MkdirAll(filepath.Dir(targetPath), fsutil.DirModeDefault); err != nil {
		return fmt.Errorf("failed to create parent directory for %s: %w", f.NameInArchive, err)
	}

	perm := f.Mode().Perm()
	if perm == 0 {
		perm = fsutil.FileModeDefault
	}
	dstFile, err := fsutil.CreateFilePerm(targetPath, perm)
	if err != nil {
		return fmt.Errorf("failed to create destination file %s: %w", targetPath, err)
	}
	defer func() { _ = dstFile.Close() }()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return fmt.Errorf("failed to copy file %s: %w", f.NameInArchive, err)
	}

	if !f.ModTime().IsZero() {
		if err := os.Chtimes(targetPath, f.ModTime(), f.ModTime()); err != nil {
			return fmt.Errorf("failed to set modification time for %s: %w", targetPath, err)
		}
	}
	return nil
}
