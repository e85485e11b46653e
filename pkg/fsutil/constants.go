package fsutil

// File and directory permission constants.
const (
	FileModeDefault = 0o644 // -rw-r--r--: downloaded files and extracted entries
	FileModeSecure  = 0o640 // -rw-r-----: settings files

	DirModeDefault = 0o755 // drwxr-xr-x: dataset directories
	DirModeSecure  = 0o750 // drwxr-x---
)
