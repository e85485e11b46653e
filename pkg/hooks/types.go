// Package hooks runs user supplied Tengo scripts at fixed points of a part's
// lifecycle, e.g. to convert or index files right after they land.
package hooks

// HookType represents the type of hook.
type HookType string

// Supported hook types.
const (
	// PostDownload runs once the file validated, before extraction.
	PostDownload HookType = "post-download"
	// PostExtract runs after extraction, or after the file was found ready.
	PostExtract HookType = "post-extract"
)

// Valid reports whether t is a supported hook type.
func (t HookType) Valid() bool {
	return t == PostDownload || t == PostExtract
}

// Hook represents a hook script with its type and content.
type Hook struct {
	Type    HookType
	Content string
}

// HookContext contains information passed to hooks.
type HookContext struct {
	PartKey  string // collection/session/part
	Filename string
	FilePath string
	DataDir  string
	Action   string // empty for post-download
	Vars     map[string]interface{}
}
