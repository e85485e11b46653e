package cli

// Default values for CLI flags and output.
const (
	// DefaultVerifyTimeout is the per-probe timeout of info --verify, in seconds.
	DefaultVerifyTimeout = 10
	// TabWidth is the width of tabs in formatted output.
	TabWidth = 2
	// MaxDescriptionLength is the maximum length of a description to display.
	MaxDescriptionLength = 60
)
