//go:generate mockgen -destination=./mocks/orchestrator.go . Acquirer,Extractor,HookRunner

package orchestrator

import (
	"context"

	"github.com/glorpus-work/datafetch/pkg/archive"
	"github.com/glorpus-work/datafetch/pkg/catalog"
	"github.com/glorpus-work/datafetch/pkg/hooks"
	"github.com/glorpus-work/datafetch/pkg/transfer"
	"github.com/glorpus-work/datafetch/pkg/validate"
)

// Acquirer brings a local file into the Valid state.
type Acquirer interface {
	Acquire(ctx context.Context, d catalog.Download, localPath string) (transfer.Result, error)
}

// Extractor post-processes an acquired file.
type Extractor interface {
	Extract(ctx context.Context, d catalog.Download, localPath string, keepArchive bool) (archive.Action, error)
}

// HookRunner executes per-part scripts.
type HookRunner interface {
	Execute(ctx context.Context, hookType hooks.HookType, hc hooks.HookContext) error
}

// Orchestrator ties the catalog, the transfer engine and the extractor together.
type Orchestrator struct {
	Catalog   *catalog.Catalog
	DataDir   string // files land here verbatim, without per-session subdirectories
	Acquirer  Acquirer
	Extractor Extractor
	Scripts   HookRunner // optional
	Hooks     Hooks      // Hooks for progress and event notifications
}

// Event represents a simple progress notification.
type Event struct {
	Phase string // planning|skipped|downloading|extracting|done|error
	ID    string // collection/session/part key
	Msg   string
}

// Hooks carries callbacks for progress events.
type Hooks struct {
	OnEvent func(Event)
}

// DownloadOptions control a download run.
type DownloadOptions struct {
	KeepArchive     bool
	IncludeOptional bool
}

// PartOutcome is what happened to one part.
type PartOutcome struct {
	Key      string
	Filename string
	Path     string
	Optional bool

	Status   validate.FileStatus
	Attempts int
	Resumed  int

	// Acquired is set when the file validated; Action is only meaningful then.
	Acquired bool
	Action   archive.Action

	Err error
}

// OK reports whether the part was acquired and post-processed without error.
func (p PartOutcome) OK() bool {
	return p.Err == nil
}

// Report collects the outcome of a run.
type Report struct {
	RunID string
	Parts []PartOutcome
	// SkippedSessions holds requested session ids that were not found.
	SkippedSessions []string
	// SkippedOptional counts optional parts left out of the run.
	SkippedOptional int
}

// Succeeded returns the number of parts that completed.
func (r *Report) Succeeded() int {
	n := 0
	for _, p := range r.Parts {
		if p.OK() {
			n++
		}
	}
	return n
}

// Failed returns the parts that did not complete.
func (r *Report) Failed() []PartOutcome {
	var out []PartOutcome
	for _, p := range r.Parts {
		if !p.OK() {
			out = append(out, p)
		}
	}
	return out
}

// SizeEstimate is the expected download volume of a selection.
type SizeEstimate struct {
	TotalBytes int64
	// Parts sums the bytes per part id across all selected sessions.
	Parts        map[string]int64
	SessionCount int
	PartCount    int
}

func (e *SizeEstimate) add(other *SizeEstimate) {
	e.TotalBytes += other.TotalBytes
	e.SessionCount += other.SessionCount
	e.PartCount += other.PartCount
	for id, n := range other.Parts {
		e.Parts[id] += n
	}
}
