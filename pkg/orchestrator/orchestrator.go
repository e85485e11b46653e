package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/glorpus-work/datafetch/internal/logger"
	"github.com/glorpus-work/datafetch/pkg/catalog"
	"github.com/glorpus-work/datafetch/pkg/errors"
	"github.com/glorpus-work/datafetch/pkg/hooks"
	"github.com/google/uuid"
)

func emit(h Hooks, e Event) {
	if h.OnEvent != nil {
		h.OnEvent(e)
	}
}

func (o *Orchestrator) check() error {
	if o.Catalog == nil {
		return fmt.Errorf("catalog is not configured")
	}
	if o.Acquirer == nil {
		return fmt.Errorf("transfer engine is not configured")
	}
	if o.Extractor == nil {
		return fmt.Errorf("extractor is not configured")
	}
	return nil
}

// Download fetches the selected sessions of one collection.
//
// An empty sessionIDs selects every session. Unknown session ids are logged
// and recorded in the report. Part failures are recorded and never stop the
// run; only an unknown collection or a canceled context end it early. A part
// whose acquisition failed is not extracted, even if an older extraction of
// it exists on disk.
func (o *Orchestrator) Download(ctx context.Context, collectionID string, sessionIDs []string, opts DownloadOptions) (*Report, error) {
	if err := o.check(); err != nil {
		return nil, err
	}

	sel, err := o.Catalog.Select(collectionID, sessionIDs)
	if err != nil {
		return nil, err
	}

	report := &Report{RunID: uuid.NewString()}
	err = o.run(ctx, sel, opts, report)
	emit(o.Hooks, Event{Phase: "done", Msg: report.RunID})
	return report, err
}

// DownloadAll fetches every session of every collection into one report.
func (o *Orchestrator) DownloadAll(ctx context.Context, opts DownloadOptions) (*Report, error) {
	if err := o.check(); err != nil {
		return nil, err
	}

	report := &Report{RunID: uuid.NewString()}
	for _, id := range o.Catalog.CollectionIDs() {
		sel, err := o.Catalog.Select(id, nil)
		if err != nil {
			return report, err
		}
		if err := o.run(ctx, sel, opts, report); err != nil {
			return report, err
		}
	}
	emit(o.Hooks, Event{Phase: "done", Msg: report.RunID})
	return report, nil
}

func (o *Orchestrator) run(ctx context.Context, sel *catalog.Selection, opts DownloadOptions, report *Report) error {
	for _, id := range sel.Missing {
		logger.Warn("Session not found, skipping", logger.Fields{
			"run": report.RunID, "collection": sel.Collection.ID, "session": id,
		})
		emit(o.Hooks, Event{Phase: "skipped", ID: sel.Collection.ID + "/" + id, Msg: errors.ErrSessionNotFound.Error()})
		report.SkippedSessions = append(report.SkippedSessions, id)
	}

	parts := sel.Parts(opts.IncludeOptional)
	report.SkippedOptional += len(sel.Parts(true)) - len(parts)
	emit(o.Hooks, Event{Phase: "planning", ID: sel.Collection.ID, Msg: fmt.Sprintf("%d parts", len(parts))})

	for _, p := range parts {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "run %s interrupted", report.RunID)
		}
		report.Parts = append(report.Parts, o.processPart(ctx, p, opts, report.RunID))
	}
	return nil
}

func (o *Orchestrator) processPart(ctx context.Context, p catalog.SelectedPart, opts DownloadOptions, runID string) PartOutcome {
	d := p.Part.Download
	key := p.Key()
	out := PartOutcome{
		Key:      key,
		Filename: d.Filename,
		Path:     filepath.Join(o.DataDir, d.Filename),
		Optional: p.Part.Optional,
	}
	fields := logger.Fields{"run": runID, "part": key, "file": d.Filename}

	emit(o.Hooks, Event{Phase: "downloading", ID: key, Msg: d.Filename})
	res, err := o.Acquirer.Acquire(ctx, d, out.Path)
	out.Status = res.Status
	out.Attempts = res.Attempts
	out.Resumed = res.Resumed
	if err != nil {
		out.Err = err
		logger.Error("Download failed", logger.Fields{"error": err.Error()}, fields)
		emit(o.Hooks, Event{Phase: "error", ID: key, Msg: err.Error()})
		return out
	}
	out.Acquired = true

	hc := hooks.HookContext{PartKey: key, Filename: d.Filename, FilePath: out.Path, DataDir: o.DataDir}
	if err := o.runScript(ctx, hooks.PostDownload, hc); err != nil {
		out.Err = err
		logger.Error("Hook failed", logger.Fields{"hook": string(hooks.PostDownload), "error": err.Error()}, fields)
		emit(o.Hooks, Event{Phase: "error", ID: key, Msg: err.Error()})
		return out
	}

	emit(o.Hooks, Event{Phase: "extracting", ID: key, Msg: d.Filename})
	action, err := o.Extractor.Extract(ctx, d, out.Path, opts.KeepArchive)
	out.Action = action
	if err != nil {
		out.Err = err
		logger.Error("Extraction failed", logger.Fields{"error": err.Error()}, fields)
		emit(o.Hooks, Event{Phase: "error", ID: key, Msg: err.Error()})
		return out
	}

	hc.Action = action.String()
	if err := o.runScript(ctx, hooks.PostExtract, hc); err != nil {
		out.Err = err
		logger.Error("Hook failed", logger.Fields{"hook": string(hooks.PostExtract), "error": err.Error()}, fields)
		emit(o.Hooks, Event{Phase: "error", ID: key, Msg: err.Error()})
		return out
	}

	logger.Success("Part ready", logger.Fields{"action": action.String(), "attempts": res.Attempts}, fields)
	return out
}

func (o *Orchestrator) runScript(ctx context.Context, hookType hooks.HookType, hc hooks.HookContext) error {
	if o.Scripts == nil {
		return nil
	}
	return o.Scripts.Execute(ctx, hookType, hc)
}

// EstimateSize totals the catalog sizes of a selection without touching the network.
// PartCount counts the parts that a download with the same arguments would
// fetch, so optional parts are only included with includeOptional.
func (o *Orchestrator) EstimateSize(collectionID string, sessionIDs []string, includeOptional bool) (*SizeEstimate, error) {
	if o.Catalog == nil {
		return nil, fmt.Errorf("catalog is not configured")
	}
	sel, err := o.Catalog.Select(collectionID, sessionIDs)
	if err != nil {
		return nil, err
	}

	est := &SizeEstimate{Parts: make(map[string]int64), SessionCount: len(sel.Sessions)}
	for _, p := range sel.Parts(includeOptional) {
		est.TotalBytes += p.Part.Download.SizeBytes
		est.Parts[p.Part.ID] += p.Part.Download.SizeBytes
		est.PartCount++
	}
	return est, nil
}

// EstimateAll totals every collection.
func (o *Orchestrator) EstimateAll(includeOptional bool) (*SizeEstimate, error) {
	if o.Catalog == nil {
		return nil, fmt.Errorf("catalog is not configured")
	}
	total := &SizeEstimate{Parts: make(map[string]int64)}
	for _, id := range o.Catalog.CollectionIDs() {
		est, err := o.EstimateSize(id, nil, includeOptional)
		if err != nil {
			return nil, err
		}
		total.add(est)
	}
	return total, nil
}
