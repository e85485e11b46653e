package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/glorpus-work/datafetch/pkg/archive"
	"github.com/glorpus-work/datafetch/pkg/catalog"
	"github.com/glorpus-work/datafetch/pkg/errors"
	"github.com/glorpus-work/datafetch/pkg/hooks"
	ocmocks "github.com/glorpus-work/datafetch/pkg/orchestrator/mocks"
	"github.com/glorpus-work/datafetch/pkg/transfer"
	"github.com/glorpus-work/datafetch/pkg/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func part(id string, optional bool, size int64) catalog.Part {
	return catalog.Part{
		ID:       id,
		Name:     id,
		Optional: optional,
		Download: catalog.Download{
			URL:       "https://example.com/" + id + ".zip",
			Filename:  id + ".zip",
			SizeBytes: size,
			Format:    catalog.FormatZip,
		},
	}
}

// testCatalog has c1/s1 with a required part a and an optional part b,
// c1/s2 with part c, and c2/s1 with part d.
func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Metadata: catalog.Metadata{Name: "test", License: catalog.License{Name: "MIT"}},
		Collections: []catalog.Collection{
			{
				ID: "c1",
				Sessions: []catalog.Session{
					{ID: "s1", Parts: []catalog.Part{part("a", false, 100), part("b", true, 50)}},
					{ID: "s2", Parts: []catalog.Part{part("c", false, 10)}},
				},
			},
			{
				ID: "c2",
				Sessions: []catalog.Session{
					{ID: "s1", Parts: []catalog.Part{part("d", false, 1)}},
				},
			},
		},
	}
}

type fixture struct {
	orch     *Orchestrator
	acquirer *ocmocks.MockAcquirer
	extract  *ocmocks.MockExtractor
	events   []Event
	dir      string
}

func newFixture(t *testing.T) *fixture {
	ctrl := gomock.NewController(t)
	f := &fixture{
		acquirer: ocmocks.NewMockAcquirer(ctrl),
		extract:  ocmocks.NewMockExtractor(ctrl),
		dir:      t.TempDir(),
	}
	f.orch = &Orchestrator{
		Catalog:   testCatalog(),
		DataDir:   f.dir,
		Acquirer:  f.acquirer,
		Extractor: f.extract,
		Hooks:     Hooks{OnEvent: func(e Event) { f.events = append(f.events, e) }},
	}
	return f
}

func (f *fixture) expectPart(id string, keep bool) {
	path := filepath.Join(f.dir, id+".zip")
	f.acquirer.EXPECT().
		Acquire(gomock.Any(), gomock.Any(), path).
		Return(transfer.Result{Status: validate.Valid, Attempts: 1}, nil)
	f.extract.EXPECT().
		Extract(gomock.Any(), gomock.Any(), path, keep).
		Return(archive.ActionExtracted, nil)
}

func keys(r *Report) []string {
	out := make([]string, 0, len(r.Parts))
	for _, p := range r.Parts {
		out = append(out, p.Key)
	}
	return out
}

func TestDownload_SkipsOptionalParts(t *testing.T) {
	f := newFixture(t)
	f.expectPart("a", false)

	report, err := f.orch.Download(context.Background(), "c1", []string{"s1"}, DownloadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1/s1/a"}, keys(report))
	assert.Equal(t, 1, report.SkippedOptional)
	assert.Equal(t, 1, report.Succeeded())
	assert.NotEmpty(t, report.RunID)

	outcome := report.Parts[0]
	assert.True(t, outcome.Acquired)
	assert.Equal(t, archive.ActionExtracted, outcome.Action)
	assert.Equal(t, validate.Valid, outcome.Status)
}

func TestDownload_IncludeOptional(t *testing.T) {
	f := newFixture(t)
	gomock.InOrder(
		f.acquirer.EXPECT().Acquire(gomock.Any(), gomock.Any(), filepath.Join(f.dir, "a.zip")).Return(transfer.Result{Status: validate.Valid}, nil),
		f.extract.EXPECT().Extract(gomock.Any(), gomock.Any(), filepath.Join(f.dir, "a.zip"), true).Return(archive.ActionExtracted, nil),
		f.acquirer.EXPECT().Acquire(gomock.Any(), gomock.Any(), filepath.Join(f.dir, "b.zip")).Return(transfer.Result{Status: validate.Valid}, nil),
		f.extract.EXPECT().Extract(gomock.Any(), gomock.Any(), filepath.Join(f.dir, "b.zip"), true).Return(archive.ActionExtracted, nil),
	)

	report, err := f.orch.Download(context.Background(), "c1", []string{"s1"}, DownloadOptions{IncludeOptional: true, KeepArchive: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1/s1/a", "c1/s1/b"}, keys(report))
	assert.Zero(t, report.SkippedOptional)
	assert.True(t, report.Parts[1].Optional)
}

func TestDownload_FailedAcquireSkipsExtractAndContinues(t *testing.T) {
	f := newFixture(t)
	f.acquirer.EXPECT().
		Acquire(gomock.Any(), gomock.Any(), filepath.Join(f.dir, "a.zip")).
		Return(transfer.Result{Status: validate.Partial, Attempts: 4}, fmt.Errorf("a.zip: %w", errors.ErrRetriesExhausted))
	f.extract.EXPECT().Extract(gomock.Any(), gomock.Any(), filepath.Join(f.dir, "a.zip"), gomock.Any()).Times(0)
	f.expectPart("c", false)

	report, err := f.orch.Download(context.Background(), "c1", nil, DownloadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1/s1/a", "c1/s2/c"}, keys(report))

	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "c1/s1/a", failed[0].Key)
	assert.False(t, failed[0].Acquired)
	assert.Equal(t, 4, failed[0].Attempts)
	assert.ErrorIs(t, failed[0].Err, errors.ErrRetriesExhausted)
	assert.Equal(t, 1, report.Succeeded())

	var phases []string
	for _, e := range f.events {
		if e.ID == "c1/s1/a" {
			phases = append(phases, e.Phase)
		}
	}
	assert.Equal(t, []string{"downloading", "error"}, phases)
}

func TestDownload_ExtractErrorIsRecorded(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.dir, "c.zip")
	f.acquirer.EXPECT().Acquire(gomock.Any(), gomock.Any(), path).Return(transfer.Result{Status: validate.Valid, Attempts: 1}, nil)
	f.extract.EXPECT().Extract(gomock.Any(), gomock.Any(), path, false).Return(archive.ActionExtracted, errors.ErrExtractFailed)

	report, err := f.orch.Download(context.Background(), "c1", []string{"s2"}, DownloadOptions{})
	require.NoError(t, err)
	require.Len(t, report.Parts, 1)
	assert.True(t, report.Parts[0].Acquired)
	assert.ErrorIs(t, report.Parts[0].Err, errors.ErrExtractFailed)
}

func TestDownload_RunsScripts(t *testing.T) {
	f := newFixture(t)
	scripts := ocmocks.NewMockHookRunner(gomock.NewController(t))
	f.orch.Scripts = scripts
	path := filepath.Join(f.dir, "c.zip")

	gomock.InOrder(
		f.acquirer.EXPECT().Acquire(gomock.Any(), gomock.Any(), path).Return(transfer.Result{Status: validate.Valid}, nil),
		scripts.EXPECT().Execute(gomock.Any(), hooks.PostDownload, hooks.HookContext{
			PartKey: "c1/s2/c", Filename: "c.zip", FilePath: path, DataDir: f.dir,
		}).Return(nil),
		f.extract.EXPECT().Extract(gomock.Any(), gomock.Any(), path, false).Return(archive.ActionExtracted, nil),
		scripts.EXPECT().Execute(gomock.Any(), hooks.PostExtract, hooks.HookContext{
			PartKey: "c1/s2/c", Filename: "c.zip", FilePath: path, DataDir: f.dir, Action: "extracted",
		}).Return(nil),
	)

	report, err := f.orch.Download(context.Background(), "c1", []string{"s2"}, DownloadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded())
}

func TestDownload_ScriptErrorSkipsExtract(t *testing.T) {
	f := newFixture(t)
	scripts := ocmocks.NewMockHookRunner(gomock.NewController(t))
	f.orch.Scripts = scripts
	path := filepath.Join(f.dir, "c.zip")

	f.acquirer.EXPECT().Acquire(gomock.Any(), gomock.Any(), path).Return(transfer.Result{Status: validate.Valid}, nil)
	scripts.EXPECT().Execute(gomock.Any(), hooks.PostDownload, gomock.Any()).Return(hooks.ErrHookScript)

	report, err := f.orch.Download(context.Background(), "c1", []string{"s2"}, DownloadOptions{})
	require.NoError(t, err)
	require.Len(t, report.Parts, 1)
	assert.True(t, report.Parts[0].Acquired)
	assert.ErrorIs(t, report.Parts[0].Err, hooks.ErrHookScript)
}

func TestDownload_UnknownSessionIsReported(t *testing.T) {
	f := newFixture(t)
	f.expectPart("c", false)

	report, err := f.orch.Download(context.Background(), "c1", []string{"s9", "s2"}, DownloadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"s9"}, report.SkippedSessions)
	assert.Equal(t, []string{"c1/s2/c"}, keys(report))
}

func TestDownload_UnknownCollection(t *testing.T) {
	f := newFixture(t)

	report, err := f.orch.Download(context.Background(), "nope", nil, DownloadOptions{})
	assert.Nil(t, report)
	assert.ErrorIs(t, err, errors.ErrCollectionNotFound)
}

func TestDownload_CanceledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.orch.Download(ctx, "c1", nil, DownloadOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Parts)
}

func TestDownload_NotConfigured(t *testing.T) {
	_, err := (&Orchestrator{Catalog: testCatalog()}).Download(context.Background(), "c1", nil, DownloadOptions{})
	assert.Error(t, err)
}

func TestDownloadAll(t *testing.T) {
	f := newFixture(t)
	f.expectPart("a", false)
	f.expectPart("c", false)
	f.expectPart("d", false)

	report, err := f.orch.DownloadAll(context.Background(), DownloadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1/s1/a", "c1/s2/c", "c2/s1/d"}, keys(report))
	assert.Equal(t, 1, report.SkippedOptional)
	assert.Equal(t, 3, report.Succeeded())

	last := f.events[len(f.events)-1]
	assert.Equal(t, Event{Phase: "done", Msg: report.RunID}, last)
}

func TestEstimateSize(t *testing.T) {
	orch := &Orchestrator{Catalog: testCatalog()}

	est, err := orch.EstimateSize("c1", nil, false)
	require.NoError(t, err)
	assert.Equal(t, int64(110), est.TotalBytes)
	assert.Equal(t, map[string]int64{"a": 100, "c": 10}, est.Parts)
	assert.Equal(t, 2, est.SessionCount)
	assert.Equal(t, 2, est.PartCount)

	est, err = orch.EstimateSize("c1", []string{"s1", "missing"}, true)
	require.NoError(t, err)
	assert.Equal(t, int64(150), est.TotalBytes)
	assert.Equal(t, 1, est.SessionCount)
	assert.Equal(t, 2, est.PartCount)

	// The optional part b is left out of both the bytes and the count.
	est, err = orch.EstimateSize("c1", []string{"s1"}, false)
	require.NoError(t, err)
	assert.Equal(t, int64(100), est.TotalBytes)
	assert.Equal(t, 1, est.SessionCount)
	assert.Equal(t, 1, est.PartCount)

	_, err = orch.EstimateSize("nope", nil, false)
	assert.ErrorIs(t, err, errors.ErrCollectionNotFound)
}

func TestEstimateAll(t *testing.T) {
	orch := &Orchestrator{Catalog: testCatalog()}

	est, err := orch.EstimateAll(true)
	require.NoError(t, err)
	assert.Equal(t, int64(161), est.TotalBytes)
	assert.Equal(t, 3, est.SessionCount)
	assert.Equal(t, 4, est.PartCount)
	assert.Equal(t, int64(1), est.Parts["d"])
}
