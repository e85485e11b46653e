package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/glorpus-work/datafetch/internal/logger"
	"github.com/glorpus-work/datafetch/pkg/archive"
	"github.com/glorpus-work/datafetch/pkg/errors"
	"github.com/glorpus-work/datafetch/pkg/orchestrator"
	"github.com/glorpus-work/datafetch/pkg/transfer"
	"github.com/spf13/cobra"
)

type downloadFlags struct {
	collection   string
	sessions     []string
	withOptional bool
	keepArchive  bool
	estimateOnly bool
	dataDir      string
}

// NewDownloadCmd creates the download command.
func NewDownloadCmd() *cobra.Command {
	var flags downloadFlags

	cmd := &cobra.Command{
		Use:   "download DATASET",
		Short: "Download dataset files",
		Long: `Download the files of a dataset described by its catalog.

Without --collection every collection is downloaded. Without --sessions every
session of the collection is downloaded. Files that are already complete are
skipped, partial files are resumed when the server allows it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd.Context(), cmd.OutOrStdout(), args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.collection, "collection", "c", "", "Collection to download (default: all)")
	cmd.Flags().StringSliceVarP(&flags.sessions, "sessions", "s", nil, "Comma separated session ids (default: all)")
	cmd.Flags().BoolVar(&flags.withOptional, "with-optional", false, "Include optional parts")
	cmd.Flags().BoolVar(&flags.keepArchive, "keep-archive", false, "Keep archives after extraction")
	cmd.Flags().BoolVar(&flags.estimateOnly, "estimate-only", false, "Only print the download size")
	cmd.Flags().StringVar(&flags.dataDir, "data-dir", "", "Root data directory (defaults to config)")

	return cmd
}

func runDownload(ctx context.Context, out io.Writer, dataset string, flags downloadFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if flags.collection == "" && len(flags.sessions) > 0 {
		return fmt.Errorf("--sessions requires --collection")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cat, err := loadCatalog(cfg, dataset)
	if err != nil {
		return err
	}

	includeOptional := flags.withOptional || cfg.Settings.IncludeOptional
	orch := &orchestrator.Orchestrator{
		Catalog: cat,
		DataDir: datasetDir(cfg, flags.dataDir, dataset),
	}

	if flags.estimateOnly {
		var est *orchestrator.SizeEstimate
		if flags.collection == "" {
			est, err = orch.EstimateAll(includeOptional)
		} else {
			est, err = orch.EstimateSize(flags.collection, flags.sessions, includeOptional)
		}
		if err != nil {
			return err
		}
		printEstimate(out, cat.Metadata.Name, est)
		return nil
	}

	router, err := newRouter(ctx, cfg, 0)
	if err != nil {
		return err
	}
	progress := &progressLogger{}
	orch.Acquirer = transfer.NewEngine(router, transfer.Options{
		MaxRetries: cfg.Settings.MaxRetries,
		Progress:   progress.update,
	})
	orch.Extractor = archive.NewManager()
	scripts, err := loadScripts(cfg)
	if err != nil {
		return err
	}
	if scripts != nil {
		orch.Scripts = scripts
	}
	orch.Hooks = orchestrator.Hooks{OnEvent: func(e orchestrator.Event) {
		switch e.Phase {
		case "downloading":
			printInfo(out, fmt.Sprintf("%s %s", symbols["arrow"], e.ID))
		case "skipped":
			printWarning(out, fmt.Sprintf("%s: %s", e.ID, e.Msg))
		}
	}}

	opts := orchestrator.DownloadOptions{
		KeepArchive:     flags.keepArchive || cfg.Settings.KeepArchive,
		IncludeOptional: includeOptional,
	}
	logger.Info("Downloading dataset", logger.Fields{"dataset": dataset, "dir": orch.DataDir})

	var report *orchestrator.Report
	if flags.collection == "" {
		report, err = orch.DownloadAll(ctx, opts)
	} else {
		report, err = orch.Download(ctx, flags.collection, flags.sessions, opts)
	}
	if report != nil {
		printReport(out, report)
	}
	if err != nil {
		return err
	}

	if failed := report.Failed(); len(failed) > 0 {
		return errors.Wrapf(errors.ErrDownloadFailed, "%d of %d parts", len(failed), len(report.Parts))
	}
	return nil
}

func printEstimate(out io.Writer, name string, est *orchestrator.SizeEstimate) {
	printHeader(out, name)
	_, _ = fmt.Fprintf(out, "Total size: %s (%d bytes)\n", humanize.Bytes(uint64(est.TotalBytes)), est.TotalBytes)
	_, _ = fmt.Fprintf(out, "Sessions:   %d\n", est.SessionCount)
	_, _ = fmt.Fprintf(out, "Parts:      %d\n", est.PartCount)

	ids := make([]string, 0, len(est.Parts))
	for id := range est.Parts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		printDetail(out, fmt.Sprintf("%s: %s", id, humanize.Bytes(uint64(est.Parts[id]))))
	}
}

func printReport(out io.Writer, report *orchestrator.Report) {
	for _, p := range report.Parts {
		if p.OK() {
			printSuccess(out, fmt.Sprintf("%s (%s)", p.Key, p.Action))
			continue
		}
		printFailure(out, fmt.Sprintf("%s: %v", p.Key, p.Err))
	}
	if len(report.SkippedSessions) > 0 {
		printWarning(out, "Sessions not found: "+strings.Join(report.SkippedSessions, ", "))
	}
	if report.SkippedOptional > 0 {
		printDetail(out, fmt.Sprintf("%d optional parts skipped (use --with-optional)", report.SkippedOptional))
	}
	_, _ = fmt.Fprintf(out, "%d/%d parts ready\n", report.Succeeded(), len(report.Parts))
}

// progressLogger logs transfer progress in 10% steps.
type progressLogger struct {
	file string
	step int64
}

func (p *progressLogger) update(pr transfer.Progress) {
	if pr.Total <= 0 {
		return
	}
	step := pr.Written * 10 / pr.Total
	if pr.Filename == p.file && step == p.step {
		return
	}
	p.file, p.step = pr.Filename, step
	logger.Debug("Progress", logger.Fields{
		"file":    pr.Filename,
		"written": humanize.Bytes(uint64(pr.Written)),
		"total":   humanize.Bytes(uint64(pr.Total)),
		"resumed": pr.Resumed,
	})
}
