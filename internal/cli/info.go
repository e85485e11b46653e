package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/glorpus-work/datafetch/pkg/catalog"
	"github.com/glorpus-work/datafetch/pkg/errors"
	"github.com/glorpus-work/datafetch/pkg/health"
	"github.com/spf13/cobra"
)

type infoFlags struct {
	collection string
	verify     bool
	timeout    int
}

// NewInfoCmd creates the info command.
func NewInfoCmd() *cobra.Command {
	var flags infoFlags

	cmd := &cobra.Command{
		Use:   "info DATASET",
		Short: "Show dataset information",
		Long: `Show the metadata and collections of a dataset.

With --collection the sessions of that collection are listed as well.
With --verify every remote file is probed once and a summary is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(cmd.Context(), cmd.OutOrStdout(), args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.collection, "collection", "c", "", "Show the sessions of a collection")
	cmd.Flags().BoolVar(&flags.verify, "verify", false, "Check that every remote file is reachable")
	cmd.Flags().IntVar(&flags.timeout, "timeout", DefaultVerifyTimeout, "Per-file probe timeout in seconds")

	return cmd
}

func runInfo(ctx context.Context, out io.Writer, dataset string, flags infoFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cat, err := loadCatalog(cfg, dataset)
	if err != nil {
		return err
	}

	printMetadata(out, cat.Metadata)

	if flags.collection != "" {
		coll, ok := cat.Collection(flags.collection)
		if !ok {
			return errors.Wrap(errors.ErrCollectionNotFound, flags.collection)
		}
		printSessions(out, coll)
	} else {
		printCollections(out, cat)
	}

	if !flags.verify {
		return nil
	}

	_, _ = fmt.Fprintln(out)
	printInfo(out, fmt.Sprintf("Checking %d files...", cat.PartCount()))
	router, err := newRouter(ctx, cfg, flags.timeout)
	if err != nil {
		return err
	}
	scanner := health.NewScanner(router)
	summary := health.Summarize(scanner.Check(ctx, cat))

	if summary.Healthy() {
		printSuccess(out, fmt.Sprintf("%d/%d files available", summary.Available, summary.Total))
		return nil
	}
	printWarning(out, fmt.Sprintf("%d/%d files available", summary.Available, summary.Total))
	for _, key := range summary.Unavailable {
		printDetail(out, key)
	}
	return nil
}

func printMetadata(out io.Writer, md catalog.Metadata) {
	title := md.Name
	if md.Version != "" {
		title += " v" + md.Version
	}
	printHeader(out, title)
	if md.Description != "" {
		_, _ = fmt.Fprintln(out, md.Description)
	}
	license := md.License.Name
	if md.License.URL != "" {
		license += " (" + md.License.URL + ")"
	}
	_, _ = fmt.Fprintf(out, "License: %s\n", license)
	if md.License.Details != "" {
		printDetail(out, md.License.Details)
	}
	if md.Citation.BibTeX != "" {
		_, _ = fmt.Fprintf(out, "Citation:\n%s\n", md.Citation.BibTeX)
	}
}

func printCollections(out io.Writer, cat *catalog.Catalog) {
	_, _ = fmt.Fprintf(out, "\nCollections (%d):\n", len(cat.Collections))
	for _, c := range cat.Collections {
		var total int64
		parts := 0
		for _, s := range c.Sessions {
			for _, p := range s.Parts {
				total += p.Download.SizeBytes
				parts++
			}
		}
		_, _ = fmt.Fprintf(out, "  %s  %s, %d sessions, %d parts, %s\n",
			c.ID, truncate(c.Name, MaxDescriptionLength), len(c.Sessions), parts, humanize.Bytes(uint64(total)))
	}
}

func printSessions(out io.Writer, c *catalog.Collection) {
	_, _ = fmt.Fprintf(out, "\n%s: %s\n", c.ID, c.Name)
	if c.Description != "" {
		printDetail(out, truncate(c.Description, MaxDescriptionLength))
	}
	for _, s := range c.Sessions {
		line := s.ID
		if s.Date != "" {
			line += " " + s.Date
		}
		if s.LocationType != "" {
			line += " [" + s.LocationType + "]"
		}
		_, _ = fmt.Fprintf(out, "  %s\n", line)
		for _, p := range s.Parts {
			opt := ""
			if p.Optional {
				opt = " (optional)"
			}
			printDetail(out, fmt.Sprintf("%s %s, %s%s", p.ID, p.Download.Filename, humanize.Bytes(uint64(p.Download.SizeBytes)), opt))
		}
	}
}
