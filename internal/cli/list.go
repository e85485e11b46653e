package cli

import (
	"fmt"
	"io"

	"github.com/glorpus-work/datafetch/pkg/catalog"
	"github.com/spf13/cobra"
)

// NewListCmd creates the list command.
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available datasets",
		Long: `List every dataset catalog found in the catalog directory.

Catalogs that fail to load are listed with the reason.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd.OutOrStdout())
		},
	}

	return cmd
}

func runList(out io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	provider := catalog.NewProvider(cfg.Settings.CatalogDir)
	names, err := provider.List()
	if err != nil {
		return err
	}

	if len(names) == 0 {
		_, _ = fmt.Fprintf(out, "No datasets found in %s\n", provider.Dir())
		return nil
	}

	_, _ = fmt.Fprintf(out, "%-20s %s\n", "DATASET", "NAME")
	for _, name := range names {
		cat, err := provider.Load(name)
		if err != nil {
			_, _ = fmt.Fprintf(out, "%-20s %s\n", name, render(errorStyle, "invalid: "+err.Error()))
			continue
		}
		_, _ = fmt.Fprintf(out, "%-20s %s\n", name, truncate(cat.Metadata.Name, MaxDescriptionLength))
	}

	return nil
}
