package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/glorpus-work/datafetch/pkg/catalog"
	"github.com/glorpus-work/datafetch/pkg/errors"
	"github.com/glorpus-work/datafetch/pkg/validate"
	"github.com/spf13/cobra"
)

// NewChecksumCmd creates the checksum command, used to fill in catalog descriptors.
func NewChecksumCmd() *cobra.Command {
	var sha256 bool

	cmd := &cobra.Command{
		Use:   "checksum FILE",
		Short: "Print size and checksum of a local file",
		Long: `Print the size and digest of a local file in the form used by
catalog descriptors. MD5 is used unless --sha256 is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChecksum(cmd.OutOrStdout(), args[0], sha256)
		},
	}

	cmd.Flags().BoolVar(&sha256, "sha256", false, "Use SHA-256 instead of MD5")

	return cmd
}

func runChecksum(out io.Writer, path string, useSHA256 bool) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidPath, err.Error())
	}
	if info.IsDir() {
		return errors.Wrapf(errors.ErrInvalidPath, "%s is a directory", path)
	}

	algo := catalog.AlgorithmMD5
	if useSHA256 {
		algo = catalog.AlgorithmSHA256
	}
	sum, err := validate.Checksum(path, algo)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "size_bytes: %d  # %s\n", info.Size(), humanize.Bytes(uint64(info.Size())))
	_, _ = fmt.Fprintf(out, "checksum: %s  # %s\n", sum, algo)
	return nil
}
