// Package cli implements the rangestream command line.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	// Store locates snapshots: a directory, s3://bucket/prefix or
	// minio://endpoint/bucket/prefix.
	Store string
	// Codec names the output encoding of plans (see codec.Names), or "text".
	Codec string
}

// NewRootCommand creates the root command.
func NewRootCommand(version string) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "rangestream",
		Short:   "Plan index scans for boolean field queries",
		Version: version,
		Long: `rangestream classifies a predicate tree against a sharded field index
and prints the shard, day and record ranges a scan must visit.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validCodecs(), opts.Codec) {
				return fmt.Errorf("invalid codec %q: must be one of %v", opts.Codec, validCodecs())
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Store, "store", ".", "snapshot store (dir, s3://bucket/prefix, minio://endpoint/bucket/prefix)")
	cmd.PersistentFlags().StringVar(&opts.Codec, "codec", "text", fmt.Sprintf("output encoding %v", validCodecs()))

	cmd.AddCommand(NewBuildCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))

	return cmd
}
