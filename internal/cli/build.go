package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/rangestream/kv"
)

// BuildResult describes a written index snapshot.
type BuildResult struct {
	Snapshot    string `json:"snapshot"`
	Postings    int    `json:"postings"`
	Entries     uint64 `json:"entries"`
	Compression string `json:"compression"`
	Bytes       int64  `json:"bytes"`
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		postings    string
		compression string
		blockSize   int
	)

	cmd := &cobra.Command{
		Use:   "build <snapshot>",
		Short: "Build an index snapshot from a postings file",
		Long: `Build reads postings as JSON lines, one per line:

  {"field":"NAME","value":"alice","shard":"20240101_0","datatype":"email","uids":[1,2]}
  {"field":"NAME","value":"bob","shard":"20240101_3","datatype":"email","count":4000}

and saves the resulting index table as a snapshot in the store.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := kv.ParseCompression(compression)
			if err != nil {
				return commandError("compression", err)
			}
			return runBuild(cmd, rootOpts, args[0], postings, c, blockSize)
		},
	}

	cmd.Flags().StringVar(&postings, "postings", "-", "postings file (- for stdin)")
	cmd.Flags().StringVar(&compression, "compression", kv.CompressionZSTD.String(), "block compression (none, lz4, zstd)")
	cmd.Flags().IntVar(&blockSize, "block-size", kv.DefaultBlockSize, "uncompressed block size in bytes")

	return cmd
}

func runBuild(cmd *cobra.Command, opts *RootOptions, name, postings string, c kv.Compression, blockSize int) error {
	ctx := cmd.Context()
	out := &output{codec: opts.Codec, writer: cmd.OutOrStdout(), errWriter: cmd.ErrOrStderr(), verbose: opts.Verbose}

	var r io.Reader = cmd.InOrStdin()
	if postings != "-" {
		f, err := os.Open(postings)
		if err != nil {
			return commandError("open postings", err)
		}
		defer f.Close()
		r = f
	}

	t := kv.NewTable()
	n, err := readPostings(r, t)
	if err != nil {
		return commandError("read postings", err)
	}
	out.verboseLog("read %d postings into %d entries", n, t.Len())

	store, err := openStore(ctx, opts.Store)
	if err != nil {
		return commandError("open store", err)
	}
	info, err := kv.Save(ctx, store, name, t, kv.WithCompression(c), kv.WithBlockSize(blockSize))
	if err != nil {
		return err
	}

	res := BuildResult{
		Snapshot:    name,
		Postings:    n,
		Entries:     info.Entries,
		Compression: info.Compression.String(),
		Bytes:       info.Bytes,
	}
	return out.encode(res, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "wrote %s: %d postings, %d entries, %d bytes (%s)\n",
			res.Snapshot, res.Postings, res.Entries, res.Bytes, res.Compression)
		return err
	})
}
