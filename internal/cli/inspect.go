package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/hupe1980/rangestream/index"
	"github.com/hupe1980/rangestream/kv"
)

// InspectResult describes a snapshot. Field counts are only filled by a full
// inspection.
type InspectResult struct {
	Snapshot    string           `json:"snapshot"`
	Entries     uint64           `json:"entries"`
	Compression string           `json:"compression"`
	Bytes       int64            `json:"bytes"`
	Size        int64            `json:"size,omitempty"`
	Fields      map[string]int64 `json:"fields,omitempty"`
	Shards      int              `json:"shards,omitempty"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:           "inspect <snapshot>",
		Short:         "Show snapshot statistics",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, rootOpts, args[0], full)
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "load the snapshot and count entries per field")

	return cmd
}

func runInspect(cmd *cobra.Command, opts *RootOptions, name string, full bool) error {
	ctx := cmd.Context()
	out := &output{codec: opts.Codec, writer: cmd.OutOrStdout(), errWriter: cmd.ErrOrStderr(), verbose: opts.Verbose}

	store, err := openStore(ctx, opts.Store)
	if err != nil {
		return commandError("open store", err)
	}

	var res InspectResult
	if full {
		t, info, err := kv.Load(ctx, store, name)
		if err != nil {
			return err
		}
		res = inspectResult(name, info)
		res.Size = t.Size()
		res.Fields = make(map[string]int64)
		shards := make(map[string]struct{})
		t.Ascend(kv.Range{}, func(e kv.Entry) bool {
			res.Fields[e.Key.Family]++
			shard, _ := index.SplitQualifier(e.Key.Qualifier)
			shards[shard] = struct{}{}
			return true
		})
		res.Shards = len(shards)
	} else {
		info, err := kv.Inspect(ctx, store, name)
		if err != nil {
			return err
		}
		res = inspectResult(name, info)
	}

	return out.encode(res, func(w io.Writer) error {
		fmt.Fprintf(w, "snapshot:    %s\n", res.Snapshot)
		fmt.Fprintf(w, "entries:     %d\n", res.Entries)
		fmt.Fprintf(w, "compression: %s\n", res.Compression)
		fmt.Fprintf(w, "bytes:       %d\n", res.Bytes)
		if !full {
			return nil
		}
		fmt.Fprintf(w, "size:        %d\n", res.Size)
		fmt.Fprintf(w, "shards:      %d\n", res.Shards)
		fields := make([]string, 0, len(res.Fields))
		for f := range res.Fields {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			fmt.Fprintf(w, "  %-20s %d\n", f, res.Fields[f])
		}
		return nil
	})
}

func inspectResult(name string, info kv.SnapshotInfo) InspectResult {
	return InspectResult{
		Snapshot:    name,
		Entries:     info.Entries,
		Compression: info.Compression.String(),
		Bytes:       info.Bytes,
	}
}
