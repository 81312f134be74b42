package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hupe1980/rangestream"
	"github.com/hupe1980/rangestream/config"
	"github.com/hupe1980/rangestream/index"
	"github.com/hupe1980/rangestream/internal/resource"
	"github.com/hupe1980/rangestream/kv"
	"github.com/hupe1980/rangestream/metadata"
)

// PlanResult is the output of the plan command.
type PlanResult struct {
	QueryID string                         `json:"query_id"`
	Context string                         `json:"context"`
	Plans   []rangestream.QueryPlan        `json:"plans"`
	Stats   *rangestream.BasicMetricsStats `json:"stats,omitempty"`
}

type planFlags struct {
	config   string
	fields   string
	query    string
	ioLimit  int64
	cache    int
	snapshot string
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	var f planFlags

	cmd := &cobra.Command{
		Use:   "plan <snapshot>",
		Short: "Plan the scans of a query against an index snapshot",
		Long: `Plan loads an index snapshot, classifies the query tree against it and
prints one plan per shard or day: the ranges of the shard table to scan and
the residual predicate records found there must satisfy.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.snapshot = args[0]
			return runPlan(cmd, rootOpts, f)
		},
	}

	cmd.Flags().StringVar(&f.config, "config", "query.yaml", "query configuration (YAML)")
	cmd.Flags().StringVar(&f.fields, "fields", "fields.yaml", "field catalog (YAML)")
	cmd.Flags().StringVar(&f.query, "query", "-", "query tree as JSON (- for stdin)")
	cmd.Flags().IntVar(&f.cache, "metadata-cache", 1024, "cached field lookups (0 disables the cache)")
	cmd.Flags().Int64Var(&f.ioLimit, "io-limit", 0, "snapshot read limit in bytes per second (0 = unlimited)")

	return cmd
}

func runPlan(cmd *cobra.Command, opts *RootOptions, f planFlags) error {
	ctx := cmd.Context()
	out := &output{codec: opts.Codec, writer: cmd.OutOrStdout(), errWriter: cmd.ErrOrStderr(), verbose: opts.Verbose}

	cfg, err := config.Load(f.config)
	if err != nil {
		return commandError("load config", err)
	}
	level, err := cfg.Level()
	if err != nil {
		return commandError("load config", err)
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := rangestream.NewLogger(slog.NewTextHandler(out.errWriter, &slog.HandlerOptions{Level: level}))

	catalog, err := loadCatalog(f.fields)
	if err != nil {
		return err
	}
	var helper metadata.Helper = catalog
	if f.cache > 0 {
		helper = metadata.NewCached(catalog, f.cache)
	}
	tree, err := loadQuery(f.query, cmd.InOrStdin())
	if err != nil {
		return err
	}

	limits := resource.NewController(resource.Config{
		MaxConcurrentScans:   int64(cfg.MaxConcurrentScans),
		ScanEntriesPerSecond: cfg.ScanEntriesPerSecond,
		IOLimitBytesPerSec:   f.ioLimit,
	})

	store, err := openStore(ctx, opts.Store)
	if err != nil {
		return commandError("open store", err)
	}
	table, info, err := kv.Load(ctx, store, f.snapshot, kv.WithLoadLimits(limits))
	if err != nil {
		return commandError("load snapshot "+f.snapshot, err)
	}
	out.verboseLog("loaded %s: %d entries, %d bytes", f.snapshot, info.Entries, info.Bytes)

	scanners := index.NewScanners(index.WithLimits(limits), index.WithLogger(logger.Logger))
	scanners.Register(cfg.IndexTable, table)

	metrics := &rangestream.BasicMetricsCollector{}
	rs, err := rangestream.New(cfg, scanners, helper,
		rangestream.WithLogger(logger),
		rangestream.WithMetricsCollector(metrics))
	if err != nil {
		return commandError("configure planner", err)
	}
	defer rs.Close()

	if _, err := rs.StreamPlans(ctx, tree); err != nil {
		return planFailure(err)
	}

	res := PlanResult{QueryID: cfg.ID.String()}
	for p, err := range rs.Plans(ctx) {
		if err != nil {
			return planFailure(err)
		}
		res.Plans = append(res.Plans, p)
	}
	res.Context = rs.Context().String()
	out.verboseLog("%s", rs.ContextDebug())

	if opts.Verbose {
		stats := metrics.GetStats()
		res.Stats = &stats
	}

	return out.encode(res, func(w io.Writer) error {
		fmt.Fprintf(w, "query %s: %s, %d plans\n", res.QueryID, res.Context, len(res.Plans))
		for _, p := range res.Plans {
			fmt.Fprintf(w, "%s\n", p.Query)
			for _, r := range p.Ranges {
				fmt.Fprintf(w, "  %s\n", r)
			}
		}
		return nil
	})
}

func planFailure(err error) error {
	var pe *rangestream.PlanError
	if errors.As(err, &pe) {
		return &ExitError{Code: ExitFailure, Message: "planning failed", Err: err}
	}
	return err
}
