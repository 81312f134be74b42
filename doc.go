// Package rangestream plans index scans for boolean field queries against a
// sharded, date-partitioned inverted index.
//
// A planning session takes a predicate tree, decides for every subtree how far
// the index can answer it, and exposes the result as a lazy sequence of
// QueryPlans. Each plan names the shard or day ranges to scan and the residual
// predicate the records in those ranges must still satisfy.
//
// # Quick Start
//
//	cfg, _ := config.Load("query.yaml")
//	scanners := index.NewScanners()
//	scanners.Register(cfg.IndexTable, table)
//
//	rs, err := rangestream.New(cfg, scanners, helper,
//	    rangestream.WithLogLevel(slog.LevelDebug))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rs.Close()
//
//	tree := expr.And(expr.Eq("NAME", "alice"), expr.Eq("CITY", "berlin"))
//	if _, err := rs.StreamPlans(ctx, tree); err != nil {
//	    log.Fatal(err)
//	}
//	for plan, err := range rs.Plans(ctx) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(plan.Ranges, plan.Query)
//	}
//
// # Stream Contexts
//
// Every subtree is classified by a stream.Context. Leaves on indexed fields
// open a scan and settle on PRESENT or ABSENT; unindexed and unknown fields,
// delayed subtrees and subtrees marked by an earlier expansion step carry no
// index constraint. Conjunctions intersect their children per shard and
// disjunctions union them, deriving their own context from their children.
//
// # Resources
//
// A session owns two worker pools sized from the configured lookup threads:
// one resolves sibling scans in parallel, the other prefetches scan batches.
// Close shuts both down and closes every scan still open.
package rangestream
