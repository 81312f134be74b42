package rangestream_test

import (
	"context"
	"fmt"
	"log"

	"github.com/hupe1980/rangestream"
	"github.com/hupe1980/rangestream/config"
	"github.com/hupe1980/rangestream/expr"
	"github.com/hupe1980/rangestream/index"
	"github.com/hupe1980/rangestream/kv"
	"github.com/hupe1980/rangestream/metadata"
)

func Example() {
	ctx := context.Background()

	// Index two fields of a handful of records.
	table := kv.NewTable()
	w := index.NewWriter(table)
	for _, p := range []struct {
		field, value, shard string
		uids                []uint64
	}{
		{"NAME", "alice", "20240101_0", []uint64{1, 2}},
		{"NAME", "alice", "20240102_3", []uint64{7}},
		{"CITY", "paris", "20240101_0", []uint64{2, 5}},
		{"CITY", "paris", "20240102_3", []uint64{8}},
	} {
		if err := w.Add(p.field, p.value, p.shard, "email", p.uids...); err != nil {
			log.Fatal(err)
		}
	}

	scanners := index.NewScanners()
	scanners.Register("shardIndex", table)

	fields := metadata.NewStore(
		metadata.Field{Name: "NAME", Indexed: true},
		metadata.Field{Name: "CITY", Indexed: true},
		metadata.Field{Name: "AGE"},
	)

	cfg := config.Defaults()
	cfg.BeginDate, cfg.EndDate = "20240101", "20240102"

	rs, err := rangestream.New(cfg, scanners, fields)
	if err != nil {
		log.Fatal(err)
	}
	defer rs.Close()

	tree := expr.And(
		expr.Eq("NAME", "alice"),
		expr.Eq("CITY", "paris"),
		expr.Gt("AGE", "30"),
	)
	if _, err := rs.StreamPlans(ctx, tree); err != nil {
		log.Fatal(err)
	}

	for plan, err := range rs.Plans(ctx) {
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(plan.Query)
		for _, r := range plan.Ranges {
			fmt.Println(" ", r.Start.Row, r.Start.Family)
		}
	}
	fmt.Println(rs.Context())

	// Output:
	// NAME == 'alice' && CITY == 'paris' && AGE > '30'
	//   20240101_0 2
	// PRESENT
}
