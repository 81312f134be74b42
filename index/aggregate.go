package index

import (
	"slices"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/rangestream/kv"
	"github.com/hupe1980/rangestream/stream"
)

type shardSum struct {
	uids  *roaring64.Bitmap
	count int64
}

// UIDAggregator folds the raw entries of one lookup into a posting per shard.
// Entries must arrive in key order.
type UIDAggregator struct {
	opts    stream.Aggregation
	shards  map[string]*shardSum
	lastRow string
	values  int
	started bool
}

// NewUIDAggregator returns an aggregator applying opts.
func NewUIDAggregator(opts stream.Aggregation) *UIDAggregator {
	return &UIDAggregator{opts: opts, shards: make(map[string]*shardSum)}
}

// Add folds one index entry. It returns stream.ErrValueThresholdExceeded
// once more than MaxValues distinct values were seen.
func (a *UIDAggregator) Add(e kv.Entry) error {
	if !a.started || e.Key.Row != a.lastRow {
		a.started = true
		a.lastRow = e.Key.Row
		a.values++
		if a.opts.MaxValues > 0 && a.values > a.opts.MaxValues {
			return stream.ErrValueThresholdExceeded
		}
	}

	p, err := DecodePosting(e.Value)
	if err != nil {
		return err
	}

	shard, _ := SplitQualifier(e.Key.Qualifier)
	sum, ok := a.shards[shard]
	if !ok {
		sum = &shardSum{uids: roaring64.New()}
		a.shards[shard] = sum
	}
	switch {
	case p.UIDs == nil:
		// A count-only posting makes the whole shard count-only.
		sum.count += p.Count + int64(cardinality(sum.uids))
		sum.uids = nil
	case sum.uids == nil:
		sum.count += p.Count
	default:
		sum.uids.Or(p.UIDs)
	}
	return nil
}

// Values returns the number of distinct values seen.
func (a *UIDAggregator) Values() int { return a.values }

// Postings returns the folded postings in ascending key order.
func (a *UIDAggregator) Postings() []stream.Posting {
	keys := make([]string, 0, len(a.shards))
	for k := range a.shards {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]stream.Posting, 0, len(keys))
	for _, k := range keys {
		out = append(out, a.posting(k, a.shards[k]))
	}
	if a.opts.Condense && a.opts.ShardsPerDay > 0 {
		out = condense(out, a.opts.ShardsPerDay)
	}
	return out
}

func (a *UIDAggregator) posting(shard string, sum *shardSum) stream.Posting {
	if sum.uids == nil {
		return stream.Posting{Key: shard, Count: sum.count}
	}
	n := int64(sum.uids.GetCardinality())
	if a.opts.CollapseUIDs || (a.opts.MaxUIDs > 0 && n > int64(a.opts.MaxUIDs)) {
		return stream.Posting{Key: shard, Count: n}
	}
	return stream.Posting{Key: shard, Count: n, UIDs: sum.uids}
}

// condense replaces the shards of each day with more than limit shards by a
// single day posting carrying their summed count.
func condense(in []stream.Posting, limit int) []stream.Posting {
	out := in[:0:0]
	for i := 0; i < len(in); {
		day := stream.DayOf(in[i].Key)
		j := i
		var total int64
		for j < len(in) && stream.DayOf(in[j].Key) == day {
			total += in[j].Count
			j++
		}
		if j-i > limit {
			out = append(out, stream.Posting{Key: day, Count: total})
		} else {
			out = append(out, in[i:j]...)
		}
		i = j
	}
	return out
}

func cardinality(b *roaring64.Bitmap) uint64 {
	if b == nil {
		return 0
	}
	return b.GetCardinality()
}
