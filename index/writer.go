package index

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/rangestream/kv"
)

// Writer adds postings to an index table. Postings for the same field,
// value, shard and datatype are merged.
type Writer struct {
	table *kv.Table
}

// NewWriter returns a writer for t.
func NewWriter(t *kv.Table) *Writer {
	return &Writer{table: t}
}

// Add records uids for value of field in shard.
func (w *Writer) Add(field, value, shard, datatype string, uids ...uint64) error {
	if err := checkShard(shard); err != nil {
		return err
	}
	key := kv.Key{Row: value, Family: field, Qualifier: Qualifier(shard, datatype)}

	merged := roaring64.BitmapOf(uids...)
	if old, ok := w.table.Get(key); ok {
		p, err := DecodePosting(old)
		if err != nil {
			return err
		}
		if p.UIDs == nil {
			w.table.Put(kv.Entry{Key: key, Value: EncodeCount(p.Count + int64(merged.GetCardinality()))})
			return nil
		}
		merged.Or(p.UIDs)
	}

	data, err := EncodeUIDs(merged)
	if err != nil {
		return err
	}
	w.table.Put(kv.Entry{Key: key, Value: data})
	return nil
}

// AddCount records n matches for value of field in shard without record ids.
// A stored id set for the same entry is folded into the count.
func (w *Writer) AddCount(field, value, shard, datatype string, n int64) error {
	if err := checkShard(shard); err != nil {
		return err
	}
	key := kv.Key{Row: value, Family: field, Qualifier: Qualifier(shard, datatype)}

	if old, ok := w.table.Get(key); ok {
		p, err := DecodePosting(old)
		if err != nil {
			return err
		}
		n += p.Count
	}
	w.table.Put(kv.Entry{Key: key, Value: EncodeCount(n)})
	return nil
}

func checkShard(shard string) error {
	if len(shard) < 10 || shard[8] != '_' {
		return fmt.Errorf("index: shard %q is not of the form yyyyMMdd_N", shard)
	}
	return nil
}
