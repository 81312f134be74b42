package kv

import (
	"bytes"
	"sync"

	"github.com/google/btree"
)

const btreeDegree = 32

func entryLess(a, b Entry) bool { return a.Key.Less(b.Key) }

// Table is an in-memory sorted table. It is safe for concurrent use; scans
// observe each batch atomically but may see writes between batches.
type Table struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[Entry]
	size int64
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{tree: btree.NewG(btreeDegree, entryLess)}
}

// Put inserts or replaces entries. Values are copied.
func (t *Table) Put(entries ...Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range entries {
		e.Value = bytes.Clone(e.Value)
		if old, ok := t.tree.ReplaceOrInsert(e); ok {
			t.size -= entrySize(old)
		}
		t.size += entrySize(e)
	}
}

// Get returns the value stored under k.
func (t *Table) Get(k Key) ([]byte, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.tree.Get(Entry{Key: k})
	if !ok {
		return nil, false
	}
	return e.Value, true
}

// Delete removes k and reports whether it was present.
func (t *Table) Delete(k Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	old, ok := t.tree.Delete(Entry{Key: k})
	if ok {
		t.size -= entrySize(old)
	}
	return ok
}

// Len returns the number of entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.Len()
}

// Size returns the approximate number of key and value bytes held.
func (t *Table) Size() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// Ascend calls fn for every entry of r in key order until fn returns false.
// fn must not modify the table.
func (t *Table) Ascend(r Range, fn func(Entry) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	t.ascend(r, fn)
}

func (t *Table) ascend(r Range, fn func(Entry) bool) {
	if r.End.IsZero() {
		t.tree.AscendGreaterOrEqual(Entry{Key: r.Start}, fn)
		return
	}
	t.tree.AscendRange(Entry{Key: r.Start}, Entry{Key: r.End}, fn)
}

// batch returns up to n entries of r that sort after after, or from the
// start of r when after is nil. more reports whether r may hold further
// entries.
func (t *Table) batch(r Range, after *Key, n int) (entries []Entry, more bool) {
	from := r
	if after != nil {
		from.Start = Key{Row: after.Row, Family: after.Family, Qualifier: after.Qualifier + "\x00"}
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	entries = make([]Entry, 0, n)
	t.ascend(from, func(e Entry) bool {
		if len(entries) == n {
			more = true
			return false
		}
		entries = append(entries, e)
		return true
	})
	return entries, more
}

func entrySize(e Entry) int64 {
	return int64(len(e.Key.Row) + len(e.Key.Family) + len(e.Key.Qualifier) + len(e.Value))
}
