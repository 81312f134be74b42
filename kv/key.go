package kv

import (
	"cmp"
	"fmt"
)

// Key addresses one entry.
type Key struct {
	Row       string `json:"row"`
	Family    string `json:"family,omitempty"`
	Qualifier string `json:"qualifier,omitempty"`
}

// Compare orders keys by row, then family, then qualifier.
func (k Key) Compare(o Key) int {
	if c := cmp.Compare(k.Row, o.Row); c != 0 {
		return c
	}
	if c := cmp.Compare(k.Family, o.Family); c != 0 {
		return c
	}
	return cmp.Compare(k.Qualifier, o.Qualifier)
}

// Less reports whether k sorts before o.
func (k Key) Less(o Key) bool { return k.Compare(o) < 0 }

// IsZero reports whether k is the empty key.
func (k Key) IsZero() bool { return k == Key{} }

// FollowingRow returns the smallest key after every key of k's row.
func (k Key) FollowingRow() Key { return Key{Row: k.Row + "\x00"} }

// FollowingFamily returns the smallest key after every key of k's row and
// family.
func (k Key) FollowingFamily() Key { return Key{Row: k.Row, Family: k.Family + "\x00"} }

func (k Key) String() string {
	return fmt.Sprintf("%q %q:%q", k.Row, k.Family, k.Qualifier)
}

// Entry is a key and its value.
type Entry struct {
	Key   Key
	Value []byte
}

// Range is the half-open key interval [Start, End). A zero End is unbounded.
type Range struct {
	Start Key `json:"start"`
	End   Key `json:"end"`
}

// Contains reports whether k lies within r.
func (r Range) Contains(k Key) bool {
	if k.Less(r.Start) {
		return false
	}
	return r.End.IsZero() || k.Less(r.End)
}

// Unbounded reports whether r has no upper end.
func (r Range) Unbounded() bool { return r.End.IsZero() }

func (r Range) String() string {
	if r.End.IsZero() {
		return fmt.Sprintf("[%s, +inf)", r.Start)
	}
	return fmt.Sprintf("[%s, %s)", r.Start, r.End)
}

// RowRange covers every entry of row.
func RowRange(row string) Range {
	k := Key{Row: row}
	return Range{Start: k, End: k.FollowingRow()}
}

// FamilyRange covers every entry of row and family.
func FamilyRange(row, family string) Range {
	k := Key{Row: row, Family: family}
	return Range{Start: k, End: k.FollowingFamily()}
}

// PrefixRange covers every row starting with prefix.
func PrefixRange(prefix string) Range {
	r := Range{Start: Key{Row: prefix}}
	if end, ok := PrefixEnd(prefix); ok {
		r.End = Key{Row: end}
	}
	return r
}

// PrefixEnd returns the smallest string greater than every string starting
// with prefix. It reports false when no such string exists.
func PrefixEnd(prefix string) (string, bool) {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1]), true
		}
	}
	return "", false
}
