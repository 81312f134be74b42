package kv

import (
	"iter"
	"strings"
)

// Iterator transforms the entries a session reads before they reach the
// caller, the way a server-side iterator does. Iterators run in the order
// they are given to the session; each may drop, rewrite or hold back
// entries.
type Iterator func(seq iter.Seq[Entry]) iter.Seq[Entry]

// Filter keeps the entries accepted by keep.
func Filter(keep func(Entry) bool) Iterator {
	return func(seq iter.Seq[Entry]) iter.Seq[Entry] {
		return func(yield func(Entry) bool) {
			for e := range seq {
				if keep(e) && !yield(e) {
					return
				}
			}
		}
	}
}

// FamilyFilter keeps entries of one column family.
func FamilyFilter(family string) Iterator {
	return Filter(func(e Entry) bool { return e.Key.Family == family })
}

// QualifierPrefixFilter keeps entries whose qualifier starts with one of
// prefixes. No prefixes keeps everything.
func QualifierPrefixFilter(prefixes ...string) Iterator {
	if len(prefixes) == 0 {
		return identity
	}
	return Filter(func(e Entry) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(e.Key.Qualifier, p) {
				return true
			}
		}
		return false
	})
}

// Limit stops after n entries.
func Limit(n int) Iterator {
	return func(seq iter.Seq[Entry]) iter.Seq[Entry] {
		return func(yield func(Entry) bool) {
			if n <= 0 {
				return
			}
			seen := 0
			for e := range seq {
				if !yield(e) {
					return
				}
				seen++
				if seen == n {
					return
				}
			}
		}
	}
}

func identity(seq iter.Seq[Entry]) iter.Seq[Entry] { return seq }

// Stack applies its iterators in order.
func Stack(its ...Iterator) Iterator {
	return func(seq iter.Seq[Entry]) iter.Seq[Entry] {
		for _, it := range its {
			if it != nil {
				seq = it(seq)
			}
		}
		return seq
	}
}
