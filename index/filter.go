package index

import (
	"regexp"
	"slices"

	"github.com/hupe1980/rangestream/kv"
)

// DatatypeFilter keeps entries of the given datatypes. No datatypes keeps
// everything.
func DatatypeFilter(datatypes []string) kv.Iterator {
	if len(datatypes) == 0 {
		return kv.Stack()
	}
	allowed := slices.Clone(datatypes)
	return kv.Filter(func(e kv.Entry) bool {
		_, dt := SplitQualifier(e.Key.Qualifier)
		return slices.Contains(allowed, dt)
	})
}

// DateFilter keeps entries whose shard falls on a day in [begin, end]. An
// empty bound is open.
func DateFilter(begin, end string) kv.Iterator {
	if begin == "" && end == "" {
		return kv.Stack()
	}
	return kv.Filter(func(e kv.Entry) bool {
		shard, _ := SplitQualifier(e.Key.Qualifier)
		if len(shard) < 8 {
			return false
		}
		day := shard[:8]
		return (begin == "" || day >= begin) && (end == "" || day <= end)
	})
}

// ValueFilter keeps entries whose value matches re.
func ValueFilter(re *regexp.Regexp) kv.Iterator {
	return kv.Filter(func(e kv.Entry) bool { return re.MatchString(e.Key.Row) })
}
