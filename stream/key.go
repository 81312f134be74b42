package stream

import "strings"

// IsDay reports whether key is a day key rather than a shard key.
func IsDay(key string) bool {
	return key != "" && !strings.Contains(key, "_")
}

// DayOf returns the day a day or shard key belongs to.
func DayOf(key string) string {
	if i := strings.IndexByte(key, '_'); i >= 0 {
		return key[:i]
	}
	return key
}

// Covers reports whether outer equals inner or is the day containing shard
// inner.
func Covers(outer, inner string) bool {
	if outer == inner {
		return true
	}
	return IsDay(outer) && len(inner) > len(outer) && inner[len(outer)] == '_' && strings.HasPrefix(inner, outer)
}
