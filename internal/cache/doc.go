// Package cache provides bounded LRU caches for values that are expensive to
// look up and cheap to keep, such as field metadata answers.
//
// LRU is a single mutex-guarded list. Sharded spreads keys over independent
// LRUs so concurrent lookup workers rarely contend on the same lock.
package cache
