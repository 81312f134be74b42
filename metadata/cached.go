package metadata

import (
	"context"
	"slices"
	"strings"

	"github.com/hupe1980/rangestream/internal/cache"
)

type lookupKind uint8

const (
	lookupIndexed lookupKind = iota
	lookupIndexOnly
	lookupAllFields
)

type lookupKey struct {
	kind      lookupKind
	field     string
	datatypes string
}

func newLookupKey(kind lookupKind, field string, datatypes []string) lookupKey {
	dts := slices.Clone(datatypes)
	slices.Sort(dts)
	return lookupKey{kind: kind, field: field, datatypes: strings.Join(slices.Compact(dts), "\x00")}
}

// Cached memoizes the answers of another Helper. Failed lookups, including
// ErrTableNotFound, are never cached.
type Cached struct {
	helper Helper
	flags  *cache.Sharded[lookupKey, bool]
	fields *cache.LRU[lookupKey, []string]
}

var _ Helper = (*Cached)(nil)

// NewCached wraps h with a cache of at most size answers per lookup kind.
func NewCached(h Helper, size int) *Cached {
	return &Cached{
		helper: h,
		flags:  cache.NewSharded[lookupKey, bool](size),
		fields: cache.NewLRU[lookupKey, []string](size),
	}
}

// IsIndexed implements Helper.
func (c *Cached) IsIndexed(ctx context.Context, field string, datatypes []string) (bool, error) {
	return c.flag(ctx, newLookupKey(lookupIndexed, field, datatypes), func() (bool, error) {
		return c.helper.IsIndexed(ctx, field, datatypes)
	})
}

// IsIndexOnly implements Helper.
func (c *Cached) IsIndexOnly(ctx context.Context, field string, datatypes []string) (bool, error) {
	return c.flag(ctx, newLookupKey(lookupIndexOnly, field, datatypes), func() (bool, error) {
		return c.helper.IsIndexOnly(ctx, field, datatypes)
	})
}

// AllFields implements Helper. The returned slice is shared and must not be
// modified.
func (c *Cached) AllFields(ctx context.Context, datatypes []string) ([]string, error) {
	key := newLookupKey(lookupAllFields, "", datatypes)
	if v, ok := c.fields.Get(key); ok {
		return v, nil
	}
	v, err := c.helper.AllFields(ctx, datatypes)
	if err != nil {
		return nil, err
	}
	c.fields.Set(key, v)
	return v, nil
}

func (c *Cached) flag(ctx context.Context, key lookupKey, load func() (bool, error)) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if v, ok := c.flags.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return false, err
	}
	c.flags.Set(key, v)
	return v, nil
}

// Forget drops every cached answer about field, and every cached field list.
func (c *Cached) Forget(field string) {
	c.flags.Invalidate(func(k lookupKey) bool { return k.field == field })
	c.fields.Purge()
}

// Stats returns combined hit and miss counts.
func (c *Cached) Stats() (hits, misses int64) {
	h1, m1 := c.flags.Stats()
	h2, m2 := c.fields.Stats()
	return h1 + h2, m1 + m2
}
