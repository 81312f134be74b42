package stream

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rangestream/expr"
	"github.com/hupe1980/rangestream/internal/pool"
)

func shardTuples(node *expr.Node, keys ...string) []Tuple {
	out := make([]Tuple, len(keys))
	for i, k := range keys {
		out[i] = Tuple{Key: k, Info: NewIndexInfo(roaring64.BitmapOf(uint64(i+1), 100), node)}
	}
	return out
}

func keys(t *testing.T, s IndexStream) []string {
	t.Helper()
	tuples, err := Drain(context.Background(), s)
	require.NoError(t, err)
	out := make([]string, 0, len(tuples))
	for _, tu := range tuples {
		out = append(out, tu.Key)
	}
	return out
}

type sliceSource struct {
	postings []Posting
	err      error
	closes   *atomic.Int32
}

func (s *sliceSource) Next(context.Context) (Posting, bool, error) {
	if len(s.postings) == 0 {
		if s.err != nil {
			return Posting{}, false, s.err
		}
		return Posting{}, false, nil
	}
	p := s.postings[0]
	s.postings = s.postings[1:]
	return p, true, nil
}

func (s *sliceSource) Close() error {
	if s.closes != nil {
		s.closes.Add(1)
	}
	return nil
}

func factoryOf(closes *atomic.Int32, postings ...Posting) ScannerFactory {
	return ScannerFactoryFunc(func(context.Context, ScanRequest) (Source, error) {
		return &sliceSource{postings: postings, closes: closes}, nil
	})
}

func build(t *testing.T, b interface {
	Build(context.Context, Scheduler) (IndexStream, error)
}) IndexStream {
	t.Helper()
	s, err := b.Build(context.Background(), nil)
	require.NoError(t, err)
	return s
}

func TestCovers(t *testing.T) {
	assert.True(t, Covers("20240101", "20240101"))
	assert.True(t, Covers("20240101", "20240101_3"))
	assert.True(t, Covers("20240101_3", "20240101_3"))
	assert.False(t, Covers("20240101_3", "20240101"))
	assert.False(t, Covers("20240101", "20240102_1"))
	assert.False(t, Covers("2024010", "20240101_1"))

	assert.True(t, IsDay("20240101"))
	assert.False(t, IsDay("20240101_0"))
	assert.Equal(t, "20240101", DayOf("20240101_12"))
}

func TestContext(t *testing.T) {
	assert.Equal(t, "EXCEEDED_VALUE_THRESHOLD", ExceededValueThreshold.String())
	assert.True(t, Variable.Mergeable())
	assert.True(t, ExceededTermThreshold.Mergeable())
	assert.False(t, Ignored.Mergeable())
	assert.False(t, Absent.Mergeable())
}

func TestIndexInfo(t *testing.T) {
	a, b := expr.Eq("A", "1"), expr.Eq("B", "2")

	t.Run("ConcreteIntersect", func(t *testing.T) {
		x := NewIndexInfo(roaring64.BitmapOf(1, 2, 3), a)
		y := NewIndexInfo(roaring64.BitmapOf(2, 3, 4), b)
		got := x.Intersect(y, nil)
		assert.Equal(t, []uint64{2, 3}, got.UIDs().ToArray())
		assert.Equal(t, int64(2), got.Count())
		assert.True(t, expr.Equal(expr.And(a, b), got.Node()))
	})

	t.Run("UnknownDefersToConcrete", func(t *testing.T) {
		x := UnknownInfo(a)
		y := NewIndexInfo(roaring64.BitmapOf(7), b)
		got := x.Intersect(y, nil)
		assert.Equal(t, []uint64{7}, got.UIDs().ToArray())
	})

	t.Run("UnionUnknownDominates", func(t *testing.T) {
		got := UnknownInfo(a).Union(NewIndexInfo(roaring64.BitmapOf(7), b))
		assert.True(t, got.Unknown())
		assert.Nil(t, got.UIDs())
	})

	t.Run("UnionConcrete", func(t *testing.T) {
		got := NewIndexInfo(roaring64.BitmapOf(1), a).Union(NewIndexInfo(roaring64.BitmapOf(2), b))
		assert.Equal(t, []uint64{1, 2}, got.UIDs().ToArray())
		assert.True(t, expr.Equal(expr.Or(a, b), got.Node()))
	})

	t.Run("CountsOnly", func(t *testing.T) {
		assert.Equal(t, int64(3), CountInfo(3, a).Intersect(CountInfo(5, b), nil).Count())
		assert.Equal(t, int64(8), CountInfo(3, a).Union(CountInfo(5, b)).Count())
	})

	t.Run("CustomIntersector", func(t *testing.T) {
		var calls int
		ui := UIDIntersectorFunc(func(x, y *roaring64.Bitmap) *roaring64.Bitmap {
			calls++
			return roaring64.Or(x, y)
		})
		got := NewIndexInfo(roaring64.BitmapOf(1), a).Intersect(NewIndexInfo(roaring64.BitmapOf(2), b), ui)
		assert.Equal(t, 1, calls)
		assert.Equal(t, int64(2), got.Count())
	})
}

func TestIntersection_Shards(t *testing.T) {
	a, b := expr.Eq("A", "1"), expr.Eq("B", "2")

	ib := NewIntersectionBuilder(nil)
	ib.Add(WithData(shardTuples(a, "20240101_1", "20240101_2", "20240101_3"), a))
	ib.Add(WithData(shardTuples(b, "20240101_2", "20240101_3", "20240101_4"), b))
	s := build(t, ib)

	assert.Equal(t, Present, s.Context())
	assert.True(t, expr.Equal(expr.And(a, b), s.CurrentNode()))
	assert.Equal(t, []string{"20240101_2", "20240101_3"}, keys(t, s))
}

func TestUnion_Shards(t *testing.T) {
	a, b := expr.Eq("A", "1"), expr.Eq("B", "2")

	ub := NewUnionBuilder()
	ub.Add(WithData(shardTuples(a, "20240101_1", "20240101_2", "20240101_3"), a))
	ub.Add(WithData(shardTuples(b, "20240101_2", "20240101_3", "20240101_4"), b))
	s := build(t, ub)

	assert.Equal(t, Present, s.Context())
	assert.Equal(t, []string{"20240101_1", "20240101_2", "20240101_3", "20240101_4"}, keys(t, s))
}

func TestUnion_MergesInfos(t *testing.T) {
	a, b := expr.Eq("A", "1"), expr.Eq("B", "2")

	ub := NewUnionBuilder()
	ub.Add(WithData([]Tuple{{Key: "20240101_1", Info: NewIndexInfo(roaring64.BitmapOf(1), a)}}, a))
	ub.Add(WithData([]Tuple{{Key: "20240101_1", Info: NewIndexInfo(roaring64.BitmapOf(2), b)}}, b))
	s := build(t, ub)

	tuples, err := Drain(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, tuples, 1)
	assert.Equal(t, []uint64{1, 2}, tuples[0].Info.UIDs().ToArray())
}

func TestIntersection_AbsentChild(t *testing.T) {
	a, b := expr.Eq("A", "1"), expr.Eq("B", "2")

	ib := NewIntersectionBuilder(nil)
	ib.Add(WithData(shardTuples(a, "20240101_1"), a))
	ib.Add(NoData(b))
	s := build(t, ib)

	assert.Equal(t, Absent, s.Context())
	assert.Empty(t, keys(t, s))
}

func TestIntersection_DisjointBecomesAbsent(t *testing.T) {
	a, b := expr.Eq("A", "1"), expr.Eq("B", "2")

	ib := NewIntersectionBuilder(nil)
	ib.Add(WithData(shardTuples(a, "20240101_1"), a))
	ib.Add(WithData(shardTuples(b, "20240102_1"), b))
	s := build(t, ib)

	assert.Equal(t, Absent, s.Context())
	assert.Empty(t, keys(t, s))
}

func TestUnion_Absent(t *testing.T) {
	a, b := expr.Eq("A", "1"), expr.Eq("B", "2")

	t.Run("AllAbsent", func(t *testing.T) {
		ub := NewUnionBuilder()
		ub.Add(NoData(a))
		ub.Add(NoData(b))
		s := build(t, ub)
		assert.Equal(t, Absent, s.Context())
		assert.Empty(t, keys(t, s))
	})

	t.Run("AbsentDropped", func(t *testing.T) {
		ub := NewUnionBuilder()
		ub.Add(NoData(a))
		ub.Add(WithData(shardTuples(b, "20240101_1"), b))
		s := build(t, ub)
		assert.Equal(t, Present, s.Context())
		assert.True(t, expr.Equal(b, s.CurrentNode()))
		assert.Equal(t, []string{"20240101_1"}, keys(t, s))
	})
}

func TestIntersection_UnindexedResidual(t *testing.T) {
	a, b := expr.Eq("A", "1"), expr.Eq("B", "2")

	ib := NewIntersectionBuilder(nil)
	ib.Add(WithData(shardTuples(a, "20240101_1", "20240101_2"), a))
	ib.Add(NotIndexed(b))
	s := build(t, ib)

	assert.Equal(t, Present, s.Context())

	tuples, err := Drain(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, tuples, 2)
	for _, tu := range tuples {
		assert.True(t, expr.Equal(expr.And(a, b), tu.Info.Node()), tu.Info.Node().String())
	}
}

func TestIntersection_Unconstrained(t *testing.T) {
	a, b := expr.Eq("A", "1"), expr.Ne("B", "2")

	ib := NewIntersectionBuilder(nil)
	ib.Add(NotIndexed(a))
	ib.Add(DelayedExpression(b))
	s := build(t, ib)

	assert.Equal(t, Unindexed, s.Context())
	assert.Empty(t, keys(t, s))
}

func TestIntersection_IgnoredStillMerges(t *testing.T) {
	a, b, c := expr.Eq("A", "1"), expr.Ne("B", "2"), expr.Eq("C", "3")

	ib := NewIntersectionBuilder(nil)
	ib.Add(WithData(shardTuples(a, "20240101_1"), a))
	ib.Add(DelayedExpression(b))
	in := build(t, ib)
	assert.Equal(t, Ignored, in.Context())

	ub := NewUnionBuilder()
	ub.Add(in)
	ub.Add(WithData(shardTuples(c, "20240102_1"), c))
	s := build(t, ub)

	assert.Equal(t, Present, s.Context())
	assert.Equal(t, []string{"20240101_1", "20240102_1"}, keys(t, s))
}

func TestIntersection_DayCoversShards(t *testing.T) {
	a, b := expr.Eq("A", "1"), expr.Eq("B", "2")

	ib := NewIntersectionBuilder(nil)
	ib.Add(ExceededTerm(a, []string{"20240101"}))
	ib.Add(WithData(shardTuples(b, "20240101_1", "20240101_2", "20240102_1"), b))
	s := build(t, ib)

	assert.Equal(t, ExceededTermThreshold, s.Context())

	tuples, err := Drain(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, tuples, 2)
	assert.Equal(t, "20240101_1", tuples[0].Key)
	assert.Equal(t, "20240101_2", tuples[1].Key)
	assert.NotNil(t, tuples[0].Info.UIDs())
}

func TestUnion_DayAbsorbsShards(t *testing.T) {
	a, b := expr.Eq("A", "1"), expr.Eq("B", "2")

	ub := NewUnionBuilder()
	ub.Add(ExceededValue(a, []string{"20240101"}))
	ub.Add(WithData(shardTuples(b, "20240101_1", "20240102_3"), b))
	s := build(t, ub)

	assert.Equal(t, ExceededValueThreshold, s.Context())

	tuples, err := Drain(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, tuples, 2)
	assert.Equal(t, "20240101", tuples[0].Key)
	assert.True(t, tuples[0].Info.Unknown())
	assert.Equal(t, "20240102_3", tuples[1].Key)
}

func TestUnion_DayAbsorbsShardsOnce(t *testing.T) {
	a, b := expr.Eq("A", "1"), expr.Eq("B", "2")

	ub := NewUnionBuilder()
	ub.Add(ExceededValue(a, []string{"20240101"}))
	ub.Add(WithData(shardTuples(b, "20240101_1", "20240101_2", "20240101_5"), b))
	s := build(t, ub)

	tuples, err := Drain(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, tuples, 1)
	assert.Equal(t, "20240101", tuples[0].Key)
	assert.Equal(t, "A == '1' || B == '2'", tuples[0].Info.Node().String())
}

func TestUnion_NotMergeableEmitsNothing(t *testing.T) {
	a, b := expr.Eq("A", "1"), expr.Eq("B", "2")

	ub := NewUnionBuilder()
	ub.Add(WithData(shardTuples(a, "20240101_1"), a))
	ub.Add(NotIndexed(b))
	s := build(t, ub)

	assert.Equal(t, Unindexed, s.Context())
	assert.Empty(t, keys(t, s))
}

func TestIntersection_ContextPrecedence(t *testing.T) {
	n := expr.Eq("A", "1")
	day := []string{"20240101"}

	tests := []struct {
		name     string
		children []IndexStream
		want     Context
	}{
		{"AbsentWins", []IndexStream{NoData(n), ExceededTerm(n, day)}, Absent},
		{"TermOverValue", []IndexStream{ExceededValue(n, day), ExceededTerm(n, day)}, ExceededTermThreshold},
		{"ValueOverIgnored", []IndexStream{ExceededValue(n, day), DelayedExpression(n)}, ExceededValueThreshold},
		{"UnknownFieldLast", []IndexStream{Unknown(n), WithData(shardTuples(n, "20240101_1"), n)}, Present},
		{"UnknownOnly", []IndexStream{Unknown(n), Unknown(n)}, UnknownField},
		{"IgnoredAndUnindexed", []IndexStream{Marked(expr.Mark(expr.EvaluationOnly, n)), NotIndexed(n)}, Unindexed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, intersectionContext(tt.children))
		})
	}
}

func TestUnion_ContextPrecedence(t *testing.T) {
	n := expr.Eq("A", "1")
	day := []string{"20240101"}

	tests := []struct {
		name string
		live []IndexStream
		want Context
	}{
		{"UnindexedWins", []IndexStream{NotIndexed(n), Unknown(n)}, Unindexed},
		{"UnknownOverIgnored", []IndexStream{Unknown(n), DelayedExpression(n)}, UnknownField},
		{"IgnoredOverExceeded", []IndexStream{DelayedExpression(n), ExceededTerm(n, day)}, Ignored},
		{"TermOverValue", []IndexStream{ExceededValue(n, day), ExceededTerm(n, day)}, ExceededTermThreshold},
		{"ValueOverPresent", []IndexStream{ExceededValue(n, day), WithData(nil, n)}, ExceededValueThreshold},
		{"Present", []IndexStream{WithData(nil, n)}, Present},
		{"Empty", nil, Absent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, unionContext(tt.live))
		})
	}
}

func TestBuilders(t *testing.T) {
	n := expr.Eq("A", "1")

	t.Run("Empty", func(t *testing.T) {
		s := build(t, NewIntersectionBuilder(nil))
		assert.Equal(t, Unindexed, s.Context())
		s = build(t, NewUnionBuilder())
		assert.Equal(t, Unindexed, s.Context())
	})

	t.Run("SingleChild", func(t *testing.T) {
		child := WithData(shardTuples(n, "20240101_1"), n)
		ib := NewIntersectionBuilder(nil)
		ib.Add(child)
		assert.Same(t, child, build(t, ib))
	})

	t.Run("Consume", func(t *testing.T) {
		outer, inner := NewUnionBuilder(), NewUnionBuilder()
		outer.Add(NoData(n))
		inner.Add(NoData(n))
		inner.Add(NoData(n))
		outer.Consume(inner)
		assert.Equal(t, 3, outer.Size())
		assert.Zero(t, inner.Size())
	})
}

func TestScan_Resolves(t *testing.T) {
	n := expr.Eq("A", "1")
	var closes atomic.Int32

	s := Scan(factoryOf(&closes,
		Posting{Key: "20240101_1", UIDs: roaring64.BitmapOf(1, 2)},
		Posting{Key: "20240101_2", Count: 7},
	), ScanRequest{Field: "A", Value: "1"}, n, nil)
	assert.Equal(t, Initialized, s.Context())

	tuples, err := Drain(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, Present, s.Context())
	require.Len(t, tuples, 2)
	assert.Equal(t, int64(2), tuples[0].Info.Count())
	assert.Equal(t, int64(7), tuples[1].Info.Count())
	assert.Nil(t, tuples[1].Info.UIDs())

	assert.Equal(t, int32(1), closes.Load())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, int32(1), closes.Load())
}

func TestScan_EmptyIsAbsent(t *testing.T) {
	var closes atomic.Int32
	s := Scan(factoryOf(&closes), ScanRequest{}, expr.Eq("A", "1"), nil)

	_, ok, err := s.Peek(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, Absent, s.Context())
	assert.Equal(t, int32(1), closes.Load())
}

func TestScan_ValueThreshold(t *testing.T) {
	n := expr.Regex("A", "a.*")
	days := []string{"20240101", "20240102"}

	t.Run("OnOpen", func(t *testing.T) {
		f := ScannerFactoryFunc(func(context.Context, ScanRequest) (Source, error) {
			return nil, ErrValueThresholdExceeded
		})
		s := Scan(f, ScanRequest{}, n, days)

		tuples, err := Drain(context.Background(), s)
		require.NoError(t, err)
		assert.Equal(t, ExceededValueThreshold, s.Context())
		assert.True(t, expr.IsMarked(s.CurrentNode(), expr.ExceededValueThreshold))
		require.Len(t, tuples, 2)
		assert.Equal(t, "20240101", tuples[0].Key)
		assert.True(t, tuples[0].Info.Unknown())
	})

	t.Run("OnFirstBatch", func(t *testing.T) {
		var closes atomic.Int32
		f := ScannerFactoryFunc(func(context.Context, ScanRequest) (Source, error) {
			return &sliceSource{err: ErrValueThresholdExceeded, closes: &closes}, nil
		})
		s := Scan(f, ScanRequest{}, n, days)

		assert.Equal(t, []string{"20240101", "20240102"}, keys(t, s))
		assert.Equal(t, ExceededValueThreshold, s.Context())
		assert.Equal(t, int32(1), closes.Load())
	})

	t.Run("Rejected", func(t *testing.T) {
		var closes, opens atomic.Int32
		f := ScannerFactoryFunc(func(context.Context, ScanRequest) (Source, error) {
			opens.Add(1)
			return &sliceSource{err: ErrValueThresholdExceeded, closes: &closes}, nil
		})
		s := Scan(f, ScanRequest{RejectExceeded: true}, n, days)

		_, _, err := s.Peek(context.Background())
		require.ErrorIs(t, err, ErrValueThresholdUnsupported)
		_, _, err = s.Next(context.Background())
		require.ErrorIs(t, err, ErrValueThresholdUnsupported)

		assert.Equal(t, int32(1), opens.Load())
		assert.Equal(t, int32(1), closes.Load())
		assert.NotEqual(t, ExceededValueThreshold, s.Context())
	})
}

func TestInitialize_Pool(t *testing.T) {
	p := pool.New(1, 4, 50*time.Millisecond)
	defer p.Close()

	var closes atomic.Int32
	full := factoryOf(&closes, Posting{Key: "20240101_1", Count: 1})
	empty := factoryOf(&closes)

	streams := []IndexStream{
		Scan(full, ScanRequest{}, expr.Eq("A", "1"), nil),
		Scan(empty, ScanRequest{}, expr.Eq("B", "2"), nil),
		Scan(full, ScanRequest{}, expr.Eq("C", "3"), nil),
		NotIndexed(expr.Eq("D", "4")),
	}

	got, err := Initialize(context.Background(), p, streams)
	require.NoError(t, err)
	assert.Equal(t, Present, got[0].Context())
	assert.Equal(t, Absent, got[1].Context())
	assert.Equal(t, Present, got[2].Context())
	assert.Equal(t, Unindexed, got[3].Context())
}

func TestInitialize_Error(t *testing.T) {
	p := pool.NewFixed(2)
	defer p.Close()

	boom := errors.New("boom")
	failing := ScannerFactoryFunc(func(context.Context, ScanRequest) (Source, error) {
		return nil, boom
	})

	streams := []IndexStream{
		Scan(factoryOf(nil), ScanRequest{}, expr.Eq("A", "1"), nil),
		Scan(failing, ScanRequest{}, expr.Eq("B", "2"), nil),
	}

	_, err := Initialize(context.Background(), p, streams)
	assert.ErrorIs(t, err, boom)
}

func TestInitialize_ClosedPool(t *testing.T) {
	p := pool.NewFixed(1)
	p.Close()

	streams := []IndexStream{Scan(factoryOf(nil), ScanRequest{}, expr.Eq("A", "1"), nil)}
	_, err := Initialize(context.Background(), p, streams)
	assert.ErrorIs(t, err, pool.ErrClosed)
}

func TestIntersection_CloseClosesChildren(t *testing.T) {
	var closes atomic.Int32
	f := factoryOf(&closes,
		Posting{Key: "20240101_1", Count: 1},
		Posting{Key: "20240101_2", Count: 1},
	)

	ib := NewIntersectionBuilder(nil)
	ib.Add(Scan(f, ScanRequest{}, expr.Eq("A", "1"), nil))
	ib.Add(Scan(f, ScanRequest{}, expr.Eq("B", "2"), nil))
	s := build(t, ib)

	_, ok, err := s.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, int32(2), closes.Load())

	_, ok, err = s.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOutputIsAscendingSubset(t *testing.T) {
	a, b, c := expr.Eq("A", "1"), expr.Eq("B", "2"), expr.Eq("C", "3")
	ak := []string{"20240101_1", "20240101_5", "20240102_0", "20240103_2", "20240105_1"}
	bk := []string{"20240101_5", "20240102", "20240103_2", "20240104_0"}
	ck := []string{"20240101_1", "20240102_0", "20240105_1"}

	ib := NewIntersectionBuilder(nil)
	ib.Add(WithData(shardTuples(a, ak...), a))
	ib.Add(WithData(shardTuples(b, bk...), b))
	inter := build(t, ib)

	ub := NewUnionBuilder()
	ub.Add(inter)
	ub.Add(WithData(shardTuples(c, ck...), c))
	got := keys(t, build(t, ub))

	assert.Equal(t, []string{"20240101_1", "20240101_5", "20240102_0", "20240103_2", "20240105_1"}, got)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1], got[i])
	}
}

func TestContextDebug(t *testing.T) {
	a, b := expr.Eq("A", "1"), expr.Eq("B", "2")

	ib := NewIntersectionBuilder(nil)
	ib.Add(WithData(shardTuples(a, "20240101_1"), a))
	ib.Add(NotIndexed(b))
	s := build(t, ib)

	dbg := s.ContextDebug()
	assert.Contains(t, dbg, "intersection: PRESENT")
	assert.Contains(t, dbg, "\n  unindexed: UNINDEXED B == '2'")
}
