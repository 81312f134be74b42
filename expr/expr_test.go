package expr

import (
	"errors"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_String(t *testing.T) {
	tests := []struct {
		name string
		node *Node
		want string
	}{
		{"eq", Eq("COLOR", "red"), "COLOR == 'red'"},
		{"null", EqNull("COLOR"), "COLOR == null"},
		{"escape", Eq("NAME", "o'neil"), `NAME == 'o\'neil'`},
		{"regex", Regex("NAME", "ba.*"), "NAME =~ 'ba.*'"},
		{"and", And(Eq("A", "1"), Eq("B", "2")), "A == '1' && B == '2'"},
		{"nested", And(Eq("A", "1"), Or(Eq("B", "2"), Eq("C", "3"))), "A == '1' && (B == '2' || C == '3')"},
		{"ref", Ref(Eq("A", "1")), "(A == '1')"},
		{"not", Not(Eq("A", "1")), "!(A == '1')"},
		{"marker", Mark(Delayed, Eq("A", "1")), "((_Delayed_ = true) && (A == '1'))"},
		{"assign", Assign(ShardDayHint, "20240101"), "SHARDS_AND_DAYS = '20240101'"},
		{"function", Function("content:phrase", []string{"BODY"}, "quick brown"), "content:phrase(BODY, 'quick brown')"},
		{"true", True(), "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.node.String())
		})
	}
}

func TestDepth(t *testing.T) {
	n := Eq("A", "1")
	for i := 0; i < 50; i++ {
		n = Ref(n)
	}
	assert.Equal(t, 51, Depth(n, 100))
	assert.Equal(t, 51, Depth(n, 50))
	assert.LessOrEqual(t, Depth(n, 10), 11)
	assert.Equal(t, 1, Depth(Eq("A", "1"), 50))
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(And(Eq("A", "1"), Not(Eq("B", "2")))))

	bad := Ref(Eq("A", "1")).WithChildren(Eq("A", "1"), Eq("B", "2"))
	err := Validate(And(Eq("C", "3"), bad))
	var se *ShapeError
	require.True(t, errors.As(err, &se))
	assert.Same(t, bad, se.Node)

	assert.Error(t, Validate(And()))
	assert.Error(t, Validate(Eq("", "x")))
	assert.Error(t, Validate(Eq("A", "1").WithChildren(Eq("B", "2"))))
}

func TestFlatten(t *testing.T) {
	a, b, c, d := Eq("A", "1"), Eq("B", "2"), Eq("C", "3"), Eq("D", "4")

	t.Run("associativity", func(t *testing.T) {
		left := And(Ref(And(a, b)), c)
		right := And(a, Ref(And(b, c)))
		assert.True(t, Equal(Flatten(left), Flatten(right)))
		assert.True(t, Equal(And(a, b, c), Flatten(left)))
		assert.Equal(t, Leaves(left), Leaves(Flatten(left)))
	})

	t.Run("keeps mixed kinds", func(t *testing.T) {
		n := And(a, Ref(Or(b, Ref(Or(c, d)))))
		got := Flatten(n)
		assert.Equal(t, "A == '1' && (B == '2' || C == '3' || D == '4')", got.String())
	})

	t.Run("shares unchanged input", func(t *testing.T) {
		n := And(a, Or(b, c))
		assert.Same(t, n, Flatten(n))
	})

	t.Run("input untouched", func(t *testing.T) {
		n := And(Ref(And(a, b)), c)
		before := n.String()
		_ = Flatten(n)
		assert.Equal(t, before, n.String())
	})
}

func TestConjoin(t *testing.T) {
	a, b := Eq("A", "1"), Eq("B", "2")
	assert.Nil(t, Conjoin())
	assert.Same(t, a, Conjoin(nil, a))
	assert.Equal(t, "A == '1' && B == '2'", Conjoin(And(a, b), Eq("A", "1")).String())
	assert.Equal(t, "A == '1' || B == '2'", Disjoin(a, b).String())
	assert.Equal(t, "A == '1' || B == '2'", Disjoin(a, Eq("A", "1"), b, a).String())
	assert.Same(t, a, Disjoin(a, Eq("A", "1")))
}

func TestIdentifiers(t *testing.T) {
	n := And(Eq("B", "1"), Or(Eq("A", "2"), Function("f:between", []string{"C"}, "1", "2")), Eq("B", "3"))
	assert.Equal(t, []string{"A", "B", "C"}, Identifiers(n))
}

func TestBoundedRanges(t *testing.T) {
	lo, hi := Ge("AGE", "10"), Lt("AGE", "20")
	other := Eq("NAME", "x")
	and := And(lo, other, Ref(hi), Gt("SIZE", "5"))

	ranges, others := BoundedRanges(and, nil)
	require.Len(t, ranges, 1)
	r := ranges[0]
	assert.Equal(t, "AGE", r.Field)
	assert.Equal(t, "10", r.Lower)
	assert.Equal(t, "20", r.Upper)
	assert.True(t, r.LowerInclusive)
	assert.False(t, r.UpperInclusive)
	assert.Equal(t, []*Node{other, and.Child(3)}, others)

	assert.True(t, r.Contains("10"))
	assert.True(t, r.Contains("15"))
	assert.False(t, r.Contains("20"))

	marker := r.Node()
	back, ok := RangeOf(marker)
	require.True(t, ok)
	assert.Equal(t, "AGE", back.Field)
	assert.Equal(t, "((_Bounded_ = true) && (AGE >= '10' && (AGE < '20')))", marker.String())

	ranges, _ = BoundedRanges(and, func(string) bool { return false })
	assert.Empty(t, ranges)
}

func TestLeadingLiteral(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"abc", "abc"},
		{"abc.*", "abc"},
		{"^abc", "abc"},
		{"ab[cd]", "ab"},
		{"abc*", "ab"},
		{"(?i)abc", ""},
		{".*abc", ""},
		{"(ab)c.*", "abc"},
	}
	for _, tt := range tests {
		got, err := LeadingLiteral(tt.pattern)
		require.NoError(t, err, tt.pattern)
		assert.Equal(t, tt.want, got, tt.pattern)
	}

	_, err := LeadingLiteral("ab(")
	assert.Error(t, err)
}

func TestPrefixUpperBound(t *testing.T) {
	assert.Equal(t, "abd", PrefixUpperBound("abc"))
	assert.Equal(t, "", PrefixUpperBound(""))
	assert.Less(t, "abczzz", PrefixUpperBound("abc"))

	assert.Equal(t, "b", PrefixUpperBound("a\U0010FFFF"))
	assert.Equal(t, "b", PrefixUpperBound("a\U0010FFFF\U0010FFFF"))
	assert.Less(t, "a\U0010FFFFzzz", PrefixUpperBound("a\U0010FFFF"))
	assert.Equal(t, "", PrefixUpperBound("\U0010FFFF"))
	assert.Equal(t, "a\uE000", PrefixUpperBound("a\uD7FF"))
	assert.Less(t, "a\uD7FFzzz", PrefixUpperBound("a\uD7FF"))
}

func TestNode_JSON(t *testing.T) {
	n := And(
		Eq("A", "1"),
		Mark(IndexHole, Regex("B", "x.*")),
		Function("f:includeText", []string{"C"}, "v"),
		EqNull("D"),
	)
	data, err := json.Marshal(n)
	require.NoError(t, err)

	var got Node
	require.NoError(t, json.Unmarshal(data, &got))
	assert.True(t, Equal(n, &got))

	err = json.Unmarshal([]byte(`{"kind":"not"}`), &got)
	assert.Error(t, err)
}
