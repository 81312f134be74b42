package expr

import (
	"regexp"
	"regexp/syntax"
	"strings"
	"unicode/utf8"
)

// LeadingLiteral returns the case-sensitive literal every match of pattern
// starts with. Patterns are matched against whole values, so begin anchors
// are skipped. The result is empty when no such literal exists.
func LeadingLiteral(pattern string) (string, error) {
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	literalPrefix(re.Simplify(), &b)
	return b.String(), nil
}

func literalPrefix(re *syntax.Regexp, b *strings.Builder) bool {
	switch re.Op {
	case syntax.OpLiteral:
		if re.Flags&syntax.FoldCase != 0 {
			return false
		}
		b.WriteString(string(re.Rune))
		return true
	case syntax.OpConcat:
		for _, sub := range re.Sub {
			if !literalPrefix(sub, b) {
				return false
			}
		}
		return true
	case syntax.OpCapture:
		return literalPrefix(re.Sub[0], b)
	case syntax.OpBeginText, syntax.OpBeginLine, syntax.OpEmptyMatch:
		return true
	}
	return false
}

// PrefixUpperBound returns the smallest string greater than every string
// starting with prefix, obtained by incrementing its last rune. Trailing
// runes that cannot be incremented are dropped and the rune before them is
// incremented instead. It returns the empty string, meaning unbounded, when
// no rune can be incremented.
func PrefixUpperBound(prefix string) string {
	r := []rune(prefix)
	for i := len(r) - 1; i >= 0; i-- {
		switch r[i] {
		case utf8.MaxRune:
			continue
		case surrogateMin - 1:
			r[i] = surrogateMax + 1
		default:
			r[i]++
		}
		return string(r[:i+1])
	}
	return ""
}

const (
	surrogateMin = 0xD800
	surrogateMax = 0xDFFF
)

// CompileValuePattern compiles pattern so that it must match a whole value.
func CompileValuePattern(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(`^(?:` + pattern + `)$`)
}
