// Package treepath encodes comment positions as materialized paths.
//
// A path is the chain of comment ids from the thread root down to the node
// itself, each id zero-padded to a fixed width and joined with ".":
//
//	000000001                       root comment 1
//	000000001.000000002             reply 2 under comment 1
//	000000001.000000002.000000007   reply 7 under reply 2
//
// Because every segment has the same width, comparing two encoded paths as
// plain strings yields the same order as comparing them segment-by-segment
// as integers. That order is a pre-order traversal of the tree, so a
// database can sort by the path column directly and can find all
// descendants of a node with a single range scan over an ordinary index.
package treepath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// Width is the number of digits in every path segment.
	Width = 9

	// MaxID is the largest id that fits in a segment.
	MaxID int64 = 999_999_999

	// Separator joins segments.
	Separator = "."

	// MaxDepth is the deepest level a comment may have. Roots are level 1.
	MaxDepth = 100

	// MaxLen is the encoded length of a MaxDepth path and the width of the
	// column storing it.
	MaxLen = MaxDepth*(Width+len(Separator)) - len(Separator)

	// rangeEnd is the byte right after Separator in ASCII ('.' + 1 == '/').
	// It closes the half-open descendant range of a path.
	rangeEnd = "/"
)

// ErrMalformed is returned by Parse for strings that are not valid paths.
var ErrMalformed = errors.New("malformed tree path")

// Path is an encoded materialized path. The zero value is the empty path
// and is never stored.
type Path string

// Segment encodes a single id. It panics when id does not fit the fixed
// width: running out of ids is a capacity limit of the scheme, not a
// condition callers can recover from.
func Segment(id int64) string {
	if id <= 0 || id > MaxID {
		panic(fmt.Sprintf("treepath: id %d out of range [1, %d]", id, MaxID))
	}
	return fmt.Sprintf("%0*d", Width, id)
}

// Root returns the single-segment path of a top-level comment.
func Root(id int64) Path {
	return Path(Segment(id))
}

// Child appends id to parent. An empty parent yields a root path.
func Child(parent Path, id int64) Path {
	if parent == "" {
		return Root(id)
	}
	return Path(string(parent) + Separator + Segment(id))
}

// Parse validates s and returns it as a Path.
func Parse(s string) (Path, error) {
	if s == "" {
		return "", ErrMalformed
	}
	segs := strings.Split(s, Separator)
	if len(segs) > MaxDepth {
		return "", fmt.Errorf("%w: %d levels, at most %d", ErrMalformed, len(segs), MaxDepth)
	}
	for _, seg := range segs {
		if len(seg) != Width {
			return "", fmt.Errorf("%w: segment %q has width %d", ErrMalformed, seg, len(seg))
		}
		n, err := strconv.ParseInt(seg, 10, 64)
		if err != nil || n <= 0 {
			return "", fmt.Errorf("%w: segment %q", ErrMalformed, seg)
		}
	}
	return Path(s), nil
}

// String implements fmt.Stringer.
func (p Path) String() string { return string(p) }

// Level is the depth of the node, equal to its segment count. Roots are 1.
func (p Path) Level() int {
	if p == "" {
		return 0
	}
	return strings.Count(string(p), Separator) + 1
}

// RootSegment returns the first segment. Every comment of a thread shares it,
// and as a Path it is the thread's top-level comment.
func (p Path) RootSegment() string {
	s := string(p)
	if i := strings.Index(s, Separator); i >= 0 {
		return s[:i]
	}
	return s
}

// Parent returns the path with the last segment removed. ok is false for
// roots and the empty path.
func (p Path) Parent() (parent Path, ok bool) {
	s := string(p)
	i := strings.LastIndex(s, Separator)
	if i < 0 {
		return "", false
	}
	return Path(s[:i]), true
}

// ID returns the id encoded in the last segment.
func (p Path) ID() int64 {
	s := string(p)
	if i := strings.LastIndex(s, Separator); i >= 0 {
		s = s[i+1:]
	}
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

// Segments decodes the path into its ids, root first.
func (p Path) Segments() []int64 {
	if p == "" {
		return nil
	}
	parts := strings.Split(string(p), Separator)
	out := make([]int64, 0, len(parts))
	for _, seg := range parts {
		n, _ := strconv.ParseInt(seg, 10, 64)
		out = append(out, n)
	}
	return out
}

// HasRoomForChild reports whether a reply to p would stay within MaxDepth.
func (p Path) HasRoomForChild() bool {
	return p.Level() < MaxDepth
}

// DescendantRange returns the half-open string interval [lo, hi) holding
// exactly the strict descendants of p. It lets callers express subtree
// queries as "path >= lo AND path < hi", which any B-tree index serves.
func (p Path) DescendantRange() (lo, hi string) {
	return string(p) + Separator, string(p) + rangeEnd
}
