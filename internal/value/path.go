// Package value implements the path-aware value model (component C1):
// a representation of an input document in which every scalar, list, and
// map retains the JSON-Pointer-style path by which it was reached.
package value

import (
	"strconv"
	"strings"
)

// Location records where a value originally appeared in its source
// document. The zero Location (0,0) marks a synthetic value that has no
// source position, e.g. one produced by a built-in function.
type Location struct {
	Line   int
	Column int
}

// Segment is one step of a Path: either a map key or a list index.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// KeySegment builds a map-key path segment.
func KeySegment(key string) Segment { return Segment{Key: key} }

// IndexSegment builds a list-index path segment.
func IndexSegment(i int) Segment { return Segment{Index: i, IsIndex: true} }

// String renders a segment the way it appears in a serialized Path:
// a decimal integer for an index, the literal key otherwise.
func (s Segment) String() string {
	if s.IsIndex {
		return strconv.Itoa(s.Index)
	}
	return s.Key
}

// Path is the ordered sequence of segments by which a Value was reached
// from the root of its document, plus the source Location of the value at
// that path.
type Path struct {
	Segments []Segment
	Location Location
}

// Root returns the path of the document root: "/".
func Root() Path {
	return Path{}
}

// Extend returns a new Path with seg appended. The receiver is not mutated.
func (p Path) Extend(seg Segment) Path {
	segs := make([]Segment, len(p.Segments)+1)
	copy(segs, p.Segments)
	segs[len(p.Segments)] = seg
	return Path{Segments: segs}
}

// ExtendKey is a convenience wrapper around Extend(KeySegment(key)).
func (p Path) ExtendKey(key string) Path { return p.Extend(KeySegment(key)) }

// ExtendIndex is a convenience wrapper around Extend(IndexSegment(i)).
func (p Path) ExtendIndex(i int) Path { return p.Extend(IndexSegment(i)) }

// WithLocation returns a copy of p tagged with loc.
func (p Path) WithLocation(loc Location) Path {
	p.Location = loc
	return p
}

// Relative returns the last segment of the path, i.e. the segment by which
// this value was reached from its immediate parent. The zero Segment is
// returned for the root path.
func (p Path) Relative() Segment {
	if len(p.Segments) == 0 {
		return Segment{}
	}
	return p.Segments[len(p.Segments)-1]
}

// DropLast returns the path of this value's parent.
func (p Path) DropLast() Path {
	if len(p.Segments) == 0 {
		return p
	}
	return Path{Segments: p.Segments[:len(p.Segments)-1]}
}

// String renders the path in its serialized form: "/seg1/seg2/0/key". The
// root path renders as "/".
func (p Path) String() string {
	if len(p.Segments) == 0 {
		return "/"
	}
	var sb strings.Builder
	for _, seg := range p.Segments {
		sb.WriteByte('/')
		sb.WriteString(seg.String())
	}
	return sb.String()
}
