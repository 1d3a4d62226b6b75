// internal/proppath/path.go
package proppath

import (
	"slices"
	"strconv"
	"strings"
)

// New builds a path from plain property names.
func New(names ...string) Path {
	p := Path{Segments: make([]Segment, 0, len(names))}
	for _, n := range names {
		p.Segments = append(p.Segments, NewSegment(n))
	}
	return p
}

// String serializes the Path into its canonical representation.
func (p Path) String() string {
	var sb strings.Builder
	for i, segment := range p.Segments {
		if i > 0 {
			sb.WriteRune('.')
		}
		sb.WriteString(segment.Name)
		if segment.HasIndex() {
			sb.WriteRune('[')
			sb.WriteString(strconv.Itoa(segment.Index))
			sb.WriteRune(']')
		}
	}
	return sb.String()
}

// IsEmpty reports whether the path has no segments.
func (p Path) IsEmpty() bool {
	return len(p.Segments) == 0
}

// Equal checks two paths segment by segment.
func (p Path) Equal(other Path) bool {
	return slices.Equal(p.Segments, other.Segments)
}

// Child returns a copy of p extended with a named segment.
func (p Path) Child(name string) Path {
	return p.with(NewSegment(name))
}

// Element returns a copy of p whose last segment is indexed by i. An empty
// path cannot be indexed and is returned unchanged. A last segment that is
// already indexed is repeated, so nested lists read `grid[0].grid[1]`.
func (p Path) Element(i int) Path {
	if p.IsEmpty() {
		return p
	}
	last := p.Segments[len(p.Segments)-1]
	if last.HasIndex() {
		return p.with(NewSegmentWithIndex(last.Name, i))
	}
	out := p.clone()
	out.Segments[len(out.Segments)-1].Index = i
	return out
}

// Root returns the name of the first segment, which is the top-level
// property the path starts from.
func (p Path) Root() string {
	if p.IsEmpty() {
		return ""
	}
	return p.Segments[0].Name
}

func (p Path) with(s Segment) Path {
	out := Path{Segments: make([]Segment, len(p.Segments), len(p.Segments)+1)}
	copy(out.Segments, p.Segments)
	out.Segments = append(out.Segments, s)
	return out
}

func (p Path) clone() Path {
	return Path{Segments: slices.Clone(p.Segments)}
}
