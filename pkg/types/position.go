package types

import (
	"fmt"
	"strings"
)

// Position is a zero-based location in a document.
// Character counts UTF-16 code units, matching editor-protocol conventions.
type Position struct {
	Line      int
	Character int
}

// Before reports whether p sorts strictly before other.
func (p Position) Before(other Position) bool {
	if p.Line != other.Line {
		return p.Line < other.Line
	}
	return p.Character < other.Character
}

// String renders the position as 1-based line:column for messages.
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line+1, p.Character+1)
}

// Range is a half-open span [Start, End) in a document.
type Range struct {
	Start Position
	End   Position
}

// NewRange builds a range from zero-based line/character pairs.
func NewRange(startLine, startChar, endLine, endChar int) Range {
	return Range{
		Start: Position{Line: startLine, Character: startChar},
		End:   Position{Line: endLine, Character: endChar},
	}
}

// IsEmpty reports whether the range covers no characters.
func (r Range) IsEmpty() bool {
	return !r.Start.Before(r.End)
}

// Contains reports whether pos lies inside the range. An empty range
// contains only its own start position.
func (r Range) Contains(pos Position) bool {
	if r.IsEmpty() {
		return pos == r.Start
	}
	return !pos.Before(r.Start) && pos.Before(r.End)
}

// Overlaps reports whether two ranges share at least one position.
// Empty ranges overlap anything that contains their start, and touch
// their neighbours inclusively.
func (r Range) Overlaps(other Range) bool {
	switch {
	case r.IsEmpty() && other.IsEmpty():
		return r.Start == other.Start
	case r.IsEmpty():
		return !r.Start.Before(other.Start) && !other.End.Before(r.Start)
	case other.IsEmpty():
		return !other.Start.Before(r.Start) && !r.End.Before(other.Start)
	}
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

// String renders the range for log and error messages.
func (r Range) String() string {
	return r.Start.String() + "-" + r.End.String()
}

// PositionAt converts a byte offset in text into a Position. The offset is
// clamped to the bounds of text.
func PositionAt(text string, offset int) Position {
	offset = max(0, min(offset, len(text)))
	prefix := text[:offset]
	lineStart := strings.LastIndexByte(prefix, '\n') + 1
	return Position{
		Line:      strings.Count(prefix, "\n"),
		Character: UTF16Len(prefix[lineStart:]),
	}
}

// UTF16Len returns the length of s in UTF-16 code units.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}
