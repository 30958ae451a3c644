package document

import (
	"strings"
	"unicode/utf8"

	"github.com/dshills/gocontext-analysis/pkg/types"
)

// Change is one content change in an ordered batch. A nil Range replaces
// the whole text.
type Change struct {
	Range *types.Range
	Text  string
}

// OffsetAt converts a line/character position (UTF-16 characters) into a
// byte offset into text. Positions past the end of a line clamp to the end
// of that line; lines past the end of the text clamp to len(text). A
// character that falls inside a surrogate pair rounds up past the rune.
func OffsetAt(text string, pos types.Position) int {
	if pos.Line < 0 {
		return 0
	}

	lineStart := 0
	for line := 0; line < pos.Line; line++ {
		i := strings.IndexByte(text[lineStart:], '\n')
		if i < 0 {
			return len(text)
		}
		lineStart += i + 1
	}

	off := lineStart
	units := 0
	for off < len(text) && units < pos.Character {
		if isLineEnd(text, off) {
			break
		}
		r, size := utf8.DecodeRuneInString(text[off:])
		units += utf16Width(r)
		off += size
	}
	return off
}

// ByteOffset converts a UTF-16 code-unit offset from the start of the text
// into a byte offset, clamped to the text bounds.
func ByteOffset(text string, units int) int {
	if units <= 0 {
		return 0
	}
	seen := 0
	for off, r := range text {
		if seen >= units {
			return off
		}
		seen += utf16Width(r)
	}
	return len(text)
}

// RangeFor returns the byte offsets addressed by a line/character range
func RangeFor(text string, rng types.Range) (start, end int) {
	start = OffsetAt(text, rng.Start)
	end = OffsetAt(text, rng.End)
	if end < start {
		end = start
	}
	return start, end
}

// splice replaces text[start:end] with insert. Offsets are clamped so a
// misbehaving caller can never corrupt the text.
func splice(text string, start, end int, insert string) string {
	start = clamp(start, 0, len(text))
	end = clamp(end, start, len(text))
	var b strings.Builder
	b.Grow(len(text) - (end - start) + len(insert))
	b.WriteString(text[:start])
	b.WriteString(insert)
	b.WriteString(text[end:])
	return b.String()
}

// applyChange applies a single change to text
func applyChange(text string, c Change) string {
	if c.Range == nil {
		return c.Text
	}
	start, end := RangeFor(text, *c.Range)
	return splice(text, start, end, c.Text)
}

func isLineEnd(text string, off int) bool {
	switch text[off] {
	case '\n':
		return true
	case '\r':
		return off+1 < len(text) && text[off+1] == '\n'
	}
	return false
}

func utf16Width(r rune) int {
	if r >= 0x10000 {
		return 2
	}
	return 1
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
