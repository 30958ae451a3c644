package document

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/gocontext-analysis/internal/analysis"
	"github.com/dshills/gocontext-analysis/pkg/types"
)

func testBundle(version int32, diags ...types.Diagnostic) *analysis.Bundle {
	return &analysis.Bundle{
		Parse:       &analysis.ParseResult{},
		Diagnostics: diags,
		Version:     version,
	}
}

func errorDiag(msg string) types.Diagnostic {
	return types.Diagnostic{
		Range:    types.NewRange(0, 0, 0, 1),
		Severity: types.SeverityError,
		Code:     types.CodeUnresolvedReference,
		Message:  msg,
	}
}

func TestStoreOpenGetClose(t *testing.T) {
	s := NewStore()

	doc := s.Open("file:///a.go", "package a", 1)
	require.NotNil(t, doc)
	assert.Equal(t, int32(1), doc.Version)
	assert.IsType(t, Unanalyzed{}, doc.State)
	assert.Empty(t, doc.Diagnostics)

	got := s.Get("file:///a.go")
	require.NotNil(t, got)
	assert.Equal(t, "package a", got.Text)

	assert.Nil(t, s.Get("file:///missing.go"))
	_, err := s.Lookup("file:///missing.go")
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	closed := s.Close("file:///a.go")
	require.NotNil(t, closed)
	assert.Nil(t, s.Get("file:///a.go"))
	assert.Nil(t, s.Close("file:///a.go"), "closing twice returns nil")
}

func TestStoreReopenReplaces(t *testing.T) {
	s := NewStore()
	s.Open("a", "one", 1)
	require.NoError(t, s.SetAnalyzed("a", s.Get("a").Revision(), testBundle(1, errorDiag("x"))))

	doc := s.Open("a", "two", 5)
	assert.Equal(t, "two", doc.Text)
	assert.Equal(t, int32(5), doc.Version)
	assert.False(t, doc.IsAnalyzed())
	assert.Empty(t, doc.Diagnostics)
}

func TestStoreSnapshotsAreIsolated(t *testing.T) {
	s := NewStore()
	s.Open("a", "x", 1)
	require.NoError(t, s.SetAnalyzed("a", s.Get("a").Revision(), testBundle(1, errorDiag("x"))))

	snap := s.Get("a")
	snap.Text = "mutated"
	snap.Diagnostics[0].Message = "mutated"

	fresh := s.Get("a")
	assert.Equal(t, "x", fresh.Text)
	assert.Equal(t, "x", fresh.Diagnostics[0].Message)
}

func TestStoreUnknownURI(t *testing.T) {
	s := NewStore()

	assert.ErrorIs(t, s.Update("nope", "x", 2), ErrDocumentNotFound)
	assert.ErrorIs(t, s.ApplyEdit("nope", types.NewRange(0, 0, 0, 0), "x", 2), ErrDocumentNotFound)
	assert.ErrorIs(t, s.ApplyOffsetEdit("nope", 0, 0, "x", 2), ErrDocumentNotFound)
	assert.ErrorIs(t, s.ApplyChanges("nope", 2, nil), ErrDocumentNotFound)
	assert.ErrorIs(t, s.SetParsed("nope", Revision{Version: 1}, &analysis.ParseResult{}), ErrDocumentNotFound)
	assert.ErrorIs(t, s.SetAnalyzed("nope", Revision{Version: 1}, testBundle(1)), ErrDocumentNotFound)
}

func TestStoreApplyEdit(t *testing.T) {
	tests := []struct {
		name string
		text string
		rng  types.Range
		with string
		want string
	}{
		{
			name: "insert in middle",
			text: "ab",
			rng:  types.NewRange(0, 1, 0, 1),
			with: "X",
			want: "aXb",
		},
		{
			name: "insert at start",
			text: "abc",
			rng:  types.NewRange(0, 0, 0, 0),
			with: ">",
			want: ">abc",
		},
		{
			name: "append at end",
			text: "abc\ndef",
			rng:  types.NewRange(1, 3, 1, 3),
			with: "!",
			want: "abc\ndef!",
		},
		{
			name: "multi-line delete",
			text: "one\ntwo\nthree",
			rng:  types.NewRange(0, 1, 2, 2),
			with: "",
			want: "oree",
		},
		{
			name: "multi-line insert",
			text: "ab",
			rng:  types.NewRange(0, 1, 0, 2),
			with: "1\n2\n",
			want: "a1\n2\n",
		},
		{
			name: "crlf line endings",
			text: "ab\r\ncd",
			rng:  types.NewRange(1, 0, 1, 1),
			with: "X",
			want: "ab\r\nXd",
		},
		{
			name: "character past end of line clamps before newline",
			text: "ab\r\ncd",
			rng:  types.NewRange(0, 99, 0, 99),
			with: "!",
			want: "ab!\r\ncd",
		},
		{
			name: "line past end clamps to end of text",
			text: "ab",
			rng:  types.NewRange(7, 0, 9, 0),
			with: "c",
			want: "abc",
		},
		{
			name: "inverted range collapses to start",
			text: "abcd",
			rng:  types.NewRange(0, 3, 0, 1),
			with: "X",
			want: "abcXd",
		},
		{
			name: "surrogate pair counts as two characters",
			text: "a\U0001F600b",
			rng:  types.NewRange(0, 3, 0, 4),
			with: "c",
			want: "a\U0001F600c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			s.Open("u", tt.text, 1)
			require.NoError(t, s.ApplyEdit("u", tt.rng, tt.with, 2))

			doc := s.Get("u")
			assert.Equal(t, tt.want, doc.Text)
			assert.Equal(t, int32(2), doc.Version)
		})
	}
}

func TestStoreApplyOffsetEdit(t *testing.T) {
	s := NewStore()
	s.Open("u", "héllo \U0001F600 world", 1)

	// "héllo " is 6 units, the emoji is 2
	require.NoError(t, s.ApplyOffsetEdit("u", 6, 8, "there", 2))
	assert.Equal(t, "héllo there world", s.Get("u").Text)

	require.NoError(t, s.ApplyOffsetEdit("u", 100, 200, "!", 3))
	assert.Equal(t, "héllo there world!", s.Get("u").Text)

	require.NoError(t, s.ApplyOffsetEdit("u", -5, 1, "H", 4))
	assert.Equal(t, "Héllo there world!", s.Get("u").Text)
}

func TestStoreApplyChanges(t *testing.T) {
	s := NewStore()
	s.Open("u", "hello", 1)

	rng := types.NewRange(0, 5, 0, 5)
	err := s.ApplyChanges("u", 4, []Change{
		{Range: &rng, Text: " world"},
		{Text: "replaced"},
		{Range: &types.Range{Start: types.Position{Line: 0, Character: 0}, End: types.Position{Line: 0, Character: 1}}, Text: "R"},
	})
	require.NoError(t, err)

	doc := s.Get("u")
	assert.Equal(t, "Replaced", doc.Text)
	assert.Equal(t, int32(4), doc.Version)
}

func TestStoreDiagnosticsSurviveInvalidation(t *testing.T) {
	s := NewStore()
	s.Open("u", "x", 1)

	prior := []types.Diagnostic{errorDiag("undefined: x")}
	require.NoError(t, s.SetAnalyzed("u", s.Get("u").Revision(), testBundle(1, prior...)))
	assert.True(t, s.Get("u").IsAnalyzed())

	require.NoError(t, s.Update("u", "xy", 2))
	doc := s.Get("u")
	assert.False(t, doc.IsParsed())
	assert.Nil(t, doc.Bundle())
	assert.Equal(t, prior, doc.Diagnostics)

	require.NoError(t, s.ApplyEdit("u", types.NewRange(0, 0, 0, 0), "z", 3))
	assert.Equal(t, prior, s.Get("u").Diagnostics)

	require.NoError(t, s.SetAnalyzed("u", s.Get("u").Revision(), testBundle(3)))
	assert.Empty(t, s.Get("u").Diagnostics)
}

func TestStoreInvalidateKeepsVersion(t *testing.T) {
	s := NewStore()
	s.Open("u", "x", 4)
	prior := []types.Diagnostic{errorDiag("undefined: x")}
	require.NoError(t, s.SetAnalyzed("u", s.Get("u").Revision(), testBundle(4, prior...)))

	require.NoError(t, s.Invalidate("u"))
	doc := s.Get("u")
	assert.Equal(t, int32(4), doc.Version)
	assert.Nil(t, doc.Bundle())
	assert.Equal(t, prior, doc.Diagnostics)

	assert.ErrorIs(t, s.Invalidate("missing"), ErrDocumentNotFound)
}

func TestStoreWriteBackFence(t *testing.T) {
	s := NewStore()
	stale := s.Open("u", "x", 1).Revision()
	require.NoError(t, s.Update("u", "y", 2))

	err := s.SetAnalyzed("u", stale, testBundle(1, errorDiag("old")))
	assert.ErrorIs(t, err, ErrStaleVersion)

	doc := s.Get("u")
	assert.False(t, doc.IsAnalyzed())
	assert.Empty(t, doc.Diagnostics)

	assert.ErrorIs(t, s.SetParsed("u", stale, &analysis.ParseResult{}), ErrStaleVersion)
}

func TestStoreWriteBackFence_SameVersion(t *testing.T) {
	tests := []struct {
		name   string
		change func(s *Store)
		text   string
	}{
		{
			name:   "re-open at the same version",
			change: func(s *Store) { s.Open("u", "clean", 1) },
			text:   "clean",
		},
		{
			name:   "edit that keeps the version",
			change: func(s *Store) { require.NoError(t, s.Update("u", "clean", 1)) },
			text:   "clean",
		},
		{
			name:   "invalidation",
			change: func(s *Store) { require.NoError(t, s.Invalidate("u")) },
			text:   "a?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			stale := s.Open("u", "a?", 1).Revision()
			tt.change(s)

			err := s.SetAnalyzed("u", stale, testBundle(1, errorDiag("undefined: a")))
			assert.ErrorIs(t, err, ErrStaleVersion)
			assert.ErrorIs(t, s.SetParsed("u", stale, &analysis.ParseResult{}), ErrStaleVersion)

			doc := s.Get("u")
			assert.Equal(t, tt.text, doc.Text)
			assert.Equal(t, int32(1), doc.Version)
			assert.False(t, doc.IsParsed())
			assert.Empty(t, doc.Diagnostics)

			require.NoError(t, s.SetAnalyzed("u", doc.Revision(), testBundle(1)))
			assert.True(t, s.Get("u").IsAnalyzed())
		})
	}
}

func TestStoreGenerationIncreases(t *testing.T) {
	s := NewStore()
	g1 := s.Open("u", "x", 1).Generation
	require.NoError(t, s.Update("u", "y", 2))
	g2 := s.Get("u").Generation
	require.NoError(t, s.Invalidate("u"))
	g3 := s.Get("u").Generation
	g4 := s.Open("v", "z", 1).Generation

	assert.Less(t, g1, g2)
	assert.Less(t, g2, g3)
	assert.Less(t, g3, g4)
	assert.Equal(t, "v2#3", s.Get("u").Revision().String())
}

func TestStoreSetParsedDoesNotDowngrade(t *testing.T) {
	s := NewStore()
	s.Open("u", "x", 1)

	require.NoError(t, s.SetParsed("u", s.Get("u").Revision(), &analysis.ParseResult{}))
	assert.IsType(t, Parsed{}, s.Get("u").State)

	require.NoError(t, s.SetAnalyzed("u", s.Get("u").Revision(), testBundle(1)))
	require.NoError(t, s.SetParsed("u", s.Get("u").Revision(), &analysis.ParseResult{}))
	assert.IsType(t, Analyzed{}, s.Get("u").State)
}

func TestStoreQueries(t *testing.T) {
	s := NewStore()
	s.Open("a", "one\ntwo", 1)
	s.Open("b", "three", 1)
	s.Open("c", "\U0001F600", 1)

	require.NoError(t, s.SetParsed("b", s.Get("b").Revision(), &analysis.ParseResult{}))
	require.NoError(t, s.SetAnalyzed("c", s.Get("c").Revision(), testBundle(1, errorDiag("bad"))))

	assert.Equal(t, []string{"a", "b", "c"}, s.URIs())
	assert.Equal(t, []string{"a"}, s.Unparsed())
	assert.Equal(t, []string{"b"}, s.ParsedNotAnalyzed())
	assert.Equal(t, []string{"c"}, s.WithErrors())

	st := s.Stats()
	assert.Equal(t, Stats{Open: 3, Parsed: 2, Analyzed: 1, Lines: 4, Characters: 7 + 5 + 2}, st)
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore()
	s.Open("u", "", 1)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.Get("u")
				_ = s.Stats()
				_ = s.WithErrors()
			}
		}()
	}

	for v := int32(2); v < 200; v++ {
		require.NoError(t, s.ApplyEdit("u", types.NewRange(0, 0, 0, 0), "a", v))
	}
	wg.Wait()

	doc := s.Get("u")
	assert.Len(t, doc.Text, 198)
	assert.Equal(t, int32(199), doc.Version)
}

func TestPositionConversion(t *testing.T) {
	text := "ab\r\n\U0001F600c\nend"

	assert.Equal(t, 0, OffsetAt(text, types.Position{Line: 0, Character: 0}))
	assert.Equal(t, 2, OffsetAt(text, types.Position{Line: 0, Character: 2}))
	assert.Equal(t, 4, OffsetAt(text, types.Position{Line: 1, Character: 0}))
	assert.Equal(t, 8, OffsetAt(text, types.Position{Line: 1, Character: 2}))
	// mid-surrogate rounds up past the rune
	assert.Equal(t, 8, OffsetAt(text, types.Position{Line: 1, Character: 1}))
	assert.Equal(t, len(text), OffsetAt(text, types.Position{Line: 5, Character: 0}))

	assert.Equal(t, types.Position{Line: 1, Character: 2}, types.PositionAt(text, 8))
	assert.Equal(t, types.Position{Line: 2, Character: 3}, types.PositionAt(text, len(text)))
	assert.Equal(t, types.Position{Line: 0, Character: 0}, types.PositionAt(text, -1))

	assert.Equal(t, 3, types.UTF16Len("a\U0001F600"))
	assert.Equal(t, 5, ByteOffset("a\U0001F600b", 3))
}

func TestPathFromURI(t *testing.T) {
	assert.Equal(t, "/tmp/a.go", PathFromURI("file:///tmp/a.go"))
	assert.Equal(t, "a.txt", PathFromURI("a.txt"))
	assert.Equal(t, "file:///tmp/a.go", URIFromPath("/tmp/a.go"))
}
