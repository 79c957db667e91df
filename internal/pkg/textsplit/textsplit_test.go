package textsplit

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTextShortInputIsSingleChunk(t *testing.T) {
	s := New(100, 20)
	assert.Equal(t, []string{"Refunds are accepted within 30 days."}, s.SplitText("Refunds are accepted within 30 days."))
}

func TestSplitTextPrefersParagraphBoundaries(t *testing.T) {
	s := New(30, 0)
	text := "first paragraph here\n\nsecond paragraph here"
	assert.Equal(t, []string{"first paragraph here", "second paragraph here"}, s.SplitText(text))
}

func TestSplitTextRespectsChunkSize(t *testing.T) {
	s := New(50, 10)
	text := strings.Repeat("lorem ipsum dolor sit amet ", 40)
	chunks := s.SplitText(text)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 50)
	}
}

func TestSplitTextOverlapsAdjacentChunks(t *testing.T) {
	s := New(20, 8)
	chunks := s.SplitText("aaa bbb ccc ddd eee fff ggg hhh")
	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		prevWords := strings.Fields(chunks[i-1])
		assert.Contains(t, chunks[i], prevWords[len(prevWords)-1])
	}
}

func TestSplitTextFallsBackToCharacters(t *testing.T) {
	s := New(4, 0)
	assert.Equal(t, []string{"abcd", "efgh", "ij"}, s.SplitText("abcdefghij"))
}

func TestSplitPagesKeepsPageNumbersAndGlobalIndex(t *testing.T) {
	s := New(1000, 200)
	chunks := s.SplitPages([]Page{
		{Number: 1, Text: "page one"},
		{Number: 2, Text: "   "},
		{Number: 3, Text: "page three"},
	})
	require.Len(t, chunks, 2)
	assert.Equal(t, Chunk{Index: 0, Page: 1, Text: "page one"}, chunks[0])
	assert.Equal(t, Chunk{Index: 1, Page: 3, Text: "page three"}, chunks[1])
}

func TestNewAppliesDefaults(t *testing.T) {
	s := New(0, -1)
	assert.Equal(t, DefaultChunkSize, s.chunkSize)
	assert.Equal(t, 0, s.chunkOverlap)
}
