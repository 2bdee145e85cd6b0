package processing_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/media-aggregator/internal/processing"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "punctuation", input: "Breaking!!!   news", want: "Breaking news"},
		{name: "entities", input: "Q&amp;A with the mayor", want: "Q A with the mayor"},
		{name: "collapse whitespace", input: "foo\n\nbar\t baz", want: "foo bar baz"},
		{name: "remove urls", input: "Read https://example.com/story today", want: "Read today"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, processing.CleanText(tt.input))
		})
	}
}

func TestKeywords(t *testing.T) {
	text := "The election results: turnout turnout turnout, senate senate and the house. 2024 2024 2024"
	got := processing.Keywords(text, 3, 3)
	require.Equal(t, []string{"turnout", "senate", "election"}, got)

	require.Nil(t, processing.Keywords("", 5, 3))
	require.Nil(t, processing.Keywords("the and of", 5, 2))
}

func TestKeywordsIgnoresURLWords(t *testing.T) {
	text := "markets rally rally https://example.com/markets-crash bonds"
	got := processing.Keywords(text, 0, 3)
	require.ElementsMatch(t, []string{"rally", "markets", "bonds"}, got)
}

func TestExtractURLs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "empty", input: "", want: nil},
		{name: "no urls", input: "Hello world", want: nil},
		{name: "single url", input: "See https://example.com for more", want: []string{"https://example.com"}},
		{name: "trailing punctuation", input: "Source: https://example.com/a.", want: []string{"https://example.com/a"}},
		{name: "multiple urls", input: "https://example.com or http://test.org", want: []string{"https://example.com", "http://test.org"}},
		{name: "duplicates", input: "https://example.com and https://example.com", want: []string{"https://example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, processing.ExtractURLs(tt.input))
		})
	}
}

func TestNormalizeLines(t *testing.T) {
	in := "  Headline  \r\n\n\n\n  body   text \n\n"
	require.Equal(t, "Headline\n\nbody text", processing.NormalizeLines(in))
	require.Equal(t, "", processing.NormalizeLines("   \n\n "))
}

func TestSnippet(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxWords int
		want     string
	}{
		{name: "empty", text: "", maxWords: 10, want: ""},
		{name: "first sentence", text: "Rates held steady. Markets shrugged.", maxWords: 10, want: "Rates held steady"},
		{name: "question", text: "Who won? Nobody knows.", maxWords: 10, want: "Who won"},
		{name: "truncated", text: "Officials confirmed the bridge will reopen next spring after repairs", maxWords: 4, want: "Officials confirmed the bridge..."},
		{name: "unlimited", text: "A short headline", maxWords: 0, want: "A short headline"},
		{name: "url only", text: "https://example.com", maxWords: 5, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, processing.Snippet(tt.text, tt.maxWords))
		})
	}
}
