// Package processing holds the text helpers shared by the scraper and the
// CLI previews: URL extraction, cleanup, keyword ranking and snippets.
package processing

import (
	"html"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

var (
	urlPattern    = regexp.MustCompile(`https?://[^\s<>"']+`)
	spaces        = regexp.MustCompile(`[ \t\f\v\r]+`)
	blankLines    = regexp.MustCompile(`\n{3,}`)
	whitespace    = regexp.MustCompile(`\s+`)
	nonWordChars  = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	sentenceMarks = ".!?"
)

var englishStopwords = map[string]struct{}{
	"a": {}, "about": {}, "after": {}, "all": {}, "also": {}, "an": {}, "and": {},
	"are": {}, "as": {}, "at": {}, "be": {}, "been": {}, "but": {}, "by": {},
	"can": {}, "for": {}, "from": {}, "had": {}, "has": {}, "have": {}, "he": {},
	"her": {}, "his": {}, "how": {}, "if": {}, "in": {}, "into": {}, "is": {},
	"it": {}, "its": {}, "more": {}, "new": {}, "not": {}, "of": {}, "on": {},
	"or": {}, "our": {}, "out": {}, "said": {}, "she": {}, "so": {}, "than": {},
	"that": {}, "the": {}, "their": {}, "them": {}, "there": {}, "they": {},
	"this": {}, "to": {}, "up": {}, "was": {}, "we": {}, "were": {}, "what": {},
	"when": {}, "which": {}, "who": {}, "will": {}, "with": {}, "would": {},
	"you": {}, "your": {},
}

// ExtractURLs returns the distinct http(s) URLs in input, in order of appearance.
func ExtractURLs(input string) []string {
	matches := urlPattern.FindAllString(input, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	urls := make([]string, 0, len(matches))
	for _, u := range matches {
		u = strings.TrimRight(u, ".,;:)")
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	return urls
}

// StripURLs replaces every URL in input with a single space.
func StripURLs(input string) string {
	return urlPattern.ReplaceAllString(input, " ")
}

// CleanText unescapes HTML entities and drops URLs and punctuation,
// leaving single-spaced words.
func CleanText(input string) string {
	if input == "" {
		return ""
	}
	s := html.UnescapeString(input)
	s = StripURLs(s)
	s = nonWordChars.ReplaceAllString(s, " ")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NormalizeLines trims every line and squeezes runs of blank lines, which is
// what OCR output mostly needs before it is saved.
func NormalizeLines(input string) string {
	lines := strings.Split(strings.ReplaceAll(input, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaces.ReplaceAllString(line, " "))
	}
	out := blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(out)
}

// Keywords ranks the words of text by frequency, ignoring English stopwords
// and words shorter than minLen runes. Ties are broken alphabetically.
func Keywords(text string, limit, minLen int) []string {
	clean := strings.ToLower(CleanText(text))
	if clean == "" {
		return nil
	}

	freq := make(map[string]int)
	for _, token := range strings.Fields(clean) {
		token = strings.TrimFunc(token, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if len([]rune(token)) < minLen || isNumeric(token) {
			continue
		}
		if _, skip := englishStopwords[token]; skip {
			continue
		}
		freq[token]++
	}
	if len(freq) == 0 {
		return nil
	}

	words := make([]string, 0, len(freq))
	for word := range freq {
		words = append(words, word)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] == freq[words[j]] {
			return words[i] < words[j]
		}
		return freq[words[i]] > freq[words[j]]
	})

	if limit > 0 && limit < len(words) {
		words = words[:limit]
	}
	return words
}

// Snippet returns the first sentence of text, cut to maxWords words with a
// trailing ellipsis. maxWords <= 0 disables the cut.
func Snippet(text string, maxWords int) string {
	s := StripURLs(text)
	if end := strings.IndexAny(s, sentenceMarks); end > 0 {
		s = s[:end]
	}

	words := strings.Fields(s)
	if len(words) == 0 {
		return ""
	}
	if maxWords > 0 && len(words) > maxWords {
		return strings.Join(words[:maxWords], " ") + "..."
	}
	return strings.Join(words, " ")
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
