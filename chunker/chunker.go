package chunker

import "strings"

const (
	// DefaultSize is the default window width in words.
	DefaultSize = 1000
	// DefaultOverlap is the default number of words shared by adjacent windows.
	DefaultOverlap = 200
)

// Span is one window of words cut from a text.
type Span struct {
	Index     int    // position of the span in the output
	Text      string // words joined by single spaces
	StartWord int    // first word, inclusive
	EndWord   int    // last word, exclusive
}

// Chunk splits text into overlapping word windows.
//
// Windows are size words wide and advance by size-overlap words; the last
// window is clipped to the remaining words. Every span holds at most size
// words and every word of text lands in at least one span. Whitespace is
// normalized to single spaces. Empty or whitespace-only text yields no spans.
//
// A size below 1 selects DefaultSize. An overlap that is negative or not
// smaller than size is treated as 0.
func Chunk(text string, size, overlap int) []Span {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if size < 1 {
		size = DefaultSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	stride := size - overlap

	spans := make([]Span, 0, len(words)/stride+1)
	for start := 0; start < len(words); start += stride {
		end := min(start+size, len(words))
		spans = append(spans, Span{
			Index:     len(spans),
			Text:      strings.Join(words[start:end], " "),
			StartWord: start,
			EndWord:   end,
		})
		if end == len(words) {
			break
		}
	}
	return spans
}

// Join reassembles spans produced by Chunk into the
// normalized text, dropping the words each span shares with its predecessor.
func Join(spans []Span) string {
	var words []string
	next := 0
	for _, s := range spans {
		w := strings.Fields(s.Text)
		skip := next - s.StartWord
		if skip < 0 {
			skip = 0
		}
		if skip < len(w) {
			words = append(words, w[skip:]...)
		}
		next = s.EndWord
	}
	return strings.Join(words, " ")
}

// WordCount returns the number of whitespace separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
