package search

import (
	"strings"
	"unicode"
)

var fillerWords = func() map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(`a an and are as at be but by do for from
		have in is it not of on that the this to was with you`) {
		set[w] = struct{}{}
	}
	return set
}()

// queryTerms is the set of significant words in a search query. A hit whose
// content holds every term is treated as a verbatim match.
type queryTerms map[string]struct{}

func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
}

func newQueryTerms(query string) queryTerms {
	terms := make(queryTerms)
	for _, w := range words(query) {
		if _, skip := fillerWords[w]; !skip {
			terms[w] = struct{}{}
		}
	}
	return terms
}

// coveredBy reports whether content contains every term. An empty term set
// never matches, so a query of filler words marks nothing verbatim.
func (q queryTerms) coveredBy(content string) bool {
	if len(q) == 0 {
		return false
	}
	seen := make(map[string]struct{}, len(q))
	for _, w := range words(content) {
		if _, ok := q[w]; ok {
			seen[w] = struct{}{}
			if len(seen) == len(q) {
				return true
			}
		}
	}
	return false
}
