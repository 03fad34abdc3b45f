package local

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// Stop words carry no ranking signal.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true,
}

// tokenize splits text on spaces and punctuation, lowercases, and drops stop
// words and single characters.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		t := strings.ToLower(f)
		if len([]rune(t)) < 2 || stopWords[t] {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}

// tfidf scores every document against the query terms with
// tf = count/len and idf = ln((N+1)/(df+1)) + 1. Documents matching no
// term are left out.
func tfidf(query []string, docs [][]string) map[int]float64 {
	if len(query) == 0 || len(docs) == 0 {
		return nil
	}

	postings := make(map[string]map[int]int)
	for i, terms := range docs {
		for _, term := range terms {
			if postings[term] == nil {
				postings[term] = make(map[int]int)
			}
			postings[term][i]++
		}
	}

	n := float64(len(docs))
	scores := make(map[int]float64)
	seen := make(map[string]bool, len(query))
	for _, term := range query {
		if seen[term] {
			continue
		}
		seen[term] = true
		p := postings[term]
		if len(p) == 0 {
			continue
		}
		idf := math.Log((n+1)/(float64(len(p))+1)) + 1
		for i, count := range p {
			scores[i] += float64(count) / float64(len(docs[i])) * idf
		}
	}
	return scores
}

// ranked is a scored document position.
type ranked struct {
	pos   int
	score float64
}

// rank orders scores by descending score, then ascending id.
func rank(scores map[int]float64, ids []string) []ranked {
	out := make([]ranked, 0, len(scores))
	for pos, s := range scores {
		out = append(out, ranked{pos: pos, score: s})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].score != out[b].score {
			return out[a].score > out[b].score
		}
		return ids[out[a].pos] < ids[out[b].pos]
	})
	return out
}

// fuse combines rankings with reciprocal rank fusion: sum of 1/(k+rank).
func fuse(k float64, rankings ...[]ranked) map[int]float64 {
	fused := make(map[int]float64)
	for _, r := range rankings {
		for i, hit := range r {
			fused[hit.pos] += 1 / (k + float64(i+1))
		}
	}
	return fused
}
