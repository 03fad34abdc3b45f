package mock

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"
)

// Dimension is the length of every MockEmbedder vector.
const Dimension = 384

// MockEmbedder stands in for ai.Embedder. Set EmbedTextFunc or
// EmbedTextsFunc to override the word-bucket vectors.
type MockEmbedder struct {
	EmbedTextFunc  func(ctx context.Context, text string) ([]float32, error)
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	mu      sync.Mutex
	calls   int
	batches []int
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{}
}

func (m *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	override := m.EmbedTextFunc
	m.mu.Unlock()

	if override != nil {
		return override(ctx, text)
	}
	return bucketVector(text), nil
}

func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	m.batches = append(m.batches, len(texts))
	override := m.EmbedTextsFunc
	m.mu.Unlock()

	if override != nil {
		return override(ctx, texts)
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, bucketVector(text))
	}
	return out, nil
}

// CallCount counts EmbedText and EmbedTexts calls together.
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// BatchSizes lists the input length of each EmbedTexts call, oldest first.
func (m *MockEmbedder) BatchSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.batches...)
}

// Reset drops recorded calls and any overrides.
func (m *MockEmbedder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls, m.batches = 0, nil
	m.EmbedTextFunc, m.EmbedTextsFunc = nil, nil
}

// bucketVector counts each lowercased word of text into one of Dimension
// buckets by FNV hash, then L2-normalizes. Texts sharing words therefore
// have positive cosine similarity. Text without words gets a fixed
// pseudo-random unit vector derived from its bytes.
func bucketVector(text string) []float32 {
	v := make([]float32, Dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		v[hash32(w)%Dimension]++
	}
	if len(words) == 0 {
		seed := hash32(text)
		for i := range v {
			seed = seed*1664525 + 1013904223
			v[i] = float32(seed%1000) / 1000
		}
	}

	var sq float64
	for _, x := range v {
		sq += float64(x) * float64(x)
	}
	if sq == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sq))
	for i := range v {
		v[i] *= inv
	}
	return v
}

func hash32(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}
