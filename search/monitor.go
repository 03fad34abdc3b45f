package search

import (
	"github.com/poiesic/harvest/core"
	"github.com/poiesic/harvest/index"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string, mode core.SearchMode)
	AfterQueryEmbedding(vector []float32)
	AfterIndexQuery(hits []index.Hit)
	VerbatimHit(result *core.SearchResult)
	Finish(results []core.SearchResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ core.SearchMode) {}
func (n *noopMonitor) AfterQueryEmbedding(_ []float32)   {}
func (n *noopMonitor) AfterIndexQuery(_ []index.Hit)     {}
func (n *noopMonitor) VerbatimHit(_ *core.SearchResult)  {}
func (n *noopMonitor) Finish(_ []core.SearchResult)      {}
