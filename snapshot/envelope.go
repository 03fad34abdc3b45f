package snapshot

import (
	"encoding/json"
	"fmt"

	"github.com/poiesic/harvest/core"
)

// Envelope is the on-disk hand-off between a content source run and a later
// indexing pass.
type Envelope struct {
	Success         bool                    `json:"success"`
	Error           string                  `json:"error,omitempty"`
	RootURL         string                  `json:"root_url,omitempty"`
	SitemapURL      string                  `json:"sitemap_url,omitempty"`
	PagesScraped    int                     `json:"pages_scraped,omitempty"`
	TotalURLsFound  int                     `json:"total_urls_found,omitempty"`
	MaxDepthReached *int                    `json:"max_depth_reached,omitempty"`
	Results         []core.RawContentRecord `json:"results"`
}

// NewEnvelope builds a successful envelope from crawl output. summary may be nil
// for document uploads.
func NewEnvelope(records []core.RawContentRecord, summary core.CrawlSummary) *Envelope {
	if records == nil {
		records = []core.RawContentRecord{}
	}
	env := &Envelope{Success: true, Results: records}

	switch s := summary.(type) {
	case core.DeepSummary:
		env.RootURL = s.RootURL
		env.PagesScraped = s.PagesScraped
		depth := s.MaxDepthReached
		env.MaxDepthReached = &depth
	case core.SitemapSummary:
		env.SitemapURL = s.SitemapURL
		env.TotalURLsFound = s.TotalURLsFound
		env.PagesScraped = s.PagesScraped
	case core.SingleSummary:
		env.PagesScraped = 1
	}
	return env
}

// Failed builds an envelope recording a failed run.
func Failed(reason string) *Envelope {
	return &Envelope{Success: false, Error: reason, Results: []core.RawContentRecord{}}
}

// legacyEnvelope is the single-page shape written by older scrapers: the one
// record's fields sit at the top level next to success.
type legacyEnvelope struct {
	Success  bool            `json:"success"`
	Error    string          `json:"error,omitempty"`
	URL      string          `json:"url"`
	Title    string          `json:"title"`
	Content  *string         `json:"content"`
	Metadata core.Metadata   `json:"metadata"`
	Results  json.RawMessage `json:"results"`
}

// decode parses either envelope shape.
func decode(data []byte) (*Envelope, error) {
	var legacy legacyEnvelope
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if legacy.Results == nil && legacy.Content != nil {
		return &Envelope{
			Success: legacy.Success,
			Error:   legacy.Error,
			Results: []core.RawContentRecord{{
				URL:      legacy.URL,
				Title:    legacy.Title,
				Content:  *legacy.Content,
				Metadata: legacy.Metadata,
			}},
		}, nil
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if env.Results == nil {
		env.Results = []core.RawContentRecord{}
	}
	return &env, nil
}
