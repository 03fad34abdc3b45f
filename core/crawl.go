package core

import "fmt"

// CrawlMode names a crawl strategy.
type CrawlMode string

const (
	CrawlModeSingle  CrawlMode = "single"
	CrawlModeDeep    CrawlMode = "deep"
	CrawlModeSitemap CrawlMode = "sitemap"
)

const (
	DefaultDeepMaxDepth    = 3
	DefaultDeepMaxPages    = 50
	DefaultSitemapMaxPages = 100
)

// CrawlConfig is the mode-specific configuration of a scrape job.
// The set of implementations is closed: SingleConfig, DeepConfig and SitemapConfig.
type CrawlConfig interface {
	Mode() CrawlMode
	crawlConfig()
}

// SingleConfig fetches exactly one page.
type SingleConfig struct{}

// DeepConfig drives a bounded breadth-first crawl from the seed URL.
type DeepConfig struct {
	MaxDepth int
	MaxPages int
}

// SitemapConfig fetches the pages listed in an XML sitemap.
type SitemapConfig struct {
	MaxPages int
}

func (SingleConfig) Mode() CrawlMode  { return CrawlModeSingle }
func (DeepConfig) Mode() CrawlMode    { return CrawlModeDeep }
func (SitemapConfig) Mode() CrawlMode { return CrawlModeSitemap }

func (SingleConfig) crawlConfig()  {}
func (DeepConfig) crawlConfig()    {}
func (SitemapConfig) crawlConfig() {}

// NewCrawlConfig builds the configuration for mode, filling zero limits with
// the defaults for that mode.
func NewCrawlConfig(mode CrawlMode, maxDepth, maxPages int) (CrawlConfig, error) {
	switch mode {
	case CrawlModeSingle:
		return SingleConfig{}, nil
	case CrawlModeDeep:
		if maxDepth == 0 {
			maxDepth = DefaultDeepMaxDepth
		}
		if maxPages == 0 {
			maxPages = DefaultDeepMaxPages
		}
		return DeepConfig{MaxDepth: maxDepth, MaxPages: maxPages}, nil
	case CrawlModeSitemap:
		if maxPages == 0 {
			maxPages = DefaultSitemapMaxPages
		}
		return SitemapConfig{MaxPages: maxPages}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidCrawlMode, mode)
	}
}

// ParseCrawlMode validates a mode string.
func ParseCrawlMode(s string) (CrawlMode, error) {
	switch m := CrawlMode(s); m {
	case CrawlModeSingle, CrawlModeDeep, CrawlModeSitemap:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCrawlMode, s)
	}
}

// CrawlSummary is the mode-specific outcome of a completed crawl.
// The set of implementations is closed: SingleSummary, DeepSummary and SitemapSummary.
type CrawlSummary interface {
	Mode() CrawlMode
	Pages() int
	crawlSummary()
}

// SingleSummary describes a single page fetch.
type SingleSummary struct {
	URL   string
	Title string
}

// DeepSummary describes a breadth-first crawl.
type DeepSummary struct {
	RootURL         string
	PagesScraped    int
	MaxDepthReached int
}

// SitemapSummary describes a sitemap-driven crawl.
type SitemapSummary struct {
	SitemapURL     string
	TotalURLsFound int
	PagesScraped   int
}

func (SingleSummary) Mode() CrawlMode  { return CrawlModeSingle }
func (DeepSummary) Mode() CrawlMode    { return CrawlModeDeep }
func (SitemapSummary) Mode() CrawlMode { return CrawlModeSitemap }

func (SingleSummary) Pages() int    { return 1 }
func (s DeepSummary) Pages() int    { return s.PagesScraped }
func (s SitemapSummary) Pages() int { return s.PagesScraped }

func (SingleSummary) crawlSummary()  {}
func (DeepSummary) crawlSummary()    {}
func (SitemapSummary) crawlSummary() {}
