package crawler

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/harvest/core"
)

// ProgressFunc receives crawl progress as a percentage of the crawl's own
// work (0-100) plus a short status line.
type ProgressFunc func(percent int, message string)

// Result is the output of one crawl.
type Result struct {
	Records []core.RawContentRecord
	Summary core.CrawlSummary
}

// Crawler turns a seed URL and a crawl config into raw content records.
type Crawler struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// New creates a Crawler that retrieves pages with fetcher.
func New(fetcher Fetcher, opts ...Option) (*Crawler, error) {
	if fetcher == nil {
		return nil, ErrFetcherRequired
	}
	c := &Crawler{
		fetcher: fetcher,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "crawler")
	return c, nil
}

// Crawl dispatches on the config variant. progress may be nil.
func (c *Crawler) Crawl(ctx context.Context, seed string, cfg core.CrawlConfig, progress ProgressFunc) (*Result, error) {
	if progress == nil {
		progress = func(int, string) {}
	}
	if err := core.ValidateURL(seed); err != nil {
		return nil, err
	}
	if err := core.ValidateCrawlConfig(cfg); err != nil {
		return nil, err
	}

	switch cfg := cfg.(type) {
	case core.SingleConfig:
		return c.single(ctx, seed, progress)
	case core.DeepConfig:
		return c.deep(ctx, seed, cfg, progress)
	case core.SitemapConfig:
		return c.sitemap(ctx, seed, cfg, progress)
	default:
		return nil, fmt.Errorf("%w: %T", core.ErrInvalidCrawlMode, cfg)
	}
}

// Page fetches and parses one URL.
func (c *Crawler) Page(ctx context.Context, target string) (*core.RawContentRecord, error) {
	resp, err := c.fetcher.Fetch(ctx, target)
	if err != nil {
		return nil, err
	}
	parsed, err := ParsePage(resp.URL, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", target, err)
	}
	rec := &core.RawContentRecord{
		URL:      target,
		Title:    parsed.Title,
		Content:  parsed.Text,
		Metadata: pageMetadata(parsed, resp),
	}
	return rec, nil
}

func (c *Crawler) single(ctx context.Context, seed string, progress ProgressFunc) (*Result, error) {
	progress(0, "Fetching "+seed)
	rec, err := c.Page(ctx, seed)
	if err != nil {
		return nil, err
	}
	progress(100, "Fetched 1 page")
	return &Result{
		Records: []core.RawContentRecord{*rec},
		Summary: core.SingleSummary{URL: seed, Title: rec.Title},
	}, nil
}

type frontierItem struct {
	url   string
	depth int
}

// deep runs a breadth-first crawl bounded by MaxDepth and MaxPages. A URL is
// fetched at most once, and only links on the seed's host are followed.
func (c *Crawler) deep(ctx context.Context, seed string, cfg core.DeepConfig, progress ProgressFunc) (*Result, error) {
	seedURL, err := url.Parse(seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidURL, err)
	}
	host := strings.ToLower(seedURL.Host)
	root := canonicalURL(seed)

	var (
		frontier = []frontierItem{{url: root, depth: 0}}
		queued   = map[string]bool{root: true}
		visited  = make(map[string]bool)
		records  []core.RawContentRecord
		fetched  int
		maxDepth int
		firstErr error
	)

	for len(frontier) > 0 && fetched < cfg.MaxPages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		item := frontier[0]
		frontier = frontier[1:]
		if visited[item.url] || item.depth > cfg.MaxDepth {
			continue
		}
		visited[item.url] = true
		fetched++

		resp, err := c.fetcher.Fetch(ctx, item.url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("page fetch failed", "url", item.url, "depth", item.depth, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if final := canonicalURL(resp.URL); final != item.url {
			if visited[final] {
				c.logger.Debug("redirected to a visited page", "url", item.url, "final", final)
				continue
			}
			visited[final] = true
			queued[final] = true
		}
		parsed, err := ParsePage(resp.URL, resp.Body)
		if err != nil {
			c.logger.Warn("page parse failed", "url", item.url, "error", err)
			continue
		}

		depth := item.depth
		records = append(records, core.RawContentRecord{
			URL:      item.url,
			Title:    parsed.Title,
			Content:  parsed.Text,
			Metadata: pageMetadata(parsed, resp),
			Depth:    &depth,
		})
		maxDepth = max(maxDepth, depth)

		if item.depth < cfg.MaxDepth {
			for _, link := range parsed.Links {
				link = canonicalURL(link)
				u, err := url.Parse(link)
				if err != nil || u.Host != host || queued[link] {
					continue
				}
				queued[link] = true
				frontier = append(frontier, frontierItem{url: link, depth: item.depth + 1})
			}
		}

		progress(fetched*100/cfg.MaxPages, fmt.Sprintf("Scraped %d pages (depth %d)", len(records), item.depth))
	}

	if len(records) == 0 {
		if firstErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoPages, firstErr)
		}
		return nil, ErrNoPages
	}

	c.logger.Info("deep crawl finished", "root", seed, "pages", len(records), "fetched", fetched, "maxDepth", maxDepth)
	progress(100, fmt.Sprintf("Scraped %d pages", len(records)))
	return &Result{
		Records: records,
		Summary: core.DeepSummary{RootURL: seed, PagesScraped: len(records), MaxDepthReached: maxDepth},
	}, nil
}

// sitemapDoc matches <urlset><url><loc> with or without the sitemap namespace.
type sitemapDoc struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// ParseSitemap returns the page URLs listed in a sitemap document, in order.
func ParseSitemap(data []byte) ([]string, error) {
	var doc sitemapDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSitemap, err)
	}
	urls := make([]string, 0, len(doc.URLs))
	for _, u := range doc.URLs {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			urls = append(urls, loc)
		}
	}
	return urls, nil
}

func (c *Crawler) sitemap(ctx context.Context, sitemapURL string, cfg core.SitemapConfig, progress ProgressFunc) (*Result, error) {
	progress(0, "Fetching sitemap")
	resp, err := c.fetcher.Fetch(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}
	urls, err := ParseSitemap(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, ErrEmptySitemap
	}
	found := len(urls)
	if len(urls) > cfg.MaxPages {
		urls = urls[:cfg.MaxPages]
	}

	var (
		records  []core.RawContentRecord
		firstErr error
	)
	for i, target := range urls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := c.Page(ctx, target)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("sitemap page failed", "url", target, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		records = append(records, *rec)
		progress((i+1)*100/len(urls), fmt.Sprintf("Scraped %d of %d sitemap urls", i+1, len(urls)))
	}

	if len(records) == 0 {
		if firstErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoPages, firstErr)
		}
		return nil, ErrNoPages
	}

	c.logger.Info("sitemap crawl finished", "sitemap", sitemapURL, "found", found, "pages", len(records))
	return &Result{
		Records: records,
		Summary: core.SitemapSummary{SitemapURL: sitemapURL, TotalURLsFound: found, PagesScraped: len(records)},
	}, nil
}

func pageMetadata(parsed *ParsedPage, resp *Response) map[string]string {
	md := map[string]string{
		"title":        parsed.Title,
		"status_code":  strconv.Itoa(resp.StatusCode),
		"content_type": resp.ContentType,
		"fetched_at":   resp.FetchedAt.Format(time.RFC3339),
		"source_type":  core.SourceTypeWeb,
	}
	if parsed.Description != "" {
		md["description"] = parsed.Description
	}
	return md
}

// canonicalURL gives one spelling per page: no fragment, lowercase scheme
// and host, and "/" for an empty path.
func canonicalURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment, u.RawFragment = "", ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" && u.Opaque == "" {
		u.Path, u.RawPath = "/", ""
	}
	return u.String()
}
