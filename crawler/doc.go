// Package crawler fetches web content for scrape jobs.
//
// Three crawl modes are supported, selected by the core.CrawlConfig variant:
//
//   - core.SingleConfig fetches one page.
//   - core.DeepConfig walks same-host links breadth first, bounded by depth
//     and page count. Each URL is fetched at most once and failed pages are
//     skipped.
//   - core.SitemapConfig reads <url><loc> entries from an XML sitemap and
//     fetches up to MaxPages of them.
//
// Pages are reduced to title, description, readable text and outbound links
// by ParsePage.
package crawler
