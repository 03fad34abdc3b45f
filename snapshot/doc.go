// Package snapshot persists the raw content produced by a crawl or document
// upload so that indexing can run, and re-run, later.
//
// Each job owns one directory under the store root holding a single JSON
// envelope:
//
//	{"success": true, "pages_scraped": 2, "results": [{"url": "...", "title": "...", "content": "...", "metadata": {...}, "depth": 0}]}
//
// Writes are atomic. Reads also accept the older single-page shape in which
// the record's url, title and content sit at the top level.
package snapshot
