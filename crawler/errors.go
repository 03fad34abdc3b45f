package crawler

import "errors"

var (
	// ErrFetcherRequired is returned when a nil Fetcher is passed to New.
	ErrFetcherRequired = errors.New("fetcher is required")

	// ErrUnexpectedStatus is returned for any response other than 200 OK.
	ErrUnexpectedStatus = errors.New("unexpected status code")

	// ErrBodyTooLarge is returned when a response exceeds the body size cap.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrNoPages is returned when a deep or sitemap crawl scraped nothing.
	ErrNoPages = errors.New("no pages scraped")

	// ErrEmptySitemap is returned when a sitemap lists no URLs.
	ErrEmptySitemap = errors.New("sitemap contains no urls")

	// ErrInvalidSitemap is returned when the sitemap is not parseable XML.
	ErrInvalidSitemap = errors.New("invalid sitemap")
)
