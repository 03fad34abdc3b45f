// Package ingestion orchestrates scrape jobs, document uploads and vector
// database builds.
//
// The Orchestrator owns the job and database state machines:
//   - Scrape jobs move pending -> running -> completed | failed
//   - Document jobs move pending -> completed | failed
//   - Vector databases move building -> ready | error
//
// Request methods validate, persist and submit; the crawl, extraction and
// build pipelines run on a JobExecutor backed by an ants worker pool. Each
// task runs under a time limit, and failures, timeouts and panics are written
// into the status record instead of being returned to the caller.
//
// A build chunks every record of its sources, embeds each record's chunks in
// one call and upserts them in batches under deterministic ids, so a re-run
// overwrites instead of duplicating.
package ingestion
