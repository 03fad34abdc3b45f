// Package index manages the search indexes behind vector databases.
//
// A Backend is any search service that can hold named indexes, each created
// from a Descriptor, and answer keyword, vector or fused queries. The Manager
// adds the lifecycle rules on top:
//
//   - EnsureIndex is idempotent and reclaims orphaned indexes once when the
//     backend's index quota is exhausted before giving up with ErrQuotaExceeded.
//   - ReclaimOrphans deletes indexes with the reserved prefix that no database
//     record references.
//   - DeleteIndex is best-effort; a missing index counts as deleted.
//   - UploadBatch upserts by document id, so re-running a build overwrites.
//
// index/local provides an embedded BadgerDB backend.
package index
