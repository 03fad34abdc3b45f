// Package loader accepts uploaded documents and extracts their text.
//
// Uploads are validated (size, extension, non-empty), stored under a
// per-owner directory with a content digest, and reduced to a single
// core.RawContentRecord by Extract. PDF, DOCX, Markdown (with optional YAML
// front matter) and plain text are supported.
package loader
