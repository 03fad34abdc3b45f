package index

import "errors"

var (
	// ErrBackendRequired is returned when a search backend is not provided.
	ErrBackendRequired = errors.New("index backend required")

	// ErrRecordsRequired is returned when no database record source is provided.
	ErrRecordsRequired = errors.New("database records required")

	// ErrQuotaExceeded indicates the backend cannot hold another index.
	ErrQuotaExceeded = errors.New("index quota exceeded")

	// ErrIndexNotFound indicates the named index does not exist.
	ErrIndexNotFound = errors.New("index not found")

	// ErrIndexExists indicates an index with the name already exists.
	ErrIndexExists = errors.New("index already exists")

	// ErrInvalidIndexName indicates a name outside [a-z0-9-], or too long.
	ErrInvalidIndexName = errors.New("invalid index name")

	// ErrInvalidDescriptor indicates a schema without key, content or vector field.
	ErrInvalidDescriptor = errors.New("invalid index descriptor")

	// ErrInvalidDocument indicates a document without id or with a wrong vector size.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidQuery indicates a query with neither text nor vector, or a bad filter.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrUploadFailed wraps a backend failure during UploadBatch.
	ErrUploadFailed = errors.New("index upload failed")
)
