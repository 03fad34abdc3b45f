package snapshot

import "errors"

var (
	// ErrRootRequired is returned when NewStore is given an empty root directory.
	ErrRootRequired = errors.New("snapshot root directory is required")

	// ErrInvalidJobID is returned for ids that cannot name a directory safely.
	ErrInvalidJobID = errors.New("invalid job id")

	// ErrNotFound is returned when a job has no snapshot on disk.
	ErrNotFound = errors.New("snapshot not found")

	// ErrMalformed is returned when a snapshot file cannot be decoded.
	ErrMalformed = errors.New("malformed snapshot")

	// ErrUnsuccessful is returned by Load when the snapshot records a failed run.
	ErrUnsuccessful = errors.New("snapshot records an unsuccessful run")
)
