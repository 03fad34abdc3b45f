package ingestion

import (
	"errors"
	"fmt"

	"github.com/poiesic/harvest/core"
)

var (
	// ErrStoreRequired is returned when a storage backend is not provided.
	ErrStoreRequired = errors.New("store required")

	// ErrSnapshotsRequired is returned when a snapshot store is not provided.
	ErrSnapshotsRequired = errors.New("snapshot store required")

	// ErrFilesRequired is returned when an upload file store is not provided.
	ErrFilesRequired = errors.New("file store required")

	// ErrCrawlerRequired is returned when a crawler is not provided.
	ErrCrawlerRequired = errors.New("crawler required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrIndexManagerRequired is returned when an index manager is not provided.
	ErrIndexManagerRequired = errors.New("index manager required")

	// ErrExecutorRequired is returned when a job executor is not provided.
	ErrExecutorRequired = errors.New("job executor required")

	// ErrOrchestratorRequired is returned when a watchdog has nothing to guard.
	ErrOrchestratorRequired = errors.New("orchestrator required")

	// ErrJobNotFound indicates a job that does not exist or belongs to another owner.
	ErrJobNotFound = errors.New("job not found")

	// ErrDatabaseNotFound indicates a database that does not exist or belongs to another owner.
	ErrDatabaseNotFound = errors.New("vector database not found")

	// ErrJobAlreadyStarted indicates StartJob on a job that is no longer pending.
	ErrJobAlreadyStarted = errors.New("job already started")

	// ErrJobRunning indicates an operation that cannot proceed while a job runs.
	ErrJobRunning = errors.New("job is running")

	// ErrSourceNotFound indicates a database source job that is absent or not owned.
	ErrSourceNotFound = fmt.Errorf("%w: source job not found", core.ErrInvalidRequest)

	// ErrSourceNotCompleted indicates a database source job that has not completed.
	ErrSourceNotCompleted = fmt.Errorf("%w: source job is not completed", core.ErrInvalidRequest)

	// ErrSnapshotMissing indicates a completed job whose content snapshot is gone.
	ErrSnapshotMissing = fmt.Errorf("%w: source snapshot missing", core.ErrInvalidRequest)

	// ErrNothingIndexed indicates a build in which no record could be embedded.
	ErrNothingIndexed = errors.New("no content could be indexed")

	// ErrExecutorClosed is returned by Submit after Close.
	ErrExecutorClosed = errors.New("executor closed")

	// ErrTaskInFlight is returned by Submit when a task with the same key is running.
	ErrTaskInFlight = errors.New("task already in flight")

	// ErrJobTimeout indicates a task that exceeded the job time limit.
	ErrJobTimeout = errors.New("job time limit exceeded")

	// ErrTaskPanicked indicates a task that panicked.
	ErrTaskPanicked = errors.New("task panicked")

	// ErrJobAbandoned indicates a job failed by the watchdog.
	ErrJobAbandoned = errors.New("job abandoned")
)
