// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"context"

	"github.com/poiesic/harvest/core"
)

// ScrapeJobRepository persists scrape jobs.
// Implementations must be thread-safe and support concurrent access.
type ScrapeJobRepository interface {
	// Create stores a new job. CreatedAt and UpdatedAt are set if zero.
	// Returns ErrDuplicateKey if the ID is taken.
	Create(ctx context.Context, job *core.ScrapeJob) error

	// Get retrieves a job by ID.
	// Returns ErrNotFound if the job doesn't exist.
	Get(ctx context.Context, id string) (*core.ScrapeJob, error)

	// Update applies fn to the current job in one atomic read-modify-write and
	// returns the stored result. If fn returns an error nothing is written.
	// The change is rejected with core.ErrInvalidTransition or
	// core.ErrInvalidProgress if it breaks the job state machine.
	// UpdatedAt is set automatically.
	Update(ctx context.Context, id string, fn func(job *core.ScrapeJob) error) (*core.ScrapeJob, error)

	// List returns the jobs of owner, newest first. An empty owner lists all jobs.
	List(ctx context.Context, owner string) ([]*core.ScrapeJob, error)

	// ListByStatus returns every job in the given status, oldest first.
	ListByStatus(ctx context.Context, status core.JobStatus) ([]*core.ScrapeJob, error)

	// Delete removes a job.
	// Returns ErrNotFound if the job doesn't exist.
	Delete(ctx context.Context, id string) error
}

// DocumentJobRepository persists document upload jobs.
// Same contract as ScrapeJobRepository.
type DocumentJobRepository interface {
	Create(ctx context.Context, job *core.DocumentJob) error
	Get(ctx context.Context, id string) (*core.DocumentJob, error)
	Update(ctx context.Context, id string, fn func(job *core.DocumentJob) error) (*core.DocumentJob, error)
	List(ctx context.Context, owner string) ([]*core.DocumentJob, error)
	ListByStatus(ctx context.Context, status core.JobStatus) ([]*core.DocumentJob, error)
	Delete(ctx context.Context, id string) error
}

// DatabaseRepository persists vector database records.
type DatabaseRepository interface {
	// Create stores a new database record.
	// Returns ErrDuplicateKey if the ID or index name is taken.
	Create(ctx context.Context, db *core.VectorDatabase) error

	// Get retrieves a database by ID.
	// Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*core.VectorDatabase, error)

	// Update applies fn atomically; status changes are checked with
	// core.CanTransitionDatabase.
	Update(ctx context.Context, id string, fn func(db *core.VectorDatabase) error) (*core.VectorDatabase, error)

	// List returns the databases of owner, newest first. An empty owner lists all.
	List(ctx context.Context, owner string) ([]*core.VectorDatabase, error)

	// ListByStatus returns every database in the given status, oldest first.
	ListByStatus(ctx context.Context, status core.DatabaseStatus) ([]*core.VectorDatabase, error)

	// IndexNames returns the backing index name of every database record.
	IndexNames(ctx context.Context) (map[string]bool, error)

	// Delete removes a database record.
	// Returns ErrNotFound if it doesn't exist.
	Delete(ctx context.Context, id string) error
}

// ChatSessionRepository persists chat sessions and their messages.
type ChatSessionRepository interface {
	// Create stores a new session. CreatedAt and UpdatedAt are set if zero.
	// Returns ErrDuplicateKey if the ID is taken.
	Create(ctx context.Context, session *core.ChatSession) error

	// Get retrieves a session by ID.
	// Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*core.ChatSession, error)

	// List returns the sessions of owner, newest first. An empty owner lists all.
	List(ctx context.Context, owner string) ([]*core.ChatSession, error)

	// AppendMessages stores messages at the end of a session in one write,
	// assigning Seq and CreatedAt. Returns ErrNotFound if the session doesn't exist.
	AppendMessages(ctx context.Context, sessionID string, messages ...*core.ChatMessage) error

	// Messages returns the last limit messages of a session, oldest first.
	// A limit of zero or less returns them all.
	Messages(ctx context.Context, sessionID string, limit int) ([]*core.ChatMessage, error)

	// Delete removes a session together with its messages.
	// Returns ErrNotFound if it doesn't exist.
	Delete(ctx context.Context, id string) error
}

// Store bundles the repositories of one storage backend.
type Store interface {
	ScrapeJobs() ScrapeJobRepository
	DocumentJobs() DocumentJobRepository
	Databases() DatabaseRepository
	ChatSessions() ChatSessionRepository

	// Close closes the storage backend and releases resources.
	Close() error
}
