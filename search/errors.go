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


package search

import (
	"errors"
	"fmt"

	"github.com/poiesic/harvest/core"
	"github.com/poiesic/harvest/storage"
)

var (
	// ErrDatabaseRepositoryRequired is returned when a database repository is not provided.
	ErrDatabaseRepositoryRequired = errors.New("database repository required")

	// ErrIndexRequired is returned when an index searcher is not provided.
	ErrIndexRequired = errors.New("index searcher required")

	// ErrEmbedderRequired is returned when a query embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrDatabaseNotReady indicates a database that is missing, not owned by
	// the caller, or not in the ready state. Missing databases also match
	// storage.ErrNotFound.
	ErrDatabaseNotReady = errors.New("vector database not ready")

	// ErrEmptyQuery indicates a blank query string.
	ErrEmptyQuery = fmt.Errorf("%w: query cannot be empty", core.ErrInvalidRequest)
)

func notFound(dbID string) error {
	return fmt.Errorf("%w: %s: %w", ErrDatabaseNotReady, dbID, storage.ErrNotFound)
}
