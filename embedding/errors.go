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


package embedding

import "errors"

var (
	// ErrEmbedderRequired is returned when a nil ai.Embedder is passed to NewBatcher.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrInvalidBatchSize is returned when the sub-batch limit is < 1.
	ErrInvalidBatchSize = errors.New("batch size must be greater than 0")

	// ErrInvalidMaxAttempts is returned by WithRetry for fewer than one attempt.
	ErrInvalidMaxAttempts = errors.New("retry attempts must be at least 1")

	// ErrCountMismatch is returned when the provider returns a different number of vectors than texts.
	ErrCountMismatch = errors.New("embedding count does not match input count")

	// ErrEmptyVector is returned when the provider returns a zero-length vector.
	ErrEmptyVector = errors.New("embedding provider returned an empty vector")

	// ErrEmbeddingFailed wraps any provider failure that survived all retries.
	ErrEmbeddingFailed = errors.New("embedding failed")
)
