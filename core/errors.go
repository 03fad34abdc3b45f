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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidRequest is the parent of every request validation error.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrEmptyOwner indicates the Owner field is empty.
	ErrEmptyOwner = errors.New("owner cannot be empty")

	// ErrInvalidURL indicates a target URL is missing or not absolute http(s).
	ErrInvalidURL = errors.New("invalid url")

	// ErrInvalidCrawlMode indicates an unknown crawl mode.
	ErrInvalidCrawlMode = errors.New("invalid crawl mode")

	// ErrInvalidCrawlConfig indicates out-of-range crawl limits.
	ErrInvalidCrawlConfig = errors.New("invalid crawl config")

	// ErrEmptyName indicates a vector database name is empty.
	ErrEmptyName = errors.New("name cannot be empty")

	// ErrNoSources indicates a vector database references no jobs.
	ErrNoSources = errors.New("at least one source job is required")

	// ErrInvalidSearchMode indicates an unknown search mode.
	ErrInvalidSearchMode = errors.New("invalid search mode")

	// ErrInvalidTransition indicates a status change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidProgress indicates a progress value outside 0-100.
	ErrInvalidProgress = errors.New("progress must be between 0 and 100")
)

// IsValidationError reports whether err is a request validation failure.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidRequest, ErrEmptyOwner, ErrInvalidURL, ErrInvalidCrawlMode,
		ErrInvalidCrawlConfig, ErrEmptyName, ErrNoSources, ErrInvalidSearchMode,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
