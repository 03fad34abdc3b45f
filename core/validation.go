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

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// MaxCrawlDepth bounds DeepConfig.MaxDepth.
	MaxCrawlDepth = 10
	// MaxCrawlPages bounds the page limit of deep and sitemap crawls.
	MaxCrawlPages = 1000
)

// ValidateURL checks that raw is an absolute http or https URL with a host.
func ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q not supported", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return nil
}

// ValidateCrawlConfig validates mode-specific limits.
//
// Validation rules:
//   - config must not be nil
//   - DeepConfig: 0 <= MaxDepth <= MaxCrawlDepth, 1 <= MaxPages <= MaxCrawlPages
//   - SitemapConfig: 1 <= MaxPages <= MaxCrawlPages
func ValidateCrawlConfig(config CrawlConfig) error {
	switch c := config.(type) {
	case nil:
		return fmt.Errorf("%w: config is nil", ErrInvalidCrawlConfig)
	case SingleConfig:
		return nil
	case DeepConfig:
		if c.MaxDepth < 0 || c.MaxDepth > MaxCrawlDepth {
			return fmt.Errorf("%w: max depth %d outside 0-%d", ErrInvalidCrawlConfig, c.MaxDepth, MaxCrawlDepth)
		}
		return validateMaxPages(c.MaxPages)
	case SitemapConfig:
		return validateMaxPages(c.MaxPages)
	default:
		return fmt.Errorf("%w: %T", ErrInvalidCrawlMode, config)
	}
}

func validateMaxPages(n int) error {
	if n < 1 || n > MaxCrawlPages {
		return fmt.Errorf("%w: max pages %d outside 1-%d", ErrInvalidCrawlConfig, n, MaxCrawlPages)
	}
	return nil
}

// ValidateScrapeJob validates a new scrape job before it is persisted.
func ValidateScrapeJob(job *ScrapeJob) error {
	if job == nil {
		return fmt.Errorf("%w: job is nil", ErrInvalidRequest)
	}
	if strings.TrimSpace(job.Owner) == "" {
		return ErrEmptyOwner
	}
	if err := ValidateURL(job.URL); err != nil {
		return err
	}
	return ValidateCrawlConfig(job.Config)
}

// ValidateVectorDatabase validates a database creation request.
// Whether the referenced jobs exist and are completed is checked by the orchestrator.
func ValidateVectorDatabase(db *VectorDatabase) error {
	if db == nil {
		return fmt.Errorf("%w: database is nil", ErrInvalidRequest)
	}
	if strings.TrimSpace(db.Owner) == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(db.Name) == "" {
		return ErrEmptyName
	}
	if db.Sources.Empty() {
		return ErrNoSources
	}
	return nil
}

// ValidateChatSession validates a new chat session.
func ValidateChatSession(s *ChatSession) error {
	if s == nil {
		return fmt.Errorf("%w: session is nil", ErrInvalidRequest)
	}
	if strings.TrimSpace(s.Owner) == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(s.DatabaseID) == "" {
		return fmt.Errorf("%w: database id is required", ErrInvalidRequest)
	}
	switch s.Mode {
	case SearchModeKeyword, SearchModeSemantic, SearchModeHybrid:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSearchMode, s.Mode)
	}
	if s.TopK < 1 {
		return fmt.Errorf("%w: top_k must be positive", ErrInvalidRequest)
	}
	if s.MaxTokens < 0 {
		return fmt.Errorf("%w: max_tokens cannot be negative", ErrInvalidRequest)
	}
	if s.Temperature != nil && (*s.Temperature < 0 || *s.Temperature > 2) {
		return fmt.Errorf("%w: temperature must be between 0 and 2", ErrInvalidRequest)
	}
	return nil
}

// ParseSearchMode validates a search mode string. Empty selects semantic.
func ParseSearchMode(s string) (SearchMode, error) {
	switch m := SearchMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return SearchModeSemantic, nil
	case SearchModeKeyword, SearchModeSemantic, SearchModeHybrid:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSearchMode, s)
	}
}

// CanTransitionJob reports whether a job may move from one status to another.
// pending -> running -> completed|failed. Document jobs skip running.
// A running job may also be failed by a timeout or the watchdog.
func CanTransitionJob(from, to JobStatus) bool {
	switch from {
	case JobStatusPending:
		return to == JobStatusRunning || to == JobStatusCompleted || to == JobStatusFailed
	case JobStatusRunning:
		return to == JobStatusRunning || to == JobStatusCompleted || to == JobStatusFailed
	default:
		return false
	}
}

// CanTransitionDatabase reports whether a database may move between statuses.
// building -> ready|error, exactly once.
func CanTransitionDatabase(from, to DatabaseStatus) bool {
	return from == DatabaseStatusBuilding && (to == DatabaseStatusReady || to == DatabaseStatusError)
}
