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


// Package search answers keyword, semantic and hybrid queries against the
// index of a ready vector database.
//
// The Searcher checks that the database belongs to the caller and is ready,
// embeds the query when the mode needs a vector, and converts the backend's
// ranked hits into core.SearchResult values:
//   - keyword: tf-idf over content, title and metadata
//   - semantic: cosine similarity against the query embedding
//   - hybrid: reciprocal-rank fusion of the two rankings
//
// Among results with equal scores, those containing every query word come
// first. A SearchMonitor can observe each stage.
package search
