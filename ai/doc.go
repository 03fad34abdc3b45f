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


// Package ai declares the model services harvest consumes: an Embedder for
// chunk and query vectors and a TextGenerator for the retrieval chat.
// Provider configuration lives in Config.
//
// ai/openai implements both against OpenAI-compatible HTTP servers.
// ai/mock holds deterministic doubles; its embedder hashes words into
// buckets so texts that share words land near each other.
package ai
