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


// Package openai talks to any server that speaks the OpenAI embeddings and
// chat completions API, through langchaingo. Hosted OpenAI works, as do
// local servers such as Ollama or vLLM; harvest only needs the two
// endpoints.
//
//	provider, err := openai.NewProvider(cfg.ProviderConfig(), openai.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer provider.Close()
//
// Embedding requests arrive here already cut into sub-batches by
// embedding.Batcher, so the langchaingo embedder is told not to split them
// again.
package openai
