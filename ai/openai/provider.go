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


package openai

import (
	"log/slog"

	"github.com/poiesic/harvest/ai"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider serves embeddings and chat replies from OpenAI-compatible hosts.
type Provider struct {
	embedder  *Embedder
	generator *Generator
	logger    *slog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger shared by the embedder and the generator.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// NewProvider validates config and builds one client per service.
func NewProvider(config *ai.Config, opts ...Option) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	p := &Provider{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}

	var err error
	if p.embedder, err = newEmbedder(config, p.logger); err != nil {
		return nil, err
	}
	if p.generator, err = newGenerator(config, p.logger); err != nil {
		return nil, err
	}
	p.logger = p.logger.With("component", "openai-provider")
	p.logger.Debug("provider ready",
		"embedding_host", config.EmbeddingHost, "embedding_model", config.EmbeddingModel,
		"chat_host", config.ChatHost, "chat_model", config.ChatModel)
	return p, nil
}

func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

func (p *Provider) Generator() ai.TextGenerator {
	return p.generator
}

// Close is a no-op; the HTTP clients hold no per-provider state.
func (p *Provider) Close() error {
	return nil
}

// newClient builds a langchaingo client bound to host. extra selects the
// model for the service the client is used for.
func newClient(host, apiKey string, extra ...openai.Option) (*openai.LLM, error) {
	opts := append([]openai.Option{
		openai.WithBaseURL(host),
		openai.WithToken(apiKey),
	}, extra...)
	return openai.New(opts...)
}
