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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/harvest/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrEmptyResponse is returned when the model produces no choices.
var ErrEmptyResponse = errors.New("model returned no choices")

// Generator implements ai.TextGenerator using OpenAI-compatible chat APIs.
type Generator struct {
	client      llms.Model
	model       string
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

func newGenerator(config *ai.Config, logger *slog.Logger) (*Generator, error) {
	client, err := newClient(config.ChatHost, config.APIKey, openai.WithModel(config.ChatModel))
	if err != nil {
		return nil, fmt.Errorf("chat client: %w", err)
	}

	return &Generator{
		client:      client,
		model:       config.ChatModel,
		temperature: config.Temperature,
		maxTokens:   config.MaxTokens,
		logger:      logger.With("component", "openai-generator"),
	}, nil
}

// NewGenerator returns a standalone chat generator for config.
func NewGenerator(config *ai.Config) (ai.TextGenerator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return newGenerator(config, slog.Default())
}

// Generate sends the system prompt, prior turns and the user message as one
// chat completion request.
func (g *Generator) Generate(ctx context.Context, systemPrompt string, history []ai.Message, userMessage string, opts ...ai.GenerateOption) (*ai.Generation, error) {
	content := buildMessages(systemPrompt, history, userMessage)
	model, callOpts := g.callOptions(ai.ApplyGenerateOptions(opts))

	g.logger.Debug("generating reply", "model", model, "turns", len(history), "system_length", len(systemPrompt))
	response, err := g.client.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		g.logger.Error("failed to generate content", "err", err)
		return nil, err
	}
	if len(response.Choices) < 1 {
		return nil, ErrEmptyResponse
	}

	choice := response.Choices[0]
	return &ai.Generation{
		Text:  strings.TrimSpace(choice.Content),
		Model: model,
		Usage: usageFrom(choice.GenerationInfo),
	}, nil
}

// callOptions merges per-call overrides over the configured defaults.
func (g *Generator) callOptions(o ai.GenerateOptions) (string, []llms.CallOption) {
	model := g.model
	temperature := g.temperature
	maxTokens := g.maxTokens
	if o.Model != "" {
		model = o.Model
	}
	if o.Temperature != nil {
		temperature = *o.Temperature
	}
	if o.MaxTokens > 0 {
		maxTokens = o.MaxTokens
	}

	callOpts := []llms.CallOption{
		llms.WithTemperature(temperature),
		llms.WithMaxTokens(maxTokens),
	}
	if model != g.model {
		callOpts = append(callOpts, llms.WithModel(model))
	}
	return model, callOpts
}

func buildMessages(systemPrompt string, history []ai.Message, userMessage string) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, len(history)+2)
	if systemPrompt != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	}
	for _, msg := range history {
		role := llms.ChatMessageTypeHuman
		if msg.Role == ai.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, msg.Content))
	}
	return append(content, llms.TextParts(llms.ChatMessageTypeHuman, userMessage))
}

// usageFrom reads the token counters the openai client stores in GenerationInfo.
func usageFrom(info map[string]any) ai.Usage {
	return ai.Usage{
		PromptTokens:     intValue(info["PromptTokens"]),
		CompletionTokens: intValue(info["CompletionTokens"]),
		TotalTokens:      intValue(info["TotalTokens"]),
	}
}

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
