package openai

import (
	"testing"

	"github.com/poiesic/harvest/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestBuildMessages(t *testing.T) {
	history := []ai.Message{
		{Role: ai.RoleUser, Content: "first question"},
		{Role: ai.RoleAssistant, Content: "first answer"},
	}

	msgs := buildMessages("system prompt", history, "second question")
	require.Len(t, msgs, 4)

	assert.Equal(t, llms.ChatMessageTypeSystem, msgs[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, msgs[2].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[3].Role)
	assert.Equal(t, llms.TextContent{Text: "second question"}, msgs[3].Parts[0])
}

func TestBuildMessages_NoSystemPrompt(t *testing.T) {
	msgs := buildMessages("", nil, "hello")
	require.Len(t, msgs, 1)
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[0].Role)
}

func TestUsageFrom(t *testing.T) {
	usage := usageFrom(map[string]any{
		"PromptTokens":     12,
		"CompletionTokens": int64(30),
		"TotalTokens":      float64(42),
	})
	assert.Equal(t, ai.Usage{PromptTokens: 12, CompletionTokens: 30, TotalTokens: 42}, usage)

	assert.Equal(t, ai.Usage{}, usageFrom(nil))
}

func TestNewGenerator_InvalidConfig(t *testing.T) {
	_, err := NewGenerator(ai.NewConfig(ai.WithChatModel("")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ChatModel")
}

func TestCallOptions(t *testing.T) {
	g := &Generator{model: "gpt-4o", temperature: 0.2, maxTokens: 500}
	apply := func(callOpts []llms.CallOption) llms.CallOptions {
		var o llms.CallOptions
		for _, opt := range callOpts {
			opt(&o)
		}
		return o
	}

	model, callOpts := g.callOptions(ai.ApplyGenerateOptions(nil))
	assert.Equal(t, "gpt-4o", model)
	got := apply(callOpts)
	assert.Empty(t, got.Model)
	assert.Equal(t, 0.2, got.Temperature)
	assert.Equal(t, 500, got.MaxTokens)

	model, callOpts = g.callOptions(ai.ApplyGenerateOptions([]ai.GenerateOption{
		ai.WithCallModel("gpt-4o-mini"), ai.WithCallTemperature(0), ai.WithCallMaxTokens(64),
	}))
	assert.Equal(t, "gpt-4o-mini", model)
	got = apply(callOpts)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, 0.0, got.Temperature)
	assert.Equal(t, 64, got.MaxTokens)
}
