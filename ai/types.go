package ai

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Usage reports token accounting returned by the model, when available.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Generation is a completed model reply.
type Generation struct {
	Text  string
	Model string
	Usage Usage
}

// GenerateOptions overrides the generator's configured defaults for one call.
// Zero values keep the defaults.
type GenerateOptions struct {
	Model       string
	Temperature *float64
	MaxTokens   int
}

// GenerateOption sets one field of GenerateOptions.
type GenerateOption func(*GenerateOptions)

// WithCallModel selects a different chat model for one call.
func WithCallModel(model string) GenerateOption {
	return func(o *GenerateOptions) { o.Model = model }
}

// WithCallTemperature overrides the sampling temperature for one call.
func WithCallTemperature(t float64) GenerateOption {
	return func(o *GenerateOptions) { o.Temperature = &t }
}

// WithCallMaxTokens caps the reply length for one call.
func WithCallMaxTokens(n int) GenerateOption {
	return func(o *GenerateOptions) { o.MaxTokens = n }
}

// ApplyGenerateOptions folds opts into a GenerateOptions value.
func ApplyGenerateOptions(opts []GenerateOption) GenerateOptions {
	var o GenerateOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
