package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"devclip/internal/catalog"
	"devclip/internal/models"
	"devclip/internal/utils"
)

// DefaultMaxTokens caps completion length when none is configured
const DefaultMaxTokens = 1000

// NoCompletionText is returned when the provider answers without choices
const NoCompletionText = "The AI provider returned no response for this input."

// ErrNoPrompt is returned for operations without a system prompt
var ErrNoPrompt = errors.New("no prompt for operation")

var systemPrompts = map[string]string{
	catalog.OpExplain: "You are a senior software engineer. Explain what the following code or text does " +
		"in clear, concise language. Point out anything surprising or error-prone.",
	catalog.OpSummarize: "Summarize the following text for a developer. Keep the key facts, errors and " +
		"action items. Use short bullet points.",
	catalog.OpRefactor: "You are an expert programmer. Refactor the following code to be cleaner and more " +
		"idiomatic without changing its behavior. Reply with the refactored code followed by a short list of changes.",
}

// Completion is the outcome of an AI operation
type Completion struct {
	Text        string
	TotalTokens int
}

// AssistantConfig configures an Assistant
type AssistantConfig struct {
	Models    map[models.PlanTier]string
	MaxTokens int
	Timeout   time.Duration
}

// Assistant invokes a provider for the AI operations
type Assistant struct {
	provider  Provider
	models    map[models.PlanTier]string
	maxTokens int
	timeout   time.Duration
	logger    *utils.Logger
}

// NewAssistant creates an Assistant on top of provider. A free tier model is
// required since every other tier falls back to it.
func NewAssistant(provider Provider, config AssistantConfig) (*Assistant, error) {
	if config.Models[models.TierFree] == "" {
		return nil, fmt.Errorf("model for the %s tier is required", models.TierFree)
	}
	for tier, model := range config.Models {
		if !tier.IsValid() {
			return nil, fmt.Errorf("model configured for unknown tier %q", tier)
		}
		if model == "" {
			return nil, fmt.Errorf("model for the %s tier is empty", tier)
		}
	}

	maxTokens := config.MaxTokens
	if maxTokens <= 0 || maxTokens > DefaultMaxTokens {
		maxTokens = DefaultMaxTokens
	}
	return &Assistant{
		provider:  provider,
		models:    config.Models,
		maxTokens: maxTokens,
		timeout:   config.Timeout,
		logger:    utils.NewLogger("assistant"),
	}, nil
}

// ModelFor returns the model used for tier, falling back to the free tier model
func (a *Assistant) ModelFor(tier models.PlanTier) string {
	if m, ok := a.models[tier]; ok && m != "" {
		return m
	}
	return a.models[models.TierFree]
}

// Invoke runs op over text with the model of tier. It does not retry.
func (a *Assistant) Invoke(ctx context.Context, text, op string, tier models.PlanTier) (*Completion, error) {
	prompt, ok := systemPrompts[op]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoPrompt, op)
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	model := a.ModelFor(tier)
	resp, err := a.provider.Chat(ctx, ChatRequest{
		Model:     model,
		MaxTokens: a.maxTokens,
		Messages: []Message{
			{Role: RoleSystem, Content: prompt},
			{Role: RoleUser, Content: text},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s completion failed: %w", a.provider.Type(), err)
	}

	// An empty choice list is not an error; the caller is still charged.
	if resp.Choices == 0 {
		a.logger.Warn("Completion returned no choices", "operation", op, "model", model)
		return &Completion{Text: NoCompletionText, TotalTokens: resp.TotalTokens}, nil
	}

	return &Completion{Text: resp.Content, TotalTokens: resp.TotalTokens}, nil
}
