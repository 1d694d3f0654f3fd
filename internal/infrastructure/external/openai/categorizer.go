package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/garyjia/expense-approvals/internal/application/port"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

// maxReceiptChars bounds the receipt text sent to the model
const maxReceiptChars = 4000

// Config holds OpenAI client settings
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Categorizer implements port.CategorySuggester with a chat completion
type Categorizer struct {
	client  *openai.Client
	model   string
	prompts *PromptConfig
	logger  *zap.Logger
}

// NewCategorizer creates a categorizer. A nil prompts value uses DefaultPrompts.
func NewCategorizer(cfg Config, prompts *PromptConfig, logger *zap.Logger) *Categorizer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	if prompts == nil {
		prompts = DefaultPrompts()
	}

	return &Categorizer{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   model,
		prompts: prompts,
		logger:  logger,
	}
}

type categoryResponse struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// SuggestCategory asks the model to pick one of categories for the receipt text.
// It returns nil when the model answers with a category outside the list.
func (c *Categorizer) SuggestCategory(ctx context.Context, text string, categories []string) (*port.CategorySuggestion, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("no categories to choose from")
	}

	prompt, err := renderTemplate(c.prompts.Categorize.UserTemplate, struct {
		Categories []string
		Text       string
	}{categories, truncate(text, maxReceiptChars)})
	if err != nil {
		return nil, err
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.prompts.Categorize.Temperature,
		MaxTokens:   c.prompts.Categorize.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.prompts.Categorize.System},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		c.logger.Error("OpenAI API call failed", zap.Error(err))
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content
	var result categoryResponse
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		// Fallback: some models wrap the object in prose or code fences
		jsonStr := extractJSON(content)
		if jsonStr == "" || json.Unmarshal([]byte(jsonStr), &result) != nil {
			c.logger.Error("Failed to parse OpenAI response", zap.Error(err), zap.String("content", content))
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
	}

	category, ok := matchCategory(result.Category, categories)
	if !ok {
		c.logger.Info("Model suggested an unknown category", zap.String("category", result.Category))
		return nil, nil
	}

	c.logger.Info("Category suggested", zap.String("category", category), zap.Float64("confidence", result.Confidence))
	return &port.CategorySuggestion{Category: category, Confidence: clamp(result.Confidence)}, nil
}

// matchCategory maps the model's answer onto the canonical spelling in categories
func matchCategory(answer string, categories []string) (string, bool) {
	fold := cases.Fold()
	want := fold.String(strings.TrimSpace(answer))
	for _, c := range categories {
		if fold.String(c) == want {
			return c, true
		}
	}
	return "", false
}

// extractJSON returns the outermost {...} span of content, or ""
func extractJSON(content string) string {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

var _ port.CategorySuggester = (*Categorizer)(nil)
