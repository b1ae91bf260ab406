// Package oracle provides AI header-mapping suggestions backed by a chat
// completion model, plus the boundary coercion of its loosely-typed replies.
package oracle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/gauravpcu/vendor-statements-sub000/internal/logger"
	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
	"github.com/gauravpcu/vendor-statements-sub000/pkg/services"
)

// Config configures the OpenAI-backed oracle.
type Config struct {
	APIKey            string
	BaseURL           string // Optional, for compatible endpoints and tests
	Model             string
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 disables throttling
	MaxTokens         int
}

// DefaultConfig returns the oracle defaults without credentials.
func DefaultConfig() Config {
	return Config{
		Model:             openai.GPT4oMini,
		Timeout:           10 * time.Second,
		RequestsPerSecond: 2,
		MaxTokens:         600,
	}
}

// OpenAIOracle implements services.SuggestionOracle with a chat completion model.
type OpenAIOracle struct {
	client  *openai.Client
	config  Config
	limiter *rate.Limiter
	fields  []models.CanonicalField
	known   map[string]struct{}
	log     zerolog.Logger
}

var _ services.SuggestionOracle = (*OpenAIOracle)(nil)

// NewOpenAIOracle creates an oracle that suggests among the given fields.
func NewOpenAIOracle(config Config, source services.FieldDefinitionSource) (*OpenAIOracle, error) {
	const op = "oracle.NewOpenAIOracle"

	if config.APIKey == "" {
		return nil, fmt.Errorf("%s: OpenAI API key is required: %w", op, models.ErrInvalidConfiguration)
	}
	defaults := DefaultConfig()
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = defaults.MaxTokens
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	fields := source.Fields()
	known := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		known[f.Name] = struct{}{}
	}

	o := &OpenAIOracle{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		fields: fields,
		known:  known,
		log:    logger.WithComponent("oracle"),
	}
	if config.RequestsPerSecond > 0 {
		o.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}
	return o, nil
}

// Suggest asks the model for alternative fields for originalHeader.
func (o *OpenAIOracle) Suggest(ctx context.Context, originalHeader, currentMappedField string) ([]models.MappingSuggestion, error) {
	const op = "Suggest"

	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: rate limit: %w", op, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	o.log.Debug().
		Str("header", originalHeader).
		Str("current_field", currentMappedField).
		Msg("Requesting mapping suggestions")

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You map column headers from vendor statements onto a fixed invoice schema. Reply with JSON only.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: o.buildPrompt(originalHeader, currentMappedField),
			},
		},
		Temperature: 0.1,
		MaxTokens:   o.config.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: chat completion failed: %w", op, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: no response choices: %w", op, ErrEmptyResponse)
	}

	raw, err := ParseContent(resp.Choices[0].Message.Content)
	if err != nil {
		o.log.Warn().
			Err(err).
			Str("header", originalHeader).
			Msg("Failed to parse suggestion response")
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	suggestions := Coerce(raw, o.isKnown)
	o.log.Debug().
		Str("header", originalHeader).
		Int("received", len(raw)).
		Int("accepted", len(suggestions)).
		Msg("Received mapping suggestions")
	return suggestions, nil
}

func (o *OpenAIOracle) isKnown(field string) bool {
	_, ok := o.known[field]
	return ok
}

func (o *OpenAIOracle) buildPrompt(header, current string) string {
	var b strings.Builder
	b.WriteString("Available target fields:\n")
	for _, f := range o.fields {
		fmt.Fprintf(&b, "- %s (%s)", f.Name, f.DisplayName)
		if len(f.Aliases) > 0 {
			fmt.Fprintf(&b, ": also known as %s", strings.Join(f.Aliases, ", "))
		}
		b.WriteString("\n")
	}
	if current == "" {
		current = models.UnmappedField
	}
	fmt.Fprintf(&b, `
Column header: %q
Currently mapped to: %q

Suggest up to 3 target fields this column most likely holds. Use only the field
names listed above. Answer with JSON in this format:
{
  "suggestions": [
    {"suggested_field": "invoice_number", "reason": "short explanation", "confidence": 0.9, "auto_apply": true}
  ]
}
Set auto_apply to true only when you are certain. Confidence is between 0 and 1.`, header, current)
	return b.String()
}
