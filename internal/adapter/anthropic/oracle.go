// Package anthropic implements the oracle port on the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Strob0t/Exec/internal/port/oracle"
	"github.com/Strob0t/Exec/internal/resilience"
)

const defaultMaxTokens = 1024

// Config selects the model and endpoint.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int64
	Temperature float64
}

// Oracle completes prompts with a Claude model.
type Oracle struct {
	client  anthropic.Client
	cfg     Config
	breaker *resilience.Breaker
}

var _ oracle.Oracle = (*Oracle)(nil)

// New creates an Anthropic oracle with SDK retries disabled.
func New(cfg Config) (*Oracle, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = string(anthropic.ModelClaudeSonnet4_5_20250929)
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Oracle{client: anthropic.NewClient(opts...), cfg: cfg}, nil
}

// SetBreaker attaches a circuit breaker to all outgoing calls.
func (o *Oracle) SetBreaker(b *resilience.Breaker) {
	o.breaker = b
}

// Complete sends the prompt as a single user turn and joins the text blocks
// of the reply.
func (o *Oracle) Complete(ctx context.Context, req oracle.Request) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(o.cfg.Model),
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: anthropic.Float(o.cfg.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	var text string
	call := func(ctx context.Context) error {
		resp, err := o.client.Messages.New(ctx, params)
		if err != nil {
			return fmt.Errorf("anthropic messages: %w", err)
		}
		var b strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				b.WriteString(block.AsText().Text)
			}
		}
		if b.Len() == 0 {
			return errors.New("anthropic messages: no text in reply")
		}
		text = b.String()
		return nil
	}

	var err error
	if o.breaker != nil {
		err = o.breaker.ExecuteContext(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", err
	}
	return text, nil
}
