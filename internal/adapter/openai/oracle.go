// Package openai implements the oracle port on the OpenAI Chat Completions API.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/Strob0t/Exec/internal/port/oracle"
	"github.com/Strob0t/Exec/internal/resilience"
)

// Config selects the model and endpoint.
type Config struct {
	APIKey      string
	BaseURL     string // optional, for proxies and tests
	Model       string
	MaxTokens   int64
	Temperature float64
}

// Oracle completes prompts with a chat model.
type Oracle struct {
	client  openai.Client
	cfg     Config
	breaker *resilience.Breaker
}

var _ oracle.Oracle = (*Oracle)(nil)

// New creates an OpenAI oracle. SDK retries are disabled; retry policy
// belongs to the caller.
func New(cfg Config) (*Oracle, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.ChatModelGPT4oMini)
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Oracle{client: openai.NewClient(opts...), cfg: cfg}, nil
}

// SetBreaker attaches a circuit breaker to all outgoing calls.
func (o *Oracle) SetBreaker(b *resilience.Breaker) {
	o.breaker = b
}

// Complete sends the system instruction and prompt as a two-message chat and
// returns the first choice.
func (o *Oracle) Complete(ctx context.Context, req oracle.Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.Prompt),
		},
		Temperature: openai.Float(o.cfg.Temperature),
	}
	if o.cfg.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(o.cfg.MaxTokens)
	}

	var text string
	call := func(ctx context.Context) error {
		resp, err := o.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return fmt.Errorf("openai chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return errors.New("openai chat completion: no choices")
		}
		text = resp.Choices[0].Message.Content
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
