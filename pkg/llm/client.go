// Package llm provides the generation-endpoint client: it sends rendered
// prompts to the Anthropic messages API and parses the response into
// validated entity records.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/seedforge/seedforge/pkg/apperrors"
	"github.com/seedforge/seedforge/pkg/retry"
)

// Client is the generation endpoint seen by the batch orchestrator.
// Use this interface for dependency injection to enable mocking in tests.
type Client interface {
	// GenerateRecords sends one prompt and returns the parsed, validated
	// records. Transport failures are retried internally with backoff;
	// content failures surface as apperrors.ErrMalformedResponse and are
	// never retried here.
	GenerateRecords(ctx context.Context, req *Request) (*GenerationResult, error)

	// GetModel returns the configured model name.
	GetModel() string
}

// Config holds configuration for creating an Anthropic generation client.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int // default 4000
	// Temperature is a pointer so zero (greedy decoding) stays
	// distinguishable from unset; nil means 0.7.
	Temperature *float32
	Timeout     time.Duration // per-attempt request timeout, default 180s
	Retry       *retry.Config // nil means retry.DefaultConfig
}

// AnthropicClient implements Client against the Anthropic messages API.
type AnthropicClient struct {
	client      *anthropic.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	retryCfg    *retry.Config
	logger      *zap.Logger
}

// NewAnthropicClient creates a generation client.
func NewAnthropicClient(cfg *Config, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4000
	}
	temperature := float32(0.7)
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	retryCfg := cfg.Retry
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}

	return &AnthropicClient{
		client:      anthropic.NewClient(cfg.APIKey),
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: temperature,
		timeout:     timeout,
		retryCfg:    retryCfg,
		logger:      logger.Named("llm"),
	}, nil
}

// GenerateRecords implements Client.
func (c *AnthropicClient) GenerateRecords(ctx context.Context, req *Request) (*GenerationResult, error) {
	if req == nil || req.Prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	c.logger.Debug("generation request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(req.Prompt)),
		zap.Float64("temperature", float64(c.temperature)))

	start := time.Now()
	prompt := req.Prompt
	temperature := c.temperature

	var resp anthropic.MessagesResponse
	err := retry.DoIfRetryable(ctx, c.retryCfg, func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		r, err := c.client.CreateMessages(callCtx, anthropic.MessagesRequest{
			Model:       anthropic.Model(c.model),
			MaxTokens:   c.maxTokens,
			Temperature: &temperature,
			System:      req.System,
			Messages: []anthropic.Message{
				{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
					{Type: "text", Text: &prompt},
				}},
			},
		})
		if err != nil {
			classified := ClassifyError(err)
			c.logger.Warn("generation request failed",
				zap.String("error_type", string(classified.Type)),
				zap.Bool("retryable", classified.Retryable),
				zap.Error(err))
			return classified
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	text := ""
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			text = *block.Text
			break
		}
	}
	if text == "" {
		return nil, fmt.Errorf("%w: no text content in response", apperrors.ErrMalformedResponse)
	}

	arr, err := ExtractRecordArray(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedResponse, err)
	}

	records, dropped, err := DecodeRecords(arr, req.RequiredFields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedResponse, err)
	}

	if dropped > 0 {
		c.logger.Warn("dropped records missing required fields",
			zap.Int("dropped", dropped),
			zap.Int("accepted", len(records)))
	}

	c.logger.Info("generation request completed",
		zap.Int("accepted", len(records)),
		zap.Int("dropped", dropped),
		zap.Duration("elapsed", time.Since(start)))

	return &GenerationResult{
		Records:  records,
		Raw:      text,
		Accepted: len(records),
		Dropped:  dropped,
	}, nil
}

// GetModel implements Client.
func (c *AnthropicClient) GetModel() string {
	return c.model
}

// Ensure AnthropicClient implements Client at compile time.
var _ Client = (*AnthropicClient)(nil)
