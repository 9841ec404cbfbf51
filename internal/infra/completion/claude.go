package completion

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"diet-cookbook/internal/observability/metrics"
	"diet-cookbook/internal/usage"
)

var defaultClaudeModel = string(anthropic.ModelClaudeSonnet4_5_20250929)

// Claude implements Provider using the Anthropic messages API.
type Claude struct {
	client anthropic.Client
	config Config
}

// NewClaude creates a Claude provider. SDK-level retries are disabled
// since retries belong to the caller's retry policy.
func NewClaude(cfg Config) *Claude {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	slog.Info("Initialized Claude completion provider",
		slog.String("model", cfg.Model),
		slog.Int("max_tokens", cfg.MaxTokens))

	return &Claude{
		client: anthropic.NewClient(opts...),
		config: cfg,
	}
}

// Name implements Provider.
func (c *Claude) Name() string {
	return ProviderClaude
}

// Complete implements Provider. The messages API has no JSON mode, so a JSON request
// adds an instruction to the system prompt.
func (c *Claude) Complete(ctx context.Context, req Request) (*Response, usage.Report, error) {
	if err := req.Validate(); err != nil {
		return nil, usage.Report{}, err
	}

	maxTokens := c.config.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(req.Prompt)}
	if req.HasImage() {
		blocks = append([]anthropic.ContentBlockParamUnion{
			anthropic.NewImageBlockBase64(req.imageMIME(), base64.StdEncoding.EncodeToString(req.Image)),
		}, blocks...)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: int64(maxTokens),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	}
	if system := c.systemPrompt(req); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	start := time.Now()
	message, err := c.client.Messages.New(ctx, params)
	duration := time.Since(start)

	if err != nil {
		metrics.RecordCompletion(c.Name(), false, duration, 0, 0)
		slog.ErrorContext(ctx, "Claude completion failed",
			slog.Duration("duration", duration),
			slog.Bool("vision", req.HasImage()),
			slog.String("error", err.Error()))
		return nil, usage.Report{}, fmt.Errorf("claude api error: %w", err)
	}

	report := usage.Report{
		UnitsIn:  message.Usage.InputTokens,
		UnitsOut: message.Usage.OutputTokens,
	}

	var text strings.Builder
	for _, block := range message.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}
	if text.Len() == 0 {
		metrics.RecordCompletion(c.Name(), false, duration, 0, 0)
		return nil, report, ErrEmptyResponse
	}

	metrics.RecordCompletion(c.Name(), true, duration, report.UnitsIn, report.UnitsOut)
	slog.InfoContext(ctx, "Claude completion finished",
		slog.String("model", string(message.Model)),
		slog.Int64("tokens_in", report.UnitsIn),
		slog.Int64("tokens_out", report.UnitsOut),
		slog.Duration("duration", duration))

	return &Response{
		Text:         text.String(),
		Model:        string(message.Model),
		FinishReason: string(message.StopReason),
	}, report, nil
}

func (c *Claude) systemPrompt(req Request) string {
	if !req.JSON {
		return req.System
	}
	const jsonOnly = "Respond with a single valid JSON object and nothing else."
	if req.System == "" {
		return jsonOnly
	}
	return req.System + "\n\n" + jsonOnly
}
