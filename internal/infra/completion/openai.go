package completion

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"diet-cookbook/internal/observability/metrics"
	"diet-cookbook/internal/usage"
)

// OpenAI implements Provider using the OpenAI chat completions API.
type OpenAI struct {
	client *openai.Client
	config Config
}

// NewOpenAI creates an OpenAI provider.
func NewOpenAI(cfg Config) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	slog.Info("Initialized OpenAI completion provider",
		slog.String("model", cfg.Model),
		slog.Int("max_tokens", cfg.MaxTokens))

	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		config: cfg,
	}
}

// Name implements Provider.
func (o *OpenAI) Name() string {
	return ProviderOpenAI
}

// Complete implements Provider. An image is sent inline as a base64 data URL.
func (o *OpenAI) Complete(ctx context.Context, req Request) (*Response, usage.Report, error) {
	if err := req.Validate(); err != nil {
		return nil, usage.Report{}, err
	}

	chatReq := openai.ChatCompletionRequest{
		Model:     o.config.Model,
		MaxTokens: o.config.MaxTokens,
		Messages:  o.buildMessages(req),
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, chatReq)
	duration := time.Since(start)

	if err != nil {
		metrics.RecordCompletion(o.Name(), false, duration, 0, 0)
		slog.ErrorContext(ctx, "OpenAI completion failed",
			slog.Duration("duration", duration),
			slog.Bool("vision", req.HasImage()),
			slog.String("error", err.Error()))
		return nil, usage.Report{}, fmt.Errorf("openai api error: %w", err)
	}

	report := usage.Report{
		UnitsIn:  int64(resp.Usage.PromptTokens),
		UnitsOut: int64(resp.Usage.CompletionTokens),
	}

	// Safety check to prevent panic on array access
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		metrics.RecordCompletion(o.Name(), false, duration, 0, 0)
		return nil, report, ErrEmptyResponse
	}

	metrics.RecordCompletion(o.Name(), true, duration, report.UnitsIn, report.UnitsOut)
	slog.InfoContext(ctx, "OpenAI completion finished",
		slog.String("model", resp.Model),
		slog.Int64("tokens_in", report.UnitsIn),
		slog.Int64("tokens_out", report.UnitsOut),
		slog.Duration("duration", duration))

	return &Response{
		Text:         resp.Choices[0].Message.Content,
		Model:        resp.Model,
		FinishReason: string(resp.Choices[0].FinishReason),
	}, report, nil
}

func (o *OpenAI) buildMessages(req Request) []openai.ChatCompletionMessage {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	if !req.HasImage() {
		return append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: req.Prompt,
		})
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", req.imageMIME(), base64.StdEncoding.EncodeToString(req.Image))
	return append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
		},
	})
}
