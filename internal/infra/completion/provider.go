// Package completion provides AI completion adapters for OpenAI and Claude (Anthropic).
//
// Adapters perform exactly one provider round trip per call and report the tokens
// consumed. Retry, circuit breaking and budget enforcement are applied by the
// caller through the resilience invoker, never inside an adapter.
package completion

import (
	"context"
	"errors"
	"fmt"

	"diet-cookbook/internal/resilience"
	"diet-cookbook/internal/usage"
)

// ErrEmptyResponse is returned when the provider answered without any content.
var ErrEmptyResponse = errors.New("completion: provider returned empty response")

// Request is a single completion request.
type Request struct {
	// System is the system prompt.
	System string

	// Prompt is the user prompt. Required.
	Prompt string

	// Image is an optional image sent alongside the prompt (vision request).
	Image []byte

	// ImageMIME is the media type of Image. Defaults to image/jpeg.
	ImageMIME string

	// JSON asks the provider for a single JSON object as output.
	JSON bool

	// MaxTokens overrides the configured response limit when positive.
	MaxTokens int
}

// HasImage reports whether the request carries an image.
func (r Request) HasImage() bool {
	return len(r.Image) > 0
}

func (r Request) imageMIME() string {
	if r.ImageMIME == "" {
		return "image/jpeg"
	}
	return r.ImageMIME
}

// Validate rejects requests that no provider could serve.
// The error is permanent: resending the same request cannot succeed.
func (r Request) Validate() error {
	if r.Prompt == "" {
		return resilience.Permanent(errors.New("completion: prompt cannot be empty"))
	}
	return nil
}

// Response is the provider's answer.
type Response struct {
	Text         string
	Model        string
	FinishReason string
}

// Provider performs one completion round trip.
type Provider interface {
	// Complete sends req and returns the answer with the tokens consumed.
	Complete(ctx context.Context, req Request) (*Response, usage.Report, error)

	// Name identifies the provider in logs and metrics.
	Name() string
}

// NewProvider builds the provider selected by cfg.Provider.
func NewProvider(cfg Config) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAI(cfg), nil
	case ProviderClaude:
		return NewClaude(cfg), nil
	default:
		return nil, fmt.Errorf("completion: unsupported provider %q", cfg.Provider)
	}
}
