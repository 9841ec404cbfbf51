// Package recipe generates restricted-diet recipes with the AI completion provider
// and verifies the photos clients upload for vision requests.
//
// Every external call goes through a resilience invoker. Errors returned by the
// invoker are propagated unchanged so callers can classify them with
// resilience.OutcomeOf.
package recipe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"diet-cookbook/internal/infra/completion"
	"diet-cookbook/internal/infra/storage"
	"diet-cookbook/internal/observability/logging"
	"diet-cookbook/internal/resilience/invoker"
	"diet-cookbook/internal/usage"
)

const (
	// TextEstimate is the estimated cost of a text-only generation.
	TextEstimate = 0.01

	// VisionEstimate is the estimated cost of a generation with a photo.
	VisionEstimate = 0.03

	// DefaultVisionTimeout bounds a single vision attempt.
	DefaultVisionTimeout = 45 * time.Second
)

var (
	// ErrInvalidRequest is returned when a request has neither ingredients nor a photo.
	ErrInvalidRequest = errors.New("recipe: ingredients or a photo are required")

	// ErrMalformedRecipe is returned when the provider output is not a usable recipe.
	ErrMalformedRecipe = errors.New("recipe: provider returned a malformed recipe")
)

const systemPrompt = "You are a professional chef specializing in restricted dietary needs. " +
	"Output valid JSON matching this schema: { title: str, description: str, ingredients: string[], " +
	"instructions: string[], dietary_tags: string[], prep_time_minutes: int, cook_time_minutes: int }."

// Recipe is a generated recipe.
type Recipe struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Ingredients     []string `json:"ingredients"`
	Instructions    []string `json:"instructions"`
	DietaryTags     []string `json:"dietary_tags"`
	PrepTimeMinutes int      `json:"prep_time_minutes"`
	CookTimeMinutes int      `json:"cook_time_minutes"`
}

// GenerateRequest describes what to cook.
type GenerateRequest struct {
	Ingredients  []string
	Restrictions []string

	// Image is an optional photo of the available ingredients.
	Image     []byte
	ImageMIME string
}

func (r GenerateRequest) hasImage() bool {
	return len(r.Image) > 0
}

func (r GenerateRequest) prompt() string {
	restrictions := "none"
	if len(r.Restrictions) > 0 {
		restrictions = strings.Join(r.Restrictions, ", ")
	}
	var b strings.Builder
	if len(r.Ingredients) > 0 {
		fmt.Fprintf(&b, "Create a recipe using these ingredients: %s. ", strings.Join(r.Ingredients, ", "))
	} else {
		b.WriteString("Identify ingredients from the photo and create a recipe. ")
	}
	fmt.Fprintf(&b, "Restrictions: %s.", restrictions)
	return b.String()
}

// Dependencies wires the service.
type Dependencies struct {
	Provider   completion.Provider
	Completion *invoker.Invoker[*Recipe]

	Verifier storage.Verifier
	Storage  *invoker.Invoker[*storage.ObjectInfo]

	// VisionTimeout replaces the completion invoker's per-call timeout for
	// requests carrying a photo. Default: 45s
	VisionTimeout time.Duration
}

// Service generates recipes and verifies uploads.
type Service struct {
	provider      completion.Provider
	completion    *invoker.Invoker[*Recipe]
	verifier      storage.Verifier
	storage       *invoker.Invoker[*storage.ObjectInfo]
	visionTimeout time.Duration
}

// NewService creates a Service.
func NewService(deps Dependencies) *Service {
	if deps.VisionTimeout <= 0 {
		deps.VisionTimeout = DefaultVisionTimeout
	}
	return &Service{
		provider:      deps.Provider,
		completion:    deps.Completion,
		verifier:      deps.Verifier,
		storage:       deps.Storage,
		visionTimeout: deps.VisionTimeout,
	}
}

// Generate asks the provider for a recipe on behalf of callerKey.
//
// The call is admitted by the ai-generation limiter and the spend ceiling
// before the provider is contacted. Malformed provider output counts as a
// failed attempt and is retried like any other provider failure; its tokens
// were billed, so its usage is still recorded.
func (s *Service) Generate(ctx context.Context, callerKey string, req GenerateRequest) (*Recipe, error) {
	logger := logging.WithRequestID(ctx, slog.Default())

	if len(req.Ingredients) == 0 && !req.hasImage() {
		logger.Warn("recipe request without ingredients or photo")
		return nil, ErrInvalidRequest
	}

	estimate := TextEstimate
	var opts []invoker.CallOption
	if req.hasImage() {
		estimate = VisionEstimate
		opts = append(opts, invoker.WithTimeout(s.visionTimeout))
	}

	completionReq := completion.Request{
		System:    systemPrompt,
		Prompt:    req.prompt(),
		Image:     req.Image,
		ImageMIME: req.ImageMIME,
		JSON:      true,
	}

	recipe, err := s.completion.Invoke(ctx, callerKey, estimate, func(ctx context.Context) (*Recipe, usage.Report, error) {
		resp, report, err := s.provider.Complete(ctx, completionReq)
		if err != nil {
			return nil, report, err
		}
		recipe, err := decodeRecipe(resp.Text)
		if err != nil {
			return nil, report, err
		}
		return recipe, report, nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	logger.Info("recipe generated",
		slog.String("title", recipe.Title),
		slog.Bool("vision", req.hasImage()),
		slog.String("provider", s.provider.Name()))
	return recipe, nil
}

// VerifyUpload checks an uploaded photo through the storage invoker.
func (s *Service) VerifyUpload(ctx context.Context, callerKey, objectKey string) (*storage.ObjectInfo, error) {
	return s.storage.Invoke(ctx, callerKey, 0, func(ctx context.Context) (*storage.ObjectInfo, usage.Report, error) {
		info, err := s.verifier.Verify(ctx, objectKey)
		return info, usage.Report{}, err
	})
}

func decodeRecipe(text string) (*Recipe, error) {
	var r Recipe
	if err := json.Unmarshal([]byte(extractJSON(text)), &r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecipe, err)
	}
	if strings.TrimSpace(r.Title) == "" || len(r.Instructions) == 0 {
		return nil, fmt.Errorf("%w: missing title or instructions", ErrMalformedRecipe)
	}
	return &r, nil
}

// extractJSON trims anything around the outermost JSON object, such as a
// markdown code fence some models add despite being asked not to.
func extractJSON(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return text
	}
	return text[start : end+1]
}
