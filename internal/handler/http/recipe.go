package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"diet-cookbook/internal/handler/http/middleware"
	"diet-cookbook/internal/handler/http/respond"
	"diet-cookbook/internal/infra/storage"
	"diet-cookbook/internal/usecase/recipe"
)

const (
	maxListItems  = 50
	maxItemLength = 100
)

// RecipeService is the use case behind the AI endpoints.
type RecipeService interface {
	Generate(ctx context.Context, callerKey string, req recipe.GenerateRequest) (*recipe.Recipe, error)
	VerifyUpload(ctx context.Context, callerKey, objectKey string) (*storage.ObjectInfo, error)
}

type recipeRequest struct {
	Ingredients  []string `json:"ingredients"`
	Restrictions []string `json:"restrictions"`
	// Image is a base64-encoded JPEG, PNG or WebP photo.
	Image string `json:"image,omitempty"`
}

type verifyUploadRequest struct {
	Key string `json:"key"`
}

type verifyUploadResponse struct {
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// RecipeHandler serves recipe generation and upload verification.
type RecipeHandler struct {
	Service     RecipeService
	IPExtractor middleware.IPExtractor
}

func (h *RecipeHandler) callerKey(r *http.Request) string {
	return middleware.ClientIP(h.IPExtractor, r)
}

// Generate handles POST /ai/recipe.
//
// @Summary      Generate a recipe
// @Description  Generates a recipe for the given ingredients and dietary restrictions, optionally from a photo.
// @Description  Calls are rate limited per client IP and refused once the AI spend ceiling is reached.
// @Tags         recipes
// @Accept       json
// @Produce      json
// @Param        request body recipeRequest true "Ingredients, restrictions and an optional base64 photo"
// @Success      200 {object} recipe.Recipe
// @Failure      400 {object} respond.ErrorBody "Invalid request"
// @Failure      413 {object} respond.ErrorBody "Request body too large"
// @Failure      415 {object} respond.ErrorBody "Photo is not a JPEG, PNG or WebP image"
// @Failure      429 {object} respond.ErrorBody "Rate limited or spend ceiling reached"
// @Failure      502 {object} respond.ErrorBody "AI provider failed"
// @Failure      503 {object} respond.ErrorBody "AI provider circuit open"
// @Failure      504 {object} respond.ErrorBody "Request timed out"
// @Router       /ai/recipe [post]
func (h *RecipeHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var body recipeRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	req, err := body.toGenerateRequest()
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Image != nil {
		if _, ok := allowedImageTypes[req.ImageMIME]; !ok {
			respond.Error(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "image must be a JPEG, PNG or WebP photo")
			return
		}
	}

	result, err := h.Service.Generate(r.Context(), h.callerKey(r), req)
	if err != nil {
		writeInvocationError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, result)
}

// VerifyUpload handles POST /uploads/verify.
//
// @Summary      Verify an uploaded photo
// @Description  Checks that an object uploaded to blob storage exists, fits the size limit and is a JPEG, PNG or WebP image.
// @Tags         uploads
// @Accept       json
// @Produce      json
// @Param        request body verifyUploadRequest true "Object key"
// @Success      200 {object} verifyUploadResponse
// @Failure      400 {object} respond.ErrorBody "Missing or invalid key"
// @Failure      404 {object} respond.ErrorBody "Object not found"
// @Failure      413 {object} respond.ErrorBody "Object too large"
// @Failure      415 {object} respond.ErrorBody "Object is not an accepted image"
// @Failure      502 {object} respond.ErrorBody "Storage failed"
// @Failure      503 {object} respond.ErrorBody "Storage circuit open"
// @Router       /uploads/verify [post]
func (h *RecipeHandler) VerifyUpload(w http.ResponseWriter, r *http.Request) {
	var body verifyUploadRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Key) == "" {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "key is required")
		return
	}

	info, err := h.Service.VerifyUpload(r.Context(), h.callerKey(r), body.Key)
	if err != nil {
		writeInvocationError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, verifyUploadResponse{
		Key:         info.Key,
		Size:        info.Size,
		ContentType: info.ContentType,
	})
}

var allowedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

func (b recipeRequest) toGenerateRequest() (recipe.GenerateRequest, error) {
	ingredients, err := cleanList("ingredients", b.Ingredients)
	if err != nil {
		return recipe.GenerateRequest{}, err
	}
	restrictions, err := cleanList("restrictions", b.Restrictions)
	if err != nil {
		return recipe.GenerateRequest{}, err
	}

	req := recipe.GenerateRequest{Ingredients: ingredients, Restrictions: restrictions}
	if b.Image != "" {
		img, err := base64.StdEncoding.DecodeString(b.Image)
		if err != nil {
			return recipe.GenerateRequest{}, errors.New("image must be valid base64")
		}
		req.Image = img
		req.ImageMIME = http.DetectContentType(img)
	}
	if len(req.Ingredients) == 0 && req.Image == nil {
		return recipe.GenerateRequest{}, recipe.ErrInvalidRequest
	}
	return req, nil
}

func cleanList(field string, items []string) ([]string, error) {
	if len(items) > maxListItems {
		return nil, fmt.Errorf("%s cannot have more than %d items", field, maxListItems)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if utf8.RuneCountInString(item) > maxItemLength {
			return nil, fmt.Errorf("%s items must be at most %d characters", field, maxItemLength)
		}
		out = append(out, item)
	}
	return out, nil
}

// decodeJSON decodes the request body into v, answering 400 or 413 itself on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body is too large")
			return false
		}
		respond.Error(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return false
	}
	return true
}
