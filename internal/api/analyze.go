package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pageza/kitchen-assistant/backend/internal/logger"
	"github.com/pageza/kitchen-assistant/backend/internal/middleware"
	"github.com/pageza/kitchen-assistant/backend/internal/provider"
	"github.com/pageza/kitchen-assistant/backend/internal/service"
	"github.com/pageza/kitchen-assistant/backend/internal/storage"
)

const cleanupTimeout = 10 * time.Second

// UploadPolicy decides which uploads are accepted.
type UploadPolicy struct {
	MaxContentLength int64
	IsAllowed        func(filename string) bool
}

// AnalyzeHandler handles image analysis requests
type AnalyzeHandler struct {
	service service.IKitchenService
	store   storage.Store
	policy  UploadPolicy
	logger  *slog.Logger
}

// NewAnalyzeHandler creates a new analyze handler
func NewAnalyzeHandler(svc service.IKitchenService, store storage.Store, policy UploadPolicy, l *slog.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{
		service: svc,
		store:   store,
		policy:  policy,
		logger:  logger.OrDefault(l),
	}
}

// Analyze accepts a multipart upload with an "images" file and the optional
// fields num_recipes, allergies, main_ingredients and cuisine_type.
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	ctx := c.Request.Context()
	log := h.logger.With("request_id", middleware.RequestIDFrom(c))

	if h.policy.MaxContentLength > 0 {
		if c.Request.ContentLength > h.policy.MaxContentLength {
			log.WarnContext(ctx, "upload too large", "content_length", c.Request.ContentLength)
			fail(c, http.StatusOK, MsgFileTooLarge)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.policy.MaxContentLength)
	}

	form, err := c.MultipartForm()
	if err != nil {
		if isTooLarge(err) {
			log.WarnContext(ctx, "upload too large", "error", err)
			fail(c, http.StatusOK, MsgFileTooLarge)
			return
		}
		log.WarnContext(ctx, "no files uploaded in request", "error", err)
		fail(c, http.StatusOK, MsgNoFilesUploaded)
		return
	}

	files, ok := form.File["images"]
	if !ok {
		log.WarnContext(ctx, "no files uploaded in request")
		fail(c, http.StatusOK, MsgNoFilesUploaded)
		return
	}
	if len(files) == 0 || files[0].Filename == "" {
		log.WarnContext(ctx, "no files selected or empty filename")
		fail(c, http.StatusOK, MsgNoFilesSelected)
		return
	}

	file := files[0]
	if h.policy.IsAllowed != nil && !h.policy.IsAllowed(file.Filename) {
		log.WarnContext(ctx, "invalid file type", "filename", file.Filename)
		fail(c, http.StatusOK, MsgInvalidType)
		return
	}

	src, err := file.Open()
	if err != nil {
		log.ErrorContext(ctx, "failed to open uploaded file", "error", err)
		fail(c, http.StatusOK, MsgUnexpected)
		return
	}
	defer func() { _ = src.Close() }()

	key, err := h.store.Save(ctx, file.Filename, src)
	if err != nil {
		log.ErrorContext(ctx, "failed to save uploaded file", "error", err)
		fail(c, http.StatusOK, MsgUnexpected)
		return
	}
	defer h.cleanup(ctx, log, key)
	log.InfoContext(ctx, "file saved", "key", key)

	encoded, err := storage.EncodeToBase64(ctx, h.store, key)
	if err != nil {
		log.ErrorContext(ctx, "failed to encode image", "error", err)
		fail(c, http.StatusOK, MsgUnexpected)
		return
	}

	result, err := h.service.Analyze(ctx, service.AnalyzeRequest{
		Image:           provider.Image{Base64: encoded, MimeType: storage.MimeType(file.Filename)},
		NumRecipes:      parseNumRecipes(c.PostForm("num_recipes")),
		Allergies:       strings.TrimSpace(c.PostForm("allergies")),
		MainIngredients: strings.TrimSpace(c.PostForm("main_ingredients")),
		CuisineType:     strings.TrimSpace(c.PostForm("cuisine_type")),
	})
	switch {
	case errors.Is(err, service.ErrNoIngredients):
		log.WarnContext(ctx, "no ingredients detected")
		fail(c, http.StatusOK, MsgNoIngredients)
		return
	case errors.Is(err, service.ErrVisionFailed):
		log.ErrorContext(ctx, "failed to get response from vision model after retries", "error", err)
		fail(c, http.StatusOK, MsgAnalysisFailed)
		return
	case err != nil:
		log.ErrorContext(ctx, "unexpected error during processing", "error", err)
		fail(c, http.StatusOK, MsgUnexpected)
		return
	}

	log.InfoContext(ctx, "analysis completed", "recipes", len(result.Recipes))
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"ingredients": result.Ingredients,
		"recipes":     result.Recipes,
	})
}

// cleanup deletes the upload. It runs on every path after Save succeeded and
// never fails the request.
func (h *AnalyzeHandler) cleanup(ctx context.Context, log *slog.Logger, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := h.store.Delete(ctx, key); err != nil {
		log.ErrorContext(ctx, "failed to delete uploaded file", "key", key, "error", err)
		return
	}
	log.DebugContext(ctx, "temporary upload removed", "key", key)
}

// parseNumRecipes reads num_recipes, defaulting to one recipe when the field
// is missing or not a number. The service clamps the result.
func parseNumRecipes(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return service.MinRecipes
	}
	return n
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "error": message})
}
