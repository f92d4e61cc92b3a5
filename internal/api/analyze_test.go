package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pageza/kitchen-assistant/backend/config"
	"github.com/pageza/kitchen-assistant/backend/internal/logger"
	"github.com/pageza/kitchen-assistant/backend/internal/mocks"
	"github.com/pageza/kitchen-assistant/backend/internal/provider"
	"github.com/pageza/kitchen-assistant/backend/internal/recipe"
	"github.com/pageza/kitchen-assistant/backend/internal/retry"
	"github.com/pageza/kitchen-assistant/backend/internal/service"
	"github.com/pageza/kitchen-assistant/backend/internal/storage"
)

const recipeText = "Nombre de la receta: Sofrito\nPica la cebolla y el tomate.\nLISTA DE COMPRAS SUGERIDA:\n- aceite"

type analyzeResponse struct {
	Success     bool     `json:"success"`
	Ingredients []string `json:"ingredients"`
	Recipes     []string `json:"recipes"`
	Error       string   `json:"error"`
}

var testPolicy = UploadPolicy{
	MaxContentLength: 1 << 20,
	IsAllowed:        (&config.Config{AllowedExtensions: []string{"png", "jpg", "jpeg"}}).IsAllowedExtension,
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newAnalyzeRouter(h *AnalyzeHandler) *gin.Engine {
	r := gin.New()
	r.POST("/analyze", h.Analyze)
	return r
}

func multipartRequest(t *testing.T, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if filename != "" {
		part, err := w.CreateFormFile("images", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(t *testing.T, r http.Handler, req *http.Request) (int, analyzeResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp analyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

// newPipeline wires the real service and disk store around a mocked provider.
func newPipeline(t *testing.T) (*gin.Engine, *mocks.MockProvider, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewDiskStore(dir)
	require.NoError(t, err)

	p := new(mocks.MockProvider)
	caller := retry.New(3, time.Millisecond, logger.Discard())
	caller.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	svc := service.NewKitchenService(p, caller, nil, service.Options{}, logger.Discard())

	return newAnalyzeRouter(NewAnalyzeHandler(svc, store, testPolicy, logger.Discard())), p, dir
}

func assertUploadsRemoved(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "uploaded file must be deleted")
}

func TestAnalyzeEndToEnd(t *testing.T) {
	r, p, dir := newPipeline(t)
	p.On("DescribeImage", mock.Anything, mock.Anything, recipe.VisionInstruction).Return("tomate, cebolla", nil)
	p.On("Complete", mock.Anything, recipe.SystemMessage, mock.Anything).Return(recipeText, nil).Twice()

	code, resp := serve(t, r, multipartRequest(t, "nevera.jpg", []byte("jpeg-bytes"), map[string]string{"num_recipes": "2"}))

	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"tomate", "cebolla"}, resp.Ingredients)
	assert.Len(t, resp.Recipes, 2)
	assertUploadsRemoved(t, dir)

	img, ok := p.Calls[0].Arguments.Get(1).(provider.Image)
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", img.MimeType)
	assert.Equal(t, "anBlZy1ieXRlcw==", img.Base64)
}

func TestAnalyzeEndToEndSkipsFailedRecipe(t *testing.T) {
	r, p, dir := newPipeline(t)
	p.On("DescribeImage", mock.Anything, mock.Anything, mock.Anything).Return("tomate, cebolla", nil)
	p.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(recipeText, nil).Once()
	p.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("", retry.Remote(errors.New("Error code: 503 - server_error")))

	code, resp := serve(t, r, multipartRequest(t, "nevera.jpg", []byte("jpeg-bytes"), map[string]string{"num_recipes": "2"}))

	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"tomate", "cebolla"}, resp.Ingredients)
	assert.Len(t, resp.Recipes, 1)
	assertUploadsRemoved(t, dir)
}

func TestAnalyzeVisionFailureIsReportedInBand(t *testing.T) {
	r, p, dir := newPipeline(t)
	p.On("DescribeImage", mock.Anything, mock.Anything, mock.Anything).Return("", retry.Remote(errors.New("invalid_api_key")))

	code, resp := serve(t, r, multipartRequest(t, "nevera.png", []byte("png"), nil))

	assert.Equal(t, http.StatusOK, code)
	assert.False(t, resp.Success)
	assert.Equal(t, MsgAnalysisFailed, resp.Error)
	assert.NotContains(t, resp.Error, "invalid_api_key")
	assertUploadsRemoved(t, dir)
}

func TestAnalyzeNoIngredients(t *testing.T) {
	r, p, dir := newPipeline(t)
	p.On("DescribeImage", mock.Anything, mock.Anything, mock.Anything).Return("", nil)

	_, resp := serve(t, r, multipartRequest(t, "nevera.png", []byte("png"), nil))

	assert.False(t, resp.Success)
	assert.Equal(t, MsgNoIngredients, resp.Error)
	assertUploadsRemoved(t, dir)
}

func TestAnalyzeValidation(t *testing.T) {
	store := new(mocks.MockStore)
	svc := new(mocks.MockKitchenService)
	r := newAnalyzeRouter(NewAnalyzeHandler(svc, store, testPolicy, logger.Discard()))

	t.Run("no images field", func(t *testing.T) {
		_, resp := serve(t, r, multipartRequest(t, "", nil, map[string]string{"num_recipes": "1"}))
		assert.False(t, resp.Success)
		assert.Equal(t, MsgNoFilesUploaded, resp.Error)
	})

	t.Run("not a multipart request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{"images":[]}`))
		req.Header.Set("Content-Type", "application/json")
		_, resp := serve(t, r, req)
		assert.Equal(t, MsgNoFilesUploaded, resp.Error)
	})

	t.Run("disallowed extension", func(t *testing.T) {
		code, resp := serve(t, r, multipartRequest(t, "receta.gif", []byte("gif"), nil))
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, MsgInvalidType, resp.Error)
	})

	t.Run("missing extension", func(t *testing.T) {
		_, resp := serve(t, r, multipartRequest(t, "foto", []byte("x"), nil))
		assert.Equal(t, MsgInvalidType, resp.Error)
	})

	t.Run("too large", func(t *testing.T) {
		code, resp := serve(t, r, multipartRequest(t, "nevera.jpg", bytes.Repeat([]byte("a"), 2<<20), nil))
		assert.Equal(t, http.StatusOK, code)
		assert.False(t, resp.Success)
		assert.Equal(t, MsgFileTooLarge, resp.Error)
	})

	t.Run("too large without content length", func(t *testing.T) {
		req := multipartRequest(t, "nevera.jpg", bytes.Repeat([]byte("a"), 2<<20), nil)
		req.ContentLength = -1
		code, resp := serve(t, r, req)
		assert.Equal(t, http.StatusOK, code)
		assert.False(t, resp.Success)
		assert.Equal(t, MsgFileTooLarge, resp.Error)
	})

	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
	svc.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
}

func TestAnalyzePassesTrimmedFields(t *testing.T) {
	store := new(mocks.MockStore)
	store.On("Save", mock.Anything, "plato.jpeg", mock.Anything).Return("key-1", nil)
	store.On("Open", mock.Anything, "key-1").Return(io.NopCloser(strings.NewReader("hi")), nil)
	store.On("Delete", mock.Anything, "key-1").Return(nil).Once()

	svc := new(mocks.MockKitchenService)
	svc.On("Analyze", mock.Anything, mock.MatchedBy(func(req service.AnalyzeRequest) bool {
		return req.NumRecipes == 3 &&
			req.Allergies == "nueces" &&
			req.MainIngredients == "arroz, pollo" &&
			req.CuisineType == "japonesa" &&
			req.Image.Base64 == "aGk=" &&
			req.Image.MimeType == "image/jpeg"
	})).Return(&service.AnalyzeResult{Ingredients: []string{"arroz"}, Recipes: []string{"<div></div>"}}, nil)

	r := newAnalyzeRouter(NewAnalyzeHandler(svc, store, testPolicy, logger.Discard()))
	_, resp := serve(t, r, multipartRequest(t, "plato.jpeg", []byte("hi"), map[string]string{
		"num_recipes":      " 3 ",
		"allergies":        "  nueces ",
		"main_ingredients": " arroz, pollo",
		"cuisine_type":     "japonesa  ",
	}))

	assert.True(t, resp.Success)
	assert.Equal(t, []string{"arroz"}, resp.Ingredients)
	store.AssertExpectations(t)
	svc.AssertExpectations(t)
}

func TestAnalyzeUnexpectedErrorStillCleansUp(t *testing.T) {
	store := new(mocks.MockStore)
	store.On("Save", mock.Anything, "plato.png", mock.Anything).Return("key-2", nil)
	store.On("Open", mock.Anything, "key-2").Return(io.NopCloser(strings.NewReader("x")), nil)
	// a failed delete is logged, never returned
	store.On("Delete", mock.Anything, "key-2").Return(errors.New("disk gone")).Once()

	svc := new(mocks.MockKitchenService)
	svc.On("Analyze", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

	r := newAnalyzeRouter(NewAnalyzeHandler(svc, store, testPolicy, logger.Discard()))
	code, resp := serve(t, r, multipartRequest(t, "plato.png", []byte("x"), nil))

	assert.Equal(t, http.StatusOK, code)
	assert.False(t, resp.Success)
	assert.Equal(t, MsgUnexpected, resp.Error)
	store.AssertExpectations(t)
}

func TestAnalyzeSaveFailure(t *testing.T) {
	store := new(mocks.MockStore)
	store.On("Save", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("read-only"))
	svc := new(mocks.MockKitchenService)

	r := newAnalyzeRouter(NewAnalyzeHandler(svc, store, testPolicy, logger.Discard()))
	_, resp := serve(t, r, multipartRequest(t, "plato.png", []byte("x"), nil))

	assert.Equal(t, MsgUnexpected, resp.Error)
	store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestParseNumRecipes(t *testing.T) {
	assert.Equal(t, 1, parseNumRecipes(""))
	assert.Equal(t, 1, parseNumRecipes("dos"))
	assert.Equal(t, 2, parseNumRecipes("2"))
	assert.Equal(t, 7, parseNumRecipes(" 7 "))
	assert.Equal(t, -1, parseNumRecipes("-1"))
}

func TestIndexAndHealth(t *testing.T) {
	r := gin.New()
	r.GET("/", Index)
	r.GET("/health", Health)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), `name="images"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
