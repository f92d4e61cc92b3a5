package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pageza/kitchen-assistant/backend/internal/logger"
	"github.com/pageza/kitchen-assistant/backend/internal/mocks"
	"github.com/pageza/kitchen-assistant/backend/internal/provider"
	"github.com/pageza/kitchen-assistant/backend/internal/recipe"
	"github.com/pageza/kitchen-assistant/backend/internal/retry"
	"github.com/pageza/kitchen-assistant/backend/internal/service"
)

const recipeText = "Nombre de la receta: Sopa de tomate\nCorta el tomate y la cebolla.\nLISTA DE COMPRAS SUGERIDA:\n- sal"

var testImage = provider.Image{Base64: "aGk=", MimeType: "image/jpeg"}

func newCaller() *retry.Caller {
	c := retry.New(3, time.Second, logger.Discard())
	c.Sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return c
}

func newService(p provider.Provider, opts service.Options) *service.KitchenService {
	return service.NewKitchenService(p, newCaller(), nil, opts, logger.Discard())
}

func TestClampRecipeCount(t *testing.T) {
	assert.Equal(t, 1, service.ClampRecipeCount(-2))
	assert.Equal(t, 1, service.ClampRecipeCount(0))
	assert.Equal(t, 2, service.ClampRecipeCount(2))
	assert.Equal(t, 3, service.ClampRecipeCount(3))
	assert.Equal(t, 3, service.ClampRecipeCount(10))
}

func TestAnalyzeGeneratesRequestedRecipes(t *testing.T) {
	p := new(mocks.MockProvider)
	p.On("DescribeImage", mock.Anything, testImage, recipe.VisionInstruction).Return("tomate, cebolla", nil).Once()
	p.On("Complete", mock.Anything, recipe.SystemMessage, mock.AnythingOfType("string")).Return(recipeText, nil).Twice()

	result, err := newService(p, service.Options{}).Analyze(context.Background(), service.AnalyzeRequest{
		Image:      testImage,
		NumRecipes: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"tomate", "cebolla"}, result.Ingredients)
	require.Len(t, result.Recipes, 2)
	assert.Contains(t, result.Recipes[0], `<h2 class="recipe-title">Sopa de <span class="available-ingredient">tomate</span></h2>`)
	assert.Contains(t, result.Recipes[0], `<span class="available-ingredient">cebolla</span>`)
	p.AssertExpectations(t)
}

func TestAnalyzeSkipsRecipeThatFailsAfterRetries(t *testing.T) {
	p := new(mocks.MockProvider)
	p.On("DescribeImage", mock.Anything, testImage, recipe.VisionInstruction).Return("tomate, cebolla", nil).Once()
	p.On("Complete", mock.Anything, recipe.SystemMessage, mock.Anything).Return(recipeText, nil).Once()
	p.On("Complete", mock.Anything, recipe.SystemMessage, mock.Anything).Return("", retry.Remote(errors.New("server_error: overloaded")))

	result, err := newService(p, service.Options{}).Analyze(context.Background(), service.AnalyzeRequest{
		Image:      testImage,
		NumRecipes: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"tomate", "cebolla"}, result.Ingredients)
	assert.Len(t, result.Recipes, 1)
	// one success plus three attempts for the failing recipe
	p.AssertNumberOfCalls(t, "Complete", 4)
}

func TestAnalyzeSkipsEmptyRecipe(t *testing.T) {
	p := new(mocks.MockProvider)
	p.On("DescribeImage", mock.Anything, testImage, mock.Anything).Return("huevo", nil)
	p.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("   ", nil)

	result, err := newService(p, service.Options{}).Analyze(context.Background(), service.AnalyzeRequest{Image: testImage, NumRecipes: 1})
	require.NoError(t, err)
	assert.Empty(t, result.Recipes)
	assert.NotNil(t, result.Recipes)
}

func TestAnalyzeVisionFailure(t *testing.T) {
	p := new(mocks.MockProvider)
	fatal := retry.Remote(errors.New("invalid_request_error: bad image"))
	p.On("DescribeImage", mock.Anything, testImage, mock.Anything).Return("", fatal)

	_, err := newService(p, service.Options{}).Analyze(context.Background(), service.AnalyzeRequest{Image: testImage, NumRecipes: 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrVisionFailed)
	assert.ErrorIs(t, err, fatal)

	// fatal errors are not retried and no recipe is requested
	p.AssertNumberOfCalls(t, "DescribeImage", 1)
	p.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
}

func TestAnalyzeNoIngredients(t *testing.T) {
	p := new(mocks.MockProvider)
	p.On("DescribeImage", mock.Anything, testImage, mock.Anything).Return(" , ,", nil)

	_, err := newService(p, service.Options{}).Analyze(context.Background(), service.AnalyzeRequest{Image: testImage})
	assert.ErrorIs(t, err, service.ErrNoIngredients)
	p.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
}

func TestAnalyzeMergesMainIngredientsIntoPrompt(t *testing.T) {
	p := new(mocks.MockProvider)
	p.On("DescribeImage", mock.Anything, testImage, mock.Anything).Return("", nil)
	p.On("Complete", mock.Anything, recipe.SystemMessage, mock.MatchedBy(func(prompt string) bool {
		return assert.ObjectsAreEqual(recipe.BuildPrompt([]string{"huevo", "patata"}, "nueces", "española"), prompt)
	})).Return(recipeText, nil).Once()

	result, err := newService(p, service.Options{}).Analyze(context.Background(), service.AnalyzeRequest{
		Image:           testImage,
		NumRecipes:      1,
		Allergies:       "nueces",
		MainIngredients: "huevo, patata",
		CuisineType:     "española",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"huevo", "patata"}, result.Ingredients)
	assert.Len(t, result.Recipes, 1)
	p.AssertExpectations(t)
}

func TestAnalyzeClampsRecipeCount(t *testing.T) {
	p := new(mocks.MockProvider)
	p.On("DescribeImage", mock.Anything, testImage, mock.Anything).Return("arroz", nil)
	p.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(recipeText, nil)

	result, err := newService(p, service.Options{}).Analyze(context.Background(), service.AnalyzeRequest{Image: testImage, NumRecipes: 9})
	require.NoError(t, err)
	assert.Len(t, result.Recipes, 3)
	p.AssertNumberOfCalls(t, "Complete", 3)
}

func TestAnalyzeParallel(t *testing.T) {
	p := new(mocks.MockProvider)
	p.On("DescribeImage", mock.Anything, testImage, mock.Anything).Return("tomate", nil)
	p.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(recipeText, nil).Twice()
	p.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("", retry.Remote(errors.New("invalid_api_key")))

	result, err := newService(p, service.Options{Parallel: true}).Analyze(context.Background(), service.AnalyzeRequest{Image: testImage, NumRecipes: 3})
	require.NoError(t, err)
	assert.Len(t, result.Recipes, 2)
	p.AssertNumberOfCalls(t, "Complete", 3)
}

type blockingProvider struct {
	calls int
}

func (b *blockingProvider) DescribeImage(context.Context, provider.Image, string) (string, error) {
	return "tomate", nil
}

func (b *blockingProvider) Complete(ctx context.Context, _, _ string) (string, error) {
	b.calls++
	<-ctx.Done()
	return "", ctx.Err()
}

func TestAnalyzeStopsAtRequestTimeout(t *testing.T) {
	p := &blockingProvider{}
	svc := newService(p, service.Options{Timeout: 50 * time.Millisecond})

	start := time.Now()
	result, err := svc.Analyze(context.Background(), service.AnalyzeRequest{Image: testImage, NumRecipes: 3})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, []string{"tomate"}, result.Ingredients)
	assert.Empty(t, result.Recipes)
	assert.Equal(t, 1, p.calls)
}
