package edamam

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fridgecat/fridgecat-go/internal/errors"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(Config{
		AppID:       "test-id",
		AppKey:      "test-key",
		Timeout:     5 * time.Second,
		RateLimitMS: 1,
	})
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(Config{AppKey: "key-only"})
	require.Error(t, err)
	assert.Equal(t, errors.CategoryConfiguration, errors.CategoryOf(err))

	_, err = NewClient(Config{AppID: "id-only"})
	require.Error(t, err)
	assert.Equal(t, errors.CategoryConfiguration, errors.CategoryOf(err))
}

func TestSearchURLOmitsCredentials(t *testing.T) {
	c := newTestClient(t)
	searchURL := c.SearchURL("Apple+Pie")
	assert.Contains(t, searchURL, "https://api.edamam.com/search?")
	assert.NotContains(t, searchURL, "test-id")
	assert.NotContains(t, searchURL, "test-key")
}

func TestSearchRecipesDecodesHits(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, `=~^https://api\.edamam\.com/search`,
		httpmock.NewStringResponder(http.StatusOK, `{
			"q": "apple pie",
			"count": 1,
			"hits": [{"recipe": {
				"label": "Apple Pie",
				"url": "https://www.bbcgoodfood.com/recipes/apple-pie",
				"yield": 4,
				"totalTime": 80,
				"healthLabels": ["Vegetarian"],
				"ingredients": [{"food": "Apples", "foodCategory": "fruit", "quantity": 6, "measure": "unit", "weight": 900}],
				"totalNutrients": {
					"ENERC_KCAL": {"label": "Energy", "quantity": 800, "unit": "kcal"},
					"FAT": {"label": "Fat", "quantity": 40, "unit": "g"}
				}
			}}]
		}`))

	c := newTestClient(t)
	hits, err := c.SearchRecipes(context.Background(), "apple pie")
	require.NoError(t, err)
	require.Len(t, hits, 1)

	recipe := hits[0].Recipe
	assert.Equal(t, "Apple Pie", recipe.Label)
	assert.Equal(t, float64(4), recipe.Yield)
	assert.Equal(t, float64(80), recipe.TotalTime)
	assert.Equal(t, []string{"Vegetarian"}, recipe.HealthLabels)
	require.Len(t, recipe.Ingredients, 1)
	assert.Equal(t, "Apples", recipe.Ingredients[0].Food)
	assert.Equal(t, float64(900), recipe.Ingredients[0].Weight)
	assert.Equal(t, float64(800), recipe.TotalNutrients.Energy.Quantity)
	assert.Equal(t, float64(40), recipe.TotalNutrients.Fat.Quantity)
}

func TestSearchRecipesEmptyQuery(t *testing.T) {
	c := newTestClient(t)
	_, err := c.SearchRecipes(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, errors.CategoryValidation, errors.CategoryOf(err))
}

func TestSearchRecipesCachesResults(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, `=~^https://api\.edamam\.com/search`,
		httpmock.NewStringResponder(http.StatusOK, `{"hits":[]}`))

	c := newTestClient(t)
	_, err := c.SearchRecipes(context.Background(), "apple pie")
	require.NoError(t, err)
	_, err = c.SearchRecipes(context.Background(), "apple pie")
	require.NoError(t, err)

	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestSearchRecipesAuthFailureIsNotRetried(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, `=~^https://api\.edamam\.com/search`,
		httpmock.NewStringResponder(http.StatusUnauthorized, `{"message":"unauthorized"}`))

	c := newTestClient(t)
	_, err := c.SearchRecipes(context.Background(), "apple pie")
	require.Error(t, err)
	assert.Equal(t, errors.CategoryConfiguration, errors.CategoryOf(err))
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestRedactCredentials(t *testing.T) {
	raw := "https://api.edamam.com/search?app_id=secret-id&app_key=secret-key&q=pie"
	redacted := redactCredentials(raw)
	assert.NotContains(t, redacted, "secret-id")
	assert.NotContains(t, redacted, "secret-key")
	assert.Contains(t, redacted, "q=pie")
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, errors.CategoryConfiguration, getErrorCategory(401))
	assert.Equal(t, errors.CategoryConfiguration, getErrorCategory(403))
	assert.Equal(t, errors.CategoryNotFound, getErrorCategory(404))
	assert.Equal(t, errors.CategoryNetwork, getErrorCategory(503))
	assert.Equal(t, errors.CategoryHTTP, getErrorCategory(429))
}
