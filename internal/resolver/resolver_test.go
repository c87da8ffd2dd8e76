package resolver

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fridgecat/fridgecat-go/internal/datastore"
	"github.com/fridgecat/fridgecat-go/internal/errors"
	"github.com/fridgecat/fridgecat-go/internal/foodtext"
	"github.com/fridgecat/fridgecat-go/internal/stilltasty"
)

// fakeStore stubs the lookup path of the datastore; unused methods panic
// through the embedded nil interface.
type fakeStore struct {
	datastore.Interface
	known map[string]*datastore.Ingredient
}

func (f *fakeStore) FindIngredientByName(name string) (*datastore.Ingredient, error) {
	return f.known[name], nil
}

func newTestResolver(known map[string]*datastore.Ingredient) *Resolver {
	store := &fakeStore{known: known}
	client := stilltasty.NewClient(stilltasty.Config{
		Timeout:     5 * time.Second,
		RateLimitMS: 1,
	})
	return New(store, client, foodtext.NewRuleEngine(), DefaultConfig())
}

func searchPage(names ...string) string {
	page := "<html><body>"
	for i, name := range names {
		page += fmt.Sprintf(`<p class="srclisting"><a href="https://www.stilltasty.com/fooditems/index/%d">%s</a></p>`, i+1, name)
	}
	return page + "</body></html>"
}

func itemPage(methods, durations []string) string {
	page := `<html><body><div class="food-inside"><div>`
	for _, m := range methods {
		page += "<span>" + m + "</span>"
	}
	page += "</div><div>"
	for _, d := range durations {
		page += "<span>" + d + "</span>"
	}
	return page + "</div></div></body></html>"
}

const searchEndpoint = "https://www.stilltasty.com/searchitems/search"

func TestResolveBlankMention(t *testing.T) {
	r := newTestResolver(nil)

	result, err := r.Resolve(context.Background(), Mention{Measure: "naan"})
	require.NoError(t, err)
	assert.Empty(t, result.Name)
	assert.Empty(t, result.Ingredients)
	assert.False(t, result.FromStore)
	require.NotNil(t, result.Unit)
	assert.Equal(t, "unknown", result.Unit.Unit)
}

func TestResolveKnownIngredientSkipsUpstream(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	known := &datastore.Ingredient{Name: "butter"}
	known.ID = 7
	r := newTestResolver(map[string]*datastore.Ingredient{"butter": known})

	result, err := r.Resolve(context.Background(), Mention{
		Food:     "Butter",
		Measure:  "cup",
		Quantity: 2,
		Weight:   454,
	})
	require.NoError(t, err)
	assert.True(t, result.FromStore)
	require.Len(t, result.Ingredients, 1)
	assert.Equal(t, uint(7), result.Ingredients[0].ID)
	assert.Equal(t, "cup", result.Unit.Unit)
	assert.Equal(t, float64(2), result.QuantityValue)
	assert.Equal(t, float64(454), result.WeightGrams)
	assert.Zero(t, httpmock.GetTotalCallCount())
}

func TestResolveSingleCandidate(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, searchEndpoint,
		httpmock.NewStringResponder(http.StatusOK, searchPage("Butter")))
	httpmock.RegisterResponder(http.MethodGet, "https://www.stilltasty.com/fooditems/index/1",
		httpmock.NewStringResponder(http.StatusOK, itemPage(
			[]string{"Refrigerator", "Freezer"},
			[]string{"2-3 days", "6 months"},
		)))

	r := newTestResolver(nil)
	result, err := r.Resolve(context.Background(), Mention{
		Food:         "Butter",
		FoodCategory: "Dairy",
		Measure:      "cup",
	})
	require.NoError(t, err)
	assert.False(t, result.FromStore)
	require.Len(t, result.Ingredients, 1)

	ingredient := result.Ingredients[0]
	assert.Equal(t, "butter", ingredient.Name)
	assert.Equal(t, "https://www.stilltasty.com/fooditems/index/1", ingredient.InfoURL)
	assert.Equal(t, "dairy", ingredient.Category)
	assert.Nil(t, ingredient.PantryDays)
	require.NotNil(t, ingredient.RefrigeratorDays)
	assert.Equal(t, uint(3), *ingredient.RefrigeratorDays)
	require.NotNil(t, ingredient.FreezerDays)
	assert.Equal(t, uint(181), *ingredient.FreezerDays)
}

func TestResolveIndefiniteClearsAllDays(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, searchEndpoint,
		httpmock.NewStringResponder(http.StatusOK, searchPage("Honey")))
	httpmock.RegisterResponder(http.MethodGet, "https://www.stilltasty.com/fooditems/index/1",
		httpmock.NewStringResponder(http.StatusOK, itemPage(
			[]string{"Pantry", "Refrigerator"},
			[]string{"Keeps indefinitely", "1 year"},
		)))

	r := newTestResolver(nil)
	result, err := r.Resolve(context.Background(), Mention{Food: "Honey"})
	require.NoError(t, err)
	require.Len(t, result.Ingredients, 1)

	ingredient := result.Ingredients[0]
	assert.Nil(t, ingredient.PantryDays)
	assert.Nil(t, ingredient.RefrigeratorDays)
	assert.Nil(t, ingredient.FreezerDays)
}

func TestResolveSkipsMalformedDuration(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, searchEndpoint,
		httpmock.NewStringResponder(http.StatusOK, searchPage("Cream")))
	httpmock.RegisterResponder(http.MethodGet, "https://www.stilltasty.com/fooditems/index/1",
		httpmock.NewStringResponder(http.StatusOK, itemPage(
			[]string{"Refrigerator", "Freezer"},
			[]string{"see notes below", "6 months"},
		)))

	r := newTestResolver(nil)
	result, err := r.Resolve(context.Background(), Mention{Food: "Cream"})
	require.NoError(t, err)
	require.Len(t, result.Ingredients, 1)

	ingredient := result.Ingredients[0]
	assert.Nil(t, ingredient.RefrigeratorDays)
	require.NotNil(t, ingredient.FreezerDays)
	assert.Equal(t, uint(181), *ingredient.FreezerDays)
}

func TestResolveNoCandidatesIsNotFound(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, searchEndpoint,
		httpmock.NewStringResponder(http.StatusOK, searchPage()))

	r := newTestResolver(nil)
	_, err := r.Resolve(context.Background(), Mention{Food: "unobtainium"})
	require.Error(t, err)
	assert.Equal(t, errors.CategoryNotFound, errors.CategoryOf(err))
}

func TestSearchCandidatesNarrowsToNounChunks(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	// The full query finds nothing; the "basil" noun chunk does.
	httpmock.RegisterResponder(http.MethodPost, searchEndpoint,
		func(req *http.Request) (*http.Response, error) {
			if err := req.ParseForm(); err != nil {
				return nil, err
			}
			if req.FormValue("search") == "basil" {
				return httpmock.NewStringResponse(http.StatusOK, searchPage("Basil, Fresh")), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, searchPage()), nil
		})

	r := newTestResolver(nil)
	urls, err := r.SearchCandidates(context.Background(), "basil", "fresh basil with olive oil")
	require.NoError(t, err)
	require.Len(t, urls, 1)
	assert.Equal(t, "https://www.stilltasty.com/fooditems/index/1", urls[0])
}

func TestSelectCandidatesKeepsTopScoreTies(t *testing.T) {
	r := newTestResolver(nil)

	urls := r.selectCandidates("butter", []stilltasty.Candidate{
		{Name: "Butter - Opened", URL: "https://example.com/1"},
		{Name: "Butter - Raw", URL: "https://example.com/2"},
		{Name: "Butter - Unopened Package", URL: "https://example.com/3"},
		{Name: "Margarine - Opened", URL: "https://example.com/4"},
	})

	assert.Equal(t, []string{"https://example.com/1", "https://example.com/2"}, urls)
}

func TestSelectCandidatesSingleIsAcceptedUnscored(t *testing.T) {
	r := newTestResolver(nil)

	urls := r.selectCandidates("butter", []stilltasty.Candidate{
		{Name: "Something Entirely Unrelated", URL: "https://example.com/1"},
	})
	assert.Equal(t, []string{"https://example.com/1"}, urls)
}

func TestScoreCandidate(t *testing.T) {
	r := newTestResolver(nil)

	tests := []struct {
		name    string
		listing string
		want    float64
	}{
		{"exact name without qualifier", "Butter", 2.0},
		{"storage qualifier earns bonus", "Butter - Opened", 2.0},
		{"kosher qualifier earns bonus", "Butter - Kosher", 2.0},
		{"other qualifier forfeits bonus", "Butter - Salted", 1.0},
		{"dissimilar name keeps only bonus", "Maple Syrup", 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, r.scoreCandidate("butter", tt.listing), 0.01)
		})
	}
}
