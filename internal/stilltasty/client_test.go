package stilltasty

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

func newTestClient() *Client {
	return NewClient(Config{Timeout: 5 * time.Second, RateLimitMS: 1})
}

func TestSearchURLUsesBaseURL(t *testing.T) {
	c := newTestClient()
	assert.Equal(t, "https://www.stilltasty.com/searchitems/search", c.SearchURL())

	custom := NewClient(Config{BaseURL: "https://shelf.example.com", Timeout: time.Second, RateLimitMS: 1})
	assert.Equal(t, "https://shelf.example.com/searchitems/search", custom.SearchURL())
}

func TestSearchEmptyQuery(t *testing.T) {
	c := newTestClient()
	_, err := c.Search(context.Background(), "  ")
	require.Error(t, err)
	assert.Equal(t, errors.CategoryValidation, errors.CategoryOf(err))
}

func TestSearchParsesCandidates(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "https://www.stilltasty.com/searchitems/search",
		httpmock.NewStringResponder(http.StatusOK, `<html><body>
			<p class="srclisting"><a href="https://www.stilltasty.com/fooditems/index/1">Butter - Opened</a></p>
			<p class="srclisting"><a href="https://www.stilltasty.com/fooditems/index/2">Butter - Unopened</a></p>
		</body></html>`))

	c := newTestClient()
	candidates, err := c.Search(context.Background(), "butter")
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "Butter - Opened", candidates[0].Name)
	assert.Equal(t, "https://www.stilltasty.com/fooditems/index/1", candidates[0].URL)
}

func TestSearchNoResults(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "https://www.stilltasty.com/searchitems/search",
		httpmock.NewStringResponder(http.StatusOK, `<html><body><p>No results found.</p></body></html>`))

	c := newTestClient()
	candidates, err := c.Search(context.Background(), "unobtainium")
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestSearchRejectsBrokenListing(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	// A listing entry without an href is a layout change, not a result.
	httpmock.RegisterResponder(http.MethodPost, "https://www.stilltasty.com/searchitems/search",
		httpmock.NewStringResponder(http.StatusOK, `<html><body>
			<p class="srclisting"><a>Butter - Opened</a></p>
		</body></html>`))

	c := newTestClient()
	_, err := c.Search(context.Background(), "butter")
	require.Error(t, err)
	assert.Equal(t, errors.CategoryParsing, errors.CategoryOf(err))
}

func TestSearchCachesResults(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "https://www.stilltasty.com/searchitems/search",
		httpmock.NewStringResponder(http.StatusOK,
			`<html><body><p class="srclisting"><a href="https://www.stilltasty.com/fooditems/index/1">Butter</a></p></body></html>`))

	c := newTestClient()
	_, err := c.Search(context.Background(), "butter")
	require.NoError(t, err)
	_, err = c.Search(context.Background(), "butter")
	require.NoError(t, err)

	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestFetchItemParsesStorageEntries(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	itemURL := "https://www.stilltasty.com/fooditems/index/1"
	httpmock.RegisterResponder(http.MethodGet, itemURL,
		httpmock.NewStringResponder(http.StatusOK, `<html><body><div class="food-inside">
			<div><span>Refrigerator</span><span>Freezer</span></div>
			<div><span>1-2 months</span><span>6-9 months</span></div>
		</div></body></html>`))

	c := newTestClient()
	item, err := c.FetchItem(context.Background(), itemURL)
	require.NoError(t, err)
	assert.Equal(t, itemURL, item.URL)
	require.Len(t, item.Entries, 2)
	assert.Equal(t, StorageEntry{MethodText: "Refrigerator", LifeText: "1-2 months"}, item.Entries[0])
	assert.Equal(t, StorageEntry{MethodText: "Freezer", LifeText: "6-9 months"}, item.Entries[1])
}

func TestFetchItemRejectsMismatchedLists(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	itemURL := "https://www.stilltasty.com/fooditems/index/1"
	httpmock.RegisterResponder(http.MethodGet, itemURL,
		httpmock.NewStringResponder(http.StatusOK, `<html><body><div class="food-inside">
			<div><span>Refrigerator</span><span>Freezer</span></div>
			<div><span>1-2 months</span></div>
		</div></body></html>`))

	c := newTestClient()
	_, err := c.FetchItem(context.Background(), itemURL)
	require.Error(t, err)
	assert.Equal(t, errors.CategoryParsing, errors.CategoryOf(err))
}

func TestFetchItemCachesResults(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	itemURL := "https://www.stilltasty.com/fooditems/index/1"
	httpmock.RegisterResponder(http.MethodGet, itemURL,
		httpmock.NewStringResponder(http.StatusOK, `<html><body><div class="food-inside">
			<div><span>Pantry</span></div>
			<div><span>2 weeks</span></div>
		</div></body></html>`))

	c := newTestClient()
	_, err := c.FetchItem(context.Background(), itemURL)
	require.NoError(t, err)
	_, err = c.FetchItem(context.Background(), itemURL)
	require.NoError(t, err)

	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}
