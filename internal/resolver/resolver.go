// Package resolver maps free-text ingredient mentions onto canonical
// ingredient rows, scoring shelf-life database candidates by lexical
// similarity and storage-related qualifiers.
package resolver

import (
	"context"
	"io"
	"log"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/fridgecat/fridgecat-go/internal/datastore"
	"github.com/fridgecat/fridgecat-go/internal/errors"
	"github.com/fridgecat/fridgecat-go/internal/foodtext"
	"github.com/fridgecat/fridgecat-go/internal/logging"
	"github.com/fridgecat/fridgecat-go/internal/shelflife"
	"github.com/fridgecat/fridgecat-go/internal/stilltasty"
)

// Package-level logger specific to resolver service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar) // Dynamic level control
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "resolver.log")
	serviceLevelVar.Set(slog.LevelInfo)

	logger, _, err = logging.NewFileLogger(logFilePath, "resolver", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize resolver file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "resolver")
	}
}

// Mention is one structured ingredient line from an upstream recipe hit
type Mention struct {
	Food         string
	FoodCategory string
	Quantity     float64
	Measure      string
	Weight       float64
	Image        string
}

// Result carries everything the pipeline needs to persist one resolved
// ingredient: the candidate rows (one per accepted source page, merged
// by the store on upsert), the unit of measure, and the link values.
type Result struct {
	Name          string
	Ingredients   []*datastore.Ingredient
	Unit          *datastore.QuantityScaleUnit
	QuantityValue float64
	WeightGrams   float64
	FromStore     bool
}

// Config tunes candidate scoring
type Config struct {
	SimilarityThreshold float64 // similarity must exceed this to count
	StorageBonus        float64 // awarded for storage-friendly qualifiers
}

// DefaultConfig returns the scoring parameters observed to work well
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.5,
		StorageBonus:        1.0,
	}
}

// Resolver resolves ingredient mentions against the store and the
// shelf-life source.
type Resolver struct {
	store  datastore.Interface
	client *stilltasty.Client
	engine foodtext.Engine
	cfg    Config
}

// New creates a resolver
func New(store datastore.Interface, client *stilltasty.Client, engine foodtext.Engine, cfg Config) *Resolver {
	if cfg.SimilarityThreshold == 0 {
		cfg.SimilarityThreshold = DefaultConfig().SimilarityThreshold
	}
	if cfg.StorageBonus == 0 {
		cfg.StorageBonus = DefaultConfig().StorageBonus
	}
	return &Resolver{store: store, client: client, engine: engine, cfg: cfg}
}

// Resolve turns a mention into canonical ingredient rows. Known
// ingredients short-circuit on an exact store lookup; unknown ones go
// through the shelf-life source with similarity-scored candidate
// selection and noun-chunk query narrowing. A blank mention yields a
// placeholder result with the "unknown" unit and no ingredient rather
// than an error.
func (r *Resolver) Resolve(ctx context.Context, mention Mention) (*Result, error) {
	name := foodtext.IngredientName(mention.Food, r.engine)
	unit := &datastore.QuantityScaleUnit{Unit: foodtext.UnitScale(mention.Measure)}

	result := &Result{
		Name:          name,
		Unit:          unit,
		QuantityValue: mention.Quantity,
		WeightGrams:   mention.Weight,
	}

	if name == "" {
		logger.Warn("blank ingredient mention", "measure", mention.Measure)
		return result, nil
	}

	// Known ingredients skip the upstream round-trip entirely.
	found, err := r.store.FindIngredientByName(name)
	if err != nil {
		return nil, err
	}
	if found != nil {
		logger.Info("ingredient already known", "name", name)
		result.Ingredients = []*datastore.Ingredient{found}
		result.FromStore = true
		return result, nil
	}

	query := foodtext.IngredientQuery(mention.Food)
	urls, err := r.SearchCandidates(ctx, name, query)
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, errors.Newf("no shelf-life source found for %q", name).
			Category(errors.CategoryNotFound).
			Context("name", name).
			Context("query", query).
			Component("resolver").
			Build()
	}

	for _, itemURL := range urls {
		ingredient, err := r.BuildFromItem(ctx, name, mention, itemURL)
		if err != nil {
			logger.Warn("skipping shelf-life source page",
				"name", name, "url", itemURL, "error", err)
			continue
		}
		result.Ingredients = append(result.Ingredients, ingredient)
	}

	if len(result.Ingredients) == 0 {
		return nil, errors.Newf("all shelf-life source pages failed for %q", name).
			Category(errors.CategoryParsing).
			Context("name", name).
			Component("resolver").
			Build()
	}
	return result, nil
}

// SearchCandidates searches the shelf-life source and returns the
// selected candidate page URLs, falling back to noun-chunk and
// chunk-root sub-queries when the full query finds nothing. The first
// sub-query producing candidates wins.
func (r *Resolver) SearchCandidates(ctx context.Context, name, query string) ([]string, error) {
	urls, err := r.searchOnce(ctx, query)
	if err != nil || len(urls) > 0 {
		return urls, err
	}

	logger.Warn("no results, narrowing query", "name", name, "query", query)

	for _, chunk := range r.engine.NounChunks(query) {
		subQueries := make([]string, 0, 2)
		if chunk != query {
			subQueries = append(subQueries, chunk)
		}
		if root := foodtext.ChunkRoot(chunk); root != chunk {
			subQueries = append(subQueries, root)
		}
		for _, sub := range subQueries {
			logger.Info("searching narrowed query", "name", name, "query", sub)
			urls, err = r.searchOnce(ctx, sub)
			if err != nil {
				return nil, err
			}
			if len(urls) > 0 {
				return urls, nil
			}
		}
	}
	return nil, nil
}

// searchOnce performs one search and returns the selected candidate URLs
func (r *Resolver) searchOnce(ctx context.Context, query string) ([]string, error) {
	candidates, err := r.client.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.selectCandidates(query, candidates), nil
}

// qualifierRe splits a listing name into its primary part and a trailing
// " - qualifier" suffix.
var (
	qualifierRe    = regexp.MustCompile(`^([^,]+),?(.*)\s-\s(.*)$`)
	primaryRe      = regexp.MustCompile(`^([^,]+),?(.*)$`)
	dashVariantsRe = regexp.MustCompile(`[-–—−]`)
	storageWordsRe = regexp.MustCompile(`(\bkosher\b|\braw\b|\bopene?d?\b)`)
)

// selectCandidates scores search results against the query and keeps
// every candidate tied at the top score. A single candidate is accepted
// without scoring.
func (r *Resolver) selectCandidates(query string, candidates []stilltasty.Candidate) []string {
	if len(candidates) <= 1 {
		urls := make([]string, 0, len(candidates))
		for _, c := range candidates {
			urls = append(urls, c.URL)
		}
		return urls
	}

	base := foodtext.IngredientName(query, r.engine)

	type scored struct {
		url   string
		score float64
	}
	results := make([]scored, 0, len(candidates))
	best := 0.0
	for _, c := range candidates {
		score := r.scoreCandidate(base, c.Name)
		if score > best {
			best = score
		}
		results = append(results, scored{url: c.URL, score: score})
	}

	var urls []string
	for _, sc := range results {
		if sc.score >= best {
			urls = append(urls, sc.url)
		}
	}

	logger.Info("candidates scored",
		"query", query, "candidates", len(candidates), "kept", len(urls), "top_score", best)
	return urls
}

// scoreCandidate computes similarity between the normalized listing name
// and the query, plus a bonus when the listing's qualifier suggests the
// plain foodstuff (kosher, raw, opened) or carries no qualifier at all.
// Similarity below the threshold contributes nothing.
func (r *Resolver) scoreCandidate(base, listingName string) float64 {
	name := strings.ToLower(listingName)
	name = dashVariantsRe.ReplaceAllString(name, "-")
	name = strings.Join(strings.Fields(name), " ")

	var primary, qualifier string
	hasQualifier := false
	if m := qualifierRe.FindStringSubmatch(name); m != nil {
		primary = m[1]
		qualifier = m[3]
		hasQualifier = true
	} else if m := primaryRe.FindStringSubmatch(name); m != nil {
		primary = m[1]
	} else {
		primary = name
	}

	candName := foodtext.IngredientName(primary, r.engine)
	sim := r.engine.Similarity(candName, base)

	bonus := 0.0
	if !hasQualifier || storageWordsRe.MatchString(qualifier) {
		bonus = r.cfg.StorageBonus
	}

	logger.Debug("candidate comparison",
		"candidate", candName, "base", base, "similarity", sim, "bonus", bonus)

	if sim > r.cfg.SimilarityThreshold {
		return sim + bonus
	}
	return bonus
}

// BuildFromItem fetches a source page and assembles the ingredient row
func (r *Resolver) BuildFromItem(ctx context.Context, name string, mention Mention, itemURL string) (*datastore.Ingredient, error) {
	item, err := r.client.FetchItem(ctx, itemURL)
	if err != nil {
		return nil, err
	}

	ingredient := &datastore.Ingredient{
		Name:     name,
		InfoURL:  item.URL,
		ImageURL: mention.Image,
	}
	if mention.FoodCategory != "" {
		ingredient.Category = foodtext.Basic(mention.FoodCategory)
	}

	days := r.extractShelfLife(name, item)
	if days != nil {
		ingredient.PantryDays = days[shelflife.MethodPantry]
		ingredient.RefrigeratorDays = days[shelflife.MethodRefrigerator]
		ingredient.FreezerDays = days[shelflife.MethodFreezer]
	}
	return ingredient, nil
}

// extractShelfLife parses the storage entries of an item page. A "keeps
// indefinitely" entry marks the foodstuff non-perishable and clears all
// day counts. Malformed durations are logged per method and skipped.
func (r *Resolver) extractShelfLife(name string, item *stilltasty.Item) map[shelflife.StorageMethod]*uint {
	days := make(map[shelflife.StorageMethod]*uint)
	for _, entry := range item.Entries {
		lifeText := foodtext.Basic(entry.LifeText)
		methodText := foodtext.Basic(entry.MethodText)

		if shelflife.IsIndefinite(lifeText) {
			logger.Info("ingredient keeps indefinitely",
				"name", name, "method", methodText, "url", item.URL)
			return nil
		}

		method, ok := shelflife.NormalizeMethod(methodText)
		if !ok {
			logger.Warn("unrecognized storage method",
				"name", name, "method", methodText, "url", item.URL)
			continue
		}

		value, ok := shelflife.ParseDays(lifeText)
		if !ok {
			logger.Warn("malformed storage duration",
				"name", name, "method", methodText, "life_text", lifeText, "url", item.URL)
			continue
		}
		v := value
		days[method] = &v
	}
	return days
}
