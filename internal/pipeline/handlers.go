package pipeline

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/k3a/html2text"

	"github.com/fridgecat/fridgecat-go/internal/datastore"
	"github.com/fridgecat/fridgecat-go/internal/edamam"
	"github.com/fridgecat/fridgecat-go/internal/errors"
	"github.com/fridgecat/fridgecat-go/internal/foodtext"
	"github.com/fridgecat/fridgecat-go/internal/resolver"
	"github.com/fridgecat/fridgecat-go/internal/scheduler"
)

// Stage payloads carried between handlers
type discoverPayload struct {
	Letter rune
}

type detailPayload struct {
	Query string
}

type verifyPayload struct {
	Candidate datastore.Recipe
	Hit       edamam.Recipe
}

type imagePayload struct {
	Candidate datastore.Recipe
	Hit       edamam.Recipe
}

type ingredientPayload struct {
	Recipe  *datastore.Recipe
	Mention resolver.Mention
	Name    string
	Query   string
}

type ingredientItemPayload struct {
	Recipe  *datastore.Recipe
	Mention resolver.Mention
	Name    string
}

// handleDiscover turns one letter search into detail searches, one per
// discovered meal name.
func (p *Pipeline) handleDiscover(ctx context.Context, task *scheduler.Task) ([]scheduler.Task, error) {
	payload, ok := task.Payload.(discoverPayload)
	if !ok {
		return nil, payloadError(task, "discoverPayload")
	}

	meals, err := p.meals.SearchByLetter(ctx, payload.Letter)
	if err != nil {
		return nil, err
	}

	var followUps []scheduler.Task
	for _, meal := range meals {
		query := foodtext.SearchKeyword(meal.Name)
		if query == "" {
			continue
		}
		detail := scheduler.NewTask(StageDetail, p.recipes.SearchURL(query), priorityDetail)
		detail.Payload = detailPayload{Query: query}
		followUps = append(followUps, detail)
	}

	logger.Info("discovery complete",
		"letter", string(payload.Letter), "meals", len(meals), "detail_tasks", len(followUps))
	return followUps, nil
}

// handleDetail searches the recipe API and enqueues a verification fetch
// for every hit passing the acceptance checks.
func (p *Pipeline) handleDetail(ctx context.Context, task *scheduler.Task) ([]scheduler.Task, error) {
	payload, ok := task.Payload.(detailPayload)
	if !ok {
		return nil, payloadError(task, "detailPayload")
	}

	hits, err := p.recipes.SearchRecipes(ctx, payload.Query)
	if err != nil {
		return nil, err
	}

	var followUps []scheduler.Task
	for i := range hits {
		hit := &hits[i].Recipe
		if !acceptRecipe(hit) {
			logger.Debug("rejected recipe hit", "label", hit.Label, "url", hit.URL)
			continue
		}

		candidate := datastore.Recipe{
			Title:          foodtext.RecipeTitle(hit.Label),
			RecipeURL:      hit.URL,
			CookMinute:     hit.TotalTime,
			NumServings:    uint(hit.Yield),
			NumIngredients: distinctIngredientCount(hit, p.engine),
			Language:       datastore.LanguageEN,
		}

		verify := scheduler.NewTask(StageVerify, hit.URL, priorityVerify)
		verify.Payload = verifyPayload{Candidate: candidate, Hit: *hit}
		followUps = append(followUps, verify)
	}

	logger.Info("detail search complete",
		"query", payload.Query, "hits", len(hits), "accepted", len(followUps))
	return followUps, nil
}

// acceptRecipe filters out hits without enough information to persist
func acceptRecipe(hit *edamam.Recipe) bool {
	if hit.Yield <= 0 {
		return false
	}
	if hit.TotalTime <= 0 {
		return false
	}
	for _, c := range hit.Label {
		if c >= 128 {
			return false
		}
	}
	if len(hit.Label) > datastore.MaxTitleLength {
		return false
	}
	return true
}

// distinctIngredientCount counts unique normalized ingredient names
func distinctIngredientCount(hit *edamam.Recipe, engine foodtext.Engine) uint {
	seen := make(map[string]struct{}, len(hit.Ingredients))
	for i := range hit.Ingredients {
		seen[foodtext.IngredientName(hit.Ingredients[i].Food, engine)] = struct{}{}
	}
	return uint(len(seen))
}

var recipeSuffixRe = regexp.MustCompile(`\(?recipes?\)?`)

// handleVerify fetches the recipe's source page, checks the title still
// appears in the visible text, extracts the lead image with the site's
// rule, and hands off to the image check stage.
func (p *Pipeline) handleVerify(ctx context.Context, task *scheduler.Task) ([]scheduler.Task, error) {
	payload, ok := task.Payload.(verifyPayload)
	if !ok {
		return nil, payloadError(task, "verifyPayload")
	}

	body, err := p.fetch(ctx, task.URL)
	if err != nil {
		return nil, err
	}

	text := html2text.HTML2Text(string(body))
	text = strings.ToLower(text)
	text = strings.ReplaceAll(text, " ", " ")
	text = strings.Join(strings.Fields(text), " ")

	wantTitle := strings.TrimSpace(recipeSuffixRe.ReplaceAllString(strings.ToLower(payload.Hit.Label), ""))
	if wantTitle == "" || !strings.Contains(text, wantTitle) {
		return nil, errors.Newf("page no longer mentions %q", wantTitle).
			Category(errors.CategoryContentMismatch).
			Context("url", task.URL).
			Context("title", payload.Candidate.Title).
			Component("pipeline").
			Build()
	}

	imageURL, err := p.extractImage(task.URL, body)
	if err != nil {
		return nil, err
	}

	candidate := payload.Candidate
	candidate.ImageURL = imageURL

	check := scheduler.NewTask(StageImageCheck, imageURL, priorityVerify)
	check.Payload = imagePayload{Candidate: candidate, Hit: payload.Hit}

	logger.Info("recipe verified",
		"title", candidate.Title, "url", task.URL, "ingredients", candidate.NumIngredients)
	return []scheduler.Task{check}, nil
}

// extractImage runs the site-specific image rule over the fetched page
func (p *Pipeline) extractImage(pageURL string, body []byte) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", errors.Newf("invalid page URL: %w", err).
			Category(errors.CategoryImageFetch).
			Context("url", pageURL).
			Component("pipeline").
			Build()
	}

	rule, ok := imageRuleFor(parsed.Hostname())
	if !ok {
		return "", errors.Newf("no image rule for domain %s", parsed.Hostname()).
			Category(errors.CategoryImageFetch).
			Context("url", pageURL).
			Component("pipeline").
			Build()
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", errors.Newf("failed to parse page HTML: %w", err).
			Category(errors.CategoryParsing).
			Context("url", pageURL).
			Component("pipeline").
			Build()
	}

	imageURL := rule(doc)
	if imageURL == "" {
		return "", errors.Newf("image rule found no image on %s", pageURL).
			Category(errors.CategoryImageFetch).
			Context("url", pageURL).
			Component("pipeline").
			Build()
	}
	return imageURL, nil
}

// handleImageCheck confirms the extracted image is reachable, persists
// the recipe with its nutrition and tags, and fans out ingredient
// resolution tasks.
func (p *Pipeline) handleImageCheck(ctx context.Context, task *scheduler.Task) ([]scheduler.Task, error) {
	payload, ok := task.Payload.(imagePayload)
	if !ok {
		return nil, payloadError(task, "imagePayload")
	}

	if _, err := p.fetch(ctx, task.URL); err != nil {
		return nil, err
	}

	candidate := payload.Candidate
	stored, err := p.store.InsertRecipe(&candidate)
	if err != nil {
		return nil, err
	}

	if err := p.persistNutrition(stored, &payload.Hit); err != nil {
		logger.Warn("failed to persist nutrition", "title", stored.Title, "error", err)
	}
	p.persistTags(stored, &payload.Hit)

	followUps := p.resolveIngredients(ctx, stored, &payload.Hit)

	logger.Info("recipe persisted",
		"title", stored.Title, "url", stored.RecipeURL, "ingredient_tasks", len(followUps))
	return followUps, nil
}

// persistNutrition stores the per-serving nutrition row
func (p *Pipeline) persistNutrition(recipe *datastore.Recipe, hit *edamam.Recipe) error {
	if recipe.NumServings == 0 {
		return nil
	}
	servings := float64(recipe.NumServings)
	nutrition := &datastore.RecipeNutrition{
		CaloriesKcalPerServing: hit.TotalNutrients.Energy.Quantity / servings,
		FatGramPerServing:      hit.TotalNutrients.Fat.Quantity / servings,
		CarbsGramPerServing:    hit.TotalNutrients.Carbs.Quantity / servings,
		ProteinGramPerServing:  hit.TotalNutrients.Protein.Quantity / servings,
	}
	return p.store.InsertNutrition(recipe, nutrition)
}

// persistTags stores and links tags from every upstream label category.
// Tag failures are logged and skipped; they never block the recipe.
func (p *Pipeline) persistTags(recipe *datastore.Recipe, hit *edamam.Recipe) {
	for _, tc := range tagCategories {
		for _, label := range tc.labels(hit) {
			name := foodtext.Basic(label)
			if name == "" {
				continue
			}
			tag, err := p.store.InsertTag(&datastore.Tag{
				Name:     name,
				Category: tc.category,
				Language: datastore.LanguageEN,
			})
			if err != nil {
				logger.Warn("failed to persist tag",
					"name", name, "category", tc.category, "error", err)
				continue
			}
			if err := p.store.LinkRecipeTag(recipe, tag); err != nil {
				logger.Warn("failed to link tag",
					"name", name, "category", tc.category, "error", err)
			}
		}
	}
}

// resolveIngredients links ingredients already in the store and enqueues
// shelf-life searches for the rest. Each ingredient is independent; a
// failed one never rolls back the recipe or its siblings.
func (p *Pipeline) resolveIngredients(ctx context.Context, recipe *datastore.Recipe, hit *edamam.Recipe) []scheduler.Task {
	var followUps []scheduler.Task
	for i := range hit.Ingredients {
		line := &hit.Ingredients[i]
		mention := resolver.Mention{
			Food:         line.Food,
			FoodCategory: line.FoodCategory,
			Quantity:     line.Quantity,
			Measure:      line.Measure,
			Weight:       line.Weight,
			Image:        line.Image,
		}
		name := foodtext.IngredientName(line.Food, p.engine)
		if name == "" {
			logger.Warn("blank ingredient line", "recipe", recipe.Title)
			continue
		}

		found, err := p.store.FindIngredientByName(name)
		if err != nil {
			logger.Warn("ingredient lookup failed", "name", name, "error", err)
			continue
		}
		if found != nil {
			logger.Info("ingredient already known", "recipe", recipe.Title, "name", name)
			p.linkIngredient(recipe, found, mention)
			continue
		}

		search := scheduler.NewTask(StageIngredient, p.shelf.SearchURL(), priorityIngredient)
		search.DedupExempt = true
		search.Payload = ingredientPayload{
			Recipe:  recipe,
			Mention: mention,
			Name:    name,
			Query:   foodtext.IngredientQuery(line.Food),
		}
		followUps = append(followUps, search)
	}
	return followUps
}

// linkIngredient ensures the unit row and writes the recipe-ingredient
// link. Failures are logged; the recipe stays intact.
func (p *Pipeline) linkIngredient(recipe *datastore.Recipe, ingredient *datastore.Ingredient, mention resolver.Mention) {
	unit, err := p.store.EnsureQuantityUnit(&datastore.QuantityScaleUnit{
		Unit: foodtext.UnitScale(mention.Measure),
	})
	if err != nil {
		logger.Warn("failed to ensure quantity unit",
			"unit", mention.Measure, "error", err)
		return
	}
	if err := p.store.LinkRecipeIngredient(recipe, ingredient, unit, mention.Quantity, mention.Weight); err != nil {
		logger.Warn("failed to link ingredient",
			"recipe", recipe.Title, "ingredient", ingredient.Name, "error", err)
	}
}

// handleIngredient searches the shelf-life source for an unknown
// ingredient and fans out one item fetch per selected candidate page.
func (p *Pipeline) handleIngredient(ctx context.Context, task *scheduler.Task) ([]scheduler.Task, error) {
	payload, ok := task.Payload.(ingredientPayload)
	if !ok {
		return nil, payloadError(task, "ingredientPayload")
	}

	urls, err := p.resolver.SearchCandidates(ctx, payload.Name, payload.Query)
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		logger.Warn("no shelf-life results",
			"name", payload.Name, "query", payload.Query)
		return nil, nil
	}

	followUps := make([]scheduler.Task, 0, len(urls))
	for _, itemURL := range urls {
		item := scheduler.NewTask(StageIngredientItem, itemURL, priorityIngredient)
		item.DedupExempt = true
		item.Payload = ingredientItemPayload{
			Recipe:  payload.Recipe,
			Mention: payload.Mention,
			Name:    payload.Name,
		}
		followUps = append(followUps, item)
	}
	return followUps, nil
}

// handleIngredientItem builds the ingredient from one source page,
// upserts it (merging shelf-life into any existing row), and links it to
// the recipe. With reseeding on, the resolved name feeds back into
// recipe discovery at the lowest priority.
func (p *Pipeline) handleIngredientItem(ctx context.Context, task *scheduler.Task) ([]scheduler.Task, error) {
	payload, ok := task.Payload.(ingredientItemPayload)
	if !ok {
		return nil, payloadError(task, "ingredientItemPayload")
	}

	ingredient, err := p.resolver.BuildFromItem(ctx, payload.Name, payload.Mention, task.URL)
	if err != nil {
		return nil, err
	}

	stored, merged, err := p.store.UpsertIngredient(ingredient)
	if err != nil {
		return nil, err
	}
	logger.Info("ingredient resolved",
		"name", stored.Name, "url", task.URL, "merged", merged)

	p.linkIngredient(payload.Recipe, stored, payload.Mention)

	if !p.cfg.ReseedIngredients {
		return nil, nil
	}

	query := foodtext.SearchKeyword(stored.Name)
	if query == "" {
		return nil, nil
	}
	reseed := scheduler.NewTask(StageDetail, p.recipes.SearchURL(query), priorityReseed)
	reseed.Payload = detailPayload{Query: query}
	return []scheduler.Task{reseed}, nil
}
