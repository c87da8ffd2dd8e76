// gateway.go: conflict-safe insert and upsert operations for the catalog.
// Uniqueness constraints are the synchronization point between concurrent
// writers: ingredients merge on conflict, everything else discards the
// duplicate attempt.
package datastore

import (
	"io"
	"log"
	"log/slog"

	"github.com/fridgecat/fridgecat-go/internal/logging"
)

// Package-level logger specific to the datastore service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
)

func init() {
	var err error
	serviceLevelVar.Set(slog.LevelInfo)

	logger, _, err = logging.NewFileLogger("logs/datastore.log", "datastore", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize datastore file logger: %v. Service logging disabled.", err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "datastore")
	}
}

// UpsertIngredient inserts a new ingredient, or on a name conflict merges
// shelf-life data into the existing row. A stored day count is replaced
// only when the incoming value is strictly smaller or the stored value is
// unset, so day counts never increase across merges. When any field
// improves, the info URL is refreshed to the page the better data came
// from. Returns the stored row and whether a merge changed it.
func (ds *DataStore) UpsertIngredient(ingredient *Ingredient) (*Ingredient, bool, error) {
	err := ds.DB.Create(ingredient).Error
	switch classifyInsertError(err) {
	case OutcomeCreated:
		return ingredient, false, nil
	case OutcomeConflict:
		found, ferr := ds.FindIngredientByName(ingredient.Name)
		if ferr != nil {
			return nil, false, ferr
		}
		if found == nil {
			return nil, false, dbError(err, "upsert_ingredient", "", "name", ingredient.Name)
		}

		updated := false
		if lowerDays(ingredient.PantryDays, found.PantryDays) {
			found.PantryDays = ingredient.PantryDays
			updated = true
		}
		if lowerDays(ingredient.RefrigeratorDays, found.RefrigeratorDays) {
			found.RefrigeratorDays = ingredient.RefrigeratorDays
			updated = true
		}
		if lowerDays(ingredient.FreezerDays, found.FreezerDays) {
			found.FreezerDays = ingredient.FreezerDays
			updated = true
		}
		if updated {
			found.InfoURL = ingredient.InfoURL
			if serr := ds.DB.Save(found).Error; serr != nil {
				return nil, false, dbError(serr, "merge_ingredient", "", "name", ingredient.Name)
			}
			logger.Info("merged shelf-life data into existing ingredient",
				"name", found.Name,
				"pantry_days", derefDays(found.PantryDays),
				"refrigerator_days", derefDays(found.RefrigeratorDays),
				"freezer_days", derefDays(found.FreezerDays))
		}
		return found, updated, nil
	default:
		return nil, false, dbError(err, "insert_ingredient", "", "name", ingredient.Name)
	}
}

// lowerDays reports whether incoming should replace existing under the
// pointwise-minimum merge rule.
func lowerDays(incoming, existing *uint) bool {
	if incoming == nil {
		return false
	}
	return existing == nil || *incoming < *existing
}

func derefDays(d *uint) any {
	if d == nil {
		return nil
	}
	return *d
}

// InsertRecipe inserts a recipe; a (title, URL) conflict returns the
// pre-existing row and silently discards the duplicate.
func (ds *DataStore) InsertRecipe(recipe *Recipe) (*Recipe, error) {
	err := ds.DB.Create(recipe).Error
	switch classifyInsertError(err) {
	case OutcomeCreated:
		return recipe, nil
	case OutcomeConflict:
		found, ferr := ds.FindRecipeByKey(recipe.Title, recipe.RecipeURL)
		if ferr != nil {
			return nil, ferr
		}
		if found == nil {
			return nil, dbError(err, "insert_recipe", "", "title", recipe.Title)
		}
		return found, nil
	default:
		return nil, dbError(err, "insert_recipe", "", "title", recipe.Title)
	}
}

// InsertTag inserts a tag; a (name, category) conflict returns the
// pre-existing row.
func (ds *DataStore) InsertTag(tag *Tag) (*Tag, error) {
	err := ds.DB.Create(tag).Error
	switch classifyInsertError(err) {
	case OutcomeCreated:
		return tag, nil
	case OutcomeConflict:
		found, ferr := ds.FindTag(tag.Name, tag.Category)
		if ferr != nil {
			return nil, ferr
		}
		if found == nil {
			return nil, dbError(err, "insert_tag", "", "name", tag.Name)
		}
		return found, nil
	default:
		return nil, dbError(err, "insert_tag", "", "name", tag.Name, "category", tag.Category)
	}
}

// EnsureQuantityUnit idempotently creates a unit-of-measure row.
func (ds *DataStore) EnsureQuantityUnit(unit *QuantityScaleUnit) (*QuantityScaleUnit, error) {
	err := ds.DB.Create(unit).Error
	switch classifyInsertError(err) {
	case OutcomeCreated:
		return unit, nil
	case OutcomeConflict:
		found, ferr := ds.FindQuantityUnit(unit.Unit)
		if ferr != nil {
			return nil, ferr
		}
		if found == nil {
			return nil, dbError(err, "ensure_quantity_unit", "", "unit", unit.Unit)
		}
		return found, nil
	default:
		return nil, dbError(err, "ensure_quantity_unit", "", "unit", unit.Unit)
	}
}

// LinkRecipeIngredient records a recipe's use of an ingredient. A conflict
// on (recipe, ingredient) discards the duplicate. When a referenced row is
// not yet committed, each reference is re-resolved by its natural key and
// the insert retried exactly once; a second failure is logged and the link
// dropped, leaving the rest of the recipe intact.
func (ds *DataStore) LinkRecipeIngredient(recipe *Recipe, ingredient *Ingredient, unit *QuantityScaleUnit, quantityValue, weightGrams float64) error {
	link := &RecipeIngredient{
		RecipeID:        recipe.ID,
		IngredientID:    ingredient.ID,
		QuantityScaleID: unit.ID,
		QuantityValue:   quantityValue,
		WeightGrams:     weightGrams,
	}

	resolve := func() bool {
		ok := true
		if found, err := ds.FindRecipeByKey(recipe.Title, recipe.RecipeURL); err == nil && found != nil {
			link.RecipeID = found.ID
		} else {
			ok = false
		}
		if found, err := ds.FindIngredientByName(ingredient.Name); err == nil && found != nil {
			link.IngredientID = found.ID
		} else {
			ok = false
		}
		if found, err := ds.FindQuantityUnit(unit.Unit); err == nil && found != nil {
			link.QuantityScaleID = found.ID
		} else {
			ok = false
		}
		return ok
	}

	// A zero ID means the caller handed us an uncommitted reference.
	if link.RecipeID == 0 || link.IngredientID == 0 || link.QuantityScaleID == 0 {
		if !resolve() {
			logger.Warn("dropping recipe-ingredient link, reference could not be resolved",
				"recipe", recipe.Title, "ingredient", ingredient.Name)
			return nil
		}
	}

	err := ds.DB.Create(link).Error
	switch classifyInsertError(err) {
	case OutcomeCreated, OutcomeConflict:
		return nil
	case OutcomeMissingReference:
		if !resolve() {
			logger.Warn("dropping recipe-ingredient link, reference could not be resolved",
				"recipe", recipe.Title, "ingredient", ingredient.Name)
			return nil
		}
		link.ID = 0
		retryErr := ds.DB.Create(link).Error
		switch classifyInsertError(retryErr) {
		case OutcomeCreated, OutcomeConflict:
			return nil
		default:
			logger.Warn("dropping recipe-ingredient link after retry",
				"recipe", recipe.Title, "ingredient", ingredient.Name, "error", retryErr)
			return nil
		}
	default:
		return dbError(err, "link_recipe_ingredient", "",
			"recipe", recipe.Title, "ingredient", ingredient.Name)
	}
}

// LinkRecipeTag records a recipe-tag association with the same conflict
// and missing-reference policy as LinkRecipeIngredient.
func (ds *DataStore) LinkRecipeTag(recipe *Recipe, tag *Tag) error {
	link := &RecipeTag{RecipeID: recipe.ID, TagID: tag.ID}

	resolve := func() bool {
		ok := true
		if found, err := ds.FindRecipeByKey(recipe.Title, recipe.RecipeURL); err == nil && found != nil {
			link.RecipeID = found.ID
		} else {
			ok = false
		}
		if found, err := ds.FindTag(tag.Name, tag.Category); err == nil && found != nil {
			link.TagID = found.ID
		} else {
			ok = false
		}
		return ok
	}

	if link.RecipeID == 0 || link.TagID == 0 {
		if !resolve() {
			logger.Warn("dropping recipe-tag link, reference could not be resolved",
				"recipe", recipe.Title, "tag", tag.Name)
			return nil
		}
	}

	err := ds.DB.Create(link).Error
	switch classifyInsertError(err) {
	case OutcomeCreated, OutcomeConflict:
		return nil
	case OutcomeMissingReference:
		if !resolve() {
			logger.Warn("dropping recipe-tag link, reference could not be resolved",
				"recipe", recipe.Title, "tag", tag.Name)
			return nil
		}
		link.ID = 0
		retryErr := ds.DB.Create(link).Error
		switch classifyInsertError(retryErr) {
		case OutcomeCreated, OutcomeConflict:
			return nil
		default:
			logger.Warn("dropping recipe-tag link after retry",
				"recipe", recipe.Title, "tag", tag.Name, "error", retryErr)
			return nil
		}
	default:
		return dbError(err, "link_recipe_tag", "", "recipe", recipe.Title, "tag", tag.Name)
	}
}

// InsertNutrition records the per-serving nutrition row for a recipe.
// The row is one-to-one with the recipe; duplicates are discarded.
func (ds *DataStore) InsertNutrition(recipe *Recipe, nutrition *RecipeNutrition) error {
	nutrition.RecipeID = recipe.ID

	resolve := func() bool {
		found, err := ds.FindRecipeByKey(recipe.Title, recipe.RecipeURL)
		if err != nil || found == nil {
			return false
		}
		nutrition.RecipeID = found.ID
		return true
	}

	if nutrition.RecipeID == 0 {
		if !resolve() {
			logger.Warn("dropping nutrition row, recipe could not be resolved",
				"recipe", recipe.Title)
			return nil
		}
	}

	err := ds.DB.Create(nutrition).Error
	switch classifyInsertError(err) {
	case OutcomeCreated, OutcomeConflict:
		return nil
	case OutcomeMissingReference:
		if !resolve() {
			logger.Warn("dropping nutrition row, recipe could not be resolved",
				"recipe", recipe.Title)
			return nil
		}
		retryErr := ds.DB.Create(nutrition).Error
		switch classifyInsertError(retryErr) {
		case OutcomeCreated, OutcomeConflict:
			return nil
		default:
			logger.Warn("dropping nutrition row after retry",
				"recipe", recipe.Title, "error", retryErr)
			return nil
		}
	default:
		return dbError(err, "insert_nutrition", "", "recipe", recipe.Title)
	}
}
