package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *DataStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.Exec("PRAGMA foreign_keys = ON").Error)
	require.NoError(t, performAutoMigration(db))

	return &DataStore{DB: db}
}

func uintPtr(v uint) *uint { return &v }

func TestUpsertIngredientCreates(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)

	stored, merged, err := ds.UpsertIngredient(&Ingredient{
		Name:       "butter",
		InfoURL:    "https://example.com/butter",
		PantryDays: uintPtr(30),
	})
	require.NoError(t, err)
	assert.False(t, merged)
	assert.NotZero(t, stored.ID)
	assert.Equal(t, "butter", stored.Name)
}

func TestUpsertIngredientMergesPointwiseMin(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)

	_, _, err := ds.UpsertIngredient(&Ingredient{
		Name:             "butter",
		InfoURL:          "https://example.com/a",
		PantryDays:       uintPtr(30),
		RefrigeratorDays: uintPtr(90),
	})
	require.NoError(t, err)

	stored, merged, err := ds.UpsertIngredient(&Ingredient{
		Name:             "butter",
		InfoURL:          "https://example.com/b",
		PantryDays:       uintPtr(60),  // larger, must not replace
		RefrigeratorDays: uintPtr(45),  // smaller, must replace
		FreezerDays:      uintPtr(270), // fills a nil slot
	})
	require.NoError(t, err)
	assert.True(t, merged)
	require.NotNil(t, stored.PantryDays)
	assert.Equal(t, uint(30), *stored.PantryDays)
	require.NotNil(t, stored.RefrigeratorDays)
	assert.Equal(t, uint(45), *stored.RefrigeratorDays)
	require.NotNil(t, stored.FreezerDays)
	assert.Equal(t, uint(270), *stored.FreezerDays)
	assert.Equal(t, "https://example.com/b", stored.InfoURL)
}

func TestUpsertIngredientNoChangeKeepsInfoURL(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)

	_, _, err := ds.UpsertIngredient(&Ingredient{
		Name:       "butter",
		InfoURL:    "https://example.com/a",
		PantryDays: uintPtr(30),
	})
	require.NoError(t, err)

	stored, merged, err := ds.UpsertIngredient(&Ingredient{
		Name:       "butter",
		InfoURL:    "https://example.com/b",
		PantryDays: uintPtr(30),
	})
	require.NoError(t, err)
	assert.False(t, merged)
	assert.Equal(t, "https://example.com/a", stored.InfoURL)
}

func TestUpsertIngredientIdempotent(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)

	in := Ingredient{Name: "butter", PantryDays: uintPtr(30)}
	first := in
	_, _, err := ds.UpsertIngredient(&first)
	require.NoError(t, err)

	// Repeating the same upsert must not change anything further.
	second := in
	stored, merged, err := ds.UpsertIngredient(&second)
	require.NoError(t, err)
	assert.False(t, merged)
	require.NotNil(t, stored.PantryDays)
	assert.Equal(t, uint(30), *stored.PantryDays)

	var count int64
	require.NoError(t, ds.DB.Model(&Ingredient{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestShelfLifeNeverIncreases(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)

	_, _, err := ds.UpsertIngredient(&Ingredient{Name: "milk", RefrigeratorDays: uintPtr(7)})
	require.NoError(t, err)

	stored, merged, err := ds.UpsertIngredient(&Ingredient{Name: "milk", RefrigeratorDays: uintPtr(14)})
	require.NoError(t, err)
	assert.False(t, merged)
	require.NotNil(t, stored.RefrigeratorDays)
	assert.Equal(t, uint(7), *stored.RefrigeratorDays)
}

func TestInsertRecipeConflictReturnsExisting(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)

	first, err := ds.InsertRecipe(&Recipe{Title: "apple pie", RecipeURL: "https://example.com/pie"})
	require.NoError(t, err)

	second, err := ds.InsertRecipe(&Recipe{Title: "apple pie", RecipeURL: "https://example.com/pie"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, ds.DB.Model(&Recipe{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestInsertRecipeSameTitleDifferentURL(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)

	first, err := ds.InsertRecipe(&Recipe{Title: "apple pie", RecipeURL: "https://a.example.com"})
	require.NoError(t, err)
	second, err := ds.InsertRecipe(&Recipe{Title: "apple pie", RecipeURL: "https://b.example.com"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestInsertTagIdempotent(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)

	first, err := ds.InsertTag(&Tag{Name: "vegan", Category: "health"})
	require.NoError(t, err)
	second, err := ds.InsertTag(&Tag{Name: "vegan", Category: "health"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// Same name under another category is a distinct tag.
	third, err := ds.InsertTag(&Tag{Name: "vegan", Category: "diet"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestEnsureQuantityUnit(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)

	first, err := ds.EnsureQuantityUnit(&QuantityScaleUnit{Unit: "cup"})
	require.NoError(t, err)
	second, err := ds.EnsureQuantityUnit(&QuantityScaleUnit{Unit: "cup"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestLinkRecipeIngredient(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)

	recipe, err := ds.InsertRecipe(&Recipe{Title: "apple pie", RecipeURL: "https://example.com/pie"})
	require.NoError(t, err)
	ingredient, _, err := ds.UpsertIngredient(&Ingredient{Name: "apple"})
	require.NoError(t, err)
	unit, err := ds.EnsureQuantityUnit(&QuantityScaleUnit{Unit: "cup"})
	require.NoError(t, err)

	require.NoError(t, ds.LinkRecipeIngredient(recipe, ingredient, unit, 2, 250))

	// Duplicate link is silently discarded.
	require.NoError(t, ds.LinkRecipeIngredient(recipe, ingredient, unit, 3, 300))

	var links []RecipeIngredient
	require.NoError(t, ds.DB.Find(&links).Error)
	require.Len(t, links, 1)
	assert.Equal(t, float64(2), links[0].QuantityValue)
	assert.Equal(t, float64(250), links[0].WeightGrams)
}

func TestLinkRecipeIngredientResolvesUncommittedReferences(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)

	stored, err := ds.InsertRecipe(&Recipe{Title: "apple pie", RecipeURL: "https://example.com/pie"})
	require.NoError(t, err)
	_, _, err = ds.UpsertIngredient(&Ingredient{Name: "apple"})
	require.NoError(t, err)
	_, err = ds.EnsureQuantityUnit(&QuantityScaleUnit{Unit: "cup"})
	require.NoError(t, err)

	// References with zero IDs but valid natural keys resolve by lookup.
	recipe := &Recipe{Title: "apple pie", RecipeURL: "https://example.com/pie"}
	ingredient := &Ingredient{Name: "apple"}
	unit := &QuantityScaleUnit{Unit: "cup"}
	require.NoError(t, ds.LinkRecipeIngredient(recipe, ingredient, unit, 1, 100))

	var links []RecipeIngredient
	require.NoError(t, ds.DB.Find(&links).Error)
	require.Len(t, links, 1)
	assert.Equal(t, stored.ID, links[0].RecipeID)
}

func TestLinkRecipeIngredientUnresolvableIsDropped(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)

	// Nothing persisted at all; the link is dropped without error.
	recipe := &Recipe{Title: "ghost", RecipeURL: "https://example.com/ghost"}
	ingredient := &Ingredient{Name: "ectoplasm"}
	unit := &QuantityScaleUnit{Unit: "cup"}
	require.NoError(t, ds.LinkRecipeIngredient(recipe, ingredient, unit, 1, 1))

	var count int64
	require.NoError(t, ds.DB.Model(&RecipeIngredient{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestLinkRecipeTag(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)

	recipe, err := ds.InsertRecipe(&Recipe{Title: "apple pie", RecipeURL: "https://example.com/pie"})
	require.NoError(t, err)
	tag, err := ds.InsertTag(&Tag{Name: "dessert", Category: "dish"})
	require.NoError(t, err)

	require.NoError(t, ds.LinkRecipeTag(recipe, tag))
	require.NoError(t, ds.LinkRecipeTag(recipe, tag))

	var count int64
	require.NoError(t, ds.DB.Model(&RecipeTag{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestInsertNutritionOneToOne(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)

	recipe, err := ds.InsertRecipe(&Recipe{Title: "apple pie", RecipeURL: "https://example.com/pie"})
	require.NoError(t, err)

	require.NoError(t, ds.InsertNutrition(recipe, &RecipeNutrition{CaloriesKcalPerServing: 320}))
	// The second row for the same recipe is discarded.
	require.NoError(t, ds.InsertNutrition(recipe, &RecipeNutrition{CaloriesKcalPerServing: 999}))

	var rows []RecipeNutrition
	require.NoError(t, ds.DB.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, float64(320), rows[0].CaloriesKcalPerServing)
}

func TestFindReturnsNilWhenAbsent(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)

	ingredient, err := ds.FindIngredientByName("nothing")
	require.NoError(t, err)
	assert.Nil(t, ingredient)

	recipe, err := ds.FindRecipeByKey("nothing", "https://example.com")
	require.NoError(t, err)
	assert.Nil(t, recipe)

	tag, err := ds.FindTag("nothing", "diet")
	require.NoError(t, err)
	assert.Nil(t, tag)

	unit, err := ds.FindQuantityUnit("nothing")
	require.NoError(t, err)
	assert.Nil(t, unit)
}
