// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"log"
	"os"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fridgecat/fridgecat-go/internal/conf"
)

// Interface abstracts the underlying database implementation and defines
// the operations the ingestion pipeline performs against the store.
type Interface interface {
	Open() error
	Close() error

	// Conflict-safe upserts (see gateway.go)
	UpsertIngredient(ingredient *Ingredient) (stored *Ingredient, merged bool, err error)
	InsertRecipe(recipe *Recipe) (*Recipe, error)
	InsertTag(tag *Tag) (*Tag, error)
	EnsureQuantityUnit(unit *QuantityScaleUnit) (*QuantityScaleUnit, error)
	LinkRecipeIngredient(recipe *Recipe, ingredient *Ingredient, unit *QuantityScaleUnit, quantityValue, weightGrams float64) error
	LinkRecipeTag(recipe *Recipe, tag *Tag) error
	InsertNutrition(recipe *Recipe, nutrition *RecipeNutrition) error

	// Natural-key lookups
	FindIngredientByName(name string) (*Ingredient, error)
	FindRecipeByKey(title, recipeURL string) (*Recipe, error)
	FindTag(name, category string) (*Tag, error)
	FindQuantityUnit(unit string) (*QuantityScaleUnit, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new store instance based on the provided settings.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return nil
	}
}

// createGormLogger returns a GORM logger that stays quiet below warnings.
// Duplicate-key errors are part of normal upsert flow and must not spam
// the log, so ErrRecordNotFound style noise is suppressed too.
func createGormLogger() gormlogger.Interface {
	return gormlogger.New(
		log.New(os.Stderr, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// performAutoMigration migrates the catalog schema.
func performAutoMigration(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&Ingredient{},
		&Recipe{},
		&Tag{},
		&QuantityScaleUnit{},
		&RecipeIngredient{},
		&RecipeTag{},
		&RecipeNutrition{},
	); err != nil {
		return dbError(err, "auto_migration", "")
	}
	return nil
}

// FindIngredientByName retrieves an ingredient by its unique name.
// Returns nil without error when no row exists.
func (ds *DataStore) FindIngredientByName(name string) (*Ingredient, error) {
	var ingredient Ingredient
	err := ds.DB.Where("name = ?", name).First(&ingredient).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, dbError(err, "find_ingredient", "", "name", name)
	}
	return &ingredient, nil
}

// FindRecipeByKey retrieves a recipe by its (title, source URL) unique key.
// Returns nil without error when no row exists.
func (ds *DataStore) FindRecipeByKey(title, recipeURL string) (*Recipe, error) {
	var recipe Recipe
	err := ds.DB.Where("title = ? AND recipe_url = ?", title, recipeURL).First(&recipe).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, dbError(err, "find_recipe", "", "title", title)
	}
	return &recipe, nil
}

// FindTag retrieves a tag by its (name, category) unique key.
// Returns nil without error when no row exists.
func (ds *DataStore) FindTag(name, category string) (*Tag, error) {
	var tag Tag
	err := ds.DB.Where("name = ? AND category = ?", name, category).First(&tag).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, dbError(err, "find_tag", "", "name", name, "category", category)
	}
	return &tag, nil
}

// FindQuantityUnit retrieves a unit of measure by its unique unit string.
// Returns nil without error when no row exists.
func (ds *DataStore) FindQuantityUnit(unit string) (*QuantityScaleUnit, error) {
	var scale QuantityScaleUnit
	err := ds.DB.Where("unit = ?", unit).First(&scale).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, dbError(err, "find_quantity_unit", "", "unit", unit)
	}
	return &scale, nil
}
