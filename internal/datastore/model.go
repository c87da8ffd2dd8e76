// model.go this code defines the data model for the catalog
package datastore

// LanguageEN is the only language the ingestion pipeline writes today.
const LanguageEN = "en"

// MaxTitleLength is the longest recipe title the store accepts.
const MaxTitleLength = 64

// Ingredient represents a canonical foodstuff with shelf-life data
type Ingredient struct {
	ID               uint   `gorm:"primaryKey"`
	Name             string `gorm:"uniqueIndex;not null;size:128"`
	InfoURL          string `gorm:"size:1024"`
	ImageURL         string `gorm:"size:1024"`
	Category         string `gorm:"size:128;default:foods"`
	PantryDays       *uint
	RefrigeratorDays *uint
	FreezerDays      *uint
}

// Recipe represents a dish discovered from an upstream catalog
type Recipe struct {
	ID             uint    `gorm:"primaryKey"`
	Title          string  `gorm:"size:64;uniqueIndex:idx_recipes_title_url"`
	RecipeURL      string  `gorm:"size:1024;uniqueIndex:idx_recipes_title_url"`
	ImageURL       string  `gorm:"size:2048"`
	CookMinute     float64 // total cooking time in minutes
	NumServings    uint
	NumIngredients uint   // number of distinct ingredients, for sanity checks
	Language       string `gorm:"size:2;default:en"`
}

// Tag represents a diet/health/cuisine/meal/dish label
type Tag struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"size:128;uniqueIndex:idx_tags_name_category"`
	Category    string `gorm:"size:128;default:default;uniqueIndex:idx_tags_name_category"`
	Description string `gorm:"size:128"`
	InfoURL     string `gorm:"size:2048"`
	ImageURL    string `gorm:"size:2048"`
	Language    string `gorm:"size:2;default:en"`
}

// QuantityScaleUnit represents a unit of measure such as "gram" or "cup"
type QuantityScaleUnit struct {
	ID          uint   `gorm:"primaryKey"`
	Unit        string `gorm:"uniqueIndex;not null;size:16"`
	Description string `gorm:"size:256"`
}

// RecipeIngredient links a recipe to one of its ingredients
type RecipeIngredient struct {
	ID              uint `gorm:"primaryKey"`
	RecipeID        uint `gorm:"not null;uniqueIndex:idx_recipe_ingredient;constraint:OnDelete:CASCADE"`
	IngredientID    uint `gorm:"not null;uniqueIndex:idx_recipe_ingredient;constraint:OnDelete:CASCADE"`
	QuantityValue   float64
	QuantityScaleID uint
	WeightGrams     float64
}

// RecipeTag links a recipe to a tag
type RecipeTag struct {
	ID       uint `gorm:"primaryKey"`
	RecipeID uint `gorm:"not null;uniqueIndex:idx_recipe_tag;constraint:OnDelete:CASCADE"`
	TagID    uint `gorm:"not null;uniqueIndex:idx_recipe_tag;constraint:OnDelete:CASCADE"`
}

// RecipeNutrition holds per-serving macros for a recipe, one row per recipe
type RecipeNutrition struct {
	RecipeID               uint `gorm:"primaryKey"`
	CaloriesKcalPerServing float64
	FatGramPerServing      float64
	CarbsGramPerServing    float64
	ProteinGramPerServing  float64
}
