// Package edamam provides a client for the Edamam recipe search API
package edamam

import "time"

// SearchResponse is the top-level Edamam search response
type SearchResponse struct {
	Query string `json:"q"`
	From  int    `json:"from"`
	To    int    `json:"to"`
	More  bool   `json:"more"`
	Count int    `json:"count"`
	Hits  []Hit  `json:"hits"`
}

// Hit wraps a single matched recipe
type Hit struct {
	Recipe Recipe `json:"recipe"`
}

// Recipe is a single Edamam recipe document
type Recipe struct {
	URI            string         `json:"uri"`
	Label          string         `json:"label"`
	Image          string         `json:"image"`
	Source         string         `json:"source"`
	URL            string         `json:"url"`
	Yield          float64        `json:"yield"`
	TotalTime      float64        `json:"totalTime"`
	DietLabels     []string       `json:"dietLabels"`
	HealthLabels   []string       `json:"healthLabels"`
	CuisineType    []string       `json:"cuisineType"`
	MealType       []string       `json:"mealType"`
	DishType       []string       `json:"dishType"`
	Ingredients    []Ingredient   `json:"ingredients"`
	TotalNutrients TotalNutrients `json:"totalNutrients"`
}

// Ingredient is a structured ingredient line within a recipe
type Ingredient struct {
	Text         string  `json:"text"`
	Food         string  `json:"food"`
	FoodCategory string  `json:"foodCategory"`
	Quantity     float64 `json:"quantity"`
	Measure      string  `json:"measure"`
	Weight       float64 `json:"weight"`
	Image        string  `json:"image"`
}

// Nutrient is a single nutrient total for the whole recipe
type Nutrient struct {
	Label    string  `json:"label"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// TotalNutrients carries the nutrient totals the pipeline persists
type TotalNutrients struct {
	Energy  Nutrient `json:"ENERC_KCAL"`
	Fat     Nutrient `json:"FAT"`
	Carbs   Nutrient `json:"CHOCDF"`
	Protein Nutrient `json:"PROCNT"`
}

// Config holds configuration for the Edamam client
type Config struct {
	AppID       string        `json:"app_id"`
	AppKey      string        `json:"app_key"`
	BaseURL     string        `json:"base_url"`
	Timeout     time.Duration `json:"timeout"`
	CacheTTL    time.Duration `json:"cache_ttl"`
	RateLimitMS int           `json:"rate_limit_ms"` // Milliseconds between requests
	UserAgent   string        `json:"user_agent"`
	Debug       bool          `json:"debug"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		BaseURL:     "https://api.edamam.com",
		Timeout:     30 * time.Second,
		CacheTTL:    1 * time.Hour,
		RateLimitMS: 6000, // free tier allows 10 requests per minute
	}
}
