package foodtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasic(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "apple pie", Basic("  Apple Pie "))
	assert.Equal(t, "", Basic("   "))
}

func TestSearchKeyword(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Apple Pie", "Apple+Pie"},
		{"punctuation stripped", "Po' Boys", "Po+Boys"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, SearchKeyword(tt.input))
		})
	}
}

func TestRecipeTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercased", "Apple Pie", "apple pie"},
		{"ampersand between words", "Mac&Cheese", "mac and cheese"},
		{"ampersand with spaces", "Fish & Chips", "fish and chips"},
		{"recipe suffix removed", "Apple Pie Recipe", "apple pie"},
		{"parenthesized recipe removed", "Apple Pie (recipe)", "apple pie"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, RecipeTitle(tt.input))
		})
	}
}

func TestIngredientName(t *testing.T) {
	t.Parallel()

	engine := NewRuleEngine()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase and trim", "  Butter ", "butter"},
		{"plural singularized", "Eggs", "egg"},
		{"oes plural", "tomatoes", "tomato"},
		{"ies plural", "cherries", "cherry"},
		{"percent spelled out", "2% milk", "2 percent milk"},
		{"punctuation stripped", "flour (all-purpose)", "flour all purpose"},
		{"uncountable kept", "molasses", "molasses"},
		{"irregular plural", "bay leaves", "bay leaf"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IngredientName(tt.input, engine))
		})
	}
}

func TestIngredientQuery(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "vanilla extract", IngredientQuery("vanilla essence"))
	assert.Equal(t, "burger roll or bun", IngredientQuery("burger bun"))
	assert.Equal(t, "plain flour", IngredientQuery("Plain Flour"))
}

func TestUnitScale(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain unit", "cup", "cup"},
		{"punctuation stripped", "fl. oz", "floz"},
		{"empty becomes unknown", "", "unknown"},
		{"whitespace becomes unknown", "   ", "unknown"},
		{"known junk becomes unknown", "naan", "unknown"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, UnitScale(tt.input))
		})
	}
}

func TestRuleEngineSimilarity(t *testing.T) {
	t.Parallel()

	engine := NewRuleEngine()

	assert.InDelta(t, 1.0, engine.Similarity("butter", "butter"), 1e-9)
	assert.Greater(t, engine.Similarity("butter", "butter salted"), engine.Similarity("butter", "chicken stock"))
	assert.Zero(t, engine.Similarity("", "butter"))
}

func TestRuleEngineNounChunks(t *testing.T) {
	t.Parallel()

	engine := NewRuleEngine()

	chunks := engine.NounChunks("butter, sugar and flour")
	require.Equal(t, []string{"butter", "sugar", "flour"}, chunks)

	chunks = engine.NounChunks("fresh basil with olive oil")
	require.Equal(t, []string{"basil", "olive oil"}, chunks)

	assert.Nil(t, engine.NounChunks("  "))
}

func TestChunkRoot(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "oil", ChunkRoot("olive oil"))
	assert.Equal(t, "basil", ChunkRoot("basil"))
	assert.Equal(t, "", ChunkRoot(""))
}
