// Package foodtext canonicalizes free-text recipe and ingredient mentions
// into comparable forms.
package foodtext

import (
	"io"
	"log"
	"log/slog"
	"regexp"
	"strings"

	"github.com/fridgecat/fridgecat-go/internal/logging"
)

// Package-level logger specific to the foodtext service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
)

func init() {
	var err error
	serviceLevelVar.Set(slog.LevelInfo)

	logger, _, err = logging.NewFileLogger("logs/foodtext.log", "foodtext", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize foodtext file logger: %v. Service logging disabled.", err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "foodtext")
	}
}

var (
	searchKeywordRe  = regexp.MustCompile(`[^a-zA-Z0-9\s]+`)
	ampersandWordRe  = regexp.MustCompile(`([a-zA-Z])&([a-zA-Z])`)
	ampersandSpaceRe = regexp.MustCompile(`\s+&\s+`)
	recipeSuffixRe   = regexp.MustCompile(`\(?\s*recipes?\)?`)
	percentRe        = regexp.MustCompile(`%`)
	nonNameRe        = regexp.MustCompile(`[^\w\d.,']`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
	essenceRe        = regexp.MustCompile(`essence`)
	rollBunRe        = regexp.MustCompile(`\sroll\W?|\sbun\W?`)
	nonWordRe        = regexp.MustCompile(`\W`)
	wordRe           = regexp.MustCompile(`\w`)
)

// Basic trims and lowercases a raw mention.
func Basic(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SearchKeyword turns a meal name into a detail-source query parameter:
// punctuation stripped, spaces joined with '+'.
func SearchKeyword(s string) string {
	if s == "" {
		return ""
	}
	return strings.ReplaceAll(searchKeywordRe.ReplaceAllString(s, ""), " ", "+")
}

// RecipeTitle canonicalizes a recipe label for storage and verification:
// lowercase, '&' rewritten to "and", any "recipe(s)" suffix removed.
func RecipeTitle(s string) string {
	r := Basic(s)
	r = ampersandWordRe.ReplaceAllString(r, "$1 and $2")
	r = ampersandSpaceRe.ReplaceAllString(r, " and ")
	r = recipeSuffixRe.ReplaceAllString(r, "")
	return strings.TrimSpace(r)
}

// IngredientName produces the comparison key for an ingredient mention:
// lowercase, '%' spelled out, non-word characters except digits, dots,
// commas and apostrophes stripped, whitespace collapsed, plural tokens
// singularized through the engine.
func IngredientName(s string, engine Engine) string {
	r := Basic(s)
	r = percentRe.ReplaceAllString(r, " percent ")
	r = nonNameRe.ReplaceAllString(r, " ")
	r = whitespaceRe.ReplaceAllString(r, " ")
	r = strings.TrimSpace(r)
	return singularizeTokens(r, engine)
}

// IngredientQuery lightly rewrites a mention before it is sent to the
// shelf-life source. The substitutions widen matches that the upstream
// search misses verbatim.
func IngredientQuery(s string) string {
	r := Basic(s)
	r = essenceRe.ReplaceAllString(r, "extract")
	r = rollBunRe.ReplaceAllString(r, " roll or bun ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(r, " "))
}

// UnitScale canonicalizes a measure string to a unit key. Empty results
// fall back to the conventional "unknown" placeholder.
func UnitScale(s string) string {
	r := Basic(s)
	r = nonWordRe.ReplaceAllString(r, "")
	if strings.TrimSpace(r) == "" || r == "naan" {
		return "unknown"
	}
	return r
}

// singularizeTokens lemmatizes each token and rebuilds the phrase, keeping
// only tokens that still contain word characters.
func singularizeTokens(s string, engine Engine) string {
	lemmatized := engine.Lemmatize(s)

	var b strings.Builder
	for _, token := range strings.Fields(lemmatized) {
		if wordRe.MatchString(token) {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(token)
		}
	}
	r := b.String()

	if len(strings.Fields(s)) != len(strings.Fields(r)) {
		logger.Error("lemmatized phrase is not coherent with its source",
			"source", s,
			"lemmatized", r)
	}
	return r
}
