package foodtext

import (
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// Engine is the narrow contract the resolver needs from a language engine.
// Any backing implementation satisfies it; RuleEngine is the built-in one.
type Engine interface {
	// Similarity returns a closeness score between two text spans in [0,1].
	Similarity(a, b string) float64
	// Lemmatize reduces plural nouns in a phrase to singular form.
	Lemmatize(text string) string
	// NounChunks extracts the constituent noun phrases of a text span.
	NounChunks(text string) []string
}

// RuleEngine is a dependency-free rule-based Engine. Similarity is
// Jaro-Winkler; lemmatization and chunking are suffix and delimiter rules.
type RuleEngine struct {
	metric *metrics.JaroWinkler
}

// NewRuleEngine returns a ready-to-use rule-based engine.
func NewRuleEngine() *RuleEngine {
	return &RuleEngine{metric: metrics.NewJaroWinkler()}
}

// Similarity implements Engine using the Jaro-Winkler metric.
func (e *RuleEngine) Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return strutil.Similarity(a, b, e.metric)
}

// irregularSingulars maps plurals the suffix rules would mangle.
var irregularSingulars = map[string]string{
	"leaves":   "leaf",
	"loaves":   "loaf",
	"halves":   "half",
	"knives":   "knife",
	"children": "child",
	"feet":     "foot",
	"geese":    "goose",
	"teeth":    "tooth",
}

// uncountables are words that end in s but have no singular form.
var uncountables = map[string]struct{}{
	"molasses":  {},
	"couscous":  {},
	"hummus":    {},
	"asparagus": {},
	"swiss":     {},
	"grits":     {},
}

// Lemmatize implements Engine by singularizing each token.
func (e *RuleEngine) Lemmatize(text string) string {
	tokens := strings.Fields(text)
	for i, token := range tokens {
		tokens[i] = singularize(token)
	}
	return strings.Join(tokens, " ")
}

func singularize(token string) string {
	if singular, ok := irregularSingulars[token]; ok {
		return singular
	}
	if _, ok := uncountables[token]; ok {
		return token
	}
	if !strings.HasSuffix(token, "s") || strings.HasSuffix(token, "ss") || strings.HasSuffix(token, "us") || strings.HasSuffix(token, "is") {
		return token
	}

	switch {
	case strings.HasSuffix(token, "ies") && len(token) > 4:
		return token[:len(token)-3] + "y"
	case strings.HasSuffix(token, "oes") && len(token) > 4:
		return token[:len(token)-2]
	case strings.HasSuffix(token, "ses"), strings.HasSuffix(token, "xes"),
		strings.HasSuffix(token, "zes"), strings.HasSuffix(token, "ches"),
		strings.HasSuffix(token, "shes"):
		return token[:len(token)-2]
	default:
		return token[:len(token)-1]
	}
}

// chunkDelimiters separate noun phrases inside an ingredient query.
var chunkDelimiters = []string{",", " and ", " or ", " with ", " in ", " for ", " of "}

// NounChunks implements Engine with delimiter splitting. Determiners and
// quantity words are trimmed off the front of each chunk.
func (e *RuleEngine) NounChunks(text string) []string {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return nil
	}

	parts := []string{text}
	for _, delim := range chunkDelimiters {
		var next []string
		for _, part := range parts {
			next = append(next, strings.Split(part, delim)...)
		}
		parts = next
	}

	var chunks []string
	for _, part := range parts {
		chunk := trimLeadingModifiers(part)
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

var leadingModifiers = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "some": {}, "any": {},
	"fresh": {}, "dried": {}, "frozen": {}, "chopped": {}, "sliced": {},
}

func trimLeadingModifiers(s string) string {
	tokens := strings.Fields(s)
	for len(tokens) > 0 {
		if _, ok := leadingModifiers[tokens[0]]; !ok {
			break
		}
		tokens = tokens[1:]
	}
	return strings.Join(tokens, " ")
}

// ChunkRoot returns the lexical root of a noun chunk, its head noun.
func ChunkRoot(chunk string) string {
	tokens := strings.Fields(chunk)
	if len(tokens) == 0 {
		return ""
	}
	return tokens[len(tokens)-1]
}
