// Package shelflife parses natural-language storage duration phrases into
// day counts.
package shelflife

import (
	"regexp"
	"strconv"
	"strings"
)

// StorageMethod identifies where an ingredient is stored.
type StorageMethod string

const (
	MethodPantry       StorageMethod = "pantry"
	MethodRefrigerator StorageMethod = "refrigerator"
	MethodFreezer      StorageMethod = "freezer"
)

// NormalizeMethod maps a free-text storage method heading to a known
// StorageMethod. The second return is false for headings the catalog does
// not track (counter, room temperature variants phrased differently, etc.).
func NormalizeMethod(text string) (StorageMethod, bool) {
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.Contains(t, "pantry"):
		return MethodPantry, true
	case strings.Contains(t, "refrigerat"), strings.Contains(t, "fridge"):
		return MethodRefrigerator, true
	case strings.Contains(t, "freez"):
		return MethodFreezer, true
	default:
		return "", false
	}
}

var durationRe = regexp.MustCompile(`(\d+)(-(\d+))?\s*(day|week|month|year)s?`)

// daysPerUnit uses calendar-average unit lengths; upstream phrasing is far
// coarser than the rounding error.
var daysPerUnit = map[string]uint{
	"day":   1,
	"week":  7,
	"month": 30,
	"year":  365,
}

// ParseDays converts a shelf-life phrase such as "2-3 days" or "1 month"
// into a day count. The first bound of a range is used, plus one day of
// margin, so "2-3 days" resolves to 3. Returns ok=false for phrases with
// no parsable duration.
func ParseDays(text string) (days uint, ok bool) {
	m := durationRe.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return 0, false
	}

	n, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return 0, false
	}

	return uint(n)*daysPerUnit[m[4]] + 1, true
}

// IsIndefinite reports whether the phrase declares the item non-perishable.
func IsIndefinite(text string) bool {
	return strings.Contains(strings.ToLower(text), "keeps indefinitely")
}
