package recipe

import "strings"

// ParseIngredients splits a comma separated blob into trimmed, non-empty
// ingredient names. Order is preserved and duplicates are kept.
func ParseIngredients(raw string) []string {
	ingredients := []string{}
	if raw == "" {
		return ingredients
	}
	for _, segment := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(segment); name != "" {
			ingredients = append(ingredients, name)
		}
	}
	return ingredients
}

// MergeIngredients appends extra after detected without deduplicating.
func MergeIngredients(detected, extra []string) []string {
	merged := make([]string, 0, len(detected)+len(extra))
	merged = append(merged, detected...)
	return append(merged, extra...)
}
