package recipe

import (
	"strings"
	"unicode/utf8"
)

// ParsedRecipe is the segmented form of one model response.
type ParsedRecipe struct {
	Title        string
	Body         []string
	ShoppingList []string
}

// Parser segments raw recipe text. Implementations must not fail; missing
// sections come back empty.
type Parser interface {
	Parse(text string) ParsedRecipe
}

// HeuristicParser classifies lines with the rules the recipe prompt is
// written for: the first title-looking line is the title, a shopping list
// header switches the remaining lines into the shopping list.
type HeuristicParser struct{}

var markdownMarkers = strings.NewReplacer("**", "", "*", "", "###", "", "##", "", "#", "")

const (
	titleLabel     = "Nombre de la receta:"
	maxTitleKeyLen = 50
	quoteChars     = "\"“”"
)

// Parse implements Parser.
func (HeuristicParser) Parse(text string) ParsedRecipe {
	var parsed ParsedRecipe
	inShoppingList := false

	for _, line := range strings.Split(StripMarkdown(text), "\n") {
		line = strings.TrimSpace(line)

		if parsed.Title == "" && looksLikeTitle(line) {
			parsed.Title = cleanTitle(line)
			continue
		}

		if isShoppingListMarker(line) {
			inShoppingList = true
			continue
		}

		if line == "" {
			continue
		}
		if inShoppingList {
			parsed.ShoppingList = append(parsed.ShoppingList, line)
		} else {
			parsed.Body = append(parsed.Body, line)
		}
	}

	if parsed.Title == "" && len(parsed.Body) > 0 {
		parsed.Title = parsed.Body[0]
		parsed.Body = parsed.Body[1:]
	}

	return parsed
}

// StripMarkdown removes emphasis and heading markers.
func StripMarkdown(text string) string {
	return markdownMarkers.Replace(text)
}

func looksLikeTitle(line string) bool {
	if line == "" {
		return false
	}
	if strings.Contains(strings.ToLower(line), "nombre de la receta") {
		return true
	}
	first, _ := utf8.DecodeRuneInString(line)
	last, _ := utf8.DecodeLastRuneInString(line)
	if strings.ContainsRune(quoteChars, first) || strings.ContainsRune(quoteChars, last) {
		return true
	}
	if i := strings.Index(line, ":"); i >= 0 && utf8.RuneCountInString(line[:i]) < maxTitleKeyLen {
		return true
	}
	return false
}

func cleanTitle(line string) string {
	title := strings.ReplaceAll(line, titleLabel, "")
	title = strings.Map(func(r rune) rune {
		if strings.ContainsRune(quoteChars, r) {
			return -1
		}
		return r
	}, title)
	return strings.TrimSpace(title)
}

func isShoppingListMarker(line string) bool {
	upper := strings.ToUpper(line)
	return strings.Contains(upper, "LISTA DE COMPRAS") || strings.Contains(upper, "SHOPPING LIST")
}
