package recipe

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	highlightOpen  = `<span class="available-ingredient">`
	highlightClose = `</span>`
	lineBreak      = "<br>"

	// Shorter ingredient names are skipped by Highlight.
	minHighlightLen = 3
)

// bulletPattern turns "1." style numbering and hyphens into bullets. It runs
// over the whole joined body, hyphens inside words included.
var bulletPattern = regexp.MustCompile(`\d+\.|-`)

const cardTemplate = `
<div class="recipe-card">
    <div class="recipe-header">
        <h2 class="recipe-title">%s</h2>
        <button class="btn btn-outline-primary copy-button" title="Copiar receta">
            <i class="fas fa-copy"></i>
        </button>
    </div>
    <div class="recipe-content">%s</div>
    %s
</div>
`

const shoppingListOpen = `
    <div class="shopping-list">
        <div class="shopping-list-header">
            <i class="fas fa-shopping-cart"></i>
            <h3>Lista de compra sugerida</h3>
            <button class="btn btn-outline-primary copy-shopping-list" title="Copiar lista de compra">
                <i class="fas fa-copy"></i>
            </button>
        </div>
        <ul class="shopping-list-items">`

const shoppingListItem = `
            <li class="shopping-list-item">
                <i class="fas fa-shopping-basket"></i>
                <span>%s</span>
            </li>`

const shoppingListClose = `
        </ul>
    </div>`

// Formatter renders model responses into recipe cards.
type Formatter struct {
	parser Parser
}

// NewFormatter returns a Formatter using p, or the HeuristicParser when p is nil.
func NewFormatter(p Parser) *Formatter {
	if p == nil {
		p = HeuristicParser{}
	}
	return &Formatter{parser: p}
}

// Format parses raw and renders it, highlighting every available ingredient.
func (f *Formatter) Format(raw string, available []string) string {
	return Highlight(Render(f.parser.Parse(raw)), available)
}

// Render assembles the card markup. Model text is HTML-escaped; the shopping
// list block is omitted when the recipe has no shopping list.
func Render(p ParsedRecipe) string {
	escaped := make([]string, len(p.Body))
	for i, line := range p.Body {
		escaped[i] = html.EscapeString(line)
	}
	body := bulletPattern.ReplaceAllString(strings.Join(escaped, lineBreak), "•")

	return fmt.Sprintf(cardTemplate, html.EscapeString(p.Title), body, renderShoppingList(p.ShoppingList))
}

func renderShoppingList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(shoppingListOpen)
	for _, item := range items {
		if item = trimListMarkers(item); item != "" {
			fmt.Fprintf(&b, shoppingListItem, html.EscapeString(item))
		}
	}
	b.WriteString(shoppingListClose)
	return b.String()
}

func trimListMarkers(item string) string {
	return strings.TrimFunc(item, func(r rune) bool {
		return r == '•' || r == '-' || r == '[' || r == ']' || unicode.IsSpace(r)
	})
}

// Highlight wraps every case-insensitive whole-word occurrence of each
// ingredient in a highlight span. Ingredients are applied in order over the
// already highlighted markup, so a later ingredient can match text inside an
// earlier highlight, or markup text that happens to equal an ingredient.
func Highlight(markup string, ingredients []string) string {
	for _, ingredient := range ingredients {
		name := strings.TrimRight(ingredient, ".")
		if utf8.RuneCountInString(name) < minHighlightLen {
			continue
		}
		// Render escapes model text, so match the escaped form of the name.
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(html.EscapeString(name)))
		markup = wrapWholeWords(markup, re)
	}
	return markup
}

func wrapWholeWords(s string, re *regexp.Regexp) string {
	var b strings.Builder
	last, pos := 0, 0
	for pos < len(s) {
		loc := re.FindStringIndex(s[pos:])
		if loc == nil || loc[0] == loc[1] {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if !atWordBoundary(s, start, end) {
			_, size := utf8.DecodeRuneInString(s[start:])
			pos = start + size
			continue
		}
		b.WriteString(s[last:start])
		b.WriteString(highlightOpen)
		b.WriteString(s[start:end])
		b.WriteString(highlightClose)
		last, pos = end, end
	}
	if last == 0 {
		return s
	}
	b.WriteString(s[last:])
	return b.String()
}

// atWordBoundary reports whether s[start:end] is not glued to a letter, digit
// or underscore on either side. Unlike regexp's \b this is Unicode aware, so
// "limón" and "piña" are matched as whole words.
func atWordBoundary(s string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(s) {
		r, _ := utf8.DecodeRuneInString(s[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
