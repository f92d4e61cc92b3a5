// Package recipe holds the text side of the kitchen assistant: parsing the
// ingredient list returned by the vision model, building the recipe prompt,
// and turning the free-form recipe text into an HTML card.
//
// Everything in this package is pure and safe for concurrent use.
package recipe
