package domain

import (
	"fmt"
	"strings"
)

// Category is a view filter over the history
type Category string

const (
	CategoryAll       Category = "all"
	CategoryText      Category = "text"
	CategoryImage     Category = "image"
	CategoryFile      Category = "file"
	CategoryFavorites Category = "favorites"
)

// ParseCategory parses a category name; the empty string means all
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return CategoryAll, nil
	case CategoryAll, CategoryText, CategoryImage, CategoryFile, CategoryFavorites:
		return c, nil
	default:
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalidInput, s)
	}
}

// Matches reports whether the entry belongs to the category
func (c Category) Matches(e Entry) bool {
	switch c {
	case CategoryText:
		return e.Kind.IsText()
	case CategoryImage:
		return e.Kind == KindImageBlob
	case CategoryFile:
		return e.Kind == KindFileReference
	case CategoryFavorites:
		return e.Pinned
	default:
		return true
	}
}

// MatchesSearch reports whether content contains search, ignoring case.
// An empty search matches everything.
func MatchesSearch(e Entry, search string) bool {
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Content), strings.ToLower(search))
}
