package domain

import (
	"strings"
	"time"
)

// CategorySeparator joins the main and sub category in a ticket's category string.
const CategorySeparator = " - "

// Category is a main category under a department with its ordered subcategories.
type Category struct {
	ID            int64
	Department    string
	MainCategory  string
	SubCategories []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasSubCategory reports whether sub is listed under the category.
func (c *Category) HasSubCategory(sub string) bool {
	for _, candidate := range c.SubCategories {
		if candidate == sub {
			return true
		}
	}
	return false
}

// Taxonomy maps department -> main category -> subcategories.
type Taxonomy map[string]map[string][]string

// Add records a category in the taxonomy.
func (t Taxonomy) Add(c Category) {
	mains, ok := t[c.Department]
	if !ok {
		mains = make(map[string][]string)
		t[c.Department] = mains
	}
	mains[c.MainCategory] = append([]string(nil), c.SubCategories...)
}

// SplitCategory splits "Main - Sub" into its parts.
func SplitCategory(category string) (main, sub string, ok bool) {
	main, sub, ok = strings.Cut(category, CategorySeparator)
	if !ok {
		return "", "", false
	}
	main = strings.TrimSpace(main)
	sub = strings.TrimSpace(sub)
	return main, sub, main != "" && sub != ""
}

// JoinCategory builds the composite category string.
func JoinCategory(main, sub string) string {
	return main + CategorySeparator + sub
}
