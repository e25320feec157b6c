// Package usecases - query.go derives the catalog view from the current products.
package usecases

import (
	"slices"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/0xcro3dile/chatcart/internal/domain/entities"
)

// CatalogLocale is the collation used for name and category ordering.
var CatalogLocale = language.English

// ApplyFilters filters products by criteria and sorts the survivors.
// The input slice is never modified. Sorting is stable in both directions:
// descending order negates the comparison rather than reversing the result.
func ApplyFilters(products []entities.Product, criteria entities.FilterCriteria) []entities.Product {
	fold := cases.Fold()
	term := fold.String(criteria.SearchTerm)

	var categories map[string]struct{}
	if len(criteria.SelectedCategories) > 0 {
		categories = make(map[string]struct{}, len(criteria.SelectedCategories))
		for _, c := range criteria.SelectedCategories {
			categories[c] = struct{}{}
		}
	}

	out := make([]entities.Product, 0, len(products))
	for _, p := range products {
		if term != "" &&
			!strings.Contains(fold.String(p.Name), term) &&
			!strings.Contains(fold.String(p.Description), term) {
			continue
		}
		if categories != nil {
			if _, ok := categories[p.Category]; !ok {
				continue
			}
		}
		if p.Price < criteria.MinPrice || p.Price > criteria.MaxPrice {
			continue
		}
		out = append(out, p)
	}

	cmp := comparator(criteria.SortKey)
	if criteria.SortDirection == entities.SortDesc {
		asc := cmp
		cmp = func(a, b entities.Product) int { return -asc(a, b) }
	}
	slices.SortStableFunc(out, cmp)
	return out
}

func comparator(key entities.SortKey) func(a, b entities.Product) int {
	col := collate.New(CatalogLocale)
	switch key {
	case entities.SortByPrice:
		return func(a, b entities.Product) int {
			switch {
			case a.Price < b.Price:
				return -1
			case a.Price > b.Price:
				return 1
			}
			return 0
		}
	case entities.SortByCategory:
		return func(a, b entities.Product) int { return col.CompareString(a.Category, b.Category) }
	default:
		return func(a, b entities.Product) int { return col.CompareString(a.Name, b.Name) }
	}
}

// UniqueCategories lists the distinct categories present, in ascending order.
func UniqueCategories(products []entities.Product) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, p := range products {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	sort.Strings(out)
	return out
}
