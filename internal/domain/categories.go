package domain

import (
	"strings"
)

// CategoryOther is the fallback for values the model invents outside the
// fixed vocabulary.
const CategoryOther = "Other"

// Fixed category vocabulary. Separate lists for income and expense; the UI
// and the extraction prompt both derive from these, so order is stable.
var (
	IncomeCategories = []string{
		"Salary",
		"Bonus",
		"Investment",
		"Gift",
		"Refund",
		CategoryOther,
	}

	ExpenseCategories = []string{
		"Food",
		"Transport",
		"Shopping",
		"Entertainment",
		"Housing",
		"Health",
		"Education",
		"Travel",
		"Subscriptions",
		CategoryOther,
	}
)

// Subcategories gated by parent category. A category absent from this map has
// no subcategories and any supplied value is dropped.
var Subcategories = map[string][]string{
	"Food":      {"Groceries", "Restaurants", "Coffee", "Delivery"},
	"Transport": {"Public Transit", "Taxi", "Fuel", "Parking"},
	"Shopping":  {"Clothing", "Electronics", "Home", "Gifts"},
	"Housing":   {"Rent", "Utilities", "Maintenance"},
	"Health":    {"Pharmacy", "Doctor", "Fitness"},
	"Travel":    {"Flights", "Hotels", "Activities"},
}

// AllCategories returns the union of both vocabularies, income first,
// deduplicated (Other appears in both lists).
func AllCategories() []string {
	seen := make(map[string]bool, len(IncomeCategories)+len(ExpenseCategories))
	out := make([]string, 0, len(IncomeCategories)+len(ExpenseCategories))
	for _, c := range append(append([]string{}, IncomeCategories...), ExpenseCategories...) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// CategoriesFor returns the vocabulary for the given transaction type.
func CategoriesFor(t TransactionType) []string {
	if t == TypeIncome {
		return IncomeCategories
	}
	return ExpenseCategories
}

// NormalizeCategory maps a model- or user-supplied category onto the fixed
// vocabulary for the given type, case- and whitespace-insensitively.
// Unknown values fall back to Other.
func NormalizeCategory(t TransactionType, category string) string {
	want := canonical(category)
	for _, c := range CategoriesFor(t) {
		if canonical(c) == want {
			return c
		}
	}
	return CategoryOther
}

// NormalizeSubcategory validates a subcategory against the sub-list gated by
// category. Invalid or ungated values are dropped (empty string).
func NormalizeSubcategory(category, subcategory string) string {
	subs, ok := Subcategories[category]
	if !ok {
		return ""
	}
	want := canonical(subcategory)
	for _, s := range subs {
		if canonical(s) == want {
			return s
		}
	}
	return ""
}

// ValidCategory reports whether category is in the vocabulary for type t.
func ValidCategory(t TransactionType, category string) bool {
	want := canonical(category)
	for _, c := range CategoriesFor(t) {
		if canonical(c) == want {
			return true
		}
	}
	return false
}

func canonical(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
