package domain

import (
	"fmt"
	"strings"
)

// Category is one of the coarse event groupings that decides queue routing
// and template selection.
type Category string

const (
	CategoryBooking Category = "BOOKING"
	CategoryWallet  Category = "WALLET"
	CategoryExpense Category = "EXPENSE"
	CategoryRewards Category = "REWARDS"
)

// Categories lists every category in queue declaration order.
func Categories() []Category {
	return []Category{CategoryBooking, CategoryWallet, CategoryExpense, CategoryRewards}
}

func (c Category) Valid() bool {
	switch c {
	case CategoryBooking, CategoryWallet, CategoryExpense, CategoryRewards:
		return true
	}
	return false
}

// Lower returns the lowercase name used in preference records ("booking").
func (c Category) Lower() string {
	return strings.ToLower(string(c))
}

// Queue returns the durable broker queue bound to the category.
func (c Category) Queue() string {
	return c.Lower() + "_notifications"
}

// ParseCategory accepts either the upper or lower case form.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", &ValidationError{Field: "eventCategory", Reason: fmt.Sprintf("invalid category %q", s)}
	}
	return c, nil
}
