// Package routing maps fine-grained event types onto the fixed category queues.
package routing

import (
	"sort"
	"strings"

	"github.com/lupppig/notifyq/internal/domain"
)

var table = map[string]domain.Category{
	"booking":           domain.CategoryBooking,
	"booking_confirmed": domain.CategoryBooking,
	"booking_cancelled": domain.CategoryBooking,
	"booking_updated":   domain.CategoryBooking,

	"wallet":          domain.CategoryWallet,
	"wallet_debited":  domain.CategoryWallet,
	"wallet_credited": domain.CategoryWallet,
	"wallet_transfer": domain.CategoryWallet,

	"expense":           domain.CategoryExpense,
	"expense_approved":  domain.CategoryExpense,
	"expense_rejected":  domain.CategoryExpense,
	"expense_submitted": domain.CategoryExpense,

	"rewards":          domain.CategoryRewards,
	"rewards_credited": domain.CategoryRewards,
	"rewards_expired":  domain.CategoryRewards,
	"rewards_used":     domain.CategoryRewards,
}

// Resolve returns the category for an event type. Lookup ignores case and
// surrounding whitespace.
func Resolve(eventType string) (domain.Category, error) {
	c, ok := table[strings.ToLower(strings.TrimSpace(eventType))]
	if !ok {
		return "", &domain.UnresolvedEventTypeError{EventType: eventType}
	}
	return c, nil
}

// EventTypes lists every recognized event type, sorted.
func EventTypes() []string {
	out := make([]string, 0, len(table))
	for k := range table {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
