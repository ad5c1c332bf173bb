package worker

import (
	"fmt"

	"github.com/lupppig/notifyq/internal/domain"
)

// requiredFields lists the payload fields each category cannot do without.
var requiredFields = map[domain.Category][]string{
	domain.CategoryBooking: {"bookingId"},
	domain.CategoryWallet:  {"transactionId", "amount"},
	domain.CategoryExpense: {"expenseId", "amount", "status"},
	domain.CategoryRewards: {"rewardId", "points", "source"},
}

// RequireFields returns a validator that rejects envelopes missing any of
// the given payload fields.
func RequireFields(fields ...string) func(*domain.Envelope) error {
	return func(env *domain.Envelope) error {
		for _, f := range fields {
			if !env.Payload.Has(f) {
				return &domain.ValidationError{Field: "payload." + f, Reason: "is required"}
			}
		}
		return nil
	}
}

// SpecFor returns the consumer spec for a category.
func SpecFor(c domain.Category) Spec {
	return Spec{Category: c, Validate: RequireFields(requiredFields[c]...)}
}

// Specs returns one spec per category.
func Specs() []Spec {
	cats := domain.Categories()
	out := make([]Spec, 0, len(cats))
	for _, c := range cats {
		out = append(out, SpecFor(c))
	}
	return out
}

func (s Spec) validate(env *domain.Envelope) error {
	if s.Validate == nil {
		return nil
	}
	if err := s.Validate(env); err != nil {
		return fmt.Errorf("%s message %s: %w", s.Category.Lower(), env.MessageID, err)
	}
	return nil
}
