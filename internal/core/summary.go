package core

// RemainingMonth is what a user still has to pay in the current calendar
// month. Total is always the integer sum of both due sets.
type RemainingMonth struct {
	Total         Money
	Subscriptions []Subscription
	Expenses      []Expense
}

// NewRemainingMonth builds the summary and computes its total. It fails with
// ErrAmountOverflow rather than wrapping.
func NewRemainingMonth(subs []Subscription, expenses []Expense) (RemainingMonth, error) {
	var total int64
	var err error
	for _, s := range subs {
		if total, err = AddCents(total, s.Amount.Cents); err != nil {
			return RemainingMonth{}, err
		}
	}
	for _, e := range expenses {
		if total, err = AddCents(total, e.Amount.Cents); err != nil {
			return RemainingMonth{}, err
		}
	}
	return RemainingMonth{
		Total:         Money{Cents: total},
		Subscriptions: subs,
		Expenses:      expenses,
	}, nil
}

// IsEmpty reports whether nothing is left to pay.
func (r RemainingMonth) IsEmpty() bool {
	return len(r.Subscriptions) == 0 && len(r.Expenses) == 0
}

// Charge is one subscription deducted from its owner's balance on its
// billing day.
type Charge struct {
	SubscriptionID int64
	UserID         string
	Name           string
	Amount         Money
	Balance        Money // balance after the deduction
}
