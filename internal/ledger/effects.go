package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/logsmarket001/api-fidelity-trust/internal/models"
)

// Delta is a signed change to an account's balance pair
type Delta struct {
	Available decimal.Decimal
	Current   decimal.Decimal
}

// Add returns the sum of two deltas
func (d Delta) Add(o Delta) Delta {
	return Delta{
		Available: d.Available.Add(o.Available),
		Current:   d.Current.Add(o.Current),
	}
}

// Sub returns the difference of two deltas
func (d Delta) Sub(o Delta) Delta {
	return Delta{
		Available: d.Available.Sub(o.Available),
		Current:   d.Current.Sub(o.Current),
	}
}

// IsZero reports whether the delta changes nothing
func (d Delta) IsZero() bool {
	return d.Available.IsZero() && d.Current.IsZero()
}

// cumulativeEffect returns the total balance effect of a transaction in the
// given state, measured from the account as it was before the transaction
// existed. Pending credits raise only the current balance; pending debits
// reserve available funds while the amount stays visible in current. Failed
// transactions have no effect in any direction.
func cumulativeEffect(action, status string, amount decimal.Decimal) Delta {
	if status == models.StatusFailed {
		return Delta{Available: decimal.Zero, Current: decimal.Zero}
	}

	switch action {
	case models.ActionCredit:
		if status == models.StatusPending {
			return Delta{Available: decimal.Zero, Current: amount}
		}
		return Delta{Available: amount, Current: amount}
	case models.ActionDebit:
		if status == models.StatusPending {
			return Delta{Available: amount.Neg(), Current: amount}
		}
		return Delta{Available: amount.Neg(), Current: decimal.Zero}
	}

	return Delta{Available: decimal.Zero, Current: decimal.Zero}
}

// CreationEffect is the delta to apply when a transaction is first recorded.
func CreationEffect(action, status string, amount decimal.Decimal) Delta {
	return cumulativeEffect(action, status, amount)
}

// TransitionEffect is the delta to apply when a transaction moves between
// statuses with its amount unchanged.
func TransitionEffect(action, fromStatus, toStatus string, amount decimal.Decimal) Delta {
	return cumulativeEffect(action, toStatus, amount).Sub(cumulativeEffect(action, fromStatus, amount))
}

// ChangeEffect is the general form: the delta between a transaction's old
// (action, status, amount) state and its new one. Used for admin amendments
// that can touch any combination of fields.
func ChangeEffect(oldAction, oldStatus string, oldAmount decimal.Decimal, newAction, newStatus string, newAmount decimal.Decimal) Delta {
	return cumulativeEffect(newAction, newStatus, newAmount).Sub(cumulativeEffect(oldAction, oldStatus, oldAmount))
}

// ReversalEffect undoes a transaction's current effect entirely.
func ReversalEffect(action, status string, amount decimal.Decimal) Delta {
	return Delta{}.Sub(cumulativeEffect(action, status, amount))
}
