package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Account represents a customer's ledger account
type Account struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID    string             `bson:"user_id" json:"user_id"`
	FirstName string             `bson:"first_name" json:"first_name"`
	LastName  string             `bson:"last_name" json:"last_name"`
	Email     string             `bson:"email" json:"email"`

	// AvailableBalance is spendable now; CurrentBalance includes in-flight
	// pending amounts. Balance mirrors CurrentBalance for legacy display.
	AvailableBalance decimal.Decimal `bson:"available_balance" json:"available_balance"`
	CurrentBalance   decimal.Decimal `bson:"current_balance" json:"current_balance"`
	Balance          decimal.Decimal `bson:"balance" json:"balance"`

	// Version guards concurrent balance writes (compare-and-swap).
	Version int64 `bson:"version" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// NewAccount creates an account with zero balances
func NewAccount(userID, firstName, lastName, email string) *Account {
	now := time.Now()
	return &Account{
		UserID:           userID,
		FirstName:        firstName,
		LastName:         lastName,
		Email:            email,
		AvailableBalance: decimal.Zero,
		CurrentBalance:   decimal.Zero,
		Balance:          decimal.Zero,
		Version:          0,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// FullName returns the display name used in chat and notifications
func (a *Account) FullName() string {
	return fmt.Sprintf("%s %s", a.FirstName, a.LastName)
}

// HasSufficientBalance checks available funds against an amount
func (a *Account) HasSufficientBalance(amount decimal.Decimal) bool {
	return a.AvailableBalance.GreaterThanOrEqual(amount)
}

// ApplyDelta adds a balance delta and keeps the legacy balance in sync
func (a *Account) ApplyDelta(available, current decimal.Decimal) {
	a.AvailableBalance = a.AvailableBalance.Add(available)
	a.CurrentBalance = a.CurrentBalance.Add(current)
	a.Balance = a.CurrentBalance
	a.UpdatedAt = time.Now()
}

// Validate validates account data
func (a *Account) Validate() error {
	if a.UserID == "" {
		return fmt.Errorf("user ID is required")
	}
	if a.AvailableBalance.LessThan(decimal.Zero) {
		return fmt.Errorf("available balance cannot be negative")
	}
	return nil
}
