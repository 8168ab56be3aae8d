package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Transaction types
const (
	TypeFundWallet = "fundWallet"
	TypeSendMoney  = "sendMoney"
	TypeWithdraw   = "withdraw"
	TypeCredit     = "credit"
	TypeDebit      = "debit"
	TypeStocks     = "stocks"
)

// Transaction actions
const (
	ActionCredit = "credit"
	ActionDebit  = "debit"
)

// Transaction statuses
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Common subtypes. Subtype is free-form; these are the values the API
// itself produces.
const (
	SubtypeMember    = "member"
	SubtypeStock     = "stock"
	SubtypeStockSale = "stock_sale"
)

var (
	validTypes    = []string{TypeFundWallet, TypeSendMoney, TypeWithdraw, TypeCredit, TypeDebit, TypeStocks}
	validActions  = []string{ActionCredit, ActionDebit}
	validStatuses = []string{StatusPending, StatusSuccess, StatusFailed}
)

// Transaction represents one ledger entry on an account
type Transaction struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID  string             `bson:"user_id" json:"user_id"`
	Type    string             `bson:"type" json:"type"`
	Subtype string             `bson:"subtype,omitempty" json:"subtype,omitempty"`
	Action  string             `bson:"action" json:"action"`
	Status  string             `bson:"status" json:"status"`
	Amount  decimal.Decimal    `bson:"amount" json:"amount"`

	// Data carries operation-specific details (recipient info, bank
	// details, stock references). Opaque to the ledger.
	Data map[string]interface{} `bson:"data,omitempty" json:"data,omitempty"`

	IdempotencyKey string `bson:"idempotency_key,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// NewTransaction creates a transaction in the given state
func NewTransaction(userID, txType, subtype, action, status string, amount decimal.Decimal, data map[string]interface{}) *Transaction {
	now := time.Now()
	return &Transaction{
		UserID:    userID,
		Type:      txType,
		Subtype:   subtype,
		Action:    action,
		Status:    status,
		Amount:    amount,
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsDebit returns true for debit-action transactions
func (t *Transaction) IsDebit() bool {
	return t.Action == ActionDebit
}

// IsPending returns true while the transaction awaits settlement
func (t *Transaction) IsPending() bool {
	return t.Status == StatusPending
}

// IsValidType reports whether s is a known transaction type
func IsValidType(s string) bool {
	return contains(validTypes, s)
}

// IsValidAction reports whether s is a known action
func IsValidAction(s string) bool {
	return contains(validActions, s)
}

// IsValidStatus reports whether s is a known status
func IsValidStatus(s string) bool {
	return contains(validStatuses, s)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Validate validates the transaction data
func (t *Transaction) Validate() error {
	if t.UserID == "" {
		return fmt.Errorf("user ID is required")
	}
	if !IsValidType(t.Type) {
		return fmt.Errorf("invalid transaction type: %s", t.Type)
	}
	if !IsValidAction(t.Action) {
		return fmt.Errorf("invalid transaction action: %s", t.Action)
	}
	if !IsValidStatus(t.Status) {
		return fmt.Errorf("invalid transaction status: %s", t.Status)
	}
	if t.Amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("transaction amount must be positive")
	}
	return nil
}
