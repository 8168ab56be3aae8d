package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Stock purchase statuses
const (
	PurchaseActive = "active"
	PurchaseSold   = "sold"
)

// StockPurchase represents a customer's position in a stock, opened by a
// single buy and reduced or closed by sales
type StockPurchase struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID        string             `bson:"user_id" json:"user_id"`
	StockID       string             `bson:"stock_id" json:"stock_id"`
	Quantity      int64              `bson:"quantity" json:"quantity"`
	PurchasePrice decimal.Decimal    `bson:"purchase_price" json:"purchase_price"`
	TotalCost     decimal.Decimal    `bson:"total_cost" json:"total_cost"`
	Status        string             `bson:"status" json:"status"`
	PurchaseDate  time.Time          `bson:"purchase_date" json:"purchase_date"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// NewStockPurchase creates an active position
func NewStockPurchase(userID, stockID string, quantity int64, purchasePrice, totalCost decimal.Decimal) *StockPurchase {
	now := time.Now()
	return &StockPurchase{
		UserID:        userID,
		StockID:       stockID,
		Quantity:      quantity,
		PurchasePrice: purchasePrice,
		TotalCost:     totalCost,
		Status:        PurchaseActive,
		PurchaseDate:  now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IsActive reports whether the position can still be sold from
func (p *StockPurchase) IsActive() bool {
	return p.Status == PurchaseActive
}

// Validate validates the purchase data
func (p *StockPurchase) Validate() error {
	if p.UserID == "" {
		return fmt.Errorf("user ID is required")
	}
	if p.StockID == "" {
		return fmt.Errorf("stock ID is required")
	}
	if p.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	if p.TotalCost.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("total cost must be positive")
	}
	return nil
}
