package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/logsmarket001/api-fidelity-trust/internal/ledger"
	"github.com/logsmarket001/api-fidelity-trust/internal/middleware"
	"github.com/logsmarket001/api-fidelity-trust/internal/repository"
)

type StockController struct {
	engine ledger.Engine
	stocks repository.StockRepository
}

func NewStockController(engine ledger.Engine, stocks repository.StockRepository) *StockController {
	return &StockController{engine: engine, stocks: stocks}
}

type buyStockRequest struct {
	StockID       string          `json:"stock_id" binding:"required"`
	Quantity      int64           `json:"quantity" binding:"required"`
	PurchasePrice decimal.Decimal `json:"purchase_price" binding:"required"`
	TotalCost     decimal.Decimal `json:"total_cost" binding:"required"`
}

func (c *StockController) Buy(ctx *gin.Context) {
	var req buyStockRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request format", Message: err.Error()})
		return
	}

	result, err := c.engine.BuyStock(ctx.Request.Context(), &ledger.BuyStockRequest{
		UserID:        middleware.CallerID(ctx),
		StockID:       req.StockID,
		Quantity:      req.Quantity,
		PurchasePrice: req.PurchasePrice,
		TotalCost:     req.TotalCost,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, result)
}

type sellStockRequest struct {
	PurchaseID string          `json:"purchase_id" binding:"required"`
	Quantity   int64           `json:"quantity" binding:"required"`
	SalePrice  decimal.Decimal `json:"sale_price" binding:"required"`
	TotalValue decimal.Decimal `json:"total_value" binding:"required"`
}

func (c *StockController) Sell(ctx *gin.Context) {
	var req sellStockRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request format", Message: err.Error()})
		return
	}

	purchaseID, err := primitive.ObjectIDFromHex(req.PurchaseID)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid purchase id", Message: err.Error()})
		return
	}

	// Sales only against the caller's own position.
	purchase, err := c.stocks.GetByID(ctx.Request.Context(), purchaseID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	if purchase.UserID != middleware.CallerID(ctx) {
		ctx.JSON(http.StatusNotFound, ErrorResponse{Error: "Not found", Message: "stock purchase not found"})
		return
	}

	result, err := c.engine.SellStock(ctx.Request.Context(), &ledger.SellStockRequest{
		PurchaseID: purchaseID,
		Quantity:   req.Quantity,
		SalePrice:  req.SalePrice,
		TotalValue: req.TotalValue,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, result)
}

func (c *StockController) Portfolio(ctx *gin.Context) {
	purchases, err := c.stocks.GetActiveByUserID(ctx.Request.Context(), middleware.CallerID(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"purchases": purchases, "count": len(purchases)})
}
