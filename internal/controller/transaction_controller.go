package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/logsmarket001/api-fidelity-trust/internal/ledger"
	"github.com/logsmarket001/api-fidelity-trust/internal/middleware"
	"github.com/logsmarket001/api-fidelity-trust/internal/models"
	"github.com/logsmarket001/api-fidelity-trust/internal/repository"
)

type TransactionController struct {
	engine       ledger.Engine
	accounts     repository.AccountRepository
	transactions repository.TransactionRepository
}

func NewTransactionController(engine ledger.Engine, accounts repository.AccountRepository, transactions repository.TransactionRepository) *TransactionController {
	return &TransactionController{
		engine:       engine,
		accounts:     accounts,
		transactions: transactions,
	}
}

type fundRequest struct {
	Amount  decimal.Decimal        `json:"amount" binding:"required"`
	Subtype string                 `json:"subtype"`
	Data    map[string]interface{} `json:"data"`
}

func (c *TransactionController) FundWallet(ctx *gin.Context) {
	var req fundRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request format", Message: err.Error()})
		return
	}

	result, err := c.engine.FundWallet(ctx.Request.Context(), &ledger.FundWalletRequest{
		UserID:         middleware.CallerID(ctx),
		Amount:         req.Amount,
		Subtype:        req.Subtype,
		Data:           req.Data,
		IdempotencyKey: idempotencyKey(ctx),
	})
	if err != nil {
		respondError(ctx, err)
		return
	}

	status := http.StatusCreated
	if result.WasIdempotent {
		status = http.StatusOK
	}
	ctx.JSON(status, result)
}

func (c *TransactionController) Withdraw(ctx *gin.Context) {
	var req fundRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request format", Message: err.Error()})
		return
	}

	result, err := c.engine.Withdraw(ctx.Request.Context(), &ledger.WithdrawRequest{
		UserID:         middleware.CallerID(ctx),
		Amount:         req.Amount,
		Subtype:        req.Subtype,
		Data:           req.Data,
		IdempotencyKey: idempotencyKey(ctx),
	})
	if err != nil {
		respondError(ctx, err)
		return
	}

	status := http.StatusCreated
	if result.WasIdempotent {
		status = http.StatusOK
	}
	ctx.JSON(status, result)
}

type sendMoneyRequest struct {
	RecipientID string                 `json:"recipient_id" binding:"required"`
	Amount      decimal.Decimal        `json:"amount" binding:"required"`
	Subtype     string                 `json:"subtype"`
	Data        map[string]interface{} `json:"data"`
}

func (c *TransactionController) SendMoney(ctx *gin.Context) {
	var req sendMoneyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request format", Message: err.Error()})
		return
	}

	result, err := c.engine.SendMoney(ctx.Request.Context(), &ledger.SendMoneyRequest{
		SenderID:       middleware.CallerID(ctx),
		RecipientID:    req.RecipientID,
		Amount:         req.Amount,
		Subtype:        req.Subtype,
		Data:           req.Data,
		IdempotencyKey: idempotencyKey(ctx),
	})
	if err != nil {
		respondError(ctx, err)
		return
	}

	status := http.StatusCreated
	if result.WasIdempotent {
		status = http.StatusOK
	}
	ctx.JSON(status, result)
}

func (c *TransactionController) ListMine(ctx *gin.Context) {
	limit, offset := parsePagination(ctx)

	transactions, err := c.transactions.GetByUserID(ctx.Request.Context(), middleware.CallerID(ctx), limit, offset)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"transactions": transactions, "count": len(transactions)})
}

func (c *TransactionController) GetTransaction(ctx *gin.Context) {
	id, err := primitive.ObjectIDFromHex(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid transaction id", Message: err.Error()})
		return
	}

	tx, err := c.transactions.GetByID(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}

	// Users only see their own transactions.
	if !middleware.IsAdmin(ctx) && tx.UserID != middleware.CallerID(ctx) {
		ctx.JSON(http.StatusNotFound, ErrorResponse{Error: "Not found", Message: "transaction not found"})
		return
	}

	ctx.JSON(http.StatusOK, tx)
}

func (c *TransactionController) GetBalance(ctx *gin.Context) {
	account, err := c.accounts.GetByUserID(ctx.Request.Context(), middleware.CallerID(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"user_id":           account.UserID,
		"available_balance": account.AvailableBalance,
		"current_balance":   account.CurrentBalance,
		"balance":           account.Balance,
	})
}

// Admin handlers.

type createAccountRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

func (c *TransactionController) CreateAccount(ctx *gin.Context) {
	var req createAccountRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request format", Message: err.Error()})
		return
	}

	account := models.NewAccount(req.UserID, req.FirstName, req.LastName, req.Email)
	if err := account.Validate(); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Message: err.Error()})
		return
	}
	if err := c.accounts.Create(ctx.Request.Context(), account); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, account)
}

func (c *TransactionController) CreateTransaction(ctx *gin.Context) {
	var req ledger.AdminTransactionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request format", Message: err.Error()})
		return
	}

	result, err := c.engine.CreateTransaction(ctx.Request.Context(), &req)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, result)
}

type updateTransactionRequest struct {
	Status  *string          `json:"status"`
	Type    *string          `json:"type"`
	Action  *string          `json:"action"`
	Subtype *string          `json:"subtype"`
	Amount  *decimal.Decimal `json:"amount"`
}

func (c *TransactionController) UpdateTransaction(ctx *gin.Context) {
	id, err := primitive.ObjectIDFromHex(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid transaction id", Message: err.Error()})
		return
	}

	var req updateTransactionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request format", Message: err.Error()})
		return
	}

	result, err := c.engine.UpdateTransaction(ctx.Request.Context(), &ledger.UpdateTransactionRequest{
		TransactionID: id,
		Status:        req.Status,
		Type:          req.Type,
		Action:        req.Action,
		Subtype:       req.Subtype,
		Amount:        req.Amount,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, result)
}

func (c *TransactionController) ListAll(ctx *gin.Context) {
	limit, offset := parsePagination(ctx)

	transactions, err := c.transactions.GetAll(ctx.Request.Context(), limit, offset)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"transactions": transactions, "count": len(transactions)})
}

func (c *TransactionController) ListForUser(ctx *gin.Context) {
	limit, offset := parsePagination(ctx)

	transactions, err := c.transactions.GetByUserID(ctx.Request.Context(), ctx.Param("userId"), limit, offset)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"transactions": transactions, "count": len(transactions)})
}

func (c *TransactionController) GetAccount(ctx *gin.Context) {
	account, err := c.accounts.GetByUserID(ctx.Request.Context(), ctx.Param("userId"))
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, account)
}
