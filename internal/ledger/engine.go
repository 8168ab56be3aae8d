package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/logsmarket001/api-fidelity-trust/internal/apperrors"
	"github.com/logsmarket001/api-fidelity-trust/internal/models"
	"github.com/logsmarket001/api-fidelity-trust/internal/repository"
)

// Engine executes every balance-changing operation. All writes to an account
// go through here so the effect table stays the single source of arithmetic.
type Engine interface {
	FundWallet(ctx context.Context, req *FundWalletRequest) (*TransactionResult, error)
	Withdraw(ctx context.Context, req *WithdrawRequest) (*TransactionResult, error)
	SendMoney(ctx context.Context, req *SendMoneyRequest) (*SendMoneyResult, error)
	CreateTransaction(ctx context.Context, req *AdminTransactionRequest) (*TransactionResult, error)
	UpdateTransaction(ctx context.Context, req *UpdateTransactionRequest) (*TransactionResult, error)
	BuyStock(ctx context.Context, req *BuyStockRequest) (*StockPurchaseResult, error)
	SellStock(ctx context.Context, req *SellStockRequest) (*StockSaleResult, error)
}

// TxnRunner runs fn atomically. The mongo implementation wraps fn in a
// session transaction; tests substitute a pass-through.
type TxnRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// AccountLocker serializes operations per account
type AccountLocker interface {
	LockAccount(ctx context.Context, userID string, ttl time.Duration) (*repository.DistributedLock, error)
	ReleaseLock(ctx context.Context, lock *repository.DistributedLock) error
}

// Notifier pushes realtime alerts after a successful operation
type Notifier interface {
	TransactionCreated(tx *models.Transaction)
	TransactionUpdated(tx *models.Transaction)
}

// EventPublisher emits domain events for downstream consumers
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, event string, tx *models.Transaction) error
}

// Metrics is the subset of the monitoring service the engine reports to
type Metrics interface {
	RecordTransaction(transactionType, status string, amount float64, duration time.Duration)
	IncrementTransactionErrors(transactionType, errorType string)
}

type engine struct {
	accounts     repository.AccountRepository
	transactions repository.TransactionRepository
	stocks       repository.StockRepository
	locks        AccountLocker
	idempotency  repository.IdempotencyRepository
	runner       TxnRunner
	notifier     Notifier
	publisher    EventPublisher
	metrics      Metrics

	lockTTL        time.Duration
	idempotencyTTL time.Duration
}

func NewEngine(
	accounts repository.AccountRepository,
	transactions repository.TransactionRepository,
	stocks repository.StockRepository,
	locks AccountLocker,
	idempotency repository.IdempotencyRepository,
	runner TxnRunner,
	notifier Notifier,
	publisher EventPublisher,
	metrics Metrics,
	opts EngineOptions,
) Engine {
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = defaultIdempotencyTTL
	}
	return &engine{
		accounts:       accounts,
		transactions:   transactions,
		stocks:         stocks,
		locks:          locks,
		idempotency:    idempotency,
		runner:         runner,
		notifier:       notifier,
		publisher:      publisher,
		metrics:        metrics,
		lockTTL:        opts.LockTTL,
		idempotencyTTL: opts.IdempotencyTTL,
	}
}

type FundWalletRequest struct {
	UserID         string                 `json:"user_id"`
	Amount         decimal.Decimal        `json:"amount"`
	Subtype        string                 `json:"subtype"`
	Data           map[string]interface{} `json:"data"`
	IdempotencyKey string                 `json:"idempotency_key"`
}

type WithdrawRequest struct {
	UserID         string                 `json:"user_id"`
	Amount         decimal.Decimal        `json:"amount"`
	Subtype        string                 `json:"subtype"`
	Data           map[string]interface{} `json:"data"`
	IdempotencyKey string                 `json:"idempotency_key"`
}

type SendMoneyRequest struct {
	SenderID       string                 `json:"sender_id"`
	RecipientID    string                 `json:"recipient_id"`
	Amount         decimal.Decimal        `json:"amount"`
	Subtype        string                 `json:"subtype"`
	Data           map[string]interface{} `json:"data"`
	IdempotencyKey string                 `json:"idempotency_key"`
}

type AdminTransactionRequest struct {
	UserID  string                 `json:"user_id"`
	Type    string                 `json:"type"`
	Subtype string                 `json:"subtype"`
	Action  string                 `json:"action"`
	Status  string                 `json:"status"`
	Amount  decimal.Decimal        `json:"amount"`
	Data    map[string]interface{} `json:"data"`
}

// UpdateTransactionRequest amends a transaction. Nil fields are unchanged.
type UpdateTransactionRequest struct {
	TransactionID primitive.ObjectID `json:"transaction_id"`
	Status        *string            `json:"status"`
	Type          *string            `json:"type"`
	Action        *string            `json:"action"`
	Subtype       *string            `json:"subtype"`
	Amount        *decimal.Decimal   `json:"amount"`
}

type BuyStockRequest struct {
	UserID        string          `json:"user_id"`
	StockID       string          `json:"stock_id"`
	Quantity      int64           `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	TotalCost     decimal.Decimal `json:"total_cost"`
}

type SellStockRequest struct {
	PurchaseID primitive.ObjectID `json:"purchase_id"`
	Quantity   int64              `json:"quantity"`
	SalePrice  decimal.Decimal    `json:"sale_price"`
	TotalValue decimal.Decimal    `json:"total_value"`
}

type TransactionResult struct {
	Transaction   *models.Transaction `json:"transaction"`
	Account       *models.Account     `json:"account"`
	WasIdempotent bool                `json:"was_idempotent"`
}

type SendMoneyResult struct {
	SenderTransaction    *models.Transaction `json:"sender_transaction"`
	RecipientTransaction *models.Transaction `json:"recipient_transaction,omitempty"`
	Sender               *models.Account     `json:"sender"`
	WasIdempotent        bool                `json:"was_idempotent"`
}

type StockPurchaseResult struct {
	Purchase    *models.StockPurchase `json:"purchase"`
	Transaction *models.Transaction   `json:"transaction"`
	Account     *models.Account       `json:"account"`
}

// StockSaleResult reports a completed sale. Purchase is nil when the whole
// position was sold and the document removed.
type StockSaleResult struct {
	Purchase    *models.StockPurchase `json:"purchase,omitempty"`
	Transaction *models.Transaction   `json:"transaction"`
	Account     *models.Account       `json:"account"`
}

const (
	defaultLockTTL        = 30 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
)

// EngineOptions tunes lock and idempotency lifetimes. Zero values fall back
// to the defaults.
type EngineOptions struct {
	LockTTL        time.Duration
	IdempotencyTTL time.Duration
}

func (e *engine) FundWallet(ctx context.Context, req *FundWalletRequest) (*TransactionResult, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, apperrors.Validation("amount must be positive")
	}

	if req.IdempotencyKey != "" {
		var cached TransactionResult
		if found, err := e.idempotency.Get(ctx, req.IdempotencyKey, &cached); err == nil && found {
			cached.WasIdempotent = true
			return &cached, nil
		}
	}

	start := time.Now()

	lock, err := e.locks.LockAccount(ctx, req.UserID, e.lockTTL)
	if err != nil {
		return nil, err
	}
	defer e.locks.ReleaseLock(ctx, lock)

	account, err := e.accounts.GetByUserID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	tx := models.NewTransaction(req.UserID, models.TypeFundWallet, req.Subtype, models.ActionCredit, models.StatusPending, req.Amount, req.Data)
	tx.IdempotencyKey = req.IdempotencyKey

	if err := e.applyCreation(ctx, account, tx); err != nil {
		e.metrics.IncrementTransactionErrors(models.TypeFundWallet, apperrors.KindOf(err).String())
		return nil, err
	}

	e.afterWrite(ctx, tx, "transaction.created", start)
	e.notifier.TransactionCreated(tx)

	result := &TransactionResult{Transaction: tx, Account: account}
	if req.IdempotencyKey != "" {
		e.idempotency.Set(ctx, req.IdempotencyKey, result, e.idempotencyTTL)
	}

	return result, nil
}

func (e *engine) Withdraw(ctx context.Context, req *WithdrawRequest) (*TransactionResult, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, apperrors.Validation("amount must be positive")
	}

	if req.IdempotencyKey != "" {
		var cached TransactionResult
		if found, err := e.idempotency.Get(ctx, req.IdempotencyKey, &cached); err == nil && found {
			cached.WasIdempotent = true
			return &cached, nil
		}
	}

	start := time.Now()

	lock, err := e.locks.LockAccount(ctx, req.UserID, e.lockTTL)
	if err != nil {
		return nil, err
	}
	defer e.locks.ReleaseLock(ctx, lock)

	account, err := e.accounts.GetByUserID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	if !account.HasSufficientBalance(req.Amount) {
		e.metrics.IncrementTransactionErrors(models.TypeWithdraw, "insufficient_funds")
		return nil, apperrors.InsufficientFunds("insufficient available balance: required %s, available %s",
			req.Amount.String(), account.AvailableBalance.String())
	}

	tx := models.NewTransaction(req.UserID, models.TypeWithdraw, req.Subtype, models.ActionDebit, models.StatusPending, req.Amount, req.Data)
	tx.IdempotencyKey = req.IdempotencyKey

	if err := e.applyCreation(ctx, account, tx); err != nil {
		e.metrics.IncrementTransactionErrors(models.TypeWithdraw, apperrors.KindOf(err).String())
		return nil, err
	}

	e.afterWrite(ctx, tx, "transaction.created", start)
	e.notifier.TransactionCreated(tx)

	result := &TransactionResult{Transaction: tx, Account: account}
	if req.IdempotencyKey != "" {
		e.idempotency.Set(ctx, req.IdempotencyKey, result, e.idempotencyTTL)
	}

	return result, nil
}

func (e *engine) SendMoney(ctx context.Context, req *SendMoneyRequest) (*SendMoneyResult, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, apperrors.Validation("amount must be positive")
	}

	isMember := req.Subtype == models.SubtypeMember
	if isMember {
		if req.RecipientID == "" {
			return nil, apperrors.Validation("recipient is required for member transfers")
		}
		if req.RecipientID == req.SenderID {
			return nil, apperrors.Validation("cannot send money to yourself")
		}
	}

	if req.IdempotencyKey != "" {
		var cached SendMoneyResult
		if found, err := e.idempotency.Get(ctx, req.IdempotencyKey, &cached); err == nil && found {
			cached.WasIdempotent = true
			return &cached, nil
		}
	}

	start := time.Now()

	// Lock both parties in a stable order so two opposite transfers
	// cannot deadlock.
	lockIDs := []string{req.SenderID}
	if isMember {
		if req.RecipientID < req.SenderID {
			lockIDs = []string{req.RecipientID, req.SenderID}
		} else {
			lockIDs = append(lockIDs, req.RecipientID)
		}
	}
	var locks []*repository.DistributedLock
	for _, id := range lockIDs {
		lock, err := e.locks.LockAccount(ctx, id, e.lockTTL)
		if err != nil {
			for _, held := range locks {
				e.locks.ReleaseLock(ctx, held)
			}
			return nil, err
		}
		locks = append(locks, lock)
	}
	defer func() {
		for _, held := range locks {
			e.locks.ReleaseLock(ctx, held)
		}
	}()

	sender, err := e.accounts.GetByUserID(ctx, req.SenderID)
	if err != nil {
		return nil, err
	}

	var recipient *models.Account
	if isMember {
		recipient, err = e.accounts.GetByUserID(ctx, req.RecipientID)
		if err != nil {
			return nil, err
		}
	}

	if !sender.HasSufficientBalance(req.Amount) {
		e.metrics.IncrementTransactionErrors(models.TypeSendMoney, "insufficient_funds")
		return nil, apperrors.InsufficientFunds("insufficient available balance: required %s, available %s",
			req.Amount.String(), sender.AvailableBalance.String())
	}

	senderTx := models.NewTransaction(req.SenderID, models.TypeSendMoney, req.Subtype, models.ActionDebit, models.StatusPending, req.Amount, req.Data)
	senderTx.IdempotencyKey = req.IdempotencyKey

	var recipientTx *models.Transaction
	if isMember {
		recipientData := map[string]interface{}{
			"sender_id":   sender.UserID,
			"sender_name": sender.FullName(),
		}
		recipientTx = models.NewTransaction(req.RecipientID, models.TypeFundWallet, req.Subtype, models.ActionCredit, models.StatusPending, req.Amount, recipientData)
	}

	// Both sides commit or neither does.
	err = e.runner.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.transactions.Create(txCtx, senderTx); err != nil {
			return err
		}
		senderDelta := CreationEffect(senderTx.Action, senderTx.Status, senderTx.Amount)
		sender.ApplyDelta(senderDelta.Available, senderDelta.Current)
		if err := e.accounts.UpdateBalances(txCtx, sender); err != nil {
			return err
		}

		if recipientTx != nil {
			if err := e.transactions.Create(txCtx, recipientTx); err != nil {
				return err
			}
			recipientDelta := CreationEffect(recipientTx.Action, recipientTx.Status, recipientTx.Amount)
			recipient.ApplyDelta(recipientDelta.Available, recipientDelta.Current)
			if err := e.accounts.UpdateBalances(txCtx, recipient); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		e.metrics.IncrementTransactionErrors(models.TypeSendMoney, apperrors.KindOf(err).String())
		return nil, err
	}

	e.afterWrite(ctx, senderTx, "transaction.created", start)
	e.notifier.TransactionCreated(senderTx)
	if recipientTx != nil {
		e.notifier.TransactionCreated(recipientTx)
	}

	result := &SendMoneyResult{
		SenderTransaction:    senderTx,
		RecipientTransaction: recipientTx,
		Sender:               sender,
	}
	if req.IdempotencyKey != "" {
		e.idempotency.Set(ctx, req.IdempotencyKey, result, e.idempotencyTTL)
	}

	return result, nil
}

func (e *engine) CreateTransaction(ctx context.Context, req *AdminTransactionRequest) (*TransactionResult, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, apperrors.Validation("amount must be positive")
	}
	if !models.IsValidType(req.Type) {
		return nil, apperrors.Validation("invalid transaction type: %s", req.Type)
	}
	if !models.IsValidAction(req.Action) {
		return nil, apperrors.Validation("invalid transaction action: %s", req.Action)
	}
	if !models.IsValidStatus(req.Status) {
		return nil, apperrors.Validation("invalid transaction status: %s", req.Status)
	}

	start := time.Now()

	lock, err := e.locks.LockAccount(ctx, req.UserID, e.lockTTL)
	if err != nil {
		return nil, err
	}
	defer e.locks.ReleaseLock(ctx, lock)

	account, err := e.accounts.GetByUserID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	if req.Action == models.ActionDebit && req.Status != models.StatusFailed && !account.HasSufficientBalance(req.Amount) {
		return nil, apperrors.InsufficientFunds("insufficient available balance: required %s, available %s",
			req.Amount.String(), account.AvailableBalance.String())
	}

	tx := models.NewTransaction(req.UserID, req.Type, req.Subtype, req.Action, req.Status, req.Amount, req.Data)

	if err := e.applyCreation(ctx, account, tx); err != nil {
		e.metrics.IncrementTransactionErrors(req.Type, apperrors.KindOf(err).String())
		return nil, err
	}

	e.afterWrite(ctx, tx, "transaction.created", start)
	e.notifier.TransactionCreated(tx)

	return &TransactionResult{Transaction: tx, Account: account}, nil
}

func (e *engine) UpdateTransaction(ctx context.Context, req *UpdateTransactionRequest) (*TransactionResult, error) {
	if req.Status != nil && !models.IsValidStatus(*req.Status) {
		return nil, apperrors.Validation("invalid transaction status: %s", *req.Status)
	}
	if req.Type != nil && !models.IsValidType(*req.Type) {
		return nil, apperrors.Validation("invalid transaction type: %s", *req.Type)
	}
	if req.Action != nil && !models.IsValidAction(*req.Action) {
		return nil, apperrors.Validation("invalid transaction action: %s", *req.Action)
	}
	if req.Amount != nil && req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, apperrors.Validation("amount must be positive")
	}

	start := time.Now()

	tx, err := e.transactions.GetByID(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}

	lock, err := e.locks.LockAccount(ctx, tx.UserID, e.lockTTL)
	if err != nil {
		return nil, err
	}
	defer e.locks.ReleaseLock(ctx, lock)

	// The first read only located the owning account; a concurrent update may
	// have settled the transaction before the lock was acquired. The status
	// the delta is computed from must be the one observed under the lock.
	tx, err = e.transactions.GetByID(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}

	account, err := e.accounts.GetByUserID(ctx, tx.UserID)
	if err != nil {
		return nil, err
	}

	oldAction, oldStatus, oldAmount := tx.Action, tx.Status, tx.Amount

	if req.Type != nil {
		tx.Type = *req.Type
	}
	if req.Subtype != nil {
		tx.Subtype = *req.Subtype
	}
	if req.Action != nil {
		tx.Action = *req.Action
	}
	if req.Status != nil {
		tx.Status = *req.Status
	}
	if req.Amount != nil {
		tx.Amount = *req.Amount
	}

	delta := ChangeEffect(oldAction, oldStatus, oldAmount, tx.Action, tx.Status, tx.Amount)

	err = e.runner.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.transactions.Update(txCtx, tx); err != nil {
			return err
		}
		if !delta.IsZero() {
			account.ApplyDelta(delta.Available, delta.Current)
			if err := e.accounts.UpdateBalances(txCtx, account); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		e.metrics.IncrementTransactionErrors(tx.Type, apperrors.KindOf(err).String())
		return nil, err
	}

	e.afterWrite(ctx, tx, "transaction.updated", start)
	e.notifier.TransactionUpdated(tx)

	return &TransactionResult{Transaction: tx, Account: account}, nil
}

func (e *engine) BuyStock(ctx context.Context, req *BuyStockRequest) (*StockPurchaseResult, error) {
	if req.Quantity <= 0 {
		return nil, apperrors.Validation("quantity must be positive")
	}
	if req.TotalCost.LessThanOrEqual(decimal.Zero) {
		return nil, apperrors.Validation("total cost must be positive")
	}

	start := time.Now()

	lock, err := e.locks.LockAccount(ctx, req.UserID, e.lockTTL)
	if err != nil {
		return nil, err
	}
	defer e.locks.ReleaseLock(ctx, lock)

	account, err := e.accounts.GetByUserID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	if !account.HasSufficientBalance(req.TotalCost) {
		e.metrics.IncrementTransactionErrors(models.TypeStocks, "insufficient_funds")
		return nil, apperrors.InsufficientFunds("insufficient available balance: required %s, available %s",
			req.TotalCost.String(), account.AvailableBalance.String())
	}

	purchase := models.NewStockPurchase(req.UserID, req.StockID, req.Quantity, req.PurchasePrice, req.TotalCost)

	txData := map[string]interface{}{
		"stock_id":       req.StockID,
		"quantity":       req.Quantity,
		"purchase_price": req.PurchasePrice.String(),
	}
	tx := models.NewTransaction(req.UserID, models.TypeStocks, models.SubtypeStock, models.ActionDebit, models.StatusPending, req.TotalCost, txData)

	err = e.runner.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.stocks.Create(txCtx, purchase); err != nil {
			return err
		}
		if err := e.transactions.Create(txCtx, tx); err != nil {
			return err
		}
		delta := CreationEffect(tx.Action, tx.Status, tx.Amount)
		account.ApplyDelta(delta.Available, delta.Current)
		return e.accounts.UpdateBalances(txCtx, account)
	})
	if err != nil {
		e.metrics.IncrementTransactionErrors(models.TypeStocks, apperrors.KindOf(err).String())
		return nil, err
	}

	e.afterWrite(ctx, tx, "transaction.created", start)
	e.notifier.TransactionCreated(tx)

	return &StockPurchaseResult{Purchase: purchase, Transaction: tx, Account: account}, nil
}

func (e *engine) SellStock(ctx context.Context, req *SellStockRequest) (*StockSaleResult, error) {
	if req.Quantity <= 0 {
		return nil, apperrors.Validation("quantity must be positive")
	}
	if req.TotalValue.LessThanOrEqual(decimal.Zero) {
		return nil, apperrors.Validation("total value must be positive")
	}

	start := time.Now()

	purchase, err := e.stocks.GetByID(ctx, req.PurchaseID)
	if err != nil {
		return nil, err
	}
	if !purchase.IsActive() {
		return nil, apperrors.Validation("stock position is not active")
	}
	if req.Quantity > purchase.Quantity {
		return nil, apperrors.Validation("cannot sell %d shares, only %d held", req.Quantity, purchase.Quantity)
	}

	lock, err := e.locks.LockAccount(ctx, purchase.UserID, e.lockTTL)
	if err != nil {
		return nil, err
	}
	defer e.locks.ReleaseLock(ctx, lock)

	account, err := e.accounts.GetByUserID(ctx, purchase.UserID)
	if err != nil {
		return nil, err
	}

	txData := map[string]interface{}{
		"stock_id":   purchase.StockID,
		"quantity":   req.Quantity,
		"sale_price": req.SalePrice.String(),
	}
	tx := models.NewTransaction(purchase.UserID, models.TypeStocks, models.SubtypeStockSale, models.ActionCredit, models.StatusSuccess, req.TotalValue, txData)

	soldOut := req.Quantity == purchase.Quantity

	err = e.runner.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.transactions.Create(txCtx, tx); err != nil {
			return err
		}
		if soldOut {
			if err := e.stocks.Delete(txCtx, purchase.ID); err != nil {
				return err
			}
		} else {
			if err := e.stocks.UpdateQuantity(txCtx, purchase.ID, purchase.Quantity-req.Quantity); err != nil {
				return err
			}
		}
		delta := CreationEffect(tx.Action, tx.Status, tx.Amount)
		account.ApplyDelta(delta.Available, delta.Current)
		return e.accounts.UpdateBalances(txCtx, account)
	})
	if err != nil {
		e.metrics.IncrementTransactionErrors(models.TypeStocks, apperrors.KindOf(err).String())
		return nil, err
	}

	e.afterWrite(ctx, tx, "transaction.created", start)
	e.notifier.TransactionCreated(tx)

	result := &StockSaleResult{Transaction: tx, Account: account}
	if !soldOut {
		purchase.Quantity -= req.Quantity
		result.Purchase = purchase
	}

	return result, nil
}

// applyCreation records a transaction and its balance effect atomically.
func (e *engine) applyCreation(ctx context.Context, account *models.Account, tx *models.Transaction) error {
	return e.runner.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.transactions.Create(txCtx, tx); err != nil {
			return err
		}
		delta := CreationEffect(tx.Action, tx.Status, tx.Amount)
		if !delta.IsZero() {
			account.ApplyDelta(delta.Available, delta.Current)
			if err := e.accounts.UpdateBalances(txCtx, account); err != nil {
				return err
			}
		}
		return nil
	})
}

// afterWrite handles metrics and the outbound event stream. Publish failures
// are logged, never surfaced.
func (e *engine) afterWrite(ctx context.Context, tx *models.Transaction, event string, start time.Time) {
	amount, _ := tx.Amount.Float64()
	e.metrics.RecordTransaction(tx.Type, tx.Status, amount, time.Since(start))

	if err := e.publisher.PublishTransactionEvent(ctx, event, tx); err != nil {
		logrus.WithFields(logrus.Fields{
			"event":          event,
			"transaction_id": tx.ID.Hex(),
			"error":          err,
		}).Warn("failed to publish transaction event")
	}
}
