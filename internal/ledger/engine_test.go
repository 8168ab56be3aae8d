package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/logsmarket001/api-fidelity-trust/internal/apperrors"
	"github.com/logsmarket001/api-fidelity-trust/internal/models"
	"github.com/logsmarket001/api-fidelity-trust/internal/monitoring"
	"github.com/logsmarket001/api-fidelity-trust/internal/repository"
)

// Mocks

type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Create(ctx context.Context, account *models.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) GetByUserID(ctx context.Context, userID string) (*models.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) UpdateBalances(ctx context.Context, account *models.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) List(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Account), args.Error(1)
}

func (m *MockAccountRepository) CreateIndexes(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, transaction *models.Transaction) error {
	args := m.Called(ctx, transaction)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByIdempotencyKey(ctx context.Context, idempotencyKey string) (*models.Transaction, error) {
	args := m.Called(ctx, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) Update(ctx context.Context, transaction *models.Transaction) error {
	args := m.Called(ctx, transaction)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetAll(ctx context.Context, limit, offset int) ([]*models.Transaction, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetAllByUserID(ctx context.Context, userID string) ([]*models.Transaction, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) CreateIndexes(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockStockRepository struct {
	mock.Mock
}

func (m *MockStockRepository) Create(ctx context.Context, purchase *models.StockPurchase) error {
	args := m.Called(ctx, purchase)
	return args.Error(0)
}

func (m *MockStockRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.StockPurchase, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StockPurchase), args.Error(1)
}

func (m *MockStockRepository) GetActiveByUserID(ctx context.Context, userID string) ([]*models.StockPurchase, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.StockPurchase), args.Error(1)
}

func (m *MockStockRepository) UpdateQuantity(ctx context.Context, id primitive.ObjectID, quantity int64) error {
	args := m.Called(ctx, id, quantity)
	return args.Error(0)
}

func (m *MockStockRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStockRepository) CreateIndexes(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockAccountLocker struct {
	mock.Mock
}

func (m *MockAccountLocker) LockAccount(ctx context.Context, userID string, ttl time.Duration) (*repository.DistributedLock, error) {
	args := m.Called(ctx, userID, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.DistributedLock), args.Error(1)
}

func (m *MockAccountLocker) ReleaseLock(ctx context.Context, lock *repository.DistributedLock) error {
	args := m.Called(ctx, lock)
	return args.Error(0)
}

func (m *MockAccountLocker) IsAccountLocked(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

type MockIdempotencyRepository struct {
	mock.Mock
}

func (m *MockIdempotencyRepository) Set(ctx context.Context, key string, response interface{}, ttl time.Duration) error {
	args := m.Called(ctx, key, response, ttl)
	return args.Error(0)
}

func (m *MockIdempotencyRepository) Get(ctx context.Context, key string, out interface{}) (bool, error) {
	args := m.Called(ctx, key, out)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyRepository) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) TransactionCreated(tx *models.Transaction) {
	m.Called(tx)
}

func (m *MockNotifier) TransactionUpdated(tx *models.Transaction) {
	m.Called(tx)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishTransactionEvent(ctx context.Context, event string, tx *models.Transaction) error {
	args := m.Called(ctx, event, tx)
	return args.Error(0)
}

// passthroughRunner runs the closure without a mongo session.
type passthroughRunner struct{}

func (passthroughRunner) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type engineFixture struct {
	accounts     *MockAccountRepository
	transactions *MockTransactionRepository
	stocks       *MockStockRepository
	locks        *MockAccountLocker
	idempotency  *MockIdempotencyRepository
	notifier     *MockNotifier
	publisher    *MockPublisher
	engine       Engine
}

func newEngineFixture() *engineFixture {
	f := &engineFixture{
		accounts:     &MockAccountRepository{},
		transactions: &MockTransactionRepository{},
		stocks:       &MockStockRepository{},
		locks:        &MockAccountLocker{},
		idempotency:  &MockIdempotencyRepository{},
		notifier:     &MockNotifier{},
		publisher:    &MockPublisher{},
	}
	f.engine = NewEngine(f.accounts, f.transactions, f.stocks, f.locks, f.idempotency, passthroughRunner{}, f.notifier, f.publisher, monitoring.NoopMetrics{}, EngineOptions{})
	return f
}

func (f *engineFixture) expectLock(userID string) {
	lock := &repository.DistributedLock{Key: "account:" + userID}
	f.locks.On("LockAccount", mock.Anything, userID, mock.AnythingOfType("time.Duration")).Return(lock, nil)
	f.locks.On("ReleaseLock", mock.Anything, lock).Return(nil)
}

func (f *engineFixture) expectPublish() {
	f.publisher.On("PublishTransactionEvent", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("*models.Transaction")).Return(nil)
}

func testAccount(userID string, available, current string) *models.Account {
	account := models.NewAccount(userID, "Test", "User", userID+"@example.com")
	account.AvailableBalance = d(available)
	account.CurrentBalance = d(current)
	account.Balance = d(current)
	return account
}

// Tests

func TestFundWallet(t *testing.T) {
	f := newEngineFixture()
	account := testAccount("u1", "100", "100")

	f.expectLock("u1")
	f.expectPublish()
	f.accounts.On("GetByUserID", mock.Anything, "u1").Return(account, nil)
	f.transactions.On("Create", mock.Anything, mock.AnythingOfType("*models.Transaction")).Return(nil)
	f.accounts.On("UpdateBalances", mock.Anything, account).Return(nil)
	f.notifier.On("TransactionCreated", mock.AnythingOfType("*models.Transaction")).Return()

	result, err := f.engine.FundWallet(context.Background(), &FundWalletRequest{
		UserID: "u1",
		Amount: d("50"),
	})

	assert.NoError(t, err)
	assert.Equal(t, models.TypeFundWallet, result.Transaction.Type)
	assert.Equal(t, models.ActionCredit, result.Transaction.Action)
	assert.Equal(t, models.StatusPending, result.Transaction.Status)
	// Pending credit: only the current balance moves.
	assert.True(t, result.Account.AvailableBalance.Equal(d("100")))
	assert.True(t, result.Account.CurrentBalance.Equal(d("150")))
	f.accounts.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestFundWalletRejectsNonPositiveAmount(t *testing.T) {
	f := newEngineFixture()

	_, err := f.engine.FundWallet(context.Background(), &FundWalletRequest{UserID: "u1", Amount: d("0")})

	assert.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	f.locks.AssertNotCalled(t, "LockAccount", mock.Anything, mock.Anything, mock.Anything)
}

func TestFundWalletUsesConfiguredTTLs(t *testing.T) {
	f := newEngineFixture()
	f.engine = NewEngine(f.accounts, f.transactions, f.stocks, f.locks, f.idempotency, passthroughRunner{}, f.notifier, f.publisher, monitoring.NoopMetrics{}, EngineOptions{
		LockTTL:        5 * time.Second,
		IdempotencyTTL: time.Hour,
	})
	account := testAccount("u1", "100", "100")
	lock := &repository.DistributedLock{Key: "account:u1"}

	f.idempotency.On("Get", mock.Anything, "key-2", mock.Anything).Return(false, nil)
	f.locks.On("LockAccount", mock.Anything, "u1", 5*time.Second).Return(lock, nil)
	f.locks.On("ReleaseLock", mock.Anything, lock).Return(nil)
	f.accounts.On("GetByUserID", mock.Anything, "u1").Return(account, nil)
	f.transactions.On("Create", mock.Anything, mock.AnythingOfType("*models.Transaction")).Return(nil)
	f.accounts.On("UpdateBalances", mock.Anything, account).Return(nil)
	f.idempotency.On("Set", mock.Anything, "key-2", mock.Anything, time.Hour).Return(nil)
	f.notifier.On("TransactionCreated", mock.AnythingOfType("*models.Transaction")).Return()
	f.expectPublish()

	_, err := f.engine.FundWallet(context.Background(), &FundWalletRequest{
		UserID:         "u1",
		Amount:         d("50"),
		IdempotencyKey: "key-2",
	})

	assert.NoError(t, err)
	f.locks.AssertExpectations(t)
	f.idempotency.AssertExpectations(t)
}

func TestFundWalletIdempotentReplay(t *testing.T) {
	f := newEngineFixture()

	cached := &TransactionResult{
		Transaction: &models.Transaction{UserID: "u1", Type: models.TypeFundWallet, Amount: d("50")},
	}
	f.idempotency.On("Get", mock.Anything, "key-1", mock.Anything).Run(func(args mock.Arguments) {
		out := args.Get(2).(*TransactionResult)
		*out = *cached
	}).Return(true, nil)

	result, err := f.engine.FundWallet(context.Background(), &FundWalletRequest{
		UserID:         "u1",
		Amount:         d("50"),
		IdempotencyKey: "key-1",
	})

	assert.NoError(t, err)
	assert.True(t, result.WasIdempotent)
	f.transactions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.locks.AssertNotCalled(t, "LockAccount", mock.Anything, mock.Anything, mock.Anything)
}

func TestWithdraw(t *testing.T) {
	f := newEngineFixture()
	account := testAccount("u1", "100", "100")

	f.expectLock("u1")
	f.expectPublish()
	f.accounts.On("GetByUserID", mock.Anything, "u1").Return(account, nil)
	f.transactions.On("Create", mock.Anything, mock.AnythingOfType("*models.Transaction")).Return(nil)
	f.accounts.On("UpdateBalances", mock.Anything, account).Return(nil)
	f.notifier.On("TransactionCreated", mock.AnythingOfType("*models.Transaction")).Return()

	result, err := f.engine.Withdraw(context.Background(), &WithdrawRequest{
		UserID: "u1",
		Amount: d("40"),
	})

	assert.NoError(t, err)
	assert.Equal(t, models.ActionDebit, result.Transaction.Action)
	assert.Equal(t, models.StatusPending, result.Transaction.Status)
	// Pending debit: reservation taken, amount still counted in current.
	assert.True(t, result.Account.AvailableBalance.Equal(d("60")))
	assert.True(t, result.Account.CurrentBalance.Equal(d("140")))
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	f := newEngineFixture()
	account := testAccount("u1", "30", "30")

	f.expectLock("u1")
	f.accounts.On("GetByUserID", mock.Anything, "u1").Return(account, nil)

	_, err := f.engine.Withdraw(context.Background(), &WithdrawRequest{
		UserID: "u1",
		Amount: d("40"),
	})

	assert.Error(t, err)
	assert.Equal(t, apperrors.KindInsufficientFunds, apperrors.KindOf(err))
	f.transactions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.accounts.AssertNotCalled(t, "UpdateBalances", mock.Anything, mock.Anything)
}

func TestSendMoneyToMember(t *testing.T) {
	f := newEngineFixture()
	sender := testAccount("alice", "100", "100")
	recipient := testAccount("bob", "20", "20")

	f.expectLock("alice")
	f.expectLock("bob")
	f.expectPublish()
	f.accounts.On("GetByUserID", mock.Anything, "alice").Return(sender, nil)
	f.accounts.On("GetByUserID", mock.Anything, "bob").Return(recipient, nil)
	f.transactions.On("Create", mock.Anything, mock.AnythingOfType("*models.Transaction")).Return(nil)
	f.accounts.On("UpdateBalances", mock.Anything, sender).Return(nil)
	f.accounts.On("UpdateBalances", mock.Anything, recipient).Return(nil)
	f.notifier.On("TransactionCreated", mock.AnythingOfType("*models.Transaction")).Return()

	result, err := f.engine.SendMoney(context.Background(), &SendMoneyRequest{
		SenderID:    "alice",
		RecipientID: "bob",
		Amount:      d("25"),
		Subtype:     models.SubtypeMember,
	})

	assert.NoError(t, err)
	assert.Equal(t, models.TypeSendMoney, result.SenderTransaction.Type)
	assert.Equal(t, models.ActionDebit, result.SenderTransaction.Action)
	assert.NotNil(t, result.RecipientTransaction)
	assert.Equal(t, models.TypeFundWallet, result.RecipientTransaction.Type)
	assert.Equal(t, models.ActionCredit, result.RecipientTransaction.Action)
	assert.Equal(t, models.StatusPending, result.RecipientTransaction.Status)
	assert.Equal(t, "bob", result.RecipientTransaction.UserID)
	assert.Equal(t, "alice", result.RecipientTransaction.Data["sender_id"])

	// Sender reserved; recipient sees inbound pending funds in current only.
	assert.True(t, sender.AvailableBalance.Equal(d("75")))
	assert.True(t, sender.CurrentBalance.Equal(d("125")))
	assert.True(t, recipient.AvailableBalance.Equal(d("20")))
	assert.True(t, recipient.CurrentBalance.Equal(d("45")))
	f.transactions.AssertNumberOfCalls(t, "Create", 2)
}

func TestSendMoneyToSelfRejected(t *testing.T) {
	f := newEngineFixture()

	_, err := f.engine.SendMoney(context.Background(), &SendMoneyRequest{
		SenderID:    "alice",
		RecipientID: "alice",
		Amount:      d("25"),
		Subtype:     models.SubtypeMember,
	})

	assert.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestSendMoneyExternalHasNoRecipientLeg(t *testing.T) {
	f := newEngineFixture()
	sender := testAccount("alice", "100", "100")

	f.expectLock("alice")
	f.expectPublish()
	f.accounts.On("GetByUserID", mock.Anything, "alice").Return(sender, nil)
	f.transactions.On("Create", mock.Anything, mock.AnythingOfType("*models.Transaction")).Return(nil)
	f.accounts.On("UpdateBalances", mock.Anything, sender).Return(nil)
	f.notifier.On("TransactionCreated", mock.AnythingOfType("*models.Transaction")).Return()

	result, err := f.engine.SendMoney(context.Background(), &SendMoneyRequest{
		SenderID: "alice",
		Amount:   d("25"),
		Subtype:  "external",
	})

	assert.NoError(t, err)
	assert.Nil(t, result.RecipientTransaction)
	f.transactions.AssertNumberOfCalls(t, "Create", 1)
}

func TestCreateTransactionValidatesEnums(t *testing.T) {
	f := newEngineFixture()

	tests := []struct {
		name string
		req  *AdminTransactionRequest
	}{
		{"bad type", &AdminTransactionRequest{UserID: "u1", Type: "bonus", Action: models.ActionCredit, Status: models.StatusPending, Amount: d("10")}},
		{"bad action", &AdminTransactionRequest{UserID: "u1", Type: models.TypeCredit, Action: "refund", Status: models.StatusPending, Amount: d("10")}},
		{"bad status", &AdminTransactionRequest{UserID: "u1", Type: models.TypeCredit, Action: models.ActionCredit, Status: "done", Amount: d("10")}},
		{"zero amount", &AdminTransactionRequest{UserID: "u1", Type: models.TypeCredit, Action: models.ActionCredit, Status: models.StatusPending, Amount: d("0")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.CreateTransaction(context.Background(), tt.req)
			assert.Error(t, err)
			assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
		})
	}
}

func TestCreateTransactionFailedDebitSkipsSufficiencyCheck(t *testing.T) {
	f := newEngineFixture()
	account := testAccount("u1", "10", "10")

	f.expectLock("u1")
	f.expectPublish()
	f.accounts.On("GetByUserID", mock.Anything, "u1").Return(account, nil)
	f.transactions.On("Create", mock.Anything, mock.AnythingOfType("*models.Transaction")).Return(nil)
	f.notifier.On("TransactionCreated", mock.AnythingOfType("*models.Transaction")).Return()

	result, err := f.engine.CreateTransaction(context.Background(), &AdminTransactionRequest{
		UserID: "u1",
		Type:   models.TypeDebit,
		Action: models.ActionDebit,
		Status: models.StatusFailed,
		Amount: d("500"),
	})

	assert.NoError(t, err)
	// Failed transactions never touch balances.
	assert.True(t, result.Account.AvailableBalance.Equal(d("10")))
	assert.True(t, result.Account.CurrentBalance.Equal(d("10")))
	f.accounts.AssertNotCalled(t, "UpdateBalances", mock.Anything, mock.Anything)
}

// A settlement that raced another settlement sees the fresh status once it
// holds the account lock and must not release the credit a second time.
func TestUpdateTransactionSettlementAppliesOnce(t *testing.T) {
	f := newEngineFixture()
	account := testAccount("u1", "150", "150")
	txID := primitive.NewObjectID()

	stale := models.NewTransaction("u1", models.TypeFundWallet, "", models.ActionCredit, models.StatusPending, d("50"), nil)
	stale.ID = txID
	settled := models.NewTransaction("u1", models.TypeFundWallet, "", models.ActionCredit, models.StatusSuccess, d("50"), nil)
	settled.ID = txID

	f.expectLock("u1")
	f.expectPublish()
	// Pre-lock read observes pending; the read under the lock observes that a
	// concurrent call already settled it.
	f.transactions.On("GetByID", mock.Anything, txID).Return(stale, nil).Once()
	f.transactions.On("GetByID", mock.Anything, txID).Return(settled, nil).Once()
	f.accounts.On("GetByUserID", mock.Anything, "u1").Return(account, nil)
	f.transactions.On("Update", mock.Anything, settled).Return(nil)
	f.notifier.On("TransactionUpdated", settled).Return()

	newStatus := models.StatusSuccess
	result, err := f.engine.UpdateTransaction(context.Background(), &UpdateTransactionRequest{
		TransactionID: txID,
		Status:        &newStatus,
	})

	assert.NoError(t, err)
	assert.True(t, result.Account.AvailableBalance.Equal(d("150")))
	assert.True(t, result.Account.CurrentBalance.Equal(d("150")))
	f.accounts.AssertNotCalled(t, "UpdateBalances", mock.Anything, mock.Anything)
}

func TestUpdateTransactionSettlesPendingCredit(t *testing.T) {
	f := newEngineFixture()
	account := testAccount("u1", "100", "150")
	txID := primitive.NewObjectID()
	tx := models.NewTransaction("u1", models.TypeFundWallet, "", models.ActionCredit, models.StatusPending, d("50"), nil)
	tx.ID = txID

	f.expectLock("u1")
	f.expectPublish()
	f.transactions.On("GetByID", mock.Anything, txID).Return(tx, nil)
	f.accounts.On("GetByUserID", mock.Anything, "u1").Return(account, nil)
	f.transactions.On("Update", mock.Anything, tx).Return(nil)
	f.accounts.On("UpdateBalances", mock.Anything, account).Return(nil)
	f.notifier.On("TransactionUpdated", tx).Return()

	newStatus := models.StatusSuccess
	result, err := f.engine.UpdateTransaction(context.Background(), &UpdateTransactionRequest{
		TransactionID: txID,
		Status:        &newStatus,
	})

	assert.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, result.Transaction.Status)
	assert.True(t, result.Account.AvailableBalance.Equal(d("150")))
	assert.True(t, result.Account.CurrentBalance.Equal(d("150")))
}

func TestUpdateTransactionAmountAmendment(t *testing.T) {
	f := newEngineFixture()
	// 100 available after a 50 pending debit reservation against 150.
	account := testAccount("u1", "100", "200")
	txID := primitive.NewObjectID()
	tx := models.NewTransaction("u1", models.TypeWithdraw, "", models.ActionDebit, models.StatusPending, d("50"), nil)
	tx.ID = txID

	f.expectLock("u1")
	f.expectPublish()
	f.transactions.On("GetByID", mock.Anything, txID).Return(tx, nil)
	f.accounts.On("GetByUserID", mock.Anything, "u1").Return(account, nil)
	f.transactions.On("Update", mock.Anything, tx).Return(nil)
	f.accounts.On("UpdateBalances", mock.Anything, account).Return(nil)
	f.notifier.On("TransactionUpdated", tx).Return()

	newAmount := d("30")
	result, err := f.engine.UpdateTransaction(context.Background(), &UpdateTransactionRequest{
		TransactionID: txID,
		Amount:        &newAmount,
	})

	assert.NoError(t, err)
	// 20 of the reservation comes back; current drops by the same 20.
	assert.True(t, result.Account.AvailableBalance.Equal(d("120")))
	assert.True(t, result.Account.CurrentBalance.Equal(d("180")))
}

func TestUpdateTransactionNoopSkipsBalanceWrite(t *testing.T) {
	f := newEngineFixture()
	account := testAccount("u1", "100", "100")
	txID := primitive.NewObjectID()
	tx := models.NewTransaction("u1", models.TypeWithdraw, "", models.ActionDebit, models.StatusPending, d("50"), nil)
	tx.ID = txID

	f.expectLock("u1")
	f.expectPublish()
	f.transactions.On("GetByID", mock.Anything, txID).Return(tx, nil)
	f.accounts.On("GetByUserID", mock.Anything, "u1").Return(account, nil)
	f.transactions.On("Update", mock.Anything, tx).Return(nil)
	f.notifier.On("TransactionUpdated", tx).Return()

	newSubtype := "external"
	_, err := f.engine.UpdateTransaction(context.Background(), &UpdateTransactionRequest{
		TransactionID: txID,
		Subtype:       &newSubtype,
	})

	assert.NoError(t, err)
	f.accounts.AssertNotCalled(t, "UpdateBalances", mock.Anything, mock.Anything)
}

func TestBuyStock(t *testing.T) {
	f := newEngineFixture()
	account := testAccount("u1", "1000", "1000")

	f.expectLock("u1")
	f.expectPublish()
	f.accounts.On("GetByUserID", mock.Anything, "u1").Return(account, nil)
	f.stocks.On("Create", mock.Anything, mock.AnythingOfType("*models.StockPurchase")).Return(nil)
	f.transactions.On("Create", mock.Anything, mock.AnythingOfType("*models.Transaction")).Return(nil)
	f.accounts.On("UpdateBalances", mock.Anything, account).Return(nil)
	f.notifier.On("TransactionCreated", mock.AnythingOfType("*models.Transaction")).Return()

	result, err := f.engine.BuyStock(context.Background(), &BuyStockRequest{
		UserID:        "u1",
		StockID:       "AAPL",
		Quantity:      4,
		PurchasePrice: d("50"),
		TotalCost:     d("200"),
	})

	assert.NoError(t, err)
	assert.Equal(t, models.PurchaseActive, result.Purchase.Status)
	assert.Equal(t, models.SubtypeStock, result.Transaction.Subtype)
	assert.Equal(t, models.StatusPending, result.Transaction.Status)
	// Cost reserved while the order is in flight.
	assert.True(t, result.Account.AvailableBalance.Equal(d("800")))
	assert.True(t, result.Account.CurrentBalance.Equal(d("1200")))
}

func TestBuyStockInsufficientFunds(t *testing.T) {
	f := newEngineFixture()
	account := testAccount("u1", "100", "100")

	f.expectLock("u1")
	f.accounts.On("GetByUserID", mock.Anything, "u1").Return(account, nil)

	_, err := f.engine.BuyStock(context.Background(), &BuyStockRequest{
		UserID:        "u1",
		StockID:       "AAPL",
		Quantity:      4,
		PurchasePrice: d("50"),
		TotalCost:     d("200"),
	})

	assert.Error(t, err)
	assert.Equal(t, apperrors.KindInsufficientFunds, apperrors.KindOf(err))
	f.stocks.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSellStockPartial(t *testing.T) {
	f := newEngineFixture()
	account := testAccount("u1", "100", "100")
	purchase := models.NewStockPurchase("u1", "AAPL", 10, d("50"), d("500"))
	purchase.ID = primitive.NewObjectID()

	f.expectLock("u1")
	f.expectPublish()
	f.stocks.On("GetByID", mock.Anything, purchase.ID).Return(purchase, nil)
	f.accounts.On("GetByUserID", mock.Anything, "u1").Return(account, nil)
	f.transactions.On("Create", mock.Anything, mock.AnythingOfType("*models.Transaction")).Return(nil)
	f.stocks.On("UpdateQuantity", mock.Anything, purchase.ID, int64(6)).Return(nil)
	f.accounts.On("UpdateBalances", mock.Anything, account).Return(nil)
	f.notifier.On("TransactionCreated", mock.AnythingOfType("*models.Transaction")).Return()

	result, err := f.engine.SellStock(context.Background(), &SellStockRequest{
		PurchaseID: purchase.ID,
		Quantity:   4,
		SalePrice:  d("60"),
		TotalValue: d("240"),
	})

	assert.NoError(t, err)
	assert.NotNil(t, result.Purchase)
	assert.Equal(t, int64(6), result.Purchase.Quantity)
	assert.Equal(t, models.SubtypeStockSale, result.Transaction.Subtype)
	assert.Equal(t, models.StatusSuccess, result.Transaction.Status)
	// Sale proceeds settle immediately.
	assert.True(t, result.Account.AvailableBalance.Equal(d("340")))
	assert.True(t, result.Account.CurrentBalance.Equal(d("340")))
	f.stocks.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestSellStockFullPositionRemoved(t *testing.T) {
	f := newEngineFixture()
	account := testAccount("u1", "100", "100")
	purchase := models.NewStockPurchase("u1", "AAPL", 4, d("50"), d("200"))
	purchase.ID = primitive.NewObjectID()

	f.expectLock("u1")
	f.expectPublish()
	f.stocks.On("GetByID", mock.Anything, purchase.ID).Return(purchase, nil)
	f.accounts.On("GetByUserID", mock.Anything, "u1").Return(account, nil)
	f.transactions.On("Create", mock.Anything, mock.AnythingOfType("*models.Transaction")).Return(nil)
	f.stocks.On("Delete", mock.Anything, purchase.ID).Return(nil)
	f.accounts.On("UpdateBalances", mock.Anything, account).Return(nil)
	f.notifier.On("TransactionCreated", mock.AnythingOfType("*models.Transaction")).Return()

	result, err := f.engine.SellStock(context.Background(), &SellStockRequest{
		PurchaseID: purchase.ID,
		Quantity:   4,
		SalePrice:  d("60"),
		TotalValue: d("240"),
	})

	assert.NoError(t, err)
	assert.Nil(t, result.Purchase)
	f.stocks.AssertNotCalled(t, "UpdateQuantity", mock.Anything, mock.Anything, mock.Anything)
}

// A repository failure between the ledger write and the position removal must
// abort the whole sale: the error surfaces, nothing is notified, no result.
func TestSellStockFailureMidSequence(t *testing.T) {
	f := newEngineFixture()
	account := testAccount("u1", "100", "100")
	purchase := models.NewStockPurchase("u1", "AAPL", 4, d("50"), d("200"))
	purchase.ID = primitive.NewObjectID()

	f.expectLock("u1")
	f.stocks.On("GetByID", mock.Anything, purchase.ID).Return(purchase, nil)
	f.accounts.On("GetByUserID", mock.Anything, "u1").Return(account, nil)
	f.transactions.On("Create", mock.Anything, mock.AnythingOfType("*models.Transaction")).Return(nil)
	f.stocks.On("Delete", mock.Anything, purchase.ID).
		Return(apperrors.Dependency("failed to delete stock purchase", errors.New("connection reset")))

	result, err := f.engine.SellStock(context.Background(), &SellStockRequest{
		PurchaseID: purchase.ID,
		Quantity:   4,
		SalePrice:  d("60"),
		TotalValue: d("240"),
	})

	assert.Error(t, err)
	assert.Equal(t, apperrors.KindDependency, apperrors.KindOf(err))
	assert.Nil(t, result)
	f.notifier.AssertNotCalled(t, "TransactionCreated", mock.Anything)
	f.publisher.AssertNotCalled(t, "PublishTransactionEvent", mock.Anything, mock.Anything, mock.Anything)
}

func TestSellStockOversell(t *testing.T) {
	f := newEngineFixture()
	purchase := models.NewStockPurchase("u1", "AAPL", 4, d("50"), d("200"))
	purchase.ID = primitive.NewObjectID()

	f.stocks.On("GetByID", mock.Anything, purchase.ID).Return(purchase, nil)

	_, err := f.engine.SellStock(context.Background(), &SellStockRequest{
		PurchaseID: purchase.ID,
		Quantity:   5,
		SalePrice:  d("60"),
		TotalValue: d("300"),
	})

	assert.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	f.locks.AssertNotCalled(t, "LockAccount", mock.Anything, mock.Anything, mock.Anything)
}

func TestBalanceWriteConflictSurfaced(t *testing.T) {
	f := newEngineFixture()
	account := testAccount("u1", "100", "100")

	f.expectLock("u1")
	f.accounts.On("GetByUserID", mock.Anything, "u1").Return(account, nil)
	f.transactions.On("Create", mock.Anything, mock.AnythingOfType("*models.Transaction")).Return(nil)
	f.accounts.On("UpdateBalances", mock.Anything, account).
		Return(apperrors.Conflict("account u1 was modified concurrently"))

	_, err := f.engine.FundWallet(context.Background(), &FundWalletRequest{
		UserID: "u1",
		Amount: d("50"),
	})

	assert.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
	f.notifier.AssertNotCalled(t, "TransactionCreated", mock.Anything)
}

func TestLockFailureSurfacesConflict(t *testing.T) {
	f := newEngineFixture()

	f.locks.On("LockAccount", mock.Anything, "u1", mock.AnythingOfType("time.Duration")).
		Return(nil, apperrors.Conflict("account u1 is locked by another operation"))

	_, err := f.engine.Withdraw(context.Background(), &WithdrawRequest{UserID: "u1", Amount: d("10")})

	assert.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
	f.accounts.AssertNotCalled(t, "GetByUserID", mock.Anything, mock.Anything)
}
