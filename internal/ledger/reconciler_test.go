package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/logsmarket001/api-fidelity-trust/internal/models"
)

func TestCheckAccountNoDrift(t *testing.T) {
	accounts := &MockAccountRepository{}
	transactions := &MockTransactionRepository{}
	r := NewReconciler(accounts, transactions, &MockAccountLocker{}, d("0.01"), 100)

	// Settled 100 credit plus pending 40 debit: available 60, current 140.
	account := testAccount("u1", "60", "140")
	history := []*models.Transaction{
		models.NewTransaction("u1", models.TypeFundWallet, "", models.ActionCredit, models.StatusSuccess, d("100"), nil),
		models.NewTransaction("u1", models.TypeWithdraw, "", models.ActionDebit, models.StatusPending, d("40"), nil),
	}
	transactions.On("GetAllByUserID", mock.Anything, "u1").Return(history, nil)

	drift, err := r.CheckAccount(context.Background(), account)

	assert.NoError(t, err)
	assert.Nil(t, drift)
}

func TestCheckAccountDetectsDrift(t *testing.T) {
	accounts := &MockAccountRepository{}
	transactions := &MockTransactionRepository{}
	r := NewReconciler(accounts, transactions, &MockAccountLocker{}, d("0.01"), 100)

	account := testAccount("u1", "75", "100")
	history := []*models.Transaction{
		models.NewTransaction("u1", models.TypeFundWallet, "", models.ActionCredit, models.StatusSuccess, d("100"), nil),
	}
	transactions.On("GetAllByUserID", mock.Anything, "u1").Return(history, nil)

	drift, err := r.CheckAccount(context.Background(), account)

	assert.NoError(t, err)
	require.NotNil(t, drift)
	assert.Equal(t, "u1", drift.UserID)
	assert.True(t, drift.StoredAvailable.Equal(d("75")))
	assert.True(t, drift.ExpectedAvailable.Equal(d("100")))
}

func TestCheckAccountIgnoresFailedTransactions(t *testing.T) {
	accounts := &MockAccountRepository{}
	transactions := &MockTransactionRepository{}
	r := NewReconciler(accounts, transactions, &MockAccountLocker{}, d("0.01"), 100)

	account := testAccount("u1", "0", "0")
	history := []*models.Transaction{
		models.NewTransaction("u1", models.TypeWithdraw, "", models.ActionDebit, models.StatusFailed, d("40"), nil),
		models.NewTransaction("u1", models.TypeFundWallet, "", models.ActionCredit, models.StatusFailed, d("100"), nil),
	}
	transactions.On("GetAllByUserID", mock.Anything, "u1").Return(history, nil)

	drift, err := r.CheckAccount(context.Background(), account)

	assert.NoError(t, err)
	assert.Nil(t, drift)
}

func TestRunPaginatesAndCounts(t *testing.T) {
	accounts := &MockAccountRepository{}
	transactions := &MockTransactionRepository{}
	locks := &MockAccountLocker{}
	r := NewReconciler(accounts, transactions, locks, d("0.01"), 2)

	clean := testAccount("u1", "0", "0")
	drifted := testAccount("u2", "50", "50")

	locks.On("IsAccountLocked", mock.Anything, mock.AnythingOfType("string")).Return(false, nil)
	accounts.On("List", mock.Anything, 2, 0).Return([]*models.Account{clean, drifted}, nil)
	accounts.On("List", mock.Anything, 2, 2).Return([]*models.Account{}, nil)
	transactions.On("GetAllByUserID", mock.Anything, "u1").Return([]*models.Transaction{}, nil)
	transactions.On("GetAllByUserID", mock.Anything, "u2").Return([]*models.Transaction{}, nil)

	report, err := r.Run(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 2, report.AccountsChecked)
	assert.Equal(t, 1, report.DriftsFound)
	assert.Equal(t, 0, report.Errors)
	accounts.AssertExpectations(t)
}

func TestRunSkipsLockedAccounts(t *testing.T) {
	accounts := &MockAccountRepository{}
	transactions := &MockTransactionRepository{}
	locks := &MockAccountLocker{}
	r := NewReconciler(accounts, transactions, locks, d("0.01"), 10)

	// u1 has an operation in flight; its balances are a mid-write snapshot.
	inFlight := testAccount("u1", "100", "100")
	settledAccount := testAccount("u2", "0", "0")

	locks.On("IsAccountLocked", mock.Anything, "u1").Return(true, nil)
	locks.On("IsAccountLocked", mock.Anything, "u2").Return(false, nil)
	accounts.On("List", mock.Anything, 10, 0).Return([]*models.Account{inFlight, settledAccount}, nil)
	accounts.On("List", mock.Anything, 10, 2).Return([]*models.Account{}, nil)
	transactions.On("GetAllByUserID", mock.Anything, "u2").Return([]*models.Transaction{}, nil)

	report, err := r.Run(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 1, report.AccountsChecked)
	assert.Equal(t, 1, report.AccountsSkipped)
	assert.Equal(t, 0, report.DriftsFound)
	transactions.AssertNotCalled(t, "GetAllByUserID", mock.Anything, "u1")
}
