package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshyadav028/stock-simulator-manus-ai/internal/models"
)

func newMockRepo(t *testing.T) (*Repo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	return New(sqlx.NewDb(db, "sqlmock"), logger), mock
}

func accountRow(cash string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"user_id", "cash_balance", "initial_balance", "updated_at"}).
		AddRow("u1", cash, "100000", time.Now())
}

func TestApplyTrade_BuyCreatesHolding(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM accounts WHERE user_id = \$1 FOR UPDATE`).
		WithArgs("u1").WillReturnRows(accountRow("1000"))
	mock.ExpectQuery(`SELECT (.+) FROM holdings WHERE user_id = \$1 AND symbol = \$2 FOR UPDATE`).
		WithArgs("u1", "AAPL").
		WillReturnRows(sqlmock.NewRows([]string{"company_name", "quantity", "avg_cost"}))
	mock.ExpectExec(`INSERT INTO holdings`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE accounts SET cash_balance`).
		WithArgs("800", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO transactions`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "executed_at"}).AddRow("tx-1", time.Now()))
	mock.ExpectCommit()

	res, err := r.ApplyTrade(context.Background(), TradeCommand{
		UserID:    "u1",
		Side:      models.SideBuy,
		Symbol:    "AAPL",
		Quantity:  2,
		Price:     decimal.NewFromInt(100),
		OrderKind: models.OrderMarket,
	})
	require.NoError(t, err)
	assert.True(t, res.Account.CashBalance.Equal(decimal.NewFromInt(800)))
	require.NotNil(t, res.Holding)
	assert.EqualValues(t, 2, res.Holding.Quantity)
	assert.True(t, res.Holding.AvgCost.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "tx-1", res.Transaction.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyTrade_InsufficientFundsRollsBack(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM accounts WHERE user_id = \$1 FOR UPDATE`).
		WithArgs("u1").WillReturnRows(accountRow("100"))
	mock.ExpectQuery(`SELECT (.+) FROM holdings`).
		WillReturnRows(sqlmock.NewRows([]string{"company_name", "quantity", "avg_cost"}))
	mock.ExpectRollback()

	_, err := r.ApplyTrade(context.Background(), TradeCommand{
		UserID:    "u1",
		Side:      models.SideBuy,
		Symbol:    "AAPL",
		Quantity:  2,
		Price:     decimal.NewFromInt(100),
		OrderKind: models.OrderMarket,
	})
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyTrade_SellWithoutHolding(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM accounts WHERE user_id = \$1 FOR UPDATE`).
		WithArgs("u1").WillReturnRows(accountRow("1000"))
	mock.ExpectQuery(`SELECT (.+) FROM holdings`).
		WillReturnRows(sqlmock.NewRows([]string{"company_name", "quantity", "avg_cost"}))
	mock.ExpectRollback()

	_, err := r.ApplyTrade(context.Background(), TradeCommand{
		UserID:    "u1",
		Side:      models.SideSell,
		Symbol:    "AAPL",
		Quantity:  1,
		Price:     decimal.NewFromInt(100),
		OrderKind: models.OrderMarket,
	})
	assert.ErrorIs(t, err, models.ErrNoSuchHolding)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyTrade_SellAllDeletesHolding(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM accounts WHERE user_id = \$1 FOR UPDATE`).
		WithArgs("u1").WillReturnRows(accountRow("1000"))
	mock.ExpectQuery(`SELECT (.+) FROM holdings`).
		WillReturnRows(sqlmock.NewRows([]string{"company_name", "quantity", "avg_cost"}).
			AddRow("Apple Inc.", 5, "150"))
	mock.ExpectExec(`DELETE FROM holdings`).
		WithArgs("u1", "AAPL").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE accounts SET cash_balance`).
		WithArgs("2000", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO transactions`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "executed_at"}).AddRow("tx-2", time.Now()))
	mock.ExpectCommit()

	res, err := r.ApplyTrade(context.Background(), TradeCommand{
		UserID:    "u1",
		Side:      models.SideSell,
		Symbol:    "AAPL",
		Quantity:  5,
		Price:     decimal.NewFromInt(200),
		OrderKind: models.OrderMarket,
	})
	require.NoError(t, err)
	assert.Nil(t, res.Holding, "closed position must not be returned")
	assert.True(t, res.Account.CashBalance.Equal(decimal.NewFromInt(2000)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyTrade_DeadlockMapsToConcurrentModification(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM accounts WHERE user_id = \$1 FOR UPDATE`).
		WithArgs("u1").WillReturnRows(accountRow("1000"))
	mock.ExpectQuery(`SELECT (.+) FROM holdings`).
		WillReturnRows(sqlmock.NewRows([]string{"company_name", "quantity", "avg_cost"}))
	mock.ExpectExec(`INSERT INTO holdings`).
		WillReturnError(&pq.Error{Code: "40P01"})
	mock.ExpectRollback()

	_, err := r.ApplyTrade(context.Background(), TradeCommand{
		UserID:    "u1",
		Side:      models.SideBuy,
		Symbol:    "AAPL",
		Quantity:  1,
		Price:     decimal.NewFromInt(100),
		OrderKind: models.OrderMarket,
	})
	assert.ErrorIs(t, err, models.ErrConcurrentModification)
	assert.NoError(t, mock.ExpectationsWereMet())
}
