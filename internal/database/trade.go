package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/harshyadav028/stock-simulator-manus-ai/internal/models"
)

// TradeCommand is a fully priced order ready to commit. Price has
// already been fetched and any limit condition already checked.
type TradeCommand struct {
	UserID      string
	Side        models.Side
	Symbol      string
	CompanyName string
	Quantity    int64
	Price       decimal.Decimal
	OrderKind   models.OrderKind
	LimitPrice  decimal.NullDecimal
}

// ApplyTrade commits the account debit/credit, the holding mutation and
// the transaction append as one database transaction. Validation runs
// against rows locked with FOR UPDATE, so a failed check can never
// leave partial state behind. Lock conflicts surface as
// models.ErrConcurrentModification for the caller to retry.
func (r *Repo) ApplyTrade(ctx context.Context, cmd TradeCommand) (*models.TradeResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	account := &models.Account{}
	err = tx.QueryRowContext(ctx,
		`SELECT user_id, cash_balance, initial_balance, updated_at FROM accounts WHERE user_id = $1 FOR UPDATE`,
		cmd.UserID).Scan(&account.UserID, &account.CashBalance, &account.InitialBalance, &account.UpdatedAt)
	if err != nil {
		return nil, mapTradeErr(err)
	}

	holding := &models.Holding{UserID: cmd.UserID, Symbol: cmd.Symbol, CompanyName: cmd.CompanyName}
	haveHolding := true
	err = tx.QueryRowContext(ctx,
		`SELECT company_name, quantity, avg_cost FROM holdings WHERE user_id = $1 AND symbol = $2 FOR UPDATE`,
		cmd.UserID, cmd.Symbol).Scan(&holding.CompanyName, &holding.Quantity, &holding.AvgCost)
	if errors.Is(err, sql.ErrNoRows) {
		haveHolding = false
	} else if err != nil {
		return nil, mapTradeErr(err)
	}
	if haveHolding && holding.CompanyName == "" {
		holding.CompanyName = cmd.CompanyName
	}

	total := cmd.Price.Mul(decimal.NewFromInt(cmd.Quantity))

	switch cmd.Side {
	case models.SideBuy:
		if account.CashBalance.LessThan(total) {
			return nil, models.ErrInsufficientFunds
		}
		account.CashBalance = account.CashBalance.Sub(total)
		holding.ApplyBuy(cmd.Quantity, cmd.Price)
		if err := upsertHolding(ctx, tx, holding); err != nil {
			return nil, mapTradeErr(err)
		}

	case models.SideSell:
		if !haveHolding {
			return nil, models.ErrNoSuchHolding
		}
		if err := holding.ApplySell(cmd.Quantity, cmd.Price); err != nil {
			return nil, err
		}
		account.CashBalance = account.CashBalance.Add(total)
		if holding.Quantity == 0 {
			_, err = tx.ExecContext(ctx,
				`DELETE FROM holdings WHERE user_id = $1 AND symbol = $2`, cmd.UserID, cmd.Symbol)
			holding = nil
		} else {
			err = upsertHolding(ctx, tx, holding)
		}
		if err != nil {
			return nil, mapTradeErr(err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE accounts SET cash_balance = $1::numeric, updated_at = now() WHERE user_id = $2`,
		account.CashBalance.String(), cmd.UserID)
	if err != nil {
		return nil, mapTradeErr(err)
	}

	trans := &models.Transaction{
		UserID:      cmd.UserID,
		Side:        cmd.Side,
		Symbol:      cmd.Symbol,
		CompanyName: cmd.CompanyName,
		Quantity:    cmd.Quantity,
		Price:       cmd.Price,
		TotalAmount: total,
		OrderKind:   cmd.OrderKind,
		LimitPrice:  cmd.LimitPrice,
		Status:      models.TransactionCompleted,
	}
	var limitPrice interface{}
	if trans.LimitPrice.Valid {
		limitPrice = trans.LimitPrice.Decimal.String()
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO transactions (user_id, side, symbol, company_name, quantity, price, total_amount, order_kind, limit_price, status)
		 VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8, $9::numeric, $10)
		 RETURNING id, executed_at`,
		trans.UserID, trans.Side, trans.Symbol, trans.CompanyName, trans.Quantity,
		trans.Price.String(), trans.TotalAmount.String(), trans.OrderKind, limitPrice, trans.Status,
	).Scan(&trans.ID, &trans.ExecutedAt)
	if err != nil {
		return nil, mapTradeErr(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, mapTradeErr(err)
	}
	return &models.TradeResult{Transaction: trans, Account: account, Holding: holding}, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func upsertHolding(ctx context.Context, tx execer, h *models.Holding) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO holdings (user_id, symbol, company_name, quantity, avg_cost, last_price, price_updated_at)
		 VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, now())
		 ON CONFLICT (user_id, symbol) DO UPDATE SET
		   company_name = EXCLUDED.company_name,
		   quantity = EXCLUDED.quantity,
		   avg_cost = EXCLUDED.avg_cost,
		   last_price = EXCLUDED.last_price,
		   price_updated_at = now()`,
		h.UserID, h.Symbol, h.CompanyName, h.Quantity, h.AvgCost.String(), h.LastPrice.String())
	return err
}

// mapTradeErr translates storage failures into domain errors. A missing
// account row means the user does not exist; serialization failures and
// deadlocks are retryable conflicts.
func mapTradeErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrUserNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01":
			return models.ErrConcurrentModification
		}
	}
	return err
}
