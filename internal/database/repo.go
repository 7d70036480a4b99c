package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/harshyadav028/stock-simulator-manus-ai/internal/models"
)

type Repo struct {
	db  *sqlx.DB
	log *logrus.Logger
}

func New(db *sqlx.DB, log *logrus.Logger) *Repo {
	return &Repo{db: db, log: log}
}

// CreateUser registers a user and opens their account with the fixed
// starting balance, in one transaction.
func (r *Repo) CreateUser(ctx context.Context, name, email string) (*models.User, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	u := &models.User{ID: uuid.NewString(), Name: name, Email: email}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO users (id, name, email) VALUES ($1, $2, $3) RETURNING created_at`,
		u.ID, u.Name, u.Email).Scan(&u.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, models.ErrEmailTaken
		}
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO accounts (user_id, cash_balance, initial_balance) VALUES ($1, $2::numeric, $2::numeric)`,
		u.ID, models.StartingBalance.String())
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *Repo) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `SELECT id, name, email, created_at FROM users WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repo) GetAccount(ctx context.Context, userID string) (*models.Account, error) {
	var a models.Account
	err := r.db.GetContext(ctx, &a,
		`SELECT user_id, cash_balance, initial_balance, updated_at FROM accounts WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Repo) GetHoldings(ctx context.Context, userID string) ([]models.Holding, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT user_id, symbol, company_name, quantity, avg_cost, last_price, price_updated_at
		 FROM holdings WHERE user_id = $1 ORDER BY symbol`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.Holding{}
	for rows.Next() {
		var h models.Holding
		if err := rows.StructScan(&h); err != nil {
			r.log.Warnf("scan holding failed: %v", err)
			continue
		}
		res = append(res, h)
	}
	return res, rows.Err()
}

// RefreshHoldingPrices writes freshly fetched prices back onto holdings.
// Best effort; the valuation response never depends on it.
func (r *Repo) RefreshHoldingPrices(ctx context.Context, userID string, prices map[string]decimal.Decimal) error {
	now := time.Now().UTC()
	for sym, price := range prices {
		_, err := r.db.ExecContext(ctx,
			`UPDATE holdings SET last_price = $1::numeric, price_updated_at = $2 WHERE user_id = $3 AND symbol = $4`,
			price.String(), now, userID, sym)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) ListTransactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT id, user_id, side, symbol, company_name, quantity, price, total_amount,
		        order_kind, limit_price, status, executed_at
		 FROM transactions WHERE user_id = $1 ORDER BY executed_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := rows.StructScan(&t); err != nil {
			r.log.Warnf("scan transaction failed: %v", err)
			continue
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r *Repo) GetTransaction(ctx context.Context, userID, id string) (*models.Transaction, error) {
	var t models.Transaction
	err := r.db.GetContext(ctx, &t,
		`SELECT id, user_id, side, symbol, company_name, quantity, price, total_amount,
		        order_kind, limit_price, status, executed_at
		 FROM transactions WHERE id = $1 AND user_id = $2`, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// InsertSnapshot stores one valuation row per user per UTC calendar day.
// Returns false when that day's snapshot already exists.
func (r *Repo) InsertSnapshot(ctx context.Context, s *models.PortfolioSnapshot) (bool, error) {
	positions, err := json.Marshal(s.Positions)
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO portfolio_snapshots (user_id, snapshot_date, holdings_value, cash_balance, total_value, positions)
		 VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6)
		 ON CONFLICT (user_id, snapshot_date) DO NOTHING`,
		s.UserID, s.Date, s.HoldingsValue.String(), s.CashBalance.String(), s.TotalValue.String(), positions)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repo) ListSnapshots(ctx context.Context, userID string, since time.Time) ([]models.PortfolioSnapshot, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT user_id, snapshot_date, holdings_value, cash_balance, total_value, positions
		 FROM portfolio_snapshots
		 WHERE user_id = $1 AND snapshot_date >= $2 ORDER BY snapshot_date ASC`, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.PortfolioSnapshot{}
	for rows.Next() {
		var s models.PortfolioSnapshot
		var positions []byte
		if err := rows.Scan(&s.UserID, &s.Date, &s.HoldingsValue, &s.CashBalance, &s.TotalValue, &positions); err != nil {
			r.log.Warnf("scan snapshot failed: %v", err)
			continue
		}
		if err := json.Unmarshal(positions, &s.Positions); err != nil {
			r.log.Warnf("decode snapshot positions failed: %v", err)
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r *Repo) AddWatchlistItem(ctx context.Context, userID, symbol, companyName string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO watchlist_items (user_id, symbol, company_name) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, symbol) DO NOTHING`, userID, symbol, companyName)
	return err
}

func (r *Repo) RemoveWatchlistItem(ctx context.Context, userID, symbol string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM watchlist_items WHERE user_id = $1 AND symbol = $2`, userID, symbol)
	return err
}

func (r *Repo) ListWatchlist(ctx context.Context, userID string) ([]models.WatchlistItem, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT symbol, company_name, added_at FROM watchlist_items WHERE user_id = $1 ORDER BY added_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.WatchlistItem{}
	for rows.Next() {
		var w models.WatchlistItem
		if err := rows.StructScan(&w); err != nil {
			r.log.Warnf("scan watchlist item failed: %v", err)
			continue
		}
		res = append(res, w)
	}
	return res, rows.Err()
}
