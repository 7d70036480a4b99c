package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an executed order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderKind distinguishes market orders from limit orders.
type OrderKind string

const (
	OrderMarket OrderKind = "MARKET"
	OrderLimit  OrderKind = "LIMIT"
)

const TransactionCompleted = "COMPLETED"

// StartingBalance is credited to every account at registration.
var StartingBalance = decimal.NewFromInt(100000)

type User struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Account holds a user's cash. InitialBalance never changes after
// registration; CashBalance is mutated only by order execution.
type Account struct {
	UserID         string          `db:"user_id" json:"user_id"`
	CashBalance    decimal.Decimal `db:"cash_balance" json:"cash_balance"`
	InitialBalance decimal.Decimal `db:"initial_balance" json:"initial_balance"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// Transaction is the immutable record of one executed order.
type Transaction struct {
	ID          string              `db:"id" json:"id"`
	UserID      string              `db:"user_id" json:"user_id"`
	Side        Side                `db:"side" json:"side"`
	Symbol      string              `db:"symbol" json:"symbol"`
	CompanyName string              `db:"company_name" json:"company_name"`
	Quantity    int64               `db:"quantity" json:"quantity"`
	Price       decimal.Decimal     `db:"price" json:"price"`
	TotalAmount decimal.Decimal     `db:"total_amount" json:"total_amount"`
	OrderKind   OrderKind           `db:"order_kind" json:"order_kind"`
	LimitPrice  decimal.NullDecimal `db:"limit_price" json:"limit_price,omitempty"`
	Status      string              `db:"status" json:"status"`
	ExecutedAt  time.Time           `db:"executed_at" json:"executed_at"`
}

// SnapshotPosition is one denormalized holding inside a daily snapshot.
type SnapshotPosition struct {
	Symbol      string          `json:"symbol"`
	CompanyName string          `json:"company_name"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Value       decimal.Decimal `json:"value"`
}

// PortfolioSnapshot is the once-per-day valuation record used for
// historical charting. Append-only.
type PortfolioSnapshot struct {
	UserID        string             `db:"user_id" json:"user_id"`
	Date          time.Time          `db:"snapshot_date" json:"date"`
	HoldingsValue decimal.Decimal    `db:"holdings_value" json:"holdings_value"`
	CashBalance   decimal.Decimal    `db:"cash_balance" json:"cash_balance"`
	TotalValue    decimal.Decimal    `db:"total_value" json:"total_value"`
	Positions     []SnapshotPosition `db:"-" json:"positions"`
}

// TradeResult is everything a committed order changed.
type TradeResult struct {
	Transaction *Transaction `json:"transaction"`
	Account     *Account     `json:"account"`
	// Holding is nil when the sell closed the position.
	Holding *Holding `json:"holding,omitempty"`
}

type WatchlistItem struct {
	Symbol      string    `db:"symbol" json:"symbol"`
	CompanyName string    `db:"company_name" json:"company_name"`
	AddedAt     time.Time `db:"added_at" json:"added_at"`
}
