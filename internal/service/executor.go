package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/harshyadav028/stock-simulator-manus-ai/internal/database"
	"github.com/harshyadav028/stock-simulator-manus-ai/internal/models"
	"github.com/harshyadav028/stock-simulator-manus-ai/internal/quotes"
)

// maxConflictRetries bounds internal retries of a conflicting commit
// before ErrConcurrentModification reaches the caller.
const maxConflictRetries = 3

// TradeStore commits a priced order atomically.
type TradeStore interface {
	ApplyTrade(ctx context.Context, cmd database.TradeCommand) (*models.TradeResult, error)
}

// OrderRequest is a buy/sell instruction from an authenticated user.
type OrderRequest struct {
	UserID      string
	Side        models.Side
	Symbol      string
	CompanyName string
	Quantity    int64
	Kind        models.OrderKind
	LimitPrice  *decimal.Decimal
}

// Executor prices and commits orders. Execution for one user is
// serialized behind a per-user lock; a rejected order leaves no trace.
type Executor struct {
	store    TradeStore
	provider quotes.Provider
	locks    *userLocks
	log      *logrus.Logger
}

func NewExecutor(store TradeStore, provider quotes.Provider, log *logrus.Logger) *Executor {
	return &Executor{store: store, provider: provider, locks: newUserLocks(), log: log}
}

// Execute runs one order end to end: validate, price, check any limit
// condition, then commit balance + holding + transaction atomically.
// Every failure path leaves all state untouched.
func (e *Executor) Execute(ctx context.Context, req OrderRequest) (*models.TradeResult, error) {
	if err := e.validate(&req); err != nil {
		return nil, err
	}

	priced, err := e.provider.GetQuotes(ctx, []string{req.Symbol})
	if err != nil {
		return nil, err
	}
	quote, ok := priced[req.Symbol]
	if !ok {
		return nil, models.ErrSymbolNotFound
	}
	if req.CompanyName == "" {
		req.CompanyName = quote.CompanyName
	}

	cmd := database.TradeCommand{
		UserID:      req.UserID,
		Side:        req.Side,
		Symbol:      req.Symbol,
		CompanyName: req.CompanyName,
		Quantity:    req.Quantity,
		Price:       quote.Price,
		OrderKind:   req.Kind,
	}
	if req.Kind == models.OrderLimit {
		// BUY executes only at or under the limit, SELL only at or over.
		// A rejection is an outcome, not a transaction: nothing is recorded.
		if req.Side == models.SideBuy && quote.Price.GreaterThan(*req.LimitPrice) {
			return nil, models.ErrLimitNotMet
		}
		if req.Side == models.SideSell && quote.Price.LessThan(*req.LimitPrice) {
			return nil, models.ErrLimitNotMet
		}
		cmd.LimitPrice = decimal.NullDecimal{Decimal: *req.LimitPrice, Valid: true}
	}

	unlock := e.locks.Lock(req.UserID)
	defer unlock()

	var res *models.TradeResult
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		res, err = e.store.ApplyTrade(ctx, cmd)
		if errors.Is(err, models.ErrConcurrentModification) {
			e.log.Warnf("trade conflict for user %s, attempt %d", req.UserID, attempt+1)
			continue
		}
		return res, err
	}
	return nil, models.ErrConcurrentModification
}

func (e *Executor) validate(req *OrderRequest) error {
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Symbol == "" {
		return &models.ValidationError{Message: "symbol is required"}
	}
	if req.Side != models.SideBuy && req.Side != models.SideSell {
		return &models.ValidationError{Message: "side must be BUY or SELL"}
	}
	if req.Quantity <= 0 {
		return &models.ValidationError{Message: "quantity must be a positive integer"}
	}
	if req.Kind == "" {
		req.Kind = models.OrderMarket
	}
	switch req.Kind {
	case models.OrderMarket:
		if req.LimitPrice != nil {
			return &models.ValidationError{Message: "market orders must not include a limit price"}
		}
	case models.OrderLimit:
		if req.LimitPrice == nil || !req.LimitPrice.IsPositive() {
			return &models.ValidationError{Message: "limit orders require a positive limit price"}
		}
	default:
		return &models.ValidationError{Message: "order kind must be MARKET or LIMIT"}
	}
	return nil
}
