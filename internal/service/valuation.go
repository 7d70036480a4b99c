package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/harshyadav028/stock-simulator-manus-ai/internal/models"
	"github.com/harshyadav028/stock-simulator-manus-ai/internal/quotes"
)

// PortfolioStore reads ledger state and refreshes cached prices.
type PortfolioStore interface {
	GetAccount(ctx context.Context, userID string) (*models.Account, error)
	GetHoldings(ctx context.Context, userID string) ([]models.Holding, error)
	RefreshHoldingPrices(ctx context.Context, userID string, prices map[string]decimal.Decimal) error
}

// PortfolioItem is one holding priced for display. Stale marks symbols
// the provider did not return a price for; their last cached price is
// shown instead.
type PortfolioItem struct {
	Symbol        string          `json:"symbol"`
	CompanyName   string          `json:"company_name"`
	Quantity      int64           `json:"quantity"`
	AvgCost       decimal.Decimal `json:"avg_cost"`
	LastPrice     decimal.Decimal `json:"last_price"`
	MarketValue   decimal.Decimal `json:"market_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	Stale         bool            `json:"stale"`
}

// Portfolio is the live valuation of one user's positions plus cash.
type Portfolio struct {
	UserID         string          `json:"user_id"`
	Items          []PortfolioItem `json:"items"`
	HoldingsValue  decimal.Decimal `json:"holdings_value"`
	CashBalance    decimal.Decimal `json:"cash_balance"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	TotalValue     decimal.Decimal `json:"total_value"`
}

// Allocation is one slice of the performance breakdown. Cash appears
// as a pseudo-symbol.
type Allocation struct {
	Symbol      string          `json:"symbol"`
	CompanyName string          `json:"company_name"`
	Value       decimal.Decimal `json:"value"`
	Percentage  decimal.Decimal `json:"percentage"`
}

// Performance summarizes a portfolio against its starting balance.
type Performance struct {
	PortfolioValue      decimal.Decimal `json:"portfolio_value"`
	CashBalance         decimal.Decimal `json:"cash_balance"`
	InvestedValue       decimal.Decimal `json:"invested_value"`
	InitialBalance      decimal.Decimal `json:"initial_balance"`
	TotalGain           decimal.Decimal `json:"total_gain"`
	TotalGainPercentage decimal.Decimal `json:"total_gain_percentage"`
	Allocation          []Allocation    `json:"allocation"`
}

// Valuator reprices portfolios from live quotes.
type Valuator struct {
	store    PortfolioStore
	provider quotes.Provider
	log      *logrus.Logger
}

func NewValuator(store PortfolioStore, provider quotes.Provider, log *logrus.Logger) *Valuator {
	return &Valuator{store: store, provider: provider, log: log}
}

// Valuate reprices every holding with one batched quote call. Holdings
// the provider does not price keep their cached price and are flagged
// stale. Fresh prices are written back best effort.
func (v *Valuator) Valuate(ctx context.Context, userID string) (*Portfolio, error) {
	account, err := v.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	holdings, err := v.store.GetHoldings(ctx, userID)
	if err != nil {
		return nil, err
	}

	p := &Portfolio{
		UserID:         userID,
		Items:          make([]PortfolioItem, 0, len(holdings)),
		CashBalance:    account.CashBalance,
		InitialBalance: account.InitialBalance,
	}

	priced := map[string]quotes.Quote{}
	if len(holdings) > 0 {
		symbols := make([]string, len(holdings))
		for i, h := range holdings {
			symbols[i] = h.Symbol
		}
		priced, err = v.provider.GetQuotes(ctx, symbols)
		if err != nil {
			return nil, err
		}
	}

	fresh := map[string]decimal.Decimal{}
	for _, h := range holdings {
		item := PortfolioItem{
			Symbol:      h.Symbol,
			CompanyName: h.CompanyName,
			Quantity:    h.Quantity,
			AvgCost:     h.AvgCost,
			LastPrice:   h.LastPrice,
			Stale:       true,
		}
		if q, ok := priced[h.Symbol]; ok {
			item.LastPrice = q.Price
			item.Stale = false
			fresh[h.Symbol] = q.Price
		}
		qty := decimal.NewFromInt(h.Quantity)
		item.MarketValue = item.LastPrice.Mul(qty)
		item.UnrealizedPnL = item.MarketValue.Sub(h.AvgCost.Mul(qty))

		p.Items = append(p.Items, item)
		p.HoldingsValue = p.HoldingsValue.Add(item.MarketValue)
	}
	p.TotalValue = p.HoldingsValue.Add(p.CashBalance)

	if len(fresh) > 0 {
		if err := v.store.RefreshHoldingPrices(ctx, userID, fresh); err != nil {
			v.log.Warnf("price write-back failed for user %s: %v", userID, err)
		}
	}
	return p, nil
}

// Performance computes gain against the initial balance and the
// allocation split, with cash as its own slice.
func (v *Valuator) Performance(ctx context.Context, userID string) (*Performance, error) {
	p, err := v.Valuate(ctx, userID)
	if err != nil {
		return nil, err
	}

	perf := &Performance{
		PortfolioValue: p.TotalValue,
		CashBalance:    p.CashBalance,
		InvestedValue:  p.HoldingsValue,
		InitialBalance: p.InitialBalance,
		TotalGain:      p.TotalValue.Sub(p.InitialBalance),
		Allocation:     make([]Allocation, 0, len(p.Items)+1),
	}
	if p.InitialBalance.IsPositive() {
		perf.TotalGainPercentage = perf.TotalGain.Mul(decimal.NewFromInt(100)).DivRound(p.InitialBalance, 4)
	}

	pct := func(value decimal.Decimal) decimal.Decimal {
		if !p.TotalValue.IsPositive() {
			return decimal.Zero
		}
		return value.Mul(decimal.NewFromInt(100)).DivRound(p.TotalValue, 4)
	}
	for _, item := range p.Items {
		perf.Allocation = append(perf.Allocation, Allocation{
			Symbol:      item.Symbol,
			CompanyName: item.CompanyName,
			Value:       item.MarketValue,
			Percentage:  pct(item.MarketValue),
		})
	}
	perf.Allocation = append(perf.Allocation, Allocation{
		Symbol:      "CASH",
		CompanyName: "Cash Balance",
		Value:       p.CashBalance,
		Percentage:  pct(p.CashBalance),
	})
	return perf, nil
}
