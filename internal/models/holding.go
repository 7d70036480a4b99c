package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// avgCostPlaces bounds the precision of the cost basis so repeated
// buys cannot accumulate unbounded fractional digits. It is kept well
// past display precision: each buy rounds once, so the carried error
// stays near one unit in the 16th place however long the position
// is accumulated.
const avgCostPlaces = 16

// Holding is a user's aggregated position in one symbol. A holding
// with quantity 0 is deleted, never stored.
type Holding struct {
	UserID         string          `db:"user_id" json:"user_id"`
	Symbol         string          `db:"symbol" json:"symbol"`
	CompanyName    string          `db:"company_name" json:"company_name"`
	Quantity       int64           `db:"quantity" json:"quantity"`
	AvgCost        decimal.Decimal `db:"avg_cost" json:"avg_cost"`
	LastPrice      decimal.Decimal `db:"last_price" json:"last_price"`
	PriceUpdatedAt *time.Time      `db:"price_updated_at" json:"price_updated_at,omitempty"`
}

// ApplyBuy folds a purchase of qty shares at price into the position,
// recomputing the cost basis as the quantity-weighted mean of all buys.
func (h *Holding) ApplyBuy(qty int64, price decimal.Decimal) {
	oldQty := decimal.NewFromInt(h.Quantity)
	addQty := decimal.NewFromInt(qty)
	newQty := oldQty.Add(addQty)

	totalCost := h.AvgCost.Mul(oldQty).Add(price.Mul(addQty))
	h.AvgCost = totalCost.DivRound(newQty, avgCostPlaces)
	h.Quantity += qty
	h.LastPrice = price
}

// ApplySell removes qty shares. The cost basis is unchanged by a sell;
// realized gain is derivable as (price - AvgCost) * qty. Returns
// ErrInsufficientShares when the position is too small.
func (h *Holding) ApplySell(qty int64, price decimal.Decimal) error {
	if h.Quantity < qty {
		return ErrInsufficientShares
	}
	h.Quantity -= qty
	h.LastPrice = price
	return nil
}

// MarketValue is quantity * last known price.
func (h *Holding) MarketValue() decimal.Decimal {
	return h.LastPrice.Mul(decimal.NewFromInt(h.Quantity))
}

// UnrealizedPnL is market value minus total cost basis.
func (h *Holding) UnrealizedPnL() decimal.Decimal {
	return h.MarketValue().Sub(h.AvgCost.Mul(decimal.NewFromInt(h.Quantity)))
}
