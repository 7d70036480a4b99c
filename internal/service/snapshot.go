package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/harshyadav028/stock-simulator-manus-ai/internal/models"
)

// SnapshotStore persists daily valuation rows.
type SnapshotStore interface {
	InsertSnapshot(ctx context.Context, s *models.PortfolioSnapshot) (bool, error)
	ListSnapshots(ctx context.Context, userID string, since time.Time) ([]models.PortfolioSnapshot, error)
}

// Snapshotter records at most one portfolio valuation per user per
// server UTC day. It runs opportunistically on portfolio reads; there
// is no standalone scheduler.
type Snapshotter struct {
	valuator *Valuator
	store    SnapshotStore
	log      *logrus.Logger
}

func NewSnapshotter(valuator *Valuator, store SnapshotStore, log *logrus.Logger) *Snapshotter {
	return &Snapshotter{valuator: valuator, store: store, log: log}
}

// SnapshotIfNeeded valuates the portfolio and writes today's snapshot
// unless it already exists. Callers that just valuated should use
// Record instead so the provider is not hit twice.
func (s *Snapshotter) SnapshotIfNeeded(ctx context.Context, userID string) (bool, error) {
	p, err := s.valuator.Valuate(ctx, userID)
	if err != nil {
		return false, err
	}
	return s.Record(ctx, p)
}

// Record writes today's snapshot row from an already-computed
// valuation. Idempotent within a day; reports whether a row was created.
func (s *Snapshotter) Record(ctx context.Context, p *Portfolio) (bool, error) {
	snap := &models.PortfolioSnapshot{
		UserID:        p.UserID,
		Date:          time.Now().UTC().Truncate(24 * time.Hour),
		HoldingsValue: p.HoldingsValue,
		CashBalance:   p.CashBalance,
		TotalValue:    p.TotalValue,
		Positions:     make([]models.SnapshotPosition, 0, len(p.Items)),
	}
	for _, item := range p.Items {
		snap.Positions = append(snap.Positions, models.SnapshotPosition{
			Symbol:      item.Symbol,
			CompanyName: item.CompanyName,
			Quantity:    item.Quantity,
			Price:       item.LastPrice,
			Value:       item.MarketValue,
		})
	}

	created, err := s.store.InsertSnapshot(ctx, snap)
	if err != nil {
		return false, err
	}
	if created {
		s.log.Debugf("snapshot recorded for user %s on %s", p.UserID, snap.Date.Format("2006-01-02"))
	}
	return created, nil
}

// History returns snapshots within the requested charting period:
// 1w, 1m, 3m, 6m, 1y or all (default 1m).
func (s *Snapshotter) History(ctx context.Context, userID, period string) ([]models.PortfolioSnapshot, error) {
	return s.store.ListSnapshots(ctx, userID, periodStart(period, time.Now().UTC()))
}

func periodStart(period string, now time.Time) time.Time {
	switch period {
	case "1w":
		return now.AddDate(0, 0, -7)
	case "3m":
		return now.AddDate(0, -3, 0)
	case "6m":
		return now.AddDate(0, -6, 0)
	case "1y":
		return now.AddDate(-1, 0, 0)
	case "all":
		return time.Time{}
	default: // 1m
		return now.AddDate(0, -1, 0)
	}
}
