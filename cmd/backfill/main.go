// Backfill reconstructs daily portfolio snapshots for one user from
// their transaction log. Useful after importing historical trades, or
// for seeding a demo account with chart data.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/harshyadav028/stock-simulator-manus-ai/internal/models"
)

type trade struct {
	Side       models.Side     `db:"side"`
	Symbol     string          `db:"symbol"`
	Quantity   int64           `db:"quantity"`
	Price      decimal.Decimal `db:"price"`
	ExecutedAt time.Time       `db:"executed_at"`
}

func main() {
	userID := flag.String("user", "", "user id to backfill")
	days := flag.Int("days", 30, "number of past days to fill")
	flag.Parse()

	godotenv.Load()
	dbURL := os.Getenv("POSTGRES_URL")
	if dbURL == "" {
		log.Fatal("POSTGRES_URL is required")
	}
	if *userID == "" {
		log.Fatal("-user is required")
	}

	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	var initial decimal.Decimal
	if err := db.GetContext(ctx, &initial,
		`SELECT initial_balance FROM accounts WHERE user_id = $1`, *userID); err != nil {
		log.Fatalf("load account for %s: %v", *userID, err)
	}

	var trades []trade
	if err := db.SelectContext(ctx, &trades,
		`SELECT side, symbol, quantity, price, executed_at
		   FROM transactions
		  WHERE user_id = $1 AND status = $2
		  ORDER BY executed_at ASC`, *userID, models.TransactionCompleted); err != nil {
		log.Fatalf("load transactions: %v", err)
	}
	fmt.Printf("replaying %d transactions for %s over %d days\n", len(trades), *userID, *days)

	today := time.Now().UTC().Truncate(24 * time.Hour)
	written := 0
	for i := *days; i >= 1; i-- {
		day := today.AddDate(0, 0, -i)
		cash, positions := replayThrough(initial, trades, day.AddDate(0, 0, 1))
		if len(positions) == 0 && cash.Equal(initial) {
			continue // account did not exist in any meaningful sense yet
		}
		holdingsValue := decimal.Zero
		for _, p := range positions {
			holdingsValue = holdingsValue.Add(p.Value)
		}
		posJSON, err := json.Marshal(positions)
		if err != nil {
			log.Fatalf("marshal positions: %v", err)
		}
		res, err := db.ExecContext(ctx,
			`INSERT INTO portfolio_snapshots (user_id, snapshot_date, holdings_value, cash_balance, total_value, positions)
			 VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6)
			 ON CONFLICT (user_id, snapshot_date) DO NOTHING`,
			*userID, day, holdingsValue.String(), cash.String(), holdingsValue.Add(cash).String(), posJSON)
		if err != nil {
			log.Fatalf("insert snapshot for %s: %v", day.Format("2006-01-02"), err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			written++
		}
	}
	fmt.Printf("wrote %d snapshots\n", written)
}

// replayThrough folds all trades executed before cutoff into a cash
// balance and a position list. Positions are valued at the last trade
// price seen for the symbol, the best stand-in available offline.
func replayThrough(cash decimal.Decimal, trades []trade, cutoff time.Time) (decimal.Decimal, []models.SnapshotPosition) {
	type pos struct {
		qty       int64
		lastPrice decimal.Decimal
	}
	book := make(map[string]*pos)
	for _, t := range trades {
		if !t.ExecutedAt.Before(cutoff) {
			break
		}
		amount := t.Price.Mul(decimal.NewFromInt(t.Quantity))
		p, ok := book[t.Symbol]
		if !ok {
			p = &pos{}
			book[t.Symbol] = p
		}
		p.lastPrice = t.Price
		switch t.Side {
		case models.SideBuy:
			cash = cash.Sub(amount)
			p.qty += t.Quantity
		case models.SideSell:
			cash = cash.Add(amount)
			p.qty -= t.Quantity
		}
		if p.qty <= 0 {
			delete(book, t.Symbol)
		}
	}

	symbols := make([]string, 0, len(book))
	for s := range book {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	positions := make([]models.SnapshotPosition, 0, len(book))
	for _, s := range symbols {
		p := book[s]
		positions = append(positions, models.SnapshotPosition{
			Symbol:      s,
			Quantity:    p.qty,
			Price:       p.lastPrice,
			Value:       p.lastPrice.Mul(decimal.NewFromInt(p.qty)),
		})
	}
	return cash, positions
}
