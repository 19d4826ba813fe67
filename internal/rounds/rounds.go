// Package rounds implements the Round Repository (spec.md §4.5): a
// durable record of rounds, one row per round_id, indexed by status
// and created_at descending. Rows are upserted as a round moves through
// WAITING, RUNNING and CRASHED; Recent returns only CRASHED rounds.
package rounds

import (
	"time"

	"github.com/shopspring/decimal"

	"crashcore/internal/money"
)

// Status is a Round's lifecycle state (spec.md §3).
type Status string

const (
	StatusWaiting Status = "WAITING"
	StatusRunning Status = "RUNNING"
	StatusCrashed Status = "CRASHED"
)

// Bet is one accepted wager within a Round, per spec.md §3's Bet model.
type Bet struct {
	BetID        string          `json:"bet_id"`
	UserID       string          `json:"user_id"`
	Username     string          `json:"username"`
	USDAmount    decimal.Decimal `json:"usd_amount"`
	Currency     money.Currency  `json:"currency"`
	PriceAtTime  decimal.Decimal `json:"price_at_time"`
	CryptoAmount decimal.Decimal `json:"crypto_amount"`
	AutoCashOut  *decimal.Decimal `json:"auto_cash_out,omitempty"`
	CashedOut    bool            `json:"cashed_out"`
	CashedOutAt  *decimal.Decimal `json:"cashed_out_at,omitempty"`
	PayoutUSD    decimal.Decimal `json:"payout_usd"`
	ProfitUSD    decimal.Decimal `json:"profit_usd"`
	PlacedAt     time.Time       `json:"placed_at"`
}

// Round is the durable record of one completed (or in-flight) round,
// per spec.md §3's Round model.
type Round struct {
	RoundID           string          `json:"round_id"`
	RoundNumber       int64           `json:"round_number"`
	Seed              string          `json:"seed"`
	Hash              string          `json:"hash"`
	CrashPoint        decimal.Decimal `json:"crash_point"`
	Status            Status          `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	StartedAt         *time.Time      `json:"started_at,omitempty"`
	CrashedAt         *time.Time      `json:"crashed_at,omitempty"`
	CurrentMultiplier decimal.Decimal `json:"current_multiplier"`
	Bets              []Bet           `json:"bets"`
}
