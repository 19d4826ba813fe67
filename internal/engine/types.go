package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"crashcore/internal/money"
	"crashcore/internal/rounds"
)

// LedgerStore is the subset of internal/ledger.Ledger the engine needs.
// Declared here (not imported from internal/ledger) because
// internal/ledger has no dependency on internal/engine — this keeps
// the engine decoupled from the concrete store, the way spec.md §5
// describes ledger writes as a suspension point the engine must not
// hold its own lock across.
type LedgerStore interface {
	InitializeWallets(ctx context.Context, userID string) error
	Debit(ctx context.Context, userID string, cur money.Currency, amount decimal.Decimal) error
	Credit(ctx context.Context, userID string, cur money.Currency, amount decimal.Decimal) error
	RecordSettlement(ctx context.Context, userID string, profit decimal.Decimal, won bool) error
}

// RoundStore is the subset of internal/rounds.Repository the engine needs.
type RoundStore interface {
	Save(ctx context.Context, round rounds.Round) error
}

// QuoteSource is the subset of internal/quote.Cache the engine needs.
type QuoteSource interface {
	Get(ctx context.Context, cur money.Currency) decimal.Decimal
}

// MetricsRecorder receives counter/histogram updates from the engine.
// Declared here rather than importing internal/metrics directly, the
// same way EventSink decouples the engine from the gateway's Hub — the
// composition root supplies the concrete *metrics.Metrics-backed
// implementation.
type MetricsRecorder interface {
	RoundStarted()
	RoundCrashed(crashPoint decimal.Decimal)
	RoundAborted()
	BetPlaced(usdAmount decimal.Decimal)
	BetRejected(code Code)
	CashedOut()
	SettlementRetry()
}

// EventSink receives every event the engine emits. The engine holds no
// reference to a socket hub — the gateway's Hub is one concrete sink,
// decoupling broadcast/transport concerns from round-state transitions
// (spec.md §9 "avoid the back-reference pattern").
type EventSink interface {
	Emit(Event)
}

// EventType names one of spec.md §6.1's engine-originated outbound
// wire events.
type EventType string

const (
	EventNewRound         EventType = "new_round"
	EventGameStarted      EventType = "game_started"
	EventBetPlaced        EventType = "bet_placed"
	EventMultiplierUpdate EventType = "multiplier_update"
	EventPlayerCashout    EventType = "player_cashout"
	EventGameCrashed      EventType = "game_crashed"
	EventRoundAborted     EventType = "round_aborted"
)

// Event is one broadcast-worthy occurrence; Payload is one of the
// *Payload types below.
type Event struct {
	Type    EventType
	Payload interface{}
}

type NewRoundPayload struct {
	RoundID     string        `json:"round_id"`
	RoundNumber int64         `json:"round_number"`
	Hash        string        `json:"hash"`
	Status      rounds.Status `json:"status"`
}

type GameStartedPayload struct {
	RoundID   string    `json:"round_id"`
	StartedAt time.Time `json:"started_at"`
}

type BetPlacedPayload struct {
	BetID       string           `json:"bet_id"`
	RoundID     string           `json:"round_id"`
	UserID      string           `json:"user_id"`
	Username    string           `json:"username"`
	USDAmount   decimal.Decimal  `json:"usd_amount"`
	Currency    money.Currency   `json:"currency"`
	AutoCashOut *decimal.Decimal `json:"auto_cash_out,omitempty"`
}

type MultiplierUpdatePayload struct {
	RoundID    string          `json:"round_id"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Timestamp  time.Time       `json:"timestamp"`
}

type PlayerCashoutPayload struct {
	RoundID    string          `json:"round_id"`
	UserID     string          `json:"user_id"`
	Username   string          `json:"username"`
	Multiplier decimal.Decimal `json:"multiplier"`
	USDPayout  decimal.Decimal `json:"usd_payout"`
	Profit     decimal.Decimal `json:"profit"`
	IsAuto     bool            `json:"is_auto"`
}

type GameCrashedPayload struct {
	RoundID    string          `json:"round_id"`
	CrashPoint decimal.Decimal `json:"crash_point"`
	Seed       string          `json:"seed"`
	Timestamp  time.Time       `json:"timestamp"`
}

type RoundAbortedPayload struct {
	RoundID string `json:"round_id"`
	Reason  string `json:"reason"`
}

// Bet mirrors spec.md §3's Bet model while the round is in flight; it
// is converted to rounds.Bet at persistence time.
type Bet struct {
	BetID        string
	UserID       string
	Username     string
	USDAmount    decimal.Decimal
	Currency     money.Currency
	PriceAtTime  decimal.Decimal
	CryptoAmount decimal.Decimal
	AutoCashOut  *decimal.Decimal
	CashedOut    bool
	CashedOutAt  decimal.Decimal
	PayoutUSD    decimal.Decimal
	ProfitUSD    decimal.Decimal
	PlacedAt     time.Time

	// settled gates RecordSettlement to exactly one call per bet,
	// whichever of {cashout, crash} resolves it first — DESIGN.md
	// Open Question 3.
	settled bool
}

// Snapshot is a read-only copy of the round currently in flight, for
// game_state (on connect) and status queries.
type Snapshot struct {
	RoundID           string
	RoundNumber       int64
	Hash              string
	Status            rounds.Status
	CurrentMultiplier decimal.Decimal
	CreatedAt         time.Time
	StartedAt         time.Time
	BetCount          int
}

// PlaceBetInput is the validated request to place a bet, per spec.md
// §4.4 "Bet acceptance".
type PlaceBetInput struct {
	UserID      string
	Username    string
	USDAmount   decimal.Decimal
	Currency    money.Currency
	AutoCashOut *decimal.Decimal
}

// PlaceBetResult is returned to the caller on a successfully accepted bet.
type PlaceBetResult struct {
	BetID        string
	RoundID      string
	PriceAtTime  decimal.Decimal
	CryptoAmount decimal.Decimal
}

// CashoutResult is returned to the caller on a successful cashout.
type CashoutResult struct {
	Multiplier decimal.Decimal
	PayoutUSD  decimal.Decimal
	ProfitUSD  decimal.Decimal
}
