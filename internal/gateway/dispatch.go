package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"crashcore/internal/engine"
	"crashcore/internal/ledger"
	"crashcore/internal/money"
	"crashcore/internal/rounds"
)

// structValidator checks inbound wire payloads against the `validate`
// struct tags below, the way Ashenafi-pixel-gamecrafter-backoffice-backend's
// request DTOs are checked before reaching a handler.
var structValidator = validator.New()

// RoundEngine is the subset of *engine.Engine the gateway drives.
type RoundEngine interface {
	PlaceBet(input engine.PlaceBetInput) (engine.PlaceBetResult, *engine.Error)
	Cashout(userID string) (engine.CashoutResult, *engine.Error)
	Snapshot() (engine.Snapshot, bool)
}

// StatsReader is the subset of *ledger.Ledger the gateway reads for
// get_user_stats.
type StatsReader interface {
	Wallets(ctx context.Context, userID string) (map[money.Currency]decimal.Decimal, error)
	GetStats(ctx context.Context, userID string) (ledger.Stats, error)
}

// HistoryReader is the subset of *rounds.Repository the gateway reads
// for get_game_history.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]rounds.Round, error)
}

// inboundEnvelope is the shape of every inbound wire frame, per
// spec.md §6.1: {"event": "place_bet", "payload": {...}}.
type inboundEnvelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type placeBetPayload struct {
	USDAmount   decimal.Decimal  `json:"usd_amount"`
	Currency    string           `json:"currency" validate:"required,len=3"`
	AutoCashOut *decimal.Decimal `json:"auto_cash_out,omitempty"`
}

type gameHistoryPayload struct {
	Limit int `json:"limit,omitempty" validate:"omitempty,min=1,max=200"`
}

// Dispatcher translates inbound wire frames into engine/read-store
// calls for one connection, per spec.md §4.6.
type Dispatcher struct {
	engine  RoundEngine
	stats   StatsReader
	history HistoryReader
	hub     *Hub
	limit   *limiter
	log     *zap.Logger
}

// NewDispatcher builds a Dispatcher. limitPerMinute is spec.md
// §6.3's RATE_LIMIT_PER_MIN.
func NewDispatcher(eng RoundEngine, stats StatsReader, history HistoryReader, hub *Hub, limitPerMinute int, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		engine:  eng,
		stats:   stats,
		history: history,
		hub:     hub,
		limit:   newLimiter(limitPerMinute),
		log:     log,
	}
}

// HandleConnect sends the originator-only game_state snapshot on
// connect, per spec.md §4.6.
func (d *Dispatcher) HandleConnect(connID string) {
	snap, ok := d.engine.Snapshot()
	if !ok {
		return
	}
	d.hub.SendTo(connID, Message{Event: "game_state", Payload: snap})
}

// HandleDisconnect releases the connection's rate-limit window.
// In-flight bets are left untouched — spec.md §4.6 "In-flight bets
// are NOT auto-cashed; the round continues normally."
func (d *Dispatcher) HandleDisconnect(connID string) {
	d.limit.Forget(connID)
}

// Dispatch handles one inbound frame. It returns false if the
// connection exceeded its rate limit and must be dropped.
func (d *Dispatcher) Dispatch(connID, userID, username string, raw []byte) bool {
	if !d.limit.Allow(connID, time.Now()) {
		d.hub.SendTo(connID, Message{Event: "error", Payload: map[string]string{"message": "rate limit exceeded"}})
		return false
	}

	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		d.hub.SendTo(connID, Message{Event: "error", Payload: map[string]string{"message": "malformed message"}})
		return true
	}

	switch env.Event {
	case "place_bet":
		d.handlePlaceBet(connID, userID, username, env.Payload)
	case "cashout":
		d.handleCashout(connID, userID)
	case "get_game_history":
		d.handleGameHistory(connID, env.Payload)
	case "get_user_stats":
		d.handleUserStats(connID, userID)
	case "ping":
		d.hub.SendTo(connID, Message{Event: "pong"})
	default:
		d.hub.SendTo(connID, Message{Event: "error", Payload: map[string]string{"message": fmt.Sprintf("unknown event %q", env.Event)}})
	}
	return true
}

func (d *Dispatcher) handlePlaceBet(connID, userID, username string, raw json.RawMessage) {
	var p placeBetPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		d.hub.SendTo(connID, Message{Event: "error", Payload: map[string]string{"message": "malformed place_bet payload"}})
		return
	}
	if err := structValidator.Struct(p); err != nil {
		d.hub.SendTo(connID, Message{Event: "error", Payload: map[string]string{"message": err.Error()}})
		return
	}
	cur, err := money.ParseCurrency(p.Currency)
	if err != nil {
		d.hub.SendTo(connID, Message{Event: "error", Payload: map[string]string{"message": err.Error()}})
		return
	}

	_, engErr := d.engine.PlaceBet(engine.PlaceBetInput{
		UserID:      userID,
		Username:    username,
		USDAmount:   p.USDAmount,
		Currency:    cur,
		AutoCashOut: p.AutoCashOut,
	})
	if engErr != nil {
		d.hub.SendTo(connID, Message{Event: "error", Payload: map[string]string{"message": engErr.Message}})
	}
}

func (d *Dispatcher) handleCashout(connID, userID string) {
	_, engErr := d.engine.Cashout(userID)
	if engErr != nil {
		d.hub.SendTo(connID, Message{Event: "error", Payload: map[string]string{"message": engErr.Message}})
	}
}

func (d *Dispatcher) handleGameHistory(connID string, raw json.RawMessage) {
	var p gameHistoryPayload
	json.Unmarshal(raw, &p) // zero value (no limit override) on malformed payload
	if structValidator.Struct(p) != nil {
		p.Limit = 0 // out-of-range limit falls back to Repository.Recent's default
	}

	recent, err := d.history.Recent(context.Background(), p.Limit)
	if err != nil {
		d.hub.SendTo(connID, Message{Event: "error", Payload: map[string]string{"message": "history unavailable"}})
		return
	}
	d.hub.SendTo(connID, Message{Event: "game_history", Payload: recent})
}

func (d *Dispatcher) handleUserStats(connID, userID string) {
	ctx := context.Background()
	wallets, err := d.stats.Wallets(ctx, userID)
	if err != nil {
		d.hub.SendTo(connID, Message{Event: "error", Payload: map[string]string{"message": "stats unavailable"}})
		return
	}
	lifetime, err := d.stats.GetStats(ctx, userID)
	if err != nil {
		d.hub.SendTo(connID, Message{Event: "error", Payload: map[string]string{"message": "stats unavailable"}})
		return
	}
	d.hub.SendTo(connID, Message{Event: "user_stats", Payload: map[string]interface{}{
		"wallets":  wallets,
		"lifetime": lifetime,
	}})
}
