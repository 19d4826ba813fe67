// Package ledger implements spec.md §4.3: per-user multi-currency
// wallet balances and lifetime aggregates, backed by Redis hashes the
// way the teacher's internal/game/manager.go keeps balances in Redis —
// but with atomic Lua-scripted debit/credit instead of the teacher's
// IncrByFloat-then-rollback race (see DESIGN.md Open Question 4).
//
// Errors are plain, sentinel-wrapped errors rather than engine.Error:
// internal/engine is the caller here (it drives bet/cashout handling),
// so this package cannot import it back without a cycle. internal/engine
// translates ErrInsufficientBalance/other failures into its own typed
// taxonomy at the call site.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"crashcore/internal/money"
)

const (
	walletKeyPrefix = "ledger:wallet:"
	statsKeyPrefix  = "ledger:stats:"
)

// ErrInsufficientBalance is returned by Debit when the wallet is
// missing or its balance is below the requested amount (spec.md §4.3).
var ErrInsufficientBalance = errors.New("insufficient balance")

// insufficientBalanceSentinel is the Lua error_reply string the debit
// script returns; matched Go-side to produce ErrInsufficientBalance.
const insufficientBalanceSentinel = "INSUFFICIENT_BALANCE"

var debitScript = redis.NewScript(`
local key = KEYS[1]
local field = ARGV[1]
local amount = tonumber(ARGV[2])
local current = tonumber(redis.call('HGET', key, field) or '0')
if current < amount then
	return redis.error_reply('INSUFFICIENT_BALANCE')
end
local newBalance = current - amount
redis.call('HSET', key, field, string.format('%.8f', newBalance))
return string.format('%.8f', newBalance)
`)

var creditScript = redis.NewScript(`
local key = KEYS[1]
local field = ARGV[1]
local amount = tonumber(ARGV[2])
local current = tonumber(redis.call('HGET', key, field) or '0')
local newBalance = current + amount
redis.call('HSET', key, field, string.format('%.8f', newBalance))
return string.format('%.8f', newBalance)
`)

// Ledger is the Redis-backed wallet and stats store.
type Ledger struct {
	client *redis.Client
	locks  *keyMutex
}

// New builds a Ledger over an existing Redis client (the teacher's
// cache.Service.GetClient()).
func New(client *redis.Client) *Ledger {
	return &Ledger{client: client, locks: newKeyMutex()}
}

func walletKey(userID string) string { return walletKeyPrefix + userID }
func statsKey(userID string) string  { return statsKeyPrefix + userID }

// InitializeWallets seeds a user's wallet with spec.md §4.3's opening
// balances the first time the account is touched. Uses HSETNX per
// field so a second connect never clobbers a funded wallet.
func (l *Ledger) InitializeWallets(ctx context.Context, userID string) error {
	key := walletKey(userID)
	pipe := l.client.TxPipeline()
	for _, cur := range money.Supported {
		pipe.HSetNX(ctx, key, string(cur), money.InitialWalletBalance(cur).String())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("initialize wallets: %w", err)
	}
	return nil
}

// Balance returns a user's balance in currency cur, 0 if the wallet or
// field does not exist yet.
func (l *Ledger) Balance(ctx context.Context, userID string, cur money.Currency) (decimal.Decimal, error) {
	val, err := l.client.HGet(ctx, walletKey(userID), string(cur)).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("read balance: %w", err)
	}
	d, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse balance: %w", err)
	}
	return d, nil
}

// Debit atomically subtracts amount from userID's cur balance via a
// single Lua round trip (read-compare-subtract happens server-side, so
// concurrent bets against the same wallet cannot race each other the
// way the teacher's IncrByFloat-then-rollback does), additionally
// serialized at the application layer per user_id.
func (l *Ledger) Debit(ctx context.Context, userID string, cur money.Currency, amount decimal.Decimal) error {
	var callErr error
	l.locks.with(userID, func() {
		_, err := debitScript.Run(ctx, l.client, []string{walletKey(userID)}, string(cur), amount.String()).Result()
		if err != nil {
			if isInsufficientBalance(err) {
				callErr = ErrInsufficientBalance
				return
			}
			callErr = fmt.Errorf("debit wallet: %w", err)
		}
	})
	return callErr
}

// Credit atomically adds amount to userID's cur balance.
func (l *Ledger) Credit(ctx context.Context, userID string, cur money.Currency, amount decimal.Decimal) error {
	var callErr error
	l.locks.with(userID, func() {
		_, err := creditScript.Run(ctx, l.client, []string{walletKey(userID)}, string(cur), amount.String()).Result()
		if err != nil {
			callErr = fmt.Errorf("credit wallet: %w", err)
		}
	})
	return callErr
}

// Stats is a user's lifetime aggregate, spec.md §4.3.
type Stats struct {
	TotalBets   int64
	TotalWins   int64
	TotalProfit decimal.Decimal
}

// RecordSettlement increments total_bets by 1, total_wins by 1 iff won,
// and total_profit by profit. Called exactly once per bet — see
// DESIGN.md Open Question 3 (the double-settlement fix); callers (the
// engine's cashout and crash handlers) must gate this on a per-bet
// settled flag so neither path calls it twice for the same bet.
func (l *Ledger) RecordSettlement(ctx context.Context, userID string, profit decimal.Decimal, won bool) error {
	key := statsKey(userID)
	pipe := l.client.TxPipeline()
	pipe.HIncrBy(ctx, key, "total_bets", 1)
	if won {
		pipe.HIncrBy(ctx, key, "total_wins", 1)
	}
	pipe.HIncrByFloat(ctx, key, "total_profit", mustFloat(profit))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record settlement: %w", err)
	}
	return nil
}

// GetStats reads a user's lifetime aggregate.
func (l *Ledger) GetStats(ctx context.Context, userID string) (Stats, error) {
	vals, err := l.client.HGetAll(ctx, statsKey(userID)).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("read stats: %w", err)
	}

	var s Stats
	if v, ok := vals["total_bets"]; ok {
		fmt.Sscanf(v, "%d", &s.TotalBets)
	}
	if v, ok := vals["total_wins"]; ok {
		fmt.Sscanf(v, "%d", &s.TotalWins)
	}
	if v, ok := vals["total_profit"]; ok {
		if d, err := decimal.NewFromString(v); err == nil {
			s.TotalProfit = d
		}
	}
	return s, nil
}

// Wallets returns every currency balance for a user.
func (l *Ledger) Wallets(ctx context.Context, userID string) (map[money.Currency]decimal.Decimal, error) {
	vals, err := l.client.HGetAll(ctx, walletKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read wallets: %w", err)
	}
	out := make(map[money.Currency]decimal.Decimal, len(vals))
	for field, raw := range vals {
		cur := money.Currency(field)
		if !cur.Valid() {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			continue
		}
		out[cur] = d
	}
	return out, nil
}

func isInsufficientBalance(err error) bool {
	return err != nil && strings.Contains(err.Error(), insufficientBalanceSentinel)
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
