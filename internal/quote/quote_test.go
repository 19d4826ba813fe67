package quote

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"crashcore/internal/money"
)

type fakeSource struct {
	calls  int32
	prices map[money.Currency]decimal.Decimal
	err    error
}

func (f *fakeSource) FetchAll(ctx context.Context) (map[money.Currency]decimal.Decimal, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return f.prices, nil
}

func TestCache_Get_FetchesOnMiss(t *testing.T) {
	src := &fakeSource{prices: map[money.Currency]decimal.Decimal{
		money.BTC: decimal.NewFromInt(50000),
	}}
	c := New(src, time.Minute, nil)

	got := c.Get(context.Background(), money.BTC)
	if !got.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("Get() = %s, want 50000", got)
	}
	if src.calls != 1 {
		t.Errorf("source called %d times, want 1", src.calls)
	}
}

func TestCache_Get_UsesFreshCacheWithoutRefetch(t *testing.T) {
	src := &fakeSource{prices: map[money.Currency]decimal.Decimal{
		money.BTC: decimal.NewFromInt(50000),
	}}
	c := New(src, time.Minute, nil)

	c.Get(context.Background(), money.BTC)
	c.Get(context.Background(), money.BTC)

	if src.calls != 1 {
		t.Errorf("source called %d times, want 1 (second Get should hit cache)", src.calls)
	}
}

func TestCache_Get_StaleFallbackOnSourceFailure(t *testing.T) {
	src := &fakeSource{prices: map[money.Currency]decimal.Decimal{
		money.BTC: decimal.NewFromInt(50000),
	}}
	c := New(src, time.Millisecond, nil)

	c.Get(context.Background(), money.BTC)
	time.Sleep(5 * time.Millisecond) // let TTL expire
	src.err = errors.New("source unreachable")

	got := c.Get(context.Background(), money.BTC)
	if !got.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("Get() = %s, want stale 50000", got)
	}
}

func TestCache_Get_HardFallbackWhenNeverCached(t *testing.T) {
	src := &fakeSource{err: errors.New("source unreachable")}
	c := New(src, time.Minute, nil)

	got := c.Get(context.Background(), money.ETH)
	if !got.Equal(money.FallbackPrice(money.ETH)) {
		t.Errorf("Get() = %s, want fallback %s", got, money.FallbackPrice(money.ETH))
	}
}

func TestCache_GetAll_DegradesPerCurrency(t *testing.T) {
	src := &fakeSource{prices: map[money.Currency]decimal.Decimal{
		money.BTC: decimal.NewFromInt(50000),
		// ETH, LTC, ADA, DOT deliberately missing from the source response.
	}}
	c := New(src, time.Minute, nil)

	all := c.GetAll(context.Background())
	if !all[money.BTC].Equal(decimal.NewFromInt(50000)) {
		t.Errorf("GetAll()[BTC] = %s, want 50000", all[money.BTC])
	}
	if !all[money.ETH].Equal(money.FallbackPrice(money.ETH)) {
		t.Errorf("GetAll()[ETH] = %s, want fallback %s", all[money.ETH], money.FallbackPrice(money.ETH))
	}
}

func TestCache_GetAll_NeverErrors(t *testing.T) {
	src := &fakeSource{err: errors.New("source down")}
	c := New(src, time.Minute, nil)

	all := c.GetAll(context.Background())
	for _, cur := range money.Supported {
		if _, ok := all[cur]; !ok {
			t.Errorf("GetAll() missing currency %s", cur)
		}
	}
}
