// Package engine implements spec.md §4.4: the round engine state
// machine. One goroutine — runLoop — owns all round-mutable state and
// is the only writer of it, mirroring the teacher's internal/game
// Manager.gameLoop/runRound: external requests (place_bet, cashout)
// arrive on buffered channels with a per-request response channel,
// exactly like the teacher's BetRequest/CashoutRequest pattern, and
// the 100ms tick is a time.Ticker case in the same select.
//
// Three corrections versus the teacher, recorded in DESIGN.md's Open
// Questions: the crash-vs-cashout tick ordering (pending cashouts are
// drained before the crash condition is evaluated), single-fire
// settlement (gated on Bet.settled), and atomic ledger writes (debit
// and credit are single Lua scripts in internal/ledger). Quote, ledger
// and repository calls run synchronously on the loop goroutine, so
// ticks and queued requests wait while one of them is in flight.
package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"crashcore/internal/fairness"
	"crashcore/internal/money"
	"crashcore/internal/rounds"
)

const (
	tickInterval      = 100 * time.Millisecond
	waitingDuration   = 5 * time.Second
	postCrashPause    = 5*time.Second + 1*time.Second
	maxSettleRetries  = 5
	betQueueDepth     = 1000
	cashoutQueueDepth = 1000
	betRequestTimeout = 5 * time.Second
	cashoutTimeout    = 500 * time.Millisecond

	minBetUSD = "0.01"
)

var (
	tickCoefficient = 0.00006
	oneDecimal      = decimal.NewFromInt(1)
)

// activeRound is the mutable state for the round currently owned by
// the engine goroutine. Only runLoop and the functions it calls
// directly may touch it.
type activeRound struct {
	roundID           string
	roundNumber       int64
	seed              string
	hash              string
	crashPoint        decimal.Decimal
	status            rounds.Status
	createdAt         time.Time
	startedAt         time.Time
	currentMultiplier decimal.Decimal
	bets              []*Bet
}

type betRequest struct {
	input    PlaceBetInput
	respChan chan betResponse
}

type betResponse struct {
	result PlaceBetResult
	err    *Error
}

type cashoutRequest struct {
	userID   string
	override *decimal.Decimal // set for auto-cashout, nil for manual
	respChan chan cashoutResponse
}

type cashoutResponse struct {
	result CashoutResult
	err    *Error
}

// Engine is the round engine. Construct with New, start with Start.
type Engine struct {
	quotes    QuoteSource
	ledger    LedgerStore
	repo      RoundStore
	sink      EventSink
	metrics   MetricsRecorder
	log       *zap.Logger
	houseEdge float64

	betCh     chan betRequest
	cashoutCh chan cashoutRequest
	stopCh    chan struct{}

	roundNumber int64
	current     *activeRound
}

// New builds an Engine. houseEdge is spec.md §4.1's configured house
// edge, forwarded to fairness.CrashPoint for every round.
func New(quotes QuoteSource, ledger LedgerStore, repo RoundStore, sink EventSink, metrics MetricsRecorder, log *zap.Logger, houseEdge float64) *Engine {
	return &Engine{
		quotes:    quotes,
		ledger:    ledger,
		repo:      repo,
		sink:      sink,
		metrics:   metrics,
		log:       log,
		houseEdge: houseEdge,
		betCh:     make(chan betRequest, betQueueDepth),
		cashoutCh: make(chan cashoutRequest, cashoutQueueDepth),
		stopCh:    make(chan struct{}),
	}
}

// Start begins the round loop in a new goroutine.
func (e *Engine) Start() {
	go e.runLoop()
}

// Stop signals the loop to exit. The waiting phase, the running phase
// and the post-crash pause each end as soon as they observe it; a
// round stopped while RUNNING is still settled by settleCrash first.
func (e *Engine) Stop() {
	close(e.stopCh)
}

// Snapshot returns a read-only copy of the round in flight, or false
// if no round is active yet (engine not started / between rounds).
func (e *Engine) Snapshot() (Snapshot, bool) {
	// Only ever called from outside the loop goroutine; current is
	// replaced wholesale (never mutated in place) by runLoop so a
	// torn read is at worst a point-in-time snapshot, not a race on
	// individual fields — acceptable for a read-only status view.
	r := e.current
	if r == nil {
		return Snapshot{}, false
	}
	return Snapshot{
		RoundID:           r.roundID,
		RoundNumber:       r.roundNumber,
		Hash:              r.hash,
		Status:            r.status,
		CurrentMultiplier: r.currentMultiplier,
		CreatedAt:         r.createdAt,
		StartedAt:         r.startedAt,
		BetCount:          len(r.bets),
	}, true
}

// PlaceBet submits a bet for the round currently in flight and blocks
// until the engine goroutine processes it or the request times out,
// matching the teacher's Manager.PlaceBet request/response channel
// pattern.
func (e *Engine) PlaceBet(input PlaceBetInput) (PlaceBetResult, *Error) {
	respChan := make(chan betResponse, 1)
	select {
	case e.betCh <- betRequest{input: input, respChan: respChan}:
	default:
		return PlaceBetResult{}, New(CodeStoreTimeout, "bet queue full")
	}
	select {
	case resp := <-respChan:
		return resp.result, resp.err
	case <-time.After(betRequestTimeout):
		return PlaceBetResult{}, New(CodeStoreTimeout, "bet request timed out")
	}
}

// Cashout submits a manual cashout for userID.
func (e *Engine) Cashout(userID string) (CashoutResult, *Error) {
	respChan := make(chan cashoutResponse, 1)
	select {
	case e.cashoutCh <- cashoutRequest{userID: userID, respChan: respChan}:
	default:
		return CashoutResult{}, New(CodeStoreTimeout, "cashout queue full")
	}
	select {
	case resp := <-respChan:
		return resp.result, resp.err
	case <-time.After(cashoutTimeout):
		return CashoutResult{}, New(CodeStoreTimeout, "cashout request timed out")
	}
}

func (e *Engine) emit(typ EventType, payload interface{}) {
	if e.sink == nil {
		return
	}
	e.sink.Emit(Event{Type: typ, Payload: payload})
}

func (e *Engine) runLoop() {
	for {
		select {
		case <-e.stopCh:
			return
		default:
			e.runRound()
		}
	}
}

// runRound drives one full WAITING -> RUNNING -> CRASHED -> pause
// cycle, per spec.md §4.4's state table.
func (e *Engine) runRound() {
	e.roundNumber++

	seed, err := fairness.GenerateSeed()
	if err != nil {
		e.log.Error("generate seed failed, aborting round", zap.Error(err))
		return
	}
	hash := fairness.HashCommitment(seed)
	crashPoint := fairness.CrashPoint(seed, e.roundNumber, e.houseEdge)

	round := &activeRound{
		roundID:           fmt.Sprintf("%d-%d", time.Now().UnixMilli(), e.roundNumber),
		roundNumber:       e.roundNumber,
		seed:              seed,
		hash:              hash,
		crashPoint:        crashPoint,
		status:            rounds.StatusWaiting,
		createdAt:         time.Now(),
		currentMultiplier: oneDecimal,
	}
	e.current = round

	ctx := context.Background()
	if err := e.repo.Save(ctx, e.toRoundRecord(round)); err != nil {
		// ∅ -> WAITING persistence failure: abort, nothing to refund
		// yet since no bets have been accepted.
		e.log.Error("persist waiting round failed, aborting", zap.Error(err), zap.String("round_id", round.roundID))
		e.emit(EventRoundAborted, RoundAbortedPayload{RoundID: round.roundID, Reason: "persistence failure"})
		return
	}

	e.emit(EventNewRound, NewRoundPayload{RoundID: round.roundID, RoundNumber: round.roundNumber, Hash: round.hash, Status: round.status})

	if !e.waitingPhase(round) {
		return
	}

	round.status = rounds.StatusRunning
	round.startedAt = time.Now()
	if err := e.repo.Save(ctx, e.toRoundRecord(round)); err != nil {
		e.log.Error("persist running round failed, aborting and refunding", zap.Error(err), zap.String("round_id", round.roundID))
		e.refundAll(ctx, round)
		e.emit(EventRoundAborted, RoundAbortedPayload{RoundID: round.roundID, Reason: "persistence failure"})
		if e.metrics != nil {
			e.metrics.RoundAborted()
		}
		return
	}
	e.emit(EventGameStarted, GameStartedPayload{RoundID: round.roundID, StartedAt: round.startedAt})
	if e.metrics != nil {
		e.metrics.RoundStarted()
	}

	e.runningPhase(round)

	e.settleCrash(ctx, round)

	select {
	case <-time.After(postCrashPause):
	case <-e.stopCh:
	}
}

// waitingPhase processes bets during WAITING for waitingDuration.
// Returns false if the engine was asked to stop.
func (e *Engine) waitingPhase(round *activeRound) bool {
	timer := time.NewTimer(waitingDuration)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			return true
		case req := <-e.betCh:
			e.processBet(round, req)
		case <-e.stopCh:
			return false
		}
	}
}

// runningPhase drives the tick loop until crash, processing cashouts
// interleaved with ticks the way the teacher's select does, but with
// the ordering fix: on a tick, every already-queued cashout is
// drained and applied before the crash condition for that tick is
// evaluated (DESIGN.md Open Question 2 / spec.md §9 item 2).
func (e *Engine) runningPhase(round *activeRound) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if e.handleTick(round) {
				return
			}
		case req := <-e.cashoutCh:
			e.processCashout(round, req)
		case <-e.stopCh:
			return
		}
	}
}

// handleTick advances the multiplier for one tick and reports whether
// the round just crashed.
func (e *Engine) handleTick(round *activeRound) bool {
	// Drain every cashout already queued before this tick is
	// evaluated, so a cashout racing the crash transition on the same
	// tick always wins (spec.md §4.4 tie-break rule).
	e.drainPendingCashouts(round)

	elapsed := time.Since(round.startedAt).Seconds()
	mu := money.TruncateCents(decimal.NewFromFloat(math.Exp(tickCoefficient * elapsed)))

	if mu.GreaterThanOrEqual(round.crashPoint) {
		// This is the crash tick: truncate(mu) first reaches crash_point
		// here, so any bet with auto_cash_out in (previous tick's
		// multiplier, crash_point] must fire now, clamped to
		// crash_point, before the crash transition — otherwise it is
		// wrongly settled as a loss in settleCrash (spec.md §4.4
		// tie-break rule / §9 Open Question 2).
		e.fireAutoCashouts(round, round.crashPoint)
		round.currentMultiplier = round.crashPoint
		return true
	}

	// Only broadcast and re-evaluate auto-cashouts when the truncated
	// multiplier actually advanced — the exp curve stays truncated at
	// the same cent value for many consecutive ticks early in a round,
	// and each multiplier_update must strictly exceed the last one.
	if mu.GreaterThan(round.currentMultiplier) {
		round.currentMultiplier = mu
		e.emit(EventMultiplierUpdate, MultiplierUpdatePayload{RoundID: round.roundID, Multiplier: mu, Timestamp: time.Now()})
		e.fireAutoCashouts(round, mu)
	}

	return false
}

func (e *Engine) drainPendingCashouts(round *activeRound) {
	for {
		select {
		case req := <-e.cashoutCh:
			e.processCashout(round, req)
		default:
			return
		}
	}
}

// fireAutoCashouts evaluates active bets in bet-acceptance order
// (round.bets is append-only, so slice order is acceptance order) and
// cashes out every bet whose auto_cash_out has been reached, all at
// the same tick multiplier mu — not at their individual threshold
// (spec.md §4.4 tie-break rule / §9 item 4).
func (e *Engine) fireAutoCashouts(round *activeRound, mu decimal.Decimal) {
	for _, b := range round.bets {
		if b.CashedOut || b.AutoCashOut == nil {
			continue
		}
		if mu.GreaterThanOrEqual(*b.AutoCashOut) {
			e.settleCashout(context.Background(), round, b, mu, true)
		}
	}
}

// rejectBet responds with err and records the rejection code, per
// spec.md §7's error-code taxonomy.
func (e *Engine) rejectBet(req betRequest, code Code, msg string) {
	if e.metrics != nil {
		e.metrics.BetRejected(code)
	}
	req.respChan <- betResponse{err: New(code, msg)}
}

// processBet validates and accepts a bet during WAITING, per spec.md
// §4.4 "Bet acceptance".
func (e *Engine) processBet(round *activeRound, req betRequest) {
	in := req.input

	minUSD, _ := decimal.NewFromString(minBetUSD)
	maxUSD := decimal.NewFromInt(10000)
	if in.USDAmount.LessThan(minUSD) || in.USDAmount.GreaterThan(maxUSD) {
		e.rejectBet(req, CodeInvalidAmount, "usd amount must be between 0.01 and 10000")
		return
	}
	if !in.Currency.Valid() {
		e.rejectBet(req, CodeUnsupportedCurrency, fmt.Sprintf("unsupported currency %q", in.Currency))
		return
	}
	if in.AutoCashOut != nil {
		if in.AutoCashOut.LessThanOrEqual(oneDecimal) || in.AutoCashOut.GreaterThan(decimal.NewFromInt(1000)) {
			e.rejectBet(req, CodeInvalidAutoCashout, "auto_cash_out must be in (1.00, 1000]")
			return
		}
	}
	if round.status != rounds.StatusWaiting {
		e.rejectBet(req, CodeRoundNotOpen, "betting is closed for this round")
		return
	}

	// The quote lookup and ledger debit may block; they run here on the
	// loop goroutine, which handles nothing else until they return.
	ctx := context.Background()
	price := e.quotes.Get(ctx, in.Currency)
	crypto := money.UsdToCrypto(in.USDAmount, price)

	if err := e.ledger.Debit(ctx, in.UserID, in.Currency, crypto); err != nil {
		translated := translateLedgerErr(err, CodeStoreError, "debit failed")
		if e.metrics != nil {
			e.metrics.BetRejected(translated.Code)
		}
		req.respChan <- betResponse{err: translated}
		return
	}

	bet := &Bet{
		BetID:        uuid.NewString(),
		UserID:       in.UserID,
		Username:     in.Username,
		USDAmount:    in.USDAmount,
		Currency:     in.Currency,
		PriceAtTime:  price,
		CryptoAmount: crypto,
		AutoCashOut:  in.AutoCashOut,
		PlacedAt:     time.Now(),
	}
	round.bets = append(round.bets, bet)

	if e.metrics != nil {
		e.metrics.BetPlaced(in.USDAmount)
	}

	e.emit(EventBetPlaced, BetPlacedPayload{
		BetID:       bet.BetID,
		RoundID:     round.roundID,
		UserID:      in.UserID,
		Username:    in.Username,
		USDAmount:   in.USDAmount,
		Currency:    in.Currency,
		AutoCashOut: in.AutoCashOut,
	})

	req.respChan <- betResponse{result: PlaceBetResult{BetID: bet.BetID, RoundID: round.roundID, PriceAtTime: price, CryptoAmount: crypto}}
}

// processCashout validates and applies a manual cashout, per spec.md
// §4.4 "Cashout". Auto-cashout calls settleCashout directly with an
// override multiplier instead of going through this request path.
func (e *Engine) processCashout(round *activeRound, req cashoutRequest) {
	if round.status != rounds.StatusRunning {
		req.respChan <- cashoutResponse{err: New(CodeRoundNotRunning, "round is not running")}
		return
	}

	var target *Bet
	for _, b := range round.bets {
		if b.UserID == req.userID && !b.CashedOut {
			target = b
			break
		}
	}
	if target == nil {
		req.respChan <- cashoutResponse{err: New(CodeNoActiveBet, "no active bet for this user in the current round")}
		return
	}

	m := round.currentMultiplier
	if req.override != nil {
		m = *req.override
	}

	result, err := e.settleCashout(context.Background(), round, target, m, false)
	req.respChan <- cashoutResponse{result: result, err: err}
}

// settleCashout performs the accounting for a single bet cashing out
// at multiplier m, gated on Bet.settled so it can only ever fire once
// per bet (DESIGN.md Open Question 3 / spec.md §9 item 3). isAuto
// distinguishes an engine-triggered auto-cashout from a manual
// cashout request, for the player_cashout broadcast's is_auto field.
func (e *Engine) settleCashout(ctx context.Context, round *activeRound, b *Bet, m decimal.Decimal, isAuto bool) (CashoutResult, *Error) {
	if b.settled {
		return CashoutResult{}, New(CodeNoActiveBet, "bet already settled")
	}

	cryptoPayout := b.CryptoAmount.Mul(m)
	usdPayout := money.CryptoToUsd(cryptoPayout, b.PriceAtTime)
	profit := usdPayout.Sub(b.USDAmount)

	if err := e.ledger.Credit(ctx, b.UserID, b.Currency, cryptoPayout); err != nil {
		return CashoutResult{}, translateLedgerErr(err, CodeStoreError, "credit failed")
	}
	if err := e.ledger.RecordSettlement(ctx, b.UserID, profit, true); err != nil {
		e.log.Error("record settlement failed after credit", zap.Error(err), zap.String("user_id", b.UserID))
	}

	b.CashedOut = true
	b.CashedOutAt = m
	b.PayoutUSD = usdPayout
	b.ProfitUSD = profit
	b.settled = true

	if e.metrics != nil {
		e.metrics.CashedOut()
	}

	e.emit(EventPlayerCashout, PlayerCashoutPayload{
		RoundID:    round.roundID,
		UserID:     b.UserID,
		Username:   b.Username,
		Multiplier: m,
		USDPayout:  usdPayout,
		Profit:     profit,
		IsAuto:     isAuto,
	})

	return CashoutResult{Multiplier: m, PayoutUSD: usdPayout, ProfitUSD: profit}, nil
}

// settleCrash settles every non-cashed bet as a loss and persists the
// final round, retrying persistence with exponential backoff per
// spec.md §4.4 "Failure semantics".
func (e *Engine) settleCrash(ctx context.Context, round *activeRound) {
	round.status = rounds.StatusCrashed

	for _, b := range round.bets {
		if b.settled {
			continue
		}
		b.ProfitUSD = b.USDAmount.Neg()
		b.settled = true
		if err := e.ledger.RecordSettlement(ctx, b.UserID, b.ProfitUSD, false); err != nil {
			e.log.Error("record settlement failed for crash loss", zap.Error(err), zap.String("user_id", b.UserID))
		}
	}

	backoff := 100 * time.Millisecond
	var saveErr error
	for attempt := 0; attempt < maxSettleRetries; attempt++ {
		if saveErr = e.repo.Save(ctx, e.toRoundRecord(round)); saveErr == nil {
			break
		}
		e.log.Error("persist crashed round failed, retrying", zap.Error(saveErr), zap.Int("attempt", attempt+1), zap.String("round_id", round.roundID))
		if e.metrics != nil {
			e.metrics.SettlementRetry()
		}
		if attempt < maxSettleRetries-1 {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	if saveErr != nil {
		// Retries exhausted: the failure is logged and settlement goes
		// on. The round is not marked DEGRADED, no round_aborted is
		// emitted, and the next round starts after the usual pause.
		e.log.Error("persist crashed round exhausted retries, round remains degraded", zap.Error(saveErr), zap.String("round_id", round.roundID))
	}

	if e.metrics != nil {
		e.metrics.RoundCrashed(round.crashPoint)
	}

	e.emit(EventGameCrashed, GameCrashedPayload{RoundID: round.roundID, CrashPoint: round.crashPoint, Seed: round.seed, Timestamp: time.Now()})
}

// refundAll reverses every accepted bet's debit, used when a
// persistence failure aborts the round between WAITING and RUNNING.
func (e *Engine) refundAll(ctx context.Context, round *activeRound) {
	for _, b := range round.bets {
		if err := e.ledger.Credit(ctx, b.UserID, b.Currency, b.CryptoAmount); err != nil {
			e.log.Error("refund failed", zap.Error(err), zap.String("user_id", b.UserID))
		}
	}
}

func (e *Engine) toRoundRecord(round *activeRound) rounds.Round {
	out := rounds.Round{
		RoundID:           round.roundID,
		RoundNumber:       round.roundNumber,
		Seed:              round.seed,
		Hash:              round.hash,
		CrashPoint:        round.crashPoint,
		Status:            round.status,
		CreatedAt:         round.createdAt,
		CurrentMultiplier: round.currentMultiplier,
	}
	if !round.startedAt.IsZero() {
		t := round.startedAt
		out.StartedAt = &t
	}
	if round.status == rounds.StatusCrashed {
		t := time.Now()
		out.CrashedAt = &t
	}
	out.Bets = make([]rounds.Bet, 0, len(round.bets))
	for _, b := range round.bets {
		rb := rounds.Bet{
			BetID:        b.BetID,
			UserID:       b.UserID,
			Username:     b.Username,
			USDAmount:    b.USDAmount,
			Currency:     b.Currency,
			PriceAtTime:  b.PriceAtTime,
			CryptoAmount: b.CryptoAmount,
			AutoCashOut:  b.AutoCashOut,
			CashedOut:    b.CashedOut,
			PayoutUSD:    b.PayoutUSD,
			ProfitUSD:    b.ProfitUSD,
			PlacedAt:     b.PlacedAt,
		}
		if b.CashedOut {
			v := b.CashedOutAt
			rb.CashedOutAt = &v
		}
		out.Bets = append(out.Bets, rb)
	}
	return out
}
