package rounds

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"crashcore/internal/money"
)

var testDB *sql.DB

func TestMain(m *testing.M) {
	if os.Getenv("SKIP_INTEGRATION") != "" {
		os.Exit(0)
	}
	if os.Getenv("CI") == "" && !isDockerAvailable() {
		os.Exit(0)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := postgres.Run(ctx, "postgres:latest",
		postgres.WithDatabase("rounds_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(30*time.Second)))
	if err != nil {
		os.Exit(0)
	}
	defer container.Terminate(context.Background())

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		os.Exit(0)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		os.Exit(0)
	}
	defer db.Close()

	schema, err := os.ReadFile("../../migrations/000001_init.up.sql")
	if err != nil {
		os.Exit(0)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		os.Exit(0)
	}

	testDB = db
	os.Exit(m.Run())
}

func isDockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	_, err = provider.DaemonHost(ctx)
	return err == nil
}

func sampleRound(roundID string, roundNumber int64, status Status) Round {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return Round{
		RoundID:           roundID,
		RoundNumber:       roundNumber,
		Seed:              "seed-" + roundID,
		Hash:              "hash-" + roundID,
		CrashPoint:        decimal.NewFromFloat(2.35),
		Status:            status,
		CreatedAt:         now,
		CurrentMultiplier: decimal.NewFromFloat(2.35),
		Bets: []Bet{
			{
				UserID:       "user-1",
				Username:     "alice",
				USDAmount:    decimal.NewFromFloat(10),
				Currency:     money.BTC,
				PriceAtTime:  decimal.NewFromInt(45000),
				CryptoAmount: decimal.NewFromFloat(10).Div(decimal.NewFromInt(45000)),
				PayoutUSD:    decimal.NewFromFloat(23.5),
				ProfitUSD:    decimal.NewFromFloat(13.5),
				PlacedAt:     now,
			},
		},
	}
}

func TestSave_IsIdempotent(t *testing.T) {
	repo := New(testDB)
	ctx := context.Background()
	round := sampleRound("round-idempotent-1", 1, StatusCrashed)

	if err := repo.Save(ctx, round); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := repo.Save(ctx, round); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	recent, err := repo.Recent(ctx, 200)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	count := 0
	for _, r := range recent {
		if r.RoundID == round.RoundID {
			count++
		}
	}
	if count != 1 {
		t.Errorf("round_id %s appears %d times, want 1", round.RoundID, count)
	}
}

func TestRecent_OrdersNewestFirstAndClampsLimit(t *testing.T) {
	repo := New(testDB)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		round := sampleRound(fmtRoundID("order", i), int64(i), StatusCrashed)
		round.CreatedAt = round.CreatedAt.Add(time.Duration(i) * time.Second)
		if err := repo.Save(ctx, round); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	recent, err := repo.Recent(ctx, 0) // clamps to default 50
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) < 3 {
		t.Fatalf("Recent() returned %d rounds, want >= 3", len(recent))
	}

	recentCapped, err := repo.Recent(ctx, 10000) // clamps to 200
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recentCapped) > 200 {
		t.Errorf("Recent(10000) returned %d rounds, want <= 200", len(recentCapped))
	}
}

func fmtRoundID(prefix string, i int) string {
	return prefix + "-" + string(rune('a'+i))
}
