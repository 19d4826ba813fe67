package fairness

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCrashPoint_Bounds(t *testing.T) {
	tests := []struct {
		name        string
		seed        string
		roundNumber int64
	}{
		{name: "basic", seed: "test_seed_123", roundNumber: 1},
		{name: "different round", seed: "test_seed_123", roundNumber: 2},
		{name: "different seed", seed: "another_seed_456", roundNumber: 1},
	}

	min := decimal.RequireFromString(MinMultiplier)
	max := decimal.RequireFromString(MaxMultiplier)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CrashPoint(tt.seed, tt.roundNumber, DefaultHouseEdge)
			if got.LessThan(min) {
				t.Errorf("CrashPoint() = %s, want >= %s", got, min)
			}
			if got.GreaterThan(max) {
				t.Errorf("CrashPoint() = %s, want <= %s", got, max)
			}
		})
	}
}

func TestCrashPoint_Deterministic(t *testing.T) {
	seed := "deterministic_test_seed"
	var roundNumber int64 = 42

	r1 := CrashPoint(seed, roundNumber, DefaultHouseEdge)
	r2 := CrashPoint(seed, roundNumber, DefaultHouseEdge)
	r3 := CrashPoint(seed, roundNumber, DefaultHouseEdge)

	if !r1.Equal(r2) || !r2.Equal(r3) {
		t.Errorf("CrashPoint() is not deterministic: got %s, %s, %s", r1, r2, r3)
	}
}

func TestCrashPoint_DifferentRounds(t *testing.T) {
	seed := "test_seed"

	r1 := CrashPoint(seed, 1, DefaultHouseEdge)
	r2 := CrashPoint(seed, 2, DefaultHouseEdge)
	r3 := CrashPoint(seed, 3, DefaultHouseEdge)

	if r1.Equal(r2) && r2.Equal(r3) {
		t.Error("CrashPoint() produces same result for different round numbers (unlikely)")
	}
}

func TestGenerateSeed(t *testing.T) {
	seed1, err := GenerateSeed()
	if err != nil {
		t.Fatalf("GenerateSeed() error = %v", err)
	}
	seed2, err := GenerateSeed()
	if err != nil {
		t.Fatalf("GenerateSeed() error = %v", err)
	}

	if seed1 == seed2 {
		t.Error("GenerateSeed() produced duplicate seeds")
	}
	if len(seed1) != 64 { // 32 bytes = 64 hex characters
		t.Errorf("GenerateSeed() length = %v, want 64", len(seed1))
	}
}

func TestHashCommitment(t *testing.T) {
	seed := "test_seed_12345"

	hash1 := HashCommitment(seed)
	hash2 := HashCommitment(seed)

	if hash1 != hash2 {
		t.Error("HashCommitment() is not deterministic")
	}
	if len(hash1) != 64 {
		t.Errorf("HashCommitment() length = %v, want 64", len(hash1))
	}
}

func TestVerify(t *testing.T) {
	seed := "verification_test_seed"
	var roundNumber int64 = 100
	hash := HashCommitment(seed)
	actual := CrashPoint(seed, roundNumber, DefaultHouseEdge)

	tests := []struct {
		name     string
		seed     string
		hash     string
		claimed  decimal.Decimal
		wantPass bool
	}{
		{
			name:     "valid verification",
			seed:     seed,
			hash:     hash,
			claimed:  actual,
			wantPass: true,
		},
		{
			name:     "claimed multiplier mismatch",
			seed:     seed,
			hash:     hash,
			claimed:  actual.Add(decimal.NewFromInt(10)),
			wantPass: false,
		},
		{
			name:     "hash does not match seed",
			seed:     seed,
			hash:     HashCommitment("wrong_seed"),
			claimed:  actual,
			wantPass: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Verify(tt.seed, tt.hash, roundNumber, tt.claimed, DefaultHouseEdge)
			if got.Valid != tt.wantPass {
				t.Errorf("Verify() = %+v, want Valid=%v", got, tt.wantPass)
			}
		})
	}
}

func TestCrashPoint_HouseEdgeDistribution(t *testing.T) {
	seed := "house_edge_test"
	min := decimal.RequireFromString(MinMultiplier)
	instantCrashCount := 0
	const totalTests = 1000

	for i := 0; i < totalTests; i++ {
		result := CrashPoint(seed, int64(i), DefaultHouseEdge)
		if result.Equal(min) {
			instantCrashCount++
		}
	}

	t.Logf("instant crash rate: %d/%d (%.2f%%)", instantCrashCount, totalTests, float64(instantCrashCount)/float64(totalTests)*100)
}

func TestNewRound(t *testing.T) {
	r, err := NewRound(1, DefaultHouseEdge)
	if err != nil {
		t.Fatalf("NewRound() error = %v", err)
	}
	if r.Hash != HashCommitment(r.Seed) {
		t.Error("NewRound() hash does not match seed commitment")
	}
	if !r.CrashPoint.Equal(CrashPoint(r.Seed, r.RoundNumber, DefaultHouseEdge)) {
		t.Error("NewRound() crash point does not match recomputed value")
	}

	result := Verify(r.Seed, r.Hash, r.RoundNumber, r.CrashPoint, DefaultHouseEdge)
	if !result.Valid {
		t.Errorf("NewRound() produced a round that fails its own Verify: %s", result.Reason)
	}
}

func BenchmarkCrashPoint(b *testing.B) {
	seed := "benchmark_seed"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		CrashPoint(seed, int64(i), DefaultHouseEdge)
	}
}

func BenchmarkGenerateSeed(b *testing.B) {
	for i := 0; i < b.N; i++ {
		GenerateSeed()
	}
}

func BenchmarkHashCommitment(b *testing.B) {
	seed := "benchmark_seed_12345"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		HashCommitment(seed)
	}
}
