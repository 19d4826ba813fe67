// Package fairness implements the provably-fair crash-point generator
// from spec.md §4.1. It is a pure, deterministic function of (seed,
// round number): the server commits to SHA256(seed) before betting
// closes, and reveals seed at crash so any client can recompute the
// same crash point.
//
// This is the literal formula spec.md requires, not the teacher's
// HMAC(serverSeed, clientSeed:nonce) scheme — see SPEC_FULL.md's Fair-Proof
// Generator section and DESIGN.md's Open Question 1.
package fairness

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// MinMultiplier is the lowest possible crash point.
	MinMultiplier = "1.01"
	// MaxMultiplier is the highest possible crash point.
	MaxMultiplier = "1000.00"
	// DefaultHouseEdge is used when the caller does not override it
	// (spec.md §6.3 HOUSE_EDGE default).
	DefaultHouseEdge = 0.04

	seedBytes = 32
)

// Round bundles everything the Fair-Proof Generator commits to before a
// round opens for betting.
type Round struct {
	RoundID    string
	RoundNumber int64
	Seed       string // hex, secret until crash
	Hash       string // sha256(seed), hex, published immediately
	CrashPoint decimal.Decimal
}

// NewRound generates a fresh seed, its published commitment hash, and
// the crash point it determines for roundNumber, using houseEdge (pass
// DefaultHouseEdge unless the deployment overrides HOUSE_EDGE).
func NewRound(roundNumber int64, houseEdge float64) (Round, error) {
	seed, err := GenerateSeed()
	if err != nil {
		return Round{}, fmt.Errorf("generate seed: %w", err)
	}
	hash := HashCommitment(seed)
	crashPoint := CrashPoint(seed, roundNumber, houseEdge)
	return Round{
		RoundID:     fmt.Sprintf("%d-%d", time.Now().UnixMilli(), roundNumber),
		RoundNumber: roundNumber,
		Seed:        seed,
		Hash:        hash,
		CrashPoint:  crashPoint,
	}, nil
}

// GenerateSeed returns 32 cryptographically random bytes, hex-encoded.
func GenerateSeed() (string, error) {
	b := make([]byte, seedBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashCommitment returns the hex SHA-256 of seed.
func HashCommitment(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

// CrashPoint computes the round's crash multiplier from (seed,
// roundNumber) per spec.md §4.1:
//
//	H = SHA256(seed ‖ ascii(roundNumber))
//	x = first 8 hex chars of H, parsed as uint32
//	M = 2^32 - 1
//	r = (M - x) / (M - x*e)
//
// clamped to [1.01, 1000.00] and truncated toward zero at two decimals.
func CrashPoint(seed string, roundNumber int64, houseEdge float64) decimal.Decimal {
	h := sha256.Sum256([]byte(seed + strconv.FormatInt(roundNumber, 10)))
	hexDigest := hex.EncodeToString(h[:])
	x := binary.BigEndian.Uint32(mustDecodeHex(hexDigest[:8]))

	const m = float64(4294967295) // 2^32 - 1
	xf := float64(x)

	denominator := m - xf*houseEdge
	if denominator <= 0 {
		return decimal.NewFromFloat(MinMultiplierFloat)
	}
	r := (m - xf) / denominator

	point := decimal.NewFromFloat(r).Truncate(2)
	min := decimal.RequireFromString(MinMultiplier)
	max := decimal.RequireFromString(MaxMultiplier)
	if point.LessThan(min) {
		return min
	}
	if point.GreaterThan(max) {
		return max
	}
	return point
}

// MinMultiplierFloat mirrors MinMultiplier for the denominator<=0 guard,
// which can only happen for pathological house-edge configuration.
const MinMultiplierFloat = 1.01

func mustDecodeHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		// s is always 8 hex characters sliced from our own SHA-256 digest.
		panic(err)
	}
	return b
}

// VerifyResult is the outcome of re-deriving a round's crash point from
// its revealed seed.
type VerifyResult struct {
	Valid  bool
	Reason string
}

// Verify recomputes hash and crash point from seed and reports whether
// they match the claimed values, per spec.md §4.1 ("accept within
// 0.01").
func Verify(seed, hash string, roundNumber int64, claimedCrashPoint decimal.Decimal, houseEdge float64) VerifyResult {
	if HashCommitment(seed) != hash {
		return VerifyResult{Valid: false, Reason: "hash does not match seed"}
	}
	recomputed := CrashPoint(seed, roundNumber, houseEdge)
	diff := recomputed.Sub(claimedCrashPoint).Abs()
	if diff.GreaterThan(decimal.NewFromFloat(0.01)) {
		return VerifyResult{
			Valid:  false,
			Reason: fmt.Sprintf("crash point mismatch: recomputed %s, claimed %s", recomputed, claimedCrashPoint),
		}
	}
	return VerifyResult{Valid: true}
}
