package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	c := Load()

	if c.PriceCacheDuration != 10*time.Second {
		t.Errorf("PriceCacheDuration = %v, want 10s", c.PriceCacheDuration)
	}
	if c.HouseEdge != 0.04 {
		t.Errorf("HouseEdge = %v, want 0.04", c.HouseEdge)
	}
	if c.MultiplierTick != 100*time.Millisecond {
		t.Errorf("MultiplierTick = %v, want 100ms", c.MultiplierTick)
	}
	if c.WaitDuration != 5*time.Second {
		t.Errorf("WaitDuration = %v, want 5s", c.WaitDuration)
	}
	if c.MaxBetUSD != 10000.0 {
		t.Errorf("MaxBetUSD = %v, want 10000", c.MaxBetUSD)
	}
	if c.RateLimitPerMinute != 100 {
		t.Errorf("RateLimitPerMinute = %v, want 100", c.RateLimitPerMinute)
	}
	if c.IsProduction() {
		t.Error("IsProduction() = true, want false by default")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	clearEnv(t)
	os.Setenv("HOUSE_EDGE", "0.07")
	os.Setenv("APP_ENV", "production")
	defer clearEnv(t)

	c := Load()

	if c.HouseEdge != 0.07 {
		t.Errorf("HouseEdge = %v, want 0.07", c.HouseEdge)
	}
	if !c.IsProduction() {
		t.Error("IsProduction() = false, want true")
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"HOUSE_EDGE", "APP_ENV", "PRICE_CACHE_DURATION_MS", "MAX_BET_USD", "RATE_LIMIT_PER_MIN"} {
		os.Unsetenv(key)
	}
}
