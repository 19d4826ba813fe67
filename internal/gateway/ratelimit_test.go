package gateway

import (
	"testing"
	"time"
)

func TestLimiter_AllowsUpToLimitWithinWindow(t *testing.T) {
	l := newLimiter(3)
	now := time.Now()

	for i := 0; i < 3; i++ {
		if !l.Allow("conn-1", now) {
			t.Fatalf("operation %d should be allowed", i)
		}
	}
	if l.Allow("conn-1", now) {
		t.Fatal("4th operation within the window should be rejected")
	}
}

func TestLimiter_SlidesWindowForward(t *testing.T) {
	l := newLimiter(1)
	start := time.Now()

	if !l.Allow("conn-1", start) {
		t.Fatal("first operation should be allowed")
	}
	if l.Allow("conn-1", start.Add(10*time.Second)) {
		t.Fatal("second operation within the window should be rejected")
	}
	if !l.Allow("conn-1", start.Add(rateLimitWindow+time.Second)) {
		t.Fatal("operation after the window has slid past should be allowed")
	}
}

func TestLimiter_TracksConnectionsIndependently(t *testing.T) {
	l := newLimiter(1)
	now := time.Now()

	if !l.Allow("conn-1", now) {
		t.Fatal("conn-1 first operation should be allowed")
	}
	if !l.Allow("conn-2", now) {
		t.Fatal("conn-2 should have its own independent window")
	}
}

func TestLimiter_ForgetClearsWindow(t *testing.T) {
	l := newLimiter(1)
	now := time.Now()

	l.Allow("conn-1", now)
	l.Forget("conn-1")

	if !l.Allow("conn-1", now) {
		t.Fatal("operation after Forget should be allowed again")
	}
}
