package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLimiter_BurstThenRefill(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 60, Burst: 2})
	defer rl.Stop()

	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	got := []bool{rl.Allow("a"), rl.Allow("a"), rl.Allow("a"), rl.Allow("b")}
	want := []bool{true, true, false, true}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Allow #%d = %v, want %v", i, got[i], want[i])
		}
	}

	now = now.Add(time.Second)
	if !rl.Allow("a") {
		t.Error("one token should refill after a second at 60/min")
	}
	if m := rl.GetMetrics(); m.TotalHits != 1 || m.ClientCount != 2 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestLimiter_CleanupDropsIdleClients(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 10, CleanupInterval: time.Hour})
	defer rl.Stop()

	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.Allow("idle")

	now = now.Add(3 * time.Hour)
	rl.Allow("active")
	rl.cleanupStaleEntries()

	if n := rl.ActiveClients(); n != 1 {
		t.Fatalf("ActiveClients = %d, want 1", n)
	}
}

func TestMiddleware_OnlyListedMethods(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 1})
	defer rl.Stop()
	rl.Stop() // idempotent

	h := rl.Middleware(func(*http.Request) string { return "c" }, nil, http.MethodPost)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	codes := map[string][]int{}
	for _, method := range []string{http.MethodPost, http.MethodPost, http.MethodGet, http.MethodGet} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(method, "/", nil))
		codes[method] = append(codes[method], rr.Code)
	}

	if got := codes[http.MethodPost]; got[0] != http.StatusNoContent || got[1] != http.StatusTooManyRequests {
		t.Errorf("POST codes = %v", got)
	}
	if got := codes[http.MethodGet]; got[0] != http.StatusNoContent || got[1] != http.StatusNoContent {
		t.Errorf("GET codes = %v", got)
	}
}
