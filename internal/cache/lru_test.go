package cache

import (
	"context"
	"testing"
	"time"

	"concesionario/internal/financing"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLRU[T any](size int, ttl time.Duration) (*LRUCache[T], *clock) {
	clk := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache[T](size, ttl)
	c.now = clk.now
	return c, clk
}

func TestLRUCacheStoresResults(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestLRU[financing.SimulatorResults](3, time.Minute)

	res := financing.SimulatorResults{FeePolicy: financing.FeesFinanced}
	if err := c.Set(ctx, "sim:a", res); err != nil {
		t.Fatal(err)
	}
	got, ok, err := c.Get(ctx, "sim:a")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.FeePolicy != financing.FeesFinanced {
		t.Errorf("unexpected value %+v", got)
	}
	if _, ok, _ := c.Get(ctx, "sim:missing"); ok {
		t.Error("expected miss")
	}
}

func TestLRUCacheEviction(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestLRU[string](3, time.Hour)

	_ = c.Set(ctx, "key1", "value1")
	_ = c.Set(ctx, "key2", "value2")
	_ = c.Set(ctx, "key3", "value3")
	// Touch key1 so key2 becomes the oldest.
	_, _, _ = c.Get(ctx, "key1")
	_ = c.Set(ctx, "key4", "value4")

	if _, ok, _ := c.Get(ctx, "key2"); ok {
		t.Error("key2 should have been evicted")
	}
	for _, k := range []string{"key1", "key3", "key4"} {
		if _, ok, _ := c.Get(ctx, k); !ok {
			t.Errorf("%s should still be cached", k)
		}
	}
	if c.Size() != 3 {
		t.Errorf("size = %d, want 3", c.Size())
	}
}

func TestLRUCacheTTL(t *testing.T) {
	ctx := context.Background()
	c, clk := newTestLRU[string](10, 50*time.Millisecond)

	_ = c.Set(ctx, "key1", "value1")
	if _, ok, _ := c.Get(ctx, "key1"); !ok {
		t.Fatal("fresh entry should be found")
	}
	clk.advance(60 * time.Millisecond)
	if _, ok, _ := c.Get(ctx, "key1"); ok {
		t.Error("expired entry should be a miss")
	}
	if c.Size() != 0 {
		t.Errorf("expired entry should be dropped on read, size = %d", c.Size())
	}
}

func TestLRUCacheOverwrite(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestLRU[string](2, time.Hour)

	_ = c.Set(ctx, "k", "v1")
	_ = c.Set(ctx, "k", "v2")
	got, _, _ := c.Get(ctx, "k")
	if got != "v2" || c.Size() != 1 {
		t.Errorf("got %q size %d", got, c.Size())
	}
	_ = c.Delete(ctx, "k")
	if c.Size() != 0 {
		t.Error("delete should remove the entry")
	}
}

func TestManagerCleansRegisteredCaches(t *testing.T) {
	ctx := context.Background()
	c, clk := newTestLRU[string](100, 50*time.Millisecond)
	_ = c.Set(ctx, "key1", "value1")
	_ = c.Set(ctx, "key2", "value2")
	_ = c.Set(ctx, "key3", "value3")
	clk.advance(time.Second)

	m := NewManager(nil)
	m.Register(c)
	m.Register(NewRedisCache[string](nil, "x:", 0))

	if removed := m.CleanNow(); removed != 3 {
		t.Errorf("removed %d, want 3", removed)
	}
	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}

func BenchmarkLRUCache(b *testing.B) {
	ctx := context.Background()
	c := NewLRUCache[financing.SimulatorResults](1000, time.Hour)
	res := financing.SimulatorResults{FeePolicy: financing.FeesUpfront}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if i%10 == 0 {
			_ = c.Set(ctx, "bench-key", res)
		} else {
			_, _, _ = c.Get(ctx, "bench-key")
		}
	}
}
