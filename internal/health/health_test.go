package health

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestRegistryEmpty(t *testing.T) {
	r := NewRegistry()
	healthy, statuses := r.CheckAll(context.Background())
	if !healthy {
		t.Fatal("empty registry should be healthy")
	}
	if len(statuses) != 0 {
		t.Fatalf("expected 0 statuses, got %d", len(statuses))
	}
}

func TestRegistryAllHealthy(t *testing.T) {
	r := NewRegistry()
	r.Register("database", func(_ context.Context) Status {
		return Status{Healthy: true}
	})
	r.Register("rpc", func(_ context.Context) Status {
		return Status{Healthy: true, Detail: "Ethereum"}
	})

	healthy, statuses := r.CheckAll(context.Background())
	if !healthy {
		t.Fatal("all-healthy registry should report healthy")
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	// Names come from registration, in registration order.
	if statuses[0].Name != "database" || statuses[1].Name != "rpc" {
		t.Fatalf("unexpected status order: %+v", statuses)
	}
}

func TestRegistryOneUnhealthy(t *testing.T) {
	r := NewRegistry()
	r.Register("database", func(_ context.Context) Status {
		return Status{Healthy: true}
	})
	r.Register("rpc", func(_ context.Context) Status {
		return Status{Healthy: false, Detail: "connection refused"}
	})

	healthy, statuses := r.CheckAll(context.Background())
	if healthy {
		t.Fatal("registry with unhealthy checker should report unhealthy")
	}
	if statuses[1].Detail != "connection refused" {
		t.Fatalf("expected detail 'connection refused', got %q", statuses[1].Detail)
	}
}

func TestRegistryChecksRunConcurrently(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 4; i++ {
		r.Register("slow", func(_ context.Context) Status {
			time.Sleep(50 * time.Millisecond)
			return Status{Healthy: true}
		})
	}

	start := time.Now()
	_, statuses := r.CheckAll(context.Background())
	elapsed := time.Since(start)

	// Four 50ms checks in parallel should take well under 200ms total.
	if elapsed > 150*time.Millisecond {
		t.Fatalf("checks appear serialized: %v", elapsed)
	}
	for _, st := range statuses {
		if st.LatencyMS < 40 {
			t.Fatalf("expected per-check latency recorded, got %dms", st.LatencyMS)
		}
	}
}

func TestRegistryConcurrentRegisterAndCheck(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	// Register concurrently
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Register("checker", func(_ context.Context) Status {
				return Status{Healthy: true}
			})
		}()
	}

	// Check concurrently
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.CheckAll(context.Background())
		}()
	}

	wg.Wait()
}
