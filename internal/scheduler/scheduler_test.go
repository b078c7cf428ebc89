package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingReloader struct {
	n atomic.Int32
}

func (c *countingReloader) Reload(context.Context) error {
	c.n.Add(1)
	return nil
}

func TestRun_InvalidSpec(t *testing.T) {
	err := Run(context.Background(), "not a cron spec", "registry", &countingReloader{})
	if err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}

func TestRun_ReloadsUntilCanceled(t *testing.T) {
	r := &countingReloader{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, "@every 1s", "registry", r) }()

	deadline := time.Now().Add(5 * time.Second)
	for r.n.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if r.n.Load() == 0 {
		t.Error("expected at least one reload")
	}
}
