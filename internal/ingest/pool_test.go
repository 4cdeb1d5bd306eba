package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

func TestPoolRunsSubmittedTasks(t *testing.T) {
	p := NewPool(2, 8, nil)
	var ran atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		ok := p.Submit(func(ctx context.Context) {
			defer wg.Done()
			ran.Add(1)
		})
		if !ok {
			t.Fatalf("submit %d rejected", i)
		}
	}
	wg.Wait()
	p.Shutdown()
	if ran.Load() != 5 {
		t.Fatalf("expected 5 tasks run, got %d", ran.Load())
	}
}

func TestPoolRejectsWhenQueueFull(t *testing.T) {
	p := NewPool(1, 1, nil)
	block := make(chan struct{})
	started := make(chan struct{})

	p.Submit(func(ctx context.Context) {
		close(started)
		<-block
	})
	<-started

	// Worker busy; one slot in the queue.
	if !p.Submit(func(ctx context.Context) {}) {
		t.Fatalf("expected queue slot available")
	}
	if p.Submit(func(ctx context.Context) {}) {
		t.Fatalf("expected full queue to reject")
	}

	close(block)
	p.Shutdown()
}

func TestPoolRecoversFromPanic(t *testing.T) {
	p := NewPool(1, 4, nil)
	done := make(chan struct{})

	p.Submit(func(ctx context.Context) { panic("boom") })
	p.Submit(func(ctx context.Context) { close(done) })

	<-done
	p.Shutdown()
}
