package ingest

import (
	"context"
	"log/slog"
	"sync"
)

// Pool runs fire-and-forget background work (transcription, extraction) off
// the webhook request path. Bounded: a fixed worker count and a fixed queue,
// so a burst of recording callbacks cannot spawn unbounded goroutines.
//
// Submit must not be called after Shutdown.
type Pool struct {
	log    *slog.Logger
	tasks  chan func(context.Context)
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewPool(workers, queueSize int, log *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 4 * workers
	}
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		log:    log,
		tasks:  make(chan func(context.Context), queueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit enqueues a task without blocking. Returns false when the queue is
// full; the caller decides how to record the dropped work.
func (p *Pool) Submit(task func(context.Context)) bool {
	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

// Shutdown drains queued tasks, waits for in-flight work, then cancels the
// pool context.
func (p *Pool) Shutdown() {
	close(p.tasks)
	p.wg.Wait()
	p.cancel()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(task)
	}
}

func (p *Pool) run(task func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("background task panicked", "panic", r)
		}
	}()
	task(p.ctx)
}
