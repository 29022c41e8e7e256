package starlark

import (
	"context"
	"sync"

	"go.starlark.net/starlark"
)

// DefaultPoolSize is the number of idle threads a pool keeps by default.
const DefaultPoolSize = 8

// ThreadPool recycles Starlark threads between executions.
type ThreadPool struct {
	mu       sync.Mutex
	threads  []*starlark.Thread
	maxSize  int
	maxSteps uint64
	print    func(thread *starlark.Thread, msg string)
}

// PoolOption configures a ThreadPool.
type PoolOption func(*ThreadPool)

// WithPrint routes print() output of pooled threads to fn.
func WithPrint(fn func(thread *starlark.Thread, msg string)) PoolOption {
	return func(p *ThreadPool) { p.print = fn }
}

// WithMaxSteps bounds the computation steps of one execution; 0 is unbounded.
func WithMaxSteps(n uint64) PoolOption {
	return func(p *ThreadPool) { p.maxSteps = n }
}

// NewThreadPool creates a new thread pool with the specified maximum size.
func NewThreadPool(maxSize int, opts ...PoolOption) *ThreadPool {
	if maxSize <= 0 {
		maxSize = DefaultPoolSize
	}
	p := &ThreadPool{
		threads: make([]*starlark.Thread, 0, maxSize),
		maxSize: maxSize,
		print:   func(_ *starlark.Thread, _ string) {},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Acquire returns a thread bound to ctx: cancelling ctx cancels whatever the
// thread is executing. The release function must be called when done.
func (p *ThreadPool) Acquire(ctx context.Context, name string) (*starlark.Thread, func()) {
	thread := p.get(name)
	stop := context.AfterFunc(ctx, func() {
		thread.Cancel(context.Cause(ctx).Error())
	})
	return thread, func() {
		// A thread whose cancel func already fired is not reused
		if stop() {
			p.put(thread)
		}
	}
}

func (p *ThreadPool) get(name string) *starlark.Thread {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.threads); n > 0 {
		thread := p.threads[n-1]
		p.threads = p.threads[:n-1]
		thread.Name = name
		thread.Steps = 0
		thread.Uncancel() // step limit exhaustion cancels the thread
		return thread
	}

	thread := &starlark.Thread{Name: name, Print: p.print}
	if p.maxSteps > 0 {
		thread.SetMaxExecutionSteps(p.maxSteps)
	}
	return thread
}

// put returns a thread to the pool. If the pool is full the thread is dropped.
func (p *ThreadPool) put(thread *starlark.Thread) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.threads) < p.maxSize {
		// Clear any state that might leak between uses
		thread.Name = ""
		thread.Load = nil
		p.threads = append(p.threads, thread)
	}
}

// Size returns the current number of idle threads in the pool.
func (p *ThreadPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.threads)
}
