package starlark

import (
	"context"
	"sync"

	"go.starlark.net/starlark"
)

// ThreadPool recycles Starlark threads between function calls.
type ThreadPool struct {
	mu      sync.Mutex
	threads []*starlark.Thread
	maxSize int
	print   func(*starlark.Thread, string)
}

// NewThreadPool creates a new thread pool with the specified maximum size.
// print receives output of the Starlark print builtin; nil discards it.
func NewThreadPool(maxSize int, print func(*starlark.Thread, string)) *ThreadPool {
	if maxSize <= 0 {
		maxSize = 4
	}
	if print == nil {
		print = func(_ *starlark.Thread, _ string) {}
	}
	return &ThreadPool{
		threads: make([]*starlark.Thread, 0, maxSize),
		maxSize: maxSize,
		print:   print,
	}
}

// Get retrieves a thread from the pool or creates a new one.
// The thread name is used for error reporting.
func (p *ThreadPool) Get(name string) *starlark.Thread {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.threads) > 0 {
		thread := p.threads[len(p.threads)-1]
		p.threads = p.threads[:len(p.threads)-1]
		thread.Name = name
		return thread
	}
	return &starlark.Thread{Name: name, Print: p.print}
}

// Put returns a thread to the pool for reuse.
// Cancelled threads and threads beyond the pool size are discarded.
func (p *ThreadPool) Put(thread *starlark.Thread) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.threads) < p.maxSize {
		thread.Name = ""
		p.threads = append(p.threads, thread)
	}
}

// Size returns the current number of threads in the pool.
func (p *ThreadPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.threads)
}

// Call invokes fn on a pooled thread. Cancelling ctx interrupts the call.
func (p *ThreadPool) Call(ctx context.Context, name string, fn starlark.Value, args starlark.Tuple) (starlark.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	thread := p.Get(name)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	result, err := starlark.Call(thread, fn, args, nil)
	close(done)
	wg.Wait()
	if ctx.Err() == nil {
		p.Put(thread)
	}
	return result, err
}
