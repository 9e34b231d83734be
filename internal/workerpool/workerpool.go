// Copyright 2025 go-highway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package workerpool runs evaluator batches on a persistent set of
// goroutines. A Pool is created once per Evaluator and reused by every
// EvalSlice call, so large slices pay no goroutine spawn cost.
//
// Work is split into contiguous ranges whose boundaries fall on multiples of
// the lane width, so every worker but the last sees only full lane batches.
package workerpool

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool is a persistent worker pool.
type Pool struct {
	workers   int
	work      chan task
	closeOnce sync.Once
	closed    atomic.Bool
}

type task struct {
	fn   func()
	done *sync.WaitGroup
}

// New starts a pool with the given number of workers, or GOMAXPROCS when
// workers <= 0.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := &Pool{
		workers: workers,
		work:    make(chan task, workers*2),
	}
	for i := 0; i < workers; i++ {
		go p.loop()
	}
	return p
}

func (p *Pool) loop() {
	for t := range p.work {
		t.fn()
		t.done.Done()
	}
}

// Workers returns the number of workers.
func (p *Pool) Workers() int {
	return p.workers
}

// Close stops the workers after pending work completes. It is safe to call
// more than once; a closed pool runs work on the caller's goroutine.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.work)
	})
}

// Chunks splits [0, n) into at most parts contiguous ranges whose interior
// boundaries are multiples of align.
func Chunks(n, parts, align int) [][2]int {
	if n <= 0 {
		return nil
	}
	if align < 1 {
		align = 1
	}
	parts = max(1, min(parts, (n+align-1)/align))
	size := (n + parts - 1) / parts
	size = (size + align - 1) / align * align
	var out [][2]int
	for start := 0; start < n; start += size {
		out = append(out, [2]int{start, min(start+size, n)})
	}
	return out
}

// ParallelFor calls fn on lane-aligned ranges covering [0, n) and blocks
// until all of them complete.
func (p *Pool) ParallelFor(n, align int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	chunks := Chunks(n, p.workers, align)
	if len(chunks) == 1 || p.closed.Load() {
		fn(0, n)
		return
	}
	var wg sync.WaitGroup
	wg.Add(len(chunks))
	for _, c := range chunks {
		c := c
		p.work <- task{fn: func() { fn(c[0], c[1]) }, done: &wg}
	}
	wg.Wait()
}

// ParallelForBatched hands out batches of batch indices to whichever worker
// is free. batch is rounded up to a multiple of align. Use it when the cost
// per index varies.
func (p *Pool) ParallelForBatched(n, batch, align int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if align < 1 {
		align = 1
	}
	batch = (max(batch, 1) + align - 1) / align * align
	batches := (n + batch - 1) / batch
	workers := min(p.workers, batches)
	if workers == 1 || p.closed.Load() {
		fn(0, n)
		return
	}

	var next atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		p.work <- task{
			fn: func() {
				for {
					start := int(next.Add(1)-1) * batch
					if start >= n {
						return
					}
					fn(start, min(start+batch, n))
				}
			},
			done: &wg,
		}
	}
	wg.Wait()
}
