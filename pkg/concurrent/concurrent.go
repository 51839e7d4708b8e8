/*
Copyright 2025 Argos Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package concurrent provides the bounded worker pool the engine uses to
// fan audit work out over inputs.
package concurrent

import (
	"context"
	"runtime"
	"sync"
)

// Pool bounds how many tasks run at once.
type Pool struct {
	workers int
	buffer  int
}

// NewPool returns a pool of the given width. A non-positive worker count
// falls back to the number of CPUs.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{
		workers: workers,
		buffer:  2 * workers,
	}
}

// Workers returns the pool's width.
func (p *Pool) Workers() int { return p.workers }

// Map runs fn over every task and returns one result per task, in task
// order regardless of which worker finished first. Tasks are independent:
// fn must carry its own failures inside R rather than panicking.
//
// When ctx is cancelled, workers stop picking up new tasks; results for
// tasks that never ran are left as R's zero value and ctx.Err() is
// returned alongside the partial results.
func Map[T, R any](ctx context.Context, p *Pool, tasks []T, fn func(context.Context, T) R) ([]R, error) {
	results := make([]R, len(tasks))
	if len(tasks) == 0 {
		return results, nil
	}

	workers := p.workers
	if workers > len(tasks) {
		workers = len(tasks)
	}

	type job struct {
		index int
		task  T
	}
	jobs := make(chan job, p.buffer)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				// Each worker writes only its own task's slot, so the
				// results slice needs no lock.
				results[j.index] = fn(ctx, j.task)
			}
		}()
	}

	for i, task := range tasks {
		select {
		case jobs <- job{index: i, task: task}:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return results, ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}
