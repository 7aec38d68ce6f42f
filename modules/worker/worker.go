// Copyright 2025 Nhat-Nguyen Nguyen
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

package worker

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
)

type Worker[Job any] func(context.Context, Job)

// BlockingPool spawns size workers pulling from jobs and blocks until all of
// them return.
//
// The caller must ensure that jobs eventually gets closed or ctx gets cancelled.
//
// A panicking job is logged and the worker moves on to the next job; callers
// that need to know about it have to record completion inside the job.
func BlockingPool[Job any](ctx context.Context, size int, jobs <-chan Job, worker Worker[Job]) {
	if size <= 0 {
		size = 1
	}
	wg := sync.WaitGroup{}
	for range size {
		// wg.Go requires that func does not panic
		wg.Go(func() {
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-jobs:
					if !ok {
						return
					}
					runJob(ctx, worker, job)
				}
			}
		})
	}

	wg.Wait()
}

// RunAll feeds every job to a BlockingPool of at most size workers and waits
// for them. Jobs not yet started when ctx is cancelled are skipped.
func RunAll[Job any](ctx context.Context, size int, jobs []Job, worker Worker[Job]) {
	if len(jobs) == 0 {
		return
	}
	ch := make(chan Job, len(jobs))
	for _, j := range jobs {
		ch <- j
	}
	close(ch)

	BlockingPool(ctx, min(size, len(jobs)), ch, worker)
}

func runJob[Job any](ctx context.Context, worker Worker[Job], job Job) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.ErrorContext(ctx, "worker job panicked",
				slog.Any("error", rec),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	worker(ctx, job)
}
