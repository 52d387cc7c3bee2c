// Package schedule implements the bounded-in-flight worker pool: a fixed
// pool of workers consumes block ranges from the partitioner, at most W
// blocks are submitted-but-not-completed at any moment, and a worker is
// optionally torn down and replaced after handling a configured number of
// tasks. The in-flight window is a weighted semaphore rather than a
// fixed-capacity channel so it stays adjustable independently of the
// worker count.
package schedule

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/standardbeagle/spimidx/internal/blockworker"
	"github.com/standardbeagle/spimidx/internal/builderrors"
	"github.com/standardbeagle/spimidx/internal/config"
	"github.com/standardbeagle/spimidx/internal/corpus"
)

// Scheduler dispatches block ranges to a bounded worker pool.
type Scheduler struct {
	Workers          int
	MaxInFlight      int
	MaxTasksPerChild int
}

// New builds a Scheduler from the resolved scheduler config.
func New(cfg *config.Config) *Scheduler {
	return &Scheduler{
		Workers:          cfg.Scheduler.Workers,
		MaxInFlight:      cfg.ResolvedMaxInFlight(),
		MaxTasksPerChild: cfg.Scheduler.MaxTasksPerChild,
	}
}

// TaskBuilder computes a block's Task from its BlockRange, assigning
// base_doc_uid deterministically by block id regardless of dispatch or
// completion order.
func TaskBuilder(blockDocs int, corpusPath, blocksDir, docStorePartsDir, defaultLanguage string) func(corpus.BlockRange) blockworker.Task {
	return func(rng corpus.BlockRange) blockworker.Task {
		return blockworker.Task{
			BlockID:          rng.BlockID,
			Start:            rng.Start,
			End:              rng.End,
			CorpusPath:       corpusPath,
			BaseDocUID:       uint64(rng.BlockID) * uint64(blockDocs),
			BlocksDir:        blocksDir,
			DocStorePartsDir: docStorePartsDir,
			DefaultLanguage:  defaultLanguage,
		}
	}
}

// Process is a block's processing function, injected so tests can run the
// scheduler without real blockworker I/O.
type Process func(context.Context, blockworker.Task) blockworker.Result

// Run streams ranges through the worker pool and returns every Result
// (in completion order, not block order; callers reassemble by BlockID)
// plus the first error encountered, from either a worker result (wrapped
// in *builderrors.BuildAborted), the range scanner, or ctx. On first error every in-flight task is
// cancelled.
func (s *Scheduler) Run(
	ctx context.Context,
	ranges <-chan corpus.BlockRange,
	rangeErr <-chan error,
	newTask func(corpus.BlockRange) blockworker.Task,
	process Process,
) ([]blockworker.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := s.Workers
	if workers <= 0 {
		workers = 1
	}
	window := s.MaxInFlight
	if window <= 0 {
		window = 2 * workers
	}

	sem := semaphore.NewWeighted(int64(window))
	taskChan := make(chan blockworker.Task)
	resultChan := make(chan blockworker.Result)

	var wg sync.WaitGroup

	var spawnWorker func(id int)
	spawnWorker = func(id int) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			completed := 0
			for {
				select {
				case <-ctx.Done():
					return
				case task, ok := <-taskChan:
					if !ok {
						return
					}
					res := process(ctx, task)
					sem.Release(1)
					select {
					case resultChan <- res:
					case <-ctx.Done():
						return
					}
					completed++
					if s.MaxTasksPerChild > 0 && completed >= s.MaxTasksPerChild {
						// Recycle: tear this worker down and replace it
						// with a fresh goroutine consuming the same
						// channel, mitigating memory growth in long
						// builds.
						spawnWorker(id)
						return
					}
				}
			}
		}()
	}
	for i := 0; i < workers; i++ {
		spawnWorker(i)
	}

	feedErrCh := make(chan error, 1)
	go func() {
		defer close(taskChan)
		for {
			select {
			case <-ctx.Done():
				feedErrCh <- ctx.Err()
				close(feedErrCh)
				return
			case rng, ok := <-ranges:
				if !ok {
					if err := <-rangeErr; err != nil {
						feedErrCh <- err
					}
					close(feedErrCh)
					return
				}
				if err := sem.Acquire(ctx, 1); err != nil {
					feedErrCh <- err
					close(feedErrCh)
					return
				}
				select {
				case taskChan <- newTask(rng):
				case <-ctx.Done():
					sem.Release(1)
					feedErrCh <- ctx.Err()
					close(feedErrCh)
					return
				}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var (
		results  []blockworker.Result
		firstErr error
	)
	for res := range resultChan {
		results = append(results, res)
		if res.Err != nil && firstErr == nil {
			firstErr = &builderrors.BuildAborted{BlockID: res.BlockID, Cause: res.Err}
			cancel()
		}
	}

	if err := <-feedErrCh; err != nil && firstErr == nil {
		firstErr = err
	}

	return results, firstErr
}
