package schedule

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/standardbeagle/spimidx/internal/blockworker"
	"github.com/standardbeagle/spimidx/internal/corpus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func rangesChan(n int) (<-chan corpus.BlockRange, <-chan error) {
	ranges := make(chan corpus.BlockRange, n)
	errCh := make(chan error, 1)
	for i := 0; i < n; i++ {
		ranges <- corpus.BlockRange{BlockID: i, Start: int64(i * 10), End: int64(i*10 + 10)}
	}
	close(ranges)
	close(errCh)
	return ranges, errCh
}

func identityTask(rng corpus.BlockRange) blockworker.Task {
	return blockworker.Task{BlockID: rng.BlockID, Start: rng.Start, End: rng.End}
}

func TestRunProcessesAllBlocksNoLeak(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := &Scheduler{Workers: 3, MaxInFlight: 4}
	ranges, errCh := rangesChan(9)

	results, err := s.Run(context.Background(), ranges, errCh, identityTask, func(_ context.Context, task blockworker.Task) blockworker.Result {
		return blockworker.Result{BlockID: task.BlockID, Accepted: 1}
	})

	require.NoError(t, err)
	require.Len(t, results, 9)

	var ids []int
	for _, r := range results {
		ids = append(ids, r.BlockID)
	}
	sort.Ints(ids)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8}, ids)
}

func TestRunCancelsOnFirstError(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := &Scheduler{Workers: 2, MaxInFlight: 2}
	ranges, errCh := rangesChan(20)

	wantErr := errors.New("boom")
	results, err := s.Run(context.Background(), ranges, errCh, identityTask, func(_ context.Context, task blockworker.Task) blockworker.Result {
		if task.BlockID == 3 {
			return blockworker.Result{BlockID: task.BlockID, Err: wantErr}
		}
		return blockworker.Result{BlockID: task.BlockID, Accepted: 1}
	})

	require.Error(t, err)
	assert.Less(t, len(results), 20)
}

func TestRunRecyclesWorkersAfterMaxTasksPerChild(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := &Scheduler{Workers: 2, MaxInFlight: 2, MaxTasksPerChild: 1}
	ranges, errCh := rangesChan(6)

	results, err := s.Run(context.Background(), ranges, errCh, identityTask, func(_ context.Context, task blockworker.Task) blockworker.Result {
		return blockworker.Result{BlockID: task.BlockID, Accepted: 1}
	})

	require.NoError(t, err)
	require.Len(t, results, 6)
}
